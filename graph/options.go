package graph

import (
	"context"

	"github.com/wippyai/esm-bundler/ast"
	"github.com/wippyai/esm-bundler/cache"
	"github.com/wippyai/esm-bundler/errors"
	"github.com/wippyai/esm-bundler/resolve"
)

// Resolver maps an import specifier, in the context of the importing module,
// to a canonical module id. importer is "" for entry specifiers. A not-found
// error is fatal for relative specifiers; bare specifiers fall back to
// external-by-convention with a warning.
type Resolver interface {
	ResolveSpecifier(ctx context.Context, specifier, importer string) (resolve.Resolved, error)
}

// Source loads and analyzes one module by canonical id. Implementations must
// be safe for concurrent calls; the loader fans out fetches per round.
type Source interface {
	Load(ctx context.Context, id string) (*ast.ModuleFacts, error)
}

// InfoAPI is the query surface handed to manual-chunk callbacks and exposed
// to plugins.
type InfoAPI interface {
	ModuleIDs() []string
	ModuleInfo(id string) (*ModuleInfo, error)
}

// ManualChunksFunc assigns a manual-chunk alias to a module, or "" to leave
// it to automatic assignment. Invoked once per module after the full graph is
// discovered.
type ManualChunksFunc func(id string, api InfoAPI) string

// EntryPoint names one build root. A non-empty ImplicitlyLoadedAfter turns
// the entry implicit: the module is guaranteed by the surrounding system to
// load after one of the listed modules instead of being imported, and those
// modules must end up in the build or the build fails.
type EntryPoint struct {
	Specifier             string
	Name                  string
	ImplicitlyLoadedAfter []string
}

// Options configures one build. Zero value is not useful; start from
// DefaultOptions.
type Options struct {
	Entries []EntryPoint

	// TreeShake enables statement-level inclusion analysis. Off, every
	// statement of every reachable module is included.
	TreeShake bool

	// PreserveEntrySignatures applies to every entry and implicit entry.
	PreserveEntrySignatures PreserveSignature

	// PreserveModules emits one chunk per included module instead of
	// grouping. InlineDynamicImports collapses everything into a single
	// chunk. Both exclude manual chunks and each other.
	PreserveModules      bool
	InlineDynamicImports bool

	// ManualChunks pins the listed specifiers (loaded if not otherwise
	// reachable) to an alias. ManualChunksFn is the callback form, invoked
	// per module after discovery; the two forms are mutually exclusive.
	ManualChunks   map[string][]string
	ManualChunksFn ManualChunksFunc

	Resolver Resolver
	Source   Source

	// OnWarn receives every warning as it is emitted. Warnings are also
	// collected on the Result regardless.
	OnWarn errors.Handler

	// Cache seeds the plugin key/value store from a previous build's
	// snapshot. CacheExpiry is the number of builds an untouched entry
	// survives.
	Cache       *cache.Snapshot
	CacheExpiry int
}

// DefaultOptions returns the default build configuration: tree-shaking on,
// exports-only signature preservation, automatic chunking.
func DefaultOptions() Options {
	return Options{
		TreeShake:   true,
		CacheExpiry: cache.DefaultExpiry,
	}
}

func (o *Options) validate() error {
	if o.Resolver == nil {
		return errors.InvalidOption("a Resolver is required")
	}
	if o.Source == nil {
		return errors.InvalidOption("a Source is required")
	}
	if len(o.realEntries()) == 0 {
		return errors.MissingEntry()
	}
	if o.ManualChunks != nil && o.ManualChunksFn != nil {
		return errors.InvalidOption("ManualChunks and ManualChunksFn are mutually exclusive")
	}
	if o.PreserveModules && o.InlineDynamicImports {
		return errors.InvalidOption("PreserveModules and InlineDynamicImports are mutually exclusive")
	}
	if (o.ManualChunks != nil || o.ManualChunksFn != nil) && o.PreserveModules {
		return errors.InvalidOption("manual chunks are not supported with PreserveModules")
	}
	if (o.ManualChunks != nil || o.ManualChunksFn != nil) && o.InlineDynamicImports {
		return errors.InvalidOption("manual chunks are not supported with InlineDynamicImports")
	}
	if o.InlineDynamicImports && len(o.realEntries()) > 1 {
		return errors.InvalidOption("InlineDynamicImports supports a single entry module")
	}
	if o.InlineDynamicImports && len(o.realEntries()) < len(o.Entries) {
		return errors.InvalidOption("InlineDynamicImports is not supported with implicit entries")
	}
	return nil
}

// realEntries returns the non-implicit entry points.
func (o *Options) realEntries() []EntryPoint {
	var out []EntryPoint
	for _, e := range o.Entries {
		if len(e.ImplicitlyLoadedAfter) == 0 {
			out = append(out, e)
		}
	}
	return out
}
