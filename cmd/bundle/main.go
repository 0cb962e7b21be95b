package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	esmbundler "github.com/wippyai/esm-bundler"
	"github.com/wippyai/esm-bundler/cache"
	"github.com/wippyai/esm-bundler/graph"
	"github.com/wippyai/esm-bundler/resolve"
	"github.com/wippyai/esm-bundler/scan"
	"github.com/wippyai/esm-bundler/wasmmod"
	"github.com/wippyai/esm-bundler/watch"
)

func main() {
	var (
		entries     = flag.String("entry", "", "Entry points, comma-separated (path or name=path)")
		configPath  = flag.String("config", "", "Config file (default: bundle.config.{json,yaml,toml} under -root)")
		rootDir     = flag.String("root", ".", "Project root for resolution and watching")
		outPath     = flag.String("out", "", "Manifest output file (default: stdout)")
		externals   = flag.String("external", "", "Specifiers kept external, comma-separated")
		treeShake   = flag.Bool("treeshake", true, "Drop unreferenced statements and modules")
		preserveSig = flag.String("preserve-entry-signatures", "exports-only", "strict, allow-extension, exports-only or false")
		preserveMod = flag.Bool("preserve-modules", false, "Emit one chunk per included module")
		inlineDyn   = flag.Bool("inline-dynamic-imports", false, "Collapse a single-entry build into one chunk")
		watchMode   = flag.Bool("watch", false, "Rebuild when source files change")
		interactive = flag.Bool("i", false, "Interactive watch mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose build logging")
	)
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	fv := flagValues{
		entries:         *entries,
		external:        *externals,
		out:             *outPath,
		preserveSig:     *preserveSig,
		treeShake:       *treeShake,
		preserveModules: *preserveMod,
		inlineDynamic:   *inlineDyn,
		set:             set,
	}

	cfg, err := loadConfig(*rootDir, *configPath, fv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(cfg.Entries) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: bundle -entry <path>[,<path>...] [-watch] [-out manifest.json]")
		fmt.Fprintln(os.Stderr, "       bundle -config bundle.config.yaml")
		fmt.Fprintln(os.Stderr, "       bundle -entry ./src/main.js -i  (interactive watch mode)")
		os.Exit(1)
	}

	// The development logger writes to stderr, which the TUI owns in
	// interactive mode.
	logger := zap.NewNop()
	if *verbose && !*interactive {
		if dev, lerr := zap.NewDevelopment(); lerr == nil {
			logger = dev
			graph.SetLogger(dev)
			defer dev.Sync()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *interactive:
		err = runInteractive(ctx, cfg)
	case *watchMode:
		err = runWatch(ctx, cfg, logger)
	default:
		err = runOnce(ctx, cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// builder wires the project collaborators once and runs builds against them,
// carrying the cache snapshot from each build into the next.
type builder struct {
	cfg      config
	resolver *resolve.Resolver
	source   graph.Source
	wasm     *wasmmod.Source
	snapshot *cache.Snapshot
}

func newBuilder(ctx context.Context, cfg config) (*builder, error) {
	ropts := resolve.DefaultOptions()
	ropts.Root = cfg.Root
	ropts.Externals = cfg.External

	facts, err := cache.NewFactsCache(cache.DefaultFactsCapacity)
	if err != nil {
		return nil, err
	}
	wasmSrc := wasmmod.NewSource(ctx).WithCache(facts)

	return &builder{
		cfg:      cfg,
		resolver: resolve.New(ropts),
		source:   esmbundler.NewSources(scan.NewSource().WithCache(facts), wasmSrc),
		wasm:     wasmSrc,
	}, nil
}

func (b *builder) close(ctx context.Context) {
	b.wasm.Close(ctx)
}

func (b *builder) options() graph.Options {
	opts := graph.DefaultOptions()
	opts.Entries = b.cfg.Entries
	opts.TreeShake = b.cfg.TreeShake
	opts.PreserveEntrySignatures = b.cfg.Preserve
	opts.PreserveModules = b.cfg.PreserveModules
	opts.InlineDynamicImports = b.cfg.InlineDynamic
	if len(b.cfg.ManualChunks) > 0 {
		opts.ManualChunks = b.cfg.ManualChunks
	}
	opts.Resolver = b.resolver
	opts.Source = b.source
	opts.Cache = b.snapshot
	return opts
}

func (b *builder) build(ctx context.Context) (*graph.Graph, *graph.Result, error) {
	g, err := graph.New(b.options())
	if err != nil {
		return nil, nil, err
	}
	res, err := g.Build(ctx)
	if err != nil {
		return nil, nil, err
	}
	b.snapshot = res.Cache
	return g, res, nil
}

func runOnce(ctx context.Context, cfg config) error {
	b, err := newBuilder(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close(ctx)

	g, res, err := b.build(ctx)
	if err != nil {
		return err
	}

	man, err := buildManifest(g, res)
	if err != nil {
		return err
	}
	if err := writeManifest(man, cfg.Out); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%d chunks, %d modules, %d warnings\n",
		len(res.Chunks), len(man.Modules), len(res.Warnings))
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning %s: %s\n", w.Code, w.Message)
	}
	return nil
}

func runWatch(ctx context.Context, cfg config, logger *zap.Logger) error {
	b, err := newBuilder(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close(ctx)

	// Build failures keep the watcher alive; broken source at startup is the
	// normal state watch mode exists for.
	rebuild := func(ctx context.Context, changed []string) error {
		g, res, err := b.build(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
			return nil
		}
		man, err := buildManifest(g, res)
		if err != nil {
			return err
		}
		if err := writeManifest(man, cfg.Out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "rebuilt: %d chunks, %d warnings\n", len(res.Chunks), len(res.Warnings))
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "warning %s: %s\n", w.Code, w.Message)
		}
		return nil
	}

	if err := rebuild(ctx, nil); err != nil {
		return err
	}

	w, err := watch.New(watch.Config{
		Root:      cfg.Root,
		Patterns:  cfg.WatchPatterns,
		Ignore:    watchIgnores(cfg),
		Debounce:  cfg.WatchDebounce,
		OnRebuild: rebuild,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "watching for changes; ctrl-c to stop")
	return w.Run(ctx)
}

// watchIgnores extends the configured ignores with the manifest output path,
// so writing the manifest never triggers the next rebuild.
func watchIgnores(cfg config) []string {
	ignores := cfg.WatchIgnore
	if cfg.Out == "" || cfg.Out == "-" {
		return ignores
	}
	rel, err := filepath.Rel(cfg.Root, cfg.Out)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ignores
	}
	return append(append([]string{}, ignores...), filepath.ToSlash(rel))
}

type manifest struct {
	Chunks   []manifestChunk   `json:"chunks"`
	Modules  []manifestModule  `json:"modules"`
	Cycles   [][]string        `json:"cycles,omitempty"`
	Warnings []manifestWarning `json:"warnings,omitempty"`
}

type manifestChunk struct {
	Alias          string   `json:"alias,omitempty"`
	Modules        []string `json:"modules"`
	Entries        []string `json:"entries,omitempty"`
	DynamicEntries []string `json:"dynamicEntries,omitempty"`
}

type manifestModule struct {
	ID               string   `json:"id"`
	IsEntry          bool     `json:"isEntry,omitempty"`
	IsExternal       bool     `json:"isExternal,omitempty"`
	ImportedIDs      []string `json:"importedIds,omitempty"`
	DynamicImportIDs []string `json:"dynamicallyImportedIds,omitempty"`
	Importers        []string `json:"importers,omitempty"`
}

type manifestWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func buildManifest(g *graph.Graph, res *graph.Result) (*manifest, error) {
	man := &manifest{Cycles: res.Cycles}
	for _, c := range res.Chunks {
		mc := manifestChunk{Alias: c.Alias, Modules: c.ModuleIDs()}
		for _, e := range c.Entries {
			mc.Entries = append(mc.Entries, e.ID)
		}
		for _, e := range c.DynamicEntries {
			mc.DynamicEntries = append(mc.DynamicEntries, e.ID)
		}
		man.Chunks = append(man.Chunks, mc)
	}
	for _, id := range g.ModuleIDs() {
		info, err := g.ModuleInfo(id)
		if err != nil {
			return nil, err
		}
		man.Modules = append(man.Modules, manifestModule{
			ID:               info.ID,
			IsEntry:          info.IsEntry,
			IsExternal:       info.IsExternal,
			ImportedIDs:      info.ImportedIDs,
			DynamicImportIDs: info.DynamicImportIDs,
			Importers:        info.Importers,
		})
	}
	for _, w := range res.Warnings {
		man.Warnings = append(man.Warnings, manifestWarning{Code: string(w.Code), Message: w.Message})
	}
	return man, nil
}

func writeManifest(man *manifest, out string) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if out == "" || out == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(out, data, 0o644)
}
