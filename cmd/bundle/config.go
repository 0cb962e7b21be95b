package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wippyai/esm-bundler/graph"
)

// config is the merged build configuration: config-file values overridden by
// whatever flags were given explicitly.
type config struct {
	Root     string
	Out      string
	Entries  []graph.EntryPoint
	External []string

	TreeShake       bool
	Preserve        graph.PreserveSignature
	PreserveModules bool
	InlineDynamic   bool
	ManualChunks    map[string][]string

	WatchPatterns []string
	WatchIgnore   []string
	WatchDebounce time.Duration
}

// flagValues carries raw command-line state into the merge; set records which
// flags appeared on the command line, since a default value must not beat a
// config-file value.
type flagValues struct {
	entries         string
	external        string
	out             string
	preserveSig     string
	treeShake       bool
	preserveModules bool
	inlineDynamic   bool
	set             map[string]bool
}

// loadConfig reads the optional config file and merges it with the flags.
// Implicit entries (implicitlyLoadedAfter) are expressible only in the file
// form; the -entry flag covers plain and named entries.
func loadConfig(root, path string, fv flagValues) (config, error) {
	cfg := config{Root: root, TreeShake: true}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("bundle.config")
		v.AddConfigPath(root)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		}
	}

	fileEntries, err := parseConfigEntries(v.Get("entries"))
	if err != nil {
		return cfg, err
	}
	cfg.Entries = fileEntries
	cfg.External = v.GetStringSlice("external")
	if v.IsSet("treeshake") {
		cfg.TreeShake = v.GetBool("treeshake")
	}
	cfg.Out = v.GetString("out")
	cfg.PreserveModules = v.GetBool("preserveModules")
	cfg.InlineDynamic = v.GetBool("inlineDynamicImports")
	cfg.ManualChunks = v.GetStringMapStringSlice("manualChunks")
	cfg.WatchPatterns = v.GetStringSlice("watch.patterns")
	cfg.WatchIgnore = v.GetStringSlice("watch.ignore")
	if ms := v.GetInt("watch.debounceMs"); ms > 0 {
		cfg.WatchDebounce = time.Duration(ms) * time.Millisecond
	}
	preserve := v.GetString("preserveEntrySignatures")

	if fv.set["entry"] {
		flagEntries, err := parseEntryFlag(fv.entries)
		if err != nil {
			return cfg, err
		}
		cfg.Entries = flagEntries
	}
	if fv.set["external"] {
		cfg.External = splitList(fv.external)
	}
	if fv.set["treeshake"] {
		cfg.TreeShake = fv.treeShake
	}
	if fv.set["out"] {
		cfg.Out = fv.out
	}
	if fv.set["preserve-modules"] {
		cfg.PreserveModules = fv.preserveModules
	}
	if fv.set["inline-dynamic-imports"] {
		cfg.InlineDynamic = fv.inlineDynamic
	}
	if fv.set["preserve-entry-signatures"] || preserve == "" {
		preserve = fv.preserveSig
	}

	cfg.Preserve, err = parsePreserve(preserve)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parseConfigEntries accepts the file forms: a plain specifier string, or a
// table with path, name and implicitlyLoadedAfter keys.
func parseConfigEntries(raw any) ([]graph.EntryPoint, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("config entries must be a list, got %T", raw)
	}
	var out []graph.EntryPoint
	for _, item := range list {
		switch val := item.(type) {
		case string:
			out = append(out, graph.EntryPoint{Specifier: val})
		case map[string]any:
			ep, err := parseEntryTable(val)
			if err != nil {
				return nil, err
			}
			out = append(out, ep)
		default:
			return nil, fmt.Errorf("config entry must be a string or a table, got %T", item)
		}
	}
	return out, nil
}

func parseEntryTable(val map[string]any) (graph.EntryPoint, error) {
	var ep graph.EntryPoint
	for key, inner := range val {
		switch strings.ToLower(key) {
		case "path", "specifier":
			ep.Specifier, _ = inner.(string)
		case "name":
			ep.Name, _ = inner.(string)
		case "implicitlyloadedafter":
			switch dep := inner.(type) {
			case string:
				ep.ImplicitlyLoadedAfter = []string{dep}
			case []any:
				for _, d := range dep {
					if s, ok := d.(string); ok {
						ep.ImplicitlyLoadedAfter = append(ep.ImplicitlyLoadedAfter, s)
					}
				}
			}
		}
	}
	if ep.Specifier == "" {
		return ep, fmt.Errorf("config entry table needs a path")
	}
	return ep, nil
}

// parseEntryFlag parses the -entry form: comma-separated items, each a path
// or name=path.
func parseEntryFlag(value string) ([]graph.EntryPoint, error) {
	var out []graph.EntryPoint
	for _, item := range splitList(value) {
		ep := graph.EntryPoint{Specifier: item}
		if idx := strings.Index(item, "="); idx > 0 {
			ep.Name = item[:idx]
			ep.Specifier = item[idx+1:]
		}
		if ep.Specifier == "" {
			return nil, fmt.Errorf("empty entry in %q", value)
		}
		out = append(out, ep)
	}
	return out, nil
}

func parsePreserve(value string) (graph.PreserveSignature, error) {
	switch value {
	case "", "exports-only":
		return graph.PreserveExportsOnly, nil
	case "strict":
		return graph.PreserveStrict, nil
	case "allow-extension":
		return graph.PreserveAllowExtension, nil
	case "false":
		return graph.PreserveFalse, nil
	}
	return 0, fmt.Errorf("invalid preserve-entry-signatures %q (want strict, allow-extension, exports-only or false)", value)
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
