package resolve

import "strings"

// builtinModules lists the Node.js core modules by their top-level names.
// Private modules and subpath exports are covered by the prefix handling in
// IsBuiltin, not listed here.
var builtinModules = map[string]bool{
	"assert":              true,
	"async_hooks":         true,
	"buffer":              true,
	"child_process":       true,
	"cluster":             true,
	"console":             true,
	"constants":           true,
	"crypto":              true,
	"dgram":               true,
	"diagnostics_channel": true,
	"dns":                 true,
	"domain":              true,
	"events":              true,
	"fs":                  true,
	"http":                true,
	"http2":               true,
	"https":               true,
	"inspector":           true,
	"module":              true,
	"net":                 true,
	"os":                  true,
	"path":                true,
	"perf_hooks":          true,
	"process":             true,
	"punycode":            true,
	"querystring":         true,
	"readline":            true,
	"repl":                true,
	"stream":              true,
	"string_decoder":      true,
	"sys":                 true,
	"timers":              true,
	"tls":                 true,
	"trace_events":        true,
	"tty":                 true,
	"url":                 true,
	"util":                true,
	"v8":                  true,
	"vm":                  true,
	"wasi":                true,
	"worker_threads":      true,
	"zlib":                true,
}

// IsBuiltin reports whether the specifier names a Node.js core module,
// accepting the node: scheme and subpaths like fs/promises.
func IsBuiltin(specifier string) bool {
	specifier = strings.TrimPrefix(specifier, "node:")
	if i := strings.IndexByte(specifier, '/'); i >= 0 {
		specifier = specifier[:i]
	}
	return builtinModules[specifier]
}
