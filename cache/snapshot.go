package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/wippyai/esm-bundler/ast"
)

// DefaultExpiry is the number of consecutive builds a plugin-cache entry
// survives without being read before the sweep drops it.
const DefaultExpiry = 10

// ModuleRecord preserves one module's analysis facts between builds. The
// content hash decides whether the record is still valid for a given source.
type ModuleRecord struct {
	ID          string
	ContentHash string
	Facts       *ast.ModuleFacts
}

// Entry is one plugin-cache value. Uses counts the builds since the entry
// was last read; zero means touched this build.
type Entry struct {
	Uses  int
	Value any
}

// Snapshot is the carry-over state between builds: module analysis facts
// plus the per-plugin key/value groups that survived the sweep.
type Snapshot struct {
	Modules []ModuleRecord
	Plugins map[string]map[string]Entry
}

// HashContent returns the hex digest used to validate cached module records
// against current source content.
func HashContent(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
