package errors

import (
	"fmt"
	"strings"
)

// Warning is a recoverable diagnostic. The build continues after emitting
// one; tooling filters on Code.
type Warning struct {
	Code     Code
	Message  string
	ID       string   // module the warning is about, if any
	Importer string   // module whose import triggered it, if any
	Exporter string   // module expected to provide a binding, if any
	IDs      []string // ordered module ids (cycle paths)
	Names    []string // binding names involved
	Alias    string   // manual-chunk alias, if any
	Pos      int      // byte offset in the importer's source, -1 when unknown
}

// Handler receives every warning emitted during a build. Implementations must
// not retain the slice fields past the call if they mutate them.
type Handler func(Warning)

// CircularDependency creates the warning for one detected import cycle. The
// id list is the traversal path with the starting module repeated at the end.
func CircularDependency(cyclePath []string) Warning {
	return Warning{
		Code:    CodeCircularDependency,
		IDs:     cyclePath,
		Message: "Circular dependency: " + strings.Join(cyclePath, " -> "),
		Pos:     -1,
	}
}

// NonExistentExport creates the warning for an imported name missing from the
// exporter's export surface. The binding resolves to undefined.
func NonExistentExport(name, importer, exporter string, pos int) Warning {
	return Warning{
		Code:     CodeNonExistentExport,
		Names:    []string{name},
		Importer: importer,
		Exporter: exporter,
		Message:  fmt.Sprintf("%q is not exported by %s, imported by %s", name, exporter, importer),
		Pos:      pos,
	}
}

// UnusedExternalImport creates the warning for external-module exports that
// no included statement ever referenced.
func UnusedExternalImport(externalID string, names []string, importers []string) Warning {
	detail := "are imported from external module"
	if len(names) == 1 {
		detail = "is imported from external module"
	}
	return Warning{
		Code:    CodeUnusedExternalImport,
		ID:      externalID,
		IDs:     importers,
		Names:   names,
		Message: fmt.Sprintf("%s %s %q but never used", quoteList(names), detail, externalID),
		Pos:     -1,
	}
}

// ChunkLoadFailed creates the warning for a manual-chunk specifier that could
// not be resolved or loaded. The alias still exists but without that module.
func ChunkLoadFailed(alias, specifier string, cause error) Warning {
	w := Warning{
		Code:    CodeChunkLoadFailed,
		Alias:   alias,
		ID:      specifier,
		Message: fmt.Sprintf("could not load %q for manual chunk %q", specifier, alias),
		Pos:     -1,
	}
	if cause != nil {
		w.Message += ": " + cause.Error()
	}
	return w
}

// EmptyChunk creates the warning for a manual chunk whose modules all ended
// up excluded from the build.
func EmptyChunk(alias string) Warning {
	return Warning{
		Code:    CodeEmptyChunk,
		Alias:   alias,
		Message: fmt.Sprintf("manual chunk %q contains no included modules and was dropped", alias),
		Pos:     -1,
	}
}

// ImpliedExternal creates the warning for a bare specifier treated as
// external because it could not be resolved and was not configured external.
func ImpliedExternal(specifier, importer string) Warning {
	return Warning{
		Code:     CodeImpliedExternal,
		ID:       specifier,
		Importer: importer,
		Message:  fmt.Sprintf("%q is imported by %s but could not be resolved, treating it as an external dependency", specifier, importer),
		Pos:      -1,
	}
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	if len(quoted) > 1 {
		return strings.Join(quoted[:len(quoted)-1], ", ") + " and " + quoted[len(quoted)-1]
	}
	return strings.Join(quoted, ", ")
}
