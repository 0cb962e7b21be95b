package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which build stage produced the error
type Phase string

const (
	PhaseConfig  Phase = "config"  // option/config validation
	PhaseResolve Phase = "resolve" // specifier resolution
	PhaseLoad    Phase = "load"    // module loading and scanning
	PhaseOrder   Phase = "order"   // execution-order analysis
	PhaseInclude Phase = "include" // inclusion propagation
	PhaseAssign  Phase = "assign"  // chunk assignment
	PhaseQuery   Phase = "query"   // module-info queries
)

// Code is a stable machine-readable identifier shared by errors and warnings
type Code string

const (
	// Fatal error codes
	CodeUnresolvedImport         Code = "UNRESOLVED_IMPORT"
	CodeMissingEntry             Code = "MISSING_ENTRY"
	CodeDuplicateChunkAlias      Code = "DUPLICATE_CHUNK_ALIAS"
	CodeMissingImplicitDependant Code = "MISSING_IMPLICIT_DEPENDANT"
	CodeModuleNotFound           Code = "MODULE_NOT_FOUND"
	CodeInvalidOption            Code = "INVALID_OPTION"
	CodeLoadFailed               Code = "LOAD_FAILED"

	// Warning codes
	CodeCircularDependency   Code = "CIRCULAR_DEPENDENCY"
	CodeNonExistentExport    Code = "NON_EXISTENT_EXPORT"
	CodeUnusedExternalImport Code = "UNUSED_EXTERNAL_IMPORT"
	CodeChunkLoadFailed      Code = "CHUNK_LOAD_FAILED"
	CodeEmptyChunk           Code = "EMPTY_CHUNK"
	CodeImpliedExternal      Code = "IMPLIED_EXTERNAL"
)

// Error is the structured fatal error type used throughout the bundler.
// A build aborts on the first *Error raised by any stage.
type Error struct {
	Cause    error
	Phase    Phase
	Code     Code
	ID       string   // module id the error is about, if any
	Importer string   // module that imported ID, if any
	IDs      []string // related module ids (e.g. both sides of a conflict)
	Detail   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Code))

	if e.ID != "" {
		b.WriteString(": ")
		b.WriteString(e.ID)
	}

	if e.Importer != "" {
		b.WriteString(" (imported by ")
		b.WriteString(e.Importer)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Code == t.Code
	}
	return false
}

// Convenience constructors for the fatal conditions

// UnresolvedImport creates the fatal error for a specifier that could not be
// resolved. importer is empty when an entry specifier itself fails.
func UnresolvedImport(specifier, importer string, cause error) *Error {
	return &Error{
		Phase:    PhaseResolve,
		Code:     CodeUnresolvedImport,
		ID:       specifier,
		Importer: importer,
		Cause:    cause,
	}
}

// MissingEntry creates the fatal error for a build configured with zero
// resolvable entry modules.
func MissingEntry() *Error {
	return &Error{
		Phase:  PhaseConfig,
		Code:   CodeMissingEntry,
		Detail: "at least one entry module must be supplied",
	}
}

// DuplicateChunkAlias creates the fatal error for a module assigned to two
// different manual-chunk aliases.
func DuplicateChunkAlias(id, firstAlias, secondAlias string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Code:   CodeDuplicateChunkAlias,
		ID:     id,
		Detail: fmt.Sprintf("already assigned to chunk %q, cannot also assign to chunk %q", firstAlias, secondAlias),
	}
}

// MissingImplicitDependant creates the fatal error for an
// implicitly-loaded-after dependant that is neither an entry nor included
// after the inclusion fixed point.
func MissingImplicitDependant(dependantID string, implicitIDs []string) *Error {
	return &Error{
		Phase:  PhaseInclude,
		Code:   CodeMissingImplicitDependant,
		ID:     dependantID,
		IDs:    implicitIDs,
		Detail: "module expected to load after its implicit dependencies is neither an entry point nor included in the build",
	}
}

// ModuleNotFound creates the fatal error for a module-info query with an
// unknown id.
func ModuleNotFound(id string) *Error {
	return &Error{
		Phase:  PhaseQuery,
		Code:   CodeModuleNotFound,
		ID:     id,
		Detail: "module is not part of the graph",
	}
}

// InvalidOption creates the fatal error for a rejected option combination.
func InvalidOption(detail string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Code:   CodeInvalidOption,
		Detail: detail,
	}
}

// LoadFailed wraps a source-collaborator failure for a resolved module id.
func LoadFailed(id string, cause error) *Error {
	return &Error{
		Phase: PhaseLoad,
		Code:  CodeLoadFailed,
		ID:    id,
		Cause: cause,
	}
}
