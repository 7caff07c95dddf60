package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the module lifecycle the error occurred
type Phase string

const (
	PhaseLoad    Phase = "load"    // reading module bytes from disk
	PhaseCompile Phase = "compile" // compiling module bytes
	PhaseLink    Phase = "link"    // resolving imports against host modules
	PhaseLookup  Phase = "lookup"  // resolving an export by name
	PhaseCall    Phase = "call"    // invoking an exported function
)

// Kind categorizes the error
type Kind string

const (
	KindUnreadable     Kind = "unreadable"
	KindInvalidModule  Kind = "invalid_module"
	KindMissingImport  Kind = "missing_import"
	KindNotFound       Kind = "not_found"
	KindNotFunction    Kind = "not_function"
	KindTypeMismatch   Kind = "type_mismatch"
	KindTrap           Kind = "trap"
	KindInvalidInput   Kind = "invalid_input"
	KindNotInitialized Kind = "not_initialized"
	KindInstantiation  Kind = "instantiation"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindUnsupported    Kind = "unsupported"
)

// Matcher sentinels for use with the standard errors.Is. Two *Error values
// match when their Phase and Kind agree, so these compare against the
// category only, never the detail. A sentinel with an empty Kind matches
// every error in its phase: ErrExportNotFound covers both an absent name
// and an export that exists but is not callable.
var (
	ErrLoad           = &Error{Phase: PhaseLoad, Kind: KindUnreadable}
	ErrCompile        = &Error{Phase: PhaseCompile, Kind: KindInvalidModule}
	ErrLink           = &Error{Phase: PhaseLink, Kind: KindMissingImport}
	ErrExportNotFound = &Error{Phase: PhaseLookup}
	ErrTypeMismatch   = &Error{Phase: PhaseCall, Kind: KindTypeMismatch}
	ErrTrap           = &Error{Phase: PhaseCall, Kind: KindTrap}
)

// Error is the structured error type used throughout the library
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Function string
	Detail   string
	ExitCode uint32
	Exited   bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Function != "" {
		b.WriteString(" at ")
		b.WriteString(e.Function)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Exited {
		fmt.Fprintf(&b, " (exit code %d)", e.ExitCode)
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

// Is reports whether target matches this error. A target with an empty
// Kind matches on phase alone.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Kind == "" {
			return e.Phase == t.Phase
		}
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Function sets the export name involved
func (b *Builder) Function(name string) *Builder {
	b.err.Function = name
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// ExitCode records a guest exit code
func (b *Builder) ExitCode(code uint32) *Builder {
	b.err.ExitCode = code
	b.err.Exited = true
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Load creates an error for an unreadable module path
func Load(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindUnreadable,
		Detail: fmt.Sprintf("read module %q", path),
		Cause:  cause,
	}
}

// Compile creates an error for module bytes the engine rejected
func Compile(cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindInvalidModule,
		Detail: "compile module",
		Cause:  cause,
	}
}

// Link creates an error for unsatisfied imports
func Link(cause error) *Error {
	return &Error{
		Phase: PhaseLink,
		Kind:  KindMissingImport,
		Cause: cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// ExportNotFound creates an error for a missing export
func ExportNotFound(name string) *Error {
	return &Error{
		Phase:    PhaseLookup,
		Kind:     KindNotFound,
		Function: name,
		Detail:   "no such export",
	}
}

// NotFunction creates an error for an export that exists but is not callable
func NotFunction(name string) *Error {
	return &Error{
		Phase:    PhaseLookup,
		Kind:     KindNotFunction,
		Function: name,
		Detail:   "export is not a function",
	}
}

// TypeMismatch creates an argument signature mismatch error
func TypeMismatch(function, detail string) *Error {
	return &Error{
		Phase:    PhaseCall,
		Kind:     KindTypeMismatch,
		Function: function,
		Detail:   detail,
	}
}

// Trap creates an error for abnormal guest termination
func Trap(function string, cause error) *Error {
	return &Error{
		Phase:    PhaseCall,
		Kind:     KindTrap,
		Function: function,
		Cause:    cause,
	}
}

// Exit creates a trap error for a nonzero guest exit
func Exit(function string, code uint32) *Error {
	return &Error{
		Phase:    PhaseCall,
		Kind:     KindTrap,
		Function: function,
		Detail:   "module exited",
		ExitCode: code,
		Exited:   true,
	}
}

// NotInitialized creates a not-initialized error for missing module/instance
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// MissingImport represents a single unresolved import
type MissingImport struct {
	Module   string // e.g., "wasi_snapshot_preview1"
	Function string // e.g., "fd_write"
}

// MissingImportsError is returned when linking fails because the module
// declares imports no registered host module satisfies
type MissingImportsError struct {
	Imports []MissingImport
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[link] missing_import: no imports specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "missing %d host function(s):\n", len(e.Imports))

	// Group by module for cleaner output
	byModule := make(map[string][]string)
	var order []string
	for _, imp := range e.Imports {
		if _, exists := byModule[imp.Module]; !exists {
			order = append(order, imp.Module)
		}
		byModule[imp.Module] = append(byModule[imp.Module], imp.Function)
	}

	for _, mod := range order {
		b.WriteString("\n  ")
		b.WriteString(mod)
		b.WriteString(":\n")
		for _, fn := range byModule[mod] {
			b.WriteString("    - ")
			b.WriteString(fn)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	if _, ok := target.(*MissingImportsError); ok {
		return true
	}
	if t, ok := target.(*Error); ok {
		return t.Phase == PhaseLink && t.Kind == KindMissingImport
	}
	return false
}
