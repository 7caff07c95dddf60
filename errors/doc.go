// Package errors provides structured error types for the wasm-host library.
//
// Errors are categorized by Phase (where in the module lifecycle the error
// occurred) and Kind (error category). Two *Error values compare equal under
// errors.Is when Phase and Kind agree, so callers match on category:
//
//	if errors.Is(err, errors.ErrExportNotFound) {
//	    // export absent or not callable
//	}
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindTypeMismatch).
//		Function("f").
//		Detail("expected 1 argument, got 2").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Load(path, cause)
//	err := errors.TypeMismatch("f", "argument 0: expected i32, got f64")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
