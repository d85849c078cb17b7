// Package compiler lowers symbolic circuit pipelines into executable
// plans: it orders the pipeline DAG, materializes parameter expressions
// through a backend factory, and records the bookkeeping that routes
// values between compiled layers at evaluation time.
package compiler

import (
	"errors"
	"fmt"
)

// Compilation error codes.
const (
	// ErrUnsupportedProvenance flags a layer derived by an operator the
	// compiler has no parameter-sharing policy for.
	ErrUnsupportedProvenance = "UNSUPPORTED_PROVENANCE"

	// ErrUnknownParameter flags a symbolic parameter node outside the
	// compiler's vocabulary.
	ErrUnknownParameter = "UNKNOWN_PARAMETER"

	// ErrMissingFactory flags a compilation attempted without a backend
	// factory.
	ErrMissingFactory = "MISSING_FACTORY"

	// ErrBackend wraps a failure reported by the backend factory.
	ErrBackend = "BACKEND"
)

// CompileError reports a failure lowering a symbolic circuit.
type CompileError struct {
	Code    string
	Message string
	Layer   string
	err     error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Layer != "" {
		return fmt.Sprintf("[%s] layer %s: %s", e.Code, e.Layer, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped backend error, if any.
func (e *CompileError) Unwrap() error { return e.err }

// IsCompileError reports whether err is (or wraps) a CompileError with
// the given code.
func IsCompileError(err error, code string) bool {
	var ce *CompileError
	return errors.As(err, &ce) && ce.Code == code
}
