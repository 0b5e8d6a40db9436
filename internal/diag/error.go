package diag

import (
	"fmt"

	"flint/internal/source"
)

// CompileError wraps the first (and by contract only) diagnostic produced by
// a failed compilation. Compilation is fail-fast: the compiler stops at the
// first error and never returns a partial program.
type CompileError struct {
	Diag Diagnostic
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Diag.Severity, e.Diag.Code, e.Diag.Message)
}

// Errorf builds a CompileError with an error-severity diagnostic.
func Errorf(code Code, span source.Span, format string, args ...any) *CompileError {
	return &CompileError{Diag: Diagnostic{
		Severity: SevError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Primary:  span,
	}}
}
