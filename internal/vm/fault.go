package vm

import (
	"fmt"

	"flint/internal/diag"
)

// Fault is a terminal runtime error. The VM never recovers from one; the CLI
// renders it and exits nonzero.
type Fault struct {
	PC   int
	Code diag.Code
	Msg  string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s (pc=%d)", f.Code, f.Msg, f.PC)
}

func (vm *VM) faultf(code diag.Code, format string, args ...any) *Fault {
	return &Fault{PC: vm.op, Code: code, Msg: fmt.Sprintf(format, args...)}
}
