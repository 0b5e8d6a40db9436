// Package builtins is the registry of native functions callable from
// compiled code. The compiler resolves a builtin by name and parameter types
// to a stable id; the VM dispatches that id back to the Go routine.
package builtins

import (
	"flint/internal/types"
)

// Host is the slice of VM state a native routine may touch. Spans passed to
// builtins are resolved through it so routines never see tagged addresses.
type Host interface {
	PopU64() uint64
	PushU64(v uint64)
	PopF64() float64
	PushF64(v float64)
	PushByte(b byte)

	// Bytes resolves a (possibly tagged) address to a view of size bytes.
	Bytes(addr, size uint64) ([]byte, error)

	OpenFile(path, mode string) (uint64, error)
	CloseFile(handle uint64) error
	PutsFile(handle uint64, data []byte) error
}

// Routine is the native implementation of one builtin.
type Routine func(h Host) error

type Builtin struct {
	Name   string
	Params []*types.Type
	Ret    *types.Type
	Run    Routine
}

var registry = makeRegistry()

// All returns every builtin in id order.
func All() []Builtin {
	return registry
}

// ByID returns the builtin with the given id.
func ByID(id uint64) (Builtin, bool) {
	if id >= uint64(len(registry)) {
		return Builtin{}, false
	}
	return registry[id], true
}

// Lookup finds a builtin by name and argument types. Matching ignores const
// qualifiers at every level.
func Lookup(name string, args []*types.Type) (uint64, Builtin, bool) {
	for id, b := range registry {
		if b.Name != name || len(b.Params) != len(args) {
			continue
		}
		ok := true
		for i, p := range b.Params {
			if !types.EqualModConstDeep(p, args[i]) {
				ok = false
				break
			}
		}
		if ok {
			return uint64(id), b, true
		}
	}
	return 0, Builtin{}, false
}

func makeRegistry() []Builtin {
	charSpan := types.SpanOf(types.Char().AddConst()).AddConst()

	return []Builtin{
		{
			Name:   "sqrt",
			Params: []*types.Type{types.F64()},
			Ret:    types.F64(),
			Run:    runSqrt,
		},
		{
			Name:   "fopen",
			Params: []*types.Type{charSpan, charSpan},
			Ret:    types.U64(),
			Run:    runFopen,
		},
		{
			Name:   "fclose",
			Params: []*types.Type{types.U64()},
			Ret:    types.Null(),
			Run:    runFclose,
		},
		{
			Name:   "fputs",
			Params: []*types.Type{types.U64(), charSpan},
			Ret:    types.Null(),
			Run:    runFputs,
		},
	}
}
