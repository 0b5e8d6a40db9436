// Package vm executes compiled programs: a fetch-decode-execute loop over a
// byte-addressed stack, a heap of arena regions, and the program's read-only
// segment. Execution is single-threaded and faults are terminal.
package vm

import (
	"fmt"
	"io"
	"os"

	"flint/internal/builtins"
	"flint/internal/bytecode"
	"flint/internal/diag"
)

// Options configures execution.
type Options struct {
	Stdout io.Writer // defaults to os.Stdout
	Trace  io.Writer // when set, every executed instruction is listed
}

// VM holds all execution state. One VM runs one program once.
type VM struct {
	prog *bytecode.Program

	pc int // offset of the next instruction
	op int // offset of the instruction being executed, for faults
	fb uint64

	stack []byte
	heap  []byte
	alloc allocator

	arenas    map[uint64]*arenaState
	nextArena uint64

	files    map[uint64]*os.File
	nextFile uint64

	out   io.Writer
	trace io.Writer
}

func New(prog *bytecode.Program, opts Options) *VM {
	vm := &VM{
		prog:      prog,
		arenas:    make(map[uint64]*arenaState),
		nextArena: 1,
		files:     make(map[uint64]*os.File),
		nextFile:  1,
		out:       opts.Stdout,
		trace:     opts.Trace,
	}
	if vm.out == nil {
		vm.out = os.Stdout
	}
	vm.alloc.mem = &vm.heap
	return vm
}

// Run executes from the top of the code buffer until the end-program
// instruction. The returned error is always a *Fault.
func Run(prog *bytecode.Program, opts Options) error {
	return New(prog, opts).Run()
}

func (vm *VM) Run() error {
	code := vm.prog.Code
	for vm.pc < len(code) {
		vm.op = vm.pc
		op := bytecode.Op(code[vm.pc])
		width := op.OperandWidth()
		arg := vm.pc + 1
		if arg+width > len(code) {
			return vm.faultf(diag.RunBadOpcode, "truncated instruction %s", op)
		}
		vm.pc = arg + width
		if vm.trace != nil {
			fmt.Fprintf(vm.trace, "%6d  %s\n", vm.op, op)
		}

		switch op {
		case bytecode.OpEndProgram:
			return nil

		case bytecode.OpPushChar, bytecode.OpPushBool:
			vm.pushByte(code[arg])
		case bytecode.OpPushI32:
			vm.stack = append(vm.stack, code[arg:arg+4]...)
		case bytecode.OpPushI64, bytecode.OpPushU64, bytecode.OpPushF64:
			vm.stack = append(vm.stack, code[arg:arg+8]...)
		case bytecode.OpPushNull:
			vm.pushByte(0)
		case bytecode.OpPushNullPtr:
			vm.pushU64(0)
		case bytecode.OpPushZeros:
			vm.stack = append(vm.stack, make([]byte, bytecode.ReadU64(code, arg))...)
		case bytecode.OpPushString:
			vm.pushU64(bytecode.RomBit | bytecode.ReadU64(code, arg))
			vm.pushU64(bytecode.ReadU64(code, arg+8))

		case bytecode.OpPushPtrLocal:
			vm.pushU64(vm.fb + bytecode.ReadU64(code, arg))
		case bytecode.OpPushPtrGlobal:
			vm.pushU64(bytecode.ReadU64(code, arg))
		case bytecode.OpPushFuncPtr:
			vm.pushU64(bytecode.ReadU64(code, arg))

		case bytecode.OpLoad:
			size := bytecode.ReadU64(code, arg)
			src, err := vm.mem(vm.popU64(), size)
			if err != nil {
				return err
			}
			vm.stack = append(vm.stack, src...)
		case bytecode.OpStore:
			size := bytecode.ReadU64(code, arg)
			dst, err := vm.mem(vm.popU64(), size)
			if err != nil {
				return err
			}
			top := uint64(len(vm.stack)) - size
			copy(dst, vm.stack[top:])
			vm.stack = vm.stack[:top]
		case bytecode.OpPop:
			vm.stack = vm.stack[:uint64(len(vm.stack))-bytecode.ReadU64(code, arg)]

		case bytecode.OpJump:
			vm.pc = int(bytecode.ReadU64(code, arg))
		case bytecode.OpJumpIfFalse:
			if !vm.popBool() {
				vm.pc = int(bytecode.ReadU64(code, arg))
			}

		case bytecode.OpCall:
			if err := vm.call(bytecode.ReadU64(code, arg)); err != nil {
				return err
			}
		case bytecode.OpReturn:
			vm.ret()
		case bytecode.OpBuiltinCall:
			if err := vm.builtinCall(bytecode.ReadU64(code, arg)); err != nil {
				return err
			}

		case bytecode.OpAssert, bytecode.OpAssertBounds:
			if !vm.popBool() {
				msg, err := vm.mem(bytecode.RomBit|bytecode.ReadU64(code, arg), bytecode.ReadU64(code, arg+8))
				if err != nil {
					return err
				}
				faultCode := diag.RunAssertFailed
				if op == bytecode.OpAssertBounds {
					faultCode = diag.RunOutOfBounds
				}
				return vm.faultf(faultCode, "%s", msg)
			}

		case bytecode.OpArenaNew:
			id := vm.nextArena
			vm.nextArena++
			vm.arenas[id] = &arenaState{}
			vm.pushU64(id)
		case bytecode.OpArenaDelete:
			a, err := vm.popArena()
			if err != nil {
				return err
			}
			delete(vm.arenas, a.id)
			if err := a.state.release(&vm.alloc); err != nil {
				return vm.faultf(diag.RunArenaMisuse, "%v", err)
			}
		case bytecode.OpArenaAlloc:
			if err := vm.arenaAlloc(bytecode.ReadU64(code, arg)); err != nil {
				return err
			}
		case bytecode.OpArenaAllocArray:
			if err := vm.arenaAllocArray(bytecode.ReadU64(code, arg)); err != nil {
				return err
			}
		case bytecode.OpArenaSize:
			a, err := vm.popArena()
			if err != nil {
				return err
			}
			vm.pushU64(a.state.bytesUsed())
		case bytecode.OpArenaCapacity:
			a, err := vm.popArena()
			if err != nil {
				return err
			}
			vm.pushU64(a.state.capacity())

		case bytecode.OpCharEq:
			vm.pushBool(vm.popByte() == vm.popByte())
		case bytecode.OpCharNe:
			vm.pushBool(vm.popByte() != vm.popByte())

		case bytecode.OpBoolAnd:
			b, a := vm.popBool(), vm.popBool()
			vm.pushBool(a && b)
		case bytecode.OpBoolOr:
			b, a := vm.popBool(), vm.popBool()
			vm.pushBool(a || b)
		case bytecode.OpBoolEq:
			vm.pushBool(vm.popBool() == vm.popBool())
		case bytecode.OpBoolNe:
			vm.pushBool(vm.popBool() != vm.popBool())
		case bytecode.OpBoolNot:
			vm.pushBool(!vm.popBool())

		case bytecode.OpI32Neg:
			vm.pushU32(uint32(-vm.popI32()))
		case bytecode.OpI64Neg:
			vm.pushU64(uint64(-vm.popI64()))
		case bytecode.OpF64Neg:
			vm.pushF64(-vm.popF64())

		case bytecode.OpPrintNull:
			vm.popByte()
			fmt.Fprint(vm.out, "null")
		case bytecode.OpPrintBool:
			fmt.Fprintf(vm.out, "%t", vm.popBool())
		case bytecode.OpPrintChar:
			fmt.Fprintf(vm.out, "%c", vm.popByte())
		case bytecode.OpPrintI32:
			fmt.Fprintf(vm.out, "%d", vm.popI32())
		case bytecode.OpPrintI64:
			fmt.Fprintf(vm.out, "%d", vm.popI64())
		case bytecode.OpPrintU64:
			fmt.Fprintf(vm.out, "%d", vm.popU64())
		case bytecode.OpPrintF64:
			fmt.Fprintf(vm.out, "%v", vm.popF64())
		case bytecode.OpPrintCharSpan:
			size := vm.popU64()
			data, err := vm.mem(vm.popU64(), size)
			if err != nil {
				return err
			}
			vm.out.Write(data)
		case bytecode.OpPrintPtr:
			fmt.Fprintf(vm.out, "0x%x", vm.popU64())

		default:
			if err := vm.numericBinop(op); err != nil {
				return err
			}
		}
	}
	return nil
}

// call pops the function id and builds the frame: the caller has already
// pushed the header [saved frame-base][saved pc][return size] followed by
// the arguments; argsSize covers both.
func (vm *VM) call(argsSize uint64) error {
	id := vm.popU64()
	fn, ok := vm.prog.FunctionByID(id)
	if !ok {
		return vm.faultf(diag.RunBadAddress, "call of unknown function id %d", id)
	}
	if argsSize > uint64(len(vm.stack)) {
		return vm.faultf(diag.RunBadAddress, "call frame larger than stack")
	}
	base := uint64(len(vm.stack)) - argsSize
	bytecode.PatchU64(vm.stack, int(base), vm.fb)
	bytecode.PatchU64(vm.stack, int(base)+8, uint64(vm.pc))
	vm.fb = base
	vm.pc = int(fn.Entry)
	return nil
}

// ret reads the header at the frame base, copies the return value over it
// and restores the caller's frame base and program counter.
func (vm *VM) ret() {
	prevFB := bytecode.ReadU64(vm.stack, int(vm.fb))
	prevPC := bytecode.ReadU64(vm.stack, int(vm.fb)+8)
	retSize := bytecode.ReadU64(vm.stack, int(vm.fb)+16)

	copy(vm.stack[vm.fb:vm.fb+retSize], vm.stack[uint64(len(vm.stack))-retSize:])
	vm.stack = vm.stack[:vm.fb+retSize]
	vm.fb = prevFB
	vm.pc = int(prevPC)
}

func (vm *VM) builtinCall(id uint64) error {
	b, ok := builtins.ByID(id)
	if !ok {
		return vm.faultf(diag.RunBadBuiltin, "unknown builtin id %d", id)
	}
	if err := b.Run(vm); err != nil {
		if f, ok := err.(*Fault); ok {
			return f
		}
		return vm.faultf(diag.RunBadBuiltin, "%s: %v", b.Name, err)
	}
	return nil
}

type poppedArena struct {
	id    uint64
	state *arenaState
}

func (vm *VM) popArena() (poppedArena, error) {
	id := vm.popU64()
	state, ok := vm.arenas[id]
	if !ok {
		return poppedArena{}, vm.faultf(diag.RunArenaMisuse, "use of unknown or deleted arena %d", id)
	}
	return poppedArena{id: id, state: state}, nil
}

// arenaAlloc moves the already-built value from the stack top into the
// arena: stack [value][arena handle] becomes [heap pointer].
func (vm *VM) arenaAlloc(size uint64) error {
	a, err := vm.popArena()
	if err != nil {
		return err
	}
	ptr := a.state.alloc(&vm.alloc, size)
	top := uint64(len(vm.stack)) - size
	copy(vm.heap[ptr:ptr+size], vm.stack[top:])
	vm.stack = vm.stack[:top]
	vm.pushU64(bytecode.HeapBit | ptr)
	return nil
}

// arenaAllocArray replicates the value count times: stack
// [value][count][arena handle] becomes [heap pointer][count], a span.
func (vm *VM) arenaAllocArray(elemSize uint64) error {
	a, err := vm.popArena()
	if err != nil {
		return err
	}
	count := vm.popU64()
	ptr := a.state.alloc(&vm.alloc, elemSize*count)
	top := uint64(len(vm.stack)) - elemSize
	for i := uint64(0); i < count; i++ {
		copy(vm.heap[ptr+i*elemSize:], vm.stack[top:])
	}
	vm.stack = vm.stack[:top]
	vm.pushU64(bytecode.HeapBit | ptr)
	vm.pushU64(count)
	return nil
}

func (vm *VM) numericBinop(op bytecode.Op) error {
	switch op {
	case bytecode.OpI32Add, bytecode.OpI32Sub, bytecode.OpI32Mul,
		bytecode.OpI32Div, bytecode.OpI32Mod, bytecode.OpI32Eq, bytecode.OpI32Ne,
		bytecode.OpI32Lt, bytecode.OpI32Le, bytecode.OpI32Gt, bytecode.OpI32Ge:
		b, a := vm.popI32(), vm.popI32()
		return vm.i32Binop(op, a, b)
	case bytecode.OpI64Add, bytecode.OpI64Sub, bytecode.OpI64Mul,
		bytecode.OpI64Div, bytecode.OpI64Mod, bytecode.OpI64Eq, bytecode.OpI64Ne,
		bytecode.OpI64Lt, bytecode.OpI64Le, bytecode.OpI64Gt, bytecode.OpI64Ge:
		b, a := vm.popI64(), vm.popI64()
		return vm.i64Binop(op, a, b)
	case bytecode.OpU64Add, bytecode.OpU64Sub, bytecode.OpU64Mul,
		bytecode.OpU64Div, bytecode.OpU64Mod, bytecode.OpU64Eq, bytecode.OpU64Ne,
		bytecode.OpU64Lt, bytecode.OpU64Le, bytecode.OpU64Gt, bytecode.OpU64Ge:
		b, a := vm.popU64(), vm.popU64()
		return vm.u64Binop(op, a, b)
	case bytecode.OpF64Add, bytecode.OpF64Sub, bytecode.OpF64Mul, bytecode.OpF64Div,
		bytecode.OpF64Eq, bytecode.OpF64Ne,
		bytecode.OpF64Lt, bytecode.OpF64Le, bytecode.OpF64Gt, bytecode.OpF64Ge:
		b, a := vm.popF64(), vm.popF64()
		return vm.f64Binop(op, a, b)
	default:
		return vm.faultf(diag.RunBadOpcode, "bad opcode %d", uint8(op))
	}
}

func (vm *VM) i32Binop(op bytecode.Op, a, b int32) error {
	switch op {
	case bytecode.OpI32Add:
		vm.pushU32(uint32(a + b))
	case bytecode.OpI32Sub:
		vm.pushU32(uint32(a - b))
	case bytecode.OpI32Mul:
		vm.pushU32(uint32(a * b))
	case bytecode.OpI32Div:
		if b == 0 {
			return vm.faultf(diag.RunDivideByZero, "i32 division by zero")
		}
		vm.pushU32(uint32(a / b))
	case bytecode.OpI32Mod:
		if b == 0 {
			return vm.faultf(diag.RunDivideByZero, "i32 modulo by zero")
		}
		vm.pushU32(uint32(a % b))
	case bytecode.OpI32Eq:
		vm.pushBool(a == b)
	case bytecode.OpI32Ne:
		vm.pushBool(a != b)
	case bytecode.OpI32Lt:
		vm.pushBool(a < b)
	case bytecode.OpI32Le:
		vm.pushBool(a <= b)
	case bytecode.OpI32Gt:
		vm.pushBool(a > b)
	case bytecode.OpI32Ge:
		vm.pushBool(a >= b)
	}
	return nil
}

func (vm *VM) i64Binop(op bytecode.Op, a, b int64) error {
	switch op {
	case bytecode.OpI64Add:
		vm.pushU64(uint64(a + b))
	case bytecode.OpI64Sub:
		vm.pushU64(uint64(a - b))
	case bytecode.OpI64Mul:
		vm.pushU64(uint64(a * b))
	case bytecode.OpI64Div:
		if b == 0 {
			return vm.faultf(diag.RunDivideByZero, "i64 division by zero")
		}
		vm.pushU64(uint64(a / b))
	case bytecode.OpI64Mod:
		if b == 0 {
			return vm.faultf(diag.RunDivideByZero, "i64 modulo by zero")
		}
		vm.pushU64(uint64(a % b))
	case bytecode.OpI64Eq:
		vm.pushBool(a == b)
	case bytecode.OpI64Ne:
		vm.pushBool(a != b)
	case bytecode.OpI64Lt:
		vm.pushBool(a < b)
	case bytecode.OpI64Le:
		vm.pushBool(a <= b)
	case bytecode.OpI64Gt:
		vm.pushBool(a > b)
	case bytecode.OpI64Ge:
		vm.pushBool(a >= b)
	}
	return nil
}

func (vm *VM) u64Binop(op bytecode.Op, a, b uint64) error {
	switch op {
	case bytecode.OpU64Add:
		vm.pushU64(a + b)
	case bytecode.OpU64Sub:
		vm.pushU64(a - b)
	case bytecode.OpU64Mul:
		vm.pushU64(a * b)
	case bytecode.OpU64Div:
		if b == 0 {
			return vm.faultf(diag.RunDivideByZero, "u64 division by zero")
		}
		vm.pushU64(a / b)
	case bytecode.OpU64Mod:
		if b == 0 {
			return vm.faultf(diag.RunDivideByZero, "u64 modulo by zero")
		}
		vm.pushU64(a % b)
	case bytecode.OpU64Eq:
		vm.pushBool(a == b)
	case bytecode.OpU64Ne:
		vm.pushBool(a != b)
	case bytecode.OpU64Lt:
		vm.pushBool(a < b)
	case bytecode.OpU64Le:
		vm.pushBool(a <= b)
	case bytecode.OpU64Gt:
		vm.pushBool(a > b)
	case bytecode.OpU64Ge:
		vm.pushBool(a >= b)
	}
	return nil
}

func (vm *VM) f64Binop(op bytecode.Op, a, b float64) error {
	switch op {
	case bytecode.OpF64Add:
		vm.pushF64(a + b)
	case bytecode.OpF64Sub:
		vm.pushF64(a - b)
	case bytecode.OpF64Mul:
		vm.pushF64(a * b)
	case bytecode.OpF64Div:
		vm.pushF64(a / b)
	case bytecode.OpF64Eq:
		vm.pushBool(a == b)
	case bytecode.OpF64Ne:
		vm.pushBool(a != b)
	case bytecode.OpF64Lt:
		vm.pushBool(a < b)
	case bytecode.OpF64Le:
		vm.pushBool(a <= b)
	case bytecode.OpF64Gt:
		vm.pushBool(a > b)
	case bytecode.OpF64Ge:
		vm.pushBool(a >= b)
	}
	return nil
}
