package vm

import (
	"math"
	"os"

	"fortio.org/safecast"

	"flint/internal/bytecode"
	"flint/internal/diag"
)

// mem resolves a tagged address to a writable view of size bytes. The tag
// bits select the region; load/store/builtins are otherwise region-agnostic.
func (vm *VM) mem(addr, size uint64) ([]byte, error) {
	region := vm.stack
	kind := "stack"
	switch {
	case bytecode.IsHeapPtr(addr):
		region, kind = vm.heap, "heap"
	case bytecode.IsRomPtr(addr):
		region, kind = vm.prog.Rom, "rom"
	}
	off, err := safecast.Conv[int](bytecode.Untag(addr))
	if err != nil {
		return nil, vm.faultf(diag.RunBadAddress, "address overflow: %v", err)
	}
	n, err := safecast.Conv[int](size)
	if err != nil {
		return nil, vm.faultf(diag.RunBadAddress, "size overflow: %v", err)
	}
	if off+n > len(region) {
		return nil, vm.faultf(diag.RunBadAddress,
			"invalid %s access at %d (+%d bytes, %s holds %d)", kind, off, n, kind, len(region))
	}
	return region[off : off+n], nil
}

// Stack helpers. Compiled code is trusted to keep pushes and pops balanced;
// widths here mirror the instruction operand widths exactly.

func (vm *VM) pushByte(b byte)   { vm.stack = append(vm.stack, b) }
func (vm *VM) pushU32(v uint32)  { vm.stack = bytecode.AppendU32(vm.stack, v) }
func (vm *VM) pushU64(v uint64)  { vm.stack = bytecode.AppendU64(vm.stack, v) }
func (vm *VM) pushF64(v float64) { vm.stack = bytecode.AppendF64(vm.stack, v) }
func (vm *VM) pushBool(b bool) {
	if b {
		vm.pushByte(1)
	} else {
		vm.pushByte(0)
	}
}

func (vm *VM) popByte() byte {
	b := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return b
}

func (vm *VM) popU32() uint32 {
	v := bytecode.ReadU32(vm.stack, len(vm.stack)-4)
	vm.stack = vm.stack[:len(vm.stack)-4]
	return v
}

func (vm *VM) popU64() uint64 {
	v := bytecode.ReadU64(vm.stack, len(vm.stack)-8)
	vm.stack = vm.stack[:len(vm.stack)-8]
	return v
}

func (vm *VM) popI32() int32   { return int32(vm.popU32()) }
func (vm *VM) popI64() int64   { return int64(vm.popU64()) }
func (vm *VM) popF64() float64 { return math.Float64frombits(vm.popU64()) }
func (vm *VM) popBool() bool   { return vm.popByte() != 0 }

// Host surface for builtin routines.

func (vm *VM) PopU64() uint64     { return vm.popU64() }
func (vm *VM) PushU64(v uint64)   { vm.pushU64(v) }
func (vm *VM) PopF64() float64    { return vm.popF64() }
func (vm *VM) PushF64(v float64)  { vm.pushF64(v) }
func (vm *VM) PushByte(b byte)    { vm.pushByte(b) }
func (vm *VM) Bytes(addr, size uint64) ([]byte, error) {
	return vm.mem(addr, size)
}

func (vm *VM) OpenFile(path, mode string) (uint64, error) {
	var flags int
	switch mode {
	case "r":
		flags = os.O_RDONLY
	case "w":
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case "a":
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case "r+":
		flags = os.O_RDWR
	case "w+":
		flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	default:
		return 0, vm.faultf(diag.RunBadHandle, "unsupported file mode %q", mode)
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return 0, err
	}
	handle := vm.nextFile
	vm.nextFile++
	vm.files[handle] = f
	return handle, nil
}

func (vm *VM) CloseFile(handle uint64) error {
	f, ok := vm.files[handle]
	if !ok {
		return vm.faultf(diag.RunBadHandle, "close of unknown file handle %d", handle)
	}
	delete(vm.files, handle)
	return f.Close()
}

func (vm *VM) PutsFile(handle uint64, data []byte) error {
	f, ok := vm.files[handle]
	if !ok {
		return vm.faultf(diag.RunBadHandle, "write to unknown file handle %d", handle)
	}
	_, err := f.Write(data)
	return err
}
