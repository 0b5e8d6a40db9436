package bytecode

import (
	"encoding/binary"
	"math"
)

// All multi-byte operands and in-memory values are little-endian. This fixed
// layout is the wire contract between the compiler and the VM.

// Address region tags. The top bits of an 8-byte address select which memory
// region it names; untagged addresses are stack offsets.
const (
	HeapBit = uint64(1) << 63
	RomBit  = uint64(1) << 62
	TagMask = HeapBit | RomBit
)

func IsHeapPtr(addr uint64) bool { return addr&HeapBit != 0 }
func IsRomPtr(addr uint64) bool  { return addr&RomBit != 0 }

// Untag strips the region bits, leaving the in-region offset.
func Untag(addr uint64) uint64 { return addr &^ TagMask }

// Append helpers used by the compiler's emit path.

func AppendOp(code []byte, op Op) []byte {
	return append(code, byte(op))
}

func AppendU64(code []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(code, v)
}

func AppendU32(code []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(code, v)
}

func AppendByte(code []byte, v byte) []byte {
	return append(code, v)
}

func AppendF64(code []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(code, math.Float64bits(v))
}

// PatchU64 rewrites an already-emitted 8-byte operand; this is how forward
// jump targets get filled in.
func PatchU64(code []byte, at int, v uint64) {
	binary.LittleEndian.PutUint64(code[at:at+8], v)
}

// Read helpers used by the VM decode path and the disassembler.

func ReadU64(code []byte, at int) uint64 {
	return binary.LittleEndian.Uint64(code[at : at+8])
}

func ReadU32(code []byte, at int) uint32 {
	return binary.LittleEndian.Uint32(code[at : at+4])
}

func ReadF64(code []byte, at int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(code[at : at+8]))
}
