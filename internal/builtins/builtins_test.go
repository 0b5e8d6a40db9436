package builtins

import (
	"fmt"
	"math"
	"testing"

	"flint/internal/types"
)

// fakeHost implements Host over plain slices; addresses index memory
// directly.
type fakeHost struct {
	stack  []uint64
	memory []byte
	files  map[uint64][]byte
	next   uint64
	bytes  []byte
}

func newFakeHost() *fakeHost {
	return &fakeHost{files: map[uint64][]byte{}, next: 1}
}

func (h *fakeHost) PopU64() uint64 {
	v := h.stack[len(h.stack)-1]
	h.stack = h.stack[:len(h.stack)-1]
	return v
}
func (h *fakeHost) PushU64(v uint64)  { h.stack = append(h.stack, v) }
func (h *fakeHost) PopF64() float64   { return math.Float64frombits(h.PopU64()) }
func (h *fakeHost) PushF64(v float64) { h.PushU64(math.Float64bits(v)) }
func (h *fakeHost) PushByte(b byte)   { h.bytes = append(h.bytes, b) }

func (h *fakeHost) Bytes(addr, size uint64) ([]byte, error) {
	if addr+size > uint64(len(h.memory)) {
		return nil, fmt.Errorf("address %d out of range", addr)
	}
	return h.memory[addr : addr+size], nil
}

func (h *fakeHost) OpenFile(path, mode string) (uint64, error) {
	id := h.next
	h.next++
	h.files[id] = nil
	return id, nil
}

func (h *fakeHost) CloseFile(handle uint64) error {
	if _, ok := h.files[handle]; !ok {
		return fmt.Errorf("bad handle %d", handle)
	}
	delete(h.files, handle)
	return nil
}

func (h *fakeHost) PutsFile(handle uint64, data []byte) error {
	if _, ok := h.files[handle]; !ok {
		return fmt.Errorf("bad handle %d", handle)
	}
	h.files[handle] = append(h.files[handle], data...)
	return nil
}

func TestLookupIgnoresConstQualifiers(t *testing.T) {
	// The registry declares sqrt(f64) and fopen(char const[] const, ...);
	// callers may hold differently const-qualified but same-shaped types.
	id, b, ok := Lookup("sqrt", []*types.Type{types.F64().AddConst()})
	if !ok || b.Name != "sqrt" {
		t.Fatal("sqrt(f64 const) should resolve")
	}
	got, ok := ByID(id)
	if !ok || got.Name != "sqrt" {
		t.Errorf("ByID(%d) = %v, want sqrt", id, got.Name)
	}

	plainSpan := types.SpanOf(types.Char())
	if _, _, ok := Lookup("fopen", []*types.Type{plainSpan, plainSpan}); !ok {
		t.Error("fopen(char[], char[]) should resolve")
	}
	if _, _, ok := Lookup("fopen", []*types.Type{plainSpan}); ok {
		t.Error("wrong arity should not resolve")
	}
	if _, _, ok := Lookup("missing", nil); ok {
		t.Error("unknown name should not resolve")
	}
}

func TestIDsAreStableRegistryOrder(t *testing.T) {
	for i, b := range All() {
		id, got, ok := Lookup(b.Name, b.Params)
		if !ok || id != uint64(i) || got.Name != b.Name {
			t.Errorf("Lookup(%s) = id %d, want %d", b.Name, id, i)
		}
	}
}

func TestSqrt(t *testing.T) {
	h := newFakeHost()
	h.PushF64(9)
	if err := runSqrt(h); err != nil {
		t.Fatal(err)
	}
	if got := h.PopF64(); got != 3 {
		t.Errorf("sqrt(9) = %g, want 3", got)
	}
}

func TestFileBuiltinsRoundTrip(t *testing.T) {
	h := newFakeHost()
	h.memory = []byte("out.txtwhello")

	// fopen("out.txt", "w")
	h.PushU64(0) // path ptr
	h.PushU64(7) // path len
	h.PushU64(7) // mode ptr
	h.PushU64(1) // mode len
	if err := runFopen(h); err != nil {
		t.Fatal(err)
	}
	handle := h.PopU64()
	if handle == 0 {
		t.Fatal("fopen returned a zero handle")
	}

	// fputs(handle, "hello")
	h.PushU64(handle)
	h.PushU64(8) // data ptr
	h.PushU64(5) // data len
	if err := runFputs(h); err != nil {
		t.Fatal(err)
	}
	if got := string(h.files[handle]); got != "hello" {
		t.Errorf("written data = %q, want %q", got, "hello")
	}

	h.PushU64(handle)
	if err := runFclose(h); err != nil {
		t.Fatal(err)
	}
	if len(h.bytes) != 2 || h.bytes[0] != 0 || h.bytes[1] != 0 {
		t.Errorf("fputs and fclose should each return one null byte, got %v", h.bytes)
	}
}
