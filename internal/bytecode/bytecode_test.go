package bytecode

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestAppendAndReadRoundTrip(t *testing.T) {
	var code []byte
	code = AppendOp(code, OpPushI64)
	code = AppendU64(code, 42)
	code = AppendOp(code, OpPushI32)
	code = AppendU32(code, 7)
	code = AppendOp(code, OpPushF64)
	code = AppendF64(code, 2.5)

	if Op(code[0]) != OpPushI64 || ReadU64(code, 1) != 42 {
		t.Errorf("u64 operand mismatch: got %d", ReadU64(code, 1))
	}
	if Op(code[9]) != OpPushI32 || ReadU32(code, 10) != 7 {
		t.Errorf("u32 operand mismatch: got %d", ReadU32(code, 10))
	}
	if Op(code[14]) != OpPushF64 || ReadF64(code, 15) != 2.5 {
		t.Errorf("f64 operand mismatch: got %g", ReadF64(code, 15))
	}
}

func TestPatchU64(t *testing.T) {
	var code []byte
	code = AppendOp(code, OpJump)
	at := len(code)
	code = AppendU64(code, 0) // placeholder
	code = AppendOp(code, OpEndProgram)

	PatchU64(code, at, uint64(len(code)))
	if got := ReadU64(code, at); got != uint64(len(code)) {
		t.Errorf("patched target = %d, want %d", got, len(code))
	}
}

func TestAddressTags(t *testing.T) {
	addr := HeapBit | 96
	if !IsHeapPtr(addr) || IsRomPtr(addr) {
		t.Error("heap tag misclassified")
	}
	if Untag(addr) != 96 {
		t.Errorf("Untag = %d, want 96", Untag(addr))
	}
	rom := RomBit | 12
	if !IsRomPtr(rom) || IsHeapPtr(rom) {
		t.Error("rom tag misclassified")
	}
	if IsHeapPtr(40) || IsRomPtr(40) {
		t.Error("plain stack offset should carry no tag")
	}
}

func TestOperandWidths(t *testing.T) {
	cases := map[Op]int{
		OpEndProgram:   0,
		OpPushChar:     1,
		OpPushBool:     1,
		OpPushI32:      4,
		OpPushI64:      8,
		OpPushString:   16,
		OpAssert:       16,
		OpAssertBounds: 16,
		OpJump:         8,
		OpCall:         8,
		OpReturn:       0,
		OpI64Add:       0,
		OpPrintBool:    0,
		OpArenaAlloc:   8,
		OpArenaDelete:  0,
	}
	for op, want := range cases {
		if got := op.OperandWidth(); got != want {
			t.Errorf("OperandWidth(%s) = %d, want %d", op, got, want)
		}
	}
}

func TestOpNamesCoverEveryOp(t *testing.T) {
	for op := OpEndProgram; op <= OpPrintPtr; op++ {
		if op.String() == "UNKNOWN" {
			t.Errorf("op %d has no name", op)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	var code []byte
	code = AppendOp(code, OpPushI64)
	code = AppendU64(code, 5)
	code = AppendOp(code, OpPrintI64)
	code = AppendOp(code, OpEndProgram)

	p := &Program{
		Rom:  []byte("hello"),
		Code: code,
		Funcs: []Function{
			{Name: "<top level>", ID: 0, Entry: 0, End: uint64(len(code))},
		},
	}

	path := filepath.Join(t.TempDir(), "out.flc")
	if err := p.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got.Code, p.Code) || !bytes.Equal(got.Rom, p.Rom) {
		t.Error("code or rom changed across save/load")
	}
	if len(got.Funcs) != 1 || got.Funcs[0].Name != "<top level>" {
		t.Errorf("functions changed across save/load: %+v", got.Funcs)
	}
}

func TestLoadRejectsWrongSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stale.flc")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	stale := Program{Schema: programSchemaVersion + 1, Code: []byte{byte(OpEndProgram)}}
	if err := msgpack.NewEncoder(f).Encode(&stale); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := Load(path); err == nil {
		t.Error("a stale schema version should be rejected")
	}
}

func TestDisassembleListsFunctionsAndOperands(t *testing.T) {
	var code []byte
	code = AppendOp(code, OpPushI64)
	code = AppendU64(code, 42)
	entry := uint64(len(code))
	code = AppendOp(code, OpReturn)
	code = AppendOp(code, OpEndProgram)

	p := &Program{
		Rom:  []byte("boom"),
		Code: code,
		Funcs: []Function{
			{Name: "<top level>", ID: 0, Entry: 0, End: entry},
			{Name: "f(i64)", ID: 1, Entry: entry, End: entry + 1},
		},
	}

	var buf bytes.Buffer
	if err := Disassemble(&buf, p, DisasmOptions{ShowRom: true}); err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"rom:", "code:", "PUSH_I64", "42", "f(i64) [id=1]:", "RETURN", "END_PROGRAM"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestDisassembleRejectsTruncatedCode(t *testing.T) {
	p := &Program{Code: []byte{byte(OpPushI64), 0x01}} // needs 8 operand bytes
	if err := Disassemble(&bytes.Buffer{}, p, DisasmOptions{}); err == nil {
		t.Error("truncated instruction should be an error")
	}
}
