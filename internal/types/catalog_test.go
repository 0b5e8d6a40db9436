package types

import "testing"

func mustSize(t *testing.T, c *Catalog, ty *Type) int {
	t.Helper()
	n, err := c.SizeOf(ty)
	if err != nil {
		t.Fatalf("SizeOf(%s): %v", ty, err)
	}
	return n
}

func TestFundamentalSizes(t *testing.T) {
	c := NewCatalog()
	cases := []struct {
		ty   *Type
		want int
	}{
		{Null(), 1},
		{Bool(), 1},
		{Char(), 1},
		{I32(), 4},
		{I64(), 8},
		{U64(), 8},
		{F64(), 8},
		{NullPtr(), 8},
		{PointerTo(I64()), 8},
		{SpanOf(Char()), 16},
		{ArrayOf(I32(), 5), 20},
		{Arena(), 8},
		{FuncPtr([]*Type{I64()}, I64()), 8},
	}
	for _, tc := range cases {
		if got := mustSize(t, c, tc.ty); got != tc.want {
			t.Errorf("SizeOf(%s) = %d, want %d", tc.ty, got, tc.want)
		}
	}
}

func TestStructSizeIsSumOfFields(t *testing.T) {
	c := NewCatalog()
	if !c.Register("vec3", []Field{
		{Name: "x", Type: F64()},
		{Name: "y", Type: F64()},
		{Name: "z", Type: F64()},
	}) {
		t.Fatal("Register failed")
	}
	if c.Register("vec3", nil) {
		t.Error("re-registering the same name should fail")
	}

	vec := Struct("vec3")
	if got := mustSize(t, c, vec); got != 24 {
		t.Errorf("SizeOf(vec3) = %d, want 24", got)
	}

	// Nested struct: sum recurses.
	c.Register("line", []Field{
		{Name: "a", Type: vec},
		{Name: "b", Type: vec},
		{Name: "id", Type: I32()},
	})
	if got := mustSize(t, c, Struct("line")); got != 52 {
		t.Errorf("SizeOf(line) = %d, want 52", got)
	}
}

func TestEmptyStructHasSizeOne(t *testing.T) {
	c := NewCatalog()
	c.Register("unit", nil)
	if got := mustSize(t, c, Struct("unit")); got != 1 {
		t.Errorf("SizeOf(unit) = %d, want 1", got)
	}
}

func TestFieldOffsets(t *testing.T) {
	c := NewCatalog()
	c.Register("header", []Field{
		{Name: "tag", Type: Char()},
		{Name: "len", Type: U64()},
		{Name: "flag", Type: Bool()},
	})
	h := Struct("header")

	wantOffsets := map[string]int{"tag": 0, "len": 1, "flag": 9}
	for name, want := range wantOffsets {
		off, _, err := c.FieldOffset(h, name)
		if err != nil {
			t.Fatalf("FieldOffset(%s): %v", name, err)
		}
		if off != want {
			t.Errorf("offset of %s = %d, want %d", name, off, want)
		}
	}
	if _, _, err := c.FieldOffset(h, "missing"); err == nil {
		t.Error("FieldOffset of a missing field should fail")
	}
}

func TestArrayElementOffsets(t *testing.T) {
	c := NewCatalog()
	elem := mustSize(t, c, I64())
	for i := 0; i < 10; i++ {
		// offset(elem i) == i * size_of(T) is layout law for arrays; the
		// compiler relies on it when emitting subscript address math.
		if want, got := i*8, i*elem; got != want {
			t.Fatalf("element %d offset = %d, want %d", i, got, want)
		}
	}
}

func TestStructuralEquality(t *testing.T) {
	a := SpanOf(PointerTo(Struct("node")))
	b := SpanOf(PointerTo(Struct("node")))
	if !Equal(a, b) {
		t.Error("identical shapes should be equal")
	}
	if Equal(a, SpanOf(Struct("node"))) {
		t.Error("different shapes should not be equal")
	}
	if Equal(I64(), I64().AddConst()) {
		t.Error("const qualifier is part of identity")
	}
	if !EqualModConst(I64(), I64().AddConst()) {
		t.Error("EqualModConst ignores top-level const")
	}
}

func TestContains(t *testing.T) {
	c := NewCatalog()
	if c.Contains(Struct("ghost")) {
		t.Error("unregistered struct should not be contained")
	}
	c.Register("ghost", nil)
	if !c.Contains(Struct("ghost")) {
		t.Error("registered struct should be contained")
	}
	if !c.Contains(ArrayOf(PointerTo(Struct("ghost")), 4)) {
		t.Error("compound over registered struct should be contained")
	}
	if c.Contains(SpanOf(Struct("phantom"))) {
		t.Error("compound over unknown struct should not be contained")
	}
}
