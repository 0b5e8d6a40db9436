package diag

import (
	"strings"
	"testing"

	"flint/internal/source"
)

func TestBagCapAndErrors(t *testing.T) {
	b := NewBag(2)
	if !b.Add(Diagnostic{Severity: SevWarning, Code: ComInfo}) {
		t.Fatal("first Add should succeed")
	}
	if b.HasErrors() {
		t.Error("warning-only bag should not report errors")
	}
	if !b.Add(Diagnostic{Severity: SevError, Code: ComTypeMismatch}) {
		t.Fatal("second Add should succeed")
	}
	if b.Add(Diagnostic{Severity: SevError, Code: ComTypeMismatch}) {
		t.Error("Add past the cap should fail")
	}
	if !b.HasErrors() {
		t.Error("bag with an error should report it")
	}
	if b.Len() != 2 {
		t.Errorf("Len = %d, want 2", b.Len())
	}
}

func TestBagSortOrder(t *testing.T) {
	b := NewBag(10)
	b.Add(Diagnostic{Severity: SevError, Code: ComTypeMismatch, Primary: source.Span{Start: 20, End: 21}})
	b.Add(Diagnostic{Severity: SevError, Code: ComUnresolvedName, Primary: source.Span{Start: 5, End: 6}})
	b.Add(Diagnostic{Severity: SevWarning, Code: ComInfo, Primary: source.Span{Start: 5, End: 6}})
	b.Sort()

	items := b.Items()
	if items[0].Primary.Start != 5 || items[0].Severity != SevError {
		t.Errorf("first item should be the error at offset 5, got %+v", items[0])
	}
	if items[2].Primary.Start != 20 {
		t.Errorf("last item should be at offset 20, got %+v", items[2])
	}
}

func TestRenderCaretLine(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.Add("main.fl", []byte("let zz = oops;\n"))
	d := Diagnostic{
		Severity: SevError,
		Code:     ComUnresolvedName,
		Message:  "could not find variable 'oops'",
		Primary:  source.Span{File: id, Start: 9, End: 13},
	}
	var sb strings.Builder
	Render(&sb, d, fs, RenderOpts{})
	out := sb.String()

	if !strings.Contains(out, "main.fl:1:10: ERROR COM1001: could not find variable 'oops'") {
		t.Errorf("header line missing, got:\n%s", out)
	}
	if !strings.Contains(out, "^~~~") {
		t.Errorf("caret underline missing, got:\n%s", out)
	}
}
