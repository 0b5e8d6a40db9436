package source

import "testing"

func TestResolveLineCol(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("main.fl", []byte("let x = 1;\nlet y = 2;\nprint(x);\n"))

	cases := []struct {
		name   string
		offset uint32
		want   LineCol
	}{
		{"start of file", 0, LineCol{Line: 1, Col: 1}},
		{"mid first line", 4, LineCol{Line: 1, Col: 5}},
		{"start of second line", 11, LineCol{Line: 2, Col: 1}},
		{"third line", 22, LineCol{Line: 3, Col: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, _ := fs.Resolve(Span{File: id, Start: tc.offset, End: tc.offset})
			if start != tc.want {
				t.Errorf("Resolve(%d) = %+v, want %+v", tc.offset, start, tc.want)
			}
		})
	}
}

func TestGetLine(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("main.fl", []byte("first\nsecond\nthird"))
	f := fs.Get(id)

	if got := f.GetLine(1); got != "first" {
		t.Errorf("GetLine(1) = %q", got)
	}
	if got := f.GetLine(2); got != "second" {
		t.Errorf("GetLine(2) = %q", got)
	}
	if got := f.GetLine(3); got != "third" {
		t.Errorf("GetLine(3) = %q", got)
	}
	if got := f.GetLine(4); got != "" {
		t.Errorf("GetLine(4) = %q, want empty", got)
	}
	if got := f.GetLine(0); got != "" {
		t.Errorf("GetLine(0) = %q, want empty", got)
	}
}

func TestUnknownFileIDIsSafe(t *testing.T) {
	fs := NewFileSet()
	fs.Add("main.fl", []byte("only\n"))

	if got := fs.Get(7); got.Path != "<unknown>" {
		t.Errorf("Get(7) = %+v, want the placeholder file", got)
	}
	start, end := fs.Resolve(Span{File: 7, Start: 1, End: 2})
	if start != (LineCol{}) || end != (LineCol{}) {
		t.Errorf("Resolve out of range = %+v, %+v, want zero positions", start, end)
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 10}
	b := Span{File: 1, Start: 2, End: 6}
	got := a.Cover(b)
	if got.Start != 2 || got.End != 10 {
		t.Errorf("Cover = %+v", got)
	}
	other := Span{File: 2, Start: 0, End: 100}
	if got := a.Cover(other); got != a {
		t.Errorf("Cover across files should be identity, got %+v", got)
	}
}
