package ast

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"flint/internal/source"
)

func sp(start, end uint32) source.Span {
	return source.Span{Start: start, End: end}
}

func saveLoad(t *testing.T, name string, tree *Tree) *Tree {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := SaveTree(path, tree); err != nil {
		t.Fatalf("SaveTree: %v", err)
	}
	got, err := LoadTree(path)
	if err != nil {
		t.Fatalf("LoadTree: %v", err)
	}
	return got
}

func TestTreeRoundTrip(t *testing.T) {
	root := &Block{Pos: sp(0, 200), Stmts: []Stmt{
		&Struct{
			Pos:            sp(0, 40),
			Name:           "box",
			TemplateParams: []string{"T"},
			Fields:         []Param{{Name: "value", Type: &Name{Pos: sp(10, 11), Name: "T"}}},
			Funcs: []*Function{{
				Pos:    sp(15, 40),
				Name: "get",
				Ret:   &Name{Pos: sp(20, 21), Name: "T"},
				Body: &Block{Pos: sp(22, 40), Stmts: []Stmt{
					&Return{Pos: sp(23, 39), Value: &Deref{
						Pos: sp(30, 38),
						Expr: &FieldAccess{
							Pos:   sp(30, 36),
							Expr:  &Name{Pos: sp(30, 31), Name: "self"},
							Field: "value",
						},
					}},
				}},
			}},
		},
		&Decl{
			Pos:  sp(41, 60),
			Name: "xs",
			Value: &ArrayLit{Pos: sp(47, 60), Elems: []Expr{
				&LiteralI64{Pos: sp(48, 49), Value: 1},
				&LiteralI64{Pos: sp(51, 52), Value: 2},
			}},
		},
		&ArenaDecl{Pos: sp(61, 70), Name: "a"},
		&For{
			Pos:  sp(71, 120),
			Name: "x",
			Iter: &Name{Pos: sp(80, 82), Name: "xs"},
			Body: &Block{Pos: sp(83, 120), Stmts: []Stmt{
				&If{
					Pos:  sp(84, 110),
					Cond: &Binary{Pos: sp(87, 93), Op: BinGt, LHS: &Name{Pos: sp(87, 88), Name: "x"}, RHS: &LiteralI64{Pos: sp(91, 92), Value: 1}},
					Then: &Block{Pos: sp(94, 100), Stmts: []Stmt{&Break{Pos: sp(95, 100)}}},
				},
				&Print{Pos: sp(111, 119), Format: "{}\n", Args: []Expr{&Name{Pos: sp(115, 116), Name: "x"}}},
			}},
		},
		&Assert{Pos: sp(121, 140), Cond: &LiteralBool{Pos: sp(128, 132), Value: true}},
		&ExprStmt{Pos: sp(141, 180), Expr: &Call{
			Pos:    sp(141, 179),
			Callee: &Name{Pos: sp(141, 145), Name: "sqrt"},
			Args:   []Expr{&LiteralF64{Pos: sp(146, 149), Value: 2.0}},
		}},
	}}

	tree := &Tree{Root: root}
	if got := saveLoad(t, "main.flt", tree); !reflect.DeepEqual(got, tree) {
		t.Errorf("tree changed across save/load:\n got %#v\nwant %#v", got, tree)
	}
}

func TestTreeRoundTripOptionalChildren(t *testing.T) {
	// nil type annotations, else branches, slice bounds and return values
	// must survive as nil, not as zero-valued nodes.
	tree := &Tree{Root: &Block{Pos: sp(0, 50), Stmts: []Stmt{
		&Decl{Pos: sp(0, 10), Name: "s", Value: &Slice{
			Pos:  sp(5, 10),
			Expr: &Name{Pos: sp(5, 7), Name: "xs"},
		}},
		&Return{Pos: sp(11, 17)},
	}}}

	if got := saveLoad(t, "opt.flt", tree); !reflect.DeepEqual(got, tree) {
		t.Errorf("tree changed across save/load:\n got %#v\nwant %#v", got, tree)
	}
}

func TestTreeCarriesSource(t *testing.T) {
	tree := &Tree{
		SourcePath: "main.fl",
		Source:     []byte("assert false;\n"),
		Root:       &Block{Pos: sp(0, 14), Stmts: []Stmt{&Assert{Pos: sp(0, 12), Cond: &LiteralBool{Pos: sp(7, 12)}}}},
	}
	got := saveLoad(t, "src.flt", tree)
	if got.SourcePath != tree.SourcePath {
		t.Errorf("SourcePath = %q, want %q", got.SourcePath, tree.SourcePath)
	}
	if !reflect.DeepEqual(got.Source, tree.Source) {
		t.Errorf("Source = %q, want %q", got.Source, tree.Source)
	}
}

func TestLoadTreeRejectsWrongSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stale.flt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := msgpack.NewEncoder(f)
	if err := enc.EncodeUint16(treeSchemaVersion + 1); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := LoadTree(path); err == nil {
		t.Error("a stale schema version should be rejected")
	}
}
