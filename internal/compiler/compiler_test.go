package compiler_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"flint/internal/ast"
	"flint/internal/compiler"
	"flint/internal/diag"
	"flint/internal/source"
	"flint/internal/vm"
)

// Tree-building shorthand. Spans are zero except where a test checks the
// line reported in a message.

func i64lit(v int64) ast.Expr   { return &ast.LiteralI64{Value: v} }
func u64lit(v uint64) ast.Expr  { return &ast.LiteralU64{Value: v} }
func boollit(v bool) ast.Expr   { return &ast.LiteralBool{Value: v} }
func name(s string) ast.Expr    { return &ast.Name{Name: s} }
func deref(e ast.Expr) ast.Expr { return &ast.Deref{Expr: e} }
func addr(e ast.Expr) ast.Expr  { return &ast.AddrOf{Expr: e} }

func bin(op ast.BinaryOp, l, r ast.Expr) ast.Expr {
	return &ast.Binary{Op: op, LHS: l, RHS: r}
}

func call(callee ast.Expr, args ...ast.Expr) ast.Expr {
	return &ast.Call{Callee: callee, Args: args}
}

func field(e ast.Expr, f string) ast.Expr {
	return &ast.FieldAccess{Expr: e, Field: f}
}

func index(e, i ast.Expr) ast.Expr {
	return &ast.Subscript{Expr: e, Index: i}
}

func let(n string, v ast.Expr) ast.Stmt {
	return &ast.Decl{Name: n, Value: v}
}

func letTyped(n string, t, v ast.Expr) ast.Stmt {
	return &ast.Decl{Name: n, Type: t, Value: v}
}

func set(target, v ast.Expr) ast.Stmt {
	return &ast.Assign{Target: target, Value: v}
}

func ret(v ast.Expr) ast.Stmt { return &ast.Return{Value: v} }

func block(stmts ...ast.Stmt) ast.Stmt { return &ast.Block{Stmts: stmts} }

func prints(format string, args ...ast.Expr) ast.Stmt {
	return &ast.Print{Format: format, Args: args}
}

func fn(fname string, params []ast.Param, retT ast.Expr, body ...ast.Stmt) *ast.Function {
	return &ast.Function{Name: fname, Params: params, Ret: retT, Body: block(body...)}
}

func param(n string, t ast.Expr) ast.Param { return ast.Param{Name: n, Type: t} }

func run(t *testing.T, root ast.Stmt, opts compiler.Options) (string, error) {
	t.Helper()
	prog, err := compiler.Compile(root, opts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var out bytes.Buffer
	err = vm.Run(prog, vm.Options{Stdout: &out})
	return out.String(), err
}

func runOK(t *testing.T, root ast.Stmt) string {
	t.Helper()
	out, err := run(t, root, compiler.Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return out
}

func TestFunctionCall(t *testing.T) {
	root := block(
		fn("add",
			[]ast.Param{param("x", name("i64")), param("y", name("i64"))},
			name("i64"),
			ret(bin(ast.BinAdd, name("x"), name("y"))),
		),
		prints("{}", call(name("add"), i64lit(2), i64lit(3))),
	)
	if got := runOK(t, root); got != "5" {
		t.Errorf("got %q, want %q", got, "5")
	}
}

func TestRecursion(t *testing.T) {
	root := block(
		fn("fib",
			[]ast.Param{param("n", name("i64"))},
			name("i64"),
			&ast.If{
				Cond: bin(ast.BinLt, name("n"), i64lit(2)),
				Then: block(ret(name("n"))),
			},
			ret(bin(ast.BinAdd,
				call(name("fib"), bin(ast.BinSub, name("n"), i64lit(1))),
				call(name("fib"), bin(ast.BinSub, name("n"), i64lit(2))),
			)),
		),
		prints("{}", call(name("fib"), i64lit(10))),
	)
	if got := runOK(t, root); got != "55" {
		t.Errorf("got %q, want %q", got, "55")
	}
}

func TestWhileLoop(t *testing.T) {
	root := block(
		letTyped("i", name("i64"), i64lit(0)),
		&ast.While{
			Cond: bin(ast.BinLt, name("i"), i64lit(5)),
			Body: block(set(name("i"), bin(ast.BinAdd, name("i"), i64lit(1)))),
		},
		prints("{}", name("i")),
	)
	if got := runOK(t, root); got != "5" {
		t.Errorf("got %q, want %q", got, "5")
	}
}

func TestLoopBreakContinue(t *testing.T) {
	// Counts upward, skipping even numbers and stopping at 7.
	root := block(
		letTyped("i", name("i64"), i64lit(0)),
		&ast.Loop{Body: block(
			set(name("i"), bin(ast.BinAdd, name("i"), i64lit(1))),
			&ast.If{
				Cond: bin(ast.BinEq, name("i"), i64lit(7)),
				Then: block(&ast.Break{}),
			},
			&ast.If{
				Cond: bin(ast.BinEq, bin(ast.BinMod, name("i"), i64lit(2)), i64lit(0)),
				Then: block(&ast.Continue{}),
			},
			prints("{}", name("i")),
		)},
	)
	if got := runOK(t, root); got != "135" {
		t.Errorf("got %q, want %q", got, "135")
	}
}

func TestForLoopOverArray(t *testing.T) {
	root := block(
		&ast.For{
			Name: "x",
			Iter: &ast.ArrayLit{Elems: []ast.Expr{i64lit(1), i64lit(2), i64lit(3)}},
			Body: block(prints("{}", deref(name("x")))),
		},
	)
	if got := runOK(t, root); got != "123" {
		t.Errorf("got %q, want %q", got, "123")
	}
}

func TestForLoopMutatesThroughPointer(t *testing.T) {
	root := block(
		let("xs", &ast.ArrayLit{Elems: []ast.Expr{i64lit(1), i64lit(2), i64lit(3)}}),
		&ast.For{
			Name: "x",
			Iter: name("xs"),
			Body: block(set(deref(name("x")), bin(ast.BinMul, deref(name("x")), i64lit(10)))),
		},
		prints("{} {} {}",
			index(name("xs"), u64lit(0)),
			index(name("xs"), u64lit(1)),
			index(name("xs"), u64lit(2))),
	)
	if got := runOK(t, root); got != "10 20 30" {
		t.Errorf("got %q, want %q", got, "10 20 30")
	}
}

func TestStructFieldsAndMemberFunction(t *testing.T) {
	root := block(
		&ast.Struct{
			Name:   "Pair",
			Fields: []ast.Param{param("a", name("i64")), param("b", name("i64"))},
			Funcs: []*ast.Function{
				fn("sum",
					[]ast.Param{param("self", addr(name("Pair")))},
					name("i64"),
					ret(bin(ast.BinAdd, field(name("self"), "a"), field(name("self"), "b"))),
				),
			},
		},
		let("p", call(name("Pair"), i64lit(3), i64lit(4))),
		prints("{} {} {}", field(name("p"), "b"), call(field(name("p"), "sum")), &ast.SizeOf{Expr: name("Pair")}),
	)
	if got := runOK(t, root); got != "4 7 16" {
		t.Errorf("got %q, want %q", got, "4 7 16")
	}
}

func TestGenericFunctionInstantiations(t *testing.T) {
	root := block(
		&ast.Function{
			Name:           "identity",
			TemplateParams: []string{"T"},
			Params:         []ast.Param{param("x", name("T"))},
			Ret:            name("T"),
			Body:           block(ret(name("x"))),
		},
		prints("{} {}",
			call(&ast.Name{Name: "identity", TemplateArgs: []ast.Expr{name("i64")}}, i64lit(7)),
			call(&ast.Name{Name: "identity", TemplateArgs: []ast.Expr{name("bool")}}, boollit(true)),
		),
	)
	if got := runOK(t, root); got != "7 true" {
		t.Errorf("got %q, want %q", got, "7 true")
	}
}

func TestGenericStruct(t *testing.T) {
	boxOf := func(arg string) ast.Expr {
		return &ast.Name{Name: "Box", TemplateArgs: []ast.Expr{name(arg)}}
	}
	root := block(
		&ast.Struct{
			Name:           "Box",
			TemplateParams: []string{"T"},
			Fields:         []ast.Param{param("value", name("T"))},
		},
		let("a", call(boxOf("i64"), i64lit(42))),
		let("b", call(boxOf("bool"), boollit(false))),
		prints("{} {}", field(name("a"), "value"), field(name("b"), "value")),
	)
	if got := runOK(t, root); got != "42 false" {
		t.Errorf("got %q, want %q", got, "42 false")
	}
}

func TestGenericStructMemberFunction(t *testing.T) {
	boxOf := func(arg string) ast.Expr {
		return &ast.Name{Name: "Box", TemplateArgs: []ast.Expr{name(arg)}}
	}
	// Member functions of a generic struct name their receiver with the
	// template parameter; they compile at the first call site.
	root := block(
		&ast.Struct{
			Name:           "Box",
			TemplateParams: []string{"T"},
			Fields:         []ast.Param{param("value", name("T"))},
			Funcs: []*ast.Function{
				fn("get",
					[]ast.Param{param("self", addr(boxOf("T")))},
					name("T"),
					ret(field(name("self"), "value")),
				),
			},
		},
		let("a", call(boxOf("i64"), i64lit(42))),
		prints("{}", call(field(name("a"), "get"))),
	)
	if got := runOK(t, root); got != "42" {
		t.Errorf("got %q, want %q", got, "42")
	}
}

func TestDropRunsAtScopeExit(t *testing.T) {
	resource := &ast.Struct{
		Name:   "Res",
		Fields: []ast.Param{param("n", name("i64"))},
		Funcs: []*ast.Function{
			fn("drop",
				[]ast.Param{param("self", addr(name("Res")))},
				nil,
				prints("d{}", field(name("self"), "n")),
			),
		},
	}
	root := block(
		resource,
		block(
			let("a", call(name("Res"), i64lit(1))),
			let("b", call(name("Res"), i64lit(2))),
			prints("live "),
		),
		prints(" done"),
	)
	// Reverse declaration order at the closing brace.
	if got := runOK(t, root); got != "live d2d1 done" {
		t.Errorf("got %q, want %q", got, "live d2d1 done")
	}
}

func TestDropRunsOncePerLoopIteration(t *testing.T) {
	resource := &ast.Struct{
		Name:   "Res",
		Fields: []ast.Param{param("n", name("i64"))},
		Funcs: []*ast.Function{
			fn("drop",
				[]ast.Param{param("self", addr(name("Res")))},
				nil,
				prints("d"),
			),
		},
	}
	root := block(
		resource,
		letTyped("i", name("i64"), i64lit(0)),
		&ast.While{
			Cond: bin(ast.BinLt, name("i"), i64lit(3)),
			Body: block(
				let("r", call(name("Res"), name("i"))),
				set(name("i"), bin(ast.BinAdd, name("i"), i64lit(1))),
			),
		},
	)
	if got := runOK(t, root); got != "ddd" {
		t.Errorf("got %q, want %q", got, "ddd")
	}
}

func TestDropRunsOnBreak(t *testing.T) {
	resource := &ast.Struct{
		Name:   "Res",
		Fields: []ast.Param{param("n", name("i64"))},
		Funcs: []*ast.Function{
			fn("drop",
				[]ast.Param{param("self", addr(name("Res")))},
				nil,
				prints("d"),
			),
		},
	}
	root := block(
		resource,
		&ast.Loop{Body: block(
			let("r", call(name("Res"), i64lit(0))),
			&ast.Break{},
		)},
		prints("after"),
	)
	if got := runOK(t, root); got != "dafter" {
		t.Errorf("got %q, want %q", got, "dafter")
	}
}

func TestCopyMember(t *testing.T) {
	root := block(
		&ast.Struct{
			Name:   "Res",
			Fields: []ast.Param{param("n", name("i64"))},
			Funcs: []*ast.Function{
				fn("drop",
					[]ast.Param{param("self", addr(name("Res")))},
					nil,
				),
				fn("copy",
					[]ast.Param{param("self", addr(name("Res")))},
					name("Res"),
					prints("c"),
					ret(call(name("Res"), field(name("self"), "n"))),
				),
			},
		},
		let("a", call(name("Res"), i64lit(9))),
		let("b", name("a")),
		prints("{}", field(name("b"), "n")),
	)
	if got := runOK(t, root); got != "c9" {
		t.Errorf("got %q, want %q", got, "c9")
	}
}

// assignableRes builds a struct whose drop traces "d<n>" and whose assign
// member traces "a" before taking over the source's value.
func assignableRes() ast.Stmt {
	return &ast.Struct{
		Name:   "Res",
		Fields: []ast.Param{param("n", name("i64"))},
		Funcs: []*ast.Function{
			fn("drop",
				[]ast.Param{param("self", addr(name("Res")))},
				nil,
				prints("d{}", field(name("self"), "n")),
			),
			fn("assign",
				[]ast.Param{param("self", addr(name("Res"))), param("other", addr(name("Res")))},
				nil,
				prints("a"),
				set(field(name("self"), "n"), field(name("other"), "n")),
			),
		},
	}
}

func TestAssignMemberRunsForLvalueSource(t *testing.T) {
	root := block(
		assignableRes(),
		block(
			let("a", call(name("Res"), i64lit(1))),
			let("b", call(name("Res"), i64lit(2))),
			set(name("a"), name("b")),
		),
	)
	// assign traces "a"; scope exit drops b then a, both holding 2.
	if got := runOK(t, root); got != "ad2d2" {
		t.Errorf("got %q, want %q", got, "ad2d2")
	}
}

func TestAssignMemberRunsForRvalueSource(t *testing.T) {
	root := block(
		assignableRes(),
		block(
			let("r", call(name("Res"), i64lit(1))),
			set(name("r"), call(name("Res"), i64lit(2))),
			prints("x"),
		),
	)
	// The freshly constructed source is parked in a temporary so assign
	// sees two addresses: assign traces "a", the temporary drops right
	// after ("d2"), and r drops at the closing brace with its new value.
	if got := runOK(t, root); got != "ad2xd2" {
		t.Errorf("got %q, want %q", got, "ad2xd2")
	}
}

func TestBuiltinOverloadPicksByArgumentTypes(t *testing.T) {
	root := block(
		prints("{}", call(name("sqrt"), &ast.LiteralF64{Value: 2.25})),
	)
	if got := runOK(t, root); got != "1.5" {
		t.Errorf("got %q, want %q", got, "1.5")
	}
}

func TestBuiltinRejectsWrongArgumentTypes(t *testing.T) {
	root := block(&ast.ExprStmt{Expr: call(name("sqrt"), i64lit(4))})
	_, err := compiler.Compile(root, compiler.Options{})
	var ce *diag.CompileError
	if !errors.As(err, &ce) || ce.Diag.Code != diag.ComUnresolvedName {
		t.Fatalf("got %v, want an unresolved-name error", err)
	}
	if !strings.Contains(ce.Diag.Message, "sqrt(i64)") {
		t.Errorf("message %q should name the rejected signature", ce.Diag.Message)
	}
}

func TestSpansAndSubscripts(t *testing.T) {
	root := block(
		let("xs", &ast.ArrayLit{Elems: []ast.Expr{i64lit(1), i64lit(2), i64lit(3), i64lit(4)}}),
		let("s", &ast.Slice{Expr: name("xs")}),
		let("mid", &ast.Slice{Expr: name("xs"), Lo: u64lit(1), Hi: u64lit(3)}),
		prints("{} {} {} {}",
			call(field(name("s"), "size")),
			index(name("s"), u64lit(3)),
			call(field(name("mid"), "size")),
			index(name("mid"), u64lit(0))),
	)
	if got := runOK(t, root); got != "4 4 2 2" {
		t.Errorf("got %q, want %q", got, "4 4 2 2")
	}
}

func TestBoundsCheckFault(t *testing.T) {
	root := block(
		let("xs", &ast.ArrayLit{Elems: []ast.Expr{i64lit(1), i64lit(2), i64lit(3)}}),
		&ast.ExprStmt{Expr: index(name("xs"), u64lit(5))},
	)
	_, err := run(t, root, compiler.Options{BoundsChecks: true})
	if err == nil || !strings.Contains(err.Error(), "bounds check failed") {
		t.Errorf("got %v, want bounds check fault", err)
	}
	var fault *vm.Fault
	if !errors.As(err, &fault) || fault.Code != diag.RunOutOfBounds {
		t.Errorf("got %v, want fault code %v", err, diag.RunOutOfBounds)
	}
}

func TestAssertMessageCarriesLine(t *testing.T) {
	root := block(&ast.Assert{
		Pos:  source.Span{Start: 12},
		Cond: boollit(false),
	})
	_, err := run(t, root, compiler.Options{})
	if err == nil || !strings.Contains(err.Error(), "assert failed at line 12") {
		t.Errorf("got %v, want assert fault with line", err)
	}
}

func TestAssertLineResolvedThroughFileSet(t *testing.T) {
	fs := source.NewFileSet()
	fs.Add("main.fl", []byte("let x = 1;\nassert false;\n"))
	root := block(&ast.Assert{
		Pos:  source.Span{Start: 11, End: 23},
		Cond: boollit(false),
	})
	_, err := run(t, root, compiler.Options{Files: fs})
	if err == nil || !strings.Contains(err.Error(), "assert failed at line 2") {
		t.Errorf("got %v, want the resolved source line", err)
	}
}

func TestArenaAllocAndSize(t *testing.T) {
	root := block(
		&ast.ArenaDecl{Name: "a"},
		let("p", &ast.New{Arena: name("a"), Value: i64lit(42)}),
		let("s", &ast.New{Arena: name("a"), Value: i64lit(7), Count: u64lit(3)}),
		prints("{} {} {} {}",
			deref(name("p")),
			call(field(name("a"), "size")),
			call(field(name("s"), "size")),
			index(name("s"), u64lit(2))),
	)
	if got := runOK(t, root); got != "42 32 3 7" {
		t.Errorf("got %q, want %q", got, "42 32 3 7")
	}
}

func TestPointersAndAddressOf(t *testing.T) {
	root := block(
		letTyped("x", name("i64"), i64lit(10)),
		let("p", addr(name("x"))),
		set(deref(name("p")), i64lit(20)),
		prints("{} {}", name("x"), bin(ast.BinEq, name("p"), &ast.LiteralNullPtr{})),
	)
	if got := runOK(t, root); got != "20 false" {
		t.Errorf("got %q, want %q", got, "20 false")
	}
}

func TestPrintFormats(t *testing.T) {
	root := block(
		prints(`ok {} {} {}\n`, boollit(true), &ast.LiteralChar{Value: 'x'}, &ast.LiteralF64{Value: 1.5}),
		prints("{}", &ast.LiteralString{Value: "hi"}),
	)
	if got := runOK(t, root); got != "ok true x 1.5\nhi" {
		t.Errorf("got %q", got)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		root ast.Stmt
		code diag.Code
	}{
		{
			"redeclaration",
			block(let("x", i64lit(1)), let("x", i64lit(2))),
			diag.ComRedeclaration,
		},
		{
			"unresolved name",
			block(prints("{}", name("nope"))),
			diag.ComUnresolvedName,
		},
		{
			"type mismatch",
			block(letTyped("x", name("i64"), boollit(true))),
			diag.ComTypeMismatch,
		},
		{
			"missing return",
			block(fn("f", nil, name("i64"), prints("no"))),
			diag.ComMissingReturn,
		},
		{
			"break outside loop",
			block(&ast.Break{}),
			diag.ComBreakOutsideLoop,
		},
		{
			"assign to const",
			block(
				letTyped("x", &ast.ConstQual{Expr: name("i64")}, i64lit(1)),
				set(name("x"), i64lit(2)),
			),
			diag.ComConstViolation,
		},
		{
			"non-bool condition",
			block(&ast.If{Cond: i64lit(1), Then: block()}),
			diag.ComBadCondition,
		},
		{
			"arena copied",
			block(&ast.ArenaDecl{Name: "a"}, let("b", name("a"))),
			diag.ComArenaMisuse,
		},
		{
			"template arity",
			block(
				&ast.Function{
					Name:           "identity",
					TemplateParams: []string{"T"},
					Params:         []ast.Param{param("x", name("T"))},
					Ret:            name("T"),
					Body:           block(ret(name("x"))),
				},
				&ast.ExprStmt{Expr: call(
					&ast.Name{Name: "identity", TemplateArgs: []ast.Expr{name("i64"), name("bool")}},
					i64lit(1))},
			),
			diag.ComArityMismatch,
		},
		{
			"uncopyable struct",
			block(
				&ast.Struct{
					Name:   "Res",
					Fields: []ast.Param{param("n", name("i64"))},
					Funcs: []*ast.Function{
						fn("drop", []ast.Param{param("self", addr(name("Res")))}, nil),
					},
				},
				let("a", call(name("Res"), i64lit(1))),
				let("b", name("a")),
			),
			diag.ComNotCopyable,
		},
		{
			"drop-only struct assigned over",
			block(
				&ast.Struct{
					Name:   "Res",
					Fields: []ast.Param{param("n", name("i64"))},
					Funcs: []*ast.Function{
						fn("drop", []ast.Param{param("self", addr(name("Res")))}, nil),
					},
				},
				let("a", call(name("Res"), i64lit(1))),
				set(name("a"), call(name("Res"), i64lit(2))),
			),
			diag.ComNotCopyable,
		},
		{
			"mismatched array literal",
			block(let("xs", &ast.ArrayLit{Elems: []ast.Expr{i64lit(1), boollit(true)}})),
			diag.ComTypeMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.Compile(tt.root, compiler.Options{})
			if err == nil {
				t.Fatal("expected a compile error")
			}
			ce, ok := err.(*diag.CompileError)
			if !ok {
				t.Fatalf("got %T, want *diag.CompileError", err)
			}
			if ce.Diag.Code != tt.code {
				t.Errorf("got code %v (%v), want %v", ce.Diag.Code, ce, tt.code)
			}
		})
	}
}

func TestNestedScopesReuseStack(t *testing.T) {
	// Two sibling blocks: the second's variable lands on the bytes the
	// first one freed, and the outer variable stays intact throughout.
	root := block(
		letTyped("outer", name("i64"), i64lit(1)),
		block(let("a", i64lit(10)), prints("{}", name("a"))),
		block(let("b", i64lit(20)), prints("{}", name("b"))),
		prints("{}", name("outer")),
	)
	if got := runOK(t, root); got != "10201" {
		t.Errorf("got %q, want %q", got, "10201")
	}
}

func TestFunctionPointerValue(t *testing.T) {
	root := block(
		fn("double",
			[]ast.Param{param("x", name("i64"))},
			name("i64"),
			ret(bin(ast.BinMul, name("x"), i64lit(2))),
		),
		letTyped("f",
			&ast.FuncPtrType{Params: []ast.Expr{name("i64")}, Ret: name("i64")},
			name("double")),
		prints("{}", call(name("f"), i64lit(21))),
	)
	if got := runOK(t, root); got != "42" {
		t.Errorf("got %q, want %q", got, "42")
	}
}
