package compiler

import (
	"strings"

	"flint/internal/ast"
	"flint/internal/bytecode"
	"flint/internal/diag"
	"flint/internal/types"
)

// Hidden compiler state lives under names no source identifier can collide
// with.
const (
	iterName = "#:iter"
	idxName  = "#:idx"
	sizeName = "#:size"
	tmpName  = "#:tmp"
)

func (c *Compiler) stmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Block:
		c.openScope(scopeBlock)
		for _, st := range n.Stmts {
			c.stmt(st)
		}
		c.closeScope()

	case *ast.ExprStmt:
		t := c.exprVal(n.Expr)
		if t.IsTypeValue() {
			return
		}
		if size := c.sizeOf(n.Pos, t); size > 0 {
			c.emitU64(bytecode.OpPop, size)
		}

	case *ast.Decl:
		c.declStmt(n)

	case *ast.ArenaDecl:
		c.emit(bytecode.OpArenaNew)
		c.declareVar(n.Pos, n.Name, types.Arena())

	case *ast.Assign:
		c.assignStmt(n)

	case *ast.If:
		cond := c.exprVal(n.Cond)
		if !types.EqualModConst(cond, types.Bool()) {
			c.errorf(diag.ComBadCondition, n.Pos, "if-stmt invalid condition, got %s", cond)
		}
		otherwise := c.emitJump(bytecode.OpJumpIfFalse)
		c.stmt(n.Then)
		if n.Else == nil {
			c.patchHere(otherwise)
			return
		}
		end := c.emitJump(bytecode.OpJump)
		c.patchHere(otherwise)
		c.stmt(n.Else)
		c.patchHere(end)

	case *ast.Loop:
		c.pushLoop(func() { c.stmt(n.Body) })

	case *ast.While:
		c.pushLoop(func() {
			cond := c.exprVal(n.Cond)
			if !types.EqualModConst(cond, types.Bool()) {
				c.errorf(diag.ComBadCondition, n.Pos, "while-stmt invalid condition, got %s", cond)
			}
			c.emit(bytecode.OpBoolNot)
			keep := c.emitJump(bytecode.OpJumpIfFalse)
			c.pushBreak(n.Pos)
			c.patchHere(keep)
			c.stmt(n.Body)
		})

	case *ast.For:
		c.forStmt(n)

	case *ast.Break:
		c.pushBreak(n.Pos)

	case *ast.Continue:
		c.pushContinue(n.Pos)

	case *ast.Return:
		c.returnStmt(n)

	case *ast.Function:
		owner := c.structCtx().self
		if len(n.TemplateParams) > 0 {
			key := c.fnName(owner, n.Name, nil)
			if _, dup := c.funcTemplates[key]; dup {
				c.errorf(diag.ComDuplicateTemplate, n.Pos, "function template named '%s' already defined", key)
			}
			c.funcTemplates[key] = n
			return
		}
		c.compileFunction(n.Pos, c.fnName(owner, n.Name, nil), n, nil)

	case *ast.Struct:
		c.structStmt(n)

	case *ast.Assert:
		cond := c.exprVal(n.Cond)
		if !types.EqualModConst(cond, types.Bool()) {
			c.errorf(diag.ComBadCondition, n.Pos, "bad assertion expression, got %s", cond)
		}
		at, size := c.assertLine(n.Pos, "assert failed")
		c.emit2U64(bytecode.OpAssert, at, size)

	case *ast.Print:
		c.printStmt(n)

	default:
		c.errorf(diag.UnknownCode, s.Span(), "unsupported statement node %T", s)
	}
}

func (c *Compiler) declStmt(n *ast.Decl) {
	var expected *types.Type
	if n.Type != nil {
		expected = c.resolveType(n.Type)
	} else {
		expected = c.typeOf(n.Value).RemoveConst()
		if expected.IsTypeValue() {
			c.errorf(diag.ComTypeMismatch, n.Pos, "invalid use of type expression")
		}
	}
	if expected.RemoveConst().Is(types.KindArena) {
		c.errorf(diag.ComArenaMisuse, n.Pos, "cannot create copies of arenas")
	}
	c.pushCopyTypechecked(n.Value, expected, n.Pos)
	c.declareVar(n.Pos, n.Name, expected)
}

// assignStmt stores into an existing location. Non-trivial types always
// route through their assign member, which is responsible for releasing the
// destination's old value; an rvalue source is parked in a hidden temporary
// first so assign sees two addresses.
func (c *Compiler) assignStmt(n *ast.Assign) {
	lhs := c.typeOf(n.Target)
	if lhs.Const {
		c.errorf(diag.ComConstViolation, n.Pos, "cannot assign to a const variable")
	}

	if c.trivialCopy(lhs) {
		c.pushCopyTypechecked(n.Value, lhs, n.Pos)
		c.exprPtr(n.Target)
		c.emitU64(bytecode.OpStore, c.sizeOf(n.Pos, lhs))
		return
	}

	if lhs.RemoveConst().Is(types.KindArena) {
		c.errorf(diag.ComArenaMisuse, n.Pos, "arenas can not be copied or assigned")
	}
	rhs := c.typeOf(n.Value)
	if !constConvertible(rhs.RemoveConst(), lhs.RemoveConst()) {
		c.errorf(diag.ComTypeMismatch, n.Pos, "cannot convert '%s' to '%s'", rhs, lhs)
	}

	if addressable(n.Value) {
		c.emitAssignAt(lhs,
			func() { c.exprPtr(n.Target) },
			func() { c.exprPtr(n.Value) },
			n.Pos)
		return
	}

	// The temporary still owns its resources after the assign call; its
	// scope drops it once the assignment is done.
	c.openScope(scopeBlock)
	c.exprVal(n.Value)
	c.declareVar(n.Pos, tmpName, rhs.RemoveConst())
	c.emitAssignAt(lhs,
		func() { c.exprPtr(n.Target) },
		func() { c.pushVarAddr(n.Pos, tmpName) },
		n.Pos)
	c.closeScope()
}

// forStmt desugars iteration into an index loop. An rvalue array is
// materialised once into hidden storage; spans must be lvalues since the
// loop re-reads their data pointer each iteration.
func (c *Compiler) forStmt(n *ast.For) {
	c.openScope(scopeBlock)

	iterT := c.typeOf(n.Iter)
	base := iterT.RemoveConst()
	isArray := base.Is(types.KindArray)
	if !isArray && !base.Is(types.KindSpan) {
		c.errorf(diag.ComBadIterable, n.Pos, "for-loops only supported for arrays and lvalue spans")
	}
	rvalue := !addressable(n.Iter)
	if rvalue && !isArray {
		c.errorf(diag.ComBadIterable, n.Pos, "for-loops only supported for arrays and lvalue spans")
	}

	if rvalue {
		c.exprVal(n.Iter)
		c.declareVar(n.Pos, iterName, iterT)
	}

	c.emitU64(bytecode.OpPushU64, 0)
	c.declareVar(n.Pos, idxName, types.U64())

	if isArray {
		c.emitU64(bytecode.OpPushU64, base.Count)
	} else {
		c.exprPtr(n.Iter)
		c.emitU64(bytecode.OpPushU64, types.PtrSize)
		c.emit(bytecode.OpU64Add)
		c.emitU64(bytecode.OpLoad, 8)
	}
	c.declareVar(n.Pos, sizeName, types.U64())

	elem := base.Elem
	if iterT.Const {
		elem = elem.AddConst()
	}
	elemSize := c.sizeOf(n.Pos, base.Elem)

	c.pushLoop(func() {
		c.loadVar(n.Pos, idxName)
		c.loadVar(n.Pos, sizeName)
		c.emit(bytecode.OpU64Eq)
		keep := c.emitJump(bytecode.OpJumpIfFalse)
		c.pushBreak(n.Pos)
		c.patchHere(keep)

		// The loop variable is a pointer to the current element.
		if rvalue {
			c.pushVarAddr(n.Pos, iterName)
		} else {
			c.exprPtr(n.Iter)
			if !isArray {
				c.emitU64(bytecode.OpLoad, types.PtrSize)
			}
		}
		c.loadVar(n.Pos, idxName)
		c.emitU64(bytecode.OpPushU64, elemSize)
		c.emit(bytecode.OpU64Mul)
		c.emit(bytecode.OpU64Add)
		c.declareVar(n.Pos, n.Name, types.PointerTo(elem))

		// Increment up front so continue re-tests with the next index.
		c.loadVar(n.Pos, idxName)
		c.emitU64(bytecode.OpPushU64, 1)
		c.emit(bytecode.OpU64Add)
		c.saveVar(n.Pos, idxName)

		c.stmt(n.Body)
	})

	c.closeScope()
}

func (c *Compiler) returnStmt(n *ast.Return) {
	if !c.inFunction() {
		c.errorf(diag.ComBadReturnType, n.Pos, "can only return within functions")
	}
	ret := c.frame().fn.ret

	if n.Value == nil {
		if !ret.Is(types.KindNull) {
			c.errorf(diag.ComBadReturnType, n.Pos, "wrong return type: got 'null', wanted '%s'", ret)
		}
		c.emit(bytecode.OpPushNull)
		c.handleFunctionExit()
		c.emit(bytecode.OpReturn)
		return
	}

	actual := c.exprValCopy(n.Value).RemoveConst()
	expected := ret.RemoveConst()
	switch {
	case actual.Is(types.KindNullPtr) && expected.Is(types.KindPointer):
	case actual.Is(types.KindNullPtr) && expected.Is(types.KindSpan):
		c.emitU64(bytecode.OpPushU64, 0)
	case actual.Is(types.KindArena) || expected.Is(types.KindArena):
		c.errorf(diag.ComArenaMisuse, n.Pos, "arenas can not be copied or assigned")
	case !constConvertible(actual, expected):
		c.errorf(diag.ComBadReturnType, n.Pos, "wrong return type: got '%s', wanted '%s'", actual, expected)
	}
	c.handleFunctionExit()
	c.emit(bytecode.OpReturn)
}

func (c *Compiler) structStmt(n *ast.Struct) {
	if len(n.TemplateParams) > 0 {
		if _, dup := c.structTemplates[n.Name]; dup {
			c.errorf(diag.ComDuplicateTemplate, n.Pos, "struct template named '%s' already defined", n.Name)
		}
		c.structTemplates[n.Name] = n
		return
	}

	self := c.makeType(n.Name)
	if !self.Is(types.KindStruct) || c.cat.Contains(self) {
		c.errorf(diag.ComRedeclaration, n.Pos, "type '%s' already defined", n.Name)
	}

	c.structs = append(c.structs, &structCtx{self: self})
	fields := make([]types.Field, len(n.Fields))
	for i, f := range n.Fields {
		fields[i] = types.Field{Name: f.Name, Type: c.resolveType(f.Type)}
	}
	if !c.cat.Register(self.Name, fields) {
		c.errorf(diag.ComRedeclaration, n.Pos, "type '%s' already defined", n.Name)
	}
	for _, fn := range n.Funcs {
		c.stmt(fn)
	}
	c.structs = c.structs[:len(c.structs)-1]
}

func (c *Compiler) printStmt(n *ast.Print) {
	format := strings.ReplaceAll(n.Format, `\n`, "\n")
	parts := strings.Split(format, "{}")
	if len(parts) != len(n.Args)+1 {
		c.errorf(diag.ComBadPrint, n.Pos, "not enough args to fill all placeholders")
	}
	for i, part := range parts {
		if part != "" {
			c.emit2U64(bytecode.OpPushString, c.intern(part), uint64(len(part)))
			c.emit(bytecode.OpPrintCharSpan)
		}
		if i < len(n.Args) {
			c.printValue(n.Args[i])
		}
	}
}

func (c *Compiler) printValue(e ast.Expr) {
	t := c.exprVal(e)
	m := t.StripConstDeep()
	switch {
	case m.Is(types.KindNull):
		c.emit(bytecode.OpPrintNull)
	case m.Is(types.KindBool):
		c.emit(bytecode.OpPrintBool)
	case m.Is(types.KindChar):
		c.emit(bytecode.OpPrintChar)
	case m.Is(types.KindI32):
		c.emit(bytecode.OpPrintI32)
	case m.Is(types.KindI64):
		c.emit(bytecode.OpPrintI64)
	case m.Is(types.KindU64):
		c.emit(bytecode.OpPrintU64)
	case m.Is(types.KindF64):
		c.emit(bytecode.OpPrintF64)
	case m.Is(types.KindSpan) && m.Elem.Is(types.KindChar):
		c.emit(bytecode.OpPrintCharSpan)
	case m.Is(types.KindNullPtr), m.Is(types.KindPointer):
		c.emit(bytecode.OpPrintPtr)
	default:
		c.errorf(diag.ComBadPrint, e.Span(), "cannot print value of type %s", t)
	}
}
