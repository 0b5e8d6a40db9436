package compiler

import (
	"flint/internal/ast"
	"flint/internal/builtins"
	"flint/internal/bytecode"
	"flint/internal/diag"
	"flint/internal/types"
)

// Expressions compile in one of two modes: value mode leaves the value on
// the stack, address mode leaves a pointer to its storage. Only names,
// field accesses, derefs and subscripts have storage.

func (c *Compiler) exprPtr(e ast.Expr) *types.Type {
	switch n := e.(type) {
	case *ast.Name:
		ref := c.resolveName(n)
		if ref.kind != refVar {
			c.errorf(diag.ComInvalidLValue, n.Pos, "cannot take the address of '%s'", n.Name)
		}
		return c.pushVarAddr(n.Pos, n.Name)

	case *ast.FieldAccess:
		f := c.classifyField(n)
		if f.kind != fieldData {
			c.errorf(diag.ComInvalidLValue, n.Pos, "cannot take the address of a member function")
		}
		c.exprPtr(n.Expr)
		c.autoDeref(f.recv)
		c.emitU64(bytecode.OpPushU64, f.offset)
		c.emit(bytecode.OpU64Add)
		return f.ftype

	case *ast.Deref:
		t := c.exprVal(n.Expr).RemoveConst()
		if !t.Is(types.KindPointer) {
			c.errorf(diag.ComBadOperator, n.Pos, "cannot use deref operator on non-ptr type '%s'", t)
		}
		return t.Elem

	case *ast.Subscript:
		return c.subscriptPtr(n)
	}

	c.errorf(diag.ComInvalidLValue, e.Span(), "expression is not addressable")
	return nil
}

func (c *Compiler) exprVal(e ast.Expr) *types.Type {
	switch n := e.(type) {
	case *ast.LiteralI32:
		c.emitU32(bytecode.OpPushI32, uint32(n.Value))
		return types.I32()
	case *ast.LiteralI64:
		c.emitU64(bytecode.OpPushI64, uint64(n.Value))
		return types.I64()
	case *ast.LiteralU64:
		c.emitU64(bytecode.OpPushU64, n.Value)
		return types.U64()
	case *ast.LiteralF64:
		c.emitF64(bytecode.OpPushF64, n.Value)
		return types.F64()
	case *ast.LiteralChar:
		c.emitByte(bytecode.OpPushChar, n.Value)
		return types.Char()
	case *ast.LiteralBool:
		v := byte(0)
		if n.Value {
			v = 1
		}
		c.emitByte(bytecode.OpPushBool, v)
		return types.Bool()
	case *ast.LiteralNull:
		c.emit(bytecode.OpPushNull)
		return types.Null()
	case *ast.LiteralNullPtr:
		c.emit(bytecode.OpPushNullPtr)
		return types.NullPtr()
	case *ast.LiteralString:
		c.emit2U64(bytecode.OpPushString, c.intern(n.Value), uint64(len(n.Value)))
		return stringLiteralType()

	case *ast.Name:
		ref := c.resolveName(n)
		switch ref.kind {
		case refFunc:
			c.emitU64(bytecode.OpPushFuncPtr, ref.fn.id)
			return types.FuncPtr(ref.fn.params, ref.fn.ret)
		case refBuiltin:
			return &types.Type{
				Kind: types.KindBuiltin, Name: ref.b.Name, Count: ref.bID,
				Params: ref.b.Params, Ret: ref.b.Ret,
			}
		case refType:
			return types.TypeValue(ref.t)
		default:
			t := c.pushVarAddr(n.Pos, n.Name)
			c.emitU64(bytecode.OpLoad, c.sizeOf(n.Pos, t))
			return t
		}

	case *ast.FieldAccess:
		f := c.classifyField(n)
		switch f.kind {
		case fieldMethod:
			c.errorf(diag.ComNotCallable, n.Pos, "member function '%s' must be called", n.Field)
		case fieldBuiltin:
			c.errorf(diag.ComNotCallable, n.Pos, "builtin member '%s' must be called", n.Field)
		}
		c.exprPtr(n.Expr)
		c.autoDeref(f.recv)
		c.emitU64(bytecode.OpPushU64, f.offset)
		c.emit(bytecode.OpU64Add)
		c.emitU64(bytecode.OpLoad, c.sizeOf(n.Pos, f.ftype))
		return f.ftype

	case *ast.Deref:
		t := c.exprVal(n.Expr).RemoveConst()
		if !t.Is(types.KindPointer) {
			c.errorf(diag.ComBadOperator, n.Pos, "cannot use deref operator on non-ptr type '%s'", t)
		}
		c.emitU64(bytecode.OpLoad, c.sizeOf(n.Pos, t.Elem))
		return t.Elem

	case *ast.AddrOf:
		t := c.typeOf(n.Expr)
		if t.IsTypeValue() {
			return types.TypeValue(types.PointerTo(t.Denoted()))
		}
		c.exprPtr(n.Expr)
		return types.PointerTo(t)

	case *ast.Subscript:
		t := c.typeOf(n.Expr)
		if t.IsTypeValue() {
			return c.typeOfSubscript(n)
		}
		elem := c.subscriptPtr(n)
		c.emitU64(bytecode.OpLoad, c.sizeOf(n.Pos, elem))
		return elem

	case *ast.Slice:
		return c.slice(n)

	case *ast.Unary:
		return c.unary(n)

	case *ast.Binary:
		return c.binary(n)

	case *ast.Call:
		return c.call(n)

	case *ast.ArrayLit:
		if len(n.Elems) == 0 {
			c.errorf(diag.ComTypeMismatch, n.Pos, "cannot have empty array literals")
		}
		inner := c.exprVal(n.Elems[0])
		if inner.IsTypeValue() {
			c.errorf(diag.ComTypeMismatch, n.Pos, "invalid use of type expressions")
		}
		for _, el := range n.Elems[1:] {
			et := c.exprVal(el)
			if !types.Equal(et, inner) {
				c.errorf(diag.ComTypeMismatch, el.Span(), "array has mismatching element types")
			}
		}
		return types.ArrayOf(inner, uint64(len(n.Elems)))

	case *ast.RepeatLit:
		if n.Count == 0 {
			c.errorf(diag.ComTypeMismatch, n.Pos, "cannot have empty array literals")
		}
		inner := c.typeOf(n.Value)
		if inner.IsTypeValue() {
			c.errorf(diag.ComTypeMismatch, n.Pos, "invalid use of type expressions")
		}
		for i := uint64(0); i < n.Count; i++ {
			c.exprVal(n.Value)
		}
		return types.ArrayOf(inner, n.Count)

	case *ast.SizeOf:
		t := c.typeOf(n.Expr)
		if t.IsTypeValue() {
			t = t.Denoted()
		}
		c.emitU64(bytecode.OpPushU64, c.sizeOf(n.Pos, t))
		return types.U64()

	case *ast.TypeOf:
		return types.TypeValue(c.typeOf(n.Expr))

	case *ast.ConstQual, *ast.FuncPtrType:
		return c.typeOf(e)

	case *ast.New:
		return c.arenaNew(n)
	}

	c.errorf(diag.UnknownCode, e.Span(), "unsupported expression node %T", e)
	return nil
}

// subscriptPtr compiles the address of container[index]. With bounds checks
// on, the index compiles twice: once for the guard, once for the offset.
func (c *Compiler) subscriptPtr(n *ast.Subscript) *types.Type {
	t := c.typeOf(n.Expr)
	if t.IsTypeValue() {
		c.errorf(diag.ComInvalidLValue, n.Pos, "cannot take the address of a type expression")
	}
	base := t.RemoveConst()
	isArray := base.Is(types.KindArray)
	if !isArray && !base.Is(types.KindSpan) {
		c.errorf(diag.ComBadSubscript, n.Pos, "subscript only supported for arrays and spans")
	}

	c.exprPtr(n.Expr)
	// A span holds the target address; switch to it.
	if !isArray {
		c.emitU64(bytecode.OpLoad, types.PtrSize)
	}

	if c.opts.BoundsChecks {
		c.indexVal(n.Index)
		if isArray {
			c.emitU64(bytecode.OpPushU64, base.Count)
		} else {
			c.exprPtr(n.Expr)
			c.emitU64(bytecode.OpPushU64, types.PtrSize)
			c.emit(bytecode.OpU64Add)
			c.emitU64(bytecode.OpLoad, 8)
		}
		c.emit(bytecode.OpU64Lt)
		at, size := c.assertLine(n.Pos, "bounds check failed")
		c.emit2U64(bytecode.OpAssertBounds, at, size)
	}

	c.indexVal(n.Index)
	c.emitU64(bytecode.OpPushU64, c.sizeOf(n.Pos, base.Elem))
	c.emit(bytecode.OpU64Mul)
	c.emit(bytecode.OpU64Add)

	if isArray && t.Const {
		return base.Elem.AddConst()
	}
	return base.Elem
}

func (c *Compiler) indexVal(e ast.Expr) {
	it := c.exprVal(e)
	if !types.EqualModConst(it, types.U64()) {
		c.errorf(diag.ComBadSubscript, e.Span(), "subscript argument must be u64, got %s", it)
	}
}

func (c *Compiler) slice(n *ast.Slice) *types.Type {
	if (n.Lo == nil) != (n.Hi == nil) {
		c.errorf(diag.ComBadSubscript, n.Pos, "a span must either have both bounds set, or neither")
	}
	t := c.typeOf(n.Expr)
	if t.IsTypeValue() {
		return types.TypeValue(types.SpanOf(t.Denoted()))
	}
	base := t.RemoveConst()
	isSpan := base.Is(types.KindSpan)
	if !isSpan && !base.Is(types.KindArray) {
		c.errorf(diag.ComBadSubscript, n.Pos, "can only span arrays and other spans, not %s", t)
	}

	c.exprPtr(n.Expr)
	if isSpan {
		c.emitU64(bytecode.OpLoad, types.PtrSize)
	}

	if n.Lo != nil {
		c.emitU64(bytecode.OpPushU64, c.sizeOf(n.Pos, base.Elem))
		lo := c.exprVal(n.Lo)
		if !types.EqualModConst(lo, types.U64()) {
			c.errorf(diag.ComBadSubscript, n.Lo.Span(), "subspan indices must be u64")
		}
		c.emit(bytecode.OpU64Mul)
		c.emit(bytecode.OpU64Add)
	}

	// The second half of the span is its length.
	switch {
	case n.Lo != nil:
		hi := c.exprVal(n.Hi)
		if !types.EqualModConst(hi, types.U64()) {
			c.errorf(diag.ComBadSubscript, n.Hi.Span(), "subspan indices must be u64")
		}
		c.exprVal(n.Lo)
		c.emit(bytecode.OpU64Sub)
	case isSpan:
		c.exprPtr(n.Expr)
		c.emitU64(bytecode.OpPushU64, types.PtrSize)
		c.emit(bytecode.OpU64Add)
		c.emitU64(bytecode.OpLoad, 8)
	default:
		c.emitU64(bytecode.OpPushU64, base.Count)
	}

	elem := base.Elem
	if t.Const {
		elem = elem.AddConst()
	}
	return types.SpanOf(elem)
}

func (c *Compiler) unary(n *ast.Unary) *types.Type {
	t := c.exprVal(n.Expr).RemoveConst()
	if t.IsTypeValue() {
		c.errorf(diag.ComBadOperator, n.Pos, "invalid use of type expression")
	}
	switch n.Op {
	case ast.UnaryNeg:
		switch t.Kind {
		case types.KindI32:
			c.emit(bytecode.OpI32Neg)
			return t
		case types.KindI64:
			c.emit(bytecode.OpI64Neg)
			return t
		case types.KindF64:
			c.emit(bytecode.OpF64Neg)
			return t
		}
	case ast.UnaryNot:
		if t.Is(types.KindBool) {
			c.emit(bytecode.OpBoolNot)
			return t
		}
	}
	c.errorf(diag.ComBadOperator, n.Pos, "could not find op '%s%s'", n.Op, t)
	return nil
}

var comparisonOps = map[ast.BinaryOp]bool{
	ast.BinEq: true, ast.BinNe: true,
	ast.BinLt: true, ast.BinLe: true, ast.BinGt: true, ast.BinGe: true,
}

var i32Ops = map[ast.BinaryOp]bytecode.Op{
	ast.BinAdd: bytecode.OpI32Add, ast.BinSub: bytecode.OpI32Sub,
	ast.BinMul: bytecode.OpI32Mul, ast.BinDiv: bytecode.OpI32Div, ast.BinMod: bytecode.OpI32Mod,
	ast.BinEq: bytecode.OpI32Eq, ast.BinNe: bytecode.OpI32Ne,
	ast.BinLt: bytecode.OpI32Lt, ast.BinLe: bytecode.OpI32Le,
	ast.BinGt: bytecode.OpI32Gt, ast.BinGe: bytecode.OpI32Ge,
}

var i64Ops = map[ast.BinaryOp]bytecode.Op{
	ast.BinAdd: bytecode.OpI64Add, ast.BinSub: bytecode.OpI64Sub,
	ast.BinMul: bytecode.OpI64Mul, ast.BinDiv: bytecode.OpI64Div, ast.BinMod: bytecode.OpI64Mod,
	ast.BinEq: bytecode.OpI64Eq, ast.BinNe: bytecode.OpI64Ne,
	ast.BinLt: bytecode.OpI64Lt, ast.BinLe: bytecode.OpI64Le,
	ast.BinGt: bytecode.OpI64Gt, ast.BinGe: bytecode.OpI64Ge,
}

var u64Ops = map[ast.BinaryOp]bytecode.Op{
	ast.BinAdd: bytecode.OpU64Add, ast.BinSub: bytecode.OpU64Sub,
	ast.BinMul: bytecode.OpU64Mul, ast.BinDiv: bytecode.OpU64Div, ast.BinMod: bytecode.OpU64Mod,
	ast.BinEq: bytecode.OpU64Eq, ast.BinNe: bytecode.OpU64Ne,
	ast.BinLt: bytecode.OpU64Lt, ast.BinLe: bytecode.OpU64Le,
	ast.BinGt: bytecode.OpU64Gt, ast.BinGe: bytecode.OpU64Ge,
}

var f64Ops = map[ast.BinaryOp]bytecode.Op{
	ast.BinAdd: bytecode.OpF64Add, ast.BinSub: bytecode.OpF64Sub,
	ast.BinMul: bytecode.OpF64Mul, ast.BinDiv: bytecode.OpF64Div,
	ast.BinEq: bytecode.OpF64Eq, ast.BinNe: bytecode.OpF64Ne,
	ast.BinLt: bytecode.OpF64Lt, ast.BinLe: bytecode.OpF64Le,
	ast.BinGt: bytecode.OpF64Gt, ast.BinGe: bytecode.OpF64Ge,
}

var charOps = map[ast.BinaryOp]bytecode.Op{
	ast.BinEq: bytecode.OpCharEq, ast.BinNe: bytecode.OpCharNe,
}

var boolOps = map[ast.BinaryOp]bytecode.Op{
	ast.BinAnd: bytecode.OpBoolAnd, ast.BinOr: bytecode.OpBoolOr,
	ast.BinEq: bytecode.OpBoolEq, ast.BinNe: bytecode.OpBoolNe,
}

func (c *Compiler) binary(n *ast.Binary) *types.Type {
	lhs := c.exprVal(n.LHS).RemoveConst()
	rhs := c.exprVal(n.RHS).RemoveConst()
	if lhs.IsTypeValue() || rhs.IsTypeValue() {
		c.errorf(diag.ComBadOperator, n.Pos, "invalid use of type expression")
	}

	// Pointers compare against nullptr.
	ptrNull := (lhs.Is(types.KindPointer) && rhs.Is(types.KindNullPtr)) ||
		(rhs.Is(types.KindPointer) && lhs.Is(types.KindNullPtr))
	if ptrNull || (lhs.Is(types.KindPointer) && types.Equal(lhs, rhs)) {
		switch n.Op {
		case ast.BinEq:
			c.emit(bytecode.OpU64Eq)
			return types.Bool()
		case ast.BinNe:
			c.emit(bytecode.OpU64Ne)
			return types.Bool()
		}
		c.errorf(diag.ComBadOperator, n.Pos, "could not find op '%s %s %s'", lhs, n.Op, rhs)
	}

	if !types.Equal(lhs, rhs) {
		c.errorf(diag.ComBadOperator, n.Pos, "could not find op '%s %s %s'", lhs, n.Op, rhs)
	}

	var table map[ast.BinaryOp]bytecode.Op
	switch lhs.Kind {
	case types.KindChar:
		table = charOps
	case types.KindBool:
		table = boolOps
	case types.KindI32:
		table = i32Ops
	case types.KindI64:
		table = i64Ops
	case types.KindU64:
		table = u64Ops
	case types.KindF64:
		table = f64Ops
	}
	op, ok := table[n.Op]
	if !ok {
		c.errorf(diag.ComBadOperator, n.Pos, "could not find op '%s %s %s'", lhs, n.Op, rhs)
	}
	c.emit(op)
	if comparisonOps[n.Op] {
		return types.Bool()
	}
	return lhs
}

func (c *Compiler) call(n *ast.Call) *types.Type {
	callee := c.typeOf(n.Callee)
	switch callee.Kind {
	case types.KindType:
		obj := callee.Denoted()
		if len(n.Args) == 0 {
			c.emitU64(bytecode.OpPushZeros, c.sizeOf(n.Pos, obj))
			return obj
		}
		params := c.constructorParams(n.Pos, obj)
		if len(n.Args) != len(params) {
			c.errorf(diag.ComArityMismatch, n.Pos, "bad number of arguments to constructor call")
		}
		for i, a := range n.Args {
			c.pushCopyTypechecked(a, params[i], n.Pos)
		}
		return obj

	case types.KindFuncPtr:
		if len(n.Args) != len(callee.Params) {
			c.errorf(diag.ComArityMismatch, n.Pos, "invalid number of args for function call")
		}
		c.emitU64(bytecode.OpPushZeros, 16)
		c.emitU64(bytecode.OpPushU64, c.sizeOf(n.Pos, callee.Ret))
		argsSize := uint64(frameHeaderSize)
		for i, a := range n.Args {
			c.pushCopyTypechecked(a, callee.Params[i], n.Pos)
			argsSize += c.sizeOf(n.Pos, callee.Params[i])
		}
		c.exprVal(n.Callee)
		c.emitU64(bytecode.OpCall, argsSize)
		return callee.Ret

	case types.KindBuiltin:
		// Builtins overload on argument types; the name alone only proves
		// some overload exists.
		id, b := c.lookupBuiltin(n, callee.Name)
		for i, a := range n.Args {
			c.pushCopyTypechecked(a, b.Params[i], n.Pos)
		}
		c.emitU64(bytecode.OpBuiltinCall, id)
		return b.Ret

	case types.KindBoundMethod:
		fa, ok := n.Callee.(*ast.FieldAccess)
		if !ok {
			c.errorf(diag.ComNotCallable, n.Pos, "member function calls need an instance")
		}
		if len(n.Args) != len(callee.Params)-1 {
			c.errorf(diag.ComArityMismatch, n.Pos, "invalid number of args for function call")
		}
		c.emitU64(bytecode.OpPushZeros, 16)
		c.emitU64(bytecode.OpPushU64, c.sizeOf(n.Pos, callee.Ret))
		recv := c.typeOf(fa.Expr)
		c.exprPtr(fa.Expr)
		stripped := c.autoDeref(recv)
		if stripped.Const && !callee.Params[0].Elem.Const {
			c.errorf(diag.ComConstViolation, n.Pos, "cannot bind a const variable to a non-const member function")
		}
		argsSize := uint64(frameHeaderSize + types.PtrSize)
		for i, a := range n.Args {
			c.pushCopyTypechecked(a, callee.Params[i+1], n.Pos)
			argsSize += c.sizeOf(n.Pos, callee.Params[i+1])
		}
		c.emitU64(bytecode.OpPushFuncPtr, callee.Count)
		c.emitU64(bytecode.OpCall, argsSize)
		return callee.Ret

	case types.KindBoundBuiltin:
		return c.boundBuiltinCall(n, callee)
	}

	c.errorf(diag.ComNotCallable, n.Pos, "unable to call non-callable type %s", callee)
	return nil
}

// lookupBuiltin resolves a builtin call against the actual argument types.
func (c *Compiler) lookupBuiltin(n *ast.Call, name string) (uint64, builtins.Builtin) {
	argTypes := make([]*types.Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = c.typeOf(a)
	}
	id, b, ok := builtins.Lookup(name, argTypes)
	if !ok {
		c.errorf(diag.ComUnresolvedName, n.Pos, "could not find builtin '%s(%s)'", name, typeList(argTypes))
	}
	return id, b
}

// boundBuiltinCall compiles size/capacity members. Array lengths are
// compile-time constants; spans load their length field; arenas load the
// handle and query the heap.
func (c *Compiler) boundBuiltinCall(n *ast.Call, callee *types.Type) *types.Type {
	fa, ok := n.Callee.(*ast.FieldAccess)
	if !ok {
		c.errorf(diag.ComNotCallable, n.Pos, "builtin member calls need an instance")
	}
	if len(n.Args) != 0 {
		c.errorf(diag.ComArityMismatch, n.Pos, "builtin member '%s' takes no arguments", callee.Name)
	}
	recv := callee.Elem

	switch recv.Kind {
	case types.KindArray:
		c.emitU64(bytecode.OpPushU64, recv.Count)
	case types.KindSpan:
		rt := c.typeOf(fa.Expr)
		c.exprPtr(fa.Expr)
		c.autoDeref(rt)
		c.emitU64(bytecode.OpPushU64, types.PtrSize)
		c.emit(bytecode.OpU64Add)
		c.emitU64(bytecode.OpLoad, 8)
	case types.KindArena:
		rt := c.typeOf(fa.Expr)
		c.exprPtr(fa.Expr)
		c.autoDeref(rt)
		c.emitU64(bytecode.OpLoad, types.PtrSize)
		if callee.Name == "capacity" {
			c.emit(bytecode.OpArenaCapacity)
		} else {
			c.emit(bytecode.OpArenaSize)
		}
	}
	return types.U64()
}

func (c *Compiler) arenaNew(n *ast.New) *types.Type {
	t := c.exprVal(n.Value)
	if t.IsTypeValue() {
		c.errorf(diag.ComTypeMismatch, n.Pos, "invalid use of type expression")
	}
	size := c.sizeOf(n.Pos, t)

	if n.Count != nil {
		ct := c.exprVal(n.Count)
		if !types.EqualModConst(ct, types.U64()) {
			c.errorf(diag.ComTypeMismatch, n.Count.Span(), "wrong type for span size when allocating")
		}
		c.arenaOperand(n.Arena)
		c.emitU64(bytecode.OpArenaAllocArray, size)
		return types.SpanOf(t)
	}

	c.arenaOperand(n.Arena)
	c.emitU64(bytecode.OpArenaAlloc, size)
	return types.PointerTo(t)
}

// arenaOperand compiles an arena handle, accepting the arena by value or
// through any number of pointers.
func (c *Compiler) arenaOperand(e ast.Expr) {
	t := c.exprVal(e)
	stripped := c.autoDeref(t.RemoveConst())
	if !stripped.RemoveConst().Is(types.KindArena) {
		c.errorf(diag.ComArenaMisuse, e.Span(), "expected an arena, got %s", t)
	}
}
