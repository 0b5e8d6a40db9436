package compiler

import (
	"flint/internal/ast"
	"flint/internal/diag"
	"flint/internal/types"
)

// typeOf answers "what type does this expression have" without emitting any
// code for it, sharing the resolution rules of the emitting walk. The one
// deliberate side effect: classifying a name or field can compile a generic
// instantiation it references, since the answer depends on it.

func stringLiteralType() *types.Type {
	return types.SpanOf(types.Char().AddConst())
}

func (c *Compiler) typeOf(e ast.Expr) *types.Type {
	switch n := e.(type) {
	case *ast.LiteralI32:
		return types.I32()
	case *ast.LiteralI64:
		return types.I64()
	case *ast.LiteralU64:
		return types.U64()
	case *ast.LiteralF64:
		return types.F64()
	case *ast.LiteralChar:
		return types.Char()
	case *ast.LiteralBool:
		return types.Bool()
	case *ast.LiteralNull:
		return types.Null()
	case *ast.LiteralNullPtr:
		return types.NullPtr()
	case *ast.LiteralString:
		return stringLiteralType()

	case *ast.Name:
		ref := c.resolveName(n)
		switch ref.kind {
		case refFunc:
			return types.FuncPtr(ref.fn.params, ref.fn.ret)
		case refBuiltin:
			return &types.Type{
				Kind: types.KindBuiltin, Name: ref.b.Name, Count: ref.bID,
				Params: ref.b.Params, Ret: ref.b.Ret,
			}
		case refType:
			return types.TypeValue(ref.t)
		default:
			return ref.t
		}

	case *ast.FieldAccess:
		f := c.classifyField(n)
		switch f.kind {
		case fieldMethod:
			return &types.Type{
				Kind: types.KindBoundMethod, Name: f.fn.name, Count: f.fn.id,
				Params: f.fn.params, Ret: f.fn.ret,
			}
		case fieldBuiltin:
			return &types.Type{Kind: types.KindBoundBuiltin, Name: f.builtin, Elem: f.base}
		default:
			return f.ftype
		}

	case *ast.Deref:
		t := c.typeOf(n.Expr)
		if !t.RemoveConst().Is(types.KindPointer) {
			c.errorf(diag.ComBadOperator, n.Pos, "cannot use deref operator on non-ptr type '%s'", t)
		}
		return t.RemoveConst().Elem

	case *ast.AddrOf:
		t := c.typeOf(n.Expr)
		if t.IsTypeValue() {
			return types.TypeValue(types.PointerTo(t.Denoted()))
		}
		return types.PointerTo(t)

	case *ast.Subscript:
		return c.typeOfSubscript(n)

	case *ast.Slice:
		return c.typeOfSlice(n)

	case *ast.Unary:
		if n.Op == ast.UnaryNot {
			return types.Bool()
		}
		return c.typeOf(n.Expr).RemoveConst()

	case *ast.Binary:
		switch n.Op {
		case ast.BinEq, ast.BinNe, ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe,
			ast.BinAnd, ast.BinOr:
			return types.Bool()
		}
		return c.typeOf(n.LHS).RemoveConst()

	case *ast.Call:
		callee := c.typeOf(n.Callee)
		switch callee.Kind {
		case types.KindType:
			return callee.Denoted()
		case types.KindBuiltin:
			_, b := c.lookupBuiltin(n, callee.Name)
			return b.Ret
		case types.KindFuncPtr, types.KindBoundMethod:
			return callee.Ret
		case types.KindBoundBuiltin:
			return types.U64()
		default:
			c.errorf(diag.ComNotCallable, n.Pos, "unable to call non-callable type %s", callee)
		}

	case *ast.ArrayLit:
		if len(n.Elems) == 0 {
			c.errorf(diag.ComTypeMismatch, n.Pos, "cannot have empty array literals")
		}
		return types.ArrayOf(c.typeOf(n.Elems[0]), uint64(len(n.Elems)))

	case *ast.RepeatLit:
		if n.Count == 0 {
			c.errorf(diag.ComTypeMismatch, n.Pos, "cannot have empty array literals")
		}
		return types.ArrayOf(c.typeOf(n.Value), n.Count)

	case *ast.SizeOf:
		return types.U64()

	case *ast.TypeOf:
		return types.TypeValue(c.typeOf(n.Expr))

	case *ast.ConstQual:
		t := c.typeOf(n.Expr)
		if !t.IsTypeValue() {
			c.errorf(diag.ComUnknownType, n.Pos, "invalid use of a const-expr")
		}
		return types.TypeValue(t.Denoted().AddConst())

	case *ast.New:
		t := c.typeOf(n.Value)
		if n.Count != nil {
			return types.SpanOf(t)
		}
		return types.PointerTo(t)

	case *ast.FuncPtrType:
		params := make([]*types.Type, len(n.Params))
		for i, p := range n.Params {
			params[i] = c.resolveType(p)
		}
		var ret *types.Type = types.Null()
		if n.Ret != nil {
			ret = c.resolveType(n.Ret)
		}
		return types.TypeValue(types.FuncPtr(params, ret))
	}

	c.errorf(diag.UnknownCode, e.Span(), "unsupported expression node %T", e)
	return nil
}

func (c *Compiler) typeOfSubscript(n *ast.Subscript) *types.Type {
	t := c.typeOf(n.Expr)
	if t.IsTypeValue() {
		lit, ok := n.Index.(*ast.LiteralU64)
		if !ok {
			c.errorf(diag.ComBadSubscript, n.Pos, "index must be a u64 literal when declaring an array type")
		}
		return types.TypeValue(types.ArrayOf(t.Denoted(), lit.Value))
	}
	base := t.RemoveConst()
	switch base.Kind {
	case types.KindArray:
		if t.Const {
			return base.Elem.AddConst()
		}
		return base.Elem
	case types.KindSpan:
		return base.Elem
	default:
		c.errorf(diag.ComBadSubscript, n.Pos, "subscript only supported for arrays and spans")
		return nil
	}
}

func (c *Compiler) typeOfSlice(n *ast.Slice) *types.Type {
	t := c.typeOf(n.Expr)
	if t.IsTypeValue() {
		return types.TypeValue(types.SpanOf(t.Denoted()))
	}
	base := t.RemoveConst()
	if !base.Is(types.KindArray) && !base.Is(types.KindSpan) {
		c.errorf(diag.ComBadSubscript, n.Pos, "can only span arrays and other spans, not %s", t)
	}
	elem := base.Elem
	if t.Const {
		elem = elem.AddConst()
	}
	return types.SpanOf(elem)
}

// Field classification, shared by the emitting and non-emitting walks.

type fieldKind uint8

const (
	fieldData fieldKind = iota
	fieldMethod
	fieldBuiltin
)

type fieldRef struct {
	kind     fieldKind
	recv     *types.Type // receiver type as written, pointers included
	stripped *types.Type // receiver with pointers removed
	base     *types.Type // stripped, without const
	fn       *funcInfo   // fieldMethod
	builtin  string      // fieldBuiltin: "size" or "capacity"
	ftype    *types.Type // fieldData, const-propagated
	offset   uint64      // fieldData
}

// classifyField decides what a field access names: a member function (bound
// to the instance), a builtin member of arrays/spans/arenas, or a data
// member. Stashed member functions of generic structs compile here, at
// first reference.
func (c *Compiler) classifyField(n *ast.FieldAccess) fieldRef {
	recv := c.typeOf(n.Expr)
	if recv.IsTypeValue() {
		c.errorf(diag.ComUnknownField, n.Pos, "fields of type expressions are not supported")
	}
	stripped := recv.StripPointers()
	base := stripped.RemoveConst()
	ref := fieldRef{recv: recv, stripped: stripped, base: base}

	if base.Is(types.KindStruct) {
		full := base.Key() + "::" + n.Field
		if tmpl, ok := c.funcTemplates[full]; ok && len(tmpl.TemplateParams) == 0 {
			if _, compiled := c.funcsByName[full]; !compiled {
				c.structs = append(c.structs, &structCtx{self: base, templates: c.structArgs[base.Name]})
				c.compileFunction(n.Pos, full, tmpl, nil)
				c.structs = c.structs[:len(c.structs)-1]
			}
		}
		if fn, ok := c.funcsByName[full]; ok {
			ref.kind = fieldMethod
			ref.fn = fn
			return ref
		}
	}

	switch base.Kind {
	case types.KindArray, types.KindSpan, types.KindArena:
		if n.Field == "size" || (n.Field == "capacity" && base.Is(types.KindArena)) {
			ref.kind = fieldBuiltin
			ref.builtin = n.Field
			return ref
		}
	}

	offset, ftype, err := c.cat.FieldOffset(base, n.Field)
	if err != nil {
		c.errorf(diag.ComUnknownField, n.Pos, "%v", err)
	}
	if stripped.Const {
		ftype = ftype.AddConst()
	}
	ref.kind = fieldData
	ref.ftype = ftype
	ref.offset = uint64(offset)
	return ref
}
