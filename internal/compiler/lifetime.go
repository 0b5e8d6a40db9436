package compiler

import (
	"flint/internal/ast"
	"flint/internal/bytecode"
	"flint/internal/diag"
	"flint/internal/source"
	"flint/internal/types"
)

// constConvertible reports whether a value of type src can stand in for dst.
// Const can be added at any level but never removed.
func constConvertible(src, dst *types.Type) bool {
	if src.Const && !dst.Const {
		return false
	}
	if src.Kind != dst.Kind {
		return false
	}
	switch src.Kind {
	case types.KindStruct:
		return src.Name == dst.Name
	case types.KindArray:
		return src.Count == dst.Count && constConvertible(src.Elem, dst.Elem)
	case types.KindPointer, types.KindSpan, types.KindReference:
		return constConvertible(src.Elem, dst.Elem)
	case types.KindFuncPtr:
		return types.EqualModConstDeep(src, dst)
	case types.KindArena:
		return true
	default:
		return src.IsFundamental()
	}
}

// special member lookup: drop/copy/assign compiled under the struct's
// qualified name.
func (c *Compiler) findSpecial(t *types.Type, name string) (*funcInfo, bool) {
	if !t.Is(types.KindStruct) {
		return nil, false
	}
	fn, ok := c.funcsByName[t.RemoveConst().Key()+"::"+name]
	return fn, ok
}

// trivialCopy reports whether values of this type copy bitwise. A struct
// with any of the three lifetime members, or a non-trivial field, does not.
func (c *Compiler) trivialCopy(t *types.Type) bool {
	t = t.RemoveConst()
	switch t.Kind {
	case types.KindArena:
		return false
	case types.KindArray:
		return c.trivialCopy(t.Elem)
	case types.KindStruct:
		for _, name := range [...]string{"drop", "copy", "assign"} {
			if _, ok := c.findSpecial(t, name); ok {
				return false
			}
		}
		for _, f := range c.cat.FieldsOf(t) {
			if !c.trivialCopy(f.Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// needsDrop reports whether scope exit has work to do for this type.
func (c *Compiler) needsDrop(t *types.Type) bool {
	t = t.RemoveConst()
	switch t.Kind {
	case types.KindArena:
		return true
	case types.KindArray:
		return c.needsDrop(t.Elem)
	case types.KindStruct:
		if _, ok := c.findSpecial(t, "drop"); ok {
			return true
		}
		for _, f := range c.cat.FieldsOf(t) {
			if c.needsDrop(f.Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// emitVarDrop emits the scope-exit cleanup for one variable.
func (c *Compiler) emitVarDrop(v variable) {
	if !c.needsDrop(v.typ) {
		return
	}
	addrOp := bytecode.OpPushPtrGlobal
	if v.isLocal {
		addrOp = bytecode.OpPushPtrLocal
	}
	c.emitDropAt(v.typ, func() { c.emitU64(addrOp, v.offset) })
}

// emitDropAt destroys the value at an address: arenas release their region,
// arrays drop elements in reverse, structs invoke their drop member or drop
// their fields in reverse declaration order.
func (c *Compiler) emitDropAt(t *types.Type, pushAddr func()) {
	t = t.RemoveConst()
	switch t.Kind {
	case types.KindArena:
		pushAddr()
		c.emitU64(bytecode.OpLoad, types.PtrSize)
		c.emit(bytecode.OpArenaDelete)

	case types.KindArray:
		if !c.needsDrop(t.Elem) {
			return
		}
		elemSize := c.sizeOf(source.Span{}, t.Elem)
		for i := t.Count; i > 0; i-- {
			off := (i - 1) * elemSize
			c.emitDropAt(t.Elem, func() {
				pushAddr()
				c.emitU64(bytecode.OpPushU64, off)
				c.emit(bytecode.OpU64Add)
			})
		}

	case types.KindStruct:
		if fn, ok := c.findSpecial(t, "drop"); ok {
			retSize := c.sizeOf(source.Span{}, fn.ret)
			c.emitU64(bytecode.OpPushZeros, 16)
			c.emitU64(bytecode.OpPushU64, retSize)
			pushAddr()
			c.emitU64(bytecode.OpPushFuncPtr, fn.id)
			c.emitU64(bytecode.OpCall, frameHeaderSize+types.PtrSize)
			c.emitU64(bytecode.OpPop, retSize)
			return
		}
		fields := c.cat.FieldsOf(t)
		offsets := make([]uint64, len(fields))
		var off uint64
		for i, f := range fields {
			offsets[i] = off
			off += c.sizeOf(source.Span{}, f.Type)
		}
		for i := len(fields) - 1; i >= 0; i-- {
			if !c.needsDrop(fields[i].Type) {
				continue
			}
			fieldOff := offsets[i]
			c.emitDropAt(fields[i].Type, func() {
				pushAddr()
				c.emitU64(bytecode.OpPushU64, fieldOff)
				c.emit(bytecode.OpU64Add)
			})
		}
	}
}

// exprValCopy compiles an expression in value mode with copy semantics: a
// non-trivial addressable source goes through its copy member instead of a
// bitwise load.
func (c *Compiler) exprValCopy(e ast.Expr) *types.Type {
	t := c.typeOf(e)
	if t.IsTypeValue() || !addressable(e) || c.trivialCopy(t) {
		return c.exprVal(e)
	}

	base := t.RemoveConst()
	if base.Is(types.KindArena) {
		c.errorf(diag.ComArenaMisuse, e.Span(), "arenas can not be copied or assigned")
	}
	if base.Is(types.KindArray) {
		c.emitArrayCopy(e, base)
		return base
	}
	fn, ok := c.findSpecial(base, "copy")
	if !ok {
		c.errorf(diag.ComNotCopyable, e.Span(), "'%s' cannot be copied", base)
	}
	c.emitCopyCall(base, fn, func() { c.exprPtr(e) }, e.Span())
	return base
}

// emitCopyCall invokes copy(self_ptr) -> Self, leaving the copy on the
// stack where the bitwise value would have been.
func (c *Compiler) emitCopyCall(t *types.Type, fn *funcInfo, pushSrc func(), span source.Span) {
	if len(fn.params) != 1 || !types.EqualModConst(fn.ret, t) {
		c.errorf(diag.ComTypeMismatch, span, "'%s::copy' must take the instance pointer and return '%s'", t, t)
	}
	c.emitU64(bytecode.OpPushZeros, 16)
	c.emitU64(bytecode.OpPushU64, c.sizeOf(span, t))
	pushSrc()
	c.emitU64(bytecode.OpPushFuncPtr, fn.id)
	c.emitU64(bytecode.OpCall, frameHeaderSize+types.PtrSize)
}

// emitArrayCopy copies element-wise; the per-element results accumulate on
// the stack in array layout.
func (c *Compiler) emitArrayCopy(e ast.Expr, t *types.Type) {
	elem := t.Elem.RemoveConst()
	fn, ok := c.findSpecial(elem, "copy")
	if !ok {
		c.errorf(diag.ComNotCopyable, e.Span(), "'%s' cannot be copied", t)
	}
	elemSize := c.sizeOf(e.Span(), elem)
	for i := uint64(0); i < t.Count; i++ {
		off := i * elemSize
		c.emitCopyCall(elem, fn, func() {
			c.exprPtr(e)
			c.emitU64(bytecode.OpPushU64, off)
			c.emit(bytecode.OpU64Add)
		}, e.Span())
	}
}

// pushCopyTypechecked compiles a value destined for a slot of the expected
// type: declarations, assignments and by-value argument passing all funnel
// through here. Top-level const is dropped on both sides since the result
// is a fresh copy.
func (c *Compiler) pushCopyTypechecked(e ast.Expr, expectedRaw *types.Type, span source.Span) {
	actual := c.exprValCopy(e).RemoveConst()
	expected := expectedRaw.RemoveConst()

	if actual.Is(types.KindNullPtr) && expected.Is(types.KindPointer) {
		return
	}
	// A span built from nullptr is the null span.
	if actual.Is(types.KindNullPtr) && expected.Is(types.KindSpan) {
		c.emitU64(bytecode.OpPushU64, 0)
		return
	}
	if actual.Is(types.KindArena) || expected.Is(types.KindArena) {
		c.errorf(diag.ComArenaMisuse, span, "arenas can not be copied or assigned")
	}
	if !constConvertible(actual, expected) {
		c.errorf(diag.ComTypeMismatch, span, "cannot convert '%s' to '%s'", actual, expected)
	}
}

// emitAssignAt stores through the assign member: structs invoke
// assign(dst_ptr, src_ptr), arrays apply it element-wise.
func (c *Compiler) emitAssignAt(t *types.Type, pushDst, pushSrc func(), span source.Span) {
	t = t.RemoveConst()
	if t.Is(types.KindArray) {
		elemSize := c.sizeOf(span, t.Elem)
		for i := uint64(0); i < t.Count; i++ {
			off := i * elemSize
			offsetFrom := func(push func()) func() {
				return func() {
					push()
					c.emitU64(bytecode.OpPushU64, off)
					c.emit(bytecode.OpU64Add)
				}
			}
			c.emitAssignAt(t.Elem, offsetFrom(pushDst), offsetFrom(pushSrc), span)
		}
		return
	}

	fn, ok := c.findSpecial(t, "assign")
	if !ok {
		c.errorf(diag.ComNotCopyable, span, "'%s' cannot be assigned", t)
	}
	if len(fn.params) != 2 {
		c.errorf(diag.ComTypeMismatch, span, "'%s::assign' must take destination and source pointers", t)
	}
	retSize := c.sizeOf(span, fn.ret)
	c.emitU64(bytecode.OpPushZeros, 16)
	c.emitU64(bytecode.OpPushU64, retSize)
	pushDst()
	pushSrc()
	c.emitU64(bytecode.OpPushFuncPtr, fn.id)
	c.emitU64(bytecode.OpCall, frameHeaderSize+2*types.PtrSize)
	c.emitU64(bytecode.OpPop, retSize)
}
