package types

import (
	"fmt"
	"strings"
)

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNull
	KindNullPtr
	KindBool
	KindChar
	KindI32
	KindI64
	KindU64
	KindF64
	KindStruct
	KindArray
	KindPointer
	KindSpan
	KindReference
	KindFuncPtr
	KindArena

	// Compile-time-only kinds. These never reach the VM and have no size:
	// they are how the compiler threads "this expression names a type",
	// "this expression names a builtin" and "this expression is a method
	// bound to an instance" through its single type-returning walk.
	KindType
	KindBuiltin
	KindBoundMethod
	KindBoundBuiltin
)

// Type is a structural descriptor. Equality and hashing are structural via
// Key(); descriptors are treated as immutable once built.
type Type struct {
	Kind   Kind
	Name   string  // struct name (substituted for generic instantiations)
	Elem   *Type   // array/pointer/span/reference element; KindType payload
	Count  uint64  // array length; function/builtin id for bound kinds
	Params []*Type // function pointer / bound method / builtin parameters
	Ret    *Type   // function pointer / bound method / builtin return
	Const  bool
}

// Fundamental constructors.

func Null() *Type    { return &Type{Kind: KindNull} }
func NullPtr() *Type { return &Type{Kind: KindNullPtr} }
func Bool() *Type    { return &Type{Kind: KindBool} }
func Char() *Type    { return &Type{Kind: KindChar} }
func I32() *Type     { return &Type{Kind: KindI32} }
func I64() *Type     { return &Type{Kind: KindI64} }
func U64() *Type     { return &Type{Kind: KindU64} }
func F64() *Type     { return &Type{Kind: KindF64} }
func Arena() *Type   { return &Type{Kind: KindArena} }

// Struct names a (possibly generic-substituted) struct type.
func Struct(name string) *Type { return &Type{Kind: KindStruct, Name: name} }

// ArrayOf describes a fixed-size array of elem.
func ArrayOf(elem *Type, count uint64) *Type {
	return &Type{Kind: KindArray, Elem: elem, Count: count}
}

// PointerTo describes a pointer to elem.
func PointerTo(elem *Type) *Type { return &Type{Kind: KindPointer, Elem: elem} }

// SpanOf describes a non-owning (pointer, length) view over elem values.
func SpanOf(elem *Type) *Type { return &Type{Kind: KindSpan, Elem: elem} }

// ReferenceTo describes a non-owning alias of elem.
func ReferenceTo(elem *Type) *Type { return &Type{Kind: KindReference, Elem: elem} }

// FuncPtr describes a function pointer type.
func FuncPtr(params []*Type, ret *Type) *Type {
	return &Type{Kind: KindFuncPtr, Params: params, Ret: ret}
}

// TypeValue wraps a type so "this expression denotes a type" can flow
// through expression compilation.
func TypeValue(denoted *Type) *Type { return &Type{Kind: KindType, Elem: denoted} }

// Predicates and transforms ---------------------------------------------------

func (t *Type) Is(k Kind) bool { return t != nil && t.Kind == k }

func (t *Type) IsFundamental() bool {
	switch t.Kind {
	case KindNull, KindNullPtr, KindBool, KindChar, KindI32, KindI64, KindU64, KindF64:
		return true
	}
	return false
}

func (t *Type) IsNumeric() bool {
	switch t.Kind {
	case KindI32, KindI64, KindU64, KindF64:
		return true
	}
	return false
}

func (t *Type) IsTypeValue() bool { return t.Is(KindType) }

// Denoted returns the type a KindType expression names.
func (t *Type) Denoted() *Type { return t.Elem }

// AddConst returns a const-qualified copy.
func (t *Type) AddConst() *Type {
	if t.Const {
		return t
	}
	c := *t
	c.Const = true
	return &c
}

// RemoveConst strips the top-level const qualifier.
func (t *Type) RemoveConst() *Type {
	if !t.Const {
		return t
	}
	c := *t
	c.Const = false
	return &c
}

// StripPointers removes every top-level pointer layer.
func (t *Type) StripPointers() *Type {
	for t.Kind == KindPointer {
		t = t.Elem
	}
	return t
}

// StripRefs removes a top-level reference layer, if present.
func (t *Type) StripRefs() *Type {
	for t.Kind == KindReference {
		t = t.Elem
	}
	return t
}

// Key returns the canonical structural representation. Two types are equal
// iff their keys match; the catalog and the monomorphization cache key on it.
func (t *Type) Key() string {
	if t == nil {
		return "<nil>"
	}
	var base string
	switch t.Kind {
	case KindNull:
		base = "null"
	case KindNullPtr:
		base = "nullptr"
	case KindBool:
		base = "bool"
	case KindChar:
		base = "char"
	case KindI32:
		base = "i32"
	case KindI64:
		base = "i64"
	case KindU64:
		base = "u64"
	case KindF64:
		base = "f64"
	case KindStruct:
		base = t.Name
	case KindArray:
		base = fmt.Sprintf("%s[%d]", t.Elem.Key(), t.Count)
	case KindPointer:
		base = t.Elem.Key() + "&"
	case KindSpan:
		base = t.Elem.Key() + "[]"
	case KindReference:
		base = t.Elem.Key() + " ref"
	case KindFuncPtr:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = p.Key()
		}
		base = fmt.Sprintf("fn(%s) -> %s", strings.Join(params, ", "), t.Ret.Key())
	case KindArena:
		base = "arena"
	case KindType:
		base = "<type " + t.Elem.Key() + ">"
	case KindBuiltin:
		base = "<builtin " + t.Name + ">"
	case KindBoundMethod:
		base = "<bound " + t.Name + ">"
	case KindBoundBuiltin:
		base = "<bound builtin ." + t.Name + ">"
	default:
		base = "<invalid>"
	}
	if t.Const {
		return base + " const"
	}
	return base
}

func (t *Type) String() string { return t.Key() }

// Equal reports structural equality including const qualifiers.
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Key() == b.Key()
}

// EqualModConst reports structural equality ignoring top-level const.
func EqualModConst(a, b *Type) bool {
	return Equal(a.RemoveConst(), b.RemoveConst())
}

// StripConstDeep removes const qualifiers at every level.
func (t *Type) StripConstDeep() *Type {
	if t == nil {
		return nil
	}
	c := *t
	c.Const = false
	c.Elem = t.Elem.StripConstDeep()
	c.Ret = t.Ret.StripConstDeep()
	if len(t.Params) > 0 {
		c.Params = make([]*Type, len(t.Params))
		for i, p := range t.Params {
			c.Params[i] = p.StripConstDeep()
		}
	}
	return &c
}

// EqualModConstDeep reports structural equality ignoring const qualifiers at
// every level. Builtin overload matching uses this.
func EqualModConstDeep(a, b *Type) bool {
	return Equal(a.StripConstDeep(), b.StripConstDeep())
}
