package ast

import "flint/internal/source"

// Literal nodes. One per source type: the literal's type is part of the
// syntax, never inferred.

type LiteralI32 struct {
	Pos   source.Span
	Value int32
}

type LiteralI64 struct {
	Pos   source.Span
	Value int64
}

type LiteralU64 struct {
	Pos   source.Span
	Value uint64
}

type LiteralF64 struct {
	Pos   source.Span
	Value float64
}

type LiteralChar struct {
	Pos   source.Span
	Value byte
}

type LiteralBool struct {
	Pos   source.Span
	Value bool
}

type LiteralNull struct {
	Pos source.Span
}

type LiteralNullPtr struct {
	Pos source.Span
}

type LiteralString struct {
	Pos   source.Span
	Value string
}

// Name resolves, in order: generic instantiation, function, builtin, type
// name, variable. TemplateArgs are type expressions and are only legal on
// generic struct/function names.
type Name struct {
	Pos          source.Span
	Name         string
	TemplateArgs []Expr
}

// FieldAccess selects a struct field or forms a bound member function.
// Pointers auto-deref: p.x on a struct pointer reads through it.
type FieldAccess struct {
	Pos   source.Span
	Expr  Expr
	Field string
}

// Deref reads through a pointer value.
type Deref struct {
	Pos  source.Span
	Expr Expr
}

// AddrOf takes the address of an addressable expression. In type position it
// denotes a pointer type.
type AddrOf struct {
	Pos  source.Span
	Expr Expr
}

// Subscript indexes an array or span. In type position with a constant index
// it denotes an array type.
type Subscript struct {
	Pos   source.Span
	Expr  Expr
	Index Expr
}

// Slice takes a sub-span: x[lo:hi], or the whole of an array/span as a span
// when both bounds are nil. In type position with nil bounds it denotes a
// span type.
type Slice struct {
	Pos    source.Span
	Expr   Expr
	Lo, Hi Expr
}

type Unary struct {
	Pos  source.Span
	Op   UnaryOp
	Expr Expr
}

type Binary struct {
	Pos      source.Span
	Op       BinaryOp
	LHS, RHS Expr
}

// Call invokes whatever the callee names: a function, a constructor, a bound
// member function, a builtin, or a function-pointer value.
type Call struct {
	Pos    source.Span
	Callee Expr
	Args   []Expr
}

// ArrayLit is [a, b, c]; all elements must share one type.
type ArrayLit struct {
	Pos   source.Span
	Elems []Expr
}

// RepeatLit is [v; n]: n copies of v.
type RepeatLit struct {
	Pos   source.Span
	Value Expr
	Count uint64
}

// SizeOf yields the byte size of its operand's type (the operand may itself
// be a type expression).
type SizeOf struct {
	Pos  source.Span
	Expr Expr
}

// TypeOf yields the type of its operand as a type value, without evaluating
// the operand at runtime.
type TypeOf struct {
	Pos  source.Span
	Expr Expr
}

// ConstQual marks a type expression const: T const.
type ConstQual struct {
	Pos  source.Span
	Expr Expr
}

// New places a value into an arena: a single object (Count nil, yields a
// pointer) or Count copies of it (yields a span).
type New struct {
	Pos   source.Span
	Arena Expr
	Value Expr
	Count Expr
}

// FuncPtrType is the type expression fn(A, B) -> R.
type FuncPtrType struct {
	Pos    source.Span
	Params []Expr
	Ret    Expr
}

func (n *LiteralI32) Span() source.Span     { return n.Pos }
func (n *LiteralI64) Span() source.Span     { return n.Pos }
func (n *LiteralU64) Span() source.Span     { return n.Pos }
func (n *LiteralF64) Span() source.Span     { return n.Pos }
func (n *LiteralChar) Span() source.Span    { return n.Pos }
func (n *LiteralBool) Span() source.Span    { return n.Pos }
func (n *LiteralNull) Span() source.Span    { return n.Pos }
func (n *LiteralNullPtr) Span() source.Span { return n.Pos }
func (n *LiteralString) Span() source.Span  { return n.Pos }
func (n *Name) Span() source.Span           { return n.Pos }
func (n *FieldAccess) Span() source.Span    { return n.Pos }
func (n *Deref) Span() source.Span          { return n.Pos }
func (n *AddrOf) Span() source.Span         { return n.Pos }
func (n *Subscript) Span() source.Span      { return n.Pos }
func (n *Slice) Span() source.Span          { return n.Pos }
func (n *Unary) Span() source.Span          { return n.Pos }
func (n *Binary) Span() source.Span         { return n.Pos }
func (n *Call) Span() source.Span           { return n.Pos }
func (n *ArrayLit) Span() source.Span       { return n.Pos }
func (n *RepeatLit) Span() source.Span      { return n.Pos }
func (n *SizeOf) Span() source.Span         { return n.Pos }
func (n *TypeOf) Span() source.Span         { return n.Pos }
func (n *ConstQual) Span() source.Span      { return n.Pos }
func (n *New) Span() source.Span            { return n.Pos }
func (n *FuncPtrType) Span() source.Span    { return n.Pos }

func (*LiteralI32) exprNode()     {}
func (*LiteralI64) exprNode()     {}
func (*LiteralU64) exprNode()     {}
func (*LiteralF64) exprNode()     {}
func (*LiteralChar) exprNode()    {}
func (*LiteralBool) exprNode()    {}
func (*LiteralNull) exprNode()    {}
func (*LiteralNullPtr) exprNode() {}
func (*LiteralString) exprNode()  {}
func (*Name) exprNode()           {}
func (*FieldAccess) exprNode()    {}
func (*Deref) exprNode()          {}
func (*AddrOf) exprNode()         {}
func (*Subscript) exprNode()      {}
func (*Slice) exprNode()          {}
func (*Unary) exprNode()          {}
func (*Binary) exprNode()         {}
func (*Call) exprNode()           {}
func (*ArrayLit) exprNode()       {}
func (*RepeatLit) exprNode()      {}
func (*SizeOf) exprNode()         {}
func (*TypeOf) exprNode()         {}
func (*ConstQual) exprNode()      {}
func (*New) exprNode()            {}
func (*FuncPtrType) exprNode()    {}
