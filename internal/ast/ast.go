// Package ast defines the typed syntax tree the compiler consumes. The tree
// arrives fully parsed: a front end (or a test) constructs it directly, or it
// is loaded from a serialized tree file. Every node carries the source span
// it was built from so diagnostics can point back into the file.
package ast

import "flint/internal/source"

// Node is anything with a source location.
type Node interface {
	Span() source.Span
}

// Expr nodes produce a value (or, in type position, denote a type).
type Expr interface {
	Node
	exprNode()
}

// Stmt nodes are executed for effect.
type Stmt interface {
	Node
	stmtNode()
}

// Param is a named, typed slot: a function parameter or a struct field.
// Type is a type expression, resolved by the compiler.
type Param struct {
	Name string
	Type Expr
}
