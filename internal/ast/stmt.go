package ast

import "flint/internal/source"

// Block runs its statements in order inside a fresh scope.
type Block struct {
	Pos   source.Span
	Stmts []Stmt
}

// ExprStmt evaluates an expression and discards the result.
type ExprStmt struct {
	Pos  source.Span
	Expr Expr
}

// Decl introduces a variable: let name = value, or let name: Type = value.
// Type is nil when the declared type is the value's type.
type Decl struct {
	Pos   source.Span
	Name  string
	Type  Expr
	Value Expr
}

// ArenaDecl introduces a named arena whose lifetime is the enclosing scope.
type ArenaDecl struct {
	Pos  source.Span
	Name string
}

// Assign stores Value into the location named by Target.
type Assign struct {
	Pos    source.Span
	Target Expr
	Value  Expr
}

type If struct {
	Pos  source.Span
	Cond Expr
	Then Stmt
	Else Stmt
}

// Loop repeats its body until a break.
type Loop struct {
	Pos  source.Span
	Body Stmt
}

type While struct {
	Pos  source.Span
	Cond Expr
	Body Stmt
}

// For iterates an array, span, or array pointer: for name in iter { ... }.
type For struct {
	Pos  source.Span
	Name string
	Iter Expr
	Body Stmt
}

type Break struct {
	Pos source.Span
}

type Continue struct {
	Pos source.Span
}

type Return struct {
	Pos   source.Span
	Value Expr
}

// Function declares a function. TemplateParams non-empty makes it generic:
// the body is stashed and compiled per instantiation.
type Function struct {
	Pos            source.Span
	Name           string
	TemplateParams []string
	Params         []Param
	Ret            Expr // nil means null
	Body           Stmt
}

// Struct declares a struct type with optional member functions. Member
// functions take the instance pointer as their implicit first parameter.
type Struct struct {
	Pos            source.Span
	Name           string
	TemplateParams []string
	Fields         []Param
	Funcs          []*Function
}

// Assert evaluates a bool and halts the program when it is false.
type Assert struct {
	Pos  source.Span
	Cond Expr
}

// Print writes Format to standard output with each {} replaced by the next
// argument, rendered per its type.
type Print struct {
	Pos    source.Span
	Format string
	Args   []Expr
}

func (n *Block) Span() source.Span     { return n.Pos }
func (n *ExprStmt) Span() source.Span  { return n.Pos }
func (n *Decl) Span() source.Span      { return n.Pos }
func (n *ArenaDecl) Span() source.Span { return n.Pos }
func (n *Assign) Span() source.Span    { return n.Pos }
func (n *If) Span() source.Span        { return n.Pos }
func (n *Loop) Span() source.Span      { return n.Pos }
func (n *While) Span() source.Span     { return n.Pos }
func (n *For) Span() source.Span       { return n.Pos }
func (n *Break) Span() source.Span     { return n.Pos }
func (n *Continue) Span() source.Span  { return n.Pos }
func (n *Return) Span() source.Span    { return n.Pos }
func (n *Function) Span() source.Span  { return n.Pos }
func (n *Struct) Span() source.Span    { return n.Pos }
func (n *Assert) Span() source.Span    { return n.Pos }
func (n *Print) Span() source.Span     { return n.Pos }

func (*Block) stmtNode()     {}
func (*ExprStmt) stmtNode()  {}
func (*Decl) stmtNode()      {}
func (*ArenaDecl) stmtNode() {}
func (*Assign) stmtNode()    {}
func (*If) stmtNode()        {}
func (*Loop) stmtNode()      {}
func (*While) stmtNode()     {}
func (*For) stmtNode()       {}
func (*Break) stmtNode()     {}
func (*Continue) stmtNode()  {}
func (*Return) stmtNode()    {}
func (*Function) stmtNode()  {}
func (*Struct) stmtNode()    {}
func (*Assert) stmtNode()    {}
func (*Print) stmtNode()     {}
