// Package compiler lowers typed syntax trees into executable bytecode. One
// recursive descent drives everything: types are sized to exact byte
// layouts, variables are bump-allocated into lexical scopes, forward jumps
// are patched once their targets are known, and generic definitions are
// compiled per concrete instantiation on first reference. Compilation is
// fail-fast: the first diagnostic terminates it.
package compiler

import (
	"bytes"
	"fmt"
	"strings"

	"flint/internal/ast"
	"flint/internal/builtins"
	"flint/internal/bytecode"
	"flint/internal/diag"
	"flint/internal/source"
	"flint/internal/types"
)

// frameHeaderSize is the in-band call header: saved frame base, saved
// program counter and return-value size, 8 bytes each. A function's locals
// start above it; its arguments directly follow it.
const frameHeaderSize = 3 * 8

// Options configures a compilation.
type Options struct {
	// Files resolves spans to line numbers for assert messages. When nil,
	// a span's start offset stands in for the line.
	Files *source.FileSet

	// BoundsChecks makes every subscript emit an assert against the
	// container length.
	BoundsChecks bool
}

// funcInfo is one compiled function. The id is assigned before the body is
// compiled so self- and forward-references resolve; entry and end are
// offsets into the shared code buffer.
type funcInfo struct {
	name   string
	id     uint64
	entry  uint64
	end    uint64
	params []*types.Type
	ret    *types.Type
}

// structCtx tracks which struct's member functions are being compiled, and
// the template substitutions its generic parameters carry. A nil self means
// the global namespace.
type structCtx struct {
	self      *types.Type
	templates map[string]*types.Type
}

// Compiler holds all state for one compilation.
type Compiler struct {
	opts Options
	code []byte
	rom  []byte
	cat  *types.Catalog

	funcs       []*funcInfo
	funcsByName map[string]*funcInfo

	funcTemplates   map[string]*ast.Function
	structTemplates map[string]*ast.Struct
	structArgs      map[string]map[string]*types.Type

	frames  []*frame
	structs []*structCtx
}

// bailout carries the first diagnostic up through the recursion.
type bailout struct {
	err *diag.CompileError
}

// Compile lowers a top-level statement sequence into a runnable program.
func Compile(root ast.Stmt, opts Options) (prog *bytecode.Program, err error) {
	c := &Compiler{
		opts:            opts,
		cat:             types.NewCatalog(),
		funcsByName:     make(map[string]*funcInfo),
		funcTemplates:   make(map[string]*ast.Function),
		structTemplates: make(map[string]*ast.Struct),
		structArgs:      make(map[string]map[string]*types.Type),
	}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()

	top := &funcInfo{name: "<top level>", ret: types.Null()}
	c.funcs = append(c.funcs, top)
	c.frames = append(c.frames, &frame{fn: top})
	c.structs = append(c.structs, &structCtx{})

	c.openScope(scopeBlock)
	c.stmt(root)
	c.closeScope()
	c.emit(bytecode.OpEndProgram)
	top.end = c.here()

	funcs := make([]bytecode.Function, len(c.funcs))
	for i, f := range c.funcs {
		funcs[i] = bytecode.Function{Name: f.name, ID: f.id, Entry: f.entry, End: f.end}
	}
	return &bytecode.Program{Rom: c.rom, Code: c.code, Funcs: funcs}, nil
}

func (c *Compiler) errorf(code diag.Code, span source.Span, format string, args ...any) {
	panic(bailout{err: diag.Errorf(code, span, format, args...)})
}

func (c *Compiler) frame() *frame         { return c.frames[len(c.frames)-1] }
func (c *Compiler) structCtx() *structCtx { return c.structs[len(c.structs)-1] }
func (c *Compiler) inFunction() bool      { return len(c.frames) > 1 }

// Emit helpers -----------------------------------------------------------

func (c *Compiler) here() uint64 { return uint64(len(c.code)) }

func (c *Compiler) emit(op bytecode.Op) {
	c.code = bytecode.AppendOp(c.code, op)
}

func (c *Compiler) emitByte(op bytecode.Op, v byte) {
	c.code = bytecode.AppendByte(bytecode.AppendOp(c.code, op), v)
}

func (c *Compiler) emitU64(op bytecode.Op, v uint64) {
	c.code = bytecode.AppendU64(bytecode.AppendOp(c.code, op), v)
}

func (c *Compiler) emitU32(op bytecode.Op, v uint32) {
	c.code = bytecode.AppendU32(bytecode.AppendOp(c.code, op), v)
}

func (c *Compiler) emitF64(op bytecode.Op, v float64) {
	c.code = bytecode.AppendF64(bytecode.AppendOp(c.code, op), v)
}

func (c *Compiler) emit2U64(op bytecode.Op, a, b uint64) {
	c.code = bytecode.AppendU64(bytecode.AppendU64(bytecode.AppendOp(c.code, op), a), b)
}

// emitJump emits a jump with a placeholder target and returns the operand
// offset for patching.
func (c *Compiler) emitJump(op bytecode.Op) int {
	c.emit(op)
	at := len(c.code)
	c.code = bytecode.AppendU64(c.code, 0)
	return at
}

func (c *Compiler) patchHere(at int) {
	bytecode.PatchU64(c.code, at, c.here())
}

// intern stores literal data in the read-only segment, reusing any existing
// occurrence, and returns its offset.
func (c *Compiler) intern(s string) uint64 {
	if i := bytes.Index(c.rom, []byte(s)); i >= 0 {
		return uint64(i)
	}
	at := uint64(len(c.rom))
	c.rom = append(c.rom, s...)
	return at
}

func (c *Compiler) sizeOf(span source.Span, t *types.Type) uint64 {
	n, err := c.cat.SizeOf(t)
	if err != nil {
		c.errorf(diag.ComUnknownType, span, "%v", err)
	}
	return uint64(n)
}

// lineOf is best-effort: without a file set the span's start offset stands
// in for the line number.
func (c *Compiler) lineOf(span source.Span) uint32 {
	if c.opts.Files != nil {
		start, _ := c.opts.Files.Resolve(span)
		return start.Line
	}
	return span.Start
}

// Naming and type resolution --------------------------------------------

// makeType resolves a bare name to a type: template substitutions first,
// then the fundamentals, then a struct of that name.
func (c *Compiler) makeType(name string) *types.Type {
	if t, ok := c.frame().templates[name]; ok {
		return t
	}
	if t, ok := c.structCtx().templates[name]; ok {
		return t
	}
	switch name {
	case "null":
		return types.Null()
	case "nullptr":
		return types.NullPtr()
	case "bool":
		return types.Bool()
	case "char":
		return types.Char()
	case "i32":
		return types.I32()
	case "i64":
		return types.I64()
	case "u64":
		return types.U64()
	case "f64":
		return types.F64()
	case "arena":
		return types.Arena()
	}
	return types.Struct(name)
}

// resolveType evaluates a type expression. null and nullptr literals are
// their own types.
func (c *Compiler) resolveType(e ast.Expr) *types.Type {
	t := c.typeOf(e)
	if t.Is(types.KindNull) || t.Is(types.KindNullPtr) {
		return t
	}
	if !t.IsTypeValue() {
		c.errorf(diag.ComUnknownType, e.Span(), "expected type expression, got %s", t)
	}
	return t.Denoted()
}

func (c *Compiler) resolveTemplateArgs(args []ast.Expr) []*types.Type {
	resolved := make([]*types.Type, len(args))
	for i, a := range args {
		resolved[i] = c.resolveType(a)
	}
	return resolved
}

func typeList(ts []*types.Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func templateSuffix(args []*types.Type) string {
	keys := make([]string, len(args))
	for i, t := range args {
		keys[i] = t.Key()
	}
	return "!(" + strings.Join(keys, ", ") + ")"
}

// structName resolves a possibly generic struct reference to its
// (substituted) type name.
func (c *Compiler) structName(name string, templateArgs []ast.Expr) *types.Type {
	if len(templateArgs) == 0 {
		return c.makeType(name)
	}
	return c.makeType(name + templateSuffix(c.resolveTemplateArgs(templateArgs)))
}

// fnName builds a function's qualified name: "Struct::name!(T1, T2)".
func (c *Compiler) fnName(owner *types.Type, name string, templateArgs []ast.Expr) string {
	full := name
	if owner != nil {
		full = owner.RemoveConst().Key() + "::" + name
	}
	if len(templateArgs) > 0 {
		full += templateSuffix(c.resolveTemplateArgs(templateArgs))
	}
	return full
}

func (c *Compiler) buildTemplateMap(span source.Span, names []string, args []ast.Expr) map[string]*types.Type {
	if len(args) != len(names) {
		c.errorf(diag.ComArityMismatch, span, "bad number of template args: got %d, want %d", len(args), len(names))
	}
	m := make(map[string]*types.Type, len(names))
	for i, name := range names {
		if _, dup := m[name]; dup {
			c.errorf(diag.ComDuplicateTemplate, span, "duplicate template name %s", name)
		}
		m[name] = c.resolveType(args[i])
	}
	return m
}

// Variables ---------------------------------------------------------------

func (c *Compiler) declareVar(span source.Span, name string, t *types.Type) {
	f := c.frame()
	if !f.top().declare(name, t, c.sizeOf(span, t), f.isLocal) {
		c.errorf(diag.ComRedeclaration, span, "name already in use: '%s'", name)
	}
}

// pushVarAddr emits the address of a variable: frame-relative inside a
// function, absolute for globals. Function locals shadow globals.
func (c *Compiler) pushVarAddr(span source.Span, name string) *types.Type {
	if c.inFunction() {
		if v, ok := c.frame().find(name); ok {
			c.emitU64(bytecode.OpPushPtrLocal, v.offset)
			return v.typ
		}
	}
	v, ok := c.frames[0].find(name)
	if !ok {
		c.errorf(diag.ComUnresolvedName, span, "could not find variable '%s'", name)
	}
	c.emitU64(bytecode.OpPushPtrGlobal, v.offset)
	return v.typ
}

func (c *Compiler) loadVar(span source.Span, name string) *types.Type {
	t := c.pushVarAddr(span, name)
	c.emitU64(bytecode.OpLoad, c.sizeOf(span, t))
	return t
}

func (c *Compiler) saveVar(span source.Span, name string) {
	t := c.pushVarAddr(span, name)
	c.emitU64(bytecode.OpStore, c.sizeOf(span, t))
}

// autoDeref emits one load per pointer layer so member access works through
// pointers. Returns the stripped type.
func (c *Compiler) autoDeref(t *types.Type) *types.Type {
	for t.Is(types.KindPointer) {
		c.emitU64(bytecode.OpLoad, types.PtrSize)
		t = t.Elem
	}
	return t
}

// Name resolution ---------------------------------------------------------

type nameKind uint8

const (
	refFunc nameKind = iota
	refBuiltin
	refType
	refVar
)

type nameRef struct {
	kind nameKind
	fn   *funcInfo        // refFunc
	bID  uint64           // refBuiltin
	b    builtins.Builtin // refBuiltin
	t    *types.Type      // refType: the named type; refVar: the variable's type
}

// resolveName classifies a name, instantiating any generic function or
// struct it references. Lookup order follows declaration strength: function
// templates, struct templates, functions, builtins, types, variables.
func (c *Compiler) resolveName(n *ast.Name) nameRef {
	bare := c.fnName(nil, n.Name, nil)
	full := c.fnName(nil, n.Name, n.TemplateArgs)

	if tmpl, ok := c.funcTemplates[bare]; ok {
		if _, compiled := c.funcsByName[full]; !compiled {
			m := c.buildTemplateMap(n.Pos, tmpl.TemplateParams, n.TemplateArgs)
			c.compileFunction(n.Pos, full, tmpl, m)
		}
	}

	sName := c.structName(n.Name, n.TemplateArgs)
	if tmpl, ok := c.structTemplates[n.Name]; ok && sName.Is(types.KindStruct) && !c.cat.Contains(sName) {
		c.instantiateStruct(n.Pos, sName, tmpl, n.TemplateArgs)
		return nameRef{kind: refType, t: sName}
	}

	if fn, ok := c.funcsByName[full]; ok {
		return nameRef{kind: refFunc, fn: fn}
	}

	for id, b := range builtins.All() {
		if b.Name == n.Name {
			if len(n.TemplateArgs) > 0 {
				c.errorf(diag.ComBadOperator, n.Pos, "builtins cannot be templated")
			}
			return nameRef{kind: refBuiltin, bID: uint64(id), b: b}
		}
	}

	if !sName.Is(types.KindStruct) || c.cat.Contains(sName) {
		return nameRef{kind: refType, t: sName}
	}

	if len(n.TemplateArgs) > 0 {
		c.errorf(diag.ComUnresolvedName, n.Pos, "variables cannot be templated (%s)", n.Name)
	}
	if v, ok := c.frame().find(n.Name); ok && c.inFunction() {
		return nameRef{kind: refVar, t: v.typ}
	}
	if v, ok := c.frames[0].find(n.Name); ok {
		return nameRef{kind: refVar, t: v.typ}
	}
	c.errorf(diag.ComUnresolvedName, n.Pos, "could not find variable '%s'", n.Name)
	return nameRef{}
}

// instantiateStruct compiles one concrete instance of a generic struct:
// fields are resolved under the substitution map and every member function
// is stashed for compilation at its first call site.
func (c *Compiler) instantiateStruct(span source.Span, sName *types.Type, tmpl *ast.Struct, templateArgs []ast.Expr) {
	m := c.buildTemplateMap(span, tmpl.TemplateParams, templateArgs)
	c.structs = append(c.structs, &structCtx{self: sName, templates: m})

	fields := make([]types.Field, len(tmpl.Fields))
	for i, f := range tmpl.Fields {
		fields[i] = types.Field{Name: f.Name, Type: c.resolveType(f.Type)}
	}
	if !c.cat.Register(sName.Name, fields) {
		c.errorf(diag.ComRedeclaration, span, "type '%s' already defined", sName.Name)
	}
	c.structArgs[sName.Name] = m

	for _, fn := range tmpl.Funcs {
		key := c.fnName(sName, fn.Name, nil)
		if _, dup := c.funcTemplates[key]; dup {
			c.errorf(diag.ComDuplicateTemplate, span, "function template named '%s' already defined", key)
		}
		c.funcTemplates[key] = fn
	}

	c.structs = c.structs[:len(c.structs)-1]
}

// Functions ---------------------------------------------------------------

// compileFunction registers and compiles one function body. The id is taken
// before the body compiles so recursive references resolve; the definition
// site emits a jump over the body so control never falls into it.
func (c *Compiler) compileFunction(span source.Span, fullName string, fn *ast.Function, templates map[string]*types.Type) {
	owner := c.structCtx().self
	if owner != nil {
		if len(fn.Params) == 0 {
			c.errorf(diag.ComArityMismatch, span, "member functions must have at least one arg")
		}
		actual := c.resolveType(fn.Params[0].Type)
		expected := types.PointerTo(owner.AddConst()).AddConst()
		if !constConvertible(actual, expected) {
			c.errorf(diag.ComTypeMismatch, span,
				"first parameter to a struct member function must be a pointer to '%s', got '%s'", owner, actual)
		}
	}

	info := &funcInfo{name: fullName, id: uint64(len(c.funcs))}
	if _, dup := c.funcsByName[fullName]; dup {
		c.errorf(diag.ComRedeclaration, span, "a function with the name '%s' already exists", fullName)
	}
	c.funcs = append(c.funcs, info)
	c.funcsByName[fullName] = info
	c.frames = append(c.frames, &frame{fn: info, templates: templates, isLocal: true})

	over := c.emitJump(bytecode.OpJump)
	info.entry = c.here()

	c.openScope(scopeFunction)
	for _, p := range fn.Params {
		t := c.resolveType(p.Type)
		c.declareVar(span, p.Name, t)
		info.params = append(info.params, t)
	}
	info.ret = types.Null()
	if fn.Ret != nil {
		info.ret = c.resolveType(fn.Ret)
	}

	// Compiling the body can itself compile other generic instantiations.
	c.stmt(fn.Body)

	if !endsInReturn(fn.Body) {
		if !info.ret.Is(types.KindNull) {
			c.errorf(diag.ComMissingReturn, span, "fn '%s' does not end in a return (needs %s)", fullName, info.ret)
		}
		c.emit(bytecode.OpPushNull)
		c.handleFunctionExit()
		c.emit(bytecode.OpReturn)
	}
	c.closeScopeSilent()

	c.frames = c.frames[:len(c.frames)-1]
	info.end = c.here()
	c.patchHere(over)
}

// endsInReturn is a textual check: the last statement of a sequence, or an
// if whose branches both end in a return. A loop that always returns is not
// recognised; such bodies need an explicit trailing return.
func endsInReturn(s ast.Stmt) bool {
	switch n := s.(type) {
	case *ast.Block:
		if len(n.Stmts) == 0 {
			return false
		}
		return endsInReturn(n.Stmts[len(n.Stmts)-1])
	case *ast.If:
		if n.Else == nil {
			return false
		}
		return endsInReturn(n.Then) && endsInReturn(n.Else)
	case *ast.Return:
		return true
	default:
		return false
	}
}

// Loops -------------------------------------------------------------------

// pushLoop brackets a body with the single loop primitive: a loop scope
// holding the patch lists, an inner scope per iteration, a jump back to the
// top, and break/continue fixup once the end is known.
func (c *Compiler) pushLoop(body func()) {
	c.openScope(scopeLoop)

	begin := c.here()
	c.openScope(scopeBlock)
	body()
	c.closeScope()
	c.emitU64(bytecode.OpJump, begin)

	lp := c.frame().top().loop
	for _, at := range lp.breaks {
		c.patchHere(at)
	}
	for _, at := range lp.continues {
		bytecode.PatchU64(c.code, at, begin)
	}

	c.closeScope()
}

func (c *Compiler) pushBreak(span source.Span) {
	f := c.frame()
	if !f.inLoop() {
		c.errorf(diag.ComBreakOutsideLoop, span, "cannot use 'break' outside of a loop")
	}
	c.handleLoopExit()
	at := c.emitJump(bytecode.OpJump)
	f.loopInfo().breaks = append(f.loopInfo().breaks, at)
}

func (c *Compiler) pushContinue(span source.Span) {
	f := c.frame()
	if !f.inLoop() {
		c.errorf(diag.ComBreakOutsideLoop, span, "cannot use 'continue' outside of a loop")
	}
	c.handleLoopExit()
	at := c.emitJump(bytecode.OpJump)
	f.loopInfo().continues = append(f.loopInfo().continues, at)
}

// addressable reports whether an expression names storage, i.e. compiles in
// address mode.
func addressable(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Name, *ast.FieldAccess, *ast.Deref, *ast.Subscript:
		return true
	}
	return false
}

// constructorParams: structs construct from their fields, fundamentals from
// a single value of the same type.
func (c *Compiler) constructorParams(span source.Span, t *types.Type) []*types.Type {
	if t.IsFundamental() {
		return []*types.Type{t}
	}
	fields := c.cat.FieldsOf(t)
	if t.Is(types.KindStruct) && fields == nil {
		c.errorf(diag.ComUnknownType, span, "unknown type '%s'", t)
	}
	params := make([]*types.Type, len(fields))
	for i, f := range fields {
		params[i] = f.Type
	}
	return params
}

func (c *Compiler) assertLine(span source.Span, what string) (uint64, uint64) {
	msg := fmt.Sprintf("%s at line %d", what, c.lineOf(span))
	return c.intern(msg), uint64(len(msg))
}
