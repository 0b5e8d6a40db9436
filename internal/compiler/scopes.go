package compiler

import (
	"flint/internal/bytecode"
	"flint/internal/types"
)

type scopeKind uint8

const (
	scopeBlock scopeKind = iota
	scopeFunction
	scopeLoop
)

// variable is one declared name. Its offset is frame-relative inside a
// function and absolute at the top level.
type variable struct {
	name    string
	typ     *types.Type
	offset  uint64
	size    uint64
	isLocal bool
}

// loopPatches collects the operand offsets of break and continue jumps so
// the loop can fill the targets in once it knows where it ends.
type loopPatches struct {
	breaks    []int
	continues []int
}

// scope is one lexical region of a frame. Storage is bump-allocated: each
// declaration takes the next free byte range, and closing the scope frees
// exactly the bytes the scope allocated.
type scope struct {
	kind  scopeKind
	start uint64
	next  uint64
	vars  []variable
	loop  *loopPatches // scopeLoop only
}

func (s *scope) size() uint64 { return s.next - s.start }

func (s *scope) declare(name string, typ *types.Type, size uint64, isLocal bool) bool {
	for _, v := range s.vars {
		if v.name == name {
			return false
		}
	}
	s.vars = append(s.vars, variable{name: name, typ: typ, offset: s.next, size: size, isLocal: isLocal})
	s.next += size
	return true
}

func (s *scope) find(name string) (variable, bool) {
	for _, v := range s.vars {
		if v.name == name {
			return v, true
		}
	}
	return variable{}, false
}

// frame is the per-function compilation context. frames[0] is the top level;
// its variables are globals addressed absolutely.
type frame struct {
	fn        *funcInfo
	scopes    []*scope
	templates map[string]*types.Type
	isLocal   bool
}

func (f *frame) top() *scope { return f.scopes[len(f.scopes)-1] }

func (f *frame) find(name string) (variable, bool) {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if v, ok := f.scopes[i].find(name); ok {
			return v, true
		}
	}
	return variable{}, false
}

func (f *frame) inLoop() bool {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if f.scopes[i].kind == scopeLoop {
			return true
		}
	}
	return false
}

func (f *frame) loopInfo() *loopPatches {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if f.scopes[i].kind == scopeLoop {
			return f.scopes[i].loop
		}
	}
	return nil
}

// openScope starts a lexical region. Function scopes start above the call
// header; everything else continues from the enclosing scope's next free
// byte.
func (c *Compiler) openScope(kind scopeKind) {
	f := c.frame()
	var start uint64
	switch {
	case kind == scopeFunction:
		start = frameHeaderSize
	case len(f.scopes) > 0:
		start = f.top().next
	}
	s := &scope{kind: kind, start: start, next: start}
	if kind == scopeLoop {
		s.loop = &loopPatches{}
	}
	f.scopes = append(f.scopes, s)
}

// closeScope emits the scope's runtime cleanup (drops in reverse declaration
// order, then one pop of the scope's storage) and discards it.
func (c *Compiler) closeScope() {
	f := c.frame()
	s := f.top()
	c.emitScopeCleanup(s, true)
	f.scopes = f.scopes[:len(f.scopes)-1]
}

// closeScopeSilent discards a scope without emitting cleanup. Used after a
// function body where every path already returned: cleanup code there would
// be unreachable.
func (c *Compiler) closeScopeSilent() {
	f := c.frame()
	f.scopes = f.scopes[:len(f.scopes)-1]
}

func (c *Compiler) emitScopeCleanup(s *scope, pop bool) {
	for i := len(s.vars) - 1; i >= 0; i-- {
		c.emitVarDrop(s.vars[i])
	}
	if n := s.size(); pop && n > 0 {
		c.emitU64(bytecode.OpPop, n)
	}
}

// handleLoopExit emits cleanup for every scope between the jump point and
// the innermost loop, exclusive. The loop scope itself is cleaned up at the
// loop's own close, where breaks land.
func (c *Compiler) handleLoopExit() {
	f := c.frame()
	for i := len(f.scopes) - 1; i >= 0 && f.scopes[i].kind != scopeLoop; i-- {
		c.emitScopeCleanup(f.scopes[i], true)
	}
}

// handleFunctionExit emits drops for every live scope of the frame. Nothing
// is popped: the return instruction truncates the stack and the return value
// sits on top of it.
func (c *Compiler) handleFunctionExit() {
	f := c.frame()
	for i := len(f.scopes) - 1; i >= 0; i-- {
		c.emitScopeCleanup(f.scopes[i], false)
	}
}
