package ast

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"flint/internal/source"
)

// Tree files (.flt) carry a serialized syntax tree: the handoff format
// between an external front end and this toolchain. Nodes are encoded as a
// kind byte, the span, then the node's fields in declaration order.

const treeSchemaVersion uint16 = 2

// Tree is the contents of one tree file: the root statement plus the source
// text it was produced from. The source rides along so diagnostics and
// assert messages can name real lines without the original file on disk;
// spans in Root address it as file 0. A front end may omit it.
type Tree struct {
	SourcePath string
	Source     []byte
	Root       Stmt
}

// Node kind tags. Kind 0 marks an absent (nil) node so optional children
// need no out-of-band presence flags. Append only.
const (
	kindNil uint8 = iota

	exprLiteralI32
	exprLiteralI64
	exprLiteralU64
	exprLiteralF64
	exprLiteralChar
	exprLiteralBool
	exprLiteralNull
	exprLiteralNullPtr
	exprLiteralString
	exprName
	exprFieldAccess
	exprDeref
	exprAddrOf
	exprSubscript
	exprSlice
	exprUnary
	exprBinary
	exprCall
	exprArrayLit
	exprRepeatLit
	exprSizeOf
	exprTypeOf
	exprConstQual
	exprNew
	exprFuncPtrType

	stmtBlock
	stmtExpr
	stmtDecl
	stmtArenaDecl
	stmtAssign
	stmtIf
	stmtLoop
	stmtWhile
	stmtFor
	stmtBreak
	stmtContinue
	stmtReturn
	stmtFunction
	stmtStruct
	stmtAssert
	stmtPrint
)

// SaveTree serializes a tree to path, writing a temp file and renaming so
// readers never observe a partial tree.
func SaveTree(path string, tree *Tree) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	defer os.Remove(tmpName)

	enc := msgpack.NewEncoder(f)
	if err := enc.EncodeUint16(treeSchemaVersion); err != nil {
		f.Close()
		return err
	}
	if err := enc.EncodeString(tree.SourcePath); err != nil {
		f.Close()
		return err
	}
	if err := enc.EncodeBytes(tree.Source); err != nil {
		f.Close()
		return err
	}
	if err := encodeStmt(enc, tree.Root); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// LoadTree reads a tree previously written by SaveTree.
func LoadTree(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := msgpack.NewDecoder(f)
	schema, err := dec.DecodeUint16()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if schema != treeSchemaVersion {
		return nil, errors.New("tree file has an unsupported schema version; regenerate it")
	}
	tree := &Tree{}
	if tree.SourcePath, err = dec.DecodeString(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if tree.Source, err = dec.DecodeBytes(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if tree.Root, err = decodeStmt(dec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if tree.Root == nil {
		return nil, fmt.Errorf("decode %s: empty tree", path)
	}
	return tree, nil
}

func encodeSpan(enc *msgpack.Encoder, s source.Span) error {
	if err := enc.EncodeUint32(uint32(s.File)); err != nil {
		return err
	}
	if err := enc.EncodeUint32(s.Start); err != nil {
		return err
	}
	return enc.EncodeUint32(s.End)
}

func decodeSpan(dec *msgpack.Decoder) (source.Span, error) {
	file, err := dec.DecodeUint32()
	if err != nil {
		return source.Span{}, err
	}
	start, err := dec.DecodeUint32()
	if err != nil {
		return source.Span{}, err
	}
	end, err := dec.DecodeUint32()
	if err != nil {
		return source.Span{}, err
	}
	return source.Span{File: source.FileID(file), Start: start, End: end}, nil
}

func encodeNode(enc *msgpack.Encoder, kind uint8, span source.Span) error {
	if err := enc.EncodeUint8(kind); err != nil {
		return err
	}
	return encodeSpan(enc, span)
}

func encodeExprs(enc *msgpack.Encoder, exprs []Expr) error {
	if err := enc.EncodeArrayLen(len(exprs)); err != nil {
		return err
	}
	for _, e := range exprs {
		if err := encodeExpr(enc, e); err != nil {
			return err
		}
	}
	return nil
}

func decodeExprs(dec *msgpack.Decoder) ([]Expr, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	exprs := make([]Expr, n)
	for i := range exprs {
		if exprs[i], err = decodeExpr(dec); err != nil {
			return nil, err
		}
	}
	return exprs, nil
}

func encodeExpr(enc *msgpack.Encoder, e Expr) error {
	if e == nil {
		return enc.EncodeUint8(kindNil)
	}
	switch e := e.(type) {
	case *LiteralI32:
		if err := encodeNode(enc, exprLiteralI32, e.Pos); err != nil {
			return err
		}
		return enc.EncodeInt32(e.Value)
	case *LiteralI64:
		if err := encodeNode(enc, exprLiteralI64, e.Pos); err != nil {
			return err
		}
		return enc.EncodeInt64(e.Value)
	case *LiteralU64:
		if err := encodeNode(enc, exprLiteralU64, e.Pos); err != nil {
			return err
		}
		return enc.EncodeUint64(e.Value)
	case *LiteralF64:
		if err := encodeNode(enc, exprLiteralF64, e.Pos); err != nil {
			return err
		}
		return enc.EncodeFloat64(e.Value)
	case *LiteralChar:
		if err := encodeNode(enc, exprLiteralChar, e.Pos); err != nil {
			return err
		}
		return enc.EncodeUint8(e.Value)
	case *LiteralBool:
		if err := encodeNode(enc, exprLiteralBool, e.Pos); err != nil {
			return err
		}
		return enc.EncodeBool(e.Value)
	case *LiteralNull:
		return encodeNode(enc, exprLiteralNull, e.Pos)
	case *LiteralNullPtr:
		return encodeNode(enc, exprLiteralNullPtr, e.Pos)
	case *LiteralString:
		if err := encodeNode(enc, exprLiteralString, e.Pos); err != nil {
			return err
		}
		return enc.EncodeString(e.Value)
	case *Name:
		if err := encodeNode(enc, exprName, e.Pos); err != nil {
			return err
		}
		if err := enc.EncodeString(e.Name); err != nil {
			return err
		}
		return encodeExprs(enc, e.TemplateArgs)
	case *FieldAccess:
		if err := encodeNode(enc, exprFieldAccess, e.Pos); err != nil {
			return err
		}
		if err := encodeExpr(enc, e.Expr); err != nil {
			return err
		}
		return enc.EncodeString(e.Field)
	case *Deref:
		if err := encodeNode(enc, exprDeref, e.Pos); err != nil {
			return err
		}
		return encodeExpr(enc, e.Expr)
	case *AddrOf:
		if err := encodeNode(enc, exprAddrOf, e.Pos); err != nil {
			return err
		}
		return encodeExpr(enc, e.Expr)
	case *Subscript:
		if err := encodeNode(enc, exprSubscript, e.Pos); err != nil {
			return err
		}
		if err := encodeExpr(enc, e.Expr); err != nil {
			return err
		}
		return encodeExpr(enc, e.Index)
	case *Slice:
		if err := encodeNode(enc, exprSlice, e.Pos); err != nil {
			return err
		}
		if err := encodeExpr(enc, e.Expr); err != nil {
			return err
		}
		if err := encodeExpr(enc, e.Lo); err != nil {
			return err
		}
		return encodeExpr(enc, e.Hi)
	case *Unary:
		if err := encodeNode(enc, exprUnary, e.Pos); err != nil {
			return err
		}
		if err := enc.EncodeUint8(uint8(e.Op)); err != nil {
			return err
		}
		return encodeExpr(enc, e.Expr)
	case *Binary:
		if err := encodeNode(enc, exprBinary, e.Pos); err != nil {
			return err
		}
		if err := enc.EncodeUint8(uint8(e.Op)); err != nil {
			return err
		}
		if err := encodeExpr(enc, e.LHS); err != nil {
			return err
		}
		return encodeExpr(enc, e.RHS)
	case *Call:
		if err := encodeNode(enc, exprCall, e.Pos); err != nil {
			return err
		}
		if err := encodeExpr(enc, e.Callee); err != nil {
			return err
		}
		return encodeExprs(enc, e.Args)
	case *ArrayLit:
		if err := encodeNode(enc, exprArrayLit, e.Pos); err != nil {
			return err
		}
		return encodeExprs(enc, e.Elems)
	case *RepeatLit:
		if err := encodeNode(enc, exprRepeatLit, e.Pos); err != nil {
			return err
		}
		if err := encodeExpr(enc, e.Value); err != nil {
			return err
		}
		return enc.EncodeUint64(e.Count)
	case *SizeOf:
		if err := encodeNode(enc, exprSizeOf, e.Pos); err != nil {
			return err
		}
		return encodeExpr(enc, e.Expr)
	case *TypeOf:
		if err := encodeNode(enc, exprTypeOf, e.Pos); err != nil {
			return err
		}
		return encodeExpr(enc, e.Expr)
	case *ConstQual:
		if err := encodeNode(enc, exprConstQual, e.Pos); err != nil {
			return err
		}
		return encodeExpr(enc, e.Expr)
	case *New:
		if err := encodeNode(enc, exprNew, e.Pos); err != nil {
			return err
		}
		if err := encodeExpr(enc, e.Arena); err != nil {
			return err
		}
		if err := encodeExpr(enc, e.Value); err != nil {
			return err
		}
		return encodeExpr(enc, e.Count)
	case *FuncPtrType:
		if err := encodeNode(enc, exprFuncPtrType, e.Pos); err != nil {
			return err
		}
		if err := encodeExprs(enc, e.Params); err != nil {
			return err
		}
		return encodeExpr(enc, e.Ret)
	default:
		return fmt.Errorf("unsupported expression node %T", e)
	}
}

func decodeExpr(dec *msgpack.Decoder) (Expr, error) {
	kind, err := dec.DecodeUint8()
	if err != nil {
		return nil, err
	}
	if kind == kindNil {
		return nil, nil
	}
	span, err := decodeSpan(dec)
	if err != nil {
		return nil, err
	}
	switch kind {
	case exprLiteralI32:
		v, err := dec.DecodeInt32()
		return &LiteralI32{Pos: span, Value: v}, err
	case exprLiteralI64:
		v, err := dec.DecodeInt64()
		return &LiteralI64{Pos: span, Value: v}, err
	case exprLiteralU64:
		v, err := dec.DecodeUint64()
		return &LiteralU64{Pos: span, Value: v}, err
	case exprLiteralF64:
		v, err := dec.DecodeFloat64()
		return &LiteralF64{Pos: span, Value: v}, err
	case exprLiteralChar:
		v, err := dec.DecodeUint8()
		return &LiteralChar{Pos: span, Value: v}, err
	case exprLiteralBool:
		v, err := dec.DecodeBool()
		return &LiteralBool{Pos: span, Value: v}, err
	case exprLiteralNull:
		return &LiteralNull{Pos: span}, nil
	case exprLiteralNullPtr:
		return &LiteralNullPtr{Pos: span}, nil
	case exprLiteralString:
		v, err := dec.DecodeString()
		return &LiteralString{Pos: span, Value: v}, err
	case exprName:
		name, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		args, err := decodeExprs(dec)
		return &Name{Pos: span, Name: name, TemplateArgs: args}, err
	case exprFieldAccess:
		expr, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		field, err := dec.DecodeString()
		return &FieldAccess{Pos: span, Expr: expr, Field: field}, err
	case exprDeref:
		expr, err := decodeExpr(dec)
		return &Deref{Pos: span, Expr: expr}, err
	case exprAddrOf:
		expr, err := decodeExpr(dec)
		return &AddrOf{Pos: span, Expr: expr}, err
	case exprSubscript:
		expr, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		index, err := decodeExpr(dec)
		return &Subscript{Pos: span, Expr: expr, Index: index}, err
	case exprSlice:
		expr, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		lo, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		hi, err := decodeExpr(dec)
		return &Slice{Pos: span, Expr: expr, Lo: lo, Hi: hi}, err
	case exprUnary:
		op, err := dec.DecodeUint8()
		if err != nil {
			return nil, err
		}
		expr, err := decodeExpr(dec)
		return &Unary{Pos: span, Op: UnaryOp(op), Expr: expr}, err
	case exprBinary:
		op, err := dec.DecodeUint8()
		if err != nil {
			return nil, err
		}
		lhs, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		rhs, err := decodeExpr(dec)
		return &Binary{Pos: span, Op: BinaryOp(op), LHS: lhs, RHS: rhs}, err
	case exprCall:
		callee, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		args, err := decodeExprs(dec)
		return &Call{Pos: span, Callee: callee, Args: args}, err
	case exprArrayLit:
		elems, err := decodeExprs(dec)
		return &ArrayLit{Pos: span, Elems: elems}, err
	case exprRepeatLit:
		value, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		count, err := dec.DecodeUint64()
		return &RepeatLit{Pos: span, Value: value, Count: count}, err
	case exprSizeOf:
		expr, err := decodeExpr(dec)
		return &SizeOf{Pos: span, Expr: expr}, err
	case exprTypeOf:
		expr, err := decodeExpr(dec)
		return &TypeOf{Pos: span, Expr: expr}, err
	case exprConstQual:
		expr, err := decodeExpr(dec)
		return &ConstQual{Pos: span, Expr: expr}, err
	case exprNew:
		arena, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		value, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		count, err := decodeExpr(dec)
		return &New{Pos: span, Arena: arena, Value: value, Count: count}, err
	case exprFuncPtrType:
		params, err := decodeExprs(dec)
		if err != nil {
			return nil, err
		}
		ret, err := decodeExpr(dec)
		return &FuncPtrType{Pos: span, Params: params, Ret: ret}, err
	default:
		return nil, fmt.Errorf("unknown expression kind %d", kind)
	}
}

func encodeParams(enc *msgpack.Encoder, params []Param) error {
	if err := enc.EncodeArrayLen(len(params)); err != nil {
		return err
	}
	for _, p := range params {
		if err := enc.EncodeString(p.Name); err != nil {
			return err
		}
		if err := encodeExpr(enc, p.Type); err != nil {
			return err
		}
	}
	return nil
}

func decodeParams(dec *msgpack.Decoder) ([]Param, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	params := make([]Param, n)
	for i := range params {
		if params[i].Name, err = dec.DecodeString(); err != nil {
			return nil, err
		}
		if params[i].Type, err = decodeExpr(dec); err != nil {
			return nil, err
		}
	}
	return params, nil
}

func encodeStrings(enc *msgpack.Encoder, strs []string) error {
	if err := enc.EncodeArrayLen(len(strs)); err != nil {
		return err
	}
	for _, s := range strs {
		if err := enc.EncodeString(s); err != nil {
			return err
		}
	}
	return nil
}

func decodeStrings(dec *msgpack.Decoder) ([]string, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	strs := make([]string, n)
	for i := range strs {
		if strs[i], err = dec.DecodeString(); err != nil {
			return nil, err
		}
	}
	return strs, nil
}

func encodeFunction(enc *msgpack.Encoder, fn *Function) error {
	if err := encodeNode(enc, stmtFunction, fn.Pos); err != nil {
		return err
	}
	if err := enc.EncodeString(fn.Name); err != nil {
		return err
	}
	if err := encodeStrings(enc, fn.TemplateParams); err != nil {
		return err
	}
	if err := encodeParams(enc, fn.Params); err != nil {
		return err
	}
	if err := encodeExpr(enc, fn.Ret); err != nil {
		return err
	}
	return encodeStmt(enc, fn.Body)
}

func decodeFunctionTail(dec *msgpack.Decoder, span source.Span) (*Function, error) {
	name, err := dec.DecodeString()
	if err != nil {
		return nil, err
	}
	tparams, err := decodeStrings(dec)
	if err != nil {
		return nil, err
	}
	params, err := decodeParams(dec)
	if err != nil {
		return nil, err
	}
	ret, err := decodeExpr(dec)
	if err != nil {
		return nil, err
	}
	body, err := decodeStmt(dec)
	if err != nil {
		return nil, err
	}
	return &Function{
		Pos: span, Name: name, TemplateParams: tparams,
		Params: params, Ret: ret, Body: body,
	}, nil
}

func encodeStmt(enc *msgpack.Encoder, s Stmt) error {
	if s == nil {
		return enc.EncodeUint8(kindNil)
	}
	switch s := s.(type) {
	case *Block:
		if err := encodeNode(enc, stmtBlock, s.Pos); err != nil {
			return err
		}
		if err := enc.EncodeArrayLen(len(s.Stmts)); err != nil {
			return err
		}
		for _, child := range s.Stmts {
			if err := encodeStmt(enc, child); err != nil {
				return err
			}
		}
		return nil
	case *ExprStmt:
		if err := encodeNode(enc, stmtExpr, s.Pos); err != nil {
			return err
		}
		return encodeExpr(enc, s.Expr)
	case *Decl:
		if err := encodeNode(enc, stmtDecl, s.Pos); err != nil {
			return err
		}
		if err := enc.EncodeString(s.Name); err != nil {
			return err
		}
		if err := encodeExpr(enc, s.Type); err != nil {
			return err
		}
		return encodeExpr(enc, s.Value)
	case *ArenaDecl:
		if err := encodeNode(enc, stmtArenaDecl, s.Pos); err != nil {
			return err
		}
		return enc.EncodeString(s.Name)
	case *Assign:
		if err := encodeNode(enc, stmtAssign, s.Pos); err != nil {
			return err
		}
		if err := encodeExpr(enc, s.Target); err != nil {
			return err
		}
		return encodeExpr(enc, s.Value)
	case *If:
		if err := encodeNode(enc, stmtIf, s.Pos); err != nil {
			return err
		}
		if err := encodeExpr(enc, s.Cond); err != nil {
			return err
		}
		if err := encodeStmt(enc, s.Then); err != nil {
			return err
		}
		return encodeStmt(enc, s.Else)
	case *Loop:
		if err := encodeNode(enc, stmtLoop, s.Pos); err != nil {
			return err
		}
		return encodeStmt(enc, s.Body)
	case *While:
		if err := encodeNode(enc, stmtWhile, s.Pos); err != nil {
			return err
		}
		if err := encodeExpr(enc, s.Cond); err != nil {
			return err
		}
		return encodeStmt(enc, s.Body)
	case *For:
		if err := encodeNode(enc, stmtFor, s.Pos); err != nil {
			return err
		}
		if err := enc.EncodeString(s.Name); err != nil {
			return err
		}
		if err := encodeExpr(enc, s.Iter); err != nil {
			return err
		}
		return encodeStmt(enc, s.Body)
	case *Break:
		return encodeNode(enc, stmtBreak, s.Pos)
	case *Continue:
		return encodeNode(enc, stmtContinue, s.Pos)
	case *Return:
		if err := encodeNode(enc, stmtReturn, s.Pos); err != nil {
			return err
		}
		return encodeExpr(enc, s.Value)
	case *Function:
		return encodeFunction(enc, s)
	case *Struct:
		if err := encodeNode(enc, stmtStruct, s.Pos); err != nil {
			return err
		}
		if err := enc.EncodeString(s.Name); err != nil {
			return err
		}
		if err := encodeStrings(enc, s.TemplateParams); err != nil {
			return err
		}
		if err := encodeParams(enc, s.Fields); err != nil {
			return err
		}
		if err := enc.EncodeArrayLen(len(s.Funcs)); err != nil {
			return err
		}
		for _, fn := range s.Funcs {
			if err := encodeFunction(enc, fn); err != nil {
				return err
			}
		}
		return nil
	case *Assert:
		if err := encodeNode(enc, stmtAssert, s.Pos); err != nil {
			return err
		}
		return encodeExpr(enc, s.Cond)
	case *Print:
		if err := encodeNode(enc, stmtPrint, s.Pos); err != nil {
			return err
		}
		if err := enc.EncodeString(s.Format); err != nil {
			return err
		}
		return encodeExprs(enc, s.Args)
	default:
		return fmt.Errorf("unsupported statement node %T", s)
	}
}

func decodeStmt(dec *msgpack.Decoder) (Stmt, error) {
	kind, err := dec.DecodeUint8()
	if err != nil {
		return nil, err
	}
	if kind == kindNil {
		return nil, nil
	}
	span, err := decodeSpan(dec)
	if err != nil {
		return nil, err
	}
	switch kind {
	case stmtBlock:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		stmts := make([]Stmt, 0, max(n, 0))
		for i := 0; i < n; i++ {
			child, err := decodeStmt(dec)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, child)
		}
		return &Block{Pos: span, Stmts: stmts}, nil
	case stmtExpr:
		expr, err := decodeExpr(dec)
		return &ExprStmt{Pos: span, Expr: expr}, err
	case stmtDecl:
		name, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		typ, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		value, err := decodeExpr(dec)
		return &Decl{Pos: span, Name: name, Type: typ, Value: value}, err
	case stmtArenaDecl:
		name, err := dec.DecodeString()
		return &ArenaDecl{Pos: span, Name: name}, err
	case stmtAssign:
		target, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		value, err := decodeExpr(dec)
		return &Assign{Pos: span, Target: target, Value: value}, err
	case stmtIf:
		cond, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		then, err := decodeStmt(dec)
		if err != nil {
			return nil, err
		}
		els, err := decodeStmt(dec)
		return &If{Pos: span, Cond: cond, Then: then, Else: els}, err
	case stmtLoop:
		body, err := decodeStmt(dec)
		return &Loop{Pos: span, Body: body}, err
	case stmtWhile:
		cond, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		body, err := decodeStmt(dec)
		return &While{Pos: span, Cond: cond, Body: body}, err
	case stmtFor:
		name, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		iter, err := decodeExpr(dec)
		if err != nil {
			return nil, err
		}
		body, err := decodeStmt(dec)
		return &For{Pos: span, Name: name, Iter: iter, Body: body}, err
	case stmtBreak:
		return &Break{Pos: span}, nil
	case stmtContinue:
		return &Continue{Pos: span}, nil
	case stmtReturn:
		value, err := decodeExpr(dec)
		return &Return{Pos: span, Value: value}, err
	case stmtFunction:
		return decodeFunctionTail(dec, span)
	case stmtStruct:
		name, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		tparams, err := decodeStrings(dec)
		if err != nil {
			return nil, err
		}
		fields, err := decodeParams(dec)
		if err != nil {
			return nil, err
		}
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		funcs := make([]*Function, 0, max(n, 0))
		for i := 0; i < n; i++ {
			fnKind, err := dec.DecodeUint8()
			if err != nil {
				return nil, err
			}
			if fnKind != stmtFunction {
				return nil, fmt.Errorf("struct %s: member %d is not a function", name, i)
			}
			fnSpan, err := decodeSpan(dec)
			if err != nil {
				return nil, err
			}
			fn, err := decodeFunctionTail(dec, fnSpan)
			if err != nil {
				return nil, err
			}
			funcs = append(funcs, fn)
		}
		return &Struct{
			Pos: span, Name: name, TemplateParams: tparams,
			Fields: fields, Funcs: funcs,
		}, nil
	case stmtAssert:
		cond, err := decodeExpr(dec)
		return &Assert{Pos: span, Cond: cond}, err
	case stmtPrint:
		format, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		args, err := decodeExprs(dec)
		return &Print{Pos: span, Format: format, Args: args}, err
	default:
		return nil, fmt.Errorf("unknown statement kind %d", kind)
	}
}
