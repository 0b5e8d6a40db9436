package bytecode

// Op is the single tag byte that starts every instruction. The number of
// operand bytes that follow is fixed per tag; see OperandWidth.
type Op uint8

const (
	OpEndProgram Op = iota

	// Literal pushes, tagged by source type.
	OpPushI32     // i32 value (4 bytes)
	OpPushI64     // i64 value (8 bytes)
	OpPushU64     // u64 value (8 bytes)
	OpPushF64     // f64 value (8 bytes)
	OpPushChar    // 1 byte
	OpPushBool    // 1 byte
	OpPushNull    // pushes a single zero byte
	OpPushNullPtr // pushes an 8-byte zero pointer
	OpPushZeros   // size (8 bytes): pushes that many zero bytes
	OpPushString  // rom offset, length (8+8 bytes): pushes a rom-tagged span

	// Address pushes.
	OpPushPtrLocal  // frame offset (8 bytes): pushes frame base + offset
	OpPushPtrGlobal // offset (8 bytes): pushes absolute stack offset
	OpPushFuncPtr   // function id (8 bytes)

	// Memory.
	OpLoad  // size (8 bytes): pops an address, pushes size bytes read from it
	OpStore // size (8 bytes): pops an address, then size bytes, writes them
	OpPop   // size (8 bytes)

	// Control flow. Targets are absolute code offsets, patched in by the
	// compiler once known.
	OpJump        // target (8 bytes)
	OpJumpIfFalse // target (8 bytes): pops a bool

	// Calls. See the frame header layout in vm: [saved base][saved pc][ret size].
	OpCall        // args size (8 bytes): pops the function id first
	OpReturn      // reads the header at frame base
	OpBuiltinCall // builtin id (8 bytes)

	// Asserts pop a bool and halt with the rom message when it is false.
	// Bounds-check asserts fault with their own code so subscript failures
	// are distinguishable from source-level asserts.
	OpAssert       // rom offset, length (8+8 bytes)
	OpAssertBounds // rom offset, length (8+8 bytes)

	// Arena heap.
	OpArenaNew        // pushes a new arena handle
	OpArenaDelete     // pops an arena handle and frees the whole region
	OpArenaAlloc      // object size (8 bytes): pops arena, pushes heap ptr
	OpArenaAllocArray // element size (8 bytes): pops arena and count, pushes span
	OpArenaSize       // pops arena, pushes bytes allocated
	OpArenaCapacity   // pops arena, pushes region capacity

	OpCharEq
	OpCharNe

	OpI32Add
	OpI32Sub
	OpI32Mul
	OpI32Div
	OpI32Mod
	OpI32Eq
	OpI32Ne
	OpI32Lt
	OpI32Le
	OpI32Gt
	OpI32Ge

	OpI64Add
	OpI64Sub
	OpI64Mul
	OpI64Div
	OpI64Mod
	OpI64Eq
	OpI64Ne
	OpI64Lt
	OpI64Le
	OpI64Gt
	OpI64Ge

	OpU64Add
	OpU64Sub
	OpU64Mul
	OpU64Div
	OpU64Mod
	OpU64Eq
	OpU64Ne
	OpU64Lt
	OpU64Le
	OpU64Gt
	OpU64Ge

	OpF64Add
	OpF64Sub
	OpF64Mul
	OpF64Div
	OpF64Eq
	OpF64Ne
	OpF64Lt
	OpF64Le
	OpF64Gt
	OpF64Ge

	OpBoolAnd
	OpBoolOr
	OpBoolEq
	OpBoolNe
	OpBoolNot

	OpI32Neg
	OpI64Neg
	OpF64Neg

	OpPrintNull
	OpPrintBool
	OpPrintChar
	OpPrintI32
	OpPrintI64
	OpPrintU64
	OpPrintF64
	OpPrintCharSpan
	OpPrintPtr
)

// OperandWidth returns the fixed number of operand bytes following the tag.
func (op Op) OperandWidth() int {
	switch op {
	case OpPushChar, OpPushBool:
		return 1
	case OpPushI32:
		return 4
	case OpPushI64, OpPushU64, OpPushF64, OpPushZeros,
		OpPushPtrLocal, OpPushPtrGlobal, OpPushFuncPtr,
		OpLoad, OpStore, OpPop,
		OpJump, OpJumpIfFalse,
		OpCall, OpBuiltinCall,
		OpArenaAlloc, OpArenaAllocArray:
		return 8
	case OpPushString, OpAssert, OpAssertBounds:
		return 16
	default:
		return 0
	}
}

var opNames = map[Op]string{
	OpEndProgram:      "END_PROGRAM",
	OpPushI32:         "PUSH_I32",
	OpPushI64:         "PUSH_I64",
	OpPushU64:         "PUSH_U64",
	OpPushF64:         "PUSH_F64",
	OpPushChar:        "PUSH_CHAR",
	OpPushBool:        "PUSH_BOOL",
	OpPushNull:        "PUSH_NULL",
	OpPushNullPtr:     "PUSH_NULLPTR",
	OpPushZeros:       "PUSH_ZEROS",
	OpPushString:      "PUSH_STRING",
	OpPushPtrLocal:    "PUSH_PTR_LOCAL",
	OpPushPtrGlobal:   "PUSH_PTR_GLOBAL",
	OpPushFuncPtr:     "PUSH_FUNC_PTR",
	OpLoad:            "LOAD",
	OpStore:           "STORE",
	OpPop:             "POP",
	OpJump:            "JUMP",
	OpJumpIfFalse:     "JUMP_IF_FALSE",
	OpCall:            "CALL",
	OpReturn:          "RETURN",
	OpBuiltinCall:     "BUILTIN_CALL",
	OpAssert:          "ASSERT",
	OpAssertBounds:    "ASSERT_BOUNDS",
	OpArenaNew:        "ARENA_NEW",
	OpArenaDelete:     "ARENA_DELETE",
	OpArenaAlloc:      "ARENA_ALLOC",
	OpArenaAllocArray: "ARENA_ALLOC_ARRAY",
	OpArenaSize:       "ARENA_SIZE",
	OpArenaCapacity:   "ARENA_CAPACITY",
	OpCharEq:          "CHAR_EQ",
	OpCharNe:          "CHAR_NE",
	OpI32Add:          "I32_ADD",
	OpI32Sub:          "I32_SUB",
	OpI32Mul:          "I32_MUL",
	OpI32Div:          "I32_DIV",
	OpI32Mod:          "I32_MOD",
	OpI32Eq:           "I32_EQ",
	OpI32Ne:           "I32_NE",
	OpI32Lt:           "I32_LT",
	OpI32Le:           "I32_LE",
	OpI32Gt:           "I32_GT",
	OpI32Ge:           "I32_GE",
	OpI64Add:          "I64_ADD",
	OpI64Sub:          "I64_SUB",
	OpI64Mul:          "I64_MUL",
	OpI64Div:          "I64_DIV",
	OpI64Mod:          "I64_MOD",
	OpI64Eq:           "I64_EQ",
	OpI64Ne:           "I64_NE",
	OpI64Lt:           "I64_LT",
	OpI64Le:           "I64_LE",
	OpI64Gt:           "I64_GT",
	OpI64Ge:           "I64_GE",
	OpU64Add:          "U64_ADD",
	OpU64Sub:          "U64_SUB",
	OpU64Mul:          "U64_MUL",
	OpU64Div:          "U64_DIV",
	OpU64Mod:          "U64_MOD",
	OpU64Eq:           "U64_EQ",
	OpU64Ne:           "U64_NE",
	OpU64Lt:           "U64_LT",
	OpU64Le:           "U64_LE",
	OpU64Gt:           "U64_GT",
	OpU64Ge:           "U64_GE",
	OpF64Add:          "F64_ADD",
	OpF64Sub:          "F64_SUB",
	OpF64Mul:          "F64_MUL",
	OpF64Div:          "F64_DIV",
	OpF64Eq:           "F64_EQ",
	OpF64Ne:           "F64_NE",
	OpF64Lt:           "F64_LT",
	OpF64Le:           "F64_LE",
	OpF64Gt:           "F64_GT",
	OpF64Ge:           "F64_GE",
	OpBoolAnd:         "BOOL_AND",
	OpBoolOr:          "BOOL_OR",
	OpBoolEq:          "BOOL_EQ",
	OpBoolNe:          "BOOL_NE",
	OpBoolNot:         "BOOL_NOT",
	OpI32Neg:          "I32_NEG",
	OpI64Neg:          "I64_NEG",
	OpF64Neg:          "F64_NEG",
	OpPrintNull:       "PRINT_NULL",
	OpPrintBool:       "PRINT_BOOL",
	OpPrintChar:       "PRINT_CHAR",
	OpPrintI32:        "PRINT_I32",
	OpPrintI64:        "PRINT_I64",
	OpPrintU64:        "PRINT_U64",
	OpPrintF64:        "PRINT_F64",
	OpPrintCharSpan:   "PRINT_CHAR_SPAN",
	OpPrintPtr:        "PRINT_PTR",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
