package ir

import "github.com/wippyai/wasm2go/wasm"

// Var is a virtual variable: a single-assignment value produced on the
// simulated operand stack. IDs are dense and local to one function.
type Var struct {
	ID   int
	Type wasm.ValType
}

// Label names a structured-control-flow target. Cont labels sit at the top
// of a loop; all others mark a construct's exit. Used is set when some
// branch targets the label, so the emitter can omit labels Go would reject
// as unused.
type Label struct {
	Name string
	Cont bool
	Used bool
}

// Move is one value transfer performed on a branch edge.
type Move struct {
	Dst, Src Var
}

// Dest is a resolved branch destination: either a labelled jump carrying
// its value moves, or a return from the function.
type Dest struct {
	Label   *Label
	Moves   []Move
	Results []Var // return values when Return is set
	Return  bool
}

// Expr is a pure right-hand side of an assignment.
type Expr interface{ isExpr() }

type (
	// ConstI32 is an i32.const literal.
	ConstI32 struct{ V int32 }
	// ConstI64 is an i64.const literal.
	ConstI64 struct{ V int64 }
	// ConstF32 is an f32.const literal.
	ConstF32 struct{ V float32 }
	// ConstF64 is an f64.const literal.
	ConstF64 struct{ V float64 }
	// VarRef reads another virtual variable.
	VarRef struct{ X Var }
	// LocalRead snapshots the current value of a local.
	LocalRead struct{ Idx int }
	// GlobalRead reads a module global.
	GlobalRead struct{ Idx int }
	// Unary applies a one-operand operator identified by its opcode.
	Unary struct {
		X  Var
		Op byte
	}
	// Binary applies a two-operand operator identified by its opcode.
	Binary struct {
		X, Y Var
		Op   byte
	}
	// SatConv is a saturating float-to-int truncation (0xFC sub-opcode).
	SatConv struct {
		X   Var
		Sub uint32
	}
	// Select picks V1 when Cond is non-zero, V2 otherwise.
	Select struct{ Cond, V1, V2 Var }
	// MemorySize reads the current memory size in pages.
	MemorySize struct{}
)

func (ConstI32) isExpr()   {}
func (ConstI64) isExpr()   {}
func (ConstF32) isExpr()   {}
func (ConstF64) isExpr()   {}
func (VarRef) isExpr()     {}
func (LocalRead) isExpr()  {}
func (GlobalRead) isExpr() {}
func (Unary) isExpr()      {}
func (Binary) isExpr()     {}
func (SatConv) isExpr()    {}
func (Select) isExpr()     {}
func (MemorySize) isExpr() {}

// GuardKind discriminates the explicit pre-condition checks emitted ahead
// of operators whose Go rendering would otherwise diverge from the
// WebAssembly trap semantics.
type GuardKind byte

const (
	// GuardDivZero traps with DivisionByZero when Y is zero.
	GuardDivZero GuardKind = iota
	// GuardDivOverflow traps with IntegerOverflow on INT_MIN / -1.
	GuardDivOverflow
)

// Stmt is one emitted statement.
type Stmt interface{ isStmt() }

type (
	// Assign binds a pure expression to a fresh virtual variable, or moves
	// a value into a control construct's result variable.
	Assign struct {
		Src Expr
		Dst Var
	}
	// LocalWrite stores into a local's storage slot.
	LocalWrite struct {
		Src Var
		Idx int
	}
	// GlobalWrite stores into a module global.
	GlobalWrite struct {
		Src Var
		Idx int
	}
	// Load is a bounds-checked memory read; Op selects width and sign.
	Load struct {
		Dst, Addr Var
		Offset    uint32
		Op        byte
	}
	// Store is a bounds-checked memory write; Op selects width.
	Store struct {
		Addr, Val Var
		Offset    uint32
		Op        byte
	}
	// CheckedConv is a trapping float-to-int truncation.
	CheckedConv struct {
		Dst, Src Var
		Op       byte
	}
	// Guard is an explicit trap pre-condition check on X and Y.
	Guard struct {
		X, Y Var
		Kind GuardKind
	}
	// MemoryGrow grows memory by Delta pages, yielding the previous page
	// count or -1.
	MemoryGrow struct{ Dst, Delta Var }
	// MemoryInit copies from passive data segment Seg into memory.
	MemoryInit struct {
		D, S, N Var
		Seg     uint32
	}
	// DataDrop discards passive data segment Seg.
	DataDrop struct{ Seg uint32 }
	// MemoryCopy is memory.copy.
	MemoryCopy struct{ D, S, N Var }
	// MemoryFill is memory.fill.
	MemoryFill struct{ D, V, N Var }
	// TableInit copies from passive element segment Seg into the table.
	TableInit struct {
		D, S, N Var
		Seg     uint32
	}
	// ElemDrop discards passive element segment Seg.
	ElemDrop struct{ Seg uint32 }
	// Call invokes a function by module-wide index.
	Call struct {
		Args, Dsts []Var
		Func       uint32
	}
	// CallIndirect dispatches through the table with a signature check.
	CallIndirect struct {
		Args, Dsts []Var
		Index      Var
		SigID      uint32
	}
	// Br is an unconditional branch.
	Br struct{ Dest Dest }
	// BrIf branches when Cond is non-zero; the fall-through path keeps the
	// value stack intact.
	BrIf struct {
		Cond Var
		Dest Dest
	}
	// BrTable indexes into Cases, falling back to Default.
	BrTable struct {
		Cases   []Dest
		Index   Var
		Default Dest
	}
	// Return leaves the function with the given results.
	Return struct{ Results []Var }
	// Trap is an unconditional UnreachableExecuted trap.
	Trap struct{}
	// BlockOpen opens a block or loop construct.
	BlockOpen struct {
		Label *Label
		Loop  bool
	}
	// IfOpen opens a conditional construct.
	IfOpen struct {
		Label *Label
		Cond  Var
	}
	// Else separates the arms of the innermost open conditional.
	Else struct{}
	// Close ends the innermost open construct.
	Close struct {
		Label *Label
		Loop  bool
		If    bool
	}
)

func (Assign) isStmt()       {}
func (LocalWrite) isStmt()   {}
func (GlobalWrite) isStmt()  {}
func (Load) isStmt()         {}
func (Store) isStmt()        {}
func (CheckedConv) isStmt()  {}
func (Guard) isStmt()        {}
func (MemoryGrow) isStmt()   {}
func (MemoryInit) isStmt()   {}
func (DataDrop) isStmt()     {}
func (MemoryCopy) isStmt()   {}
func (MemoryFill) isStmt()   {}
func (TableInit) isStmt()    {}
func (ElemDrop) isStmt()     {}
func (Call) isStmt()         {}
func (CallIndirect) isStmt() {}
func (Br) isStmt()           {}
func (BrIf) isStmt()         {}
func (BrTable) isStmt()      {}
func (Return) isStmt()       {}
func (Trap) isStmt()         {}
func (BlockOpen) isStmt()    {}
func (IfOpen) isStmt()       {}
func (Else) isStmt()         {}
func (Close) isStmt()        {}

// Func is one lifted function body.
type Func struct {
	Stmts    []Stmt
	VarTypes []wasm.ValType // indexed by Var.ID
	Params   []wasm.ValType
	Results  []wasm.ValType
	Locals   []wasm.ValType // declared locals, params excluded
}

// Context supplies the module-level lookups the lifter needs. It mirrors
// the analyzer's resolved view without depending on it.
type Context struct {
	// FuncSig resolves a module-wide function index to its signature.
	FuncSig func(funcIdx uint32) (params, results []wasm.ValType, ok bool)
	// TypeSig resolves a type-section index to its signature and interned ID.
	TypeSig func(typeIdx uint32) (params, results []wasm.ValType, sigID uint32, ok bool)
	// GlobalType resolves a global index to its value type.
	GlobalType func(globalIdx uint32) (wasm.ValType, bool)

	// FuncName locates the function in error paths, e.g. "func[3]".
	FuncName string

	NumData  int
	NumElems int

	HasMemory bool
	HasTable  bool
}
