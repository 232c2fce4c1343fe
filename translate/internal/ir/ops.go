package ir

import "github.com/wippyai/wasm2go/wasm"

// Static operand/result typing for the pure numeric operators. Everything
// with a dynamic or structural stack effect (control, calls, parametrics,
// memory) is handled directly in the lifter's main switch.

// pureOp describes one operator's stack effect.
type pureOp struct {
	args   []wasm.ValType
	result wasm.ValType
}

var (
	i32 = wasm.ValI32
	i64 = wasm.ValI64
	f32 = wasm.ValF32
	f64 = wasm.ValF64
)

// pureOpTypes returns the operand and result types for a pure unary or
// binary operator, or ok=false when the opcode is not in that family.
func pureOpTypes(op byte) (pureOp, bool) {
	switch {
	case op == wasm.OpI32Eqz:
		return pureOp{[]wasm.ValType{i32}, i32}, true
	case op >= wasm.OpI32Eq && op <= wasm.OpI32GeU:
		return pureOp{[]wasm.ValType{i32, i32}, i32}, true
	case op == wasm.OpI64Eqz:
		return pureOp{[]wasm.ValType{i64}, i32}, true
	case op >= wasm.OpI64Eq && op <= wasm.OpI64GeU:
		return pureOp{[]wasm.ValType{i64, i64}, i32}, true
	case op >= wasm.OpF32Eq && op <= wasm.OpF32Ge:
		return pureOp{[]wasm.ValType{f32, f32}, i32}, true
	case op >= wasm.OpF64Eq && op <= wasm.OpF64Ge:
		return pureOp{[]wasm.ValType{f64, f64}, i32}, true

	case op >= wasm.OpI32Clz && op <= wasm.OpI32Popcnt:
		return pureOp{[]wasm.ValType{i32}, i32}, true
	case op >= wasm.OpI32Add && op <= wasm.OpI32Rotr:
		return pureOp{[]wasm.ValType{i32, i32}, i32}, true
	case op >= wasm.OpI64Clz && op <= wasm.OpI64Popcnt:
		return pureOp{[]wasm.ValType{i64}, i64}, true
	case op >= wasm.OpI64Add && op <= wasm.OpI64Rotr:
		return pureOp{[]wasm.ValType{i64, i64}, i64}, true

	case op >= wasm.OpF32Abs && op <= wasm.OpF32Sqrt:
		return pureOp{[]wasm.ValType{f32}, f32}, true
	case op >= wasm.OpF32Add && op <= wasm.OpF32Copysign:
		return pureOp{[]wasm.ValType{f32, f32}, f32}, true
	case op >= wasm.OpF64Abs && op <= wasm.OpF64Sqrt:
		return pureOp{[]wasm.ValType{f64}, f64}, true
	case op >= wasm.OpF64Add && op <= wasm.OpF64Copysign:
		return pureOp{[]wasm.ValType{f64, f64}, f64}, true
	}

	switch op {
	case wasm.OpI32WrapI64:
		return pureOp{[]wasm.ValType{i64}, i32}, true
	case wasm.OpI64ExtendI32S, wasm.OpI64ExtendI32U:
		return pureOp{[]wasm.ValType{i32}, i64}, true
	case wasm.OpF32ConvertI32S, wasm.OpF32ConvertI32U:
		return pureOp{[]wasm.ValType{i32}, f32}, true
	case wasm.OpF32ConvertI64S, wasm.OpF32ConvertI64U:
		return pureOp{[]wasm.ValType{i64}, f32}, true
	case wasm.OpF32DemoteF64:
		return pureOp{[]wasm.ValType{f64}, f32}, true
	case wasm.OpF64ConvertI32S, wasm.OpF64ConvertI32U:
		return pureOp{[]wasm.ValType{i32}, f64}, true
	case wasm.OpF64ConvertI64S, wasm.OpF64ConvertI64U:
		return pureOp{[]wasm.ValType{i64}, f64}, true
	case wasm.OpF64PromoteF32:
		return pureOp{[]wasm.ValType{f32}, f64}, true
	case wasm.OpI32ReinterpretF32:
		return pureOp{[]wasm.ValType{f32}, i32}, true
	case wasm.OpI64ReinterpretF64:
		return pureOp{[]wasm.ValType{f64}, i64}, true
	case wasm.OpF32ReinterpretI32:
		return pureOp{[]wasm.ValType{i32}, f32}, true
	case wasm.OpF64ReinterpretI64:
		return pureOp{[]wasm.ValType{i64}, f64}, true
	case wasm.OpI32Extend8S, wasm.OpI32Extend16S:
		return pureOp{[]wasm.ValType{i32}, i32}, true
	case wasm.OpI64Extend8S, wasm.OpI64Extend16S, wasm.OpI64Extend32S:
		return pureOp{[]wasm.ValType{i64}, i64}, true
	}

	return pureOp{}, false
}

// checkedConvTypes returns the operand and result types of a trapping
// float-to-int truncation, or ok=false for other opcodes.
func checkedConvTypes(op byte) (src, dst wasm.ValType, ok bool) {
	switch op {
	case wasm.OpI32TruncF32S, wasm.OpI32TruncF32U:
		return f32, i32, true
	case wasm.OpI32TruncF64S, wasm.OpI32TruncF64U:
		return f64, i32, true
	case wasm.OpI64TruncF32S, wasm.OpI64TruncF32U:
		return f32, i64, true
	case wasm.OpI64TruncF64S, wasm.OpI64TruncF64U:
		return f64, i64, true
	}
	return 0, 0, false
}

// divRemGuards returns the guard kinds to emit before an integer division
// or remainder, or nil for other opcodes.
func divRemGuards(op byte) []GuardKind {
	switch op {
	case wasm.OpI32DivS, wasm.OpI64DivS:
		return []GuardKind{GuardDivZero, GuardDivOverflow}
	case wasm.OpI32DivU, wasm.OpI32RemS, wasm.OpI32RemU,
		wasm.OpI64DivU, wasm.OpI64RemS, wasm.OpI64RemU:
		return []GuardKind{GuardDivZero}
	}
	return nil
}

// satConvTypes returns operand and result types for a saturating
// truncation sub-opcode.
func satConvTypes(sub uint32) (src, dst wasm.ValType, ok bool) {
	switch sub {
	case wasm.MiscI32TruncSatF32S, wasm.MiscI32TruncSatF32U:
		return f32, i32, true
	case wasm.MiscI32TruncSatF64S, wasm.MiscI32TruncSatF64U:
		return f64, i32, true
	case wasm.MiscI64TruncSatF32S, wasm.MiscI64TruncSatF32U:
		return f32, i64, true
	case wasm.MiscI64TruncSatF64S, wasm.MiscI64TruncSatF64U:
		return f64, i64, true
	}
	return 0, 0, false
}

// loadTypes returns the result type of a load opcode.
func loadTypes(op byte) (wasm.ValType, bool) {
	switch op {
	case wasm.OpI32Load, wasm.OpI32Load8S, wasm.OpI32Load8U, wasm.OpI32Load16S, wasm.OpI32Load16U:
		return i32, true
	case wasm.OpI64Load, wasm.OpI64Load8S, wasm.OpI64Load8U, wasm.OpI64Load16S,
		wasm.OpI64Load16U, wasm.OpI64Load32S, wasm.OpI64Load32U:
		return i64, true
	case wasm.OpF32Load:
		return f32, true
	case wasm.OpF64Load:
		return f64, true
	}
	return 0, false
}

// storeTypes returns the operand value type of a store opcode.
func storeTypes(op byte) (wasm.ValType, bool) {
	switch op {
	case wasm.OpI32Store, wasm.OpI32Store8, wasm.OpI32Store16:
		return i32, true
	case wasm.OpI64Store, wasm.OpI64Store8, wasm.OpI64Store16, wasm.OpI64Store32:
		return i64, true
	case wasm.OpF32Store:
		return f32, true
	case wasm.OpF64Store:
		return f64, true
	}
	return 0, false
}
