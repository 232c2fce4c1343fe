package codegen

import (
	"fmt"
	"math"
	"strconv"

	"github.com/wippyai/wasm2go/translate/internal/ir"
	"github.com/wippyai/wasm2go/wasm"
)

// goType maps a wasm value type to its Go rendering.
func goType(t wasm.ValType) string {
	switch t {
	case wasm.ValI32:
		return "int32"
	case wasm.ValI64:
		return "int64"
	case wasm.ValF32:
		return "float32"
	case wasm.ValF64:
		return "float64"
	}
	return "int32"
}

// zeroOf returns the zero literal for a wasm value type. Every numeric Go
// type zeroes to the same literal, which keeps trap returns uniform.
func zeroOf(wasm.ValType) string {
	return "0"
}

func v(x ir.Var) string { return "v" + strconv.Itoa(x.ID) }

func local(idx int) string { return "l" + strconv.Itoa(idx) }

func globalField(idx int) string { return "m.g" + strconv.Itoa(idx) }

// formatF64 renders an f64 constant so the compiled value is bit-identical
// to the source module's. Non-finite values and negative zero have no Go
// decimal literal, so they go through the reinterpret helper.
func formatF64(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) || (f == 0 && math.Signbit(f)) {
		return fmt.Sprintf("wasmrt.F64ReinterpretI64(%d)", int64(math.Float64bits(f)))
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatF32 is formatF64 for f32 constants.
func formatF32(f float32) string {
	f64 := float64(f)
	if math.IsNaN(f64) || math.IsInf(f64, 0) || (f == 0 && math.Signbit(f64)) {
		return fmt.Sprintf("wasmrt.F32ReinterpretI32(%d)", int32(math.Float32bits(f)))
	}
	return strconv.FormatFloat(f64, 'g', -1, 32)
}

// expr prints a pure expression.
func (e *emitter) expr(x ir.Expr) string {
	switch x := x.(type) {
	case ir.ConstI32:
		return strconv.FormatInt(int64(x.V), 10)
	case ir.ConstI64:
		return strconv.FormatInt(x.V, 10)
	case ir.ConstF32:
		return formatF32(x.V)
	case ir.ConstF64:
		return formatF64(x.V)
	case ir.VarRef:
		return v(x.X)
	case ir.LocalRead:
		return local(x.Idx)
	case ir.GlobalRead:
		return globalField(x.Idx)
	case ir.Unary:
		return unaryExpr(x)
	case ir.Binary:
		return binaryExpr(x)
	case ir.SatConv:
		return satConvExpr(x)
	case ir.Select:
		return fmt.Sprintf("wasmrt.Select(%s, %s, %s)", v(x.Cond), v(x.V1), v(x.V2))
	case ir.MemorySize:
		return "int32(m.mem.Pages())"
	}
	return "0 /* unhandled expression */"
}

func unaryExpr(x ir.Unary) string {
	a := v(x.X)
	switch x.Op {
	case wasm.OpI32Eqz:
		return fmt.Sprintf("wasmrt.B2I(%s == 0)", a)
	case wasm.OpI64Eqz:
		return fmt.Sprintf("wasmrt.B2I(%s == 0)", a)

	case wasm.OpI32Clz:
		return fmt.Sprintf("wasmrt.I32Clz(%s)", a)
	case wasm.OpI32Ctz:
		return fmt.Sprintf("wasmrt.I32Ctz(%s)", a)
	case wasm.OpI32Popcnt:
		return fmt.Sprintf("wasmrt.I32Popcnt(%s)", a)
	case wasm.OpI64Clz:
		return fmt.Sprintf("wasmrt.I64Clz(%s)", a)
	case wasm.OpI64Ctz:
		return fmt.Sprintf("wasmrt.I64Ctz(%s)", a)
	case wasm.OpI64Popcnt:
		return fmt.Sprintf("wasmrt.I64Popcnt(%s)", a)

	case wasm.OpF32Abs:
		return fmt.Sprintf("wasmrt.F32Abs(%s)", a)
	case wasm.OpF32Neg:
		return fmt.Sprintf("wasmrt.F32Neg(%s)", a)
	case wasm.OpF32Ceil:
		return fmt.Sprintf("wasmrt.F32Ceil(%s)", a)
	case wasm.OpF32Floor:
		return fmt.Sprintf("wasmrt.F32Floor(%s)", a)
	case wasm.OpF32Trunc:
		return fmt.Sprintf("wasmrt.F32Trunc(%s)", a)
	case wasm.OpF32Nearest:
		return fmt.Sprintf("wasmrt.F32Nearest(%s)", a)
	case wasm.OpF32Sqrt:
		return fmt.Sprintf("wasmrt.F32Sqrt(%s)", a)
	case wasm.OpF64Abs:
		return fmt.Sprintf("wasmrt.F64Abs(%s)", a)
	case wasm.OpF64Neg:
		return fmt.Sprintf("wasmrt.F64Neg(%s)", a)
	case wasm.OpF64Ceil:
		return fmt.Sprintf("wasmrt.F64Ceil(%s)", a)
	case wasm.OpF64Floor:
		return fmt.Sprintf("wasmrt.F64Floor(%s)", a)
	case wasm.OpF64Trunc:
		return fmt.Sprintf("wasmrt.F64Trunc(%s)", a)
	case wasm.OpF64Nearest:
		return fmt.Sprintf("wasmrt.F64Nearest(%s)", a)
	case wasm.OpF64Sqrt:
		return fmt.Sprintf("wasmrt.F64Sqrt(%s)", a)

	case wasm.OpI32WrapI64:
		return fmt.Sprintf("int32(%s)", a)
	case wasm.OpI64ExtendI32S:
		return fmt.Sprintf("int64(%s)", a)
	case wasm.OpI64ExtendI32U:
		return fmt.Sprintf("int64(uint32(%s))", a)
	case wasm.OpF32ConvertI32S:
		return fmt.Sprintf("float32(%s)", a)
	case wasm.OpF32ConvertI32U:
		return fmt.Sprintf("float32(uint32(%s))", a)
	case wasm.OpF32ConvertI64S:
		return fmt.Sprintf("float32(%s)", a)
	case wasm.OpF32ConvertI64U:
		return fmt.Sprintf("float32(uint64(%s))", a)
	case wasm.OpF32DemoteF64:
		return fmt.Sprintf("float32(%s)", a)
	case wasm.OpF64ConvertI32S:
		return fmt.Sprintf("float64(%s)", a)
	case wasm.OpF64ConvertI32U:
		return fmt.Sprintf("float64(uint32(%s))", a)
	case wasm.OpF64ConvertI64S:
		return fmt.Sprintf("float64(%s)", a)
	case wasm.OpF64ConvertI64U:
		return fmt.Sprintf("float64(uint64(%s))", a)
	case wasm.OpF64PromoteF32:
		return fmt.Sprintf("float64(%s)", a)

	case wasm.OpI32ReinterpretF32:
		return fmt.Sprintf("wasmrt.I32ReinterpretF32(%s)", a)
	case wasm.OpI64ReinterpretF64:
		return fmt.Sprintf("wasmrt.I64ReinterpretF64(%s)", a)
	case wasm.OpF32ReinterpretI32:
		return fmt.Sprintf("wasmrt.F32ReinterpretI32(%s)", a)
	case wasm.OpF64ReinterpretI64:
		return fmt.Sprintf("wasmrt.F64ReinterpretI64(%s)", a)

	case wasm.OpI32Extend8S:
		return fmt.Sprintf("int32(int8(%s))", a)
	case wasm.OpI32Extend16S:
		return fmt.Sprintf("int32(int16(%s))", a)
	case wasm.OpI64Extend8S:
		return fmt.Sprintf("int64(int8(%s))", a)
	case wasm.OpI64Extend16S:
		return fmt.Sprintf("int64(int16(%s))", a)
	case wasm.OpI64Extend32S:
		return fmt.Sprintf("int64(int32(%s))", a)
	}
	return "0 /* unhandled unary 0x" + strconv.FormatInt(int64(x.Op), 16) + " */"
}

func binaryExpr(x ir.Binary) string {
	a, b := v(x.X), v(x.Y)
	switch x.Op {
	// i32 arithmetic. Go integer arithmetic wraps, matching wasm.
	case wasm.OpI32Add:
		return fmt.Sprintf("%s + %s", a, b)
	case wasm.OpI32Sub:
		return fmt.Sprintf("%s - %s", a, b)
	case wasm.OpI32Mul:
		return fmt.Sprintf("%s * %s", a, b)
	case wasm.OpI32DivS:
		return fmt.Sprintf("%s / %s", a, b)
	case wasm.OpI32DivU:
		return fmt.Sprintf("int32(uint32(%s) / uint32(%s))", a, b)
	case wasm.OpI32RemS:
		return fmt.Sprintf("%s %% %s", a, b)
	case wasm.OpI32RemU:
		return fmt.Sprintf("int32(uint32(%s) %% uint32(%s))", a, b)
	case wasm.OpI32And:
		return fmt.Sprintf("%s & %s", a, b)
	case wasm.OpI32Or:
		return fmt.Sprintf("%s | %s", a, b)
	case wasm.OpI32Xor:
		return fmt.Sprintf("%s ^ %s", a, b)
	case wasm.OpI32Shl:
		return fmt.Sprintf("%s << (uint32(%s) & 31)", a, b)
	case wasm.OpI32ShrS:
		return fmt.Sprintf("%s >> (uint32(%s) & 31)", a, b)
	case wasm.OpI32ShrU:
		return fmt.Sprintf("int32(uint32(%s) >> (uint32(%s) & 31))", a, b)
	case wasm.OpI32Rotl:
		return fmt.Sprintf("wasmrt.I32Rotl(%s, %s)", a, b)
	case wasm.OpI32Rotr:
		return fmt.Sprintf("wasmrt.I32Rotr(%s, %s)", a, b)

	// i64 arithmetic.
	case wasm.OpI64Add:
		return fmt.Sprintf("%s + %s", a, b)
	case wasm.OpI64Sub:
		return fmt.Sprintf("%s - %s", a, b)
	case wasm.OpI64Mul:
		return fmt.Sprintf("%s * %s", a, b)
	case wasm.OpI64DivS:
		return fmt.Sprintf("%s / %s", a, b)
	case wasm.OpI64DivU:
		return fmt.Sprintf("int64(uint64(%s) / uint64(%s))", a, b)
	case wasm.OpI64RemS:
		return fmt.Sprintf("%s %% %s", a, b)
	case wasm.OpI64RemU:
		return fmt.Sprintf("int64(uint64(%s) %% uint64(%s))", a, b)
	case wasm.OpI64And:
		return fmt.Sprintf("%s & %s", a, b)
	case wasm.OpI64Or:
		return fmt.Sprintf("%s | %s", a, b)
	case wasm.OpI64Xor:
		return fmt.Sprintf("%s ^ %s", a, b)
	case wasm.OpI64Shl:
		return fmt.Sprintf("%s << (uint64(%s) & 63)", a, b)
	case wasm.OpI64ShrS:
		return fmt.Sprintf("%s >> (uint64(%s) & 63)", a, b)
	case wasm.OpI64ShrU:
		return fmt.Sprintf("int64(uint64(%s) >> (uint64(%s) & 63))", a, b)
	case wasm.OpI64Rotl:
		return fmt.Sprintf("wasmrt.I64Rotl(%s, %s)", a, b)
	case wasm.OpI64Rotr:
		return fmt.Sprintf("wasmrt.I64Rotr(%s, %s)", a, b)

	// i32 comparisons.
	case wasm.OpI32Eq:
		return fmt.Sprintf("wasmrt.B2I(%s == %s)", a, b)
	case wasm.OpI32Ne:
		return fmt.Sprintf("wasmrt.B2I(%s != %s)", a, b)
	case wasm.OpI32LtS:
		return fmt.Sprintf("wasmrt.B2I(%s < %s)", a, b)
	case wasm.OpI32LtU:
		return fmt.Sprintf("wasmrt.B2I(uint32(%s) < uint32(%s))", a, b)
	case wasm.OpI32GtS:
		return fmt.Sprintf("wasmrt.B2I(%s > %s)", a, b)
	case wasm.OpI32GtU:
		return fmt.Sprintf("wasmrt.B2I(uint32(%s) > uint32(%s))", a, b)
	case wasm.OpI32LeS:
		return fmt.Sprintf("wasmrt.B2I(%s <= %s)", a, b)
	case wasm.OpI32LeU:
		return fmt.Sprintf("wasmrt.B2I(uint32(%s) <= uint32(%s))", a, b)
	case wasm.OpI32GeS:
		return fmt.Sprintf("wasmrt.B2I(%s >= %s)", a, b)
	case wasm.OpI32GeU:
		return fmt.Sprintf("wasmrt.B2I(uint32(%s) >= uint32(%s))", a, b)

	// i64 comparisons.
	case wasm.OpI64Eq:
		return fmt.Sprintf("wasmrt.B2I(%s == %s)", a, b)
	case wasm.OpI64Ne:
		return fmt.Sprintf("wasmrt.B2I(%s != %s)", a, b)
	case wasm.OpI64LtS:
		return fmt.Sprintf("wasmrt.B2I(%s < %s)", a, b)
	case wasm.OpI64LtU:
		return fmt.Sprintf("wasmrt.B2I(uint64(%s) < uint64(%s))", a, b)
	case wasm.OpI64GtS:
		return fmt.Sprintf("wasmrt.B2I(%s > %s)", a, b)
	case wasm.OpI64GtU:
		return fmt.Sprintf("wasmrt.B2I(uint64(%s) > uint64(%s))", a, b)
	case wasm.OpI64LeS:
		return fmt.Sprintf("wasmrt.B2I(%s <= %s)", a, b)
	case wasm.OpI64LeU:
		return fmt.Sprintf("wasmrt.B2I(uint64(%s) <= uint64(%s))", a, b)
	case wasm.OpI64GeS:
		return fmt.Sprintf("wasmrt.B2I(%s >= %s)", a, b)
	case wasm.OpI64GeU:
		return fmt.Sprintf("wasmrt.B2I(uint64(%s) >= uint64(%s))", a, b)

	// Float comparisons: IEEE semantics match Go's operators directly.
	case wasm.OpF32Eq, wasm.OpF64Eq:
		return fmt.Sprintf("wasmrt.B2I(%s == %s)", a, b)
	case wasm.OpF32Ne, wasm.OpF64Ne:
		return fmt.Sprintf("wasmrt.B2I(%s != %s)", a, b)
	case wasm.OpF32Lt, wasm.OpF64Lt:
		return fmt.Sprintf("wasmrt.B2I(%s < %s)", a, b)
	case wasm.OpF32Gt, wasm.OpF64Gt:
		return fmt.Sprintf("wasmrt.B2I(%s > %s)", a, b)
	case wasm.OpF32Le, wasm.OpF64Le:
		return fmt.Sprintf("wasmrt.B2I(%s <= %s)", a, b)
	case wasm.OpF32Ge, wasm.OpF64Ge:
		return fmt.Sprintf("wasmrt.B2I(%s >= %s)", a, b)

	// Float arithmetic.
	case wasm.OpF32Add, wasm.OpF64Add:
		return fmt.Sprintf("%s + %s", a, b)
	case wasm.OpF32Sub, wasm.OpF64Sub:
		return fmt.Sprintf("%s - %s", a, b)
	case wasm.OpF32Mul, wasm.OpF64Mul:
		return fmt.Sprintf("%s * %s", a, b)
	case wasm.OpF32Div, wasm.OpF64Div:
		return fmt.Sprintf("%s / %s", a, b)
	case wasm.OpF32Min:
		return fmt.Sprintf("wasmrt.F32Min(%s, %s)", a, b)
	case wasm.OpF32Max:
		return fmt.Sprintf("wasmrt.F32Max(%s, %s)", a, b)
	case wasm.OpF32Copysign:
		return fmt.Sprintf("wasmrt.F32Copysign(%s, %s)", a, b)
	case wasm.OpF64Min:
		return fmt.Sprintf("wasmrt.F64Min(%s, %s)", a, b)
	case wasm.OpF64Max:
		return fmt.Sprintf("wasmrt.F64Max(%s, %s)", a, b)
	case wasm.OpF64Copysign:
		return fmt.Sprintf("wasmrt.F64Copysign(%s, %s)", a, b)
	}
	return "0 /* unhandled binary 0x" + strconv.FormatInt(int64(x.Op), 16) + " */"
}

func satConvExpr(x ir.SatConv) string {
	a := v(x.X)
	switch x.Sub {
	case wasm.MiscI32TruncSatF32S:
		return fmt.Sprintf("wasmrt.TruncSatF32ToI32S(%s)", a)
	case wasm.MiscI32TruncSatF32U:
		return fmt.Sprintf("wasmrt.TruncSatF32ToI32U(%s)", a)
	case wasm.MiscI32TruncSatF64S:
		return fmt.Sprintf("wasmrt.TruncSatF64ToI32S(%s)", a)
	case wasm.MiscI32TruncSatF64U:
		return fmt.Sprintf("wasmrt.TruncSatF64ToI32U(%s)", a)
	case wasm.MiscI64TruncSatF32S:
		return fmt.Sprintf("wasmrt.TruncSatF32ToI64S(%s)", a)
	case wasm.MiscI64TruncSatF32U:
		return fmt.Sprintf("wasmrt.TruncSatF32ToI64U(%s)", a)
	case wasm.MiscI64TruncSatF64S:
		return fmt.Sprintf("wasmrt.TruncSatF64ToI64S(%s)", a)
	case wasm.MiscI64TruncSatF64U:
		return fmt.Sprintf("wasmrt.TruncSatF64ToI64U(%s)", a)
	}
	return "0 /* unhandled saturating conversion */"
}

// memLoadCall maps a load opcode to the Memory method name.
func memLoadCall(op byte) string {
	switch op {
	case wasm.OpI32Load:
		return "I32Load"
	case wasm.OpI32Load8S:
		return "I32Load8S"
	case wasm.OpI32Load8U:
		return "I32Load8U"
	case wasm.OpI32Load16S:
		return "I32Load16S"
	case wasm.OpI32Load16U:
		return "I32Load16U"
	case wasm.OpI64Load:
		return "I64Load"
	case wasm.OpI64Load8S:
		return "I64Load8S"
	case wasm.OpI64Load8U:
		return "I64Load8U"
	case wasm.OpI64Load16S:
		return "I64Load16S"
	case wasm.OpI64Load16U:
		return "I64Load16U"
	case wasm.OpI64Load32S:
		return "I64Load32S"
	case wasm.OpI64Load32U:
		return "I64Load32U"
	case wasm.OpF32Load:
		return "F32Load"
	case wasm.OpF64Load:
		return "F64Load"
	}
	return "I32Load"
}

// memStoreCall maps a store opcode to the Memory method name.
func memStoreCall(op byte) string {
	switch op {
	case wasm.OpI32Store:
		return "I32Store"
	case wasm.OpI32Store8:
		return "I32Store8"
	case wasm.OpI32Store16:
		return "I32Store16"
	case wasm.OpI64Store:
		return "I64Store"
	case wasm.OpI64Store8:
		return "I64Store8"
	case wasm.OpI64Store16:
		return "I64Store16"
	case wasm.OpI64Store32:
		return "I64Store32"
	case wasm.OpF32Store:
		return "F32Store"
	case wasm.OpF64Store:
		return "F64Store"
	}
	return "I32Store"
}

// truncCall maps a trapping truncation opcode to the wasmrt helper name.
func truncCall(op byte) string {
	switch op {
	case wasm.OpI32TruncF32S:
		return "TruncF32ToI32S"
	case wasm.OpI32TruncF32U:
		return "TruncF32ToI32U"
	case wasm.OpI32TruncF64S:
		return "TruncF64ToI32S"
	case wasm.OpI32TruncF64U:
		return "TruncF64ToI32U"
	case wasm.OpI64TruncF32S:
		return "TruncF32ToI64S"
	case wasm.OpI64TruncF32U:
		return "TruncF32ToI64U"
	case wasm.OpI64TruncF64S:
		return "TruncF64ToI64S"
	case wasm.OpI64TruncF64U:
		return "TruncF64ToI64U"
	}
	return "TruncF64ToI64S"
}

// minLiteral is the most negative value of a signed integer type, used by
// the division overflow guard.
func minLiteral(t wasm.ValType) string {
	if t == wasm.ValI64 {
		return "-9223372036854775808"
	}
	return "-2147483648"
}
