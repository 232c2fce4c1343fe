package codegen

import (
	"math"
	"strings"
	"testing"

	"github.com/wippyai/wasm2go/translate/internal/ir"
	"github.com/wippyai/wasm2go/wasm"
)

func bin(op byte) string {
	return binaryExpr(ir.Binary{Op: op, X: ir.Var{ID: 0}, Y: ir.Var{ID: 1}})
}

func TestBinaryExprSignedness(t *testing.T) {
	cases := []struct {
		op   byte
		want string
	}{
		{wasm.OpI32Add, "v0 + v1"},
		{wasm.OpI32DivS, "v0 / v1"},
		{wasm.OpI32DivU, "int32(uint32(v0) / uint32(v1))"},
		{wasm.OpI32RemU, "int32(uint32(v0) % uint32(v1))"},
		{wasm.OpI32Shl, "v0 << (uint32(v1) & 31)"},
		{wasm.OpI32ShrU, "int32(uint32(v0) >> (uint32(v1) & 31))"},
		{wasm.OpI64ShrS, "v0 >> (uint64(v1) & 63)"},
		{wasm.OpI32LtU, "wasmrt.B2I(uint32(v0) < uint32(v1))"},
		{wasm.OpI32LtS, "wasmrt.B2I(v0 < v1)"},
		{wasm.OpF64Min, "wasmrt.F64Min(v0, v1)"},
	}
	for _, c := range cases {
		if got := bin(c.op); got != c.want {
			t.Errorf("op 0x%02x: got %q, want %q", c.op, got, c.want)
		}
	}
}

func TestUnaryExprConversions(t *testing.T) {
	u := func(op byte) string { return unaryExpr(ir.Unary{Op: op, X: ir.Var{ID: 3}}) }
	cases := []struct {
		op   byte
		want string
	}{
		{wasm.OpI32WrapI64, "int32(v3)"},
		{wasm.OpI64ExtendI32U, "int64(uint32(v3))"},
		{wasm.OpI32Extend8S, "int32(int8(v3))"},
		{wasm.OpI64Extend32S, "int64(int32(v3))"},
		{wasm.OpF32ConvertI32U, "float32(uint32(v3))"},
		{wasm.OpI32Clz, "wasmrt.I32Clz(v3)"},
		{wasm.OpF64Nearest, "wasmrt.F64Nearest(v3)"},
		{wasm.OpI32ReinterpretF32, "wasmrt.I32ReinterpretF32(v3)"},
	}
	for _, c := range cases {
		if got := u(c.op); got != c.want {
			t.Errorf("op 0x%02x: got %q, want %q", c.op, got, c.want)
		}
	}
}

func TestFormatFloatEdgeCases(t *testing.T) {
	if got := formatF64(2.5); got != "2.5" {
		t.Errorf("plain value: %q", got)
	}
	if got := formatF64(math.Copysign(0, -1)); !strings.Contains(got, "F64ReinterpretI64") {
		t.Errorf("negative zero must go through bits: %q", got)
	}
	if got := formatF64(math.NaN()); !strings.Contains(got, "F64ReinterpretI64") {
		t.Errorf("NaN must go through bits: %q", got)
	}
	if got := formatF32(float32(math.Inf(1))); !strings.Contains(got, "F32ReinterpretI32") {
		t.Errorf("infinity must go through bits: %q", got)
	}
	if got := formatF32(1.5); got != "1.5" {
		t.Errorf("plain f32: %q", got)
	}
}

func TestMemCallMapping(t *testing.T) {
	if memLoadCall(wasm.OpI64Load32U) != "I64Load32U" {
		t.Errorf("I64Load32U mapping wrong")
	}
	if memStoreCall(wasm.OpI32Store16) != "I32Store16" {
		t.Errorf("I32Store16 mapping wrong")
	}
	if truncCall(wasm.OpI32TruncF64U) != "TruncF64ToI32U" {
		t.Errorf("trunc mapping wrong")
	}
}
