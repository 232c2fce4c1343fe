package wasmrt

import (
	"errors"
	"math"
	"testing"
)

func TestBitCounting(t *testing.T) {
	if I32Clz(1) != 31 || I32Clz(0) != 32 || I32Clz(-1) != 0 {
		t.Errorf("I32Clz wrong: %d %d %d", I32Clz(1), I32Clz(0), I32Clz(-1))
	}
	if I32Ctz(8) != 3 || I32Ctz(0) != 32 {
		t.Errorf("I32Ctz wrong")
	}
	if I32Popcnt(-1) != 32 || I32Popcnt(0b1011) != 3 {
		t.Errorf("I32Popcnt wrong")
	}
	if I64Clz(1) != 63 || I64Ctz(0) != 64 || I64Popcnt(-1) != 64 {
		t.Errorf("64-bit counts wrong")
	}
}

func TestRotations(t *testing.T) {
	if got := I32Rotl(0x12345678, 8); uint32(got) != 0x34567812 {
		t.Errorf("I32Rotl = %#x", uint32(got))
	}
	if got := I32Rotr(0x12345678, 8); uint32(got) != 0x78123456 {
		t.Errorf("I32Rotr = %#x", uint32(got))
	}
	// Counts are taken modulo the bit width.
	if I32Rotl(1, 33) != 2 {
		t.Errorf("I32Rotl count masking wrong")
	}
	if I64Rotl(1, 65) != 2 {
		t.Errorf("I64Rotl count masking wrong")
	}
}

func TestTruncTrapping(t *testing.T) {
	if v, err := TruncF64ToI32S(-3.7); err != nil || v != -3 {
		t.Errorf("TruncF64ToI32S(-3.7) = %d, %v", v, err)
	}
	if _, err := TruncF64ToI32S(math.NaN()); !errors.Is(err, ErrInvalidConversion) {
		t.Errorf("NaN should trap: %v", err)
	}
	if _, err := TruncF64ToI32S(2147483648); !errors.Is(err, ErrInvalidConversion) {
		t.Errorf("2^31 should trap: %v", err)
	}
	if v, err := TruncF64ToI32S(-2147483648.9); err != nil || v != math.MinInt32 {
		t.Errorf("fractional edge = %d, %v", v, err)
	}
	if _, err := TruncF64ToI32U(-1); !errors.Is(err, ErrInvalidConversion) {
		t.Errorf("-1 unsigned should trap: %v", err)
	}
	if v, err := TruncF64ToI32U(-0.5); err != nil || v != 0 {
		t.Errorf("(-1,0) truncates to 0: %d, %v", v, err)
	}
	if v, err := TruncF64ToI32U(4294967295); err != nil || uint32(v) != math.MaxUint32 {
		t.Errorf("u32 max = %#x, %v", uint32(v), err)
	}
	if v, err := TruncF32ToI64S(-1.5); err != nil || v != -1 {
		t.Errorf("TruncF32ToI64S = %d, %v", v, err)
	}
	if _, err := TruncF32ToI64U(float32(math.Inf(1))); !errors.Is(err, ErrInvalidConversion) {
		t.Errorf("+inf should trap: %v", err)
	}
}

func TestTruncSaturating(t *testing.T) {
	if TruncSatF64ToI32S(math.NaN()) != 0 {
		t.Errorf("NaN saturates to 0")
	}
	if TruncSatF64ToI32S(1e18) != math.MaxInt32 {
		t.Errorf("overflow saturates to max")
	}
	if TruncSatF64ToI32S(-1e18) != math.MinInt32 {
		t.Errorf("underflow saturates to min")
	}
	if uint32(TruncSatF64ToI32U(1e18)) != math.MaxUint32 {
		t.Errorf("unsigned overflow saturates to all-ones")
	}
	if TruncSatF64ToI32U(-7) != 0 {
		t.Errorf("unsigned negative saturates to 0")
	}
	if TruncSatF64ToI64S(-42.9) != -42 {
		t.Errorf("in-range value truncates normally")
	}
	if uint64(TruncSatF32ToI64U(float32(math.Inf(1)))) != math.MaxUint64 {
		t.Errorf("u64 +inf saturates to all-ones")
	}
}

func TestFloatMinMax(t *testing.T) {
	if !math.IsNaN(F64Min(1, math.NaN())) {
		t.Errorf("min must propagate NaN")
	}
	if !math.IsNaN(float64(F32Max(float32(math.NaN()), 1))) {
		t.Errorf("max must propagate NaN")
	}
	// min(+0, -0) = -0
	if !math.Signbit(F64Min(0, math.Copysign(0, -1))) {
		t.Errorf("min(+0,-0) should be -0")
	}
	if math.Signbit(F64Max(0, math.Copysign(0, -1))) {
		t.Errorf("max(+0,-0) should be +0")
	}
	if F32Min(2.5, 1.5) != 1.5 || F64Max(2.5, 1.5) != 2.5 {
		t.Errorf("ordinary min/max wrong")
	}
}

func TestNearestRoundsTiesToEven(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0.5, 0}, {1.5, 2}, {2.5, 2}, {-0.5, 0}, {-1.5, -2}, {4.7, 5},
	}
	for _, c := range cases {
		if got := F64Nearest(c.in); got != c.want {
			t.Errorf("F64Nearest(%v) = %v, want %v", c.in, got, c.want)
		}
	}
	if F32Nearest(2.5) != 2 {
		t.Errorf("F32Nearest(2.5) != 2")
	}
}

func TestNegFlipsSignOfNaN(t *testing.T) {
	n := math.NaN()
	if math.Signbit(n) == math.Signbit(F64Neg(n)) {
		t.Errorf("neg must flip NaN sign bit")
	}
	if F32Neg(1.5) != -1.5 {
		t.Errorf("F32Neg(1.5) wrong")
	}
	if math.Signbit(float64(F32Abs(float32(math.Copysign(2, -1))))) {
		t.Errorf("F32Abs must clear sign")
	}
}

func TestReinterpretRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1.5, -2.25, math.MaxFloat64, math.SmallestNonzeroFloat64} {
		if F64ReinterpretI64(I64ReinterpretF64(f)) != f {
			t.Errorf("f64 reinterpret round trip lost %v", f)
		}
	}
	for _, f := range []float32{0, 1.5, -2.25, math.MaxFloat32} {
		if F32ReinterpretI32(I32ReinterpretF32(f)) != f {
			t.Errorf("f32 reinterpret round trip lost %v", f)
		}
	}
	if I32ReinterpretF32(1.0) != 0x3F800000 {
		t.Errorf("bit pattern of 1.0f wrong: %#x", I32ReinterpretF32(1.0))
	}
}

func TestB2I(t *testing.T) {
	if B2I(true) != 1 || B2I(false) != 0 {
		t.Errorf("B2I wrong")
	}
}
