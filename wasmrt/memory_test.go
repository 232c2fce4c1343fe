package wasmrt

import (
	"errors"
	"testing"
)

func TestMemoryLoadStoreWidths(t *testing.T) {
	m := NewMemory(1, NoMaxPages)

	if err := m.I32Store(0, 0, -2); err != nil {
		t.Fatalf("I32Store: %v", err)
	}
	v, err := m.I32Load(0, 0)
	if err != nil || v != -2 {
		t.Errorf("I32Load = %d, %v", v, err)
	}

	// 0xFE byte read back signed and unsigned.
	b, err := m.I32Load8S(0, 0)
	if err != nil || b != -2 {
		t.Errorf("I32Load8S = %d, %v", b, err)
	}
	ub, err := m.I32Load8U(0, 0)
	if err != nil || ub != 0xFE {
		t.Errorf("I32Load8U = %d, %v", ub, err)
	}

	if err := m.I64Store(8, 0, -1); err != nil {
		t.Fatalf("I64Store: %v", err)
	}
	w, err := m.I64Load32U(8, 0)
	if err != nil || w != 0xFFFFFFFF {
		t.Errorf("I64Load32U = %d, %v", w, err)
	}
	ws, err := m.I64Load32S(8, 0)
	if err != nil || ws != -1 {
		t.Errorf("I64Load32S = %d, %v", ws, err)
	}

	if err := m.F64Store(16, 0, 2.5); err != nil {
		t.Fatalf("F64Store: %v", err)
	}
	f, err := m.F64Load(16, 0)
	if err != nil || f != 2.5 {
		t.Errorf("F64Load = %v, %v", f, err)
	}
}

func TestMemoryLittleEndianLayout(t *testing.T) {
	m := NewMemory(1, NoMaxPages)
	if err := m.Init(0, []byte{0x01, 0x02, 0x03, 0x04}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	v, err := m.I32Load(0, 0)
	if err != nil || uint32(v) != 0x04030201 {
		t.Errorf("I32Load = %#x, %v, want 0x04030201", uint32(v), err)
	}
}

func TestMemoryBoundsChecks(t *testing.T) {
	m := NewMemory(1, NoMaxPages)

	if _, err := m.I32Load(PageSize-3, 0); !errors.Is(err, ErrOutOfBoundsMemoryAccess) {
		t.Errorf("straddling load: %v", err)
	}
	if _, err := m.I32Load(PageSize-4, 0); err != nil {
		t.Errorf("edge load: %v", err)
	}
	// Static offset pushes past the end; the 64-bit sum must not wrap.
	if _, err := m.I64Load(0xFFFFFFFF, 0xFFFFFFFF); !errors.Is(err, ErrOutOfBoundsMemoryAccess) {
		t.Errorf("wrapping address: %v", err)
	}
	if err := m.I32Store8(PageSize, 0, 1); !errors.Is(err, ErrOutOfBoundsMemoryAccess) {
		t.Errorf("store past end: %v", err)
	}
}

func TestMemoryGrow(t *testing.T) {
	m := NewMemory(1, 4)

	if prev := m.Grow(2); prev != 1 {
		t.Errorf("Grow(2) = %d, want 1", prev)
	}
	if m.Pages() != 3 {
		t.Errorf("Pages = %d, want 3", m.Pages())
	}
	if prev := m.Grow(5); prev != -1 {
		t.Errorf("Grow(5) past max = %d, want -1", prev)
	}
	if m.Pages() != 3 {
		t.Errorf("failed grow changed size to %d", m.Pages())
	}

	// Previously written data survives growth.
	if err := m.I32Store(0, 0, 7); err != nil {
		t.Fatalf("I32Store: %v", err)
	}
	m.Grow(1)
	v, _ := m.I32Load(0, 0)
	if v != 7 {
		t.Errorf("data lost across grow: %d", v)
	}
}

func TestMemoryBulkOps(t *testing.T) {
	m := NewMemory(1, NoMaxPages)
	seg := []byte{9, 8, 7, 6, 5}

	if err := m.InitFrom(10, 1, 3, seg); err != nil {
		t.Fatalf("InitFrom: %v", err)
	}
	v, _ := m.I32Load8U(11, 0)
	if v != 7 {
		t.Errorf("InitFrom copied wrong bytes: %d", v)
	}
	if err := m.InitFrom(0, 4, 2, seg); !errors.Is(err, ErrOutOfBoundsMemoryAccess) {
		t.Errorf("InitFrom past segment end: %v", err)
	}
	if err := m.InitFrom(0, 0, 1, nil); !errors.Is(err, ErrOutOfBoundsMemoryAccess) {
		t.Errorf("InitFrom on dropped segment: %v", err)
	}

	if err := m.Fill(100, 0xAB, 4); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if err := m.Copy(104, 100, 4); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	got, _ := m.I32Load8U(107, 0)
	if got != 0xAB {
		t.Errorf("Copy result = %#x", got)
	}

	// Overlapping copy keeps memmove semantics.
	if err := m.Init(200, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := m.Copy(201, 200, 3); err != nil {
		t.Fatal(err)
	}
	b1, _ := m.I32Load8U(201, 0)
	b3, _ := m.I32Load8U(203, 0)
	if b1 != 1 || b3 != 3 {
		t.Errorf("overlapping copy wrong: %d %d", b1, b3)
	}
}
