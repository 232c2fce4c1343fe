package wasmrt

import (
	"encoding/binary"
	"math"
)

// PageSize is the WebAssembly linear memory page size in bytes.
const PageSize = 65536

// MaxPages is the hard page limit for 32-bit linear memory (4GiB).
const MaxPages uint32 = 65536

// NoMaxPages marks a memory declared without a maximum.
const NoMaxPages uint32 = 0xFFFFFFFF

// Memory is a bounds-checked WebAssembly linear memory. All accessors take
// a dynamic address and the operator's static offset separately so the
// effective-address computation cannot wrap in 32 bits.
type Memory struct {
	data []byte
	max  uint32
}

// NewMemory allocates a memory of initial pages with the given declared
// maximum (NoMaxPages for none). The declared maximum is clamped to the
// 4GiB architectural limit.
func NewMemory(initial, max uint32) *Memory {
	if max > MaxPages {
		max = MaxPages
	}
	return &Memory{
		data: make([]byte, uint64(initial)*PageSize),
		max:  max,
	}
}

// Pages returns the current size in pages.
func (m *Memory) Pages() uint32 {
	return uint32(len(m.data) / PageSize)
}

// Len returns the current size in bytes.
func (m *Memory) Len() uint32 {
	return uint32(len(m.data))
}

// Grow extends the memory by delta pages, returning the previous size in
// pages, or -1 when growth would exceed the declared maximum.
func (m *Memory) Grow(delta uint32) int32 {
	cur := m.Pages()
	if uint64(cur)+uint64(delta) > uint64(m.max) {
		return -1
	}
	m.data = append(m.data, make([]byte, uint64(delta)*PageSize)...)
	return int32(cur)
}

// Bytes exposes the backing store. Host embedders use it to exchange bulk
// data with a module; the slice is invalidated by Grow.
func (m *Memory) Bytes() []byte {
	return m.data
}

// span bounds-checks an n-byte access at addr+offset and returns the start
// index. The sum is computed in 64 bits; a 32-bit wrap cannot produce a
// false pass.
func (m *Memory) span(addr, offset, n uint32) (uint32, error) {
	ea := uint64(addr) + uint64(offset)
	if ea+uint64(n) > uint64(len(m.data)) {
		return 0, ErrOutOfBoundsMemoryAccess
	}
	return uint32(ea), nil
}

// I32Load reads a little-endian i32.
func (m *Memory) I32Load(addr, offset uint32) (int32, error) {
	i, err := m.span(addr, offset, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(m.data[i:])), nil
}

// I32Load8S reads one byte and sign-extends it to i32.
func (m *Memory) I32Load8S(addr, offset uint32) (int32, error) {
	i, err := m.span(addr, offset, 1)
	if err != nil {
		return 0, err
	}
	return int32(int8(m.data[i])), nil
}

// I32Load8U reads one byte and zero-extends it to i32.
func (m *Memory) I32Load8U(addr, offset uint32) (int32, error) {
	i, err := m.span(addr, offset, 1)
	if err != nil {
		return 0, err
	}
	return int32(m.data[i]), nil
}

// I32Load16S reads a little-endian 16-bit value and sign-extends it to i32.
func (m *Memory) I32Load16S(addr, offset uint32) (int32, error) {
	i, err := m.span(addr, offset, 2)
	if err != nil {
		return 0, err
	}
	return int32(int16(binary.LittleEndian.Uint16(m.data[i:]))), nil
}

// I32Load16U reads a little-endian 16-bit value and zero-extends it to i32.
func (m *Memory) I32Load16U(addr, offset uint32) (int32, error) {
	i, err := m.span(addr, offset, 2)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint16(m.data[i:])), nil
}

// I64Load reads a little-endian i64.
func (m *Memory) I64Load(addr, offset uint32) (int64, error) {
	i, err := m.span(addr, offset, 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(m.data[i:])), nil
}

// I64Load8S reads one byte and sign-extends it to i64.
func (m *Memory) I64Load8S(addr, offset uint32) (int64, error) {
	i, err := m.span(addr, offset, 1)
	if err != nil {
		return 0, err
	}
	return int64(int8(m.data[i])), nil
}

// I64Load8U reads one byte and zero-extends it to i64.
func (m *Memory) I64Load8U(addr, offset uint32) (int64, error) {
	i, err := m.span(addr, offset, 1)
	if err != nil {
		return 0, err
	}
	return int64(m.data[i]), nil
}

// I64Load16S reads a little-endian 16-bit value and sign-extends it to i64.
func (m *Memory) I64Load16S(addr, offset uint32) (int64, error) {
	i, err := m.span(addr, offset, 2)
	if err != nil {
		return 0, err
	}
	return int64(int16(binary.LittleEndian.Uint16(m.data[i:]))), nil
}

// I64Load16U reads a little-endian 16-bit value and zero-extends it to i64.
func (m *Memory) I64Load16U(addr, offset uint32) (int64, error) {
	i, err := m.span(addr, offset, 2)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint16(m.data[i:])), nil
}

// I64Load32S reads a little-endian 32-bit value and sign-extends it to i64.
func (m *Memory) I64Load32S(addr, offset uint32) (int64, error) {
	i, err := m.span(addr, offset, 4)
	if err != nil {
		return 0, err
	}
	return int64(int32(binary.LittleEndian.Uint32(m.data[i:]))), nil
}

// I64Load32U reads a little-endian 32-bit value and zero-extends it to i64.
func (m *Memory) I64Load32U(addr, offset uint32) (int64, error) {
	i, err := m.span(addr, offset, 4)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint32(m.data[i:])), nil
}

// F32Load reads a little-endian f32.
func (m *Memory) F32Load(addr, offset uint32) (float32, error) {
	i, err := m.span(addr, offset, 4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(m.data[i:])), nil
}

// F64Load reads a little-endian f64.
func (m *Memory) F64Load(addr, offset uint32) (float64, error) {
	i, err := m.span(addr, offset, 8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(m.data[i:])), nil
}

// I32Store writes a little-endian i32.
func (m *Memory) I32Store(addr, offset uint32, v int32) error {
	i, err := m.span(addr, offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[i:], uint32(v))
	return nil
}

// I32Store8 writes the low 8 bits of an i32.
func (m *Memory) I32Store8(addr, offset uint32, v int32) error {
	i, err := m.span(addr, offset, 1)
	if err != nil {
		return err
	}
	m.data[i] = byte(v)
	return nil
}

// I32Store16 writes the low 16 bits of an i32, little-endian.
func (m *Memory) I32Store16(addr, offset uint32, v int32) error {
	i, err := m.span(addr, offset, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[i:], uint16(v))
	return nil
}

// I64Store writes a little-endian i64.
func (m *Memory) I64Store(addr, offset uint32, v int64) error {
	i, err := m.span(addr, offset, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[i:], uint64(v))
	return nil
}

// I64Store8 writes the low 8 bits of an i64.
func (m *Memory) I64Store8(addr, offset uint32, v int64) error {
	i, err := m.span(addr, offset, 1)
	if err != nil {
		return err
	}
	m.data[i] = byte(v)
	return nil
}

// I64Store16 writes the low 16 bits of an i64, little-endian.
func (m *Memory) I64Store16(addr, offset uint32, v int64) error {
	i, err := m.span(addr, offset, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[i:], uint16(v))
	return nil
}

// I64Store32 writes the low 32 bits of an i64, little-endian.
func (m *Memory) I64Store32(addr, offset uint32, v int64) error {
	i, err := m.span(addr, offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[i:], uint32(v))
	return nil
}

// F32Store writes a little-endian f32.
func (m *Memory) F32Store(addr, offset uint32, v float32) error {
	i, err := m.span(addr, offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[i:], math.Float32bits(v))
	return nil
}

// F64Store writes a little-endian f64.
func (m *Memory) F64Store(addr, offset uint32, v float64) error {
	i, err := m.span(addr, offset, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[i:], math.Float64bits(v))
	return nil
}

// Init copies an active data segment into memory at offset.
func (m *Memory) Init(offset uint32, data []byte) error {
	i, err := m.span(offset, 0, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(m.data[i:], data)
	return nil
}

// InitFrom implements memory.init: copy n bytes from a passive segment at
// source offset s to memory at d. A dropped segment is an empty slice, so
// only a zero-length init succeeds against it.
func (m *Memory) InitFrom(d, s, n uint32, seg []byte) error {
	if uint64(s)+uint64(n) > uint64(len(seg)) {
		return ErrOutOfBoundsMemoryAccess
	}
	i, err := m.span(d, 0, n)
	if err != nil {
		return err
	}
	copy(m.data[i:], seg[s:s+n])
	return nil
}

// Copy implements memory.copy with memmove overlap semantics.
func (m *Memory) Copy(dst, src, n uint32) error {
	di, err := m.span(dst, 0, n)
	if err != nil {
		return err
	}
	si, err := m.span(src, 0, n)
	if err != nil {
		return err
	}
	copy(m.data[di:di+n], m.data[si:si+n])
	return nil
}

// Fill implements memory.fill.
func (m *Memory) Fill(dst uint32, val int32, n uint32) error {
	i, err := m.span(dst, 0, n)
	if err != nil {
		return err
	}
	b := byte(val)
	region := m.data[i : i+n]
	for j := range region {
		region[j] = b
	}
	return nil
}
