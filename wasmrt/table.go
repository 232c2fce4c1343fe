package wasmrt

// FuncRef is one table slot: the interned signature identifier of the
// referenced function and the Go closure that invokes it. Fn is asserted to
// its concrete func type at the indirect call site.
type FuncRef struct {
	Fn  any
	Sig uint32
}

// Table is a WebAssembly funcref table. Slots start unset and are populated
// by element segments during instantiation.
type Table struct {
	elems []*FuncRef
}

// NewTable allocates a table with size unset slots.
func NewTable(size uint32) *Table {
	return &Table{elems: make([]*FuncRef, size)}
}

// Size returns the number of slots.
func (t *Table) Size() uint32 {
	return uint32(len(t.elems))
}

// Set stores a function reference at index i, trapping on an out-of-range
// index. Instantiation applies active element segments through it.
func (t *Table) Set(i uint32, ref *FuncRef) error {
	if i >= uint32(len(t.elems)) {
		return ErrOutOfBoundsTableAccess
	}
	t.elems[i] = ref
	return nil
}

// Get returns the reference at index i, trapping on an out-of-range index
// or an unset slot.
func (t *Table) Get(i uint32) (*FuncRef, error) {
	if i >= uint32(len(t.elems)) {
		return nil, ErrOutOfBoundsTableAccess
	}
	ref := t.elems[i]
	if ref == nil {
		return nil, ErrUninitializedElement
	}
	return ref, nil
}

// Init implements table.init: copy n references from a passive element
// segment at source offset s into the table at d.
func (t *Table) Init(d, s, n uint32, seg []*FuncRef) error {
	if uint64(s)+uint64(n) > uint64(len(seg)) {
		return ErrOutOfBoundsTableAccess
	}
	if uint64(d)+uint64(n) > uint64(len(t.elems)) {
		return ErrOutOfBoundsTableAccess
	}
	copy(t.elems[d:d+n], seg[s:s+n])
	return nil
}

// Invoke resolves slot idx for an indirect call with the given expected
// signature identifier. It performs the three checks WebAssembly mandates -
// table bounds, slot occupancy, signature equality - and returns the typed
// callee. The returned function still reports its own traps when called.
func Invoke[F any](t *Table, idx, sig uint32) (F, error) {
	var zero F
	ref, err := t.Get(idx)
	if err != nil {
		return zero, err
	}
	if ref.Sig != sig {
		return zero, ErrIndirectCallTypeMismatch
	}
	fn, ok := ref.Fn.(F)
	if !ok {
		return zero, ErrIndirectCallTypeMismatch
	}
	return fn, nil
}
