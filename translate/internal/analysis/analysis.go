package analysis

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	werrors "github.com/wippyai/wasm2go/errors"
	"github.com/wippyai/wasm2go/wasm"
)

// Signature is an interned function signature. Equal signatures share one
// Signature value and one ID; the ID is what indirect calls compare.
type Signature struct {
	Params  []wasm.ValType
	Results []wasm.ValType
	ID      uint32
}

func (s *Signature) key() string {
	var b strings.Builder
	for _, p := range s.Params {
		b.WriteString(p.String())
		b.WriteByte(',')
	}
	b.WriteString("->")
	for _, r := range s.Results {
		b.WriteString(r.String())
		b.WriteByte(',')
	}
	return b.String()
}

// FuncEntry is one slot of the module-wide function index space.
type FuncEntry struct {
	Sig    *Signature
	Body   *wasm.FuncBody // nil for imported functions
	Module string         // host module name, imported only
	Field  string         // host field name, imported only
	Index  uint32
	Import bool
}

// GlobalEntry is one slot of the global index space. Imported globals must
// be immutable; they are materialized once at instantiation.
type GlobalEntry struct {
	Init   ConstValue // internal globals only
	Module string
	Field  string
	Type   wasm.GlobalType
	Index  uint32
	Import bool
}

// ConstKind discriminates the folded constant forms an initializer can take.
type ConstKind byte

const (
	ConstI32 ConstKind = iota
	ConstI64
	ConstF32
	ConstF64
	ConstGlobal // global.get of an imported immutable global
)

// ConstValue is a constant-folded initializer expression.
type ConstValue struct {
	I64       int64
	F64       float64
	F32       float32
	I32       int32
	GlobalIdx uint32
	Kind      ConstKind
}

// MemoryInfo classifies the module's linear memory.
type MemoryInfo struct {
	Module string // host module name, imported only
	Field  string
	Min    uint32 // pages
	Max    uint32 // pages, meaningful when HasMax
	HasMax bool
	Import bool
}

// TableInfo describes the module's funcref table.
type TableInfo struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// ImportGroup collects every import from one host module name. Each group
// becomes one capability interface on the generated module boundary.
type ImportGroup struct {
	Module  string
	Funcs   []*FuncEntry
	Globals []*GlobalEntry
}

// DataInfo is a data segment with its offset folded (active segments only).
type DataInfo struct {
	Offset  ConstValue
	Bytes   []byte
	Index   uint32
	Passive bool
}

// ElemInfo is an element segment with its offset folded.
type ElemInfo struct {
	Offset  ConstValue
	Funcs   []uint32
	Index   uint32
	Passive bool
}

// Analysis is the resolved module view consumed by lifting and emission.
type Analysis struct {
	Module  *wasm.Module
	Sigs    []*Signature // by interned ID
	TypeSig []*Signature // type-section index -> interned signature
	Funcs   []*FuncEntry // module-wide index order, imports first
	Globals []*GlobalEntry
	Memory  *MemoryInfo // nil when the module has no memory
	Table   *TableInfo  // nil when the module has no table
	Groups  []ImportGroup
	Data    []DataInfo
	Elems   []ElemInfo
	Exports []wasm.Export
	Start   *uint32

	NumImportedFuncs int
}

// IsLibrary reports whether the module borrows its memory from the host.
// The classification is fixed here and every later emission decision
// branches off it.
func (a *Analysis) IsLibrary() bool {
	return a.Memory != nil && a.Memory.Import
}

// Analyze resolves the decoded module into an Analysis. It is the single
// place feature rejection happens for constructs the decoder cannot see in
// isolation (imported tables, imported mutable globals, multiple anything).
func Analyze(m *wasm.Module) (*Analysis, error) {
	if err := m.Validate(); err != nil {
		var ue *wasm.UnsupportedError
		if stderrors.As(err, &ue) {
			return nil, werrors.Unsupported(werrors.PhaseAnalyze, ue.Feature)
		}
		return nil, werrors.Wrap(werrors.PhaseAnalyze, werrors.KindInvalidModule, err, "module validation")
	}

	a := &Analysis{Module: m, Exports: m.Exports, Start: m.Start}

	// Intern every signature in the type section.
	seen := make(map[string]*Signature, len(m.Types))
	a.TypeSig = make([]*Signature, len(m.Types))
	for i := range m.Types {
		s := &Signature{Params: m.Types[i].Params, Results: m.Types[i].Results}
		if existing, ok := seen[s.key()]; ok {
			a.TypeSig[i] = existing
			continue
		}
		s.ID = uint32(len(a.Sigs))
		seen[s.key()] = s
		a.Sigs = append(a.Sigs, s)
		a.TypeSig[i] = s
	}

	// Partition the import section and build the combined index spaces.
	groups := make(map[string]*ImportGroup)
	for i := range m.Imports {
		imp := &m.Imports[i]
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			sig := a.TypeSig[imp.Desc.TypeIdx]
			fe := &FuncEntry{
				Index:  uint32(len(a.Funcs)),
				Sig:    sig,
				Import: true,
				Module: imp.Module,
				Field:  imp.Name,
			}
			a.Funcs = append(a.Funcs, fe)
			group(groups, imp.Module).Funcs = append(group(groups, imp.Module).Funcs, fe)

		case wasm.KindGlobal:
			if imp.Desc.Global.Mutable {
				return nil, werrors.Unsupported(werrors.PhaseAnalyze, "imported mutable globals")
			}
			ge := &GlobalEntry{
				Index:  uint32(len(a.Globals)),
				Type:   *imp.Desc.Global,
				Import: true,
				Module: imp.Module,
				Field:  imp.Name,
			}
			a.Globals = append(a.Globals, ge)
			group(groups, imp.Module).Globals = append(group(groups, imp.Module).Globals, ge)

		case wasm.KindMemory:
			lim := imp.Desc.Memory.Limits
			a.Memory = &MemoryInfo{
				Import: true,
				Module: imp.Module,
				Field:  imp.Name,
				Min:    lim.Min,
				HasMax: lim.Max != nil,
			}
			if lim.Max != nil {
				a.Memory.Max = *lim.Max
			}

		case wasm.KindTable:
			return nil, werrors.Unsupported(werrors.PhaseAnalyze, "imported tables")
		}
	}
	a.NumImportedFuncs = len(a.Funcs)

	// Internal functions follow the imports in the index space.
	for i, typeIdx := range m.Funcs {
		a.Funcs = append(a.Funcs, &FuncEntry{
			Index: uint32(len(a.Funcs)),
			Sig:   a.TypeSig[typeIdx],
			Body:  &m.Code[i],
		})
	}

	// Memory classification: importing one makes this a library module;
	// declaring one makes it owned; neither leaves Memory nil.
	if len(m.Memories) > 0 {
		if a.Memory != nil {
			return nil, werrors.Unsupported(werrors.PhaseAnalyze, "multiple memories")
		}
		lim := m.Memories[0].Limits
		a.Memory = &MemoryInfo{Min: lim.Min, HasMax: lim.Max != nil}
		if lim.Max != nil {
			a.Memory.Max = *lim.Max
		}
	}

	if len(m.Tables) > 0 {
		lim := m.Tables[0].Limits
		a.Table = &TableInfo{Min: lim.Min, HasMax: lim.Max != nil}
		if lim.Max != nil {
			a.Table.Max = *lim.Max
		}
	}

	// Internal globals, with folded initializers.
	for i := range m.Globals {
		g := &m.Globals[i]
		cv, err := a.foldInitExpr(g.Init, g.Type.ValType)
		if err != nil {
			return nil, err
		}
		a.Globals = append(a.Globals, &GlobalEntry{
			Index: uint32(len(a.Globals)),
			Type:  g.Type,
			Init:  cv,
		})
	}

	// Segments, offsets folded now so instantiation is straight-line.
	for i := range m.Data {
		d := &m.Data[i]
		di := DataInfo{Index: uint32(i), Bytes: d.Init, Passive: d.IsPassive()}
		if !di.Passive {
			cv, err := a.foldInitExpr(d.Offset, wasm.ValI32)
			if err != nil {
				return nil, err
			}
			di.Offset = cv
		}
		a.Data = append(a.Data, di)
	}
	for i := range m.Elements {
		e := &m.Elements[i]
		ei := ElemInfo{Index: uint32(i), Funcs: e.FuncIdxs, Passive: e.IsPassive()}
		if !ei.Passive {
			cv, err := a.foldInitExpr(e.Offset, wasm.ValI32)
			if err != nil {
				return nil, err
			}
			ei.Offset = cv
		}
		a.Elems = append(a.Elems, ei)
	}

	// Deterministic group order: sorted by host module name.
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a.Groups = append(a.Groups, *groups[name])
	}

	return a, nil
}

func group(m map[string]*ImportGroup, name string) *ImportGroup {
	g, ok := m[name]
	if !ok {
		g = &ImportGroup{Module: name}
		m[name] = g
	}
	return g
}

// foldInitExpr evaluates a constant initializer expression to its folded
// form. The only accepted shapes are a single constant or a global.get of
// an imported immutable global, each followed by end.
func (a *Analysis) foldInitExpr(expr []byte, want wasm.ValType) (ConstValue, error) {
	var cv ConstValue
	instrs, err := wasm.DecodeInstructions(expr)
	if err != nil {
		return cv, werrors.Wrap(werrors.PhaseAnalyze, werrors.KindInvalidModule, err, "decode init expression")
	}
	if len(instrs) != 2 || instrs[1].Opcode != wasm.OpEnd {
		return cv, werrors.InvalidModule(werrors.PhaseAnalyze, "init expression is not a single constant")
	}

	in := instrs[0]
	switch in.Opcode {
	case wasm.OpI32Const:
		cv = ConstValue{Kind: ConstI32, I32: in.Imm.(wasm.I32Imm).Value}
		return checkConstType(cv, want, wasm.ValI32)
	case wasm.OpI64Const:
		cv = ConstValue{Kind: ConstI64, I64: in.Imm.(wasm.I64Imm).Value}
		return checkConstType(cv, want, wasm.ValI64)
	case wasm.OpF32Const:
		cv = ConstValue{Kind: ConstF32, F32: in.Imm.(wasm.F32Imm).Value}
		return checkConstType(cv, want, wasm.ValF32)
	case wasm.OpF64Const:
		cv = ConstValue{Kind: ConstF64, F64: in.Imm.(wasm.F64Imm).Value}
		return checkConstType(cv, want, wasm.ValF64)
	case wasm.OpGlobalGet:
		idx := in.Imm.(wasm.GlobalImm).GlobalIdx
		if int(idx) >= len(a.Globals) || !a.Globals[idx].Import {
			return cv, werrors.InvalidModule(werrors.PhaseAnalyze,
				"init expression references global %d, which is not an imported global", idx)
		}
		if got := a.Globals[idx].Type.ValType; got != want {
			return cv, werrors.InvalidModule(werrors.PhaseAnalyze,
				"init expression has type %s, want %s", got, want)
		}
		return ConstValue{Kind: ConstGlobal, GlobalIdx: idx}, nil
	}
	return cv, werrors.InvalidModule(werrors.PhaseAnalyze,
		"init expression uses non-constant opcode 0x%02x", in.Opcode)
}

func checkConstType(cv ConstValue, want, got wasm.ValType) (ConstValue, error) {
	if want != got {
		return cv, werrors.InvalidModule(werrors.PhaseAnalyze,
			"init expression has type %s, want %s", got, want)
	}
	return cv, nil
}

// OffsetValue returns the folded i32 offset of an active segment as a
// uint32, resolving imported-global references through the given values.
func (c ConstValue) OffsetValue(globals func(uint32) int32) uint32 {
	if c.Kind == ConstGlobal {
		return uint32(globals(c.GlobalIdx))
	}
	return uint32(c.I32)
}

// String renders the folded constant for diagnostics.
func (c ConstValue) String() string {
	switch c.Kind {
	case ConstI32:
		return fmt.Sprintf("i32:%d", c.I32)
	case ConstI64:
		return fmt.Sprintf("i64:%d", c.I64)
	case ConstF32:
		return fmt.Sprintf("f32:%g", c.F32)
	case ConstF64:
		return fmt.Sprintf("f64:%g", c.F64)
	case ConstGlobal:
		return fmt.Sprintf("global:%d", c.GlobalIdx)
	}
	return "invalid"
}

// SigOfFunc returns the interned signature for a module-wide function index.
func (a *Analysis) SigOfFunc(idx uint32) (*Signature, bool) {
	if int(idx) >= len(a.Funcs) {
		return nil, false
	}
	return a.Funcs[idx].Sig, true
}

// LocalTypes flattens a body's local declarations, params excluded.
func LocalTypes(body *wasm.FuncBody) []wasm.ValType {
	var out []wasm.ValType
	for _, le := range body.Locals {
		for i := uint32(0); i < le.Count; i++ {
			out = append(out, le.ValType)
		}
	}
	return out
}

// Summary returns a one-line description of the analyzed module for logs.
func (a *Analysis) Summary() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d funcs (%d imported), %d globals, %d exports, %d data segments, %d element segments",
		len(a.Funcs), a.NumImportedFuncs, len(a.Globals), len(a.Exports), len(a.Data), len(a.Elems))
	switch {
	case a.IsLibrary():
		b.WriteString(", imported memory")
	case a.Memory != nil:
		b.WriteString(", owned memory")
	}
	return b.String()
}
