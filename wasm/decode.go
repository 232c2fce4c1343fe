package wasm

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/wippyai/wasm2go/wasm/internal/binary"
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// UnsupportedError reports a module construct outside the accepted subset.
type UnsupportedError struct {
	Feature string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported feature: %s", e.Feature)
}

func unsupported(feature string) error {
	return &UnsupportedError{Feature: feature}
}

// ParseModule parses a WebAssembly binary module
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(bytes.NewReader(data))

	// Check magic number
	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}

	// Check version
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}

	// Track section ordering using canonical order, not section IDs.
	// Spec order: Type(1), Import(2), Function(3), Table(4), Memory(5),
	// Global(6), Export(7), Start(8), Element(9), DataCount(12), Code(10), Data(11)
	var lastSectionOrder int

	for {
		sectionID, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, r.WrapError("section header", err)
		}

		if sectionID == SectionTag {
			return nil, unsupported("exception handling")
		}

		// Validate section ordering (custom sections can appear anywhere)
		if sectionID != SectionCustom {
			order := sectionOrder(sectionID)
			if order <= lastSectionOrder {
				return nil, fmt.Errorf("section %d appears out of order", sectionID)
			}
			lastSectionOrder = order
		}

		sectionSize, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}

		sectionData, err := r.ReadBytes(int(sectionSize))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		sr := binary.NewReader(bytes.NewReader(sectionData))

		switch sectionID {
		case SectionCustom:
			if err := parseCustomSection(sr, m); err != nil {
				return nil, fmt.Errorf("custom section: %w", err)
			}
		case SectionType:
			if err := parseTypeSection(sr, m); err != nil {
				return nil, fmt.Errorf("type section: %w", err)
			}
		case SectionImport:
			if err := parseImportSection(sr, m); err != nil {
				return nil, fmt.Errorf("import section: %w", err)
			}
		case SectionFunction:
			if err := parseFunctionSection(sr, m); err != nil {
				return nil, fmt.Errorf("function section: %w", err)
			}
		case SectionTable:
			if err := parseTableSection(sr, m); err != nil {
				return nil, fmt.Errorf("table section: %w", err)
			}
		case SectionMemory:
			if err := parseMemorySection(sr, m); err != nil {
				return nil, fmt.Errorf("memory section: %w", err)
			}
		case SectionGlobal:
			if err := parseGlobalSection(sr, m); err != nil {
				return nil, fmt.Errorf("global section: %w", err)
			}
		case SectionExport:
			if err := parseExportSection(sr, m); err != nil {
				return nil, fmt.Errorf("export section: %w", err)
			}
		case SectionStart:
			if err := parseStartSection(sr, m); err != nil {
				return nil, fmt.Errorf("start section: %w", err)
			}
		case SectionElement:
			if err := parseElementSection(sr, m); err != nil {
				return nil, fmt.Errorf("element section: %w", err)
			}
		case SectionCode:
			if err := parseCodeSection(sr, m); err != nil {
				return nil, fmt.Errorf("code section: %w", err)
			}
		case SectionData:
			if err := parseDataSection(sr, m); err != nil {
				return nil, fmt.Errorf("data section: %w", err)
			}
		case SectionDataCount:
			if err := parseDataCountSection(sr, m); err != nil {
				return nil, fmt.Errorf("data count section: %w", err)
			}
		default:
			return nil, fmt.Errorf("unknown section ID: 0x%02x", sectionID)
		}
	}

	return m, nil
}

// sectionOrder returns the canonical ordering for a section ID.
// The spec requires sections in a specific order which differs from raw IDs.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionGlobal:
		return 6
	case SectionExport:
		return 7
	case SectionStart:
		return 8
	case SectionElement:
		return 9
	case SectionDataCount:
		return 10 // DataCount must come before Code
	case SectionCode:
		return 11
	case SectionData:
		return 12
	default:
		return 100 // Unknown sections at end
	}
}

func parseCustomSection(r *binary.Reader, m *Module) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	data, err := r.ReadRemaining()
	if err != nil {
		return err
	}
	m.CustomSections = append(m.CustomSections, CustomSection{Name: name, Data: data})
	return nil
}

func readValType(r *binary.Reader) (ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	vt := ValType(b)
	switch vt {
	case ValI32, ValI64, ValF32, ValF64:
		return vt, nil
	case ValV128:
		return 0, unsupported("SIMD")
	case ValFuncRef, ValExtern:
		return 0, unsupported("reference types")
	}
	return 0, fmt.Errorf("invalid value type 0x%02x", b)
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Types = make([]FuncType, 0, count)
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != FuncTypeByte {
			return unsupported("garbage collection")
		}
		ft, err := readFuncType(r)
		if err != nil {
			return err
		}
		m.Types = append(m.Types, ft)
	}
	return nil
}

func readFuncType(r *binary.Reader) (FuncType, error) {
	var ft FuncType
	nParams, err := r.ReadU32()
	if err != nil {
		return ft, err
	}
	ft.Params = make([]ValType, nParams)
	for i := range ft.Params {
		if ft.Params[i], err = readValType(r); err != nil {
			return ft, err
		}
	}
	nResults, err := r.ReadU32()
	if err != nil {
		return ft, err
	}
	ft.Results = make([]ValType, nResults)
	for i := range ft.Results {
		if ft.Results[i], err = readValType(r); err != nil {
			return ft, err
		}
	}
	return ft, nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	var l Limits
	flags, err := r.ReadByte()
	if err != nil {
		return l, err
	}
	if flags&LimitsShared != 0 {
		return l, unsupported("threads")
	}
	if flags&LimitsMemory64 != 0 {
		return l, unsupported("memory64")
	}
	if flags > LimitsHasMax {
		return l, fmt.Errorf("invalid limits flags 0x%02x", flags)
	}
	l.Min, err = r.ReadU32()
	if err != nil {
		return l, err
	}
	if flags == LimitsHasMax {
		max, err := r.ReadU32()
		if err != nil {
			return l, err
		}
		l.Max = &max
	}
	return l, nil
}

func readTableType(r *binary.Reader) (TableType, error) {
	var t TableType
	elemType, err := r.ReadByte()
	if err != nil {
		return t, err
	}
	if ValType(elemType) != ValFuncRef {
		return t, unsupported("non-funcref tables")
	}
	t.ElemType = elemType
	t.Limits, err = readLimits(r)
	return t, err
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	var g GlobalType
	vt, err := readValType(r)
	if err != nil {
		return g, err
	}
	g.ValType = vt
	mut, err := r.ReadByte()
	if err != nil {
		return g, err
	}
	if mut > 1 {
		return g, fmt.Errorf("invalid mutability flag 0x%02x", mut)
	}
	g.Mutable = mut == 1
	return g, nil
}

func parseImportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Imports = make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		mod, err := r.ReadName()
		if err != nil {
			return err
		}
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		imp := Import{Module: mod, Name: name, Desc: ImportDesc{Kind: kind}}
		switch kind {
		case KindFunc:
			imp.Desc.TypeIdx, err = r.ReadU32()
			if err != nil {
				return err
			}
		case KindTable:
			t, err := readTableType(r)
			if err != nil {
				return err
			}
			imp.Desc.Table = &t
		case KindMemory:
			mt, err := readLimits(r)
			if err != nil {
				return err
			}
			imp.Desc.Memory = &MemoryType{Limits: mt}
		case KindGlobal:
			g, err := readGlobalType(r)
			if err != nil {
				return err
			}
			imp.Desc.Global = &g
		default:
			return fmt.Errorf("invalid import kind 0x%02x", kind)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Funcs = make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		if m.Funcs[i], err = r.ReadU32(); err != nil {
			return err
		}
	}
	return nil
}

func parseTableSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		t, err := readTableType(r)
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, t)
	}
	return nil
}

func parseMemorySection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		l, err := readLimits(r)
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, MemoryType{Limits: l})
	}
	return nil
}

func parseGlobalSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := readInitExpr(r)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, Global{Type: gt, Init: init})
	}
	return nil
}

// readInitExpr consumes a constant expression up to and including its end
// opcode, returning the raw bytes including the terminator.
func readInitExpr(r *binary.Reader) ([]byte, error) {
	start := r.Position()
	var buf bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf.WriteByte(b)
		switch b {
		case OpEnd:
			return buf.Bytes(), nil
		case OpI32Const:
			v, err := r.ReadS32()
			if err != nil {
				return nil, err
			}
			WriteLEB128s(&buf, v)
		case OpI64Const:
			v, err := r.ReadS64()
			if err != nil {
				return nil, err
			}
			WriteLEB128s64(&buf, v)
		case OpF32Const:
			raw, err := r.ReadBytes(4)
			if err != nil {
				return nil, err
			}
			buf.Write(raw)
		case OpF64Const:
			raw, err := r.ReadBytes(8)
			if err != nil {
				return nil, err
			}
			buf.Write(raw)
		case OpGlobalGet:
			v, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			WriteLEB128u(&buf, v)
		default:
			return nil, fmt.Errorf("non-constant opcode 0x%02x in init expression at %d", b, start)
		}
	}
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Exports = make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if kind > KindGlobal {
			return fmt.Errorf("invalid export kind 0x%02x", kind)
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Idx: idx})
	}
	return nil
}

func parseStartSection(r *binary.Reader, m *Module) error {
	idx, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Start = &idx
	return nil
}

func parseElementSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		e := Element{Flags: flags}
		switch flags {
		case 0:
			e.Offset, err = readInitExpr(r)
			if err != nil {
				return err
			}
		case 1:
			kind, err := r.ReadByte()
			if err != nil {
				return err
			}
			if kind != 0 {
				return unsupported("non-funcref element segments")
			}
		case 2:
			e.TableIdx, err = r.ReadU32()
			if err != nil {
				return err
			}
			e.Offset, err = readInitExpr(r)
			if err != nil {
				return err
			}
			kind, err := r.ReadByte()
			if err != nil {
				return err
			}
			if kind != 0 {
				return unsupported("non-funcref element segments")
			}
		default:
			return unsupported("element expressions")
		}
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		e.FuncIdxs = make([]uint32, n)
		for j := uint32(0); j < n; j++ {
			if e.FuncIdxs[j], err = r.ReadU32(); err != nil {
				return err
			}
		}
		m.Elements = append(m.Elements, e)
	}
	return nil
}

func parseCodeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Code = make([]FuncBody, 0, count)
	for i := uint32(0); i < count; i++ {
		bodySize, err := r.ReadU32()
		if err != nil {
			return err
		}
		body, err := r.ReadBytes(int(bodySize))
		if err != nil {
			return err
		}
		fb, err := parseFuncBody(body)
		if err != nil {
			return fmt.Errorf("function body %d: %w", i, err)
		}
		m.Code = append(m.Code, fb)
	}
	return nil
}

func parseFuncBody(body []byte) (FuncBody, error) {
	var fb FuncBody
	br := binary.NewReader(bytes.NewReader(body))
	nLocals, err := br.ReadU32()
	if err != nil {
		return fb, err
	}
	fb.Locals = make([]LocalEntry, 0, nLocals)
	for i := uint32(0); i < nLocals; i++ {
		n, err := br.ReadU32()
		if err != nil {
			return fb, err
		}
		vt, err := readValType(br)
		if err != nil {
			return fb, err
		}
		fb.Locals = append(fb.Locals, LocalEntry{Count: n, ValType: vt})
	}
	fb.Code, err = br.ReadRemaining()
	return fb, err
}

func parseDataSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Data = make([]DataSegment, 0, count)
	for i := uint32(0); i < count; i++ {
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		d := DataSegment{Flags: flags}
		switch flags {
		case 0:
			d.Offset, err = readInitExpr(r)
			if err != nil {
				return err
			}
		case 1:
			// passive, payload only
		case 2:
			d.MemIdx, err = r.ReadU32()
			if err != nil {
				return err
			}
			d.Offset, err = readInitExpr(r)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("invalid data segment flags %d", flags)
		}
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		d.Init, err = r.ReadBytes(int(n))
		if err != nil {
			return err
		}
		m.Data = append(m.Data, d)
	}
	return nil
}

func parseDataCountSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.DataCount = &count
	return nil
}
