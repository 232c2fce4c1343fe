package wasm

import (
	"bytes"

	"github.com/wippyai/wasm2go/wasm/internal/binary"
)

// Encode serializes the module to WebAssembly binary format.
// Sections are written in canonical order; empty sections are omitted.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	if len(m.Types) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			writeFuncType(s, ft)
		}
		writeSection(w, SectionType, s.Bytes())
	}

	if len(m.Imports) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			s.WriteName(imp.Module)
			s.WriteName(imp.Name)
			s.Byte(imp.Desc.Kind)
			switch imp.Desc.Kind {
			case KindFunc:
				s.WriteU32(imp.Desc.TypeIdx)
			case KindTable:
				writeTableType(s, *imp.Desc.Table)
			case KindMemory:
				writeLimits(s, imp.Desc.Memory.Limits)
			case KindGlobal:
				writeGlobalType(s, *imp.Desc.Global)
			}
		}
		writeSection(w, SectionImport, s.Bytes())
	}

	if len(m.Funcs) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			s.WriteU32(typeIdx)
		}
		writeSection(w, SectionFunction, s.Bytes())
	}

	if len(m.Tables) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Tables)))
		for _, t := range m.Tables {
			writeTableType(s, t)
		}
		writeSection(w, SectionTable, s.Bytes())
	}

	if len(m.Memories) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			writeLimits(s, mem.Limits)
		}
		writeSection(w, SectionMemory, s.Bytes())
	}

	if len(m.Globals) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			writeGlobalType(s, g.Type)
			s.WriteBytes(g.Init)
		}
		writeSection(w, SectionGlobal, s.Bytes())
	}

	if len(m.Exports) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Exports)))
		for _, e := range m.Exports {
			s.WriteName(e.Name)
			s.Byte(e.Kind)
			s.WriteU32(e.Idx)
		}
		writeSection(w, SectionExport, s.Bytes())
	}

	if m.Start != nil {
		s := binary.NewWriter()
		s.WriteU32(*m.Start)
		writeSection(w, SectionStart, s.Bytes())
	}

	if len(m.Elements) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Elements)))
		for _, e := range m.Elements {
			s.WriteU32(e.Flags)
			switch e.Flags {
			case 0:
				s.WriteBytes(e.Offset)
			case 1:
				s.Byte(0) // elemkind funcref
			case 2:
				s.WriteU32(e.TableIdx)
				s.WriteBytes(e.Offset)
				s.Byte(0)
			}
			s.WriteU32(uint32(len(e.FuncIdxs)))
			for _, idx := range e.FuncIdxs {
				s.WriteU32(idx)
			}
		}
		writeSection(w, SectionElement, s.Bytes())
	}

	if m.DataCount != nil {
		s := binary.NewWriter()
		s.WriteU32(*m.DataCount)
		writeSection(w, SectionDataCount, s.Bytes())
	}

	if len(m.Code) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Code)))
		for _, fb := range m.Code {
			body := binary.NewWriter()
			body.WriteU32(uint32(len(fb.Locals)))
			for _, l := range fb.Locals {
				body.WriteU32(l.Count)
				body.Byte(byte(l.ValType))
			}
			body.WriteBytes(fb.Code)
			s.WriteU32(uint32(body.Len()))
			s.WriteBytes(body.Bytes())
		}
		writeSection(w, SectionCode, s.Bytes())
	}

	if len(m.Data) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(m.Data)))
		for _, d := range m.Data {
			s.WriteU32(d.Flags)
			switch d.Flags {
			case 0:
				s.WriteBytes(d.Offset)
			case 2:
				s.WriteU32(d.MemIdx)
				s.WriteBytes(d.Offset)
			}
			s.WriteU32(uint32(len(d.Init)))
			s.WriteBytes(d.Init)
		}
		writeSection(w, SectionData, s.Bytes())
	}

	for _, cs := range m.CustomSections {
		s := binary.NewWriter()
		s.WriteName(cs.Name)
		s.WriteBytes(cs.Data)
		writeSection(w, SectionCustom, s.Bytes())
	}

	return w.Bytes()
}

func writeSection(w *binary.Writer, id byte, data []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(data)))
	w.WriteBytes(data)
}

func writeFuncType(w *binary.Writer, ft FuncType) {
	w.Byte(FuncTypeByte)
	w.WriteU32(uint32(len(ft.Params)))
	for _, p := range ft.Params {
		w.Byte(byte(p))
	}
	w.WriteU32(uint32(len(ft.Results)))
	for _, r := range ft.Results {
		w.Byte(byte(r))
	}
}

func writeLimits(w *binary.Writer, l Limits) {
	if l.Max != nil {
		w.Byte(LimitsHasMax)
		w.WriteU32(l.Min)
		w.WriteU32(*l.Max)
	} else {
		w.Byte(LimitsNoMax)
		w.WriteU32(l.Min)
	}
}

func writeTableType(w *binary.Writer, t TableType) {
	w.Byte(t.ElemType)
	writeLimits(w, t.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.ValType))
	if g.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

// ConstExpr builds a constant init expression for the given instruction,
// including the trailing end opcode.
func ConstExpr(instr Instruction) []byte {
	var buf bytes.Buffer
	buf.Write(EncodeInstructions([]Instruction{instr}))
	buf.WriteByte(OpEnd)
	return buf.Bytes()
}
