package wasm

import (
	"fmt"
)

// Validate performs structural validation of the module: index spaces are
// consistent and every cross-section reference is in bounds. It does not
// type-check function bodies; the translator trusts its input to have been
// validated by a full validator before decoding.
func (m *Module) Validate() error {
	if len(m.Funcs) != len(m.Code) {
		return fmt.Errorf("function section declares %d functions but code section has %d bodies",
			len(m.Funcs), len(m.Code))
	}

	numTypes := uint32(len(m.Types))
	for i, typeIdx := range m.Funcs {
		if typeIdx >= numTypes {
			return fmt.Errorf("function %d references type %d, module has %d types", i, typeIdx, numTypes)
		}
	}
	for i, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc && imp.Desc.TypeIdx >= numTypes {
			return fmt.Errorf("import %d (%s.%s) references type %d, module has %d types",
				i, imp.Module, imp.Name, imp.Desc.TypeIdx, numTypes)
		}
	}

	numFuncs := uint32(m.NumImportedFuncs() + len(m.Funcs))
	numTables := uint32(m.NumImportedTables() + len(m.Tables))
	numMemories := uint32(m.NumImportedMemories() + len(m.Memories))
	numGlobals := uint32(m.NumImportedGlobals() + len(m.Globals))

	if numMemories > 1 {
		return &UnsupportedError{Feature: "multiple memories"}
	}
	if numTables > 1 {
		return &UnsupportedError{Feature: "multiple tables"}
	}

	seen := make(map[string]bool, len(m.Exports))
	for i, e := range m.Exports {
		if seen[e.Name] {
			return fmt.Errorf("duplicate export name %q", e.Name)
		}
		seen[e.Name] = true
		var limit uint32
		switch e.Kind {
		case KindFunc:
			limit = numFuncs
		case KindTable:
			limit = numTables
		case KindMemory:
			limit = numMemories
		case KindGlobal:
			limit = numGlobals
		default:
			return fmt.Errorf("export %d has invalid kind 0x%02x", i, e.Kind)
		}
		if e.Idx >= limit {
			return fmt.Errorf("export %q references index %d, space has %d entries", e.Name, e.Idx, limit)
		}
	}

	if m.Start != nil {
		if *m.Start >= numFuncs {
			return fmt.Errorf("start function index %d out of range", *m.Start)
		}
		ft := m.GetFuncType(*m.Start)
		if ft == nil || len(ft.Params) != 0 || len(ft.Results) != 0 {
			return fmt.Errorf("start function must have empty signature")
		}
	}

	for i, e := range m.Elements {
		if !e.IsPassive() && numTables == 0 {
			return fmt.Errorf("element segment %d is active but module has no table", i)
		}
		if e.TableIdx >= numTables && !e.IsPassive() {
			return fmt.Errorf("element segment %d references table %d", i, e.TableIdx)
		}
		for _, fidx := range e.FuncIdxs {
			if fidx >= numFuncs {
				return fmt.Errorf("element segment %d references function %d, space has %d entries",
					i, fidx, numFuncs)
			}
		}
	}

	for i, d := range m.Data {
		if !d.IsPassive() && numMemories == 0 {
			return fmt.Errorf("data segment %d is active but module has no memory", i)
		}
		if d.MemIdx != 0 {
			return fmt.Errorf("data segment %d references memory %d", i, d.MemIdx)
		}
	}

	if m.DataCount != nil && int(*m.DataCount) != len(m.Data) {
		return fmt.Errorf("data count section declares %d segments, data section has %d",
			*m.DataCount, len(m.Data))
	}

	for i, mem := range m.Memories {
		if err := validateMemLimits(mem.Limits); err != nil {
			return fmt.Errorf("memory %d: %w", i, err)
		}
	}
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindMemory {
			if err := validateMemLimits(imp.Desc.Memory.Limits); err != nil {
				return fmt.Errorf("imported memory %s.%s: %w", imp.Module, imp.Name, err)
			}
		}
	}

	return nil
}

func validateMemLimits(l Limits) error {
	if l.Min > MemoryMaxPages {
		return fmt.Errorf("minimum %d pages exceeds limit of %d", l.Min, MemoryMaxPages)
	}
	if l.Max != nil {
		if *l.Max > MemoryMaxPages {
			return fmt.Errorf("maximum %d pages exceeds limit of %d", *l.Max, MemoryMaxPages)
		}
		if *l.Max < l.Min {
			return fmt.Errorf("maximum %d pages is below minimum %d", *l.Max, l.Min)
		}
	}
	return nil
}
