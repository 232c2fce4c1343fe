package wasm

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func u32ptr(v uint32) *uint32 { return &v }

// buildAddModule returns a minimal module exporting add(i32,i32)->i32.
func buildAddModule() *Module {
	m := &Module{}
	sig := m.AddType(FuncType{
		Params:  []ValType{ValI32, ValI32},
		Results: []ValType{ValI32},
	})
	m.Funcs = []uint32{sig}
	m.Code = []FuncBody{{
		Code: EncodeInstructions([]Instruction{
			{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 0}},
			{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: 1}},
			{Opcode: OpI32Add},
			{Opcode: OpEnd},
		}),
	}}
	m.Exports = []Export{{Name: "add", Kind: KindFunc, Idx: 0}}
	return m
}

func TestRoundTripAddModule(t *testing.T) {
	m := buildAddModule()
	encoded := m.Encode()

	parsed, err := ParseModule(encoded)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if len(parsed.Types) != 1 || len(parsed.Funcs) != 1 || len(parsed.Code) != 1 {
		t.Fatalf("unexpected shape: %d types, %d funcs, %d bodies",
			len(parsed.Types), len(parsed.Funcs), len(parsed.Code))
	}
	if got := parsed.Exports[0].Name; got != "add" {
		t.Errorf("export name = %q, want add", got)
	}
	if !bytes.Equal(parsed.Code[0].Code, m.Code[0].Code) {
		t.Errorf("code bytes changed across round trip")
	}
	if err := parsed.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestRoundTripFullModule(t *testing.T) {
	m := &Module{}
	sig := m.AddType(FuncType{Results: []ValType{ValI32}})
	m.Imports = []Import{
		{Module: "env", Name: "answer", Desc: ImportDesc{Kind: KindFunc, TypeIdx: sig}},
		{Module: "env", Name: "mem", Desc: ImportDesc{Kind: KindMemory,
			Memory: &MemoryType{Limits: Limits{Min: 1, Max: u32ptr(4)}}}},
	}
	m.Funcs = []uint32{sig}
	m.Tables = []TableType{{ElemType: byte(ValFuncRef), Limits: Limits{Min: 2, Max: u32ptr(2)}}}
	m.Globals = []Global{{
		Type: GlobalType{ValType: ValI32, Mutable: true},
		Init: ConstExpr(Instruction{Opcode: OpI32Const, Imm: I32Imm{Value: 7}}),
	}}
	m.Elements = []Element{{
		Flags:    0,
		Offset:   ConstExpr(Instruction{Opcode: OpI32Const, Imm: I32Imm{Value: 0}}),
		FuncIdxs: []uint32{1},
	}}
	m.Data = []DataSegment{
		{Flags: 1, Init: []byte{1, 2, 3}},
	}
	m.DataCount = u32ptr(1)
	m.Code = []FuncBody{{
		Locals: []LocalEntry{{Count: 2, ValType: ValI64}},
		Code: EncodeInstructions([]Instruction{
			{Opcode: OpI32Const, Imm: I32Imm{Value: 42}},
			{Opcode: OpEnd},
		}),
	}}
	m.Exports = []Export{{Name: "f", Kind: KindFunc, Idx: 1}}

	parsed, err := ParseModule(m.Encode())
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if parsed.NumImportedFuncs() != 1 || parsed.NumImportedMemories() != 1 {
		t.Errorf("import counts wrong: %d funcs, %d memories",
			parsed.NumImportedFuncs(), parsed.NumImportedMemories())
	}
	if len(parsed.Globals) != 1 || !parsed.Globals[0].Type.Mutable {
		t.Errorf("global lost across round trip")
	}
	if len(parsed.Code[0].Locals) != 1 || parsed.Code[0].Locals[0].Count != 2 {
		t.Errorf("locals lost across round trip")
	}
	if !parsed.Data[0].IsPassive() {
		t.Errorf("passive data segment decoded as active")
	}
	ft := parsed.GetFuncType(0)
	if ft == nil || len(ft.Results) != 1 || ft.Results[0] != ValI32 {
		t.Errorf("GetFuncType(0) = %v", ft)
	}
}

func TestParseModuleRejectsBadHeader(t *testing.T) {
	if _, err := ParseModule([]byte{0, 0, 0, 0, 1, 0, 0, 0}); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("bad magic: got %v", err)
	}
	if _, err := ParseModule([]byte{0x00, 0x61, 0x73, 0x6D, 2, 0, 0, 0}); !errors.Is(err, ErrInvalidVersion) {
		t.Errorf("bad version: got %v", err)
	}
}

func TestParseModuleRejectsUnsupported(t *testing.T) {
	// Type section with a v128 parameter.
	m := &Module{}
	m.Types = []FuncType{{Params: []ValType{ValV128}}}
	_, err := ParseModule(m.Encode())
	var ue *UnsupportedError
	if !errors.As(err, &ue) || ue.Feature != "SIMD" {
		t.Errorf("v128 param: got %v", err)
	}

	// Shared memory limits.
	shared := &Module{Memories: []MemoryType{{Limits: Limits{Min: 1}}}}
	raw := shared.Encode()
	// Patch the limits flags byte (last memory section byte is min, flag precedes it).
	raw[len(raw)-2] = LimitsShared
	if _, err := ParseModule(raw); err == nil {
		t.Errorf("shared memory accepted")
	}
}

func TestDecodeInstructionsImmediates(t *testing.T) {
	instrs := []Instruction{
		{Opcode: OpBlock, Imm: BlockImm{Type: BlockTypeI32}},
		{Opcode: OpI32Const, Imm: I32Imm{Value: -123456}},
		{Opcode: OpI64Const, Imm: I64Imm{Value: math.MinInt64}},
		{Opcode: OpF32Const, Imm: F32Imm{Value: 1.5}},
		{Opcode: OpF64Const, Imm: F64Imm{Value: -2.25}},
		{Opcode: OpI32Load, Imm: MemoryImm{Align: 2, Offset: 16}},
		{Opcode: OpBrTable, Imm: BrTableImm{Labels: []uint32{0, 1, 2}, Default: 3}},
		{Opcode: OpCallIndirect, Imm: CallIndirectImm{TypeIdx: 5, TableIdx: 0}},
		{Opcode: OpPrefixMisc, Imm: MiscImm{SubOpcode: MiscI32TruncSatF64S}},
		{Opcode: OpPrefixMisc, Imm: MiscImm{SubOpcode: MiscMemoryInit, Operands: []uint32{1, 0}}},
		{Opcode: OpEnd},
	}
	decoded, err := DecodeInstructions(EncodeInstructions(instrs))
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	if len(decoded) != len(instrs) {
		t.Fatalf("decoded %d instructions, want %d", len(decoded), len(instrs))
	}
	for i := range instrs {
		if decoded[i].Opcode != instrs[i].Opcode {
			t.Errorf("instr %d opcode 0x%02x, want 0x%02x", i, decoded[i].Opcode, instrs[i].Opcode)
		}
	}
	if imm := decoded[6].Imm.(BrTableImm); imm.Default != 3 || len(imm.Labels) != 3 {
		t.Errorf("br_table immediates lost: %+v", imm)
	}
	if imm := decoded[9].Imm.(MiscImm); imm.Operands[0] != 1 {
		t.Errorf("memory.init immediates lost: %+v", imm)
	}
}

func TestDecodeInstructionsRejectsByFeature(t *testing.T) {
	cases := []struct {
		name    string
		code    []byte
		feature string
	}{
		{"simd", []byte{OpPrefixSIMD, 0x00}, "SIMD"},
		{"atomics", []byte{OpPrefixAtomic, 0x00}, "threads"},
		{"gc", []byte{OpPrefixGC, 0x00}, "garbage collection"},
		{"try", []byte{0x06, 0x40}, "exception handling"},
		{"return_call", []byte{0x12, 0x00}, "tail calls"},
		{"ref.null", []byte{0xD0, 0x70}, "reference types"},
		{"table.get", []byte{0x25, 0x00}, "reference types"},
		{"table.copy", []byte{OpPrefixMisc, 0x0E, 0x00, 0x00}, "bulk table operations"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeInstructions(tc.code)
			var ue *UnsupportedOpcodeError
			if !errors.As(err, &ue) {
				t.Fatalf("got %v, want UnsupportedOpcodeError", err)
			}
			if ue.Feature != tc.feature {
				t.Errorf("feature = %q, want %q", ue.Feature, tc.feature)
			}
		})
	}
}

func TestValidateCatchesInconsistencies(t *testing.T) {
	m := buildAddModule()
	m.Exports[0].Idx = 9
	if err := m.Validate(); err == nil {
		t.Errorf("out-of-range export accepted")
	}

	m = buildAddModule()
	m.Funcs = append(m.Funcs, 0)
	if err := m.Validate(); err == nil {
		t.Errorf("func/code count mismatch accepted")
	}

	m = buildAddModule()
	m.Funcs[0] = 3
	if err := m.Validate(); err == nil {
		t.Errorf("type index out of range accepted")
	}

	m = buildAddModule()
	bad := uint32(0)
	m.Start = &bad // add has params, not a valid start signature
	if err := m.Validate(); err == nil {
		t.Errorf("start with params accepted")
	}
}

func TestLEB128RoundTrip(t *testing.T) {
	uvals := []uint32{0, 1, 127, 128, 624485, math.MaxUint32}
	for _, v := range uvals {
		var buf bytes.Buffer
		WriteLEB128u(&buf, v)
		got, err := ReadLEB128u(bytes.NewReader(buf.Bytes()))
		if err != nil || got != v {
			t.Errorf("u32 %d round-tripped to %d (%v)", v, got, err)
		}
	}

	svals := []int32{0, -1, 63, 64, -64, -65, math.MaxInt32, math.MinInt32}
	for _, v := range svals {
		var buf bytes.Buffer
		WriteLEB128s(&buf, v)
		got, err := ReadLEB128s(bytes.NewReader(buf.Bytes()))
		if err != nil || got != v {
			t.Errorf("s32 %d round-tripped to %d (%v)", v, got, err)
		}
	}

	s64vals := []int64{0, -1, math.MaxInt64, math.MinInt64}
	for _, v := range s64vals {
		var buf bytes.Buffer
		WriteLEB128s64(&buf, v)
		got, err := ReadLEB128s64(bytes.NewReader(buf.Bytes()))
		if err != nil || got != v {
			t.Errorf("s64 %d round-tripped to %d (%v)", v, got, err)
		}
	}
}

func TestLEB128Overflow(t *testing.T) {
	over := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x0F}
	if _, err := ReadLEB128u(bytes.NewReader(over)); !errors.Is(err, ErrOverflow) {
		t.Errorf("overflowing u32 read: %v", err)
	}
}
