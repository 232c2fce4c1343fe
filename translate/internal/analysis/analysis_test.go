package analysis

import (
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	werrors "github.com/wippyai/wasm2go/errors"
	"github.com/wippyai/wasm2go/wasm"
)

func u32ptr(v uint32) *uint32 { return &v }

func i32const(v int32) []byte {
	return wasm.ConstExpr(wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}})
}

func buildModule() *wasm.Module {
	m := &wasm.Module{}
	binop := m.AddType(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	})
	// Structurally identical type: must intern to the same signature ID.
	m.Types = append(m.Types, wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	})
	nullary := m.AddType(wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}})

	m.Imports = []wasm.Import{
		{Module: "env", Name: "add", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: binop}},
		{Module: "clock", Name: "now", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: nullary}},
		{Module: "env", Name: "base", Desc: wasm.ImportDesc{Kind: wasm.KindGlobal,
			Global: &wasm.GlobalType{ValType: wasm.ValI32}}},
	}
	m.Funcs = []uint32{binop, 1}
	body := wasm.EncodeInstructions([]wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
		{Opcode: wasm.OpI32Add},
		{Opcode: wasm.OpEnd},
	})
	m.Code = []wasm.FuncBody{{Code: body}, {Code: body}}
	m.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: u32ptr(4)}}}
	m.Tables = []wasm.TableType{{ElemType: byte(wasm.ValFuncRef), Limits: wasm.Limits{Min: 3}}}
	m.Globals = []wasm.Global{
		{Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true}, Init: i32const(7)},
		{Type: wasm.GlobalType{ValType: wasm.ValI32}, Init: wasm.ConstExpr(
			wasm.Instruction{Opcode: wasm.OpGlobalGet, Imm: wasm.GlobalImm{GlobalIdx: 0}})},
	}
	m.Data = []wasm.DataSegment{
		{Flags: 0, Offset: i32const(16), Init: []byte{1, 2}},
		{Flags: 1, Init: []byte{3, 4}},
	}
	m.Elements = []wasm.Element{
		{Flags: 0, Offset: i32const(0), FuncIdxs: []uint32{2, 3}},
	}
	m.Exports = []wasm.Export{
		{Name: "add2", Kind: wasm.KindFunc, Idx: 2},
		{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
	}
	return m
}

func TestAnalyzePartitionsFunctions(t *testing.T) {
	a, err := Analyze(buildModule())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if a.NumImportedFuncs != 2 {
		t.Fatalf("NumImportedFuncs = %d, want 2", a.NumImportedFuncs)
	}
	if len(a.Funcs) != 4 {
		t.Fatalf("len(Funcs) = %d, want 4", len(a.Funcs))
	}
	for i, fe := range a.Funcs {
		if fe.Index != uint32(i) {
			t.Errorf("Funcs[%d].Index = %d", i, fe.Index)
		}
		wantImport := i < 2
		if fe.Import != wantImport {
			t.Errorf("Funcs[%d].Import = %v", i, fe.Import)
		}
	}
	if a.Funcs[0].Module != "env" || a.Funcs[0].Field != "add" {
		t.Errorf("import 0 = %s.%s", a.Funcs[0].Module, a.Funcs[0].Field)
	}
	if a.Funcs[2].Body == nil {
		t.Errorf("internal function lost its body")
	}
}

func TestAnalyzeInternsSignatures(t *testing.T) {
	a, err := Analyze(buildModule())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	// Types 0 and 1 are structurally equal: same interned signature.
	if a.TypeSig[0] != a.TypeSig[1] {
		t.Errorf("equal types interned to different signatures")
	}
	if a.TypeSig[0].ID == a.TypeSig[2].ID {
		t.Errorf("distinct types share an ID")
	}
	if len(a.Sigs) != 2 {
		t.Errorf("%d interned signatures, want 2", len(a.Sigs))
	}
	// The second internal function uses type index 1 and must resolve to
	// the interned signature of type 0.
	if a.Funcs[3].Sig != a.TypeSig[0] {
		t.Errorf("function signature not interned")
	}
}

func TestAnalyzeGroupsSortedByModule(t *testing.T) {
	a, err := Analyze(buildModule())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	var names []string
	for _, g := range a.Groups {
		names = append(names, g.Module)
	}
	if diff := cmp.Diff([]string{"clock", "env"}, names); diff != "" {
		t.Errorf("group order (-want +got):\n%s", diff)
	}
	// env carries one function and one global.
	env := a.Groups[1]
	if len(env.Funcs) != 1 || len(env.Globals) != 1 {
		t.Errorf("env group has %d funcs, %d globals", len(env.Funcs), len(env.Globals))
	}
}

func TestAnalyzeMemoryClassification(t *testing.T) {
	a, err := Analyze(buildModule())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.IsLibrary() {
		t.Errorf("owned module classified as library")
	}
	if a.Memory.Min != 1 || !a.Memory.HasMax || a.Memory.Max != 4 {
		t.Errorf("memory limits wrong: %+v", a.Memory)
	}

	lib := &wasm.Module{}
	lib.Imports = []wasm.Import{{Module: "host", Name: "mem", Desc: wasm.ImportDesc{
		Kind: wasm.KindMemory, Memory: &wasm.MemoryType{Limits: wasm.Limits{Min: 2}}}}}
	la, err := Analyze(lib)
	if err != nil {
		t.Fatalf("Analyze(library): %v", err)
	}
	if !la.IsLibrary() {
		t.Errorf("imported memory should classify as library")
	}
	if la.Memory.Module != "host" || la.Memory.Field != "mem" {
		t.Errorf("library memory names lost: %+v", la.Memory)
	}
}

func TestAnalyzeFoldsInitializers(t *testing.T) {
	a, err := Analyze(buildModule())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	// Global index space: imported env.base first, then the two internal.
	if len(a.Globals) != 3 {
		t.Fatalf("%d globals, want 3", len(a.Globals))
	}
	g1 := a.Globals[1]
	if g1.Init.Kind != ConstI32 || g1.Init.I32 != 7 {
		t.Errorf("global 1 init = %s", g1.Init)
	}
	g2 := a.Globals[2]
	if g2.Init.Kind != ConstGlobal || g2.Init.GlobalIdx != 0 {
		t.Errorf("global 2 init = %s, want reference to imported global 0", g2.Init)
	}

	if a.Data[0].Passive || a.Data[0].Offset.I32 != 16 {
		t.Errorf("data segment 0 = %+v", a.Data[0])
	}
	if !a.Data[1].Passive {
		t.Errorf("data segment 1 should be passive")
	}
	if a.Elems[0].Offset.I32 != 0 || len(a.Elems[0].Funcs) != 2 {
		t.Errorf("element segment 0 = %+v", a.Elems[0])
	}
}

func TestAnalyzeRejects(t *testing.T) {
	mutable := &wasm.Module{}
	mutable.Imports = []wasm.Import{{Module: "env", Name: "g", Desc: wasm.ImportDesc{
		Kind: wasm.KindGlobal, Global: &wasm.GlobalType{ValType: wasm.ValI32, Mutable: true}}}}
	if _, err := Analyze(mutable); !stderrors.Is(err, &werrors.Error{Kind: werrors.KindUnsupported}) {
		t.Errorf("imported mutable global: %v", err)
	}

	table := &wasm.Module{}
	table.Imports = []wasm.Import{{Module: "env", Name: "t", Desc: wasm.ImportDesc{
		Kind: wasm.KindTable, Table: &wasm.TableType{ElemType: byte(wasm.ValFuncRef)}}}}
	if _, err := Analyze(table); !stderrors.Is(err, &werrors.Error{Kind: werrors.KindUnsupported}) {
		t.Errorf("imported table: %v", err)
	}

	// Validation failures surface as invalid module errors.
	bad := &wasm.Module{Funcs: []uint32{0}}
	if _, err := Analyze(bad); !stderrors.Is(err, &werrors.Error{Kind: werrors.KindInvalidModule}) {
		t.Errorf("func/code mismatch: %v", err)
	}

	nonConst := &wasm.Module{}
	nonConst.Globals = []wasm.Global{{
		Type: wasm.GlobalType{ValType: wasm.ValI32},
		Init: []byte{wasm.OpI32Const, 1, wasm.OpI32Const, 2, wasm.OpI32Add, wasm.OpEnd},
	}}
	if _, err := Analyze(nonConst); err == nil {
		t.Errorf("non-constant initializer accepted")
	}
}
