package translate_test

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	werrors "github.com/wippyai/wasm2go/errors"
	"github.com/wippyai/wasm2go/translate"
	"github.com/wippyai/wasm2go/wasm"
)

func u32ptr(v uint32) *uint32 { return &v }

func body(instrs ...wasm.Instruction) wasm.FuncBody {
	return wasm.FuncBody{Code: wasm.EncodeInstructions(append(instrs, wasm.Instruction{Opcode: wasm.OpEnd}))}
}

func i32c(v int32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}}
}

func lget(i uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: i}}
}

// addModule is a module with one exported i32 add function.
func addModule() *wasm.Module {
	m := &wasm.Module{}
	sig := m.AddType(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	})
	m.Funcs = []uint32{sig}
	m.Code = []wasm.FuncBody{body(lget(0), lget(1), wasm.Instruction{Opcode: wasm.OpI32Add})}
	m.Exports = []wasm.Export{{Name: "add", Kind: wasm.KindFunc, Idx: 0}}
	return m
}

func TestTranslateAddModule(t *testing.T) {
	src, err := translate.Translate(addModule(), translate.Options{})
	require.NoError(t, err)

	require.Contains(t, src, "// Code generated by wasm2go. DO NOT EDIT.")
	require.Contains(t, src, "package wasmmod")
	require.Contains(t, src, "type Module struct {")
	require.Contains(t, src, "func (m *Module) f0(l0 int32, l1 int32) (int32, error) {")
	require.Contains(t, src, "v2 = v0 + v1")
	require.Contains(t, src, "return v2, nil")
	require.Contains(t, src, `// Add implements the exported function "add".`)
	require.Contains(t, src, "func (m *Module) Add(l0 int32, l1 int32) (int32, error) {")
	require.Contains(t, src, "return m.f0(l0, l1)")
	// A module without memory, table, or traps does not touch the runtime.
	require.NotContains(t, src, "import (")
}

func TestTranslateDeterminism(t *testing.T) {
	m := addModule()
	first, err := translate.Translate(m, translate.Options{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := translate.Translate(m, translate.Options{})
		require.NoError(t, err)
		require.Equal(t, first, again, "run %d differs", i)
	}
}

func TestTranslateOptionsNames(t *testing.T) {
	src, err := translate.Translate(addModule(), translate.Options{Package: "calc", Struct: "Calc"})
	require.NoError(t, err)
	require.Contains(t, src, "package calc")
	require.Contains(t, src, "type Calc struct {")
	require.Contains(t, src, "func (m *Calc) Add(")
}

func TestTranslateDivisionGuards(t *testing.T) {
	m := &wasm.Module{}
	sig := m.AddType(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	})
	m.Funcs = []uint32{sig}
	m.Code = []wasm.FuncBody{body(lget(0), lget(1), wasm.Instruction{Opcode: wasm.OpI32DivS})}
	m.Exports = []wasm.Export{{Name: "div_s", Kind: wasm.KindFunc, Idx: 0}}

	src, err := translate.Translate(m, translate.Options{})
	require.NoError(t, err)
	require.Contains(t, src, "if v1 == 0 {")
	require.Contains(t, src, "return 0, wasmrt.ErrDivisionByZero")
	require.Contains(t, src, "if v0 == -2147483648 && v1 == -1 {")
	require.Contains(t, src, "return 0, wasmrt.ErrIntegerOverflow")
	require.Contains(t, src, "v2 = v0 / v1")
}

func TestTranslateImportsRouteThroughCapability(t *testing.T) {
	m := &wasm.Module{}
	sig := m.AddType(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	})
	m.Imports = []wasm.Import{
		{Module: "env", Name: "add", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: sig}},
	}
	m.Funcs = []uint32{sig}
	m.Code = []wasm.FuncBody{body(lget(0), lget(1),
		wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 0}})}
	m.Exports = []wasm.Export{{Name: "run", Kind: wasm.KindFunc, Idx: 1}}

	src, err := translate.Translate(m, translate.Options{})
	require.NoError(t, err)
	require.Contains(t, src, "type EnvImports interface {")
	require.Contains(t, src, "Add(l0 int32, l1 int32) (int32, error)")
	require.Contains(t, src, "func New(env EnvImports) (*Module, error) {")
	require.Contains(t, src, "v2, err = m.env.Add(v0, v1)")
	// Internal function indices follow the imports.
	require.Contains(t, src, "func (m *Module) f1(")
}

func TestTranslateMemoryTableAndSegments(t *testing.T) {
	m := &wasm.Module{}
	binop := m.AddType(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	})
	m.Funcs = []uint32{binop, binop}
	loadBody := body(lget(0),
		wasm.Instruction{Opcode: wasm.OpI32Load, Imm: wasm.MemoryImm{Align: 2, Offset: 4}},
		wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: 1}},
		lget(1))
	dispatchBody := body(lget(0), lget(1), i32c(0),
		wasm.Instruction{Opcode: wasm.OpCallIndirect, Imm: wasm.CallIndirectImm{TypeIdx: binop}})
	m.Code = []wasm.FuncBody{loadBody, dispatchBody}
	m.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: u32ptr(4)}}}
	m.Tables = []wasm.TableType{{ElemType: byte(wasm.ValFuncRef), Limits: wasm.Limits{Min: 2}}}
	m.Elements = []wasm.Element{{
		Flags:    0,
		Offset:   wasm.ConstExpr(i32c(0)),
		FuncIdxs: []uint32{0},
	}}
	m.Data = []wasm.DataSegment{{
		Flags:  0,
		Offset: wasm.ConstExpr(i32c(0)),
		Init:   []byte{1, 2, 3, 4},
	}}
	m.Exports = []wasm.Export{
		{Name: "load", Kind: wasm.KindFunc, Idx: 0},
		{Name: "dispatch", Kind: wasm.KindFunc, Idx: 1},
	}

	src, err := translate.Translate(m, translate.Options{})
	require.NoError(t, err)

	require.Contains(t, src, "m.mem = wasmrt.NewMemory(1, 4)")
	require.Contains(t, src, "m.tab = wasmrt.NewTable(2)")
	require.Contains(t, src, "m.mem.Init(0, []byte{0x01, 0x02, 0x03, 0x04})")
	require.Contains(t, src, "m.tab.Set(0, &wasmrt.FuncRef{Sig: 0, Fn: func(a0 int32, a1 int32) (int32, error) { return m.f0(a0, a1) }})")
	require.Contains(t, src, "m.mem.I32Load(uint32(v0), 4)")
	require.Contains(t, src, "wasmrt.Invoke[func(int32, int32) (int32, error)](m.tab, uint32(v2), 0)")
}

func TestTranslateLibraryModuleBorrowsMemory(t *testing.T) {
	m := &wasm.Module{}
	sig := m.AddType(wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}})
	m.Imports = []wasm.Import{
		{Module: "host", Name: "memory", Desc: wasm.ImportDesc{Kind: wasm.KindMemory,
			Memory: &wasm.MemoryType{Limits: wasm.Limits{Min: 1}}}},
	}
	m.Funcs = []uint32{sig}
	m.Code = []wasm.FuncBody{body(i32c(0),
		wasm.Instruction{Opcode: wasm.OpI32Load, Imm: wasm.MemoryImm{Align: 2}})}
	m.Exports = []wasm.Export{{Name: "peek", Kind: wasm.KindFunc, Idx: 0}}

	src, err := translate.Translate(m, translate.Options{})
	require.NoError(t, err)
	require.Contains(t, src, "func New(mem *wasmrt.Memory) (*Module, error) {")
	require.Contains(t, src, "m := &Module{mem: mem}")
	require.NotContains(t, src, "wasmrt.NewMemory(")
}

func TestTranslateLocalSnapshotOrdering(t *testing.T) {
	// local.get snapshots, then the write, then a read of the snapshot: the
	// generated code must read l0 into a virtual variable before l0 is
	// reassigned.
	m := &wasm.Module{}
	sig := m.AddType(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	})
	m.Funcs = []uint32{sig}
	m.Code = []wasm.FuncBody{body(
		lget(0),
		i32c(99),
		wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: 0}},
	)}
	m.Exports = []wasm.Export{{Name: "snap", Kind: wasm.KindFunc, Idx: 0}}

	src, err := translate.Translate(m, translate.Options{})
	require.NoError(t, err)

	snapshot := strings.Index(src, "v0 = l0")
	write := strings.Index(src, "l0 = v1")
	ret := strings.Index(src, "return v0, nil")
	require.Greater(t, snapshot, -1, "snapshot read missing:\n%s", src)
	require.Greater(t, write, snapshot, "local write must follow the snapshot")
	require.Greater(t, ret, write, "the stacked value survives the write")
}

func TestTranslateControlFlowShapes(t *testing.T) {
	m := &wasm.Module{}
	sig := m.AddType(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	})
	m.Funcs = []uint32{sig}
	// loop { local.get 0; br_if 0 } then constant result
	m.Code = []wasm.FuncBody{body(
		wasm.Instruction{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
		lget(0),
		wasm.Instruction{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: 0}},
		wasm.Instruction{Opcode: wasm.OpEnd},
		i32c(1),
	)}
	m.Exports = []wasm.Export{{Name: "spin", Kind: wasm.KindFunc, Idx: 0}}

	src, err := translate.Translate(m, translate.Options{})
	require.NoError(t, err)
	require.Contains(t, src, "L0:")
	require.Contains(t, src, "for {")
	require.Contains(t, src, "continue L0")
	require.Contains(t, src, "break L0")
}

func TestTranslateUnreachableAndUnsupported(t *testing.T) {
	m := &wasm.Module{}
	sig := m.AddType(wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}})
	m.Funcs = []uint32{sig}
	m.Code = []wasm.FuncBody{body(wasm.Instruction{Opcode: wasm.OpUnreachable})}
	m.Exports = []wasm.Export{{Name: "boom", Kind: wasm.KindFunc, Idx: 0}}

	src, err := translate.Translate(m, translate.Options{})
	require.NoError(t, err)
	require.Contains(t, src, "return 0, wasmrt.ErrUnreachable")

	// A SIMD opcode in a body is rejected with the feature named.
	bad := &wasm.Module{}
	bsig := bad.AddType(wasm.FuncType{})
	bad.Funcs = []uint32{bsig}
	bad.Code = []wasm.FuncBody{{Code: []byte{wasm.OpPrefixSIMD, 0x00, wasm.OpEnd}}}
	_, err = translate.Translate(bad, translate.Options{})
	require.Error(t, err)
	require.True(t, stderrors.Is(err, &werrors.Error{Kind: werrors.KindUnsupported}), "got %v", err)
	require.Contains(t, err.Error(), "SIMD")
}

func TestTranslateRejectSatTruncOption(t *testing.T) {
	m := &wasm.Module{}
	sig := m.AddType(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValF64},
		Results: []wasm.ValType{wasm.ValI32},
	})
	m.Funcs = []uint32{sig}
	m.Code = []wasm.FuncBody{body(lget(0),
		wasm.Instruction{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscI32TruncSatF64S}})}
	m.Exports = []wasm.Export{{Name: "sat", Kind: wasm.KindFunc, Idx: 0}}

	src, err := translate.Translate(m, translate.Options{})
	require.NoError(t, err)
	require.Contains(t, src, "wasmrt.TruncSatF64ToI32S(v0)")

	_, err = translate.Translate(m, translate.Options{RejectSatTrunc: true})
	require.True(t, stderrors.Is(err, &werrors.Error{Kind: werrors.KindUnsupported}), "got %v", err)
}

func TestTranslateExportSurfacePreserved(t *testing.T) {
	m := &wasm.Module{}
	sig := m.AddType(wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}})
	m.Funcs = []uint32{sig}
	m.Code = []wasm.FuncBody{body(i32c(1))}
	m.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}
	m.Globals = []wasm.Global{{
		Type: wasm.GlobalType{ValType: wasm.ValI64, Mutable: true},
		Init: wasm.ConstExpr(wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: 5}}),
	}}
	m.Exports = []wasm.Export{
		{Name: "get-one", Kind: wasm.KindFunc, Idx: 0},
		{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
		{Name: "counter", Kind: wasm.KindGlobal, Idx: 0},
	}

	src, err := translate.Translate(m, translate.Options{})
	require.NoError(t, err)
	require.Contains(t, src, "func (m *Module) GetOne() (int32, error) {")
	require.Contains(t, src, "func (m *Module) Memory() *wasmrt.Memory {")
	require.Contains(t, src, "func (m *Module) Counter() int64 {")
	require.Contains(t, src, "func (m *Module) SetCounter(v int64) {")
}

func TestTranslateStartFunctionRuns(t *testing.T) {
	m := &wasm.Module{}
	nullary := m.AddType(wasm.FuncType{})
	m.Funcs = []uint32{nullary}
	m.Code = []wasm.FuncBody{body()}
	start := uint32(0)
	m.Start = &start

	src, err := translate.Translate(m, translate.Options{})
	require.NoError(t, err)
	require.Contains(t, src, "if err := m.f0(); err != nil {")
}

func TestTranslateFunctionSingle(t *testing.T) {
	src, err := translate.TranslateFunction(addModule(), 0, translate.Options{})
	require.NoError(t, err)
	require.Contains(t, src, "func (m *Module) f0(")
	require.NotContains(t, src, "package ")

	_, err = translate.TranslateFunction(addModule(), 9, translate.Options{})
	require.Error(t, err)
}
