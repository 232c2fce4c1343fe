package translate

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	werrors "github.com/wippyai/wasm2go/errors"
	"github.com/wippyai/wasm2go/translate/internal/analysis"
	"github.com/wippyai/wasm2go/translate/internal/codegen"
	"github.com/wippyai/wasm2go/translate/internal/ir"
	"github.com/wippyai/wasm2go/wasm"
)

// Options configures a translation run. The zero value is usable.
type Options struct {
	// Logger receives per-stage progress at Debug level. Nil means no
	// logging.
	Logger *zap.Logger

	// Package is the Go package name of the generated file. Defaults to
	// "wasmmod".
	Package string

	// Struct is the module struct name. Defaults to "Module".
	Struct string

	// RejectSatTrunc turns the non-trapping float-to-int conversions into
	// an UnsupportedFeature error instead of accepting them.
	RejectSatTrunc bool
}

// Analysis re-exports the analyzer's resolved module view for tooling that
// wants to inspect a module without generating code.
type Analysis = analysis.Analysis

// Analyze resolves a decoded module: interned signatures, the combined
// function index space, memory classification, import groups, and folded
// segment offsets.
func Analyze(m *wasm.Module) (*Analysis, error) {
	return analysis.Analyze(m)
}

// Translate generates Go source for a decoded module. The output for a
// given module and options is byte-identical across runs.
func Translate(m *wasm.Module, opts Options) (string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a, err := analysis.Analyze(m)
	if err != nil {
		return "", err
	}
	logger.Debug("module analyzed", zap.String("summary", a.Summary()))

	fns := make([]*ir.Func, 0, len(a.Funcs)-a.NumImportedFuncs)
	for _, entry := range a.Funcs[a.NumImportedFuncs:] {
		fn, err := liftEntry(a, entry, opts)
		if err != nil {
			return "", err
		}
		logger.Debug("function lifted",
			zap.Uint32("index", entry.Index),
			zap.Int("statements", len(fn.Stmts)))
		fns = append(fns, fn)
	}

	src, err := codegen.EmitModule(a, fns, codegen.Options{Package: opts.Package, Struct: opts.Struct})
	if err != nil {
		return "", err
	}
	logger.Debug("module emitted", zap.Int("bytes", len(src)))
	return src, nil
}

// TranslateFunction generates the Go method text of a single internal
// function, used by inspection tooling.
func TranslateFunction(m *wasm.Module, funcIdx uint32, opts Options) (string, error) {
	a, err := analysis.Analyze(m)
	if err != nil {
		return "", err
	}
	if int(funcIdx) >= len(a.Funcs) {
		return "", werrors.InvalidModule(werrors.PhaseEmit, "function index %d out of range", funcIdx)
	}
	entry := a.Funcs[funcIdx]
	if entry.Import {
		return "", werrors.InvalidModule(werrors.PhaseEmit, "function %d is imported and has no body", funcIdx)
	}
	fn, err := liftEntry(a, entry, opts)
	if err != nil {
		return "", err
	}
	return codegen.EmitFunc(a, entry, fn, codegen.Options{Package: opts.Package, Struct: opts.Struct}), nil
}

// liftEntry decodes and lifts one internal function body.
func liftEntry(a *Analysis, entry *analysis.FuncEntry, opts Options) (*ir.Func, error) {
	fnName := fmt.Sprintf("func[%d]", entry.Index)

	instrs, err := wasm.DecodeInstructions(entry.Body.Code)
	if err != nil {
		var uo *wasm.UnsupportedOpcodeError
		if stderrors.As(err, &uo) {
			return nil, werrors.New(werrors.PhaseLift, werrors.KindUnsupported).
				Path(fnName).
				Detail(uo.Error()).
				Build()
		}
		return nil, werrors.New(werrors.PhaseLift, werrors.KindInvalidData).
			Path(fnName).
			Cause(err).
			Detail("decode function body").
			Build()
	}

	if opts.RejectSatTrunc {
		for _, in := range instrs {
			if imm, ok := in.Imm.(wasm.MiscImm); ok && in.Opcode == wasm.OpPrefixMisc &&
				imm.SubOpcode <= wasm.MiscI64TruncSatF64U {
				return nil, werrors.Unsupported(werrors.PhaseLift, "non-trapping float-to-int conversions")
			}
		}
	}

	ctx := &ir.Context{
		FuncSig: func(idx uint32) ([]wasm.ValType, []wasm.ValType, bool) {
			s, ok := a.SigOfFunc(idx)
			if !ok {
				return nil, nil, false
			}
			return s.Params, s.Results, true
		},
		TypeSig: func(idx uint32) ([]wasm.ValType, []wasm.ValType, uint32, bool) {
			if int(idx) >= len(a.TypeSig) {
				return nil, nil, 0, false
			}
			s := a.TypeSig[idx]
			return s.Params, s.Results, s.ID, true
		},
		GlobalType: func(idx uint32) (wasm.ValType, bool) {
			if int(idx) >= len(a.Globals) {
				return 0, false
			}
			return a.Globals[idx].Type.ValType, true
		},
		FuncName:  fnName,
		NumData:   len(a.Data),
		NumElems:  len(a.Elems),
		HasMemory: a.Memory != nil,
		HasTable:  a.Table != nil,
	}

	return ir.Lift(instrs, entry.Sig.Params, entry.Sig.Results, analysis.LocalTypes(entry.Body), ctx)
}
