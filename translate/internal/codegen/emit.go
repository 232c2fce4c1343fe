package codegen

import (
	"fmt"
	"strconv"
	"strings"

	werrors "github.com/wippyai/wasm2go/errors"
	"github.com/wippyai/wasm2go/translate/internal/analysis"
	"github.com/wippyai/wasm2go/translate/internal/ir"
	"github.com/wippyai/wasm2go/wasm"
)

// Options configures the generated source.
type Options struct {
	Package string // Go package name of the output
	Struct  string // module struct name
}

// RuntimeImport is the import path generated code depends on.
const RuntimeImport = "github.com/wippyai/wasm2go/wasmrt"

type emitter struct {
	a    *analysis.Analysis
	opts Options

	b   strings.Builder
	ind int

	// Resolved naming, filled once before any emission.
	groupIface  []string          // interface name per import group
	groupField  []string          // struct field per import group
	funcMethod  map[uint32]string // imported func index -> interface method
	funcGroup   map[uint32]int    // imported func index -> group ordinal
	globalGet   map[uint32]string // imported global index -> interface getter
	globalGroup map[uint32]int

	// Per-function state.
	varReads   map[int]int
	localReads map[int]int
	results    []wasm.ValType
}

// EmitModule prints the whole module. fns holds the lifted bodies of the
// internal functions, in internal-function order.
func EmitModule(a *analysis.Analysis, fns []*ir.Func, opts Options) (string, error) {
	e := newEmitter(a, opts)

	e.emitInterfaces()
	e.emitStruct()
	e.emitConstructor()
	for i, fn := range fns {
		entry := a.Funcs[a.NumImportedFuncs+i]
		e.emitFunc(entry, fn)
	}
	if err := e.emitExports(); err != nil {
		return "", err
	}
	body := e.b.String()

	var out strings.Builder
	out.WriteString("// Code generated by wasm2go. DO NOT EDIT.\n")
	out.WriteString("//\n")
	out.WriteString("// Translated WebAssembly module: " + a.Summary() + ".\n\n")
	out.WriteString("package " + e.opts.Package + "\n\n")
	if strings.Contains(body, "wasmrt.") {
		out.WriteString("import (\n\t\"" + RuntimeImport + "\"\n)\n\n")
	}
	out.WriteString(body)
	return out.String(), nil
}

// EmitFunc prints a single internal function's method, for tooling that
// inspects one function at a time.
func EmitFunc(a *analysis.Analysis, entry *analysis.FuncEntry, fn *ir.Func, opts Options) string {
	e := newEmitter(a, opts)
	e.emitFunc(entry, fn)
	return e.b.String()
}

func newEmitter(a *analysis.Analysis, opts Options) *emitter {
	if opts.Package == "" {
		opts.Package = "wasmmod"
	}
	if opts.Struct == "" {
		opts.Struct = "Module"
	}
	e := &emitter{
		a:           a,
		opts:        opts,
		funcMethod:  make(map[uint32]string),
		funcGroup:   make(map[uint32]int),
		globalGet:   make(map[uint32]string),
		globalGroup: make(map[uint32]int),
	}

	ifaces := newNameSet(opts.Struct)
	fields := newNameSet("mem", "tab")
	for gi, g := range a.Groups {
		e.groupIface = append(e.groupIface, ifaces.claim(goIdent(g.Module, true)+"Imports"))
		e.groupField = append(e.groupField, fields.claim(goIdent(g.Module, false)))
		methods := newNameSet()
		for _, fe := range g.Funcs {
			e.funcMethod[fe.Index] = methods.claim(goIdent(fe.Field, true))
			e.funcGroup[fe.Index] = gi
		}
		for _, ge := range g.Globals {
			e.globalGet[ge.Index] = methods.claim(goIdent(ge.Field, true))
			e.globalGroup[ge.Index] = gi
		}
	}
	return e
}

func (e *emitter) p(format string, args ...any) {
	e.b.WriteString(strings.Repeat("\t", e.ind))
	fmt.Fprintf(&e.b, format, args...)
	e.b.WriteByte('\n')
}

func (e *emitter) blank() { e.b.WriteByte('\n') }

// sigText renders the Go parameter and result lists of a signature.
func sigText(params, results []wasm.ValType) (string, string) {
	ps := make([]string, len(params))
	for i, t := range params {
		ps[i] = local(i) + " " + goType(t)
	}
	if len(results) == 0 {
		return strings.Join(ps, ", "), "error"
	}
	rs := make([]string, 0, len(results)+1)
	for _, t := range results {
		rs = append(rs, goType(t))
	}
	rs = append(rs, "error")
	return strings.Join(ps, ", "), "(" + strings.Join(rs, ", ") + ")"
}

// funcTypeText renders a signature as a Go func type, for table dispatch.
func funcTypeText(params, results []wasm.ValType) string {
	ps := make([]string, len(params))
	for i, t := range params {
		ps[i] = goType(t)
	}
	if len(results) == 0 {
		return "func(" + strings.Join(ps, ", ") + ") error"
	}
	rs := make([]string, 0, len(results)+1)
	for _, t := range results {
		rs = append(rs, goType(t))
	}
	rs = append(rs, "error")
	return "func(" + strings.Join(ps, ", ") + ") (" + strings.Join(rs, ", ") + ")"
}

// wasmSigText renders a signature the way wasm text format would.
func wasmSigText(s *analysis.Signature) string {
	ps := make([]string, len(s.Params))
	for i, t := range s.Params {
		ps[i] = t.String()
	}
	rs := make([]string, len(s.Results))
	for i, t := range s.Results {
		rs[i] = t.String()
	}
	return "(" + strings.Join(ps, ", ") + ") -> (" + strings.Join(rs, ", ") + ")"
}

func (e *emitter) emitInterfaces() {
	for gi, g := range e.a.Groups {
		e.p("// %s is the host capability surface for the %q import module.", e.groupIface[gi], g.Module)
		e.p("type %s interface {", e.groupIface[gi])
		e.ind++
		for _, fe := range g.Funcs {
			params, results := sigText(fe.Sig.Params, fe.Sig.Results)
			e.p("%s(%s) %s", e.funcMethod[fe.Index], params, results)
		}
		for _, ge := range g.Globals {
			e.p("%s() %s", e.globalGet[ge.Index], goType(ge.Type.ValType))
		}
		e.ind--
		e.p("}")
		e.blank()
	}
}

func (e *emitter) emitStruct() {
	e.p("// %s is a translated WebAssembly module instance. An instance is not", e.opts.Struct)
	e.p("// safe for concurrent use; callers that need parallelism hold one")
	e.p("// instance per context.")
	e.p("type %s struct {", e.opts.Struct)
	e.ind++
	if e.a.Memory != nil {
		e.p("mem *wasmrt.Memory")
	}
	if e.a.Table != nil {
		e.p("tab *wasmrt.Table")
	}
	for gi := range e.a.Groups {
		e.p("%s %s", e.groupField[gi], e.groupIface[gi])
	}
	for _, g := range e.a.Globals {
		e.p("g%d %s", g.Index, goType(g.Type.ValType))
	}
	for _, d := range e.a.Data {
		if d.Passive {
			e.p("data%d []byte", d.Index)
		}
	}
	for _, el := range e.a.Elems {
		if el.Passive {
			e.p("elem%d []*wasmrt.FuncRef", el.Index)
		}
	}
	e.ind--
	e.p("}")
	e.blank()
}

// constOffset prints an active segment's folded offset expression.
func (e *emitter) constOffset(c analysis.ConstValue, add uint32) string {
	if c.Kind == analysis.ConstGlobal {
		if add == 0 {
			return fmt.Sprintf("uint32(m.g%d)", c.GlobalIdx)
		}
		return fmt.Sprintf("uint32(m.g%d)+%d", c.GlobalIdx, add)
	}
	return strconv.FormatUint(uint64(uint32(c.I32)+add), 10)
}

func (e *emitter) constLiteral(c analysis.ConstValue) string {
	switch c.Kind {
	case analysis.ConstI32:
		return strconv.FormatInt(int64(c.I32), 10)
	case analysis.ConstI64:
		return strconv.FormatInt(c.I64, 10)
	case analysis.ConstF32:
		return formatF32(c.F32)
	case analysis.ConstF64:
		return formatF64(c.F64)
	case analysis.ConstGlobal:
		return fmt.Sprintf("m.g%d", c.GlobalIdx)
	}
	return "0"
}

// funcRefLiteral builds the FuncRef literal for a function index: the
// interned signature identifier plus a closure dispatching to the function.
func (e *emitter) funcRefLiteral(fidx uint32) string {
	entry := e.a.Funcs[fidx]
	sig := entry.Sig
	args := make([]string, len(sig.Params))
	decl := make([]string, len(sig.Params))
	for i, t := range sig.Params {
		args[i] = "a" + strconv.Itoa(i)
		decl[i] = args[i] + " " + goType(t)
	}
	var ret string
	if len(sig.Results) == 0 {
		ret = "error"
	} else {
		rs := make([]string, 0, len(sig.Results)+1)
		for _, t := range sig.Results {
			rs = append(rs, goType(t))
		}
		ret = "(" + strings.Join(append(rs, "error"), ", ") + ")"
	}
	return fmt.Sprintf("&wasmrt.FuncRef{Sig: %d, Fn: func(%s) %s { return %s(%s) }}",
		sig.ID, strings.Join(decl, ", "), ret, e.callTarget(fidx), strings.Join(args, ", "))
}

// callTarget prints the callable for a module-wide function index.
func (e *emitter) callTarget(fidx uint32) string {
	entry := e.a.Funcs[fidx]
	if entry.Import {
		return fmt.Sprintf("m.%s.%s", e.groupField[e.funcGroup[fidx]], e.funcMethod[fidx])
	}
	return fmt.Sprintf("m.f%d", fidx)
}

// byteLiteral prints a []byte literal, wrapping long payloads.
func byteLiteral(data []byte) string {
	if len(data) == 0 {
		return "[]byte{}"
	}
	var b strings.Builder
	b.WriteString("[]byte{")
	for i, c := range data {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "0x%02x", c)
	}
	b.WriteString("}")
	return b.String()
}

func (e *emitter) emitConstructor() {
	var params []string
	if e.a.IsLibrary() {
		params = append(params, "mem *wasmrt.Memory")
	}
	for gi := range e.a.Groups {
		params = append(params, e.groupField[gi]+" "+e.groupIface[gi])
	}

	e.p("// New instantiates the module: memory and table are materialized,")
	e.p("// active data and element segments are applied in declaration order,")
	e.p("// and the start function, if declared, runs last.")
	e.p("func New(%s) (*%s, error) {", strings.Join(params, ", "), e.opts.Struct)
	e.ind++

	inits := make([]string, 0, len(e.a.Groups)+1)
	if e.a.IsLibrary() {
		inits = append(inits, "mem: mem")
	}
	for gi := range e.a.Groups {
		inits = append(inits, e.groupField[gi]+": "+e.groupField[gi])
	}
	e.p("m := &%s{%s}", e.opts.Struct, strings.Join(inits, ", "))

	if e.a.Memory != nil && !e.a.Memory.Import {
		max := "wasmrt.NoMaxPages"
		if e.a.Memory.HasMax {
			max = strconv.FormatUint(uint64(e.a.Memory.Max), 10)
		}
		e.p("m.mem = wasmrt.NewMemory(%d, %s)", e.a.Memory.Min, max)
	}
	if e.a.Table != nil {
		e.p("m.tab = wasmrt.NewTable(%d)", e.a.Table.Min)
	}

	for _, g := range e.a.Globals {
		if g.Import {
			e.p("m.g%d = %s.%s()", g.Index, e.groupField[e.globalGroup[g.Index]], e.globalGet[g.Index])
			continue
		}
		e.p("m.g%d = %s", g.Index, e.constLiteral(g.Init))
	}

	for _, d := range e.a.Data {
		if d.Passive {
			e.p("m.data%d = %s", d.Index, byteLiteral(d.Bytes))
			continue
		}
		e.p("if err := m.mem.Init(%s, %s); err != nil {", e.constOffset(d.Offset, 0), byteLiteral(d.Bytes))
		e.ind++
		e.p("return nil, err")
		e.ind--
		e.p("}")
	}

	for _, el := range e.a.Elems {
		if el.Passive {
			refs := make([]string, len(el.Funcs))
			for i, fidx := range el.Funcs {
				refs[i] = e.funcRefLiteral(fidx)
			}
			e.p("m.elem%d = []*wasmrt.FuncRef{%s}", el.Index, strings.Join(refs, ", "))
			continue
		}
		for i, fidx := range el.Funcs {
			e.p("if err := m.tab.Set(%s, %s); err != nil {", e.constOffset(el.Offset, uint32(i)), e.funcRefLiteral(fidx))
			e.ind++
			e.p("return nil, err")
			e.ind--
			e.p("}")
		}
	}

	if e.a.Start != nil {
		e.p("if err := %s(); err != nil {", e.callTarget(*e.a.Start))
		e.ind++
		e.p("return nil, err")
		e.ind--
		e.p("}")
	}

	e.p("return m, nil")
	e.ind--
	e.p("}")
	e.blank()
}

func (e *emitter) emitExports() error {
	names := newNameSet()
	for _, ex := range e.a.Exports {
		name := names.claim(goIdent(ex.Name, true))
		switch ex.Kind {
		case wasm.KindFunc:
			entry := e.a.Funcs[ex.Idx]
			params, results := sigText(entry.Sig.Params, entry.Sig.Results)
			args := make([]string, len(entry.Sig.Params))
			for i := range args {
				args[i] = local(i)
			}
			e.p("// %s implements the exported function %q.", name, ex.Name)
			e.p("func (m *%s) %s(%s) %s {", e.opts.Struct, name, params, results)
			e.ind++
			e.p("return %s(%s)", e.callTarget(ex.Idx), strings.Join(args, ", "))
			e.ind--
			e.p("}")
			e.blank()

		case wasm.KindMemory:
			e.p("// %s exposes the exported memory %q.", name, ex.Name)
			e.p("func (m *%s) %s() *wasmrt.Memory {", e.opts.Struct, name)
			e.ind++
			e.p("return m.mem")
			e.ind--
			e.p("}")
			e.blank()

		case wasm.KindTable:
			e.p("// %s exposes the exported table %q.", name, ex.Name)
			e.p("func (m *%s) %s() *wasmrt.Table {", e.opts.Struct, name)
			e.ind++
			e.p("return m.tab")
			e.ind--
			e.p("}")
			e.blank()

		case wasm.KindGlobal:
			g := e.a.Globals[ex.Idx]
			e.p("// %s reads the exported global %q.", name, ex.Name)
			e.p("func (m *%s) %s() %s {", e.opts.Struct, name, goType(g.Type.ValType))
			e.ind++
			e.p("return m.g%d", g.Index)
			e.ind--
			e.p("}")
			e.blank()
			if g.Type.Mutable {
				setter := names.claim("Set" + name)
				e.p("// %s writes the exported global %q.", setter, ex.Name)
				e.p("func (m *%s) %s(v %s) {", e.opts.Struct, setter, goType(g.Type.ValType))
				e.ind++
				e.p("m.g%d = v", g.Index)
				e.ind--
				e.p("}")
				e.blank()
			}

		default:
			return werrors.InvalidModule(werrors.PhaseEmit, "export %q has kind 0x%02x", ex.Name, ex.Kind)
		}
	}
	return nil
}
