package codegen

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasm2go/translate/internal/analysis"
	"github.com/wippyai/wasm2go/translate/internal/ir"
)

// emitFunc prints one internal function as a private method.
func (e *emitter) emitFunc(entry *analysis.FuncEntry, fn *ir.Func) {
	e.results = fn.Results
	e.countReads(fn)

	params, results := sigText(fn.Params, fn.Results)
	e.p("// f%d: %s", entry.Index, wasmSigText(entry.Sig))
	e.p("func (m *%s) f%d(%s) %s {", e.opts.Struct, entry.Index, params, results)
	e.ind++

	// Declared locals zero-initialize, as in wasm.
	for i, t := range fn.Locals {
		idx := len(fn.Params) + i
		e.p("var %s %s", local(idx), goType(t))
		if e.localReads[idx] == 0 {
			e.p("_ = %s", local(idx))
		}
	}

	// All virtual variables up front: block results are assigned on every
	// exit edge of their construct, which may be lexically nested scopes.
	if len(fn.VarTypes) > 0 {
		e.p("var (")
		e.ind++
		for id, t := range fn.VarTypes {
			e.p("v%d %s", id, goType(t))
		}
		e.ind--
		e.p(")")
		for id := range fn.VarTypes {
			if e.varReads[id] == 0 {
				e.p("_ = v%d", id)
			}
		}
	}
	if needsErr(fn.Stmts) {
		e.p("var err error")
	}

	for _, s := range fn.Stmts {
		e.stmt(s)
	}

	e.ind--
	e.p("}")
	e.blank()
}

// needsErr reports whether any statement assigns the shared err variable.
func needsErr(stmts []ir.Stmt) bool {
	for _, s := range stmts {
		switch s.(type) {
		case ir.Load, ir.Store, ir.CheckedConv, ir.Call, ir.CallIndirect,
			ir.MemoryInit, ir.MemoryCopy, ir.MemoryFill, ir.TableInit:
			return true
		}
	}
	return false
}

// zeros returns the zero-value return list for the current function,
// without the trailing error.
func (e *emitter) zeros() string {
	parts := make([]string, 0, len(e.results)+1)
	for _, t := range e.results {
		parts = append(parts, zeroOf(t))
	}
	return strings.Join(parts, ", ")
}

func (e *emitter) retTrap(sentinel string) string {
	z := e.zeros()
	if z == "" {
		return "return wasmrt." + sentinel
	}
	return "return " + z + ", wasmrt." + sentinel
}

func (e *emitter) retValues(vs []ir.Var) string {
	parts := make([]string, 0, len(vs)+1)
	for _, x := range vs {
		parts = append(parts, v(x))
	}
	parts = append(parts, "nil")
	return "return " + strings.Join(parts, ", ")
}

// errCheck prints the short-circuit that follows every fallible operation.
func (e *emitter) errCheck() {
	e.p("if err != nil {")
	e.ind++
	z := e.zeros()
	if z == "" {
		e.p("return err")
	} else {
		e.p("return %s, err", z)
	}
	e.ind--
	e.p("}")
}

// dstList prints a call's destination list followed by err.
func dstList(dsts []ir.Var) string {
	parts := make([]string, 0, len(dsts)+1)
	for _, d := range dsts {
		parts = append(parts, v(d))
	}
	parts = append(parts, "err")
	return strings.Join(parts, ", ")
}

func argList(args []ir.Var) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = v(a)
	}
	return strings.Join(parts, ", ")
}

// jump prints a resolved branch destination: the value moves, then the
// transfer itself.
func (e *emitter) jump(d ir.Dest) {
	if d.Return {
		e.p("%s", e.retValues(d.Results))
		return
	}
	for _, mv := range d.Moves {
		if mv.Dst.ID != mv.Src.ID {
			e.p("%s = %s", v(mv.Dst), v(mv.Src))
		}
	}
	if d.Label.Cont {
		e.p("continue %s", d.Label.Name)
	} else {
		e.p("break %s", d.Label.Name)
	}
}

func (e *emitter) stmt(s ir.Stmt) {
	switch s := s.(type) {
	case ir.Assign:
		e.p("%s = %s", v(s.Dst), e.expr(s.Src))

	case ir.LocalWrite:
		e.p("%s = %s", local(s.Idx), v(s.Src))

	case ir.GlobalWrite:
		e.p("%s = %s", globalField(s.Idx), v(s.Src))

	case ir.Load:
		e.p("%s, err = m.mem.%s(uint32(%s), %d)", v(s.Dst), memLoadCall(s.Op), v(s.Addr), s.Offset)
		e.errCheck()

	case ir.Store:
		e.p("if err = m.mem.%s(uint32(%s), %d, %s); err != nil {", memStoreCall(s.Op), v(s.Addr), s.Offset, v(s.Val))
		e.indentedTrapReturn()

	case ir.CheckedConv:
		e.p("%s, err = wasmrt.%s(%s)", v(s.Dst), truncCall(s.Op), v(s.Src))
		e.errCheck()

	case ir.Guard:
		switch s.Kind {
		case ir.GuardDivZero:
			e.p("if %s == 0 {", v(s.Y))
			e.ind++
			e.p("%s", e.retTrap("ErrDivisionByZero"))
			e.ind--
			e.p("}")
		case ir.GuardDivOverflow:
			e.p("if %s == %s && %s == -1 {", v(s.X), minLiteral(s.X.Type), v(s.Y))
			e.ind++
			e.p("%s", e.retTrap("ErrIntegerOverflow"))
			e.ind--
			e.p("}")
		}

	case ir.MemoryGrow:
		e.p("%s = m.mem.Grow(uint32(%s))", v(s.Dst), v(s.Delta))

	case ir.MemoryInit:
		e.p("if err = m.mem.InitFrom(uint32(%s), uint32(%s), uint32(%s), m.data%d); err != nil {",
			v(s.D), v(s.S), v(s.N), s.Seg)
		e.indentedTrapReturn()

	case ir.DataDrop:
		e.p("m.data%d = nil", s.Seg)

	case ir.MemoryCopy:
		e.p("if err = m.mem.Copy(uint32(%s), uint32(%s), uint32(%s)); err != nil {", v(s.D), v(s.S), v(s.N))
		e.indentedTrapReturn()

	case ir.MemoryFill:
		e.p("if err = m.mem.Fill(uint32(%s), %s, uint32(%s)); err != nil {", v(s.D), v(s.V), v(s.N))
		e.indentedTrapReturn()

	case ir.TableInit:
		e.p("if err = m.tab.Init(uint32(%s), uint32(%s), uint32(%s), m.elem%d); err != nil {",
			v(s.D), v(s.S), v(s.N), s.Seg)
		e.indentedTrapReturn()

	case ir.ElemDrop:
		e.p("m.elem%d = nil", s.Seg)

	case ir.Call:
		call := fmt.Sprintf("%s(%s)", e.callTarget(s.Func), argList(s.Args))
		if len(s.Dsts) == 0 {
			e.p("if err = %s; err != nil {", call)
			e.indentedTrapReturn()
		} else {
			e.p("%s = %s", dstList(s.Dsts), call)
			e.errCheck()
		}

	case ir.CallIndirect:
		entrySig := e.a.Sigs[s.SigID]
		ft := funcTypeText(entrySig.Params, entrySig.Results)
		fnName := "fn" + fmt.Sprint(s.Index.ID)
		e.p("var %s %s", fnName, ft)
		e.p("%s, err = wasmrt.Invoke[%s](m.tab, uint32(%s), %d)", fnName, ft, v(s.Index), s.SigID)
		e.errCheck()
		call := fmt.Sprintf("%s(%s)", fnName, argList(s.Args))
		if len(s.Dsts) == 0 {
			e.p("if err = %s; err != nil {", call)
			e.indentedTrapReturn()
		} else {
			e.p("%s = %s", dstList(s.Dsts), call)
			e.errCheck()
		}

	case ir.Br:
		e.jump(s.Dest)

	case ir.BrIf:
		e.p("if %s != 0 {", v(s.Cond))
		e.ind++
		e.jump(s.Dest)
		e.ind--
		e.p("}")

	case ir.BrTable:
		e.p("switch %s {", v(s.Index))
		for i, c := range s.Cases {
			e.p("case %d:", i)
			e.ind++
			e.jump(c)
			e.ind--
		}
		e.p("default:")
		e.ind++
		e.jump(s.Default)
		e.ind--
		e.p("}")

	case ir.Return:
		e.p("%s", e.retValues(s.Results))

	case ir.Trap:
		e.p("%s", e.retTrap("ErrUnreachable"))

	case ir.BlockOpen:
		if s.Label != nil && s.Label.Used {
			e.p("%s:", s.Label.Name)
			e.p("for {")
		} else {
			e.p("{")
		}
		e.ind++

	case ir.IfOpen:
		if s.Label != nil && s.Label.Used {
			e.p("%s:", s.Label.Name)
			e.p("for {")
			e.ind++
		}
		e.p("if %s != 0 {", v(s.Cond))
		e.ind++

	case ir.Else:
		e.ind--
		e.p("} else {")
		e.ind++

	case ir.Close:
		if s.If {
			e.ind--
			e.p("}")
			if s.Label != nil && s.Label.Used {
				e.p("break %s", s.Label.Name)
				e.ind--
				e.p("}")
			}
			return
		}
		if s.Label != nil && s.Label.Used {
			e.p("break %s", s.Label.Name)
		}
		e.ind--
		e.p("}")
	}
}

// indentedTrapReturn closes a one-line `if err = ...; err != nil {` check.
func (e *emitter) indentedTrapReturn() {
	e.ind++
	z := e.zeros()
	if z == "" {
		e.p("return err")
	} else {
		e.p("return %s, err", z)
	}
	e.ind--
	e.p("}")
}

// countReads walks the statement list mirroring emission exactly, so a
// variable counts as read iff its name appears as an operand in the output.
func (e *emitter) countReads(fn *ir.Func) {
	e.varReads = make(map[int]int, len(fn.VarTypes))
	e.localReads = make(map[int]int)

	readVar := func(x ir.Var) { e.varReads[x.ID]++ }
	readExpr := func(x ir.Expr) {
		switch x := x.(type) {
		case ir.VarRef:
			readVar(x.X)
		case ir.LocalRead:
			e.localReads[x.Idx]++
		case ir.Unary:
			readVar(x.X)
		case ir.Binary:
			readVar(x.X)
			readVar(x.Y)
		case ir.SatConv:
			readVar(x.X)
		case ir.Select:
			readVar(x.Cond)
			readVar(x.V1)
			readVar(x.V2)
		}
	}
	readDest := func(d ir.Dest) {
		if d.Return {
			for _, r := range d.Results {
				readVar(r)
			}
			return
		}
		for _, mv := range d.Moves {
			if mv.Dst.ID != mv.Src.ID {
				readVar(mv.Src)
			}
		}
	}

	for _, s := range fn.Stmts {
		switch s := s.(type) {
		case ir.Assign:
			readExpr(s.Src)
		case ir.LocalWrite:
			readVar(s.Src)
		case ir.GlobalWrite:
			readVar(s.Src)
		case ir.Load:
			readVar(s.Addr)
		case ir.Store:
			readVar(s.Addr)
			readVar(s.Val)
		case ir.CheckedConv:
			readVar(s.Src)
		case ir.Guard:
			readVar(s.Y)
			if s.Kind == ir.GuardDivOverflow {
				readVar(s.X)
			}
		case ir.MemoryGrow:
			readVar(s.Delta)
		case ir.MemoryInit:
			readVar(s.D)
			readVar(s.S)
			readVar(s.N)
		case ir.MemoryCopy:
			readVar(s.D)
			readVar(s.S)
			readVar(s.N)
		case ir.MemoryFill:
			readVar(s.D)
			readVar(s.V)
			readVar(s.N)
		case ir.TableInit:
			readVar(s.D)
			readVar(s.S)
			readVar(s.N)
		case ir.Call:
			for _, a := range s.Args {
				readVar(a)
			}
		case ir.CallIndirect:
			readVar(s.Index)
			for _, a := range s.Args {
				readVar(a)
			}
		case ir.Br:
			readDest(s.Dest)
		case ir.BrIf:
			readVar(s.Cond)
			readDest(s.Dest)
		case ir.BrTable:
			readVar(s.Index)
			for _, c := range s.Cases {
				readDest(c)
			}
			readDest(s.Default)
		case ir.Return:
			for _, r := range s.Results {
				readVar(r)
			}
		case ir.IfOpen:
			readVar(s.Cond)
		}
	}
}
