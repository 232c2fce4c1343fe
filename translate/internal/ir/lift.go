package ir

import (
	"fmt"

	werrors "github.com/wippyai/wasm2go/errors"
	"github.com/wippyai/wasm2go/wasm"
)

// Frame kinds on the control stack.
const (
	frameFunc byte = iota
	frameBlock
	frameLoop
	frameIf
)

// frame is one open structured construct.
type frame struct {
	label       *Label
	resultTypes []wasm.ValType
	paramTypes  []wasm.ValType
	results     []Var // pre-allocated result vars, pushed after close
	branch      []Var // vars a branch assigns: results, or carried for loops
	savedParams []Var // if-frame entry values, restored at else
	height      int   // value stack height at entry, params excluded
	kind        byte
	unreachable bool
	elseSeen    bool
}

type lifter struct {
	ctx     *Context
	fn      *Func
	stack   []Var
	frames  []*frame
	locals  []wasm.ValType // params ++ declared locals
	phantom int            // nesting depth of skipped constructs under dead code
	nlabels int
}

// Lift simulates one function body and returns its statement list. The
// instruction stream must already be decoded and validated; stack-type
// mismatches found here are internal errors, not user errors.
func Lift(instrs []wasm.Instruction, params, results, locals []wasm.ValType, ctx *Context) (*Func, error) {
	l := &lifter{
		ctx:    ctx,
		locals: append(append([]wasm.ValType{}, params...), locals...),
		fn: &Func{
			Params:  params,
			Results: results,
			Locals:  locals,
		},
	}
	l.frames = []*frame{{kind: frameFunc, resultTypes: results}}

	for i, in := range instrs {
		if len(l.frames) == 0 {
			return nil, werrors.Internal(werrors.PhaseLift, []string{ctx.FuncName},
				"operator after the function's final end")
		}
		if err := l.step(in); err != nil {
			return nil, wrapAt(err, ctx.FuncName, i)
		}
	}
	if len(l.frames) != 0 {
		return nil, werrors.Internal(werrors.PhaseLift, []string{ctx.FuncName},
			"%d unclosed control frames at end of body", len(l.frames))
	}
	return l.fn, nil
}

func wrapAt(err error, fnName string, op int) error {
	if we, ok := err.(*werrors.Error); ok {
		if len(we.Path) == 0 {
			we.Path = []string{fnName, fmt.Sprintf("op[%d]", op)}
		}
		return we
	}
	return werrors.New(werrors.PhaseLift, werrors.KindInternal).
		Path(fnName, fmt.Sprintf("op[%d]", op)).
		Cause(err).
		Build()
}

func (l *lifter) internal(format string, args ...any) error {
	return werrors.Internal(werrors.PhaseLift, nil, format, args...)
}

func (l *lifter) emit(s Stmt) {
	l.fn.Stmts = append(l.fn.Stmts, s)
}

func (l *lifter) newVar(t wasm.ValType) Var {
	v := Var{ID: len(l.fn.VarTypes), Type: t}
	l.fn.VarTypes = append(l.fn.VarTypes, t)
	return v
}

func (l *lifter) newLabel(cont bool) *Label {
	lb := &Label{Name: fmt.Sprintf("L%d", l.nlabels), Cont: cont}
	l.nlabels++
	return lb
}

func (l *lifter) top() *frame {
	return l.frames[len(l.frames)-1]
}

func (l *lifter) frameAt(depth uint32) (*frame, error) {
	if int(depth) >= len(l.frames) {
		return nil, l.internal("branch depth %d exceeds control stack of %d", depth, len(l.frames))
	}
	return l.frames[len(l.frames)-1-int(depth)], nil
}

func (l *lifter) push(v Var) {
	l.stack = append(l.stack, v)
}

func (l *lifter) pop(want wasm.ValType) (Var, error) {
	f := l.top()
	if len(l.stack) <= f.height {
		return Var{}, l.internal("value stack underflow: need %s", want)
	}
	v := l.stack[len(l.stack)-1]
	if v.Type != want {
		return Var{}, l.internal("stack type mismatch: have %s, want %s", v.Type, want)
	}
	l.stack = l.stack[:len(l.stack)-1]
	return v, nil
}

func (l *lifter) popAny() (Var, error) {
	f := l.top()
	if len(l.stack) <= f.height {
		return Var{}, l.internal("value stack underflow")
	}
	v := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	return v, nil
}

// popN pops n typed values, returning them in bottom-to-top order.
func (l *lifter) popN(types []wasm.ValType) ([]Var, error) {
	out := make([]Var, len(types))
	for i := len(types) - 1; i >= 0; i-- {
		v, err := l.pop(types[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// peekN reads the top n typed values without popping, bottom-to-top.
func (l *lifter) peekN(types []wasm.ValType) ([]Var, error) {
	f := l.top()
	n := len(types)
	if len(l.stack)-f.height < n {
		return nil, l.internal("value stack underflow: need %d values", n)
	}
	out := make([]Var, n)
	base := len(l.stack) - n
	for i := 0; i < n; i++ {
		v := l.stack[base+i]
		if v.Type != types[i] {
			return nil, l.internal("stack type mismatch: have %s, want %s", v.Type, types[i])
		}
		out[i] = v
	}
	return out, nil
}

func (l *lifter) setUnreachable() {
	l.top().unreachable = true
	l.stack = l.stack[:l.top().height]
}

// blockType resolves a block-type immediate to parameter and result types.
func (l *lifter) blockType(bt int32) (params, results []wasm.ValType, err error) {
	switch bt {
	case wasm.BlockTypeVoid:
		return nil, nil, nil
	case wasm.BlockTypeI32:
		return nil, []wasm.ValType{wasm.ValI32}, nil
	case wasm.BlockTypeI64:
		return nil, []wasm.ValType{wasm.ValI64}, nil
	case wasm.BlockTypeF32:
		return nil, []wasm.ValType{wasm.ValF32}, nil
	case wasm.BlockTypeF64:
		return nil, []wasm.ValType{wasm.ValF64}, nil
	}
	if bt < 0 {
		return nil, nil, werrors.Unsupported(werrors.PhaseLift, fmt.Sprintf("block type 0x%02x", uint8(bt&0x7F)))
	}
	p, r, _, ok := l.ctx.TypeSig(uint32(bt))
	if !ok {
		return nil, nil, werrors.InvalidModule(werrors.PhaseLift, "block type references type %d", bt)
	}
	return p, r, nil
}

func (l *lifter) localType(idx uint32) (wasm.ValType, error) {
	if int(idx) >= len(l.locals) {
		return 0, l.internal("local index %d out of range (%d locals)", idx, len(l.locals))
	}
	return l.locals[idx], nil
}

// step processes one operator.
func (l *lifter) step(in wasm.Instruction) error {
	if l.top().unreachable {
		return l.stepDead(in)
	}

	op := in.Opcode
	switch op {
	case wasm.OpNop:
		return nil

	case wasm.OpUnreachable:
		l.emit(Trap{})
		l.setUnreachable()
		return nil

	case wasm.OpBlock, wasm.OpLoop:
		return l.openBlock(in, op == wasm.OpLoop)

	case wasm.OpIf:
		return l.openIf(in)

	case wasm.OpElse:
		return l.handleElse()

	case wasm.OpEnd:
		return l.handleEnd()

	case wasm.OpBr:
		depth := in.Imm.(wasm.BranchImm).LabelIdx
		dest, err := l.resolveBranch(depth, true)
		if err != nil {
			return err
		}
		if dest.Return {
			l.emit(Return{Results: dest.Results})
		} else {
			l.emit(Br{Dest: dest})
		}
		l.setUnreachable()
		return nil

	case wasm.OpBrIf:
		cond, err := l.pop(wasm.ValI32)
		if err != nil {
			return err
		}
		depth := in.Imm.(wasm.BranchImm).LabelIdx
		dest, err := l.resolveBranch(depth, false)
		if err != nil {
			return err
		}
		l.emit(BrIf{Cond: cond, Dest: dest})
		return nil

	case wasm.OpBrTable:
		imm := in.Imm.(wasm.BrTableImm)
		idx, err := l.pop(wasm.ValI32)
		if err != nil {
			return err
		}
		def, err := l.resolveBranch(imm.Default, false)
		if err != nil {
			return err
		}
		cases := make([]Dest, len(imm.Labels))
		for i, depth := range imm.Labels {
			if cases[i], err = l.resolveBranch(depth, false); err != nil {
				return err
			}
		}
		l.emit(BrTable{Index: idx, Cases: cases, Default: def})
		l.setUnreachable()
		return nil

	case wasm.OpReturn:
		rs, err := l.popN(l.fn.Results)
		if err != nil {
			return err
		}
		l.emit(Return{Results: rs})
		l.setUnreachable()
		return nil

	case wasm.OpCall:
		fidx := in.Imm.(wasm.CallImm).FuncIdx
		params, results, ok := l.ctx.FuncSig(fidx)
		if !ok {
			return werrors.InvalidModule(werrors.PhaseLift, "call references function %d", fidx)
		}
		args, err := l.popN(params)
		if err != nil {
			return err
		}
		dsts := l.freshAll(results)
		l.emit(Call{Func: fidx, Args: args, Dsts: dsts})
		l.pushAll(dsts)
		return nil

	case wasm.OpCallIndirect:
		imm := in.Imm.(wasm.CallIndirectImm)
		if !l.ctx.HasTable {
			return werrors.InvalidModule(werrors.PhaseLift, "call_indirect in a module without a table")
		}
		params, results, sigID, ok := l.ctx.TypeSig(imm.TypeIdx)
		if !ok {
			return werrors.InvalidModule(werrors.PhaseLift, "call_indirect references type %d", imm.TypeIdx)
		}
		idx, err := l.pop(wasm.ValI32)
		if err != nil {
			return err
		}
		args, err := l.popN(params)
		if err != nil {
			return err
		}
		dsts := l.freshAll(results)
		l.emit(CallIndirect{SigID: sigID, Index: idx, Args: args, Dsts: dsts})
		l.pushAll(dsts)
		return nil

	case wasm.OpDrop:
		_, err := l.popAny()
		return err

	case wasm.OpSelect, wasm.OpSelectType:
		cond, err := l.pop(wasm.ValI32)
		if err != nil {
			return err
		}
		v2, err := l.popAny()
		if err != nil {
			return err
		}
		v1, err := l.pop(v2.Type)
		if err != nil {
			return err
		}
		if imm, ok := in.Imm.(wasm.SelectTypeImm); ok && len(imm.Types) == 1 && imm.Types[0] != v2.Type {
			return l.internal("select type annotation %s does not match operand %s", imm.Types[0], v2.Type)
		}
		dst := l.newVar(v1.Type)
		l.emit(Assign{Dst: dst, Src: Select{Cond: cond, V1: v1, V2: v2}})
		l.push(dst)
		return nil

	case wasm.OpLocalGet:
		idx := in.Imm.(wasm.LocalImm).LocalIdx
		t, err := l.localType(idx)
		if err != nil {
			return err
		}
		// Snapshot, not alias: a later write to the local must not change
		// this value.
		v := l.newVar(t)
		l.emit(Assign{Dst: v, Src: LocalRead{Idx: int(idx)}})
		l.push(v)
		return nil

	case wasm.OpLocalSet:
		idx := in.Imm.(wasm.LocalImm).LocalIdx
		t, err := l.localType(idx)
		if err != nil {
			return err
		}
		v, err := l.pop(t)
		if err != nil {
			return err
		}
		l.emit(LocalWrite{Idx: int(idx), Src: v})
		return nil

	case wasm.OpLocalTee:
		idx := in.Imm.(wasm.LocalImm).LocalIdx
		t, err := l.localType(idx)
		if err != nil {
			return err
		}
		v, err := l.pop(t)
		if err != nil {
			return err
		}
		l.emit(LocalWrite{Idx: int(idx), Src: v})
		snap := l.newVar(t)
		l.emit(Assign{Dst: snap, Src: VarRef{X: v}})
		l.push(snap)
		return nil

	case wasm.OpGlobalGet:
		idx := in.Imm.(wasm.GlobalImm).GlobalIdx
		t, ok := l.ctx.GlobalType(idx)
		if !ok {
			return werrors.InvalidModule(werrors.PhaseLift, "global.get references global %d", idx)
		}
		v := l.newVar(t)
		l.emit(Assign{Dst: v, Src: GlobalRead{Idx: int(idx)}})
		l.push(v)
		return nil

	case wasm.OpGlobalSet:
		idx := in.Imm.(wasm.GlobalImm).GlobalIdx
		t, ok := l.ctx.GlobalType(idx)
		if !ok {
			return werrors.InvalidModule(werrors.PhaseLift, "global.set references global %d", idx)
		}
		v, err := l.pop(t)
		if err != nil {
			return err
		}
		l.emit(GlobalWrite{Idx: int(idx), Src: v})
		return nil

	case wasm.OpI32Const:
		v := l.newVar(wasm.ValI32)
		l.emit(Assign{Dst: v, Src: ConstI32{V: in.Imm.(wasm.I32Imm).Value}})
		l.push(v)
		return nil

	case wasm.OpI64Const:
		v := l.newVar(wasm.ValI64)
		l.emit(Assign{Dst: v, Src: ConstI64{V: in.Imm.(wasm.I64Imm).Value}})
		l.push(v)
		return nil

	case wasm.OpF32Const:
		v := l.newVar(wasm.ValF32)
		l.emit(Assign{Dst: v, Src: ConstF32{V: in.Imm.(wasm.F32Imm).Value}})
		l.push(v)
		return nil

	case wasm.OpF64Const:
		v := l.newVar(wasm.ValF64)
		l.emit(Assign{Dst: v, Src: ConstF64{V: in.Imm.(wasm.F64Imm).Value}})
		l.push(v)
		return nil

	case wasm.OpMemorySize:
		if err := l.needMemory(); err != nil {
			return err
		}
		v := l.newVar(wasm.ValI32)
		l.emit(Assign{Dst: v, Src: MemorySize{}})
		l.push(v)
		return nil

	case wasm.OpMemoryGrow:
		if err := l.needMemory(); err != nil {
			return err
		}
		delta, err := l.pop(wasm.ValI32)
		if err != nil {
			return err
		}
		v := l.newVar(wasm.ValI32)
		l.emit(MemoryGrow{Dst: v, Delta: delta})
		l.push(v)
		return nil

	case wasm.OpPrefixMisc:
		return l.stepMisc(in.Imm.(wasm.MiscImm))
	}

	if t, ok := loadTypes(op); ok {
		if err := l.needMemory(); err != nil {
			return err
		}
		imm := in.Imm.(wasm.MemoryImm)
		addr, err := l.pop(wasm.ValI32)
		if err != nil {
			return err
		}
		dst := l.newVar(t)
		l.emit(Load{Op: op, Dst: dst, Addr: addr, Offset: imm.Offset})
		l.push(dst)
		return nil
	}

	if t, ok := storeTypes(op); ok {
		if err := l.needMemory(); err != nil {
			return err
		}
		imm := in.Imm.(wasm.MemoryImm)
		val, err := l.pop(t)
		if err != nil {
			return err
		}
		addr, err := l.pop(wasm.ValI32)
		if err != nil {
			return err
		}
		l.emit(Store{Op: op, Addr: addr, Val: val, Offset: imm.Offset})
		return nil
	}

	if src, dst, ok := checkedConvTypes(op); ok {
		x, err := l.pop(src)
		if err != nil {
			return err
		}
		d := l.newVar(dst)
		l.emit(CheckedConv{Op: op, Dst: d, Src: x})
		l.push(d)
		return nil
	}

	if sig, ok := pureOpTypes(op); ok {
		args, err := l.popN(sig.args)
		if err != nil {
			return err
		}
		for _, g := range divRemGuards(op) {
			l.emit(Guard{Kind: g, X: args[0], Y: args[1]})
		}
		dst := l.newVar(sig.result)
		switch len(args) {
		case 1:
			l.emit(Assign{Dst: dst, Src: Unary{Op: op, X: args[0]}})
		case 2:
			l.emit(Assign{Dst: dst, Src: Binary{Op: op, X: args[0], Y: args[1]}})
		}
		l.push(dst)
		return nil
	}

	return werrors.Unsupported(werrors.PhaseLift, (&wasm.UnsupportedOpcodeError{Opcode: op}).Error())
}

// stepMisc handles the 0xFC-prefixed operators.
func (l *lifter) stepMisc(imm wasm.MiscImm) error {
	if src, dst, ok := satConvTypes(imm.SubOpcode); ok {
		x, err := l.pop(src)
		if err != nil {
			return err
		}
		d := l.newVar(dst)
		l.emit(Assign{Dst: d, Src: SatConv{Sub: imm.SubOpcode, X: x}})
		l.push(d)
		return nil
	}

	switch imm.SubOpcode {
	case wasm.MiscMemoryInit:
		if err := l.needMemory(); err != nil {
			return err
		}
		seg := imm.Operands[0]
		if int(seg) >= l.ctx.NumData {
			return werrors.InvalidModule(werrors.PhaseLift, "memory.init references data segment %d", seg)
		}
		n, s, d, err := l.pop3i32()
		if err != nil {
			return err
		}
		l.emit(MemoryInit{Seg: seg, D: d, S: s, N: n})
		return nil

	case wasm.MiscDataDrop:
		seg := imm.Operands[0]
		if int(seg) >= l.ctx.NumData {
			return werrors.InvalidModule(werrors.PhaseLift, "data.drop references data segment %d", seg)
		}
		l.emit(DataDrop{Seg: seg})
		return nil

	case wasm.MiscMemoryCopy:
		if err := l.needMemory(); err != nil {
			return err
		}
		n, s, d, err := l.pop3i32()
		if err != nil {
			return err
		}
		l.emit(MemoryCopy{D: d, S: s, N: n})
		return nil

	case wasm.MiscMemoryFill:
		if err := l.needMemory(); err != nil {
			return err
		}
		n, v, d, err := l.pop3i32()
		if err != nil {
			return err
		}
		l.emit(MemoryFill{D: d, V: v, N: n})
		return nil

	case wasm.MiscTableInit:
		if !l.ctx.HasTable {
			return werrors.InvalidModule(werrors.PhaseLift, "table.init in a module without a table")
		}
		seg := imm.Operands[0]
		if int(seg) >= l.ctx.NumElems {
			return werrors.InvalidModule(werrors.PhaseLift, "table.init references element segment %d", seg)
		}
		n, s, d, err := l.pop3i32()
		if err != nil {
			return err
		}
		l.emit(TableInit{Seg: seg, D: d, S: s, N: n})
		return nil

	case wasm.MiscElemDrop:
		seg := imm.Operands[0]
		if int(seg) >= l.ctx.NumElems {
			return werrors.InvalidModule(werrors.PhaseLift, "elem.drop references element segment %d", seg)
		}
		l.emit(ElemDrop{Seg: seg})
		return nil
	}

	return werrors.Unsupported(werrors.PhaseLift,
		(&wasm.UnsupportedOpcodeError{Opcode: wasm.OpPrefixMisc, Sub: imm.SubOpcode}).Error())
}

func (l *lifter) pop3i32() (a, b, c Var, err error) {
	if a, err = l.pop(wasm.ValI32); err != nil {
		return
	}
	if b, err = l.pop(wasm.ValI32); err != nil {
		return
	}
	c, err = l.pop(wasm.ValI32)
	return
}

func (l *lifter) needMemory() error {
	if !l.ctx.HasMemory {
		return werrors.InvalidModule(werrors.PhaseLift, "memory operator in a module without memory")
	}
	return nil
}

func (l *lifter) freshAll(types []wasm.ValType) []Var {
	out := make([]Var, len(types))
	for i, t := range types {
		out[i] = l.newVar(t)
	}
	return out
}

func (l *lifter) pushAll(vs []Var) {
	for _, v := range vs {
		l.push(v)
	}
}

// openBlock opens a block or loop frame.
func (l *lifter) openBlock(in wasm.Instruction, loop bool) error {
	params, results, err := l.blockType(in.Imm.(wasm.BlockImm).Type)
	if err != nil {
		return err
	}
	pvs, err := l.popN(params)
	if err != nil {
		return err
	}

	f := &frame{
		kind:        frameBlock,
		resultTypes: results,
		paramTypes:  params,
		results:     l.freshAll(results),
		height:      len(l.stack),
	}
	if loop {
		f.kind = frameLoop
		f.label = l.newLabel(true)
		// Loop-carried values: branches back to the loop re-assign these.
		carried := l.freshAll(params)
		for i, pv := range pvs {
			l.emit(Assign{Dst: carried[i], Src: VarRef{X: pv}})
		}
		f.branch = carried
		l.frames = append(l.frames, f)
		l.emit(BlockOpen{Label: f.label, Loop: true})
		l.pushAll(carried)
		return nil
	}

	f.label = l.newLabel(false)
	f.branch = f.results
	l.frames = append(l.frames, f)
	l.emit(BlockOpen{Label: f.label})
	// Block parameters pass through: the same values remain visible inside.
	l.pushAll(pvs)
	return nil
}

// openIf opens a conditional frame.
func (l *lifter) openIf(in wasm.Instruction) error {
	cond, err := l.pop(wasm.ValI32)
	if err != nil {
		return err
	}
	params, results, err := l.blockType(in.Imm.(wasm.BlockImm).Type)
	if err != nil {
		return err
	}
	pvs, err := l.popN(params)
	if err != nil {
		return err
	}
	f := &frame{
		kind:        frameIf,
		label:       l.newLabel(false),
		resultTypes: results,
		paramTypes:  params,
		results:     l.freshAll(results),
		savedParams: pvs,
		height:      len(l.stack),
	}
	f.branch = f.results
	l.frames = append(l.frames, f)
	l.emit(IfOpen{Label: f.label, Cond: cond})
	l.pushAll(pvs)
	return nil
}

// closeArm moves the values the falling-through arm produced into the
// frame's result variables and checks the height invariant.
func (l *lifter) closeArm(f *frame) error {
	vs, err := l.popN(f.resultTypes)
	if err != nil {
		return err
	}
	for i, v := range vs {
		l.emit(Assign{Dst: f.results[i], Src: VarRef{X: v}})
	}
	if len(l.stack) != f.height {
		return l.internal("value stack height %d at block end, expected %d", len(l.stack), f.height)
	}
	return nil
}

func (l *lifter) handleElse() error {
	f := l.top()
	if f.kind != frameIf {
		return l.internal("else outside an if frame")
	}
	if !f.unreachable {
		if err := l.closeArm(f); err != nil {
			return err
		}
	} else {
		l.stack = l.stack[:f.height]
		f.unreachable = false
	}
	f.elseSeen = true
	l.emit(Else{})
	l.pushAll(f.savedParams)
	return nil
}

func (l *lifter) handleEnd() error {
	f := l.top()

	if f.kind == frameFunc {
		if !f.unreachable {
			rs, err := l.popN(l.fn.Results)
			if err != nil {
				return err
			}
			l.emit(Return{Results: rs})
		} else {
			l.emit(Trap{})
		}
		l.frames = l.frames[:len(l.frames)-1]
		return nil
	}

	if !f.unreachable {
		if err := l.closeArm(f); err != nil {
			return err
		}
	} else {
		l.stack = l.stack[:f.height]
	}

	// An if with results but no else falls through as the identity on its
	// parameters when the condition is false.
	if f.kind == frameIf && !f.elseSeen && len(f.resultTypes) > 0 {
		l.emit(Else{})
		for i, pv := range f.savedParams {
			l.emit(Assign{Dst: f.results[i], Src: VarRef{X: pv}})
		}
	}

	l.emit(Close{Label: f.label, Loop: f.kind == frameLoop, If: f.kind == frameIf})
	l.frames = l.frames[:len(l.frames)-1]
	l.pushAll(f.results)
	return nil
}

// resolveBranch builds the destination for a branch at the given depth.
// When consume is set the moved values are popped; br_if and br_table peek
// instead so the fall-through path keeps its stack.
func (l *lifter) resolveBranch(depth uint32, consume bool) (Dest, error) {
	f, err := l.frameAt(depth)
	if err != nil {
		return Dest{}, err
	}

	if f.kind == frameFunc {
		var rs []Var
		if consume {
			rs, err = l.popN(l.fn.Results)
		} else {
			rs, err = l.peekN(l.fn.Results)
		}
		if err != nil {
			return Dest{}, err
		}
		return Dest{Return: true, Results: rs}, nil
	}

	// Loops receive their parameters on a back-branch; blocks and ifs
	// receive their results on an exit branch.
	types := f.resultTypes
	if f.kind == frameLoop {
		types = f.paramTypes
	}
	var vs []Var
	if consume {
		vs, err = l.popN(types)
	} else {
		vs, err = l.peekN(types)
	}
	if err != nil {
		return Dest{}, err
	}
	moves := make([]Move, len(vs))
	for i, v := range vs {
		moves[i] = Move{Dst: f.branch[i], Src: v}
	}
	f.label.Used = true
	return Dest{Label: f.label, Moves: moves}, nil
}

// stepDead tracks structure while the current frame is unreachable. Only
// the matching else or end re-anchors emission; everything else is skipped
// under the validator's polymorphic stack rule.
func (l *lifter) stepDead(in wasm.Instruction) error {
	switch in.Opcode {
	case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
		l.phantom++
	case wasm.OpElse:
		if l.phantom == 0 {
			return l.handleElse()
		}
	case wasm.OpEnd:
		if l.phantom == 0 {
			return l.handleEnd()
		}
		l.phantom--
	}
	return nil
}
