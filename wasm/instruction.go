package wasm

import (
	"bytes"
	"fmt"
)

// Opcode constants are defined in constants.go

// Instruction represents a decoded WebAssembly instruction
type Instruction struct {
	Imm    interface{}
	Opcode byte
}

// BlockImm holds the block type for block, loop, and if instructions.
type BlockImm struct {
	Type int32 // Block type: -64=void, -1=i32, -2=i64, -3=f32, -4=f64, >=0=type index
}

// BranchImm holds the label index for br and br_if instructions.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table instruction.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call instruction.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect instruction.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// MemoryImm holds memory access parameters for load and store instructions.
type MemoryImm struct {
	Offset uint32
	Align  uint32
}

// MemoryIdxImm holds the memory index for memory.size and memory.grow.
type MemoryIdxImm struct {
	MemIdx uint32
}

// I32Imm holds the constant value for i32.const instruction.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant value for i64.const instruction.
type I64Imm struct {
	Value int64
}

// F32Imm holds the constant value for f32.const instruction.
type F32Imm struct {
	Value float32
}

// F64Imm holds the constant value for f64.const instruction.
type F64Imm struct {
	Value float64
}

// MiscImm holds the sub-opcode and immediates for 0xFC prefix instructions
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// SelectTypeImm holds value types for typed select
type SelectTypeImm struct {
	Types []ValType
}

// UnsupportedOpcodeError reports an operator outside the accepted subset,
// naming the proposal it belongs to.
type UnsupportedOpcodeError struct {
	Feature string
	Opcode  byte
	Sub     uint32
}

func (e *UnsupportedOpcodeError) Error() string {
	if e.Feature != "" {
		return fmt.Sprintf("unsupported opcode 0x%02x (%s)", e.Opcode, e.Feature)
	}
	return fmt.Sprintf("unsupported opcode 0x%02x", e.Opcode)
}

// opcodeFeature names the proposal an unsupported opcode belongs to.
func opcodeFeature(op byte) string {
	switch {
	case op >= 0x06 && op <= 0x0A, op == 0x1F:
		return "exception handling"
	case op == 0x12 || op == 0x13:
		return "tail calls"
	case op == 0x14 || op == 0x15:
		return "typed function references"
	case op == 0x25 || op == 0x26:
		return "reference types"
	case op >= 0xD0 && op <= 0xD6:
		return "reference types"
	case op == OpPrefixGC:
		return "garbage collection"
	case op == OpPrefixSIMD:
		return "SIMD"
	case op == OpPrefixAtomic:
		return "threads"
	}
	return ""
}

// GetCallTarget returns the call target if this is a call instruction
func (i Instruction) GetCallTarget() (uint32, bool) {
	if i.Opcode == OpCall {
		if imm, ok := i.Imm.(CallImm); ok {
			return imm.FuncIdx, true
		}
	}
	return 0, false
}

// IsIndirectCall returns true if this is a call_indirect instruction
func (i Instruction) IsIndirectCall() bool {
	return i.Opcode == OpCallIndirect
}

// DecodeInstructions decodes a sequence of instructions from raw bytes.
// Operators outside the accepted subset return *UnsupportedOpcodeError.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := bytes.NewReader(code)
	// Pre-allocate based on estimation: roughly 2 bytes per instruction on average
	instrs := make([]Instruction, 0, len(code)/2)

	for r.Len() > 0 {
		op, err := r.ReadByte()
		if err != nil {
			break
		}

		instr := Instruction{Opcode: op}

		switch op {
		case OpBlock, OpLoop, OpIf:
			bt, err := ReadLEB128s(r)
			if err != nil {
				return nil, err
			}
			instr.Imm = BlockImm{Type: bt}

		case OpBr, OpBrIf:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			instr.Imm = BranchImm{LabelIdx: idx}

		case OpBrTable:
			count, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			labels := make([]uint32, count)
			for i := uint32(0); i < count; i++ {
				labels[i], err = ReadLEB128u(r)
				if err != nil {
					return nil, err
				}
			}
			def, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			instr.Imm = BrTableImm{Labels: labels, Default: def}

		case OpCall:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			instr.Imm = CallImm{FuncIdx: idx}

		case OpCallIndirect:
			typeIdx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			tableIdx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			instr.Imm = CallIndirectImm{TypeIdx: typeIdx, TableIdx: tableIdx}

		case OpLocalGet, OpLocalSet, OpLocalTee:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			instr.Imm = LocalImm{LocalIdx: idx}

		case OpGlobalGet, OpGlobalSet:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			instr.Imm = GlobalImm{GlobalIdx: idx}

		case OpSelectType:
			count, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			types := make([]ValType, count)
			for i := uint32(0); i < count; i++ {
				b, err := r.ReadByte()
				if err != nil {
					return nil, err
				}
				vt := ValType(b)
				if !vt.IsNumeric() {
					return nil, &UnsupportedOpcodeError{Opcode: op, Feature: "reference types"}
				}
				types[i] = vt
			}
			instr.Imm = SelectTypeImm{Types: types}

		case OpI32Const:
			v, err := ReadLEB128s(r)
			if err != nil {
				return nil, err
			}
			instr.Imm = I32Imm{Value: v}

		case OpI64Const:
			v, err := ReadLEB128s64(r)
			if err != nil {
				return nil, err
			}
			instr.Imm = I64Imm{Value: v}

		case OpF32Const:
			v, err := ReadFloat32(r)
			if err != nil {
				return nil, err
			}
			instr.Imm = F32Imm{Value: v}

		case OpF64Const:
			v, err := ReadFloat64(r)
			if err != nil {
				return nil, err
			}
			instr.Imm = F64Imm{Value: v}

		case OpMemorySize, OpMemoryGrow:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			instr.Imm = MemoryIdxImm{MemIdx: idx}

		case OpPrefixMisc:
			sub, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			imm := MiscImm{SubOpcode: sub}
			switch sub {
			case MiscI32TruncSatF32S, MiscI32TruncSatF32U, MiscI32TruncSatF64S, MiscI32TruncSatF64U,
				MiscI64TruncSatF32S, MiscI64TruncSatF32U, MiscI64TruncSatF64S, MiscI64TruncSatF64U:
				// no operands
			case MiscMemoryInit, MiscTableInit:
				// segment index, then memory/table index
				a, err := ReadLEB128u(r)
				if err != nil {
					return nil, err
				}
				b, err := ReadLEB128u(r)
				if err != nil {
					return nil, err
				}
				imm.Operands = []uint32{a, b}
			case MiscDataDrop, MiscElemDrop, MiscMemoryFill:
				a, err := ReadLEB128u(r)
				if err != nil {
					return nil, err
				}
				imm.Operands = []uint32{a}
			case MiscMemoryCopy:
				a, err := ReadLEB128u(r)
				if err != nil {
					return nil, err
				}
				b, err := ReadLEB128u(r)
				if err != nil {
					return nil, err
				}
				imm.Operands = []uint32{a, b}
			default:
				return nil, &UnsupportedOpcodeError{Opcode: op, Sub: sub, Feature: "bulk table operations"}
			}
			instr.Imm = imm

		default:
			switch {
			case op >= OpI32Load && op <= OpI64Store32:
				align, err := ReadLEB128u(r)
				if err != nil {
					return nil, err
				}
				offset, err := ReadLEB128u(r)
				if err != nil {
					return nil, err
				}
				instr.Imm = MemoryImm{Align: align, Offset: offset}

			case op == OpUnreachable, op == OpNop, op == OpElse, op == OpEnd,
				op == OpReturn, op == OpDrop, op == OpSelect,
				op >= OpI32Eqz && op <= OpI64Extend32S:
				// no immediates

			default:
				return nil, &UnsupportedOpcodeError{Opcode: op, Feature: opcodeFeature(op)}
			}
		}

		instrs = append(instrs, instr)
	}

	return instrs, nil
}

// EncodeInstructions encodes a sequence of instructions to raw bytes
func EncodeInstructions(instrs []Instruction) []byte {
	var buf bytes.Buffer

	for _, instr := range instrs {
		buf.WriteByte(instr.Opcode)

		switch imm := instr.Imm.(type) {
		case BlockImm:
			WriteLEB128s(&buf, imm.Type)
		case BranchImm:
			WriteLEB128u(&buf, imm.LabelIdx)
		case BrTableImm:
			WriteLEB128u(&buf, uint32(len(imm.Labels)))
			for _, l := range imm.Labels {
				WriteLEB128u(&buf, l)
			}
			WriteLEB128u(&buf, imm.Default)
		case CallImm:
			WriteLEB128u(&buf, imm.FuncIdx)
		case CallIndirectImm:
			WriteLEB128u(&buf, imm.TypeIdx)
			WriteLEB128u(&buf, imm.TableIdx)
		case LocalImm:
			WriteLEB128u(&buf, imm.LocalIdx)
		case GlobalImm:
			WriteLEB128u(&buf, imm.GlobalIdx)
		case MemoryImm:
			WriteLEB128u(&buf, imm.Align)
			WriteLEB128u(&buf, imm.Offset)
		case MemoryIdxImm:
			WriteLEB128u(&buf, imm.MemIdx)
		case I32Imm:
			WriteLEB128s(&buf, imm.Value)
		case I64Imm:
			WriteLEB128s64(&buf, imm.Value)
		case F32Imm:
			WriteFloat32(&buf, imm.Value)
		case F64Imm:
			WriteFloat64(&buf, imm.Value)
		case SelectTypeImm:
			WriteLEB128u(&buf, uint32(len(imm.Types)))
			for _, t := range imm.Types {
				buf.WriteByte(byte(t))
			}
		case MiscImm:
			WriteLEB128u(&buf, imm.SubOpcode)
			for _, v := range imm.Operands {
				WriteLEB128u(&buf, v)
			}
		}
	}

	return buf.Bytes()
}
