// Package asm encodes coprocessor instructions. It covers the formats used by the harness
// microcode (bootstrap and test images) and by the case tables; it is not a general assembler.
package asm

import "github.com/Manu343726/rspdiff/pkg/utils"

// Major opcodes (bits 31..26)
const (
	OpSpecial = 0x00
	OpRegImm  = 0x01
	OpJ       = 0x02
	OpJal     = 0x03
	OpBeq     = 0x04
	OpBne     = 0x05
	OpBlez    = 0x06
	OpBgtz    = 0x07
	OpAddi    = 0x08
	OpAddiu   = 0x09
	OpSlti    = 0x0a
	OpSltiu   = 0x0b
	OpAndi    = 0x0c
	OpOri     = 0x0d
	OpXori    = 0x0e
	OpLui     = 0x0f
	OpCop0    = 0x10
	OpCop2    = 0x12
	OpLb      = 0x20
	OpLh      = 0x21
	OpLw      = 0x23
	OpLbu     = 0x24
	OpLhu     = 0x25
	OpSb      = 0x28
	OpSh      = 0x29
	OpSw      = 0x2b
	OpLwc2    = 0x32
	OpSwc2    = 0x3a
)

// SPECIAL function codes (bits 5..0)
const (
	FnSll   = 0x00
	FnSrl   = 0x02
	FnSra   = 0x03
	FnSllv  = 0x04
	FnSrlv  = 0x06
	FnSrav  = 0x07
	FnJr    = 0x08
	FnJalr  = 0x09
	FnBreak = 0x0d
	FnAdd   = 0x20
	FnAddu  = 0x21
	FnSub   = 0x22
	FnSubu  = 0x23
	FnAnd   = 0x24
	FnOr    = 0x25
	FnXor   = 0x26
	FnNor   = 0x27
	FnSlt   = 0x2a
	FnSltu  = 0x2b
	FnTne   = 0x36
)

// REGIMM rt codes
const (
	RtBltz   = 0x00
	RtBgez   = 0x01
	RtBltzal = 0x10
	RtBgezal = 0x11
)

// Coprocessor move rs codes
const (
	CopMf = 0x00
	CopCf = 0x02
	CopMt = 0x04
	CopCt = 0x06
)

// LWC2/SWC2 sub-opcodes (rd field)
const (
	VecLoadStoreQuad = 0x04
)

// COP2 vector function codes
const (
	VfMudn = 0x06
	VfMudh = 0x07
	VfMadn = 0x0e
	VfMadh = 0x0f
	VfAdd  = 0x10
	VfSub  = 0x11
	VfSar  = 0x1d
	VfAnd  = 0x28
	VfNand = 0x29
	VfOr   = 0x2a
	VfNor  = 0x2b
	VfXor  = 0x2c
	VfNxor = 0x2d
	VfNop  = 0x37
)

// Field positions
const (
	OpcodeBit   = 26
	OpcodeWidth = 6
	RsBit       = 21
	RsWidth     = 5
	RtBit       = 16
	RtWidth     = 5
	RdBit       = 11
	RdWidth     = 5
	SaBit       = 6
	SaWidth     = 5
	FunctBit    = 0
	FunctWidth  = 6
	ImmBit      = 0
	ImmWidth    = 16
	TargetBit   = 0
	TargetWidth = 26

	// COP0 instructions with CO=1 carry a 6 bit function and a 19 bit argument
	Cop0CoBit         = 25
	Cop0FunctionBit   = 0
	Cop0FunctionWidth = 6
	Cop0ArgBit        = 6
	Cop0ArgWidth      = 19

	// Vector computational instructions
	VecElementBit   = 21
	VecElementWidth = 4
	VecVtBit        = 16
	VecVsBit        = 11
	VecVdBit        = 6

	// Vector loads/stores and moves
	VecMoveElementBit   = 7
	VecMoveElementWidth = 4
	VecOffsetBit        = 0
	VecOffsetWidth      = 7
)

func field(value uint32, bit int, width int) uint32 {
	return (value & utils.AllOnes[uint32](width)) << bit
}

// RType encodes a SPECIAL register instruction
func RType(rs, rt, rd, sa, funct uint32) uint32 {
	return field(OpSpecial, OpcodeBit, OpcodeWidth) |
		field(rs, RsBit, RsWidth) |
		field(rt, RtBit, RtWidth) |
		field(rd, RdBit, RdWidth) |
		field(sa, SaBit, SaWidth) |
		field(funct, FunctBit, FunctWidth)
}

// IType encodes an immediate instruction
func IType(op, rs, rt uint32, imm uint16) uint32 {
	return field(op, OpcodeBit, OpcodeWidth) |
		field(rs, RsBit, RsWidth) |
		field(rt, RtBit, RtWidth) |
		field(uint32(imm), ImmBit, ImmWidth)
}

// JType encodes a jump to an absolute word-aligned instruction address
func JType(op, address uint32) uint32 {
	return field(op, OpcodeBit, OpcodeWidth) | field(address>>2, TargetBit, TargetWidth)
}

func Nop() uint32 { return 0 }

func Addiu(rt, rs uint32, imm int16) uint32 { return IType(OpAddiu, rs, rt, uint16(imm)) }
func Ori(rt, rs uint32, imm uint16) uint32  { return IType(OpOri, rs, rt, imm) }
func Andi(rt, rs uint32, imm uint16) uint32 { return IType(OpAndi, rs, rt, imm) }
func Lui(rt uint32, imm uint16) uint32      { return IType(OpLui, 0, rt, imm) }

// Li loads a 16 bit unsigned immediate, the way assemblers expand "li rt, imm" for small values
func Li(rt uint32, imm uint16) uint32 {
	return Ori(rt, 0, imm)
}

func Lw(rt uint32, offset int16, base uint32) uint32 { return IType(OpLw, base, rt, uint16(offset)) }
func Sw(rt uint32, offset int16, base uint32) uint32 { return IType(OpSw, base, rt, uint16(offset)) }

// Branch offsets are counted in instructions relative to the delay slot
func Beq(rs, rt uint32, offset int16) uint32 { return IType(OpBeq, rs, rt, uint16(offset)) }
func Bne(rs, rt uint32, offset int16) uint32 { return IType(OpBne, rs, rt, uint16(offset)) }
func J(address uint32) uint32                { return JType(OpJ, address) }
func Jr(rs uint32) uint32                    { return RType(rs, 0, 0, 0, FnJr) }

func Break(code uint32) uint32 {
	return field(OpSpecial, OpcodeBit, OpcodeWidth) | field(code, 6, 20) | FnBreak
}

// Tne encodes a trap-if-not-equal, which the coprocessor does not implement
func Tne(rs, rt, code uint32) uint32 {
	return field(OpSpecial, OpcodeBit, OpcodeWidth) | field(rs, RsBit, RsWidth) | field(rt, RtBit, RtWidth) | field(code, 6, 10) | FnTne
}

func Mfc0(rt, rd uint32) uint32 { return copMove(OpCop0, CopMf, rt, rd, 0) }
func Mtc0(rt, rd uint32) uint32 { return copMove(OpCop0, CopMt, rt, rd, 0) }

// Cop0 encodes a COP0 instruction with the CO bit set, a function code and an argument field
func Cop0(function, arg uint32) uint32 {
	return field(OpCop0, OpcodeBit, OpcodeWidth) | 1<<Cop0CoBit |
		field(arg, Cop0ArgBit, Cop0ArgWidth) |
		field(function, Cop0FunctionBit, Cop0FunctionWidth)
}

func Mfc2(rt, vs, element uint32) uint32 { return copMove(OpCop2, CopMf, rt, vs, element) }
func Mtc2(rt, vd, element uint32) uint32 { return copMove(OpCop2, CopMt, rt, vd, element) }
func Cfc2(rt, rd uint32) uint32          { return copMove(OpCop2, CopCf, rt, rd, 0) }
func Ctc2(rt, rd uint32) uint32          { return copMove(OpCop2, CopCt, rt, rd, 0) }

func copMove(op, move, rt, rd, element uint32) uint32 {
	return field(op, OpcodeBit, OpcodeWidth) |
		field(move, RsBit, RsWidth) |
		field(rt, RtBit, RtWidth) |
		field(rd, RdBit, RdWidth) |
		field(element, VecMoveElementBit, VecMoveElementWidth)
}

// Lqv loads a quad (16 bytes) from base+offset*16 into vt starting at byte element
func Lqv(vt, element uint32, offset int8, base uint32) uint32 {
	return vecLoadStore(OpLwc2, vt, element, offset, base)
}

// Sqv stores vt starting at byte element into base+offset*16
func Sqv(vt, element uint32, offset int8, base uint32) uint32 {
	return vecLoadStore(OpSwc2, vt, element, offset, base)
}

func vecLoadStore(op, vt, element uint32, offset int8, base uint32) uint32 {
	return field(op, OpcodeBit, OpcodeWidth) |
		field(base, RsBit, RsWidth) |
		field(vt, RtBit, RtWidth) |
		field(VecLoadStoreQuad, RdBit, RdWidth) |
		field(element, VecMoveElementBit, VecMoveElementWidth) |
		field(uint32(offset), VecOffsetBit, VecOffsetWidth)
}

// Vector encodes a COP2 computational instruction "vd = vs op vt[element]"
func Vector(funct, vd, vs, vt, element uint32) uint32 {
	return field(OpCop2, OpcodeBit, OpcodeWidth) | 1<<25 |
		field(element, VecElementBit, VecElementWidth) |
		field(vt, VecVtBit, 5) |
		field(vs, VecVsBit, 5) |
		field(vd, VecVdBit, 5) |
		field(funct, FunctBit, FunctWidth)
}
