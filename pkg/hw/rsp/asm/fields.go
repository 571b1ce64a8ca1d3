package asm

import (
	"fmt"

	"github.com/Manu343726/rspdiff/pkg/utils"
)

// Field describes a bit range of an instruction word
type Field struct {
	Name  string
	Bit   int
	Width int
}

// Layout returns the field breakdown the coprocessor decoder uses for an encoding
func Layout(word uint32) []Field {
	opcode := word >> OpcodeBit

	switch {
	case opcode == OpSpecial:
		return []Field{{"opcode", OpcodeBit, OpcodeWidth}, {"rs", RsBit, RsWidth}, {"rt", RtBit, RtWidth}, {"rd", RdBit, RdWidth}, {"sa", SaBit, SaWidth}, {"funct", FunctBit, FunctWidth}}
	case opcode == OpJ || opcode == OpJal:
		return []Field{{"opcode", OpcodeBit, OpcodeWidth}, {"target", TargetBit, TargetWidth}}
	case opcode == OpCop0 && word&(1<<Cop0CoBit) != 0:
		return []Field{{"opcode", OpcodeBit, OpcodeWidth}, {"co", Cop0CoBit, 1}, {"arg", Cop0ArgBit, Cop0ArgWidth}, {"function", Cop0FunctionBit, Cop0FunctionWidth}}
	case opcode == OpCop2 && word&(1<<25) != 0:
		return []Field{{"opcode", OpcodeBit, OpcodeWidth}, {"co", 25, 1}, {"e", VecElementBit, VecElementWidth}, {"vt", VecVtBit, 5}, {"vs", VecVsBit, 5}, {"vd", VecVdBit, 5}, {"funct", FunctBit, FunctWidth}}
	case opcode == OpCop0 || opcode == OpCop2:
		return []Field{{"opcode", OpcodeBit, OpcodeWidth}, {"move", RsBit, RsWidth}, {"rt", RtBit, RtWidth}, {"rd", RdBit, RdWidth}, {"e", VecMoveElementBit, VecMoveElementWidth}, {"(zero)", 0, 7}}
	case opcode == OpLwc2 || opcode == OpSwc2:
		return []Field{{"opcode", OpcodeBit, OpcodeWidth}, {"base", RsBit, RsWidth}, {"vt", RtBit, RtWidth}, {"op", RdBit, RdWidth}, {"e", VecMoveElementBit, VecMoveElementWidth}, {"offset", VecOffsetBit, VecOffsetWidth}}
	default:
		return []Field{{"opcode", OpcodeBit, OpcodeWidth}, {"rs", RsBit, RsWidth}, {"rt", RtBit, RtWidth}, {"imm", ImmBit, ImmWidth}}
	}
}

// PrettyPrint draws the fields of an encoding, marking the fields touched by mask with '*'
func PrettyPrint(word uint32, mask uint32, leftpad int) (string, error) {
	view := utils.CreateBitView(&word)
	frame := make([]utils.AsciiFrameField, 0, 8)

	for _, f := range Layout(word) {
		name := fmt.Sprintf("%v=%v", f.Name, utils.FormatUintHex(uint64(view.Read(f.Bit, f.Width)), (f.Width+3)/4))
		if mask&utils.FieldMask[uint32](f.Bit, f.Width) != 0 {
			name += "*"
		}

		frame = append(frame, utils.AsciiFrameField{Name: name, Begin: f.Bit, Width: f.Width})
	}

	return utils.AsciiFrame(frame, 32, "bits", utils.AsciiFrameUnitLayout_RightToLeft, leftpad)
}
