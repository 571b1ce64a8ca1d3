package emulator

import (
	"math"

	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp/asm"
	"github.com/Manu343726/rspdiff/pkg/utils"
)

// elementLane returns the vt lane read by lane i under element selector e
func elementLane(e uint32, i int) int {
	switch {
	case e < 2:
		return i
	case e < 4:
		return (i &^ 1) | int(e&1)
	case e < 8:
		return (i &^ 3) | int(e&3)
	default:
		return int(e & 7)
	}
}

// signedAccumulator returns a 48 bit accumulator lane as a signed value
func signedAccumulator(acc uint64) int64 {
	return int64(acc<<16) >> 16
}

func clampSigned(value int64) uint16 {
	switch {
	case value < math.MinInt16:
		return 0x8000
	case value > math.MaxInt16:
		return 0x7fff
	default:
		return uint16(value)
	}
}

// clampAccumulatorHigh clamps bits 47..16 of an accumulator lane to 16 signed bits
func clampAccumulatorHigh(acc uint64) uint16 {
	return clampSigned(signedAccumulator(acc) >> 16)
}

// clampAccumulatorLow returns the low slice, saturated to 0 or 0xffff when bits 47..16
// do not fit in 16 signed bits
func clampAccumulatorLow(acc uint64) uint16 {
	high := signedAccumulator(acc) >> 16

	switch {
	case high < math.MinInt16:
		return 0
	case high > math.MaxInt16:
		return 0xffff
	default:
		return uint16(acc)
	}
}

func (s *CPUState) setAccumulatorLow(lane int, value uint16) {
	s.Acc[lane] = (s.Acc[lane] &^ 0xffff) | uint64(value)
}

func (i *Interpreter) executeCop2(in instruction) bool {
	s := i.state

	if uint32(in)&(1<<25) != 0 {
		return i.executeVector(in)
	}

	element := uint32(in) >> asm.VecMoveElementBit & 0xf

	switch in.rs() {
	case asm.CopMf:
		hi := s.vprByte(in.rd(), element)
		lo := s.vprByte(in.rd(), element+1)
		s.setGPR(in.rt(), uint32(int32(int16(uint16(hi)<<8|uint16(lo)))))
	case asm.CopMt:
		value := s.GPR[in.rt()]
		s.setVPRByte(in.rd(), element, byte(value>>8))
		if element < 15 {
			s.setVPRByte(in.rd(), element+1, byte(value))
		}
	case asm.CopCf:
		switch rsp.Cop2ControlRegister(in.rd() & 3) {
		case rsp.Cop2VCO:
			s.setGPR(in.rt(), uint32(int32(int16(s.VCO))))
		case rsp.Cop2VCC:
			s.setGPR(in.rt(), uint32(int32(int16(s.VCC))))
		default:
			s.setGPR(in.rt(), uint32(s.VCE))
		}
	case asm.CopCt:
		value := s.GPR[in.rt()]
		switch rsp.Cop2ControlRegister(in.rd() & 3) {
		case rsp.Cop2VCO:
			s.VCO = uint16(value)
		case rsp.Cop2VCC:
			s.VCC = uint16(value)
		default:
			s.VCE = uint8(value)
		}
	default:
		return false
	}

	return true
}

func (i *Interpreter) vectorAddress(in instruction) (address uint32, element uint32) {
	offset := uint32(utils.SignExtend(uint32(in)&0x7f, asm.VecOffsetWidth))
	return i.state.GPR[in.rs()] + offset*16, uint32(in) >> asm.VecMoveElementBit & 0xf
}

// executeVectorLoad implements LQV: bytes from the address up to the end of its 16 byte
// line are loaded into vt starting at the element byte
func (i *Interpreter) executeVectorLoad(in instruction) bool {
	if in.rd() != asm.VecLoadStoreQuad {
		return false
	}

	s := i.state
	address, element := i.vectorAddress(in)
	end := (address &^ 15) + 16

	for a, e := address, element; a < end && e < 16; a, e = a+1, e+1 {
		s.setVPRByte(in.rt(), e, s.DMEM[a&dmemMask])
	}

	return true
}

// executeVectorStore implements SQV, the inverse of LQV. Register bytes wrap around
func (i *Interpreter) executeVectorStore(in instruction) bool {
	if in.rd() != asm.VecLoadStoreQuad {
		return false
	}

	s := i.state
	address, element := i.vectorAddress(in)
	end := (address &^ 15) + 16

	for a, e := address, element; a < end; a, e = a+1, e+1 {
		s.DMEM[a&dmemMask] = s.vprByte(in.rt(), e&15)
	}

	return true
}

func (i *Interpreter) executeVector(in instruction) bool {
	s := i.state
	e := uint32(in) >> asm.VecElementBit & 0xf
	vt := uint32(in) >> asm.VecVtBit & 0x1f
	vs := uint32(in) >> asm.VecVsBit & 0x1f
	vd := uint32(in) >> asm.VecVdBit & 0x1f

	var source, operand, result [rsp.VectorLanes]uint16
	source = s.VPR[vs]
	for lane := range operand {
		operand[lane] = s.VPR[vt][elementLane(e, lane)]
	}

	switch in.funct() {
	case asm.VfMudn, asm.VfMadn:
		for lane := range result {
			product := uint64(int64(source[lane]) * int64(int16(operand[lane])))
			if in.funct() == asm.VfMudn {
				s.Acc[lane] = product & accumulatorMask
			} else {
				s.Acc[lane] = (s.Acc[lane] + product) & accumulatorMask
			}
			result[lane] = clampAccumulatorLow(s.Acc[lane])
		}
	case asm.VfMudh, asm.VfMadh:
		for lane := range result {
			product := uint64(int64(int16(source[lane]))*int64(int16(operand[lane]))) << 16
			if in.funct() == asm.VfMudh {
				s.Acc[lane] = product & accumulatorMask
			} else {
				s.Acc[lane] = (s.Acc[lane] + product) & accumulatorMask
			}
			result[lane] = clampAccumulatorHigh(s.Acc[lane])
		}
	case asm.VfAdd, asm.VfSub:
		for lane := range result {
			carry := int64(s.VCO >> lane & 1)
			var sum int64
			if in.funct() == asm.VfAdd {
				sum = int64(int16(source[lane])) + int64(int16(operand[lane])) + carry
			} else {
				sum = int64(int16(source[lane])) - int64(int16(operand[lane])) - carry
			}
			s.setAccumulatorLow(lane, uint16(sum))
			result[lane] = clampSigned(sum)
		}
		s.VCO = 0
	case asm.VfAnd, asm.VfNand, asm.VfOr, asm.VfNor, asm.VfXor, asm.VfNxor:
		for lane := range result {
			a, b := source[lane], operand[lane]
			switch in.funct() {
			case asm.VfAnd:
				result[lane] = a & b
			case asm.VfNand:
				result[lane] = ^(a & b)
			case asm.VfOr:
				result[lane] = a | b
			case asm.VfNor:
				result[lane] = ^(a | b)
			case asm.VfXor:
				result[lane] = a ^ b
			default:
				result[lane] = ^(a ^ b)
			}
			s.setAccumulatorLow(lane, result[lane])
		}
	case asm.VfSar:
		// Elements 8, 9 and 10 select the high, middle and low slices
		if e >= 8 && e <= 10 {
			slice := rsp.AccumulatorSlice(e - 8)
			for lane := range result {
				result[lane] = s.accumulatorSlice(lane, slice)
			}
		}
	case asm.VfNop:
		return true
	default:
		return false
	}

	s.VPR[vd] = result
	return true
}
