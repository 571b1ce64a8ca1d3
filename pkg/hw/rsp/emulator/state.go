// Package emulator provides a software model of the vector coprocessor: a scalar MIPS-like
// core with branch delay slots, the COP0 system control unit (DMA, status, semaphore and display
// pipeline registers) and a subset of the COP2 vector unit.
package emulator

import (
	"encoding/binary"
	"fmt"

	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
)

const (
	dmemMask = rsp.DMEMSize - 1
	imemMask = rsp.IMEMSize - 1

	// 48 bit accumulator lanes
	accumulatorMask = (uint64(1) << 48) - 1

	// DefaultRDRAMSize is the size of the host memory reachable by DMA (8MB)
	DefaultRDRAMSize = 8 << 20
)

// CPUState represents the complete architectural state of the coprocessor
type CPUState struct {
	// General purpose registers. GPR[0] always reads as zero
	GPR [rsp.NumGPRs]uint32
	// Program counter (byte address within IMEM)
	PC uint32

	// Vector registers, eight 16 bit lanes each
	VPR [rsp.NumVPRs][rsp.VectorLanes]uint16
	// Vector accumulator, one 48 bit value per lane
	Acc [rsp.VectorLanes]uint64
	// Vector flags
	VCO uint16
	VCC uint16
	VCE uint8

	// SP_STATUS read value
	Status    uint32
	Semaphore uint32

	// DMA registers
	DMAMemAddr  uint32
	DMADRAMAddr uint32
	DMAReadLen  uint32
	DMAWriteLen uint32

	// Display pipeline registers
	DPStart    uint32
	DPEnd      uint32
	DPCurrent  uint32
	DPStatus   uint32
	DPClock    uint32
	DPBufBusy  uint32
	DPPipeBusy uint32
	DPTMemBusy uint32

	DMEM [rsp.DMEMSize]byte
	IMEM [rsp.IMEMSize]byte

	// Host memory reachable through DMA
	RDRAM []byte

	// Delay slot bookkeeping: a taken branch redirects the PC after the next instruction
	branchPending bool
	branchTarget  uint32

	// Executed instructions since reset
	Cycles uint64
	// Executed encodings the core does not implement (treated as no-ops)
	Unimplemented uint64
}

// NewCPUState creates a halted coprocessor state with the given amount of host memory
func NewCPUState(rdramSize int) *CPUState {
	return &CPUState{
		Status: rsp.StatusHalted,
		RDRAM:  make([]byte, rdramSize),
	}
}

// Halted reports whether the core is stopped
func (s *CPUState) Halted() bool {
	return s.Status&rsp.StatusHalted != 0
}

// ReadDMEM32 reads a big-endian word from data memory, wrapping around its end
func (s *CPUState) ReadDMEM32(addr uint32) uint32 {
	return uint32(s.DMEM[addr&dmemMask])<<24 |
		uint32(s.DMEM[(addr+1)&dmemMask])<<16 |
		uint32(s.DMEM[(addr+2)&dmemMask])<<8 |
		uint32(s.DMEM[(addr+3)&dmemMask])
}

// WriteDMEM32 writes a big-endian word into data memory, wrapping around its end
func (s *CPUState) WriteDMEM32(addr uint32, value uint32) {
	s.DMEM[addr&dmemMask] = byte(value >> 24)
	s.DMEM[(addr+1)&dmemMask] = byte(value >> 16)
	s.DMEM[(addr+2)&dmemMask] = byte(value >> 8)
	s.DMEM[(addr+3)&dmemMask] = byte(value)
}

func (s *CPUState) ReadDMEM16(addr uint32) uint16 {
	return uint16(s.DMEM[addr&dmemMask])<<8 | uint16(s.DMEM[(addr+1)&dmemMask])
}

func (s *CPUState) WriteDMEM16(addr uint32, value uint16) {
	s.DMEM[addr&dmemMask] = byte(value >> 8)
	s.DMEM[(addr+1)&dmemMask] = byte(value)
}

// FetchInstruction reads the instruction word at addr. Instruction fetch ignores the low two bits
func (s *CPUState) FetchInstruction(addr uint32) uint32 {
	return binary.BigEndian.Uint32(s.IMEM[addr&imemMask&^3:])
}

// setGPR writes a general purpose register, discarding writes to GPR[0]
func (s *CPUState) setGPR(index uint32, value uint32) {
	if index != 0 {
		s.GPR[index] = value
	}
}

// vprByte returns byte i (0-15, big-endian lane order) of a vector register
func (s *CPUState) vprByte(reg uint32, i uint32) byte {
	lane := s.VPR[reg][(i&15)/2]
	if i&1 == 0 {
		return byte(lane >> 8)
	}
	return byte(lane)
}

func (s *CPUState) setVPRByte(reg uint32, i uint32, value byte) {
	lane := &s.VPR[reg][(i&15)/2]
	if i&1 == 0 {
		*lane = (*lane & 0x00ff) | uint16(value)<<8
	} else {
		*lane = (*lane & 0xff00) | uint16(value)
	}
}

// accumulatorSlice extracts one 16 bit slice of an accumulator lane
func (s *CPUState) accumulatorSlice(lane int, slice rsp.AccumulatorSlice) uint16 {
	switch slice {
	case rsp.AccumulatorHigh:
		return uint16(s.Acc[lane] >> 32)
	case rsp.AccumulatorMid:
		return uint16(s.Acc[lane] >> 16)
	default:
		return uint16(s.Acc[lane])
	}
}

// rdramRange validates a host memory range
func (s *CPUState) rdramRange(address uint32, size int) error {
	if uint64(address)+uint64(size) > uint64(len(s.RDRAM)) {
		return fmt.Errorf("%w: rdram [0x%08x, 0x%08x) exceeds %d bytes", rsp.ErrOutOfRange, address, uint64(address)+uint64(size), len(s.RDRAM))
	}

	return nil
}

// Serialize writes a state space in snapshot layout into dst, starting at offset within the space
func (s *CPUState) Serialize(space rsp.Space, offset uint32, dst []byte) error {
	if uint64(offset)+uint64(len(dst)) > uint64(space.Size()) {
		return fmt.Errorf("%w: %v [%d, %d) exceeds %d bytes", rsp.ErrOutOfRange, space, offset, int(offset)+len(dst), space.Size())
	}

	var full []byte

	switch space {
	case rsp.SpaceGPR:
		full = make([]byte, rsp.GPRBytes)
		for i, value := range s.GPR {
			binary.BigEndian.PutUint32(full[i*4:], value)
		}
	case rsp.SpaceVPR:
		full = make([]byte, rsp.VPRBytes)
		for r := range s.VPR {
			for lane, value := range s.VPR[r] {
				binary.BigEndian.PutUint16(full[(r*rsp.VectorLanes+lane)*2:], value)
			}
		}
	case rsp.SpaceAccumulator:
		full = make([]byte, rsp.AccumulatorBytes)
		for slice := rsp.AccumulatorHigh; slice <= rsp.AccumulatorLow; slice++ {
			for lane := 0; lane < rsp.VectorLanes; lane++ {
				binary.BigEndian.PutUint16(full[(int(slice)*rsp.VectorLanes+lane)*2:], s.accumulatorSlice(lane, slice))
			}
		}
	case rsp.SpaceCop0:
		full = make([]byte, rsp.Cop0Bytes)
		for r := rsp.Cop0Register(0); r < rsp.NumCop0Registers; r++ {
			binary.BigEndian.PutUint32(full[int(r)*4:], s.peekCop0(r))
		}
	case rsp.SpaceCop2:
		full = make([]byte, rsp.Cop2Bytes)
		binary.BigEndian.PutUint32(full[0:], uint32(s.VCO))
		binary.BigEndian.PutUint32(full[4:], uint32(s.VCC))
		binary.BigEndian.PutUint32(full[8:], uint32(s.VCE))
	case rsp.SpacePC:
		full = make([]byte, rsp.PCBytes)
		binary.BigEndian.PutUint32(full, s.PC)
	case rsp.SpaceDMEM:
		full = s.DMEM[:]
	case rsp.SpaceIMEM:
		full = s.IMEM[:]
	default:
		return fmt.Errorf("%w: %v", rsp.ErrUnknownSpace, space)
	}

	copy(dst, full[offset:])
	return nil
}
