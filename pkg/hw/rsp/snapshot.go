package rsp

import (
	"encoding/binary"
	"unsafe"
)

// Snapshot byte layout. Every value is stored big-endian, the coprocessor's native byte order.
const (
	GPROffset = 0
	GPRBytes  = NumGPRs * 4

	VPROffset = GPROffset + GPRBytes
	VPRBytes  = NumVPRs * VectorLanes * 2

	AccumulatorOffset = VPROffset + VPRBytes
	AccumulatorBytes  = NumAccumulatorSlices * VectorLanes * 2

	Cop0Offset = AccumulatorOffset + AccumulatorBytes
	Cop0Bytes  = NumCop0Registers * 4

	Cop2Offset = Cop0Offset + Cop0Bytes
	Cop2Bytes  = NumCop2ControlRegister * 4

	PCOffset = Cop2Offset + Cop2Bytes
	PCBytes  = 4

	DMEMOffset = PCOffset + PCBytes
	IMEMOffset = DMEMOffset + DMEMSize

	SnapshotSize = IMEMOffset + IMEMSize

	// Bytes covered by side-effect detection: everything before the program counter
	RegisterRegionSize = PCOffset
)

var byteOrder = binary.BigEndian

// Snapshot is a byte-exact image of the coprocessor architectural state.
// The backing storage is 8-byte aligned so DMEM and IMEM can be filled with 64 bit block reads.
type Snapshot struct {
	words [SnapshotSize / 8]uint64
}

// Bytes returns the whole snapshot as a byte slice aliasing the snapshot storage
func (s *Snapshot) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&s.words[0])), SnapshotSize)
}

// Space returns the bytes of the snapshot holding the given state space
func (s *Snapshot) Space(space Space) []byte {
	offset := space.SnapshotOffset()
	return s.Bytes()[offset : offset+space.Size()]
}

// Reset zeroes the snapshot
func (s *Snapshot) Reset() {
	clear(s.words[:])
}

// RegisterRegion returns the bytes compared by the diff classifier
func (s *Snapshot) RegisterRegion() []byte {
	return s.Bytes()[:RegisterRegionSize]
}

func (s *Snapshot) word(offset int) uint32 {
	return byteOrder.Uint32(s.Bytes()[offset:])
}

func (s *Snapshot) setWord(offset int, value uint32) {
	byteOrder.PutUint32(s.Bytes()[offset:], value)
}

func (s *Snapshot) GPR(index int) uint32 {
	return s.word(GPROffset + index*4)
}

func (s *Snapshot) SetGPR(index int, value uint32) {
	s.setWord(GPROffset+index*4, value)
}

func (s *Snapshot) VPR(index int) [VectorLanes]uint16 {
	var lanes [VectorLanes]uint16
	base := VPROffset + index*VectorLanes*2

	for i := range lanes {
		lanes[i] = byteOrder.Uint16(s.Bytes()[base+i*2:])
	}

	return lanes
}

func (s *Snapshot) SetVPR(index int, lanes [VectorLanes]uint16) {
	base := VPROffset + index*VectorLanes*2

	for i, lane := range lanes {
		byteOrder.PutUint16(s.Bytes()[base+i*2:], lane)
	}
}

func (s *Snapshot) Accumulator(slice AccumulatorSlice) [VectorLanes]uint16 {
	var lanes [VectorLanes]uint16
	base := AccumulatorOffset + int(slice)*VectorLanes*2

	for i := range lanes {
		lanes[i] = byteOrder.Uint16(s.Bytes()[base+i*2:])
	}

	return lanes
}

func (s *Snapshot) Cop0(r Cop0Register) uint32 {
	return s.word(Cop0Offset + int(r)*4)
}

func (s *Snapshot) SetCop0(r Cop0Register, value uint32) {
	s.setWord(Cop0Offset+int(r)*4, value)
}

func (s *Snapshot) Cop2(r Cop2ControlRegister) uint32 {
	return s.word(Cop2Offset + int(r)*4)
}

func (s *Snapshot) SetCop2(r Cop2ControlRegister, value uint32) {
	s.setWord(Cop2Offset+int(r)*4, value)
}

func (s *Snapshot) PC() uint32 {
	return s.word(PCOffset)
}

func (s *Snapshot) DMEM() []byte {
	return s.Space(SpaceDMEM)
}

func (s *Snapshot) IMEM() []byte {
	return s.Space(SpaceIMEM)
}
