package rsp

import (
	"errors"
	"fmt"
)

var (
	ErrNotHalted     = errors.New("coprocessor is not halted")
	ErrOutOfRange    = errors.New("access out of range")
	ErrUnknownSpace  = errors.New("unknown state space")
	ErrAlreadyClosed = errors.New("coprocessor closed")
)

// Space identifies a block of coprocessor state readable by the host
type Space int

const (
	SpaceGPR Space = iota
	SpaceVPR
	SpaceAccumulator
	SpaceCop0
	SpaceCop2
	SpacePC
	SpaceDMEM
	SpaceIMEM
)

// Spaces lists every state space in snapshot layout order
var Spaces = []Space{SpaceGPR, SpaceVPR, SpaceAccumulator, SpaceCop0, SpaceCop2, SpacePC, SpaceDMEM, SpaceIMEM}

var spaceLayout = map[Space]struct {
	name   string
	offset int
	size   int
}{
	SpaceGPR:         {"gpr", GPROffset, GPRBytes},
	SpaceVPR:         {"vpr", VPROffset, VPRBytes},
	SpaceAccumulator: {"acc", AccumulatorOffset, AccumulatorBytes},
	SpaceCop0:        {"cop0", Cop0Offset, Cop0Bytes},
	SpaceCop2:        {"cop2", Cop2Offset, Cop2Bytes},
	SpacePC:          {"pc", PCOffset, PCBytes},
	SpaceDMEM:        {"dmem", DMEMOffset, DMEMSize},
	SpaceIMEM:        {"imem", IMEMOffset, IMEMSize},
}

func (s Space) String() string {
	if layout, ok := spaceLayout[s]; ok {
		return layout.name
	}

	return fmt.Sprintf("space(%d)", int(s))
}

// Size in bytes of the space
func (s Space) Size() int {
	return spaceLayout[s].size
}

// SnapshotOffset is the offset of the space within a Snapshot
func (s Space) SnapshotOffset() int {
	return spaceLayout[s].offset
}

// Coprocessor is the host's view of the vector coprocessor.
//
// Implementations are driven by a single host goroutine: the harness never issues
// two operations concurrently. RunAsync is the only operation that leaves work running
// after it returns.
type Coprocessor interface {
	// LoadCode copies code into instruction memory at offset and resets the program counter to offset.
	// A running job is abandoned first.
	LoadCode(code []byte, offset uint32) error
	// WriteRDRAM copies data into host memory visible to the coprocessor DMA engine
	WriteRDRAM(address uint32, data []byte) error
	// WriteStatus performs a host write of SP_STATUS write bits
	WriteStatus(bits uint32) error
	// Status returns the current SP_STATUS value
	Status() uint32
	// RunAsync starts execution at the current program counter and returns immediately
	RunAsync() error
	// Halt stops execution and waits until the coprocessor is halted
	Halt() error
	// ReadBlock reads len(dst) bytes of a state space starting at offset, in native layout.
	// Reads are only consistent when the coprocessor is halted.
	ReadBlock(space Space, offset uint32, dst []byte) error
	// Crash forces a terminal fault, leaving the coprocessor halted and broken
	Crash(reason string) error
	Close() error
}
