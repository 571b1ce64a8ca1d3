// Package rsp describes the architectural state of the vector coprocessor under test:
// its register map, status bits and the byte layout of state snapshots.
package rsp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Manu343726/rspdiff/pkg/utils"
)

var (
	ErrUnknownRegister = errors.New("unknown register")
)

const (
	NumGPRs                = 32
	NumVPRs                = 32
	VectorLanes            = 8
	NumAccumulatorSlices   = 3
	NumCop0Registers       = 16
	NumCop2ControlRegister = 3

	DMEMSize = 0x1000
	IMEMSize = 0x1000
)

// Cop0Register indexes the coprocessor control registers as seen by MFC0/MTC0
type Cop0Register int

const (
	Cop0DMASPAddr Cop0Register = iota
	Cop0DMARAMAddr
	Cop0DMARead
	Cop0DMAWrite
	Cop0SPStatus
	Cop0DMAFull
	Cop0DMABusy
	Cop0Semaphore
	Cop0DPStart
	Cop0DPEnd
	Cop0DPCurrent
	Cop0DPStatus
	Cop0DPClock
	Cop0DPBusy
	Cop0DPPipeBusy
	Cop0DPTMemBusy
)

var cop0Names = [NumCop0Registers]string{
	"DMA_SPADDR",
	"DMA_RAMADDR",
	"DMA_READ",
	"DMA_WRITE",
	"SP_STATUS",
	"DMA_FULL",
	"DMA_BUSY",
	"SEMAPHORE",
	"DP_START",
	"DP_END",
	"DP_CURRENT",
	"DP_STATUS",
	"DP_CLOCK",
	"DP_BUSY",
	"DP_PIPE_BUSY",
	"DP_TMEM_BUSY",
}

func (r Cop0Register) String() string {
	if r < 0 || int(r) >= NumCop0Registers {
		return fmt.Sprintf("COP0_%d", int(r))
	}

	return cop0Names[r]
}

// Cop0RegisterByName parses a COP0 register name. The "COP0_" prefix is optional and case is ignored
func Cop0RegisterByName(name string) (Cop0Register, error) {
	normalized := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "COP0_")

	for i, candidate := range cop0Names {
		if candidate == normalized {
			return Cop0Register(i), nil
		}
	}

	return 0, utils.MakeError(ErrUnknownRegister, "'%v' is not a COP0 register", name)
}

// Cop2ControlRegister indexes the vector unit flag registers as seen by CFC2/CTC2
type Cop2ControlRegister int

const (
	Cop2VCO Cop2ControlRegister = iota
	Cop2VCC
	Cop2VCE
)

var cop2Names = [NumCop2ControlRegister]string{"VCO", "VCC", "VCE"}

func (r Cop2ControlRegister) String() string {
	if r < 0 || int(r) >= NumCop2ControlRegister {
		return fmt.Sprintf("COP2_%d", int(r))
	}

	return cop2Names[r]
}

// AccumulatorSlice selects one 16 bit slice of the 48 bit vector accumulator lanes
type AccumulatorSlice int

const (
	AccumulatorHigh AccumulatorSlice = iota
	AccumulatorMid
	AccumulatorLow
)

var accumulatorNames = [NumAccumulatorSlices]string{"hi", "mid", "lo"}

func (s AccumulatorSlice) String() string {
	if s < 0 || int(s) >= NumAccumulatorSlices {
		return fmt.Sprintf("acc%d", int(s))
	}

	return accumulatorNames[s]
}
