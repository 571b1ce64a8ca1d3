package rsp

import "strings"

// Bits read from SP_STATUS
const (
	StatusHalted uint32 = 1 << iota
	StatusBroke
	StatusDMABusy
	StatusDMAFull
	StatusIOFull
	StatusSingleStep
	StatusInterruptOnBreak
	StatusSig0
	StatusSig1
	StatusSig2
	StatusSig3
	StatusSig4
	StatusSig5
	StatusSig6
	StatusSig7
)

// Signals used by test microcode to report its own verdict
const (
	StatusPassSignal = StatusSig2
	StatusFailSignal = StatusSig3
)

// Bits written to SP_STATUS
const (
	WStatusClearHalt uint32 = 1 << iota
	WStatusSetHalt
	WStatusClearBroke
	WStatusClearInterrupt
	WStatusSetInterrupt
	WStatusClearSingleStep
	WStatusSetSingleStep
	WStatusClearInterruptOnBreak
	WStatusSetInterruptOnBreak
)

// WStatusClearSignal returns the SP_STATUS write bit that clears signal n (0-7)
func WStatusClearSignal(n int) uint32 {
	return 1 << (9 + 2*n)
}

// WStatusSetSignal returns the SP_STATUS write bit that sets signal n (0-7)
func WStatusSetSignal(n int) uint32 {
	return 1 << (10 + 2*n)
}

// StatusSignal returns the SP_STATUS read bit of signal n (0-7)
func StatusSignal(n int) uint32 {
	return StatusSig0 << n
}

// WStatusClearAllSignals clears sig0..sig7
var WStatusClearAllSignals = func() uint32 {
	var bits uint32
	for i := 0; i < 8; i++ {
		bits |= WStatusClearSignal(i)
	}
	return bits
}()

var statusNames = []string{"halted", "broke", "dma_busy", "dma_full", "io_full", "sstep", "intr_break",
	"sig0", "sig1", "sig2", "sig3", "sig4", "sig5", "sig6", "sig7"}

// FormatStatus returns the names of the bits set in an SP_STATUS value
func FormatStatus(status uint32) string {
	names := make([]string, 0, len(statusNames))

	for i, name := range statusNames {
		if status&(1<<i) != 0 {
			names = append(names, name)
		}
	}

	if len(names) == 0 {
		return "running"
	}

	return strings.Join(names, "|")
}

// ApplyStatusWrite returns the SP_STATUS value resulting from writing w over status.
// A write that both sets and clears the same bit leaves it unchanged.
func ApplyStatusWrite(status uint32, w uint32) uint32 {
	apply := func(clear, set, bit uint32) {
		switch {
		case w&clear != 0 && w&set == 0:
			status &^= bit
		case w&set != 0 && w&clear == 0:
			status |= bit
		}
	}

	apply(WStatusClearHalt, WStatusSetHalt, StatusHalted)
	if w&WStatusClearBroke != 0 {
		status &^= StatusBroke
	}
	apply(WStatusClearSingleStep, WStatusSetSingleStep, StatusSingleStep)
	apply(WStatusClearInterruptOnBreak, WStatusSetInterruptOnBreak, StatusInterruptOnBreak)

	for i := 0; i < 8; i++ {
		apply(WStatusClearSignal(i), WStatusSetSignal(i), StatusSignal(i))
	}

	return status
}
