package harness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
	"github.com/Manu343726/rspdiff/pkg/utils"
)

// DefaultPollInterval is how often WaitForTerminal samples SP_STATUS
const DefaultPollInterval = time.Millisecond

// TerminalStatus is the outcome of waiting for a coprocessor job
type TerminalStatus int

const (
	// Still running, not a terminal condition
	StatusRunning TerminalStatus = iota
	// Microcode raised the pass signal
	StatusPass
	// Microcode raised the fail signal
	StatusFail
	// Microcode executed BREAK
	StatusBroke
	// Coprocessor halted without BREAK
	StatusHalted
	// No terminal condition before the deadline
	StatusTimedOut
)

var terminalStatusNames = map[TerminalStatus]string{
	StatusRunning:  "running",
	StatusPass:     "pass",
	StatusFail:     "fail",
	StatusBroke:    "broke",
	StatusHalted:   "halted",
	StatusTimedOut: "timed-out",
}

func (s TerminalStatus) String() string {
	if name, ok := terminalStatusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("TerminalStatus(%d)", int(s))
}

func (s TerminalStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TerminalStatus) UnmarshalText(text []byte) error {
	for status, name := range terminalStatusNames {
		if name == strings.ToLower(string(text)) {
			*s = status
			return nil
		}
	}

	return fmt.Errorf("unknown terminal status '%s'", string(text))
}

// ClassifyStatus maps an SP_STATUS value to a terminal status.
// Signals take priority over the halt bits: pass, fail, broke, halted.
func ClassifyStatus(status uint32) TerminalStatus {
	switch {
	case status&rsp.StatusPassSignal != 0:
		return StatusPass
	case status&rsp.StatusFailSignal != 0:
		return StatusFail
	case status&rsp.StatusBroke != 0:
		return StatusBroke
	case status&rsp.StatusHalted != 0:
		return StatusHalted
	default:
		return StatusRunning
	}
}

// WaitResult is the tagged result of a bounded wait
type WaitResult struct {
	Status TerminalStatus
	// SP_STATUS at the last poll
	Raw     uint32
	Elapsed time.Duration
}

func (r WaitResult) TimedOut() bool {
	return r.Status == StatusTimedOut
}

// Executor starts coprocessor jobs and waits for them with a bounded timeout
type Executor struct {
	dev          rsp.Coprocessor
	pollInterval time.Duration
}

func NewExecutor(dev rsp.Coprocessor, pollInterval time.Duration) *Executor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Executor{
		dev:          dev,
		pollInterval: pollInterval,
	}
}

// Start runs a published code image asynchronously
func (e *Executor) Start(image *CodeImage) error {
	if image.Dirty() {
		return ErrUnpublishedImage
	}

	return e.dev.RunAsync()
}

// WaitForTerminal polls SP_STATUS until it reports a terminal condition or the timeout expires.
// A timeout is a result, not an error. The only error is context cancellation.
func (e *Executor) WaitForTerminal(ctx context.Context, timeout time.Duration) (WaitResult, error) {
	start := time.Now()
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		raw := e.dev.Status()
		elapsed := time.Since(start)

		if status := ClassifyStatus(raw); status != StatusRunning {
			return WaitResult{Status: status, Raw: raw, Elapsed: elapsed}, nil
		}

		if elapsed >= timeout {
			return WaitResult{Status: StatusTimedOut, Raw: raw, Elapsed: elapsed}, nil
		}

		select {
		case <-ctx.Done():
			return WaitResult{Status: StatusRunning, Raw: raw, Elapsed: elapsed}, utils.MakeError(ctx.Err(), "waiting for coprocessor")
		case <-ticker.C:
		}
	}
}

// Capture reads the whole architectural state into snapshot, one block read per state space
func Capture(dev rsp.Coprocessor, snapshot *rsp.Snapshot) error {
	for _, space := range rsp.Spaces {
		if err := dev.ReadBlock(space, 0, snapshot.Space(space)); err != nil {
			return utils.MakeError(err, "capturing %v", space)
		}
	}

	return nil
}
