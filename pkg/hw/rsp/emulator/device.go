package emulator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
)

var ErrRunning = errors.New("coprocessor job already running")

// StopReason indicates why the last job stopped
type StopReason int

const (
	// No job has run yet, or the current one is still running
	StopNone StopReason = iota
	// Microcode executed BREAK
	StopBreak
	// Microcode or host set the halt bit
	StopHalt
	// Host abandoned the job (Halt, LoadCode or Close)
	StopAbandoned
	// Host forced a terminal fault
	StopCrash
	// Interpreter failure
	StopError
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopBreak:
		return "break"
	case StopHalt:
		return "halt"
	case StopAbandoned:
		return "abandoned"
	case StopCrash:
		return "crash"
	case StopError:
		return "error"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// DefaultSliceSize is the number of instructions a job runs between checks for host requests
const DefaultSliceSize = 256

type job struct {
	stop chan struct{}
	done chan struct{}
}

// Device is a software coprocessor implementing rsp.Coprocessor.
// Jobs run on their own goroutine; every host operation synchronizes with it through a mutex.
type Device struct {
	mu        sync.Mutex
	interp    *Interpreter
	logger    *slog.Logger
	sliceSize int
	job       *job
	lastStop  StopReason
	lastErr   error
	closed    bool
}

var _ rsp.Coprocessor = (*Device)(nil)

type Option func(*Device)

// WithRDRAMSize sets the amount of host memory reachable by DMA
func WithRDRAMSize(size int) Option {
	return func(d *Device) {
		d.interp = NewInterpreter(size)
	}
}

// WithSliceSize sets how many instructions a job runs between checks for host requests
func WithSliceSize(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.sliceSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) {
		d.logger = logger
	}
}

// NewDevice creates a halted software coprocessor
func NewDevice(opts ...Option) *Device {
	d := &Device{
		sliceSize: DefaultSliceSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.interp == nil {
		d.interp = NewInterpreter(DefaultRDRAMSize)
	}

	d.logger = d.logger.With("component", "emulator")
	return d
}

// LastStop returns why the last job stopped, and the interpreter error if any
func (d *Device) LastStop() (StopReason, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastStop, d.lastErr
}

// Stats returns the instructions executed since creation and how many of them were unimplemented encodings
func (d *Device) Stats() (cycles uint64, unimplemented uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interp.state.Cycles, d.interp.state.Unimplemented
}

// Inspect runs f on the CPU state while no instruction executes
func (d *Device) Inspect(f func(state *CPUState)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f(d.interp.state)
}

func (d *Device) LoadCode(code []byte, offset uint32) error {
	if err := d.Halt(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.interp.LoadCode(code, offset)
}

func (d *Device) WriteRDRAM(address uint32, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return rsp.ErrAlreadyClosed
	}

	state := d.interp.state
	if err := state.rdramRange(address, len(data)); err != nil {
		return err
	}

	copy(state.RDRAM[address:], data)
	return nil
}

func (d *Device) WriteStatus(bits uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return rsp.ErrAlreadyClosed
	}

	state := d.interp.state
	wasHalted := state.Halted()
	state.Status = rsp.ApplyStatusWrite(state.Status, bits)

	// Clearing the halt bit starts the core, the same as RunAsync
	if wasHalted && !state.Halted() && d.job == nil {
		d.startLocked()
	}

	return nil
}

func (d *Device) Status() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interp.state.Status
}

func (d *Device) RunAsync() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return rsp.ErrAlreadyClosed
	}

	if d.job != nil {
		return ErrRunning
	}

	state := d.interp.state
	state.Status &^= rsp.StatusHalted | rsp.StatusBroke
	d.startLocked()
	return nil
}

func (d *Device) startLocked() {
	j := &job{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	d.job = j
	d.lastStop = StopNone
	d.lastErr = nil
	d.logger.Debug("job started", slog.String("pc", fmt.Sprintf("0x%03x", d.interp.state.PC)))

	go d.run(j)
}

func (d *Device) run(j *job) {
	defer close(j.done)

	for {
		select {
		case <-j.stop:
			return
		default:
		}

		d.mu.Lock()
		err := d.interp.RunN(d.sliceSize)
		state := d.interp.state

		if err != nil || state.Halted() {
			if d.job == j {
				d.job = nil

				switch {
				case err != nil:
					d.lastStop, d.lastErr = StopError, err
				case state.Status&rsp.StatusBroke != 0:
					d.lastStop = StopBreak
				default:
					d.lastStop = StopHalt
				}

				d.logger.Debug("job stopped",
					slog.String("reason", d.lastStop.String()),
					slog.String("status", rsp.FormatStatus(state.Status)),
					slog.Uint64("cycles", state.Cycles))
			}

			d.mu.Unlock()
			return
		}

		d.mu.Unlock()
	}
}

// Halt sets the halt bit and waits for the running job, if any, to return
func (d *Device) Halt() error {
	d.mu.Lock()

	if d.closed {
		d.mu.Unlock()
		return rsp.ErrAlreadyClosed
	}

	j := d.job
	d.job = nil
	d.interp.state.Status |= rsp.StatusHalted

	if j != nil {
		d.lastStop = StopAbandoned
		d.logger.Debug("job abandoned", slog.String("pc", fmt.Sprintf("0x%03x", d.interp.state.PC)))
	}

	d.mu.Unlock()

	if j != nil {
		close(j.stop)
		<-j.done
	}

	return nil
}

func (d *Device) ReadBlock(space rsp.Space, offset uint32, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return rsp.ErrAlreadyClosed
	}

	state := d.interp.state
	if err := state.Serialize(space, offset, dst); err != nil {
		return err
	}

	// Host reads of the semaphore acquire it, like MFC0
	if space == rsp.SpaceCop0 {
		semaphore := uint32(rsp.Cop0Semaphore) * 4
		if offset <= semaphore && uint64(offset)+uint64(len(dst)) > uint64(semaphore) {
			state.ReadCop0(rsp.Cop0Semaphore)
		}
	}

	return nil
}

func (d *Device) Crash(reason string) error {
	if err := d.Halt(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.interp.state.Status |= rsp.StatusHalted | rsp.StatusBroke
	d.lastStop = StopCrash
	d.logger.Warn("coprocessor crashed", slog.String("reason", reason))
	return nil
}

func (d *Device) Close() error {
	if err := d.Halt(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	return nil
}
