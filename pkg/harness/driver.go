package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
	"github.com/Manu343726/rspdiff/pkg/utils"
)

const (
	// DefaultTimeout bounds the wait for a single candidate
	DefaultTimeout = 10 * time.Second

	// DefaultSeed initializes the generator of every case
	DefaultSeed uint32 = 0x12345678
)

// Config controls a harness run
type Config struct {
	// Trials run for each masked case that does not set its own count
	Trials int
	// Bound of the wait for a candidate to reach a terminal status
	Timeout      time.Duration
	PollInterval time.Duration
	// Seed the generator of every case starts from
	Seed             uint32
	Sentinel         uint32
	ScratchAddress   uint32
	BootstrapTimeout time.Duration
	Ignore           IgnoreList
	// Crash the coprocessor after the last case to signal the run is complete
	CrashOnFinish bool
}

func DefaultConfig() Config {
	return Config{
		Trials:           DefaultTrials,
		Timeout:          DefaultTimeout,
		PollInterval:     DefaultPollInterval,
		Seed:             DefaultSeed,
		Sentinel:         Sentinel,
		ScratchAddress:   DefaultScratchAddress,
		BootstrapTimeout: DefaultBootstrapTimeout,
		Ignore:           DefaultIgnoreList(),
		CrashOnFinish:    true,
	}
}

// Event identifies a point of the run observers are notified about
type Event int

const (
	EventCaseStarted Event = iota
	EventTrialFinished
	EventCaseFinished
	EventRunFinished
)

func (e Event) String() string {
	switch e {
	case EventCaseStarted:
		return "case-started"
	case EventTrialFinished:
		return "trial-finished"
	case EventCaseFinished:
		return "case-finished"
	case EventRunFinished:
		return "run-finished"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Progress carries the state of the run at an event. Trial is set for EventTrialFinished,
// Report for EventRunFinished.
type Progress struct {
	Case   *CaseResult
	Total  int // trials the current case will run
	Trial  *TrialResult
	Report *Report
}

// EventCallback is called on every event. Returning false aborts the run
type EventCallback func(event Event, progress *Progress) bool

// Driver runs test cases against a coprocessor
type Driver struct {
	dev       rsp.Coprocessor
	image     *CodeImage
	config    Config
	seeder    *Seeder
	executor  *Executor
	table     *FieldTable
	logger    *slog.Logger
	callbacks []EventCallback
}

// NewDriver prepares a driver for image. A missing or implausible sentinel is fatal.
func NewDriver(dev rsp.Coprocessor, image *CodeImage, config Config, logger *slog.Logger) (*Driver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if config.Sentinel == 0 {
		config.Sentinel = Sentinel
	}

	offset, err := image.LocateSentinel(config.Sentinel)
	if err != nil {
		return nil, err
	}

	logger = logger.With("component", "harness")
	logger.Info("found sentinel", slog.String("offset", fmt.Sprintf("0x%04x", offset)))
	logger.Debug("code image", slog.String("hexdump", image.Hexdump()))

	executor := NewExecutor(dev, config.PollInterval)

	return &Driver{
		dev:      dev,
		image:    image,
		config:   config,
		seeder:   NewSeeder(dev, executor, config.ScratchAddress, config.BootstrapTimeout),
		executor: executor,
		table:    NewFieldTable(config.Ignore),
		logger:   logger,
	}, nil
}

// OnEvent registers an event callback
func (d *Driver) OnEvent(callback EventCallback) {
	d.callbacks = append(d.callbacks, callback)
}

func (d *Driver) fire(event Event, progress *Progress) bool {
	keepGoing := true

	for _, callback := range d.callbacks {
		if !callback(event, progress) {
			keepGoing = false
		}
	}

	return keepGoing
}

func (d *Driver) Config() Config {
	return d.config
}

func (d *Driver) FieldTable() *FieldTable {
	return d.table
}

// TrialsFor returns how many trials a case runs: one for a zero mask, else its own count or the configured one
func (d *Driver) TrialsFor(tc TestCase) int {
	switch {
	case tc.Mask == 0:
		return 1
	case tc.Trials > 0:
		return tc.Trials
	case d.config.Trials > 0:
		return d.config.Trials
	default:
		return DefaultTrials
	}
}

// Run executes every case in order and returns the aggregated report.
// Device failures abort the run; timeouts and diffs are results.
func (d *Driver) Run(ctx context.Context, cases []TestCase) (*Report, error) {
	return d.RunSelected(ctx, cases, nil)
}

// RunSelected runs the cases of table at indices, in that order. Results are numbered by their
// index in table. Nil indices run the whole table.
func (d *Driver) RunSelected(ctx context.Context, table []TestCase, indices []int) (*Report, error) {
	if indices == nil {
		indices = make([]int, len(table))
		for i := range indices {
			indices[i] = i
		}
	}

	report := &Report{
		Started: time.Now(),
		Seed:    d.config.Seed,
		Trials:  d.config.Trials,
		Timeout: d.config.Timeout,
		Ignore:  d.config.Ignore.Entries(),
	}

	for _, index := range indices {
		if index < 0 || index >= len(table) {
			report.Elapsed = time.Since(report.Started)
			return report, fmt.Errorf("case index %d out of range, the table has %d cases", index, len(table))
		}

		result, err := d.RunCase(ctx, index, table[index])
		if result != nil {
			report.Cases = append(report.Cases, *result)
		}
		if err != nil {
			report.Elapsed = time.Since(report.Started)
			return report, err
		}
	}

	report.Elapsed = time.Since(report.Started)
	d.fire(EventRunFinished, &Progress{Report: report})

	if d.config.CrashOnFinish {
		if err := d.Finish(); err != nil {
			return report, err
		}
	}

	return report, nil
}

// RunCase runs all trials of a case from a freshly seeded generator
func (d *Driver) RunCase(ctx context.Context, index int, tc TestCase) (*CaseResult, error) {
	result := NewCaseResult(index, tc)
	total := d.TrialsFor(tc)
	prng := NewPRNG(d.config.Seed)

	d.logger.Info("running case",
		slog.Int("index", index),
		slog.String("label", tc.Label),
		slog.String("encoding", fmt.Sprintf("0x%08x", tc.Encoding)),
		slog.String("mask", fmt.Sprintf("0x%08x", tc.Mask)),
		slog.Int("trials", total))

	if !d.fire(EventCaseStarted, &Progress{Case: result, Total: total}) {
		return result, ErrAborted
	}

	for trial := 0; trial < total; trial++ {
		seed := prng.Next()
		candidate := Mutate(tc.Encoding, tc.Mask, &prng)

		trialResult, err := d.RunTrial(ctx, trial, seed, candidate)
		if err != nil {
			return result, utils.MakeError(err, "case %d trial %d", index, trial)
		}

		result.Accumulate(trialResult)

		if !d.fire(EventTrialFinished, &Progress{Case: result, Total: total, Trial: trialResult}) {
			return result, ErrAborted
		}
	}

	d.logger.Info("case finished",
		slog.Int("index", index),
		slog.Int("trials_run", result.TrialsRun),
		slog.Int("trials_failed", result.TrialsFailed),
		slog.Int("trials_timed_out", result.TrialsTimedOut),
		slog.Int("total_diffs", result.TotalDiffs))

	if !d.fire(EventCaseFinished, &Progress{Case: result, Total: total}) {
		return result, ErrAborted
	}

	return result, nil
}

// RunTrial seeds the coprocessor from seed, runs candidate once and diffs the register region.
// The same seed and candidate always reproduce the same trial.
func (d *Driver) RunTrial(ctx context.Context, index int, seed uint32, candidate uint32) (*TrialResult, error) {
	if err := d.seeder.Load(ctx, GarbageBlock(seed)); err != nil {
		return nil, err
	}

	if err := d.image.Patch(candidate); err != nil {
		return nil, err
	}

	if err := d.image.Publish(d.dev); err != nil {
		return nil, err
	}

	var before, after rsp.Snapshot

	if err := Capture(d.dev, &before); err != nil {
		return nil, err
	}

	if err := d.executor.Start(d.image); err != nil {
		return nil, utils.MakeError(err, "starting candidate 0x%08x", candidate)
	}

	wait, err := d.executor.WaitForTerminal(ctx, d.config.Timeout)
	if err != nil {
		_ = d.dev.Halt()
		return nil, err
	}

	if wait.TimedOut() {
		// Abandon the job so the snapshot is consistent
		if err := d.dev.Halt(); err != nil {
			return nil, err
		}
	}

	if err := Capture(d.dev, &after); err != nil {
		return nil, err
	}

	if wait.TimedOut() {
		maskRunControl(&before, &after)
	}

	diff := d.table.Diff(&before, &after)

	result := &TrialResult{
		Index:        index,
		Seed:         seed,
		Candidate:    candidate,
		Status:       wait.Status,
		RawStatus:    wait.Raw,
		Elapsed:      wait.Elapsed,
		DiffCount:    diff.DiffCount,
		IgnoredCount: diff.IgnoredCount,
		Passed:       diff.Passed(),
		Diff:         diff,
	}

	d.logger.Debug("trial finished",
		slog.Int("index", index),
		slog.String("seed", fmt.Sprintf("0x%08x", seed)),
		slog.String("candidate", fmt.Sprintf("0x%08x", candidate)),
		slog.String("status", wait.Status.String()),
		slog.Duration("elapsed", wait.Elapsed),
		slog.Int("diffs", diff.DiffCount),
		slog.Int("ignored", diff.IgnoredCount))

	return result, nil
}

// runControlBits are the SP_STATUS bits the host itself moves when it abandons a job
const runControlBits = rsp.StatusHalted | rsp.StatusBroke

// maskRunControl carries the run control bits of before into after. Halting a timed out
// job clears broke, which is not a side effect of the candidate.
func maskRunControl(before, after *rsp.Snapshot) {
	status := after.Cop0(rsp.Cop0SPStatus)&^runControlBits | before.Cop0(rsp.Cop0SPStatus)&runControlBits
	after.SetCop0(rsp.Cop0SPStatus, status)
}

// Finish forces a terminal fault on the coprocessor, signalling that the run is complete
func (d *Driver) Finish() error {
	d.logger.Info("tests complete, crashing coprocessor")
	return d.dev.Crash("tests complete")
}
