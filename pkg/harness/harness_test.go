package harness

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp/asm"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp/emulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPRNG(t *testing.T) {
	t.Run("xorshift32", func(t *testing.T) {
		prng := NewPRNG(1)
		assert.Equal(t, uint32(0x00042021), prng.Next())
		assert.Equal(t, uint32(0x00042021), prng.State())
	})

	t.Run("zero seed still produces output", func(t *testing.T) {
		prng := NewPRNG(0)
		assert.NotZero(t, prng.Next())

		var zero PRNG
		assert.Equal(t, prng.State(), zero.Next())
	})

	t.Run("garbage blocks are deterministic", func(t *testing.T) {
		assert.Equal(t, GarbageBlock(42), GarbageBlock(42))
		assert.NotEqual(t, GarbageBlock(42), GarbageBlock(43))
		assert.Len(t, GarbageBlock(7), GarbageBlockSize)
	})

	t.Run("fill is big-endian", func(t *testing.T) {
		block := GarbageBlock(1)
		assert.Equal(t, uint32(0x00042021), binary.BigEndian.Uint32(block))
	})
}

func TestMutate(t *testing.T) {
	prng := NewPRNG(99)

	masks := []uint32{0x01ffffc0, 0x001f0000, 0x0000ffff, 0xffffffff, 0x80000001}
	bases := []uint32{0x42000000, 0x34018888, 0xffffffff, 0}

	for _, mask := range masks {
		for _, base := range bases {
			for i := 0; i < 100; i++ {
				candidate := Mutate(base, mask, &prng)
				require.Zero(t, (candidate^base)&^mask, "base 0x%08x mask 0x%08x candidate 0x%08x", base, mask, candidate)
			}
		}
	}

	t.Run("zero mask leaves generator untouched", func(t *testing.T) {
		p := NewPRNG(5)
		assert.Equal(t, uint32(0x34008888), Mutate(0x34008888, 0, &p))
		assert.Equal(t, NewPRNG(5).State(), p.State())
	})
}

func TestCodeImage(t *testing.T) {
	t.Run("locate and patch", func(t *testing.T) {
		image := TestImage()

		offset, err := image.LocateSentinel(Sentinel)
		require.NoError(t, err)
		assert.Equal(t, 4, offset)
		assert.Equal(t, Sentinel, image.Instruction())

		var synced []int
		image.Sync = func(region []byte) error {
			synced = append(synced, len(region))
			return nil
		}

		dev := emulator.NewDevice(emulator.WithRDRAMSize(1 << 16))
		defer dev.Close()

		require.NoError(t, image.Patch(0x34018888))
		assert.True(t, image.Dirty())
		assert.ErrorIs(t, NewExecutor(dev, 0).Start(image), ErrUnpublishedImage)

		require.NoError(t, image.Publish(dev))
		assert.False(t, image.Dirty())
		assert.Equal(t, []int{32}, synced)

		var imem [20]byte
		require.NoError(t, dev.ReadBlock(rsp.SpaceIMEM, 0, imem[:]))
		assert.Equal(t, uint32(0x34018888), binary.BigEndian.Uint32(imem[4:]))
		assert.Contains(t, image.Hexdump(), "34 01 88 88")
	})

	t.Run("missing sentinel", func(t *testing.T) {
		image := NewCodeImage(asm.NewProgram().Add(asm.Nop(), asm.Break(0)).Bytes(), 0)
		_, err := image.LocateSentinel(Sentinel)
		assert.ErrorIs(t, err, ErrSentinelNotFound)
		assert.ErrorIs(t, image.Patch(0), ErrSentinelNotFound)
	})

	t.Run("ambiguous sentinel", func(t *testing.T) {
		image := NewCodeImage(asm.NewProgram().Add(Sentinel, Sentinel, asm.Break(0)).Bytes(), 0)
		_, err := image.LocateSentinel(Sentinel)
		assert.ErrorIs(t, err, ErrAmbiguousSentinel)
	})

	t.Run("implausible images", func(t *testing.T) {
		last := NewCodeImage(asm.NewProgram().Add(asm.Nop(), Sentinel).Bytes(), 0)
		_, err := last.LocateSentinel(Sentinel)
		assert.ErrorIs(t, err, ErrImplausibleImage)

		tooBig := NewCodeImage(asm.NewProgram().Add(Sentinel, asm.Break(0)).Bytes(), rsp.IMEMSize-4)
		_, err = tooBig.LocateSentinel(Sentinel)
		assert.ErrorIs(t, err, ErrImplausibleImage)
	})
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, StatusRunning, ClassifyStatus(0))
	assert.Equal(t, StatusHalted, ClassifyStatus(rsp.StatusHalted))
	assert.Equal(t, StatusBroke, ClassifyStatus(rsp.StatusHalted|rsp.StatusBroke))
	assert.Equal(t, StatusFail, ClassifyStatus(rsp.StatusHalted|rsp.StatusBroke|rsp.StatusFailSignal))
	assert.Equal(t, StatusPass, ClassifyStatus(rsp.StatusPassSignal|rsp.StatusFailSignal))

	text, err := StatusTimedOut.MarshalText()
	require.NoError(t, err)

	var status TerminalStatus
	require.NoError(t, status.UnmarshalText(text))
	assert.Equal(t, StatusTimedOut, status)
}

func TestIgnoreList(t *testing.T) {
	list, err := ParseIgnoreList([]string{"cop0[dp_clock]", "SEMAPHORE", "cop0_dp_pipe_busy", "3", "acc"})
	require.NoError(t, err)

	assert.Equal(t, []string{"acc", "cop0[DP_CLOCK]", "cop0[DP_PIPE_BUSY]", "cop0[SEMAPHORE]", "gpr[3]"}, list.Entries())

	table := NewFieldTable(list)
	assert.True(t, table.Lookup(rsp.GPROffset + 3*4).Ignored)
	assert.False(t, table.Lookup(rsp.GPROffset + 4*4).Ignored)
	assert.True(t, table.Lookup(rsp.AccumulatorOffset + 17).Ignored)
	assert.Equal(t, "acc[mid]", table.Lookup(rsp.AccumulatorOffset+17).Name)

	_, err = ParseIgnoreList([]string{"flux-capacitor"})
	assert.ErrorIs(t, err, ErrUnknownField)

	assert.Equal(t, "cop0[DP_CLOCK],cop0[DP_PIPE_BUSY],cop0[SEMAPHORE]", DefaultIgnoreList().String())
}

func TestFieldTable(t *testing.T) {
	table := NewFieldTable(DefaultIgnoreList())

	covered := 0
	for i, field := range table.Fields() {
		if i > 0 {
			assert.Equal(t, table.Fields()[i-1].End, field.Start, "fields must be contiguous")
		}
		covered += field.Size()
	}

	assert.Equal(t, rsp.RegisterRegionSize, covered)
	assert.Len(t, table.Ignored(), 3)
	assert.Equal(t, "gpr[0]", table.Lookup(0).Name)
	assert.Equal(t, "vpr[31]", table.Lookup(rsp.AccumulatorOffset-1).Name)
	assert.Equal(t, "cop2[VCE]", table.Lookup(rsp.RegisterRegionSize-1).Name)
}

func TestDiff(t *testing.T) {
	table := NewFieldTable(DefaultIgnoreList())

	var before, after rsp.Snapshot
	before.SetGPR(3, 0x00000001)
	after.SetGPR(3, 0x00000002)
	before.SetCop0(rsp.Cop0DPClock, 0x100)
	after.SetCop0(rsp.Cop0DPClock, 0x2ff)
	after.Space(rsp.SpaceDMEM)[10] = 0xff
	after.Space(rsp.SpacePC)[3] = 0x08

	t.Run("ignored fields never count", func(t *testing.T) {
		report := table.Diff(&before, &after)
		assert.Equal(t, 1, report.DiffCount)
		assert.Equal(t, 2, report.IgnoredCount)
		assert.Equal(t, map[string]int{ClassGPR: 1}, report.ByClass)
		assert.Empty(t, report.Cop0, "only ignored cop0 words changed")
		require.Len(t, report.Fields, 2)
		assert.Equal(t, "gpr[3]", report.Fields[0].Name)
		assert.Equal(t, "00000001", report.Fields[0].Before)
		assert.True(t, report.Fields[1].Ignored)
		assert.False(t, report.Passed())
	})

	t.Run("symmetric", func(t *testing.T) {
		forward := table.Diff(&before, &after)
		backward := table.Diff(&after, &before)
		assert.Equal(t, forward.DiffCount, backward.DiffCount)
		assert.Equal(t, forward.IgnoredCount, backward.IgnoredCount)
		assert.Equal(t, forward.ByClass, backward.ByClass)
	})

	t.Run("cop0 table", func(t *testing.T) {
		changed := after
		changed.SetCop0(rsp.Cop0SPStatus, rsp.StatusHalted)

		report := table.Diff(&before, &changed)
		require.Len(t, report.Cop0, rsp.NumCop0Registers)
		assert.True(t, report.Cop0[rsp.Cop0SPStatus].Changed())
		assert.True(t, report.Cop0[rsp.Cop0DPClock].Ignored)
		assert.False(t, report.Cop0[rsp.Cop0DMABusy].Changed())
	})

	t.Run("identical snapshots", func(t *testing.T) {
		report := table.Diff(&before, &before)
		assert.True(t, report.Passed())
		assert.Zero(t, report.IgnoredCount)
		assert.Empty(t, report.Fields)
	})
}

func newTestDevice(t *testing.T) *emulator.Device {
	t.Helper()

	dev := emulator.NewDevice(emulator.WithRDRAMSize(4 << 20))
	t.Cleanup(func() { dev.Close() })
	return dev
}

func TestSeeder(t *testing.T) {
	dev := newTestDevice(t)
	seeder := NewSeeder(dev, NewExecutor(dev, 100*time.Microsecond), DefaultScratchAddress, 0)

	block := GarbageBlock(0xdeadbeef)
	require.NoError(t, seeder.Load(context.Background(), block))

	var snapshot rsp.Snapshot
	require.NoError(t, Capture(dev, &snapshot))

	assert.Equal(t, uint32(0), snapshot.GPR(0))
	for r := 1; r < rsp.NumGPRs; r++ {
		assert.Equal(t, binary.BigEndian.Uint32(block[r*4:]), snapshot.GPR(r), "gpr %d", r)
	}

	assert.Equal(t, block[rsp.VPROffset:rsp.VPROffset+rsp.VPRBytes], snapshot.Space(rsp.SpaceVPR))
	assert.Equal(t, binary.BigEndian.Uint32(block[rsp.Cop2Offset:])&0xffff, snapshot.Cop2(rsp.Cop2VCO))
	assert.Equal(t, binary.BigEndian.Uint32(block[rsp.Cop2Offset+8:])&0xff, snapshot.Cop2(rsp.Cop2VCE))
	assert.Equal(t, block, snapshot.DMEM())

	// The low accumulator slice is the garbage lane itself
	lo := snapshot.Accumulator(rsp.AccumulatorLow)
	for lane := range lo {
		assert.Equal(t, binary.BigEndian.Uint16(block[rsp.AccumulatorOffset+32+lane*2:]), lo[lane])
	}

	t.Run("deterministic", func(t *testing.T) {
		var again rsp.Snapshot
		require.NoError(t, seeder.Load(context.Background(), block))
		require.NoError(t, Capture(dev, &again))
		assert.Equal(t, snapshot.RegisterRegion()[:rsp.Cop0Offset], again.RegisterRegion()[:rsp.Cop0Offset])
	})
}

func testConfig() Config {
	config := DefaultConfig()
	config.Timeout = time.Second
	config.PollInterval = 100 * time.Microsecond
	config.CrashOnFinish = false
	return config
}

func newTestDriver(t *testing.T, config Config) (*Driver, *emulator.Device) {
	t.Helper()

	dev := newTestDevice(t)
	driver, err := NewDriver(dev, TestImage(), config, nil)
	require.NoError(t, err)
	return driver, dev
}

func TestDriver(t *testing.T) {
	ctx := context.Background()

	t.Run("scenario A: li $0 has no side effects", func(t *testing.T) {
		driver, _ := newTestDriver(t, testConfig())

		result, err := driver.RunCase(ctx, 0, TestCase{Label: "li $0, 0x8888", Encoding: asm.Li(0, 0x8888), Trials: 50})
		require.NoError(t, err)

		assert.Equal(t, 1, result.TrialsRun)
		assert.Equal(t, 0, result.TotalDiffs)
		assert.Equal(t, 0, result.TrialsFailed)
		assert.Equal(t, StatusBroke, result.Trials[0].Status)
		assert.Positive(t, result.TotalIgnored, "semaphore and clocks change on their own")
	})

	t.Run("li $1 changes gpr 1 only", func(t *testing.T) {
		driver, _ := newTestDriver(t, testConfig())

		result, err := driver.RunCase(ctx, 0, TestCase{Label: "li $1, 0x8888", Encoding: 0x34018888})
		require.NoError(t, err)

		assert.Equal(t, 1, result.TrialsRun)
		assert.Equal(t, 1, result.TrialsFailed)
		require.NotNil(t, result.FirstFailure)
		require.NotEmpty(t, result.FirstFailure.Diff.Fields)
		assert.Equal(t, "gpr[1]", result.FirstFailure.Diff.Fields[0].Name)
		assert.Equal(t, []string{ClassGPR}, keys(result.ClassHistogram))
		assert.Equal(t, 1, result.FieldHistogram["gpr[1]"])
	})

	t.Run("scenario B: masked invalid cop0 family", func(t *testing.T) {
		driver, _ := newTestDriver(t, testConfig())

		mask, err := asm.Mask("cop0-arg")
		require.NoError(t, err)

		tc := TestCase{Label: "cop0 invalid", Encoding: asm.Cop0(0x3f, 0), Mask: mask}
		report, err := driver.Run(ctx, []TestCase{tc})
		require.NoError(t, err)
		require.Len(t, report.Cases, 1)

		result := report.Cases[0]
		assert.Equal(t, DefaultTrials, result.TrialsRun)
		assert.Zero(t, result.TrialsTimedOut)

		distinct := make(map[uint32]bool)
		for _, trial := range result.Trials {
			assert.Zero(t, (trial.Candidate^tc.Encoding)&^mask)
			distinct[trial.Candidate] = true
		}
		assert.Greater(t, len(distinct), 1)
	})

	t.Run("scenario C: timeouts do not abort the run", func(t *testing.T) {
		config := testConfig()
		config.Timeout = 20 * time.Millisecond
		driver, _ := newTestDriver(t, config)

		report, err := driver.Run(ctx, []TestCase{
			{Label: "spin", Encoding: asm.Beq(0, 0, -1)},
			{Label: "li $0, 0x8888", Encoding: asm.Li(0, 0x8888)},
		})
		require.NoError(t, err)
		require.Len(t, report.Cases, 2)

		spin := report.Cases[0]
		assert.Equal(t, 1, spin.TrialsRun)
		assert.Equal(t, 1, spin.TrialsTimedOut)
		assert.Equal(t, StatusTimedOut, spin.Trials[0].Status)
		assert.GreaterOrEqual(t, spin.Trials[0].Elapsed, config.Timeout)
		assert.Zero(t, spin.TrialsFailed, "a timeout alone is not a failure")
		assert.Zero(t, spin.TotalDiffs)
		assert.True(t, spin.Trials[0].Passed)

		assert.Equal(t, 1, report.Cases[1].TrialsRun)
		assert.Zero(t, report.Cases[1].TrialsTimedOut)
	})

	t.Run("selected cases keep their table index", func(t *testing.T) {
		driver, _ := newTestDriver(t, testConfig())
		table := []TestCase{
			{Label: "li $1, 0x8888", Encoding: 0x34018888},
			{Label: "nop", Encoding: 0},
			{Label: "li $2, 0x1234", Encoding: asm.Li(2, 0x1234)},
		}

		report, err := driver.RunSelected(ctx, table, []int{2, 1})
		require.NoError(t, err)
		require.Len(t, report.Cases, 2)
		assert.Equal(t, 2, report.Cases[0].Index)
		assert.Equal(t, "li $2, 0x1234", report.Cases[0].Case.Label)
		assert.Equal(t, 1, report.Cases[1].Index)

		_, err = driver.RunSelected(ctx, table, []int{3})
		assert.Error(t, err)
	})

	t.Run("runs are reproducible", func(t *testing.T) {
		tc := TestCase{Label: "rt", Encoding: 0x34010000, Mask: 0x001f0000, Trials: 10}

		first, _ := newTestDriver(t, testConfig())
		second, _ := newTestDriver(t, testConfig())

		a, err := first.RunCase(ctx, 0, tc)
		require.NoError(t, err)
		b, err := second.RunCase(ctx, 0, tc)
		require.NoError(t, err)

		require.Len(t, b.Trials, len(a.Trials))
		for i := range a.Trials {
			assert.Equal(t, a.Trials[i].Seed, b.Trials[i].Seed)
			assert.Equal(t, a.Trials[i].Candidate, b.Trials[i].Candidate)
			assert.Equal(t, a.Trials[i].DiffCount, b.Trials[i].DiffCount)
		}

		replay, err := first.RunTrial(ctx, 3, a.Trials[3].Seed, a.Trials[3].Candidate)
		require.NoError(t, err)
		assert.Equal(t, a.Trials[3].DiffCount, replay.DiffCount)
	})

	t.Run("events and abort", func(t *testing.T) {
		driver, _ := newTestDriver(t, testConfig())

		events := make(map[Event]int)
		driver.OnEvent(func(event Event, progress *Progress) bool {
			events[event]++
			return !(event == EventTrialFinished && progress.Case.TrialsRun == 3)
		})

		report, err := driver.Run(ctx, []TestCase{{Label: "masked", Encoding: 0x34010000, Mask: 0xffff}})
		assert.ErrorIs(t, err, ErrAborted)
		require.Len(t, report.Cases, 1)
		assert.Equal(t, 3, report.Cases[0].TrialsRun)
		assert.Equal(t, 1, events[EventCaseStarted])
		assert.Equal(t, 3, events[EventTrialFinished])
		assert.Zero(t, events[EventRunFinished])
	})

	t.Run("crash on finish", func(t *testing.T) {
		config := testConfig()
		config.CrashOnFinish = true
		driver, dev := newTestDriver(t, config)

		_, err := driver.Run(ctx, []TestCase{{Label: "nop", Encoding: asm.Nop()}})
		require.NoError(t, err)

		reason, _ := dev.LastStop()
		assert.Equal(t, emulator.StopCrash, reason)
	})

	t.Run("missing sentinel is fatal", func(t *testing.T) {
		dev := newTestDevice(t)
		_, err := NewDriver(dev, NewCodeImage(asm.NewProgram().Add(asm.Break(0)).Bytes(), 0), testConfig(), nil)
		assert.ErrorIs(t, err, ErrSentinelNotFound)
	})
}

func TestMaskRunControl(t *testing.T) {
	var before, after rsp.Snapshot
	before.SetCop0(rsp.Cop0SPStatus, rsp.StatusHalted|rsp.StatusBroke)
	after.SetCop0(rsp.Cop0SPStatus, rsp.StatusHalted|rsp.StatusSig5)

	maskRunControl(&before, &after)
	assert.Equal(t, rsp.StatusHalted|rsp.StatusBroke|rsp.StatusSig5, after.Cop0(rsp.Cop0SPStatus))

	table := NewFieldTable(DefaultIgnoreList())
	diff := table.Diff(&before, &after)
	require.Len(t, diff.Fields, 1, "signals set by the candidate are still reported")
	assert.Equal(t, "cop0[SP_STATUS]", diff.Fields[0].Name)
}

func TestTrialsFor(t *testing.T) {
	driver := &Driver{config: Config{Trials: 7}}

	assert.Equal(t, 1, driver.TrialsFor(TestCase{Trials: 50}))
	assert.Equal(t, 7, driver.TrialsFor(TestCase{Mask: 1}))
	assert.Equal(t, 3, driver.TrialsFor(TestCase{Mask: 1, Trials: 3}))

	driver.config.Trials = 0
	assert.Equal(t, DefaultTrials, driver.TrialsFor(TestCase{Mask: 1}))
}

func keys(m map[string]int) []string {
	result := make([]string, 0, len(m))
	for key := range m {
		result = append(result, key)
	}
	return result
}
