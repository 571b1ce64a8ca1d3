package rsp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	assert.Equal(t, 0, GPROffset)
	assert.Equal(t, 128, VPROffset)
	assert.Equal(t, 640, AccumulatorOffset)
	assert.Equal(t, 688, Cop0Offset)
	assert.Equal(t, 752, Cop2Offset)
	assert.Equal(t, 764, PCOffset)
	assert.Equal(t, 768, DMEMOffset)
	assert.Equal(t, 4864, IMEMOffset)
	assert.Equal(t, 8960, SnapshotSize)
	assert.Equal(t, PCOffset, RegisterRegionSize)

	end := 0
	for _, space := range Spaces {
		assert.Equal(t, end, space.SnapshotOffset(), space.String())
		end += space.Size()
	}
	assert.Equal(t, SnapshotSize, end)
}

func TestSnapshot(t *testing.T) {
	var s Snapshot

	s.SetGPR(3, 0x11223344)
	assert.Equal(t, uint32(0x11223344), s.GPR(3))
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, s.Bytes()[12:16], "big-endian")

	lanes := [VectorLanes]uint16{1, 2, 3, 4, 5, 6, 7, 0xffff}
	s.SetVPR(31, lanes)
	assert.Equal(t, lanes, s.VPR(31))

	s.SetCop0(Cop0Semaphore, 1)
	assert.Equal(t, uint32(1), s.Cop0(Cop0Semaphore))
	assert.Equal(t, byte(1), s.RegisterRegion()[Cop0Offset+7*4+3])

	s.SetCop2(Cop2VCE, 0xa5)
	assert.Equal(t, uint32(0xa5), s.Cop2(Cop2VCE))

	acc := s.Space(SpaceAccumulator)
	acc[2*VectorLanes*2] = 0xab
	assert.Equal(t, uint16(0xab00), s.Accumulator(AccumulatorLow)[0])

	s.DMEM()[0] = 0xff
	assert.Equal(t, byte(0xff), s.Bytes()[DMEMOffset])
	assert.Len(t, s.IMEM(), IMEMSize)

	s.Reset()
	assert.Zero(t, s.GPR(3))
	assert.Zero(t, s.DMEM()[0])
}

func TestRegisters(t *testing.T) {
	assert.Equal(t, "SEMAPHORE", Cop0Semaphore.String())
	assert.Equal(t, "COP0_16", Cop0Register(16).String())
	assert.Equal(t, "VCC", Cop2VCC.String())
	assert.Equal(t, "hi", AccumulatorHigh.String())

	for _, name := range []string{"DP_CLOCK", "cop0_dp_clock", " COP0_DP_CLOCK "} {
		r, err := Cop0RegisterByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, Cop0DPClock, r)
	}

	_, err := Cop0RegisterByName("DP_CLOCKS")
	assert.ErrorIs(t, err, ErrUnknownRegister)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "running", FormatStatus(0))
	assert.Equal(t, "halted|broke|sig2", FormatStatus(StatusHalted|StatusBroke|StatusPassSignal))
	assert.Equal(t, StatusSig7, StatusSignal(7))

	status := ApplyStatusWrite(StatusHalted|StatusBroke, WStatusClearHalt|WStatusClearBroke)
	assert.Zero(t, status)

	status = ApplyStatusWrite(status, WStatusSetHalt|WStatusSetSignal(2))
	assert.Equal(t, StatusHalted|StatusSig2, status)

	assert.Equal(t, status, ApplyStatusWrite(status, WStatusSetHalt|WStatusClearHalt), "set and clear together is a no-op")
	assert.Equal(t, StatusHalted, ApplyStatusWrite(status, WStatusClearAllSignals))
}

type fakeCoprocessor struct {
	Coprocessor
	status uint32
	err    error
}

func (f *fakeCoprocessor) Status() uint32                            { return f.status }
func (f *fakeCoprocessor) RunAsync() error                           { return f.err }
func (f *fakeCoprocessor) LoadCode(code []byte, offset uint32) error { return nil }

type recorder struct {
	traces []string
}

func (r *recorder) SaveTrace(t *Trace) {
	r.traces = append(r.traces, t.String())
}

func TestTraced(t *testing.T) {
	fake := &fakeCoprocessor{status: StatusHalted}
	traces := &recorder{}
	dev := Traced(fake, traces)

	require.NoError(t, dev.LoadCode(make([]byte, 16), 0x10))
	dev.Status()
	dev.Status()
	fake.status = StatusHalted | StatusBroke
	dev.Status()

	fake.err = errors.New("boom")
	assert.Error(t, dev.RunAsync())

	assert.Equal(t, []string{
		"LoadCode(bytes: 16, offset: 0x10)",
		"Status() result: 0x0001 halted",
		"Status() result: 0x0003 halted|broke",
		"RunAsync() error: boom",
	}, traces.traces)
}
