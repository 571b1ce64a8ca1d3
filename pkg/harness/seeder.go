package harness

import (
	"context"
	"time"

	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp/asm"
	"github.com/Manu343726/rspdiff/pkg/utils"
)

const (
	// DefaultScratchAddress is where the garbage block is staged in host memory before the bootstrap DMAs it
	DefaultScratchAddress = 0x00100000

	// DefaultBootstrapTimeout bounds the seeding bootstrap run
	DefaultBootstrapTimeout = time.Second
)

// Bootstrap assembles the microcode that copies a garbage block from host memory into every
// writable register file of the coprocessor. The block keeps the snapshot layout: GPRs come from
// its first 128 bytes, vector registers from the next 512, and so on, so a seeded snapshot and its
// garbage block agree on the GPR, VPR and COP2 regions.
func Bootstrap(scratch uint32) *asm.Program {
	const at = 1

	p := asm.NewProgram()

	// DMA the whole block into DMEM
	p.Add(
		asm.Lui(at, uint16(scratch>>16)),
		asm.Ori(at, at, uint16(scratch)),
		asm.Mtc0(0, uint32(rsp.Cop0DMASPAddr)),
		asm.Mtc0(at, uint32(rsp.Cop0DMARAMAddr)),
		asm.Addiu(at, 0, rsp.DMEMSize-1),
		asm.Mtc0(at, uint32(rsp.Cop0DMARead)),
	)

	wait := p.Here()
	p.Add(
		asm.Mfc0(at, uint32(rsp.Cop0DMABusy)),
		asm.Bne(at, 0, asm.BranchOffset(wait+1, wait)),
		asm.Nop(),
	)

	// Release the semaphore acquired by the host side
	p.Add(asm.Mtc0(0, uint32(rsp.Cop0Semaphore)))

	// Accumulator: $v0[0] = 1 and $v0[1] = 0x4000 scale the three garbage lanes into the low,
	// middle and high slices (four 0x4000<<16 steps shift the high lane by 32 bits)
	const (
		one   = 8 // element selecting lane 0
		shift = 9 // element selecting lane 1
	)

	p.Add(
		asm.Ori(at, 0, 1),
		asm.Mtc2(at, 0, 0),
		asm.Ori(at, 0, 0x4000),
		asm.Mtc2(at, 0, 2),
	)

	for slice := 0; slice < rsp.NumAccumulatorSlices; slice++ {
		p.Add(asm.Lqv(uint32(1+slice), 0, int8((rsp.AccumulatorOffset+slice*16)/16), 0))
	}

	p.Add(
		asm.Vector(asm.VfMudn, 31, 3, 0, one),
		asm.Vector(asm.VfMadh, 31, 2, 0, one),
	)
	for i := 0; i < 4; i++ {
		p.Add(asm.Vector(asm.VfMadh, 31, 1, 0, shift))
	}

	// Vector flags
	for r := rsp.Cop2VCO; r <= rsp.Cop2VCE; r++ {
		p.Add(
			asm.Lw(at, int16(rsp.Cop2Offset+int(r)*4), 0),
			asm.Ctc2(at, uint32(r)),
		)
	}

	for v := 0; v < rsp.NumVPRs; v++ {
		p.Add(asm.Lqv(uint32(v), 0, int8((rsp.VPROffset+v*16)/16), 0))
	}

	// GPRs last, $at included
	for r := 1; r < rsp.NumGPRs; r++ {
		p.Add(asm.Lw(uint32(r), int16(rsp.GPROffset+r*4), 0))
	}

	return p.Add(asm.Break(0))
}

// Seeder loads garbage blocks into the coprocessor
type Seeder struct {
	dev       rsp.Coprocessor
	executor  *Executor
	scratch   uint32
	bootstrap []byte
	timeout   time.Duration
}

func NewSeeder(dev rsp.Coprocessor, executor *Executor, scratch uint32, timeout time.Duration) *Seeder {
	if timeout <= 0 {
		timeout = DefaultBootstrapTimeout
	}

	return &Seeder{
		dev:       dev,
		executor:  executor,
		scratch:   scratch,
		bootstrap: Bootstrap(scratch).Bytes(),
		timeout:   timeout,
	}
}

// Load runs the bootstrap over block and waits synchronously for it to finish.
// Status signals are cleared first so a stale pass or fail cannot end the next trial early.
func (s *Seeder) Load(ctx context.Context, block []byte) error {
	if err := s.dev.WriteRDRAM(s.scratch, block); err != nil {
		return utils.MakeError(err, "staging garbage block")
	}

	if err := s.dev.WriteStatus(rsp.WStatusClearAllSignals); err != nil {
		return utils.MakeError(err, "clearing status signals")
	}

	if err := s.dev.LoadCode(s.bootstrap, 0); err != nil {
		return utils.MakeError(err, "loading bootstrap")
	}

	if err := s.dev.RunAsync(); err != nil {
		return utils.MakeError(err, "starting bootstrap")
	}

	result, err := s.executor.WaitForTerminal(ctx, s.timeout)
	if err != nil {
		return err
	}

	switch result.Status {
	case StatusBroke:
		return nil
	case StatusTimedOut:
		_ = s.dev.Halt()
		return utils.MakeError(ErrBootstrapTimeout, "after %v", result.Elapsed)
	default:
		return utils.MakeError(ErrBootstrapFailed, "status %v (%s)", result.Status, rsp.FormatStatus(result.Raw))
	}
}
