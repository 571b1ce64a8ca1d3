package emulator

import (
	"errors"
	"fmt"

	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp/asm"
	"github.com/Manu343726/rspdiff/pkg/utils"
)

var ErrHalted = errors.New("coprocessor is halted")

// Decoded instruction fields
type instruction uint32

func (i instruction) opcode() uint32 { return uint32(i) >> asm.OpcodeBit & 0x3f }
func (i instruction) rs() uint32     { return uint32(i) >> asm.RsBit & 0x1f }
func (i instruction) rt() uint32     { return uint32(i) >> asm.RtBit & 0x1f }
func (i instruction) rd() uint32     { return uint32(i) >> asm.RdBit & 0x1f }
func (i instruction) sa() uint32     { return uint32(i) >> asm.SaBit & 0x1f }
func (i instruction) funct() uint32  { return uint32(i) & 0x3f }
func (i instruction) imm() uint32    { return uint32(i) & 0xffff }
func (i instruction) simm() uint32   { return uint32(utils.SignExtend(uint32(i)&0xffff, 16)) }
func (i instruction) target() uint32 { return uint32(i) & 0x3ffffff }

// StepResult contains the result of executing a single instruction
type StepResult struct {
	// Address the instruction was fetched from
	PC uint32
	// Instruction word
	Word uint32
	// Whether the core implements the instruction. Unimplemented encodings behave as no-ops
	Implemented bool
}

// Interpreter executes coprocessor microcode on a CPUState
type Interpreter struct {
	state *CPUState
}

// NewInterpreter creates an interpreter over a fresh, halted state
func NewInterpreter(rdramSize int) *Interpreter {
	return &Interpreter{
		state: NewCPUState(rdramSize),
	}
}

// State returns the current CPU state
func (i *Interpreter) State() *CPUState {
	return i.state
}

// LoadCode copies code into IMEM at offset and moves the program counter there
func (i *Interpreter) LoadCode(code []byte, offset uint32) error {
	if uint64(offset)+uint64(len(code)) > rsp.IMEMSize {
		return fmt.Errorf("%w: code [0x%03x, 0x%03x) does not fit in imem", rsp.ErrOutOfRange, offset, uint64(offset)+uint64(len(code)))
	}

	copy(i.state.IMEM[offset:], code)
	i.state.PC = offset
	i.state.branchPending = false
	return nil
}

// Step executes a single instruction. A branch taken by the previous instruction
// redirects the program counter after this one executes (delay slot).
func (i *Interpreter) Step() (*StepResult, error) {
	s := i.state

	if s.Halted() {
		return nil, ErrHalted
	}

	pc := s.PC & imemMask &^ 3
	word := s.FetchInstruction(pc)

	pending, target := s.branchPending, s.branchTarget
	s.branchPending = false
	s.PC = (pc + 4) & imemMask

	implemented := i.execute(instruction(word), pc)
	if !implemented {
		s.Unimplemented++
	}

	if pending {
		s.PC = target
	}

	s.tick()

	return &StepResult{
		PC:          pc,
		Word:        word,
		Implemented: implemented,
	}, nil
}

// Run executes instructions until the core halts
func (i *Interpreter) Run() error {
	for !i.state.Halted() {
		if _, err := i.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunN executes at most n instructions, stopping early if the core halts
func (i *Interpreter) RunN(n int) error {
	for count := 0; count < n && !i.state.Halted(); count++ {
		if _, err := i.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (i *Interpreter) branch(pc uint32, taken bool, offset uint32) {
	if taken {
		i.state.branchPending = true
		i.state.branchTarget = (pc + 4 + offset<<2) & imemMask &^ 3
	}
}

func (i *Interpreter) jump(target uint32) {
	i.state.branchPending = true
	i.state.branchTarget = target & imemMask &^ 3
}

func (i *Interpreter) link(rd uint32, pc uint32) {
	i.state.setGPR(rd, (pc+8)&imemMask)
}

// execute runs one instruction and reports whether the core implements it
func (i *Interpreter) execute(in instruction, pc uint32) bool {
	s := i.state
	rs, rt := s.GPR[in.rs()], s.GPR[in.rt()]

	switch in.opcode() {
	case asm.OpSpecial:
		return i.executeSpecial(in, pc)
	case asm.OpRegImm:
		switch in.rt() {
		case asm.RtBltz:
			i.branch(pc, int32(rs) < 0, in.simm())
		case asm.RtBgez:
			i.branch(pc, int32(rs) >= 0, in.simm())
		case asm.RtBltzal:
			i.link(31, pc)
			i.branch(pc, int32(rs) < 0, in.simm())
		case asm.RtBgezal:
			i.link(31, pc)
			i.branch(pc, int32(rs) >= 0, in.simm())
		default:
			return false
		}
	case asm.OpJ:
		i.jump(in.target() << 2)
	case asm.OpJal:
		i.link(31, pc)
		i.jump(in.target() << 2)
	case asm.OpBeq:
		i.branch(pc, rs == rt, in.simm())
	case asm.OpBne:
		i.branch(pc, rs != rt, in.simm())
	case asm.OpBlez:
		i.branch(pc, int32(rs) <= 0, in.simm())
	case asm.OpBgtz:
		i.branch(pc, int32(rs) > 0, in.simm())
	case asm.OpAddi, asm.OpAddiu:
		// No overflow exceptions on this core
		s.setGPR(in.rt(), rs+in.simm())
	case asm.OpSlti:
		s.setGPR(in.rt(), boolToWord(int32(rs) < int32(in.simm())))
	case asm.OpSltiu:
		s.setGPR(in.rt(), boolToWord(rs < in.simm()))
	case asm.OpAndi:
		s.setGPR(in.rt(), rs&in.imm())
	case asm.OpOri:
		s.setGPR(in.rt(), rs|in.imm())
	case asm.OpXori:
		s.setGPR(in.rt(), rs^in.imm())
	case asm.OpLui:
		s.setGPR(in.rt(), in.imm()<<16)
	case asm.OpCop0:
		return i.executeCop0(in)
	case asm.OpCop2:
		return i.executeCop2(in)
	case asm.OpLb:
		s.setGPR(in.rt(), uint32(int32(int8(s.DMEM[(rs+in.simm())&dmemMask]))))
	case asm.OpLbu:
		s.setGPR(in.rt(), uint32(s.DMEM[(rs+in.simm())&dmemMask]))
	case asm.OpLh:
		s.setGPR(in.rt(), uint32(int32(int16(s.ReadDMEM16(rs+in.simm())))))
	case asm.OpLhu:
		s.setGPR(in.rt(), uint32(s.ReadDMEM16(rs+in.simm())))
	case asm.OpLw:
		s.setGPR(in.rt(), s.ReadDMEM32(rs+in.simm()))
	case asm.OpSb:
		s.DMEM[(rs+in.simm())&dmemMask] = byte(rt)
	case asm.OpSh:
		s.WriteDMEM16(rs+in.simm(), uint16(rt))
	case asm.OpSw:
		s.WriteDMEM32(rs+in.simm(), rt)
	case asm.OpLwc2:
		return i.executeVectorLoad(in)
	case asm.OpSwc2:
		return i.executeVectorStore(in)
	default:
		return false
	}

	return true
}

func (i *Interpreter) executeSpecial(in instruction, pc uint32) bool {
	s := i.state
	rs, rt := s.GPR[in.rs()], s.GPR[in.rt()]

	switch in.funct() {
	case asm.FnSll:
		s.setGPR(in.rd(), rt<<in.sa())
	case asm.FnSrl:
		s.setGPR(in.rd(), rt>>in.sa())
	case asm.FnSra:
		s.setGPR(in.rd(), uint32(int32(rt)>>in.sa()))
	case asm.FnSllv:
		s.setGPR(in.rd(), rt<<(rs&31))
	case asm.FnSrlv:
		s.setGPR(in.rd(), rt>>(rs&31))
	case asm.FnSrav:
		s.setGPR(in.rd(), uint32(int32(rt)>>(rs&31)))
	case asm.FnJr:
		i.jump(rs)
	case asm.FnJalr:
		i.link(in.rd(), pc)
		i.jump(rs)
	case asm.FnBreak:
		s.Status |= rsp.StatusHalted | rsp.StatusBroke
	case asm.FnAdd, asm.FnAddu:
		s.setGPR(in.rd(), rs+rt)
	case asm.FnSub, asm.FnSubu:
		s.setGPR(in.rd(), rs-rt)
	case asm.FnAnd:
		s.setGPR(in.rd(), rs&rt)
	case asm.FnOr:
		s.setGPR(in.rd(), rs|rt)
	case asm.FnXor:
		s.setGPR(in.rd(), rs^rt)
	case asm.FnNor:
		s.setGPR(in.rd(), ^(rs | rt))
	case asm.FnSlt:
		s.setGPR(in.rd(), boolToWord(int32(rs) < int32(rt)))
	case asm.FnSltu:
		s.setGPR(in.rd(), boolToWord(rs < rt))
	default:
		// Traps (TNE and friends) and multiply/divide do not exist on this core
		return false
	}

	return true
}

func (i *Interpreter) executeCop0(in instruction) bool {
	s := i.state

	if uint32(in)&(1<<asm.Cop0CoBit) != 0 {
		// No exception model: ERET, TLB ops and the rest of the CO=1 space are reserved
		return false
	}

	reg := rsp.Cop0Register(in.rd() & 0xf)

	switch in.rs() {
	case asm.CopMf:
		s.setGPR(in.rt(), s.ReadCop0(reg))
	case asm.CopMt:
		s.WriteCop0(reg, s.GPR[in.rt()])
	default:
		return false
	}

	return true
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
