package emulator

import (
	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
)

// DMA register fields
const (
	dmaMemAddrMask  = 0x1ff8
	dmaDRAMAddrMask = 0xfffff8
	dmaIMEMBit      = 0x1000
)

// peekCop0 returns a COP0 register without read side effects
func (s *CPUState) peekCop0(r rsp.Cop0Register) uint32 {
	switch r {
	case rsp.Cop0DMASPAddr:
		return s.DMAMemAddr
	case rsp.Cop0DMARAMAddr:
		return s.DMADRAMAddr
	case rsp.Cop0DMARead:
		return s.DMAReadLen
	case rsp.Cop0DMAWrite:
		return s.DMAWriteLen
	case rsp.Cop0SPStatus:
		return s.Status
	case rsp.Cop0DMAFull, rsp.Cop0DMABusy:
		// DMA transfers complete immediately
		return 0
	case rsp.Cop0Semaphore:
		return s.Semaphore
	case rsp.Cop0DPStart:
		return s.DPStart
	case rsp.Cop0DPEnd:
		return s.DPEnd
	case rsp.Cop0DPCurrent:
		return s.DPCurrent
	case rsp.Cop0DPStatus:
		return s.DPStatus
	case rsp.Cop0DPClock:
		return s.DPClock
	case rsp.Cop0DPBusy:
		return s.DPBufBusy
	case rsp.Cop0DPPipeBusy:
		return s.DPPipeBusy
	case rsp.Cop0DPTMemBusy:
		return s.DPTMemBusy
	default:
		return 0
	}
}

// ReadCop0 returns a COP0 register as MFC0 (or a host read) sees it.
// Reading the semaphore acquires it.
func (s *CPUState) ReadCop0(r rsp.Cop0Register) uint32 {
	value := s.peekCop0(r)

	if r == rsp.Cop0Semaphore {
		s.Semaphore = 1
	}

	return value
}

// WriteCop0 performs an MTC0 (or a host write) to a COP0 register
func (s *CPUState) WriteCop0(r rsp.Cop0Register, value uint32) {
	switch r {
	case rsp.Cop0DMASPAddr:
		s.DMAMemAddr = value & dmaMemAddrMask
	case rsp.Cop0DMARAMAddr:
		s.DMADRAMAddr = value & dmaDRAMAddrMask
	case rsp.Cop0DMARead:
		s.DMAReadLen = value
		s.dma(false, value)
	case rsp.Cop0DMAWrite:
		s.DMAWriteLen = value
		s.dma(true, value)
	case rsp.Cop0SPStatus:
		s.Status = rsp.ApplyStatusWrite(s.Status, value)
	case rsp.Cop0Semaphore:
		s.Semaphore = 0
	case rsp.Cop0DPStart:
		s.DPStart = value & dmaDRAMAddrMask
		s.DPCurrent = s.DPStart
	case rsp.Cop0DPEnd:
		s.DPEnd = value & dmaDRAMAddrMask
	case rsp.Cop0DPStatus:
		// Write bits of DP_STATUS only affect the display pipeline, which is not modelled
	default:
		// read-only
	}
}

// dma performs a DMA transfer between SP memory and RDRAM described by a length register value:
// bits 0-11 length-1, bits 12-19 count-1, bits 20-31 RDRAM skip after each row.
func (s *CPUState) dma(toRDRAM bool, lengthReg uint32) {
	length := (lengthReg&0xfff | 7) + 1
	count := (lengthReg>>12)&0xff + 1
	skip := (lengthReg >> 20) & 0xff8

	bank := s.DMEM[:]
	if s.DMAMemAddr&dmaIMEMBit != 0 {
		bank = s.IMEM[:]
	}

	mem := s.DMAMemAddr & 0xff8
	dram := s.DMADRAMAddr

	for row := uint32(0); row < count; row++ {
		for i := uint32(0); i < length; i++ {
			spAddr := (mem + i) & dmemMask
			rdAddr := dram + i

			if toRDRAM {
				if int(rdAddr) < len(s.RDRAM) {
					s.RDRAM[rdAddr] = bank[spAddr]
				}
			} else {
				var value byte
				if int(rdAddr) < len(s.RDRAM) {
					value = s.RDRAM[rdAddr]
				}
				bank[spAddr] = value
			}
		}

		mem = (mem + length) & dmemMask
		dram = (dram + length + skip) & dmaDRAMAddrMask
	}

	s.DMAMemAddr = (s.DMAMemAddr & dmaIMEMBit) | mem
	s.DMADRAMAddr = dram

	// After a transfer the length registers read back with count cleared and the length field at its maximum
	done := skip<<20 | 0xff8
	s.DMAReadLen = done
	s.DMAWriteLen = done
}

// tick advances the free running display pipeline counters once per executed instruction
func (s *CPUState) tick() {
	s.Cycles++
	s.DPClock = (s.DPClock + 1) & 0xffffff
	s.DPPipeBusy = (s.DPPipeBusy + 3) & 0xffffff
}
