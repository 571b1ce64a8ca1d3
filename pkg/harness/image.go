package harness

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp/asm"
	"github.com/Manu343726/rspdiff/pkg/utils"
)

// Sentinel is the placeholder instruction marking where candidates are patched: addiu $0, $0, 0x1234
const Sentinel uint32 = 0x24001234

// CacheLineSize is the granularity of host cache maintenance over the code image
const CacheLineSize = 16

// CacheSync writes back and invalidates the host cache lines covering region.
// It must complete before the image is reloaded into instruction memory.
type CacheSync func(region []byte) error

// CodeImage is the executable image the candidate instruction is injected into.
// Patching is two-phase: Patch edits the host copy, Publish makes it visible to instruction fetch.
type CodeImage struct {
	code       []byte
	size       int
	loadOffset uint32
	sentinel   int
	dirty      bool

	// Cache maintenance hook run by Publish. Nil means the host copy needs no maintenance
	Sync CacheSync
}

// NewCodeImage wraps a copy of code to be loaded at loadOffset within IMEM.
// The host copy is padded with zeros up to a whole number of cache lines.
func NewCodeImage(code []byte, loadOffset uint32) *CodeImage {
	padded := make([]byte, utils.AlignUp(len(code), CacheLineSize))
	copy(padded, code)

	return &CodeImage{
		code:       padded,
		size:       len(code),
		loadOffset: loadOffset,
		sentinel:   -1,
		dirty:      true,
	}
}

// TestImage returns the default image: the candidate runs between two no-ops and the image ends with BREAK.
// The trailing no-op fills the delay slot when the candidate is a taken branch.
func TestImage() *CodeImage {
	program := asm.NewProgram().Add(
		asm.Nop(),
		Sentinel,
		asm.Nop(),
		asm.Break(0),
		asm.Nop(),
	)

	return NewCodeImage(program.Bytes(), 0)
}

// LocateSentinel finds the unique word-aligned occurrence of sentinel and remembers its byte offset
func (c *CodeImage) LocateSentinel(sentinel uint32) (int, error) {
	if uint64(c.loadOffset)+uint64(c.size) > rsp.IMEMSize {
		return -1, utils.MakeError(ErrImplausibleImage, "%d bytes at 0x%03x do not fit in imem", c.size, c.loadOffset)
	}

	if c.loadOffset%asm.InstructionBytes != 0 {
		return -1, utils.MakeError(ErrImplausibleImage, "misaligned load offset 0x%03x", c.loadOffset)
	}

	found := -1

	for offset := 0; offset+asm.InstructionBytes <= c.size; offset += asm.InstructionBytes {
		if binary.BigEndian.Uint32(c.code[offset:]) != sentinel {
			continue
		}

		if found >= 0 {
			return -1, utils.MakeError(ErrAmbiguousSentinel, "0x%08x at 0x%04x and 0x%04x", sentinel, found, offset)
		}

		found = offset
	}

	if found < 0 {
		return -1, utils.MakeError(ErrSentinelNotFound, "0x%08x in %d bytes", sentinel, c.size)
	}

	if found+asm.InstructionBytes >= c.size {
		return -1, utils.MakeError(ErrImplausibleImage, "sentinel is the last instruction of the image")
	}

	c.sentinel = found
	return found, nil
}

// SentinelOffset returns the byte offset of the located sentinel, or -1
func (c *CodeImage) SentinelOffset() int {
	return c.sentinel
}

// Patch overwrites the sentinel slot with instr. The image must be published before it runs again.
func (c *CodeImage) Patch(instr uint32) error {
	if c.sentinel < 0 {
		return utils.MakeError(ErrSentinelNotFound, "patch before locating the sentinel")
	}

	binary.BigEndian.PutUint32(c.code[c.sentinel:], instr)
	c.dirty = true
	return nil
}

// Instruction returns the word currently in the sentinel slot
func (c *CodeImage) Instruction() uint32 {
	if c.sentinel < 0 {
		return 0
	}

	return binary.BigEndian.Uint32(c.code[c.sentinel:])
}

// Publish writes back the cache lines covering the image and reloads it into instruction memory
func (c *CodeImage) Publish(dev rsp.Coprocessor) error {
	if c.Sync != nil {
		if err := c.Sync(c.code[:utils.AlignUp(c.size, CacheLineSize)]); err != nil {
			return utils.MakeError(err, "cache writeback")
		}
	}

	if err := dev.LoadCode(c.code[:c.size], c.loadOffset); err != nil {
		return utils.MakeError(err, "loading code image")
	}

	c.dirty = false
	return nil
}

// Dirty reports whether the host copy has changes instruction memory does not have yet
func (c *CodeImage) Dirty() bool {
	return c.dirty
}

func (c *CodeImage) Bytes() []byte {
	return c.code[:c.size]
}

func (c *CodeImage) LoadOffset() uint32 {
	return c.loadOffset
}

// Hexdump returns a canonical hex dump of the host copy
func (c *CodeImage) Hexdump() string {
	return hex.Dump(c.code[:c.size])
}
