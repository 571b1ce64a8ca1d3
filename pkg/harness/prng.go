// Package harness measures the architectural side effects of single coprocessor instructions.
//
// A trial seeds every register file and data memory with pseudo-random garbage, patches the
// candidate instruction into a fixed code image, runs it, and compares byte-exact snapshots
// taken before and after. Differences are mapped to named fields and filtered through an
// ignore-list of fields known to change on their own.
package harness

import "encoding/binary"

// GarbageBlockSize is the number of pseudo-random bytes loaded into the coprocessor before each trial
const GarbageBlockSize = 4096

// zeroSeedReplacement is used instead of a zero seed, which would make xorshift emit zeros forever
const zeroSeedReplacement = 0x9e3779b9

// PRNG is a xorshift32 generator. The zero value is ready to use and behaves as NewPRNG(0).
type PRNG struct {
	state uint32
}

func NewPRNG(seed uint32) PRNG {
	if seed == 0 {
		seed = zeroSeedReplacement
	}

	return PRNG{state: seed}
}

// Next advances the generator and returns the new state
func (p *PRNG) Next() uint32 {
	x := p.state
	if x == 0 {
		x = zeroSeedReplacement
	}

	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5

	p.state = x
	return x
}

// State returns the current generator state. NewPRNG(p.State()) continues the same sequence
func (p PRNG) State() uint32 {
	return p.state
}

// Fill fills dst with generator output, one big-endian word at a time
func (p *PRNG) Fill(dst []byte) {
	var word [4]byte

	for i := 0; i < len(dst); i += 4 {
		binary.BigEndian.PutUint32(word[:], p.Next())
		copy(dst[i:], word[:])
	}
}

// GarbageBlock returns the deterministic block of pseudo-random bytes for a seed
func GarbageBlock(seed uint32) []byte {
	block := make([]byte, GarbageBlockSize)
	prng := NewPRNG(seed)
	prng.Fill(block)
	return block
}

// Mutate randomizes the bits of base selected by mask, leaving every other bit untouched
func Mutate(base uint32, mask uint32, prng *PRNG) uint32 {
	if mask == 0 {
		return base
	}

	return (base &^ mask) | (prng.Next() & mask)
}
