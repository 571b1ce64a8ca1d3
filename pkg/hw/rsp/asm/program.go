package asm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// InstructionBytes is the width of one encoded instruction
const InstructionBytes = 4

// Program represents a sequence of encoded instructions
type Program struct {
	words []uint32
}

// NewProgram creates a new empty program
func NewProgram() *Program {
	return &Program{
		words: make([]uint32, 0),
	}
}

// Add appends instructions to the program
func (p *Program) Add(words ...uint32) *Program {
	p.words = append(p.words, words...)
	return p
}

// Here returns the index the next added instruction will have
func (p *Program) Here() int {
	return len(p.words)
}

// BranchOffset computes the offset operand of a branch placed at index from targeting index to
func BranchOffset(from int, to int) int16 {
	return int16(to - (from + 1))
}

// Len returns the number of instructions in the program
func (p *Program) Len() int {
	return len(p.words)
}

// At returns the instruction at the given index
func (p *Program) At(index int) uint32 {
	return p.words[index]
}

// Words returns a copy of the encoded instructions
func (p *Program) Words() []uint32 {
	return append([]uint32(nil), p.words...)
}

// Bytes returns the big-endian binary image of the program
func (p *Program) Bytes() []byte {
	result := make([]byte, len(p.words)*InstructionBytes)

	for i, word := range p.words {
		binary.BigEndian.PutUint32(result[i*InstructionBytes:], word)
	}

	return result
}

// String returns a listing of the program
func (p *Program) String() string {
	var builder strings.Builder

	for i, word := range p.words {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(fmt.Sprintf("%04x: %08x", i*InstructionBytes, word))
	}

	return builder.String()
}
