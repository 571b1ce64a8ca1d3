package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodings(t *testing.T) {
	cases := []struct {
		name     string
		encoded  uint32
		expected uint32
	}{
		{"li $0, 0x1234", Addiu(0, 0, 0x1234), 0x24001234},
		{"li $1, 0x8888", Li(1, 0x8888), 0x34018888},
		{"li $0, 0x8888", Li(0, 0x8888), 0x34008888},
		{"tne a3,a3,0x1f2", Tne(7, 7, 0x1f2), 0x00e77cb6},
		{"eret-like cop0", Cop0(3, 123123), 0x42000000 | 3 | (123123&0x7ffff)<<6},
		{"break", Break(0), 0x0000000d},
		{"mtc0 $1, $c2", Mtc0(1, 2), 0x40811000},
		{"mfc0 $1, $c6", Mfc0(1, 6), 0x40013000},
		{"lw $31, 124($0)", Lw(31, 124, 0), 0x8c1f007c},
		{"lqv $v1[0], 0x90($0)", Lqv(1, 0, 9, 0), 0xc8012009},
		{"vmudn $v31, $v1, $v0[0]", Vector(VfMudn, 31, 1, 0, 8), 0x4b0008c6 | 31<<6},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, c.encoded, "got 0x%08x", c.encoded)
		})
	}
}

func TestCop0FieldsAreMasked(t *testing.T) {
	assert.Equal(t, Cop0(0x3f, 0x7ffff), Cop0(0xff, 0xfffff))
	assert.Equal(t, uint32(0x42000000), Cop0(0, 0)&^Cop0ArgMask)
}

func TestMask(t *testing.T) {
	mask, err := Mask("cop0-arg")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01ffffc0), mask)

	mask, err = Mask(" RT ")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x001f0000), mask)

	_, err = Mask("nope")
	assert.ErrorIs(t, err, ErrUnknownMask)

	assert.Contains(t, MaskNames(), "imm")
}

func TestProgram(t *testing.T) {
	p := NewProgram().Add(Nop(), Addiu(0, 0, 0x1234)).Add(Break(0))

	assert.Equal(t, 3, p.Len())
	assert.Equal(t, uint32(0x24001234), p.At(1))
	assert.Equal(t, []byte{
		0x00, 0x00, 0x00, 0x00,
		0x24, 0x00, 0x12, 0x34,
		0x00, 0x00, 0x00, 0x0d,
	}, p.Bytes())
	assert.Contains(t, p.String(), "0004: 24001234")
}

func TestBranchOffset(t *testing.T) {
	// a branch at 5 jumping back to 3 skips its own delay slot: 3 - 6
	assert.Equal(t, int16(-3), BranchOffset(5, 3))
	assert.Equal(t, int16(0), BranchOffset(5, 6))
}

func TestPrettyPrint(t *testing.T) {
	out, err := PrettyPrint(Cop0(3, 0), Cop0ArgMask, 0)
	require.NoError(t, err)

	assert.Contains(t, out, "function=0x03")
	assert.Contains(t, out, "arg=0x00000*")
	assert.NotContains(t, out, "(unused)")
}
