package cases

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp/asm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	table := Builtin()
	require.Len(t, table, 5)

	assert.Equal(t, uint32(0x34018888), table[0].Encoding)
	assert.Equal(t, uint32(0x00e77cb6), table[1].Encoding)
	assert.Equal(t, uint32(0x34008888), table[2].Encoding)
	assert.Equal(t, uint32(0x42000000|3|(123123&0x7ffff)<<6), table[3].Encoding)
	assert.Equal(t, uint32(0x01ffffc0), table[4].Mask)

	for _, tc := range table[:4] {
		assert.Zero(t, tc.Mask, tc.Label)
	}
}

func TestParseEncoding(t *testing.T) {
	cases := []struct {
		text     string
		expected uint32
	}{
		{"0x34018888", 0x34018888},
		{" 0x00e7_7cb6 ", 0x00e77cb6},
		{"cop0(3, 123123)", asm.Cop0(3, 123123)},
		{"COP0(0x3f,0)", asm.Cop0(0x3f, 0)},
		{"li(1, 0x8888)", 0x34018888},
		{"0", 0},
	}

	for _, c := range cases {
		t.Run(c.text, func(t *testing.T) {
			value, err := ParseEncoding(c.text)
			require.NoError(t, err)
			assert.Equal(t, c.expected, value)
		})
	}

	for _, bad := range []string{"", "0x1_0000_0000", "eret(1, 2)", "li(32, 1)", "cop0(x, 1)"} {
		_, err := ParseEncoding(bad)
		assert.ErrorIs(t, err, ErrInvalidEncoding, bad)
	}
}

func TestParseMask(t *testing.T) {
	mask, err := ParseMask("")
	require.NoError(t, err)
	assert.Zero(t, mask)

	mask, err = ParseMask("cop0-arg")
	require.NoError(t, err)
	assert.Equal(t, asm.Cop0ArgMask, mask)

	mask, err = ParseMask("rt | 0xf")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x001f000f), mask)

	_, err = ParseMask("rt|bogus")
	assert.ErrorIs(t, err, ErrInvalidMask)
}

func TestParse(t *testing.T) {
	data := []byte(`
cases:
  - label: li $1, 0x8888
    encoding: 0x34018888
  - label: eret family
    encoding: cop0(3, 0)
    mask: cop0-arg
    trials: 25
  - encoding: "0x00e77cb6"
`)

	table, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, table, 3)

	assert.Equal(t, harness.TestCase{Label: "li $1, 0x8888", Encoding: 0x34018888}, table[0])
	assert.Equal(t, harness.TestCase{Label: "eret family", Encoding: asm.Cop0(3, 0), Mask: asm.Cop0ArgMask, Trials: 25}, table[1])
	assert.Equal(t, "0x00e77cb6", table[2].Label)

	_, err = Parse([]byte("cases: []"))
	assert.ErrorIs(t, err, ErrInvalidCase)

	_, err = Parse([]byte("cases:\n  - encoding: nope\n"))
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestLoadAndMarshal(t *testing.T) {
	table, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Builtin(), table)

	data, err := Marshal(Builtin())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Builtin(), loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
