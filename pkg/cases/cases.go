// Package cases holds the test case tables fed to the harness: the builtin table and YAML case files.
package cases

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp/asm"
	"github.com/Manu343726/rspdiff/pkg/utils"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidEncoding = errors.New("invalid instruction encoding")
	ErrInvalidMask     = errors.New("invalid mask")
	ErrInvalidCase     = errors.New("invalid test case")
)

// Builtin returns the default case table
func Builtin() []harness.TestCase {
	return []harness.TestCase{
		{Label: "li $1, 0x8888", Encoding: 0x34018888},
		{Label: "tne a3,a3,0x1f2", Encoding: 0x00e77cb6},
		{Label: "li $0, 0x8888", Encoding: 0x34008888},
		{Label: "ERET", Encoding: asm.Cop0(3, 123123)},
		{Label: "cop0 invalid fn", Encoding: asm.Cop0(0x3f, 0), Mask: asm.Cop0ArgMask},
	}
}

// Entry is a case as written in a case file
type Entry struct {
	Label    string `yaml:"label"`
	Encoding string `yaml:"encoding"`
	Mask     string `yaml:"mask,omitempty"`
	Trials   int    `yaml:"trials,omitempty"`
}

// File is the top level document of a case file
type File struct {
	Cases []Entry `yaml:"cases"`
}

var helperPattern = regexp.MustCompile(`^(\w+)\s*\(\s*([^,\s]+)\s*,\s*([^,\s]+)\s*\)$`)

// ParseEncoding parses an instruction encoding: a number in any Go literal base, or one of the
// helper expressions cop0(function, arg) and li(rt, imm)
func ParseEncoding(text string) (uint32, error) {
	text = strings.TrimSpace(text)

	if match := helperPattern.FindStringSubmatch(text); match != nil {
		a, err := utils.ParseUint32(match[2])
		if err != nil {
			return 0, utils.MakeError(ErrInvalidEncoding, "'%s': %v", text, err)
		}

		b, err := utils.ParseUint32(match[3])
		if err != nil {
			return 0, utils.MakeError(ErrInvalidEncoding, "'%s': %v", text, err)
		}

		switch strings.ToLower(match[1]) {
		case "cop0":
			return asm.Cop0(a, b), nil
		case "li":
			if a > 31 || b > 0xffff {
				return 0, utils.MakeError(ErrInvalidEncoding, "'%s': operands out of range", text)
			}
			return asm.Li(a, uint16(b)), nil
		default:
			return 0, utils.MakeError(ErrInvalidEncoding, "unknown helper '%s'", match[1])
		}
	}

	value, err := utils.ParseUint32(text)
	if err != nil {
		return 0, utils.MakeError(ErrInvalidEncoding, "'%s': %v", text, err)
	}

	return value, nil
}

// ParseMask parses a mutable-bits mask: named masks and numbers joined with '|'. Empty means no mask
func ParseMask(text string) (uint32, error) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	var mask uint32

	for _, term := range strings.Split(text, "|") {
		if value, err := utils.ParseUint32(term); err == nil {
			mask |= value
			continue
		}

		value, err := asm.Mask(term)
		if err != nil {
			return 0, utils.MakeError(ErrInvalidMask, "'%s': %v", text, err)
		}

		mask |= value
	}

	return mask, nil
}

// FromEntry converts a case file entry
func FromEntry(entry Entry) (harness.TestCase, error) {
	encoding, err := ParseEncoding(entry.Encoding)
	if err != nil {
		return harness.TestCase{}, err
	}

	mask, err := ParseMask(entry.Mask)
	if err != nil {
		return harness.TestCase{}, err
	}

	if entry.Trials < 0 {
		return harness.TestCase{}, utils.MakeError(ErrInvalidCase, "'%s' has a negative trial count", entry.Label)
	}

	label := entry.Label
	if label == "" {
		label = fmt.Sprintf("0x%08x", encoding)
	}

	return harness.TestCase{
		Label:    label,
		Encoding: encoding,
		Mask:     mask,
		Trials:   entry.Trials,
	}, nil
}

// ToEntry converts a case into its case file form
func ToEntry(tc harness.TestCase) Entry {
	entry := Entry{
		Label:    tc.Label,
		Encoding: fmt.Sprintf("0x%08x", tc.Encoding),
		Trials:   tc.Trials,
	}

	if tc.Mask != 0 {
		entry.Mask = fmt.Sprintf("0x%08x", tc.Mask)
	}

	return entry
}

// Parse decodes a YAML case file
func Parse(data []byte) ([]harness.TestCase, error) {
	var file File

	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, utils.MakeError(ErrInvalidCase, "%v", err)
	}

	if len(file.Cases) == 0 {
		return nil, utils.MakeError(ErrInvalidCase, "no cases")
	}

	result := make([]harness.TestCase, 0, len(file.Cases))

	for i, entry := range file.Cases {
		tc, err := FromEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}

		result = append(result, tc)
	}

	return result, nil
}

// Load reads a YAML case file. An empty path returns the builtin table
func Load(path string) ([]harness.TestCase, error) {
	if path == "" {
		return Builtin(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Marshal encodes cases as a YAML case file
func Marshal(cases []harness.TestCase) ([]byte, error) {
	file := File{Cases: make([]Entry, 0, len(cases))}

	for _, tc := range cases {
		file.Cases = append(file.Cases, ToEntry(tc))
	}

	return yaml.Marshal(&file)
}
