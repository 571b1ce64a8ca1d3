package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

var ErrInvalidReport = errors.New("invalid report")

// WriteJSON writes report as an indented JSON document
func WriteJSON(w io.Writer, report *harness.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// SaveJSON writes report to a file
func SaveJSON(path string, report *harness.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := WriteJSON(file, report); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

// LoadJSON reads a report written by SaveJSON
func LoadJSON(path string) (*harness.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var report harness.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidReport, path, err)
	}

	return &report, nil
}

// Comparison is the structural difference between two reports
type Comparison struct {
	Modified bool
	// Cases whose totals differ, by label
	Changed  []string

	diff gojsondiff.Diff
	left map[string]any
}

// Format renders the comparison as an annotated JSON listing of the left report
func (c *Comparison) Format(coloring bool) (string, error) {
	if !c.Modified {
		return "", nil
	}

	ascii := formatter.NewAsciiFormatter(c.left, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       coloring,
	})

	return ascii.Format(c.diff)
}

// comparedReport strips the fields that change between otherwise identical runs
type comparedReport struct {
	Seed   uint32         `json:"seed"`
	Trials int            `json:"trials"`
	Ignore []string       `json:"ignore"`
	Cases  []comparedCase `json:"cases"`
}

type comparedCase struct {
	Label          string         `json:"label"`
	Encoding       string         `json:"encoding"`
	Mask           string         `json:"mask"`
	TrialsRun      int            `json:"trials_run"`
	TrialsFailed   int            `json:"trials_failed"`
	TrialsTimedOut int            `json:"trials_timed_out"`
	TotalDiffs     int            `json:"total_diffs"`
	ClassHistogram map[string]int `json:"class_histogram,omitempty"`
	FieldHistogram map[string]int `json:"field_histogram,omitempty"`
}

func toComparable(report *harness.Report) comparedReport {
	result := comparedReport{
		Seed:   report.Seed,
		Trials: report.Trials,
		Ignore: report.Ignore,
	}

	for _, c := range report.Cases {
		result.Cases = append(result.Cases, comparedCase{
			Label:          c.Case.Label,
			Encoding:       fmt.Sprintf("0x%08x", c.Case.Encoding),
			Mask:           fmt.Sprintf("0x%08x", c.Case.Mask),
			TrialsRun:      c.TrialsRun,
			TrialsFailed:   c.TrialsFailed,
			TrialsTimedOut: c.TrialsTimedOut,
			TotalDiffs:     c.TotalDiffs,
			ClassHistogram: c.ClassHistogram,
			FieldHistogram: c.FieldHistogram,
		})
	}

	return result
}

// Compare diffs the outcome of two runs, ignoring timing
func Compare(left, right *harness.Report) (*Comparison, error) {
	a, err := json.Marshal(toComparable(left))
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(toComparable(right))
	if err != nil {
		return nil, err
	}

	diff, err := gojsondiff.New().Compare(a, b)
	if err != nil {
		return nil, err
	}

	comparison := &Comparison{
		Modified: diff.Modified(),
		diff:     diff,
	}

	if err := json.Unmarshal(a, &comparison.left); err != nil {
		return nil, err
	}

	comparison.Changed = changedCases(left, right)
	return comparison, nil
}

func changedCases(left, right *harness.Report) []string {
	totals := func(report *harness.Report) map[string][3]int {
		result := make(map[string][3]int, len(report.Cases))
		for _, c := range report.Cases {
			result[c.Case.Label] = [3]int{c.TrialsFailed, c.TrialsTimedOut, c.TotalDiffs}
		}
		return result
	}

	a, b := totals(left), totals(right)
	var changed []string

	for label, counts := range a {
		if other, ok := b[label]; !ok || other != counts {
			changed = append(changed, label)
		}
	}

	for label := range b {
		if _, ok := a[label]; !ok {
			changed = append(changed, label)
		}
	}

	sort.Strings(changed)
	return changed
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys
}
