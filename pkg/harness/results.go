package harness

import (
	"fmt"
	"time"
)

// DefaultTrials is the number of trials run for cases with a non-zero mask
const DefaultTrials = 100

// TestCase is one candidate instruction family: the bits of Encoding selected by Mask are
// randomized on every trial. A zero mask runs exactly one trial.
type TestCase struct {
	Label    string `json:"label"`
	Encoding uint32 `json:"encoding"`
	Mask     uint32 `json:"mask"`
	// Trials overrides the configured trial count for masked cases. Zero uses the default
	Trials int `json:"trials,omitempty"`
}

func (c TestCase) String() string {
	if c.Mask == 0 {
		return fmt.Sprintf("%s (0x%08x)", c.Label, c.Encoding)
	}

	return fmt.Sprintf("%s (0x%08x mask 0x%08x)", c.Label, c.Encoding, c.Mask)
}

// TrialResult is the outcome of running one candidate instruction
type TrialResult struct {
	// Index of the trial within its case
	Index int `json:"index"`
	// Garbage block seed
	Seed      uint32         `json:"seed"`
	Candidate uint32         `json:"candidate"`
	Status    TerminalStatus `json:"status"`
	// SP_STATUS when waiting finished
	RawStatus    uint32        `json:"raw_status"`
	Elapsed      time.Duration `json:"elapsed"`
	DiffCount    int           `json:"diff_count"`
	IgnoredCount int           `json:"ignored_count"`
	Passed       bool          `json:"passed"`
	Diff         *DiffReport   `json:"diff,omitempty"`
}

func (r *TrialResult) TimedOut() bool {
	return r.Status == StatusTimedOut
}

// CaseResult aggregates the trials of one test case
type CaseResult struct {
	Index          int            `json:"index"`
	Case           TestCase       `json:"case"`
	TrialsRun      int            `json:"trials_run"`
	TrialsFailed   int            `json:"trials_failed"`
	TrialsTimedOut int            `json:"trials_timed_out"`
	TotalDiffs     int            `json:"total_diffs"`
	TotalIgnored   int            `json:"total_ignored"`
	ClassHistogram map[string]int `json:"class_histogram,omitempty"`
	// Per field count of trials that changed the field
	FieldHistogram map[string]int `json:"field_histogram,omitempty"`
	Elapsed        time.Duration  `json:"elapsed"`
	// First trial with genuine differences, kept with its full diff
	FirstFailure *TrialResult `json:"first_failure,omitempty"`
	Trials       []TrialResult `json:"trials,omitempty"`
}

func NewCaseResult(index int, tc TestCase) *CaseResult {
	return &CaseResult{
		Index:          index,
		Case:           tc,
		ClassHistogram: make(map[string]int),
		FieldHistogram: make(map[string]int),
	}
}

// Accumulate folds a trial into the case totals
func (c *CaseResult) Accumulate(trial *TrialResult) {
	c.TrialsRun++
	c.TotalDiffs += trial.DiffCount
	c.TotalIgnored += trial.IgnoredCount
	c.Elapsed += trial.Elapsed

	if trial.TimedOut() {
		c.TrialsTimedOut++
	}

	if !trial.Passed {
		c.TrialsFailed++

		if c.FirstFailure == nil {
			failure := *trial
			c.FirstFailure = &failure
		}
	}

	if trial.Diff != nil {
		for class, count := range trial.Diff.ByClass {
			c.ClassHistogram[class] += count
		}

		for _, field := range trial.Diff.Fields {
			if !field.Ignored {
				c.FieldHistogram[field.Name]++
			}
		}
	}

	// The full diff stays with the first failure only
	summary := *trial
	summary.Diff = nil
	c.Trials = append(c.Trials, summary)
}

// Passed reports whether no trial of the case produced genuine differences
func (c *CaseResult) Passed() bool {
	return c.TrialsFailed == 0
}

// Report is the result of a whole run
type Report struct {
	Started time.Time     `json:"started"`
	Elapsed time.Duration `json:"elapsed"`
	Seed    uint32        `json:"seed"`
	Trials  int           `json:"trials"`
	Timeout time.Duration `json:"timeout"`
	Ignore  []string      `json:"ignore"`
	Cases   []CaseResult  `json:"cases"`
}

// Totals sums the case results
func (r *Report) Totals() (run, failed, timedOut, diffs int) {
	for _, c := range r.Cases {
		run += c.TrialsRun
		failed += c.TrialsFailed
		timedOut += c.TrialsTimedOut
		diffs += c.TotalDiffs
	}

	return
}
