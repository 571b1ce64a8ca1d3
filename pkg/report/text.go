// Package report renders harness results: the terminal summary, JSON documents, diff trees,
// HTML charts and comparisons between runs.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/fatih/color"
)

var (
	colorHeader  = color.New(color.FgWhite, color.Bold, color.Underline)
	colorPassed  = color.New(color.FgGreen)
	colorFailed  = color.New(color.FgRed, color.Bold)
	colorTimeout = color.New(color.FgYellow)
	colorHex     = color.New(color.FgMagenta)
	colorChanged = color.New(color.FgCyan, color.Bold)
	colorDim     = color.New(color.FgHiBlack)
)

// Printer writes human readable results as the run progresses
type Printer struct {
	out     io.Writer
	verbose bool
}

// NewPrinter returns a printer writing to out. A verbose printer prints every trial,
// otherwise only trials with genuine differences or timeouts are printed.
func NewPrinter(out io.Writer, verbose bool) *Printer {
	return &Printer{out: out, verbose: verbose}
}

// Outcome is the word describing how a trial ended
func Outcome(status harness.TerminalStatus) string {
	switch status {
	case harness.StatusPass:
		return "passed"
	case harness.StatusFail:
		return "failed"
	case harness.StatusTimedOut:
		return "timed out"
	case harness.StatusBroke:
		return "stopped on break"
	case harness.StatusHalted:
		return "halted"
	default:
		return status.String()
	}
}

func outcomeColor(trial *harness.TrialResult) *color.Color {
	switch {
	case trial.TimedOut():
		return colorTimeout
	case trial.Passed:
		return colorPassed
	default:
		return colorFailed
	}
}

// Trial prints the outcome of one trial
func (p *Printer) Trial(tc harness.TestCase, trial *harness.TrialResult) {
	if !p.verbose && trial.Passed && !trial.TimedOut() {
		return
	}

	fmt.Fprintf(p.out, "%s trial %d candidate %s seed 0x%08x\n",
		tc.Label, trial.Index, colorHex.Sprintf("0x%08x", trial.Candidate), trial.Seed)

	if trial.Diff != nil {
		p.Fields(trial.Diff)
		p.Cop0Table(trial.Diff.Cop0)
	}

	fmt.Fprintf(p.out, "Found %d diffs (not including %d ignored)\n", trial.DiffCount, trial.IgnoredCount)
	outcomeColor(trial).Fprintf(p.out, "Test %s", Outcome(trial.Status))
	fmt.Fprintf(p.out, " after %d ms\n", trial.Elapsed.Milliseconds())
}

// Fields prints the differing fields of a trial
func (p *Printer) Fields(diff *harness.DiffReport) {
	for _, field := range diff.Fields {
		line := fmt.Sprintf("  %-18s %s -> %s (%d bytes)", field.Name, field.Before, field.After, field.Bytes)

		if field.Ignored {
			colorDim.Fprintln(p.out, line+" ignored")
		} else {
			fmt.Fprintln(p.out, line)
		}
	}
}

// Cop0Table prints the before/after COP0 table, marking changed registers
func (p *Printer) Cop0Table(rows []harness.Cop0Row) {
	if len(rows) == 0 {
		return
	}

	fmt.Fprintln(p.out, "  before vs after")

	for _, row := range rows {
		line := fmt.Sprintf("[%18s (%02d)] 0x%08x 0x%08x", "COP0_"+row.Register, row.Index, row.Before, row.After)

		switch {
		case row.Changed() && row.Ignored:
			colorDim.Fprintln(p.out, line+" <--")
		case row.Changed():
			colorChanged.Fprintln(p.out, line+" <--")
		default:
			fmt.Fprintln(p.out, line)
		}
	}
}

// Summary prints one line per case
func (p *Printer) Summary(report *harness.Report) {
	fmt.Fprintln(p.out)
	colorHeader.Fprintf(p.out, "[%2s] %-20s %10s %10s %6s %8s\n", "id", "name", "instr", "mask", "failed", "diffs")

	for i := range report.Cases {
		result := &report.Cases[i]

		mask := ""
		if result.Case.Mask != 0 {
			mask = fmt.Sprintf("0x%08x", result.Case.Mask)
		}

		line := fmt.Sprintf("[%2d] %-20s 0x%08x %10s %6s %8d",
			result.Index,
			truncate(result.Case.Label, 20),
			result.Case.Encoding,
			mask,
			fmt.Sprintf("%d/%d", result.TrialsFailed, result.TrialsRun),
			result.TotalDiffs,
		)

		switch {
		case result.TrialsTimedOut > 0:
			colorTimeout.Fprintf(p.out, "%s  %d timed out\n", line, result.TrialsTimedOut)
		case result.Passed():
			colorPassed.Fprintln(p.out, line)
		default:
			colorFailed.Fprintln(p.out, line)
		}
	}

	run, failed, timedOut, diffs := report.Totals()
	fmt.Fprintf(p.out, "\n%d cases, %d trials, %d failed, %d timed out, %d diffs in %s\n",
		len(report.Cases), run, failed, timedOut, diffs, report.Elapsed.Round(1e6))
}

// Observer returns a driver event callback printing trials as they finish and the summary at
// the end of the run
func (p *Printer) Observer() harness.EventCallback {
	return func(event harness.Event, progress *harness.Progress) bool {
		switch event {
		case harness.EventCaseStarted:
			if p.verbose {
				fmt.Fprintf(p.out, "Running %s, %d trials\n", progress.Case.Case, progress.Total)
			}
		case harness.EventTrialFinished:
			p.Trial(progress.Case.Case, progress.Trial)
		case harness.EventRunFinished:
			p.Summary(progress.Report)
		}

		return true
	}
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}

	return s[:width-1] + "~"
}

// Histogram formats a class or field histogram as "key=count" pairs in key order
func Histogram(histogram map[string]int) string {
	keys := sortedKeys(histogram)
	parts := make([]string, 0, len(keys))

	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", key, histogram[key]))
	}

	return strings.Join(parts, " ")
}
