package report

import (
	"fmt"

	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/xlab/treeprint"
)

// Tree renders the run as a tree of cases, each with its class and field histograms and the
// fields touched by its first failing trial
func Tree(report *harness.Report) treeprint.Tree {
	run, failed, timedOut, diffs := report.Totals()

	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("run seed 0x%08x: %d trials, %d failed, %d timed out, %d diffs",
		report.Seed, run, failed, timedOut, diffs))

	for i := range report.Cases {
		addCase(tree, &report.Cases[i])
	}

	return tree
}

func addCase(tree treeprint.Tree, result *harness.CaseResult) {
	branch := tree.AddMetaBranch(
		fmt.Sprintf("%d", result.Index),
		fmt.Sprintf("%s 0x%08x: %d/%d failed, %d diffs",
			result.Case.Label, result.Case.Encoding, result.TrialsFailed, result.TrialsRun, result.TotalDiffs),
	)

	if result.TrialsTimedOut > 0 {
		branch.AddNode(fmt.Sprintf("%d timed out", result.TrialsTimedOut))
	}

	if len(result.ClassHistogram) > 0 {
		classes := branch.AddBranch("classes")

		for _, class := range harness.Classes {
			if count, ok := result.ClassHistogram[class]; ok {
				classes.AddMetaNode(count, class)
			}
		}
	}

	if len(result.FieldHistogram) > 0 {
		fields := branch.AddBranch("fields")

		for _, field := range sortedKeys(result.FieldHistogram) {
			fields.AddMetaNode(result.FieldHistogram[field], field)
		}
	}

	if failure := result.FirstFailure; failure != nil {
		first := branch.AddBranch(fmt.Sprintf("first failure: trial %d seed 0x%08x candidate 0x%08x %s",
			failure.Index, failure.Seed, failure.Candidate, Outcome(failure.Status)))

		if failure.Diff != nil {
			for _, field := range failure.Diff.Fields {
				if field.Ignored {
					continue
				}

				first.AddNode(fmt.Sprintf("%s %s -> %s", field.Name, field.Before, field.After))
			}
		}
	}
}
