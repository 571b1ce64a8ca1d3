package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/Manu343726/rspdiff/cmd/settings"
	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/Manu343726/rspdiff/pkg/report"
	"github.com/Manu343726/rspdiff/pkg/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var replayCmd = &cobra.Command{
	Use:   "replay <case> <trial>",
	Short: "Replay an archived trial",
	Long: `Runs an archived trial again, from the same garbage seed and with the same candidate, and
checks the outcome matches the archived one. Trials are archived by 'rspdiff run --store'.

Use the same --ignore list as the archived run, otherwise diff counts are not comparable.`,
	Args:   cobra.ExactArgs(2),
	PreRun: bindFlags,
	Run:    runReplay,
}

func init() {
	ToolsCmd.AddCommand(replayCmd)
	settings.AddHarnessFlags(replayCmd.Flags())
	replayCmd.Flags().String(settings.KeyStore, "", "Trial archive written by 'rspdiff run --store'")
}

func parseTrialRef(caseArg, trialArg string) (int, int, error) {
	caseIndex, err := strconv.Atoi(caseArg)
	if err != nil || caseIndex < 0 {
		return 0, 0, fmt.Errorf("invalid case index '%s'", caseArg)
	}

	trialIndex, err := strconv.Atoi(trialArg)
	if err != nil || trialIndex < 0 {
		return 0, 0, fmt.Errorf("invalid trial index '%s'", trialArg)
	}

	return caseIndex, trialIndex, nil
}

// Replay runs an archived trial again on a fresh emulated coprocessor
func Replay(ctx context.Context, archive *store.Archive, caseIndex, trialIndex int) (*store.Record, *harness.TrialResult, error) {
	record, err := archive.GetTrial(caseIndex, trialIndex)
	if err != nil {
		return nil, nil, err
	}

	dev, driver, err := settings.NewHarness(slog.Default())
	if err != nil {
		return record, nil, err
	}
	defer dev.Close()

	result, err := driver.RunTrial(ctx, record.Trial.Index, record.Trial.Seed, record.Trial.Candidate)
	return record, result, err
}

// Reproduced reports whether a replayed trial matches the archived one
func Reproduced(archived *harness.TrialResult, replayed *harness.TrialResult) bool {
	return archived.Status == replayed.Status &&
		archived.DiffCount == replayed.DiffCount &&
		archived.IgnoredCount == replayed.IgnoredCount
}

func printReplay(record *store.Record, result *harness.TrialResult) bool {
	report.NewPrinter(os.Stdout, true).Trial(record.Case, result)

	if Reproduced(&record.Trial, result) {
		color.Green("reproduced: %s, %d diffs", record.Trial.Status, record.Trial.DiffCount)
		return true
	}

	color.Red("not reproduced: archived %s with %d diffs (%d ignored), replayed %s with %d diffs (%d ignored)",
		record.Trial.Status, record.Trial.DiffCount, record.Trial.IgnoredCount,
		result.Status, result.DiffCount, result.IgnoredCount)
	return false
}

func openArchive() (*store.Archive, error) {
	path := viper.GetString(settings.KeyStore)
	if path == "" {
		return nil, fmt.Errorf("no archive given, use --store")
	}

	return store.Open(path)
}

func runReplay(cmd *cobra.Command, args []string) {
	caseIndex, trialIndex, err := parseTrialRef(args[0], args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	archive, err := openArchive()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	record, result, err := Replay(cmd.Context(), archive, caseIndex, trialIndex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		archive.Close()
		os.Exit(2)
	}

	if !printReplay(record, result) {
		archive.Close()
		os.Exit(1)
	}
}
