package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/Manu343726/rspdiff/cmd/settings"
	"github.com/Manu343726/rspdiff/pkg/cases"
	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/Manu343726/rspdiff/pkg/report"
	"github.com/Manu343726/rspdiff/pkg/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	runVerbose   bool
	runJSON      string
	runChart     string
	runTree      bool
	runDashboard bool
)

var runCmd = &cobra.Command{
	Use:   "run [case index...]",
	Short: "Run a case table against the coprocessor",
	Long: `Runs every case of the case table, or only the cases whose indices are given.

Each trial seeds the coprocessor from a pseudo-random garbage block, injects the candidate
instruction, runs it and compares the register file before and after. Cases with a mask
randomize the masked bits on every trial.

Example:
  rspdiff run
  rspdiff run --cases eret.yaml --trials 1000 --json out.json
  rspdiff run 4 --ignore SEMAPHORE,DP_CLOCK,DP_PIPE_BUSY,DMA_SPADDR --tree`,
	PreRun: func(cmd *cobra.Command, args []string) { settings.BindFlags(cmd.Flags()) },
	Run:    runRun,
}

func init() {
	RootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	settings.AddHarnessFlags(flags)
	flags.String(settings.KeyStore, "", "Archive every trial in a LevelDB database at this path")
	flags.Bool(settings.KeyNoCrash, false, "Do not crash the coprocessor when the run completes")

	flags.BoolVarP(&runVerbose, "verbose", "v", false, "Print every trial, not only failing ones")
	flags.StringVar(&runJSON, "json", "", "Write the run report as JSON to this file")
	flags.StringVar(&runChart, "chart", "", "Write an HTML chart of the diffs per case to this file")
	flags.BoolVar(&runTree, "tree", false, "Print the diff tree of the run after the summary")
	flags.BoolVar(&runDashboard, "tui", false, "Show a live dashboard instead of the text output")
}

// selectCases returns the table indices listed in args, or every index when none is
func selectCases(table []harness.TestCase, args []string) ([]int, error) {
	if len(args) == 0 {
		all := make([]int, len(table))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	selected := make([]int, 0, len(args))

	for _, arg := range args {
		index, err := strconv.Atoi(arg)
		if err != nil || index < 0 || index >= len(table) {
			return nil, fmt.Errorf("invalid case index '%s', the table has %d cases", arg, len(table))
		}

		selected = append(selected, index)
	}

	return selected, nil
}

func runRun(cmd *cobra.Command, args []string) {
	if code := runCases(args); code != 0 {
		os.Exit(code)
	}
}

// runCases runs the selected cases and returns the process exit code
func runCases(args []string) int {
	table, err := cases.Load(viper.GetString(settings.KeyCases))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading cases: %v\n", err)
		return 1
	}

	selected, err := selectCases(table, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	var board *dashboard
	if runDashboard {
		board = newDashboard(table, selected)

		// The terminal belongs to the dashboard, logs go to its log pane
		if err := setupLogger(nil, board.logs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	dev, driver, err := settings.NewHarness(logger.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	defer dev.Close()

	if path := viper.GetString(settings.KeyStore); path != "" {
		archive, err := store.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer archive.Close()

		driver.OnEvent(archive.Observer(func(err error) {
			logger.Warn("failed to archive trial", slog.Any("error", err))
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var result *harness.Report

	if board != nil {
		result, err = board.Run(ctx, driver, table, selected)

		if err := setupLogger(os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	} else {
		driver.OnEvent(report.NewPrinter(os.Stdout, runVerbose).Observer())
		result, err = driver.RunSelected(ctx, table, selected)
	}

	if result != nil {
		// The printer observer only prints the summary of complete runs
		if board != nil || err != nil {
			report.NewPrinter(os.Stdout, false).Summary(result)
		}

		writeOutputs(result)
	}

	if err != nil {
		if errors.Is(err, harness.ErrAborted) || errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Run aborted")
			return 3
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	return 0
}

func writeOutputs(result *harness.Report) {
	if runTree {
		fmt.Println(report.Tree(result).String())
	}

	if runJSON != "" {
		if err := report.SaveJSON(runJSON, result); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		} else {
			logger.Info("report written", slog.String("path", runJSON))
		}
	}

	if runChart != "" {
		if err := report.SaveChart(runChart, result); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing chart: %v\n", err)
		} else {
			logger.Info("chart written", slog.String("path", runChart))
		}
	}
}
