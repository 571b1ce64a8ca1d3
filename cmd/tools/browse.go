package tools

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Manu343726/rspdiff/cmd/settings"
	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/Manu343726/rspdiff/pkg/report"
	"github.com/Manu343726/rspdiff/pkg/store"
	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

var (
	colorPrompt  = color.New(color.FgBlue, color.Bold)
	colorError   = color.New(color.FgRed, color.Bold)
	colorWarning = color.New(color.FgYellow)
	colorHeader  = color.New(color.FgWhite, color.Bold, color.Underline)
)

const browseHelp = `Opens an interactive prompt over a trial archive written by 'rspdiff run --store'.

Commands:
  cases                  list the archived case summaries
  trials <case>          list the trials of a case
  failures <case>        list the trials of a case with genuine differences
  show <case> <trial>    show an archived trial
  replay <case> <trial>  run an archived trial again and check it reproduces
  help                   show this help
  quit                   leave the browser`

var browseCmd = &cobra.Command{
	Use:    "browse",
	Short:  "Browse a trial archive interactively",
	Long:   browseHelp,
	Args:   cobra.NoArgs,
	PreRun: bindFlags,
	Run:    runBrowse,
}

func init() {
	ToolsCmd.AddCommand(browseCmd)
	settings.AddHarnessFlags(browseCmd.Flags())
	browseCmd.Flags().String(settings.KeyStore, "", "Trial archive written by 'rspdiff run --store'")
}

var browseCommands = []string{"cases", "trials", "failures", "show", "replay", "help", "quit", "exit"}

func getHistoryFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".rspdiff_history"
	}
	return filepath.Join(homeDir, ".rspdiff_history")
}

func runBrowse(cmd *cobra.Command, args []string) {
	archive, err := openArchive()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(input string) []string {
		var completions []string
		for _, command := range browseCommands {
			if strings.HasPrefix(command, strings.ToLower(input)) {
				completions = append(completions, command)
			}
		}
		return completions
	})

	historyFile := getHistoryFilePath()
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	browser := &archiveBrowser{archive: archive, out: os.Stdout, replay: func(c, t int) {
		record, result, err := Replay(cmd.Context(), archive, c, t)
		if err != nil {
			colorError.Printf("Error: %v\n", err)
			return
		}
		printReplay(record, result)
	}}

	colorPrompt.Println("Type 'help' for available commands.")

	for {
		input, err := line.Prompt("(rspdiff) ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				break
			}
			colorError.Printf("Error reading input: %v\n", err)
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		if !browser.execute(input) {
			break
		}
	}

	if f, err := os.Create(historyFile); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
}

type archiveBrowser struct {
	archive *store.Archive
	out     io.Writer
	replay  func(caseIndex, trialIndex int)
}

// execute runs one command line and reports whether the browser keeps going
func (b *archiveBrowser) execute(input string) bool {
	parts := strings.Fields(input)
	command, args := strings.ToLower(parts[0]), parts[1:]

	switch command {
	case "quit", "q", "exit":
		return false
	case "help", "h":
		fmt.Fprintln(b.out, browseHelp)
	case "cases":
		b.listCases()
	case "trials", "failures":
		if len(args) != 1 {
			colorWarning.Fprintf(b.out, "usage: %s <case>\n", command)
			return true
		}

		caseIndex, err := strconv.Atoi(args[0])
		if err != nil {
			colorWarning.Fprintf(b.out, "invalid case index '%s'\n", args[0])
			return true
		}

		b.listTrials(caseIndex, command == "failures")
	case "show", "replay":
		if len(args) != 2 {
			colorWarning.Fprintf(b.out, "usage: %s <case> <trial>\n", command)
			return true
		}

		caseIndex, trialIndex, err := parseTrialRef(args[0], args[1])
		if err != nil {
			colorWarning.Fprintln(b.out, err)
			return true
		}

		if command == "show" {
			b.show(caseIndex, trialIndex)
		} else if b.replay != nil {
			b.replay(caseIndex, trialIndex)
		}
	default:
		colorWarning.Fprintf(b.out, "unknown command '%s', type 'help'\n", command)
	}

	return true
}

func (b *archiveBrowser) listCases() {
	summaries, err := b.archive.Cases()
	if err != nil {
		colorError.Fprintf(b.out, "Error: %v\n", err)
		return
	}

	if len(summaries) == 0 {
		fmt.Fprintln(b.out, "no cases archived")
		return
	}

	report.NewPrinter(b.out, false).Summary(&harness.Report{Cases: summaries})
}

func (b *archiveBrowser) listTrials(caseIndex int, failuresOnly bool) {
	records, err := b.archive.Trials(caseIndex)
	if err != nil {
		colorError.Fprintf(b.out, "Error: %v\n", err)
		return
	}

	colorHeader.Fprintf(b.out, "%6s %10s %10s %-16s %6s %7s\n", "trial", "seed", "candidate", "status", "diffs", "ignored")

	shown := 0
	for _, record := range records {
		trial := record.Trial
		if failuresOnly && trial.Passed {
			continue
		}

		fmt.Fprintf(b.out, "%6d 0x%08x 0x%08x %-16s %6d %7d\n",
			trial.Index, trial.Seed, trial.Candidate, trial.Status, trial.DiffCount, trial.IgnoredCount)
		shown++
	}

	fmt.Fprintf(b.out, "%d of %d trials\n", shown, len(records))
}

func (b *archiveBrowser) show(caseIndex, trialIndex int) {
	record, err := b.archive.GetTrial(caseIndex, trialIndex)
	if err != nil {
		colorError.Fprintf(b.out, "Error: %v\n", err)
		return
	}

	report.NewPrinter(b.out, true).Trial(record.Case, &record.Trial)
}
