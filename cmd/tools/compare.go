package tools

import (
	"fmt"
	"os"

	"github.com/Manu343726/rspdiff/pkg/report"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var compareNoColor bool

var compareCmd = &cobra.Command{
	Use:   "compare <before.json> <after.json>",
	Short: "Compare two run reports",
	Long: `Compares the outcome of two runs written with 'rspdiff run --json', ignoring timing.
Useful to check a coprocessor revision or emulator change against a known report.

Exits with status 1 when the reports differ.`,
	Args: cobra.ExactArgs(2),
	Run:  runCompare,
}

func init() {
	ToolsCmd.AddCommand(compareCmd)
	compareCmd.Flags().BoolVar(&compareNoColor, "no-color", false, "Do not color the diff")
}

func runCompare(cmd *cobra.Command, args []string) {
	before, err := report.LoadJSON(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	after, err := report.LoadJSON(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	comparison, err := report.Compare(before, after)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if !comparison.Modified {
		color.Green("Reports match")
		return
	}

	text, err := comparison.Format(!compareNoColor && !color.NoColor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	fmt.Println(text)

	for _, label := range comparison.Changed {
		color.Yellow("case changed: %s", label)
	}

	os.Exit(1)
}
