package cmd

import (
	"fmt"
	"os"

	"github.com/Manu343726/rspdiff/cmd/settings"
	"github.com/Manu343726/rspdiff/pkg/cases"
	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp/asm"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	casesFields bool
	casesDump   bool
	casesTrials int

	colorLabel = color.New(color.FgWhite, color.Bold)
	colorHex   = color.New(color.FgMagenta)
)

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "List the case table",
	Long: `Lists the cases a run would execute, from --cases or the builtin table.

With --dump the table is written as YAML, ready to be edited and passed back with --cases.`,
	Args: cobra.NoArgs,
	Run:  runCasesCmd,
}

func init() {
	RootCmd.AddCommand(casesCmd)
	casesCmd.Flags().BoolVarP(&casesFields, "fields", "f", false, "Draw the instruction fields of every case, marking the randomized ones")
	casesCmd.Flags().BoolVar(&casesDump, "dump", false, "Write the table as YAML to stdout")
	casesCmd.Flags().IntVarP(&casesTrials, "trials", "n", 0, "Trials per masked case, unless the case sets its own count. Zero uses the configured count")
}

func runCasesCmd(cmd *cobra.Command, args []string) {
	table, err := cases.Load(viper.GetString(settings.KeyCases))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading cases: %v\n", err)
		os.Exit(1)
	}

	if casesDump {
		data, err := cases.Marshal(table)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		os.Stdout.Write(data)
		return
	}

	defaultTrials := casesTrials
	if defaultTrials <= 0 {
		defaultTrials = viper.GetInt(settings.KeyTrials)
	}
	if defaultTrials <= 0 {
		defaultTrials = harness.DefaultTrials
	}

	for i, tc := range table {
		trials := 1
		if tc.Mask != 0 {
			trials = tc.Trials
			if trials <= 0 {
				trials = defaultTrials
			}
		}

		fmt.Printf("[%2d] %s %s", i, colorLabel.Sprintf("%-20s", tc.Label), colorHex.Sprintf("0x%08x", tc.Encoding))
		if tc.Mask != 0 {
			fmt.Printf(" mask %s", colorHex.Sprintf("0x%08x", tc.Mask))
		}
		fmt.Printf(" %d trial(s)\n", trials)

		if casesFields {
			frame, err := asm.PrettyPrint(tc.Encoding, tc.Mask, 5)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			fmt.Println(frame)
		}
	}
}
