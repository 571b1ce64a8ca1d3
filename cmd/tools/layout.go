package tools

import (
	"fmt"
	"os"

	"github.com/Manu343726/rspdiff/cmd/settings"
	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
	"github.com/Manu343726/rspdiff/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	layoutFields bool
	layoutClass  string
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Show the snapshot layout",
	Long: `Draws the byte layout of a coprocessor snapshot: the register region compared by the
harness followed by the program counter and both memories.

With --class the fields of one register class are drawn instead, and --fields lists every
named field of the register region with its ignore status under the current --ignore list.`,
	Args:   cobra.NoArgs,
	PreRun: bindFlags,
	Run:    runLayout,
}

func init() {
	ToolsCmd.AddCommand(layoutCmd)
	layoutCmd.Flags().BoolVar(&layoutFields, "fields", false, "List the named fields of the register region")
	layoutCmd.Flags().StringVar(&layoutClass, "class", "", "Draw the fields of one class (cop0, cop2, acc)")
	layoutCmd.Flags().StringSlice(settings.KeyIgnore, harness.DefaultIgnoreEntries, "Ignore-list used to flag fields")
}

// SnapshotFrame draws the spaces of a snapshot
func SnapshotFrame() (string, error) {
	fields := make([]utils.AsciiFrameField, 0, len(rsp.Spaces))

	for _, space := range rsp.Spaces {
		fields = append(fields, utils.AsciiFrameField{
			Name:  space.String(),
			Begin: space.SnapshotOffset(),
			Width: space.Size(),
		})
	}

	return utils.AsciiFrame(fields, rsp.SnapshotSize, "bytes", utils.AsciiFrameUnitLayout_LeftToRight, 2)
}

// ClassFrame draws the fields of one class, relative to the first of them
func ClassFrame(table *harness.FieldTable, class string) (string, error) {
	var fields []utils.AsciiFrameField
	begin, end := -1, 0

	for _, field := range table.Fields() {
		if field.Class != class {
			continue
		}

		if begin < 0 {
			begin = field.Start
		}
		end = field.End

		name := field.Name
		if field.Ignored {
			name += "*"
		}

		fields = append(fields, utils.AsciiFrameField{Name: name, Begin: field.Start - begin, Width: field.Size()})
	}

	if len(fields) == 0 {
		return "", fmt.Errorf("unknown class '%s'", class)
	}

	return utils.AsciiFrame(fields, end-begin, "bytes", utils.AsciiFrameUnitLayout_LeftToRight, 2)
}

func runLayout(cmd *cobra.Command, args []string) {
	ignore, err := harness.ParseIgnoreList(viper.GetStringSlice(settings.KeyIgnore))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	table := harness.NewFieldTable(ignore)

	if layoutClass != "" {
		frame, err := ClassFrame(table, layoutClass)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Print(frame)
		fmt.Println("  (* ignored)")
		return
	}

	frame, err := SnapshotFrame()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(frame)
	fmt.Printf("  register region: bytes [0, %d), %d named fields\n", rsp.RegisterRegionSize, len(table.Fields()))

	if layoutFields {
		fmt.Println()
		for _, field := range table.Fields() {
			status := ""
			if field.Ignored {
				status = "ignored"
			}

			fmt.Printf("  %-20s %-5s [%4d, %4d) %s\n", field.Name, field.Class, field.Start, field.End, status)
		}
	}
}
