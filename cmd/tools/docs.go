package tools

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
	"github.com/Manu343726/rspdiff/pkg/hw/rsp/asm"
	"github.com/Manu343726/rspdiff/pkg/utils"
	"github.com/spf13/cobra"
)

var supportedModules = map[string]func() string{
	"rsp.cop0":       cop0Docs,
	"rsp.status":     statusDocs,
	"asm.masks":      maskDocs,
	"harness.ignore": ignoreDocs,
	"harness.image":  imageDocs,
}

func moduleNames() []string {
	names := make([]string, 0, len(supportedModules))
	for name := range supportedModules {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

var docsCmd = &cobra.Command{
	Use:   "docs module",
	Short: "Show rspdiff documentation",
	Long: `Dumps the documentation of the specified rspdiff module.
By default the tool dumps the documentation to stdout, but it can be redirected to a file using the --output flag.

Supported modules:
  ` + strings.Join(moduleNames(), "\n  "),
	Args:      cobra.MatchAll(cobra.OnlyValidArgs, cobra.ExactArgs(1)),
	ValidArgs: moduleNames(),
	Run: func(cmd *cobra.Command, args []string) {
		module := args[0]
		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile != "" {
			file, err := os.Create(outputFile)
			if err != nil {
				fmt.Println("Error creating file:", err)
				os.Exit(1)
			}
			defer file.Close()
			fmt.Fprintln(file, supportedModules[module]())
		} else {
			fmt.Println(supportedModules[module]())
		}
	},
}

func init() {
	ToolsCmd.AddCommand(docsCmd)
	docsCmd.Flags().StringP("output", "o", "", "Output file. If not specified, the documentation is dumped to stdout.")
}

func cop0Docs() string {
	var builder strings.Builder

	builder.WriteString("COP0 registers, as captured in the snapshot:\n\n")
	for r := rsp.Cop0Register(0); r < rsp.NumCop0Registers; r++ {
		fmt.Fprintf(&builder, "  $c%-2d %-14s snapshot offset %4d\n", int(r), r, rsp.Cop0Offset+int(r)*4)
	}

	builder.WriteString("\nReading SEMAPHORE acquires it: the read returns the previous value and leaves it set.\n")
	builder.WriteString("Writing DMA_READ or DMA_WRITE starts a transfer between RDRAM and DMEM/IMEM.\n")
	return builder.String()
}

func statusDocs() string {
	var builder strings.Builder

	builder.WriteString("SP_STATUS read bits:\n\n")
	for bit := 0; bit < 15; bit++ {
		fmt.Fprintf(&builder, "  bit %2d %s\n", bit, rsp.FormatStatus(1<<bit))
	}

	fmt.Fprintf(&builder, "\nTest microcode reports pass with %s and failure with %s.\n",
		rsp.FormatStatus(rsp.StatusPassSignal), rsp.FormatStatus(rsp.StatusFailSignal))
	builder.WriteString("A candidate that does neither ends on the BREAK that follows it in the test image.\n")
	return builder.String()
}

func maskDocs() string {
	var builder strings.Builder

	builder.WriteString("Named masks accepted in case tables (join several with '|'):\n\n")
	for _, name := range asm.MaskNames() {
		mask, _ := asm.Mask(name)
		fmt.Fprintf(&builder, "  %-14s %s %s\n", name, utils.FormatUintHex(uint64(mask), 8), utils.FormatUintBinary(uint64(mask), 32))
	}

	return builder.String()
}

func ignoreDocs() string {
	var builder strings.Builder

	builder.WriteString("Fields ignored by default, they change while the coprocessor sits idle:\n\n")
	for _, field := range harness.NewFieldTable(harness.DefaultIgnoreList()).Ignored() {
		fmt.Fprintf(&builder, "  %-20s bytes [%d, %d)\n", field.Name, field.Start, field.End)
	}

	builder.WriteString("\nEntries of --ignore can be a class (" + strings.Join(harness.Classes, ", ") +
		"), a field name such as gpr[3] or acc[hi], a COP0 register name, or a GPR index.\n")
	return builder.String()
}

func imageDocs() string {
	image := harness.TestImage()
	offset, err := image.LocateSentinel(harness.Sentinel)
	if err != nil {
		return err.Error()
	}

	return fmt.Sprintf("Default test image, candidate injected at offset 0x%04x in place of 0x%08x:\n\n%s",
		offset, harness.Sentinel, image.Hexdump())
}
