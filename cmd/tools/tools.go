package tools

import (
	"github.com/Manu343726/rspdiff/cmd/settings"
	"github.com/spf13/cobra"
)

// toolsCmd represents the tools command
var ToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "rspdiff miscellaneous tools",
}

func bindFlags(cmd *cobra.Command, args []string) {
	settings.BindFlags(cmd.Flags())
}

func init() {
}
