package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Manu343726/rspdiff/cmd/settings"
	"github.com/Manu343726/rspdiff/cmd/tools"
	"github.com/Manu343726/rspdiff/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// Process logger, installed as the slog default before any command runs
var logger *logging.Logger

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "rspdiff",
	Short: "Differential tester for RSP instruction side effects",
	Long: `rspdiff injects candidate instructions into a fixed code image, runs them on the
signal processor coprocessor from a pseudo-randomly seeded state, and reports every register
the instruction changed that it should not have.

Configuration is read from $HOME/.rspdiff.yaml (or --config), RSPDIFF_* environment
variables and command line flags, in increasing order of precedence.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger(os.Stderr)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := RootCmd.Execute()

	if logger != nil {
		logger.Close()
	}

	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rspdiff.yaml)")
	flags.String(settings.KeyLogLevel, "info", "Log level (debug, info, warn, error)")
	flags.String(settings.KeyLogFile, "", "Also write JSON logs to this file, at debug level")
	flags.StringP(settings.KeyCases, "c", "", "YAML case table. The builtin table is used when empty")

	settings.Bind(flags, settings.KeyLogLevel)
	settings.Bind(flags, settings.KeyLogFile)
	settings.Bind(flags, settings.KeyCases)

	RootCmd.AddCommand(tools.ToolsCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".rspdiff" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".rspdiff")
	}

	viper.SetEnvPrefix("RSPDIFF")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setupLogger replaces the process logger. A nil console only logs to the extra sinks and the log file
func setupLogger(console io.Writer, extra ...io.Writer) error {
	next, err := logging.Setup(logging.Options{
		Level:   viper.GetString(settings.KeyLogLevel),
		Console: console,
		File:    viper.GetString(settings.KeyLogFile),
		Extra:   extra,
	})
	if err != nil {
		return err
	}

	if logger != nil {
		logger.Close()
	}

	logger = next
	return nil
}
