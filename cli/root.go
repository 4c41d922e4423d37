// Package cli provides the dutyrecon command-line interface: configuration
// loading, service assembly, and the batch processing command.
//
// Configuration is layered the usual way: command-line flags override
// environment variables (DUTYRECON_ prefix), which override the optional
// .dutyrecon.yaml config file in the home or working directory.
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fteops/dutyrecon/common"
	"github.com/fteops/dutyrecon/version"
)

// cfgFile holds the path to the configuration file specified via flag.
var cfgFile string

var logLevel string

// RootCmd is the base command.
var RootCmd = &cobra.Command{
	Use:   "dutyrecon",
	Short: "Duty reconciliation automation for the customs brokerage portal",
	Long: `dutyrecon processes batches of Master Air Waybills against the customs
brokerage portal: per MAWB it authenticates under a broker identity, scrapes
the AMS summary, entries index, and Custom Report workbook, optionally
generates the 7501 batch PDF, cross-checks the figures, and persists a
consolidated result with its artifacts.`,
	Version: version.Version,
}

// Execute runs the CLI.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .dutyrecon.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().String("catalog", "catalog.yaml", "broker/format catalog file")
	_ = viper.BindPFlag("catalog", RootCmd.PersistentFlags().Lookup("catalog"))

	RootCmd.AddCommand(runCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dutyrecon")
	}

	viper.SetEnvPrefix("DUTYRECON")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from the --log-level flag.
func newLogger() *logrus.Logger {
	cfg := common.DefaultLoggerConfig()
	cfg.Level = common.LogLevel(logLevel)
	return common.NewLogger(cfg)
}
