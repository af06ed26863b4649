package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/custodian/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	logLevel     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "custodian",
	Short: "Custodian - tenant data retention engine",
	Long: `Custodian purges tenant data that has outlived its retention window.

Each run walks every tenant and, unless the tenant is under legal hold:
  - deletes messages and model invocations older than the tenant's window
    (never less than 30 days)
  - deletes audit logs older than 365 days
  - deletes threads that no longer have messages
and records the outcome as one audit entry per tenant.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults and CUSTODIAN_* variables when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json, text")
}
