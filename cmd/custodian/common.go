package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/custodian/pkg/cli"
	"mercator-hq/custodian/pkg/config"
	"mercator-hq/custodian/pkg/storefactory"
	"mercator-hq/custodian/pkg/telemetry/logging"
)

// loadConfig reads the configuration, applies the --log-level override and
// installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err.Error())
	}
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	if _, err := logging.Setup(cfg.Telemetry.Logging); err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (storefactory.Store, error) {
	store, err := storefactory.NewStore(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

func printResult(cmd *cobra.Command, data any) error {
	return cli.NewFormatter(cli.OutputFormat(outputFormat)).FormatTo(cmd.OutOrStdout(), data)
}
