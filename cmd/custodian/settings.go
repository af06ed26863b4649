package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/custodian/pkg/cli"
	"mercator-hq/custodian/pkg/storefactory"
	"mercator-hq/custodian/pkg/tenant"
)

var settingsFlags struct {
	orgID string
	key   string
	value string
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and change tenant settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print a tenant's effective settings",
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store one tenant setting",
	Long: `Store one tenant setting. The value is JSON and is checked against the
same bounds as the settings API before it is written.

Keys:
  retentionDays  number of days, 1 to 3650 (runs never use less than 30)
  legalHold      true or false
  modelEnabled   object of provider name to boolean

Examples:
  custodian settings set --org 3f0c... --key retentionDays --value 180
  custodian settings set --org 3f0c... --key legalHold --value true`,
	RunE: runSettingsSet,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)

	settingsCmd.PersistentFlags().StringVar(&settingsFlags.orgID, "org", "", "tenant id")
	settingsCmd.MarkPersistentFlagRequired("org")

	settingsSetCmd.Flags().StringVar(&settingsFlags.key, "key", "", "setting key")
	settingsSetCmd.Flags().StringVar(&settingsFlags.value, "value", "", "JSON value")
	settingsSetCmd.MarkFlagRequired("key")
	settingsSetCmd.MarkFlagRequired("value")
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("settings get", err)
	}
	defer store.Close()

	settings, err := storefactory.NewLoader(cfg, store).Load(ctx, settingsFlags.orgID)
	if err != nil {
		return cli.NewCommandError("settings get", err)
	}
	return printResult(cmd, settings)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	raw := json.RawMessage(settingsFlags.value)
	if !json.Valid(raw) {
		return cli.NewConfigError("value", fmt.Sprintf("%q is not valid JSON", settingsFlags.value))
	}
	if err := tenant.ValidateValue(settingsFlags.key, raw); err != nil {
		return cli.NewConfigError(settingsFlags.key, err.Error())
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("settings set", err)
	}
	defer store.Close()

	if err := store.PutSetting(ctx, settingsFlags.orgID, settingsFlags.key, raw); err != nil {
		return cli.NewCommandError("settings set", err)
	}

	settings, err := storefactory.NewLoader(cfg, store).Load(ctx, settingsFlags.orgID)
	if err != nil {
		return cli.NewCommandError("settings set", err)
	}
	return printResult(cmd, settings)
}
