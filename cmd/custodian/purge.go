package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/custodian/pkg/cli"
	"mercator-hq/custodian/pkg/config"
	"mercator-hq/custodian/pkg/retention"
	"mercator-hq/custodian/pkg/storefactory"
)

var purgeFlags struct {
	orgID  string
	actor  string
	all    bool
	dryRun bool
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Run the retention policy directly",
	Long: `Run the retention policy against the database without going through the
HTTP trigger.

Without --dry-run the value of retention.dry_run applies.

Examples:
  # Count what one tenant would lose
  custodian purge --org 3f0c... --dry-run

  # Purge one tenant on behalf of an admin
  custodian purge --org 3f0c... --actor 91ab...

  # Purge every tenant
  custodian purge --all`,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)

	purgeCmd.Flags().StringVar(&purgeFlags.orgID, "org", "", "tenant to purge")
	purgeCmd.Flags().StringVar(&purgeFlags.actor, "actor", "", "user id recorded on the audit entry")
	purgeCmd.Flags().BoolVar(&purgeFlags.all, "all", false, "purge every tenant")
	purgeCmd.Flags().BoolVar(&purgeFlags.dryRun, "dry-run", false, "count eligible rows without deleting")
	purgeCmd.MarkFlagsMutuallyExclusive("org", "all")
	purgeCmd.MarkFlagsOneRequired("org", "all")
}

func runPurge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := cli.SetupSignalHandler()
	defer cancel()
	ctx, cancelRun := runContext(ctx, cfg)
	defer cancelRun()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("purge", err)
	}
	defer store.Close()

	opts := retention.Options{DryRun: cfg.Retention.DryRun}
	if cmd.Flags().Changed("dry-run") {
		opts.DryRun = purgeFlags.dryRun
	}

	engine := storefactory.NewEngine(cfg, store, nil)

	if purgeFlags.all {
		results, err := engine.Fleet.Run(ctx, opts)
		if results != nil {
			if perr := printResult(cmd, results); perr != nil {
				return perr
			}
		}
		if err != nil {
			return cli.NewCommandError("purge", err)
		}
		if failed := results.Failed(); failed > 0 {
			return cli.NewCommandError("purge", &cli.PartialError{Failed: failed, Total: len(results)})
		}
		return nil
	}

	exists, err := store.OrgExists(ctx, purgeFlags.orgID)
	if err != nil {
		return cli.NewCommandError("purge", err)
	}
	if !exists {
		return cli.NewConfigError("org", fmt.Sprintf("no tenant with id %q", purgeFlags.orgID))
	}

	var actorID *string
	if purgeFlags.actor != "" {
		actorID = &purgeFlags.actor
	}
	summary, err := engine.Purger.PurgeOrgOnce(ctx, purgeFlags.orgID, actorID, opts)
	if err != nil {
		return cli.NewCommandError("purge", err)
	}
	return printResult(cmd, summary)
}

func runContext(parent context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.Retention.RunTimeout > 0 {
		return context.WithTimeout(parent, cfg.Retention.RunTimeout)
	}
	return context.WithCancel(parent)
}
