package main

import (
	"context"

	"github.com/spf13/cobra"

	"mercator-hq/custodian/pkg/cli"
	"mercator-hq/custodian/pkg/storefactory"
)

var orgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "Inspect tenants",
}

var orgsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenant ids in purge order",
	RunE:  runOrgsList,
}

func init() {
	rootCmd.AddCommand(orgsCmd)
	orgsCmd.AddCommand(orgsListCmd)
}

func runOrgsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("orgs list", err)
	}
	defer store.Close()

	ids, err := storefactory.NewEngine(cfg, store, nil).Fleet.ListOrgIDs(ctx)
	if err != nil {
		return cli.NewCommandError("orgs list", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return printResult(cmd, ids)
}
