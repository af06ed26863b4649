package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/custodian/pkg/cli"
	"mercator-hq/custodian/pkg/schedule"
	"mercator-hq/custodian/pkg/telemetry/tracing"
)

var scheduleFlags struct {
	once bool
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Call the retention trigger on a schedule",
	Long: `Call the retention trigger at scheduler.url on the cron expression in
scheduler.schedule (hourly by default), sending scheduler.secret, or
trigger.secret when unset.

Failed calls are logged and not retried; the next tick picks up the same
rows.

Examples:
  # Run the hourly timer
  custodian schedule

  # Fire once and print the trigger's answer
  custodian schedule --once`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().BoolVar(&scheduleFlags.once, "once", false, "fire the trigger once and exit")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer tracer.Shutdown(context.Background())

	client := schedule.NewClient(cfg.Scheduler.URL, cfg.SchedulerSecret(), cfg.Trigger.SecretHeader, cfg.Scheduler.Timeout)

	ctx, cancel := cli.SetupSignalHandler()
	defer cancel()

	if scheduleFlags.once {
		body, err := client.Fire(ctx)
		if len(body) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
		}
		if err != nil {
			return cli.NewCommandError("schedule", err)
		}
		return nil
	}

	scheduler := schedule.NewScheduler(client, cfg.Scheduler.Schedule)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("schedule", err)
	}
	if next := scheduler.NextRun(); next != nil {
		slog.Info("next retention trigger", "at", next)
	}

	<-ctx.Done()
	scheduler.Stop()
	return nil
}
