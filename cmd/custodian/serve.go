package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/custodian/pkg/cli"
	"mercator-hq/custodian/pkg/config"
	"mercator-hq/custodian/pkg/lock"
	"mercator-hq/custodian/pkg/server"
	"mercator-hq/custodian/pkg/storefactory"
	"mercator-hq/custodian/pkg/telemetry/health"
	"mercator-hq/custodian/pkg/telemetry/metrics"
	"mercator-hq/custodian/pkg/telemetry/tracing"
	"mercator-hq/custodian/pkg/trigger"
)

const readinessTimeout = 5 * time.Second

var serveFlags struct {
	listenAddress string
	watch         bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the retention trigger",
	Long: `Start the HTTP server exposing the retention trigger, metrics and health
endpoints.

The trigger routes are POST <trigger.path> for the whole fleet and
POST <trigger.path>/orgs/{orgID} for one tenant. Both require the shared
secret in <trigger.secret_header>.

Examples:
  # Serve with a config file, reloading it on change
  custodian serve --config /etc/custodian/config.yaml --watch

  # Override listen address
  custodian serve --listen 0.0.0.0:8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().BoolVar(&serveFlags.watch, "watch", false, "reload the config file when it changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}

	ctx, cancel := cli.SetupSignalHandler()
	defer cancel()

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer tracer.Shutdown(context.Background())

	store, err := openStore(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer store.Close()

	holder := config.NewHolder(cfgFile, cfg)
	if serveFlags.watch || cfg.Server.WatchConfig {
		if err := startWatcher(ctx, holder); err != nil {
			return cli.NewCommandError("serve", err)
		}
	}

	locker, err := newLocker(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer locker.Close()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	mux := http.NewServeMux()
	handler := trigger.NewHandler(holder, store, locker)
	handler.SetRecorder(collector)
	handler.Register(mux, cfg.Trigger.Path)

	if cfg.Telemetry.Metrics.Enabled {
		mux.Handle("GET "+cfg.Telemetry.Metrics.Path, collector.Handler())
	}
	if cfg.Telemetry.Health.Enabled {
		registerHealth(mux, cfg, store)
	}

	if cfg.Trigger.Secret == "" {
		slog.Warn("trigger secret not configured, every trigger request will fail")
	}

	srv := server.New(&cfg.Server, mux)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}

func startWatcher(ctx context.Context, holder *config.Holder) error {
	if holder.Path() == "" {
		slog.Warn("config watch requested without a config file, ignoring")
		return nil
	}
	watcher, err := config.NewWatcher(holder, 0)
	if err != nil {
		return err
	}
	go func() {
		if err := watcher.Watch(ctx); err != nil {
			slog.Error("config watcher stopped", "error", err)
		}
	}()
	return nil
}

func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, error) {
	if !cfg.Lock.Enabled {
		return lock.Noop{}, nil
	}
	return lock.NewRedis(ctx, lock.RedisConfig{
		Addr:     cfg.Lock.RedisAddr,
		Password: cfg.Lock.RedisPassword,
		DB:       cfg.Lock.RedisDB,
	})
}

func registerHealth(mux *http.ServeMux, cfg *config.Config, store storefactory.Store) {
	checker := health.New(readinessTimeout)
	checker.Register("database", health.PingCheck(store))
	mux.Handle(cfg.Telemetry.Health.LivenessPath, checker.LivenessHandler())
	mux.Handle(cfg.Telemetry.Health.ReadinessPath, checker.ReadinessHandler())
}
