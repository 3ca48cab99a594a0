package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"claude-monitor/src/lib"
	"claude-monitor/src/metrics"
	"claude-monitor/src/models"
	"claude-monitor/src/server"
	"claude-monitor/src/services"
)

const metricsNamespace = "claude_monitor"

var version = "dev"

var (
	configPath string
	dryRun     bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "claude-monitor",
		Short:         "Keep the Claude OAuth token fresh and warn when daily usage runs high",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDaemon,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: XDG config dir)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitor loop until interrupted",
		RunE:  runDaemon,
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single iteration and exit",
		RunE:  runCheck,
	}
	checkCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log alerts instead of sending them")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print credentials, usage and state without changing anything",
		RunE:  runStatus,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "claude-monitor", version)
		},
	}

	root.AddCommand(runCmd, checkCmd, statusCmd, versionCmd)
	return root
}

func loadConfig() (*models.Config, error) {
	configService := services.NewConfigService()
	if configPath != "" {
		configService.SetConfigPath(configPath)
	}

	config, err := configService.Load()
	if err != nil {
		lib.Error("Failed to load configuration", map[string]interface{}{
			"path":  configService.GetConfigPath(),
			"error": err.Error(),
		})
		return nil, err
	}

	lib.SetGlobalLevel(config.GetLogLevel())
	return config, nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	scheduler := services.NewScheduler(config, services.SchedulerDeps{
		Metrics: metrics.NewMetrics(reg, metricsNamespace),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	if config.StatusAddr != "" {
		srv := server.New(config.StatusAddr, scheduler, reg)
		g.Go(func() error {
			// The monitor keeps running without its status endpoint.
			if err := srv.Run(gctx); err != nil {
				lib.Error("Status server stopped", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return nil
		})
	}

	err = g.Wait()
	lib.Info("Claude Monitor stopped")
	return err
}

func runCheck(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	deps := services.SchedulerDeps{}
	if dryRun {
		deps.Notifier = services.NewLogNotifier()
	}
	scheduler := services.NewScheduler(config, deps)

	ctx := cmd.Context()
	scheduler.Startup(ctx)
	outcome := scheduler.Tick(ctx, time.Now())

	if err := printJSON(cmd, struct {
		models.TickOutcome
		Error string `json:"error,omitempty"`
	}{outcome, outcome.Reason()}); err != nil {
		return err
	}
	return outcome.Err
}

func runStatus(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	report := services.BuildReport(config,
		services.NewCredentialService(services.NewCredentialLocator(config)),
		services.NewUsageService(services.NewUsageLocator(config)),
		services.NewStateService(config.StatePath()),
		time.Now(),
	)
	return printJSON(cmd, report)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
