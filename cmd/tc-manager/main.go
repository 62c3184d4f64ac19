package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/dmcp718/tc-manager-sub000/pkg/config"
	"github.com/dmcp718/tc-manager-sub000/pkg/log"
	"github.com/dmcp718/tc-manager-sub000/pkg/manager"
	"github.com/dmcp718/tc-manager-sub000/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tc-manager",
	Short: "TeamCache Manager - profile-driven cache warming for shared filespaces",
	Long: `TeamCache Manager keeps a PostgreSQL catalog of a mounted filespace
and warms selected files into the downstream cache tier with a pool
of parallel workers.

The serve command runs the long-lived engine. Every other command is
a one-shot operation against the same catalog database: jobs created
here are picked up by a running engine's workers on their next poll.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"TeamCache Manager version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to the YAML config file (or set TC_MANAGER_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log JSON instead of console output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(sizeCmd)
}

// loadConfig reads the config file, applies flag overrides and initializes
// logging. Every command goes through here before touching the engine.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("TC_MANAGER_CONFIG")
	}
	if path == "" {
		return nil, fmt.Errorf("no config file: pass --config or set TC_MANAGER_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-json") {
		cfg.LogJSON, _ = cmd.Flags().GetBool("log-json")
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}
	if cmd.Flags().Changed("workers") {
		cfg.WorkerCountDefault, _ = cmd.Flags().GetInt("workers")
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	return cfg, nil
}

// oneShot wires the engine for a single command without starting background
// processing. The caller must invoke the returned cleanup.
func oneShot(cmd *cobra.Command) (*manager.Manager, *config.Config, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	mgr, err := manager.New(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
	}
	return mgr, cfg, cleanup, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cache-warming engine",
	Long: `Run the long-lived engine: the worker pool, the stale-lease
reconciler and the metrics collector.

Jobs and index sessions may be created from this process or from
one-shot tc-manager invocations against the same catalog database.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics and health endpoints on this address (e.g. :9090)")
	serveCmd.Flags().Int("workers", 0, "Override the default worker count")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := log.WithComponent("serve")
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, a ...interface{}) {
		logger.Debug().Msgf(format, a...)
	}))
	metrics.SetVersion(Version)

	mgr, err := manager.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to wire engine: %v", err)
	}
	if err := mgr.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %v", err)
	}

	fmt.Println("TeamCache Manager engine running")
	fmt.Printf("  Root: %s\n", cfg.RootPath)
	fmt.Printf("  Workers: %d\n", cfg.WorkerCountDefault)

	errCh := make(chan error, 1)
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", metrics.HealthHandler())
		mux.HandleFunc("/ready", metrics.ReadyHandler())
		mux.HandleFunc("/live", metrics.LivenessHandler())
		metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %v", err)
			}
		}()
		fmt.Printf("  Metrics: http://%s/metrics\n", cfg.MetricsAddr)
	}

	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		cfg.ShutdownTimeout()+10*time.Second)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown: %v", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	fmt.Println("✓ Shutdown complete")
	return nil
}

// formatBytes renders a byte count in binary units
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
