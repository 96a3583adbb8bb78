// Package main is the entry point for the docscan binary.
// It scans photographed documents from the command line, in batches, from a
// watched folder, or as an MCP server over stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ironsheep/docscan-mcp/internal/config"
	"github.com/ironsheep/docscan-mcp/internal/logging"
	"github.com/ironsheep/docscan-mcp/internal/metrics"
	"github.com/ironsheep/docscan-mcp/internal/ocr"
	"github.com/ironsheep/docscan-mcp/internal/scan"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// exitManualCrop is returned when no usable outline was found and the user
// has to pick corners or crop by hand.
const exitManualCrop = 2

// exitError carries a process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// pipelineError maps failures that need a manual crop to exitManualCrop.
func pipelineError(err error) error {
	if scan.NeedsManualCrop(err) {
		return &exitError{code: exitManualCrop, err: err}
	}
	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// newRootCmd creates the root command for docscan
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docscan",
		Short: "Find, straighten and sharpen documents in photos",
		Long: `docscan locates the largest four-cornered outline in a photo, maps it onto
an upright rectangle and writes a sharpened JPEG of the page.

Examples:
  docscan scan receipt.jpg
  docscan batch ./inbox --out-dir ./scans --workers 4
  docscan serve`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate(versionText())

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newScanCmd(),
		newDetectCmd(),
		newBatchCmd(),
		newWatchCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func versionText() string {
	return fmt.Sprintf("docscan %s\n  Build time: %s\n  Git commit: %s\n", Version, BuildTime, GitCommit)
}

// ocrText describes the linked OCR backend for the version command.
func ocrText(info ocr.Info) string {
	if !info.Available {
		return fmt.Sprintf("  OCR: %s (unavailable)\n", info.Backend)
	}
	return fmt.Sprintf("  OCR: %s, Tesseract %s\n", info.Backend, info.Version)
}

// app bundles what every subcommand needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Recorder
	scanner *scan.Scanner
}

// setup loads configuration, applies the persistent flags and builds the
// logger and scanner. Logs always go to stderr.
func setup(cmd *cobra.Command) (*app, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
		if err := cfg.Log.Validate(); err != nil {
			return nil, err
		}
	}

	logCfg := cfg.Logging()
	logCfg.Writer = cmd.ErrOrStderr()
	logger := logging.New(logCfg)

	rec := metrics.NewRecorder()
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
		scanner: scan.New(scan.WithLogger(logger), scan.WithMetrics(rec)),
	}
	logger.Debug("docscan starting", "version", Version, "commit", GitCommit, "config", configPath)
	return a, nil
}

// serveMetrics exposes the recorder on addr until ctx is done. An empty addr
// disables it.
func (a *app) serveMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(a.metrics.Registry(), a.metrics.Handler()))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics shutdown", "error", err)
		}
	}()
}
