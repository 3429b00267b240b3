package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"igavatar/internal/server"
	"igavatar/pkg/logger"
	"igavatar/pkg/ui"
)

var (
	// Serve command flags
	addr              string
	staticDir         string
	batchConcurrency  int
	requestsPerMinute int
	cacheTTL          time.Duration
	dedupeInFlight    bool
	redirectOnly      bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API.

Endpoints:
  GET  /profile-photo?username=       resolve one username
  GET  /profile-photo/image?username= stream (or redirect to) the picture
  GET  /profile-photos?usernames=     resolve a delimited list
  POST /profile-photos                resolve {"usernames": [...] | "a, b; c"}
  GET  /healthz                       liveness check
  GET  /metrics                       Prometheus metrics

The same routes are also served under /api. The server shuts down gracefully
on SIGINT or SIGTERM.`,
	Example: `  # Listen on the default address (:4757)
  igavatar serve

  # Serve a frontend and throttle upstream traffic
  igavatar serve --static-dir ./public --requests-per-minute 60

  # Always redirect image requests instead of streaming them
  igavatar serve --redirect-only`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (default :4757, or :$PORT)")
	serveCmd.Flags().StringVar(&staticDir, "static-dir", "", "directory served at /")
	serveCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "batch lookups in flight per request (1-6)")
	serveCmd.Flags().IntVar(&requestsPerMinute, "requests-per-minute", 0, "upstream request budget, 0 disables throttling")
	serveCmd.Flags().DurationVar(&cacheTTL, "cache-ttl", 0, "how long resolved URLs are cached (default 10m)")
	serveCmd.Flags().BoolVar(&dedupeInFlight, "dedupe-in-flight", false, "share one upstream lookup between concurrent requests for the same username")
	serveCmd.Flags().BoolVar(&redirectOnly, "redirect-only", false, "redirect image requests instead of streaming them")
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if addr != "" {
		flags["addr"] = addr
	}
	if staticDir != "" {
		flags["static-dir"] = staticDir
	}
	if cmd.Flags().Changed("concurrency") {
		flags["concurrency"] = batchConcurrency
	}
	if cmd.Flags().Changed("requests-per-minute") {
		flags["requests-per-minute"] = requestsPerMinute
	}
	if cmd.Flags().Changed("cache-ttl") {
		flags["cache-ttl"] = cacheTTL
	}
	if cmd.Flags().Changed("dedupe-in-flight") {
		flags["dedupe-in-flight"] = dedupeInFlight
	}
	if cmd.Flags().Changed("redirect-only") {
		flags["redirect-only"] = redirectOnly
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		return err
	}
	logger.WithField("version", version).Info("igavatar starting")
	log := logger.GetLogger()

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}

	ui.PrintLogo()
	ui.PrintInfo("Listening", cfg.Server.Addr)
	if cfg.Server.StaticDir != "" {
		ui.PrintInfo("Static files", cfg.Server.StaticDir)
	}
	if cfg.Image.RedirectOnly {
		ui.PrintInfo("Image relay", "redirect only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, a.resolver, a.relay, a.metrics, log)
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("Server stopped with error")
		return fmt.Errorf("server: %w", err)
	}

	stats := a.cache.Stats()
	log.WithFields(map[string]interface{}{
		"cache_entries": stats.Entries,
		"cache_hits":    stats.Hits,
		"cache_misses":  stats.Misses,
	}).Info("igavatar stopped")
	return nil
}
