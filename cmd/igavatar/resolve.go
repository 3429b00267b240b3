package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"igavatar/internal/server"
	"igavatar/pkg/instagram"
	"igavatar/pkg/logger"
	"igavatar/pkg/resolver"
	"igavatar/pkg/ui"
)

var (
	// Resolve command flags
	outputFormat       string
	resolveConcurrency int
	traceLookup        bool
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve <username>...",
	Short: "Resolve usernames from the terminal",
	Long: `Resolve one or more usernames to profile picture URLs.

Arguments may be plain usernames, @handles, profile URLs or delimited lists
("a, b; c"). Duplicates are looked up once. The command exits non-zero when
any username fails to resolve.`,
	Example: `  # Resolve a single profile and print JSON
  igavatar resolve natgeo

  # Resolve several and print a table
  igavatar resolve natgeo "https://www.instagram.com/nasa/" @esa --format table

  # Show every strategy attempt for one username
  igavatar resolve natgeo --trace`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "output format (json, table)")
	resolveCmd.Flags().IntVar(&resolveConcurrency, "concurrency", 0, "lookups in flight (default from config)")
	resolveCmd.Flags().BoolVar(&traceLookup, "trace", false, "print each strategy attempt (single username only)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	if outputFormat != "json" && outputFormat != "table" {
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}

	flags := make(map[string]interface{})
	if cmd.Flags().Changed("concurrency") {
		flags["concurrency"] = resolveConcurrency
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}

	a, err := newApp(cfg, logger.GetLogger())
	if err != nil {
		return err
	}

	usernames := instagram.SplitUsernames(strings.Join(args, " "))
	if len(usernames) == 0 {
		return errors.New(resolver.MsgUsernameRequired)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if traceLookup {
		if len(usernames) != 1 {
			return errors.New("--trace takes exactly one username")
		}
		return runTrace(ctx, cmd, a, usernames[0])
	}

	start := time.Now()
	items := a.resolver.ResolveBatch(ctx, usernames, cfg.Batch.Concurrency)
	meta := resolver.Summarize(items, time.Since(start))

	if outputFormat == "table" {
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderResults(items, meta))
	} else if err := writeJSON(cmd, server.BatchResponse{Results: items, Meta: meta}); err != nil {
		return err
	}

	if meta.Failed > 0 {
		return fmt.Errorf("%d of %d usernames failed to resolve", meta.Failed, meta.Total)
	}
	return nil
}

func runTrace(ctx context.Context, cmd *cobra.Command, a *app, username string) error {
	url, attempts, err := a.client.Trace(ctx, username)

	if outputFormat == "table" {
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderAttempts(attempts))
	} else {
		type attemptView struct {
			Strategy   string `json:"strategy"`
			Outcome    string `json:"outcome"`
			Status     int    `json:"status"`
			Field      string `json:"field,omitempty"`
			Reason     string `json:"reason,omitempty"`
			URL        string `json:"url,omitempty"`
			DurationMs int64  `json:"durationMs"`
		}
		views := make([]attemptView, 0, len(attempts))
		for _, at := range attempts {
			views = append(views, attemptView{
				Strategy:   string(at.Strategy),
				Outcome:    at.Outcome.String(),
				Status:     at.Status,
				Field:      at.Field,
				Reason:     at.Reason,
				URL:        at.URL,
				DurationMs: at.Duration.Milliseconds(),
			})
		}
		out := map[string]interface{}{
			"username": username,
			"attempts": views,
		}
		if err != nil {
			out["error"] = err.Error()
		} else {
			out["url"] = url
		}
		if werr := writeJSON(cmd, out); werr != nil {
			return werr
		}
	}

	return err
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
