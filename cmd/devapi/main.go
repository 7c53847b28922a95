// Command devapi runs the local collaborator API the offsync client syncs against.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/offsync/internal/config"
	"github.com/iudanet/offsync/internal/server"
	"github.com/iudanet/offsync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	cfg := server.DefaultConfig()
	logCfg := config.Default().Log

	cmd := &cobra.Command{
		Use:           "devapi",
		Short:         "Local collaborator API for offsync",
		Version:       fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfg, logCfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Addr, "addr", "a", envOrDefault("OFFSYNC_DEVAPI_ADDR", cfg.Addr), "listen address")
	f.StringVar(&cfg.DBPath, "db", envOrDefault("OFFSYNC_DEVAPI_DB", cfg.DBPath), "SQLite database path")
	f.StringVar(&cfg.Secret, "secret", os.Getenv("OFFSYNC_DEVAPI_SECRET"), "JWT signing secret (at least 16 characters)")
	f.DurationVar(&cfg.AccessTokenTTL, "access-ttl", cfg.AccessTokenTTL, "access token lifetime")
	f.DurationVar(&cfg.RefreshTokenTTL, "refresh-ttl", cfg.RefreshTokenTTL, "refresh token lifetime")
	f.DurationVar(&cfg.IdempotencyTTL, "idempotency-ttl", cfg.IdempotencyTTL, "how long replayed responses are kept")
	f.DurationVar(&cfg.CleanupInterval, "cleanup-interval", cfg.CleanupInterval, "expired token and key cleanup period")
	f.IntVar(&cfg.AuthRateLimit, "auth-rate", cfg.AuthRateLimit, "login and register requests per window and client")
	f.DurationVar(&cfg.AuthRateWindow, "auth-window", cfg.AuthRateWindow, "rate limit window")
	f.StringSliceVar(&cfg.EntityTypes, "entity-types", splitList(os.Getenv("OFFSYNC_DEVAPI_ENTITY_TYPES")), "accepted entity types, empty accepts any")
	f.StringVar(&logCfg.Level, "log-level", envOrDefault("OFFSYNC_LOG_LEVEL", logCfg.Level), "debug, info, warn or error")
	f.StringVar(&logCfg.Format, "log-format", envOrDefault("OFFSYNC_LOG_FORMAT", logCfg.Format), "text or json")

	return cmd
}

func run(ctx context.Context, cfg server.Config, logCfg config.LogConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logCfg.NewLogger(os.Stderr)

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	store, err := sqlite.New(openCtx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	srv := server.New(cfg, store, logger)
	defer srv.Close()

	if err := srv.Serve(ctx, ln); err != nil {
		return err
	}
	logger.Info("Dev API stopped")
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
