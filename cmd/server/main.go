package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/shelfsync/internal/config"
	"github.com/iudanet/shelfsync/internal/logging"
	"github.com/iudanet/shelfsync/internal/server"
	"github.com/iudanet/shelfsync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "shelfsync-server",
		Short:         "Sync server for shelfsync clients",
		Version:       fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.NewServerViper(configFile)
			if err != nil {
				return report(err)
			}
			// Флаги важнее env и файла
			for key, flag := range map[string]string{"address": "address", "db_path": "db", "log.level": "log-level"} {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return report(err)
				}
			}
			cfg, err := config.LoadServer(v)
			if err != nil {
				return report(err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (yaml, toml or json)")
	cmd.Flags().String("address", ":8080", "listen address")
	cmd.Flags().String("db", "shelfsync.db", "SQLite database path")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func run(ctx context.Context, cfg *config.ServerConfig) error {
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return report(err)
	}
	defer func() {
		_ = closer.Close()
	}()

	logger.Info("starting shelfsync server",
		slog.String("version", Version),
		slog.String("address", cfg.Address),
		slog.String("db_path", cfg.DBPath))

	store, err := sqlite.New(ctx, cfg.DBPath, nil, logger)
	if err != nil {
		logger.Error("failed to open storage", slog.Any("error", err))
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close storage", slog.Any("error", err))
		}
	}()

	if err := server.New(cfg, store, logger, Version).Run(ctx); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

// report печатает ошибку до того, как настроен логгер
func report(err error) error {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return err
}
