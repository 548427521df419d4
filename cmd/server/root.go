package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kiranshivaraju/resumatch/internal/config"
	"github.com/kiranshivaraju/resumatch/internal/store"
	"github.com/spf13/cobra"
)

const defaultMigrationsDir = "migrations"

type rootOptions struct {
	configPath    string
	migrationsDir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "resumatch",
		Short: "Resume and job description match analysis service",
		Long:  "resumatch accepts resume analysis requests over HTTP and processes them asynchronously against an AI provider.",
		// With no subcommand the binary serves, so container entrypoints can call it bare.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to YAML config file (default: RESUMATCH_CONFIG env var)")
	root.PersistentFlags().StringVar(&opts.migrationsDir, "migrations", defaultMigrationsDir,
		"directory holding SQL migrations")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runMigrate(opts)
		},
	})

	return root
}

func runMigrate(opts *rootOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(setupLogger(cfg.Log))

	if err := store.RunMigrations(cfg.Database.URL, opts.migrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied", "dir", opts.migrationsDir)
	return nil
}

// setupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
}
