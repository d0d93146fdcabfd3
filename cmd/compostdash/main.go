package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dukerupert/compostdash/internal/config"
	"github.com/dukerupert/compostdash/internal/database"
	"github.com/dukerupert/compostdash/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "compostdash",
	Short:         "Accounts, sessions and page access for the compost operations dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env is what every subcommand needs: settings, a logger and the database.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sql.DB
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &env{cfg: cfg, logger: logger, db: db}, nil
}

func (e *env) Close() error {
	return e.db.Close()
}
