package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/compostdash/internal/server"
	"github.com/dukerupert/compostdash/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		srv, err := server.New(e.db, e.cfg, e.logger)
		if err != nil {
			return err
		}
		if n, err := store.NewAccountStore(e.db).Count(cmd.Context()); err != nil {
			e.logger.Warn("count accounts", "error", err)
		} else if n == 0 {
			e.logger.Info("no accounts yet; sign up, then run users promote <email> for the first admin")
		} else {
			e.logger.Info("accounts loaded", "count", n)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		go srv.RunJanitor(ctx)
		srv.BackupManager().Start(ctx)
		defer srv.BackupManager().Stop()

		httpServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", e.cfg.HTTP.Port),
			Handler:           srv.Router(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			// Websocket connections are long lived; the hub handles their writes.
			WriteTimeout: 0,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			e.logger.Info("compostdash starting", "addr", httpServer.Addr, "base_url", e.cfg.HTTP.BaseURL)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		e.logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
