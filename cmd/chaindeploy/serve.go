package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/artpar/chaindeploy/internal/shell/api"
)

// =============================================================================
// serve
// =============================================================================

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run ledger over a read-only HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("host", "", "listen host")
	cmd.Flags().Int("port", 0, "listen port")
	cmd.Flags().String("ledger-dsn", "", "ledger database path")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := a.openLedger()
	if err != nil {
		return err
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			a.logger.Error("database close error", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         a.cfg.Serve.Address(),
		Handler:      api.NewHandler(ledger, a.logger).Routes(),
		ReadTimeout:  a.cfg.Serve.ReadTimeout,
		WriteTimeout: a.cfg.Serve.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", "address", srv.Addr, "ledger", a.cfg.Ledger.DSN)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		a.logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Serve.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}
