package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/frontdesk/api"
	"github.com/warp/frontdesk/cashdesk"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the front-desk cash API.

On SIGINT/SIGTERM the server stops accepting connections, waits up to 30s
for active requests, stops the handover monitor and closes the database.`,
		RunE: runServe,
	}

	cmd.Flags().Int("port", 0, "HTTP server port")
	_ = v.BindPFlag("server.port", cmd.Flags().Lookup("port"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.RequireSecret(); err != nil {
		return err
	}
	drawer, err := cfg.Desk.Channels()
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	logger := slog.Default()
	desk := cashdesk.NewDesk(store, cashdesk.Config{
		DrawerChannels: drawer,
		Logger:         logger.With("component", "cashdesk"),
	})

	var scenarios *api.ScenarioHandler
	if cfg.Server.DemoScenarios {
		slog.Warn("demo scenarios enabled: POST /api/scenarios/load wipes the database")
		scenarios = &api.ScenarioHandler{Desk: desk, Store: store}
	}

	handler := api.NewHandler(desk, store)
	router := api.NewRouter(handler, api.RouterConfig{
		Auth: api.AuthConfig{
			Secret: cfg.Auth.JWTSecret,
			Issuer: cfg.Auth.Issuer,
			TTL:    cfg.Auth.TokenTTL,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AccessLog:      true,
		Scenarios:      scenarios,
	})

	monitor := api.NewHandoverMonitor(store, api.MonitorConfig{
		Enabled:      cfg.Monitor.Enabled,
		Interval:     cfg.Monitor.Interval,
		PendingAfter: cfg.Monitor.PendingAfter,
		OpenAfter:    cfg.Monitor.OpenAfter,
	}, logger)
	monitor.Start()
	defer monitor.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"addr", server.Addr,
			"database", cfg.Database.Path,
			"drawer_channels", drawer)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-cmd.Context().Done():
	}

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
