package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/logger"
	"github.com/vertextoedge/swiftsaver/internal/service/library"
	"github.com/vertextoedge/swiftsaver/internal/service/maintenance"
	"github.com/vertextoedge/swiftsaver/internal/service/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the download registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), runServe)
		},
	}
}

func runServe(a *app) error {
	cfg := a.cfg
	zapLogger := a.logger
	zapLogger.Info("starting swiftsaver",
		zap.String("version", version),
		zap.String("config", configPath),
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := library.NewWatcher(a.library.Dir(), a.events, 0, logger.Named("watcher"))

	maintenanceService := maintenance.New(&maintenance.Config{
		CleanupInterval:    cfg.Maintenance.GetCleanupInterval(),
		FinishedTaskMaxAge: cfg.Maintenance.GetFinishedTaskMaxAge(),
		TempFileMaxAge:     cfg.Maintenance.GetTempFileMaxAge(),
		LowSpacePercent:    cfg.Maintenance.LowSpacePercent,
	}, a.registry, a.fs, logger.Named("maintenance"))

	httpServer := server.New(&server.Config{
		BindAddr:       cfg.HTTP.BindAddr,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		ReadTimeout:    cfg.HTTP.GetReadTimeout(),
		WriteTimeout:   cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:    cfg.HTTP.GetIdleTimeout(),
	}, server.Deps{
		Resolver:    a.resolver,
		Downloads:   a.registry,
		Library:     a.library,
		Preferences: a.prefs,
		Accounts:    a.accounts,
		Store:       a.store,
		Events:      a.events,
		Metrics:     a.metrics,
	}, logger.Named("http"))

	serverErr := make(chan error, 1)

	// Start HTTP server
	go func() {
		serverErr <- httpServer.Start()
	}()

	// Start library watcher
	go func() {
		if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("library watcher stopped with error", zap.Error(err))
		}
	}()

	// Start maintenance service
	go func() {
		if err := maintenanceService.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("maintenance service stopped with error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	zapLogger.Info("application started successfully",
		zap.String("http_addr", cfg.HTTP.BindAddr),
		zap.String("download_dir", a.library.Dir()),
		zap.Bool("backend", a.backend.Enabled()),
	)

	var runErr error
	select {
	case <-sigChan:
		zapLogger.Info("shutdown signal received, stopping services...")
	case runErr = <-serverErr:
		if runErr != nil {
			zapLogger.Error("HTTP server failed", zap.Error(runErr))
		}
	}

	// Cancel context to stop the watcher and maintenance loops
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	maintenanceService.Stop()

	// Stop HTTP server
	if err := httpServer.Stop(shutdownCtx); err != nil {
		zapLogger.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}

	zapLogger.Info("application stopped successfully")
	return runErr
}
