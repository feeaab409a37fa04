// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/logging"
	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/internal/strategy"
	"github.com/gatekeep/gatekeep/internal/web"
)

const (
	serviceName     = "gatekeep"
	shutdownTimeout = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication HTTP service",
		Long: `Start the HTTP service that registers users, authenticates requests
with the configured strategy and manages sessions and password resets.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	deps.setDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logging.New(logging.Options{
		Service:   serviceName,
		Version:   version,
		Format:    cfg.Log.Format,
		Level:     cfg.Log.Level,
		PIIFields: cfg.Log.PIIFields,
	}, deps.LogWriter)
	if err != nil {
		return oops.With("operation", "set up logging").Wrap(err)
	}
	slog.SetDefault(logger)

	shutdownTracing := observability.InitTracing(serviceName, version)
	defer func() {
		traceCtx, traceCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer traceCancel()
		if err := shutdownTracing(traceCtx); err != nil {
			logger.Warn("error shutting down tracing", "error", err)
		}
	}()

	ttl, ok := cfg.Session.TTL()
	if !ok {
		logger.Warn("session duration is not a number, sessions never expire",
			"session_duration", cfg.Session.Duration)
	}

	kind := strategy.Kind(cfg.Auth.Type)
	logger.Info("starting gatekeep", "addr", cfg.Server.Addr, "auth_type", kind, "session_ttl", ttl)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b, err := openBackends(ctx, cfg, kind, deps, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		b.close(closeCtx)
	}()

	hasher, err := auth.NewHasher(cfg.Auth.Hasher)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(b.users, hasher, auth.WithLogger(logger))
	if err != nil {
		return err
	}
	strat, err := strategy.New(kind, strategy.Deps{
		Users:      b.users,
		Hasher:     hasher,
		CookieName: cfg.Session.Name,
		TTL:        ttl,
		Records:    b.records,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, b.ready)
		metrics = obsServer.Metrics()
	}

	webServer, err := deps.WebServerFactory(web.Config{
		Addr:          cfg.Server.Addr,
		Service:       svc,
		Users:         b.users,
		Strategy:      strat,
		ExcludedPaths: cfg.Auth.ExcludedPaths,
		CookieName:    cfg.Session.Name,
		Metrics:       metrics,
		Logger:        logger,
	})
	if err != nil {
		return oops.With("operation", "create web server").Wrap(err)
	}
	webErrChan, err := webServer.Start()
	if err != nil {
		return oops.With("operation", "start web server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, webErrChan, "web")

	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), shutdownTimeout)
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			stopCtx, stopCancel := shutdownCtx()
			defer stopCancel()
			if stopErr := webServer.Stop(stopCtx); stopErr != nil {
				logger.Warn("failed to stop web server during cleanup", "error", stopErr)
			}
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Gatekeep started")
	logger.Info("gatekeep ready", "addr", webServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	stopCtx, stopCancel := shutdownCtx()
	defer stopCancel()

	if err := webServer.Stop(stopCtx); err != nil {
		logger.Warn("error stopping web server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(stopCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels the context when a server reports an error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
