// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/foxwire/emberhttp/examples/echo"
	"github.com/foxwire/emberhttp/pkg/breaker"
	"github.com/foxwire/emberhttp/pkg/endpoint"
	"github.com/foxwire/emberhttp/pkg/health"
	"github.com/foxwire/emberhttp/pkg/logging"
	"github.com/foxwire/emberhttp/pkg/metrics"
	"github.com/foxwire/emberhttp/pkg/ratelimit"
	"github.com/foxwire/emberhttp/pkg/statichandler"
	"github.com/foxwire/emberhttp/pkg/supervisor"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the server until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, noEnvFile, err := loadConfig()
	if err != nil {
		return err
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	slogger := slog.New(logHandler)
	if noEnvFile {
		slogger.Warn("no .env file found, using environment variables")
	}
	logger := logging.NewSlog(slogger)

	dispatchTimeout, err := time.ParseDuration(cfg.DispatchTimeout)
	if err != nil {
		return err
	}
	breakerOpenDuration, err := time.ParseDuration(cfg.BreakerOpenDuration)
	if err != nil {
		return err
	}

	ep := endpoint.IPv4(cfg.Host, cfg.Port)
	if cfg.UnixSocket != "" {
		ep = endpoint.Unix(cfg.UnixSocket)
	}

	srv := supervisor.New(ep, logger)
	srv.Timeout = dispatchTimeout
	srv.Limiter = ratelimit.NewLimiter(cfg.RateLimitCapacity, cfg.RateLimitRefillRate, 0)
	srv.Breakers = breaker.NewPerRoute(breaker.Config{
		MaxFailures:  cfg.BreakerFailureThreshold,
		ResetTimeout: breakerOpenDuration,
	})
	srv.Metrics = metrics.New(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	checker := health.NewChecker(0)
	checker.Listening = srv.IsListening
	srv.AppendRoute("/live", health.LivenessHandler())
	srv.AppendRoute("/health", checker.HealthHandler())
	srv.AppendRoute("/ready", checker.ReadinessHandler())

	for _, route := range echo.Register(logger) {
		srv.AppendRoute(route.Pattern, route.Handler)
	}
	if cfg.StaticDir != "" {
		srv.AppendRoute("/static/*", statichandler.New(cfg.StaticDir))
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error { return waitForSignal(gctx, cancel, srv, logger) })

	if err := g.Wait(); err != nil {
		logger.LogError(logging.ErrorLine("serve", err.Error()))
		return err
	}
	logger.LogInfo("server stopped")
	return nil
}

// waitForSignal races SIGINT/SIGTERM against context cancellation. On a
// signal it stops srv and calls cancel; if ctx is done first it returns
// nil without doing either.
func waitForSignal(ctx context.Context, cancel context.CancelFunc, srv *supervisor.Server, logger logging.Logger) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case <-c:
		logger.LogInfo("received shutdown signal")
		err := srv.Stop()
		cancel()
		return err
	case <-ctx.Done():
		return nil
	}
}
