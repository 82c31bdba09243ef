package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"meufin/internal/backend"
	"meufin/internal/cli"
	apphttp "meufin/internal/http"
	applog "meufin/internal/log"
	"meufin/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting meufin")

	cfg := cli.LoadAndValidateConfig(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	b, err := backend.New(context.Background(), cfg, logger, backend.Options{
		AMQP:     true,
		Sheets:   true,
		Registry: reg,
	})
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}

	// emails queued while the server was down go out before serving
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 30*time.Second)
	if sent, err := b.Email.Flush(flushCtx); err != nil {
		logger.Warn("Startup email flush failed", "error", err)
	} else if sent > 0 {
		logger.Info("Startup email flush", "sent", sent)
	}
	cancelFlush()

	svc := apphttp.Services{
		Ledger:        b.Ledger,
		Reports:       b.Reports,
		Notifications: b.Notifications,
		DB:            b.Repo,
	}
	if b.Auth != nil {
		svc.Auth = b.Auth
	}
	if b.Mirror != nil {
		svc.Mirror = b.Mirror
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:        ":" + cfg.Port,
		AuthEnabled: cfg.AuthEnabled,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		Location: cfg.Location(),
		Logger:   logger,
		Recorder: b.Recorder,
		Gatherer: reg,
	}, svc)
	if err != nil {
		logger.Error("Failed to create HTTP server", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := b.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	})

	go b.Janitor.Run(ctx)

	logger.WithComponent(applog.ComponentHTTP).Info("Listening",
		"port", cfg.Port,
		"auth", cfg.AuthEnabled,
		"amqp", b.Events != nil,
		"sheets", b.Mirror != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = b.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
