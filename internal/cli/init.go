// Package cli holds the start-up steps shared by cmd/meufin,
// cmd/meufin-worker and cmd/meufinctl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"meufin/internal/config"
	applog "meufin/internal/log"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
// ("json" or text) and installs it as the slog default.
func SetupLogger() *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: applog.ComponentApp,
		JSON:      strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "json"),
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development; a missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger.Debug("Configuration loaded",
		"db", cfg.SQLiteDBPath,
		"timezone", cfg.Timezone,
		"auth", cfg.AuthEnabled,
		"amqp", cfg.AMQPURL != "",
		"sheets", cfg.SheetsEnabled(),
		"discord", cfg.DiscordEnabled())
	return cfg
}

// GracefulShutdown waits for SIGINT or SIGTERM in the background, then runs
// cleanup with a context bounded by timeout. The returned context is
// cancelled after cleanup; the channel is closed when everything is done.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer close(done)
		<-sigCtx.Done()
		stop()
		logger.Info("Shutdown signal received")

		cleanupCtx, cancelCleanup := context.WithTimeout(context.Background(), timeout)
		defer cancelCleanup()
		if cleanup != nil {
			cleanup(cleanupCtx)
		}
		cancel()

		if cleanupCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached", "timeout", timeout)
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
