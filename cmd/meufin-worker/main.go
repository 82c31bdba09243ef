package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"meufin/internal/backend"
	"meufin/internal/cli"
	applog "meufin/internal/log"
	"meufin/internal/services"
	"meufin/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting meufin worker")

	cfg := cli.LoadAndValidateConfig(logger)

	b, err := backend.New(context.Background(), cfg, logger, backend.Options{AMQP: true, Sheets: true})
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}
	if b.Events == nil {
		logger.Warn("AMQP disabled, only the periodic loops will run")
	}

	log := logger.WithComponent(applog.ComponentWorker)
	w := worker.NewEventWorker(b.Notifications, b.Ledger, b.Mirror, log.Slog())
	flusher := services.NewFlushProcessor(b.Email,
		services.FlushProcessorConfig{Interval: cfg.EmailFlushInterval},
		logger.WithComponent(applog.ComponentDelivery).Slog())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := flusher.Stop(ctx); err != nil {
			log.Error("Flush processor stop error", "error", err)
		}
	})

	if err := w.StartupCheck(ctx); err != nil {
		log.Warn("Startup check failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if b.Events != nil {
		g.Go(func() error {
			err := b.Events.ConsumeTransactionEvents(gctx, w.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		return flusher.Start(gctx)
	})
	g.Go(func() error {
		return w.RunPeriodicCheck(gctx, cfg.NotifyInterval)
	})

	log.Info("Worker running",
		"amqp", b.Events != nil,
		"sheets", b.Mirror != nil,
		"flush_interval", cfg.EmailFlushInterval,
		"notify_interval", cfg.NotifyInterval)

	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with error", "error", err)
		_ = b.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	handled, last := w.Stats()
	if err := b.Close(); err != nil {
		log.Error("Backend close error", "error", err)
	}
	log.Info("Worker stopped gracefully", "events_handled", handled, "last_event", last)
}
