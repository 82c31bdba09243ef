// Package backend assembles the storage, delivery, notification and
// messaging collaborators from the validated configuration. The server,
// the worker and the operator CLI all start from here.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"meufin/internal/amqp"
	"meufin/internal/auth"
	"meufin/internal/cache"
	"meufin/internal/config"
	"meufin/internal/delivery"
	applog "meufin/internal/log"
	"meufin/internal/notify"
	"meufin/internal/report"
	"meufin/internal/services"
	"meufin/internal/sheets"
	gsheet "meufin/internal/sheets/google"
	"meufin/internal/storage"
	"meufin/internal/telemetry"
)

const (
	pdfCacheSize    = 32
	pdfCacheTTL     = 30 * time.Minute
	janitorInterval = 5 * time.Minute
)

// Options selects the optional collaborators a binary needs.
type Options struct {
	// AMQP connects the event client when AMQP_URL is set. A connection
	// failure is logged and the backend continues without events.
	AMQP bool
	// Sheets creates the Google Sheets mirror when a spreadsheet is configured.
	Sheets bool
	// Registry receives the Prometheus collectors; nil disables metrics.
	Registry prometheus.Registerer
	// Renderer overrides the PDF renderer, mainly for tests.
	Renderer report.RendererFactory
	// PDFTTL overrides how long rendered PDFs stay cached.
	PDFTTL time.Duration
}

// Backend holds every long-lived collaborator. Fields for optional parts
// are nil when the part is disabled.
type Backend struct {
	Repo          *storage.SQLiteRepository
	Ledger        *services.LedgerService
	Reports       *services.ReportService
	Notifications *services.NotificationService
	Auth          *auth.Service
	Email         *delivery.EmailDispatcher
	Scheduler     *notify.Scheduler
	Mirror        sheets.TransactionMirror
	Events        *amqp.Client
	PDFs          *cache.LRU[int64, []byte]
	// Janitor sweeps PDFs; only the process serving reports needs to run it.
	Janitor       *cache.Janitor
	Recorder      telemetry.Recorder

	logger *applog.Logger
}

// New opens storage and builds the services. Close releases everything
// New acquired.
func New(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts Options) (*Backend, error) {
	if cfg == nil {
		return nil, errors.New("backend: nil config")
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	b := &Backend{logger: logger, Recorder: telemetry.Nop{}}
	if opts.Registry != nil {
		b.Recorder = telemetry.NewPrometheusRecorder(opts.Registry)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	b.Repo = repo
	logger.WithComponent(applog.ComponentStorage).Info("SQLite repository ready", "path", cfg.SQLiteDBPath)

	if opts.AMQP && cfg.AMQPURL != "" {
		b.connectEvents(cfg)
	}
	if opts.Sheets && cfg.SheetsEnabled() {
		if err := b.connectSheets(ctx, cfg); err != nil {
			_ = b.Close()
			return nil, err
		}
	}

	notifier, err := b.notifier(cfg)
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	var events services.EventPublisher
	if b.Events != nil {
		events = b.Events
	}
	b.Ledger = services.NewLedgerService(repo.Transactions(), repo.Config(), events, b.Recorder,
		logger.WithComponent(applog.ComponentLedger).Slog())

	renderer := opts.Renderer
	if renderer == nil {
		renderer = report.NewMarotoRenderer
	}
	gen := report.NewGenerator(renderer,
		report.WithLogger(logger.WithComponent(applog.ComponentReports).Slog()),
		report.WithLocation(cfg.Location()))

	b.Email = delivery.NewEmailDispatcher(
		delivery.NewEmailJSClient(cfg.EmailAPIURL, cfg.WebhookTimeout),
		repo.EmailQueue(), b.Recorder, logger.WithComponent(applog.ComponentDelivery).Slog())
	whatsapp := delivery.NewWhatsAppClient(cfg.WebhookTimeout, b.Recorder, logger.WithComponent(applog.ComponentDelivery).Slog())

	ttl := opts.PDFTTL
	if ttl <= 0 {
		ttl = pdfCacheTTL
	}
	b.PDFs = cache.NewLRU[int64, []byte](pdfCacheSize, ttl)
	b.Janitor = cache.NewJanitor(janitorInterval, logger.WithComponent(applog.ComponentCache).Slog(), b.PDFs)
	b.Reports = services.NewReportService(b.Ledger, repo.Reports(), gen, b.Email, whatsapp, b.PDFs, b.Recorder,
		logger.WithComponent(applog.ComponentReports).Slog())

	b.Scheduler = notify.NewScheduler(repo.NotificationState(), notifier, b.Recorder,
		logger.WithComponent(applog.ComponentNotify).Slog())
	b.Notifications = services.NewNotificationService(b.Ledger, b.Scheduler)

	if cfg.JWTSecret != "" {
		tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("token service: %w", err)
		}
		b.Auth = auth.NewService(repo.Users(), auth.NewHasher(cfg.BcryptCost), tokens,
			services.NewNotifierCodeSender(notifier), logger.WithComponent(applog.ComponentAuth).Slog())
	}

	return b, nil
}

func (b *Backend) connectEvents(cfg *config.Config) {
	log := b.logger.WithComponent(applog.ComponentAMQP)
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		log.Warn("Failed to connect to AMQP, continuing without events", "error", err)
		return
	}
	client.SetRecorder(b.Recorder)
	b.Events = client
	log.Info("AMQP client connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
}

func (b *Backend) connectSheets(ctx context.Context, cfg *config.Config) error {
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return fmt.Errorf("google sheets: %w", err)
	}
	b.Mirror = client
	b.logger.WithComponent(applog.ComponentSheets).Info("Google Sheets mirror ready", "sheet", client.Sheet())
	return nil
}

// notifier always logs; Discord is added when configured.
func (b *Backend) notifier(cfg *config.Config) (notify.Notifier, error) {
	logNotifier := notify.NewLogNotifier(b.logger.WithComponent(applog.ComponentNotify).Slog())
	if !cfg.DiscordEnabled() {
		return logNotifier, nil
	}
	discord, err := notify.NewDiscordNotifier(cfg.DiscordBotToken, cfg.DiscordChannelID)
	if err != nil {
		return nil, fmt.Errorf("discord notifier: %w", err)
	}
	return notify.Multi{logNotifier, discord}, nil
}

// Slog returns the logger the backend was built with, as *slog.Logger.
func (b *Backend) Slog() *slog.Logger { return b.logger.Slog() }

// Close releases the AMQP connection and the database.
func (b *Backend) Close() error {
	var errs []error
	if b.Events != nil {
		if err := b.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp: %w", err))
		}
	}
	if b.Repo != nil {
		if err := b.Repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
