// Package worker reacts to transaction change events: it refreshes the
// spreadsheet mirror and re-runs the reminder checks.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"meufin/internal/amqp"
	"meufin/internal/notify"
	"meufin/internal/sheets"
)

// Checker runs the reminder checks.
type Checker interface {
	Check(ctx context.Context, now time.Time) ([]notify.Notification, error)
}

// Mirrorer copies the stored transactions to a mirror.
type Mirrorer interface {
	Mirror(ctx context.Context, m sheets.TransactionMirror) (sheets.MirrorResult, error)
}

type EventWorker struct {
	checker Checker
	ledger  Mirrorer
	mirror  sheets.TransactionMirror
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	handled   int
	lastEvent time.Time
}

// NewEventWorker builds a worker. mirror may be nil when no spreadsheet is
// configured.
func NewEventWorker(checker Checker, ledger Mirrorer, mirror sheets.TransactionMirror, logger *slog.Logger) *EventWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventWorker{
		checker: checker,
		ledger:  ledger,
		mirror:  mirror,
		logger:  logger,
		now:     time.Now,
	}
}

// HandleEvent processes one change notice. Mirror failures are logged and
// left for the next event, since a mirror run always rewrites everything.
// A failing reminder check is returned so the message is redelivered.
func (w *EventWorker) HandleEvent(ctx context.Context, evt *amqp.TransactionEvent) error {
	if evt == nil {
		return errors.New("nil event")
	}
	w.logger.InfoContext(ctx, "Processing transaction event",
		"action", evt.Action,
		"ids", len(evt.IDs),
		"published_at", evt.Timestamp)

	w.refreshMirror(ctx)

	if _, err := w.checker.Check(ctx, w.now()); err != nil {
		return err
	}

	w.mu.Lock()
	w.handled++
	w.lastEvent = w.now()
	w.mu.Unlock()
	return nil
}

func (w *EventWorker) refreshMirror(ctx context.Context) {
	if w.mirror == nil || w.ledger == nil {
		return
	}
	res, err := w.ledger.Mirror(ctx, w.mirror)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to refresh spreadsheet mirror", "error", err)
		return
	}
	w.logger.InfoContext(ctx, "Spreadsheet mirror refreshed", "sheet", res.Sheet, "rows", res.Rows)
}

// StartupCheck runs one mirror refresh and one reminder check so a
// restarted worker catches up on changes it missed.
func (w *EventWorker) StartupCheck(ctx context.Context) error {
	w.refreshMirror(ctx)
	sent, err := w.checker.Check(ctx, w.now())
	if err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "Startup check completed", "notifications", len(sent))
	return nil
}

// RunPeriodicCheck runs the reminder checks every interval until ctx is done.
func (w *EventWorker) RunPeriodicCheck(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "Periodic notification check started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Periodic notification check stopped")
			return nil
		case <-ticker.C:
			sent, err := w.checker.Check(ctx, w.now())
			if err != nil {
				w.logger.ErrorContext(ctx, "Periodic notification check failed", "error", err)
				continue
			}
			if len(sent) > 0 {
				w.logger.InfoContext(ctx, "Notifications sent", "count", len(sent))
			}
		}
	}
}

// Stats returns how many events were handled and when the last one was.
func (w *EventWorker) Stats() (int, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handled, w.lastEvent
}
