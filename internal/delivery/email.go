package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"meufin/internal/core"
	"meufin/internal/telemetry"
)

//go:generate mockgen -source=email.go -destination=mocks/email_sender.go -package=mocks

// ErrMissingEmailConfig is returned when the service or template id is empty.
var ErrMissingEmailConfig = errors.New("configure service id and template id")

// EmailSender performs a single delivery attempt.
type EmailSender interface {
	Send(ctx context.Context, job core.EmailJob) error
}

// EmailQueue is the durable store behind the retry queue.
type EmailQueue interface {
	Enqueue(ctx context.Context, job core.EmailJob, cause string) (core.QueuedEmail, error)
	GetAll(ctx context.Context) ([]core.QueuedEmail, error)
	Delete(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause string) error
	Count(ctx context.Context) (int, error)
}

type SendResult struct {
	Queued bool
	// Cause is the send error that caused the job to be queued.
	Cause error
}

// EmailDispatcher sends report emails immediately and falls back to the
// durable queue on any failure. Delivery is at-least-once.
type EmailDispatcher struct {
	sender   EmailSender
	queue    EmailQueue
	recorder telemetry.Recorder
	logger   *slog.Logger
}

func NewEmailDispatcher(sender EmailSender, queue EmailQueue, recorder telemetry.Recorder, logger *slog.Logger) *EmailDispatcher {
	if recorder == nil {
		recorder = telemetry.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailDispatcher{sender: sender, queue: queue, recorder: recorder, logger: logger}
}

// Send validates the job, attempts delivery and queues it when delivery fails.
// An error is returned only for validation problems or when the job could
// not be queued.
func (d *EmailDispatcher) Send(ctx context.Context, job core.EmailJob) (SendResult, error) {
	if strings.TrimSpace(job.ServiceID) == "" || strings.TrimSpace(job.TemplateID) == "" {
		d.recorder.EmailDelivery(telemetry.OutcomeInvalid)
		return SendResult{}, ErrMissingEmailConfig
	}

	sendErr := d.sender.Send(ctx, job)
	if sendErr == nil {
		d.recorder.EmailDelivery(telemetry.OutcomeSent)
		d.logger.InfoContext(ctx, "Report email sent", "service_id", job.ServiceID)
		return SendResult{}, nil
	}

	d.logger.WarnContext(ctx, "Email send failed, queueing for retry", "service_id", job.ServiceID, "error", sendErr)
	if _, err := d.queue.Enqueue(ctx, job, sendErr.Error()); err != nil {
		d.recorder.EmailDelivery(telemetry.OutcomeFailed)
		return SendResult{}, fmt.Errorf("queue email after send failure (%v): %w", sendErr, err)
	}
	d.recorder.EmailDelivery(telemetry.OutcomeQueued)
	d.refreshDepth(ctx)
	return SendResult{Queued: true, Cause: sendErr}, nil
}

// Flush retries every queued job oldest first, removes the ones that were
// delivered and returns how many were sent. Failed jobs stay queued.
func (d *EmailDispatcher) Flush(ctx context.Context) (int, error) {
	jobs, err := d.queue.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load email queue: %w", err)
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	sent := 0
	var errs []error
	for _, q := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := d.sender.Send(ctx, q.Job); err != nil {
			d.logger.WarnContext(ctx, "Email retry failed", "id", q.ID, "attempts", q.Attempts+1, "error", err)
			if markErr := d.queue.MarkFailed(ctx, q.ID, err.Error()); markErr != nil {
				errs = append(errs, markErr)
			}
			continue
		}
		if err := d.queue.Delete(ctx, q.ID); err != nil {
			// already delivered; it will be sent again on the next flush
			errs = append(errs, fmt.Errorf("dequeue email %d: %w", q.ID, err))
		}
		sent++
		d.recorder.EmailDelivery(telemetry.OutcomeSent)
	}

	d.refreshDepth(ctx)
	if sent > 0 {
		d.logger.InfoContext(ctx, "Email queue flushed", "sent", sent, "queued", len(jobs)-sent)
	}
	return sent, errors.Join(errs...)
}

// Pending returns the number of queued jobs.
func (d *EmailDispatcher) Pending(ctx context.Context) (int, error) {
	return d.queue.Count(ctx)
}

func (d *EmailDispatcher) refreshDepth(ctx context.Context) {
	if n, err := d.queue.Count(ctx); err == nil {
		d.recorder.EmailQueueDepth(n)
	}
}
