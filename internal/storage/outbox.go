package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"meufin/internal/core"
)

// EmailQueueStore is the durable FIFO of email jobs awaiting retry.
type EmailQueueStore struct {
	repo *SQLiteRepository
}

func (s *EmailQueueStore) Enqueue(ctx context.Context, job core.EmailJob, cause string) (core.QueuedEmail, error) {
	db, err := s.repo.handle()
	if err != nil {
		return core.QueuedEmail{}, err
	}
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return core.QueuedEmail{}, fmt.Errorf("encode email payload: %w", err)
	}

	s.repo.queueMu.Lock()
	defer s.repo.queueMu.Unlock()

	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
INSERT INTO email_queue (service_id, template_id, public_key, private_key, payload, attempts, last_error, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		job.ServiceID, job.TemplateID, job.PublicKey, job.PrivateKey, string(payload), cause, formatTime(now), formatTime(now))
	if err != nil {
		return core.QueuedEmail{}, wrap("enqueue email", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.QueuedEmail{}, wrap("read email queue id", err)
	}

	slog.InfoContext(ctx, "Email queued for retry", "id", id, "service_id", job.ServiceID)
	return core.QueuedEmail{ID: id, Job: job, Attempts: 1, LastError: cause, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *EmailQueueStore) Get(ctx context.Context, id int64) (core.QueuedEmail, error) {
	db, err := s.repo.handle()
	if err != nil {
		return core.QueuedEmail{}, err
	}
	row := db.QueryRowContext(ctx, `
SELECT id, service_id, template_id, public_key, private_key, payload, attempts, last_error, created_at, updated_at
FROM email_queue WHERE id = ?`, id)
	q, err := scanQueued(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.QueuedEmail{}, fmt.Errorf("queued email %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.QueuedEmail{}, wrap("get queued email", err)
	}
	return q, nil
}

// GetAll returns the queue oldest first.
func (s *EmailQueueStore) GetAll(ctx context.Context) ([]core.QueuedEmail, error) {
	db, err := s.repo.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
SELECT id, service_id, template_id, public_key, private_key, payload, attempts, last_error, created_at, updated_at
FROM email_queue ORDER BY id`)
	if err != nil {
		return nil, wrap("list email queue", err)
	}
	defer rows.Close()

	var out []core.QueuedEmail
	for rows.Next() {
		q, err := scanQueued(rows)
		if err != nil {
			return nil, wrap("scan queued email", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate email queue", err)
	}
	return out, nil
}

func (s *EmailQueueStore) Count(ctx context.Context) (int, error) {
	db, err := s.repo.handle()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_queue`).Scan(&n); err != nil {
		return 0, wrap("count email queue", err)
	}
	return n, nil
}

// MarkFailed records another failed attempt for a queued job.
func (s *EmailQueueStore) MarkFailed(ctx context.Context, id int64, cause string) error {
	db, err := s.repo.handle()
	if err != nil {
		return err
	}
	s.repo.queueMu.Lock()
	defer s.repo.queueMu.Unlock()

	_, err = db.ExecContext(ctx, `UPDATE email_queue SET attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`,
		cause, formatTime(time.Now()), id)
	if err != nil {
		return wrap("mark email failed", err)
	}
	return nil
}

func (s *EmailQueueStore) Delete(ctx context.Context, id int64) error {
	db, err := s.repo.handle()
	if err != nil {
		return err
	}
	s.repo.queueMu.Lock()
	defer s.repo.queueMu.Unlock()

	if _, err := db.ExecContext(ctx, `DELETE FROM email_queue WHERE id = ?`, id); err != nil {
		return wrap("delete queued email", err)
	}
	return nil
}

func (s *EmailQueueStore) Clear(ctx context.Context) error {
	db, err := s.repo.handle()
	if err != nil {
		return err
	}
	s.repo.queueMu.Lock()
	defer s.repo.queueMu.Unlock()

	if _, err := db.ExecContext(ctx, `DELETE FROM email_queue`); err != nil {
		return wrap("clear email queue", err)
	}
	return nil
}

func scanQueued(row rowScanner) (core.QueuedEmail, error) {
	var (
		q                    core.QueuedEmail
		payload              string
		createdAt, updatedAt string
	)
	err := row.Scan(&q.ID, &q.Job.ServiceID, &q.Job.TemplateID, &q.Job.PublicKey, &q.Job.PrivateKey,
		&payload, &q.Attempts, &q.LastError, &createdAt, &updatedAt)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(payload), &q.Job.Payload); err != nil {
		return q, fmt.Errorf("decode email payload: %w", err)
	}
	q.CreatedAt = parseTime(createdAt)
	q.UpdatedAt = parseTime(updatedAt)
	return q, nil
}

// StateStore keeps the last-fired timestamp of each notification kind.
type StateStore struct {
	repo *SQLiteRepository
}

// LastFired returns the zero time when the key never fired.
func (s *StateStore) LastFired(ctx context.Context, key string) (time.Time, error) {
	db, err := s.repo.handle()
	if err != nil {
		return time.Time{}, err
	}
	var at string
	err = db.QueryRowContext(ctx, `SELECT last_fired_at FROM notification_state WHERE key = ?`, key).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, wrap("get notification state", err)
	}
	return parseTime(at), nil
}

func (s *StateStore) SetLastFired(ctx context.Context, key string, at time.Time) error {
	db, err := s.repo.handle()
	if err != nil {
		return err
	}
	s.repo.stateMu.Lock()
	defer s.repo.stateMu.Unlock()

	_, err = db.ExecContext(ctx, `
INSERT INTO notification_state (key, last_fired_at) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET last_fired_at = excluded.last_fired_at`, key, formatTime(at))
	if err != nil {
		return wrap("set notification state", err)
	}
	return nil
}

func (s *StateStore) Clear(ctx context.Context) error {
	db, err := s.repo.handle()
	if err != nil {
		return err
	}
	s.repo.stateMu.Lock()
	defer s.repo.stateMu.Unlock()

	if _, err := db.ExecContext(ctx, `DELETE FROM notification_state`); err != nil {
		return wrap("clear notification state", err)
	}
	return nil
}
