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

type ReportStore struct {
	repo *SQLiteRepository
}

const reportColumns = `id, created_at, period, metrics, summary, pdf_data_uri, status`

// Put stores a report; a zero ID gets the next auto-increment value.
func (s *ReportStore) Put(ctx context.Context, r core.Report) (core.Report, error) {
	db, err := s.repo.handle()
	if err != nil {
		return r, err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = core.ReportStatusGenerated
	}
	metrics, err := json.Marshal(r.Metrics)
	if err != nil {
		return r, fmt.Errorf("encode report metrics: %w", err)
	}

	s.repo.reportMu.Lock()
	defer s.repo.reportMu.Unlock()

	args := []any{formatTime(r.CreatedAt), r.Period, string(metrics), r.Summary, r.PDFDataURI, r.Status}
	if r.ID > 0 {
		_, err = db.ExecContext(ctx, `
INSERT INTO reports (id, created_at, period, metrics, summary, pdf_data_uri, status)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    created_at = excluded.created_at,
    period = excluded.period,
    metrics = excluded.metrics,
    summary = excluded.summary,
    pdf_data_uri = excluded.pdf_data_uri,
    status = excluded.status`, append([]any{r.ID}, args...)...)
		if err != nil {
			return r, wrap("replace report", err)
		}
		return r, nil
	}

	res, err := db.ExecContext(ctx, `
INSERT INTO reports (created_at, period, metrics, summary, pdf_data_uri, status)
VALUES (?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return r, wrap("insert report", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return r, wrap("read report id", err)
	}
	slog.InfoContext(ctx, "Report saved to SQLite", "id", r.ID, "period", r.Period)
	return r, nil
}

func (s *ReportStore) Get(ctx context.Context, id int64) (core.Report, error) {
	db, err := s.repo.handle()
	if err != nil {
		return core.Report{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Report{}, fmt.Errorf("report %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Report{}, wrap("get report", err)
	}
	return r, nil
}

// GetAll returns reports newest first.
func (s *ReportStore) GetAll(ctx context.Context) ([]core.Report, error) {
	db, err := s.repo.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, wrap("list reports", err)
	}
	defer rows.Close()

	var out []core.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, wrap("scan report", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate reports", err)
	}
	return out, nil
}

func (s *ReportStore) Delete(ctx context.Context, id int64) error {
	db, err := s.repo.handle()
	if err != nil {
		return err
	}
	s.repo.reportMu.Lock()
	defer s.repo.reportMu.Unlock()

	res, err := db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return wrap("delete report", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("report %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *ReportStore) Clear(ctx context.Context) error {
	db, err := s.repo.handle()
	if err != nil {
		return err
	}
	s.repo.reportMu.Lock()
	defer s.repo.reportMu.Unlock()

	if _, err := db.ExecContext(ctx, `DELETE FROM reports`); err != nil {
		return wrap("clear reports", err)
	}
	slog.WarnContext(ctx, "Reports cleared")
	return nil
}

func scanReport(row rowScanner) (core.Report, error) {
	var (
		r         core.Report
		createdAt string
		metrics   string
	)
	if err := row.Scan(&r.ID, &createdAt, &r.Period, &metrics, &r.Summary, &r.PDFDataURI, &r.Status); err != nil {
		return r, err
	}
	r.CreatedAt = parseTime(createdAt)
	if err := json.Unmarshal([]byte(metrics), &r.Metrics); err != nil {
		return r, fmt.Errorf("decode report metrics: %w", err)
	}
	return r, nil
}
