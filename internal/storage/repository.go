package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrUnavailable is returned by every operation once the database is
	// closed or was never opened.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrNotFound is returned when a keyed lookup has no row.
	ErrNotFound = errors.New("record not found")
)

const timeLayout = time.RFC3339Nano

// SQLiteRepository owns the database handle shared by every collection store.
type SQLiteRepository struct {
	db     *sql.DB
	closed atomic.Bool

	txMu     sync.Mutex
	configMu sync.Mutex
	reportMu sync.Mutex
	queueMu  sync.Mutex
	stateMu  sync.Mutex
	userMu   sync.Mutex
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// NewWithDB wraps an already migrated handle.
func NewWithDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil || !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return r.db.Close()
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	db, err := r.handle()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return wrap("ping database", err)
	}
	return nil
}

func (r *SQLiteRepository) handle() (*sql.DB, error) {
	if r == nil || r.db == nil || r.closed.Load() {
		return nil, ErrUnavailable
	}
	return r.db, nil
}

func (r *SQLiteRepository) Transactions() *TransactionStore { return &TransactionStore{repo: r} }
func (r *SQLiteRepository) Config() *ConfigStore            { return &ConfigStore{repo: r} }
func (r *SQLiteRepository) Reports() *ReportStore           { return &ReportStore{repo: r} }
func (r *SQLiteRepository) EmailQueue() *EmailQueueStore    { return &EmailQueueStore{repo: r} }
func (r *SQLiteRepository) NotificationState() *StateStore  { return &StateStore{repo: r} }
func (r *SQLiteRepository) Users() *UserStore               { return &UserStore{repo: r} }

// wrap annotates err with op and maps a closed connection to ErrUnavailable.
func wrap(op string, err error) error {
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}
