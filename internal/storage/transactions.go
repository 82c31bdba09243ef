package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"meufin/internal/core"
)

// TransactionStore is the transactions collection. IDs are assigned by the
// database on insert.
type TransactionStore struct {
	repo *SQLiteRepository
}

const transactionColumns = `id, kind, category, description, amount, date, recurring, notes, created_at`

const upsertTransaction = `
INSERT INTO transactions (id, kind, category, description, amount, date, recurring, notes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    kind = excluded.kind,
    category = excluded.category,
    description = excluded.description,
    amount = excluded.amount,
    date = excluded.date,
    recurring = excluded.recurring,
    notes = excluded.notes,
    created_at = excluded.created_at`

const insertTransaction = `
INSERT INTO transactions (kind, category, description, amount, date, recurring, notes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Put inserts tx, or replaces the stored record when tx.ID is set.
// It returns the record as stored.
func (s *TransactionStore) Put(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	db, err := s.repo.handle()
	if err != nil {
		return tx, err
	}
	s.repo.txMu.Lock()
	defer s.repo.txMu.Unlock()

	saved, err := putTransaction(ctx, db, tx)
	if err != nil {
		return tx, err
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", saved.ID,
		"kind", saved.Kind,
		"category", saved.Category,
		"amount", saved.Amount.String(),
		"date", saved.Date.String())
	return saved, nil
}

// PutMany upserts every record in one database transaction. Either all
// records are stored or none are.
func (s *TransactionStore) PutMany(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	db, err := s.repo.handle()
	if err != nil {
		return nil, err
	}
	s.repo.txMu.Lock()
	defer s.repo.txMu.Unlock()

	dbtx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap("begin bulk put", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		saved, err := putTransaction(ctx, dbtx, tx)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	if err := dbtx.Commit(); err != nil {
		return nil, wrap("commit bulk put", err)
	}

	slog.InfoContext(ctx, "Transactions bulk saved to SQLite", "count", len(out))
	return out, nil
}

func putTransaction(ctx context.Context, db execer, tx core.Transaction) (core.Transaction, error) {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	args := []any{
		string(tx.Kind),
		tx.Category,
		tx.Description,
		tx.Amount.String(),
		tx.Date.String(),
		boolToInt(tx.Recurring),
		tx.Notes,
		formatTime(tx.CreatedAt),
	}

	if tx.ID > 0 {
		if _, err := db.ExecContext(ctx, upsertTransaction, append([]any{tx.ID}, args...)...); err != nil {
			return tx, wrap("replace transaction", err)
		}
		return tx, nil
	}

	res, err := db.ExecContext(ctx, insertTransaction, args...)
	if err != nil {
		return tx, wrap("insert transaction", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return tx, wrap("read transaction id", err)
	}
	tx.ID = id
	return tx, nil
}

func (s *TransactionStore) Get(ctx context.Context, id int64) (core.Transaction, error) {
	db, err := s.repo.handle()
	if err != nil {
		return core.Transaction{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, wrap("get transaction", err)
	}
	return tx, nil
}

// GetAll returns every transaction in insertion order.
func (s *TransactionStore) GetAll(ctx context.Context) ([]core.Transaction, error) {
	db, err := s.repo.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY id`)
	if err != nil {
		return nil, wrap("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, wrap("scan transaction", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate transactions", err)
	}
	return out, nil
}

// Delete removes a transaction. Deleting a missing ID returns ErrNotFound.
func (s *TransactionStore) Delete(ctx context.Context, id int64) error {
	db, err := s.repo.handle()
	if err != nil {
		return err
	}
	s.repo.txMu.Lock()
	defer s.repo.txMu.Unlock()

	res, err := db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return wrap("delete transaction", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	return nil
}

func (s *TransactionStore) Clear(ctx context.Context) error {
	db, err := s.repo.handle()
	if err != nil {
		return err
	}
	s.repo.txMu.Lock()
	defer s.repo.txMu.Unlock()

	if _, err := db.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return wrap("clear transactions", err)
	}
	slog.WarnContext(ctx, "Transactions cleared")
	return nil
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx        core.Transaction
		kind      string
		amount    string
		date      string
		recurring int
		createdAt string
	)
	if err := row.Scan(&tx.ID, &kind, &tx.Category, &tx.Description, &amount, &date, &recurring, &tx.Notes, &createdAt); err != nil {
		return tx, err
	}
	tx.Kind = core.Kind(kind)
	if d, err := decimal.NewFromString(amount); err == nil && !d.IsNegative() {
		tx.Amount = d
	}
	if d, err := core.ParseDate(date); err == nil {
		tx.Date = d
	}
	tx.Recurring = recurring != 0
	tx.CreatedAt = parseTime(createdAt)
	return tx, nil
}
