package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"meufin/internal/core"
)

var (
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotEmpty is returned by CreateFirst once any user exists.
	ErrNotEmpty = errors.New("users already exist")
)

type UserStore struct {
	repo *SQLiteRepository
}

const userColumns = `id, name, email, password_hash, is_admin, reset_code_hash, reset_expires_at, created_at`

func (s *UserStore) Create(ctx context.Context, u core.User) (core.User, error) {
	return s.insert(ctx, `
INSERT INTO users (name, email, password_hash, is_admin, reset_code_hash, reset_expires_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`, u)
}

// CreateFirst inserts u only while the table is empty and returns
// ErrNotEmpty otherwise. The emptiness check and the insert are a single
// statement, so two concurrent callers cannot both succeed.
func (s *UserStore) CreateFirst(ctx context.Context, u core.User) (core.User, error) {
	return s.insert(ctx, `
INSERT INTO users (name, email, password_hash, is_admin, reset_code_hash, reset_expires_at, created_at)
SELECT ?, ?, ?, ?, ?, ?, ?
WHERE NOT EXISTS (SELECT 1 FROM users)`, u)
}

func (s *UserStore) insert(ctx context.Context, query string, u core.User) (core.User, error) {
	db, err := s.repo.handle()
	if err != nil {
		return u, err
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	s.repo.userMu.Lock()
	defer s.repo.userMu.Unlock()

	res, err := db.ExecContext(ctx, query,
		u.Name, u.Email, u.PasswordHash, boolToInt(u.IsAdmin), u.ResetCodeHash, formatTime(u.ResetExpiresAt), formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return u, fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
		}
		return u, wrap("insert user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return u, wrap("insert user", err)
	}
	if n == 0 {
		return u, ErrNotEmpty
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return u, wrap("read user id", err)
	}
	return u, nil
}

// Update replaces the mutable columns of an existing user.
func (s *UserStore) Update(ctx context.Context, u core.User) error {
	db, err := s.repo.handle()
	if err != nil {
		return err
	}
	s.repo.userMu.Lock()
	defer s.repo.userMu.Unlock()

	res, err := db.ExecContext(ctx, `
UPDATE users SET name = ?, password_hash = ?, is_admin = ?, reset_code_hash = ?, reset_expires_at = ?
WHERE id = ?`,
		u.Name, u.PasswordHash, boolToInt(u.IsAdmin), u.ResetCodeHash, formatTime(u.ResetExpiresAt), u.ID)
	if err != nil {
		return wrap("update user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %d: %w", u.ID, ErrNotFound)
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, id int64) (core.User, error) {
	return s.getBy(ctx, "id", id)
}

// GetByEmail matches case-insensitively.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (core.User, error) {
	return s.getBy(ctx, "email", strings.TrimSpace(email))
}

func (s *UserStore) getBy(ctx context.Context, column string, value any) (core.User, error) {
	db, err := s.repo.handle()
	if err != nil {
		return core.User{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %v: %w", value, ErrNotFound)
	}
	if err != nil {
		return core.User{}, wrap("get user", err)
	}
	return u, nil
}

func (s *UserStore) GetAll(ctx context.Context) ([]core.User, error) {
	db, err := s.repo.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, wrap("list users", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrap("scan user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate users", err)
	}
	return out, nil
}

func (s *UserStore) Delete(ctx context.Context, id int64) error {
	db, err := s.repo.handle()
	if err != nil {
		return err
	}
	s.repo.userMu.Lock()
	defer s.repo.userMu.Unlock()

	if _, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return wrap("delete user", err)
	}
	return nil
}

func scanUser(row rowScanner) (core.User, error) {
	var (
		u                  core.User
		admin              int
		resetAt, createdAt string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &admin, &u.ResetCodeHash, &resetAt, &createdAt); err != nil {
		return u, err
	}
	u.IsAdmin = admin != 0
	u.ResetExpiresAt = parseTime(resetAt)
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
