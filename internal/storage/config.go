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

// ConfigStore is the singleton configuration collection, stored as JSON
// under core.ConfigKey.
type ConfigStore struct {
	repo *SQLiteRepository
}

// Get returns ErrNotFound until a configuration has been stored.
func (s *ConfigStore) Get(ctx context.Context) (core.Configuration, error) {
	db, err := s.repo.handle()
	if err != nil {
		return core.Configuration{}, err
	}
	var body string
	err = db.QueryRowContext(ctx, `SELECT body FROM config WHERE key = ?`, core.ConfigKey).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Configuration{}, fmt.Errorf("config %q: %w", core.ConfigKey, ErrNotFound)
	}
	if err != nil {
		return core.Configuration{}, wrap("get config", err)
	}

	cfg := core.DefaultConfiguration()
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		return core.Configuration{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// GetOrDefault returns the stored configuration, or the defaults when none
// has been saved yet.
func (s *ConfigStore) GetOrDefault(ctx context.Context) (core.Configuration, error) {
	cfg, err := s.Get(ctx)
	if errors.Is(err, ErrNotFound) {
		return core.DefaultConfiguration(), nil
	}
	return cfg, err
}

// GetAll returns zero or one configuration record.
func (s *ConfigStore) GetAll(ctx context.Context) ([]core.Configuration, error) {
	cfg, err := s.Get(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []core.Configuration{cfg}, nil
}

func (s *ConfigStore) Put(ctx context.Context, cfg core.Configuration) error {
	db, err := s.repo.handle()
	if err != nil {
		return err
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	s.repo.configMu.Lock()
	defer s.repo.configMu.Unlock()

	_, err = db.ExecContext(ctx, `
INSERT INTO config (key, body, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		core.ConfigKey, string(body), formatTime(time.Now()))
	if err != nil {
		return wrap("put config", err)
	}
	slog.InfoContext(ctx, "Configuration saved", "key", core.ConfigKey)
	return nil
}

func (s *ConfigStore) Delete(ctx context.Context) error {
	return s.Clear(ctx)
}

func (s *ConfigStore) Clear(ctx context.Context) error {
	db, err := s.repo.handle()
	if err != nil {
		return err
	}
	s.repo.configMu.Lock()
	defer s.repo.configMu.Unlock()

	if _, err := db.ExecContext(ctx, `DELETE FROM config`); err != nil {
		return wrap("clear config", err)
	}
	return nil
}
