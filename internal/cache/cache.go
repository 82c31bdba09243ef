// Package cache holds the in-process caches of the server, currently the
// rendered report PDFs.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner is a cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically cleans the registered caches.
type Janitor struct {
	caches   []Cleaner
	interval time.Duration
	logger   *slog.Logger
}

func NewJanitor(interval time.Duration, logger *slog.Logger, caches ...Cleaner) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{caches: caches, interval: interval, logger: logger}
}

// Run blocks until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.DebugContext(ctx, "Expired cache entries removed", "count", n)
			}
		}
	}
}

// Sweep cleans every cache once and returns the number of removed entries.
func (j *Janitor) Sweep() int {
	total := 0
	for _, c := range j.caches {
		total += c.CleanExpired()
	}
	return total
}
