// Package ratelimit throttles mutating requests per client with a token bucket.
package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
	// StaleAfter is how long an idle client is remembered.
	StaleAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 5,
		Burst:             20,
		CleanupInterval:   5 * time.Minute,
		StaleAfter:        10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = def.RequestsPerSecond
	}
	if c.Burst <= 0 {
		c.Burst = def.Burst
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = def.StaleAfter
	}
	return c
}

type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client IP and forgets idle clients.
type Limiter struct {
	cfg  Config
	rps  rate.Limit
	now  func() time.Time
	stop context.CancelFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	limited atomic.Int64
}

// NewLimiter starts the sweeper goroutine; Stop releases it.
func NewLimiter(config Config) *Limiter {
	cfg := config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	rl := &Limiter{
		cfg:     cfg,
		rps:     rate.Limit(cfg.RequestsPerSecond),
		now:     time.Now,
		stop:    cancel,
		buckets: make(map[string]*bucket),
	}
	go rl.sweepLoop(ctx)
	return rl
}

// Allow takes a token for clientIP. When none is left it returns false and
// how long until the next one.
func (rl *Limiter) Allow(clientIP string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	b := rl.buckets[clientIP]
	if b == nil {
		b = &bucket{tokens: rate.NewLimiter(rl.rps, rl.cfg.Burst)}
		rl.buckets[clientIP] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	res := b.tokens.ReserveN(now, 1)
	wait := res.DelayFrom(now)
	if wait == 0 {
		return true, 0
	}
	res.CancelAt(now)
	rl.limited.Add(1)
	return false, wait
}

func (rl *Limiter) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep drops clients idle for longer than StaleAfter.
func (rl *Limiter) sweep() int {
	cutoff := rl.now().Add(-rl.cfg.StaleAfter)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
			n++
		}
	}
	return n
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *Limiter) Stop() { rl.stop() }

type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (rl *Limiter) GetMetrics() Metrics {
	rl.mu.Lock()
	clients := len(rl.buckets)
	rl.mu.Unlock()
	return Metrics{TotalHits: rl.limited.Load(), ClientCount: int64(clients)}
}

// Mutating reports whether the method changes server state.
func Mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Middleware limits mutating requests; reads always pass through. onLimit
// writes the rejection after Retry-After is set; nil means a plain 429.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := rl.Allow(extractIP(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		})
	}
}

func retryAfterSeconds(wait time.Duration) int {
	return max(1, int(math.Ceil(wait.Seconds())))
}
