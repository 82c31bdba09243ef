package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Flusher retries queued deliveries and reports how many went out.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

var ErrFlushRunning = errors.New("flush processor is already running")

type FlushProcessorConfig struct {
	// Interval between queue retries; zero means one minute.
	Interval time.Duration
}

func DefaultFlushProcessorConfig() FlushProcessorConfig {
	return FlushProcessorConfig{Interval: time.Minute}
}

// FlushProcessor drains the durable email queue in the background. The
// first pass runs right away so mail queued while offline goes out on start.
type FlushProcessor struct {
	flusher Flusher
	config  FlushProcessorConfig
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	sent   int
}

func NewFlushProcessor(flusher Flusher, config FlushProcessorConfig, logger *slog.Logger) *FlushProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultFlushProcessorConfig().Interval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FlushProcessor{flusher: flusher, config: config, logger: logger}
}

// Start launches the loop; it ends on Stop or when ctx is cancelled.
func (p *FlushProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrFlushRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx, p.done)

	p.logger.InfoContext(ctx, "Email flush processor started", "interval", p.config.Interval)
	return nil
}

// Stop cancels the loop and waits for the pass in flight, bounded by ctx.
func (p *FlushProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Email flush processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	p.logger.InfoContext(ctx, "Email flush processor stopped", "sent", p.Sent())
	return nil
}

func (p *FlushProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Sent is the number of emails this processor delivered.
func (p *FlushProcessor) Sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

func (p *FlushProcessor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	tick := time.NewTicker(p.config.Interval)
	defer tick.Stop()

	for {
		p.FlushOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// FlushOnce runs one pass. Partial progress is counted even on error.
func (p *FlushProcessor) FlushOnce(ctx context.Context) int {
	n, err := p.flusher.Flush(ctx)
	if err != nil && ctx.Err() == nil {
		p.logger.WarnContext(ctx, "Email flush incomplete", "sent", n, "error", err)
	}
	if n > 0 {
		p.mu.Lock()
		p.sent += n
		p.mu.Unlock()
	}
	return n
}
