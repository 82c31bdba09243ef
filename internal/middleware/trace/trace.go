// Package trace tags each request with an ID, hands handlers a logger that
// carries it, and records how the request ended.
package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "meufin/internal/log"
)

// HeaderRequestID is read from the client when present and always echoed back.
const HeaderRequestID = "X-Request-ID"

const maxIncomingID = 64

type requestIDKey struct{}

// Observer receives one observation per finished request. route is the
// matched mux pattern, or "unmatched".
type Observer interface {
	ObserveHTTP(route, method string, status int, elapsed time.Duration)
}

type Middleware struct {
	extractIP func(*http.Request) string
	logger    *applog.Logger
	observer  Observer

	served     atomic.Int64
	lastMicros atomic.Int64
}

type Metrics struct {
	TotalRequests int64
	// LastResponseTime is in microseconds.
	LastResponseTime int64
}

// NewMiddleware builds the tracer. extractIP and observer may be nil.
func NewMiddleware(logger *applog.Logger, extractIP func(*http.Request) string, observer Observer) *Middleware {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Middleware{
		extractIP: extractIP,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		observer:  observer,
	}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > maxIncomingID {
			id = NewRequestID()
		}
		w.Header().Set(HeaderRequestID, id)

		scoped := m.logger.With(applog.FieldRequestID, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		r = r.WithContext(applog.WithLogger(ctx, scoped))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		m.served.Add(1)
		m.lastMicros.Store(elapsed.Microseconds())

		var clientIP string
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		applog.NewStructuredLogger(scoped).LogHTTPEnd(r.Context(), r, rec.status, elapsed.Milliseconds(), clientIP)

		if m.observer == nil {
			return
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.observer.ObserveHTTP(route, r.Method, rec.status, elapsed)
	})
}

// statusRecorder remembers the first status written.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.written {
		s.status, s.written = code, true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.written = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func NewRequestID() string {
	return "req_" + uuid.NewString()
}

// RequestID returns the ID assigned to the request carrying ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:    m.served.Load(),
		LastResponseTime: m.lastMicros.Load(),
	}
}
