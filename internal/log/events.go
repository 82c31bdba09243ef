package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger writes the events that dashboards and alerts key on,
// always with the same field names.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) emit(ctx context.Context, level slog.Level, msg string, fields LogFields) {
	// fields carry their own component; bypass the wrapper's tag
	sl.logger.Logger.Log(ctx, level, msg, fields.ToSlice()...)
}

// levelForStatus is warn for client errors and error for server errors.
func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// LogHTTPEnd records a finished request.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithHTTPResponse(statusCode, durationMs, statusCode < http.StatusBadRequest).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	sl.emit(ctx, levelForStatus(statusCode), "HTTP request completed", fields)
}

func (sl *StructuredLogger) LogTransactionCreated(ctx context.Context, id int64, kind, category, amount, date string) {
	sl.emit(ctx, slog.LevelInfo, "Transaction created", NewFields().
		WithTransaction(id, kind, category, amount, date).
		WithOperation(OpCreate).
		WithComponent(ComponentLedger))
}

func (sl *StructuredLogger) LogReportSent(ctx context.Context, id int64, period, channel string) {
	sl.emit(ctx, slog.LevelInfo, "Report sent", NewFields().
		WithReport(id, period, channel).
		WithOperation(OpSend).
		WithComponent(ComponentReports))
}

// LogError records err under component and operation. fields may be nil.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	sl.emit(ctx, slog.LevelError, msg, fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component))
}
