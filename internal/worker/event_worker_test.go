package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meufin/internal/amqp"
	"meufin/internal/core"
	"meufin/internal/notify"
	"meufin/internal/sheets"
	"meufin/internal/sheets/memory"
)

type fakeChecker struct {
	calls int
	err   error
	sent  []notify.Notification
}

func (f *fakeChecker) Check(context.Context, time.Time) ([]notify.Notification, error) {
	f.calls++
	return f.sent, f.err
}

type fakeLedger struct {
	txs []core.Transaction
	err error
}

func (f *fakeLedger) Mirror(ctx context.Context, m sheets.TransactionMirror) (sheets.MirrorResult, error) {
	if f.err != nil {
		return sheets.MirrorResult{}, f.err
	}
	return m.Mirror(ctx, f.txs)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleEvent(t *testing.T) {
	checker := &fakeChecker{}
	ledger := &fakeLedger{txs: []core.Transaction{{ID: 1, Kind: core.KindOutflow, Category: "Moradia", Date: core.NewDate(2024, 3, 1)}}}
	mirror := memory.New()
	w := NewEventWorker(checker, ledger, mirror, quietLogger())
	fixed := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	require.NoError(t, w.HandleEvent(context.Background(), amqp.NewTransactionEvent(amqp.ActionCreated, 1)))

	assert.Equal(t, 1, checker.calls)
	assert.Equal(t, 1, mirror.Runs())
	rows := mirror.Rows()
	require.Len(t, rows, 2, "header plus one transaction")
	assert.Equal(t, "Moradia", rows[1][2])
	handled, last := w.Stats()
	assert.Equal(t, 1, handled)
	assert.Equal(t, fixed, last)
}

func TestHandleEventMirrorFailureIsNotFatal(t *testing.T) {
	checker := &fakeChecker{}
	w := NewEventWorker(checker, &fakeLedger{err: errors.New("quota exceeded")}, memory.New(), quietLogger())

	assert.NoError(t, w.HandleEvent(context.Background(), amqp.NewTransactionEvent(amqp.ActionDeleted, 2)))
	assert.Equal(t, 1, checker.calls)
}

func TestHandleEventCheckFailureRequeues(t *testing.T) {
	checker := &fakeChecker{err: errors.New("database is locked")}
	w := NewEventWorker(checker, nil, nil, quietLogger())

	err := w.HandleEvent(context.Background(), amqp.NewTransactionEvent(amqp.ActionCleared))
	assert.EqualError(t, err, "database is locked")
	handled, _ := w.Stats()
	assert.Zero(t, handled)

	assert.Error(t, w.HandleEvent(context.Background(), nil))
}

func TestStartupCheck(t *testing.T) {
	checker := &fakeChecker{sent: []notify.Notification{{Key: notify.KeyUpcoming}}}
	mirror := memory.New()
	w := NewEventWorker(checker, &fakeLedger{}, mirror, quietLogger())

	require.NoError(t, w.StartupCheck(context.Background()))
	assert.Equal(t, 1, checker.calls)
	assert.Equal(t, 1, mirror.Runs())
}

func TestRunPeriodicCheckStopsOnCancel(t *testing.T) {
	checker := &fakeChecker{}
	w := NewEventWorker(checker, nil, nil, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.RunPeriodicCheck(ctx, 5*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("periodic check did not stop")
	}
}
