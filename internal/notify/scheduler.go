// Package notify raises reminder notifications about upcoming bills and
// savings goal progress.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"meufin/internal/core"
	"meufin/internal/metrics"
	"meufin/internal/telemetry"
)

// Notification kinds, also used as keys of the last-fired state.
const (
	KeyUpcoming = "vencimentos"
	KeyGoal     = "objetivos"
)

const (
	// MinInterval is the minimum time between two notifications of one kind.
	MinInterval = time.Hour
	// UpcomingDays is how far ahead outflows count as due.
	UpcomingDays = 3
)

const (
	TitleUpcoming = "Contas próximas"
	TitleGoal     = "Meta financeira"
	TitleApp      = "Meufin"
	EnabledBody   = "Notificações ativadas"
)

type Notification struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Notifier delivers a notification to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// StateStore remembers when each kind last fired.
type StateStore interface {
	LastFired(ctx context.Context, key string) (time.Time, error)
	SetLastFired(ctx context.Context, key string, at time.Time) error
}

// State is the slice of application state the checks look at.
type State struct {
	Transactions []core.Transaction
	Config       core.Configuration
	Balance      decimal.Decimal
}

type Scheduler struct {
	store    StateStore
	notifier Notifier
	recorder telemetry.Recorder
	logger   *slog.Logger
}

func NewScheduler(store StateStore, notifier Notifier, recorder telemetry.Recorder, logger *slog.Logger) *Scheduler {
	if recorder == nil {
		recorder = telemetry.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: store, notifier: notifier, recorder: recorder, logger: logger}
}

// Check runs both checks against st and returns what was delivered. Nothing
// happens until the user granted permission.
func (s *Scheduler) Check(ctx context.Context, st State, now time.Time) ([]Notification, error) {
	prefs := st.Config.Notifications
	if !prefs.PermissionGranted {
		s.logger.DebugContext(ctx, "Notification check skipped, permission not granted")
		return nil, nil
	}

	var (
		fired []Notification
		errs  []error
	)

	if prefs.DueDates {
		if n, ok := UpcomingNotification(st.Transactions, now); ok {
			sent, err := s.fireOnce(ctx, n, now)
			if err != nil {
				errs = append(errs, err)
			} else if sent {
				fired = append(fired, n)
			}
		}
	}

	if prefs.Goals && st.Config.GoalTarget.IsPositive() {
		n := GoalNotification(st.Balance, st.Config.GoalTarget)
		sent, err := s.fireOnce(ctx, n, now)
		if err != nil {
			errs = append(errs, err)
		} else if sent {
			fired = append(fired, n)
		}
	}

	return fired, errors.Join(errs...)
}

// Enable sends the confirmation notification once the user granted permission.
func (s *Scheduler) Enable(ctx context.Context) error {
	n := Notification{Key: "ativacao", Title: TitleApp, Body: EnabledBody}
	if err := s.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("send activation notification: %w", err)
	}
	s.recorder.NotificationFired(n.Key)
	return nil
}

func (s *Scheduler) fireOnce(ctx context.Context, n Notification, now time.Time) (bool, error) {
	last, err := s.store.LastFired(ctx, n.Key)
	if err != nil {
		return false, fmt.Errorf("load %s state: %w", n.Key, err)
	}
	if !last.IsZero() && now.Sub(last) < MinInterval {
		return false, nil
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		return false, fmt.Errorf("notify %s: %w", n.Key, err)
	}
	if err := s.store.SetLastFired(ctx, n.Key, now); err != nil {
		return true, fmt.Errorf("save %s state: %w", n.Key, err)
	}
	s.recorder.NotificationFired(n.Key)
	s.logger.InfoContext(ctx, "Notification fired", "key", n.Key)
	return true, nil
}

// Upcoming returns the outflows dated between today and today+UpcomingDays,
// both inclusive, in now's location.
func Upcoming(txs []core.Transaction, now time.Time) []core.Transaction {
	today := core.DateOf(now)
	limit := today.AddDate(0, 0, UpcomingDays)
	var out []core.Transaction
	for _, tx := range txs {
		if !tx.IsOutflow() {
			continue
		}
		if tx.Date.Before(today.Time) || tx.Date.After(limit) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func UpcomingNotification(txs []core.Transaction, now time.Time) (Notification, bool) {
	due := Upcoming(txs, now)
	if len(due) == 0 {
		return Notification{}, false
	}
	limit := core.DateOf(now.AddDate(0, 0, UpcomingDays))
	return Notification{
		Key:   KeyUpcoming,
		Title: TitleUpcoming,
		Body:  fmt.Sprintf("%d conta(s) vencem até %s", len(due), limit.BR()),
	}, true
}

func GoalNotification(balance, target decimal.Decimal) Notification {
	progress := metrics.GoalProgress(balance, target)
	return Notification{
		Key:   KeyGoal,
		Title: TitleGoal,
		Body:  fmt.Sprintf("Você atingiu %s%% da meta.", core.FormatNumberBR(progress, 1)),
	}
}
