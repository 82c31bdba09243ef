package services

import (
	"context"
	"fmt"
	"time"

	"meufin/internal/notify"
)

// NotificationService runs the reminder checks against the current state.
type NotificationService struct {
	ledger    *LedgerService
	scheduler *notify.Scheduler
}

func NewNotificationService(ledger *LedgerService, scheduler *notify.Scheduler) *NotificationService {
	return &NotificationService{ledger: ledger, scheduler: scheduler}
}

// Check evaluates both reminders at now and returns what was sent.
func (s *NotificationService) Check(ctx context.Context, now time.Time) ([]notify.Notification, error) {
	st, err := s.ledger.State(ctx)
	if err != nil {
		return nil, err
	}
	return s.scheduler.Check(ctx, notify.State{
		Transactions: st.Transactions,
		Config:       st.Config,
		Balance:      st.Metrics.Balance,
	}, now)
}

// Enable records the user's permission and sends the confirmation.
func (s *NotificationService) Enable(ctx context.Context) error {
	if _, err := s.ledger.GrantNotifications(ctx); err != nil {
		return fmt.Errorf("grant notifications: %w", err)
	}
	return s.scheduler.Enable(ctx)
}
