package services

import (
	"context"
	"fmt"

	"meufin/internal/auth"
	"meufin/internal/core"
	"meufin/internal/notify"
)

// ResetCodeKey tags password reset notifications.
const ResetCodeKey = "recuperacao"

// NotifierCodeSender delivers password reset codes through the operator's
// notification channel.
type NotifierCodeSender struct {
	notifier notify.Notifier
}

var _ auth.CodeSender = (*NotifierCodeSender)(nil)

func NewNotifierCodeSender(n notify.Notifier) *NotifierCodeSender {
	return &NotifierCodeSender{notifier: n}
}

func (s *NotifierCodeSender) SendResetCode(ctx context.Context, u core.User, code string) error {
	return s.notifier.Notify(ctx, notify.Notification{
		Key:   ResetCodeKey,
		Title: "Recuperação de senha",
		Body: fmt.Sprintf("Código para %s: %s (válido por %d minutos)",
			u.Email, code, int(auth.ResetCodeTTL.Minutes())),
	})
}
