package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meufin/internal/core"
	"meufin/internal/notify"
	"meufin/internal/storage"
)

type inbox struct{ got []notify.Notification }

func (i *inbox) Notify(_ context.Context, n notify.Notification) error {
	i.got = append(i.got, n)
	return nil
}

func TestNotificationService(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "notify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	ctx := context.Background()

	ledger := NewLedgerService(repo.Transactions(), repo.Config(), nil, nil, nil)
	ledger.now = func() time.Time { return fixedNow }
	box := &inbox{}
	svc := NewNotificationService(ledger, notify.NewScheduler(repo.NotificationState(), box, nil, nil))

	_, err = ledger.Create(ctx, CreateRequest{Kind: "saida", Category: "Moradia", Amount: "900", Date: "2024-06-17"})
	require.NoError(t, err)
	cfg, err := ledger.Config(ctx)
	require.NoError(t, err)
	cfg.Notifications.DueDates = true
	_, err = ledger.SaveConfig(ctx, cfg)
	require.NoError(t, err)

	fired, err := svc.Check(ctx, fixedNow)
	require.NoError(t, err)
	assert.Empty(t, fired, "permission not granted yet")

	require.NoError(t, svc.Enable(ctx))
	require.Len(t, box.got, 1)
	assert.Equal(t, notify.EnabledBody, box.got[0].Body)

	fired, err = svc.Check(ctx, fixedNow)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, "1 conta(s) vencem até 18/06/2024", fired[0].Body)

	fired, err = svc.Check(ctx, fixedNow.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestNotifierCodeSender(t *testing.T) {
	box := &inbox{}
	err := NewNotifierCodeSender(box).SendResetCode(context.Background(), core.User{Email: "ana@example.com"}, "123456")
	require.NoError(t, err)
	require.Len(t, box.got, 1)
	assert.Equal(t, ResetCodeKey, box.got[0].Key)
	assert.Equal(t, "Código para ana@example.com: 123456 (válido por 15 minutos)", box.got[0].Body)
}
