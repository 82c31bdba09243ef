package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meufin/internal/core"
)

func TestMirrorReplacesRows(t *testing.T) {
	s := New()
	ctx := context.Background()

	txs := []core.Transaction{
		{ID: 1, Kind: core.KindOutflow, Category: "Moradia", Amount: decimal.RequireFromString("10.005"), Date: core.NewDate(2024, 3, 1)},
		{ID: 2, Kind: core.KindInflow, Category: "Salário", Amount: decimal.NewFromInt(100), Date: core.NewDate(2024, 3, 5), Recurring: true},
	}
	res, err := s.Mirror(ctx, txs)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, SheetName, res.Sheet)

	rows := s.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, []any{int64(1), "saida", "Moradia", "", "2024-03-01", 10.01, false}, rows[1])

	_, err = s.Mirror(ctx, txs[:1])
	require.NoError(t, err)
	assert.Len(t, s.Rows(), 2)
	assert.Equal(t, 2, s.Runs())
}

func TestMirrorHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Mirror(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
