package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandInstallments(t *testing.T) {
	base := validTx()
	base.Date = NewDate(2025, 3, 10)
	base.ID = 42

	got, err := ExpandInstallments(base, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	want := []Date{NewDate(2025, 3, 10), NewDate(2025, 4, 10), NewDate(2025, 5, 10)}
	for i, tx := range got {
		assert.Equal(t, want[i].String(), tx.Date.String())
		assert.True(t, tx.Amount.Equal(decimal.RequireFromString("1500")))
		assert.Equal(t, base.Category, tx.Category)
		assert.Equal(t, base.Description, tx.Description)
		assert.Zero(t, tx.ID)
	}
}

func TestExpandInstallmentsClampsMonthEnd(t *testing.T) {
	base := validTx() // Jan 31
	got, err := ExpandInstallments(base, 4)
	require.NoError(t, err)

	dates := make([]string, len(got))
	for i, tx := range got {
		dates[i] = tx.Date.String()
	}
	assert.Equal(t, []string{"2025-01-31", "2025-02-28", "2025-03-31", "2025-04-30"}, dates)
}

func TestExpandInstallmentsBounds(t *testing.T) {
	_, err := ExpandInstallments(validTx(), 0)
	assert.ErrorIs(t, err, ErrInvalidInstances)
	_, err = ExpandInstallments(validTx(), MaxInstallments+1)
	assert.ErrorIs(t, err, ErrInvalidInstances)
}

func TestAddMonthsAcrossYear(t *testing.T) {
	assert.Equal(t, "2024-02-29", AddMonths(NewDate(2023, 12, 31), 2).String())
	assert.Equal(t, "2026-01-15", AddMonths(NewDate(2025, 11, 15), 2).String())
}

func TestFilterTransactions(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	mk := func(id int64, d Date) Transaction {
		tx := validTx()
		tx.ID = id
		tx.Date = d
		return tx
	}
	txs := []Transaction{
		mk(1, NewDate(2025, 6, 1)),
		mk(2, NewDate(2025, 5, 20)),
		mk(3, NewDate(2025, 4, 1)),
		mk(4, NewDate(2025, 1, 1)),
		mk(5, NewDate(2025, 6, 10)),
	}

	ids := func(in []Transaction) []int64 {
		out := make([]int64, len(in))
		for i, tx := range in {
			out[i] = tx.ID
		}
		return out
	}

	assert.Equal(t, []int64{5, 1}, ids(FilterTransactions(txs, PeriodMonth, now, ListLimit)))
	assert.Equal(t, []int64{5, 1, 2}, ids(FilterTransactions(txs, Period30Days, now, ListLimit)))
	assert.Equal(t, []int64{5, 1, 2, 3}, ids(FilterTransactions(txs, Period90Days, now, ListLimit)))
	assert.Equal(t, []int64{5, 1, 2, 3, 4}, ids(FilterTransactions(txs, PeriodAll, now, 0)))
	assert.Len(t, FilterTransactions(txs, PeriodAll, now, 2), 2)
	assert.Equal(t, int64(1), txs[0].ID, "input must not be reordered")
}

func TestParsePeriod(t *testing.T) {
	assert.Equal(t, Period30Days, ParsePeriod("30dias"))
	assert.Equal(t, PeriodAll, ParsePeriod("todos"))
	assert.Equal(t, PeriodMonth, ParsePeriod("ano"))
}

func TestMatchCategory(t *testing.T) {
	cats := DefaultCategories

	got, ok := MatchCategory("alimentação", cats)
	assert.True(t, ok)
	assert.Equal(t, "Alimentação", got)

	got, ok = MatchCategory("Alimentacao", cats)
	assert.True(t, ok)
	assert.Equal(t, "Alimentação", got)

	got, ok = MatchCategory("Tranporte", cats)
	assert.True(t, ok)
	assert.Equal(t, "Transporte", got)

	_, ok = MatchCategory("Criptomoedas", cats)
	assert.False(t, ok)
}
