package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meufin/internal/core"
)

var now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func tx(kind core.Kind, amount string, d core.Date) core.Transaction {
	return core.Transaction{
		Kind:     kind,
		Category: "Outros",
		Amount:   decimal.RequireFromString(amount),
		Date:     d,
	}
}

func TestComputeEmpty(t *testing.T) {
	m := Compute(nil, now)

	assert.True(t, m.Inflow.IsZero())
	assert.True(t, m.Outflow.IsZero())
	assert.True(t, m.Balance.IsZero())
	assert.True(t, m.CurrentMonthOutflow.IsZero())
	assert.True(t, m.RollingAverage.IsZero())
	assert.True(t, m.Trend.IsZero())
	assert.Equal(t, 100.0, m.Health)
	require.Len(t, m.History, HistoryMonths)
	for _, p := range m.History {
		assert.True(t, p.Value.IsZero())
	}
}

func TestComputeHistoryOrderAndLabels(t *testing.T) {
	m := Compute(nil, now)
	labels := make([]string, len(m.History))
	for i, p := range m.History {
		labels[i] = p.Label
	}
	assert.Equal(t, []string{"jan", "fev", "mar", "abr", "mai", "jun"}, labels)
	assert.Equal(t, 2025, m.History[0].Year)
	assert.Equal(t, 1, m.History[0].Month)
}

func TestComputeHistoryCrossesYear(t *testing.T) {
	m := Compute(nil, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "set", m.History[0].Label)
	assert.Equal(t, 2024, m.History[0].Year)
	assert.Equal(t, "fev", m.History[5].Label)
}

func TestCompute(t *testing.T) {
	txs := []core.Transaction{
		tx(core.KindInflow, "5000", core.NewDate(2025, 6, 5)),
		tx(core.KindOutflow, "1200", core.NewDate(2025, 6, 10)),
		tx(core.KindOutflow, "300.50", core.NewDate(2025, 6, 20)),
		tx(core.KindInflow, "4000", core.NewDate(2025, 5, 5)),
		tx(core.KindOutflow, "4500", core.NewDate(2025, 5, 6)),
		tx(core.KindInflow, "1000", core.NewDate(2025, 4, 1)),
		// outside the history window
		tx(core.KindOutflow, "999", core.NewDate(2024, 1, 1)),
	}

	m := Compute(txs, now)

	assert.Equal(t, "10000", m.Inflow.String())
	assert.Equal(t, "6999.5", m.Outflow.String())
	assert.Equal(t, "3000.5", m.Balance.String())
	assert.Equal(t, "1500.5", m.CurrentMonthOutflow.String())

	assert.Equal(t, "1000", m.History[3].Value.String()) // abr
	assert.Equal(t, "-500", m.History[4].Value.String()) // mai
	assert.Equal(t, "3499.5", m.History[5].Value.String())

	// (1000 - 500 + 3499.5) / 3
	assert.Equal(t, "1333.17", m.RollingAverage.String())
	assert.Equal(t, "3999.5", m.Trend.String())
	assert.InDelta(t, 142.87, m.Health, 0.01)
}

func TestComputeIgnoresUnknownKinds(t *testing.T) {
	txs := []core.Transaction{
		tx("transfer", "100", core.NewDate(2025, 6, 1)),
		tx(core.KindInflow, "10", core.NewDate(2025, 6, 1)),
	}
	m := Compute(txs, now)
	assert.Equal(t, "10", m.Inflow.String())
	assert.True(t, m.Outflow.IsZero())
}

func TestComputeCoercesNegativeAmounts(t *testing.T) {
	bad := tx(core.KindOutflow, "1", core.NewDate(2025, 6, 1))
	bad.Amount = decimal.NewFromInt(-50)
	m := Compute([]core.Transaction{bad}, now)
	assert.True(t, m.Outflow.IsZero())
	assert.Equal(t, 100.0, m.Health)
}

func TestBalanceIdentity(t *testing.T) {
	kinds := []core.Kind{core.KindInflow, core.KindOutflow}
	start := now.AddDate(-1, 0, 0)
	for round := 0; round < 25; round++ {
		n := gofakeit.IntRange(0, 60)
		txs := make([]core.Transaction, 0, n)
		for i := 0; i < n; i++ {
			txs = append(txs, core.Transaction{
				Kind:        kinds[gofakeit.IntRange(0, 1)],
				Category:    gofakeit.Word(),
				Description: gofakeit.Sentence(3),
				Amount:      decimal.NewFromFloat(gofakeit.Float64Range(0, 5000)).Round(2),
				Date:        core.DateOf(gofakeit.DateRange(start, now)),
			})
		}
		m := Compute(txs, now)
		require.True(t, m.Inflow.Sub(m.Outflow).Equal(m.Balance), "round %d", round)
		require.Len(t, m.History, HistoryMonths)
		require.False(t, math.IsNaN(m.Health) || math.IsInf(m.Health, 0))
	}
}

func TestRollingAverageShortHistory(t *testing.T) {
	h := []core.HistoryPoint{{Value: decimal.NewFromInt(10)}, {Value: decimal.NewFromInt(20)}}
	assert.Equal(t, "15", RollingAverage(h, 3).String())
	assert.True(t, RollingAverage(nil, 3).IsZero())
}

func TestTrend(t *testing.T) {
	assert.True(t, Trend(nil).IsZero())
	assert.True(t, Trend([]core.HistoryPoint{{Value: decimal.NewFromInt(5)}}).IsZero())
	h := []core.HistoryPoint{{Value: decimal.NewFromInt(50)}, {Value: decimal.NewFromInt(20)}}
	assert.Equal(t, "-30", Trend(h).String())
}

func TestHealthBandBoundaries(t *testing.T) {
	cases := []struct {
		health float64
		want   Band
	}{
		{130, Excellent},
		{129.99, Good},
		{100, Good},
		{99.99, Warning},
		{80, Warning},
		{79.99, Danger},
		{0, Danger},
		{1000, Excellent},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HealthBand(tc.health), "health %v", tc.health)
	}
}

func TestBandPresentation(t *testing.T) {
	assert.Equal(t, "Excelente", Excellent.Label())
	assert.Equal(t, "Boa", Good.Label())
	assert.Equal(t, "Alerta", Warning.Label())
	assert.Equal(t, "Perigo", Danger.Label())
	assert.Equal(t, "badge danger", Danger.BadgeClass())
	assert.Contains(t, Good.Advice(), "Tudo em ordem")
}

func TestGoalProgress(t *testing.T) {
	assert.Equal(t, 50.0, GoalProgress(decimal.NewFromInt(500), decimal.NewFromInt(1000)))
	assert.Equal(t, 100.0, GoalProgress(decimal.NewFromInt(5000), decimal.NewFromInt(1000)))
	assert.Equal(t, 0.0, GoalProgress(decimal.NewFromInt(5000), decimal.Zero))
	assert.Less(t, GoalProgress(decimal.NewFromInt(-100), decimal.NewFromInt(1000)), 0.0)
}
