package dashboard

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meufin/internal/core"
	"meufin/internal/metrics"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTrendText(t *testing.T) {
	tests := []struct {
		trend string
		want  string
	}{
		{"150", "▲ R$ 150,00"},
		{"0", "▲ R$ 0,00"},
		{"-1234.5", "▼ R$ 1.234,50"},
	}
	for _, tt := range tests {
		if got := TrendText(d(tt.trend)); got != tt.want {
			t.Errorf("TrendText(%s) = %q, want %q", tt.trend, got, tt.want)
		}
	}
}

func TestAverageText(t *testing.T) {
	assert.Equal(t, "Média dos últimos 3 meses: R$ 500,00 • Tendência em queda (R$ 20,00)",
		AverageText(d("500"), d("-20")))
	assert.Equal(t, "Média dos últimos 3 meses: -R$ 10,00 • Tendência em alta (R$ 0,00)",
		AverageText(d("-10"), decimal.Zero))
}

func TestGoalText(t *testing.T) {
	assert.Equal(t, "Defina uma meta em Configurações para acompanhar o progresso.", GoalText(d("100"), decimal.Zero))
	assert.Equal(t, "Progresso da meta: 45,0% de R$ 1.000,00", GoalText(d("450"), d("1000")))
	assert.Equal(t, "Progresso da meta: 100,0% de R$ 100,00", GoalText(d("450"), d("100")))
}

func TestMonthPayments(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	var txs []core.Transaction
	for i := 1; i <= 7; i++ {
		txs = append(txs, core.Transaction{ID: int64(i), Kind: core.KindOutflow, Category: "Lazer", Amount: decimal.NewFromInt(int64(i)), Date: core.NewDate(2024, 6, i), Recurring: i == 1})
	}
	txs = append([]core.Transaction{
		{ID: 100, Kind: core.KindInflow, Amount: d("10"), Date: core.NewDate(2024, 6, 1)},
		{ID: 101, Kind: core.KindOutflow, Amount: d("10"), Date: core.NewDate(2023, 6, 1)},
	}, txs...)

	got := MonthPayments(txs, now, PaymentsLimit)
	require.Len(t, got, 5)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "Fixo", got[0].Kind)
	assert.Equal(t, "Único", got[1].Kind)
	assert.Equal(t, "01/06/2024", got[0].Date)
	assert.Equal(t, "R$ 1,00", got[0].Amount)

	assert.Empty(t, MonthPayments(nil, now, PaymentsLimit))
	assert.NotNil(t, MonthPayments(nil, now, PaymentsLimit))
}

func TestBuild(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		{ID: 1, Kind: core.KindInflow, Category: "Salário", Amount: d("3000"), Date: core.NewDate(2024, 6, 5)},
		{ID: 2, Kind: core.KindOutflow, Category: "Moradia", Amount: d("2000"), Date: core.NewDate(2024, 6, 10)},
	}
	cfg := core.DefaultConfiguration()
	cfg.GoalTarget = d("2000")

	v := Build(txs, metrics.Compute(txs, now), cfg, now)

	assert.Equal(t, "R$ 1.000,00", v.Balance)
	assert.Equal(t, "R$ 3.000,00", v.Inflow)
	assert.Equal(t, "R$ 2.000,00", v.Outflow)
	assert.Equal(t, "150,0%", v.Health)
	assert.Equal(t, Badge{Text: "Excelente", Class: "badge success"}, v.Badge)
	assert.Equal(t, "Tudo em ordem. Continue registrando para manter o histórico.", v.Insights.Alert)
	assert.Equal(t, "Progresso da meta: 50,0% de R$ 2.000,00", v.Insights.Goal)
	require.Len(t, v.Payments, 1)
	assert.Equal(t, "light", v.Theme)

	assert.Equal(t, [2]float64{3000, 2000}, v.Charts.InflowOutflow)
	assert.Len(t, v.Charts.HistoryLabels, 6)
	assert.Equal(t, "jun", v.Charts.HistoryLabels[5])
	assert.Equal(t, 1000.0, v.Charts.HistoryValues[5])
	assert.Equal(t, [2]float64{150, 50}, v.Charts.Health)
}

func TestChartSeriesClampsHealth(t *testing.T) {
	assert.Equal(t, [2]float64{200, 0}, ChartSeries(core.Metrics{Health: 950}).Health)
	assert.Equal(t, [2]float64{0, 200}, ChartSeries(core.Metrics{Health: -5}).Health)
}
