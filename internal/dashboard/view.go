// Package dashboard turns the derived metrics into the values shown on the
// home page: formatted totals, the health badge, the month's payments, the
// insight texts and the chart series.
package dashboard

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"meufin/internal/core"
	"meufin/internal/metrics"
)

// PaymentsLimit caps the "payments this month" table.
const PaymentsLimit = 5

// NoPayments is shown when the current month has no outflow.
const NoPayments = "Nenhuma despesa neste mês."

// HealthChartMax is the value at which the health doughnut is full.
const HealthChartMax = 200.0

type (
	Badge struct {
		Text  string `json:"text"`
		Class string `json:"class"`
	}

	Payment struct {
		ID          int64  `json:"id"`
		Description string `json:"descricao"`
		Category    string `json:"categoria"`
		Date        string `json:"data"`
		Amount      string `json:"valor"`
		Kind        string `json:"tipo"`
	}

	Insights struct {
		Projection string `json:"projecao"`
		Alert      string `json:"alerta"`
		Goal       string `json:"objetivos"`
	}

	Charts struct {
		// InflowOutflow is [inflow, outflow].
		InflowOutflow [2]float64 `json:"entradasSaidas"`
		HistoryLabels []string   `json:"historicoLabels"`
		HistoryValues []float64  `json:"historicoValores"`
		// Health is [clamped health, remainder to HealthChartMax].
		Health [2]float64 `json:"saude"`
	}

	View struct {
		Balance  string       `json:"saldo"`
		Inflow   string       `json:"entradas"`
		Outflow  string       `json:"saidas"`
		Health   string       `json:"saude"`
		Trend    string       `json:"tendencia"`
		Badge    Badge        `json:"badge"`
		Payments []Payment    `json:"pagamentos"`
		Insights Insights     `json:"insights"`
		Charts   Charts       `json:"charts"`
		Metrics  core.Metrics `json:"metrics"`
		Theme    string       `json:"theme"`
		UserName string       `json:"nomeUsuario"`
	}
)

// Build assembles the dashboard from already computed metrics.
func Build(txs []core.Transaction, m core.Metrics, cfg core.Configuration, now time.Time) View {
	band := metrics.HealthBand(m.Health)
	return View{
		Balance:  core.FormatBRL(m.Balance),
		Inflow:   core.FormatBRL(m.Inflow),
		Outflow:  core.FormatBRL(m.Outflow),
		Health:   core.FormatNumberBR(m.Health, 1) + "%",
		Trend:    TrendText(m.Trend),
		Badge:    Badge{Text: band.Label(), Class: band.BadgeClass()},
		Payments: MonthPayments(txs, now, PaymentsLimit),
		Insights: Insights{
			Projection: AverageText(m.RollingAverage, m.Trend),
			Alert:      band.Advice(),
			Goal:       GoalText(m.Balance, cfg.GoalTarget),
		},
		Charts:   ChartSeries(m),
		Metrics:  m,
		Theme:    cfg.Theme,
		UserName: cfg.UserName,
	}
}

// TrendText renders the trend as an arrow followed by its absolute value.
func TrendText(trend decimal.Decimal) string {
	arrow := "▲"
	if trend.IsNegative() {
		arrow = "▼"
	}
	return arrow + " " + core.FormatBRL(trend.Abs())
}

// AverageText is the projection insight, also used as the email summary.
func AverageText(avg, trend decimal.Decimal) string {
	direction := "alta"
	if trend.IsNegative() {
		direction = "queda"
	}
	return fmt.Sprintf("Média dos últimos 3 meses: %s • Tendência em %s (%s)",
		core.FormatBRL(avg), direction, core.FormatBRL(trend.Abs()))
}

func GoalText(balance, target decimal.Decimal) string {
	if !target.IsPositive() {
		return "Defina uma meta em Configurações para acompanhar o progresso."
	}
	return fmt.Sprintf("Progresso da meta: %s%% de %s",
		core.FormatNumberBR(metrics.GoalProgress(balance, target), 1), core.FormatBRL(target))
}

// MonthPayments returns the first limit outflows dated in now's month, in
// input order.
func MonthPayments(txs []core.Transaction, now time.Time, limit int) []Payment {
	out := []Payment{}
	for _, tx := range txs {
		if !tx.IsOutflow() || tx.Date.Year() != now.Year() || tx.Date.Month() != now.Month() {
			continue
		}
		kind := "Único"
		if tx.Recurring {
			kind = "Fixo"
		}
		out = append(out, Payment{
			ID:          tx.ID,
			Description: tx.Description,
			Category:    tx.Category,
			Date:        tx.Date.BR(),
			Amount:      core.FormatBRL(tx.Amount),
			Kind:        kind,
		})
		if len(out) == limit {
			break
		}
	}
	return out
}

func ChartSeries(m core.Metrics) Charts {
	c := Charts{
		HistoryLabels: make([]string, 0, len(m.History)),
		HistoryValues: make([]float64, 0, len(m.History)),
	}
	c.InflowOutflow[0], _ = m.Inflow.Float64()
	c.InflowOutflow[1], _ = m.Outflow.Float64()
	for _, p := range m.History {
		v, _ := p.Value.Float64()
		c.HistoryLabels = append(c.HistoryLabels, p.Label)
		c.HistoryValues = append(c.HistoryValues, v)
	}
	safe := math.Min(math.Max(m.Health, 0), HealthChartMax)
	c.Health = [2]float64{safe, HealthChartMax - safe}
	return c
}
