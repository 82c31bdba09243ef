// Package metrics derives balance, trend and financial health from a
// transaction list. Everything here is a pure function of its inputs.
package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"meufin/internal/core"
)

const (
	// HistoryMonths is the number of trailing calendar months in the history.
	HistoryMonths = 6
	// AverageWindow is how many of the latest history points feed the rolling average.
	AverageWindow = 3
	// NeutralHealth is reported when there is no outflow at all.
	NeutralHealth = 100.0
)

var monthLabels = [...]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// MonthLabel returns the pt-BR short month name.
func MonthLabel(m time.Month) string {
	return monthLabels[(int(m)+11)%12]
}

// Compute derives every metric from txs relative to now.
func Compute(txs []core.Transaction, now time.Time) core.Metrics {
	var inflow, outflow, monthOut decimal.Decimal

	type ym struct{ y, m int }
	net := make(map[ym]decimal.Decimal, HistoryMonths)

	for _, tx := range txs {
		amount := core.CoerceAmount(tx.Amount)
		y, m := tx.Date.Year(), int(tx.Date.Month())
		switch tx.Kind {
		case core.KindInflow:
			inflow = inflow.Add(amount)
			net[ym{y, m}] = net[ym{y, m}].Add(amount)
		case core.KindOutflow:
			outflow = outflow.Add(amount)
			net[ym{y, m}] = net[ym{y, m}].Sub(amount)
			if y == now.Year() && m == int(now.Month()) {
				monthOut = monthOut.Add(amount)
			}
		}
	}

	history := make([]core.HistoryPoint, 0, HistoryMonths)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := HistoryMonths - 1; i >= 0; i-- {
		month := first.AddDate(0, -i, 0)
		key := ym{month.Year(), int(month.Month())}
		history = append(history, core.HistoryPoint{
			Label: MonthLabel(month.Month()),
			Year:  key.y,
			Month: key.m,
			Value: net[key].Round(2),
		})
	}

	return core.Metrics{
		Inflow:              inflow,
		Outflow:             outflow,
		Balance:             inflow.Sub(outflow),
		CurrentMonthOutflow: monthOut,
		RollingAverage:      RollingAverage(history, AverageWindow),
		Trend:               Trend(history),
		Health:              Health(inflow, outflow),
		History:             history,
	}
}

// RollingAverage is the mean of the last window history values. Shorter
// histories average whatever is there; an empty history yields zero.
func RollingAverage(history []core.HistoryPoint, window int) decimal.Decimal {
	if window <= 0 || len(history) == 0 {
		return decimal.Zero
	}
	if len(history) < window {
		window = len(history)
	}
	sum := decimal.Zero
	for _, p := range history[len(history)-window:] {
		sum = sum.Add(p.Value)
	}
	return sum.Div(decimal.NewFromInt(int64(window))).Round(2)
}

// Trend is the difference between the last two history values, or zero.
func Trend(history []core.HistoryPoint) decimal.Decimal {
	if len(history) < 2 {
		return decimal.Zero
	}
	return history[len(history)-1].Value.Sub(history[len(history)-2].Value)
}

// Health is inflow as a percentage of outflow, 100 when nothing went out.
func Health(inflow, outflow decimal.Decimal) float64 {
	if outflow.IsZero() {
		return NeutralHealth
	}
	f, _ := inflow.Div(outflow).Mul(decimal.NewFromInt(100)).Float64()
	return f
}

// GoalProgress is balance as a percentage of target, capped at 100.
// A non-positive target has no progress.
func GoalProgress(balance, target decimal.Decimal) float64 {
	if !target.IsPositive() {
		return 0
	}
	f, _ := balance.Div(target).Mul(decimal.NewFromInt(100)).Float64()
	if f > 100 {
		return 100
	}
	return f
}
