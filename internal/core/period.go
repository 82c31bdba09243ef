package core

import (
	"sort"
	"strings"
	"time"
)

// Period is a transaction list filter.
type Period string

const (
	PeriodMonth  Period = "mes"
	Period30Days Period = "30dias"
	Period90Days Period = "90dias"
	PeriodAll    Period = "todos"
)

// ListLimit caps the transaction list view.
const ListLimit = 50

// ParsePeriod falls back to PeriodMonth for unknown values.
func ParsePeriod(s string) Period {
	switch Period(strings.TrimSpace(s)) {
	case Period30Days:
		return Period30Days
	case Period90Days:
		return Period90Days
	case PeriodAll:
		return PeriodAll
	}
	return PeriodMonth
}

// Includes reports whether a transaction date falls in the period relative to now.
func (p Period) Includes(d Date, now time.Time) bool {
	today := DateOf(now)
	switch p {
	case PeriodMonth:
		return d.Year() == now.Year() && d.Month() == now.Month()
	case Period30Days:
		return !d.Before(today.AddDate(0, 0, -30))
	case Period90Days:
		return !d.Before(today.AddDate(0, 0, -90))
	}
	return true
}

// FilterTransactions applies the period, sorts newest first and truncates to
// limit (no limit when limit <= 0). The input slice is not modified.
func FilterTransactions(txs []Transaction, p Period, now time.Time, limit int) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if p.Includes(tx.Date, now) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date.Time) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date.Time)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
