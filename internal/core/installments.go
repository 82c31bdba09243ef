package core

import (
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
)

// MaxInstallments bounds a single installment expansion.
const MaxInstallments = 120

// AddMonths moves d forward n calendar months, clamping the day to the last
// day of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(d Date, n int) Date {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return NewDate(first.Year(), int(first.Month()), day)
}

// ExpandInstallments turns one transaction into n records one calendar month
// apart. Every offset is computed from the base date, so a 31st keeps landing
// on month ends instead of drifting.
func ExpandInstallments(base Transaction, n int) ([]Transaction, error) {
	if n < 1 || n > MaxInstallments {
		return nil, ErrInvalidInstances
	}
	out := make([]Transaction, 0, n)
	for i := 0; i < n; i++ {
		tx := base
		tx.ID = 0
		tx.Date = AddMonths(base.Date, i)
		out = append(out, tx)
	}
	return out, nil
}

// MatchCategory maps free text onto the configured category list. Exact
// case-insensitive matches win, then the closest name within an edit
// distance of 2. ok is false when nothing is close enough.
func MatchCategory(input string, categories []string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return "", false
	}
	best, bestDist := "", 3
	for _, c := range categories {
		candidate := strings.ToLower(c)
		if candidate == needle {
			return c, true
		}
		if d := levenshtein.ComputeDistance(needle, candidate); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, best != ""
}
