package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"meufin/internal/core"
)

// ErrInvalidBackup is returned when the input is not a JSON array of entries.
var ErrInvalidBackup = errors.New("invalid backup")

// WriteBackup writes txs as an indented JSON array.
func WriteBackup(w io.Writer, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(txs); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// record is a lenient view of one backup entry. Older backups carry
// amounts as strings and flags as "sim"/"nao".
type record struct {
	ID          any    `json:"id"`
	Kind        string `json:"tipo"`
	Category    string `json:"categoria"`
	Description string `json:"descricao"`
	Date        string `json:"data"`
	Amount      any    `json:"valor"`
	Recurring   any    `json:"fixo"`
	Notes       string `json:"anotacoes"`
	CreatedAt   string `json:"createdAt"`
}

// Skipped describes a backup entry that could not be imported.
type Skipped struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Transactions []core.Transaction `json:"-"`
	Skipped      []Skipped          `json:"skipped,omitempty"`
}

// ReadBackup decodes a backup. Amounts that are not finite non-negative
// numbers become zero. Categories are kept as stored, even when they are no
// longer in the configured list. Entries without a valid kind, date or
// category are skipped and reported.
func ReadBackup(r io.Reader) (ImportResult, error) {
	var raw []record
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}

	res := ImportResult{Transactions: make([]core.Transaction, 0, len(raw))}
	for i, rec := range raw {
		tx, err := rec.transaction()
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Index: i, Reason: err.Error()})
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res, nil
}

func (rec record) transaction() (core.Transaction, error) {
	kind, err := core.ParseKind(rec.Kind)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(rec.Date)
	if err != nil {
		return core.Transaction{}, err
	}

	category := strings.TrimSpace(rec.Category)
	if category == "" {
		return core.Transaction{}, core.ErrEmptyCategory
	}

	tx := core.Transaction{
		ID:          coerceID(rec.ID),
		Kind:        kind,
		Category:    category,
		Description: strings.TrimSpace(rec.Description),
		Amount:      core.CoerceAmount(rec.Amount),
		Date:        date,
		Recurring:   coerceBool(rec.Recurring),
		Notes:       strings.TrimSpace(rec.Notes),
	}
	if t, err := time.Parse(time.RFC3339Nano, rec.CreatedAt); err == nil {
		tx.CreatedAt = t
	}
	return tx, nil
}

func coerceID(v any) int64 {
	switch x := v.(type) {
	case float64:
		if x > 0 && x < math.MaxInt64 && x == math.Trunc(x) {
			return int64(x)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func coerceBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "sim", "s", "on":
			return true
		}
	}
	return false
}
