package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindInflow  Kind = "entrada"
	KindOutflow Kind = "saida"
)

// DateLayout is the calendar date format used in storage, forms and backups.
const DateLayout = "2006-01-02"

type (
	Kind string

	// Date is a calendar date without a meaningful time of day.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID          int64           `json:"id,omitempty"`
		Kind        Kind            `json:"tipo" validate:"required,tx_kind"`
		Category    string          `json:"categoria" validate:"required,max=60"`
		Description string          `json:"descricao" validate:"max=200"`
		Amount      decimal.Decimal `json:"valor" validate:"gte=0"`
		Date        Date            `json:"data" validate:"required"`
		Recurring   bool            `json:"fixo"`
		Notes       string          `json:"anotacoes,omitempty" validate:"max=500"`
		CreatedAt   time.Time       `json:"createdAt"`
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidInstances = errors.New("installments must be between 1 and 120")
)

// ParseKind accepts the stored values plus the english aliases used by the CLI.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "entrada", "in", "inflow", "income":
		return KindInflow, nil
	case "saida", "saída", "out", "outflow", "expense":
		return KindOutflow, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) Valid() bool {
	return k == KindInflow || k == KindOutflow
}

// Label is the human readable kind shown in tables.
func (k Kind) Label() string {
	if k == KindInflow {
		return "Entrada"
	}
	return "Saída"
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's year, month and day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts ISO dates (2006-01-02) and the pt-BR form (02/01/2006).
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, "02/01/2006", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// BR formats the date as DD/MM/AAAA.
func (d Date) BR() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02/01/2006")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate runs the struct rules and the amount/date checks.
func (t Transaction) Validate() error {
	if err := Validate(t); err != nil {
		return err
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return t.Date.Validate()
}

func (t Transaction) IsInflow() bool  { return t.Kind == KindInflow }
func (t Transaction) IsOutflow() bool { return t.Kind == KindOutflow }
