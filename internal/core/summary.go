package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportStatusGenerated is the only status a stored report can have.
const ReportStatusGenerated = "Gerado"

type (
	// HistoryPoint is the net result of one calendar month.
	HistoryPoint struct {
		Label string          `json:"label"`
		Year  int             `json:"year"`
		Month int             `json:"month"`
		Value decimal.Decimal `json:"value"`
	}

	// Metrics is derived from the full transaction list and never cached.
	Metrics struct {
		Inflow              decimal.Decimal `json:"totalEntradas"`
		Outflow             decimal.Decimal `json:"totalSaidas"`
		Balance             decimal.Decimal `json:"saldo"`
		CurrentMonthOutflow decimal.Decimal `json:"gastosMes"`
		RollingAverage      decimal.Decimal `json:"mediaMovel"`
		Trend               decimal.Decimal `json:"tendencia"`
		Health              float64         `json:"saude"`
		History             []HistoryPoint  `json:"historico"`
	}

	Report struct {
		ID         int64     `json:"id,omitempty"`
		CreatedAt  time.Time `json:"createdAt"`
		Period     string    `json:"periodo"`
		Metrics    Metrics   `json:"metrics"`
		Summary    string    `json:"resumo,omitempty"`
		PDFDataURI string    `json:"pdfBase64"`
		Status     string    `json:"status"`
	}
)
