// Package report builds the financial PDF report. Layout decisions live in
// Generator; drawing is delegated to a Renderer so the ordering rules can be
// tested without producing a real PDF.
package report

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meufin/internal/core"
)

// Chart slots, in the order they appear in the report.
const (
	ChartInflowOutflow = "chartEntradasSaidas"
	ChartHistory       = "chartHistorico"
	ChartHealth        = "chartSaude"
)

// ChartSlots lists every chart slot in report order.
var ChartSlots = []string{ChartInflowOutflow, ChartHistory, ChartHealth}

// DefaultPeriod is used when no explicit range is given.
const DefaultPeriod = "Últimos 30 dias"

var (
	// ErrQRUnavailable tells the generator to skip the QR block.
	ErrQRUnavailable = errors.New("qr code unavailable")
	// ErrUnsupportedImage is returned for chart payloads that are not PNG or JPEG data URIs.
	ErrUnsupportedImage = errors.New("unsupported image data")
)

// ImageFormat identifies an embedded raster format.
type ImageFormat string

const (
	PNG  ImageFormat = "png"
	JPEG ImageFormat = "jpg"
)

// Renderer draws one document. A renderer is used for a single Generate call.
type Renderer interface {
	Title(text string)
	Line(text string)
	Heading(text string)
	Paragraph(text string)
	Table(header []string, rows [][]string)
	Image(data []byte, format ImageFormat) error
	QRCode(content, caption string) error
	Render() ([]byte, error)
}

// RendererFactory creates a fresh renderer per document.
type RendererFactory func() Renderer

type Input struct {
	Metrics      core.Metrics
	Transactions []core.Transaction
	Config       core.Configuration
	Period       string
	Note         string
	// Charts maps a chart slot to an image data URI.
	Charts map[string]string
	// PageURL is where the report was requested from. The QR code points
	// there unless the configuration sets a share URL.
	PageURL     string
	GeneratedAt time.Time
}

type Document struct {
	PDF      []byte
	DataURI  string
	FileName string
}

type Generator struct {
	newRenderer RendererFactory
	logger      *slog.Logger
	location    *time.Location
}

type Option func(*Generator)

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithLocation sets the zone used for the "Gerado em" timestamp.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) { g.location = loc }
}

func NewGenerator(factory RendererFactory, opts ...Option) *Generator {
	g := &Generator{
		newRenderer: factory,
		logger:      slog.Default(),
		location:    time.Local,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// TableHeader is the transaction table header row.
var TableHeader = []string{"Data", "Descrição", "Categoria", "Tipo", "Valor"}

// Generate builds the report. Missing charts and QR codes are skipped; only
// a failure of the final render is returned as an error.
func (g *Generator) Generate(ctx context.Context, in Input) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r := g.newRenderer()

	generatedAt := in.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}
	period := strings.TrimSpace(in.Period)
	if period == "" {
		period = DefaultPeriod
	}

	r.Title("Meufin • Relatório Financeiro")
	r.Line("Período: " + period)
	r.Line("Gerado em: " + generatedAt.In(g.location).Format("02/01/2006 15:04:05"))

	r.Heading("Resumo")
	r.Paragraph(SummaryLine(in.Metrics))

	if note := strings.TrimSpace(in.Note); note != "" {
		r.Heading("Observações do usuário")
		r.Paragraph(note)
	}

	r.Table(TableHeader, TransactionRows(in.Transactions))

	r.Heading("Gráficos")
	for _, slot := range ChartSlots {
		uri, ok := in.Charts[slot]
		if !ok || uri == "" {
			continue
		}
		data, format, err := DecodeImageDataURI(uri)
		if err != nil {
			g.logger.WarnContext(ctx, "Skipping chart snapshot", "slot", slot, "error", err)
			continue
		}
		if err := r.Image(data, format); err != nil {
			g.logger.WarnContext(ctx, "Skipping chart snapshot", "slot", slot, "error", err)
		}
	}

	share := strings.TrimSpace(in.Config.ShareURL)
	if share == "" {
		share = strings.TrimSpace(in.PageURL)
	}
	if share != "" {
		if err := r.QRCode(share, "Acesse o painel digital"); err != nil {
			g.logger.DebugContext(ctx, "Skipping QR code", "error", err)
		}
	}

	pdf, err := r.Render()
	if err != nil {
		return Document{}, fmt.Errorf("render report: %w", err)
	}

	return Document{
		PDF:      pdf,
		DataURI:  PDFDataURI(pdf),
		FileName: fmt.Sprintf("relatorio-meufin-%d.pdf", generatedAt.UnixMilli()),
	}, nil
}

// SummaryLine is the one-line summary paragraph.
func SummaryLine(m core.Metrics) string {
	return fmt.Sprintf("Saldo Atual: %s | Entradas: %s | Saídas: %s | Saúde Financeira: %s%%",
		core.FormatBRL(m.Balance),
		core.FormatBRL(m.Inflow),
		core.FormatBRL(m.Outflow),
		core.FormatNumberBR(m.Health, 1))
}

// TransactionRows renders the table body in input order.
func TransactionRows(txs []core.Transaction) [][]string {
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []string{
			tx.Date.BR(),
			tx.Description,
			tx.Category,
			string(tx.Kind),
			core.FormatBRL(tx.Amount),
		})
	}
	return rows
}

// PeriodLabel formats a date range as "DD/MM/AAAA - DD/MM/AAAA", falling
// back to DefaultPeriod when either end is missing.
func PeriodLabel(start, end core.Date) string {
	if start.IsZero() || end.IsZero() {
		return DefaultPeriod
	}
	return start.BR() + " - " + end.BR()
}

const pdfDataURIPrefix = "data:application/pdf;base64,"

func PDFDataURI(pdf []byte) string {
	return pdfDataURIPrefix + base64.StdEncoding.EncodeToString(pdf)
}

// DecodePDFDataURI returns the raw bytes of a PDF data URI. Bare base64 is
// accepted too.
func DecodePDFDataURI(uri string) ([]byte, error) {
	raw := strings.TrimPrefix(uri, pdfDataURIPrefix)
	if i := strings.Index(raw, ";base64,"); strings.HasPrefix(raw, "data:") && i >= 0 {
		raw = raw[i+len(";base64,"):]
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode pdf data uri: %w", err)
	}
	return b, nil
}

// DecodeImageDataURI decodes "data:image/png;base64,..." style payloads.
func DecodeImageDataURI(uri string) ([]byte, ImageFormat, error) {
	meta, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(meta, "data:") || !strings.HasSuffix(meta, ";base64") {
		return nil, "", ErrUnsupportedImage
	}
	var format ImageFormat
	switch strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64") {
	case "image/png":
		format = PNG
	case "image/jpeg", "image/jpg":
		format = JPEG
	default:
		return nil, "", ErrUnsupportedImage
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if len(data) == 0 {
		return nil, "", ErrUnsupportedImage
	}
	return data, format, nil
}
