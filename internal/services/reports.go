package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meufin/internal/cache"
	"meufin/internal/core"
	"meufin/internal/dashboard"
	"meufin/internal/delivery"
	"meufin/internal/report"
	"meufin/internal/telemetry"
)

type (
	// StateLoader builds the per-request application state.
	StateLoader interface {
		State(ctx context.Context) (AppState, error)
	}

	ReportStore interface {
		Put(ctx context.Context, r core.Report) (core.Report, error)
		Get(ctx context.Context, id int64) (core.Report, error)
		GetAll(ctx context.Context) ([]core.Report, error)
		Delete(ctx context.Context, id int64) error
		Clear(ctx context.Context) error
	}

	EmailDelivery interface {
		Send(ctx context.Context, job core.EmailJob) (delivery.SendResult, error)
		Flush(ctx context.Context) (int, error)
	}

	WhatsAppSender interface {
		Send(ctx context.Context, msg delivery.WhatsAppMessage) (json.RawMessage, error)
	}
)

// DefaultEmailUser is the template user name when none is configured.
const DefaultEmailUser = "Usuário"

// GenerateRequest is the report form.
type GenerateRequest struct {
	Start string `json:"periodoInicio"`
	End   string `json:"periodoFim"`
	Note  string `json:"resumoCustom"`
	// Charts maps chart slots to PNG/JPEG data URIs captured by the browser.
	Charts map[string]string `json:"charts"`
	// PageURL is set by the server from the incoming request.
	PageURL string `json:"-"`
}

// Period is the label of the requested range.
func (r GenerateRequest) Period() string {
	start, err1 := core.ParseDate(r.Start)
	end, err2 := core.ParseDate(r.End)
	if err1 != nil || err2 != nil {
		return report.DefaultPeriod
	}
	return report.PeriodLabel(start, end)
}

type GeneratedReport struct {
	Report   core.Report `json:"report"`
	FileName string      `json:"fileName"`
	PDF      []byte      `json:"-"`
}

type EmailOutcome struct {
	GeneratedReport
	Queued bool `json:"queued"`
}

type WhatsAppOutcome struct {
	GeneratedReport
	Reply json.RawMessage `json:"reply"`
}

// ReportService generates, stores and delivers PDF reports.
type ReportService struct {
	state     StateLoader
	reports   ReportStore
	generator *report.Generator
	email     EmailDelivery
	whatsapp  WhatsAppSender
	pdfs      *cache.LRU[int64, []byte]
	recorder  telemetry.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewReportService(state StateLoader, reports ReportStore, generator *report.Generator, email EmailDelivery, whatsapp WhatsAppSender, pdfs *cache.LRU[int64, []byte], recorder telemetry.Recorder, logger *slog.Logger) *ReportService {
	if recorder == nil {
		recorder = telemetry.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		state:     state,
		reports:   reports,
		generator: generator,
		email:     email,
		whatsapp:  whatsapp,
		pdfs:      pdfs,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Generate renders the report from the current state and stores it.
func (s *ReportService) Generate(ctx context.Context, req GenerateRequest) (GeneratedReport, error) {
	st, err := s.state.State(ctx)
	if err != nil {
		return GeneratedReport{}, err
	}
	return s.generate(ctx, st, req)
}

func (s *ReportService) generate(ctx context.Context, st AppState, req GenerateRequest) (GeneratedReport, error) {
	now := s.now()
	period := req.Period()
	doc, err := s.generator.Generate(ctx, report.Input{
		Metrics:      st.Metrics,
		Transactions: st.Transactions,
		Config:       st.Config,
		Period:       period,
		Note:         req.Note,
		Charts:       req.Charts,
		PageURL:      req.PageURL,
		GeneratedAt:  now,
	})
	if err != nil {
		s.recorder.ReportGenerated(telemetry.OutcomeFailed)
		return GeneratedReport{}, fmt.Errorf("generate report: %w", err)
	}

	saved, err := s.reports.Put(ctx, core.Report{
		CreatedAt:  now.UTC(),
		Period:     period,
		Metrics:    st.Metrics,
		Summary:    strings.TrimSpace(req.Note),
		PDFDataURI: doc.DataURI,
		Status:     core.ReportStatusGenerated,
	})
	if err != nil {
		s.recorder.ReportGenerated(telemetry.OutcomeFailed)
		return GeneratedReport{}, fmt.Errorf("save report: %w", err)
	}
	if s.pdfs != nil {
		s.pdfs.Set(saved.ID, doc.PDF)
	}
	s.recorder.ReportGenerated(telemetry.OutcomeGenerated)
	s.logger.InfoContext(ctx, "Report generated", "id", saved.ID, "period", period, "bytes", len(doc.PDF))
	return GeneratedReport{Report: saved, FileName: doc.FileName, PDF: doc.PDF}, nil
}

func (s *ReportService) List(ctx context.Context) ([]core.Report, error) {
	reports, err := s.reports.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

// PDF returns the raw document of a stored report and its download name.
func (s *ReportService) PDF(ctx context.Context, id int64) ([]byte, string, error) {
	name := fmt.Sprintf("relatorio-meufin-%d.pdf", id)
	if s.pdfs != nil {
		if pdf, ok := s.pdfs.Get(id); ok {
			return pdf, name, nil
		}
	}
	r, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get report: %w", err)
	}
	pdf, err := report.DecodePDFDataURI(r.PDFDataURI)
	if err != nil {
		return nil, "", err
	}
	if s.pdfs != nil {
		s.pdfs.Set(id, pdf)
	}
	return pdf, name, nil
}

// Latest returns the most recently stored report.
func (s *ReportService) Latest(ctx context.Context) (core.Report, bool, error) {
	reports, err := s.List(ctx)
	if err != nil || len(reports) == 0 {
		return core.Report{}, false, err
	}
	latest := reports[0]
	for _, r := range reports[1:] {
		if r.ID > latest.ID {
			latest = r
		}
	}
	return latest, true, nil
}

func (s *ReportService) Delete(ctx context.Context, id int64) error {
	if err := s.reports.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if s.pdfs != nil {
		s.pdfs.Delete(id)
	}
	return nil
}

func (s *ReportService) Clear(ctx context.Context) error {
	if err := s.reports.Clear(ctx); err != nil {
		return fmt.Errorf("clear reports: %w", err)
	}
	if s.pdfs != nil {
		s.pdfs.Purge()
	}
	return nil
}

// Email generates a report and sends it by email. A failed send is queued
// and reported through Queued.
func (s *ReportService) Email(ctx context.Context, req GenerateRequest) (EmailOutcome, error) {
	st, err := s.state.State(ctx)
	if err != nil {
		return EmailOutcome{}, err
	}
	if !st.Config.EmailConfigured() {
		return EmailOutcome{}, delivery.ErrMissingEmailConfig
	}
	gen, err := s.generate(ctx, st, req)
	if err != nil {
		return EmailOutcome{}, err
	}

	user := strings.TrimSpace(st.Config.UserName)
	if user == "" {
		user = DefaultEmailUser
	}
	job := core.EmailJobFromConfig(st.Config, core.EmailPayload{
		User:    user,
		Summary: dashboard.AverageText(st.Metrics.RollingAverage, st.Metrics.Trend),
		PDF:     gen.Report.PDFDataURI,
	})
	res, err := s.email.Send(ctx, job)
	if err != nil {
		return EmailOutcome{GeneratedReport: gen}, err
	}
	return EmailOutcome{GeneratedReport: gen, Queued: res.Queued}, nil
}

// FlushEmail retries the queued emails.
func (s *ReportService) FlushEmail(ctx context.Context) (int, error) {
	return s.email.Flush(ctx)
}

// WhatsApp generates a report and relays it to the configured number. The
// number and endpoint are checked before the report is generated.
func (s *ReportService) WhatsApp(ctx context.Context, req GenerateRequest) (WhatsAppOutcome, error) {
	st, err := s.state.State(ctx)
	if err != nil {
		return WhatsAppOutcome{}, err
	}
	if strings.TrimSpace(st.Config.WhatsApp.WebhookURL) == "" {
		return WhatsAppOutcome{}, delivery.ErrMissingEndpoint
	}
	if _, err := delivery.NormalizePhone(st.Config.WhatsApp.Number); err != nil {
		return WhatsAppOutcome{}, err
	}
	gen, err := s.generate(ctx, st, req)
	if err != nil {
		return WhatsAppOutcome{}, err
	}
	reply, err := s.whatsapp.Send(ctx, delivery.WhatsAppMessage{
		Endpoint:  st.Config.WhatsApp.WebhookURL,
		Number:    st.Config.WhatsApp.Number,
		Text:      "Relatório financeiro " + gen.Report.Period,
		PDFBase64: gen.Report.PDFDataURI,
	})
	if err != nil {
		return WhatsAppOutcome{GeneratedReport: gen}, err
	}
	return WhatsAppOutcome{GeneratedReport: gen, Reply: reply}, nil
}

// TestWhatsApp sends the fixed test message without a PDF. Empty arguments
// fall back to the stored configuration.
func (s *ReportService) TestWhatsApp(ctx context.Context, endpoint, number string) (json.RawMessage, error) {
	if strings.TrimSpace(endpoint) == "" || strings.TrimSpace(number) == "" {
		st, err := s.state.State(ctx)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(endpoint) == "" {
			endpoint = st.Config.WhatsApp.WebhookURL
		}
		if strings.TrimSpace(number) == "" {
			number = st.Config.WhatsApp.Number
		}
	}
	return s.whatsapp.Send(ctx, delivery.WhatsAppMessage{
		Endpoint: endpoint,
		Number:   number,
		Text:     delivery.TestMessage,
	})
}
