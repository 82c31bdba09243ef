package http

import (
	"fmt"
	"net/http"

	"meufin/internal/core"
	applog "meufin/internal/log"
	"meufin/internal/services"
)

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.svc.Reports.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reports == nil {
		reports = []core.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req services.GenerateRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.PageURL = PageURL(r)
	req.Note = sanitizeInput(req.Note)

	gen, err := s.svc.Reports.Generate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, gen)
}

func (s *Server) handleClearReports(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reports.Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Reports.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pdf, name, err := s.svc.Reports.PDF(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := NewResponse().Attachment(name, "application/pdf", pdf)
	if r.URL.Query().Get("inline") == "1" {
		resp.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	}
	resp.Write(w)
}

// handleEmailReport answers 202 when the send failed and the job was queued.
func (s *Server) handleEmailReport(w http.ResponseWriter, r *http.Request) {
	var req services.GenerateRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.PageURL = PageURL(r)
	out, err := s.svc.Reports.Email(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if out.Queued {
		status = http.StatusAccepted
	} else {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogReportSent(r.Context(), out.Report.ID, out.Report.Period, "email")
	}
	writeJSON(w, status, out)
}

func (s *Server) handleWhatsAppReport(w http.ResponseWriter, r *http.Request) {
	var req services.GenerateRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.PageURL = PageURL(r)
	out, err := s.svc.Reports.WhatsApp(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogReportSent(r.Context(), out.Report.ID, out.Report.Period, "whatsapp")
	writeJSON(w, http.StatusOK, out)
}

type whatsAppTestRequest struct {
	Endpoint string `json:"endpoint"`
	Number   string `json:"numero"`
}

func (s *Server) handleTestWhatsApp(w http.ResponseWriter, r *http.Request) {
	var req whatsAppTestRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	reply, err := s.svc.Reports.TestWhatsApp(r.Context(), sanitizeInput(req.Endpoint), sanitizeInput(req.Number))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "reply": reply})
}

func (s *Server) handleFlushEmail(w http.ResponseWriter, r *http.Request) {
	sent, err := s.svc.Reports.FlushEmail(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
