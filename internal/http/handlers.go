package http

import (
	"context"
	"net/http"
	"time"

	"meufin/internal/offline"
)

// PageData is passed to every shell page template.
type PageData struct {
	Title       string
	Page        string
	Theme       string
	AuthEnabled bool
	Year        int
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	p, ok := pageTemplates[path]
	if !ok {
		p = pageTemplates["/"]
	}
	s.renderPage(w, r, p)
}

// handleFallback answers unmatched navigations with the shell page so deep
// links keep working offline; everything else is a JSON 404.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if offline.IsNavigation(r) {
		s.renderPage(w, r, pageTemplates["/"])
		return
	}
	NotFoundError("Rota não encontrada").Write(w)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, p page) {
	data := PageData{
		Title:       p.Title,
		Page:        p.Name,
		Theme:       "light",
		AuthEnabled: s.opts.AuthEnabled,
		Year:        s.now().Year(),
	}
	// theme falls back to light when the configuration cannot be read
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if cfg, err := s.svc.Ledger.Config(ctx); err == nil {
		data.Theme = cfg.Theme
	} else {
		s.logger.DebugContext(r.Context(), "Theme unavailable, using default", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, p.Template, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", p.Template)
		http.Error(w, "Erro ao renderizar a página", http.StatusInternalServerError)
	}
}

// handleHealth is the liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the database and reports middleware state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if s.svc.DB == nil {
		checks["database"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.svc.DB.Ping(ctx); err != nil {
		checks["database"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if s.svc.Mirror != nil {
		checks["sheets"] = "configured"
	}
	rl := s.limiter.GetMetrics()
	checks["rate_limiter"] = map[string]any{
		"active_clients": rl.ClientCount,
		"limited":        rl.TotalHits,
	}
	sec := s.detector.GetMetrics()
	checks["security"] = map[string]any{
		"suspicious_requests": sec.SuspiciousRequests,
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}
