package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"

	"meufin/internal/core"
	"meufin/internal/export"
	applog "meufin/internal/log"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.svc.Ledger.Config(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var cfg core.Configuration
	if err := DecodeJSON(r, &cfg); err != nil {
		writeError(w, r, err)
		return
	}
	cfg.UserName = sanitizeInput(cfg.UserName)
	cfg.GoalDescription = sanitizeInput(cfg.GoalDescription)

	saved, err := s.svc.Ledger.SaveConfig(r.Context(), cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleResetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.svc.Ledger.ResetConfig(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := s.svc.Ledger.SetTheme(r.Context(), sanitizeInput(req.Theme))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleEnableNotifications(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Notifications.Enable(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, export.CSVFileName(s.now()), "text/csv; charset=utf-8", s.svc.Ledger.ExportCSV)
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, export.BackupFileName(s.now()), "application/json", s.svc.Ledger.ExportBackup)
}

// download buffers the export so a failure can still become a JSON error.
func (s *Server) download(w http.ResponseWriter, r *http.Request, name, contentType string, write func(context.Context, io.Writer) error) {
	var buf bytes.Buffer
	if err := write(r.Context(), &buf); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Attachment(name, contentType, buf.Bytes()).Write(w)
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if s.svc.Mirror == nil {
		writeError(w, r, errSheetsDisabled)
		return
	}
	res, err := s.svc.Ledger.Mirror(r.Context(), s.svc.Mirror)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleImport accepts a backup either as the "arquivo" field of a
// multipart form or as the raw JSON body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, closeBody, err := importBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeBody()

	res, err := s.svc.Ledger.Import(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Backup imported",
		applog.FieldOperation, applog.OpImport,
		"imported", len(res.Transactions),
		"skipped", len(res.Skipped))

	writeJSON(w, http.StatusOK, map[string]any{
		"imported": len(res.Transactions),
		"skipped":  res.Skipped,
	})
}

func importBody(r *http.Request) (io.Reader, func(), error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		return r.Body, func() {}, nil
	}
	f, _, err := r.FormFile("arquivo")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, err
		}
		return nil, nil, &badRequest{msg: "Selecione um arquivo de backup", err: err}
	}
	return f, func() { f.Close() }, nil
}
