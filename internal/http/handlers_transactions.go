package http

import (
	"net/http"

	"meufin/internal/core"
	"meufin/internal/dashboard"
	applog "meufin/internal/log"
	"meufin/internal/services"
)

type transactionList struct {
	Period       core.Period        `json:"periodo"`
	Transactions []core.Transaction `json:"transactions"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	period := ParsePeriodQuery(r)
	txs, err := s.svc.Ledger.List(r.Context(), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactionList{Period: period, Transactions: txs})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req services.CreateRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Category = sanitizeInput(req.Category)
	req.Description = sanitizeInput(req.Description)
	req.Notes = sanitizeInput(req.Notes)

	created, err := s.svc.Ledger.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sl := applog.NewStructuredLogger(applog.FromContext(r.Context()))
	for _, tx := range created {
		sl.LogTransactionCreated(r.Context(), tx.ID, string(tx.Kind), tx.Category, tx.Amount.StringFixed(2), tx.Date.String())
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transactions": created})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Ledger.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearTransactions(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ledger.Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Ledger.State(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard.Build(st.Transactions, st.Metrics, st.Config, s.now()))
}
