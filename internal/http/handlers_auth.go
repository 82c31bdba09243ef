package http

import (
	"net/http"
	"time"

	"meufin/internal/auth"
	"meufin/internal/core"
	applog "meufin/internal/log"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Email    string `json:"email"`
	Code     string `json:"codigo"`
	Password string `json:"senha"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = sanitizeInput(req.Name)
	req.Email = sanitizeInput(req.Email)

	u, err := s.svc.Auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logger.WithComponent(applog.ComponentAuth).InfoContext(r.Context(), "User registered",
		applog.FieldUserID, u.ID)
	writeJSON(w, http.StatusCreated, map[string]core.User{"user": u})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.svc.Auth.Login(r.Context(), sanitizeInput(req.Email), req.Password)
	if err != nil {
		s.logger.WithComponent(applog.ComponentAuth).WarnContext(r.Context(), "Login failed",
			applog.FieldClientIP, s.detector.ExtractClientIP(r))
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handlePasswordReset sends a reset code to the account's owner.
func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Auth.RequestPasswordReset(r.Context(), sanitizeInput(req.Email)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "codigo enviado"})
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Auth.ResetPassword(r.Context(), sanitizeInput(req.Email), sanitizeInput(req.Code), req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	u, err := s.svc.Auth.Me(r.Context(), claims)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]core.User{"user": u})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = sanitizeInput(req.Name)
	req.Email = sanitizeInput(req.Email)

	claims, _ := auth.ClaimsFromContext(r.Context())
	u, err := s.svc.Auth.CreateUser(r.Context(), claims, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]core.User{"user": u})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	users, err := s.svc.Auth.ListUsers(r.Context(), claims)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []core.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}
