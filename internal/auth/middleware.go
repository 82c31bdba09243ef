package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// SessionCookie carries the token for browser sessions.
const SessionCookie = "meufin_session"

type claimsKey struct{}

// WithClaims stores validated claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims set by RequireAuth, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := ExtractTokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				if c, cerr := r.Cookie(SessionCookie); cerr == nil {
					raw, err = c.Value, nil
				}
			}
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Sessão ausente")
				return
			}
			claims, err := tokens.Validate(raw)
			if errors.Is(err, ErrExpiredToken) {
				writeAuthError(w, http.StatusUnauthorized, "Sessão expirada")
				return
			}
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Sessão inválida")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		if !ok || !c.IsAdmin {
			writeAuthError(w, http.StatusForbidden, "Acesso restrito a administradores")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
