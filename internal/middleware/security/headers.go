package security

import (
	"fmt"
	"net/http"
	"strings"
)

// HeadersConfig lists the response headers set on every request. Empty
// values are skipped.
type HeadersConfig struct {
	CSP                 string
	FrameOptions        string
	ContentTypeOptions  string
	ReferrerPolicy      string
	PermissionsPolicy   string
	CrossOriginOpener   string
	CrossOriginResource string

	// HSTSMaxAge is in seconds and only sent over TLS.
	HSTSMaxAge int

	// APIPrefix marks responses that carry account data; they get
	// APICacheControl so the browser and proxies never store them.
	APIPrefix       string
	APICacheControl string
}

// DefaultHeadersConfig allows the chart CDN, and data/blob URIs for the
// PDF preview frame.
func DefaultHeadersConfig() HeadersConfig {
	csp := []string{
		"default-src 'self'",
		"script-src 'self' https://cdn.jsdelivr.net",
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data: blob:",
		"connect-src 'self'",
		"worker-src 'self'",
		"manifest-src 'self'",
		"frame-src 'self' data: blob:",
		"object-src 'none'",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}
	return HeadersConfig{
		CSP:                 strings.Join(csp, "; "),
		FrameOptions:        "DENY",
		ContentTypeOptions:  "nosniff",
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		PermissionsPolicy:   "geolocation=(), microphone=(), camera=(), payment=()",
		CrossOriginOpener:   "same-origin",
		CrossOriginResource: "same-origin",
		HSTSMaxAge:          365 * 24 * 60 * 60,
		APIPrefix:           "/api/",
		APICacheControl:     "no-store",
	}
}

type HeadersMiddleware struct {
	static [][2]string
	config HeadersConfig
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	all := [][2]string{
		{"Content-Security-Policy", config.CSP},
		{"X-Frame-Options", config.FrameOptions},
		{"X-Content-Type-Options", config.ContentTypeOptions},
		{"Referrer-Policy", config.ReferrerPolicy},
		{"Permissions-Policy", config.PermissionsPolicy},
		{"Cross-Origin-Opener-Policy", config.CrossOriginOpener},
		{"Cross-Origin-Resource-Policy", config.CrossOriginResource},
	}
	m := &HeadersMiddleware{config: config}
	for _, kv := range all {
		if kv[1] != "" {
			m.static = append(m.static, kv)
		}
	}
	return m
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		for _, kv := range h.static {
			hdr.Set(kv[0], kv[1])
		}
		if r.TLS != nil && h.config.HSTSMaxAge > 0 {
			hdr.Set("Strict-Transport-Security", fmt.Sprintf("max-age=%d; includeSubDomains", h.config.HSTSMaxAge))
		}
		if h.config.APIPrefix != "" && h.config.APICacheControl != "" && strings.HasPrefix(r.URL.Path, h.config.APIPrefix) {
			hdr.Set("Cache-Control", h.config.APICacheControl)
		}
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware lets browsers cache embedded assets for maxAge seconds.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", maxAge)
	return func(next http.Handler) http.Handler {
		if maxAge <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodyBytes caps request bodies; reads past the limit fail with
// *http.MaxBytesError.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
