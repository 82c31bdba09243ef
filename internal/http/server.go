// Package http serves the shell pages, the JSON API, the offline assets and
// the operational endpoints.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"meufin/internal/auth"
	"meufin/internal/core"
	"meufin/internal/export"
	applog "meufin/internal/log"
	"meufin/internal/middleware/ratelimit"
	"meufin/internal/middleware/security"
	"meufin/internal/middleware/trace"
	"meufin/internal/offline"
	"meufin/internal/services"
	"meufin/internal/sheets"
	"meufin/internal/telemetry"
	appweb "meufin/web"
)

// Ports consumed by the handlers.
type (
	Ledger interface {
		Create(ctx context.Context, req services.CreateRequest) ([]core.Transaction, error)
		Delete(ctx context.Context, id int64) error
		List(ctx context.Context, period core.Period) ([]core.Transaction, error)
		State(ctx context.Context) (services.AppState, error)
		Config(ctx context.Context) (core.Configuration, error)
		SaveConfig(ctx context.Context, cfg core.Configuration) (core.Configuration, error)
		ResetConfig(ctx context.Context) (core.Configuration, error)
		SetTheme(ctx context.Context, theme string) (core.Configuration, error)
		ExportCSV(ctx context.Context, w io.Writer) error
		ExportBackup(ctx context.Context, w io.Writer) error
		Import(ctx context.Context, r io.Reader) (export.ImportResult, error)
		Clear(ctx context.Context) error
		Mirror(ctx context.Context, m sheets.TransactionMirror) (sheets.MirrorResult, error)
	}

	Reports interface {
		Generate(ctx context.Context, req services.GenerateRequest) (services.GeneratedReport, error)
		List(ctx context.Context) ([]core.Report, error)
		PDF(ctx context.Context, id int64) ([]byte, string, error)
		Delete(ctx context.Context, id int64) error
		Clear(ctx context.Context) error
		Email(ctx context.Context, req services.GenerateRequest) (services.EmailOutcome, error)
		FlushEmail(ctx context.Context) (int, error)
		WhatsApp(ctx context.Context, req services.GenerateRequest) (services.WhatsAppOutcome, error)
		TestWhatsApp(ctx context.Context, endpoint, number string) (json.RawMessage, error)
	}

	Notifications interface {
		Enable(ctx context.Context) error
	}

	Authenticator interface {
		Register(ctx context.Context, req auth.RegisterRequest) (core.User, error)
		CreateUser(ctx context.Context, actor *auth.Claims, req auth.RegisterRequest) (core.User, error)
		Login(ctx context.Context, email, password string) (auth.Session, error)
		Me(ctx context.Context, claims *auth.Claims) (core.User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, email, code, newPassword string) error
		ListUsers(ctx context.Context, actor *auth.Claims) ([]core.User, error)
		Tokens() *auth.TokenService
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Services groups the collaborators. Auth and Mirror may be nil.
type Services struct {
	Ledger        Ledger
	Reports       Reports
	Notifications Notifications
	Auth          Authenticator
	Mirror        sheets.TransactionMirror
	DB            Pinger
}

type Options struct {
	Addr         string
	AuthEnabled  bool
	RateLimit    ratelimit.Config
	MaxBodyBytes int64
	// TrustedProxies are added to the private ranges trusted by default.
	TrustedProxies []string
	Location       *time.Location
	Logger         *applog.Logger
	Recorder       telemetry.Recorder
	Gatherer       prometheus.Gatherer
}

const (
	readTimeout   = 7 * time.Second
	reportTimeout = 30 * time.Second

	defaultMaxBody = 12 << 20
)

// Pages are the shell pages, also precached by the service worker.
var Pages = []string{"/", "/entradas", "/relatorio", "/config", "/login"}

var pageTemplates = map[string]page{
	"/":          {Template: "index.html", Title: "Painel", Name: "painel"},
	"/entradas":  {Template: "entradas.html", Title: "Lançamentos", Name: "entradas"},
	"/relatorio": {Template: "relatorio.html", Title: "Relatórios", Name: "relatorio"},
	"/config":    {Template: "config.html", Title: "Configurações", Name: "config"},
	"/login":     {Template: "login.html", Title: "Entrar", Name: "login"},
}

type page struct {
	Template, Title, Name string
}

type Server struct {
	http.Server
	svc       Services
	opts      Options
	templates *template.Template
	offline   *offline.Handler
	detector  *security.Detector
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	logger    *applog.Logger
	recorder  telemetry.Recorder
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware and returns a ready-to-run server.
func NewServer(opts Options, svc Services) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Recorder == nil {
		opts.Recorder = telemetry.Nop{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	if opts.AuthEnabled && svc.Auth == nil {
		return nil, fmt.Errorf("auth enabled without an authenticator")
	}

	s := &Server{
		svc:      svc,
		opts:     opts,
		detector: security.NewDetector(),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		logger:   opts.Logger.WithComponent(applog.ComponentHTTP),
		recorder: opts.Recorder,
		started:  time.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.detector.ExtractClientIP, opts.Recorder)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	manifest, err := offline.BuildManifest(static, "/static", Pages)
	if err != nil {
		return nil, err
	}
	if s.offline, err = offline.NewHandler(manifest, offline.DefaultWebApp()); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	s.routes(mux, static)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      2 * reportTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux, static fs.FS) {
	assets := http.StripPrefix("/static/", http.FileServer(http.FS(static)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(assets))
	mux.HandleFunc("GET /service-worker.js", s.offline.ServeWorker)
	mux.HandleFunc("GET /manifest.webmanifest", s.offline.ServeManifest)

	for path := range pageTemplates {
		pattern := "GET " + path
		if path == "/" {
			pattern = "GET /{$}"
		}
		mux.HandleFunc(pattern, s.handlePage)
	}
	mux.HandleFunc("/", s.handleFallback)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.opts.Gatherer != nil {
		mux.Handle("GET /metrics", telemetry.Handler(s.opts.Gatherer))
	}

	// authentication
	if s.svc.Auth != nil {
		mux.HandleFunc("POST /api/auth/register", s.handleRegister)
		mux.HandleFunc("POST /api/auth/login", s.handleLogin)
		mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
		mux.HandleFunc("POST /api/auth/password-reset", s.handlePasswordReset)
		mux.HandleFunc("POST /api/auth/password-reset/confirm", s.handlePasswordResetConfirm)
		requireAuth := auth.RequireAuth(s.svc.Auth.Tokens())
		mux.Handle("GET /api/auth/me", requireAuth(http.HandlerFunc(s.handleMe)))
		mux.Handle("GET /api/users", requireAuth(auth.RequireAdmin(http.HandlerFunc(s.handleListUsers))))
		mux.Handle("POST /api/users", requireAuth(auth.RequireAdmin(http.HandlerFunc(s.handleCreateUser))))
	}

	api := func(pattern string, h http.HandlerFunc, timeout time.Duration) {
		var handler http.Handler = withTimeout(timeout, h)
		if s.opts.AuthEnabled {
			handler = auth.RequireAuth(s.svc.Auth.Tokens())(handler)
		}
		mux.Handle(pattern, handler)
	}

	api("GET /api/dashboard", s.handleDashboard, readTimeout)

	api("GET /api/transactions", s.handleListTransactions, readTimeout)
	api("POST /api/transactions", s.handleCreateTransaction, readTimeout)
	api("DELETE /api/transactions", s.handleClearTransactions, readTimeout)
	api("DELETE /api/transactions/{id}", s.handleDeleteTransaction, readTimeout)

	api("GET /api/config", s.handleGetConfig, readTimeout)
	api("PUT /api/config", s.handleSaveConfig, readTimeout)
	api("POST /api/config/reset", s.handleResetConfig, readTimeout)
	api("PUT /api/config/theme", s.handleSetTheme, readTimeout)
	api("POST /api/notifications/enable", s.handleEnableNotifications, readTimeout)

	api("GET /api/reports", s.handleListReports, readTimeout)
	api("POST /api/reports", s.handleGenerateReport, reportTimeout)
	api("DELETE /api/reports", s.handleClearReports, readTimeout)
	api("GET /api/reports/{id}/pdf", s.handleReportPDF, readTimeout)
	api("DELETE /api/reports/{id}", s.handleDeleteReport, readTimeout)
	api("POST /api/reports/email", s.handleEmailReport, reportTimeout)
	api("POST /api/reports/whatsapp", s.handleWhatsAppReport, reportTimeout)
	api("POST /api/whatsapp/test", s.handleTestWhatsApp, reportTimeout)
	api("POST /api/email/flush", s.handleFlushEmail, reportTimeout)

	api("GET /api/export/csv", s.handleExportCSV, readTimeout)
	api("GET /api/export/json", s.handleExportJSON, readTimeout)
	api("POST /api/export/sheets", s.handleExportSheets, reportTimeout)
	api("POST /api/import", s.handleImport, reportTimeout)
}

// middleware wraps the mux, outermost first: tracing, security headers,
// scanner detection, rate limiting, body limit.
func (s *Server) middleware(next http.Handler) http.Handler {
	h := security.MaxBodyBytes(s.opts.MaxBodyBytes)(next)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		TooManyRequestsError("Muitas requisições. Tente novamente em instantes.").Write(w)
	})(h)
	h = s.detect(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return s.tracer.Middleware(h)
}

// detect logs scanner-like requests; they are still served normally.
func (s *Server) detect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason, hit := s.detector.Inspect(r); hit {
			s.logger.WithComponent(applog.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				"reason", reason,
				applog.FieldClientIP, s.detector.ExtractClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

func withTimeout(d time.Duration, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		h(w, r.WithContext(ctx))
	})
}

func (s *Server) now() time.Time {
	return time.Now().In(s.opts.Location)
}

// Shutdown stops the background goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
