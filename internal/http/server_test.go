package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"meufin/internal/auth"
	"meufin/internal/cache"
	"meufin/internal/delivery"
	applog "meufin/internal/log"
	"meufin/internal/middleware/ratelimit"
	"meufin/internal/notify"
	"meufin/internal/report"
	"meufin/internal/services"
	"meufin/internal/sheets/memory"
	"meufin/internal/storage"
	"meufin/internal/telemetry"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// stubRenderer remembers the last QR target in qr.
type stubRenderer struct{ qr *atomic.Pointer[string] }

func (stubRenderer) Title(string)                           {}
func (stubRenderer) Line(string)                            {}
func (stubRenderer) Heading(string)                         {}
func (stubRenderer) Paragraph(string)                       {}
func (stubRenderer) Table([]string, [][]string)             {}
func (stubRenderer) Image([]byte, report.ImageFormat) error { return nil }
func (stubRenderer) Render() ([]byte, error)                { return []byte("%PDF-1.4 stub"), nil }

func (r stubRenderer) QRCode(content, _ string) error {
	if r.qr == nil {
		return report.ErrQRUnavailable
	}
	r.qr.Store(&content)
	return nil
}

type ServerSuite struct {
	suite.Suite
	repo       *storage.SQLiteRepository
	mirror     *memory.Store
	emailRelay *httptest.Server
	emailFail  atomic.Bool
	qrTarget   atomic.Pointer[string]
	services   Services
	srv        *Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	repo, err := storage.NewSQLiteRepository(filepath.Join(s.T().TempDir(), "http.db"))
	s.Require().NoError(err)
	s.repo = repo

	s.emailFail.Store(false)
	s.qrTarget.Store(nil)
	s.emailRelay = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.emailFail.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "OK")
	}))

	ledger := services.NewLedgerService(repo.Transactions(), repo.Config(), nil, nil, nil)
	gen := report.NewGenerator(func() report.Renderer { return stubRenderer{qr: &s.qrTarget} }, report.WithLocation(time.UTC))
	email := delivery.NewEmailDispatcher(delivery.NewEmailJSClient(s.emailRelay.URL, time.Second), repo.EmailQueue(), nil, nil)
	reports := services.NewReportService(ledger, repo.Reports(), gen, email,
		delivery.NewWhatsAppClient(time.Second, nil, nil),
		cache.NewLRU[int64, []byte](4, time.Minute), nil, nil)
	notifier := notify.NewLogNotifier(nil)
	scheduler := notify.NewScheduler(repo.NotificationState(), notifier, nil, nil)

	tokens, err := auth.NewTokenService(testSecret, "meufin", time.Hour)
	s.Require().NoError(err)

	s.mirror = memory.New()
	s.services = Services{
		Ledger:        ledger,
		Reports:       reports,
		Notifications: services.NewNotificationService(ledger, scheduler),
		Auth:          auth.NewService(repo.Users(), auth.NewHasher(bcrypt.MinCost), tokens, services.NewNotifierCodeSender(notifier), nil),
		Mirror:        s.mirror,
		DB:            repo,
	}
	s.srv = s.newServer(Options{Location: time.UTC})
}

func (s *ServerSuite) TearDownTest() {
	s.Require().NoError(s.srv.Shutdown(context.Background()))
	s.emailRelay.Close()
	s.Require().NoError(s.repo.Close())
}

func (s *ServerSuite) newServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Level: applog.ParseLevel("error"), Output: io.Discard})
	}
	srv, err := NewServer(opts, s.services)
	s.Require().NoError(err)
	return srv
}

func (s *ServerSuite) do(method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *ServerSuite) createTransaction(body map[string]any) {
	rec := s.do(http.MethodPost, "/api/transactions", body)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *ServerSuite) TestPagesRender() {
	for path, p := range pageTemplates {
		rec := s.do(http.MethodGet, path, nil)
		s.Equal(http.StatusOK, rec.Code, path)
		s.Contains(rec.Header().Get("Content-Type"), "text/html")
		s.Contains(rec.Body.String(), `data-page="`+p.Name+`"`, path)
		s.Contains(rec.Body.String(), p.Title)
	}
}

func (s *ServerSuite) TestPageUsesStoredTheme() {
	rec := s.do(http.MethodPut, "/api/config/theme", map[string]string{"theme": "dark"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/", nil)
	s.Contains(rec.Body.String(), `data-theme="dark"`)

	rec = s.do(http.MethodPut, "/api/config/theme", map[string]string{"theme": "neon"})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *ServerSuite) TestFallback() {
	rec := s.do(http.MethodGet, "/algum/link", nil, func(r *http.Request) {
		r.Header.Set("Accept", "text/html")
	})
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `data-page="painel"`)

	rec = s.do(http.MethodGet, "/api/nada", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Contains(rec.Header().Get("Content-Type"), "application/json")
}

func (s *ServerSuite) TestOfflineAssets() {
	rec := s.do(http.MethodGet, "/service-worker.js", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "/static/js/app.js")
	s.Contains(rec.Body.String(), "/entradas")

	rec = s.do(http.MethodGet, "/manifest.webmanifest", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "icon.svg")

	rec = s.do(http.MethodGet, "/static/css/style.css", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get("Cache-Control"))
}

func (s *ServerSuite) TestReconnectFlushesEmailQueue() {
	rec := s.do(http.MethodGet, "/static/js/app.js", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	js := rec.Body.String()
	s.Regexp(regexp.MustCompile(`addEventListener\("online", \(\) => \{[^}]*flushQueuedEmail\(\)`), js)
	s.Contains(js, `api("POST", "/api/email/flush")`)
}

func (s *ServerSuite) TestHealthAndReady() {
	rec := s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/readyz", nil)
	s.Equal(http.StatusOK, rec.Code)
	var body struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	s.decode(rec, &body)
	s.Equal("ready", body.Status)
	s.Equal("ok", body.Checks["database"])
	s.Equal("configured", body.Checks["sheets"])
}

func (s *ServerSuite) TestSecurityHeadersAndRequestID() {
	rec := s.do(http.MethodGet, "/healthz", nil)
	s.Equal("nosniff", rec.Header().Get("X-Content-Type-Options"))
	s.NotEmpty(rec.Header().Get("Content-Security-Policy"))
	s.True(strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_"))

	rec = s.do(http.MethodGet, "/healthz", nil, func(r *http.Request) {
		r.Header.Set("X-Request-ID", "abc-123")
	})
	s.Equal("abc-123", rec.Header().Get("X-Request-ID"))
}

func (s *ServerSuite) TestTransactionLifecycle() {
	today := time.Now().UTC().Format("2006-01-02")

	rec := s.do(http.MethodPost, "/api/transactions", map[string]any{
		"tipo": "saida", "categoria": "moradia", "descricao": "Aluguel",
		"valor": "1.500,00", "data": today, "fixo": true,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Transactions []struct {
			ID        int64  `json:"id"`
			Category  string `json:"categoria"`
			Amount    string `json:"valor"`
			Recurring bool   `json:"fixo"`
		} `json:"transactions"`
	}
	s.decode(rec, &created)
	s.Require().Len(created.Transactions, 1)
	s.Equal("Moradia", created.Transactions[0].Category)
	s.Equal("1500", created.Transactions[0].Amount)
	s.True(created.Transactions[0].Recurring)

	rec = s.do(http.MethodGet, "/api/transactions?periodo=todos", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list struct {
		Period       string            `json:"periodo"`
		Transactions []json.RawMessage `json:"transactions"`
	}
	s.decode(rec, &list)
	s.Equal("todos", list.Period)
	s.Len(list.Transactions, 1)

	rec = s.do(http.MethodDelete, "/api/transactions/"+itoa(created.Transactions[0].ID), nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodDelete, "/api/transactions/"+itoa(created.Transactions[0].ID), nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, "/api/transactions/abc", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestCreateInstallments() {
	rec := s.do(http.MethodPost, "/api/transactions", map[string]any{
		"tipo": "saida", "categoria": "Lazer", "valor": 300, "data": "2024-01-31", "parcelas": 3,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Transactions []struct {
			Date string `json:"data"`
		} `json:"transactions"`
	}
	s.decode(rec, &created)
	s.Len(created.Transactions, 3)
}

func (s *ServerSuite) TestCreateTransactionErrors() {
	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"bad kind", map[string]any{"tipo": "x", "categoria": "Lazer", "valor": "1", "data": "2024-01-01"}, http.StatusBadRequest},
		{"bad amount", map[string]any{"tipo": "saida", "categoria": "Lazer", "valor": "-1", "data": "2024-01-01"}, http.StatusBadRequest},
		{"bad date", map[string]any{"tipo": "saida", "categoria": "Lazer", "valor": "1", "data": "ontem"}, http.StatusBadRequest},
		{"bad json", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.do(http.MethodPost, "/api/transactions", tt.body)
			s.Equal(tt.status, rec.Code, rec.Body.String())
			var body ErrorBody
			s.decode(rec, &body)
			s.NotEmpty(body.Error)
		})
	}

	rec := s.do(http.MethodPost, "/api/transactions", nil, func(r *http.Request) {
		r.Body = io.NopCloser(strings.NewReader("tipo=saida"))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestDashboard() {
	today := time.Now().UTC().Format("2006-01-02")
	s.createTransaction(map[string]any{"tipo": "entrada", "categoria": "Salário", "valor": "5000", "data": today})
	s.createTransaction(map[string]any{"tipo": "saida", "categoria": "Moradia", "valor": "1500", "data": today})

	rec := s.do(http.MethodGet, "/api/dashboard", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var view struct {
		Balance string `json:"saldo"`
		Charts  struct {
			InflowOutflow [2]float64 `json:"entradasSaidas"`
		} `json:"charts"`
	}
	s.decode(rec, &view)
	s.Contains(view.Balance, "3.500,00")
	s.Equal([2]float64{5000, 1500}, view.Charts.InflowOutflow)
}

func (s *ServerSuite) TestConfig() {
	rec := s.do(http.MethodGet, "/api/config", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var cfg map[string]any
	s.decode(rec, &cfg)

	cfg["nomeUsuario"] = "  Ana\x00 "
	cfg["metaEconomia"] = "800"
	rec = s.do(http.MethodPut, "/api/config", cfg)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var saved map[string]any
	s.decode(rec, &saved)
	s.Equal("Ana", saved["nomeUsuario"])

	cfg["shareUrl"] = "not a url"
	rec = s.do(http.MethodPut, "/api/config", cfg)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	var verr ErrorBody
	s.decode(rec, &verr)
	s.Contains(verr.Fields, "shareUrl")

	rec = s.do(http.MethodPost, "/api/config/reset", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var reset map[string]any
	s.decode(rec, &reset)
	s.Equal("", reset["nomeUsuario"])
}

func (s *ServerSuite) TestEnableNotifications() {
	rec := s.do(http.MethodPost, "/api/notifications/enable", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/config", nil)
	var cfg struct {
		Notifications struct {
			Granted bool `json:"permissaoNotificacoes"`
		} `json:"notificacoes"`
	}
	s.decode(rec, &cfg)
	s.True(cfg.Notifications.Granted)
}

func (s *ServerSuite) TestReports() {
	s.createTransaction(map[string]any{"tipo": "entrada", "categoria": "Salário", "valor": "3000", "data": "2024-06-05"})

	rec := s.do(http.MethodPost, "/api/reports", map[string]any{"periodoInicio": "2024-06-01", "periodoFim": "2024-06-30"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var gen struct {
		Report struct {
			ID     int64  `json:"id"`
			Period string `json:"periodo"`
		} `json:"report"`
		FileName string `json:"fileName"`
	}
	s.decode(rec, &gen)
	s.NotZero(gen.Report.ID)
	s.Equal("01/06/2024 - 30/06/2024", gen.Report.Period)
	s.Require().NotNil(s.qrTarget.Load(), "default config still gets a QR code")
	s.Equal("http://example.com/", *s.qrTarget.Load())

	rec = s.do(http.MethodGet, "/api/reports/"+itoa(gen.Report.ID)+"/pdf", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("application/pdf", rec.Header().Get("Content-Type"))
	s.Contains(rec.Header().Get("Content-Disposition"), "attachment")
	s.Equal("%PDF-1.4 stub", rec.Body.String())

	rec = s.do(http.MethodGet, "/api/reports/"+itoa(gen.Report.ID)+"/pdf?inline=1", nil)
	s.Contains(rec.Header().Get("Content-Disposition"), "inline")

	rec = s.do(http.MethodGet, "/api/reports", nil)
	var list struct {
		Reports []json.RawMessage `json:"reports"`
	}
	s.decode(rec, &list)
	s.Len(list.Reports, 1)

	rec = s.do(http.MethodDelete, "/api/reports/"+itoa(gen.Report.ID), nil)
	s.Equal(http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/api/reports/"+itoa(gen.Report.ID)+"/pdf", nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, "/api/reports", nil)
	s.Equal(http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/api/reports", nil)
	list.Reports = nil
	s.decode(rec, &list)
	s.Empty(list.Reports)
}

func (s *ServerSuite) TestEmailReport() {
	rec := s.do(http.MethodPost, "/api/reports/email", map[string]any{})
	s.Equal(http.StatusBadRequest, rec.Code, "email not configured")

	rec = s.do(http.MethodGet, "/api/config", nil)
	var cfg map[string]any
	s.decode(rec, &cfg)
	cfg["email"] = map[string]any{"emailService": "svc", "emailTemplate": "tpl", "emailPublic": "pub"}
	rec = s.do(http.MethodPut, "/api/config", cfg)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/reports/email", map[string]any{})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	s.emailFail.Store(true)
	rec = s.do(http.MethodPost, "/api/reports/email", map[string]any{})
	s.Require().Equal(http.StatusAccepted, rec.Code, rec.Body.String())
	var out struct {
		Queued bool `json:"queued"`
	}
	s.decode(rec, &out)
	s.True(out.Queued)

	s.emailFail.Store(false)
	rec = s.do(http.MethodPost, "/api/email/flush", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var flushed map[string]int
	s.decode(rec, &flushed)
	s.Equal(1, flushed["sent"])
}

func (s *ServerSuite) TestWhatsApp() {
	var got map[string]any
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer relay.Close()

	rec := s.do(http.MethodPost, "/api/whatsapp/test", map[string]string{"endpoint": relay.URL, "numero": "11999998888"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.NotEmpty(got)

	rec = s.do(http.MethodPost, "/api/whatsapp/test", map[string]string{"endpoint": relay.URL, "numero": "12"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/reports/whatsapp", map[string]any{})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestExportAndImport() {
	s.createTransaction(map[string]any{"tipo": "saida", "categoria": "Lazer", "descricao": "Cinema, pipoca", "valor": "40", "data": "2024-03-02"})

	rec := s.do(http.MethodGet, "/api/export/csv", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get("Content-Disposition"), ".csv")
	s.Contains(rec.Body.String(), `"Cinema, pipoca"`)

	rec = s.do(http.MethodGet, "/api/export/json", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get("Content-Disposition"), "meufin-backup-")
	backup := rec.Body.Bytes()

	rec = s.do(http.MethodDelete, "/api/transactions", nil)
	s.Require().Equal(http.StatusNoContent, rec.Code)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, err := mw.CreateFormFile("arquivo", "backup.json")
	s.Require().NoError(err)
	_, _ = fw.Write(backup)
	s.Require().NoError(mw.Close())

	rec = s.do(http.MethodPost, "/api/import", nil, func(r *http.Request) {
		r.Body = io.NopCloser(&form)
		r.Header.Set("Content-Type", mw.FormDataContentType())
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Imported int `json:"imported"`
	}
	s.decode(rec, &res)
	s.Equal(1, res.Imported)

	rec = s.do(http.MethodPost, "/api/import", nil, func(r *http.Request) {
		r.Body = io.NopCloser(strings.NewReader(`{"not":"array"}`))
		r.Header.Set("Content-Type", "application/json")
	})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/export/sheets", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal(1, s.mirror.Runs())
}

func (s *ServerSuite) TestSheetsDisabled() {
	s.services.Mirror = nil
	s.srv = s.newServer(Options{Location: time.UTC})

	rec := s.do(http.MethodPost, "/api/export/sheets", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestAuthFlow() {
	s.srv = s.newServer(Options{Location: time.UTC, AuthEnabled: true})

	rec := s.do(http.MethodGet, "/api/dashboard", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"nome": "Ana", "email": "ana@example.com", "senha": "segredo1", "confirmacao": "segredo1",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ana@example.com", "senha": "errada1"})
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ana@example.com", "senha": "segredo1"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			cookie = c
		}
	}
	s.Require().NotNil(cookie)
	s.True(cookie.HttpOnly)
	withCookie := func(r *http.Request) { r.AddCookie(cookie) }

	rec = s.do(http.MethodGet, "/api/dashboard", nil, withCookie)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/auth/me", nil, withCookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "ana@example.com")

	rec = s.do(http.MethodGet, "/api/users", nil, withCookie)
	s.Require().Equal(http.StatusOK, rec.Code, "first user is admin")

	bruno := map[string]string{
		"nome": "Bruno", "email": "bruno@example.com", "senha": "segredo2", "confirmacao": "segredo2",
	}
	rec = s.do(http.MethodPost, "/api/auth/register", bruno)
	s.Equal(http.StatusForbidden, rec.Code, "registration closes after the first account")

	rec = s.do(http.MethodPost, "/api/users", bruno)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/users", bruno, withCookie)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Contains(rec.Body.String(), "bruno@example.com")

	rec = s.do(http.MethodPost, "/api/users", bruno, withCookie)
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/logout", nil, withCookie)
	s.Equal(http.StatusNoContent, rec.Code)
	s.Contains(rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func (s *ServerSuite) TestPasswordReset() {
	s.srv = s.newServer(Options{Location: time.UTC, AuthEnabled: true})
	rec := s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"nome": "Ana", "email": "ana@example.com", "senha": "segredo1", "confirmacao": "segredo1",
	})
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/password-reset", map[string]string{"email": "ana@example.com"})
	s.Equal(http.StatusAccepted, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/auth/password-reset", map[string]string{"email": "ninguem@example.com"})
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/password-reset/confirm", map[string]string{
		"email": "ana@example.com", "codigo": "000000", "senha": "novasenha",
	})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestRateLimitOnlyMutations() {
	s.srv = s.newServer(Options{Location: time.UTC, RateLimit: ratelimit.Config{RequestsPerSecond: 0.01, Burst: 2}})

	for i := 0; i < 5; i++ {
		s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/config", nil).Code)
	}
	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, s.do(http.MethodPost, "/api/config/reset", nil).Code)
	}
	s.Equal([]int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func (s *ServerSuite) TestBodyLimit() {
	s.srv = s.newServer(Options{Location: time.UTC, MaxBodyBytes: 64})
	rec := s.do(http.MethodPost, "/api/transactions", map[string]string{"descricao": strings.Repeat("x", 200)})
	s.Equal(http.StatusRequestEntityTooLarge, rec.Code)
}

func (s *ServerSuite) TestMetricsEndpoint() {
	reg := prometheus.NewRegistry()
	rec := telemetry.NewPrometheusRecorder(reg)
	s.srv = s.newServer(Options{Location: time.UTC, Recorder: rec, Gatherer: reg})

	s.do(http.MethodGet, "/api/config", nil)
	res := s.do(http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, res.Code)
	s.Contains(res.Body.String(), `route="GET /api/config"`)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func TestNewServerRequiresAuthenticator(t *testing.T) {
	_, err := NewServer(Options{AuthEnabled: true}, Services{})
	if err == nil {
		t.Fatal("expected error when auth is enabled without an authenticator")
	}
}
