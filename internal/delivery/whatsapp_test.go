package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  error
	}{
		{"11987654321", "+5511987654321", nil},
		{"(11) 98765-4321", "+5511987654321", nil},
		{"1133334444", "+551133334444", nil},
		{"123", "", ErrInvalidPhone},
		{"", "", ErrInvalidPhone},
		{"abc-def", "", ErrInvalidPhone},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if !errors.Is(err, tc.err) {
			t.Fatalf("%q: expected err %v, got %v", tc.in, tc.err, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

type relay struct {
	srv    *httptest.Server
	hits   atomic.Int32
	last   map[string]any
	status int
	reply  string
}

func newRelay(t *testing.T, status int, reply string) *relay {
	r := &relay{status: status, reply: reply}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.hits.Add(1)
		r.last = map[string]any{}
		_ = json.NewDecoder(req.Body).Decode(&r.last)
		w.WriteHeader(r.status)
		_, _ = w.Write([]byte(r.reply))
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func TestWhatsAppValidationHappensBeforeNetwork(t *testing.T) {
	rl := newRelay(t, http.StatusOK, `{"ok":true}`)
	c := NewWhatsAppClient(time.Second, nil, nil)

	_, err := c.Send(context.Background(), WhatsAppMessage{Endpoint: rl.srv.URL, Number: "123", Text: "x"})
	if !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	_, err = c.Send(context.Background(), WhatsAppMessage{Endpoint: " ", Number: "11987654321", Text: "x"})
	if !errors.Is(err, ErrMissingEndpoint) {
		t.Fatalf("expected ErrMissingEndpoint, got %v", err)
	}
	if rl.hits.Load() != 0 {
		t.Fatalf("relay must not be called, got %d hits", rl.hits.Load())
	}
}

func TestWhatsAppSend(t *testing.T) {
	rl := newRelay(t, http.StatusOK, `{"ok":true}`)
	c := NewWhatsAppClient(time.Second, nil, nil)

	resp, err := c.Send(context.Background(), WhatsAppMessage{
		Endpoint:  rl.srv.URL,
		Number:    "11 98765-4321",
		Text:      "Relatório financeiro Últimos 30 dias",
		PDFBase64: "data:application/pdf;base64,AAAA",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if string(resp) != `{"ok":true}` {
		t.Fatalf("unexpected response %s", resp)
	}
	if rl.last["to"] != "+5511987654321" || rl.last["message"] != "Relatório financeiro Últimos 30 dias" {
		t.Fatalf("unexpected body %v", rl.last)
	}
	if rl.last["pdfBase64"] != "data:application/pdf;base64,AAAA" {
		t.Fatalf("pdf not forwarded: %v", rl.last["pdfBase64"])
	}
}

func TestWhatsAppSendWithoutPDFSendsNull(t *testing.T) {
	rl := newRelay(t, http.StatusOK, "")
	c := NewWhatsAppClient(time.Second, nil, nil)

	resp, err := c.Send(context.Background(), WhatsAppMessage{Endpoint: rl.srv.URL, Number: "11987654321", Text: TestMessage})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if string(resp) != "{}" {
		t.Fatalf("empty reply should decode to {}, got %s", resp)
	}
	v, present := rl.last["pdfBase64"]
	if !present || v != nil {
		t.Fatalf("expected explicit null pdfBase64, got %v (present=%v)", v, present)
	}
}

func TestWhatsAppNon2xxCarriesBody(t *testing.T) {
	rl := newRelay(t, http.StatusInternalServerError, "sessão desconectada")
	c := NewWhatsAppClient(time.Second, nil, nil)

	_, err := c.Send(context.Background(), WhatsAppMessage{Endpoint: rl.srv.URL, Number: "11987654321", Text: "x"})
	var werr *WebhookError
	if !errors.As(err, &werr) {
		t.Fatalf("expected WebhookError, got %v", err)
	}
	if werr.StatusCode != http.StatusInternalServerError || !strings.Contains(err.Error(), "sessão desconectada") {
		t.Fatalf("unexpected error %v", err)
	}
	if rl.hits.Load() != 1 {
		t.Fatalf("expected exactly one attempt, got %d", rl.hits.Load())
	}
}

func TestMaskPhone(t *testing.T) {
	if got := maskPhone("+5511987654321"); got != "**********4321" {
		t.Fatalf("got %q", got)
	}
}
