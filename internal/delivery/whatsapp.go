package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"meufin/internal/telemetry"
)

var (
	ErrInvalidPhone    = errors.New("invalid phone number: use area code + number")
	ErrMissingEndpoint = errors.New("configure the messaging relay endpoint (e.g. http://localhost:3333/send-whatsapp)")
)

// CountryPrefix is prepended to every normalized number.
const CountryPrefix = "+55"

// TestMessage is sent by the relay connectivity check.
const TestMessage = "Teste de automação Meufin"

// NormalizePhone keeps only digits and requires at least 10 of them
// (area code plus number).
func NormalizePhone(number string) (string, error) {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 {
		return "", ErrInvalidPhone
	}
	return CountryPrefix + digits, nil
}

type WhatsAppMessage struct {
	Endpoint string
	Number   string
	Text     string
	// PDFBase64 is sent as JSON null when empty.
	PDFBase64 string
}

type webhookBody struct {
	To        string  `json:"to"`
	Message   string  `json:"message"`
	PDFBase64 *string `json:"pdfBase64"`
}

// WebhookError carries the relay's response body.
type WebhookError struct {
	StatusCode int
	Body       string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("whatsapp delivery failed (%d): %s", e.StatusCode, e.Body)
}

// WhatsAppClient posts messages to the local relay process. There is no
// retry and no queue: the caller sees every failure.
type WhatsAppClient struct {
	client   *http.Client
	recorder telemetry.Recorder
	logger   *slog.Logger
}

func NewWhatsAppClient(timeout time.Duration, recorder telemetry.Recorder, logger *slog.Logger) *WhatsAppClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if recorder == nil {
		recorder = telemetry.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WhatsAppClient{client: &http.Client{Timeout: timeout}, recorder: recorder, logger: logger}
}

// Send validates the endpoint and number before any network call, then
// performs one POST. The decoded JSON answer is returned as raw bytes.
func (c *WhatsAppClient) Send(ctx context.Context, msg WhatsAppMessage) (json.RawMessage, error) {
	endpoint := strings.TrimSpace(msg.Endpoint)
	if endpoint == "" {
		c.recorder.WebhookDelivery(telemetry.OutcomeInvalid)
		return nil, ErrMissingEndpoint
	}
	to, err := NormalizePhone(msg.Number)
	if err != nil {
		c.recorder.WebhookDelivery(telemetry.OutcomeInvalid)
		return nil, err
	}

	body := webhookBody{To: to, Message: msg.Text}
	if msg.PDFBase64 != "" {
		pdf := msg.PDFBase64
		body.PDFBase64 = &pdf
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		c.recorder.WebhookDelivery(telemetry.OutcomeInvalid)
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.recorder.WebhookDelivery(telemetry.OutcomeFailed)
		return nil, fmt.Errorf("call whatsapp relay: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.recorder.WebhookDelivery(telemetry.OutcomeFailed)
		return nil, &WebhookError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	c.recorder.WebhookDelivery(telemetry.OutcomeSent)
	c.logger.InfoContext(ctx, "WhatsApp message relayed", "to", maskPhone(to), "with_pdf", body.PDFBase64 != nil)
	if len(bytes.TrimSpace(respBody)) == 0 || !json.Valid(respBody) {
		return json.RawMessage(`{}`), nil
	}
	return json.RawMessage(respBody), nil
}

func maskPhone(p string) string {
	if len(p) <= 4 {
		return p
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}
