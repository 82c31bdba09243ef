package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"meufin/internal/core"
)

// DefaultEmailAPIURL is the EmailJS REST send endpoint.
const DefaultEmailAPIURL = "https://api.emailjs.com/api/v1.0/email/send"

// EmailJSClient sends jobs through the EmailJS REST API.
type EmailJSClient struct {
	endpoint string
	client   *http.Client
}

func NewEmailJSClient(endpoint string, timeout time.Duration) *EmailJSClient {
	if endpoint == "" {
		endpoint = DefaultEmailAPIURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EmailJSClient{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams core.EmailPayload `json:"template_params"`
}

// StatusError is a non-2xx answer from a remote HTTP service.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Body)
}

func (c *EmailJSClient) Send(ctx context.Context, job core.EmailJob) error {
	body, err := json.Marshal(emailJSRequest{
		ServiceID:      job.ServiceID,
		TemplateID:     job.TemplateID,
		UserID:         job.PublicKey,
		AccessToken:    job.PrivateKey,
		TemplateParams: job.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Service: "email api", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
