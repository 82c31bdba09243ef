package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"meufin/internal/auth"
	"meufin/internal/core"
	"meufin/internal/delivery"
	"meufin/internal/export"
	applog "meufin/internal/log"
	"meufin/internal/storage"
)

// ResponseBuilder provides a fluent API for building API responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       []byte
	payload    any
	hasPayload bool
}

// NewResponse creates a builder with a 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v as the body, encoded when written.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	b.payload = v
	b.hasPayload = true
	return b
}

func (b *ResponseBuilder) Body(content []byte) *ResponseBuilder {
	b.body = content
	return b
}

func (b *ResponseBuilder) BodyString(content string) *ResponseBuilder {
	b.body = []byte(content)
	return b
}

// Attachment sends data as a download named filename.
func (b *ResponseBuilder) Attachment(filename, contentType string, data []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.headers["Content-Disposition"] = fmt.Sprintf("attachment; filename=%q", filename)
	b.headers["Content-Length"] = strconv.Itoa(len(data))
	b.body = data
	return b
}

// Write sends the built response.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	body := b.body
	if b.hasPayload {
		encoded, err := json.Marshal(b.payload)
		if err != nil {
			http.Error(w, `{"error":"falha ao codificar resposta"}`, http.StatusInternalServerError)
			return
		}
		body = append(encoded, '\n')
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	Detail string            `json:"detail,omitempty"`
}

func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(ErrorBody{Error: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError reports field-level validation failures.
func UnprocessableEntityError(message string, fields map[string]string) *ResponseBuilder {
	return NewResponse().Status(http.StatusUnprocessableEntity).JSON(ErrorBody{Error: message, Fields: fields})
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func TooManyRequestsError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, message)
}

func MethodNotAllowedError(allowedMethods string) *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "Método não permitido").Header("Allow", allowedMethods)
}

var errSheetsDisabled = errors.New("google sheets mirror not configured")

// knownErrors maps sentinel errors to a status and a user-facing message.
var knownErrors = []struct {
	err     error
	status  int
	message string
}{
	{core.ErrInvalidAmount, http.StatusBadRequest, "Valor inválido"},
	{core.ErrInvalidKind, http.StatusBadRequest, "Tipo inválido: use entrada ou saida"},
	{core.ErrInvalidDate, http.StatusBadRequest, "Data inválida"},
	{core.ErrInvalidDay, http.StatusBadRequest, "Dia inválido"},
	{core.ErrInvalidMonth, http.StatusBadRequest, "Mês inválido"},
	{core.ErrEmptyCategory, http.StatusBadRequest, "Informe a categoria"},
	{core.ErrInvalidInstances, http.StatusBadRequest, "Parcelas devem estar entre 1 e 120"},

	{delivery.ErrInvalidPhone, http.StatusBadRequest, "Número inválido: use DDD + número"},
	{delivery.ErrMissingEndpoint, http.StatusBadRequest, "Configure o endpoint de automação do WhatsApp"},
	{delivery.ErrMissingEmailConfig, http.StatusBadRequest, "Configure o Service ID e o Template ID do EmailJS"},
	{errSheetsDisabled, http.StatusBadRequest, "Google Sheets não configurado"},
	{export.ErrInvalidBackup, http.StatusBadRequest, "Arquivo de backup inválido"},

	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "E-mail ou senha inválidos"},
	{auth.ErrUserExists, http.StatusConflict, "E-mail já cadastrado"},
	{auth.ErrRegistrationClosed, http.StatusForbidden, "Cadastro encerrado. Peça a um administrador para criar sua conta"},
	{auth.ErrUserNotFound, http.StatusNotFound, "Usuário não encontrado"},
	{auth.ErrPasswordMismatch, http.StatusBadRequest, "As senhas não conferem"},
	{auth.ErrPasswordEmpty, http.StatusBadRequest, "Informe a senha"},
	{auth.ErrPasswordTooShort, http.StatusBadRequest, fmt.Sprintf("A senha deve ter pelo menos %d caracteres", auth.MinPasswordLength)},
	{auth.ErrPasswordTooLong, http.StatusBadRequest, fmt.Sprintf("A senha deve ter no máximo %d caracteres", auth.MaxPasswordLength)},
	{auth.ErrInvalidResetCode, http.StatusBadRequest, "Código inválido"},
	{auth.ErrResetCodeExpired, http.StatusBadRequest, "Código expirado"},
	{auth.ErrForbidden, http.StatusForbidden, "Acesso restrito a administradores"},

	{storage.ErrNotFound, http.StatusNotFound, "Registro não encontrado"},
	{storage.ErrUnavailable, http.StatusServiceUnavailable, "Armazenamento indisponível"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "Tempo esgotado"},
}

// errorResponse translates err into a response. Unknown errors become 500
// and are logged; the others are expected outcomes.
func errorResponse(r *http.Request, err error) *ResponseBuilder {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return UnprocessableEntityError("Dados inválidos", verr.Fields)
	}
	var werr *delivery.WebhookError
	if errors.As(err, &werr) {
		return NewResponse().Status(http.StatusBadGateway).JSON(ErrorBody{
			Error:  fmt.Sprintf("Falha no envio (%d)", werr.StatusCode),
			Detail: werr.Body,
		})
	}
	var br *badRequest
	if errors.As(err, &br) {
		return BadRequestError(br.msg)
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ErrorResponse(http.StatusRequestEntityTooLarge, "Requisição muito grande")
	}
	for _, k := range knownErrors {
		if errors.Is(err, k.err) {
			return ErrorResponse(k.status, k.message)
		}
	}

	op := r.Pattern
	if op == "" {
		op = r.Method + " " + r.URL.Path
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(), "Request failed", err,
		applog.ComponentHTTP, op, nil)
	return InternalServerError("Erro interno")
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(r, err).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewResponse().Status(status).JSON(v).Write(w)
}
