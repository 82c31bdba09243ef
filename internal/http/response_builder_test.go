package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meufin/internal/auth"
	"meufin/internal/core"
	"meufin/internal/delivery"
	"meufin/internal/export"
	"meufin/internal/storage"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "1").
		JSON(map[string]int{"id": 7}).
		Write(w)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get("X-Custom"))
	assert.JSONEq(t, `{"id":7}`, w.Body.String())
}

func TestResponseBuilder_Body(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().BodyString("ok").Write(w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestResponseBuilder_Attachment(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Attachment("meufin-1.csv", "text/csv", []byte("a,b\n")).Write(w)

	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="meufin-1.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "4", w.Header().Get("Content-Length"))
	assert.Equal(t, "a,b\n", w.Body.String())
}

func TestResponseBuilder_Unencodable(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(map[string]any{"f": func() {}}).Write(w)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		build  *ResponseBuilder
		status int
	}{
		{"bad request", BadRequestError("x"), http.StatusBadRequest},
		{"internal", InternalServerError("x"), http.StatusInternalServerError},
		{"not found", NotFoundError("x"), http.StatusNotFound},
		{"too many", TooManyRequestsError("x"), http.StatusTooManyRequests},
		{"method", MethodNotAllowedError("GET, POST"), http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.build.Write(w)
			assert.Equal(t, tt.status, w.Code)

			var body ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}

	w := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(w)
	assert.Equal(t, "GET, POST", w.Header().Get("Allow"))
}

func TestErrorResponseMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", &core.ValidationError{Fields: map[string]string{"categoria": "obrigatório"}}, http.StatusUnprocessableEntity, "Dados inválidos"},
		{"wrapped kind", fmt.Errorf("create: %w", core.ErrInvalidKind), http.StatusBadRequest, "Tipo inválido: use entrada ou saida"},
		{"amount", core.ErrInvalidAmount, http.StatusBadRequest, "Valor inválido"},
		{"bad request", &badRequest{msg: "JSON inválido", err: errors.New("eof")}, http.StatusBadRequest, "JSON inválido"},
		{"webhook", &delivery.WebhookError{StatusCode: 500, Body: "boom"}, http.StatusBadGateway, "Falha no envio (500)"},
		{"phone", delivery.ErrInvalidPhone, http.StatusBadRequest, "Número inválido: use DDD + número"},
		{"backup", fmt.Errorf("%w: eof", export.ErrInvalidBackup), http.StatusBadRequest, "Arquivo de backup inválido"},
		{"sheets", errSheetsDisabled, http.StatusBadRequest, "Google Sheets não configurado"},
		{"credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, "E-mail ou senha inválidos"},
		{"duplicate user", auth.ErrUserExists, http.StatusConflict, "E-mail já cadastrado"},
		{"forbidden", auth.ErrForbidden, http.StatusForbidden, "Acesso restrito a administradores"},
		{"not found", fmt.Errorf("delete 9: %w", storage.ErrNotFound), http.StatusNotFound, "Registro não encontrado"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "Tempo esgotado"},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, "Requisição muito grande"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "Erro interno"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/x", nil)
			w := httptest.NewRecorder()
			writeError(w, req, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body.Error)
		})
	}
}

func TestErrorResponseCarriesDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/x", nil)

	w := httptest.NewRecorder()
	writeError(w, req, &core.ValidationError{Fields: map[string]string{"valor": "deve ser positivo"}})
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"valor": "deve ser positivo"}, body.Fields)

	w = httptest.NewRecorder()
	writeError(w, req, &delivery.WebhookError{StatusCode: 404, Body: "no route"})
	body = ErrorBody{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "no route", body.Detail)
}
