package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"meufin/internal/core"
)

var (
	errEmptyBody   = errors.New("empty request body")
	errInvalidID   = errors.New("invalid id")
	errUnsupported = errors.New("unsupported content type")
)

// badRequest marks client errors whose text is safe to show.
type badRequest struct {
	msg string
	err error
}

func (e *badRequest) Error() string { return e.msg + ": " + e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

// DecodeJSON reads a single JSON value from the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || (mt != "application/json" && !strings.HasSuffix(mt, "+json")) {
			return &badRequest{msg: "Envie JSON", err: errUnsupported}
		}
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return err
		case errors.Is(err, io.EOF):
			return &badRequest{msg: "Corpo da requisição vazio", err: errEmptyBody}
		default:
			return &badRequest{msg: "JSON inválido", err: err}
		}
	}
	if dec.More() {
		return &badRequest{msg: "JSON inválido", err: errors.New("trailing data after JSON value")}
	}
	return nil
}

// PathID parses the {id} path segment.
func PathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &badRequest{msg: "Identificador inválido", err: fmt.Errorf("%w: %q", errInvalidID, raw)}
	}
	return id, nil
}

// ParsePeriodQuery reads ?periodo=, defaulting to the current month.
func ParsePeriodQuery(r *http.Request) core.Period {
	return core.ParsePeriod(r.URL.Query().Get("periodo"))
}

// PageURL is the app root as the client reached it. X-Forwarded-Proto is
// honoured so a TLS-terminating proxy yields an https link.
func PageURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host + "/"
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
