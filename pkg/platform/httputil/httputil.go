// Package httputil centralizes JSON response writing and error mapping so
// handlers stay thin and error bodies are uniform across endpoints.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "govdociq/pkg/domain-errors"
	"govdociq/pkg/sentinel"
)

// WriteJSON serializes v with the given status. Encoding failures are
// swallowed; the status line has already been written.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP status and a stable error body.
// Internal errors omit the description so store/adapter details never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	if errors.Is(err, sentinel.ErrNotFound) {
		code = dErrors.CodeNotFound
	}

	status := statusFor(code)
	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body["error_description"] = de.Message
		} else {
			body["error_description"] = err.Error()
		}
	}
	WriteJSON(w, status, body)
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeInvalidTransition,
		dErrors.CodeConfiguration, dErrors.CodeCycle:
		return http.StatusUnprocessableEntity
	case dErrors.CodeAccessDenied:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Decode parses the request body into T, logging and responding on failure.
// Returns false if the response has already been written.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "request decode failed", "path", r.URL.Path, "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return req, false
	}
	return req, true
}
