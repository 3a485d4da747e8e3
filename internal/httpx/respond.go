package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lfmorais/unimarket/internal/domain"
)

// Envelope is the response shape shared by every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
}

func write(w http.ResponseWriter, logger *slog.Logger, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func OK(w http.ResponseWriter, logger *slog.Logger, status int, message string, data any) {
	write(w, logger, status, Envelope{Success: true, Message: message, Data: data})
}

func Fail(w http.ResponseWriter, logger *slog.Logger, status int, code, message string) {
	write(w, logger, status, Envelope{Success: false, Message: message, Code: code})
}

// Error translates a domain error into the envelope. Anything that is not a
// *domain.Error is logged and surfaced as a generic 500, never leaking
// internals to the client.
func Error(w http.ResponseWriter, logger *slog.Logger, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		logger.Error("unhandled error", "error", err)
		Fail(w, logger, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}
	Fail(w, logger, statusFor(de.Kind), de.Code, de.Message)
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindConflict, domain.KindExpired:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
