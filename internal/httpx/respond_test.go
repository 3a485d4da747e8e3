package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lfmorais/unimarket/internal/domain"
)

func TestError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation maps to 400",
			err:        domain.Validation(domain.CodeCartEmpty, "cart is empty"),
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.CodeCartEmpty,
		},
		{
			name:       "not found maps to 404",
			err:        domain.NotFound("session %s not found", "abc"),
			wantStatus: http.StatusNotFound,
			wantCode:   domain.CodeNotFound,
		},
		{
			name:       "forbidden maps to 403",
			err:        domain.Forbidden("only the seller may respond"),
			wantStatus: http.StatusForbidden,
			wantCode:   domain.CodeForbidden,
		},
		{
			name:       "conflict maps to 409",
			err:        domain.Conflict(domain.CodeInsufficientStock, "insufficient stock"),
			wantStatus: http.StatusConflict,
			wantCode:   domain.CodeInsufficientStock,
		},
		{
			name:       "expired maps to 409",
			err:        domain.Expired(domain.CodeSessionExpired, "session expired"),
			wantStatus: http.StatusConflict,
			wantCode:   domain.CodeSessionExpired,
		},
		{
			name:       "wrapped domain error is unwrapped",
			err:        fmt.Errorf("confirm: %w", domain.Conflict(domain.CodeStockChanged, "stock changed")),
			wantStatus: http.StatusConflict,
			wantCode:   domain.CodeStockChanged,
		},
		{
			name:       "unknown error maps to generic 500",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, logger, tc.err)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}

			var env Envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("failed to decode envelope: %v", err)
			}
			if env.Success {
				t.Error("expected success=false")
			}
			if env.Code != tc.wantCode {
				t.Errorf("expected code %s, got %s", tc.wantCode, env.Code)
			}
			if tc.wantStatus == http.StatusInternalServerError && env.Message != "internal server error" {
				t.Errorf("internal error leaked detail: %q", env.Message)
			}
		})
	}
}
