package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	secret := "test-secret"

	var got Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := From(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		got = id
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(secret, logger)(next)

	t.Run("valid token passes identity through", func(t *testing.T) {
		token, err := Sign(secret, "user-1", RoleUser)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if got.UserID != "user-1" {
			t.Errorf("expected user-1, got %s", got.UserID)
		}
		if got.Role != RoleUser {
			t.Errorf("expected role user, got %s", got.Role)
		}
	})

	t.Run("admin role is preserved", func(t *testing.T) {
		token, err := Sign(secret, "admin-1", RoleAdmin)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if !got.Admin() {
			t.Errorf("expected admin identity, got role %s", got.Role)
		}
	})

	t.Run("unknown role falls back to user", func(t *testing.T) {
		token, err := Sign(secret, "user-2", Role("superuser"))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if got.Role != RoleUser {
			t.Errorf("expected role user, got %s", got.Role)
		}
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401, got %d", rec.Code)
		}
	})

	t.Run("token signed with another secret is rejected", func(t *testing.T) {
		token, err := Sign("other-secret", "user-1", RoleUser)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401, got %d", rec.Code)
		}
	})
}
