package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the authenticated caller, extracted from the bearer token.
// Token issuance belongs to the auth service; this package only verifies.
type Identity struct {
	UserID string
	Role   Role
}

func (id Identity) Admin() bool { return id.Role == RoleAdmin }

type contextKey struct{}

func From(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// WithIdentity is exported for tests that exercise handlers without the
// middleware in front.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Middleware verifies the Authorization bearer token (HS256) and stores the
// caller identity in the request context. Requests without a valid token
// get a 401 envelope.
func Middleware(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			var c claims
			token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				logger.Debug("token rejected", "error", err)
				unauthorized(w, "invalid token")
				return
			}
			if c.Subject == "" {
				unauthorized(w, "token has no subject")
				return
			}

			role := Role(c.Role)
			if role != RoleAdmin {
				role = RoleUser
			}

			ctx := WithIdentity(r.Context(), Identity{UserID: c.Subject, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
		"code":    "UNAUTHENTICATED",
	})
}

// Sign issues a token for the given identity. Used by tests and local
// tooling; production tokens come from the auth service.
func Sign(secret, userID string, role Role) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID,
		},
	})
	return token.SignedString([]byte(secret))
}
