package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type ctxKey struct{}

// WithUserID stores the authenticated user id on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the authenticated user id, or "" when the request is anonymous.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// UserLookup confirms that the token subject still exists.
type UserLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// UserLookupFunc adapts a function to UserLookup.
type UserLookupFunc func(ctx context.Context, id string) (bool, error)

func (f UserLookupFunc) Exists(ctx context.Context, id string) (bool, error) { return f(ctx, id) }

// Middleware rejects requests without a valid bearer token.
type Middleware struct {
	issuer *Issuer
	users  UserLookup
	logger *slog.Logger
}

// NewMiddleware builds the bearer middleware. users may be nil to skip the existence check.
func NewMiddleware(issuer *Issuer, users UserLookup, logger *slog.Logger) *Middleware {
	return &Middleware{issuer: issuer, users: users, logger: logger}
}

// Require wraps next so it only runs for authenticated requests.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			writeUnauthorized(w, "Not authorized, no token")
			return
		}

		userID, err := m.issuer.Parse(raw)
		if err != nil {
			m.logger.Debug("token rejected", "path", r.URL.Path, "err", err)
			writeUnauthorized(w, "Not authorized, token failed")
			return
		}

		if m.users != nil {
			ok, err := m.users.Exists(r.Context(), userID)
			if err != nil {
				m.logger.Error("user lookup failed", "user_id", userID, "err", err)
				writeUnauthorized(w, "Not authorized, token failed")
				return
			}
			if !ok {
				writeUnauthorized(w, "Not authorized, token failed")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
