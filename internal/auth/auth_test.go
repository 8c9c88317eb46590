package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicegen/platform/internal/logger"
)

func TestIssuerRoundTrip(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	tok, err := issuer.Issue("user-42")
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.NotEmpty(t, tok.AccessToken)

	id, err := issuer.Parse(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-42", id)
}

func TestIssuerRejectsExpiredAndForeignTokens(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := issuer.Issue("user-1")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(expired.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewIssuer("different-secret", time.Hour)
	foreign, err := other.Issue("user-1")
	require.NoError(t, err)
	_, err = issuer.Parse(foreign.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareRequire(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	known := map[string]bool{"user-1": true}
	mw := NewMiddleware(issuer, UserLookupFunc(func(_ context.Context, id string) (bool, error) {
		if id == "broken" {
			return false, errors.New("db down")
		}
		return known[id], nil
	}), logger.Discard())

	var seen string
	handler := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	good, err := issuer.Issue("user-1")
	require.NoError(t, err)
	gone, err := issuer.Issue("user-2")
	require.NoError(t, err)
	broken, err := issuer.Issue("broken")
	require.NoError(t, err)

	cases := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"no header", "", http.StatusUnauthorized, "Not authorized, no token"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Not authorized, no token"},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, "Not authorized, token failed"},
		{"deleted user", "Bearer " + gone.AccessToken, http.StatusUnauthorized, "Not authorized, token failed"},
		{"lookup error", "Bearer " + broken.AccessToken, http.StatusUnauthorized, "Not authorized, token failed"},
		{"valid", "Bearer " + good.AccessToken, http.StatusNoContent, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.message != "" {
				assert.JSONEq(t, `{"message":"`+tc.message+`"}`, rec.Body.String())
				assert.Empty(t, seen)
			} else {
				assert.Equal(t, "user-1", seen)
			}
		})
	}
}

func TestUserIDEmptyContext(t *testing.T) {
	assert.Equal(t, "", UserID(context.Background()))
	assert.Equal(t, "abc", UserID(WithUserID(context.Background(), "abc")))
}
