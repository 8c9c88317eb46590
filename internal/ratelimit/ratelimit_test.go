package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/invoicegen/platform/internal/logger"
)

func TestMiddlewareRejectsAfterBurst(t *testing.T) {
	l := New(0.001, 2, nil, logger.Discard())
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	other := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPreferUser(t *testing.T) {
	key := PreferUser(func(r *http.Request) string { return r.Header.Get("X-User") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:1234"
	assert.Equal(t, "ip:192.168.1.9", key(req))

	req.Header.Set("X-User", "u1")
	assert.Equal(t, "user:u1", key(req))
}

func TestCleanup(t *testing.T) {
	now := time.Now()
	l := New(1, 1, nil, logger.Discard())
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(time.Hour)
	l.Allow("b")

	assert.Equal(t, 1, l.Cleanup(30*time.Minute))
	assert.Len(t, l.buckets, 1)
}
