package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestLocalReplayGuard(t *testing.T) {
	g := NewLocalReplayGuard()
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }
	who := common.HexToAddress("0x01")
	other := common.HexToAddress("0x02")
	ctx := context.Background()

	fresh, err := g.Claim(ctx, who, "n", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, _ = g.Claim(ctx, who, "n", time.Minute)
	assert.False(t, fresh)

	fresh, _ = g.Claim(ctx, other, "n", time.Minute)
	assert.True(t, fresh, "nonces are per account")

	now = now.Add(time.Minute)
	fresh, _ = g.Claim(ctx, who, "n", time.Minute)
	assert.True(t, fresh, "expired nonce can be reused")
}

func TestRateLimit(t *testing.T) {
	lim := &stubLimiter{allow: false}
	h := RateLimit(lim, 10, time.Second, discard())(ok)

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, []string{"api:read:203.0.113.9"}, lim.keys)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	post := httptest.NewRequest(http.MethodPost, "/v1/orders", nil)
	post.RemoteAddr = "198.51.100.7:4242"
	h.ServeHTTP(httptest.NewRecorder(), post)
	assert.Equal(t, "api:write:198.51.100.7", lim.keys[1])

	lim.err = errors.New("redis down")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "limiter errors fail open")
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://app.example"})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/v1/orders", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), HeaderSignature)

	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequireAccount(t *testing.T) {
	op := common.HexToAddress("0x0a")
	h := RequireAccount(op, ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithCaller(req.Context(), common.HexToAddress("0x0b"))))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithCaller(req.Context(), op)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoggingAssignsRequestID(t *testing.T) {
	var seen string
	h := Logging(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", seen)
}
