package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRealIP_RemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:54321"
	assert.Equal(t, "192.168.1.1", realIP(req))
}

func TestRealIP_IgnoresClientForwardingHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:40000"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-Ip", "9.10.11.12")
	assert.Equal(t, "203.0.113.7", realIP(req))
}

func TestRealIP_AddressWithoutPort(t *testing.T) {
	// chi's RealIP stores a bare address.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "1.2.3.4"
	assert.Equal(t, "1.2.3.4", realIP(req))
}

func TestRateLimit_RotatingForwardedForSharesBucket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(NewRateLimiter(ctx, rate.Limit(0.001), 1))(http.HandlerFunc(okHandler))

	codes := make([]int, 0, 2)
	for _, xff := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/verify", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", xff)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(NewRateLimiter(ctx, rate.Limit(0.001), 2))(http.HandlerFunc(okHandler))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodPost, "/api/auth", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

// fakeCounter emulates INCR/EXPIRE on a map.
type fakeCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(_ context.Context, key string, d time.Duration) *redis.BoolCmd {
	f.expires[key] = d
	return redis.NewBoolResult(true, nil)
}

func TestRedisRateLimiter_FixedWindow(t *testing.T) {
	fc := newFakeCounter()
	rl := NewRedisRateLimiter(fc, "ratelimit:auth", 2, time.Minute)

	for i, want := range []bool{true, true, false} {
		ok, err := rl.Allow(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i+1)
	}
	assert.Equal(t, time.Minute, fc.expires["ratelimit:auth:10.0.0.1"])
}

func TestRateLimit_FailsOpen(t *testing.T) {
	fc := newFakeCounter()
	fc.err = errors.New("redis: connection refused")

	rr := httptest.NewRecorder()
	RateLimit(NewRedisRateLimiter(fc, "rl", 1, time.Minute))(http.HandlerFunc(okHandler)).
		ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
