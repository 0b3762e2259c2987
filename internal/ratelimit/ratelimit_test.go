package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowKeepsBucketsPerClient(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := New(1, 2, WithClock(func() time.Time { return now }))

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
}

func TestIdleBucketsAreDropped(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := New(1, 1, WithClock(func() time.Time { return now }), WithIdleTimeout(time.Minute))

	limiter.Allow("a")
	now = now.Add(2 * time.Minute)
	limiter.Allow("b")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.visitors, "a")
	assert.Contains(t, limiter.visitors, "b")
}

func TestDisabled(t *testing.T) {
	limiter := New(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow("a"))
	}
}

func TestMiddleware(t *testing.T) {
	limiter := New(1, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		request := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		request.Header.Set("X-Real-IP", ip)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)

	limited := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.JSONEq(t, `{"message":"Too many requests, please try later!"}`, limited.Body.String())

	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code)
}
