package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/econav360/econav/internal/api/middleware"
	"github.com/econav360/econav/internal/api/models"
)

func TestRateLimitByIP_AllowsWithinLimit(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.PerMinute(5))(http.HandlerFunc(okHandler))

	for i := range 5 {
		req := httptest.NewRequest(http.MethodGet, "/api/geocode?q=library", http.NoBody)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should be allowed", i+1)
	}
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 3, WindowLength: 30 * time.Second}
	handler := middleware.RateLimitByIP(cfg)(http.HandlerFunc(okHandler))

	const testIP = "10.0.0.1:12345"
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/route", http.NoBody)
		req.RemoteAddr = testIP
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/route", http.NoBody)
	req.RemoteAddr = testIP
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, models.ProblemTypeTooManyRequests, p.Type)
	assert.Equal(t, "/api/route", p.Instance)
}

func TestRateLimitByIP_SeparateClients(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.PerMinute(1))(http.HandlerFunc(okHandler))

	for _, ip := range []string{"10.0.0.2:1", "10.0.0.3:1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/route", http.NoBody)
		req.RemoteAddr = ip
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "first request from %s", ip)
	}
}

func TestRateLimitByIP_UsesForwardedClientIP(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.PerMinute(1))(http.HandlerFunc(okHandler))

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/route", http.NoBody)
		req.RemoteAddr = "172.16.0.1:443"
		req.Header.Set("X-Real-IP", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.7"))
	assert.Equal(t, http.StatusOK, send("203.0.113.8"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.7"))
}

func TestRateLimitByIP_DisabledWhenZero(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.PerMinute(0))(http.HandlerFunc(okHandler))

	for range 50 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/route", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
