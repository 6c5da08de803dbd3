package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/recaplabs/recap/internal/log"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := newRateLimiter(1.0, 2)

	if !rl.allow("user:alice") {
		t.Error("first call should be allowed")
	}
	if !rl.allow("user:alice") {
		t.Error("second call within burst should be allowed")
	}
	if rl.allow("user:alice") {
		t.Error("call after burst exhausted should be denied")
	}
}

func TestRateLimiterSeparateClients(t *testing.T) {
	rl := newRateLimiter(1.0, 1)

	rl.allow("user:alice")
	if !rl.allow("user:bob") {
		t.Error("a different client should have its own allowance")
	}
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	rl := newRateLimiter(100.0, 1) // fast refill so the test stays quick

	rl.allow("user:alice")
	if rl.allow("user:alice") {
		t.Error("should be blocked immediately after burst exhausted")
	}

	time.Sleep(20 * time.Millisecond)

	if !rl.allow("user:alice") {
		t.Error("should be allowed after token refill")
	}
}

func TestClientKeyPrefersUser(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "10.0.0.1:12345"

	if got := clientKey(r, false); got != "ip:10.0.0.1" {
		t.Errorf("anonymous key = %q", got)
	}

	ctx := context.WithValue(r.Context(), ctxKeyUserID, "alice")
	if got := clientKey(r.WithContext(ctx), false); got != "user:alice" {
		t.Errorf("authenticated key = %q", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{"direct", "10.0.0.1:12345", "", "", false, "10.0.0.1"},
		{"proxy headers ignored without trust", "10.0.0.1:12345", "1.2.3.4", "", false, "10.0.0.1"},
		{"x-real-ip", "10.0.0.1:12345", "1.2.3.4", "", true, "1.2.3.4"},
		{"x-forwarded-for first hop", "10.0.0.1:12345", "", "1.2.3.4, 5.6.7.8", true, "1.2.3.4"},
		{"non-ip header rejected", "10.0.0.1:12345", "not-an-ip", "", true, "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	rl := newRateLimiter(0.001, 1)
	handler := rateLimitMiddleware(rl, false, log.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "10.0.0.1:12345"
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("first request = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "10.0.0.1:12345"
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}
