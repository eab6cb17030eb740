package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterStore_AllowAndCleanup(t *testing.T) {
	// allow 5 events immediately then the 6th should be rejected
	s := NewLimiterStore(5, 5, 100*time.Millisecond)
	defer s.Stop()

	key := "198.51.100.7"
	for i := 0; i < 5; i++ {
		if !s.Allow(key) {
			t.Fatalf("expected allow at iteration %d", i)
		}
	}

	if s.Allow(key) {
		t.Fatalf("expected limiter to block after burst consumed")
	}
}

func TestLimiterStore_KeysAreIndependent(t *testing.T) {
	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()

	if !s.Allow("198.51.100.7") {
		t.Fatal("expected first key to be allowed")
	}
	if s.Allow("198.51.100.7") {
		t.Fatal("expected first key to be exhausted")
	}
	if !s.Allow("198.51.100.8") {
		t.Fatal("expected second key to have its own budget")
	}
}

func TestRateLimit_Returns429WhenExhausted(t *testing.T) {
	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()

	handler := RateLimit(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = "198.51.100.7:52310"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do(); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}

	// Same IP with a fresh ephemeral port shares the budget.
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "198.51.100.7:59999"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for same host on new port, got %d", rec.Code)
	}
}
