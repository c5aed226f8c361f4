package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"backoffice/internal/requestctx"
)

func limitedHandler(t *testing.T, rate string) http.Handler {
	t.Helper()
	mw, err := RateLimit(rate, nil)
	if err != nil {
		t.Fatalf("rate limit setup failed: %v", err)
	}
	return mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestRateLimitUsesActorKeyBeforeIPFallback(t *testing.T) {
	limited := limitedHandler(t, "1-M")
	ctx := requestctx.WithActor(t.Context(), requestctx.Actor{ID: "actor-1"})

	first := httptest.NewRequest(http.MethodPost, "/api/v1/payouts", nil).WithContext(ctx)
	first.RemoteAddr = "198.51.100.11:2222"
	firstRec := httptest.NewRecorder()
	limited.ServeHTTP(firstRec, first)
	if firstRec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/payouts", nil).WithContext(ctx)
	second.RemoteAddr = "198.51.100.12:3333"
	secondRec := httptest.NewRecorder()
	limited.ServeHTTP(secondRec, second)
	if secondRec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled by actor key, got %d", secondRec.Code)
	}
}

func TestRateLimitFallsBackToIP(t *testing.T) {
	limited := limitedHandler(t, "1-M")

	first := httptest.NewRequest(http.MethodGet, "/api/v1/reports/sales", nil)
	first.RemoteAddr = "203.0.113.10:4444"
	firstRec := httptest.NewRecorder()
	limited.ServeHTTP(firstRec, first)
	if firstRec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/api/v1/reports/sales", nil)
	second.RemoteAddr = "203.0.113.10:5555"
	secondRec := httptest.NewRecorder()
	limited.ServeHTTP(secondRec, second)
	if secondRec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected same IP to be throttled, got %d", secondRec.Code)
	}

	other := httptest.NewRequest(http.MethodGet, "/api/v1/reports/sales", nil)
	other.RemoteAddr = "203.0.113.99:5555"
	otherRec := httptest.NewRecorder()
	limited.ServeHTTP(otherRec, other)
	if otherRec.Code != http.StatusNoContent {
		t.Fatalf("expected other IP to pass, got %d", otherRec.Code)
	}
}

func TestRateLimitSetsHeaders(t *testing.T) {
	limited := limitedHandler(t, "5-M")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1000"
	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, req)

	if rec.Header().Get("X-RateLimit-Limit") != "5" {
		t.Fatalf("expected limit header 5, got %q", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "4" {
		t.Fatalf("expected remaining header 4, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitRejectsBadFormat(t *testing.T) {
	if _, err := RateLimit("fast", nil); err == nil {
		t.Fatal("expected invalid rate format error")
	}
}

func TestClientIPKeyPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIPKey(req); got != "203.0.113.7" {
		t.Fatalf("expected forwarded client IP, got %q", got)
	}
}
