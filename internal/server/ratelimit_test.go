package server

import (
	"testing"
	"time"
)

func TestRateLimiterPerClient(t *testing.T) {
	limiter := NewRateLimiter(1, 1)

	if !limiter.Allow("10.0.0.1") {
		t.Fatal("first request should be allowed")
	}
	if limiter.Allow("10.0.0.1") {
		t.Error("second immediate request should be limited")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Error("another client has its own bucket")
	}
	if limiter.Clients() != 2 {
		t.Errorf("expected 2 tracked clients, got %d", limiter.Clients())
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	limiter.Allow("10.0.0.1")

	if removed := limiter.Cleanup(time.Hour); removed != 0 {
		t.Errorf("expected no cleanup of active client, removed %d", removed)
	}

	limiter.clients["10.0.0.1"].lastSeen = time.Now().Add(-2 * time.Hour)
	if removed := limiter.Cleanup(time.Hour); removed != 1 {
		t.Errorf("expected idle client removed, removed %d", removed)
	}
	if limiter.Clients() != 0 {
		t.Errorf("expected no tracked clients, got %d", limiter.Clients())
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		rps  float64
		want time.Duration
	}{
		{2, 500 * time.Millisecond},
		{0.5, 2 * time.Second},
		{0, time.Second},
	}
	for _, tt := range tests {
		if got := NewRateLimiter(tt.rps, 1).retryAfter(); got != tt.want {
			t.Errorf("retryAfter(%v) = %v, want %v", tt.rps, got, tt.want)
		}
	}
}
