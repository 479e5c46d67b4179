package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newLimiter(t *testing.T, mr *miniredis.Miniredis, limit int, window time.Duration) *FixedWindowLimiter {
	t.Helper()
	l, err := NewRedisFixedWindowLimiter(mr.Addr(), "", "test:auth", limit, window)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return l
}

func TestLimiterEnforcesQuota(t *testing.T) {
	mr := miniredis.RunT(t)
	l := newLimiter(t, mr, 2, time.Minute)

	for i := 0; i < 2; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatalf("request over quota should be blocked")
	}
	// Quotas are per key.
	if !l.Allow("10.0.0.2") {
		t.Fatalf("a different key has its own quota")
	}
}

func TestLimiterFailsClosedOnRedisErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	l := newLimiter(t, mr, 5, time.Minute)
	mr.Close()

	if l.Allow("10.0.0.1") {
		t.Fatalf("unreachable redis must block, not allow")
	}
}

func TestLimiterConstructorValidation(t *testing.T) {
	if _, err := NewRedisFixedWindowLimiter("", "", "p", 1, time.Second); err == nil {
		t.Fatalf("expected error for missing addr")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "p", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "p", 1, 0); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestLimiterNilAndEmptyKey(t *testing.T) {
	var nilLimiter *FixedWindowLimiter
	if nilLimiter.Allow("x") {
		t.Fatalf("nil limiter must not allow")
	}

	mr := miniredis.RunT(t)
	l := newLimiter(t, mr, 1, time.Minute)
	if !l.Allow("  ") {
		t.Fatalf("blank keys share the anonymous bucket, first call passes")
	}
	if l.Allow("") {
		t.Fatalf("second anonymous call exceeds the quota of 1")
	}
}
