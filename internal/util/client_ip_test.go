package util

import (
	"net/http/httptest"
	"testing"
)

func mustTrustedProxies(t *testing.T, entries []string) *TrustedProxies {
	t.Helper()
	trusted, err := NewTrustedProxies(entries)
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}
	return trusted
}

func TestClientIPUntrustedPeerIgnoresHeaders(t *testing.T) {
	trusted := mustTrustedProxies(t, []string{"10.0.0.0/8"})

	req := httptest.NewRequest("GET", "/login", nil)
	req.RemoteAddr = "198.51.100.10:4242"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	req.Header.Set("X-Real-IP", "203.0.113.6")

	if got := ClientIP(req, trusted); got != "198.51.100.10" {
		t.Fatalf("expected the direct peer, got %q", got)
	}
	if got := ClientIP(req, nil); got != "198.51.100.10" {
		t.Fatalf("no trusted proxies: expected the direct peer, got %q", got)
	}
}

func TestClientIPTrustedPeerWalksForwardedChain(t *testing.T) {
	trusted := mustTrustedProxies(t, []string{"10.0.0.0/8", "192.168.1.10"})

	req := httptest.NewRequest("GET", "/login", nil)
	req.RemoteAddr = "10.0.0.20:4242"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.10")

	if got := ClientIP(req, trusted); got != "203.0.113.5" {
		t.Fatalf("expected the first untrusted hop from the right, got %q", got)
	}

	// Whole chain trusted: fall back to the leftmost hop.
	req.Header.Set("X-Forwarded-For", "10.0.0.5, 10.0.0.10")
	if got := ClientIP(req, trusted); got != "10.0.0.5" {
		t.Fatalf("expected the leftmost trusted hop, got %q", got)
	}
}

func TestClientIPRealIPFallback(t *testing.T) {
	trusted := mustTrustedProxies(t, []string{"10.0.0.0/8"})

	req := httptest.NewRequest("GET", "/login", nil)
	req.RemoteAddr = "10.0.0.20:4242"
	req.Header.Set("X-Forwarded-For", "garbage")
	req.Header.Set("X-Real-IP", "203.0.113.7")

	if got := ClientIP(req, trusted); got != "203.0.113.7" {
		t.Fatalf("expected X-Real-IP fallback, got %q", got)
	}
}

func TestNewTrustedProxiesParsing(t *testing.T) {
	trusted := mustTrustedProxies(t, []string{"10.0.0.0/8", "192.168.1.1", " "})
	if trusted == nil {
		t.Fatalf("expected non-nil trusted set")
	}

	empty, err := NewTrustedProxies(nil)
	if err != nil || empty != nil {
		t.Fatalf("empty input should yield nil set, got %v %v", empty, err)
	}

	if _, err := NewTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Fatalf("expected parse error for invalid entry")
	}
	if _, err := NewTrustedProxies([]string{"10.0.0.0/99"}); err == nil {
		t.Fatalf("expected parse error for invalid CIDR")
	}
}
