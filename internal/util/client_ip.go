package util

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// TrustedProxies is the set of peers whose forwarded headers are
// believed. The auth rate limiter keys on the resolved client IP, so a
// spoofable header would let callers dodge the limit.
type TrustedProxies struct {
	ranges []*net.IPNet
}

// NewTrustedProxies parses CIDR or bare-IP entries. Nil is returned for
// an empty list, which means no proxy is trusted.
func NewTrustedProxies(entries []string) (*TrustedProxies, error) {
	var ranges []*net.IPNet
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q is not an IP or CIDR", entry)
			}
			if ip.To4() != nil {
				entry += "/32"
			} else {
				entry += "/128"
			}
		}
		_, cidr, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		ranges = append(ranges, cidr)
	}
	if len(ranges) == 0 {
		return nil, nil
	}
	return &TrustedProxies{ranges: ranges}, nil
}

// Contains reports whether ip falls inside any trusted range.
func (t *TrustedProxies) Contains(ip net.IP) bool {
	if t == nil || ip == nil {
		return false
	}
	for _, r := range t.ranges {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP resolves the caller address for rate-limit keying. The
// direct peer wins unless it is a trusted proxy, in which case the
// X-Forwarded-For chain is walked right to left until the first
// address outside the trusted set.
func ClientIP(r *http.Request, trusted *TrustedProxies) string {
	peer := ipFromHostPort(r.RemoteAddr)
	if peer == nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	if !trusted.Contains(peer) {
		return peer.String()
	}

	if chain := forwardedChain(r.Header.Get("X-Forwarded-For")); len(chain) > 0 {
		for i := len(chain) - 1; i >= 0; i-- {
			if !trusted.Contains(chain[i]) {
				return chain[i].String()
			}
		}
		// Entire chain trusted: the leftmost hop is the best guess.
		return chain[0].String()
	}
	if real := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); real != nil {
		return real.String()
	}
	return peer.String()
}

func forwardedChain(header string) []net.IP {
	if header == "" {
		return nil
	}
	var chain []net.IP
	for _, part := range strings.Split(header, ",") {
		if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
			chain = append(chain, ip)
		}
	}
	return chain
}

func ipFromHostPort(addr string) net.IP {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
