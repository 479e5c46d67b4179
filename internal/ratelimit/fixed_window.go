package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// INCR and PEXPIRE must be one atomic step, otherwise a crash between
// them leaves a counter that never expires.
var incrWithExpiry = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// FixedWindowLimiter throttles register/login attempts per client IP
// using Redis counters, so the limit holds across server replicas.
// Redis errors fail closed: an unreachable limiter blocks auth rather
// than opening it to brute force.
type FixedWindowLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisFixedWindowLimiter connects a limiter allowing `limit`
// requests per key per window.
func NewRedisFixedWindowLimiter(addr, password, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("ratelimit: limit and window must be positive")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("ratelimit: redis addr is required")
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "pairchat:auth"
	}
	return &FixedWindowLimiter{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		prefix: prefix,
		limit:  limit,
		window: window,
	}, nil
}

// Allow reports whether the key may proceed within the current window.
func (l *FixedWindowLimiter) Allow(key string) bool {
	if l == nil {
		return false
	}
	if key = strings.TrimSpace(key); key == "" {
		key = "anonymous"
	}

	windowMs := l.window.Milliseconds()
	slot := time.Now().UTC().UnixMilli() / windowMs
	counterKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := incrWithExpiry.Run(ctx, l.client, []string{counterKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return n <= int64(l.limit)
}
