package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var confirmRateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// ConfirmRateLimiter implements distributed rate limiting for the
// confirmation endpoint using Redis. Keys are scoped per provider
// transaction number, which is what a misbehaving gateway retries on.
type ConfirmRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewConfirmRateLimiter(client redis.UniversalClient, prefix string) *ConfirmRateLimiter {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = "causeway:rate_limit"
	}
	return &ConfirmRateLimiter{client: client, prefix: strings.TrimSuffix(trimmed, ":")}
}

// Consume counts one request for the subject and reports whether it is still
// within the limit. A nil limiter, nil client or nonpositive limit allows
// everything.
func (r *ConfirmRateLimiter) Consume(ctx context.Context, subject string, limit int, window time.Duration) (allowed bool, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return true, 0, nil
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return true, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:confirm:%s", r.prefix, subject)
	raw, err := confirmRateLimitScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return false, 0, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	if count > int64(limit) {
		return false, int(math.Ceil(float64(ttlMs) / 1000.0)), nil
	}
	return true, 0, nil
}
