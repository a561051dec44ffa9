// Package quota maintains the daily-quota counter for HTTP API providers
// (§4.4: "A separate daily-quota counter is maintained; when exhausted, the
// provider enters Open state until the next reset instant"). It is grounded
// on the teacher's Redis get/set/Lua-increment shape, repointed at
// provider-scoped keys instead of zman-calculation keys.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jcom-dev/elevresolve/internal/model"
)

// incrementAndCheck atomically increments quota:<provider>:<day> and
// returns the new count, setting a 24h expiry on first increment so
// exhausted counters age out without a separate sweeper. Mirrors the
// teacher's incrementAndGetTTL script shape.
const incrementAndCheck = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`

// Counter tracks per-provider daily usage against a configured limit,
// backed by Redis so multiple resolver processes share one quota.
type Counter struct {
	client *redis.Client
	logger *slog.Logger
	script *redis.Script
}

// New connects to redisURL. A nil *Counter (with err == nil) is returned
// when redisURL is empty: quota tracking is optional infrastructure, and
// callers should treat a nil Counter as "never exhausted" rather than
// failing startup, the same degrade-gracefully posture the teacher's
// cmd/api/main.go takes toward its own optional cache.
func New(ctx context.Context, redisURL string, logger *slog.Logger) (*Counter, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, model.NewError(model.KindConfigError, "parsing REDIS_URL", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, model.NewError(model.KindConfigError, "connecting to Redis for quota tracking", err)
	}

	logger.Info("quota counter connected", "redis_url_host", opts.Addr)
	return &Counter{client: client, logger: logger, script: redis.NewScript(incrementAndCheck)}, nil
}

func dayKey(providerID string, now time.Time) string {
	return fmt.Sprintf("quota:%s:%s", providerID, now.UTC().Format("2006-01-02"))
}

// Increment records one request against providerID's daily quota and
// reports whether the provider is now exhausted relative to dailyLimit. A
// nil Counter (quota tracking disabled) never reports exhaustion.
func (c *Counter) Increment(ctx context.Context, providerID string, dailyLimit int64, now time.Time) (exhausted bool, err error) {
	if c == nil || dailyLimit <= 0 {
		return false, nil
	}

	key := dayKey(providerID, now)
	res, err := c.script.Run(ctx, c.client, []string{key}, int((24 * time.Hour).Seconds())).Result()
	if err != nil {
		// Degrade gracefully, matching the teacher's rate limiter: a Redis
		// outage must not itself become an outage for every provider.
		c.logger.Warn("quota increment failed, allowing request", "provider", providerID, "error", err)
		return false, nil
	}

	count, ok := res.(int64)
	if !ok {
		return false, nil
	}
	return count > dailyLimit, nil
}

// Remaining reports how many requests are left today for providerID,
// without incrementing.
func (c *Counter) Remaining(ctx context.Context, providerID string, dailyLimit int64, now time.Time) (int64, error) {
	if c == nil || dailyLimit <= 0 {
		return dailyLimit, nil
	}
	key := dayKey(providerID, now)
	used, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return dailyLimit, nil
		}
		return dailyLimit, err
	}
	remaining := dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Close releases the underlying Redis client.
func (c *Counter) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
