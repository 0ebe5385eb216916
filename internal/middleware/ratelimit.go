package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/movie-catalog/internal/config"
)

// tokenBucketScript refills and drains one bucket atomically. Returns
// {allowed, tokens_left, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill = tonumber(ARGV[3])
	local interval = tonumber(ARGV[4])
	local ttl = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'refilled_at')
	local tokens = tonumber(state[1])
	local refilled_at = tonumber(state[2])
	if tokens == nil or refilled_at == nil then
		tokens = capacity
		refilled_at = now
	end

	if interval > 0 and refill > 0 then
		local steps = math.floor(math.max(0, now - refilled_at) / interval)
		if steps > 0 then
			tokens = math.min(capacity, tokens + steps * refill)
			refilled_at = refilled_at + steps * interval
		end
	end

	local allowed = 0
	local retry_after = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after = math.max(0, interval - (now - refilled_at))
	end

	redis.call('HMSET', key, 'tokens', tokens, 'refilled_at', refilled_at)
	redis.call('EXPIRE', key, ttl)
	return { allowed, tokens, retry_after }
`)

type bucketState struct {
	allowed    bool
	remaining  int64
	retryAfter time.Duration
}

// NewTokenBucket builds a Redis-backed token-bucket limiter. It guards the
// credential endpoints (login/register) against brute force; with rate
// limiting disabled or no Redis client it is a pass-through, so the catalog
// keeps working without the cache tier.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			args := []interface{}{
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL / time.Second),
			}

			vals, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key}, args...).Result()
			if err != nil {
				// Redis being down must not lock users out of login.
				if cfg.Debug {
					c.Logger().Warnf("ratelimit: redis error for key=%s: %v", key, err)
				}
				return next(c)
			}

			st, ok := decodeBucket(vals)
			if !ok {
				if cfg.Debug {
					c.Logger().Warnf("ratelimit: unexpected script result for key=%s: %#v", key, vals)
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(st.remaining, 10))

			if !st.allowed {
				secs := int(math.Ceil(st.retryAfter.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			return next(c)
		}
	}
}

func decodeBucket(vals interface{}) (bucketState, bool) {
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return bucketState{}, false
	}
	return bucketState{
		allowed:    asInt64(arr[0]) == 1,
		remaining:  asInt64(arr[1]),
		retryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, true
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// rateKey picks the bucket a request drains. The auth routes run with
// "ip_route" so login and register fill separate buckets per client address;
// "user_route" exists for authenticated surfaces should they ever need a
// limiter.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", currentUserID(c), "route", route)
	default:
		parts = append(parts, "ip", ip)
	}
	return strings.Join(parts, ":")
}

// currentUserID renders the authenticated user for rate-limit keys. The JWT
// middleware stores a uint64; the auth endpoints run before it, so "anon" is
// the common case here.
func currentUserID(c echo.Context) string {
	if n, ok := c.Get("user_id").(uint64); ok && n > 0 {
		return strconv.FormatUint(n, 10)
	}
	return "anon"
}
