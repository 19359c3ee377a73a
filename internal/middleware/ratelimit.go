package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/studycafe-seat-pass/internal/config"
)

// limiterScript takes one token from the bucket at KEYS[1], first adding
// one token per elapsed refill period.  A full bucket restarts its refill
// clock so idle time is never banked past capacity.
// ARGV: now_ms, capacity, refill_ms, ttl_s.  Returns {allowed, left, wait_ms}.
var limiterScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local every = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tokens = tonumber(redis.call('HGET', key, 't'))
local stamp = tonumber(redis.call('HGET', key, 'ts'))
if tokens == nil or stamp == nil then
	tokens = capacity
	stamp = now
end

local gained = math.floor((now - stamp) / every)
if gained > 0 then
	tokens = math.min(capacity, tokens + gained)
	stamp = stamp + gained * every
end
if tokens >= capacity then
	stamp = now
end

local allowed = 0
local wait = 0
if tokens > 0 then
	tokens = tokens - 1
	allowed = 1
else
	wait = every - (now - stamp)
end

redis.call('HSET', key, 't', tokens, 'ts', stamp)
redis.call('EXPIRE', key, ttl)
return {allowed, tokens, wait}
`)

// nowFunc is swapped in tests.
var nowFunc = time.Now

type bucketDecision struct {
	allowed    bool
	remaining  int64
	retryAfter time.Duration
}

func decodeDecision(v interface{}) (bucketDecision, bool) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 3 {
		return bucketDecision{}, false
	}
	nums := make([]int64, 3)
	for i, x := range arr {
		n, ok := x.(int64)
		if !ok {
			return bucketDecision{}, false
		}
		nums[i] = n
	}
	return bucketDecision{
		allowed:    nums[0] == 1,
		remaining:  nums[1],
		retryAfter: time.Duration(nums[2]) * time.Millisecond,
	}, true
}

// NewTokenBucket limits requests per key with a Redis token bucket.  When
// disabled or without Redis it passes every request through, and a Redis
// error lets the request through rather than failing it.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	every := cfg.RefillEvery
	if every <= 0 {
		every = time.Second
	}
	ttlSeconds := int64(cfg.TTL / time.Second)
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			args := []interface{}{nowFunc().UnixMilli(), cfg.Capacity, every.Milliseconds(), ttlSeconds}

			vals, err := limiterScript.Run(c.Request().Context(), rdb, []string{key}, args...).Result()
			if err != nil {
				if cfg.Debug {
					c.Logger().Warnf("ratelimit: redis error for key=%s: %v", key, err)
				}
				return next(c)
			}
			d, ok := decodeDecision(vals)
			if !ok {
				c.Logger().Warnf("ratelimit: unexpected script result for key=%s: %#v", key, vals)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.allowed {
				return next(c)
			}

			secs := int64((d.retryAfter + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.FormatInt(secs, 10))
			if cfg.Debug {
				c.Logger().Infof("ratelimit: block key=%s retry=%s", key, d.retryAfter)
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

// buildRateKey joins the parts named by the key strategy.  An empty or
// unknown strategy buckets by client ip.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	for _, p := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
		switch p {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", currentUserID(c))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		}
	}
	if len(parts) == 1 {
		parts = append(parts, "ip", c.RealIP())
	}
	return strings.Join(parts, ":")
}

// currentUserID returns the member id set by JWTAuth, or "anon" on routes
// that run the limiter before authentication.
func currentUserID(c echo.Context) string {
	if v, ok := c.Get(CtxUserID).(uint64); ok && v != 0 {
		return strconv.FormatUint(v, 10)
	}
	return "anon"
}
