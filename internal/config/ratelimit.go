package config

import "time"

// RateLimitConfig tunes the Redis token bucket.  A bucket holds up to
// Capacity tokens and gains one every RefillEvery.  KeyStrategy joins any
// of "ip", "user" and "route" with underscores (e.g. "ip_user") to pick
// what a bucket is shared by.
type RateLimitConfig struct {
	Enabled     bool
	Capacity    int
	RefillEvery time.Duration
	TTL         time.Duration
	KeyStrategy string
	Prefix      string
	Debug       bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  TTL is raised to the
// time an empty bucket needs to refill, so expiring a key never hands out
// tokens early.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:     envBool("RATE_LIMIT_ENABLED", true),
		Capacity:    envInt("RATE_LIMIT_CAPACITY", 30),
		RefillEvery: envDur("RATE_LIMIT_REFILL_EVERY", time.Second),
		TTL:         envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy: envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user"),
		Prefix:      envStr("RATE_LIMIT_PREFIX", "cafe:rl"),
		Debug:       envBool("RATE_LIMIT_DEBUG", false),
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillEvery <= 0 {
		cfg.RefillEvery = time.Second
	}
	if full := time.Duration(cfg.Capacity) * cfg.RefillEvery; cfg.TTL < full {
		cfg.TTL = full
	}
	return cfg
}
