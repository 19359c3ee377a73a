package config

import "time"

// CacheConfig controls the Redis response cache in front of the pass
// catalog.  Only GET responses with status 200 are stored.  Caching is off
// when Enabled is false or no Redis client is configured.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int  // larger responses are served but not stored
	VaryQuery    bool // include the query string in the cache key
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		TTL:          envDur("CACHE_TTL", time.Minute),
		Prefix:       envStr("CACHE_PREFIX", "cafe:cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 64<<10),
		VaryQuery:    envBool("CACHE_VARY_QUERY", false),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	return cfg
}
