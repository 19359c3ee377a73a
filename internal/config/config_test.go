package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
	t.Setenv("REFRESH_TOKEN_TTL_DAYS", "7")
}

func TestLoadMemoryDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("SEAT_IDS", "a1, b2,,A1")
	t.Setenv("TX_MAX_ATTEMPTS", "0")
	t.Setenv("EVENTS_ENABLED", "off")

	cfg := Load()
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"A1", "B2"}, cfg.SeatIDs)
	assert.Equal(t, 1, cfg.TxMaxAttempts)
	assert.False(t, cfg.EventsEnabled)
	assert.Equal(t, 15, cfg.AccessTTLMin)
	assert.Equal(t, "logs", cfg.SessionLogDir)
	assert.Empty(t, cfg.DBHost)
}

func TestLoadMySQLDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("DB_USER", "cafe")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "studycafe")

	cfg := Load()
	assert.Equal(t, DriverMySQL, cfg.StoreDriver)
	assert.Equal(t, "db", cfg.DBHost)
	assert.Len(t, cfg.SeatIDs, 18)
	assert.Equal(t, 3, cfg.TxMaxAttempts)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "yes")
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "250ms")
	assert.True(t, envBool("X_BOOL", false))
	assert.True(t, envBool("X_UNSET", true))
	assert.Equal(t, 4, envInt("X_INT", 4))
	assert.Equal(t, 250*time.Millisecond, envDur("X_DUR", time.Second))
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 2*time.Second, cfg.RefillEvery)
	assert.Equal(t, 2*time.Second, cfg.TTL)
	assert.Equal(t, "cafe:rl", cfg.Prefix)
	assert.Equal(t, "ip_user", cfg.KeyStrategy)

	t.Setenv("RATE_LIMIT_CAPACITY", "60")
	t.Setenv("RATE_LIMIT_TTL", "1m")
	cfg = LoadRateLimitConfig()
	assert.Equal(t, 2*time.Minute, cfg.TTL)
}

func TestCacheConfigDefaults(t *testing.T) {
	t.Setenv("CACHE_TTL", "-5s")
	cfg := LoadCacheConfig()
	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.VaryQuery)
	assert.Equal(t, time.Minute, cfg.TTL)
	assert.Equal(t, "cafe:cache", cfg.Prefix)
	assert.Equal(t, 65536, cfg.MaxBodyBytes)
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")
	opts, err := RedisOptions()
	assert.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Nil(t, opts.TLSConfig)

	t.Setenv("REDIS_URL", "redis://:pw@other:6379/5")
	opts, err = RedisOptions()
	assert.NoError(t, err)
	assert.Equal(t, "other:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 5, opts.DB)
}

func TestRedisDisabled(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "false")
	assert.Nil(t, NewRedisClient())
}
