package config

// Redis backs the rate limiter, the catalog response cache and the deny
// list of access tokens revoked at check-out.  NewRedisClient returns nil
// when Redis is disabled or unreachable at startup, and every consumer
// treats a nil client as "feature off".

import (
	"context"
	"crypto/tls"
	"log"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions builds client options from the environment:
//   REDIS_URL – redis:// or rediss:// URL, wins over everything below
//   REDIS_ADDR – host:port, or REDIS_HOST with REDIS_PORT
//   REDIS_PASSWORD, REDIS_DB
//   REDIS_TLS – "true" to dial with TLS
func RedisOptions() (*redis.Options, error) {
	if url := envStr("REDIS_URL", ""); url != "" {
		return redis.ParseURL(url)
	}
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = net.JoinHostPort(host, port)
	}
	opts := &redis.Options{
		Addr:     addr,
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
	}
	if envBool("REDIS_TLS", false) {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// NewRedisClient connects and pings.  REDIS_ENABLED=false skips Redis.
func NewRedisClient() *redis.Client {
	if !envBool("REDIS_ENABLED", true) {
		return nil
	}
	opts, err := RedisOptions()
	if err != nil {
		log.Printf("redis: bad configuration: %v; running without redis", err)
		return nil
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis: ping %s failed: %v; running without redis", opts.Addr, err)
		_ = client.Close()
		return nil
	}
	return client
}
