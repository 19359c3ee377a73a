package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist records access token ids that must no longer be accepted
// even though their signature and expiry are still valid.  Entries live in
// Redis under "<prefix>:<jti>" until the token would have expired anyway.
// A nil *TokenDenylist, or one without a client, accepts every token.
type TokenDenylist struct {
	rdb    *redis.Client
	prefix string
}

// NewTokenDenylist returns a deny list on rdb, or nil when rdb is nil.
func NewTokenDenylist(rdb *redis.Client) *TokenDenylist {
	if rdb == nil {
		return nil
	}
	return &TokenDenylist{rdb: rdb, prefix: "jwt:deny"}
}

func (d *TokenDenylist) key(jti string) string { return d.prefix + ":" + jti }

// Deny blocks jti until exp.  Already expired tokens are skipped.
func (d *TokenDenylist) Deny(ctx context.Context, jti string, exp time.Time) error {
	if d == nil || d.rdb == nil || jti == "" {
		return nil
	}
	ttl := time.Until(exp)
	if ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, d.key(jti), "1", ttl.Round(time.Second)+time.Second).Err()
}

// IsDenied reports whether jti was revoked.
func (d *TokenDenylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	if d == nil || d.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := d.rdb.Exists(ctx, d.key(jti)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return n > 0, nil
}
