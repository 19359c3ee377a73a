package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/studycafe-seat-pass/internal/config"
)

// cachedResponse is what a cache entry holds.
type cachedResponse struct {
	Status int         `json:"s"`
	Header http.Header `json:"h"`
	Body   []byte      `json:"b"`
}

// bodyRecorder forwards the response to the client and keeps a copy of up
// to limit bytes.  Once the body outgrows limit nothing is kept.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (r *bodyRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.limit > 0 && r.buf.Len()+len(b) > r.limit {
			r.overflow = true
			r.buf.Reset()
		} else {
			r.buf.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

// cacheKey is prefix:path, plus a digest of the query when the config
// asks for it.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	key := cfg.Prefix + ":" + c.Request().URL.Path
	if q := c.QueryString(); cfg.VaryQuery && q != "" {
		sum := sha1.Sum([]byte(q))
		key += ":" + hex.EncodeToString(sum[:8])
	}
	return key
}

// NewRedisCache serves GET responses from Redis.  Status, headers and body
// are stored together so a hit replays the original response; X-Cache says
// which one the client got.  Only complete 200 responses without
// Set-Cookie are stored.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			key := cacheKey(cfg, c)
			res := c.Response()

			if bs, err := rdb.Get(c.Request().Context(), key).Bytes(); err == nil {
				var hit cachedResponse
				if json.Unmarshal(bs, &hit) == nil && hit.Status != 0 {
					for k, vals := range hit.Header {
						if k == echo.HeaderContentLength {
							continue
						}
						res.Header()[k] = vals
					}
					res.Header().Set("X-Cache", "HIT")
					res.WriteHeader(hit.Status)
					_, err := res.Write(hit.Body)
					return err
				}
			}

			rec := &bodyRecorder{ResponseWriter: res.Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			res.Writer = rec
			res.Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow || res.Header().Get(echo.HeaderSetCookie) != "" {
				return nil
			}
			payload, err := json.Marshal(cachedResponse{Status: rec.status, Header: res.Header().Clone(), Body: rec.buf.Bytes()})
			if err != nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
				c.Logger().Warnf("cache: store %s failed: %v", key, err)
			}
			return nil
		}
	}
}
