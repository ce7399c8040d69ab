package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/customer-portal/internal/config"
	"github.com/iliyamo/customer-portal/internal/metrics"
)

// cachedResponse is what a cache entry stores.  Only the content type is
// kept from the headers so request ids and rate limit counters stay fresh.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// bodyRecorder tees the response body into buf until limit is exceeded.
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

// ResponseCache keeps complete 200 responses of wrapped GET routes in
// Redis, one set of entries per user.  Every key of a user starts with
// "<prefix>:<user id>:" so InvalidateUser can drop them after a write.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	log zerolog.Logger
}

// NewResponseCache returns a cache that is inert when cfg.Enabled is false
// or rdb is nil.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log zerolog.Logger) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Second
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, log: log}
}

func (rc *ResponseCache) active() bool {
	return rc != nil && rc.cfg.Enabled && rc.rdb != nil
}

func userKeyPrefix(cfg config.CacheConfig, user string) string {
	return cfg.Prefix + ":" + user + ":"
}

// cacheKeyFrom always includes the caller so one user's data is never
// served to another.  A non-empty query adds a short digest.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	key := userKeyPrefix(cfg, currentUserID(c)) + c.Path()
	if q := c.Request().URL.RawQuery; q != "" && !cfg.IgnoreQuery {
		sum := sha256.Sum256([]byte(q))
		key += "#" + hex.EncodeToString(sum[:8])
	}
	return key
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// InvalidateUser deletes every cached response of userID.
func (rc *ResponseCache) InvalidateUser(ctx context.Context, userID uint64) error {
	if !rc.active() {
		return nil
	}
	match := globEscaper.Replace(userKeyPrefix(rc.cfg, strconv.FormatUint(userID, 10))) + "*"
	var keys []string
	iter := rc.rdb.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rc.rdb.Del(ctx, keys...).Err()
}

// Middleware serves repeated GETs of the wrapped route from Redis for
// cfg.TTL.  Redis errors are logged and the request is served normally.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	if !rc.active() {
		return passThrough
	}
	cfg, rdb, log := rc.cfg, rc.rdb, rc.log

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKeyFrom(cfg, c)

			if hit, ok := lookup(ctx, rdb, key, log); ok {
				metrics.CacheLookups.WithLabelValues("hit").Inc()
				res := c.Response()
				if hit.ContentType != "" {
					res.Header().Set(echo.HeaderContentType, hit.ContentType)
				}
				res.Header().Set("X-Cache", "HIT")
				res.WriteHeader(hit.Status)
				_, err := res.Write(hit.Body)
				return err
			}
			metrics.CacheLookups.WithLabelValues("miss").Inc()

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}
			payload, err := json.Marshal(cachedResponse{
				Status:      rec.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.buf.Bytes(),
			})
			if err != nil {
				return nil
			}
			if err := rdb.Set(context.WithoutCancel(ctx), key, payload, cfg.TTL).Err(); err != nil {
				log.Warn().Err(err).Msg("cache write failed")
			}
			return nil
		}
	}
}

func lookup(ctx context.Context, rdb *redis.Client, key string, log zerolog.Logger) (cachedResponse, bool) {
	var hit cachedResponse
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			metrics.CacheLookups.WithLabelValues("error").Inc()
			log.Warn().Err(err).Msg("cache read failed")
		}
		return hit, false
	}
	if err := json.Unmarshal(raw, &hit); err != nil || hit.Status == 0 {
		return hit, false
	}
	return hit, true
}
