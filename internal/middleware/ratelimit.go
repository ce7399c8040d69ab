package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/customer-portal/internal/config"
	"github.com/iliyamo/customer-portal/internal/metrics"
	"github.com/iliyamo/customer-portal/internal/response"
)

// takeTokenScript refills the bucket for the elapsed intervals and takes
// one token, atomically.  Reply: {allowed, remaining, retry_after_ms}.
var takeTokenScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'refilled_at')
local tokens = tonumber(state[1]) or capacity
local refilled_at = tonumber(state[2]) or now

local steps = math.floor(math.max(0, now - refilled_at) / interval)
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  refilled_at = refilled_at + steps * interval
end

local allowed, wait = 0, 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.max(0, interval - (now - refilled_at))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'refilled_at', refilled_at)
redis.call('EXPIRE', KEYS[1], ttl)
return { allowed, tokens, wait }
`)

type bucketDecision struct {
	allowed    bool
	remaining  int64
	retryAfter time.Duration
}

type tokenBucket struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
}

func (b tokenBucket) take(ctx context.Context, key string) (bucketDecision, error) {
	reply, err := takeTokenScript.Run(ctx, b.rdb, []string{key},
		time.Now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return bucketDecision{}, err
	}
	if len(reply) != 3 {
		return bucketDecision{}, fmt.Errorf("token bucket: unexpected reply %v", reply)
	}
	return bucketDecision{
		allowed:    reply[0] == 1,
		remaining:  reply[1],
		retryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

// retryAfterSeconds rounds up and never returns less than one second.
func (d bucketDecision) retryAfterSeconds() int {
	secs := int(math.Ceil(d.retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// NewTokenBucket limits /api requests per client with a Redis token
// bucket.  It is a pass-through when disabled or when Redis is not
// configured, and it lets requests through when Redis errors.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log zerolog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	bucket := tokenBucket{rdb: rdb, cfg: cfg}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			d, err := bucket.take(c.Request().Context(), key)
			if err != nil {
				metrics.RateLimit.WithLabelValues("error").Inc()
				log.Warn().Err(err).Msg("rate limit check failed, allowing request")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}

			if !d.allowed {
				metrics.RateLimit.WithLabelValues("limited").Inc()
				h.Set("Retry-After", strconv.Itoa(d.retryAfterSeconds()))
				log.Debug().Str("key", key).Dur("retry_after", d.retryAfter).Msg("rate limited")
				return response.Error(c, http.StatusTooManyRequests, "too many requests, please try again later")
			}
			metrics.RateLimit.WithLabelValues("allowed").Inc()
			return next(c)
		}
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// buildRateKey derives the bucket key.  The limiter runs on the /api group
// ahead of the session gate, so keys are address based.  Strategies:
//
//	ip        one bucket per client address (default)
//	ip_route  one bucket per address and route pattern
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip_route":
		return cfg.Prefix + ":ip:" + ip + ":route:" + c.Request().Method + " " + c.Path()
	default:
		return cfg.Prefix + ":ip:" + ip
	}
}
