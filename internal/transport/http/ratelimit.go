package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window limiter keyed by client IP and shared by all
// server instances through Redis. Redis failures let requests through.
type RateLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

func NewRateLimiter(rdb redis.Scripter, limit int, window time.Duration, prefix string) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "scheduleit:rl"
	}
	return &RateLimiter{rdb: rdb, limit: limit, window: window, prefix: prefix}
}

func (rl *RateLimiter) Middleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := rl.incr(c.Request.Context(), rl.prefix+":"+c.ClientIP())
		if err != nil {
			log.WarnContext(c.Request.Context(), "rate limiter unavailable", slog.Any("err", err))
			c.Next()
			return
		}
		if count > int64(rl.limit) {
			c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			respondJSONError(c, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) incr(ctx context.Context, key string) (int64, error) {
	res, err := fixedWindowScript.Run(ctx, rl.rdb, []string{key}, rl.window.Milliseconds()).Result()
	if err != nil {
		return 0, err
	}
	switch v := res.(type) {
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected rate limit script result %T", res)
	}
}
