package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type RateLimitMiddleware struct {
	redis *redis.Client
}

// NewRateLimitMiddleware builds an IP-based limiter backed by redis.
// With a nil client (redis disabled) all limits are pass-through.
func NewRateLimitMiddleware(client *redis.Client) *RateLimitMiddleware {
	return &RateLimitMiddleware{redis: client}
}

// RateLimitIP limits requests per client IP over a sliding window.
func (rm *RateLimitMiddleware) RateLimitIP(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rm.redis == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit_ip:%s:%s", c.ClientIP(), c.Request.URL.Path)
		allowed, err := rm.check(c, key, requests, window)
		if err != nil {
			// Limiter failure must not take the API down with it.
			c.Next()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": fmt.Sprintf("Too many requests. Limit: %d per %v", requests, window),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rm *RateLimitMiddleware) check(c *gin.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx := c.Request.Context()
	now := time.Now()
	windowStart := now.Add(-window).Unix()

	pipe := rm.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.Unix()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, window)

	results, err := pipe.Exec(ctx)
	if err != nil {
		return false, err
	}

	count := results[1].(*redis.IntCmd).Val()
	return count < int64(limit), nil
}
