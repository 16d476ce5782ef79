package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pdplens/pdplens/internal/config"
	"github.com/pdplens/pdplens/internal/pkg/bark"
	"github.com/pdplens/pdplens/internal/pkg/response"
	"github.com/redis/go-redis/v9"
)

// RateLimit returns a middleware that enforces a fixed-window rate limit on
// unauthenticated traffic. Authenticated users are paced by the upstream
// budgets already, and redis errors fail open.
func RateLimit(rdb *redis.Client, cfg config.RateLimitRuntimeConfig, barkSvc *bark.Service) gin.HandlerFunc {
	window := cfg.Window
	if window <= 0 {
		window = time.Second
	}
	retryAfter := strconv.Itoa(max(1, int(window.Seconds())))

	return func(c *gin.Context) {
		// Runs ahead of OptionalAuth, so check the token directly.
		if claims, err := ValidateTokenClaims(extractToken(c)); err == nil && claims.UserID != "" {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		windowKey := time.Now().UnixMilli() / window.Milliseconds()
		key := fmt.Sprintf("pdp:rate_limit:%s:%d", ip, windowKey)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}

		if count == 1 {
			rdb.PExpire(ctx, key, window+time.Second)
		}

		if count > int64(cfg.Max) {
			if barkSvc != nil {
				go barkSvc.ThrottlePush(ip, c.Request.URL.Path)
			}
			c.Header("Retry-After", retryAfter)
			response.TooManyRequests(c, "too many requests, slow down")
			return
		}

		c.Next()
	}
}
