package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const attemptWindow = time.Minute

// AttemptLimit caps the number of handshake attempts a client IP may start
// per minute. It is a no-op without Redis and fails open on cache errors.
func AttemptLimit(cache *redis.Client, perMinute int, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || perMinute <= 0 {
			return c.Next()
		}
		key := "a2f:attempts:" + c.IP()
		ctx := c.UserContext()

		count, err := cache.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("attempt limit unavailable", slog.Any("error", err))
			return c.Next()
		}
		if count == 1 {
			cache.Expire(ctx, key, attemptWindow)
		}
		if count > int64(perMinute) {
			logger.Info("attempt limit reached", slog.String("ip", c.IP()), slog.Int64("count", count))
			return fiber.NewError(http.StatusTooManyRequests, "too many attempts, try again later")
		}
		return c.Next()
	}
}
