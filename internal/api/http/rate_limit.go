package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/spec-kit/event-service/internal/config"
	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

// NewCredentialLimiter limits requests per client IP with a sliding window.
// A non-positive cfg.Max disables limiting.
func NewCredentialLimiter(cfg config.RateLimitConfig) fiber.Handler {
	if cfg.Max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:          cfg.Max,
		Expiration:   cfg.Window(),
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return apperrors.NewTooManyRequests("too many requests")
		},
		LimiterMiddleware: limiter.SlidingWindow{},
	})
}
