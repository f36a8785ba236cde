package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

// RequireAdmin ensures the authenticated user carries the admin flag.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return apperrors.NewUnauthenticated()
		}
		if !user.IsAdmin {
			return apperrors.NewForbidden("this action is only available to administrators")
		}
		return c.Next()
	}
}
