package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/event-service/internal/domain"
	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// UserResolver resolves the owner of an access token.
type UserResolver interface {
	ResolveCurrentUser(ctx context.Context, accessToken string) (*domain.User, error)
}

// AuthMiddleware validates bearer tokens and loads the calling user.
type AuthMiddleware struct {
	users UserResolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(users UserResolver) *AuthMiddleware {
	return &AuthMiddleware{users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}

	user, err := m.users.ResolveCurrentUser(c.UserContext(), token)
	if err != nil {
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, user)
	return c.Next()
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewUnauthenticated()
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthenticated()
	}
	return strings.TrimSpace(parts[1]), nil
}

// CurrentUser retrieves the authenticated user.
func CurrentUser(c *fiber.Ctx) (*domain.User, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	user, ok := val.(*domain.User)
	return user, ok && user != nil
}
