package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/event-service/internal/api/dto"
	"github.com/spec-kit/event-service/internal/auth"
	"github.com/spec-kit/event-service/internal/service"
	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

// UsersHandler exposes account and token endpoints.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Register handles POST /auth/users.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Register(c.UserContext(), req.Username, req.Email, req.Password)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Token handles POST /auth/token.
func (h *UsersHandler) Token(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	_, pair, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewTokenPairResponse(pair)})
}

// Refresh handles POST /auth/token/refresh.
func (h *UsersHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	token, exp, err := h.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.AccessTokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   exp,
	}})
}

// List handles GET /auth/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	caller, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthenticated()
	}
	users, err := h.auth.ListUsers(c.UserContext(), caller)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewUserListResponse(users)})
}

// Me handles GET /auth/users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	caller, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthenticated()
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(caller)})
}

// UpdateMe handles PATCH /auth/users/me.
func (h *UsersHandler) UpdateMe(c *fiber.Ctx) error {
	caller, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthenticated()
	}
	var req dto.ProfileUpdateRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.auth.UpdateProfile(c.UserContext(), caller.ID, req.Email)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ChangePassword handles PUT /auth/users/me/password.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	caller, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthenticated()
	}
	var req dto.PasswordChangeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.UserContext(), caller.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return apperrors.MapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// DeleteMe handles DELETE /auth/users/me.
func (h *UsersHandler) DeleteMe(c *fiber.Ctx) error {
	caller, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthenticated()
	}
	if err := h.auth.DeleteAccount(c.UserContext(), caller.ID); err != nil {
		return apperrors.MapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}
