package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/api/dto"
	"github.com/spec-kit/repair-desk/internal/service"
	apperrors "github.com/spec-kit/repair-desk/pkg/util"
)

// AuthHandler exposes registration and login.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register creates a customer account.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return apperrors.NewValidationError("name, email and password are required", nil)
	}
	if len(req.Password) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	user, token, expiresAt, err := h.auth.Register(c.UserContext(), name, email, req.Password)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.AuthResponse{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      string(user.Role),
		Token:     token,
		ExpiresAt: expiresAt,
	}})
}

// Login authenticates an account and issues a token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password are required", nil)
	}

	user, token, expiresAt, err := h.auth.Login(c.UserContext(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      string(user.Role),
		Token:     token,
		ExpiresAt: expiresAt,
	}})
}
