package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/auth"
)

// authPrincipal returns the authenticated user's id.
func authPrincipal(c *fiber.Ctx) (string, bool) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return "", false
	}
	return principal.User.ID, true
}
