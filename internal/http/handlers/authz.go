package handlers

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	applog "dropshop/internal/log"
)

// RequireAdmin guards mutating admin routes with a shared token, compared
// against a bcrypt hash so the raw token never sits in handler state.
func RequireAdmin(tokenHash []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := c.Get("X-Admin-Token")
		if tok == "" || bcrypt.CompareHashAndPassword(tokenHash, []byte(tok)) != nil {
			applog.Security(c, "access.denied.admin", nil)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin token required"})
		}
		return c.Next()
	}
}

// HashAdminToken prepares the startup token for comparison.
func HashAdminToken(token string) []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		panic(err) // only fails on absurd cost values
	}
	return h
}
