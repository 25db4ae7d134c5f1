package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/a2f-auth/a2f/internal/registry"
)

// SessionCookie names the cookie the front end sets after login-success.
const SessionCookie = "a2f"

// RegisterMeRoute returns the registration named by the session cookie. The
// cookie is trusted as-is.
func RegisterMeRoute(router fiber.Router, reg registry.Repository) {
	router.Get("/me", func(c *fiber.Ctx) error {
		name := c.Cookies(SessionCookie)
		if name == "" {
			return fiber.NewError(http.StatusUnauthorized, "not logged in")
		}
		found, err := reg.Find(c.UserContext(), name)
		if errors.Is(err, registry.ErrUnknownAccount) {
			return fiber.NewError(http.StatusNotFound, "unknown account")
		}
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"name":       found.Name,
			"token_id":   found.TokenID,
			"created_at": found.CreatedAt,
		})
	})
}
