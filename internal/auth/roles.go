package auth

import (
	"net/http"
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-desk/internal/domain"
)

// RequireRole ensures the caller has one of the allowed roles. With no
// roles it only requires authentication.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if len(allowed) > 0 && !slices.Contains(allowed, principal.Actor.Role) {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
