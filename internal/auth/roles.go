package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fixzit/fm-service/internal/domain"
	apperrors "github.com/fixzit/fm-service/pkg/util/errorutil"
)

// RequireRole ensures the session has one of the allowed roles. SUPER_ADMIN
// passes every gate.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := SessionFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if session.Role == domain.RoleSuperAdmin || len(allowed) == 0 || session.Role.In(allowed...) {
			return c.Next()
		}
		return apperrors.NewForbidden("insufficient role")
	}
}

// RequireAnyRole ensures caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return RequireRole()
}
