package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"kbapi/internal/model"
	"kbapi/internal/service"
)

const (
	// PrincipalLocalKey stores the authenticated model.Principal in fiber locals.
	PrincipalLocalKey = "principal"
	// ClaimsLocalKey stores the verified *service.Claims in fiber locals.
	ClaimsLocalKey = "claims"
)

// RequireAuth verifies the Bearer token on every request and stores the
// caller's Principal and Claims in locals. Requests without a valid token
// are rejected with 401.
func RequireAuth(auth service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(ClaimsLocalKey, claims)
		c.Locals(PrincipalLocalKey, model.Principal{ID: claims.Subject, Group: claims.Group})
		return c.Next()
	}
}

// PrincipalFromCtx returns the Principal stored by RequireAuth.
func PrincipalFromCtx(c *fiber.Ctx) (model.Principal, bool) {
	p, ok := c.Locals(PrincipalLocalKey).(model.Principal)
	return p, ok
}
