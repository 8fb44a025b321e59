package handler

import (
	"github.com/gofiber/fiber/v2"

	"kbapi/internal/http/middleware"
	"kbapi/internal/service"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates a new account.
func Register(auth service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.RegisterInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "malformed request body")
		}
		user, err := auth.Register(c.UserContext(), in)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(user)
	}
}

// Login verifies credentials and returns a bearer token.
func Login(auth service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in loginRequest
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "malformed request body")
		}
		res, err := auth.Login(c.UserContext(), in.Username, in.Password)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// Me returns the account behind the presented token.
func Me(auth service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(middleware.ClaimsLocalKey).(*service.Claims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing token")
		}
		user, err := auth.CurrentUser(c.UserContext(), claims)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(user)
	}
}

// Logout acknowledges a client-side token discard. Tokens are stateless, so
// there is nothing to revoke server-side.
func Logout() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "logged out"})
	}
}
