package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/blog-service/internal/domain"
)

// RequireAuthenticated rejects anonymous requests.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFromFiber(c); !ok {
			return domain.ErrUnauthenticated
		}
		return c.Next()
	}
}

// RequireRole ensures the caller's current role satisfies required.
func RequireRole(policy Policy, required domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromFiber(c)
		if !ok {
			return domain.ErrUnauthenticated
		}
		if err := policy.Require(identity.Role, required); err != nil {
			return err
		}
		return c.Next()
	}
}
