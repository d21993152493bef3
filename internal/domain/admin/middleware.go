package admin

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Anvoria/identra/internal/domain/token"
	"github.com/Anvoria/identra/internal/utils"
)

// ClaimsKey is the key used to store the admin claims in Fiber context
const ClaimsKey = "admin_claims"

// RequireAdmin verifies a bearer token against the admin trust domain.
// Admin credentials travel only in the Authorization header; there is no
// cookie fallback.
func RequireAdmin(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return utils.ErrorResponse(c, "unauthorized", fiber.StatusUnauthorized)
		}

		claims := svc.Verify(parts[1])
		if claims == nil {
			return utils.ErrorResponse(c, "unauthorized", fiber.StatusUnauthorized)
		}

		c.Locals(ClaimsKey, claims)
		return c.Next()
	}
}

// GetClaims extracts the admin claims from Fiber context
func GetClaims(c *fiber.Ctx) *token.Claims {
	claims, ok := c.Locals(ClaimsKey).(*token.Claims)
	if !ok {
		return nil
	}
	return claims
}
