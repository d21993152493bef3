package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Anvoria/identra/internal/utils"
)

// CSRFHeader is the header carrying the client's CSRF token.
const CSRFHeader = "X-CSRF-Token"

// RequireCSRF guards state-changing routes. It must run after RequireAuth:
// the expected value is bound to the authenticated session's jti and the
// comparison is constant-time.
func RequireCSRF(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := GetIdentity(c)
		if identity == nil {
			return utils.ErrorResponse(c, "unauthorized", fiber.StatusUnauthorized)
		}

		provided := c.Get(CSRFHeader)
		if provided == "" {
			var body struct {
				CSRFToken string `json:"csrf_token"`
			}
			if err := c.BodyParser(&body); err == nil {
				provided = body.CSRFToken
			}
		}

		if !svc.VerifyCSRF(identity.Claims.JTI(), provided) {
			return utils.ErrorResponse(c, "invalid_csrf_token", fiber.StatusForbidden)
		}

		return c.Next()
	}
}
