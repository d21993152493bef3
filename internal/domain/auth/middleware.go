package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Anvoria/identra/internal/utils"
)

const (
	// IdentityKey is the key used to store the identity in Fiber context
	IdentityKey = "identity"
)

// CookieOptions describe how the session cookie is written.
type CookieOptions struct {
	Name   string
	Secure bool
}

// RequireAuth rejects the request before the handler runs unless a valid
// credential is present.
func RequireAuth(svc *Service, cookie CookieOptions) fiber.Handler {
	return authMiddleware(svc, cookie, true)
}

// OptionalAuth attaches an identity when a valid credential is present and
// silently proceeds unauthenticated otherwise. Used for public endpoints
// with personalization.
func OptionalAuth(svc *Service, cookie CookieOptions) fiber.Handler {
	return authMiddleware(svc, cookie, false)
}

func authMiddleware(svc *Service, cookie CookieOptions, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := extractToken(c, cookie.Name)
		if raw == "" {
			return deny(c, required)
		}

		result, err := svc.Authenticate(raw)
		if err != nil {
			return deny(c, required)
		}

		c.Locals(IdentityKey, &Identity{User: result.User, Claims: result.Claims})

		// Best-effort silent rotation; the authenticated request proceeds
		// on the old credential either way. The CSRF token is bound to the
		// jti, so the replacement travels in the response header alongside
		// the new cookie.
		if result.Rotation != nil {
			SetSessionCookie(c, cookie, result.Rotation.Issued.Raw, result.Rotation.Issued.ExpiresAt)
			c.Set(CSRFHeader, result.Rotation.CSRFToken)
		}

		return c.Next()
	}
}

func deny(c *fiber.Ctx, required bool) error {
	if required {
		return utils.ErrorResponse(c, "unauthorized", fiber.StatusUnauthorized)
	}
	return c.Next()
}

// extractToken prefers the Authorization header and falls back to the
// session cookie.
func extractToken(c *fiber.Ctx, cookieName string) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			return parts[1]
		}
		return ""
	}

	return c.Cookies(cookieName)
}

// GetIdentity extracts the identity from Fiber context
func GetIdentity(c *fiber.Ctx) *Identity {
	identity, ok := c.Locals(IdentityKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}

// SetSessionCookie writes the session cookie; its expiry mirrors the token's.
func SetSessionCookie(c *fiber.Ctx, opts CookieOptions, raw string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     opts.Name,
		Value:    raw,
		HTTPOnly: true,
		Secure:   opts.Secure,
		Path:     "/",
		SameSite: "Strict",
		Expires:  expires,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *fiber.Ctx, opts CookieOptions) {
	c.Cookie(&fiber.Cookie{
		Name:     opts.Name,
		Value:    "",
		HTTPOnly: true,
		Secure:   opts.Secure,
		Path:     "/",
		SameSite: "Strict",
		Expires:  time.Now().Add(-time.Hour),
	})
}
