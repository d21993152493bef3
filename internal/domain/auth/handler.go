package auth

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/Anvoria/identra/internal/domain/user"
	"github.com/Anvoria/identra/internal/utils"
)

const (
	minPasswordLength = 8

	defaultRedirect      = "/"
	invalidLinkRedirect  = "/login?error=invalid_link"
	passwordResetReturn  = "/settings/password"
	magicLinkSentMessage = "If that address exists, a sign-in link is on its way"
)

type Handler struct {
	svc    *Service
	cookie CookieOptions
}

func NewHandler(svc *Service, cookie CookieOptions) *Handler {
	return &Handler{svc: svc, cookie: cookie}
}

type emailRequest struct {
	Email     string `json:"email"`
	ReturnURL string `json:"return_url"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Anonymous creates a new anonymous identity and logs it in.
func (h *Handler) Anonymous(c *fiber.Ctx) error {
	cred, err := h.svc.Anonymous()
	if err != nil {
		slog.Error("Failed to create anonymous identity", "error", err)
		return utils.ErrorResponse(c, "identity_creation_failed", fiber.StatusInternalServerError)
	}

	SetSessionCookie(c, h.cookie, cred.Issued.Raw, cred.Issued.ExpiresAt)

	return utils.SuccessResponse(c, fiber.Map{
		"user":       cred.User,
		"token":      cred.Issued.Raw,
		"csrf_token": cred.CSRFToken,
	}, "Anonymous identity created", fiber.StatusCreated)
}

// Session returns the current identity along with the CSRF token bound to
// it, so cookie-based clients (magic-link logins, rotated sessions) can
// recover the token without re-authenticating.
func (h *Handler) Session(c *fiber.Ctx) error {
	identity := GetIdentity(c)
	return utils.SuccessResponse(c, fiber.Map{
		"user":       identity.User,
		"csrf_token": h.svc.CSRFToken(identity.Claims.JTI()),
	}, "Session active")
}

// Upgrade attaches an email to the current identity.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid_body", fiber.StatusBadRequest)
	}

	identity := GetIdentity(c)
	u, err := h.svc.Identity.UpgradeWithEmail(identity.User.ID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidEmail):
			return utils.ErrorResponse(c, "invalid_email", fiber.StatusBadRequest)
		case errors.Is(err, user.ErrEmailTaken):
			return utils.ErrorResponse(c, "email_taken", fiber.StatusBadRequest)
		default:
			return utils.ErrorResponse(c, "upgrade_failed", fiber.StatusInternalServerError)
		}
	}

	return utils.SuccessResponse(c, fiber.Map{"user": u}, "Email attached")
}

// Logout revokes the current session and clears the cookie.
func (h *Handler) Logout(c *fiber.Ctx) error {
	identity := GetIdentity(c)
	if err := h.svc.Logout(identity.User.ID, identity.Claims.JTI()); err != nil {
		slog.Error("Failed to revoke session", "user_id", identity.User.ID, "error", err)
		return utils.ErrorResponse(c, "logout_failed", fiber.StatusInternalServerError)
	}

	ClearSessionCookie(c, h.cookie)
	return utils.SuccessResponse(c, nil, "Logged out")
}

// RequestMagicLink issues a sign-in link. The response is identical whether
// or not the email belongs to an existing identity.
func (h *Handler) RequestMagicLink(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid_body", fiber.StatusBadRequest)
	}

	if err := h.svc.Links.Create(req.Email, req.ReturnURL, c.IP()); err != nil {
		if errors.Is(err, user.ErrInvalidEmail) {
			return utils.ErrorResponse(c, "invalid_email", fiber.StatusBadRequest)
		}
		// Internal failures get logged but the body stays indistinguishable
		// from the success case.
		slog.Error("Magic link request failed", "error", err)
	}

	return utils.SuccessResponse(c, nil, magicLinkSentMessage)
}

// VerifyMagicLink consumes a code, opens a session, and redirects.
func (h *Handler) VerifyMagicLink(c *fiber.Ctx) error {
	code := c.Query("code")

	cred, returnURL, err := h.svc.VerifyMagicLink(code)
	if err != nil {
		return c.Redirect(invalidLinkRedirect, fiber.StatusFound)
	}

	SetSessionCookie(c, h.cookie, cred.Issued.Raw, cred.Issued.ExpiresAt)

	if returnURL == "" {
		returnURL = c.Query("return_url")
	}
	if returnURL == "" {
		returnURL = defaultRedirect
	}
	return c.Redirect(returnURL, fiber.StatusFound)
}

// Login authenticates an email/password pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid_body", fiber.StatusBadRequest)
	}
	if req.Email == "" || req.Password == "" {
		return utils.ErrorResponse(c, "missing_credentials", fiber.StatusBadRequest)
	}

	cred, err := h.svc.Login(req.Email, req.Password)
	if err != nil {
		return utils.ErrorResponse(c, "invalid_credentials", fiber.StatusUnauthorized)
	}

	SetSessionCookie(c, h.cookie, cred.Issued.Raw, cred.Issued.ExpiresAt)

	return utils.SuccessResponse(c, fiber.Map{
		"user":       cred.User,
		"token":      cred.Issued.Raw,
		"csrf_token": cred.CSRFToken,
	}, "Login successful")
}

// SetPassword stores a password for the current identity.
func (h *Handler) SetPassword(c *fiber.Ctx) error {
	req, ok := h.parsePasswordRequest(c)
	if !ok {
		return nil
	}

	identity := GetIdentity(c)
	if err := h.svc.Identity.SetPassword(identity.User.ID, req.Password); err != nil {
		if errors.Is(err, user.ErrPasswordSet) {
			return utils.ErrorResponse(c, "password_already_set", fiber.StatusConflict)
		}
		slog.Error("Failed to set password", "user_id", identity.User.ID, "error", err)
		return utils.ErrorResponse(c, "password_update_failed", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, nil, "Password set")
}

// ChangePassword replaces the password after verifying the current one.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	req, ok := h.parsePasswordRequest(c)
	if !ok {
		return nil
	}

	identity := GetIdentity(c)
	err := h.svc.Identity.ChangePassword(identity.User.ID, req.CurrentPassword, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrPasswordMismatch) {
			return utils.ErrorResponse(c, "invalid_credentials", fiber.StatusUnauthorized)
		}
		slog.Error("Failed to change password", "user_id", identity.User.ID, "error", err)
		return utils.ErrorResponse(c, "password_update_failed", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, nil, "Password changed")
}

// RequestPasswordReset issues a magic link scoped to the password settings
// page. Enumeration-safe like RequestMagicLink.
func (h *Handler) RequestPasswordReset(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid_body", fiber.StatusBadRequest)
	}

	if err := h.svc.Links.Create(req.Email, passwordResetReturn, c.IP()); err != nil {
		if errors.Is(err, user.ErrInvalidEmail) {
			return utils.ErrorResponse(c, "invalid_email", fiber.StatusBadRequest)
		}
		slog.Error("Password reset request failed", "error", err)
	}

	return utils.SuccessResponse(c, nil, magicLinkSentMessage)
}

// parsePasswordRequest validates the shared password body shape. On failure
// it writes the error response and returns ok=false.
func (h *Handler) parsePasswordRequest(c *fiber.Ctx) (*passwordRequest, bool) {
	var req passwordRequest
	if err := c.BodyParser(&req); err != nil {
		_ = utils.ErrorResponse(c, "invalid_body", fiber.StatusBadRequest)
		return nil, false
	}
	if len(req.Password) < minPasswordLength {
		_ = utils.ErrorResponse(c, "password_too_short", fiber.StatusBadRequest)
		return nil, false
	}
	if req.Password != req.PasswordConfirm {
		_ = utils.ErrorResponse(c, "password_confirmation_mismatch", fiber.StatusBadRequest)
		return nil, false
	}
	return &req, true
}
