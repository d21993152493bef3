package admin

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Anvoria/identra/internal/utils"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type loginRequest struct {
	Email    string `json:"email"`
	Passcode string `json:"passcode"`
}

// Login authenticates the operator and returns a short-lived bearer token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid_body", fiber.StatusBadRequest)
	}
	if req.Email == "" || req.Passcode == "" {
		return utils.ErrorResponse(c, "missing_credentials", fiber.StatusBadRequest)
	}

	issued, err := h.svc.Login(req.Email, req.Passcode)
	if err != nil {
		return utils.ErrorResponse(c, "invalid_credentials", fiber.StatusUnauthorized)
	}

	return utils.SuccessResponse(c, fiber.Map{
		"token":     issued.Raw,
		"tokenType": "Bearer",
		"expiresIn": int(h.svc.TokenTTL().Seconds()),
	}, "Admin login successful")
}

// Ping is a liveness probe for the admin trust domain.
func (h *Handler) Ping(c *fiber.Ctx) error {
	claims := GetClaims(c)
	return utils.SuccessResponse(c, fiber.Map{
		"subject": claims.Subject(),
	}, "pong")
}
