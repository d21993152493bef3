package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/Anvoria/identra/internal/config"
	"github.com/Anvoria/identra/internal/domain/admin"
	"github.com/Anvoria/identra/internal/domain/auth"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Env      *config.Environment
	Auth     *auth.Service
	Admin    *admin.Service
	AdminAPI *admin.Handler
}

// SetupRoutes sets up the routes for the application
func SetupRoutes(app *fiber.App, deps *Deps) {
	cookie := auth.CookieOptions{
		Name:   deps.Config.Auth.CookieName,
		Secure: deps.Env.Environment == config.EnvironmentProduction,
	}

	authHandler := auth.NewHandler(deps.Auth, cookie)
	requireAuth := auth.RequireAuth(deps.Auth, cookie)
	requireCSRF := auth.RequireCSRF(deps.Auth)

	api := app.Group("/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	})

	a := api.Group("/auth")
	a.Post("/anonymous", authHandler.Anonymous)
	a.Get("/session", requireAuth, authHandler.Session)
	a.Delete("/session", requireAuth, requireCSRF, authHandler.Logout)
	a.Post("/upgrade", requireAuth, requireCSRF, authHandler.Upgrade)
	a.Post("/magic-link", authHandler.RequestMagicLink)
	a.Get("/magic-link/verify", authHandler.VerifyMagicLink)
	a.Post("/login", authHandler.Login)
	a.Post("/password", requireAuth, requireCSRF, authHandler.SetPassword)
	a.Put("/password", requireAuth, requireCSRF, authHandler.ChangePassword)
	a.Post("/password/reset", authHandler.RequestPasswordReset)

	// The admin login endpoint is a brute-force target; a strict per-IP
	// limit sits in front of it.
	adminLoginLimiter := limiter.New(limiter.Config{
		Max:        5,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	})

	adm := api.Group("/admin/auth")
	adm.Post("/", adminLoginLimiter, deps.AdminAPI.Login)
	adm.Get("/ping", admin.RequireAdmin(deps.Admin), deps.AdminAPI.Ping)
}
