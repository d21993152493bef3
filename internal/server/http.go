package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"

	"github.com/Anvoria/identra/internal/config"
	"github.com/Anvoria/identra/internal/database"
	"github.com/Anvoria/identra/internal/domain/admin"
	"github.com/Anvoria/identra/internal/domain/auth"
	"github.com/Anvoria/identra/internal/domain/magiclink"
	"github.com/Anvoria/identra/internal/domain/session"
	"github.com/Anvoria/identra/internal/domain/token"
	"github.com/Anvoria/identra/internal/domain/user"
	"github.com/Anvoria/identra/internal/mail"
	"github.com/Anvoria/identra/internal/migrations"
)

// Start initializes and starts the HTTP server
func Start(cfg *config.Config, env *config.Environment) error {
	initLogger(cfg.Logging.Level)

	if err := database.ConnectDB(cfg); err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return err
	}
	slog.Info("Database connected successfully")

	if err := migrations.RunMigrations(database.DB); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return err
	}
	slog.Info("Migrations completed successfully")

	userTokens, err := token.NewService(token.Options{
		Secret:   cfg.Auth.Secret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to build user token service: %w", err)
	}

	adminSvc, err := admin.NewService(cfg.Admin)
	if err != nil {
		return fmt.Errorf("failed to build admin service: %w", err)
	}

	sender := mail.New(cfg.Mail, cfg.App.Name)

	userRepo := user.NewRepository(database.DB)
	identitySvc := user.NewService(userRepo)
	sessionSvc := session.NewService(session.NewRepository(database.DB))
	linkSvc := magiclink.NewService(magiclink.NewRepository(database.DB), userRepo, sender, cfg.App.BaseURL)

	authSvc := auth.NewService(userRepo, identitySvc, sessionSvc, linkSvc, userTokens, cfg.Auth.CSRFSecret)

	sweeper, err := startSweeps(linkSvc, sessionSvc)
	if err != nil {
		return fmt.Errorf("failed to start sweep jobs: %w", err)
	}
	defer sweeper.Stop()

	app := fiber.New()
	SetupRoutes(app, &Deps{
		Config:   cfg,
		Env:      env,
		Auth:     authSvc,
		Admin:    adminSvc,
		AdminAPI: admin.NewHandler(adminSvc),
	})

	addr := cfg.Server.Address()
	slog.Info("Server starting", "address", addr)
	if err := app.Listen(addr); err != nil {
		slog.Error("Failed to start server", "error", err)
		return err
	}

	return nil
}

// startSweeps schedules the two periodic cleanup jobs: magic-link cleanup
// every 5 minutes, session cleanup every 24 hours. The jobs are pure
// delete-where-expired operations and tolerate overlapping runs.
func startSweeps(links magiclink.Service, sessions session.Service) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc("@every 5m", func() {
		if err := links.Sweep(); err != nil {
			slog.Error("Magic-link sweep failed", "error", err)
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc("@every 24h", func() {
		if _, err := sessions.Sweep(); err != nil {
			slog.Error("Session sweep failed", "error", err)
		}
	}); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

func initLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(handler))
}
