package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/Anvoria/identra/internal/config"
	"github.com/Anvoria/identra/internal/server"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	env := config.LoadEnv()

	cfg, err := config.Load(env.ConfigPath, env)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := server.Start(cfg, env); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}
