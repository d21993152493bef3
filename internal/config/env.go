package config

import (
	"os"
	"strings"
)

// EnvironmentType represents the application environment
type EnvironmentType string

const (
	EnvironmentDevelopment EnvironmentType = "development"
	EnvironmentProduction  EnvironmentType = "production"
)

// String returns the string representation of the environment type
func (e EnvironmentType) String() string {
	return string(e)
}

// IsValid checks if the environment type is valid
func (e EnvironmentType) IsValid() bool {
	switch e {
	case EnvironmentDevelopment, EnvironmentProduction:
		return true
	default:
		return false
	}
}

// Environment holds the environment variables
type Environment struct {
	Environment   EnvironmentType `env:"ENVIRONMENT"`
	ConfigPath    string          `env:"CONFIG_PATH"`
	AuthSecret    string          `env:"AUTH_SECRET"`
	CSRFSecret    string          `env:"CSRF_SECRET"`
	AdminSecret   string          `env:"ADMIN_SECRET"`
	AdminEmail    string          `env:"ADMIN_EMAIL"`
	AdminPasscode string          `env:"ADMIN_PASSCODE"`
}

// LoadEnv loads the environment variables
func LoadEnv() *Environment {
	envStr := getEnv("ENVIRONMENT", string(EnvironmentDevelopment))
	envStr = strings.TrimSpace(envStr)
	envStr = strings.ToLower(envStr)
	envType := EnvironmentType(envStr)

	// Validate and default to development if invalid
	if !envType.IsValid() {
		envType = EnvironmentDevelopment
	}

	return &Environment{
		Environment:   envType,
		ConfigPath:    getEnv("CONFIG_PATH", "config.yaml"),
		AuthSecret:    getEnv("AUTH_SECRET", ""),
		CSRFSecret:    getEnv("CSRF_SECRET", ""),
		AdminSecret:   getEnv("ADMIN_SECRET", ""),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPasscode: getEnv("ADMIN_PASSCODE", ""),
	}
}

// getEnv gets the environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
