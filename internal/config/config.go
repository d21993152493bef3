package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds the application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Admin    AdminConfig    `yaml:"admin"`
	Mail     MailConfig     `yaml:"mail"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AppConfig holds app-specific configuration
type AppConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"` // public origin used to build magic-link URLs
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AuthConfig holds the user trust domain configuration
type AuthConfig struct {
	Secret     string        `yaml:"secret"`      // HS256 signing secret, env AUTH_SECRET overrides
	CSRFSecret string        `yaml:"csrf_secret"` // key for session-bound CSRF tokens, env CSRF_SECRET overrides
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	CookieName string        `yaml:"cookie_name"`
}

// AdminConfig holds the admin trust domain configuration.
// The admin domain never shares a secret, issuer, or audience with the user domain.
type AdminConfig struct {
	Secret   string        `yaml:"secret"` // env ADMIN_SECRET overrides
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
	TokenTTL time.Duration `yaml:"token_ttl"`
	Email    string        `yaml:"email"`    // env ADMIN_EMAIL overrides
	Passcode string        `yaml:"passcode"` // env ADMIN_PASSCODE overrides
}

// MailConfig holds outbound mail settings
type MailConfig struct {
	Enable bool   `yaml:"enable"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
	From   string `yaml:"from"`
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// LoggingConfig holds logging-specific configuration
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads configuration from a YAML file, applies defaults and
// environment overrides for secret material, and validates the result.
func Load(path string, env *Environment) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if env != nil {
		cfg.applyEnvironment(env)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "identra"
	}
	if c.Auth.Audience == "" {
		c.Auth.Audience = "identra:app"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "identra_session"
	}
	if c.Admin.Issuer == "" {
		c.Admin.Issuer = "identra-admin"
	}
	if c.Admin.Audience == "" {
		c.Admin.Audience = "identra:admin"
	}
	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = 900 * time.Second
	}
}

func (c *Config) applyEnvironment(env *Environment) {
	if env.AuthSecret != "" {
		c.Auth.Secret = env.AuthSecret
	}
	if env.CSRFSecret != "" {
		c.Auth.CSRFSecret = env.CSRFSecret
	}
	if env.AdminSecret != "" {
		c.Admin.Secret = env.AdminSecret
	}
	if env.AdminEmail != "" {
		c.Admin.Email = env.AdminEmail
	}
	if env.AdminPasscode != "" {
		c.Admin.Passcode = env.AdminPasscode
	}
}

// Validate checks that all required secret material is present.
// A missing secret is a startup-fatal configuration error, never a
// per-request one.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	}
	if c.Auth.CSRFSecret == "" {
		errs = append(errs, errors.New("auth.csrf_secret is required"))
	}
	if c.Admin.Secret == "" {
		errs = append(errs, errors.New("admin.secret is required"))
	}
	if c.Auth.Secret != "" && c.Auth.Secret == c.Admin.Secret {
		errs = append(errs, errors.New("auth.secret and admin.secret must differ"))
	}
	if c.Admin.Email == "" {
		errs = append(errs, errors.New("admin.email is required"))
	}
	if c.Admin.Passcode == "" {
		errs = append(errs, errors.New("admin.passcode is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Address returns the server address in the format "host:port"
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// quoteDSNValue quotes a DSN value if it contains spaces or special characters.
// Single quotes inside the value are escaped by doubling them.
func quoteDSNValue(value string) string {
	needsQuoting := false
	for _, r := range value {
		if r == ' ' || r == '\'' || r == '\\' || r == '=' {
			needsQuoting = true
			break
		}
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '-' || r == '_' || r == '/' || r == '@' || r == ':') {
			needsQuoting = true
			break
		}
	}

	if !needsQuoting {
		return value
	}

	escaped := ""
	for _, r := range value {
		if r == '\'' {
			escaped += "''"
		} else {
			escaped += string(r)
		}
	}

	return "'" + escaped + "'"
}

// DSN returns the database connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSNValue(d.Host),
		d.Port,
		quoteDSNValue(d.User),
		quoteDSNValue(d.Password),
		quoteDSNValue(d.DBName),
		quoteDSNValue(d.SSLMode),
	)
}
