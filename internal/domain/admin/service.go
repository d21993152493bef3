package admin

import (
	"errors"
	"strings"
	"time"

	"github.com/Anvoria/identra/internal/config"
	"github.com/Anvoria/identra/internal/credentials"
	"github.com/Anvoria/identra/internal/domain/token"
)

// RoleAdmin is the role marker carried by admin tokens.
const RoleAdmin = "admin"

// ErrInvalidCredentials covers every admin login failure.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service authenticates the single operator identity. It runs its own token
// service instance: a distinct secret, issuer, and audience keep the admin
// and user trust domains mutually unverifiable. Admin tokens carry no
// session record; revocation is "wait for expiry".
type Service struct {
	tokens   *token.Service
	email    string
	passcode string
	ttl      time.Duration
}

// NewService creates the admin service from configuration-held credentials.
func NewService(cfg config.AdminConfig) (*Service, error) {
	tokens, err := token.NewService(token.Options{
		Secret:   cfg.Secret,
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		TTL:      cfg.TokenTTL,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Email == "" || cfg.Passcode == "" {
		return nil, errors.New("admin: login credentials are required")
	}

	return &Service{
		tokens:   tokens,
		email:    strings.ToLower(cfg.Email),
		passcode: cfg.Passcode,
		ttl:      cfg.TokenTTL,
	}, nil
}

// Login compares the submitted pair against the configured values: email
// case-insensitively, passcode in constant time. On success it issues a
// short-lived token carrying the role marker and the email as subject.
func (s *Service) Login(email, passcode string) (*token.Issued, error) {
	emailOK := strings.ToLower(strings.TrimSpace(email)) == s.email
	passOK := credentials.Equal(passcode, s.passcode)
	if !emailOK || !passOK {
		return nil, ErrInvalidCredentials
	}

	return s.tokens.IssueSubject(s.email, map[string]any{"role": RoleAdmin})
}

// Verify checks a raw token against the admin domain. Nil means no credential.
func (s *Service) Verify(raw string) *token.Claims {
	claims := s.tokens.Verify(raw)
	if claims == nil || claims.Role() != RoleAdmin {
		return nil
	}
	return claims
}

// TokenTTL returns the configured admin token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.ttl
}
