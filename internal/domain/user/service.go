package user

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gorm.io/gorm"

	"github.com/Anvoria/identra/internal/credentials"
)

const usernameMaxAttempts = 10

var (
	// ErrEmailTaken is returned when an email already belongs to a different identity
	ErrEmailTaken = errors.New("email already in use")
	// ErrInvalidEmail is returned when an email fails format validation
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrPasswordMismatch is returned when the current password does not verify
	ErrPasswordMismatch = errors.New("password mismatch")
	// ErrPasswordSet is returned when SetPassword is called on an identity
	// that already has one; replacing a password goes through ChangePassword
	ErrPasswordSet = errors.New("password already set")
	// ErrUsernameExhausted is returned when username generation ran out of attempts.
	// Treated as an operational alert: it implies a broken random source or a
	// saturated namespace.
	ErrUsernameExhausted = errors.New("username generation exhausted retries")
)

// Service interface for identity bootstrap operations
type Service interface {
	CreateAnonymous() (*User, error)
	UpgradeWithEmail(userID uint, email string) (*User, error)
	SetPassword(userID uint, password string) error
	ChangePassword(userID uint, current, newPassword string) error
}

// service struct for identity bootstrap operations
type service struct {
	repo Repository
}

// NewService creates a new user service
func NewService(repo Repository) Service {
	return &service{repo}
}

// CreateAnonymous persists a new identity with a generated unique username
// and no email. Username collisions are retried up to usernameMaxAttempts
// before falling back to a timestamp-based form.
func (s *service) CreateAnonymous() (*User, error) {
	username, err := s.uniqueUsername()
	if err != nil {
		return nil, err
	}

	u := &User{Username: username}
	if err := s.repo.Create(u); err != nil {
		return nil, fmt.Errorf("failed to create anonymous identity: %w", err)
	}

	return u, nil
}

func (s *service) uniqueUsername() (string, error) {
	for attempt := 0; attempt < usernameMaxAttempts; attempt++ {
		candidate, err := randomUsername()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrUsernameExhausted, err)
		}
		_, err = s.repo.FindByUsername(candidate)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check username availability: %w", err)
		}
	}

	fallback, err := fallbackUsername()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUsernameExhausted, err)
	}
	return fallback, nil
}

// UpgradeWithEmail attaches an email (unverified) to an existing identity.
// Verification happens through the magic-link delivery-and-consume cycle.
func (s *service) UpgradeWithEmail(userID uint, email string) (*User, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	if existing, err := s.repo.FindByEmail(email); err == nil && existing.ID != userID {
		return nil, ErrEmailTaken
	}

	u, err := s.repo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	u.Email = &email
	u.EmailVerified = false
	if err := s.repo.Update(u); err != nil {
		return nil, err
	}

	return u, nil
}

// SetPassword hash-stores a password for an identity that has none.
// An identity with an existing password must go through ChangePassword,
// which verifies the current one first.
func (s *service) SetPassword(userID uint, password string) error {
	u, err := s.repo.FindByID(userID)
	if err != nil {
		return err
	}

	if u.PasswordHash != nil {
		return ErrPasswordSet
	}

	hash, err := credentials.HashPassword(password)
	if err != nil {
		return err
	}

	u.PasswordHash = &hash
	return s.repo.Update(u)
}

// ChangePassword verifies the current password before storing the new one.
// Failures are uniform and never reveal whether an account exists.
func (s *service) ChangePassword(userID uint, current, newPassword string) error {
	u, err := s.repo.FindByID(userID)
	if err != nil {
		return ErrPasswordMismatch
	}

	if u.PasswordHash == nil || !credentials.VerifyPassword(current, *u.PasswordHash) {
		return ErrPasswordMismatch
	}

	hash, err := credentials.HashPassword(newPassword)
	if err != nil {
		return err
	}

	u.PasswordHash = &hash
	return s.repo.Update(u)
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the address parses as a bare RFC 5322 address.
func ValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
