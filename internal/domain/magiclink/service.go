package magiclink

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Anvoria/identra/internal/credentials"
	"github.com/Anvoria/identra/internal/domain/user"
	"github.com/Anvoria/identra/internal/mail"
)

const (
	// LinkTTL is how long a code stays redeemable.
	LinkTTL = 5 * time.Minute
	// RetentionWindow caps how long any record survives regardless of use state.
	RetentionWindow = 24 * time.Hour

	codeMaxAttempts = 10
)

var (
	// ErrInvalidCode is returned for a missing, used, expired, or malformed code
	ErrInvalidCode = errors.New("invalid or expired code")
	// ErrCodeExhausted is returned when unique-code generation ran out of
	// attempts. With a 62^12 keyspace this is astronomically unlikely and
	// implies a broken random source; it is a hard error, logged loudly.
	ErrCodeExhausted = errors.New("magic-link code generation exhausted retries")
)

// Service issues and consumes single-use login codes.
type Service interface {
	Create(email, returnURL, ip string) error
	Verify(code string) (*Verified, error)
	Sweep() error
}

// Verified is the result of consuming a code: enough identity information
// for the caller to mint a token and open a session.
type Verified struct {
	User      *user.User
	ReturnURL string
}

type service struct {
	repo   Repository
	users  user.Repository
	sender mail.Sender
	// baseURL is the public origin embedded in delivered links
	baseURL string
}

// NewService creates a new magic-link service
func NewService(repo Repository, users user.Repository, sender mail.Sender, baseURL string) Service {
	return &service{repo: repo, users: users, sender: sender, baseURL: baseURL}
}

// Create resolves or creates the identity behind email, invalidates all of
// its prior unused codes, persists a fresh one, and dispatches it. The caller
// observes the same outcome whether or not the email already existed.
func (s *service) Create(email, returnURL, ip string) error {
	email = user.NormalizeEmail(email)
	if !user.ValidEmail(email) {
		return user.ErrInvalidEmail
	}

	u, err := s.users.FindByEmail(email)
	if err != nil {
		u, err = s.createIdentity(email)
		if err != nil {
			return fmt.Errorf("failed to create identity for magic link: %w", err)
		}
	}

	now := time.Now()
	if err := s.repo.InvalidateUnused(u.ID, now); err != nil {
		return fmt.Errorf("failed to invalidate prior links: %w", err)
	}

	code, err := s.uniqueCode()
	if err != nil {
		return err
	}

	link := &MagicLink{
		Code:      code,
		UserID:    u.ID,
		ExpiresAt: now.Add(LinkTTL),
		ReturnURL: returnURL,
		RequestIP: ip,
	}
	if err := s.repo.Create(link); err != nil {
		return fmt.Errorf("failed to persist magic link: %w", err)
	}

	verifyURL := fmt.Sprintf("%s/v1/auth/magic-link/verify?code=%s", s.baseURL, code)
	if err := s.sender.SendMagicLink(email, code, verifyURL); err != nil {
		slog.Error("Failed to deliver magic link", "error", err)
		return fmt.Errorf("failed to deliver magic link: %w", err)
	}

	return nil
}

func (s *service) createIdentity(email string) (*user.User, error) {
	u, err := user.NewService(s.users).CreateAnonymous()
	if err != nil {
		return nil, err
	}
	u.Email = &email
	if err := s.users.Update(u); err != nil {
		return nil, err
	}
	return u, nil
}

// uniqueCode draws candidates until one misses the store, bounded by
// codeMaxAttempts.
func (s *service) uniqueCode() (string, error) {
	for attempt := 0; attempt < codeMaxAttempts; attempt++ {
		code, err := credentials.NewCode()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrCodeExhausted, err)
		}

		exists, err := s.repo.CodeExists(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	slog.Error("Magic-link code space exhausted", "attempts", codeMaxAttempts)
	return "", ErrCodeExhausted
}

// Verify consumes a code. Verification and consumption are one atomic step:
// the conditional update in the repository guarantees exactly one success per
// code. On success the owning identity's email is marked verified.
func (s *service) Verify(code string) (*Verified, error) {
	if len(code) != credentials.CodeLength {
		return nil, ErrInvalidCode
	}

	ok, err := s.repo.Consume(code, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCode
	}

	link, err := s.repo.FindByCode(code)
	if err != nil {
		return nil, err
	}

	u, err := s.users.FindByID(link.UserID)
	if err != nil {
		return nil, err
	}

	if !u.EmailVerified {
		u.EmailVerified = true
		if err := s.users.Update(u); err != nil {
			return nil, err
		}
	}

	return &Verified{User: u, ReturnURL: link.ReturnURL}, nil
}

// Sweep deletes expired records and, independently, records older than the
// retention window regardless of use state. Runs every five minutes;
// overlapping runs are harmless.
func (s *service) Sweep() error {
	now := time.Now()

	expired, err := s.repo.DeleteExpired(now)
	if err != nil {
		return err
	}

	old, err := s.repo.DeleteOlderThan(now.Add(-RetentionWindow))
	if err != nil {
		return err
	}

	if expired+old > 0 {
		slog.Info("Swept magic links", "expired", expired, "aged_out", old)
	}
	return nil
}
