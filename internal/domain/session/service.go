package session

import (
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/Anvoria/identra/internal/credentials"
)

// Service is the source of truth for whether a previously issued token is
// still honored, independent of the token's own embedded expiry.
type Service interface {
	Open(userID uint, jti string, issuedAt, expiresAt time.Time) error
	IsValid(userID uint, jti string) (bool, error)
	Close(userID uint, jti string) error
	Sweep() (int64, error)
}

type service struct {
	repo Repository
}

// NewService creates a new session service
func NewService(repo Repository) Service {
	return &service{repo}
}

// Open records a freshly issued token's session. Only the jti hash persists.
func (s *service) Open(userID uint, jti string, issuedAt, expiresAt time.Time) error {
	return s.repo.Create(&Session{
		UserID:    userID,
		JTIHash:   credentials.HashSecret(jti),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	})
}

// IsValid checks for a matching, non-revoked, non-expired record.
func (s *service) IsValid(userID uint, jti string) (bool, error) {
	_, err := s.repo.FindActive(userID, credentials.HashSecret(jti), time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Close revokes the matching session. Idempotent.
func (s *service) Close(userID uint, jti string) error {
	return s.repo.Revoke(userID, credentials.HashSecret(jti), time.Now())
}

// Sweep deletes session records whose expiry has passed. Runs daily as a
// retention safety net; overlapping runs are harmless.
func (s *service) Sweep() (int64, error) {
	n, err := s.repo.DeleteExpired(time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Swept expired sessions", "deleted", n)
	}
	return n, nil
}
