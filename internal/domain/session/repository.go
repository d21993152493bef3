package session

import (
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(sess *Session) error
	FindActive(userID uint, jtiHash string, now time.Time) (*Session, error)
	Revoke(userID uint, jtiHash string, at time.Time) error
	DeleteExpired(before time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) Create(sess *Session) error {
	return r.db.Create(sess).Error
}

func (r *repository) FindActive(userID uint, jtiHash string, now time.Time) (*Session, error) {
	var sess Session
	err := r.db.
		Where("user_id = ? AND jti_hash = ? AND revoked_at IS NULL AND expires_at > ?", userID, jtiHash, now).
		First(&sess).Error
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Revoke marks the matching record revoked. Revoking an already-revoked or
// missing record is a no-op, so logout stays idempotent.
func (r *repository) Revoke(userID uint, jtiHash string, at time.Time) error {
	return r.db.Model(&Session{}).
		Where("user_id = ? AND jti_hash = ? AND revoked_at IS NULL", userID, jtiHash).
		Update("revoked_at", at).Error
}

func (r *repository) DeleteExpired(before time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", before).Delete(&Session{})
	return res.RowsAffected, res.Error
}
