package magiclink

import (
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(link *MagicLink) error
	CodeExists(code string) (bool, error)
	FindByCode(code string) (*MagicLink, error)
	Consume(code string, at time.Time) (bool, error)
	InvalidateUnused(userID uint, at time.Time) error
	DeleteExpired(now time.Time) (int64, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) Create(link *MagicLink) error {
	return r.db.Create(link).Error
}

func (r *repository) CodeExists(code string) (bool, error) {
	var count int64
	err := r.db.Model(&MagicLink{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindByCode(code string) (*MagicLink, error) {
	var link MagicLink
	if err := r.db.Where("code = ?", code).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// Consume marks a record used in a single conditional update, so two
// concurrent verifications of the same code cannot both succeed. Returns
// true only for the attempt that actually flipped the row.
func (r *repository) Consume(code string, at time.Time) (bool, error) {
	res := r.db.Model(&MagicLink{}).
		Where("code = ? AND used_at IS NULL AND expires_at > ?", code, at).
		Update("used_at", at)

	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// InvalidateUnused marks every unused record for the identity as used.
func (r *repository) InvalidateUnused(userID uint, at time.Time) error {
	return r.db.Model(&MagicLink{}).
		Where("user_id = ? AND used_at IS NULL", userID).
		Update("used_at", at).Error
}

func (r *repository) DeleteExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", now).Delete(&MagicLink{})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", cutoff).Delete(&MagicLink{})
	return res.RowsAffected, res.Error
}
