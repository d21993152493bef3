package session

import (
	"time"

	"github.com/Anvoria/identra/internal/database"
)

// Session represents one issued credential lineage. The record, not the
// token's embedded expiry, is the authoritative validity source: deleting or
// revoking it invalidates the token immediately. Only the hash of the
// token's jti is stored, never the raw identifier.
type Session struct {
	database.BaseModel

	UserID    uint       `gorm:"column:user_id;not null;index"`
	JTIHash   string     `gorm:"column:jti_hash;not null;index"`
	IssuedAt  time.Time  `gorm:"column:issued_at;not null"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	RevokedAt *time.Time `gorm:"column:revoked_at"`
}

func (Session) TableName() string {
	return "sessions"
}
