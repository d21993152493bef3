package magiclink

import (
	"time"

	"github.com/Anvoria/identra/internal/database"
)

// MagicLink is a one-time authentication code delivered out-of-band.
// At most one unused record may exist per identity: issuing a new one marks
// all prior unused records used, and consuming a record sets UsedAt exactly once.
type MagicLink struct {
	database.BaseModel

	Code      string     `gorm:"column:code;unique;not null"`
	UserID    uint       `gorm:"column:user_id;not null;index"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	UsedAt    *time.Time `gorm:"column:used_at"`
	ReturnURL string     `gorm:"column:return_url"`
	RequestIP string     `gorm:"column:request_ip"`
}

func (MagicLink) TableName() string {
	return "magic_links"
}
