package migrations

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Anvoria/identra/internal/domain/magiclink"
	"github.com/Anvoria/identra/internal/domain/session"
	"github.com/Anvoria/identra/internal/domain/user"
)

// RunMigrations runs all database migrations
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&user.User{}, &session.Session{}, &magiclink.MagicLink{}); err != nil {
		return fmt.Errorf("failed to make migrations: %w", err)
	}
	return nil
}
