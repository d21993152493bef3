package user

import "github.com/Anvoria/identra/internal/database"

// User is an identity record. Created anonymously with a generated username,
// upgraded in place when an email or password is attached. Never deleted here.
type User struct {
	database.BaseModel
	Username      string  `gorm:"column:username;unique;not null" json:"username"`
	Email         *string `gorm:"column:email;unique" json:"email,omitempty"`
	EmailVerified bool    `gorm:"column:email_verified;default:false" json:"email_verified"`
	PasswordHash  *string `gorm:"column:password_hash" json:"-"`
	DisplayName   string  `gorm:"column:display_name" json:"display_name,omitempty"`
}

func (User) TableName() string {
	return "users"
}
