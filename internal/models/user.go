package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents an account stored in the database.
type User struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	Email        string `gorm:"type:text;not null;uniqueIndex"` // Lower-cased email address.
	Password     string `gorm:"type:text;not null;default:''"`  // Bcrypt hash; empty when unset.
	Name         string `gorm:"type:text"`                      // Display name.
	Organization string `gorm:"type:text"`                      // Organization name.
	Phone        string `gorm:"type:text"`                      // Contact phone.

	IsAdmin      bool `gorm:"not null;default:false"` // Grants the admin API.
	IsAPIEnabled bool `gorm:"not null;default:false"` // Grants programmatic API access.

	Tokens int64 `gorm:"not null;default:0"` // Issuance credit balance.

	EmailVerifiedAt   *time.Time // Set once the email is confirmed.
	VerificationToken *string    `gorm:"type:varchar(64);uniqueIndex"` // Pending email verification token.
	ResetToken        *string    `gorm:"type:varchar(64);index"`       // Pending password reset token.
	ResetTokenExpiry  *time.Time // Reset token expiry.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// BeforeCreate assigns a UUID when none was set.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// EmailVerified reports whether the email has been confirmed.
func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}
