package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// APIKey grants programmatic access on behalf of a user.
type APIKey struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	UserID string `gorm:"type:varchar(36);not null;index"`               // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owning user.

	Name string `gorm:"type:text"`                      // Display name.
	Key  string `gorm:"type:text;not null;uniqueIndex"` // Secret key value.

	LastUsedAt *time.Time // Last successful use.
	RevokedAt  *time.Time // Revocation timestamp; nil while active.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// BeforeCreate assigns a UUID when none was set.
func (k *APIKey) BeforeCreate(*gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	return nil
}

// EmailConfig holds a user's own SMTP settings for sending certificates.
type EmailConfig struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	UserID string `gorm:"type:varchar(36);not null;uniqueIndex"`         // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owning user.

	SMTPHost     string `gorm:"column:smtp_host;type:text"`     // SMTP host.
	SMTPPort     int    `gorm:"column:smtp_port"`               // SMTP port.
	SMTPUser     string `gorm:"column:smtp_user;type:text"`     // SMTP username.
	SMTPPassword string `gorm:"column:smtp_password;type:text"` // SMTP password.
	FromAddress  string `gorm:"type:text"`                      // Sender address.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// BeforeCreate assigns a UUID when none was set.
func (e *EmailConfig) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
