package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Template is a certificate design owned by a user.
type Template struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	CreatorID string `gorm:"type:varchar(36);not null;index"`                  // Owning user ID.
	Creator   *User  `gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE"` // Owning user.

	Name     string `gorm:"type:text;not null"` // Display name.
	ImageURL string `gorm:"type:text;not null"` // Background image URL.
	Width    int    `gorm:"not null"`           // Image width in pixels.
	Height   int    `gorm:"not null"`           // Image height in pixels.

	Placeholders   datatypes.JSON // Text placeholder definitions.
	Signatures     datatypes.JSON // Signature definitions.
	QRPlaceholders datatypes.JSON `gorm:"column:qr_placeholders"` // QR code placeholder definitions.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// BeforeCreate assigns a UUID when none was set.
func (t *Template) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
