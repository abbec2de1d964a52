package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Batch groups certificates issued in one run.
type Batch struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	CreatorID string `gorm:"type:varchar(36);not null;index"`                  // Owning user ID.
	Creator   *User  `gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE"` // Owning user.

	Name       string `gorm:"type:text;not null"` // Display name.
	Progress   int    `gorm:"not null;default:0"` // Completion percentage.
	TotalCount int    `gorm:"not null;default:0"` // Number of recipients.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}

// BeforeCreate assigns a UUID when none was set.
func (b *Batch) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Certificate is one issued certificate.
type Certificate struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	CreatorID string `gorm:"type:varchar(36);not null;index"`                  // Issuing user ID.
	Creator   *User  `gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE"` // Issuing user.

	BatchID *string `gorm:"type:varchar(36);index"`                         // Batch ID, if issued in a batch.
	Batch   *Batch  `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"` // Parent batch.

	TemplateID *string   `gorm:"type:varchar(36);index"`                             // Template ID; cleared when the template is deleted.
	Template   *Template `gorm:"foreignKey:TemplateID;constraint:OnDelete:SET NULL"` // Source template.

	RecipientName  string `gorm:"type:text;not null"` // Recipient display name.
	RecipientEmail string `gorm:"type:text;not null"` // Recipient email.
	CertificateURL string `gorm:"type:text"`          // Rendered certificate URL.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// BeforeCreate assigns a UUID when none was set.
func (c *Certificate) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// FailedCertificate records a recipient whose certificate could not be issued.
type FailedCertificate struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	BatchID string `gorm:"type:varchar(36);not null;index"`                // Parent batch ID.
	Batch   *Batch `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"` // Parent batch.

	RecipientEmail string `gorm:"type:text;not null"` // Recipient email.
	Error          string `gorm:"type:text"`          // Failure detail.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// BeforeCreate assigns a UUID when none was set.
func (f *FailedCertificate) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// InvalidEmail records a recipient address rejected during batch intake.
type InvalidEmail struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	BatchID string `gorm:"type:varchar(36);not null;index"`                // Parent batch ID.
	Batch   *Batch `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"` // Parent batch.

	Email  string `gorm:"type:text;not null"` // Rejected address.
	Reason string `gorm:"type:text"`          // Rejection reason.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}

// BeforeCreate assigns a UUID when none was set.
func (i *InvalidEmail) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
