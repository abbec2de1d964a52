package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenTransactionType classifies a ledger entry.
type TokenTransactionType string

// TokenTransactionType constants.
const (
	// TokenTransactionAdd credits a balance.
	TokenTransactionAdd TokenTransactionType = "ADD"
)

// Ledger reasons.
const (
	// TokenReasonAdminAdd marks a grant made through the admin API.
	TokenReasonAdminAdd = "admin_add"
)

// TokenTransaction is an append-only ledger row for a balance change.
type TokenTransaction struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	UserID string `gorm:"type:varchar(36);not null;index"`               // User whose balance changed.
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Ledger owner.

	IssuedByID *string `gorm:"type:varchar(36);index"`                             // Admin who issued the grant.
	IssuedBy   *User   `gorm:"foreignKey:IssuedByID;constraint:OnDelete:SET NULL"` // Issuing admin.

	Amount int64                `gorm:"not null"`                  // Signed amount.
	Type   TokenTransactionType `gorm:"type:varchar(16);not null"` // Entry type.
	Reason string               `gorm:"type:varchar(64);not null"` // Machine-readable reason.
	Email  string               `gorm:"type:text;not null;index"`  // Email of the credited user.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}

// BeforeCreate assigns a UUID when none was set.
func (t *TokenTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
