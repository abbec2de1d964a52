package app

import (
	"errors"
	"strings"

	"github.com/sendcertificates/server/internal/models"
	"gorm.io/gorm"
)

// AdminBootstrap describes how the admin API becomes reachable.
type AdminBootstrap struct {
	Admins     int64  // Accounts holding the admin flag.
	OwnerEmail string // Promoted to admin on first login when set.
}

// Unreachable reports that no admin exists and no owner is configured to
// claim the role.
func (b AdminBootstrap) Unreachable() bool {
	return b.Admins == 0 && b.OwnerEmail == ""
}

// InspectAdminBootstrap counts admin accounts. A database that has not been
// migrated yet has none.
func InspectAdminBootstrap(conn *gorm.DB, ownerEmail string) (AdminBootstrap, error) {
	state := AdminBootstrap{OwnerEmail: strings.ToLower(strings.TrimSpace(ownerEmail))}
	if conn == nil {
		return state, errors.New("app: nil db")
	}
	if !conn.Migrator().HasTable(&models.User{}) {
		return state, nil
	}
	if errCount := conn.Model(&models.User{}).Where("is_admin = ?", true).Count(&state.Admins).Error; errCount != nil {
		return state, errCount
	}
	return state, nil
}
