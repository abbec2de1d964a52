package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sendcertificates/server/internal/accounts"
	"github.com/sendcertificates/server/internal/config"
	"github.com/sendcertificates/server/internal/db"
	"github.com/sendcertificates/server/internal/models"
	"github.com/sendcertificates/server/internal/security"
	"gorm.io/gorm"
)

// ErrAdminPasswordTooShort indicates a bootstrap password below the minimum length.
var ErrAdminPasswordTooShort = fmt.Errorf("password must be at least %d characters", accounts.MinPasswordLength)

// CreateAdminUser opens the configured database and creates or promotes
// an admin account.
func CreateAdminUser(ctx context.Context, cfg config.AppConfig, email, password, name string) error {
	dsn, err := config.LoadDatabaseDSN(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeDB(conn)

	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return fmt.Errorf("migrate database: %w", errMigrate)
	}
	return CreateAdminUserWithConn(conn.WithContext(ctx), email, password, name)
}

// CreateAdminUserWithConn creates a verified admin account. When the email
// already exists the account is promoted and its password replaced.
func CreateAdminUserWithConn(conn *gorm.DB, email, password, name string) error {
	if conn == nil {
		return fmt.Errorf("open database: nil connection")
	}
	email = accounts.NormalizeEmail(email)
	if email == "" {
		return accounts.ErrMissingEmail
	}
	if len(password) < accounts.MinPasswordLength {
		return ErrAdminPasswordTooShort
	}
	if len(password) > accounts.MaxPasswordLength {
		return accounts.ErrPasswordTooLong
	}

	hashedPassword, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("hash password: %w", errHash)
	}

	now := time.Now().UTC()
	var existing models.User
	errFind := conn.Where("email = ?", email).Take(&existing).Error
	switch {
	case errFind == nil:
		updates := map[string]any{
			"password":       hashedPassword,
			"is_admin":       true,
			"is_api_enabled": true,
			"updated_at":     now,
		}
		if existing.EmailVerifiedAt == nil {
			updates["email_verified_at"] = now
		}
		if errUpdate := conn.Model(&models.User{}).Where("id = ?", existing.ID).Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("promote admin: %w", errUpdate)
		}
		return nil
	case !errors.Is(errFind, gorm.ErrRecordNotFound):
		return fmt.Errorf("find admin: %w", errFind)
	}

	admin := models.User{
		Email:           email,
		Password:        hashedPassword,
		Name:            strings.TrimSpace(name),
		IsAdmin:         true,
		IsAPIEnabled:    true,
		EmailVerifiedAt: &now,
	}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("create admin: %w", errCreate)
	}
	return nil
}
