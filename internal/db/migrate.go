package db

import (
	"fmt"

	"github.com/sendcertificates/server/internal/models"
	"gorm.io/gorm"
)

// migrationModels lists every table in parent-first order so foreign keys
// always reference an existing table.
func migrationModels() []any {
	return []any{
		&models.User{},
		&models.TokenTransaction{},
		&models.Template{},
		&models.Batch{},
		&models.Certificate{},
		&models.FailedCertificate{},
		&models.InvalidEmail{},
		&models.APIKey{},
		&models.EmailConfig{},
	}
}

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch dialect := dialectOf(conn); dialect {
	case dialectSQLite:
		return migrateSQLite(conn)
	case dialectPostgres, "":
		return migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", dialect)
	}
}

// migratePostgres applies PostgreSQL-specific schema updates and indexes.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(migrationModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errEmailIdx := conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))
	`).Error; errEmailIdx != nil {
		return fmt.Errorf("db: create users email index: %w", errEmailIdx)
	}
	if errTokensCheck := conn.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_users_tokens_non_negative') THEN
				ALTER TABLE users ADD CONSTRAINT chk_users_tokens_non_negative CHECK (tokens >= 0);
			END IF;
		END $$;
	`).Error; errTokensCheck != nil {
		return fmt.Errorf("db: add tokens check: %w", errTokensCheck)
	}
	if errLedgerIdx := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_token_transactions_user_created
		ON token_transactions (user_id, created_at DESC)
	`).Error; errLedgerIdx != nil {
		return fmt.Errorf("db: create ledger index: %w", errLedgerIdx)
	}
	return nil
}

// migrateSQLite applies SQLite-specific schema updates and indexes.
func migrateSQLite(conn *gorm.DB) error {
	if errPragma := conn.Exec(`PRAGMA foreign_keys = ON`).Error; errPragma != nil {
		return fmt.Errorf("db: enable foreign keys: %w", errPragma)
	}
	if errAutoMigrate := conn.AutoMigrate(migrationModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errLedgerIdx := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_token_transactions_user_created
		ON token_transactions (user_id, created_at)
	`).Error; errLedgerIdx != nil {
		return fmt.Errorf("db: create ledger index: %w", errLedgerIdx)
	}
	return nil
}
