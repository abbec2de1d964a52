package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// slowQueryThreshold marks queries gorm reports as slow.
const slowQueryThreshold = 200 * time.Millisecond

// Options tunes the opened connection.
type Options struct {
	Debug bool
	Log   *log.Logger // Receives gorm output; nil uses the logrus standard logger.
}

// gormWriter feeds gorm's formatted lines into logrus.
type gormWriter struct {
	entry *log.Entry
	level log.Level
}

func (w gormWriter) Printf(format string, args ...any) {
	w.entry.Logf(w.level, format, args...)
}

// newGormLogger logs SQL errors and slow queries at warn level, and every
// statement at debug level in debug mode. Missing rows are expected lookups
// and never logged.
func newGormLogger(debug bool, out *log.Logger) logger.Interface {
	if out == nil {
		out = log.StandardLogger()
	}
	writer := gormWriter{entry: out.WithField("component", "gorm"), level: log.WarnLevel}
	level := logger.Warn
	if debug {
		writer.level = log.DebugLevel
		level = logger.Info
	}
	return logger.New(writer, logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// Open connects to PostgreSQL or SQLite depending on the DSN prefix.
// DSNs starting with "file:" select SQLite, everything else PostgreSQL.
func Open(dsn string) (*gorm.DB, error) {
	return OpenWithOptions(dsn, Options{})
}

// OpenWithOptions is Open with explicit connection options.
func OpenWithOptions(dsn string, opts Options) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}

	gormCfg := &gorm.Config{
		Logger:         newGormLogger(opts.Debug, opts.Log),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	if isSQLiteDSN(dsn) {
		conn, errOpen := gorm.Open(sqlite.Open(SQLiteDSN(dsn)), gormCfg)
		if errOpen != nil {
			return nil, fmt.Errorf("db: open sqlite: %w", errOpen)
		}
		sqlDB, errDB := conn.DB()
		if errDB != nil {
			return nil, fmt.Errorf("db: sqlite handle: %w", errDB)
		}
		// SQLite allows one writer; serializing on a single connection keeps
		// transactions from failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		return conn, nil
	}

	conn, errOpen := gorm.Open(postgres.Open(dsn), gormCfg)
	if errOpen != nil {
		return nil, fmt.Errorf("db: open postgres: %w", errOpen)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return nil, fmt.Errorf("db: postgres handle: %w", errDB)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return conn, nil
}

func isSQLiteDSN(dsn string) bool {
	return strings.HasPrefix(strings.ToLower(dsn), "file:")
}

// SQLiteDSN appends the pragmas every SQLite connection needs.
func SQLiteDSN(path string) string {
	dsn := strings.TrimSpace(path)
	if !isSQLiteDSN(dsn) {
		dsn = "file:" + dsn
	}
	if strings.Contains(dsn, "_pragma=foreign_keys") {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + strings.Join([]string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
	}, "&")
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ping checks that the underlying connection is reachable.
func Ping(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("db: handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
