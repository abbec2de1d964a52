// Package accounts implements account lifecycle operations: login with
// owner bootstrap, signup, verification, password reset, the token ledger
// and cascading account deletion.
package accounts

import (
	"errors"
	"strings"
	"time"

	"github.com/sendcertificates/server/internal/mailer"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials is returned for any failed login, whatever the cause.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound indicates the target account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrMissingUserID indicates an empty target id.
	ErrMissingUserID = errors.New("user id required")
	// ErrSelfDeletion indicates an admin tried to delete their own account.
	ErrSelfDeletion = errors.New("cannot delete yourself")
	// ErrMissingEmail indicates an empty email.
	ErrMissingEmail = errors.New("email is required")
	// ErrInvalidEmail indicates a malformed email.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrMissingName indicates an empty display name.
	ErrMissingName = errors.New("name is required")
	// ErrInvalidAmount indicates a non-positive or out-of-range grant.
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	// ErrMissingToken indicates an empty verification or reset token.
	ErrMissingToken = errors.New("token is required")
	// ErrInvalidToken indicates an unknown, used or expired token.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrMissingPassword indicates an empty password.
	ErrMissingPassword = errors.New("password is required")
	// ErrWeakPassword indicates a password below the minimum length.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong indicates a password bcrypt cannot hash.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
	// ErrEmailTaken indicates the email already belongs to an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrAlreadyVerified indicates the email is already confirmed.
	ErrAlreadyVerified = errors.New("email already verified")
)

const (
	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength = 8
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
	// ResetTokenTTL is how long a password reset token stays valid.
	ResetTokenTTL = time.Hour
	// MaxGrantAmount caps a single ledger grant.
	MaxGrantAmount = 1_000_000_000
	// generatedPasswordLength is the length of admin-generated passwords.
	generatedPasswordLength = 12
	// tokenBytes is the entropy of verification and reset tokens.
	tokenBytes = 32
)

// ValidatePassword checks a new password against the length bounds.
func ValidatePassword(password string) error {
	switch {
	case password == "":
		return ErrMissingPassword
	case len(password) < MinPasswordLength:
		return ErrWeakPassword
	case len(password) > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

// Options configures a Service.
type Options struct {
	OwnerEmail string
	BaseURL    string
	Mailer     mailer.Sender
	Now        func() time.Time
}

// Service runs account operations against the store.
type Service struct {
	db         *gorm.DB
	ownerEmail string
	baseURL    string
	mail       mailer.Sender
	nowFn      func() time.Time
}

// NewService constructs a Service with default dependencies when nil.
func NewService(db *gorm.DB, opts Options) *Service {
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	mail := opts.Mailer
	if mail == nil {
		mail = mailer.LogSender{}
	}
	return &Service{
		db:         db,
		ownerEmail: NormalizeEmail(opts.OwnerEmail),
		baseURL:    strings.TrimSuffix(strings.TrimSpace(opts.BaseURL), "/"),
		mail:       mail,
		nowFn:      nowFn,
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) now() time.Time {
	return s.nowFn().UTC()
}

func (s *Service) isOwner(email string) bool {
	return s.ownerEmail != "" && NormalizeEmail(email) == s.ownerEmail
}
