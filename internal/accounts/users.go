package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sendcertificates/server/internal/db"
	"github.com/sendcertificates/server/internal/models"
	"github.com/sendcertificates/server/internal/security"
	"gorm.io/gorm"
)

// SignupInput holds self-service registration fields.
type SignupInput struct {
	Name         string
	Email        string
	Password     string
	Organization string
	Phone        string
}

// Signup registers an unverified account and emails a verification link.
// A failed email is logged; the account is kept.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrMissingName
	}
	email, errEmail := validateEmail(in.Email)
	if errEmail != nil {
		return nil, errEmail
	}
	if errPassword := ValidatePassword(in.Password); errPassword != nil {
		return nil, errPassword
	}

	hash, errHash := security.HashPassword(in.Password)
	if errHash != nil {
		return nil, fmt.Errorf("accounts: %w", errHash)
	}
	token, errToken := security.GenerateRandomToken(tokenBytes)
	if errToken != nil {
		return nil, fmt.Errorf("accounts: generate verification token: %w", errToken)
	}

	user := models.User{
		Email:             email,
		Password:          hash,
		Name:              name,
		Organization:      strings.TrimSpace(in.Organization),
		Phone:             strings.TrimSpace(in.Phone),
		VerificationToken: &token,
	}
	if errCreate := s.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("accounts: create user: %w", errCreate)
	}

	s.sendVerification(ctx, user.Email, user.Name, token)
	return &user, nil
}

// CreateUserInput holds admin-provisioned account fields.
type CreateUserInput struct {
	Name         string
	Email        string
	Organization string
	Phone        string
}

// CreateUser provisions an account with a generated password, which is
// returned once and never stored in plaintext. The email counts as verified.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, "", ErrMissingName
	}
	email, errEmail := validateEmail(in.Email)
	if errEmail != nil {
		return nil, "", errEmail
	}

	password, errGen := security.GeneratePassword(generatedPasswordLength)
	if errGen != nil {
		return nil, "", fmt.Errorf("accounts: %w", errGen)
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return nil, "", fmt.Errorf("accounts: %w", errHash)
	}

	verifiedAt := s.now()
	user := models.User{
		Email:           email,
		Password:        hash,
		Name:            name,
		Organization:    strings.TrimSpace(in.Organization),
		Phone:           strings.TrimSpace(in.Phone),
		EmailVerifiedAt: &verifiedAt,
	}
	if errCreate := s.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("accounts: create user: %w", errCreate)
	}
	return &user, password, nil
}

// ListUsers returns every account, newest first, optionally filtered by a
// case-insensitive substring of name or email.
func (s *Service) ListUsers(ctx context.Context, search string) ([]models.User, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if search = strings.TrimSpace(search); search != "" {
		clause, args := db.ContainsFoldClause(s.db, search, "email", "name")
		q = q.Where(clause, args...)
	}
	var rows []models.User
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("accounts: list users: %w", errFind)
	}
	return rows, nil
}

// GetUser loads one account by id.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("accounts: find user: %w", errFind)
	}
	return &user, nil
}

func validateEmail(raw string) (string, error) {
	email := NormalizeEmail(raw)
	if email == "" {
		return "", ErrMissingEmail
	}
	addr, errParse := mail.ParseAddress(email)
	if errParse != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
