package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendcertificates/server/internal/mailer"
	"github.com/sendcertificates/server/internal/models"
	"github.com/sendcertificates/server/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// VerifyEmail consumes a verification token and marks the email confirmed.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMissingToken
	}

	var user models.User
	if errFind := s.db.WithContext(ctx).Select("id").Where("verification_token = ?", token).Take(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("accounts: find verification token: %w", errFind)
	}

	now := s.now()
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND verification_token = ?", user.ID, token).
		Updates(map[string]any{
			"email_verified_at":  now,
			"verification_token": nil,
			"updated_at":         now,
		})
	if res.Error != nil {
		return fmt.Errorf("accounts: verify email: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidToken
	}
	return nil
}

// ResendVerification rotates the verification token of an unverified
// account and emails the new link.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrMissingEmail
	}

	var user models.User
	if errFind := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("accounts: find user: %w", errFind)
	}
	if user.EmailVerified() {
		return ErrAlreadyVerified
	}

	token, errToken := security.GenerateRandomToken(tokenBytes)
	if errToken != nil {
		return fmt.Errorf("accounts: generate verification token: %w", errToken)
	}
	if errUpdate := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{"verification_token": token, "updated_at": s.now()}).Error; errUpdate != nil {
		return fmt.Errorf("accounts: store verification token: %w", errUpdate)
	}

	s.sendVerification(ctx, user.Email, user.Name, token)
	return nil
}

// RequestPasswordReset stores a reset token valid for ResetTokenTTL and
// emails the link. Unknown emails succeed silently so callers cannot discover
// which accounts exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrMissingEmail
	}

	var user models.User
	if errFind := s.db.WithContext(ctx).Select("id", "email").Where("email = ?", email).Take(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("accounts: find user: %w", errFind)
	}

	token, errToken := security.GenerateRandomToken(tokenBytes)
	if errToken != nil {
		return fmt.Errorf("accounts: generate reset token: %w", errToken)
	}
	now := s.now()
	if errUpdate := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"reset_token":        token,
			"reset_token_expiry": now.Add(ResetTokenTTL),
			"updated_at":         now,
		}).Error; errUpdate != nil {
		return fmt.Errorf("accounts: store reset token: %w", errUpdate)
	}

	msg, errRender := mailer.PasswordResetMessage(s.baseURL, user.Email, token)
	if errRender != nil {
		log.WithError(errRender).Error("render password reset email failed")
		return nil
	}
	if errSend := s.mail.Send(ctx, msg); errSend != nil {
		log.WithError(errSend).WithField("user_id", user.ID).Error("send password reset email failed")
	}
	return nil
}

// ResetPassword consumes a reset token and stores a new password hash.
// Tokens are single use and rejected once expired.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMissingToken
	}
	if errPassword := ValidatePassword(newPassword); errPassword != nil {
		return errPassword
	}

	var user models.User
	if errFind := s.db.WithContext(ctx).
		Select("id", "reset_token_expiry").
		Where("reset_token = ?", token).
		Take(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("accounts: find reset token: %w", errFind)
	}
	now := s.now()
	if user.ResetTokenExpiry == nil || !now.Before(*user.ResetTokenExpiry) {
		return ErrInvalidToken
	}

	hash, errHash := security.HashPassword(newPassword)
	if errHash != nil {
		return fmt.Errorf("accounts: %w", errHash)
	}
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND reset_token = ?", user.ID, token).
		Updates(map[string]any{
			"password":           hash,
			"reset_token":        nil,
			"reset_token_expiry": nil,
			"updated_at":         now,
		})
	if res.Error != nil {
		return fmt.Errorf("accounts: reset password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidToken
	}
	return nil
}

func (s *Service) sendVerification(ctx context.Context, email, name, token string) {
	msg, errRender := mailer.VerificationMessage(s.baseURL, email, name, token)
	if errRender != nil {
		log.WithError(errRender).Error("render verification email failed")
		return
	}
	if errSend := s.mail.Send(ctx, msg); errSend != nil {
		log.WithError(errSend).WithField("email", email).Error("send verification email failed")
	}
}
