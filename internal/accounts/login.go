package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sendcertificates/server/internal/models"
	"github.com/sendcertificates/server/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnPasswordCheck spends the same bcrypt work as a real comparison so a
// missing account takes as long as a wrong password.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = security.HashPassword("not-a-real-password")
	})
	security.CheckPassword(dummyHash, password)
}

// Login verifies credentials and returns the user. Unknown email, unset
// password and wrong password all yield ErrInvalidCredentials. When the
// email belongs to the configured owner, admin and API access are granted
// before returning.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	if errFind := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			burnPasswordCheck(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("accounts: find user: %w", errFind)
	}
	if !security.CheckPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}

	if s.isOwner(user.Email) && (!user.IsAdmin || !user.IsAPIEnabled) {
		if errUpdate := s.db.WithContext(ctx).
			Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{
				"is_admin":       true,
				"is_api_enabled": true,
				"updated_at":     s.now(),
			}).Error; errUpdate != nil {
			return nil, fmt.Errorf("accounts: bootstrap owner: %w", errUpdate)
		}
		user.IsAdmin = true
		user.IsAPIEnabled = true
		log.WithField("user_id", user.ID).Info("owner account granted admin and api access")
	}
	return &user, nil
}

// IssueSession signs a session token for user.
func (s *Service) IssueSession(secret string, user *models.User) (string, error) {
	if user == nil {
		return "", ErrUserNotFound
	}
	return security.IssueSessionToken(secret, user.ID, s.now())
}
