package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendcertificates/server/internal/models"
	"gorm.io/gorm"
)

// DeleteUser removes targetID and every row that references it in a single
// transaction. Dependents are removed explicitly, children before parents,
// so the purge is complete even on stores that do not enforce foreign keys.
// Any failure rolls the whole purge back.
func (s *Service) DeleteUser(ctx context.Context, callerID, targetID string) error {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return ErrMissingUserID
	}
	if targetID == callerID {
		return ErrSelfDeletion
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if errCount := tx.Model(&models.User{}).Where("id = ?", targetID).Count(&exists).Error; errCount != nil {
			return fmt.Errorf("accounts: find user: %w", errCount)
		}
		if exists == 0 {
			return ErrUserNotFound
		}

		if errLedger := tx.Where("user_id = ?", targetID).Delete(&models.TokenTransaction{}).Error; errLedger != nil {
			return fmt.Errorf("accounts: delete ledger: %w", errLedger)
		}
		if errIssuer := tx.Model(&models.TokenTransaction{}).
			Where("issued_by_id = ?", targetID).
			Update("issued_by_id", nil).Error; errIssuer != nil {
			return fmt.Errorf("accounts: detach issued grants: %w", errIssuer)
		}

		if errCerts := tx.Where("creator_id = ?", targetID).Delete(&models.Certificate{}).Error; errCerts != nil {
			return fmt.Errorf("accounts: delete certificates: %w", errCerts)
		}

		var batchIDs []string
		if errBatches := tx.Model(&models.Batch{}).Where("creator_id = ?", targetID).Pluck("id", &batchIDs).Error; errBatches != nil {
			return fmt.Errorf("accounts: list batches: %w", errBatches)
		}
		if len(batchIDs) > 0 {
			if errFailed := tx.Where("batch_id IN ?", batchIDs).Delete(&models.FailedCertificate{}).Error; errFailed != nil {
				return fmt.Errorf("accounts: delete failed certificates: %w", errFailed)
			}
			if errInvalid := tx.Where("batch_id IN ?", batchIDs).Delete(&models.InvalidEmail{}).Error; errInvalid != nil {
				return fmt.Errorf("accounts: delete invalid emails: %w", errInvalid)
			}
			if errBatchCerts := tx.Where("batch_id IN ?", batchIDs).Delete(&models.Certificate{}).Error; errBatchCerts != nil {
				return fmt.Errorf("accounts: delete batch certificates: %w", errBatchCerts)
			}
			if errDelBatches := tx.Where("id IN ?", batchIDs).Delete(&models.Batch{}).Error; errDelBatches != nil {
				return fmt.Errorf("accounts: delete batches: %w", errDelBatches)
			}
		}

		if errTemplates := tx.Where("creator_id = ?", targetID).Delete(&models.Template{}).Error; errTemplates != nil {
			return fmt.Errorf("accounts: delete templates: %w", errTemplates)
		}
		if errKeys := tx.Where("user_id = ?", targetID).Delete(&models.APIKey{}).Error; errKeys != nil {
			return fmt.Errorf("accounts: delete api keys: %w", errKeys)
		}
		if errEmailCfg := tx.Where("user_id = ?", targetID).Delete(&models.EmailConfig{}).Error; errEmailCfg != nil {
			return fmt.Errorf("accounts: delete email config: %w", errEmailCfg)
		}

		if errUser := tx.Where("id = ?", targetID).Delete(&models.User{}).Error; errUser != nil {
			return fmt.Errorf("accounts: delete user: %w", errUser)
		}
		return nil
	})
}
