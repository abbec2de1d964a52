package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendcertificates/server/internal/models"
	"gorm.io/gorm"
)

// GrantTokens credits amount to the account with email and appends the
// ledger row in the same transaction. The balance is incremented in SQL,
// so concurrent grants never lose an update. It returns the new balance.
func (s *Service) GrantTokens(ctx context.Context, adminID, email string, amount int64) (int64, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return 0, ErrMissingEmail
	}
	if amount <= 0 || amount > MaxGrantAmount {
		return 0, ErrInvalidAmount
	}

	var balance int64
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("email = ?", email).
			UpdateColumn("tokens", gorm.Expr("tokens + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("accounts: increment balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}

		var user models.User
		if errFind := tx.Select("id", "email", "tokens").Where("email = ?", email).Take(&user).Error; errFind != nil {
			return fmt.Errorf("accounts: reload balance: %w", errFind)
		}

		entry := models.TokenTransaction{
			UserID: user.ID,
			Amount: amount,
			Type:   models.TokenTransactionAdd,
			Reason: models.TokenReasonAdminAdd,
			Email:  user.Email,
		}
		if adminID != "" {
			issuer := adminID
			entry.IssuedByID = &issuer
		}
		if errCreate := tx.Create(&entry).Error; errCreate != nil {
			return fmt.Errorf("accounts: append ledger: %w", errCreate)
		}
		balance = user.Tokens
		return nil
	})
	if errTx != nil {
		return 0, errTx
	}
	return balance, nil
}

// Balance returns the token balance of userID.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).Select("id", "tokens").Where("id = ?", userID).Take(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("accounts: find balance: %w", errFind)
	}
	return user.Tokens, nil
}

// Page describes a page request and result.
type Page struct {
	Number     int   `json:"currentPage"`
	Size       int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// LedgerPageSize is the fixed ledger page size.
const LedgerPageSize = 10

// ListTransactions returns one page of ledger rows, newest first. An empty
// userID lists every account's rows.
func (s *Service) ListTransactions(ctx context.Context, userID string, page int) ([]models.TokenTransaction, Page, error) {
	if page < 1 {
		page = 1
	}
	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.TokenTransaction{})
		if userID != "" {
			q = q.Where("user_id = ?", userID)
		}
		return q
	}

	var total int64
	if errCount := scoped().Count(&total).Error; errCount != nil {
		return nil, Page{}, fmt.Errorf("accounts: count ledger: %w", errCount)
	}
	var rows []models.TokenTransaction
	if errFind := scoped().Order("created_at DESC").Order("id DESC").
		Limit(LedgerPageSize).
		Offset((page - 1) * LedgerPageSize).
		Find(&rows).Error; errFind != nil {
		return nil, Page{}, fmt.Errorf("accounts: list ledger: %w", errFind)
	}
	return rows, Page{
		Number:     page,
		Size:       LedgerPageSize,
		Total:      total,
		TotalPages: int((total + LedgerPageSize - 1) / LedgerPageSize),
	}, nil
}
