// Package api holds response helpers shared by the admin and front route
// groups.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/accounts"
	"github.com/sendcertificates/server/internal/models"
	log "github.com/sirupsen/logrus"
)

// accountErrors maps account sentinels to a status and public message.
var accountErrors = []struct {
	err     error
	status  int
	message string
}{
	{accounts.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{accounts.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{accounts.ErrMissingUserID, http.StatusBadRequest, "User ID required"},
	{accounts.ErrSelfDeletion, http.StatusBadRequest, "Cannot delete yourself"},
	{accounts.ErrMissingEmail, http.StatusBadRequest, "Email is required"},
	{accounts.ErrInvalidEmail, http.StatusBadRequest, "Invalid email address"},
	{accounts.ErrMissingName, http.StatusBadRequest, "Name is required"},
	{accounts.ErrInvalidAmount, http.StatusBadRequest, "Amount must be a positive integer"},
	{accounts.ErrMissingToken, http.StatusBadRequest, "Token is required"},
	{accounts.ErrInvalidToken, http.StatusBadRequest, "Invalid or expired token"},
	{accounts.ErrMissingPassword, http.StatusBadRequest, "Password is required"},
	{accounts.ErrWeakPassword, http.StatusBadRequest, "Password must be at least 8 characters"},
	{accounts.ErrPasswordTooLong, http.StatusBadRequest, "Password must be at most 72 bytes"},
	{accounts.ErrEmailTaken, http.StatusConflict, "Email already registered"},
	{accounts.ErrAlreadyVerified, http.StatusBadRequest, "Email already verified"},
}

// WriteAccountError answers c with the status and message for err. Errors
// without a mapping are logged and answered with 500 and fallback.
func WriteAccountError(c *gin.Context, err error, fallback string) {
	for _, mapped := range accountErrors {
		if errors.Is(err, mapped.err) {
			c.JSON(mapped.status, gin.H{"error": mapped.message})
			return
		}
	}
	log.WithError(err).WithField("path", c.FullPath()).Error(fallback)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}

// QueryInt parses a positive integer query parameter, returning def when
// it is absent or malformed.
func QueryInt(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	v, errParse := strconv.Atoi(raw)
	if errParse != nil || v < 1 {
		return def
	}
	return v
}

// TransactionView renders a ledger row.
func TransactionView(row models.TokenTransaction) gin.H {
	return gin.H{
		"id":         row.ID,
		"userId":     row.UserID,
		"issuedById": row.IssuedByID,
		"amount":     row.Amount,
		"type":       row.Type,
		"reason":     row.Reason,
		"email":      row.Email,
		"createdAt":  row.CreatedAt,
	}
}

// TransactionViews renders ledger rows, never returning nil.
func TransactionViews(rows []models.TokenTransaction) []gin.H {
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, TransactionView(row))
	}
	return out
}
