package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/accounts"
	"github.com/sendcertificates/server/internal/http/api"
	"github.com/sendcertificates/server/internal/metrics"
	"github.com/sendcertificates/server/internal/session"
	log "github.com/sirupsen/logrus"
)

// TokenHandler serves the admin side of the token ledger.
type TokenHandler struct {
	svc *accounts.Service
}

// NewTokenHandler constructs a TokenHandler.
func NewTokenHandler(svc *accounts.Service) *TokenHandler {
	return &TokenHandler{svc: svc}
}

// grantRequest defines the request body for a grant. Amount is kept raw so
// fractional and quoted values are rejected, not coerced.
type grantRequest struct {
	Email  string          `json:"email"`
	Amount json.RawMessage `json:"amount"`
}

// parseAmount accepts only a bare JSON integer.
func parseAmount(raw json.RawMessage) (int64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] == '"' {
		return 0, accounts.ErrInvalidAmount
	}
	amount, errParse := strconv.ParseInt(string(trimmed), 10, 64)
	if errParse != nil {
		return 0, accounts.ErrInvalidAmount
	}
	return amount, nil
}

// Grant credits tokens to a user and records the ledger entry.
func (h *TokenHandler) Grant(c *gin.Context) {
	var body grantRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	amount, errAmount := parseAmount(body.Amount)
	if errAmount != nil {
		api.WriteAccountError(c, errAmount, "Failed to add tokens")
		return
	}
	adminID := session.UserID(c)
	balance, errGrant := h.svc.GrantTokens(c.Request.Context(), adminID, body.Email, amount)
	if errGrant != nil {
		api.WriteAccountError(c, errGrant, "Failed to add tokens")
		return
	}
	metrics.AddTokensGranted(amount)
	log.WithFields(log.Fields{"admin_id": adminID, "email": accounts.NormalizeEmail(body.Email), "amount": amount}).Info("tokens granted")
	c.JSON(http.StatusOK, gin.H{"success": true, "tokens": balance})
}

// Transactions lists every ledger row, newest first.
func (h *TokenHandler) Transactions(c *gin.Context) {
	rows, page, errList := h.svc.ListTransactions(c.Request.Context(), "", api.QueryInt(c, "page", 1))
	if errList != nil {
		api.WriteAccountError(c, errList, "Failed to fetch transactions")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": api.TransactionViews(rows),
		"pagination":   page,
	})
}
