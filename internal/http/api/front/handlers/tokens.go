package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/accounts"
	"github.com/sendcertificates/server/internal/http/api"
	"github.com/sendcertificates/server/internal/session"
)

// TokenFrontHandler serves the caller's view of the token ledger.
type TokenFrontHandler struct {
	svc *accounts.Service
}

// NewTokenFrontHandler constructs a TokenFrontHandler.
func NewTokenFrontHandler(svc *accounts.Service) *TokenFrontHandler {
	return &TokenFrontHandler{svc: svc}
}

// Balance returns the caller's token balance.
func (h *TokenFrontHandler) Balance(c *gin.Context) {
	balance, errBalance := h.svc.Balance(c.Request.Context(), session.UserID(c))
	if errBalance != nil && !errors.Is(errBalance, accounts.ErrUserNotFound) {
		api.WriteAccountError(c, errBalance, "Failed to fetch balance")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": balance})
}

// Transactions returns the caller's balance and own ledger rows.
func (h *TokenFrontHandler) Transactions(c *gin.Context) {
	userID := session.UserID(c)
	balance, errBalance := h.svc.Balance(c.Request.Context(), userID)
	if errBalance != nil && !errors.Is(errBalance, accounts.ErrUserNotFound) {
		api.WriteAccountError(c, errBalance, "Failed to fetch transactions")
		return
	}
	rows, page, errList := h.svc.ListTransactions(c.Request.Context(), userID, api.QueryInt(c, "page", 1))
	if errList != nil {
		api.WriteAccountError(c, errList, "Failed to fetch transactions")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"currentBalance": balance,
		"transactions":   api.TransactionViews(rows),
		"pagination":     page,
	})
}
