package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/models"
	"github.com/sendcertificates/server/internal/security"
	"github.com/sendcertificates/server/internal/session"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// APIKeyHandler manages the caller's API keys. Only accounts with API
// access enabled may use it.
type APIKeyHandler struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// NewAPIKeyHandler constructs an APIKeyHandler.
func NewAPIKeyHandler(db *gorm.DB) *APIKeyHandler {
	return &APIKeyHandler{db: db, nowFn: time.Now}
}

// requireAPIAccess reads is_api_enabled fresh so revoking access applies
// to live sessions.
func (h *APIKeyHandler) requireAPIAccess(c *gin.Context) bool {
	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Select("id", "is_api_enabled").
		Where("id = ?", session.UserID(c)).
		Take(&user).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	if errFind != nil {
		log.WithError(errFind).Error("load api access flag failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return false
	}
	if !user.IsAPIEnabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "API access is not enabled for this account"})
		return false
	}
	return true
}

// Create issues a new key. The secret is only returned here.
func (h *APIKeyHandler) Create(c *gin.Context) {
	if !h.requireAPIAccess(c) {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	token, errGenerate := security.GenerateAPIKey()
	if errGenerate != nil {
		log.WithError(errGenerate).Error("generate api key failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create API key"})
		return
	}
	row := models.APIKey{
		UserID: session.UserID(c),
		Name:   name,
		Key:    token,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).Error("create api key failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create API key"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":        row.ID,
		"name":      row.Name,
		"key":       token,
		"createdAt": row.CreatedAt,
	})
}

// List returns the caller's keys with the secret masked.
func (h *APIKeyHandler) List(c *gin.Context) {
	if !h.requireAPIAccess(c) {
		return
	}
	var rows []models.APIKey
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", session.UserID(c)).
		Order("created_at DESC").
		Find(&rows).Error; errFind != nil {
		log.WithError(errFind).Error("list api keys failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch API keys"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":         row.ID,
			"name":       row.Name,
			"keyPrefix":  maskAPIKey(row.Key),
			"active":     row.RevokedAt == nil,
			"lastUsedAt": row.LastUsedAt,
			"revokedAt":  row.RevokedAt,
			"createdAt":  row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"apiKeys": out})
}

// Revoke disables one of the caller's keys.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	if !h.requireAPIAccess(c) {
		return
	}
	now := h.nowFn().UTC()
	res := h.db.WithContext(c.Request.Context()).Model(&models.APIKey{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", strings.TrimSpace(c.Param("id")), session.UserID(c)).
		Update("revoked_at", &now)
	if res.Error != nil {
		log.WithError(res.Error).Error("revoke api key failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke API key"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// maskAPIKey keeps the prefix and last four characters.
func maskAPIKey(key string) string {
	if len(key) < 12 {
		return ""
	}
	return key[:8] + "********" + key[len(key)-4:]
}
