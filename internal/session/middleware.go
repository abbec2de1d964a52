package session

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	contextUserID  = "userID"
	contextIsAdmin = "isAdmin"
)

// Resolve authenticates every request and stores the user id, if any, on
// the gin context. It never aborts.
func Resolve(auth *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := auth.Authenticate(c.Request).UserID(); ok {
			c.Set(contextUserID, userID)
		}
		c.Next()
	}
}

// RequireSession aborts with 401 unless Resolve found a valid session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// RequireAdmin looks up the caller's admin flag on every request. Admin
// status is never trusted from the token.
func RequireAdmin(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		var user models.User
		errFind := db.WithContext(c.Request.Context()).
			Select("id", "is_admin").
			Where("id = ?", userID).
			Take(&user).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
				return
			}
			log.WithError(errFind).Error("admin lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Set(contextIsAdmin, true)
		c.Next()
	}
}

// UserID returns the authenticated user id stored by Resolve, or "".
func UserID(c *gin.Context) string {
	if v, ok := c.Get(contextUserID); ok {
		if id, okID := v.(string); okID {
			return id
		}
	}
	return ""
}
