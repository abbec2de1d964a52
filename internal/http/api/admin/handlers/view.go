package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/models"
)

func userView(u *models.User) gin.H {
	return gin.H{
		"id":            u.ID,
		"name":          u.Name,
		"email":         u.Email,
		"organization":  u.Organization,
		"tokens":        u.Tokens,
		"is_admin":      u.IsAdmin,
		"createdAt":     u.CreatedAt,
		"emailVerified": u.EmailVerifiedAt,
	}
}
