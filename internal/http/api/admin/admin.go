package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/accounts"
	handlers "github.com/sendcertificates/server/internal/http/api/admin/handlers"
	"github.com/sendcertificates/server/internal/session"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
// Every route requires a session whose user currently holds the admin flag.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, svc *accounts.Service) {
	if r == nil || db == nil || svc == nil {
		return
	}

	authed := r.Group("/api")
	authed.Use(session.RequireSession())
	authed.Use(session.RequireAdmin(db))

	userHandler := handlers.NewUserHandler(svc)
	authed.GET("/admin/users", userHandler.List)
	authed.POST("/admin/users", userHandler.Create)
	authed.DELETE("/admin/users", userHandler.Delete)

	tokenHandler := handlers.NewTokenHandler(svc)
	authed.POST("/tokens", tokenHandler.Grant)
	authed.GET("/token-transactions", tokenHandler.Transactions)
}
