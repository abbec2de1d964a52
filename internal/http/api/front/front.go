package front

import (
	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/accounts"
	handlers "github.com/sendcertificates/server/internal/http/api/front/handlers"
	"github.com/sendcertificates/server/internal/http/middleware"
	"github.com/sendcertificates/server/internal/ratelimit"
	"github.com/sendcertificates/server/internal/session"
	"github.com/sendcertificates/server/internal/storage"
	"gorm.io/gorm"
)

// Options carries the collaborators of the front routes.
type Options struct {
	JWTSecret string
	Cookies   *session.CookieHelper
	Presigner *storage.Presigner // nil disables template image upload
	Limiter   *ratelimit.Manager // nil disables rate limiting
}

// RegisterFrontRoutes registers the public and session routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, svc *accounts.Service, opts Options) {
	if r == nil || db == nil || svc == nil {
		return
	}
	cookies := opts.Cookies
	if cookies == nil {
		cookies = session.NewCookieHelper(false)
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	public := r.Group("/api")
	authHandler := handlers.NewAuthHandler(svc, opts.JWTSecret, cookies)
	public.POST("/verify-email", authHandler.VerifyEmail)
	public.POST("/logout", authHandler.Logout)

	limited := public.Group("")
	limited.Use(middleware.RateLimit(opts.Limiter))
	limited.POST("/login", authHandler.Login)
	limited.POST("/signup", authHandler.Signup)
	limited.POST("/forgot-password", authHandler.ForgotPassword)
	limited.POST("/resend-verification", authHandler.ResendVerification)
	limited.POST("/reset-password", authHandler.ResetPassword)

	authed := r.Group("/api")
	authed.Use(session.RequireSession())
	authed.GET("/me", authHandler.Me)

	tokenHandler := handlers.NewTokenFrontHandler(svc)
	authed.GET("/tokens", tokenHandler.Balance)
	authed.GET("/user-transactions", tokenHandler.Transactions)

	templateHandler := handlers.NewTemplateHandler(db, opts.Presigner)
	authed.GET("/templates", templateHandler.List)
	authed.POST("/templates", templateHandler.Create)
	authed.POST("/templates/upload-url", templateHandler.UploadURL)
	authed.GET("/templates/:id", templateHandler.Get)
	authed.PUT("/templates/:id", templateHandler.Update)
	authed.DELETE("/templates/:id", templateHandler.Delete)

	batchHandler := handlers.NewBatchHandler(db)
	authed.GET("/batches", batchHandler.List)
	authed.GET("/batches/:id", batchHandler.Get)
	authed.GET("/batches/:id/invalid-emails", batchHandler.InvalidEmails)

	apiKeyHandler := handlers.NewAPIKeyHandler(db)
	authed.GET("/api-keys", apiKeyHandler.List)
	authed.POST("/api-keys", apiKeyHandler.Create)
	authed.DELETE("/api-keys/:id", apiKeyHandler.Revoke)
}
