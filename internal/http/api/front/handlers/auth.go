package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/accounts"
	"github.com/sendcertificates/server/internal/http/api"
	"github.com/sendcertificates/server/internal/metrics"
	"github.com/sendcertificates/server/internal/models"
	"github.com/sendcertificates/server/internal/session"
	log "github.com/sirupsen/logrus"
)

// forgotPasswordMessage is returned whether or not the account exists.
const forgotPasswordMessage = "If that email is in our database, you will receive a reset link"

// AuthHandler serves login, signup, verification and password reset.
type AuthHandler struct {
	svc     *accounts.Service
	secret  string
	cookies *session.CookieHelper
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *accounts.Service, secret string, cookies *session.CookieHelper) *AuthHandler {
	return &AuthHandler{svc: svc, secret: secret, cookies: cookies}
}

// Login verifies credentials and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	user, errLogin := h.svc.Login(c.Request.Context(), body.Email, body.Password)
	if errLogin != nil {
		metrics.ObserveLogin(false)
		api.WriteAccountError(c, errLogin, "Failed to login")
		return
	}
	token, errIssue := h.svc.IssueSession(h.secret, user)
	if errIssue != nil {
		api.WriteAccountError(c, errIssue, "Failed to login")
		return
	}
	metrics.ObserveLogin(true)
	h.cookies.Set(c, token)
	c.JSON(http.StatusOK, gin.H{
		"message":  "Login successful",
		"is_admin": user.IsAdmin,
		"user": gin.H{
			"id":             user.ID,
			"name":           user.Name,
			"email":          user.Email,
			"is_admin":       user.IsAdmin,
			"is_api_enabled": user.IsAPIEnabled,
		},
	})
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.cookies.Clear(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the caller's profile and balance.
func (h *AuthHandler) Me(c *gin.Context) {
	user, errGet := h.svc.GetUser(c.Request.Context(), session.UserID(c))
	if errGet != nil {
		api.WriteAccountError(c, errGet, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profileView(user)})
}

// Signup registers an account and sends the verification email.
func (h *AuthHandler) Signup(c *gin.Context) {
	var body struct {
		Name         string `json:"name"`
		Email        string `json:"email"`
		Password     string `json:"password"`
		Organization string `json:"organization"`
		Phone        string `json:"phone"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	user, errSignup := h.svc.Signup(c.Request.Context(), accounts.SignupInput{
		Name:         body.Name,
		Email:        body.Email,
		Password:     body.Password,
		Organization: body.Organization,
		Phone:        body.Phone,
	})
	if errSignup != nil {
		api.WriteAccountError(c, errSignup, "Failed to sign up")
		return
	}
	log.WithField("user_id", user.ID).Info("user signed up")
	c.JSON(http.StatusCreated, gin.H{
		"message": "Signup successful. Please check your email to verify your account.",
		"user":    gin.H{"id": user.ID, "name": user.Name, "email": user.Email},
	})
}

// VerifyEmail consumes a verification token.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var body struct {
		Token string `json:"token"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	if errVerify := h.svc.VerifyEmail(c.Request.Context(), body.Token); errVerify != nil {
		api.WriteAccountError(c, errVerify, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully"})
}

// ResendVerification issues a fresh verification link.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	if errResend := h.svc.ResendVerification(c.Request.Context(), body.Email); errResend != nil {
		api.WriteAccountError(c, errResend, "Failed to resend email")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification email resent"})
}

// ForgotPassword starts a password reset. The answer is the same for
// known and unknown addresses.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	if errRequest := h.svc.RequestPasswordReset(c.Request.Context(), body.Email); errRequest != nil {
		api.WriteAccountError(c, errRequest, "Failed to process password reset")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": forgotPasswordMessage})
}

// ResetPassword consumes a reset token and sets the new password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	if errReset := h.svc.ResetPassword(c.Request.Context(), body.Token, body.NewPassword); errReset != nil {
		api.WriteAccountError(c, errReset, "Failed to reset password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}

func profileView(u *models.User) gin.H {
	return gin.H{
		"id":             u.ID,
		"name":           u.Name,
		"email":          u.Email,
		"organization":   u.Organization,
		"phone":          u.Phone,
		"is_admin":       u.IsAdmin,
		"is_api_enabled": u.IsAPIEnabled,
		"tokens":         u.Tokens,
		"emailVerified":  u.EmailVerifiedAt,
		"createdAt":      u.CreatedAt,
	}
}
