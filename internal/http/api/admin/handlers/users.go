package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/accounts"
	"github.com/sendcertificates/server/internal/http/api"
	"github.com/sendcertificates/server/internal/metrics"
	"github.com/sendcertificates/server/internal/session"
	log "github.com/sirupsen/logrus"
)

// UserHandler manages user account endpoints.
type UserHandler struct {
	svc *accounts.Service
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(svc *accounts.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// createUserRequest defines the request body for user creation.
type createUserRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Organization string `json:"organization"`
	Phone        string `json:"phone"`
}

// Create provisions an account and returns its generated password once.
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	user, password, errCreate := h.svc.CreateUser(c.Request.Context(), accounts.CreateUserInput{
		Name:         body.Name,
		Email:        body.Email,
		Organization: body.Organization,
		Phone:        body.Phone,
	})
	if errCreate != nil {
		api.WriteAccountError(c, errCreate, "Failed to create user")
		return
	}
	log.WithFields(log.Fields{"user_id": user.ID, "admin_id": session.UserID(c)}).Info("user created by admin")
	c.JSON(http.StatusCreated, gin.H{
		"message":           "User created successfully",
		"user":              userView(user),
		"generatedPassword": password,
	})
}

// List returns every account, newest first.
func (h *UserHandler) List(c *gin.Context) {
	rows, errList := h.svc.ListUsers(c.Request.Context(), strings.TrimSpace(c.Query("search")))
	if errList != nil {
		api.WriteAccountError(c, errList, "Failed to list users")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, userView(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// Delete removes the account named by the id query parameter along with
// everything it owns.
func (h *UserHandler) Delete(c *gin.Context) {
	callerID := session.UserID(c)
	targetID := strings.TrimSpace(c.Query("id"))
	if errDelete := h.svc.DeleteUser(c.Request.Context(), callerID, targetID); errDelete != nil {
		api.WriteAccountError(c, errDelete, "Failed to delete user")
		return
	}
	metrics.IncrementUsersDeleted()
	log.WithFields(log.Fields{"user_id": targetID, "admin_id": callerID}).Info("user deleted")
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
