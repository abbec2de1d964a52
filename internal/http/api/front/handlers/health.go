package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	dbutil "github.com/sendcertificates/server/internal/db"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HealthHandler reports store reachability.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz answers 200 when the store responds to a ping.
func (h *HealthHandler) Healthz(c *gin.Context) {
	if errPing := dbutil.Ping(c.Request.Context(), h.db); errPing != nil {
		log.WithError(errPing).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
