package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/http/api"
	"github.com/sendcertificates/server/internal/models"
	"github.com/sendcertificates/server/internal/session"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultBatchPageSize = 10
	maxBatchPageSize     = 100
)

// BatchHandler serves the caller's issuance batches.
type BatchHandler struct {
	db *gorm.DB
}

// NewBatchHandler constructs a BatchHandler.
func NewBatchHandler(db *gorm.DB) *BatchHandler {
	return &BatchHandler{db: db}
}

// batchCount is one row of a grouped certificate count.
type batchCount struct {
	BatchID string
	Total   int64
}

// List returns one page of the caller's batches, newest first, each with
// its certificate count.
func (h *BatchHandler) List(c *gin.Context) {
	page := api.QueryInt(c, "page", 1)
	limit := api.QueryInt(c, "limit", defaultBatchPageSize)
	if limit > maxBatchPageSize {
		limit = maxBatchPageSize
	}
	ctx := c.Request.Context()
	userID := session.UserID(c)

	var total int64
	if errCount := h.db.WithContext(ctx).Model(&models.Batch{}).Where("creator_id = ?", userID).Count(&total).Error; errCount != nil {
		log.WithError(errCount).Error("count batches failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch batches"})
		return
	}
	var rows []models.Batch
	if errFind := h.db.WithContext(ctx).
		Where("creator_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&rows).Error; errFind != nil {
		log.WithError(errFind).Error("list batches failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch batches"})
		return
	}

	counts := make(map[string]int64, len(rows))
	if len(rows) > 0 {
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		var grouped []batchCount
		if errGroup := h.db.WithContext(ctx).
			Model(&models.Certificate{}).
			Select("batch_id, COUNT(*) AS total").
			Where("batch_id IN ?", ids).
			Group("batch_id").
			Scan(&grouped).Error; errGroup != nil {
			log.WithError(errGroup).Error("count batch certificates failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch batches"})
			return
		}
		for _, g := range grouped {
			counts[g.BatchID] = g.Total
		}
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":         row.ID,
			"name":       row.Name,
			"creatorId":  row.CreatorID,
			"progress":   row.Progress,
			"totalCount": row.TotalCount,
			"createdAt":  row.CreatedAt,
			"updatedAt":  row.UpdatedAt,
			"_count":     gin.H{"certificates": counts[row.ID]},
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"batches": out,
		"total":   total,
		"pages":   int((total + int64(limit) - 1) / int64(limit)),
	})
}

// Get returns one of the caller's batches with its outcome counts.
func (h *BatchHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	var row models.Batch
	errFind := h.db.WithContext(ctx).
		Where("id = ? AND creator_id = ?", strings.TrimSpace(c.Param("id")), session.UserID(c)).
		Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found"})
			return
		}
		log.WithError(errFind).Error("find batch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch batch details"})
		return
	}

	var certificates, failed, invalid int64
	for _, q := range []struct {
		model any
		dest  *int64
	}{
		{&models.Certificate{}, &certificates},
		{&models.FailedCertificate{}, &failed},
		{&models.InvalidEmail{}, &invalid},
	} {
		if errCount := h.db.WithContext(ctx).Model(q.model).Where("batch_id = ?", row.ID).Count(q.dest).Error; errCount != nil {
			log.WithError(errCount).Error("count batch rows failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch batch details"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         row.ID,
		"name":       row.Name,
		"progress":   row.Progress,
		"totalCount": row.TotalCount,
		"createdAt":  row.CreatedAt,
		"_count": gin.H{
			"certificates":       certificates,
			"failedCertificates": failed,
			"invalidEmails":      invalid,
		},
	})
}

// InvalidEmails lists the rejected addresses of one of the caller's
// batches, newest first. Batches owned by others yield an empty list.
func (h *BatchHandler) InvalidEmails(c *gin.Context) {
	var rows []models.InvalidEmail
	if errFind := h.db.WithContext(c.Request.Context()).
		Joins("JOIN batches ON batches.id = invalid_emails.batch_id").
		Where("invalid_emails.batch_id = ? AND batches.creator_id = ?", strings.TrimSpace(c.Param("id")), session.UserID(c)).
		Order("invalid_emails.created_at DESC").
		Find(&rows).Error; errFind != nil {
		log.WithError(errFind).Error("list invalid emails failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch invalid emails"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":        row.ID,
			"batchId":   row.BatchID,
			"email":     row.Email,
			"reason":    row.Reason,
			"createdAt": row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"invalidEmails": out})
}
