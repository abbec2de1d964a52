package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/models"
	"github.com/sendcertificates/server/internal/session"
	"github.com/sendcertificates/server/internal/storage"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const templateNotFound = "Template not found or unauthorized"

var errTemplateNotFound = errors.New("template not found")

// TemplateHandler serves the caller's certificate templates.
type TemplateHandler struct {
	db        *gorm.DB
	presigner *storage.Presigner
}

// NewTemplateHandler constructs a TemplateHandler. presigner may be nil
// when object storage is not configured.
func NewTemplateHandler(db *gorm.DB, presigner *storage.Presigner) *TemplateHandler {
	return &TemplateHandler{db: db, presigner: presigner}
}

// templateRequest defines the request body for create and update. The
// JSON array fields are kept raw and validated by shape only.
type templateRequest struct {
	Name           string          `json:"name"`
	ImageURL       string          `json:"imageUrl"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	Placeholders   json.RawMessage `json:"placeholders"`
	Signatures     json.RawMessage `json:"signatures"`
	QRPlaceholders json.RawMessage `json:"qrPlaceholders"`
}

// templateFields is a validated templateRequest.
type templateFields struct {
	name           string
	imageURL       string
	width          int
	height         int
	placeholders   datatypes.JSON
	signatures     datatypes.JSON
	qrPlaceholders datatypes.JSON
}

// validate checks body and returns the public error message on failure.
// Updates may omit the dimensions; zero then keeps the stored values.
func (body templateRequest) validate(update bool) (templateFields, string) {
	out := templateFields{
		name:     strings.TrimSpace(body.Name),
		imageURL: strings.TrimSpace(body.ImageURL),
		width:    body.Width,
		height:   body.Height,
	}
	if out.name == "" || out.imageURL == "" {
		return out, "Missing required fields: 'name' and 'imageUrl'"
	}
	switch {
	case out.width < 0 || out.height < 0:
		return out, "Invalid image dimensions: width and height must be positive"
	case !update && (out.width == 0 || out.height == 0):
		return out, "Invalid image dimensions: width and height are required"
	}

	signatures, ok := jsonArray(body.Signatures)
	if !ok {
		return out, "Signatures must be an array"
	}
	var items []map[string]any
	if errDecode := json.Unmarshal(signatures, &items); errDecode != nil {
		return out, "Each signature must have name, position, and style properties"
	}
	for _, item := range items {
		if !truthy(item["name"]) || !truthy(item["position"]) || !truthy(item["style"]) {
			return out, "Each signature must have name, position, and style properties"
		}
	}
	out.signatures = signatures

	if out.qrPlaceholders, ok = jsonArray(body.QRPlaceholders); !ok {
		return out, "QR placeholders must be an array"
	}
	if out.placeholders, ok = jsonArray(body.Placeholders); !ok {
		return out, "Placeholders must be an array"
	}
	return out, ""
}

// jsonArray returns raw compacted when it is a JSON array, [] when it is
// absent or falsy (null, false, 0, ""), and false otherwise.
func jsonArray(raw json.RawMessage) (datatypes.JSON, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return datatypes.JSON("[]"), true
	}
	var items []json.RawMessage
	if errDecode := json.Unmarshal(trimmed, &items); errDecode != nil {
		var scalar any
		if json.Unmarshal(trimmed, &scalar) == nil && !truthy(scalar) {
			return datatypes.JSON("[]"), true
		}
		return nil, false
	}
	if items == nil {
		return datatypes.JSON("[]"), true
	}
	var buf bytes.Buffer
	if errCompact := json.Compact(&buf, trimmed); errCompact != nil {
		return nil, false
	}
	return datatypes.JSON(buf.Bytes()), true
}

// truthy mirrors how a loosely typed client treats a property as set.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case float64:
		return val != 0
	default:
		return true
	}
}

func jsonOrEmpty(v datatypes.JSON) json.RawMessage {
	if len(v) == 0 {
		return json.RawMessage("[]")
	}
	return json.RawMessage(v)
}

func templateSummary(t *models.Template) gin.H {
	return gin.H{
		"id":             t.ID,
		"name":           t.Name,
		"imageUrl":       t.ImageURL,
		"placeholders":   jsonOrEmpty(t.Placeholders),
		"signatures":     jsonOrEmpty(t.Signatures),
		"qrPlaceholders": jsonOrEmpty(t.QRPlaceholders),
	}
}

func templateDetail(t *models.Template) gin.H {
	out := templateSummary(t)
	out["width"] = t.Width
	out["height"] = t.Height
	out["creatorId"] = t.CreatorID
	out["createdAt"] = t.CreatedAt
	out["updatedAt"] = t.UpdatedAt
	return out
}

// List returns the caller's templates.
func (h *TemplateHandler) List(c *gin.Context) {
	var rows []models.Template
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("creator_id = ?", session.UserID(c)).
		Order("created_at DESC").
		Find(&rows).Error; errFind != nil {
		log.WithError(errFind).Error("list templates failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch templates"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, templateSummary(&rows[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Create stores a new template owned by the caller.
func (h *TemplateHandler) Create(c *gin.Context) {
	var body templateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	fields, msg := body.validate(false)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	row := models.Template{
		CreatorID:      session.UserID(c),
		Name:           fields.name,
		ImageURL:       fields.imageURL,
		Width:          fields.width,
		Height:         fields.height,
		Placeholders:   fields.placeholders,
		Signatures:     fields.signatures,
		QRPlaceholders: fields.qrPlaceholders,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).Error("create template failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create template"})
		return
	}
	c.JSON(http.StatusCreated, templateDetail(&row))
}

// Get returns one of the caller's templates.
func (h *TemplateHandler) Get(c *gin.Context) {
	row, errFind := h.findOwned(c)
	if errFind != nil {
		h.writeFindError(c, errFind, "Failed to fetch template")
		return
	}
	c.JSON(http.StatusOK, templateDetail(row))
}

// Update replaces the caller's template fields. Dimensions left out of the
// body keep their stored values.
func (h *TemplateHandler) Update(c *gin.Context) {
	var body templateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	fields, msg := body.validate(true)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	changes := map[string]any{
		"name":            fields.name,
		"image_url":       fields.imageURL,
		"placeholders":    fields.placeholders,
		"signatures":      fields.signatures,
		"qr_placeholders": fields.qrPlaceholders,
	}
	if fields.width > 0 {
		changes["width"] = fields.width
	}
	if fields.height > 0 {
		changes["height"] = fields.height
	}
	id := strings.TrimSpace(c.Param("id"))
	userID := session.UserID(c)
	res := h.db.WithContext(c.Request.Context()).
		Model(&models.Template{}).
		Where("id = ? AND creator_id = ?", id, userID).
		Updates(changes)
	if res.Error != nil {
		log.WithError(res.Error).Error("update template failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update template"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": templateNotFound})
		return
	}
	row, errFind := h.findOwned(c)
	if errFind != nil {
		h.writeFindError(c, errFind, "Failed to update template")
		return
	}
	c.JSON(http.StatusOK, templateDetail(row))
}

// Delete removes the caller's template. Certificates rendered from it are
// kept and unlinked.
func (h *TemplateHandler) Delete(c *gin.Context) {
	row, errFind := h.findOwned(c)
	if errFind != nil {
		h.writeFindError(c, errFind, "Failed to delete template")
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errUnlink := tx.Model(&models.Certificate{}).
			Where("template_id = ?", row.ID).
			Update("template_id", nil).Error; errUnlink != nil {
			return errUnlink
		}
		return tx.Where("id = ? AND creator_id = ?", row.ID, row.CreatorID).Delete(&models.Template{}).Error
	})
	if errTx != nil {
		log.WithError(errTx).WithField("template_id", row.ID).Error("delete template failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete template"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UploadURL presigns a direct upload of a template background image.
func (h *TemplateHandler) UploadURL(c *gin.Context) {
	if h.presigner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image upload is not configured"})
		return
	}
	var body struct {
		ContentType string `json:"contentType"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	upload, errPresign := h.presigner.PresignTemplateUpload(c.Request.Context(), session.UserID(c), body.ContentType)
	if errPresign != nil {
		if errors.Is(errPresign, storage.ErrUnsupportedContentType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported image type"})
			return
		}
		log.WithError(errPresign).Error("presign template upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create upload URL"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key":       upload.Key,
		"uploadUrl": upload.UploadURL,
		"imageUrl":  upload.PublicURL,
		"expiresAt": upload.ExpiresAt,
	})
}

func (h *TemplateHandler) findOwned(c *gin.Context) (*models.Template, error) {
	var row models.Template
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND creator_id = ?", strings.TrimSpace(c.Param("id")), session.UserID(c)).
		Take(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, errTemplateNotFound
	}
	if errFind != nil {
		return nil, errFind
	}
	return &row, nil
}

func (h *TemplateHandler) writeFindError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, errTemplateNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": templateNotFound})
		return
	}
	log.WithError(err).Error(fallback)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}
