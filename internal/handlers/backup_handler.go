package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Keoroanthony/nuomi-store/internal/backup"
)

// GET /api/admin/backup
func (h *Handler) ExportBackup(c *gin.Context) {
	doc, err := h.Backup.Export(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+backup.Filename(h.now())+`"`)
	c.JSON(http.StatusOK, doc)
}

// POST /api/admin/backup takes the document as the body or as a multipart
// "file".
func (h *Handler) ImportBackup(c *gin.Context) {
	var body io.Reader = c.Request.Body
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "backup file is required"})
			return
		}
		f, err := openUpload(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()
		body = f
	}

	doc, err := backup.Parse(body)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	report, err := h.Backup.Import(ctx, doc)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.Settings != nil {
		if err := h.Settings.Invalidate(ctx); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "steps": report.Completed})
}
