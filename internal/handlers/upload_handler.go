package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/Keoroanthony/nuomi-store/internal/apperr"
	"github.com/Keoroanthony/nuomi-store/internal/auth"
)

type PresignProofRequest struct {
	Filename string `json:"filename" binding:"required"`
}

// POST /api/uploads/proof returns a signed URL the browser uploads the
// proof of purchase to, and the public URL to send with the order.
func (h *Handler) PresignProof(c *gin.Context) {
	var req PresignProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is required"})
		return
	}

	key := fmt.Sprintf("%s/%d_%s", auth.CurrentUser(c).ID, h.now().UnixMilli(), path.Base(req.Filename))
	if h.Uploads == nil {
		respondError(c, &apperr.UploadError{Key: key, Err: errors.New("no object storage configured")})
		return
	}

	signed, publicURL, err := h.Uploads.PresignUpload(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"upload_url": signed.URL,
		"method":     signed.Method,
		"headers":    signed.Headers,
		"public_url": publicURL,
	})
}
