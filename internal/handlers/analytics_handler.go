package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/admin/analytics
func (h *Handler) GetAnalytics(c *gin.Context) {
	summary, err := h.Analytics.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
