package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Keoroanthony/nuomi-store/internal/models"
)

// GET /api/categories
func ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, models.Categories())
}
