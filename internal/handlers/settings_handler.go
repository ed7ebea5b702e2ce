package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Keoroanthony/nuomi-store/internal/settings"
)

type SaveSettingsRequest struct {
	StoreName      string `form:"store_name" json:"store_name"`
	CurrencyCode   string `form:"currency_code" json:"currency_code"`
	CurrencySymbol string `form:"currency_symbol" json:"currency_symbol"`
}

// GET /api/settings/currency
func (h *Handler) GetCurrency(c *gin.Context) {
	cur, err := h.Settings.Currency(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cur)
}

// GET /api/admin/settings
func (h *Handler) GetSettings(c *gin.Context) {
	list, err := h.Settings.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make(map[string]*string, len(list))
	for _, s := range list {
		out[s.Key] = s.Value
	}
	c.JSON(http.StatusOK, out)
}

// PUT /api/admin/settings accepts JSON, or multipart with optional "logo"
// and "currency_symbol_image" files.
func (h *Handler) SaveSettings(c *gin.Context) {
	var req SaveSettingsRequest
	details := settings.StoreDetails{}

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}
		for field, dst := range map[string]**settings.Upload{
			"logo":                  &details.Logo,
			"currency_symbol_image": &details.CurrencySymbolImage,
		} {
			file, err := c.FormFile(field)
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + field})
				return
			}
			body, err := openUpload(file)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			defer closeUpload(body)
			*dst = &settings.Upload{Filename: file.Filename, ContentType: file.Header.Get("Content-Type"), Body: body}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	details.StoreName = req.StoreName
	details.CurrencyCode = req.CurrencyCode
	details.CurrencySymbol = req.CurrencySymbol

	if err := h.Settings.SaveStoreDetails(c.Request.Context(), details); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
