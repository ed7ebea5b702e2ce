package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Keoroanthony/nuomi-store/internal/products"
	"github.com/Keoroanthony/nuomi-store/internal/report"
)

// GET /api/products?category=
func (h *Handler) ListProducts(c *gin.Context) {
	list, err := h.Products.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/products/:id
func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.Products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p, "in_stock": p.InStock()})
}

// GET /api/products/average?category=
func (h *Handler) GetAveragePrice(c *gin.Context) {
	category := c.Query("category")
	avg, err := h.Products.AveragePrice(c.Request.Context(), category)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category, "average_price": avg})
}

// POST /api/admin/products
func (h *Handler) CreateProduct(c *gin.Context) {
	in, img, err := bindProduct(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if img != nil {
		defer closeUpload(img.Body)
	}
	p, err := h.Products.Create(c.Request.Context(), in, img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// PUT /api/admin/products/:id
func (h *Handler) UpdateProduct(c *gin.Context) {
	in, img, err := bindProduct(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if img != nil {
		defer closeUpload(img.Body)
	}
	p, err := h.Products.Update(c.Request.Context(), c.Param("id"), in, img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DELETE /api/admin/products/:id
func (h *Handler) DeleteProduct(c *gin.Context) {
	if err := h.Products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /api/admin/products/report?category=
func (h *Handler) ProductsReport(c *gin.Context) {
	list, err := h.Products.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}

	symbol := h.currencySymbol(c)
	rows := make([]report.Row, 0, len(list))
	for _, p := range list {
		rows = append(rows, report.Row{
			"name":       p.Name,
			"category":   string(p.Category),
			"price":      money(symbol, p.Price),
			"stock":      strconv.Itoa(p.Stock),
			"model":      p.Model,
			"size":       p.Size,
			"dimensions": p.Dimensions,
		})
	}

	columns := []report.Column{
		{Header: "الاسم", DataKey: "name"},
		{Header: "الفئة", DataKey: "category"},
		{Header: "السعر", DataKey: "price"},
		{Header: "المخزون", DataKey: "stock"},
		{Header: "الموديل", DataKey: "model"},
		{Header: "الحجم", DataKey: "size"},
		{Header: "الأبعاد", DataKey: "dimensions"},
	}
	h.sendReport(c, "Products", "تقرير المنتجات", columns, rows)
}

// bindProduct reads the product form as JSON, or as multipart with an
// optional "image" file.
func bindProduct(c *gin.Context) (products.Input, *products.Image, error) {
	var in products.Input
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		if err := c.ShouldBindJSON(&in); err != nil {
			return in, nil, errors.New("invalid request")
		}
		return in, nil, nil
	}

	if err := c.ShouldBind(&in); err != nil {
		return in, nil, errors.New("invalid form")
	}
	file, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, nil
	}
	if err != nil {
		return in, nil, errors.New("invalid image")
	}
	body, err := openUpload(file)
	if err != nil {
		return in, nil, err
	}
	return in, &products.Image{Filename: file.Filename, ContentType: file.Header.Get("Content-Type"), Body: body}, nil
}

func openUpload(file *multipart.FileHeader) (multipart.File, error) {
	f, err := file.Open()
	if err != nil {
		return nil, errors.New("unreadable upload " + file.Filename)
	}
	return f, nil
}
