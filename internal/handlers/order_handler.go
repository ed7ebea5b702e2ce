package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Keoroanthony/nuomi-store/internal/auth"
	"github.com/Keoroanthony/nuomi-store/internal/models"
	"github.com/Keoroanthony/nuomi-store/internal/orders"
	"github.com/Keoroanthony/nuomi-store/internal/report"
)

type CreateOrderRequest struct {
	CustomerName       string          `json:"customer_name"`
	CustomerEmail      string          `json:"customer_email"`
	ShippingAddress    string          `json:"shipping_address"`
	Total              float64         `json:"total"`
	Items              json.RawMessage `json:"items"`
	ProofOfPurchaseURL *string         `json:"proof_of_purchase_url"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// POST /api/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user := auth.CurrentUser(c)
	order, err := h.Orders.Create(c.Request.Context(), orders.CreateOrderInput{
		UserID:             user.ID,
		CustomerName:       req.CustomerName,
		CustomerEmail:      req.CustomerEmail,
		ShippingAddress:    req.ShippingAddress,
		Total:              req.Total,
		Items:              itemsJSON(req.Items),
		ProofOfPurchaseURL: req.ProofOfPurchaseURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// itemsJSON accepts items either as the JSON encoded string checkout sends
// or as a plain array.
func itemsJSON(raw json.RawMessage) string {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		return encoded
	}
	return string(raw)
}

// GET /api/orders/mine
func (h *Handler) MyOrders(c *gin.Context) {
	list, err := h.Orders.ListByUser(c.Request.Context(), auth.CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/admin/orders
func (h *Handler) ListOrders(c *gin.Context) {
	list, err := h.Orders.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// PATCH /api/admin/orders/:id/status
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.Orders.TransitionStatus(c.Request.Context(), c.Param("id"), status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DELETE /api/admin/orders/:id
func (h *Handler) DeleteOrder(c *gin.Context) {
	if err := h.Orders.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /api/admin/orders/report?status=
func (h *Handler) OrdersReport(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := h.Orders.ListAll(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	scope := "الكل"
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseOrderStatus(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		scope = string(status)
		list = filterOrders(list, status)
	}

	symbol := h.currencySymbol(c)
	rows := make([]report.Row, 0, len(list))
	for _, o := range list {
		rows = append(rows, report.Row{
			"id":            shortID(o.ID),
			"customer_name": o.CustomerName + " (" + o.CustomerEmail + ")",
			"status":        string(o.Status),
			"created_at":    o.CreatedAt.Format("2006-01-02"),
			"total":         money(symbol, o.Total),
			"items":         o.Items,
		})
	}

	columns := []report.Column{
		{Header: "رقم الطلب", DataKey: "id"},
		{Header: "العميل", DataKey: "customer_name"},
		{Header: "الحالة", DataKey: "status"},
		{Header: "التاريخ", DataKey: "created_at"},
		{Header: "الإجمالي", DataKey: "total"},
		{Header: "المنتجات", DataKey: report.ItemsKey},
	}
	h.sendReport(c, "Orders", "تقرير الطلبات - "+scope, columns, rows)
}

func filterOrders(list []models.Order, status models.OrderStatus) []models.Order {
	out := list[:0:0]
	for _, o := range list {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

func money(symbol string, v float64) string {
	return strings.TrimSpace(symbol + " " + decimal.NewFromFloat(v).StringFixed(2))
}

// currencySymbol falls back to the default symbol when settings are down;
// a report is still useful without the configured glyph.
func (h *Handler) currencySymbol(c *gin.Context) string {
	if h.Settings == nil {
		return report.CurrencySuffix
	}
	cur, err := h.Settings.Currency(c.Request.Context())
	if err != nil {
		return report.CurrencySuffix
	}
	return cur.Symbol
}

func (h *Handler) sendReport(c *gin.Context, entity, title string, columns []report.Column, rows []report.Row) {
	renderer := h.Reports
	if renderer == nil {
		renderer = report.NewRenderer()
	}
	html := renderer.Generate(title, columns, rows)

	c.Header("Content-Disposition", `attachment; filename="`+report.Filename(entity, h.now())+`"`)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
