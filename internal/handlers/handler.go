package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Keoroanthony/nuomi-store/internal/analytics"
	"github.com/Keoroanthony/nuomi-store/internal/apperr"
	"github.com/Keoroanthony/nuomi-store/internal/auth"
	"github.com/Keoroanthony/nuomi-store/internal/backup"
	"github.com/Keoroanthony/nuomi-store/internal/models"
	"github.com/Keoroanthony/nuomi-store/internal/orders"
	"github.com/Keoroanthony/nuomi-store/internal/products"
	"github.com/Keoroanthony/nuomi-store/internal/report"
	"github.com/Keoroanthony/nuomi-store/internal/settings"
	"github.com/Keoroanthony/nuomi-store/internal/storage"
)

type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Upsert(ctx context.Context, u *models.User) error
	List(ctx context.Context) ([]models.User, error)
	Delete(ctx context.Context, id string) error
}

// ProofUploader signs direct uploads of proof of purchase images.
type ProofUploader interface {
	PresignUpload(ctx context.Context, key string) (*storage.PresignedRequest, string, error)
}

type Handler struct {
	Orders    *orders.Service
	Products  *products.Service
	Settings  *settings.Service
	Backup    *backup.Service
	Analytics *analytics.Service
	Users     UserStore
	Uploads   ProofUploader
	Reports   *report.Renderer
	Now       func() time.Time
}

// Register mounts every route. Authentication handlers are only mounted when
// authn is set.
func (h *Handler) Register(r gin.IRouter, authn *auth.Authenticator) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if authn != nil {
		r.GET("/auth/login", authn.Login)
		r.GET("/auth/callback", authn.Callback)
	}
	r.POST("/auth/logout", auth.Logout)

	public := r.Group("/api")
	{
		public.GET("/products", h.ListProducts)
		public.GET("/products/average", h.GetAveragePrice)
		public.GET("/products/:id", h.GetProduct)
		public.GET("/categories", ListCategories)
		public.GET("/settings/currency", h.GetCurrency)
	}

	api := r.Group("/api", auth.RequireAuth(h.Users))
	{
		api.POST("/orders", h.CreateOrder)
		api.GET("/orders/mine", h.MyOrders)
		api.POST("/uploads/proof", h.PresignProof)
	}

	admin := r.Group("/api/admin", auth.RequireAuth(h.Users), auth.RequireAdmin())
	{
		admin.GET("/orders", h.ListOrders)
		admin.GET("/orders/report", h.OrdersReport)
		admin.PATCH("/orders/:id/status", h.UpdateOrderStatus)
		admin.DELETE("/orders/:id", h.DeleteOrder)

		admin.POST("/products", h.CreateProduct)
		admin.PUT("/products/:id", h.UpdateProduct)
		admin.DELETE("/products/:id", h.DeleteProduct)
		admin.GET("/products/report", h.ProductsReport)

		admin.GET("/customers", h.ListCustomers)
		admin.PUT("/customers/:id", h.UpdateCustomer)
		admin.DELETE("/customers/:id", h.DeleteCustomer)
		admin.GET("/customers/report", h.CustomersReport)

		admin.GET("/settings", h.GetSettings)
		admin.PUT("/settings", h.SaveSettings)

		admin.GET("/backup", h.ExportBackup)
		admin.POST("/backup", h.ImportBackup)

		admin.GET("/analytics", h.GetAnalytics)
	}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// respondError maps service errors onto status codes. The body is always
// {"error": message}.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var (
		validation *apperr.ValidationError
		invalid    *apperr.InvalidBackupError
		stock      *apperr.StockUpdateError
		upload     *apperr.UploadError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &invalid):
		status = http.StatusBadRequest
	case errors.As(err, &stock):
		status = http.StatusConflict
	case apperr.IsNotFound(err):
		status = http.StatusNotFound
	case errors.As(err, &upload):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func closeUpload(r io.Reader) {
	if closer, ok := r.(io.Closer); ok {
		_ = closer.Close()
	}
}
