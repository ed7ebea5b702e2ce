package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Keoroanthony/nuomi-store/internal/apperr"
	"github.com/Keoroanthony/nuomi-store/internal/models"
)

type ProductStore struct {
	db *gorm.DB
}

func NewProductStore(db *gorm.DB) *ProductStore {
	return &ProductStore{db: db}
}

func (s *ProductStore) Create(ctx context.Context, p *models.Product) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// Save writes every editable column of p. Stock is included; admins edit it
// directly from the product form.
func (s *ProductStore) Save(ctx context.Context, p *models.Product) error {
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", p.ID).
		Select("name", "price", "category", "model", "size", "dimensions", "stock", "image_url").
		Updates(p)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product", p.ID, nil)
	}
	return nil
}

func (s *ProductStore) Get(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound("product", id, err)
	}
	return &p, nil
}

// List returns products ordered by name; an empty category means all.
func (s *ProductStore) List(ctx context.Context, category models.Category) ([]models.Product, error) {
	q := s.db.WithContext(ctx).Order("name")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	return products, nil
}

func (s *ProductStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product", id, nil)
	}
	return nil
}

// DecrementStock subtracts quantity in a single UPDATE so concurrent
// fulfillments never lose an update. There is no floor at zero.
func (s *ProductStore) DecrementStock(ctx context.Context, productID string, quantity int) error {
	return s.adjustStock(ctx, productID, quantity, "stock - ?")
}

// IncrementStock is the compensating counterpart of DecrementStock.
func (s *ProductStore) IncrementStock(ctx context.Context, productID string, quantity int) error {
	return s.adjustStock(ctx, productID, quantity, "stock + ?")
}

func (s *ProductStore) adjustStock(ctx context.Context, productID string, quantity int, expr string) error {
	if quantity <= 0 {
		return apperr.Invalid("quantity", "must be a positive integer, got %d", quantity)
	}
	res := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr(expr, quantity))
	if res.Error != nil {
		return fmt.Errorf("failed to update product stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product", productID, nil)
	}
	return nil
}

func (s *ProductStore) DeleteAll(ctx context.Context) error {
	return deleteAll(ctx, s.db, &models.Product{})
}

func (s *ProductStore) InsertAll(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(&products, 100).Error
}

// AveragePrice averages the price of every product, or of one category.
func (s *ProductStore) AveragePrice(ctx context.Context, category models.Category) (float64, error) {
	var avg float64
	q := s.db.WithContext(ctx).Model(&models.Product{})
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Select("COALESCE(AVG(price), 0)").Scan(&avg).Error; err != nil {
		return 0, err
	}
	return avg, nil
}
