package products

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/Keoroanthony/nuomi-store/internal/apperr"
	"github.com/Keoroanthony/nuomi-store/internal/models"
)

type Store interface {
	Create(ctx context.Context, p *models.Product) error
	Save(ctx context.Context, p *models.Product) error
	Get(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, category models.Category) ([]models.Product, error)
	Delete(ctx context.Context, id string) error
	AveragePrice(ctx context.Context, category models.Category) (float64, error)
}

type ImageStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(raw string) (string, bool)
}

// Image is a product photo submitted with the product form.
type Image struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type Input struct {
	Name       string  `json:"name" form:"name"`
	Price      float64 `json:"price" form:"price"`
	Category   string  `json:"category" form:"category"`
	Model      string  `json:"model" form:"model"`
	Size       string  `json:"size" form:"size"`
	Dimensions string  `json:"dimensions" form:"dimensions"`
	Stock      int     `json:"stock" form:"stock"`
}

type Service struct {
	store  Store
	images ImageStore
	now    func() time.Time
}

func NewService(store Store, images ImageStore) *Service {
	return &Service{store: store, images: images, now: time.Now}
}

func (s *Service) List(ctx context.Context, category string) ([]models.Product, error) {
	var c models.Category
	if category != "" {
		var err error
		if c, err = models.ParseCategory(category); err != nil {
			return nil, err
		}
	}
	return s.store.List(ctx, c)
}

// AveragePrice averages prices over one category, or all products when
// category is empty.
func (s *Service) AveragePrice(ctx context.Context, category string) (float64, error) {
	var c models.Category
	if category != "" {
		var err error
		if c, err = models.ParseCategory(category); err != nil {
			return 0, err
		}
	}
	return s.store.AveragePrice(ctx, c)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Product, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input, img *Image) (*models.Product, error) {
	p := &models.Product{}
	if err := apply(p, in); err != nil {
		return nil, err
	}
	if img != nil {
		url, err := s.upload(ctx, img)
		if err != nil {
			return nil, err
		}
		p.ImageURL = url
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	slog.Info("Product created", "product_id", p.ID, "category", p.Category)
	return p, nil
}

// Update replaces the editable fields. A new image replaces the stored one.
func (s *Service) Update(ctx context.Context, id string, in Input, img *Image) (*models.Product, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(p, in); err != nil {
		return nil, err
	}

	oldImage := p.ImageURL
	if img != nil {
		if p.ImageURL, err = s.upload(ctx, img); err != nil {
			return nil, err
		}
	}

	if err := s.store.Save(ctx, p); err != nil {
		return nil, err
	}
	if img != nil && oldImage != "" {
		if err := s.removeImage(ctx, oldImage); err != nil {
			slog.Warn("Failed to remove replaced product image", "product_id", id, "err", err)
		}
	}
	slog.Info("Product updated", "product_id", id)
	return p, nil
}

// Delete removes the stored image first; if that fails the product is kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.ImageURL != "" {
		if err := s.removeImage(ctx, p.ImageURL); err != nil {
			return err
		}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("Product deleted", "product_id", id)
	return nil
}

func apply(p *models.Product, in Input) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperr.Invalid("name", "is required")
	}
	if in.Price < 0 {
		return apperr.Invalid("price", "must not be negative")
	}
	category, err := models.ParseCategory(in.Category)
	if err != nil {
		return err
	}

	p.Name = name
	p.Price = in.Price
	p.Category = category
	p.Model = in.Model
	p.Size = in.Size
	p.Dimensions = in.Dimensions
	p.Stock = in.Stock
	return nil
}

func (s *Service) upload(ctx context.Context, img *Image) (string, error) {
	if s.images == nil {
		return "", &apperr.UploadError{Key: img.Filename, Err: errors.New("no object storage configured")}
	}
	key := fmt.Sprintf("products/%d_%s", s.now().UnixMilli(), path.Base(img.Filename))
	return s.images.Put(ctx, key, img.Body, img.ContentType)
}

func (s *Service) removeImage(ctx context.Context, url string) error {
	if s.images == nil {
		return nil
	}
	key, ok := s.images.KeyFromURL(url)
	if !ok {
		// hosted elsewhere, nothing of ours to remove
		return nil
	}
	return s.images.Delete(ctx, key)
}
