// Package settings resolves store-wide configuration from the settings table.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/Keoroanthony/nuomi-store/internal/apperr"
	"github.com/Keoroanthony/nuomi-store/internal/cache"
	"github.com/Keoroanthony/nuomi-store/internal/models"
)

// DefaultCurrencySymbol is shown when no currency has been configured.
const DefaultCurrencySymbol = "ر.س"

type Store interface {
	List(ctx context.Context) ([]models.Setting, error)
	Map(ctx context.Context) (map[string]*string, error)
	Upsert(ctx context.Context, settings []models.Setting) error
}

type Uploader interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// CurrencySettings tells the UI how to print a price. When ImageURL is set
// the glyph is drawn from the image and Symbol is its alt text.
type CurrencySettings struct {
	Symbol   string  `json:"symbol"`
	ImageURL *string `json:"imageUrl"`
}

type Service struct {
	store    Store
	cache    cache.Cache
	uploader Uploader
	now      func() time.Time
}

func NewService(store Store, c cache.Cache, uploader Uploader) *Service {
	if c == nil {
		c = cache.NewMemory()
	}
	return &Service{store: store, cache: c, uploader: uploader, now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]models.Setting, error) {
	return s.store.List(ctx)
}

// Currency resolves the display currency. The first successful lookup is
// cached until Invalidate; a lookup that overlaps an Invalidate is returned
// but not cached.
func (s *Service) Currency(ctx context.Context) (CurrencySettings, error) {
	c, gen, ok, cacheErr := s.cache.Get(ctx)
	if cacheErr != nil {
		slog.Warn("Currency cache read failed", "err", cacheErr)
	} else if ok {
		return CurrencySettings(c), nil
	}

	values, err := s.store.Map(ctx)
	if err != nil {
		return CurrencySettings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	resolved := ResolveCurrency(values)

	// without a generation there is nothing safe to write against
	if cacheErr != nil {
		return resolved, nil
	}
	if stored, err := s.cache.Set(ctx, gen, cache.Currency(resolved)); err != nil {
		slog.Warn("Currency cache write failed", "err", err)
	} else if !stored {
		slog.Debug("Currency cache write skipped after invalidation")
	}
	return resolved, nil
}

// ResolveCurrency prefers the symbol image, then the text symbol, then the
// default.
func ResolveCurrency(values map[string]*string) CurrencySettings {
	out := CurrencySettings{Symbol: DefaultCurrencySymbol}
	if v := present(values, models.SettingCurrencySymbol); v != nil {
		out.Symbol = *v
	}
	if v := present(values, models.SettingCurrencySymbolImageURL); v != nil {
		url := *v
		out.ImageURL = &url
	}
	return out
}

func present(values map[string]*string, key string) *string {
	v, ok := values[key]
	if !ok || v == nil || *v == "" {
		return nil
	}
	return v
}

func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

// Upload is an image submitted with the store details form.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type StoreDetails struct {
	StoreName           string
	CurrencyCode        string
	CurrencySymbol      string
	Logo                *Upload
	CurrencySymbolImage *Upload
}

// SaveStoreDetails uploads any new images, upserts the keys and drops the
// cached currency.
func (s *Service) SaveStoreDetails(ctx context.Context, d StoreDetails) error {
	updates := []models.Setting{
		{Key: models.SettingStoreName, Value: &d.StoreName},
		{Key: models.SettingCurrencyCode, Value: &d.CurrencyCode},
		{Key: models.SettingCurrencySymbol, Value: &d.CurrencySymbol},
	}

	images := []struct {
		key string
		up  *Upload
	}{
		{models.SettingLogoURL, d.Logo},
		{models.SettingCurrencySymbolImageURL, d.CurrencySymbolImage},
	}
	for _, img := range images {
		if img.up == nil {
			continue
		}
		url, err := s.upload(ctx, img.up)
		if err != nil {
			return err
		}
		updates = append(updates, models.Setting{Key: img.key, Value: &url})
	}

	if err := s.store.Upsert(ctx, updates); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("settings saved but cache invalidation failed: %w", err)
	}
	slog.Info("Store settings saved", "keys", len(updates))
	return nil
}

func (s *Service) upload(ctx context.Context, up *Upload) (string, error) {
	if s.uploader == nil {
		return "", &apperr.UploadError{Key: up.Filename, Err: errors.New("no object storage configured")}
	}
	key := fmt.Sprintf("public/%d_%s", s.now().UnixMilli(), path.Base(up.Filename))
	return s.uploader.Put(ctx, key, up.Body, up.ContentType)
}
