package products_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Keoroanthony/nuomi-store/internal/apperr"
	"github.com/Keoroanthony/nuomi-store/internal/db"
	"github.com/Keoroanthony/nuomi-store/internal/models"
	"github.com/Keoroanthony/nuomi-store/internal/products"
	"github.com/Keoroanthony/nuomi-store/internal/store"
)

const cdn = "https://cdn.example.com/"

type mockImages struct {
	mock.Mock
}

func (m *mockImages) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	args := m.Called(key, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockImages) Delete(ctx context.Context, key string) error {
	return m.Called(key).Error(0)
}

func (m *mockImages) KeyFromURL(raw string) (string, bool) {
	if !strings.HasPrefix(raw, cdn) {
		return "", false
	}
	return strings.TrimPrefix(raw, cdn), true
}

func setup(t *testing.T) (*products.Service, *mockImages, *store.Stores) {
	t.Helper()
	testDB, err := db.OpenMemory(uuid.NewString())
	require.NoError(t, err)
	stores := store.New(testDB)
	images := &mockImages{}
	return products.NewService(stores.Products, images), images, stores
}

func kitchen() products.Input {
	return products.Input{Name: "Modern Kitchen", Price: 12500, Category: "مطابخ", Stock: 2, Dimensions: "300x60x90"}
}

func TestCreateValidates(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input products.Input
		field string
	}{
		{"Missing name", products.Input{Category: "مطابخ"}, "name"},
		{"Negative price", products.Input{Name: "x", Price: -1, Category: "مطابخ"}, "price"},
		{"Unknown category", products.Input{Name: "x", Category: "Kitchens"}, "category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input, nil)
			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCreateWithImageAndList(t *testing.T) {
	svc, images, _ := setup(t)
	ctx := context.Background()
	images.On("Put", mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "products/") && strings.HasSuffix(key, "_kitchen.jpg")
	}), "image/jpeg").Return(cdn+"products/1_kitchen.jpg", nil)

	p, err := svc.Create(ctx, kitchen(), &products.Image{Filename: "../kitchen.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpg")})
	require.NoError(t, err)
	assert.Equal(t, cdn+"products/1_kitchen.jpg", p.ImageURL)
	assert.True(t, p.InStock())

	_, err = svc.Create(ctx, products.Input{Name: "Hinge", Price: 15, Category: "اكسسوارات خزائن"}, nil)
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	kitchens, err := svc.List(ctx, "مطابخ")
	require.NoError(t, err)
	require.Len(t, kitchens, 1)
	assert.Equal(t, p.ID, kitchens[0].ID)

	_, err = svc.List(ctx, "sofas")
	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestUpdateReplacesImage(t *testing.T) {
	svc, images, _ := setup(t)
	ctx := context.Background()
	images.On("Put", mock.Anything, "image/png").Return(cdn+"products/old.png", nil).Once()
	images.On("Put", mock.Anything, "image/png").Return(cdn+"products/new.png", nil).Once()
	images.On("Delete", "products/old.png").Return(nil)

	p, err := svc.Create(ctx, kitchen(), &products.Image{Filename: "old.png", ContentType: "image/png", Body: strings.NewReader("a")})
	require.NoError(t, err)

	in := kitchen()
	in.Stock = 0
	updated, err := svc.Update(ctx, p.ID, in, &products.Image{Filename: "new.png", ContentType: "image/png", Body: strings.NewReader("b")})
	require.NoError(t, err)
	assert.Equal(t, cdn+"products/new.png", updated.ImageURL)
	assert.False(t, updated.InStock())
	images.AssertExpectations(t)

	_, err = svc.Update(ctx, "missing", kitchen(), nil)
	var nf *apperr.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestDeleteRemovesImageFirst(t *testing.T) {
	svc, images, stores := setup(t)
	ctx := context.Background()

	withImage := &models.Product{Name: "Shelf", Category: models.CategoryDecor, ImageURL: cdn + "products/shelf.jpg"}
	external := &models.Product{Name: "Vase", Category: models.CategoryDecor, ImageURL: "https://elsewhere.example.com/vase.jpg"}
	require.NoError(t, stores.Products.Create(ctx, withImage))
	require.NoError(t, stores.Products.Create(ctx, external))

	images.On("Delete", "products/shelf.jpg").Return(&apperr.UploadError{Key: "products/shelf.jpg", Err: errors.New("denied")}).Once()
	err := svc.Delete(ctx, withImage.ID)
	var upErr *apperr.UploadError
	require.True(t, errors.As(err, &upErr))
	_, err = svc.Get(ctx, withImage.ID)
	require.NoError(t, err, "product is kept when its image could not be removed")

	images.On("Delete", "products/shelf.jpg").Return(nil).Once()
	require.NoError(t, svc.Delete(ctx, withImage.ID))
	_, err = svc.Get(ctx, withImage.ID)
	var nf *apperr.NotFoundError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, svc.Delete(ctx, external.ID))
	images.AssertNumberOfCalls(t, "Delete", 2)
}
