package settings_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Keoroanthony/nuomi-store/internal/apperr"
	"github.com/Keoroanthony/nuomi-store/internal/cache"
	"github.com/Keoroanthony/nuomi-store/internal/db"
	"github.com/Keoroanthony/nuomi-store/internal/models"
	"github.com/Keoroanthony/nuomi-store/internal/settings"
	"github.com/Keoroanthony/nuomi-store/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) List(ctx context.Context) ([]models.Setting, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Setting), args.Error(1)
}

func (m *mockStore) Map(ctx context.Context) (map[string]*string, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).(map[string]*string)
	return v, args.Error(1)
}

func (m *mockStore) Upsert(ctx context.Context, s []models.Setting) error {
	return m.Called(ctx, s).Error(0)
}

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, key, body, contentType)
	return args.String(0), args.Error(1)
}

func strPtr(s string) *string { return &s }

func TestResolveCurrency(t *testing.T) {
	t.Run("Image URL preferred", func(t *testing.T) {
		got := settings.ResolveCurrency(map[string]*string{
			models.SettingCurrencySymbol:         strPtr("ر.س"),
			models.SettingCurrencySymbolImageURL: strPtr("https://cdn/riyal.svg"),
		})
		require.NotNil(t, got.ImageURL)
		assert.Equal(t, "https://cdn/riyal.svg", *got.ImageURL)
		assert.Equal(t, "ر.س", got.Symbol)
	})

	t.Run("Falls back to text symbol", func(t *testing.T) {
		got := settings.ResolveCurrency(map[string]*string{models.SettingCurrencySymbol: strPtr("€")})
		assert.Equal(t, settings.CurrencySettings{Symbol: "€"}, got)
		assert.Nil(t, got.ImageURL)
	})

	t.Run("Null and empty values count as absent", func(t *testing.T) {
		got := settings.ResolveCurrency(map[string]*string{
			models.SettingCurrencySymbol:         nil,
			models.SettingCurrencySymbolImageURL: strPtr(""),
		})
		assert.Equal(t, settings.CurrencySettings{Symbol: settings.DefaultCurrencySymbol}, got)
	})

	t.Run("Hardcoded default", func(t *testing.T) {
		got := settings.ResolveCurrency(nil)
		assert.Equal(t, settings.DefaultCurrencySymbol, got.Symbol)
		assert.Nil(t, got.ImageURL)
	})
}

func TestCurrencyIsCachedUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	st := &mockStore{}
	st.On("Map", mock.Anything).Return(map[string]*string{models.SettingCurrencySymbol: strPtr("€")}, nil).Twice()

	svc := settings.NewService(st, cache.NewMemory(), nil)

	for i := 0; i < 3; i++ {
		got, err := svc.Currency(ctx)
		require.NoError(t, err)
		assert.Equal(t, "€", got.Symbol)
	}
	st.AssertNumberOfCalls(t, "Map", 1)

	require.NoError(t, svc.Invalidate(ctx))
	_, err := svc.Currency(ctx)
	require.NoError(t, err)
	st.AssertNumberOfCalls(t, "Map", 2)
}

func TestCurrencyFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	st := &mockStore{}
	st.On("Map", mock.Anything).Return(nil, errors.New("db down")).Once()
	st.On("Map", mock.Anything).Return(map[string]*string{}, nil).Once()

	svc := settings.NewService(st, cache.NewMemory(), nil)

	_, err := svc.Currency(ctx)
	require.Error(t, err)

	got, err := svc.Currency(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.DefaultCurrencySymbol, got.Symbol)
	st.AssertExpectations(t)
}

func TestSaveStoreDetails(t *testing.T) {
	ctx := context.Background()
	testDB, err := db.OpenMemory(uuid.NewString())
	require.NoError(t, err)
	stores := store.New(testDB)

	up := &mockUploader{}
	up.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "public/") && strings.HasSuffix(key, "_riyal.svg")
	}), mock.Anything, "image/svg+xml").Return("https://cdn.example.com/public/riyal.svg", nil)

	svc := settings.NewService(stores.Settings, cache.NewMemory(), up)

	before, err := svc.Currency(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.DefaultCurrencySymbol, before.Symbol)

	err = svc.SaveStoreDetails(ctx, settings.StoreDetails{
		StoreName:      "NUOMI",
		CurrencyCode:   "SAR",
		CurrencySymbol: "ر.س",
		CurrencySymbolImage: &settings.Upload{
			Filename:    "riyal.svg",
			ContentType: "image/svg+xml",
			Body:        strings.NewReader("<svg/>"),
		},
	})
	require.NoError(t, err)
	up.AssertExpectations(t)

	after, err := svc.Currency(ctx)
	require.NoError(t, err)
	require.NotNil(t, after.ImageURL, "save must invalidate the cached currency")
	assert.Equal(t, "https://cdn.example.com/public/riyal.svg", *after.ImageURL)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

// slowStore holds the first Map call after it has read, until released.
type slowStore struct {
	*store.SettingStore
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowStore) Map(ctx context.Context) (map[string]*string, error) {
	values, err := s.SettingStore.Map(ctx)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return values, err
}

func TestCurrencyLookupOverlappingSave(t *testing.T) {
	caches := map[string]func(t *testing.T) cache.Cache{
		"Memory": func(*testing.T) cache.Cache { return cache.NewMemory() },
		"Redis": func(t *testing.T) cache.Cache {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return cache.NewRedis(client, 0)
		},
	}

	for name, newCache := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			testDB, err := db.OpenMemory(uuid.NewString())
			require.NoError(t, err)
			stores := store.New(testDB)
			require.NoError(t, stores.Settings.Upsert(ctx, []models.Setting{
				{Key: models.SettingCurrencySymbol, Value: strPtr("OLD")},
			}))

			st := &slowStore{SettingStore: stores.Settings, read: make(chan struct{}), release: make(chan struct{})}
			svc := settings.NewService(st, newCache(t), nil)

			done := make(chan settings.CurrencySettings)
			go func() {
				got, err := svc.Currency(ctx)
				assert.NoError(t, err)
				done <- got
			}()

			<-st.read
			require.NoError(t, svc.SaveStoreDetails(ctx, settings.StoreDetails{StoreName: "NUOMI", CurrencySymbol: "NEW"}))
			close(st.release)
			assert.Equal(t, "OLD", (<-done).Symbol)

			got, err := svc.Currency(ctx)
			require.NoError(t, err)
			assert.Equal(t, "NEW", got.Symbol)
		})
	}
}

func TestSaveStoreDetailsOrder(t *testing.T) {
	ctx := context.Background()
	up := &mockUploader{}
	up.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("https://cdn.example.com/x", nil)

	var keys []string
	st := &mockStore{}
	st.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		for _, row := range args.Get(1).([]models.Setting) {
			keys = append(keys, row.Key)
		}
	}).Return(nil)

	svc := settings.NewService(st, cache.NewMemory(), up)
	for i := 0; i < 5; i++ {
		keys = nil
		up.Calls = nil
		require.NoError(t, svc.SaveStoreDetails(ctx, settings.StoreDetails{
			StoreName:           "NUOMI",
			Logo:                &settings.Upload{Filename: "logo.png", Body: strings.NewReader("png")},
			CurrencySymbolImage: &settings.Upload{Filename: "riyal.svg", Body: strings.NewReader("<svg/>")},
		}))

		assert.Equal(t, []string{
			models.SettingStoreName,
			models.SettingCurrencyCode,
			models.SettingCurrencySymbol,
			models.SettingLogoURL,
			models.SettingCurrencySymbolImageURL,
		}, keys)
		require.Len(t, up.Calls, 2)
		assert.True(t, strings.HasSuffix(up.Calls[0].Arguments.String(1), "_logo.png"))
		assert.True(t, strings.HasSuffix(up.Calls[1].Arguments.String(1), "_riyal.svg"))
	}
}

func TestSaveStoreDetailsUploadFailure(t *testing.T) {
	st := &mockStore{}
	svc := settings.NewService(st, cache.NewMemory(), nil)

	err := svc.SaveStoreDetails(context.Background(), settings.StoreDetails{
		StoreName: "NUOMI",
		Logo:      &settings.Upload{Filename: "logo.png", Body: strings.NewReader("png")},
	})
	var upErr *apperr.UploadError
	require.True(t, errors.As(err, &upErr))
	st.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}
