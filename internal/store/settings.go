package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Keoroanthony/nuomi-store/internal/models"
)

type SettingStore struct {
	db *gorm.DB
}

func NewSettingStore(db *gorm.DB) *SettingStore {
	return &SettingStore{db: db}
}

func (s *SettingStore) List(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	if err := s.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	return settings, nil
}

// Map returns key to value; keys stored with a NULL value map to nil.
func (s *SettingStore) Map(ctx context.Context) (map[string]*string, error) {
	settings, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]*string, len(settings))
	for _, st := range settings {
		m[st.Key] = st.Value
	}
	return m, nil
}

func (s *SettingStore) Upsert(ctx context.Context, settings []models.Setting) error {
	if len(settings) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&settings).Error
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (s *SettingStore) DeleteAll(ctx context.Context) error {
	return deleteAll(ctx, s.db, &models.Setting{})
}

func (s *SettingStore) InsertAll(ctx context.Context, settings []models.Setting) error {
	if len(settings) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&settings).Error
}
