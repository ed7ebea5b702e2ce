// Package store holds the GORM-backed tables of the storefront.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Keoroanthony/nuomi-store/internal/apperr"
)

// Stores groups every table behind one database handle so multi-table work
// can be moved into a transaction.
type Stores struct {
	db       *gorm.DB
	Orders   *OrderStore
	Products *ProductStore
	Settings *SettingStore
	Users    *UserStore
}

func New(db *gorm.DB) *Stores {
	return &Stores{
		db:       db,
		Orders:   NewOrderStore(db),
		Products: NewProductStore(db),
		Settings: NewSettingStore(db),
		Users:    NewUserStore(db),
	}
}

// Transaction runs fn with stores bound to a single transaction.
func (s *Stores) Transaction(ctx context.Context, fn func(tx *Stores) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

func notFound(entity, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity, id, nil)
	}
	return err
}

func deleteAll(ctx context.Context, db *gorm.DB, model any) error {
	return db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error
}
