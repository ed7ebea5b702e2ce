package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Product struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `gorm:"not null" json:"name"`
	Price      float64   `gorm:"not null" json:"price"`
	Category   Category  `gorm:"index;not null" json:"category"`
	Model      string    `json:"model"`
	Size       string    `json:"size"`
	Dimensions string    `json:"dimensions"`
	Stock      int       `gorm:"not null;default:0" json:"stock"` // may go negative
	ImageURL   string    `json:"image_url"`
	CreatedAt  time.Time `gorm:"autoCreateTime;<-:create" json:"created_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// InStock is the only availability check the storefront performs.
func (p Product) InStock() bool {
	return p.Stock > 0
}
