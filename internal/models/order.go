package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Keoroanthony/nuomi-store/internal/apperr"
)

// OrderStatus values are the labels persisted in the orders table and
// must match byte for byte.
type OrderStatus string

const (
	StatusProcessing OrderStatus = "قيد المعالجة"
	StatusFulfilled  OrderStatus = "مكتمل"
	StatusDeclined   OrderStatus = "مرفوض"
	StatusCanceled   OrderStatus = "ملغي"
)

var orderStatuses = []OrderStatus{StatusProcessing, StatusFulfilled, StatusDeclined, StatusCanceled}

func OrderStatuses() []OrderStatus {
	return append([]OrderStatus(nil), orderStatuses...)
}

func (s OrderStatus) Valid() bool {
	for _, v := range orderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	if !s.Valid() {
		return "", apperr.Invalid("status", "unknown order status %q", raw)
	}
	return s, nil
}

// LineItem is a snapshot of a product taken when the order was placed. It is
// never re-derived from the current product row.
type LineItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type Order struct {
	ID                 string      `gorm:"primaryKey;size:36" json:"id"`
	UserID             string      `gorm:"index;not null" json:"user_id"`
	CustomerName       string      `gorm:"not null" json:"customer_name"`
	CustomerEmail      string      `gorm:"not null" json:"customer_email"`
	ShippingAddress    string      `gorm:"not null" json:"shipping_address"`
	Items              []LineItem  `gorm:"serializer:json;type:text;not null" json:"items"`
	Total              float64     `gorm:"not null" json:"total"`
	Status             OrderStatus `gorm:"index;not null" json:"status"`
	ProofOfPurchaseURL *string     `json:"proof_of_purchase_url"`
	CreatedAt          time.Time   `gorm:"autoCreateTime;<-:create" json:"created_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = StatusProcessing
	}
	return nil
}
