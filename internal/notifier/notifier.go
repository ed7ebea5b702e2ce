package notifier

import (
	"context"
	"errors"

	"github.com/Keoroanthony/nuomi-store/internal/models"
)

// Notifier tells a customer about their order.
type Notifier interface {
	OrderPlaced(ctx context.Context, order models.Order) error
	OrderStatusChanged(ctx context.Context, order models.Order) error
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) OrderPlaced(ctx context.Context, order models.Order) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.OrderPlaced(ctx, order))
	}
	return errors.Join(errs...)
}

func (m Multi) OrderStatusChanged(ctx context.Context, order models.Order) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.OrderStatusChanged(ctx, order))
	}
	return errors.Join(errs...)
}

// Nop is used when no channel is configured.
type Nop struct{}

func (Nop) OrderPlaced(context.Context, models.Order) error        { return nil }
func (Nop) OrderStatusChanged(context.Context, models.Order) error { return nil }
