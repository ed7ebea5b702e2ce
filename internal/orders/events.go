package orders

import (
	"context"
	"log/slog"

	"github.com/Keoroanthony/nuomi-store/internal/apperr"
	"github.com/Keoroanthony/nuomi-store/internal/messaging"
	"github.com/Keoroanthony/nuomi-store/internal/notifier"
)

// NotifyHandler turns consumed order events into customer notifications.
// It is used instead of inline notification when events go through Kafka.
func NotifyHandler(orders OrderRepository, n notifier.Notifier) func(ctx context.Context, event messaging.OrderEvent) error {
	return func(ctx context.Context, event messaging.OrderEvent) error {
		if event.Type == messaging.EventOrderDeleted {
			return nil
		}

		order, err := orders.Get(ctx, event.OrderID)
		if apperr.IsNotFound(err) {
			slog.Info("Skipping event for removed order", "order_id", event.OrderID, "type", event.Type)
			return nil
		}
		if err != nil {
			return err
		}

		if event.Type == messaging.EventOrderPlaced {
			return n.OrderPlaced(ctx, *order)
		}
		// the event carries the status at publish time
		order.Status = event.Status
		return n.OrderStatusChanged(ctx, *order)
	}
}
