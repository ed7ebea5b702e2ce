package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/Keoroanthony/nuomi-store/internal/models"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDeleted       = "order.deleted"
)

// OrderEvent is published whenever an order is created, moved or removed.
type OrderEvent struct {
	Type       string             `json:"type"`
	OrderID    string             `json:"order_id"`
	UserID     string             `json:"user_id"`
	Status     models.OrderStatus `json:"status"`
	Previous   models.OrderStatus `json:"previous_status,omitempty"`
	Total      float64            `json:"total"`
	OccurredAt time.Time          `json:"occurred_at"`
}

type Publisher interface {
	PublishEvent(ctx context.Context, key string, event any) error
	Close() error
}

// Nop drops events. It is used when no brokers are configured.
type Nop struct{}

func (Nop) PublishEvent(context.Context, string, any) error { return nil }
func (Nop) Close() error                                    { return nil }

type kafkaPublisher struct {
	w *kafkaGo.Writer
}

// NewKafkaPublisher writes JSON events keyed by order ID to topic.
func NewKafkaPublisher(brokers []string, topic string) Publisher {
	return &kafkaPublisher{w: &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkaGo.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

func (k *kafkaPublisher) PublishEvent(ctx context.Context, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := k.w.WriteMessages(ctx, kafkaGo.Message{Key: []byte(key), Value: payload}); err != nil {
		return fmt.Errorf("failed to publish event for %s: %w", key, err)
	}
	return nil
}

func (k *kafkaPublisher) Close() error {
	return k.w.Close()
}

// Consume reads topic with the given consumer group until ctx is done.
func Consume(ctx context.Context, brokers []string, topic, groupID string, handler func(ctx context.Context, event OrderEvent) error) {
	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Consumer shutting down", "topic", topic)
				return
			}
			slog.Error("Error reading message", "topic", topic, "err", err)
			continue
		}

		var event OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Error("Skipping malformed event", "topic", topic, "offset", msg.Offset, "err", err)
			continue
		}
		if err := handler(ctx, event); err != nil {
			slog.Error("Error handling message", "topic", topic, "order_id", event.OrderID, "err", err)
		}
	}
}
