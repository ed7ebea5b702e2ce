package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Keoroanthony/nuomi-store/internal/apperr"
	"github.com/Keoroanthony/nuomi-store/internal/messaging"
	"github.com/Keoroanthony/nuomi-store/internal/models"
	"github.com/Keoroanthony/nuomi-store/internal/notifier"
	"github.com/Keoroanthony/nuomi-store/internal/utils"
)

// totalTolerance is how far a client supplied total may drift from the
// recomputed one before it is reported.
var totalTolerance = decimal.RequireFromString("0.01")

type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
	Delete(ctx context.Context, id string) error
}

type StockRepository interface {
	DecrementStock(ctx context.Context, productID string, quantity int) error
	IncrementStock(ctx context.Context, productID string, quantity int) error
}

type Service struct {
	orders    OrderRepository
	stock     StockRepository
	publisher messaging.Publisher
	notifier  notifier.Notifier
	now       func() time.Time

	wg sync.WaitGroup
}

func NewService(orders OrderRepository, stock StockRepository, publisher messaging.Publisher, n notifier.Notifier) *Service {
	if publisher == nil {
		publisher = messaging.Nop{}
	}
	if n == nil {
		n = notifier.Nop{}
	}
	return &Service{orders: orders, stock: stock, publisher: publisher, notifier: n, now: time.Now}
}

// CreateOrderInput is the checkout payload. Items arrives JSON encoded.
type CreateOrderInput struct {
	UserID             string  `json:"user_id"`
	CustomerName       string  `json:"customer_name"`
	CustomerEmail      string  `json:"customer_email"`
	ShippingAddress    string  `json:"shipping_address"`
	Total              float64 `json:"total"`
	Items              string  `json:"items"`
	ProofOfPurchaseURL *string `json:"proof_of_purchase_url"`
}

func (s *Service) Create(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	items, err := parseItems(in.Items)
	if err != nil {
		return nil, err
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	total := Total(items)
	if total.Sub(decimal.NewFromFloat(in.Total)).Abs().GreaterThan(totalTolerance) {
		slog.Warn("Client total does not match line items, using recomputed total",
			"user_id", in.UserID, "client_total", in.Total, "total", total.StringFixed(2))
	}

	order := &models.Order{
		UserID:             in.UserID,
		CustomerName:       strings.TrimSpace(in.CustomerName),
		CustomerEmail:      strings.TrimSpace(in.CustomerEmail),
		ShippingAddress:    strings.TrimSpace(in.ShippingAddress),
		Items:              items,
		Total:              total.InexactFloat64(),
		Status:             models.StatusProcessing,
		ProofOfPurchaseURL: in.ProofOfPurchaseURL,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	slog.Info("Order created", "order_id", order.ID, "user_id", order.UserID, "total", order.Total)
	s.announce(messaging.EventOrderPlaced, *order, "")
	return order, nil
}

// Total sums price times quantity over the line item snapshots.
func Total(items []models.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum.Round(2)
}

func parseItems(raw string) ([]models.LineItem, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperr.Invalid("items", "at least one item is required")
	}
	var items []models.LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, apperr.Invalid("items", "must be a JSON array of line items: %v", err)
	}
	if len(items) == 0 {
		return nil, apperr.Invalid("items", "at least one item is required")
	}
	for i, it := range items {
		switch {
		case it.ID == "":
			return nil, apperr.Invalid("items", "item %d has no product id", i)
		case it.Quantity <= 0:
			return nil, apperr.Invalid("items", "item %d quantity must be positive", i)
		case it.Price < 0:
			return nil, apperr.Invalid("items", "item %d price must not be negative", i)
		}
	}
	return items, nil
}

func validate(in CreateOrderInput) error {
	if in.UserID == "" {
		return apperr.Invalid("user_id", "is required")
	}
	if len([]rune(strings.TrimSpace(in.CustomerName))) < 2 {
		return apperr.Invalid("customer_name", "must be at least 2 characters")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(in.CustomerEmail)); err != nil {
		return apperr.Invalid("customer_email", "is not a valid email address")
	}
	if len([]rune(strings.TrimSpace(in.ShippingAddress))) < 5 {
		return apperr.Invalid("shipping_address", "must be at least 5 characters")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Order, error) {
	return s.orders.Get(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context) ([]models.Order, error) {
	return s.orders.ListAll(ctx)
}

// TransitionStatus moves an order to status. Moving to fulfilled from any
// other status first decrements stock for every line item; if any decrement
// fails the ones that applied are reverted and the status is left untouched.
func (s *Service) TransitionStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	if !status.Valid() {
		return apperr.Invalid("status", "unknown order status %q", status)
	}

	var previous models.OrderStatus
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if status == models.StatusFulfilled {
			if apperr.IsNotFound(err) {
				return err
			}
			return apperr.NotFound("order", orderID, err)
		}
		// other targets only need the status write to find the row
		if !apperr.IsNotFound(err) {
			slog.Warn("Could not load order before status change", "order_id", orderID, "err", err)
		}
	} else {
		previous = order.Status
	}

	if status == models.StatusFulfilled && order.Status != models.StatusFulfilled {
		if err := s.decrementAll(ctx, order); err != nil {
			return err
		}
	}

	if err := s.orders.UpdateStatus(ctx, orderID, status); err != nil {
		if apperr.IsNotFound(err) {
			return err
		}
		return &apperr.StatusWriteError{OrderID: orderID, Err: err}
	}

	slog.Info("Order status updated", "order_id", orderID, "from", previous, "to", status)
	if order != nil {
		order.Status = status
		s.announce(messaging.EventOrderStatusChanged, *order, previous)
	}
	return nil
}

func (s *Service) decrementAll(ctx context.Context, order *models.Order) error {
	steps := &utils.Steps{RunAll: true, Compensate: true}
	byStep := make(map[string]models.LineItem, len(order.Items))

	for _, item := range order.Items {
		item := item
		name := fmt.Sprintf("%s x%d", item.ID, item.Quantity)
		byStep[name] = item
		steps.AddStep(utils.Step{
			Name: name,
			Run: func(ctx context.Context) error {
				return s.stock.DecrementStock(ctx, item.ID, item.Quantity)
			},
			Compensate: func(ctx context.Context) error {
				return s.stock.IncrementStock(ctx, item.ID, item.Quantity)
			},
		})
	}

	_, err := steps.Execute(ctx)
	if err == nil {
		return nil
	}

	var stepErr *utils.StepError
	if !errors.As(err, &stepErr) {
		return err
	}

	failures := make([]apperr.StockFailure, 0, len(stepErr.Report.Failed))
	for _, f := range stepErr.Report.Failed {
		item := byStep[f.Name]
		failures = append(failures, apperr.StockFailure{ProductID: item.ID, Quantity: item.Quantity, Err: f.Err})
	}
	if stepErr.CompensationErr != nil {
		slog.Error("Failed to restore stock after aborted fulfillment",
			"order_id", order.ID, "err", stepErr.CompensationErr)
	}
	slog.Warn("Fulfillment aborted", "order_id", order.ID,
		"failed", len(failures), "restored", stepErr.Report.Compensated)
	return &apperr.StockUpdateError{Failures: failures}
}

// Delete removes the order. Stock is not restored, even for fulfilled orders.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return err
	}
	slog.Info("Order deleted", "order_id", orderID, "status", order.Status)
	s.announce(messaging.EventOrderDeleted, *order, "")
	return nil
}

// Wait blocks until every background publish and notification has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) announce(eventType string, order models.Order, previous models.OrderStatus) {
	event := messaging.OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		Previous:   previous,
		Total:      order.Total,
		OccurredAt: s.now().UTC(),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.publisher.PublishEvent(ctx, order.ID, event); err != nil {
			slog.Error("Failed to publish order event", "order_id", order.ID, "type", eventType, "err", err)
		}

		var err error
		switch eventType {
		case messaging.EventOrderPlaced:
			err = s.notifier.OrderPlaced(ctx, order)
		case messaging.EventOrderStatusChanged:
			err = s.notifier.OrderStatusChanged(ctx, order)
		}
		if err != nil {
			slog.Error("Failed to notify customer", "order_id", order.ID, "type", eventType, "err", err)
		}
	}()
}
