package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Keoroanthony/nuomi-store/internal/apperr"
	"github.com/Keoroanthony/nuomi-store/internal/db"
	"github.com/Keoroanthony/nuomi-store/internal/messaging"
	"github.com/Keoroanthony/nuomi-store/internal/models"
	"github.com/Keoroanthony/nuomi-store/internal/orders"
	"github.com/Keoroanthony/nuomi-store/internal/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.OrderEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(messaging.OrderEvent))
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingNotifier struct {
	mu      sync.Mutex
	placed  []string
	changed []models.OrderStatus
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, o models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.placed = append(n.placed, o.ID)
	return nil
}

func (n *recordingNotifier) OrderStatusChanged(_ context.Context, o models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, o.Status)
	return errors.New("smtp down")
}

type fixture struct {
	stores *store.Stores
	svc    *orders.Service
	pub    *recordingPublisher
	notes  *recordingNotifier
	p1, p2 *models.Product
}

func setup(t *testing.T) *fixture {
	t.Helper()
	testDB, err := db.OpenMemory(uuid.NewString())
	require.NoError(t, err)
	stores := store.New(testDB)

	ctx := context.Background()
	p1 := &models.Product{Name: "Oak Table", Price: 450, Category: models.CategoryDecor, Stock: 10}
	p2 := &models.Product{Name: "Pantry Unit", Price: 900, Category: models.CategoryCabinets, Stock: 4}
	require.NoError(t, stores.Products.Create(ctx, p1))
	require.NoError(t, stores.Products.Create(ctx, p2))

	pub := &recordingPublisher{}
	notes := &recordingNotifier{}
	return &fixture{
		stores: stores,
		svc:    orders.NewService(stores.Orders, stores.Products, pub, notes),
		pub:    pub,
		notes:  notes,
		p1:     p1,
		p2:     p2,
	}
}

func (f *fixture) placeOrder(t *testing.T, items []models.LineItem) *models.Order {
	t.Helper()
	o := &models.Order{
		UserID:          "user-1",
		CustomerName:    "Sara Ali",
		CustomerEmail:   "sara@example.com",
		ShippingAddress: "King Fahd Rd, Riyadh",
		Items:           items,
		Total:           orders.Total(items).InexactFloat64(),
	}
	require.NoError(t, f.stores.Orders.Create(context.Background(), o))
	return o
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.stores.Products.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) status(t *testing.T, id string) models.OrderStatus {
	t.Helper()
	o, err := f.stores.Orders.Get(context.Background(), id)
	require.NoError(t, err)
	return o.Status
}

func TestCreateOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("Recomputes total and defaults to processing", func(t *testing.T) {
		order, err := f.svc.Create(ctx, orders.CreateOrderInput{
			UserID:          "user-1",
			CustomerName:    "Sara Ali",
			CustomerEmail:   "sara@example.com",
			ShippingAddress: "King Fahd Rd, Riyadh",
			Total:           1.00,
			Items:           `[{"id":"` + f.p1.ID + `","name":"Oak Table","price":450.10,"quantity":2}]`,
		})
		require.NoError(t, err)
		f.svc.Wait()

		assert.NotEmpty(t, order.ID)
		assert.False(t, order.CreatedAt.IsZero())
		assert.Equal(t, models.StatusProcessing, order.Status)
		assert.Equal(t, 900.20, order.Total)
		assert.Equal(t, []string{messaging.EventOrderPlaced}, f.pub.types())
		assert.Equal(t, []string{order.ID}, f.notes.placed)
		assert.Equal(t, 10, f.stock(t, f.p1.ID), "placing an order does not touch stock")
	})

	cases := []struct {
		name  string
		in    orders.CreateOrderInput
		field string
	}{
		{"Items not JSON", orders.CreateOrderInput{UserID: "u", Items: "nope"}, "items"},
		{"No items", orders.CreateOrderInput{UserID: "u", Items: "[]"}, "items"},
		{"Zero quantity", orders.CreateOrderInput{UserID: "u", Items: `[{"id":"P1","quantity":0}]`}, "items"},
		{"Missing user", orders.CreateOrderInput{Items: `[{"id":"P1","quantity":1}]`}, "user_id"},
		{"Bad email", orders.CreateOrderInput{
			UserID: "u", CustomerName: "Sara", CustomerEmail: "nope", ShippingAddress: "Riyadh 12345",
			Items: `[{"id":"P1","quantity":1}]`,
		}, "customer_email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.in)
			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestFulfillDecrementsStockOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	order := f.placeOrder(t, []models.LineItem{
		{ID: f.p1.ID, Name: "Oak Table", Price: 450, Quantity: 3},
		{ID: f.p2.ID, Name: "Pantry Unit", Price: 900, Quantity: 1},
	})

	require.NoError(t, f.svc.TransitionStatus(ctx, order.ID, models.StatusFulfilled))
	assert.Equal(t, 7, f.stock(t, f.p1.ID))
	assert.Equal(t, 3, f.stock(t, f.p2.ID))
	assert.Equal(t, models.StatusFulfilled, f.status(t, order.ID))

	require.NoError(t, f.svc.TransitionStatus(ctx, order.ID, models.StatusFulfilled))
	assert.Equal(t, 7, f.stock(t, f.p1.ID), "fulfilling twice must not decrement again")
	assert.Equal(t, 3, f.stock(t, f.p2.ID))

	f.svc.Wait()
	assert.Equal(t, []string{messaging.EventOrderStatusChanged, messaging.EventOrderStatusChanged}, f.pub.types())
	assert.Len(t, f.notes.changed, 2, "notification failures do not fail the transition")
}

func TestNonFulfilledTransitionsLeaveStock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	order := f.placeOrder(t, []models.LineItem{{ID: f.p1.ID, Name: "Oak Table", Price: 450, Quantity: 3}})

	require.NoError(t, f.svc.TransitionStatus(ctx, order.ID, models.StatusDeclined))
	assert.Equal(t, models.StatusDeclined, f.status(t, order.ID))
	assert.Equal(t, 10, f.stock(t, f.p1.ID))

	require.NoError(t, f.svc.TransitionStatus(ctx, order.ID, models.StatusFulfilled))
	require.NoError(t, f.svc.TransitionStatus(ctx, order.ID, models.StatusCanceled))
	assert.Equal(t, 7, f.stock(t, f.p1.ID), "leaving fulfilled does not restock")
	f.svc.Wait()
}

func TestFulfillAbortsWhenAnyDecrementFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	order := f.placeOrder(t, []models.LineItem{
		{ID: f.p1.ID, Name: "Oak Table", Price: 450, Quantity: 3},
		{ID: "gone", Name: "Deleted Product", Price: 10, Quantity: 2},
	})

	err := f.svc.TransitionStatus(ctx, order.ID, models.StatusFulfilled)
	var stockErr *apperr.StockUpdateError
	require.True(t, errors.As(err, &stockErr), "got %v", err)
	require.Len(t, stockErr.Failures, 1)
	assert.Equal(t, "gone", stockErr.Failures[0].ProductID)
	assert.Equal(t, 2, stockErr.Failures[0].Quantity)
	assert.Contains(t, err.Error(), "stock update failed")

	var nf *apperr.NotFoundError
	assert.True(t, errors.As(err, &nf))

	assert.Equal(t, models.StatusProcessing, f.status(t, order.ID))
	assert.Equal(t, 10, f.stock(t, f.p1.ID), "applied decrements are restored")
}

func TestFulfillUnknownOrder(t *testing.T) {
	f := setup(t)
	err := f.svc.TransitionStatus(context.Background(), "missing", models.StatusFulfilled)
	var nf *apperr.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.ID)

	err = f.svc.TransitionStatus(context.Background(), "missing", models.StatusDeclined)
	assert.True(t, errors.As(err, &nf))
}

func TestInvalidStatus(t *testing.T) {
	f := setup(t)
	err := f.svc.TransitionStatus(context.Background(), "any", models.OrderStatus("shipped"))
	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve))
}

type failingStatusWrites struct {
	orders.OrderRepository
}

func (failingStatusWrites) UpdateStatus(context.Context, string, models.OrderStatus) error {
	return errors.New("connection reset")
}

func TestStatusWriteFailure(t *testing.T) {
	f := setup(t)
	order := f.placeOrder(t, []models.LineItem{{ID: f.p2.ID, Name: "Pantry Unit", Price: 900, Quantity: 1}})

	svc := orders.NewService(failingStatusWrites{f.stores.Orders}, f.stores.Products, nil, nil)
	err := svc.TransitionStatus(context.Background(), order.ID, models.StatusFulfilled)

	var writeErr *apperr.StatusWriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, order.ID, writeErr.OrderID)
	assert.Contains(t, err.Error(), "status update failed")
	assert.Equal(t, models.StatusProcessing, f.status(t, order.ID))
}

type failingReads struct {
	orders.OrderRepository
}

func (failingReads) Get(context.Context, string) (*models.Order, error) {
	return nil, errors.New("connection refused")
}

func TestFulfillWhenOrderCannotBeLoaded(t *testing.T) {
	f := setup(t)
	order := f.placeOrder(t, []models.LineItem{{ID: f.p1.ID, Name: "Oak Kitchen", Price: 100, Quantity: 2}})

	svc := orders.NewService(failingReads{f.stores.Orders}, f.stores.Products, nil, nil)
	err := svc.TransitionStatus(context.Background(), order.ID, models.StatusFulfilled)

	var nf *apperr.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, 10, f.stock(t, f.p1.ID))
	assert.Equal(t, models.StatusProcessing, f.status(t, order.ID))
}

func TestDeleteDoesNotRestock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	order := f.placeOrder(t, []models.LineItem{{ID: f.p2.ID, Name: "Pantry Unit", Price: 900, Quantity: 2}})

	require.NoError(t, f.svc.TransitionStatus(ctx, order.ID, models.StatusFulfilled))
	require.NoError(t, f.svc.Delete(ctx, order.ID))
	assert.Equal(t, 2, f.stock(t, f.p2.ID))

	var nf *apperr.NotFoundError
	assert.True(t, errors.As(f.svc.Delete(ctx, order.ID), &nf))
	f.svc.Wait()
	assert.Contains(t, f.pub.types(), messaging.EventOrderDeleted)
}

func TestTotal(t *testing.T) {
	total := orders.Total([]models.LineItem{{Price: 0.1, Quantity: 3}, {Price: 19.99, Quantity: 1}})
	assert.Equal(t, "20.29", total.StringFixed(2))
}
