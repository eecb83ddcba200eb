package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/domain/order"
	"github.com/example/chat-storefront/internal/email"
	"github.com/example/chat-storefront/internal/events"
	"github.com/example/chat-storefront/internal/infrastructure/store/mocks"
)

type recordingSender struct {
	to       []string
	notices  []email.OrderNotice
	lowStock []email.LowStockNotice
	err      error
}

func (s *recordingSender) SendLowStockNotice(to string, n email.LowStockNotice) error {
	s.to = append(s.to, to)
	s.lowStock = append(s.lowStock, n)
	return s.err
}

func (s *recordingSender) SendOrderNotice(to string, n email.OrderNotice) error {
	s.to = append(s.to, to)
	s.notices = append(s.notices, n)
	return s.err
}

func encode(t *testing.T, eventType, aggregateID string, data any) []byte {
	t.Helper()
	e, err := events.New(eventType, aggregateID, data)
	require.NoError(t, err)
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	return raw
}

// ============================================
// HandleEvent Tests
// ============================================

func TestHandler_OrderPaid(t *testing.T) {
	orders := mocks.NewMockOrderStore()
	orders.Put(order.Order{
		ID:         "o1",
		CustomerID: "c1",
		Status:     order.StatusPaid,
		Total:      30000,
		Items:      []order.LineItem{{ProductID: "p-1", Name: "Red Canvas Sneakers", Quantity: 2, UnitPrice: 15000}},
	})
	sender := &recordingSender{}
	h := NewHandler(sender, orders, "vendor@example.com", zap.NewNop())

	msg := encode(t, events.TypeOrderPaid, "o1", events.OrderStatusChanged{
		OrderID: "o1", CustomerID: "c1", From: "pending", To: "paid", Total: 30000, ChangedAt: time.Now(),
	})
	require.NoError(t, h.HandleEvent(context.Background(), []byte("o1"), msg))

	require.Len(t, sender.notices, 1)
	assert.Equal(t, []string{"vendor@example.com"}, sender.to)
	n := sender.notices[0]
	assert.Equal(t, "Payment received", n.Headline)
	assert.Equal(t, "paid", n.Status)
	require.Len(t, n.Items, 1)
	assert.Equal(t, "Red Canvas Sneakers", n.Items[0].Name)
}

func TestHandler_OrderPaidWithoutStoredOrder(t *testing.T) {
	sender := &recordingSender{}
	h := NewHandler(sender, mocks.NewMockOrderStore(), "vendor@example.com", zap.NewNop())

	msg := encode(t, events.TypeOrderPaid, "gone", events.OrderStatusChanged{OrderID: "gone", To: "paid", Total: 100})
	require.NoError(t, h.HandleEvent(context.Background(), nil, msg))

	require.Len(t, sender.notices, 1)
	assert.Empty(t, sender.notices[0].Items)
}

func TestHandler_OrderPlaced(t *testing.T) {
	sender := &recordingSender{}
	h := NewHandler(sender, mocks.NewMockOrderStore(), "vendor@example.com", zap.NewNop())

	msg := encode(t, events.TypeOrderPlaced, "o2", events.OrderPlaced{
		OrderID: "o2", CustomerID: "c1", ProductID: "p-1", ProductName: "Cap", Quantity: 3, Total: 1500,
	})
	require.NoError(t, h.HandleEvent(context.Background(), nil, msg))

	require.Len(t, sender.notices, 1)
	assert.Equal(t, "pending", sender.notices[0].Status)
	assert.Equal(t, int64(500), sender.notices[0].Items[0].UnitPrice)
}

func TestHandler_IgnoresOtherEvents(t *testing.T) {
	sender := &recordingSender{}
	h := NewHandler(sender, mocks.NewMockOrderStore(), "vendor@example.com", zap.NewNop())

	msg := encode(t, events.TypeStockRestored, "p-1", events.StockRestored{ProductID: "p-1", Quantity: 2})
	require.NoError(t, h.HandleEvent(context.Background(), nil, msg))
	assert.Empty(t, sender.notices)
}

func TestHandler_Errors(t *testing.T) {
	t.Run("malformed message", func(t *testing.T) {
		h := NewHandler(&recordingSender{}, mocks.NewMockOrderStore(), "v@example.com", zap.NewNop())
		assert.Error(t, h.HandleEvent(context.Background(), nil, []byte("{not json")))
	})

	t.Run("send failure is returned", func(t *testing.T) {
		boom := errors.New("smtp down")
		h := NewHandler(&recordingSender{err: boom}, mocks.NewMockOrderStore(), "v@example.com", zap.NewNop())
		msg := encode(t, events.TypeOrderPlaced, "o3", events.OrderPlaced{OrderID: "o3", Quantity: 1, Total: 10})
		assert.ErrorIs(t, h.HandleEvent(context.Background(), nil, msg), boom)
	})

	t.Run("no vendor address skips", func(t *testing.T) {
		sender := &recordingSender{}
		h := NewHandler(sender, mocks.NewMockOrderStore(), "", zap.NewNop())
		msg := encode(t, events.TypeOrderPlaced, "o4", events.OrderPlaced{OrderID: "o4", Quantity: 1, Total: 10})
		assert.NoError(t, h.HandleEvent(context.Background(), nil, msg))
		assert.Empty(t, sender.notices)
	})
}

func TestHandler_StockLow(t *testing.T) {
	sender := &recordingSender{}
	h := NewHandler(sender, mocks.NewMockOrderStore(), "vendor@example.com", zap.NewNop())

	msg := encode(t, events.TypeStockLow, "p-1", events.StockLow{
		ProductID: "p-1", Name: "Red Canvas Sneakers", StockLevel: 2, Level: "critical", ObservedAt: time.Now(),
	})
	require.NoError(t, h.HandleEvent(context.Background(), []byte("p-1"), msg))

	require.Len(t, sender.lowStock, 1)
	assert.Equal(t, []string{"vendor@example.com"}, sender.to)
	assert.Equal(t, 2, sender.lowStock[0].StockLevel)
	assert.Equal(t, "critical", sender.lowStock[0].Level)
	assert.Empty(t, sender.notices)

	silent := &recordingSender{}
	require.NoError(t, NewHandler(silent, mocks.NewMockOrderStore(), "", zap.NewNop()).HandleEvent(context.Background(), nil, msg))
	assert.Empty(t, silent.lowStock)
}
