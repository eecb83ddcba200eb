// Package events defines the domain events emitted by the storefront and the
// publisher abstraction used to ship them to the message bus.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TypeOrderPlaced    = "OrderPlaced"
	TypeOrderPaid      = "OrderPaid"
	TypeOrderFulfilled = "OrderFulfilled"
	TypeOrderCancelled = "OrderCancelled"
	TypeStockRestored  = "StockRestored"
	TypeStockLow       = "StockLow"
)

// Event is the envelope written to the bus.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Data        json.RawMessage `json:"data"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

type OrderPlaced struct {
	OrderID     string    `json:"order_id"`
	CustomerID  string    `json:"customer_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Total       int64     `json:"total"`
	PlacedAt    time.Time `json:"placed_at"`
}

// OrderStatusChanged is the payload of OrderPaid, OrderFulfilled and
// OrderCancelled.
type OrderStatusChanged struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Total      int64     `json:"total"`
	ChangedAt  time.Time `json:"changed_at"`
}

type StockRestored struct {
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	Reason     string    `json:"reason"`
	RestoredAt time.Time `json:"restored_at"`
}

// StockLow is raised when a product's stock falls to the alert threshold.
type StockLow struct {
	ProductID  string    `json:"product_id"`
	Name       string    `json:"name"`
	StockLevel int       `json:"stock_level"`
	Level      string    `json:"level"`
	ObservedAt time.Time `json:"observed_at"`
}

// Publisher ships an event keyed by aggregate id.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// New wraps data in an envelope with a fresh id.
func New(eventType, aggregateID string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		AggregateID: aggregateID,
		Data:        raw,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// Emit publishes an event and only logs failures. Domain state is already
// committed when Emit runs, so a bus outage must not fail the caller.
func Emit(ctx context.Context, pub Publisher, logger *zap.Logger, eventType, aggregateID string, data any) {
	if pub == nil {
		return
	}
	event, err := New(eventType, aggregateID, data)
	if err != nil {
		logger.Error("failed to encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := pub.Publish(ctx, aggregateID, event); err != nil {
		logger.Warn("failed to publish event",
			zap.String("type", eventType),
			zap.String("aggregate_id", aggregateID),
			zap.Error(err))
	}
}
