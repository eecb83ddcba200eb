package purchase

import (
	"context"
	"time"
)

// IntentState tracks how far a purchase saga got.
type IntentState string

const (
	IntentBegun         IntentState = "begun"
	IntentStockReserved IntentState = "stock_reserved"
	IntentOrderCreated  IntentState = "order_created"
	IntentCompleted     IntentState = "completed"
	IntentCompensated   IntentState = "compensated"
)

// Terminal reports whether the saga needs no further work.
func (s IntentState) Terminal() bool {
	return s == IntentCompleted || s == IntentCompensated
}

// Intent is one purchase saga as written to the intent log.
type Intent struct {
	ID         string      `json:"id"`
	CustomerID string      `json:"customer_id"`
	ProductID  string      `json:"product_id"`
	Quantity   int         `json:"quantity"`
	OrderID    string      `json:"order_id,omitempty"`
	State      IntentState `json:"state"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// IntentLog is the durable record of in-flight purchases. An intent is
// written before any stock moves, so Recover can compensate after a crash.
type IntentLog interface {
	Begin(ctx context.Context, in *Intent) error
	// Mark advances the intent. A non-empty orderID is recorded alongside.
	Mark(ctx context.Context, id string, state IntentState, orderID string) error
	// Open lists intents that are not in a terminal state.
	Open(ctx context.Context) ([]Intent, error)
}
