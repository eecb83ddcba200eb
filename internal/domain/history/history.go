// Package history records what each customer has bought. Entries are
// append-only.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/example/chat-storefront/internal/domain/order"
)

// Kind says which step of an order produced the entry.
type Kind string

const (
	KindOrdered Kind = "ordered"
	KindPaid    Kind = "paid"
)

type Entry struct {
	Kind        Kind      `json:"kind"`
	CustomerID  string    `json:"customer_id"`
	OrderID     string    `json:"order_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Amount      int64     `json:"amount"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type Store interface {
	Append(ctx context.Context, e Entry) error
	// ListByCustomer returns entries oldest first.
	ListByCustomer(ctx context.Context, customerID string) ([]Entry, error)
}

// Record appends one entry of the given kind per line item of o. Every item
// is attempted; the errors are joined.
func Record(ctx context.Context, store Store, kind Kind, o order.Order, at time.Time) error {
	var errs []error
	for _, item := range o.Items {
		if err := store.Append(ctx, Entry{
			Kind:        kind,
			CustomerID:  o.CustomerID,
			OrderID:     o.ID,
			ProductID:   item.ProductID,
			ProductName: item.Name,
			Quantity:    item.Quantity,
			Amount:      item.LineTotal,
			RecordedAt:  at,
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
