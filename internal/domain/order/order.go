package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrEmptyOrder           = errors.New("order must have at least one item")
	ErrInvalidStatus        = errors.New("invalid order status transition")
	ErrOrderAlreadyPaid     = errors.New("order is already paid")
	ErrOrderNotPaid         = errors.New("order must be paid before fulfilment")
	ErrOrderFulfilled       = errors.New("order is already fulfilled")
	ErrOrderCancelled       = errors.New("order is already cancelled")
	ErrConcurrentTransition = errors.New("order status changed concurrently")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusFulfilled},
	StatusFulfilled: {}, // terminal state
	StatusCancelled: {}, // terminal state
}

// ParseStatus validates an externally supplied status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validTransitions[st]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, s)
	}
	return st, nil
}

type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

type Order struct {
	ID          string     `json:"id"`
	CustomerID  string     `json:"customer_id"`
	Items       []LineItem `json:"items"`
	Status      Status     `json:"status"`
	Total       int64      `json:"total"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	FulfilledAt *time.Time `json:"fulfilled_at,omitempty"`
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError returns an appropriate error for an invalid transition
func (o *Order) transitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return ErrOrderCancelled
	case o.Status == StatusFulfilled:
		return ErrOrderFulfilled
	case o.Status == StatusPaid && target == StatusPaid:
		return ErrOrderAlreadyPaid
	case o.Status == StatusPending && target == StatusFulfilled:
		return ErrOrderNotPaid
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

// Store persists orders. TransitionStatus applies the change only while the
// stored status still equals from, and reports whether it did.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	// LatestPending returns the most recent pending order of a customer, or
	// ErrOrderNotFound.
	LatestPending(ctx context.Context, customerID string) (*Order, error)
	TransitionStatus(ctx context.Context, id string, from, to Status, at time.Time) (bool, error)
}

type Service struct {
	store     Store
	publisher events.Publisher
	logger    *zap.Logger
}

func NewService(store Store, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{store: store, publisher: publisher, logger: logger.Named("order")}
}

// Place persists a pending single-line order for qty units of p. An empty id
// is replaced by a fresh one.
func (s *Service) Place(ctx context.Context, id, customerID string, p catalog.Product, qty int) (*Order, error) {
	if qty <= 0 {
		return nil, ErrEmptyOrder
	}
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now().UTC()
	lineTotal := p.Price * int64(qty)
	o := &Order{
		ID:         id,
		CustomerID: customerID,
		Items: []LineItem{{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  qty,
			UnitPrice: p.Price,
			LineTotal: lineTotal,
		}},
		Status:    StatusPending,
		Total:     lineTotal,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("customer_id", customerID),
		zap.String("product_id", p.ID),
		zap.Int("quantity", qty),
		zap.Int64("total", o.Total))
	events.Emit(ctx, s.publisher, s.logger, events.TypeOrderPlaced, o.ID, events.OrderPlaced{
		OrderID:     o.ID,
		CustomerID:  customerID,
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    qty,
		Total:       o.Total,
		PlacedAt:    now,
	})
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.store.List(ctx)
}

func (s *Service) LatestPending(ctx context.Context, customerID string) (*Order, error) {
	return s.store.LatestPending(ctx, customerID)
}

// PendingCount counts a customer's orders still awaiting payment.
func (s *Service) PendingCount(ctx context.Context, customerID string) (int, error) {
	orders, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range orders {
		if o.CustomerID == customerID && o.Status == StatusPending {
			n++
		}
	}
	return n, nil
}

func (s *Service) Pay(ctx context.Context, id string) (*Order, error) {
	return s.Transition(ctx, id, StatusPaid)
}

func (s *Service) Fulfil(ctx context.Context, id string) (*Order, error) {
	return s.Transition(ctx, id, StatusFulfilled)
}

func (s *Service) Cancel(ctx context.Context, id string) (*Order, error) {
	return s.Transition(ctx, id, StatusCancelled)
}

// Transition moves an order to target, enforcing the transition table.
func (s *Service) Transition(ctx context.Context, id string, target Status) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.CanTransitionTo(target) {
		return nil, o.transitionError(target)
	}

	from := o.Status
	now := time.Now().UTC()
	ok, err := s.store.TransitionStatus(ctx, id, from, target, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConcurrentTransition
	}

	o.Status = target
	o.UpdatedAt = now
	switch target {
	case StatusPaid:
		o.PaidAt = &now
	case StatusFulfilled:
		o.FulfilledAt = &now
	}

	s.logger.Info("order status changed",
		zap.String("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(target)))
	events.Emit(ctx, s.publisher, s.logger, eventTypeFor(target), id, events.OrderStatusChanged{
		OrderID:    id,
		CustomerID: o.CustomerID,
		From:       string(from),
		To:         string(target),
		Total:      o.Total,
		ChangedAt:  now,
	})
	return o, nil
}

func eventTypeFor(s Status) string {
	switch s {
	case StatusPaid:
		return events.TypeOrderPaid
	case StatusFulfilled:
		return events.TypeOrderFulfilled
	default:
		return events.TypeOrderCancelled
	}
}

// SalesSummary aggregates revenue over paid and fulfilled orders.
type SalesSummary struct {
	TotalOrders   int            `json:"total_orders"`
	Revenue       int64          `json:"revenue"`
	UnitsSold     int            `json:"units_sold"`
	CountByStatus map[Status]int `json:"count_by_status"`
}

func (s *Service) Summary(ctx context.Context) (*SalesSummary, error) {
	orders, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	sum := &SalesSummary{CountByStatus: make(map[Status]int)}
	for _, o := range orders {
		sum.TotalOrders++
		sum.CountByStatus[o.Status]++
		if o.Status != StatusPaid && o.Status != StatusFulfilled {
			continue
		}
		sum.Revenue += o.Total
		for _, it := range o.Items {
			sum.UnitsSold += it.Quantity
		}
	}
	return sum, nil
}
