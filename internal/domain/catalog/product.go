package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/chat-storefront/internal/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidPrice      = errors.New("price must be positive")
	ErrInvalidName       = errors.New("name is required")
	ErrInvalidStock      = errors.New("stock level cannot be negative")
)

const (
	DefaultLowStockThreshold = 5
	criticalStockLevel       = 2
)

// Product is a sellable catalog item. Price is in whole naira.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	StockLevel  int       `json:"stock_level"`
	Tags        []string  `json:"tags"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InStock reports whether at least qty units are held.
func (p Product) InStock(qty int) bool {
	return qty > 0 && p.StockLevel >= qty
}

// Store persists the catalog of a single vendor. List returns products in
// catalog order (creation order), which ranking relies on for stable ties.
type Store interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	// ConditionalDecrement subtracts qty only when stock_level >= qty, as a
	// single atomic step. It reports false when the condition did not hold.
	ConditionalDecrement(ctx context.Context, id string, qty int) (bool, error)
	Restock(ctx context.Context, id string, qty int) error
	// Reserve is ConditionalDecrement recorded under reservationID. Calling
	// it again for a reservation that already took stock reports true
	// without taking more, so a call whose reply was lost can be retried.
	Reserve(ctx context.Context, reservationID, id string, qty int) (bool, error)
	// Release returns the stock taken by a reservation, at most once. An
	// unknown or already released reservation is left alone.
	Release(ctx context.Context, reservationID string) error
}

// Reservation is stock held for one purchase until it completes or is
// released.
type Reservation struct {
	ID        string
	ProductID string
	Quantity  int
	Released  bool
}

type CreateInput struct {
	Name        string   `json:"name"`
	Price       int64    `json:"price"`
	StockLevel  int      `json:"stock_level"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
}

type AlertLevel string

const (
	AlertLow      AlertLevel = "low"
	AlertCritical AlertLevel = "critical"
)

type LowStockAlert struct {
	Product Product    `json:"product"`
	Level   AlertLevel `json:"level"`
}

type Service struct {
	store             Store
	publisher         events.Publisher
	logger            *zap.Logger
	lowStockThreshold int
}

func NewService(store Store, publisher events.Publisher, logger *zap.Logger, lowStockThreshold int) *Service {
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		store:             store,
		publisher:         publisher,
		logger:            logger.Named("catalog"),
		lowStockThreshold: lowStockThreshold,
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if in.Price <= 0 {
		return nil, ErrInvalidPrice
	}
	if in.StockLevel < 0 {
		return nil, ErrInvalidStock
	}

	now := time.Now().UTC()
	p := &Product{
		ID:          uuid.New().String(),
		Name:        name,
		Price:       in.Price,
		StockLevel:  in.StockLevel,
		Tags:        normalizeTags(in.Tags),
		Description: in.Description,
		Category:    strings.ToLower(strings.TrimSpace(in.Category)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.Info("product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.store.List(ctx)
}

// Restock adds qty units to a product and announces it on the bus.
func (s *Service) Restock(ctx context.Context, id string, qty int) (*Product, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := s.store.Restock(ctx, id, qty); err != nil {
		return nil, err
	}

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("product restocked",
		zap.String("product_id", id),
		zap.Int("quantity", qty),
		zap.Int("stock_level", p.StockLevel))
	events.Emit(ctx, s.publisher, s.logger, events.TypeStockRestored, id, events.StockRestored{
		ProductID:  id,
		Quantity:   qty,
		Reason:     "restock",
		RestoredAt: time.Now().UTC(),
	})
	return p, nil
}

// LowStock lists products at or below the low-stock threshold.
func (s *Service) LowStock(ctx context.Context) ([]LowStockAlert, error) {
	products, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	alerts := make([]LowStockAlert, 0)
	for _, p := range products {
		if level, ok := AlertLevelFor(p.StockLevel, s.lowStockThreshold); ok {
			alerts = append(alerts, LowStockAlert{Product: p, Level: level})
		}
	}
	return alerts, nil
}

// AlertLevelFor grades a stock level. ok is false above threshold.
func AlertLevelFor(stock, threshold int) (level AlertLevel, ok bool) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	switch {
	case stock > threshold:
		return "", false
	case stock <= criticalStockLevel:
		return AlertCritical, true
	default:
		return AlertLow, true
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
