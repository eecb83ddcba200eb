// Package purchase turns a chosen product into a reserved, pending order with
// payment instructions. Every purchase runs as a saga recorded in an intent
// log so that a crash between steps can be compensated later.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/domain/history"
	"github.com/example/chat-storefront/internal/domain/order"
	"github.com/example/chat-storefront/internal/payment"
)

// QuotaChecker is an external usage limit consulted before stock moves. It
// returns an error wrapping ErrQuotaExceeded when the purchase is refused.
type QuotaChecker interface {
	CheckQuota(ctx context.Context, customerID string, quantity int) error
}

type noQuota struct{}

func (noQuota) CheckQuota(context.Context, string, int) error { return nil }

type Request struct {
	CustomerID string
	ProductID  string
	Quantity   int
}

type Result struct {
	Order   *order.Order
	Product catalog.Product
	Payment payment.Instructions
}

// Deps groups the collaborators of an Orchestrator. Quota and Links are
// optional; without Links every purchase needs Bank to be configured.
type Deps struct {
	Catalog catalog.Store
	Orders  *order.Service
	History history.Store
	Intents IntentLog
	Links   payment.LinkGenerator
	Quota   QuotaChecker
	Bank    payment.BankDetails
	Retry   RetryPolicy
}

type Orchestrator struct {
	catalog catalog.Store
	orders  *order.Service
	history history.Store
	intents IntentLog
	links   payment.LinkGenerator
	quota   QuotaChecker
	bank    payment.BankDetails
	retry   RetryPolicy
	logger  *zap.Logger
}

func NewOrchestrator(d Deps, logger *zap.Logger) *Orchestrator {
	if d.Quota == nil {
		d.Quota = noQuota{}
	}
	if d.Retry.Attempts == 0 {
		d.Retry = DefaultRetryPolicy()
	}
	return &Orchestrator{
		catalog: d.Catalog,
		orders:  d.Orders,
		history: d.History,
		intents: d.Intents,
		links:   d.Links,
		quota:   d.Quota,
		bank:    d.Bank,
		retry:   d.Retry,
		logger:  logger.Named("purchase"),
	}
}

// Purchase reserves stock, places a pending order, and produces payment
// instructions. On ErrInsufficientStock nothing has changed. When a later
// step fails the reserved stock is restored and the order cancelled.
func (o *Orchestrator) Purchase(ctx context.Context, req Request) (*Result, error) {
	if req.CustomerID == "" || req.ProductID == "" {
		return nil, fmt.Errorf("%w: customer and product are required", ErrInvalidRequest)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, catalog.ErrInvalidQuantity)
	}

	p, err := retry(ctx, o.retry, func() (*catalog.Product, error) {
		return o.catalog.Get(ctx, req.ProductID)
	})
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", req.ProductID, err)
	}
	if p.Price <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, catalog.ErrInvalidPrice)
	}
	if !p.InStock(req.Quantity) {
		return nil, ErrInsufficientStock
	}

	if err := o.quota.CheckQuota(ctx, req.CustomerID, req.Quantity); err != nil {
		o.logger.Info("purchase refused by quota",
			zap.String("customer_id", req.CustomerID),
			zap.Int("quantity", req.Quantity),
			zap.Error(err))
		return nil, err
	}

	log := o.logger.With(
		zap.String("customer_id", req.CustomerID),
		zap.String("product_id", p.ID),
		zap.Int("quantity", req.Quantity))

	now := time.Now().UTC()
	in := &Intent{
		ID:         uuid.New().String(),
		CustomerID: req.CustomerID,
		ProductID:  p.ID,
		Quantity:   req.Quantity,
		OrderID:    uuid.New().String(),
		State:      IntentBegun,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := retryErr(ctx, o.retry, func() error { return o.intents.Begin(ctx, in) }); err != nil {
		return nil, fmt.Errorf("begin purchase intent: %w", err)
	}
	log = log.With(zap.String("intent_id", in.ID), zap.String("order_id", in.OrderID))

	// (a) stock reservation, keyed by the intent so a retry after a lost
	// reply cannot take the stock twice
	reserved, err := retry(ctx, o.retry, func() (bool, error) {
		return o.catalog.Reserve(ctx, in.ID, p.ID, req.Quantity)
	})
	if err != nil {
		log.Error("stock reservation failed", zap.Error(err))
		o.compensate(ctx, log, in)
		return nil, fmt.Errorf("reserve stock: %w", err)
	}
	if !reserved {
		o.mark(ctx, log, in, IntentCompensated)
		log.Info("stock no longer sufficient")
		return nil, ErrInsufficientStock
	}
	o.mark(ctx, log, in, IntentStockReserved)

	// (b) pending order and history
	placed, err := retry(ctx, o.retry, func() (*order.Order, error) {
		return o.orders.Place(ctx, in.OrderID, req.CustomerID, *p, req.Quantity)
	})
	if err != nil {
		log.Error("order persistence failed", zap.Error(err))
		o.compensate(ctx, log, in)
		return nil, fmt.Errorf("%w: %w", ErrOrderPersistenceFailed, err)
	}
	o.mark(ctx, log, in, IntentOrderCreated)

	if err := history.Record(ctx, o.history, history.KindOrdered, *placed, placed.CreatedAt); err != nil {
		log.Warn("customer history append failed", zap.Error(err))
	}

	// (c) payment instructions
	instructions, err := o.instructions(ctx, placed)
	if err != nil {
		log.Error("payment link generation failed", zap.Error(err))
		o.compensate(ctx, log, in)
		return nil, fmt.Errorf("%w: %w", ErrPaymentLinkFailed, err)
	}

	o.mark(ctx, log, in, IntentCompleted)
	log.Info("purchase completed",
		zap.Int64("total", placed.Total),
		zap.String("payment_method", string(instructions.Method)))

	p.StockLevel -= req.Quantity
	return &Result{Order: placed, Product: *p, Payment: instructions}, nil
}

func (o *Orchestrator) instructions(ctx context.Context, placed *order.Order) (payment.Instructions, error) {
	if o.bank.Configured() {
		bank := o.bank
		return payment.Instructions{Method: payment.MethodBankTransfer, Bank: &bank}, nil
	}
	if o.links == nil {
		return payment.Instructions{}, errors.New("no payment method configured")
	}

	link, err := retry(ctx, o.retry, func() (string, error) {
		return o.links.Generate(ctx, placed.ID, placed.Total, placed.CustomerID)
	})
	if err != nil {
		return payment.Instructions{}, err
	}
	return payment.Instructions{Method: payment.MethodLink, Link: link}, nil
}

// compensate cancels the order if one was placed, then releases the
// reservation. Both steps are safe to repeat and to run for steps that never
// happened. The intent is only marked compensated when both succeed,
// so a failed compensation is picked up again by Recover. An order that was
// paid in the meantime closes the intent as completed instead.
func (o *Orchestrator) compensate(ctx context.Context, log *zap.Logger, in *Intent) {
	if in.OrderID != "" {
		_, err := o.orders.Cancel(ctx, in.OrderID)
		switch {
		case err == nil, errors.Is(err, order.ErrOrderNotFound), errors.Is(err, order.ErrOrderCancelled):
		case errors.Is(err, order.ErrInvalidStatus), errors.Is(err, order.ErrOrderFulfilled):
			log.Info("order already settled, nothing to compensate")
			o.mark(ctx, log, in, IntentCompleted)
			return
		default:
			log.Error("order cancel failed, intent left open", zap.Error(err))
			return
		}
	}

	if err := retryErr(ctx, o.retry, func() error {
		return o.catalog.Release(ctx, in.ID)
	}); err != nil {
		log.Error("stock release failed, intent left open", zap.Error(err))
		return
	}

	o.mark(ctx, log, in, IntentCompensated)
	log.Info("purchase compensated")
}

func (o *Orchestrator) mark(ctx context.Context, log *zap.Logger, in *Intent, state IntentState) {
	if err := retryErr(ctx, o.retry, func() error {
		return o.intents.Mark(ctx, in.ID, state, in.OrderID)
	}); err != nil {
		log.Error("intent log update failed", zap.String("state", string(state)), zap.Error(err))
		return
	}
	in.State = state
}

// Recover compensates intents left open by a crash. Intents touched within
// minAge are assumed to still be in flight and are skipped. An intent still
// at begun may or may not hold a reservation; releasing it covers both. It
// returns how many intents were closed.
func (o *Orchestrator) Recover(ctx context.Context, minAge time.Duration) (int, error) {
	open, err := o.intents.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open intents: %w", err)
	}

	cutoff := time.Now().UTC().Add(-minAge)
	closed := 0
	for i := range open {
		in := open[i]
		if in.UpdatedAt.After(cutoff) {
			continue
		}
		log := o.logger.With(
			zap.String("intent_id", in.ID),
			zap.String("customer_id", in.CustomerID),
			zap.String("product_id", in.ProductID),
			zap.String("order_id", in.OrderID),
			zap.String("state", string(in.State)))

		log.Warn("recovering interrupted purchase")
		o.compensate(ctx, log, &in)
		if in.State.Terminal() {
			closed++
		}
	}
	return closed, nil
}
