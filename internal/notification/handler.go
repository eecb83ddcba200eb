// Package notification turns order and stock events from the bus into
// vendor e-mails.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/domain/order"
	"github.com/example/chat-storefront/internal/email"
	"github.com/example/chat-storefront/internal/events"
)

// Sender is the part of email.Service the handler needs.
type Sender interface {
	SendOrderNotice(to string, n email.OrderNotice) error
	SendLowStockNotice(to string, n email.LowStockNotice) error
}

type OrderReader interface {
	Get(ctx context.Context, id string) (*order.Order, error)
}

// Handler processes events for sending notifications
type Handler struct {
	sender      Sender
	orders      OrderReader
	vendorEmail string
	logger      *zap.Logger
}

func NewHandler(sender Sender, orders OrderReader, vendorEmail string, logger *zap.Logger) *Handler {
	return &Handler{
		sender:      sender,
		orders:      orders,
		vendorEmail: vendorEmail,
		logger:      logger.Named("notifier"),
	}
}

// HandleEvent is a kafka.MessageHandler.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event events.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.Error("failed to unmarshal event", zap.ByteString("key", key), zap.Error(err))
		return err
	}

	switch event.Type {
	case events.TypeOrderPlaced:
		return h.handleOrderPlaced(event)
	case events.TypeOrderPaid:
		return h.handleOrderPaid(ctx, event)
	case events.TypeStockLow:
		return h.handleStockLow(event)
	}
	return nil
}

func (h *Handler) handleOrderPlaced(event events.Event) error {
	var e events.OrderPlaced
	if err := event.Decode(&e); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}

	h.logger.Info("processing order placed", zap.String("order_id", e.OrderID), zap.String("customer_id", e.CustomerID))

	unit := int64(0)
	if e.Quantity > 0 {
		unit = e.Total / int64(e.Quantity)
	}
	return h.send(email.OrderNotice{
		Headline:   "New order awaiting payment",
		OrderID:    e.OrderID,
		CustomerID: e.CustomerID,
		Status:     string(order.StatusPending),
		Total:      e.Total,
		Items: []email.OrderItem{{
			ProductID: e.ProductID,
			Name:      e.ProductName,
			Quantity:  e.Quantity,
			UnitPrice: unit,
		}},
	})
}

func (h *Handler) handleOrderPaid(ctx context.Context, event events.Event) error {
	var e events.OrderStatusChanged
	if err := event.Decode(&e); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}

	h.logger.Info("processing order paid", zap.String("order_id", e.OrderID), zap.String("customer_id", e.CustomerID))

	notice := email.OrderNotice{
		Headline:   "Payment received",
		OrderID:    e.OrderID,
		CustomerID: e.CustomerID,
		Status:     e.To,
		Total:      e.Total,
	}

	// The event has no line items; a missing order still gets a notice.
	o, err := h.orders.Get(ctx, e.OrderID)
	if err != nil {
		h.logger.Warn("order lookup failed", zap.String("order_id", e.OrderID), zap.Error(err))
	} else {
		for _, it := range o.Items {
			notice.Items = append(notice.Items, email.OrderItem{
				ProductID: it.ProductID,
				Name:      it.Name,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
			})
		}
	}
	return h.send(notice)
}

func (h *Handler) handleStockLow(event events.Event) error {
	var e events.StockLow
	if err := event.Decode(&e); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}
	if h.vendorEmail == "" {
		return nil
	}

	n := email.LowStockNotice{ProductID: e.ProductID, Name: e.Name, StockLevel: e.StockLevel, Level: e.Level}
	if err := h.sender.SendLowStockNotice(h.vendorEmail, n); err != nil {
		h.logger.Error("failed to send email", zap.String("to", h.vendorEmail), zap.String("product_id", e.ProductID), zap.Error(err))
		return err
	}
	h.logger.Info("low stock notice sent", zap.String("product_id", e.ProductID), zap.Int("stock_level", e.StockLevel))
	return nil
}

func (h *Handler) send(n email.OrderNotice) error {
	if h.vendorEmail == "" {
		h.logger.Debug("no vendor e-mail configured, skipping", zap.String("order_id", n.OrderID))
		return nil
	}
	if err := h.sender.SendOrderNotice(h.vendorEmail, n); err != nil {
		h.logger.Error("failed to send email", zap.String("to", h.vendorEmail), zap.String("order_id", n.OrderID), zap.Error(err))
		return err
	}
	h.logger.Info("order notice sent", zap.String("to", h.vendorEmail), zap.String("order_id", n.OrderID))
	return nil
}
