package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/domain/history"
	"github.com/example/chat-storefront/internal/domain/order"
)

// Product Handlers

func (h *Handler) ListProducts(c echo.Context) error {
	products, err := h.catalog.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, products)
}

func (h *Handler) CreateProduct(c echo.Context) error {
	var in catalog.CreateInput
	if err := c.Bind(&in); err != nil {
		return respondError(c, errBadBody)
	}

	p, err := h.catalog.Create(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

type RestockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) RestockProduct(c echo.Context) error {
	var req RestockRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, errBadBody)
	}

	p, err := h.catalog.Restock(c.Request().Context(), c.Param("id"), req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) LowStock(c echo.Context) error {
	alerts, err := h.catalog.LowStock(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, alerts)
}

// Order Handlers

// ListOrders handles GET /admin/orders with an optional ?status= filter.
func (h *Handler) ListOrders(c echo.Context) error {
	var want order.Status
	if s := c.QueryParam("status"); s != "" {
		st, err := order.ParseStatus(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		want = st
	}

	orders, err := h.orders.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	out := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		if want == "" || o.Status == want {
			out = append(out, o)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetOrder(c echo.Context) error {
	o, err := h.orders.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

type StatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus handles PUT /admin/orders/:id/status. The vendor marks
// orders paid or fulfilled; cancellation belongs to the purchase flow.
func (h *Handler) UpdateOrderStatus(c echo.Context) error {
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, errBadBody)
	}

	target, err := order.ParseStatus(req.Status)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if target != order.StatusPaid && target != order.StatusFulfilled {
		return respondError(c, errStatusNotAdmin)
	}

	ctx := c.Request().Context()
	o, err := h.orders.Transition(ctx, c.Param("id"), target)
	if err != nil {
		return respondError(c, err)
	}

	if target == order.StatusPaid {
		at := time.Now().UTC()
		if o.PaidAt != nil {
			at = *o.PaidAt
		}
		if err := history.Record(ctx, h.history, history.KindPaid, *o, at); err != nil {
			h.logger.Warn("customer history append failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) SalesSummary(c echo.Context) error {
	sum, err := h.orders.Summary(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// Customer Handlers

func (h *Handler) CustomerHistory(c echo.Context) error {
	entries, err := h.history.ListByCustomer(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}
