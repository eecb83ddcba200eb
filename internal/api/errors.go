package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/chat-storefront/internal/auth"
	"github.com/example/chat-storefront/internal/conversation"
	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/domain/order"
)

var (
	errBadBody        = errors.New("invalid request body")
	errStatusNotAdmin = errors.New("status can only be set to paid or fulfilled")
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrInsufficientStock),
		errors.Is(err, order.ErrOrderAlreadyPaid),
		errors.Is(err, order.ErrOrderNotPaid),
		errors.Is(err, order.ErrOrderFulfilled),
		errors.Is(err, order.ErrOrderCancelled),
		errors.Is(err, order.ErrConcurrentTransition),
		errors.Is(err, order.ErrInvalidStatus):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrInvalidName),
		errors.Is(err, catalog.ErrInvalidPrice),
		errors.Is(err, catalog.ErrInvalidStock),
		errors.Is(err, catalog.ErrInvalidQuantity),
		errors.Is(err, conversation.ErrInvalidMessage),
		errors.Is(err, errBadBody),
		errors.Is(err, errStatusNotAdmin):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...}. Internal errors never leak their text.
func respondError(c echo.Context, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return c.JSON(status, map[string]string{"error": msg})
}
