package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/api/middleware"
	"github.com/example/chat-storefront/internal/auth"
	"github.com/example/chat-storefront/internal/conversation"
)

const wsWriteTimeout = 10 * time.Second

// customerID prefers the identity of a customer token over the one in the
// request.
func customerID(c echo.Context, fallback string) string {
	if claims, ok := middleware.Claims(c); ok && claims.Role == auth.RoleCustomer {
		return claims.Subject
	}
	return fallback
}

// Chat handles POST /chat.
func (h *Handler) Chat(c echo.Context) error {
	var msg conversation.Message
	if err := c.Bind(&msg); err != nil {
		return respondError(c, errBadBody)
	}
	msg.CustomerID = customerID(c, msg.CustomerID)

	resp, err := h.chat.Handle(c.Request().Context(), msg)
	if err != nil {
		if !errors.Is(err, conversation.ErrInvalidMessage) {
			h.logger.Error("chat turn failed", zap.String("customer_id", msg.CustomerID), zap.Error(err))
		}
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ChatWebSocket handles GET /chat/ws. Every text frame is one message and
// is answered with one JSON Response frame, in order.
func (h *Handler) ChatWebSocket(c echo.Context) error {
	customer := customerID(c, c.QueryParam("customer_id"))
	if customer == "" {
		return respondError(c, conversation.ErrInvalidMessage)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return nil
	}
	defer ws.Close()

	log := h.logger.With(zap.String("customer_id", customer))
	log.Info("websocket connected")

	ws.SetReadLimit(h.maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.wsReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.wsReadTimeout))
	})

	ctx := c.Request().Context()
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket error", zap.Error(err))
			}
			return nil
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.wsReadTimeout))

		resp, err := h.chat.Handle(ctx, conversation.Message{CustomerID: customer, Text: string(data)})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err := h.writeFrame(ws, map[string]string{"error": err.Error()}); err != nil {
				return nil
			}
			continue
		}
		if err := h.writeFrame(ws, resp); err != nil {
			log.Warn("failed to write websocket frame", zap.Error(err))
			return nil
		}
	}
}

func (h *Handler) writeFrame(ws *websocket.Conn, v any) error {
	_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return ws.WriteJSON(v)
}
