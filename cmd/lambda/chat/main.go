package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/app"
	"github.com/example/chat-storefront/internal/config"
	"github.com/example/chat-storefront/internal/conversation"
	"github.com/example/chat-storefront/internal/logging"
)

type chatService interface {
	Handle(ctx context.Context, msg conversation.Message) (conversation.Response, error)
}

type chatHandler struct {
	chat   chatService
	logger *zap.Logger
}

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

func respond(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Headers: jsonHeaders, Body: `{"error":"internal error"}`}
	}
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: jsonHeaders, Body: string(body)}
}

// handle serves an API Gateway proxy request carrying the /chat body.
func (h *chatHandler) handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod != "" && req.HTTPMethod != http.MethodPost {
		return respond(http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"}), nil
	}

	var msg conversation.Message
	if err := json.Unmarshal([]byte(req.Body), &msg); err != nil {
		return respond(http.StatusBadRequest, map[string]string{"error": "invalid request body"}), nil
	}

	resp, err := h.chat.Handle(ctx, msg)
	switch {
	case errors.Is(err, conversation.ErrInvalidMessage):
		return respond(http.StatusBadRequest, map[string]string{"error": err.Error()}), nil
	case err != nil:
		h.logger.Error("chat turn failed", zap.String("customer_id", msg.CustomerID), zap.Error(err))
		return respond(http.StatusInternalServerError, map[string]string{"error": "internal error"}), nil
	}
	return respond(http.StatusOK, resp), nil
}

func main() {
	cfg, err := config.Load()
	logger := logging.Must(cfg.LogLevel, cfg.LogFormat).Named("lambda-chat")
	defer logger.Sync()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, sessions will not survive between invocations")
	}

	a, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}
	defer a.Close()

	h := &chatHandler{chat: a.Dispatcher, logger: logger}
	lambda.Start(h.handle)
}
