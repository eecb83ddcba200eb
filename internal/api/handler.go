// Package api exposes the chat engine and the vendor admin operations over
// HTTP and WebSocket.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/api/middleware"
	"github.com/example/chat-storefront/internal/auth"
	"github.com/example/chat-storefront/internal/conversation"
	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/domain/history"
	"github.com/example/chat-storefront/internal/domain/order"
)

// ChatService runs one conversational turn.
type ChatService interface {
	Handle(ctx context.Context, msg conversation.Message) (conversation.Response, error)
}

type Config struct {
	Chat    ChatService
	Catalog *catalog.Service
	Orders  *order.Service
	History history.Store
	JWT     *auth.JWTService
	Admin   auth.Admin
	Logger  *zap.Logger
	// MaxMessageSize bounds a single WebSocket frame.
	MaxMessageSize int64
	// WSReadTimeout closes idle WebSocket connections.
	WSReadTimeout time.Duration
}

// Handler handles HTTP requests.
type Handler struct {
	chat     ChatService
	catalog  *catalog.Service
	orders   *order.Service
	history  history.Store
	jwt      *auth.JWTService
	admin    auth.Admin
	logger   *zap.Logger
	upgrader websocket.Upgrader

	maxMessageSize int64
	wsReadTimeout  time.Duration
}

func NewHandler(cfg Config) *Handler {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	if cfg.WSReadTimeout <= 0 {
		cfg.WSReadTimeout = 10 * time.Minute
	}
	return &Handler{
		chat:    cfg.Chat,
		catalog: cfg.Catalog,
		orders:  cfg.Orders,
		history: cfg.History,
		jwt:     cfg.JWT,
		admin:   cfg.Admin,
		logger:  cfg.Logger.Named("api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		maxMessageSize: cfg.MaxMessageSize,
		wsReadTimeout:  cfg.WSReadTimeout,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	optional := middleware.OptionalAuth(h.jwt)
	e.POST("/chat", h.Chat, optional)
	e.GET("/chat/ws", h.ChatWebSocket, optional)

	e.POST("/auth/login", h.Login)
	e.GET("/products", h.ListProducts)

	admin := e.Group("/admin", middleware.Auth(h.jwt), middleware.RequireRole(auth.RoleAdmin))
	admin.POST("/products", h.CreateProduct)
	admin.POST("/products/:id/restock", h.RestockProduct)
	admin.GET("/orders", h.ListOrders)
	admin.GET("/orders/:id", h.GetOrder)
	admin.PUT("/orders/:id/status", h.UpdateOrderStatus)
	admin.GET("/sales/summary", h.SalesSummary)
	admin.GET("/alerts/low-stock", h.LowStock)
	admin.GET("/customers/:id/history", h.CustomerHistory)
}

// NewServer builds the echo instance with the standard middleware stack.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(h.logger))
	e.Use(echomw.CORS())
	h.RegisterRoutes(e)
	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
