package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/chat-storefront/internal/auth"
	"github.com/example/chat-storefront/internal/conversation"
	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/domain/history"
	"github.com/example/chat-storefront/internal/domain/order"
	"github.com/example/chat-storefront/internal/infrastructure/store"
	"github.com/example/chat-storefront/internal/infrastructure/store/mocks"
	"github.com/example/chat-storefront/internal/intent"
	"github.com/example/chat-storefront/internal/purchase"
	"github.com/example/chat-storefront/internal/search"
)

const (
	adminEmail    = "vendor@example.com"
	adminPassword = "correct-horse"
)

type testServer struct {
	e       *echo.Echo
	jwt     *auth.JWTService
	catalog *store.MemoryCatalog
	orders  *store.MemoryOrders
	history *store.MemoryHistory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	ctx := context.Background()

	cat := store.NewMemoryCatalog()
	for _, p := range []catalog.Product{
		{ID: "p-sneakers", Name: "Red Sneakers", Price: 15000, StockLevel: 3, Category: "footwear", Tags: []string{"kicks"}},
		{ID: "p-charger", Name: "Phone Charger", Price: 5000, StockLevel: 1, Category: "electronics", Tags: []string{"charger"}},
	} {
		p := p
		require.NoError(t, cat.Create(ctx, &p))
	}

	ts := &testServer{
		jwt:     auth.NewJWTService("test-secret-key-for-testing-purposes", time.Hour),
		catalog: cat,
		orders:  store.NewMemoryOrders(),
		history: store.NewMemoryHistory(),
	}
	orders := order.NewService(ts.orders, nil, logger)
	purchaser := purchase.NewOrchestrator(purchase.Deps{
		Catalog: cat,
		Orders:  orders,
		History: ts.history,
		Intents: store.NewMemoryIntentLog(),
		Links:   mocks.NewMockLinkGenerator(),
		Retry:   purchase.RetryPolicy{Attempts: 1},
	}, logger)
	dispatcher := conversation.NewDispatcher(conversation.Deps{
		Classifier: intent.NewClassifier(intent.DefaultVocabulary(), 0),
		Resolver:   search.NewResolver(search.DefaultConfig()),
		Catalog:    cat,
		Orders:     orders,
		History:    ts.history,
		Sessions:   store.NewMemorySessions(),
		Purchaser:  purchaser,
	}, logger)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	h := NewHandler(Config{
		Chat:    dispatcher,
		Catalog: catalog.NewService(cat, nil, logger, 0),
		Orders:  orders,
		History: ts.history,
		JWT:     ts.jwt,
		Admin:   auth.Admin{Email: adminEmail, PasswordHash: string(hash)},
		Logger:  logger,
	})
	ts.e = NewServer(h)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := ts.jwt.Issue(adminEmail, auth.RoleAdmin)
	require.NoError(t, err)
	return token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// ============================================
// Chat Tests
// ============================================

func TestChat(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/chat", conversation.Message{CustomerID: "c1", Text: "do you have red sneakers"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[conversation.Response](t, rec)
	assert.Equal(t, intent.AvailabilityCheck, resp.Intent)
	require.NotNil(t, resp.ResolvedProduct)
	assert.Equal(t, "p-sneakers", resp.ResolvedProduct.ID)
	assert.Contains(t, resp.ReplyText, "₦15,000")
}

func TestChat_InvalidMessage(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []any{
		conversation.Message{CustomerID: "", Text: "hi"},
		conversation.Message{CustomerID: "c1", Text: "   "},
	} {
		rec := ts.do(t, http.MethodPost, "/chat", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{broken"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_CustomerTokenSetsIdentity(t *testing.T) {
	ts := newTestServer(t)
	token, _, err := ts.jwt.Issue("token-customer", auth.RoleCustomer)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/chat", conversation.Message{CustomerID: "spoofed", Text: "I want to buy red sneakers"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[conversation.Response](t, rec)
	require.NotEmpty(t, resp.OrderID)

	o, err := ts.orders.Get(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "token-customer", o.CustomerID)
}

func TestChatWebSocket(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws?customer_id=c1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, text := range []string{"hello", "do you have phone charger"} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(text)))
	}

	var first, second conversation.Response
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))

	assert.Equal(t, intent.Greeting, first.Intent)
	require.NotNil(t, second.ResolvedProduct)
	assert.Equal(t, "p-charger", second.ResolvedProduct.ID)
}

func TestChatWebSocket_RequiresCustomer(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/chat/ws", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================
// Auth Tests
// ============================================

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/login", LoginRequest{Email: adminEmail, Password: adminPassword}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LoginResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "access_token=")

	rec = ts.do(t, http.MethodGet, "/admin/orders", nil, resp.Token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/login", LoginRequest{Email: adminEmail, Password: "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRequiresAdminRole(t *testing.T) {
	ts := newTestServer(t)
	customer, _, err := ts.jwt.Issue("c1", auth.RoleCustomer)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/admin/sales/summary", nil, "").Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/admin/sales/summary", nil, customer).Code)
}

// ============================================
// Admin Tests
// ============================================

func TestAdmin_Products(t *testing.T) {
	ts := newTestServer(t)
	token := ts.adminToken(t)

	rec := ts.do(t, http.MethodPost, "/admin/products", catalog.CreateInput{Name: "Gold Chain", Price: 45000, StockLevel: 2, Category: "jewelry"}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[catalog.Product](t, rec)

	rec = ts.do(t, http.MethodPost, "/admin/products", catalog.CreateInput{Name: "Free Chain"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/admin/alerts/low-stock", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decode[[]catalog.LowStockAlert](t, rec)
	assert.Len(t, alerts, 3)

	rec = ts.do(t, http.MethodPost, "/admin/products/"+created.ID+"/restock", RestockRequest{Quantity: 8}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, decode[catalog.Product](t, rec).StockLevel)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/admin/products/"+created.ID+"/restock", RestockRequest{Quantity: 0}, token).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/admin/products/missing/restock", RestockRequest{Quantity: 1}, token).Code)

	rec = ts.do(t, http.MethodGet, "/products", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]catalog.Product](t, rec), 3)
}

func TestAdmin_OrderLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.adminToken(t)

	rec := ts.do(t, http.MethodPost, "/chat", conversation.Message{CustomerID: "c1", Text: "I want to buy 2 red sneakers"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	orderID := decode[conversation.Response](t, rec).OrderID
	require.NotEmpty(t, orderID)

	rec = ts.do(t, http.MethodGet, "/admin/orders?status=pending", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]order.Order](t, rec), 1)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/admin/orders?status=shipped", nil, token).Code)

	path := "/admin/orders/" + orderID + "/status"
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, path, StatusRequest{Status: "cancelled"}, token).Code)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPut, path, StatusRequest{Status: "fulfilled"}, token).Code)

	rec = ts.do(t, http.MethodPut, path, StatusRequest{Status: "paid"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.StatusPaid, decode[order.Order](t, rec).Status)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPut, path, StatusRequest{Status: "paid"}, token).Code)

	rec = ts.do(t, http.MethodPut, path, StatusRequest{Status: "fulfilled"}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/admin/orders/missing", nil, token).Code)

	rec = ts.do(t, http.MethodGet, "/admin/sales/summary", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[order.SalesSummary](t, rec)
	assert.Equal(t, int64(30000), sum.Revenue)
	assert.Equal(t, 2, sum.UnitsSold)

	rec = ts.do(t, http.MethodGet, "/admin/customers/c1/history", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]history.Entry](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, history.KindOrdered, entries[0].Kind)
	assert.Equal(t, history.KindPaid, entries[1].Kind)

	rec = ts.do(t, http.MethodGet, "/admin/customers/nobody/history", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
