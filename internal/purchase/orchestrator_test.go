package purchase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/domain/history"
	"github.com/example/chat-storefront/internal/domain/order"
	"github.com/example/chat-storefront/internal/infrastructure/store"
	"github.com/example/chat-storefront/internal/infrastructure/store/mocks"
	"github.com/example/chat-storefront/internal/payment"
	"github.com/example/chat-storefront/internal/purchase"
)

var noDelay = purchase.RetryPolicy{Attempts: 3}

func redSneakers() catalog.Product {
	return catalog.Product{
		ID:         "p-sneakers",
		Name:       "Red Sneakers",
		Price:      15000,
		StockLevel: 3,
		Tags:       []string{"kicks"},
		Category:   "footwear",
		CreatedAt:  time.Now().UTC(),
	}
}

type fixture struct {
	catalog *mocks.MockCatalogStore
	orders  *mocks.MockOrderStore
	history *mocks.MockHistoryStore
	intents *store.MemoryIntentLog
	links   *mocks.MockLinkGenerator
	orch    *purchase.Orchestrator
}

func newFixture(t *testing.T, deps purchase.Deps, products ...catalog.Product) *fixture {
	t.Helper()
	f := &fixture{
		catalog: mocks.NewMockCatalogStore(products...),
		orders:  mocks.NewMockOrderStore(),
		history: mocks.NewMockHistoryStore(),
		intents: store.NewMemoryIntentLog(),
		links:   mocks.NewMockLinkGenerator(),
	}
	deps.Catalog = f.catalog
	deps.Orders = order.NewService(f.orders, nil, zap.NewNop())
	deps.History = f.history
	deps.Intents = f.intents
	deps.Links = f.links
	if deps.Retry.Attempts == 0 {
		deps.Retry = noDelay
	}
	f.orch = purchase.NewOrchestrator(deps, zap.NewNop())
	return f
}

func (f *fixture) openIntents(t *testing.T) []purchase.Intent {
	t.Helper()
	open, err := f.intents.Open(context.Background())
	require.NoError(t, err)
	return open
}

// ============================================
// Purchase Tests
// ============================================

func TestPurchase_PaymentLink(t *testing.T) {
	f := newFixture(t, purchase.Deps{}, redSneakers())

	res, err := f.orch.Purchase(context.Background(), purchase.Request{
		CustomerID: "c1", ProductID: "p-sneakers", Quantity: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, f.catalog.Stock("p-sneakers"))
	assert.Equal(t, int64(15000), res.Order.Total)
	assert.Equal(t, order.StatusPending, res.Order.Status)
	require.Len(t, res.Order.Items, 1)
	assert.Equal(t, "Red Sneakers", res.Order.Items[0].Name)
	assert.Equal(t, 2, res.Product.StockLevel)

	assert.Equal(t, payment.MethodLink, res.Payment.Method)
	assert.Contains(t, res.Payment.Link, res.Order.ID)
	require.Len(t, f.links.Calls, 1)
	assert.Equal(t, int64(15000), f.links.Calls[0].Amount)

	require.Len(t, f.history.Entries, 1)
	assert.Equal(t, history.KindOrdered, f.history.Entries[0].Kind)
	assert.Equal(t, res.Order.ID, f.history.Entries[0].OrderID)

	assert.Empty(t, f.openIntents(t))
}

func TestPurchase_BankTransferPreferred(t *testing.T) {
	bank := payment.BankDetails{BankName: "GTBank", AccountNumber: "0123456789", AccountName: "KOFA Store"}
	f := newFixture(t, purchase.Deps{Bank: bank}, redSneakers())

	res, err := f.orch.Purchase(context.Background(), purchase.Request{
		CustomerID: "c1", ProductID: "p-sneakers", Quantity: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, payment.MethodBankTransfer, res.Payment.Method)
	require.NotNil(t, res.Payment.Bank)
	assert.Equal(t, bank, *res.Payment.Bank)
	assert.Empty(t, f.links.Calls)
	assert.Equal(t, int64(30000), res.Order.Total)
	assert.Equal(t, 1, f.catalog.Stock("p-sneakers"))
}

func TestPurchase_OutOfStock(t *testing.T) {
	p := redSneakers()
	p.StockLevel = 0
	f := newFixture(t, purchase.Deps{}, p)

	_, err := f.orch.Purchase(context.Background(), purchase.Request{
		CustomerID: "c1", ProductID: p.ID, Quantity: 1,
	})

	assert.ErrorIs(t, err, purchase.ErrInsufficientStock)
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
	assert.Empty(t, f.catalog.ReserveCalls)
	assert.Empty(t, f.orders.CreateCalls)
	assert.Empty(t, f.history.Entries)
	assert.Equal(t, 0, f.catalog.Stock(p.ID))
}

// staleCatalog reports more stock than the store holds, as a snapshot read
// just before another customer's reservation would.
type staleCatalog struct {
	*mocks.MockCatalogStore
}

func (s staleCatalog) Get(ctx context.Context, id string) (*catalog.Product, error) {
	p, err := s.MockCatalogStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.StockLevel = 10
	return p, nil
}

func TestPurchase_ReserveRejected(t *testing.T) {
	p := redSneakers()
	p.StockLevel = 1
	f := newFixture(t, purchase.Deps{}, p)
	f.orch = purchase.NewOrchestrator(purchase.Deps{
		Catalog: staleCatalog{f.catalog},
		Orders:  order.NewService(f.orders, nil, zap.NewNop()),
		History: f.history,
		Intents: f.intents,
		Links:   f.links,
		Retry:   noDelay,
	}, zap.NewNop())

	_, err := f.orch.Purchase(context.Background(), purchase.Request{
		CustomerID: "c1", ProductID: p.ID, Quantity: 2,
	})

	assert.ErrorIs(t, err, purchase.ErrInsufficientStock)
	assert.Len(t, f.catalog.ReserveCalls, 1)
	assert.Equal(t, 1, f.catalog.Stock(p.ID))
	assert.Empty(t, f.orders.CreateCalls)
	assert.Empty(t, f.catalog.ReleaseCalls)
	assert.Empty(t, f.openIntents(t))
}

func TestPurchase_TransientReserveRetried(t *testing.T) {
	f := newFixture(t, purchase.Deps{}, redSneakers())
	f.catalog.ReserveErrs = []error{errors.New("connection reset"), nil}

	_, err := f.orch.Purchase(context.Background(), purchase.Request{
		CustomerID: "c1", ProductID: "p-sneakers", Quantity: 1,
	})

	require.NoError(t, err)
	assert.Len(t, f.catalog.ReserveCalls, 2)
	assert.Equal(t, 2, f.catalog.Stock("p-sneakers"))
}

func TestPurchase_LostReserveReplyTakesStockOnce(t *testing.T) {
	f := newFixture(t, purchase.Deps{}, redSneakers())
	// the first call commits the decrement but its reply never arrives
	f.catalog.ReserveLostReplies = []error{errors.New("i/o timeout")}

	res, err := f.orch.Purchase(context.Background(), purchase.Request{
		CustomerID: "c1", ProductID: "p-sneakers", Quantity: 1,
	})

	require.NoError(t, err)
	assert.Equal(t, []mocks.StockCall{
		{ProductID: "p-sneakers", Quantity: 1},
		{ProductID: "p-sneakers", Quantity: 1},
	}, f.catalog.ReserveCalls)
	assert.Equal(t, 2, f.catalog.Stock("p-sneakers"))
	assert.Equal(t, 2, res.Product.StockLevel)
	assert.Len(t, f.orders.CreateCalls, 1)
	assert.Empty(t, f.catalog.ReleaseCalls)
	assert.Empty(t, f.openIntents(t))
}

func TestPurchase_ReserveFailsAfterRetries(t *testing.T) {
	f := newFixture(t, purchase.Deps{}, redSneakers())
	f.catalog.ReserveErr = errors.New("connection reset")

	_, err := f.orch.Purchase(context.Background(), purchase.Request{
		CustomerID: "c1", ProductID: "p-sneakers", Quantity: 1,
	})

	require.Error(t, err)
	assert.NotErrorIs(t, err, purchase.ErrInsufficientStock)
	assert.Len(t, f.catalog.ReserveCalls, 3)
	assert.Equal(t, 3, f.catalog.Stock("p-sneakers"))
	assert.Empty(t, f.orders.CreateCalls)
	assert.Len(t, f.catalog.ReleaseCalls, 1)
	assert.Empty(t, f.openIntents(t))
}

func TestPurchase_ReserveAppliedButEveryReplyLost(t *testing.T) {
	f := newFixture(t, purchase.Deps{}, redSneakers())
	lost := errors.New("i/o timeout")
	f.catalog.ReserveLostReplies = []error{lost, lost, lost}

	_, err := f.orch.Purchase(context.Background(), purchase.Request{
		CustomerID: "c1", ProductID: "p-sneakers", Quantity: 2,
	})

	assert.ErrorIs(t, err, lost)
	assert.Len(t, f.catalog.ReserveCalls, 3)
	assert.Equal(t, 3, f.catalog.Stock("p-sneakers"), "the reservation that did apply is released")
	assert.Empty(t, f.orders.CreateCalls)
	assert.Empty(t, f.openIntents(t))
}

func TestPurchase_ReleaseFailureLeavesIntentOpen(t *testing.T) {
	f := newFixture(t, purchase.Deps{}, redSneakers())
	f.catalog.ReserveLostReplies = []error{errors.New("i/o timeout"), errors.New("i/o timeout"), errors.New("i/o timeout")}
	f.catalog.ReleaseErr = errors.New("connection reset")

	_, err := f.orch.Purchase(context.Background(), purchase.Request{
		CustomerID: "c1", ProductID: "p-sneakers", Quantity: 1,
	})

	require.Error(t, err)
	assert.Equal(t, 2, f.catalog.Stock("p-sneakers"))
	require.Len(t, f.openIntents(t), 1)

	// once the store is reachable again, recovery gives the unit back
	f.catalog.ReleaseErr = nil
	closed, err := f.orch.Recover(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	assert.Equal(t, 3, f.catalog.Stock("p-sneakers"))
	assert.Empty(t, f.openIntents(t))
}

func TestPurchase_OrderPersistenceFailedCompensates(t *testing.T) {
	f := newFixture(t, purchase.Deps{}, redSneakers())
	f.orders.CreateErr = errors.New("disk full")

	_, err := f.orch.Purchase(context.Background(), purchase.Request{
		CustomerID: "c1", ProductID: "p-sneakers", Quantity: 2,
	})

	assert.ErrorIs(t, err, purchase.ErrOrderPersistenceFailed)
	assert.Equal(t, 3, f.catalog.Stock("p-sneakers"))
	require.Len(t, f.catalog.ReleaseCalls, 1)
	assert.False(t, f.catalog.Reserved(f.catalog.ReleaseCalls[0]))
	assert.Empty(t, f.history.Entries)
	assert.Empty(t, f.openIntents(t))
}

func TestPurchase_PaymentLinkFailedCompensates(t *testing.T) {
	f := newFixture(t, purchase.Deps{}, redSneakers())
	f.links.Err = errors.New("gateway unavailable")

	_, err := f.orch.Purchase(context.Background(), purchase.Request{
		CustomerID: "c1", ProductID: "p-sneakers", Quantity: 1,
	})

	assert.ErrorIs(t, err, purchase.ErrPaymentLinkFailed)
	assert.Equal(t, 3, f.catalog.Stock("p-sneakers"))
	assert.Len(t, f.links.Calls, 3)

	require.Len(t, f.orders.CreateCalls, 1)
	o, err := f.orders.Get(context.Background(), f.orders.CreateCalls[0].ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status)
	assert.Empty(t, f.openIntents(t))
}

func TestPurchase_NoPaymentMethod(t *testing.T) {
	f := newFixture(t, purchase.Deps{}, redSneakers())
	f.orch = purchase.NewOrchestrator(purchase.Deps{
		Catalog: f.catalog,
		Orders:  order.NewService(f.orders, nil, zap.NewNop()),
		History: f.history,
		Intents: f.intents,
		Retry:   noDelay,
	}, zap.NewNop())

	_, err := f.orch.Purchase(context.Background(), purchase.Request{
		CustomerID: "c1", ProductID: "p-sneakers", Quantity: 1,
	})

	assert.ErrorIs(t, err, purchase.ErrPaymentLinkFailed)
	assert.Equal(t, 3, f.catalog.Stock("p-sneakers"))
}

type denyAll struct{}

func (denyAll) CheckQuota(context.Context, string, int) error {
	return purchase.ErrQuotaExceeded
}

func TestPurchase_QuotaExceeded(t *testing.T) {
	f := newFixture(t, purchase.Deps{Quota: denyAll{}}, redSneakers())

	_, err := f.orch.Purchase(context.Background(), purchase.Request{
		CustomerID: "c1", ProductID: "p-sneakers", Quantity: 1,
	})

	assert.ErrorIs(t, err, purchase.ErrQuotaExceeded)
	assert.Empty(t, f.catalog.ReserveCalls)
	assert.Empty(t, f.openIntents(t))
}

func TestPurchase_InvalidRequest(t *testing.T) {
	free := redSneakers()
	free.ID = "p-free"
	free.Price = 0
	f := newFixture(t, purchase.Deps{}, redSneakers(), free)

	tests := []struct {
		name string
		req  purchase.Request
		want error
	}{
		{"zero quantity", purchase.Request{CustomerID: "c1", ProductID: "p-sneakers", Quantity: 0}, purchase.ErrInvalidRequest},
		{"missing product", purchase.Request{CustomerID: "c1", Quantity: 1}, purchase.ErrInvalidRequest},
		{"missing customer", purchase.Request{ProductID: "p-sneakers", Quantity: 1}, purchase.ErrInvalidRequest},
		{"unpriced product", purchase.Request{CustomerID: "c1", ProductID: "p-free", Quantity: 1}, purchase.ErrInvalidRequest},
		{"unknown product", purchase.Request{CustomerID: "c1", ProductID: "p-nope", Quantity: 1}, catalog.ErrProductNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.Purchase(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.catalog.ReserveCalls)
}

// ============================================
// Recover Tests
// ============================================

func TestRecover(t *testing.T) {
	ctx := context.Background()
	p := redSneakers()
	p.StockLevel = 4
	f := newFixture(t, purchase.Deps{}, p)

	old := time.Now().UTC().Add(-time.Hour)
	begin := func(id, orderID string, qty int) {
		require.NoError(t, f.intents.Begin(ctx, &purchase.Intent{
			ID: id, CustomerID: "c1", ProductID: p.ID, Quantity: qty,
			OrderID: orderID, State: purchase.IntentBegun, CreatedAt: old, UpdatedAt: old,
		}))
	}
	reserve := func(id string) {
		ok, err := f.catalog.Reserve(ctx, id, p.ID, 1)
		require.NoError(t, err)
		require.True(t, ok)
	}

	// never reserved
	begin("i-begun", "o-begun", 5)

	// reservation applied, crashed before the intent recorded it
	begin("i-unrecorded", "o-unrecorded", 1)
	reserve("i-unrecorded")

	// reserved, crashed before the order was written
	begin("i-reserved", "o-missing", 1)
	reserve("i-reserved")
	require.NoError(t, f.intents.Mark(ctx, "i-reserved", purchase.IntentStockReserved, ""))

	// order written, crashed before payment instructions
	begin("i-created", "o-pending", 1)
	reserve("i-created")
	require.NoError(t, f.intents.Mark(ctx, "i-created", purchase.IntentOrderCreated, ""))
	f.orders.Put(order.Order{ID: "o-pending", CustomerID: "c1", Status: order.StatusPending, Total: 15000})

	// completed except for the final mark; customer already paid
	begin("i-paid", "o-paid", 1)
	reserve("i-paid")
	require.NoError(t, f.intents.Mark(ctx, "i-paid", purchase.IntentOrderCreated, ""))
	f.orders.Put(order.Order{ID: "o-paid", CustomerID: "c1", Status: order.StatusPaid, Total: 15000})

	require.Equal(t, 0, f.catalog.Stock(p.ID))

	// Mark stamps UpdatedAt with now, so recover everything older than now.
	closed, err := f.orch.Recover(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, 5, closed)
	assert.Empty(t, f.openIntents(t))
	assert.Equal(t, 3, f.catalog.Stock(p.ID), "every unpaid reservation is released, nothing more")
	assert.True(t, f.catalog.Reserved("i-paid"))

	pending, err := f.orders.Get(ctx, "o-pending")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, pending.Status)

	paid, err := f.orders.Get(ctx, "o-paid")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, paid.Status)

	// a second pass finds nothing and gives nothing back twice
	closed, err = f.orch.Recover(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
	assert.Equal(t, 3, f.catalog.Stock(p.ID))
}

func TestRecover_SkipsInFlight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, purchase.Deps{}, redSneakers())

	now := time.Now().UTC()
	require.NoError(t, f.intents.Begin(ctx, &purchase.Intent{
		ID: "i-fresh", CustomerID: "c1", ProductID: "p-sneakers", Quantity: 1,
		State: purchase.IntentStockReserved, CreatedAt: now, UpdatedAt: now,
	}))

	closed, err := f.orch.Recover(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
	assert.Len(t, f.openIntents(t), 1)
	assert.Empty(t, f.catalog.ReleaseCalls)
}

// ============================================
// Concurrency Tests
// ============================================

func TestConditionalDecrement_Concurrent(t *testing.T) {
	ctx := context.Background()

	db, err := store.Open(ctx, ":memory:", "vendor-1")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stores := map[string]catalog.Store{
		"memory": store.NewMemoryCatalog(),
		"sqlite": store.NewSQLCatalog(db),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			p := redSneakers()
			require.NoError(t, s.Create(ctx, &p))

			results := make([]bool, 2)
			var g errgroup.Group
			for i := range results {
				i := i
				g.Go(func() error {
					ok, err := s.ConditionalDecrement(ctx, p.ID, 2)
					results[i] = ok
					return err
				})
			}
			require.NoError(t, g.Wait())

			successes := 0
			for _, ok := range results {
				if ok {
					successes++
				}
			}
			assert.Equal(t, 1, successes)

			got, err := s.Get(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, got.StockLevel)
		})
	}
}

func TestPurchase_ConcurrentCustomers(t *testing.T) {
	ctx := context.Background()
	p := redSneakers()
	f := newFixture(t, purchase.Deps{}, p)

	errs := make([]error, 2)
	var g errgroup.Group
	for i, customer := range []string{"c1", "c2"} {
		i, customer := i, customer
		g.Go(func() error {
			_, errs[i] = f.orch.Purchase(ctx, purchase.Request{
				CustomerID: customer, ProductID: p.ID, Quantity: 2,
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, purchase.ErrInsufficientStock):
			insufficient++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 1, f.catalog.Stock(p.ID))
	assert.Len(t, f.orders.CreateCalls, 1)
}

func TestReserve_ConcurrentRetriesTakeStockOnce(t *testing.T) {
	ctx := context.Background()

	db, err := store.Open(ctx, ":memory:", "vendor-1")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stores := map[string]catalog.Store{
		"memory": store.NewMemoryCatalog(),
		"sqlite": store.NewSQLCatalog(db),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			p := redSneakers()
			require.NoError(t, s.Create(ctx, &p))

			var g errgroup.Group
			for n := 0; n < 4; n++ {
				g.Go(func() error {
					ok, err := s.Reserve(ctx, "intent-1", p.ID, 2)
					if err == nil && !ok {
						return errors.New("reservation refused")
					}
					return err
				})
			}
			require.NoError(t, g.Wait())

			got, err := s.Get(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, got.StockLevel)
		})
	}
}
