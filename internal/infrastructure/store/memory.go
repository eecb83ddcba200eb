package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/domain/history"
	"github.com/example/chat-storefront/internal/domain/order"
	"github.com/example/chat-storefront/internal/purchase"
	"github.com/example/chat-storefront/internal/session"
)

// MemoryCatalog is an in-process catalog guarded by a single mutex, which
// makes ConditionalDecrement a plain check-and-set.
type MemoryCatalog struct {
	mu           sync.RWMutex
	products     map[string]*catalog.Product
	order        []string // insertion order
	reservations map[string]*catalog.Reservation
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		products:     make(map[string]*catalog.Product),
		reservations: make(map[string]*catalog.Reservation),
	}
}

func (m *MemoryCatalog) Create(_ context.Context, p *catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.products[p.ID]; !exists {
		m.order = append(m.order, p.ID)
	}
	cp := cloneProduct(*p)
	m.products[p.ID] = &cp
	return nil
}

func (m *MemoryCatalog) Get(_ context.Context, id string) (*catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := cloneProduct(*p)
	return &cp, nil
}

func (m *MemoryCatalog) List(_ context.Context) ([]catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]catalog.Product, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneProduct(*m.products[id]))
	}
	return out, nil
}

func (m *MemoryCatalog) ConditionalDecrement(_ context.Context, id string, qty int) (bool, error) {
	if qty <= 0 {
		return false, catalog.ErrInvalidQuantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decrementLocked(id, qty)
}

func (m *MemoryCatalog) decrementLocked(id string, qty int) (bool, error) {
	p, ok := m.products[id]
	if !ok {
		return false, catalog.ErrProductNotFound
	}
	if p.StockLevel < qty {
		return false, nil
	}
	p.StockLevel -= qty
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MemoryCatalog) Restock(_ context.Context, id string, qty int) error {
	if qty <= 0 {
		return catalog.ErrInvalidQuantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restockLocked(id, qty)
}

func (m *MemoryCatalog) restockLocked(id string, qty int) error {
	p, ok := m.products[id]
	if !ok {
		return catalog.ErrProductNotFound
	}
	p.StockLevel += qty
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryCatalog) Reserve(_ context.Context, reservationID, id string, qty int) (bool, error) {
	if qty <= 0 {
		return false, catalog.ErrInvalidQuantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, done := m.reservations[reservationID]; done {
		return true, nil
	}
	ok, err := m.decrementLocked(id, qty)
	if err != nil || !ok {
		return false, err
	}
	m.reservations[reservationID] = &catalog.Reservation{ID: reservationID, ProductID: id, Quantity: qty}
	return true, nil
}

func (m *MemoryCatalog) Release(_ context.Context, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[reservationID]
	if !ok || r.Released {
		return nil
	}
	if err := m.restockLocked(r.ProductID, r.Quantity); err != nil {
		return err
	}
	r.Released = true
	return nil
}

func cloneProduct(p catalog.Product) catalog.Product {
	p.Tags = append([]string(nil), p.Tags...)
	return p
}

// MemoryOrders keeps orders in a map keyed by id.
type MemoryOrders struct {
	mu     sync.RWMutex
	orders map[string]*order.Order
	seq    []string
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{orders: make(map[string]*order.Order)}
}

func (m *MemoryOrders) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := cloneOrder(*o)
	if _, exists := m.orders[o.ID]; !exists {
		m.seq = append(m.seq, o.ID)
	}
	m.orders[o.ID] = &cp
	return nil
}

func (m *MemoryOrders) Get(_ context.Context, id string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := cloneOrder(*o)
	return &cp, nil
}

func (m *MemoryOrders) List(_ context.Context) ([]order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]order.Order, 0, len(m.seq))
	for _, id := range m.seq {
		out = append(out, cloneOrder(*m.orders[id]))
	}
	return out, nil
}

func (m *MemoryOrders) LatestPending(_ context.Context, customerID string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.seq) - 1; i >= 0; i-- {
		o := m.orders[m.seq[i]]
		if o.CustomerID == customerID && o.Status == order.StatusPending {
			cp := cloneOrder(*o)
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (m *MemoryOrders) TransitionStatus(_ context.Context, id string, from, to order.Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return false, order.ErrOrderNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = at
	switch to {
	case order.StatusPaid:
		o.PaidAt = &at
	case order.StatusFulfilled:
		o.FulfilledAt = &at
	}
	return true, nil
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]order.LineItem(nil), o.Items...)
	return o
}

// MemoryHistory is an append-only slice per customer. Like SQLHistory it
// ignores a repeated (order, kind, product) entry.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries map[string][]history.Entry
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string][]history.Entry)}
}

func (m *MemoryHistory) Append(_ context.Context, e history.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, prev := range m.entries[e.CustomerID] {
		if prev.OrderID == e.OrderID && prev.Kind == e.Kind && prev.ProductID == e.ProductID {
			return nil
		}
	}
	m.entries[e.CustomerID] = append(m.entries[e.CustomerID], e)
	return nil
}

func (m *MemoryHistory) ListByCustomer(_ context.Context, customerID string) ([]history.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]history.Entry(nil), m.entries[customerID]...), nil
}

// MemoryIntentLog holds purchase intents for a single process. It does not
// survive a restart, so Recover is only meaningful with the SQL log.
type MemoryIntentLog struct {
	mu      sync.Mutex
	intents map[string]*purchase.Intent
}

func NewMemoryIntentLog() *MemoryIntentLog {
	return &MemoryIntentLog{intents: make(map[string]*purchase.Intent)}
}

func (m *MemoryIntentLog) Begin(_ context.Context, in *purchase.Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *in
	m.intents[in.ID] = &cp
	return nil
}

func (m *MemoryIntentLog) Mark(_ context.Context, id string, state purchase.IntentState, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.intents[id]
	if !ok {
		return purchase.ErrIntentNotFound
	}
	in.State = state
	if orderID != "" {
		in.OrderID = orderID
	}
	in.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryIntentLog) Open(_ context.Context) ([]purchase.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]purchase.Intent, 0)
	for _, in := range m.intents {
		if !in.State.Terminal() {
			out = append(out, *in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MemorySessions keeps sessions in process memory. Sessions are lost on
// restart; use RedisSessions for durability.
type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]session.Session)}
}

func (m *MemorySessions) Get(_ context.Context, customerID string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[customerID]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemorySessions) Save(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.CustomerID] = *s
	return nil
}

func (m *MemorySessions) Delete(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, customerID)
	return nil
}
