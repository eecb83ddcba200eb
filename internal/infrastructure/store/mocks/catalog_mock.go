package mocks

import (
	"context"
	"sync"

	"github.com/example/chat-storefront/internal/domain/catalog"
)

// MockCatalogStore is a mock implementation of catalog.Store for testing
type MockCatalogStore struct {
	mu           sync.Mutex
	products     map[string]*catalog.Product
	order        []string
	reservations map[string]*catalog.Reservation

	// For tracking calls in tests
	ReserveCalls []StockCall
	ReleaseCalls []string

	// Error injection
	ListErr    error
	ReserveErr error
	ReleaseErr error
	// ReserveErrs is consumed one entry per Reserve call before ReserveErr
	// is consulted; a nil entry lets the call proceed.
	ReserveErrs []error
	// ReserveLostReplies is consumed one entry per Reserve call that got
	// through. The stock is taken and the entry is returned in place of the
	// reply, as when a store commits but the connection drops.
	ReserveLostReplies []error
}

// StockCall records parameters passed to a stock mutation
type StockCall struct {
	ProductID string
	Quantity  int
}

// NewMockCatalogStore creates a new MockCatalogStore seeded with products
func NewMockCatalogStore(products ...catalog.Product) *MockCatalogStore {
	m := &MockCatalogStore{
		products:     make(map[string]*catalog.Product),
		reservations: make(map[string]*catalog.Reservation),
	}
	for i := range products {
		p := products[i]
		m.products[p.ID] = &p
		m.order = append(m.order, p.ID)
	}
	return m
}

func (m *MockCatalogStore) Create(_ context.Context, p *catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
	m.order = append(m.order, p.ID)
	return nil
}

func (m *MockCatalogStore) Get(_ context.Context, id string) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockCatalogStore) List(_ context.Context) ([]catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]catalog.Product, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.products[id])
	}
	return out, nil
}

func (m *MockCatalogStore) ConditionalDecrement(_ context.Context, id string, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decrementLocked(id, qty)
}

func (m *MockCatalogStore) decrementLocked(id string, qty int) (bool, error) {
	p, ok := m.products[id]
	if !ok {
		return false, catalog.ErrProductNotFound
	}
	if p.StockLevel < qty {
		return false, nil
	}
	p.StockLevel -= qty
	return true, nil
}

func (m *MockCatalogStore) Restock(_ context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return catalog.ErrProductNotFound
	}
	p.StockLevel += qty
	return nil
}

func (m *MockCatalogStore) Reserve(_ context.Context, reservationID, id string, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReserveCalls = append(m.ReserveCalls, StockCall{ProductID: id, Quantity: qty})
	if len(m.ReserveErrs) > 0 {
		err := m.ReserveErrs[0]
		m.ReserveErrs = m.ReserveErrs[1:]
		if err != nil {
			return false, err
		}
	} else if m.ReserveErr != nil {
		return false, m.ReserveErr
	}

	if _, ok := m.reservations[reservationID]; !ok {
		ok, err := m.decrementLocked(id, qty)
		if err != nil || !ok {
			return ok, err
		}
		m.reservations[reservationID] = &catalog.Reservation{ID: reservationID, ProductID: id, Quantity: qty}
	}

	if len(m.ReserveLostReplies) > 0 {
		err := m.ReserveLostReplies[0]
		m.ReserveLostReplies = m.ReserveLostReplies[1:]
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

func (m *MockCatalogStore) Release(_ context.Context, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReleaseCalls = append(m.ReleaseCalls, reservationID)
	if m.ReleaseErr != nil {
		return m.ReleaseErr
	}
	r, ok := m.reservations[reservationID]
	if !ok || r.Released {
		return nil
	}
	p, ok := m.products[r.ProductID]
	if !ok {
		return catalog.ErrProductNotFound
	}
	p.StockLevel += r.Quantity
	r.Released = true
	return nil
}

// Reserved reports whether a reservation holds stock that was not released.
func (m *MockCatalogStore) Reserved(reservationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[reservationID]
	return ok && !r.Released
}

// Stock returns the current stock level of a product, or -1 when unknown.
func (m *MockCatalogStore) Stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[id]; ok {
		return p.StockLevel
	}
	return -1
}
