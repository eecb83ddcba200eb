package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/example/chat-storefront/internal/domain/history"
	"github.com/example/chat-storefront/internal/domain/order"
)

// MockOrderStore is a mock implementation of order.Store for testing
type MockOrderStore struct {
	mu     sync.Mutex
	orders map[string]*order.Order
	seq    []string

	CreateCalls     []order.Order
	TransitionCalls []TransitionCall

	CreateErr        error
	LatestPendingErr error
}

// TransitionCall records parameters passed to TransitionStatus
type TransitionCall struct {
	OrderID string
	From    order.Status
	To      order.Status
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{orders: make(map[string]*order.Order)}
}

func (m *MockOrderStore) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, *o)
	if m.CreateErr != nil {
		return m.CreateErr
	}
	cp := *o
	m.orders[o.ID] = &cp
	m.seq = append(m.seq, o.ID)
	return nil
}

func (m *MockOrderStore) Get(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderStore) List(_ context.Context) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]order.Order, 0, len(m.seq))
	for _, id := range m.seq {
		out = append(out, *m.orders[id])
	}
	return out, nil
}

func (m *MockOrderStore) LatestPending(_ context.Context, customerID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LatestPendingErr != nil {
		return nil, m.LatestPendingErr
	}
	for i := len(m.seq) - 1; i >= 0; i-- {
		o := m.orders[m.seq[i]]
		if o.CustomerID == customerID && o.Status == order.StatusPending {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (m *MockOrderStore) TransitionStatus(_ context.Context, id string, from, to order.Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TransitionCalls = append(m.TransitionCalls, TransitionCall{OrderID: id, From: from, To: to})
	o, ok := m.orders[id]
	if !ok {
		return false, order.ErrOrderNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = at
	return true, nil
}

// Put seeds an order directly, bypassing CreateErr.
func (m *MockOrderStore) Put(o order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = &o
	m.seq = append(m.seq, o.ID)
}

// MockHistoryStore is a mock implementation of history.Store for testing
type MockHistoryStore struct {
	mu      sync.Mutex
	Entries []history.Entry

	AppendErr error
}

func NewMockHistoryStore() *MockHistoryStore {
	return &MockHistoryStore{}
}

func (m *MockHistoryStore) Append(_ context.Context, e history.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Entries = append(m.Entries, e)
	return nil
}

func (m *MockHistoryStore) ListByCustomer(_ context.Context, customerID string) ([]history.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []history.Entry
	for _, e := range m.Entries {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	return out, nil
}
