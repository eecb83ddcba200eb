package mocks

import (
	"context"
	"fmt"
	"sync"
)

// MockLinkGenerator is a mock implementation of payment.LinkGenerator
type MockLinkGenerator struct {
	mu    sync.Mutex
	Calls []LinkCall

	// Err fails every call; Errs is consumed first, one entry per call.
	Err  error
	Errs []error
}

// LinkCall records parameters passed to Generate
type LinkCall struct {
	OrderID    string
	Amount     int64
	CustomerID string
}

func NewMockLinkGenerator() *MockLinkGenerator {
	return &MockLinkGenerator{}
}

func (m *MockLinkGenerator) Generate(_ context.Context, orderID string, amount int64, customerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, LinkCall{OrderID: orderID, Amount: amount, CustomerID: customerID})
	if len(m.Errs) > 0 {
		err := m.Errs[0]
		m.Errs = m.Errs[1:]
		if err != nil {
			return "", err
		}
	} else if m.Err != nil {
		return "", m.Err
	}
	return fmt.Sprintf("https://pay.test/?ref=%s&amount=%d", orderID, amount), nil
}
