package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/example/chat-storefront/internal/events"
)

// MockPublisher records published events for assertions.
type MockPublisher struct {
	mu     sync.Mutex
	Events []events.Event

	PublishErr error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, _ string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	if e, ok := event.(events.Event); ok {
		m.Events = append(m.Events, e)
		return nil
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	var e events.Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return err
	}
	m.Events = append(m.Events, e)
	return nil
}

// Types lists the recorded event types in publish order.
func (m *MockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Type)
	}
	return out
}
