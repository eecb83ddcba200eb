// Package session holds the per-customer conversation state that survives
// between turns.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/example/chat-storefront/internal/domain/catalog"
)

var ErrSessionNotFound = errors.New("session not found")

type State string

const (
	StateIdle                State = "IDLE"
	StateAwaitingSelection   State = "AWAITING_SELECTION"
	StateProductSelected     State = "PRODUCT_SELECTED"
	StateOrderPendingPayment State = "ORDER_PENDING_PAYMENT"
)

// Session is the conversation state of one customer.
type Session struct {
	CustomerID        string            `json:"customer_id"`
	AwaitingSelection bool              `json:"awaiting_selection"`
	Candidates        []catalog.Product `json:"candidates,omitempty"`
	QueryText         string            `json:"query_text,omitempty"`
	CurrentProduct    *catalog.Product  `json:"current_product,omitempty"`
	Quantity          int               `json:"quantity"`
	PendingOrderID    string            `json:"pending_order_id,omitempty"`
	LastUpdated       time.Time         `json:"last_updated"`
}

// New returns an IDLE session.
func New(customerID string) *Session {
	return &Session{CustomerID: customerID, Quantity: 1, LastUpdated: time.Now().UTC()}
}

// State derives the conversation state from the session fields.
func (s *Session) State() State {
	switch {
	case s.AwaitingSelection && len(s.Candidates) > 0:
		return StateAwaitingSelection
	case s.PendingOrderID != "":
		return StateOrderPendingPayment
	case s.CurrentProduct != nil:
		return StateProductSelected
	default:
		return StateIdle
	}
}

// SetCandidates records an ambiguous search and waits for the customer to
// pick. A product held from an earlier search is let go, so a confirmation
// that picks nothing cannot buy it.
func (s *Session) SetCandidates(query string, candidates []catalog.Product) {
	s.AwaitingSelection = true
	s.CurrentProduct = nil
	s.QueryText = query
	s.Candidates = append([]catalog.Product(nil), candidates...)
	s.touch()
}

// Select holds p as the product under discussion and leaves selection mode.
func (s *Session) Select(p catalog.Product) {
	s.AwaitingSelection = false
	s.Candidates = nil
	s.QueryText = ""
	s.CurrentProduct = &p
	if s.Quantity <= 0 {
		s.Quantity = 1
	}
	s.touch()
}

// SetPendingOrder records a placed order awaiting payment.
func (s *Session) SetPendingOrder(orderID string) {
	s.PendingOrderID = orderID
	s.touch()
}

// ClearPending forgets the pending order and the held product.
func (s *Session) ClearPending() {
	s.PendingOrderID = ""
	s.CurrentProduct = nil
	s.Quantity = 1
	s.touch()
}

// Reset returns the session to IDLE.
func (s *Session) Reset() {
	customerID := s.CustomerID
	*s = *New(customerID)
}

func (s *Session) touch() {
	s.LastUpdated = time.Now().UTC()
}

// Store persists sessions. Get returns ErrSessionNotFound for an unknown
// customer; Load wraps that into a fresh session.
type Store interface {
	Get(ctx context.Context, customerID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, customerID string) error
}

// Load fetches the session of customerID, creating an IDLE one on first
// contact.
func Load(ctx context.Context, store Store, customerID string) (*Session, error) {
	s, err := store.Get(ctx, customerID)
	if errors.Is(err, ErrSessionNotFound) {
		return New(customerID), nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
