package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/chat-storefront/internal/domain/history"
	"github.com/example/chat-storefront/internal/domain/order"
	"github.com/example/chat-storefront/internal/infrastructure/store/mocks"
)

func TestRecord(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := order.Order{
		ID:         "o1",
		CustomerID: "c1",
		Items: []order.LineItem{
			{ProductID: "p1", Name: "Red Sneakers", Quantity: 2, UnitPrice: 15000, LineTotal: 30000},
			{ProductID: "p2", Name: "Blue Jacket", Quantity: 1, UnitPrice: 32000, LineTotal: 32000},
		},
	}

	t.Run("one entry per line item", func(t *testing.T) {
		s := mocks.NewMockHistoryStore()
		require.NoError(t, history.Record(context.Background(), s, history.KindPaid, o, at))

		require.Len(t, s.Entries, 2)
		assert.Equal(t, history.Entry{
			Kind:        history.KindPaid,
			CustomerID:  "c1",
			OrderID:     "o1",
			ProductID:   "p1",
			ProductName: "Red Sneakers",
			Quantity:    2,
			Amount:      30000,
			RecordedAt:  at,
		}, s.Entries[0])
		assert.Equal(t, int64(32000), s.Entries[1].Amount)
	})

	t.Run("store errors are joined", func(t *testing.T) {
		boom := errors.New("disk full")
		s := mocks.NewMockHistoryStore()
		s.AppendErr = boom

		err := history.Record(context.Background(), s, history.KindOrdered, o, at)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, s.Entries)
	})
}
