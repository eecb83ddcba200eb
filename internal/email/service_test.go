package email

import (
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOrderNoticeBody(t *testing.T) {
	body := BuildOrderNoticeBody(OrderNotice{
		Headline:   "Payment received",
		OrderID:    "order-123",
		CustomerID: "+2348000000000",
		Status:     "paid",
		Total:      30000,
		Items: []OrderItem{
			{ProductID: "p-1", Name: "Red <Canvas> Sneakers", Quantity: 2, UnitPrice: 15000},
			{ProductID: "p-2", Quantity: 1, UnitPrice: 500},
		},
	})

	assert.Contains(t, body, "Payment received")
	assert.Contains(t, body, "order-123")
	assert.Contains(t, body, "PAID")
	assert.Contains(t, body, "Red &lt;Canvas&gt; Sneakers")
	assert.Contains(t, body, "p-2")
	assert.Contains(t, body, "₦15,000")
	assert.Contains(t, body, "₦30,000")
}

func TestService_SendOrderNotice(t *testing.T) {
	svc := NewService("smtp.local", "2525", "shop@example.com")

	var gotAddr string
	var gotTo []string
	var gotMsg string
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err := svc.SendOrderNotice("vendor@example.com", OrderNotice{Headline: "New order", OrderID: "abcdef123456", Status: "pending"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.Equal(t, []string{"vendor@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: New order (order abcdef12)")
	assert.Contains(t, gotMsg, "Content-Type: text/html")
}

func TestService_SendLowStockNotice(t *testing.T) {
	svc := NewService("smtp.local", "2525", "shop@example.com")

	var gotMsg string
	svc.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotMsg = string(msg)
		return nil
	}

	err := svc.SendLowStockNotice("vendor@example.com", LowStockNotice{ProductID: "p-1", Name: "Red & Blue Cap", StockLevel: 1, Level: "critical"})
	require.NoError(t, err)

	assert.Contains(t, gotMsg, "Subject: Low stock: Red & Blue Cap (1 left)")
	assert.Contains(t, gotMsg, "Red &amp; Blue Cap")
	assert.Contains(t, gotMsg, "CRITICAL")
	assert.Contains(t, gotMsg, "#c62828")
}
