package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/example/chat-storefront/internal/reply"
)

// OrderItem is one line of an order notification.
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
}

// OrderNotice carries what the vendor needs to act on an order.
type OrderNotice struct {
	Headline   string
	OrderID    string
	CustomerID string
	Status     string
	Total      int64
	Items      []OrderItem
}

// BuildOrderNoticeBody renders the HTML body of a vendor order e-mail.
func BuildOrderNoticeBody(n OrderNotice) string {
	var rows strings.Builder
	for _, item := range n.Items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		rows.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 10px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			html.EscapeString(name),
			item.Quantity,
			reply.FormatNaira(item.UnitPrice),
			reply.FormatNaira(item.UnitPrice*int64(item.Quantity)),
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
</head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px; border-bottom: 2px solid #2e7d32; padding-bottom: 10px;">%s</h1>

	<p>Order <strong style="font-family: monospace;">%s</strong> from customer <strong>%s</strong> is now <strong>%s</strong>.</p>

	<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
		<thead>
			<tr style="background: #f5f5f5;">
				<th style="padding: 10px; text-align: left;">Product</th>
				<th style="padding: 10px; text-align: center;">Qty</th>
				<th style="padding: 10px; text-align: right;">Unit price</th>
				<th style="padding: 10px; text-align: right;">Subtotal</th>
			</tr>
		</thead>
		<tbody>
			%s
		</tbody>
	</table>

	<p style="text-align: right; font-size: 20px;"><strong>Total: %s</strong></p>
</body>
</html>`,
		html.EscapeString(n.Headline),
		html.EscapeString(n.OrderID),
		html.EscapeString(n.CustomerID),
		html.EscapeString(strings.ToUpper(n.Status)),
		rows.String(),
		reply.FormatNaira(n.Total),
	)
}

// LowStockNotice tells the vendor a product needs restocking.
type LowStockNotice struct {
	ProductID  string
	Name       string
	StockLevel int
	Level      string
}

// BuildLowStockBody renders the HTML body of a low-stock e-mail.
func BuildLowStockBody(n LowStockNotice) string {
	color := "#f9a825"
	if n.Level == "critical" {
		color = "#c62828"
	}
	name := n.Name
	if name == "" {
		name = n.ProductID
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
</head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px; border-bottom: 2px solid %s; padding-bottom: 10px;">Low stock: %s</h1>

	<p><strong>%s</strong> is down to <strong>%d</strong> left (%s).</p>
	<p>Product id: <span style="font-family: monospace;">%s</span></p>
	<p>Customers can no longer buy more than what is left. Restock from the admin API.</p>
</body>
</html>`,
		color,
		html.EscapeString(name),
		html.EscapeString(name),
		n.StockLevel,
		html.EscapeString(strings.ToUpper(n.Level)),
		html.EscapeString(n.ProductID),
	)
}
