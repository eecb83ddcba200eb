// Package reply renders the customer-facing text for every dialogue outcome.
// Replies never carry raw error detail.
package reply

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/domain/history"
	"github.com/example/chat-storefront/internal/domain/order"
	"github.com/example/chat-storefront/internal/payment"
)

// ReservationMinutes is how long a pending order is announced as held.
const ReservationMinutes = 15

var printer = message.NewPrinter(language.English)

// FormatNaira renders a whole-naira amount with thousands separators.
func FormatNaira(amount int64) string {
	return printer.Sprintf("₦%d", amount)
}

func pieces(n int) string {
	if n == 1 {
		return "1 piece"
	}
	return fmt.Sprintf("%d pieces", n)
}

func Greeting() string {
	return "Hello! 👋 Welcome to our store. I can help you check prices, availability, and make purchases. What are you looking for?"
}

// ReturningGreeting greets a customer with at least one history entry,
// mentioning the most recent purchase.
func ReturningGreeting(entries []history.Entry) string {
	if len(entries) == 0 {
		return Greeting()
	}
	last := entries[len(entries)-1]
	return fmt.Sprintf("Welcome back! 👋 Good to see you again. Last time you got %s. What are you looking for today?",
		last.ProductName)
}

func Help() string {
	return strings.Join([]string{
		"I can help you with:",
		"✅ Checking prices (e.g. \"How much is the red sneakers?\")",
		"✅ Checking availability (e.g. \"Do you have phone chargers?\")",
		"✅ Buying a product (e.g. \"I want to buy sneakers\")",
		"✅ Confirming your payment (e.g. \"I have paid\")",
		"",
		"Just tell me what you're looking for!",
	}, "\n")
}

func Unknown() string {
	return "I'm not sure what you're looking for. 🤔 Try asking about a product, its price, or say 'help' to see what I can do."
}

func NotFound(query string) string {
	return fmt.Sprintf("Sorry, I couldn't find '%s' in our inventory. Can you describe it differently?", query)
}

func OutOfStock(p catalog.Product) string {
	return fmt.Sprintf("Sorry, %s is currently sold out. 😔", p.Name)
}

// NotEnoughStock is used when some stock is held but less than requested.
func NotEnoughStock(p catalog.Product, requested int) string {
	return fmt.Sprintf("Sorry, we only have %s of %s left, not enough for %d. 😔",
		pieces(p.StockLevel), p.Name, requested)
}

// ProductDetail answers a price or availability question about one product.
func ProductDetail(p catalog.Product) string {
	if p.StockLevel <= 0 {
		return OutOfStock(p)
	}
	return fmt.Sprintf("Yes! We have %s in stock. ✅\n\n💰 Price: %s\n📦 %s left in stock\n\nWant to buy? Just say 'Yes' or 'Buy'!",
		p.Name, FormatNaira(p.Price), pieces(p.StockLevel))
}

// Candidates renders the numbered disambiguation list.
func Candidates(query string, products []catalog.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d products matching '%s':\n", len(products), query)
	for i, p := range products {
		fmt.Fprintf(&b, "\n%d. %s - %s", i+1, p.Name, FormatNaira(p.Price))
		if p.StockLevel <= 0 {
			b.WriteString(" (sold out)")
		}
	}
	b.WriteString("\n\nWhich one would you like? Reply with the number or the name.")
	return b.String()
}

// InvalidSelection re-lists the candidates after a reply that matched none.
func InvalidSelection(products []catalog.Product) string {
	var b strings.Builder
	b.WriteString("Sorry, I didn't catch which one you meant. Please pick one of these:\n")
	for i, p := range products {
		fmt.Fprintf(&b, "\n%d. %s - %s", i+1, p.Name, FormatNaira(p.Price))
	}
	return b.String()
}

func AskProduct() string {
	return "Which product are you asking about? Please tell me the product name."
}

func PurchaseNoContext() string {
	return "What would you like to buy? Please tell me the product name."
}

func PaymentLink(productName, link string, total int64) string {
	return fmt.Sprintf("Great! Here's your payment link for %s:\n\n💳 %s\n\nAmount: %s\n⏰ Order reserved for %d minutes.\n\nPay now to confirm your order!",
		productName, link, FormatNaira(total), ReservationMinutes)
}

func BankTransfer(productName string, bank payment.BankDetails, orderID string, total int64) string {
	return fmt.Sprintf("Great! Your order for %s is reserved. 🛍️\n\nPlease transfer %s to:\n🏦 Bank: %s\n🔢 Account Number: %s\n👤 Account Name: %s\n\n📝 Order ID: %s\n⏰ Order reserved for %d minutes.\n\nSay 'I have paid' once the transfer is done!",
		productName, FormatNaira(total), bank.BankName, bank.AccountNumber, bank.AccountName, orderID, ReservationMinutes)
}

func OrderCreationFailed() string {
	return "Sorry, we couldn't create your order. Please try again."
}

func PaymentLinkFailed() string {
	return "Sorry, we couldn't generate a payment link. Please contact support."
}

func QuotaExceeded() string {
	return "Sorry, you can't place that order right now. You may already have too many unpaid orders, or the quantity is above the limit."
}

// Failure is the generic reply when a store cannot be reached.
func Failure() string {
	return "Sorry, something went wrong on our side. Please try again in a moment."
}

func Paid(o order.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎉 Thank you for your payment!\n\n**Order %s** has been marked as PAID.\n", o.ID)
	for _, item := range o.Items {
		fmt.Fprintf(&b, "📦 %dx %s\n", item.Quantity, item.Name)
	}
	fmt.Fprintf(&b, "💰 %s\n\nThe seller has been notified and will contact you about delivery.", FormatNaira(o.Total))
	return b.String()
}

func NoPendingOrder() string {
	return "I don't see a pending order for you. If you've made a payment, please share the order ID or proof of payment."
}

// Enricher may rephrase a reply. It never changes the decided intent or
// action, only the text.
type Enricher interface {
	Enrich(ctx context.Context, customerID, text string) (string, error)
}

// PassThrough returns the text unchanged.
type PassThrough struct{}

func (PassThrough) Enrich(_ context.Context, _ string, text string) (string, error) {
	return text, nil
}
