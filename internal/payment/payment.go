// Package payment produces the instructions a customer follows to pay for a
// pending order.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var ErrInvalidAmount = errors.New("amount must be positive")

// LinkGenerator requests a hosted payment page for an order.
type LinkGenerator interface {
	Generate(ctx context.Context, orderID string, amount int64, customerID string) (string, error)
}

// BankDetails holds the vendor's bank-transfer account.
type BankDetails struct {
	BankName      string `json:"bank_name" yaml:"bank_name"`
	AccountNumber string `json:"account_number" yaml:"account_number"`
	AccountName   string `json:"account_name" yaml:"account_name"`
}

// Configured reports whether every field needed for a transfer is set.
func (b BankDetails) Configured() bool {
	return strings.TrimSpace(b.BankName) != "" &&
		strings.TrimSpace(b.AccountNumber) != "" &&
		strings.TrimSpace(b.AccountName) != ""
}

// Method is how the customer is asked to pay.
type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodLink         Method = "payment_link"
)

// Instructions is what the orchestrator hands back after a successful
// purchase: either bank details or a link, never both.
type Instructions struct {
	Method Method       `json:"method"`
	Bank   *BankDetails `json:"bank,omitempty"`
	Link   string       `json:"link,omitempty"`
}

// GatewayLinks builds links against a payment gateway base URL. It does not
// call the gateway; the gateway resolves the reference when the customer
// opens the link.
type GatewayLinks struct {
	baseURL *url.URL
}

func NewGatewayLinks(baseURL string) (*GatewayLinks, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse payment gateway url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("payment gateway url %q must be absolute", baseURL)
	}
	return &GatewayLinks{baseURL: u}, nil
}

func (g *GatewayLinks) Generate(ctx context.Context, orderID string, amount int64, customerID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	if orderID == "" {
		return "", errors.New("order id is required")
	}

	u := *g.baseURL
	q := u.Query()
	q.Set("ref", orderID)
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("phone", customerID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
