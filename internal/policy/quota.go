// Package policy evaluates purchase limits written in Rego.
package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/example/chat-storefront/internal/purchase"
)

// Limits are handed to the policy as input.limits. Zero disables a limit.
type Limits struct {
	MaxQuantityPerOrder int `json:"max_quantity_per_order"`
	MaxPendingOrders    int `json:"max_pending_orders"`
}

// PendingCounter reports how many unpaid orders a customer holds.
type PendingCounter interface {
	PendingCount(ctx context.Context, customerID string) (int, error)
}

// QuotaEngine implements purchase.QuotaChecker on top of a prepared Rego
// query that yields the set of deny reasons.
type QuotaEngine struct {
	query   rego.PreparedEvalQuery
	limits  Limits
	pending PendingCounter
}

// NewQuotaEngine prepares policyContent, which must define
// data.purchase_quota.deny as a set of strings.
func NewQuotaEngine(ctx context.Context, policyContent string, limits Limits, pending PendingCounter) (*QuotaEngine, error) {
	r := rego.New(
		rego.Query("data.purchase_quota.deny"),
		rego.Module("purchase_quota.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &QuotaEngine{query: query, limits: limits, pending: pending}, nil
}

// Deny evaluates the policy for one purchase and returns the sorted deny
// reasons. An empty result allows the purchase.
func (e *QuotaEngine) Deny(ctx context.Context, customerID string, quantity int) ([]string, error) {
	pending := 0
	if e.pending != nil {
		n, err := e.pending.PendingCount(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("count pending orders: %w", err)
		}
		pending = n
	}

	input := map[string]interface{}{
		"customer_id":    customerID,
		"quantity":       quantity,
		"pending_orders": pending,
		"limits": map[string]interface{}{
			"max_quantity_per_order": e.limits.MaxQuantityPerOrder,
			"max_pending_orders":     e.limits.MaxPendingOrders,
		},
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	raw, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}
	reasons := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			reasons = append(reasons, s)
		}
	}
	sort.Strings(reasons)
	return reasons, nil
}

func (e *QuotaEngine) CheckQuota(ctx context.Context, customerID string, quantity int) error {
	reasons, err := e.Deny(ctx, customerID, quantity)
	if err != nil {
		return err
	}
	if len(reasons) > 0 {
		return fmt.Errorf("%w: %s", purchase.ErrQuotaExceeded, strings.Join(reasons, ", "))
	}
	return nil
}

// DefaultPolicy caps quantity per order and the number of unpaid orders.
const DefaultPolicy = `
package purchase_quota

import rego.v1

deny contains "quantity_limit" if {
	input.limits.max_quantity_per_order > 0
	input.quantity > input.limits.max_quantity_per_order
}

deny contains "pending_orders_limit" if {
	input.limits.max_pending_orders > 0
	input.pending_orders >= input.limits.max_pending_orders
}
`
