package purchase

import (
	"context"
	"errors"
	"time"

	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/domain/order"
	"github.com/example/chat-storefront/internal/payment"
)

// RetryPolicy bounds how store and gateway calls are retried.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}
}

// backoff returns the delay before the given retry (1-based), doubling from
// BaseDelay and capped at MaxDelay.
func (r RetryPolicy) backoff(attempt int) time.Duration {
	if r.BaseDelay <= 0 {
		return 0
	}
	shift := attempt - 1
	if shift > 16 {
		shift = 16
	}
	d := r.BaseDelay * time.Duration(1<<shift)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}

// permanent errors are domain answers; asking again gives the same answer.
var permanent = []error{
	catalog.ErrProductNotFound,
	catalog.ErrInsufficientStock,
	catalog.ErrInvalidQuantity,
	order.ErrOrderNotFound,
	order.ErrInvalidStatus,
	order.ErrOrderCancelled,
	order.ErrOrderAlreadyPaid,
	order.ErrOrderFulfilled,
	order.ErrOrderNotPaid,
	payment.ErrInvalidAmount,
	ErrIntentNotFound,
	context.Canceled,
	context.DeadlineExceeded,
}

func isPermanent(err error) bool {
	for _, target := range permanent {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// retry runs fn until it succeeds, returns a permanent error, or the policy
// runs out of attempts. The last error is returned.
func retry[T any](ctx context.Context, policy RetryPolicy, fn func() (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		val T
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		val, err = fn()
		if err == nil || isPermanent(err) || attempt == attempts {
			return val, err
		}

		timer := time.NewTimer(policy.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return val, ctx.Err()
		case <-timer.C:
		}
	}
	return val, err
}

func retryErr(ctx context.Context, policy RetryPolicy, fn func() error) error {
	_, err := retry(ctx, policy, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
