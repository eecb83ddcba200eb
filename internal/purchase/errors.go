package purchase

import (
	"errors"

	"github.com/example/chat-storefront/internal/domain/catalog"
)

var (
	ErrInvalidRequest         = errors.New("invalid purchase request")
	ErrQuotaExceeded          = errors.New("purchase quota exceeded")
	ErrOrderPersistenceFailed = errors.New("order could not be persisted")
	ErrPaymentLinkFailed      = errors.New("payment link could not be generated")
	ErrIntentNotFound         = errors.New("purchase intent not found")

	// ErrInsufficientStock is the catalog's answer to a failed conditional
	// decrement, re-exported so callers only need this package.
	ErrInsufficientStock = catalog.ErrInsufficientStock
)
