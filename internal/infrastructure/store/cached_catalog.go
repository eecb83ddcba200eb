package store

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/chat-storefront/internal/domain/catalog"
)

// CachedCatalog keeps a short-lived snapshot of List in front of a slower
// catalog.Store. Concurrent misses share one load, and every write through
// this wrapper drops the snapshot.
type CachedCatalog struct {
	catalog.Store

	ttl   time.Duration
	group singleflight.Group

	mu       sync.RWMutex
	snapshot []catalog.Product
	loadedAt time.Time
	gen      uint64
}

func NewCachedCatalog(inner catalog.Store, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{Store: inner, ttl: ttl}
}

func (c *CachedCatalog) List(ctx context.Context) ([]catalog.Product, error) {
	c.mu.RLock()
	if c.snapshot != nil && time.Since(c.loadedAt) < c.ttl {
		out := cloneProducts(c.snapshot)
		c.mu.RUnlock()
		return out, nil
	}
	gen := c.gen
	c.mu.RUnlock()

	v, err, _ := c.group.Do("list", func() (any, error) {
		products, err := c.Store.List(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// A write since the miss makes this load stale; serve it once but
		// do not keep it.
		if c.gen == gen {
			c.snapshot = products
			c.loadedAt = time.Now()
		}
		c.mu.Unlock()
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneProducts(v.([]catalog.Product)), nil
}

func (c *CachedCatalog) Create(ctx context.Context, p *catalog.Product) error {
	defer c.Invalidate()
	return c.Store.Create(ctx, p)
}

func (c *CachedCatalog) ConditionalDecrement(ctx context.Context, id string, qty int) (bool, error) {
	defer c.Invalidate()
	return c.Store.ConditionalDecrement(ctx, id, qty)
}

func (c *CachedCatalog) Restock(ctx context.Context, id string, qty int) error {
	defer c.Invalidate()
	return c.Store.Restock(ctx, id, qty)
}

func (c *CachedCatalog) Reserve(ctx context.Context, reservationID, id string, qty int) (bool, error) {
	defer c.Invalidate()
	return c.Store.Reserve(ctx, reservationID, id, qty)
}

func (c *CachedCatalog) Release(ctx context.Context, reservationID string) error {
	defer c.Invalidate()
	return c.Store.Release(ctx, reservationID)
}

// Invalidate drops the snapshot.
func (c *CachedCatalog) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.gen++
	c.mu.Unlock()
}

func cloneProducts(in []catalog.Product) []catalog.Product {
	out := make([]catalog.Product, len(in))
	for i, p := range in {
		out[i] = cloneProduct(p)
	}
	return out
}
