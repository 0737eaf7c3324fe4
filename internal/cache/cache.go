package cache

import (
	"context"
	"sync"
	"time"

	"auctionharvester/internal/models"
)

// DefaultExpiry is how long a loaded collection is served before reloading
const DefaultExpiry = 30 * time.Second

// Loader reads the current collection from its store
type Loader interface {
	Load(ctx context.Context) (models.Collection, error)
}

// CollectionCache serves the last loaded collection until it expires, so
// read-heavy callers do not hit the store on every request
type CollectionCache struct {
	loader Loader
	expiry time.Duration
	now    func() time.Time

	mu       sync.Mutex
	data     models.Collection
	loadedAt time.Time
}

// New creates a cache over loader. A non-positive expiry uses DefaultExpiry.
func New(loader Loader, expiry time.Duration) *CollectionCache {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &CollectionCache{loader: loader, expiry: expiry, now: time.Now}
}

// Get returns a copy of the cached collection, reloading it when expired.
// A failed reload returns the error and keeps the stale copy for later.
func (c *CollectionCache) Get(ctx context.Context) (models.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expiredLocked() {
		coll, err := c.loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		if coll == nil {
			coll = models.Collection{}
		}
		c.data = coll
		c.loadedAt = c.now()
	}
	return c.data.Clone(), nil
}

// IsExpired reports whether the next Get will reload
func (c *CollectionCache) IsExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiredLocked()
}

func (c *CollectionCache) expiredLocked() bool {
	return c.data == nil || c.now().Sub(c.loadedAt) > c.expiry
}

// Age returns how long ago the collection was loaded; ok is false before the first load
func (c *CollectionCache) Age() (age time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		return 0, false
	}
	return c.now().Sub(c.loadedAt), true
}

// Invalidate forces the next Get to reload
func (c *CollectionCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}
