// Package cache provides the bounded, time-expiring caches used for token
// validation results and issued client certificates.
package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	log "github.com/sirupsen/logrus"
)

const (
	TokenValidation = "tokenValidation"
	ClientCerts     = "clientCerts"
)

// Cache maps string keys to values of type V. Every entry costs 1, so the
// cache never holds more than maxSize entries, and each entry expires ttl
// after it was written.
type Cache[V any] struct {
	name  string
	ttl   time.Duration
	store *ristretto.Cache[string, V]
}

func New[V any](name string, maxSize int64, ttl time.Duration) (*Cache[V], error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache %s: max size must be positive, got %d", name, maxSize)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache %s: ttl must be positive, got %s", name, ttl)
	}

	store, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters:        maxSize * 10,
		MaxCost:            maxSize,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", name, err)
	}

	log.Debugf("Cache %s created, max_size=%d, ttl=%s", name, maxSize, ttl)

	return &Cache[V]{
		name:  name,
		ttl:   ttl,
		store: store,
	}, nil
}

func (c *Cache[V]) Get(key string) (V, bool) {
	return c.store.Get(key)
}

// Set writes value under key and blocks until the write is visible to Get.
// The write may still be refused by the admission policy when the cache is
// full; a refused write behaves like an immediate eviction.
func (c *Cache[V]) Set(key string, value V) {
	if !c.store.SetWithTTL(key, value, 1, c.ttl) {
		log.Debugf("Cache %s dropped a write", c.name)
		return
	}
	c.store.Wait()
}

// Evict removes key. Once Evict returns, Get no longer observes the entry.
func (c *Cache[V]) Evict(key string) {
	c.store.Del(key)
}

func (c *Cache[V]) Name() string {
	return c.name
}

func (c *Cache[V]) Close() {
	c.store.Close()
}
