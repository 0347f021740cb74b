package cache

import (
	"context"
	"sync"
	"time"

	"dpp-certification/internal/domain"
)

type memoryItem struct {
	value      domain.ProductType
	expiration time.Time
}

// MemoryCache is a process-local TTL cache bounded by MaxEntries
type MemoryCache struct {
	mu         sync.RWMutex
	items      map[string]memoryItem
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryCache{
		items:      make(map[string]memoryItem),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, code string) (*domain.ProductType, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, found := c.items[key(code)]
	if !found || c.now().After(item.expiration) {
		return nil, false, nil
	}
	pt := item.value
	pt.RequiredDocuments = append([]domain.DocumentType(nil), item.value.RequiredDocuments...)
	return &pt, true, nil
}

func (c *MemoryCache) Set(_ context.Context, pt *domain.ProductType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	k := key(pt.Code)
	if _, exists := c.items[k]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.evict(now)
	}

	value := *pt
	value.RequiredDocuments = append([]domain.DocumentType(nil), pt.RequiredDocuments...)
	c.items[k] = memoryItem{value: value, expiration: now.Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key(code))
	return nil
}

func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evict drops expired entries, or the entry closest to expiry if none are.
// Caller holds the write lock.
func (c *MemoryCache) evict(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, item := range c.items {
		if now.After(item.expiration) {
			delete(c.items, k)
			continue
		}
		if oldestKey == "" || item.expiration.Before(oldest) {
			oldestKey, oldest = k, item.expiration
		}
	}
	if len(c.items) >= c.maxEntries && oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
