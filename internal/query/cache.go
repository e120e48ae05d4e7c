package query

import (
	"sync"
	"time"
)

// Cache keys.
const (
	KeyCampaignInfo = "campaignInfo"
	KeyPrices       = "prices"
)

// PurchaseKey returns the cache key of the purchase status of address.
func PurchaseKey(address string) string {
	return "existingPurchases/" + address
}

// Entry is the latest state of a query. Data and UpdatedAt belong to the
// last successful fetch; Err is the error of the last fetch, nil when it
// succeeded.
type Entry struct {
	Data      any
	Err       error
	UpdatedAt time.Time
}

// Cache holds the latest result per query key. Last writer wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Set records a result. A failed fetch keeps the previous data.
func (c *Cache) Set(key string, data any, err error, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	e.Err = err
	if err == nil {
		e.Data = data
		e.UpdatedAt = at
	}
	c.entries[key] = e
}

// Get returns the entry for key.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}
