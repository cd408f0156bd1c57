package model

import (
	"sync"

	"github.com/shopspring/decimal"
)

// PositionDetail is one symbol's state as reported by a broker.
type PositionDetail struct {
	Quantity     int64
	AveragePrice decimal.Decimal
	LastPrice    decimal.Decimal
}

// PositionCache is the in-memory, session-scoped mapping of
// account-hash -> symbol -> quantity, authoritative for the duration of
// one session and discarded at session end. Writes are
// serialized with a mutex since position/quote fan-out may be concurrent
// while the poll loop itself stays sequential.
type PositionCache struct {
	mu   sync.Mutex
	qty  map[string]map[string]int64
	full map[string]map[string]PositionDetail
}

// NewPositionCache builds an empty, session-scoped cache.
func NewPositionCache() *PositionCache {
	return &PositionCache{
		qty:  make(map[string]map[string]int64),
		full: make(map[string]map[string]PositionDetail),
	}
}

// SetQuantities replaces the plain-quantity view for one account-hash.
func (c *PositionCache) SetQuantities(hash string, positions map[string]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qty[hash] = positions
}

// SetDetails replaces the detailed view (qty/avg/last) for one account-hash.
func (c *PositionCache) SetDetails(hash string, positions map[string]PositionDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full[hash] = positions
}

// Quantity returns the cached share count for hash/symbol, or 0 and
// false if the account-hash is not present in the cache at all, which
// callers treat as a data anomaly, not a zero holding.
func (c *PositionCache) Quantity(hash, symbol string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byHash, ok := c.qty[hash]
	if !ok {
		return 0, false
	}
	return byHash[symbol], true
}

// Detail returns the cached detailed position for hash/symbol.
func (c *PositionCache) Detail(hash, symbol string) (PositionDetail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byHash, ok := c.full[hash]
	if !ok {
		return PositionDetail{}, false
	}
	d, ok := byHash[symbol]
	return d, ok
}

// Adjust applies a fill delta to the plain-quantity cache immediately,
// so subsequent triggers in the same pass observe the new quantity.
func (c *PositionCache) Adjust(hash, symbol string, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byHash, ok := c.qty[hash]
	if !ok {
		byHash = make(map[string]int64)
		c.qty[hash] = byHash
	}
	byHash[symbol] += delta
}

// QuantitiesSnapshot returns a copy of the plain-quantity view for hash,
// safe for a caller to range over without holding the cache's lock.
func (c *PositionCache) QuantitiesSnapshot(hash string) (map[string]int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byHash, ok := c.qty[hash]
	if !ok {
		return nil, false
	}
	out := make(map[string]int64, len(byHash))
	for k, v := range byHash {
		out[k] = v
	}
	return out, true
}

// HasHash reports whether the cache has been seeded for this account-hash.
func (c *PositionCache) HasHash(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.qty[hash]
	return ok
}
