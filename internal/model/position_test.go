package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionCache_QuantityMissingHash(t *testing.T) {
	c := NewPositionCache()
	qty, ok := c.Quantity("nohash", "AAPL")
	assert.False(t, ok)
	assert.Equal(t, int64(0), qty)
}

func TestPositionCache_AdjustVisibleImmediately(t *testing.T) {
	c := NewPositionCache()
	c.SetQuantities("h1", map[string]int64{"AAPL": 10})
	c.Adjust("h1", "AAPL", 5)
	qty, ok := c.Quantity("h1", "AAPL")
	assert.True(t, ok)
	assert.Equal(t, int64(15), qty)
}

func TestPositionCache_AdjustSeedsMissingSymbol(t *testing.T) {
	c := NewPositionCache()
	c.SetQuantities("h1", map[string]int64{})
	c.Adjust("h1", "MSFT", 3)
	qty, ok := c.Quantity("h1", "MSFT")
	assert.True(t, ok)
	assert.Equal(t, int64(3), qty)
}

func TestPositionCache_HasHash(t *testing.T) {
	c := NewPositionCache()
	assert.False(t, c.HasHash("h1"))
	c.SetQuantities("h1", map[string]int64{})
	assert.True(t, c.HasHash("h1"))
}

func TestPositionCache_QuantitiesSnapshotIsACopy(t *testing.T) {
	c := NewPositionCache()
	c.SetQuantities("h1", map[string]int64{"AAPL": 1})
	snap, ok := c.QuantitiesSnapshot("h1")
	assert.True(t, ok)
	snap["AAPL"] = 999
	qty, _ := c.Quantity("h1", "AAPL")
	assert.Equal(t, int64(1), qty, "mutating the snapshot must not affect the cache")
}
