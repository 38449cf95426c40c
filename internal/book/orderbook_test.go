package book_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercury/internal/book"
	"mercury/internal/core"
)

func newOrder(id uint64, side core.Side, price int64, qty uint64) core.Order {
	return core.Order{ID: id, Side: side, Price: price, Quantity: qty, Type: core.Limit, TIF: core.GTC}
}

func TestOrderBook_AddRejectsDuplicateAndInvalid(t *testing.T) {
	b := book.New()

	require.True(t, b.Add(newOrder(1, core.Buy, 100, 10)))
	assert.False(t, b.Add(newOrder(1, core.Buy, 101, 5)), "duplicate id must be rejected")
	assert.False(t, b.Add(newOrder(0, core.Buy, 100, 5)), "zero id must be rejected")
	assert.False(t, b.Add(newOrder(2, core.Buy, 100, 0)), "zero quantity must be rejected")
}

func TestOrderBook_BestBidAskTrackBestPrices(t *testing.T) {
	b := book.New()

	require.True(t, b.Add(newOrder(1, core.Buy, 100, 10)))
	require.True(t, b.Add(newOrder(2, core.Buy, 105, 10)))
	require.True(t, b.Add(newOrder(3, core.Sell, 110, 10)))
	require.True(t, b.Add(newOrder(4, core.Sell, 108, 10)))

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(105), bid)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int64(108), ask)

	spread, ok := b.Spread()
	require.True(t, ok)
	assert.Equal(t, int64(3), spread)
}

func TestOrderBook_RemoveDropsEmptyLevel(t *testing.T) {
	b := book.New()
	require.True(t, b.Add(newOrder(1, core.Buy, 100, 10)))

	removed, ok := b.Remove(1)
	require.True(t, ok)
	assert.Equal(t, uint64(10), removed.Quantity)

	_, ok = b.BestBid()
	assert.False(t, ok, "level must be dropped once its last order is removed")
	assert.False(t, b.Has(1))
}

func TestOrderBook_UpdateQuantityAdjustsLevelTotal(t *testing.T) {
	b := book.New()
	require.True(t, b.Add(newOrder(1, core.Buy, 100, 10)))
	require.True(t, b.Add(newOrder(2, core.Buy, 100, 5)))

	require.True(t, b.UpdateQuantity(1, 3))
	assert.Equal(t, uint64(8), b.QuantityAt(core.Buy, 100))

	require.True(t, b.UpdateQuantity(2, 0), "zero quantity acts as removal")
	assert.False(t, b.Has(2))
}

func TestOrderBook_FIFOTimePriorityWithinLevel(t *testing.T) {
	b := book.New()
	require.True(t, b.Add(newOrder(1, core.Sell, 100, 5)))
	require.True(t, b.Add(newOrder(2, core.Sell, 100, 5)))

	level, ok := b.BestAskLevel()
	require.True(t, ok)

	front, ok := b.Peek(level)
	require.True(t, ok)
	assert.Equal(t, uint64(1), front.ID, "earlier order keeps time priority at the front")
}

func TestOrderBook_IteratorSkipLeavesOrderResting(t *testing.T) {
	b := book.New()
	require.True(t, b.Add(newOrder(1, core.Sell, 100, 5)))
	require.True(t, b.Add(newOrder(2, core.Sell, 100, 5)))

	level, ok := b.BestAskLevel()
	require.True(t, ok)

	it := b.Iterate(level, core.Sell)
	require.False(t, it.Done())
	assert.Equal(t, uint64(1), it.Peek().ID)
	it.Skip()
	require.False(t, it.Done())
	assert.Equal(t, uint64(2), it.Peek().ID)

	assert.True(t, b.Has(1), "skipped order must remain resting")
	assert.True(t, b.Has(2))
}

func TestOrderBook_IteratorFillConsumesAndAdvances(t *testing.T) {
	b := book.New()
	require.True(t, b.Add(newOrder(1, core.Sell, 100, 5)))
	require.True(t, b.Add(newOrder(2, core.Sell, 100, 5)))

	level, ok := b.BestAskLevel()
	require.True(t, ok)

	it := b.Iterate(level, core.Sell)
	id, _, consumed := it.Fill(5)
	assert.Equal(t, uint64(1), id)
	assert.True(t, consumed)
	assert.False(t, b.Has(1))
	assert.False(t, it.Done())
	assert.Equal(t, uint64(2), it.Peek().ID)
}

func TestOrderBook_ClearEmptiesBothSides(t *testing.T) {
	b := book.New()
	require.True(t, b.Add(newOrder(1, core.Buy, 100, 10)))
	require.True(t, b.Add(newOrder(2, core.Sell, 101, 10)))

	b.Clear()

	assert.True(t, b.IsEmpty(core.Buy))
	assert.True(t, b.IsEmpty(core.Sell))
	assert.False(t, b.Has(1))
	assert.False(t, b.Has(2))
}
