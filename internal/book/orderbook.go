package book

import (
	"github.com/tidwall/btree"

	"mercury/internal/core"
)

// priceLevels is a generic comparator-ordered B-tree, keyed by price:
// descending for bids, ascending for asks.
type priceLevels = btree.BTreeG[*PriceLevel]

// location is where a resting order's slot lives in the arena, plus which
// side's level tree owns it (needed to find the level back from an ID).
type location struct {
	idx  slotIndex
	side core.Side
}

// OrderBook holds the two price-sorted sides of a single symbol, the order
// arena backing every resting slot, and the O(1) order-ID index. It owns
// no matching logic: that is internal/matching's job, driven through the
// methods below.
type OrderBook struct {
	arena *Arena
	bids  *priceLevels
	asks  *priceLevels
	index map[uint64]location

	bidQty, askQty       uint64
	bidOrders, askOrders uint64
}

// New returns an empty order book.
func New() *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.price > b.price })
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.price < b.price })
	return &OrderBook{
		arena: NewArena(1024),
		bids:  bids,
		asks:  asks,
		index: make(map[uint64]location, 1024),
	}
}

func (b *OrderBook) levelsFor(side core.Side) *priceLevels {
	if side == core.Buy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) adjustSideQty(side core.Side, delta int64, orderDelta int64) {
	if side == core.Buy {
		b.bidQty = uint64(int64(b.bidQty) + delta)
		b.bidOrders = uint64(int64(b.bidOrders) + orderDelta)
	} else {
		b.askQty = uint64(int64(b.askQty) + delta)
		b.askOrders = uint64(int64(b.askOrders) + orderDelta)
	}
}

// Add inserts a resting order into the book. Returns false iff id is
// already present, id == 0 or quantity == 0 — the caller is responsible
// for turning that into the appropriate RejectReason.
func (b *OrderBook) Add(order core.Order) bool {
	if order.ID == 0 || order.Quantity == 0 {
		return false
	}
	if _, exists := b.index[order.ID]; exists {
		return false
	}
	levels := b.levelsFor(order.Side)
	level, ok := levels.GetMut(&PriceLevel{price: order.Price})
	if !ok {
		level = &PriceLevel{price: order.Price, head: noSlot, tail: noSlot}
		levels.Set(level)
	}
	idx := b.arena.alloc(order)
	b.pushBack(level, idx)
	b.index[order.ID] = location{idx: idx, side: order.Side}
	b.adjustSideQty(order.Side, int64(order.Quantity), 1)
	return true
}

func (b *OrderBook) pushBack(level *PriceLevel, idx slotIndex) {
	s := b.arena.get(idx)
	s.prev = level.tail
	s.next = noSlot
	if level.tail != noSlot {
		b.arena.get(level.tail).next = idx
	} else {
		level.head = idx
	}
	level.tail = idx
	level.count++
	level.totalQty += s.order.Quantity
}

// unlink removes idx from level's FIFO without freeing the slot or
// touching the order-ID index.
func (b *OrderBook) unlink(level *PriceLevel, idx slotIndex) {
	s := b.arena.get(idx)
	if s.prev != noSlot {
		b.arena.get(s.prev).next = s.next
	} else {
		level.head = s.next
	}
	if s.next != noSlot {
		b.arena.get(s.next).prev = s.prev
	} else {
		level.tail = s.prev
	}
	level.count--
	level.totalQty -= s.order.Quantity
}

func (b *OrderBook) dropLevelIfEmpty(level *PriceLevel, side core.Side) {
	if level.count == 0 {
		b.levelsFor(side).Delete(level)
	}
}

// Remove deletes id from the book, returning its last known state.
func (b *OrderBook) Remove(id uint64) (core.Order, bool) {
	loc, ok := b.index[id]
	if !ok {
		return core.Order{}, false
	}
	s := b.arena.get(loc.idx)
	order := s.order
	levels := b.levelsFor(loc.side)
	level, ok := levels.GetMut(&PriceLevel{price: order.Price})
	if ok {
		b.unlink(level, loc.idx)
		b.dropLevelIfEmpty(level, loc.side)
	}
	b.arena.free(loc.idx)
	delete(b.index, id)
	b.adjustSideQty(loc.side, -int64(order.Quantity), -1)
	return order, true
}

// UpdateQuantity adjusts a resting order's quantity in place, keeping the
// owning level's and book's aggregates in sync. newQty == 0 is equivalent
// to Remove.
func (b *OrderBook) UpdateQuantity(id uint64, newQty uint64) bool {
	loc, ok := b.index[id]
	if !ok {
		return false
	}
	if newQty == 0 {
		_, ok := b.Remove(id)
		return ok
	}
	s := b.arena.get(loc.idx)
	levels := b.levelsFor(loc.side)
	level, ok := levels.GetMut(&PriceLevel{price: s.order.Price})
	if !ok {
		return false
	}
	delta := int64(newQty) - int64(s.order.Quantity)
	s.order.Quantity = newQty
	level.totalQty = uint64(int64(level.totalQty) + delta)
	b.adjustSideQty(loc.side, delta, 0)
	return true
}

// Get returns a copy of the resting order state for id.
func (b *OrderBook) Get(id uint64) (core.Order, bool) {
	loc, ok := b.index[id]
	if !ok {
		return core.Order{}, false
	}
	return b.arena.get(loc.idx).order, true
}

// Has reports whether id currently rests in the book.
func (b *OrderBook) Has(id uint64) bool {
	_, ok := b.index[id]
	return ok
}

// BestBidLevel returns the highest-priced resting bid level, if any.
func (b *OrderBook) BestBidLevel() (*PriceLevel, bool) { return b.bids.MinMut() }

// BestAskLevel returns the lowest-priced resting ask level, if any.
func (b *OrderBook) BestAskLevel() (*PriceLevel, bool) { return b.asks.MinMut() }

// BestBid returns the best bid price, if the bid side is non-empty.
func (b *OrderBook) BestBid() (int64, bool) {
	lvl, ok := b.bids.MinMut()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// BestAsk returns the best ask price, if the ask side is non-empty.
func (b *OrderBook) BestAsk() (int64, bool) {
	lvl, ok := b.asks.MinMut()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// BestLevel returns the best resting level on side, if any.
func (b *OrderBook) BestLevel(side core.Side) (*PriceLevel, bool) {
	if side == core.Buy {
		return b.BestBidLevel()
	}
	return b.BestAskLevel()
}

// NextLevelAfter returns the next level strictly past price on side, in
// matching priority order (the next-best price once the level at price is
// exhausted or skipped in its entirety). It is what lets the matching
// engine walk from the best price down through worse ones without
// repeatedly re-visiting a level whose remaining orders were all skipped
// by self-trade prevention.
func (b *OrderBook) NextLevelAfter(side core.Side, price int64) (*PriceLevel, bool) {
	var found *PriceLevel
	b.levelsFor(side).Ascend(&PriceLevel{price: price}, func(item *PriceLevel) bool {
		if item.price == price {
			return true
		}
		found = item
		return false
	})
	if found == nil {
		return nil, false
	}
	return found, true
}

// GetLevel returns the level at price on side, if one exists.
func (b *OrderBook) GetLevel(side core.Side, price int64) (*PriceLevel, bool) {
	return b.levelsFor(side).GetMut(&PriceLevel{price: price})
}

// QuantityAt returns the aggregate resting quantity at price on side.
func (b *OrderBook) QuantityAt(side core.Side, price int64) uint64 {
	lvl, ok := b.GetLevel(side, price)
	if !ok {
		return 0
	}
	return lvl.totalQty
}

// BidQuantity and AskQuantity report aggregate resting liquidity per side.
func (b *OrderBook) BidQuantity() uint64 { return b.bidQty }
func (b *OrderBook) AskQuantity() uint64 { return b.askQty }

// BidLevelCount and AskLevelCount report the number of distinct resting
// price levels per side.
func (b *OrderBook) BidLevelCount() int { return b.bids.Len() }
func (b *OrderBook) AskLevelCount() int { return b.asks.Len() }

// IsEmpty reports whether side has no resting liquidity.
func (b *OrderBook) IsEmpty(side core.Side) bool {
	return b.levelsFor(side).Len() == 0
}

// Spread returns bestAsk - bestBid; ok is false if either side is empty.
func (b *OrderBook) Spread() (spread int64, ok bool) {
	bid, bok := b.BestBid()
	ask, aok := b.BestAsk()
	if !bok || !aok {
		return 0, false
	}
	return ask - bid, true
}

// MidPrice returns (bestBid + bestAsk) / 2; ok is false if either side is
// empty.
func (b *OrderBook) MidPrice() (mid int64, ok bool) {
	bid, bok := b.BestBid()
	ask, aok := b.BestAsk()
	if !bok || !aok {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// Clear drops every resting order and returns all slots to the arena.
func (b *OrderBook) Clear() {
	b.bids = btree.NewBTreeG(func(a, c *PriceLevel) bool { return a.price > c.price })
	b.asks = btree.NewBTreeG(func(a, c *PriceLevel) bool { return a.price < c.price })
	b.arena = NewArena(1024)
	b.index = make(map[uint64]location, 1024)
	b.bidQty, b.askQty, b.bidOrders, b.askOrders = 0, 0, 0, 0
}

// Peek returns a copy of the order resting at the front (oldest) of level,
// without removing it.
func (b *OrderBook) Peek(level *PriceLevel) (core.Order, bool) {
	if level.empty() {
		return core.Order{}, false
	}
	return b.arena.get(level.head).order, true
}
