package book

import "mercury/internal/core"

// LevelIter walks a price level's FIFO in time priority, front to back.
// It exists so the matching engine can implement self-trade prevention's
// skip-and-continue rule: a resting order that shares the aggressor's
// non-zero client id is skipped (left resting, time priority untouched)
// rather than unconditionally consumed from the front.
type LevelIter struct {
	book  *OrderBook
	level *PriceLevel
	side  core.Side
	cur   slotIndex
}

// Iterate returns an iterator positioned at the front of level.
func (b *OrderBook) Iterate(level *PriceLevel, side core.Side) *LevelIter {
	return &LevelIter{book: b, level: level, side: side, cur: level.head}
}

// Done reports whether the iterator has walked past the last order.
func (it *LevelIter) Done() bool { return it.cur == noSlot }

// Peek returns a copy of the order currently under the cursor.
func (it *LevelIter) Peek() core.Order {
	return it.book.arena.get(it.cur).order
}

// Skip advances the cursor past the current order without consuming it.
func (it *LevelIter) Skip() {
	it.cur = it.book.arena.get(it.cur).next
}

// Fill reduces the order currently under the cursor by qty, which must
// not exceed its remaining quantity. If the order is fully consumed it is
// unlinked, freed and removed from the ID index, the level is dropped
// from its side's map if it is now empty, and the cursor advances to the
// next order. It reports the resting order's id, client id and whether it
// was fully consumed.
func (it *LevelIter) Fill(qty uint64) (orderID, clientID uint64, consumed bool) {
	idx := it.cur
	s := it.book.arena.get(idx)
	orderID, clientID = s.order.ID, s.order.ClientID
	s.order.Quantity -= qty
	it.level.totalQty -= qty
	it.book.adjustSideQty(it.side, -int64(qty), 0)

	if s.order.Quantity > 0 {
		return orderID, clientID, false
	}

	next := s.next
	it.book.unlink(it.level, idx)
	it.book.arena.free(idx)
	delete(it.book.index, orderID)
	it.book.adjustSideQty(it.side, 0, -1)
	it.book.dropLevelIfEmpty(it.level, it.side)
	it.cur = next
	return orderID, clientID, true
}
