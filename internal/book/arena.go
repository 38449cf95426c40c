// Package book implements the order book: an arena of order slots linked
// into per-price-level FIFO lists by index (not by pointer), two
// price-sorted maps of levels, and an O(1) order-ID index. It owns no
// matching logic; that lives in internal/matching.
package book

import "mercury/internal/core"

// slotIndex is an index into the arena. -1 denotes "no slot" (list
// terminator or an unused free-list entry).
type slotIndex int32

const noSlot slotIndex = -1

// slot is one order resting in the book, linked into its price level's
// FIFO by prev/next indices into the same arena. This is the "arena +
// indices" replacement for an intrusive pointer-linked list: GC-friendly,
// cache-friendlier, and trivially relocatable.
type slot struct {
	order core.Order
	prev  slotIndex
	next  slotIndex
	inUse bool
}

// Arena is a pre-allocated pool of order slots with a free list. Slots are
// never reallocated; destroyed slots are pushed onto freeList and reused
// by future adds, keyed by slotIndex rather than pointer.
type Arena struct {
	slots    []slot
	freeList []slotIndex
}

// NewArena returns an empty arena. capacity is an allocation hint, not a
// hard limit: the arena grows past it as needed.
func NewArena(capacity int) *Arena {
	return &Arena{
		slots:    make([]slot, 0, capacity),
		freeList: make([]slotIndex, 0, capacity/4),
	}
}

// alloc returns a slot index holding order, reusing a freed slot if one is
// available.
func (a *Arena) alloc(order core.Order) slotIndex {
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.slots[idx] = slot{order: order, prev: noSlot, next: noSlot, inUse: true}
		return idx
	}
	a.slots = append(a.slots, slot{order: order, prev: noSlot, next: noSlot, inUse: true})
	return slotIndex(len(a.slots) - 1)
}

// free releases idx back to the pool. The caller must have already
// unlinked it from its level's FIFO.
func (a *Arena) free(idx slotIndex) {
	a.slots[idx] = slot{inUse: false, prev: noSlot, next: noSlot}
	a.freeList = append(a.freeList, idx)
}

func (a *Arena) get(idx slotIndex) *slot {
	return &a.slots[idx]
}
