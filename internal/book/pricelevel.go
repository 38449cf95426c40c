package book

// PriceLevel is a FIFO queue of orders resting at one price on one side.
// Invariant: totalQty is the sum of every resting order's quantity at this
// level, and count is non-zero iff the level is present in its side's map.
type PriceLevel struct {
	price    int64
	head     slotIndex
	tail     slotIndex
	count    uint64
	totalQty uint64
}

// Price is the level's resting price.
func (l *PriceLevel) Price() int64 { return l.price }

// Count is the number of orders resting at this level.
func (l *PriceLevel) Count() uint64 { return l.count }

// TotalQty is the aggregate remaining quantity resting at this level.
func (l *PriceLevel) TotalQty() uint64 { return l.totalQty }

func (l *PriceLevel) empty() bool { return l.head == noSlot }
