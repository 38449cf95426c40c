// Package pnl implements FIFO realized P&L and mark-to-market unrealized
// P&L tracking per client: two FIFO lot queues per client (open longs,
// open shorts), running cost-basis totals, and a monotone snapshot
// stream emitted on every trade.
package pnl

import (
	"github.com/rs/zerolog"

	"mercury/internal/core"
)

// Lot is a single opening-trade record consumed FIFO by a later closing
// trade on the opposite side.
type Lot struct {
	Quantity  uint64
	Price     int64
	TradeID   uint64
	Timestamp uint64
}

// ClientPnL is one client's complete P&L state. Invariant: at most one of
// OpenLongs/OpenShorts is non-empty at any time — a position is either
// net long, net short, or flat.
type ClientPnL struct {
	ClientID uint64

	LongQty  int64
	ShortQty int64

	TotalBuyCost      int64
	TotalSellProceeds int64
	LongCostBasis     int64
	ShortCostBasis    int64

	RealizedPnL   int64
	UnrealizedPnL int64

	TotalTrades     uint64
	TotalBuyQty     uint64
	TotalSellQty    uint64
	WinningTrades   uint64
	LosingTrades    uint64

	OpenLongs  []Lot
	OpenShorts []Lot
}

// NetPosition returns long minus short.
func (c ClientPnL) NetPosition() int64 { return c.LongQty - c.ShortQty }

// TotalPnL returns realized plus unrealized P&L.
func (c ClientPnL) TotalPnL() int64 { return c.RealizedPnL + c.UnrealizedPnL }

// AvgBuyPrice is the volume-weighted average price of every buy.
func (c ClientPnL) AvgBuyPrice() int64 {
	if c.TotalBuyQty == 0 {
		return 0
	}
	return c.TotalBuyCost / int64(c.TotalBuyQty)
}

// AvgSellPrice is the volume-weighted average price of every sell.
func (c ClientPnL) AvgSellPrice() int64 {
	if c.TotalSellQty == 0 {
		return 0
	}
	return c.TotalSellProceeds / int64(c.TotalSellQty)
}

// CostBasis is the net cost basis of the client's current position.
func (c ClientPnL) CostBasis() int64 { return c.LongCostBasis - c.ShortCostBasis }

// AvgEntryPrice is the volume-weighted average price of the currently
// open position (long or short, whichever is non-empty).
func (c ClientPnL) AvgEntryPrice() int64 {
	if c.LongQty > 0 && c.LongCostBasis != 0 {
		return c.LongCostBasis / c.LongQty
	}
	if c.ShortQty > 0 && c.ShortCostBasis != 0 {
		return c.ShortCostBasis / c.ShortQty
	}
	return 0
}

// Snapshot is a point-in-time P&L record emitted per (client, trade).
type Snapshot struct {
	SnapshotID    uint64
	Timestamp     uint64
	ClientID      uint64
	NetPosition   int64
	LongQty       int64
	ShortQty      int64
	RealizedPnL   int64
	UnrealizedPnL int64
	TotalPnL      int64
	MarkPrice     int64
	CostBasis     int64
	AvgEntryPrice int64
	TradeID       uint64
}

// SnapshotCallback is invoked once per emitted snapshot.
type SnapshotCallback func(Snapshot)

// Tracker is the P&L tracker. It is not safe for concurrent use; callers
// serialize access the same way they serialize matching engine and risk
// gate access (see internal/frontend).
type Tracker struct {
	clients map[uint64]*ClientPnL

	snapshotSeq     uint64
	timestamp       func() uint64
	lastTradedPrice int64

	onSnapshot SnapshotCallback
	logger     zerolog.Logger
}

// New returns an empty tracker. timestamp supplies monotone timestamps
// for emitted snapshots; it is a clock separate from the matching
// engine's internal sequence.
func New(timestamp func() uint64, logger zerolog.Logger) *Tracker {
	return &Tracker{
		clients:   make(map[uint64]*ClientPnL),
		timestamp: timestamp,
		logger:    logger,
	}
}

// SetSnapshotCallback registers a callback invoked once per emitted
// snapshot.
func (t *Tracker) SetSnapshotCallback(cb SnapshotCallback) { t.onSnapshot = cb }

func (t *Tracker) client(clientID uint64) *ClientPnL {
	c, ok := t.clients[clientID]
	if !ok {
		c = &ClientPnL{ClientID: clientID}
		t.clients[clientID] = c
	}
	return c
}

// ClientPnL returns a copy of clientID's current P&L state.
func (t *Tracker) ClientPnL(clientID uint64) ClientPnL {
	if c, ok := t.clients[clientID]; ok {
		return *c
	}
	return ClientPnL{ClientID: clientID}
}

// ClientCount reports how many distinct clients have been tracked.
func (t *Tracker) ClientCount() int { return len(t.clients) }

func (t *Tracker) nextSnapshotID() uint64 {
	t.snapshotSeq++
	return t.snapshotSeq
}

// OnTradeExecuted updates both sides' positions using FIFO lot matching
// and emits one snapshot per client with a non-zero ID. markPrice, if
// zero, defaults to the trade's own price.
func (t *Tracker) OnTradeExecuted(trade core.Trade, buyClientID, sellClientID uint64, markPrice int64) {
	if markPrice <= 0 {
		markPrice = trade.Price
	}
	t.lastTradedPrice = trade.Price

	if buyClientID != 0 {
		c := t.client(buyClientID)
		t.applyBuy(c, trade)
		c.UnrealizedPnL = unrealizedPnL(*c, markPrice)
		t.emit(c, markPrice, trade.TradeID)
	}
	if sellClientID != 0 {
		c := t.client(sellClientID)
		t.applySell(c, trade)
		c.UnrealizedPnL = unrealizedPnL(*c, markPrice)
		t.emit(c, markPrice, trade.TradeID)
	}
}

// applyBuy records a buy trade: it first closes open shorts FIFO, then
// opens or extends a long position with whatever quantity remains.
func (t *Tracker) applyBuy(c *ClientPnL, trade core.Trade) {
	value := trade.Price * int64(trade.Quantity)
	c.TotalBuyCost += value
	c.TotalBuyQty += trade.Quantity
	c.TotalTrades++

	remaining := trade.Quantity
	if c.ShortQty > 0 && len(c.OpenShorts) > 0 {
		remaining = closeShorts(c, remaining, trade.Price)
	}
	if remaining > 0 {
		c.LongQty += int64(remaining)
		c.LongCostBasis += trade.Price * int64(remaining)
		c.OpenLongs = append(c.OpenLongs, Lot{
			Quantity: remaining, Price: trade.Price,
			TradeID: trade.TradeID, Timestamp: trade.Timestamp,
		})
	}
}

// applySell is the mirror of applyBuy: close open longs FIFO, then open
// or extend a short with whatever remains.
func (t *Tracker) applySell(c *ClientPnL, trade core.Trade) {
	value := trade.Price * int64(trade.Quantity)
	c.TotalSellProceeds += value
	c.TotalSellQty += trade.Quantity
	c.TotalTrades++

	remaining := trade.Quantity
	if c.LongQty > 0 && len(c.OpenLongs) > 0 {
		remaining = closeLongs(c, remaining, trade.Price)
	}
	if remaining > 0 {
		c.ShortQty += int64(remaining)
		c.ShortCostBasis += trade.Price * int64(remaining)
		c.OpenShorts = append(c.OpenShorts, Lot{
			Quantity: remaining, Price: trade.Price,
			TradeID: trade.TradeID, Timestamp: trade.Timestamp,
		})
	}
}

// closeShorts consumes the head of c.OpenShorts against a buy at
// closePrice, returning the quantity left over once shorts are
// exhausted or the incoming quantity is consumed.
func closeShorts(c *ClientPnL, quantity uint64, closePrice int64) uint64 {
	for quantity > 0 && len(c.OpenShorts) > 0 {
		lot := &c.OpenShorts[0]
		closeQty := min(quantity, lot.Quantity)

		pnlPerUnit := lot.Price - closePrice
		closingPnL := pnlPerUnit * int64(closeQty)
		c.RealizedPnL += closingPnL
		if closingPnL > 0 {
			c.WinningTrades++
		} else if closingPnL < 0 {
			c.LosingTrades++
		}

		c.ShortQty -= int64(closeQty)
		c.ShortCostBasis -= lot.Price * int64(closeQty)
		lot.Quantity -= closeQty
		quantity -= closeQty

		if lot.Quantity == 0 {
			c.OpenShorts = c.OpenShorts[1:]
		}
	}
	return quantity
}

// closeLongs is the mirror of closeShorts for sells against open longs.
func closeLongs(c *ClientPnL, quantity uint64, closePrice int64) uint64 {
	for quantity > 0 && len(c.OpenLongs) > 0 {
		lot := &c.OpenLongs[0]
		closeQty := min(quantity, lot.Quantity)

		pnlPerUnit := closePrice - lot.Price
		closingPnL := pnlPerUnit * int64(closeQty)
		c.RealizedPnL += closingPnL
		if closingPnL > 0 {
			c.WinningTrades++
		} else if closingPnL < 0 {
			c.LosingTrades++
		}

		c.LongQty -= int64(closeQty)
		c.LongCostBasis -= lot.Price * int64(closeQty)
		lot.Quantity -= closeQty
		quantity -= closeQty

		if lot.Quantity == 0 {
			c.OpenLongs = c.OpenLongs[1:]
		}
	}
	return quantity
}

// unrealizedPnL marks both sides of a position against markPrice; in
// practice at most one of long/short contributes a non-zero term.
func unrealizedPnL(c ClientPnL, markPrice int64) int64 {
	var u int64
	if c.LongQty > 0 && c.LongCostBasis > 0 {
		u += markPrice*c.LongQty - c.LongCostBasis
	}
	if c.ShortQty > 0 && c.ShortCostBasis > 0 {
		u += c.ShortCostBasis - markPrice*c.ShortQty
	}
	return u
}

// UpdateMarkToMarket refreshes clientID's unrealized P&L against
// markPrice and returns the new value; it is a no-op (returning 0) for an
// untracked client.
func (t *Tracker) UpdateMarkToMarket(clientID uint64, markPrice int64) int64 {
	c, ok := t.clients[clientID]
	if !ok {
		return 0
	}
	c.UnrealizedPnL = unrealizedPnL(*c, markPrice)
	return c.UnrealizedPnL
}

// UpdateAllMarkToMarket refreshes unrealized P&L for every tracked
// client against markPrice.
func (t *Tracker) UpdateAllMarkToMarket(markPrice int64) {
	for _, c := range t.clients {
		c.UnrealizedPnL = unrealizedPnL(*c, markPrice)
	}
}

func (t *Tracker) emit(c *ClientPnL, markPrice int64, tradeID uint64) {
	snap := Snapshot{
		SnapshotID:    t.nextSnapshotID(),
		Timestamp:     t.timestamp(),
		ClientID:      c.ClientID,
		NetPosition:   c.NetPosition(),
		LongQty:       c.LongQty,
		ShortQty:      c.ShortQty,
		RealizedPnL:   c.RealizedPnL,
		UnrealizedPnL: c.UnrealizedPnL,
		TotalPnL:      c.TotalPnL(),
		MarkPrice:     markPrice,
		CostBasis:     c.CostBasis(),
		AvgEntryPrice: c.AvgEntryPrice(),
		TradeID:       tradeID,
	}
	t.logger.Debug().Uint64("client_id", c.ClientID).Int64("total_pnl", snap.TotalPnL).Msg("pnl snapshot")
	if t.onSnapshot != nil {
		t.onSnapshot(snap)
	}
}

// Reset drops all tracked client state.
func (t *Tracker) Reset() {
	t.clients = make(map[uint64]*ClientPnL)
	t.snapshotSeq = 0
	t.lastTradedPrice = 0
}
