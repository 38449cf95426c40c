// Package strategy defines the capability set a trading strategy exposes
// to the dispatcher (internal/strategy's StrategyManager-equivalent
// lives in dispatcher.go) and two example strategies whose framing —
// what they observe, what they emit — is in scope; their indicator
// arithmetic is deliberately simple.
package strategy

import "mercury/internal/core"

// MarketTick is a single market-data update derived from the order
// book's current best bid/ask, or from the last trade.
type MarketTick struct {
	Timestamp         uint64
	BidPrice          int64
	AskPrice          int64
	BidQuantity       uint64
	AskQuantity       uint64
	LastTradePrice    int64
	LastTradeQuantity uint64
	TotalVolume       uint64
}

// MidPrice is (bid+ask)/2, or zero if either side is missing.
func (t MarketTick) MidPrice() int64 {
	if t.BidPrice > 0 && t.AskPrice > 0 {
		return (t.BidPrice + t.AskPrice) / 2
	}
	return 0
}

// Spread is ask-bid, or zero if either side is missing.
func (t MarketTick) Spread() int64 {
	if t.BidPrice > 0 && t.AskPrice > 0 {
		return t.AskPrice - t.BidPrice
	}
	return 0
}

// Valid reports whether the tick carries any priced side.
func (t MarketTick) Valid() bool { return t.BidPrice > 0 || t.AskPrice > 0 }

// SignalType is the trading action a strategy asks the dispatcher to
// take.
type SignalType int

const (
	// NoSignal means take no action.
	NoSignal SignalType = iota
	Buy
	Sell
	CloseLong
	CloseShort
	CancelBids
	CancelAsks
	CancelAll
)

func (s SignalType) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	case CloseLong:
		return "CLOSE_LONG"
	case CloseShort:
		return "CLOSE_SHORT"
	case CancelBids:
		return "CANCEL_BIDS"
	case CancelAsks:
		return "CANCEL_ASKS"
	case CancelAll:
		return "CANCEL_ALL"
	default:
		return "NONE"
	}
}

// Signal is one action a strategy wants executed, with the reasoning
// kept for logs/audit.
type Signal struct {
	Type       SignalType
	Price      int64 // 0 means market
	Quantity   uint64
	Confidence float64
	Reason     string
}

// HasSignal reports whether the signal carries an actionable request.
func (s Signal) HasSignal() bool { return s.Type != NoSignal && s.Quantity > 0 }

// Config is a strategy's tunable parameters. The dispatcher does not fill
// in ClientID: Dispatcher.Register returns the assigned client id.
type Config struct {
	Name             string
	ClientID         uint64
	Enabled          bool
	MaxPosition      int64
	MaxOrderValue    int64
	MaxOrderQuantity uint64
	MaxLoss          int64
	MinOrderInterval uint64
}

// State is a strategy's position/P&L bookkeeping, maintained by the
// dispatcher via UpdatePosition rather than by the strategy itself
// reaching into fill notifications.
type State struct {
	NetPosition   int64
	LongPosition  int64
	ShortPosition int64
	RealizedPnL   int64
	UnrealizedPnL int64
	TotalTrades   uint64
	TotalVolume   uint64
}

// TotalPnL returns realized plus unrealized P&L.
func (s State) TotalPnL() int64 { return s.RealizedPnL + s.UnrealizedPnL }

// Strategy is the capability set the dispatcher drives. UpdatePosition is
// called by the dispatcher after every fill instead of the dispatcher
// downcasting to a concrete strategy type: every strategy implements it
// directly.
type Strategy interface {
	OnMarketTick(tick MarketTick) []Signal
	OnTradeExecuted(trade core.Trade, wasOurs bool)
	OnOrderFilled(result core.ExecutionResult)
	UpdatePosition(side core.Side, qty uint64, price int64)
	Reset()
	Config() Config
	Name() string
}

// Metrics is the dispatcher's own per-strategy performance record: order
// and trade counters the strategy itself cannot observe (it never sees
// risk-gate rejections or the other statuses its siblings produce),
// alongside position and P&L figures the dispatcher already tracks on
// its behalf via UpdatePosition and the shared P&L tracker.
type Metrics struct {
	StrategyName string

	OrdersSubmitted     uint64
	OrdersFilled        uint64
	OrdersPartialFilled uint64
	OrdersCancelled     uint64
	OrdersRejected      uint64

	TotalTrades uint64
	TotalVolume uint64

	RealizedPnL   int64
	UnrealizedPnL int64
	TotalPnL      int64

	NetPosition int64
	MaxPosition int64

	SignalsGenerated uint64
	LastSignalTime   uint64
}

