// Package risk implements the pre-trade risk gate: per-client position,
// exposure and order-rate checks run before an order reaches the matching
// engine, and the post-trade position updates that keep those checks
// current.
package risk

import (
	"fmt"

	"github.com/rs/zerolog"

	"mercury/internal/core"
)

// EventType is the outcome of a risk check, or the specific limit that
// was breached.
type EventType int

const (
	Approved EventType = iota
	PositionLimitBreached
	GrossExposureLimitBreached
	NetExposureLimitBreached
	OrderValueLimitBreached
	OrderQuantityLimitBreached
	DailyLossLimitBreached
	OrderRateExceeded
	MaxOpenOrdersExceeded
)

func (t EventType) String() string {
	switch t {
	case Approved:
		return "APPROVED"
	case PositionLimitBreached:
		return "POSITION_LIMIT_BREACHED"
	case GrossExposureLimitBreached:
		return "GROSS_EXPOSURE_LIMIT_BREACHED"
	case NetExposureLimitBreached:
		return "NET_EXPOSURE_LIMIT_BREACHED"
	case OrderValueLimitBreached:
		return "ORDER_VALUE_LIMIT_BREACHED"
	case OrderQuantityLimitBreached:
		return "ORDER_QUANTITY_LIMIT_BREACHED"
	case DailyLossLimitBreached:
		return "DAILY_LOSS_LIMIT_BREACHED"
	case OrderRateExceeded:
		return "ORDER_RATE_EXCEEDED"
	case MaxOpenOrdersExceeded:
		return "MAX_OPEN_ORDERS_EXCEEDED"
	default:
		return "UNKNOWN"
	}
}

// Event is the result of a single risk check, whether approved or
// rejected, emitted for every order that reaches the gate.
type Event struct {
	EventID        uint64
	Timestamp      uint64
	OrderID        uint64
	ClientID       uint64
	Type           EventType
	CurrentValue   int64
	LimitValue     int64
	RequestedValue int64
	Details        string
}

func (e Event) Approved() bool { return e.Type == Approved }

// Limits are the per-client (or default) risk limits.
type Limits struct {
	MaxPositionQuantity int64
	MaxGrossExposure    int64
	MaxNetExposure      int64
	MaxDailyLoss        int64
	MaxOrderValue       int64
	MaxOrderQuantity    uint64
	MaxOrdersPerSecond  uint64
	MaxOpenOrders       uint64
	GlobalMaxExposure   int64
}

// DefaultLimits returns conservative limits suitable for a single client
// trading a moderately liquid instrument.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionQuantity: 100_000,
		MaxGrossExposure:    1_000_000_000,
		MaxNetExposure:      500_000_000,
		MaxDailyLoss:        -100_000_000,
		MaxOrderValue:       10_000_000,
		MaxOrderQuantity:    10_000,
		MaxOrdersPerSecond:  100,
		MaxOpenOrders:       1_000,
		GlobalMaxExposure:   10_000_000_000,
	}
}

// Position is a client's tracked position and daily activity.
type Position struct {
	LongQty         int64
	ShortQty        int64
	RealizedPnL     int64
	OpenOrderCount  uint64
	DailyOrderCount uint64
	AvgBuyPrice     int64
	AvgSellPrice    int64
}

// Net returns long minus short; Gross returns long plus short.
func (p Position) Net() int64   { return p.LongQty - p.ShortQty }
func (p Position) Gross() int64 { return p.LongQty + p.ShortQty }

// marketOrderPriceEstimate is the conservative exposure estimate used for
// market orders, which carry no limit price of their own.
const marketOrderPriceEstimate int64 = 10_000

// Gate is the pre-trade risk gate. It is not safe for concurrent use;
// callers serialize access the same way they serialize matching engine
// access (see internal/frontend).
type Gate struct {
	defaultLimits Limits
	clientLimits  map[uint64]Limits
	positions     map[uint64]*Position

	eventSeq  uint64
	timestamp func() uint64

	onEvent func(Event)
	logger  zerolog.Logger
}

// New returns a risk gate using defaults as the fallback limits for any
// client without an override.
func New(defaults Limits, timestamp func() uint64, logger zerolog.Logger) *Gate {
	return &Gate{
		defaultLimits: defaults,
		clientLimits:  make(map[uint64]Limits),
		positions:     make(map[uint64]*Position),
		timestamp:     timestamp,
		logger:        logger,
	}
}

// SetClientLimits installs a per-client override.
func (g *Gate) SetClientLimits(clientID uint64, limits Limits) {
	g.clientLimits[clientID] = limits
}

// SetEventCallback registers a callback invoked once per risk check.
func (g *Gate) SetEventCallback(cb func(Event)) { g.onEvent = cb }

func (g *Gate) limitsFor(clientID uint64) Limits {
	if clientID != 0 {
		if l, ok := g.clientLimits[clientID]; ok {
			return l
		}
	}
	return g.defaultLimits
}

func (g *Gate) position(clientID uint64) *Position {
	p, ok := g.positions[clientID]
	if !ok {
		p = &Position{}
		g.positions[clientID] = p
	}
	return p
}

// Position returns a copy of clientID's current tracked position.
func (g *Gate) Position(clientID uint64) Position {
	if p, ok := g.positions[clientID]; ok {
		return *p
	}
	return Position{}
}

func (g *Gate) nextEventID() uint64 {
	g.eventSeq++
	return g.eventSeq
}

// Check runs every pre-trade check, in order, returning the first
// breach found or an Approved event. Cancel and Modify orders bypass all
// checks.
func (g *Gate) Check(order core.Order) Event {
	if order.Type == core.Cancel || order.Type == core.Modify {
		return g.approve(order, "cancel/modify orders bypass risk checks")
	}

	limits := g.limitsFor(order.ClientID)
	position := g.position(order.ClientID)

	if ev, breached := g.checkOrderLimits(order, limits); breached {
		return g.reject(order, ev)
	}
	if ev, breached := g.checkOpenOrderLimits(order, *position, limits); breached {
		return g.reject(order, ev)
	}
	if ev, breached := g.checkPositionLimits(order, *position, limits); breached {
		return g.reject(order, ev)
	}
	if ev, breached := g.checkExposureLimits(order, *position, limits); breached {
		return g.reject(order, ev)
	}
	return g.approve(order, "all risk checks passed")
}

func (g *Gate) approve(order core.Order, details string) Event {
	ev := Event{
		EventID: g.nextEventID(), Timestamp: g.timestamp(),
		OrderID: order.ID, ClientID: order.ClientID,
		Type: Approved, Details: details,
	}
	g.notify(ev)
	return ev
}

func (g *Gate) reject(order core.Order, ev Event) Event {
	ev.EventID = g.nextEventID()
	ev.Timestamp = g.timestamp()
	ev.OrderID = order.ID
	ev.ClientID = order.ClientID
	g.logger.Warn().Uint64("order_id", order.ID).Str("event_type", ev.Type.String()).Msg("risk check rejected order")
	g.notify(ev)
	return ev
}

func (g *Gate) notify(ev Event) {
	if g.onEvent != nil {
		g.onEvent(ev)
	}
}

func (g *Gate) checkOrderLimits(order core.Order, limits Limits) (Event, bool) {
	if order.Quantity > limits.MaxOrderQuantity {
		return Event{
			Type: OrderQuantityLimitBreached, LimitValue: int64(limits.MaxOrderQuantity),
			RequestedValue: int64(order.Quantity),
			Details:        fmt.Sprintf("order quantity %d exceeds limit %d", order.Quantity, limits.MaxOrderQuantity),
		}, true
	}
	if order.Type == core.Limit && order.Price > 0 {
		orderValue := order.Price * int64(order.Quantity)
		if orderValue > limits.MaxOrderValue {
			return Event{
				Type: OrderValueLimitBreached, LimitValue: limits.MaxOrderValue, RequestedValue: orderValue,
				Details: fmt.Sprintf("order value %d exceeds limit %d", orderValue, limits.MaxOrderValue),
			}, true
		}
	}
	return Event{}, false
}

func (g *Gate) checkOpenOrderLimits(order core.Order, pos Position, limits Limits) (Event, bool) {
	if pos.OpenOrderCount >= limits.MaxOpenOrders {
		return Event{
			Type: MaxOpenOrdersExceeded, CurrentValue: int64(pos.OpenOrderCount),
			LimitValue: int64(limits.MaxOpenOrders), RequestedValue: 1,
			Details: fmt.Sprintf("open orders %d would exceed limit %d", pos.OpenOrderCount, limits.MaxOpenOrders),
		}, true
	}
	return Event{}, false
}

func (g *Gate) checkPositionLimits(order core.Order, pos Position, limits Limits) (Event, bool) {
	potential := pos.Net()
	if order.Side == core.Buy {
		potential += int64(order.Quantity)
	} else {
		potential -= int64(order.Quantity)
	}
	if abs64(potential) > limits.MaxPositionQuantity {
		return Event{
			Type: PositionLimitBreached, CurrentValue: pos.Net(), LimitValue: limits.MaxPositionQuantity,
			RequestedValue: int64(order.Quantity),
			Details:        fmt.Sprintf("net position would be %d, exceeding limit +/-%d", potential, limits.MaxPositionQuantity),
		}, true
	}
	return Event{}, false
}

func (g *Gate) checkExposureLimits(order core.Order, pos Position, limits Limits) (Event, bool) {
	orderPrice := order.Price
	if order.Type == core.Market {
		orderPrice = marketOrderPriceEstimate
	}
	orderValue := orderPrice * int64(order.Quantity)

	currentGross := grossExposure(pos)
	potentialGross := currentGross + orderValue
	if potentialGross > limits.MaxGrossExposure {
		return Event{
			Type: GrossExposureLimitBreached, CurrentValue: currentGross, LimitValue: limits.MaxGrossExposure,
			RequestedValue: orderValue,
			Details:        fmt.Sprintf("gross exposure would be %d, exceeding limit %d", potentialGross, limits.MaxGrossExposure),
		}, true
	}

	currentNet := netExposure(pos)
	potentialNet := currentNet
	if order.Side == core.Buy {
		potentialNet += orderValue
	} else {
		potentialNet -= orderValue
	}
	if abs64(potentialNet) > limits.MaxNetExposure {
		return Event{
			Type: NetExposureLimitBreached, CurrentValue: currentNet, LimitValue: limits.MaxNetExposure,
			RequestedValue: orderValue,
			Details:        fmt.Sprintf("net exposure would be %d, exceeding limit +/-%d", potentialNet, limits.MaxNetExposure),
		}, true
	}

	if pos.RealizedPnL < limits.MaxDailyLoss {
		return Event{
			Type: DailyLossLimitBreached, CurrentValue: pos.RealizedPnL, LimitValue: limits.MaxDailyLoss,
			Details: fmt.Sprintf("daily realized loss %d exceeds limit %d", pos.RealizedPnL, limits.MaxDailyLoss),
		}, true
	}
	return Event{}, false
}

func grossExposure(pos Position) int64 {
	var gross int64
	if pos.LongQty > 0 && pos.AvgBuyPrice > 0 {
		gross += pos.LongQty * pos.AvgBuyPrice
	}
	if pos.ShortQty > 0 && pos.AvgSellPrice > 0 {
		gross += pos.ShortQty * pos.AvgSellPrice
	}
	return gross
}

func netExposure(pos Position) int64 {
	var net int64
	if pos.LongQty > 0 && pos.AvgBuyPrice > 0 {
		net += pos.LongQty * pos.AvgBuyPrice
	}
	if pos.ShortQty > 0 && pos.AvgSellPrice > 0 {
		net -= pos.ShortQty * pos.AvgSellPrice
	}
	return net
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// OnOrderAdded bumps a client's open/daily order counters when a new
// resting order is added to the book.
func (g *Gate) OnOrderAdded(order core.Order) {
	if order.ClientID == 0 {
		return
	}
	p := g.position(order.ClientID)
	p.OpenOrderCount++
	p.DailyOrderCount++
}

// OnOrderRemoved decrements a client's open order counter when a resting
// order leaves the book (fill, cancel, or modify-replace).
func (g *Gate) OnOrderRemoved(order core.Order) {
	if order.ClientID == 0 {
		return
	}
	p := g.position(order.ClientID)
	if p.OpenOrderCount > 0 {
		p.OpenOrderCount--
	}
}

// OnTradeExecuted updates both sides' positions and realized P&L using a
// running-average cost basis, following FIFO-adjacent weighted-average
// accounting: a trade first closes the opposing open position before it
// opens or extends one in the trade's direction.
func (g *Gate) OnTradeExecuted(trade core.Trade, buyClientID, sellClientID uint64) {
	if buyClientID != 0 {
		g.applyBuy(g.position(buyClientID), trade)
	}
	if sellClientID != 0 {
		g.applySell(g.position(sellClientID), trade)
	}
}

func (g *Gate) applyBuy(pos *Position, trade core.Trade) {
	qty := int64(trade.Quantity)
	switch {
	case pos.ShortQty >= qty:
		pos.RealizedPnL += (pos.AvgSellPrice - trade.Price) * qty
		pos.ShortQty -= qty
	case pos.ShortQty > 0:
		closeQty := pos.ShortQty
		newLongQty := qty - closeQty
		pos.RealizedPnL += (pos.AvgSellPrice - trade.Price) * closeQty
		pos.ShortQty = 0
		pos.LongQty += newLongQty
		if pos.LongQty > 0 {
			pos.AvgBuyPrice = ((pos.AvgBuyPrice * (pos.LongQty - newLongQty)) + trade.Price*newLongQty) / pos.LongQty
		}
	default:
		oldValue := pos.AvgBuyPrice * pos.LongQty
		newValue := trade.Price * qty
		pos.LongQty += qty
		if pos.LongQty > 0 {
			pos.AvgBuyPrice = (oldValue + newValue) / pos.LongQty
		}
	}
}

func (g *Gate) applySell(pos *Position, trade core.Trade) {
	qty := int64(trade.Quantity)
	switch {
	case pos.LongQty >= qty:
		pos.RealizedPnL += (trade.Price - pos.AvgBuyPrice) * qty
		pos.LongQty -= qty
	case pos.LongQty > 0:
		closeQty := pos.LongQty
		newShortQty := qty - closeQty
		pos.RealizedPnL += (trade.Price - pos.AvgBuyPrice) * closeQty
		pos.LongQty = 0
		pos.ShortQty += newShortQty
		if pos.ShortQty > 0 {
			pos.AvgSellPrice = ((pos.AvgSellPrice * (pos.ShortQty - newShortQty)) + trade.Price*newShortQty) / pos.ShortQty
		}
	default:
		oldValue := pos.AvgSellPrice * pos.ShortQty
		newValue := trade.Price * qty
		pos.ShortQty += qty
		if pos.ShortQty > 0 {
			pos.AvgSellPrice = (oldValue + newValue) / pos.ShortQty
		}
	}
}

// ResetDaily zeroes every client's daily order count and realized P&L,
// called at the start of a new trading day.
func (g *Gate) ResetDaily() {
	for _, p := range g.positions {
		p.DailyOrderCount = 0
		p.RealizedPnL = 0
	}
}
