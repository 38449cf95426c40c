// Package matching implements the core trading engine: submit/cancel/
// modify with GTC/IOC/FOK semantics, self-trade prevention, and the
// precise reject taxonomy, driving an internal/book.OrderBook.
package matching

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mercury/internal/book"
	"mercury/internal/core"
)

// TradeCallback and ExecutionCallback are the matching core's two
// notification points: one per trade executed, one per order's final
// execution result.
type TradeCallback func(core.Trade)
type ExecutionCallback func(core.ExecutionResult)

// Engine is a single-symbol matching engine. It is not safe for
// concurrent use by multiple goroutines: synchronization is pushed to
// the shard boundary in internal/frontend, and the engine itself
// assumes external serialization.
type Engine struct {
	Book *book.OrderBook

	tradeSeq     uint64
	timestampSeq uint64
	tradeCount   uint64
	totalVolume  uint64

	onTrade     TradeCallback
	onExecution ExecutionCallback

	logger zerolog.Logger
}

// New returns an empty engine that logs rejects through logger. Trade
// logs go through the package-level global logger.
func New(logger zerolog.Logger) *Engine {
	return &Engine{
		Book:   book.New(),
		logger: logger,
	}
}

// SetTradeCallback registers a callback invoked once per emitted trade.
func (e *Engine) SetTradeCallback(cb TradeCallback) { e.onTrade = cb }

// SetExecutionCallback registers a callback invoked once per processed
// order, after its ExecutionResult is finalized.
func (e *Engine) SetExecutionCallback(cb ExecutionCallback) { e.onExecution = cb }

// TradeCount and TotalVolume report engine-lifetime aggregates.
func (e *Engine) TradeCount() uint64  { return e.tradeCount }
func (e *Engine) TotalVolume() uint64 { return e.totalVolume }

// Timestamp returns a monotonically increasing sequence number; the
// engine does not depend on wall-clock time, only the relative order of
// events.
func (e *Engine) Timestamp() uint64 {
	e.timestampSeq++
	return e.timestampSeq
}

func (e *Engine) nextTradeID() uint64 {
	e.tradeSeq++
	return e.tradeSeq
}

// Submit is the engine's single entry point: it dispatches on order.Type
// and returns the one ExecutionResult sum type for every outcome,
// rejection included.
func (e *Engine) Submit(order core.Order) core.ExecutionResult {
	order.Timestamp = e.Timestamp()

	if reason := validate(order); reason != core.NoReject {
		result := e.reject(order, reason)
		e.notifyExecution(result)
		return result
	}

	var result core.ExecutionResult
	switch order.Type {
	case core.Limit:
		result = e.processLimit(order)
	case core.Market:
		result = e.processMarket(order)
	case core.Cancel:
		result = e.processCancel(order)
	case core.Modify:
		result = e.processModify(order)
	default:
		result = e.reject(order, core.InvalidOrderType)
	}
	e.notifyExecution(result)
	return result
}

func validate(order core.Order) core.RejectReason {
	switch order.Type {
	case core.Limit:
		if order.ID == 0 {
			return core.InvalidOrderId
		}
		if order.Quantity == 0 {
			return core.InvalidQuantity
		}
		if order.Price < 0 {
			return core.InvalidPrice
		}
		if order.Price > core.MaxPrice {
			return core.PriceOutOfRange
		}
		return core.NoReject
	case core.Market:
		if order.ID == 0 {
			return core.InvalidOrderId
		}
		if order.Quantity == 0 {
			return core.InvalidQuantity
		}
		return core.NoReject
	case core.Cancel, core.Modify:
		if order.TargetID == 0 {
			return core.InvalidOrderId
		}
		return core.NoReject
	default:
		return core.InvalidOrderType
	}
}

func (e *Engine) reject(order core.Order, reason core.RejectReason) core.ExecutionResult {
	e.logger.Warn().
		Uint64("order_id", order.ID).
		Str("reject_reason", reason.String()).
		Msg("order rejected")
	return core.ExecutionResult{
		Status:       core.Rejected,
		OrderID:      order.ID,
		ClientID:     order.ClientID,
		RemainingQty: order.Quantity,
		RejectReason: reason,
		Message:      "rejected: " + reason.String(),
	}
}

// processLimit matches a limit order against the book and, per its TIF,
// rests any unfilled remainder.
func (e *Engine) processLimit(order core.Order) core.ExecutionResult {
	if order.TIF == core.FOK && !e.canFillCompletely(order) {
		return e.reject(order, core.FOKCannotFill)
	}

	requested := order.Quantity
	var trades []core.Trade
	e.matchOrder(&order, &trades)
	filled := requested - order.Quantity

	if order.Quantity == 0 {
		return e.fillResult(order.ID, order.ClientID, filled, 0, trades)
	}

	if order.TIF == core.GTC {
		ok := e.Book.Add(order)
		if !ok {
			return e.reject(order, core.DuplicateOrderId)
		}
		status := core.Resting
		if filled > 0 {
			status = core.PartialFill
		}
		return core.ExecutionResult{
			Status: status, OrderID: order.ID, ClientID: order.ClientID,
			FilledQty: filled, RemainingQty: order.Quantity, Trades: trades,
		}
	}

	// IOC (FOK cannot reach here with remaining > 0: the pre-check
	// guarantees a complete fill) never rests: an unfilled remainder is
	// reported as Cancelled, a partial fill as PartialFill, never a
	// rejection.
	if filled == 0 {
		return core.ExecutionResult{
			Status: core.Cancelled, OrderID: order.ID, ClientID: order.ClientID,
			RemainingQty: 0, RejectReason: core.NoLiquidity,
			Message: "IOC order cancelled: no matching liquidity",
		}
	}
	return core.ExecutionResult{
		Status: core.PartialFill, OrderID: order.ID, ClientID: order.ClientID,
		FilledQty: filled, RemainingQty: 0, Trades: trades,
	}
}

// processMarket sweeps the opposite side immediately. A market order is
// only rejected outright if the opposite side is empty before any book
// mutation; a partially-coverable book still fills what it can and
// cancels the remainder (never rests). Self-trade prevention can also
// leave the whole order unfilled past a nominally sufficient book (every
// resting unit belongs to the aggressor's own client id); that case is
// reported as Cancelled, not Rejected, since the order was accepted and
// walked the book before coming up empty.
func (e *Engine) processMarket(order core.Order) core.ExecutionResult {
	if e.Book.IsEmpty(order.Side.Opposite()) {
		return e.reject(order, core.NoLiquidity)
	}

	requested := order.Quantity
	var trades []core.Trade
	e.matchOrder(&order, &trades)
	filled := requested - order.Quantity

	if filled == 0 {
		return core.ExecutionResult{
			Status: core.Cancelled, OrderID: order.ID, ClientID: order.ClientID,
			RemainingQty: 0, RejectReason: core.NoLiquidity,
			Message: "market order cancelled: insufficient liquidity",
		}
	}
	if order.Quantity != 0 {
		return core.ExecutionResult{
			Status: core.PartialFill, OrderID: order.ID, ClientID: order.ClientID,
			FilledQty: filled, RemainingQty: 0, Trades: trades,
			RejectReason: core.NoLiquidity,
			Message:      "remainder cancelled: no further eligible liquidity",
		}
	}
	return e.fillResult(order.ID, order.ClientID, filled, 0, trades)
}

func (e *Engine) processCancel(order core.Order) core.ExecutionResult {
	removed, ok := e.Book.Remove(order.TargetID)
	if !ok {
		return e.reject(order, core.OrderNotFound)
	}
	return core.ExecutionResult{
		Status: core.Cancelled, OrderID: removed.ID, ClientID: removed.ClientID,
		RemainingQty: 0,
	}
}

// processModify changes a resting order's price and/or quantity. A
// modify loses time priority: the order is removed and re-inserted as a
// brand-new resting order (possibly crossing and matching immediately on
// its new price).
func (e *Engine) processModify(order core.Order) core.ExecutionResult {
	existing, ok := e.Book.Get(order.TargetID)
	if !ok {
		return e.reject(order, core.OrderNotFound)
	}

	newPrice := order.NewPrice
	if newPrice == 0 {
		newPrice = existing.Price
	}
	newQty := order.NewQuantity
	if newQty == 0 {
		newQty = existing.Quantity
	}
	if newPrice == existing.Price && newQty == existing.Quantity {
		return e.reject(order, core.ModifyNoChanges)
	}
	if newPrice < 0 || newPrice > core.MaxPrice {
		return e.reject(order, core.InvalidPrice)
	}

	e.Book.Remove(order.TargetID)

	modified := existing
	modified.Price = newPrice
	modified.Quantity = newQty
	modified.Timestamp = e.Timestamp()

	requested := modified.Quantity
	var trades []core.Trade
	e.matchOrder(&modified, &trades)
	filled := requested - modified.Quantity

	if modified.Quantity > 0 {
		e.Book.Add(modified)
	}

	status := core.Modified
	if modified.Quantity == 0 {
		status = core.Filled
	} else if filled > 0 {
		status = core.PartialFill
	}
	return core.ExecutionResult{
		Status: status, OrderID: modified.ID, ClientID: modified.ClientID,
		FilledQty: filled, RemainingQty: modified.Quantity, Trades: trades,
	}
}

func (e *Engine) fillResult(orderID, clientID, filled, remaining uint64, trades []core.Trade) core.ExecutionResult {
	return core.ExecutionResult{
		Status: core.Filled, OrderID: orderID, ClientID: clientID,
		FilledQty: filled, RemainingQty: remaining, Trades: trades,
	}
}

// priceAcceptable reports whether a resting level's price can match
// against order: a market order accepts any price; a limit buy accepts
// asks at or below its limit price; a limit sell accepts bids at or above
// its limit price.
func priceAcceptable(order core.Order, levelPrice int64) bool {
	if order.Type == core.Market {
		return true
	}
	if order.Side == core.Buy {
		return levelPrice <= order.Price
	}
	return levelPrice >= order.Price
}

// matchOrder walks the opposite side from best price outward, applying
// self-trade prevention's skip-and-continue rule, until order.Quantity
// reaches zero or no more acceptable liquidity remains. Trades always
// execute at the resting order's price (price improvement to the
// aggressor), never the aggressor's own limit price.
func (e *Engine) matchOrder(order *core.Order, trades *[]core.Trade) {
	side := order.Side.Opposite()
	level, ok := e.Book.BestLevel(side)

	for ok && order.Quantity > 0 {
		if !priceAcceptable(*order, level.Price()) {
			break
		}
		price := level.Price()

		it := e.Book.Iterate(level, side)
		for !it.Done() && order.Quantity > 0 {
			resting := it.Peek()
			if order.ClientID != 0 && order.ClientID == resting.ClientID {
				it.Skip()
				continue
			}
			matchQty := min(order.Quantity, resting.Quantity)
			restOrderID, restClientID, _ := it.Fill(matchQty)
			order.Quantity -= matchQty

			trade := e.buildTrade(*order, restOrderID, restClientID, price, matchQty)
			*trades = append(*trades, trade)
			e.notifyTrade(trade)
		}

		level, ok = e.Book.NextLevelAfter(side, price)
	}
}

// canFillCompletely is the FOK pre-check: it walks only price-acceptable
// levels, summing quantity available from resting orders that are not
// self-trade-prevented, and stops at the first unacceptable price.
func (e *Engine) canFillCompletely(order core.Order) bool {
	side := order.Side.Opposite()
	level, ok := e.Book.BestLevel(side)
	var available uint64

	for ok {
		if !priceAcceptable(order, level.Price()) {
			break
		}
		price := level.Price()

		it := e.Book.Iterate(level, side)
		for !it.Done() {
			resting := it.Peek()
			if order.ClientID != 0 && order.ClientID == resting.ClientID {
				it.Skip()
				continue
			}
			available += resting.Quantity
			if available >= order.Quantity {
				return true
			}
			it.Skip()
		}

		level, ok = e.Book.NextLevelAfter(side, price)
	}
	return available >= order.Quantity
}

func (e *Engine) buildTrade(taker core.Order, restingID, restingClientID uint64, price int64, qty uint64) core.Trade {
	trade := core.Trade{
		TradeID:   e.nextTradeID(),
		Price:     price,
		Quantity:  qty,
		Timestamp: e.Timestamp(),
	}
	if taker.Side == core.Buy {
		trade.BuyOrderID, trade.BuyClientID = taker.ID, taker.ClientID
		trade.SellOrderID, trade.SellClientID = restingID, restingClientID
	} else {
		trade.SellOrderID, trade.SellClientID = taker.ID, taker.ClientID
		trade.BuyOrderID, trade.BuyClientID = restingID, restingClientID
	}
	e.tradeCount++
	e.totalVolume += qty
	return trade
}

func (e *Engine) notifyTrade(trade core.Trade) {
	log.Debug().Uint64("trade_id", trade.TradeID).Int64("price", trade.Price).
		Uint64("qty", trade.Quantity).Msg("trade executed")
	if e.onTrade != nil {
		e.onTrade(trade)
	}
}

func (e *Engine) notifyExecution(result core.ExecutionResult) {
	if e.onExecution != nil {
		e.onExecution(result)
	}
}
