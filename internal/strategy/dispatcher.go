package strategy

import (
	"github.com/rs/zerolog"

	"mercury/internal/config"
	"mercury/internal/core"
	"mercury/internal/matching"
	"mercury/internal/pnl"
	"mercury/internal/risk"
)

// registration is everything the dispatcher tracks about one registered
// strategy: its assigned client id, its reserved order-id range, and the
// orders it currently has resting, keyed by side for bulk cancellation.
type registration struct {
	strategy Strategy
	clientID uint64

	orderIDStart uint64
	orderIDEnd   uint64
	nextOrderID  uint64

	liveOrders map[uint64]core.Order
	metrics    Metrics
}

func (r *registration) reserveOrderID() (uint64, bool) {
	if r.nextOrderID == 0 {
		r.nextOrderID = r.orderIDStart
	}
	if r.nextOrderID >= r.orderIDEnd {
		return 0, false
	}
	id := r.nextOrderID
	r.nextOrderID++
	return id, true
}

// Dispatcher is the StrategyManager equivalent: it registers strategies
// against a single shared engine/risk gate/P&L tracker, fans market
// ticks out to every enabled strategy, translates their signals into
// orders, and routes fills back to the strategy that produced them.
type Dispatcher struct {
	cfg    config.DispatcherConfig
	engine *matching.Engine
	risk   *risk.Gate
	pnl    *pnl.Tracker
	logger zerolog.Logger

	registrations   []*registration
	byClientID      map[uint64]*registration
	orderToStrategy map[uint64]*registration
}

// New returns a dispatcher wired to the given engine, risk gate and P&L
// tracker. It installs its own trade/execution callbacks on engine,
// replacing whatever was previously registered.
func New(cfg config.DispatcherConfig, engine *matching.Engine, gate *risk.Gate, tracker *pnl.Tracker, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		cfg:             cfg,
		engine:          engine,
		risk:            gate,
		pnl:             tracker,
		logger:          logger,
		byClientID:      make(map[uint64]*registration),
		orderToStrategy: make(map[uint64]*registration),
	}
	engine.SetTradeCallback(d.HandleTrade)
	engine.SetExecutionCallback(d.HandleExecution)
	return d
}

// Register assigns strategy the next available client-id slot
// (cfg.ClientIDOffset + index) and the next order-id range
// (cfg.BaseOrderID + index*OrderIDRangePerStrategy, for
// OrderIDRangePerStrategy ids).
func (d *Dispatcher) Register(s Strategy) uint64 {
	index := uint64(len(d.registrations))
	clientID := d.cfg.ClientIDOffset + index
	start := d.cfg.BaseOrderID + index*config.OrderIDRangePerStrategy

	reg := &registration{
		strategy:     s,
		clientID:     clientID,
		orderIDStart: start,
		orderIDEnd:   start + config.OrderIDRangePerStrategy,
		liveOrders:   make(map[uint64]core.Order),
		metrics:      Metrics{StrategyName: s.Name()},
	}
	d.registrations = append(d.registrations, reg)
	d.byClientID[clientID] = reg
	d.logger.Info().Str("strategy", s.Name()).Uint64("client_id", clientID).
		Uint64("order_id_start", start).Msg("strategy registered")
	return clientID
}

// Strategies returns every registered strategy in registration order.
func (d *Dispatcher) Strategies() []Strategy {
	out := make([]Strategy, len(d.registrations))
	for i, r := range d.registrations {
		out[i] = r.strategy
	}
	return out
}

// StateFor returns the Config of the strategy registered under clientID;
// ok is false (with a zero Config) if clientID is not registered.
func (d *Dispatcher) StateFor(clientID uint64) (Config, bool) {
	reg, ok := d.byClientID[clientID]
	if !ok {
		return Config{}, false
	}
	return reg.strategy.Config(), true
}

// Metrics returns a snapshot of the named strategy's performance counters.
func (d *Dispatcher) Metrics(name string) (Metrics, bool) {
	for _, reg := range d.registrations {
		if reg.strategy.Name() == name {
			return reg.metrics, true
		}
	}
	return Metrics{}, false
}

// AllMetrics returns a snapshot of every registered strategy's metrics,
// in registration order.
func (d *Dispatcher) AllMetrics() []Metrics {
	out := make([]Metrics, len(d.registrations))
	for i, reg := range d.registrations {
		out[i] = reg.metrics
	}
	return out
}

// OnMarketTick fans tick out to every enabled registered strategy and
// executes whatever signals it returns, in registration order.
func (d *Dispatcher) OnMarketTick(tick MarketTick) {
	for _, reg := range d.registrations {
		if !reg.strategy.Config().Enabled {
			continue
		}
		signals := reg.strategy.OnMarketTick(tick)
		for _, sig := range signals {
			if d.cfg.LogSignals {
				d.logger.Debug().Str("strategy", reg.strategy.Name()).
					Str("signal", sig.Type.String()).Msg("strategy signal")
			}
			reg.metrics.SignalsGenerated++
			reg.metrics.LastSignalTime = tick.Timestamp
			d.executeSignal(reg, sig)
		}
	}
}

// executeSignal translates one strategy signal into an order submission
// or a cancel sweep.
func (d *Dispatcher) executeSignal(reg *registration, sig Signal) {
	switch sig.Type {
	case NoSignal:
		return
	case Buy:
		d.submitOrder(reg, core.Buy, sig.Price, sig.Quantity, false)
	case Sell:
		d.submitOrder(reg, core.Sell, sig.Price, sig.Quantity, false)
	case CloseLong:
		// Closing the long side means selling; closing orders skip the
		// risk gate since they only reduce exposure.
		d.submitOrder(reg, core.Sell, sig.Price, sig.Quantity, true)
	case CloseShort:
		d.submitOrder(reg, core.Buy, sig.Price, sig.Quantity, true)
	case CancelBids:
		d.cancelSide(reg, core.Buy)
	case CancelAsks:
		d.cancelSide(reg, core.Sell)
	case CancelAll:
		d.cancelSide(reg, core.Buy)
		d.cancelSide(reg, core.Sell)
	}
}

func (d *Dispatcher) submitOrder(reg *registration, side core.Side, price int64, qty uint64, closing bool) {
	if qty == 0 {
		return
	}
	orderID, ok := reg.reserveOrderID()
	if !ok {
		d.logger.Error().Str("strategy", reg.strategy.Name()).Msg("order id range exhausted")
		return
	}

	orderType := core.Limit
	tif := core.GTC
	if price == 0 {
		orderType = core.Market
		tif = core.IOC
	}

	order := core.Order{
		ID: orderID, ClientID: reg.clientID, Type: orderType,
		Side: side, Price: price, Quantity: qty, TIF: tif,
	}

	if d.cfg.EnableRiskChecks && !closing {
		event := d.risk.Check(order)
		if !event.Approved() {
			reg.metrics.OrdersRejected++
			d.logger.Warn().Str("strategy", reg.strategy.Name()).
				Str("reason", event.Type.String()).Msg("strategy order rejected by risk gate")
			return
		}
	}

	d.orderToStrategy[order.ID] = reg
	reg.metrics.OrdersSubmitted++
	result := d.engine.Submit(order)

	if d.cfg.LogExecutions {
		d.logger.Debug().Str("strategy", reg.strategy.Name()).
			Str("status", result.Status.String()).Uint64("order_id", order.ID).Msg("strategy order executed")
	}

	if result.RemainingQty > 0 && !result.IsReject() {
		order.Quantity = result.RemainingQty
		reg.liveOrders[order.ID] = order
		d.risk.OnOrderAdded(order)
	}
}

func (d *Dispatcher) cancelSide(reg *registration, side core.Side) {
	for orderID, order := range reg.liveOrders {
		if order.Side != side {
			continue
		}
		cancel := core.Order{ID: d.nextCancelID(reg), ClientID: reg.clientID, Type: core.Cancel, TargetID: orderID}
		d.engine.Submit(cancel)
	}
}

// nextCancelID borrows an id from the same reserved range; cancel/modify
// orders never themselves rest or need a stable identity beyond the
// submission itself.
func (d *Dispatcher) nextCancelID(reg *registration) uint64 {
	id, ok := reg.reserveOrderID()
	if !ok {
		return reg.orderIDStart
	}
	return id
}

// HandleTrade is the engine's shared trade callback: it updates the risk
// gate and P&L tracker unconditionally, then resolves each side of the
// trade back to the strategy that submitted it, if any, and drives that
// strategy's UpdatePosition/OnTradeExecuted hooks. Exported so a
// front-end wrapping this dispatcher can chain it into its own
// notification pipeline instead of registering a second, conflicting
// callback on the same engine.
func (d *Dispatcher) HandleTrade(trade core.Trade) {
	if d.cfg.EnableRiskChecks {
		d.risk.OnTradeExecuted(trade, trade.BuyClientID, trade.SellClientID)
	}
	if d.cfg.EnablePnLTrack {
		d.pnl.OnTradeExecuted(trade, trade.BuyClientID, trade.SellClientID, 0)
	}

	if reg, ok := d.orderToStrategy[trade.BuyOrderID]; ok {
		reg.strategy.UpdatePosition(core.Buy, trade.Quantity, trade.Price)
		reg.strategy.OnTradeExecuted(trade, true)
		d.recordFill(reg, core.Buy, trade.Quantity)
	}
	if reg, ok := d.orderToStrategy[trade.SellOrderID]; ok {
		reg.strategy.UpdatePosition(core.Sell, trade.Quantity, trade.Price)
		reg.strategy.OnTradeExecuted(trade, true)
		d.recordFill(reg, core.Sell, trade.Quantity)
	}
}

// recordFill updates reg's trade/volume/position counters and, when P&L
// tracking is enabled, refreshes its realized/unrealized/total P&L from
// the shared tracker's per-client snapshot.
func (d *Dispatcher) recordFill(reg *registration, side core.Side, qty uint64) {
	m := &reg.metrics
	m.TotalTrades++
	m.TotalVolume += qty
	if side == core.Buy {
		m.NetPosition += int64(qty)
	} else {
		m.NetPosition -= int64(qty)
	}
	if abs := m.NetPosition; abs < 0 {
		if -abs > m.MaxPosition {
			m.MaxPosition = -abs
		}
	} else if abs > m.MaxPosition {
		m.MaxPosition = abs
	}

	if d.cfg.EnablePnLTrack {
		c := d.pnl.ClientPnL(reg.clientID)
		m.RealizedPnL = c.RealizedPnL
		m.UnrealizedPnL = c.UnrealizedPnL
		m.TotalPnL = c.TotalPnL()
	}
}

// HandleExecution is the engine's shared execution callback: it notifies
// the owning strategy and, once an order is no longer live, drops it and
// its risk-gate open-order slot. Exported for the same reason as
// HandleTrade.
func (d *Dispatcher) HandleExecution(result core.ExecutionResult) {
	reg, ok := d.orderToStrategy[result.OrderID]
	if !ok {
		return
	}
	reg.strategy.OnOrderFilled(result)

	switch result.Status {
	case core.Filled:
		reg.metrics.OrdersFilled++
	case core.PartialFill:
		reg.metrics.OrdersPartialFilled++
	case core.Cancelled:
		reg.metrics.OrdersCancelled++
	case core.Rejected:
		reg.metrics.OrdersRejected++
	}

	if result.Status == core.Rejected || result.RemainingQty == 0 {
		if order, live := reg.liveOrders[result.OrderID]; live {
			if d.cfg.EnableRiskChecks {
				d.risk.OnOrderRemoved(order)
			}
			delete(reg.liveOrders, result.OrderID)
		}
		delete(d.orderToStrategy, result.OrderID)
	}
}

// ResetAll clears every registered strategy's internal state and its
// dispatcher-tracked metrics.
func (d *Dispatcher) ResetAll() {
	for _, reg := range d.registrations {
		reg.strategy.Reset()
		reg.liveOrders = make(map[uint64]core.Order)
		reg.metrics = Metrics{StrategyName: reg.strategy.Name()}
	}
}
