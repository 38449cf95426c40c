// Package frontend implements the concurrent front-end that sits in
// front of the matching engine, risk gate, P&L tracker and strategy
// dispatcher: routing requests to one of several independent shards, or
// fanning trade/execution notifications out to a worker pool.
package frontend

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"mercury/internal/config"
	"mercury/internal/core"
	"mercury/internal/matching"
	"mercury/internal/metrics"
	"mercury/internal/pnl"
	"mercury/internal/risk"
	"mercury/internal/strategy"
)

// Notification is a single trade, execution, risk-event or P&L-snapshot
// event published to front-end subscribers (CSV writers, metrics).
// Exactly one of the four pointer fields is set.
type Notification struct {
	ShardIndex int
	Trade      *core.Trade
	Execution  *core.ExecutionResult
	RiskEvent  *risk.Event
	PnL        *pnl.Snapshot
}

// NotificationCallback is invoked once per published Notification,
// inline for SingleThreaded/Sharded modes and from a worker-pool
// goroutine for AsyncCallbacks mode.
type NotificationCallback func(Notification)

// shard bundles one independent matching engine with its own risk gate,
// P&L tracker and strategy dispatcher, guarded by a single mutex. Sharded
// mode runs several of these concurrently; the other two modes run
// exactly one.
type shard struct {
	mu         sync.Mutex
	index      int
	Engine     *matching.Engine
	Risk       *risk.Gate
	PnL        *pnl.Tracker
	Dispatcher *strategy.Dispatcher
}

// Frontend is the concurrent front-end. Submit is safe for concurrent
// use by multiple goroutines; routing and locking make that safety hold
// without serializing unrelated shards against each other.
type Frontend struct {
	cfg    config.ShardConfig
	shards []*shard
	logger zerolog.Logger

	onNotify NotificationCallback

	pool     WorkerPool
	tomb     tomb.Tomb
	started  bool
}

// New builds a front-end with cfg.NumShards independent shards for
// Sharded mode, or a single shard for the other two modes. Each shard
// gets its own risk gate (seeded with limits) and P&L tracker; timestamp
// stamps risk events and P&L snapshots (each engine keeps its own
// internal sequence).
func New(cfg config.ShardConfig, dispatcherCfg config.DispatcherConfig, limits risk.Limits, timestamp func() uint64, logger zerolog.Logger) *Frontend {
	numShards := 1
	if cfg.Mode == config.Sharded && cfg.NumShards > 0 {
		numShards = cfg.NumShards
	}

	f := &Frontend{cfg: cfg, logger: logger}
	for i := 0; i < numShards; i++ {
		engine := matching.New(logger)
		gate := risk.New(limits, timestamp, logger)
		tracker := pnl.New(timestamp, logger)
		dispatcher := strategy.New(dispatcherCfg, engine, gate, tracker, logger)

		sh := &shard{index: i, Engine: engine, Risk: gate, PnL: tracker, Dispatcher: dispatcher}
		engine.SetTradeCallback(f.tradeNotifier(sh))
		engine.SetExecutionCallback(f.executionNotifier(sh))
		gate.SetEventCallback(f.riskNotifier(sh))
		tracker.SetSnapshotCallback(f.pnlNotifier(sh))
		f.shards = append(f.shards, sh)
	}

	if cfg.Mode == config.AsyncCallbacks {
		poolSize := cfg.CallbackPoolSize
		if poolSize <= 0 {
			poolSize = 4
		}
		f.pool = NewWorkerPool(poolSize)
	}
	return f
}

// SetNotificationCallback registers the subscriber invoked for every
// published trade, execution, risk-event and P&L-snapshot notification.
func (f *Frontend) SetNotificationCallback(cb NotificationCallback) { f.onNotify = cb }

// Start launches the async worker pool, if configured. It is a no-op in
// SingleThreaded and Sharded modes.
func (f *Frontend) Start() {
	if f.cfg.Mode != config.AsyncCallbacks || f.started {
		return
	}
	f.started = true
	f.pool.Setup(&f.tomb, f.dispatchNotification)
}

// Stop signals the worker pool to exit and waits for it to drain.
func (f *Frontend) Stop() error {
	if f.cfg.Mode != config.AsyncCallbacks || !f.started {
		return nil
	}
	f.tomb.Kill(nil)
	return f.tomb.Wait()
}

// Shards reports how many independent shards this front-end runs.
func (f *Frontend) Shards() int { return len(f.shards) }

// Dispatcher returns the strategy dispatcher for shard index, primarily
// useful in SingleThreaded/AsyncCallbacks mode where there is exactly
// one.
func (f *Frontend) Dispatcher(index int) *strategy.Dispatcher {
	if index < 0 || index >= len(f.shards) {
		return nil
	}
	return f.shards[index].Dispatcher
}

// Engine returns the matching engine for shard index, letting a caller
// read book state (best bid/ask, quantity at price) directly, e.g. to
// drive a synthetic market-tick feed for a strategy backtest.
func (f *Frontend) Engine(index int) *matching.Engine {
	if index < 0 || index >= len(f.shards) {
		return nil
	}
	return f.shards[index].Engine
}

// routingKey routes by client id when present, falling back to the
// order/target id for anonymous or cancel/modify requests.
func routingKey(order core.Order) uint64 {
	if order.ClientID != 0 {
		return order.ClientID
	}
	if order.Type == core.Cancel || order.Type == core.Modify {
		return order.TargetID
	}
	return order.ID
}

func (f *Frontend) shardFor(order core.Order) *shard {
	if len(f.shards) == 1 {
		return f.shards[0]
	}
	key := routingKey(order)
	return f.shards[key%uint64(len(f.shards))]
}

// Submit routes order to its shard, submits it to that shard's engine
// under the shard's mutex (first running it through the shard's risk
// gate, cancel/modify bypassing as the gate itself does), and returns
// the resulting ExecutionResult.
func (f *Frontend) Submit(order core.Order) core.ExecutionResult {
	sh := f.shardFor(order)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	metrics.OrderSubmitted(order.Type.String(), order.Side.String())

	event := sh.Risk.Check(order)
	if !event.Approved() {
		metrics.RiskEvent(event.Type.String())
		metrics.OrderRejected(core.InternalError.String())
		return core.ExecutionResult{
			Status: core.Rejected, OrderID: order.ID, ClientID: order.ClientID,
			RemainingQty: order.Quantity, RejectReason: core.InternalError,
			Message: fmt.Sprintf("risk gate: %s", event.Details),
		}
	}
	metrics.RiskEvent(event.Type.String())

	result := sh.Engine.Submit(order)
	if result.IsReject() {
		metrics.OrderRejected(result.RejectReason.String())
	}
	if result.RemainingQty > 0 && !result.IsReject() {
		sh.Risk.OnOrderAdded(order)
	} else if order.Type == core.Cancel && !result.IsReject() {
		sh.Risk.OnOrderRemoved(order)
	}
	return result
}

// tradeNotifier chains into the shard's own strategy dispatcher rather
// than updating risk/P&L here directly: Dispatcher.HandleTrade already
// performs that update for every trade (strategy-originated or not) and
// additionally correlates fills back to whichever strategy submitted
// the order, something a bare risk/P&L update cannot do.
func (f *Frontend) tradeNotifier(sh *shard) matching.TradeCallback {
	return func(trade core.Trade) {
		sh.Dispatcher.HandleTrade(trade)
		metrics.TradeExecuted(trade.Quantity)
		if trade.BuyClientID != 0 {
			metrics.SetClientNetPosition(strconv.FormatUint(trade.BuyClientID, 10), sh.Risk.Position(trade.BuyClientID).Net())
		}
		if trade.SellClientID != 0 {
			metrics.SetClientNetPosition(strconv.FormatUint(trade.SellClientID, 10), sh.Risk.Position(trade.SellClientID).Net())
		}
		f.publish(Notification{ShardIndex: sh.index, Trade: &trade})
	}
}

func (f *Frontend) executionNotifier(sh *shard) matching.ExecutionCallback {
	return func(result core.ExecutionResult) {
		sh.Dispatcher.HandleExecution(result)
		f.publish(Notification{ShardIndex: sh.index, Execution: &result})
	}
}

// riskNotifier publishes every risk-gate decision (approved or rejected)
// so a caller can emit a full risk-event audit trail whenever an event
// writer is attached.
func (f *Frontend) riskNotifier(sh *shard) func(risk.Event) {
	return func(ev risk.Event) {
		f.publish(Notification{ShardIndex: sh.index, RiskEvent: &ev})
	}
}

// pnlNotifier publishes every P&L snapshot emitted on a trade.
func (f *Frontend) pnlNotifier(sh *shard) pnl.SnapshotCallback {
	return func(snap pnl.Snapshot) {
		f.publish(Notification{ShardIndex: sh.index, PnL: &snap})
	}
}

func (f *Frontend) publish(n Notification) {
	if f.onNotify == nil {
		return
	}
	if f.cfg.Mode == config.AsyncCallbacks && f.started {
		f.pool.Submit(n)
		return
	}
	f.onNotify(n)
}

func (f *Frontend) dispatchNotification(t *tomb.Tomb, task any) error {
	n, ok := task.(Notification)
	if !ok {
		return nil
	}
	f.onNotify(n)
	return nil
}
