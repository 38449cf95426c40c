package matching_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercury/internal/core"
	"mercury/internal/matching"
)

func newEngine() *matching.Engine {
	return matching.New(zerolog.Nop())
}

func limitOrder(id uint64, side core.Side, price int64, qty uint64, tif core.TimeInForce) core.Order {
	return core.Order{ID: id, Type: core.Limit, Side: side, Price: price, Quantity: qty, TIF: tif}
}

func TestEngine_RestingLimitOrderWithNoCross(t *testing.T) {
	e := newEngine()
	res := e.Submit(limitOrder(1, core.Buy, 100, 10, core.GTC))
	assert.Equal(t, core.Resting, res.Status)
	assert.Zero(t, res.FilledQty)
	assert.Equal(t, uint64(10), res.RemainingQty)
}

func TestEngine_LimitCrossFullFillAtRestingPrice(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(limitOrder(1, core.Sell, 100, 10, core.GTC)).Status)

	res := e.Submit(limitOrder(2, core.Buy, 105, 10, core.GTC))
	require.Equal(t, core.Filled, res.Status)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(100), res.Trades[0].Price, "trade executes at the resting order's price")
	assert.Equal(t, uint64(10), res.Trades[0].Quantity)
	assert.Equal(t, uint64(1), res.Trades[0].SellOrderID)
	assert.Equal(t, uint64(2), res.Trades[0].BuyOrderID)
}

func TestEngine_PriceTimePriorityFIFOWithinLevel(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(limitOrder(1, core.Sell, 100, 5, core.GTC)).Status)
	require.Equal(t, core.Resting, e.Submit(limitOrder(2, core.Sell, 100, 5, core.GTC)).Status)

	res := e.Submit(limitOrder(3, core.Buy, 100, 5, core.GTC))
	require.Equal(t, core.Filled, res.Status)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, uint64(1), res.Trades[0].SellOrderID, "earlier resting order fills first")
}

func TestEngine_PartialFillRestsRemainder(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(limitOrder(1, core.Sell, 100, 5, core.GTC)).Status)

	res := e.Submit(limitOrder(2, core.Buy, 100, 8, core.GTC))
	require.Equal(t, core.PartialFill, res.Status)
	assert.Equal(t, uint64(5), res.FilledQty)
	assert.Equal(t, uint64(3), res.RemainingQty)
	assert.True(t, e.Book.Has(2))
}

func TestEngine_SelfTradePreventionSkipsAndContinues(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(core.Order{ID: 1, ClientID: 7, Type: core.Limit, Side: core.Sell, Price: 100, Quantity: 5, TIF: core.GTC}).Status)
	require.Equal(t, core.Resting, e.Submit(core.Order{ID: 2, ClientID: 9, Type: core.Limit, Side: core.Sell, Price: 100, Quantity: 5, TIF: core.GTC}).Status)

	res := e.Submit(core.Order{ID: 3, ClientID: 7, Type: core.Limit, Side: core.Buy, Price: 100, Quantity: 5, TIF: core.GTC})
	require.Equal(t, core.Filled, res.Status)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, uint64(2), res.Trades[0].SellOrderID, "same-client resting order is skipped, not matched")
	assert.True(t, e.Book.Has(1), "skipped order remains resting")
}

func TestEngine_IOCCancelsUnfilledRemainder(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(limitOrder(1, core.Sell, 100, 5, core.GTC)).Status)

	res := e.Submit(limitOrder(2, core.Buy, 100, 8, core.IOC))
	require.Equal(t, core.PartialFill, res.Status)
	assert.Equal(t, uint64(5), res.FilledQty)
	assert.False(t, e.Book.Has(2), "IOC never rests its unfilled remainder")
}

func TestEngine_IOCCancelsOnZeroFill(t *testing.T) {
	e := newEngine()
	res := e.Submit(limitOrder(1, core.Buy, 100, 5, core.IOC))
	require.Equal(t, core.Cancelled, res.Status)
	assert.Zero(t, res.FilledQty)
	assert.Zero(t, res.RemainingQty)
	assert.False(t, e.Book.Has(1), "IOC never rests")
}

func TestEngine_FOKRejectsWhenNotFullyFillable(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(limitOrder(1, core.Sell, 100, 5, core.GTC)).Status)

	res := e.Submit(limitOrder(2, core.Buy, 100, 8, core.FOK))
	require.Equal(t, core.Rejected, res.Status)
	assert.Equal(t, core.FOKCannotFill, res.RejectReason)
	assert.True(t, e.Book.Has(1), "book unaffected by a rejected FOK")
}

func TestEngine_FOKFillsCompletelyWhenPossible(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(limitOrder(1, core.Sell, 100, 5, core.GTC)).Status)
	require.Equal(t, core.Resting, e.Submit(limitOrder(2, core.Sell, 101, 5, core.GTC)).Status)

	res := e.Submit(limitOrder(3, core.Buy, 101, 10, core.FOK))
	require.Equal(t, core.Filled, res.Status)
	assert.Len(t, res.Trades, 2)
}

func TestEngine_MarketOrderRejectsOnEmptyBook(t *testing.T) {
	e := newEngine()
	res := e.Submit(core.Order{ID: 2, Type: core.Market, Side: core.Buy, Quantity: 10})
	require.Equal(t, core.Rejected, res.Status)
	assert.Equal(t, core.NoLiquidity, res.RejectReason)
}

func TestEngine_MarketOrderPartiallyFillsAndCancelsRemainder(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(limitOrder(1, core.Sell, 100, 5, core.GTC)).Status)

	res := e.Submit(core.Order{ID: 2, Type: core.Market, Side: core.Buy, Quantity: 10})
	require.Equal(t, core.PartialFill, res.Status)
	assert.Equal(t, uint64(5), res.FilledQty)
	assert.Equal(t, uint64(0), res.RemainingQty, "unfilled remainder is cancelled, never rests")
	assert.False(t, e.Book.Has(1), "the only resting sell was fully consumed")
}

func TestEngine_MarketOrderCancelsWhenAllLiquidityIsSelfTrade(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(core.Order{ID: 1, ClientID: 7, Type: core.Limit, Side: core.Sell, Price: 100, Quantity: 5, TIF: core.GTC}).Status)

	res := e.Submit(core.Order{ID: 2, ClientID: 7, Type: core.Market, Side: core.Buy, Quantity: 5})
	require.Equal(t, core.Cancelled, res.Status)
	assert.Equal(t, core.NoLiquidity, res.RejectReason)
	assert.Zero(t, res.FilledQty)
	assert.True(t, e.Book.Has(1), "self-traded resting order is skipped, not consumed")
}

func TestEngine_MarketOrderSweepsAvailableLiquidity(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(limitOrder(1, core.Sell, 100, 5, core.GTC)).Status)
	require.Equal(t, core.Resting, e.Submit(limitOrder(2, core.Sell, 101, 5, core.GTC)).Status)

	res := e.Submit(core.Order{ID: 3, Type: core.Market, Side: core.Buy, Quantity: 10})
	require.Equal(t, core.Filled, res.Status)
	assert.Len(t, res.Trades, 2)
	assert.Equal(t, int64(100), res.Trades[0].Price)
	assert.Equal(t, int64(101), res.Trades[1].Price)
}

func TestEngine_CancelRemovesRestingOrder(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(limitOrder(1, core.Buy, 100, 10, core.GTC)).Status)

	res := e.Submit(core.Order{Type: core.Cancel, TargetID: 1})
	assert.Equal(t, core.Cancelled, res.Status)
	assert.False(t, e.Book.Has(1))
}

func TestEngine_CancelUnknownOrderRejects(t *testing.T) {
	e := newEngine()
	res := e.Submit(core.Order{Type: core.Cancel, TargetID: 999})
	assert.Equal(t, core.Rejected, res.Status)
	assert.Equal(t, core.OrderNotFound, res.RejectReason)
}

func TestEngine_ModifyLosesTimePriority(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(limitOrder(1, core.Sell, 100, 5, core.GTC)).Status)
	require.Equal(t, core.Resting, e.Submit(limitOrder(2, core.Sell, 100, 5, core.GTC)).Status)

	res := e.Submit(core.Order{Type: core.Modify, TargetID: 1, NewQuantity: 3})
	require.Equal(t, core.Modified, res.Status)

	fill := e.Submit(limitOrder(3, core.Buy, 100, 3, core.GTC))
	require.Equal(t, core.Filled, fill.Status)
	assert.Equal(t, uint64(2), fill.Trades[0].SellOrderID, "order 1 lost time priority to order 2 on modify")
}

func TestEngine_ModifyNoopRejects(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(limitOrder(1, core.Buy, 100, 10, core.GTC)).Status)

	res := e.Submit(core.Order{Type: core.Modify, TargetID: 1})
	assert.Equal(t, core.Rejected, res.Status)
	assert.Equal(t, core.ModifyNoChanges, res.RejectReason)
}

func TestEngine_InvalidOrdersRejectWithPreciseReasons(t *testing.T) {
	e := newEngine()

	assert.Equal(t, core.InvalidOrderId, e.Submit(limitOrder(0, core.Buy, 100, 10, core.GTC)).RejectReason)
	assert.Equal(t, core.InvalidQuantity, e.Submit(limitOrder(1, core.Buy, 100, 0, core.GTC)).RejectReason)
	assert.Equal(t, core.InvalidPrice, e.Submit(limitOrder(2, core.Buy, -1, 10, core.GTC)).RejectReason)
	assert.Equal(t, core.PriceOutOfRange, e.Submit(limitOrder(3, core.Buy, core.MaxPrice+1, 10, core.GTC)).RejectReason)
}

func TestEngine_DuplicateOrderIdRejected(t *testing.T) {
	e := newEngine()
	require.Equal(t, core.Resting, e.Submit(limitOrder(1, core.Buy, 100, 10, core.GTC)).Status)

	res := e.Submit(limitOrder(1, core.Buy, 101, 5, core.GTC))
	assert.Equal(t, core.Rejected, res.Status)
	assert.Equal(t, core.DuplicateOrderId, res.RejectReason)
}
