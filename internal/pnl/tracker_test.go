package pnl_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"mercury/internal/core"
	"mercury/internal/pnl"
)

func newTracker() *pnl.Tracker {
	var seq uint64
	return pnl.New(func() uint64 { seq++; return seq }, zerolog.Nop())
}

func trade(id uint64, price int64, qty uint64) core.Trade {
	return core.Trade{TradeID: id, Price: price, Quantity: qty}
}

// Buy 10@100 (lot A), buy 10@110 (lot B), sell 10@120 closes lot A for
// +200, leaving lot B open; a further sell 10@105 closes lot B for -50,
// for a running total of 150.
func TestTracker_FIFOLotMatching(t *testing.T) {
	tr := newTracker()
	const client = 7

	tr.OnTradeExecuted(trade(1, 100, 10), client, 0, 0)
	tr.OnTradeExecuted(trade(2, 110, 10), client, 0, 0)

	pnlState := tr.ClientPnL(client)
	assert.Equal(t, int64(20), pnlState.LongQty)
	assert.Zero(t, pnlState.RealizedPnL)

	tr.OnTradeExecuted(trade(3, 120, 10), 0, client, 0)
	pnlState = tr.ClientPnL(client)
	assert.Equal(t, int64(200), pnlState.RealizedPnL)
	assert.Equal(t, int64(10), pnlState.LongQty)
	openLongs := pnlState.OpenLongs
	assert.Len(t, openLongs, 1)
	assert.Equal(t, int64(110), openLongs[0].Price)

	tr.OnTradeExecuted(trade(4, 105, 10), 0, client, 0)
	pnlState = tr.ClientPnL(client)
	assert.Equal(t, int64(150), pnlState.RealizedPnL)
	assert.Zero(t, pnlState.LongQty)
	assert.Empty(t, pnlState.OpenLongs)
}

func TestTracker_AtMostOneQueueNonEmpty(t *testing.T) {
	tr := newTracker()
	const client = 1

	tr.OnTradeExecuted(trade(1, 100, 5), client, 0, 0)
	tr.OnTradeExecuted(trade(2, 100, 8), 0, client, 0)

	state := tr.ClientPnL(client)
	assert.Equal(t, int64(3), state.ShortQty)
	assert.Zero(t, state.LongQty)
	assert.Empty(t, state.OpenLongs)
	assert.Len(t, state.OpenShorts, 1)
}

func TestTracker_MarkToMarketUnrealized(t *testing.T) {
	tr := newTracker()
	const client = 3

	tr.OnTradeExecuted(trade(1, 100, 10), client, 0, 0)
	got := tr.UpdateMarkToMarket(client, 150)
	assert.Equal(t, int64(500), got)

	state := tr.ClientPnL(client)
	assert.Equal(t, int64(500), state.UnrealizedPnL)
	assert.Equal(t, int64(500), state.TotalPnL())
}

func TestTracker_SnapshotCallbackFiresPerClientPerTrade(t *testing.T) {
	tr := newTracker()
	var snaps []pnl.Snapshot
	tr.SetSnapshotCallback(func(s pnl.Snapshot) { snaps = append(snaps, s) })

	tr.OnTradeExecuted(trade(1, 100, 10), 1, 2, 0)
	assert.Len(t, snaps, 2)
	assert.NotEqual(t, snaps[0].SnapshotID, snaps[1].SnapshotID)
}
