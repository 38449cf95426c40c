package frontend_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercury/internal/config"
	"mercury/internal/core"
	"mercury/internal/frontend"
	"mercury/internal/risk"
)

func clock() func() uint64 {
	var seq uint64
	return func() uint64 { seq++; return seq }
}

func TestFrontend_SingleThreadedSubmitCrossesBook(t *testing.T) {
	cfg := config.DefaultShardConfig()
	f := frontend.New(cfg, config.DefaultDispatcherConfig(), risk.DefaultLimits(), clock(), zerolog.Nop())
	require.Equal(t, 1, f.Shards())

	sell := f.Submit(core.Order{ID: 1, ClientID: 1, Type: core.Limit, Side: core.Sell, Price: 100, Quantity: 10, TIF: core.GTC})
	assert.Equal(t, core.Resting, sell.Status)

	buy := f.Submit(core.Order{ID: 2, ClientID: 2, Type: core.Limit, Side: core.Buy, Price: 100, Quantity: 10, TIF: core.GTC})
	assert.Equal(t, core.Filled, buy.Status)
}

func TestFrontend_ShardedRoutesByClientID(t *testing.T) {
	cfg := config.ShardConfig{Mode: config.Sharded, NumShards: 4}
	f := frontend.New(cfg, config.DefaultDispatcherConfig(), risk.DefaultLimits(), clock(), zerolog.Nop())
	require.Equal(t, 4, f.Shards())

	var notes []frontend.Notification
	f.SetNotificationCallback(func(n frontend.Notification) { notes = append(notes, n) })

	// Clients 5 and 9 both route to shard 1; distinct clients so
	// self-trade prevention does not skip the cross.
	f.Submit(core.Order{ID: 1, ClientID: 5, Type: core.Limit, Side: core.Sell, Price: 100, Quantity: 5, TIF: core.GTC})
	f.Submit(core.Order{ID: 2, ClientID: 9, Type: core.Limit, Side: core.Buy, Price: 100, Quantity: 5, TIF: core.GTC})

	var sawTrade bool
	for _, n := range notes {
		if n.Trade != nil {
			sawTrade = true
			assert.Equal(t, int(5%4), n.ShardIndex)
		}
	}
	assert.True(t, sawTrade)
}

func TestFrontend_AsyncCallbacksDeliverOffThread(t *testing.T) {
	cfg := config.ShardConfig{Mode: config.AsyncCallbacks, CallbackPoolSize: 2}
	f := frontend.New(cfg, config.DefaultDispatcherConfig(), risk.DefaultLimits(), clock(), zerolog.Nop())

	// The two submits publish seven notifications in all (risk events,
	// P&L snapshots and a trade besides the executions); the buffer holds
	// every one so no worker blocks when Stop drains the queue.
	received := make(chan frontend.Notification, 16)
	f.SetNotificationCallback(func(n frontend.Notification) { received <- n })
	f.Start()
	defer f.Stop()

	f.Submit(core.Order{ID: 1, ClientID: 1, Type: core.Limit, Side: core.Sell, Price: 100, Quantity: 10, TIF: core.GTC})
	f.Submit(core.Order{ID: 2, ClientID: 2, Type: core.Limit, Side: core.Buy, Price: 100, Quantity: 10, TIF: core.GTC})

	deadline := time.After(time.Second)
	for {
		select {
		case n := <-received:
			if n.Execution == nil {
				continue
			}
			assert.Contains(t, []core.ExecutionStatus{core.Resting, core.Filled}, n.Execution.Status)
			return
		case <-deadline:
			t.Fatal("timed out waiting for async execution notification")
		}
	}
}
