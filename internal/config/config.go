// Package config holds the plain-struct defaults for the dispatcher and
// the concurrent front-end, loaded from CLI flags in cmd/matchctl. There
// is no config file format: the surface is small enough that a flat flag
// set covers it.
package config

// DispatcherConfig controls whether the dispatcher runs orders through
// the risk gate and P&L tracker, and the client-id/order-id ranges
// handed out to each registered strategy.
type DispatcherConfig struct {
	EnableRiskChecks bool
	EnablePnLTrack   bool
	LogSignals       bool
	LogExecutions    bool
	BaseOrderID      uint64
	ClientIDOffset   uint64
}

// DefaultDispatcherConfig returns baseOrderId=1000000, clientIdOffset=100.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		EnableRiskChecks: true,
		EnablePnLTrack:   true,
		LogSignals:       false,
		LogExecutions:    true,
		BaseOrderID:      1_000_000,
		ClientIDOffset:   100,
	}
}

// OrderIDRangePerStrategy is the number of order IDs reserved for each
// strategy registered with the dispatcher.
const OrderIDRangePerStrategy = 1_000_000

// ShardMode selects how the concurrent front-end parallelizes work.
type ShardMode int

const (
	// SingleThreaded runs one engine/risk/P&L quartet with no sharding.
	SingleThreaded ShardMode = iota
	// Sharded routes orders to N independent quartets by routing key.
	Sharded
	// AsyncCallbacks runs a single quartet but publishes trade callbacks
	// to a worker pool instead of running them inline.
	AsyncCallbacks
)

func (m ShardMode) String() string {
	switch m {
	case Sharded:
		return "SHARDED"
	case AsyncCallbacks:
		return "ASYNC_CALLBACKS"
	default:
		return "SINGLE_THREADED"
	}
}

// ShardConfig configures the concurrent front-end.
type ShardConfig struct {
	Mode           ShardMode
	NumShards      int
	CallbackPoolSize int
}

// DefaultShardConfig returns a single-threaded configuration.
func DefaultShardConfig() ShardConfig {
	return ShardConfig{Mode: SingleThreaded, NumShards: 1, CallbackPoolSize: 4}
}
