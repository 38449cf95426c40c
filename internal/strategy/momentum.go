package strategy

import "mercury/internal/core"

// MomentumConfig carries the short/long window sizes used for moving
// averages, and the threshold that turns a momentum reading into a
// signal. Trailing stops, trend filters and volume confirmation are out
// of scope; only the framing — two moving averages crossing, bounded
// position sizing — is kept.
type MomentumConfig struct {
	Config
	ShortPeriod     int
	LongPeriod      int
	EntryThreshold  int64
	BaseQuantity    uint64
	MaxPositionUnits int64
}

// DefaultMomentumConfig returns reasonable defaults for a short-window
// crossover.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		Config: Config{
			Name: "Momentum", Enabled: true,
			MaxPosition: 500, MaxOrderQuantity: 200, MaxOrderValue: 50_000, MaxLoss: -5_000,
		},
		ShortPeriod: 5, LongPeriod: 20, EntryThreshold: 1, BaseQuantity: 50, MaxPositionUnits: 300,
	}
}

// Momentum compares a short and a long moving average of the last-trade
// price; it buys when the short average runs far enough above the long
// one, sells when it runs far enough below, closes an open position once
// the two averages are equal, and otherwise holds.
type Momentum struct {
	cfg    MomentumConfig
	state  State
	prices []int64
}

// NewMomentum returns a momentum strategy using cfg.
func NewMomentum(cfg MomentumConfig) *Momentum {
	return &Momentum{cfg: cfg}
}

func (s *Momentum) Name() string   { return "Momentum" }
func (s *Momentum) Config() Config { return s.cfg.Config }

func (s *Momentum) Reset() {
	s.state = State{}
	s.prices = nil
}

func (s *Momentum) OnMarketTick(tick MarketTick) []Signal {
	if !s.cfg.Enabled || tick.LastTradePrice <= 0 {
		return nil
	}
	s.prices = append(s.prices, tick.LastTradePrice)
	if len(s.prices) > s.cfg.LongPeriod {
		s.prices = s.prices[len(s.prices)-s.cfg.LongPeriod:]
	}
	if len(s.prices) < s.cfg.LongPeriod {
		return nil
	}

	shortAvg := movingAverage(s.prices, s.cfg.ShortPeriod)
	longAvg := movingAverage(s.prices, s.cfg.LongPeriod)
	diff := shortAvg - longAvg

	switch {
	case diff >= s.cfg.EntryThreshold && s.state.NetPosition < s.cfg.MaxPositionUnits:
		return []Signal{{Type: Buy, Quantity: s.cfg.BaseQuantity, Confidence: 0.6, Reason: "short average above long average"}}
	case diff <= -s.cfg.EntryThreshold && s.state.NetPosition > -s.cfg.MaxPositionUnits:
		return []Signal{{Type: Sell, Quantity: s.cfg.BaseQuantity, Confidence: 0.6, Reason: "short average below long average"}}
	case diff == 0 && s.state.NetPosition > 0:
		return []Signal{{Type: CloseLong, Quantity: uint64(s.state.NetPosition), Reason: "momentum flattened"}}
	case diff == 0 && s.state.NetPosition < 0:
		return []Signal{{Type: CloseShort, Quantity: uint64(-s.state.NetPosition), Reason: "momentum flattened"}}
	}
	return nil
}

func movingAverage(prices []int64, period int) int64 {
	if period > len(prices) {
		period = len(prices)
	}
	if period == 0 {
		return 0
	}
	window := prices[len(prices)-period:]
	var sum int64
	for _, p := range window {
		sum += p
	}
	return sum / int64(period)
}

func (s *Momentum) OnTradeExecuted(core.Trade, bool)   {}
func (s *Momentum) OnOrderFilled(core.ExecutionResult) {}

// UpdatePosition is the uniform hook the dispatcher calls after every
// fill, replacing a downcast to a concrete strategy type.
func (s *Momentum) UpdatePosition(side core.Side, qty uint64, price int64) {
	if side == core.Buy {
		s.state.NetPosition += int64(qty)
		s.state.LongPosition += int64(qty)
	} else {
		s.state.NetPosition -= int64(qty)
		s.state.ShortPosition += int64(qty)
	}
	s.state.TotalTrades++
	s.state.TotalVolume += qty
}
