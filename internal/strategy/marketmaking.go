package strategy

import "mercury/internal/core"

// MarketMakingConfig carries the quoting parameters a simple market
// maker needs: the spread it quotes around mid price, and how far it
// skews its quotes once inventory builds up. Fading, requote timers and
// stale-order expiry are out of scope; only the framing — quote both
// sides around mid, skew on inventory, stop adding at the limit — is
// kept.
type MarketMakingConfig struct {
	Config
	MinSpread      int64
	MaxSpread      int64
	QuoteQuantity  uint64
	TickSize       int64
	InventorySkew  float64
	MaxInventory   int64
}

// DefaultMarketMakingConfig returns reasonable defaults for quiet,
// moderately liquid markets.
func DefaultMarketMakingConfig() MarketMakingConfig {
	return MarketMakingConfig{
		Config: Config{
			Name: "MarketMaking", Enabled: true,
			MaxPosition: 1000, MaxOrderQuantity: 500, MaxOrderValue: 100_000, MaxLoss: -10_000,
		},
		MinSpread: 2, MaxSpread: 20, QuoteQuantity: 100, TickSize: 1,
		InventorySkew: 0.1, MaxInventory: 500,
	}
}

// MarketMaking quotes both sides of the book around mid price, skewing
// away from whichever side would grow its inventory once its net
// position is non-trivial. Once MaxInventory is reached it cancels the
// side that would grow inventory further (bids when long, asks when
// short) and quotes nothing; it does not trade the position back down.
type MarketMaking struct {
	cfg   MarketMakingConfig
	state State
}

// NewMarketMaking returns a market-making strategy using cfg.
func NewMarketMaking(cfg MarketMakingConfig) *MarketMaking {
	return &MarketMaking{cfg: cfg}
}

func (s *MarketMaking) Name() string    { return "MarketMaking" }
func (s *MarketMaking) Config() Config  { return s.cfg.Config }
func (s *MarketMaking) Reset()          { s.state = State{} }

func (s *MarketMaking) OnMarketTick(tick MarketTick) []Signal {
	if !s.cfg.Enabled || !tick.Valid() {
		return nil
	}
	if s.state.NetPosition >= s.cfg.MaxInventory {
		return []Signal{{Type: CancelBids, Reason: "inventory at long limit"}}
	}
	if s.state.NetPosition <= -s.cfg.MaxInventory {
		return []Signal{{Type: CancelAsks, Reason: "inventory at short limit"}}
	}

	mid := tick.MidPrice()
	if mid == 0 {
		return nil
	}
	spread := s.cfg.MinSpread
	if tick.Spread() > spread {
		spread = tick.Spread()
	}
	if spread > s.cfg.MaxSpread {
		spread = s.cfg.MaxSpread
	}

	skew := int64(float64(s.state.NetPosition) * s.cfg.InventorySkew)
	bidPrice := mid - spread/2 - skew
	askPrice := mid + spread/2 - skew

	return []Signal{
		{Type: Buy, Price: bidPrice, Quantity: s.cfg.QuoteQuantity, Confidence: 0.5, Reason: "quote bid around mid"},
		{Type: Sell, Price: askPrice, Quantity: s.cfg.QuoteQuantity, Confidence: 0.5, Reason: "quote ask around mid"},
	}
}

func (s *MarketMaking) OnTradeExecuted(core.Trade, bool)        {}
func (s *MarketMaking) OnOrderFilled(core.ExecutionResult)      {}

// UpdatePosition is the uniform hook the dispatcher calls after every
// fill, replacing a downcast to a concrete strategy type.
func (s *MarketMaking) UpdatePosition(side core.Side, qty uint64, price int64) {
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
