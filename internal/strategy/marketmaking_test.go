package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mercury/internal/strategy"
)

func TestMarketMaking_QuotesBothSidesAroundMid(t *testing.T) {
	s := strategy.NewMarketMaking(strategy.DefaultMarketMakingConfig())

	signals := s.OnMarketTick(strategy.MarketTick{BidPrice: 100, AskPrice: 104})
	if assert.Len(t, signals, 2) {
		assert.Equal(t, strategy.Buy, signals[0].Type)
		assert.Equal(t, strategy.Sell, signals[1].Type)
		assert.Less(t, signals[0].Price, signals[1].Price)
	}
}

func TestMarketMaking_CancelsBidsAtLongInventoryLimit(t *testing.T) {
	cfg := strategy.DefaultMarketMakingConfig()
	cfg.MaxInventory = 100
	s := strategy.NewMarketMaking(cfg)

	s.UpdatePosition(0, 100, 100) // core.Buy == 0

	signals := s.OnMarketTick(strategy.MarketTick{BidPrice: 100, AskPrice: 104})
	if assert.Len(t, signals, 1) {
		assert.Equal(t, strategy.CancelBids, signals[0].Type)
	}
}

func TestMarketMaking_InvalidTickProducesNoSignal(t *testing.T) {
	s := strategy.NewMarketMaking(strategy.DefaultMarketMakingConfig())
	assert.Empty(t, s.OnMarketTick(strategy.MarketTick{}))
}
