// Command matchctl drives the matching core from the command line: it
// either runs a CSV order file through the engine (writing trades,
// execution reports, risk events and P&L snapshots), or runs the
// built-in strategies against a synthetic tick feed in one of several
// backtest regimes. Flag handling uses the stdlib flag package, no
// config file.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mercury/internal/config"
	"mercury/internal/core"
	"mercury/internal/csvio"
	"mercury/internal/frontend"
	"mercury/internal/risk"
	"mercury/internal/strategy"
)

func main() {
	var (
		shards      = flag.Int("shards", 1, "number of concurrent shards (sharded mode if > 1)")
		asyncIO     = flag.Bool("async-io", false, "select the async-callback front-end mode (one shard); matchctl does not start its worker pool, so notifications still run inline")
		runStrats   = flag.Bool("strategies", false, "run the built-in strategies against a synthetic tick feed instead of ingesting a CSV file")
		backtest    = flag.String("backtest", "", "backtest regime to run: mm, momentum, multi (implies --strategies)")
		ticks       = flag.Int("ticks", 500, "number of synthetic ticks to drive in --strategies/--backtest mode")
		seed        = flag.Int64("seed", 12345, "seed for the synthetic tick generator")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics at this address (e.g. :9090)")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	log.Logger = logger

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server exited")
			}
		}()
	}

	runID := uuid.New().String()
	logger.Info().Str("run_id", runID).Msg("matchctl starting")

	shardMode := config.SingleThreaded
	if *shards > 1 {
		shardMode = config.Sharded
	}
	if *asyncIO {
		shardMode = config.AsyncCallbacks
	}
	shardCfg := config.ShardConfig{Mode: shardMode, NumShards: *shards, CallbackPoolSize: 4}

	var timestampSeq uint64
	timestamp := func() uint64 { timestampSeq++; return timestampSeq }

	fe := frontend.New(shardCfg, config.DefaultDispatcherConfig(), risk.DefaultLimits(), timestamp, logger)

	if *backtest != "" || *runStrats {
		regime := *backtest
		if regime == "" {
			regime = "multi"
		}
		if err := runBacktest(fe, regime, *ticks, *seed, logger); err != nil {
			logger.Error().Err(err).Msg("backtest failed")
			os.Exit(1)
		}
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: matchctl [flags] <orders.csv> [trades.csv] [executions.csv] [riskevents.csv] [pnl.csv]")
		os.Exit(1)
	}
	if err := runFileMode(fe, args, logger); err != nil {
		logger.Error().Err(err).Msg("file mode failed")
		os.Exit(1)
	}
}

func outputPath(args []string, index int, def string) string {
	if index < len(args) {
		return args[index]
	}
	return def
}

// runFileMode parses an input order CSV, submits every order through the
// front-end in arrival order, and appends trades/execution reports/risk
// events/P&L snapshots to the four output files.
func runFileMode(fe *frontend.Frontend, args []string, logger zerolog.Logger) error {
	inputFile := args[0]
	tradesFile := outputPath(args, 1, "trades.csv")
	reportsFile := outputPath(args, 2, "executions.csv")
	riskFile := outputPath(args, 3, "riskevents.csv")
	pnlFile := outputPath(args, 4, "pnl.csv")

	reader := csvio.NewReader(logger)
	orders, err := reader.ParseFile(inputFile)
	if err != nil {
		return fmt.Errorf("matchctl: parse %s: %w", inputFile, err)
	}
	logger.Info().Int("orders", len(orders)).Int("parse_errors", reader.ParseErrors).Msg("orders parsed")

	tradeWriter, err := csvio.NewTradeWriter(tradesFile)
	if err != nil {
		return err
	}
	defer tradeWriter.Close()

	reportWriter, err := csvio.NewExecutionReportWriter(reportsFile)
	if err != nil {
		return err
	}
	defer reportWriter.Close()

	riskWriter, err := csvio.NewRiskEventWriter(riskFile)
	if err != nil {
		return err
	}
	defer riskWriter.Close()

	pnlWriter, err := csvio.NewPnLWriter(pnlFile)
	if err != nil {
		return err
	}
	defer pnlWriter.Close()

	fe.SetNotificationCallback(func(n frontend.Notification) {
		if n.Trade != nil {
			if err := tradeWriter.WriteTrade(*n.Trade); err != nil {
				logger.Error().Err(err).Msg("write trade")
			}
		}
		if n.RiskEvent != nil {
			if err := riskWriter.WriteEvent(*n.RiskEvent); err != nil {
				logger.Error().Err(err).Msg("write risk event")
			}
		}
		if n.PnL != nil {
			if err := pnlWriter.WriteSnapshot(*n.PnL); err != nil {
				logger.Error().Err(err).Msg("write pnl snapshot")
			}
		}
	})

	var filled, rejected, resting int
	for _, order := range orders {
		result := fe.Submit(order)
		if err := reportWriter.WriteReport(order, result); err != nil {
			logger.Error().Err(err).Msg("write execution report")
		}
		switch result.Status {
		case core.Rejected:
			rejected++
		case core.Resting, core.PartialFill:
			resting++
		default:
			filled++
		}
	}

	if err := fe.Stop(); err != nil {
		logger.Warn().Err(err).Msg("frontend shutdown")
	}

	logger.Info().Int("filled", filled).Int("resting_or_partial", resting).Int("rejected", rejected).
		Msg("file mode complete")
	return nil
}

// runBacktest drives the built-in strategies against a deterministic
// synthetic tick feed: a simple seeded random walk around a start price,
// with ticks derived from the live order book's own best bid/ask after
// each round of simulated external order flow. Deliberately simpler than
// a full order-flow generator, since the point here is exercising the
// strategy dispatcher end to end, not realistic market microstructure.
func runBacktest(fe *frontend.Frontend, regime string, numTicks int, seed int64, logger zerolog.Logger) error {
	disp := fe.Dispatcher(0)

	switch regime {
	case "mm", "marketmaking":
		disp.Register(strategy.NewMarketMaking(strategy.DefaultMarketMakingConfig()))
	case "momentum", "mom":
		disp.Register(strategy.NewMomentum(strategy.DefaultMomentumConfig()))
	case "multi":
		disp.Register(strategy.NewMarketMaking(strategy.DefaultMarketMakingConfig()))
		disp.Register(strategy.NewMomentum(strategy.DefaultMomentumConfig()))
	default:
		return fmt.Errorf("matchctl: unknown backtest regime %q", regime)
	}

	rng := rand.New(rand.NewSource(seed))
	book := fe.Engine(0).Book
	price := int64(100)
	nextExternalID := uint64(1)

	for i := 0; i < numTicks; i++ {
		// Simulated external order flow: a handful of random limit
		// orders around the current price, seeding liquidity for the
		// strategies to trade against.
		for j := 0; j < 4; j++ {
			side := core.Buy
			if rng.Intn(2) == 0 {
				side = core.Sell
			}
			offset := int64(rng.Intn(5) + 1)
			externalPrice := price - offset
			if side == core.Sell {
				externalPrice = price + offset
			}
			order := core.Order{
				ID: nextExternalID, ClientID: 9000 + uint64(j), Type: core.Limit,
				Side: side, Price: externalPrice, Quantity: uint64(rng.Intn(80) + 20), TIF: core.GTC,
			}
			nextExternalID++
			fe.Submit(order)
		}

		price += int64(rng.Intn(3) - 1)
		if price < 1 {
			price = 1
		}

		bid, bidOK := book.BestBid()
		ask, askOK := book.BestAsk()
		tick := strategy.MarketTick{Timestamp: uint64(i), LastTradePrice: price, TotalVolume: book.BidQuantity() + book.AskQuantity()}
		if bidOK {
			tick.BidPrice = bid
			tick.BidQuantity = book.QuantityAt(core.Buy, bid)
		}
		if askOK {
			tick.AskPrice = ask
			tick.AskQuantity = book.QuantityAt(core.Sell, ask)
		}
		disp.OnMarketTick(tick)
	}

	for _, m := range disp.AllMetrics() {
		logger.Info().Str("strategy", m.StrategyName).
			Uint64("orders_submitted", m.OrdersSubmitted).
			Uint64("orders_filled", m.OrdersFilled).
			Uint64("orders_rejected", m.OrdersRejected).
			Uint64("total_trades", m.TotalTrades).
			Uint64("total_volume", m.TotalVolume).
			Int64("net_position", m.NetPosition).
			Int64("total_pnl", m.TotalPnL).
			Uint64("signals_generated", m.SignalsGenerated).
			Msg("backtest complete")
	}
	return nil
}
