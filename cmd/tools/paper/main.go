// Command paper drives the full quoting pipeline against a simulated
// venue: a random-walk market feeds the book while the control loop
// estimates, quotes, and manages resting orders. Useful for eyeballing
// ladder placement and netting behavior without any connectivity.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/adviser"
	"main/internal/estimator"
	"main/internal/guard"
	"main/internal/loop"
	"main/internal/obs"
	"main/internal/oms"
	"main/internal/ops"
	"main/internal/planner"
	"main/internal/registry"
	"main/internal/schema"
	"main/internal/venue"
	"main/internal/venue/paper"
)

const (
	site       = "paper"
	instrument = "BTCUSDT"
)

func main() {
	duration := flag.Duration("duration", 30*time.Second, "How long to run the simulation")
	interval := flag.Duration("interval", 500*time.Millisecond, "Quoting pass interval")
	basePrice := flag.Float64("base-price", 50000, "Starting mid price")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random walk seed")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v := paper.New()
	rng := rand.New(rand.NewSource(*seed))
	seedBook(v, *basePrice, time.Now())

	loaded, err := demoConfig(*interval)
	if err != nil {
		log.Fatalf("demo config: %v", err)
	}
	runtime := ops.NewRuntime(loaded)

	metrics := obs.NewMetrics()
	mux := venue.NewMux(map[string]venue.Context{site: v})
	consensus := estimator.NewConsensus(metrics,
		estimator.Mid{},
		estimator.Last{},
		estimator.VWAP{Window: time.Minute},
		estimator.Regression{Window: time.Minute},
	)
	defer consensus.Close()
	g := guard.New(loaded.Guard)

	reg := registry.New()
	if err := reg.RegisterAdviser(site, adviser.New()); err != nil {
		log.Fatalf("register adviser: %v", err)
	}
	if err := reg.RegisterInstructor(site, planner.New(schema.NewSequence(), metrics)); err != nil {
		log.Fatalf("register instructor: %v", err)
	}
	if err := reg.RegisterOrderManager(site, oms.New(loaded.OMS, g, metrics)); err != nil {
		log.Fatalf("register order manager: %v", err)
	}

	runner := loop.New(loop.Deps{
		Runtime:   runtime,
		Registry:  reg,
		Consensus: consensus,
		Venue:     mux,
		Guard:     g,
		Metrics:   metrics,
	})

	go walkMarket(ctx, v, rng, *basePrice)
	go func() {
		select {
		case <-time.After(*duration):
		case <-sys.Shutdown():
		}
		runner.Close()
	}()

	logs.Infof("paper run: %s at %s interval", *duration, *interval)
	if err := runner.Run(ctx); err != nil {
		log.Fatalf("paper run failed: %v", err)
	}
	report(ctx, v, metrics)
}

// demoConfig builds an in-code configuration equivalent to a one-target
// config file.
func demoConfig(interval time.Duration) (ops.Loaded, error) {
	active := true
	return ops.Resolve(ops.FileConfig{
		Trading: ops.TradingConfig{
			Interval: interval,
			Defaults: ops.TargetParams{
				Spread:         dec("0.002"),
				Exposure:       dec("0.25"),
				Aggressiveness: dec("0.0005"),
				Split:          3,
				Active:         &active,
				Estimators:     map[string]*decimal.Decimal{estimator.Wildcard: nil},
			},
			Targets: []ops.TargetConfig{{Site: site, Instrument: instrument}},
		},
		Guard: guard.Config{
			MaxOrderSize:     decimal.NewFromInt(10),
			MaxOrderNotional: decimal.NewFromInt(1_000_000),
			MaxOpenOrders:    20,
		},
		OMS: oms.Config{PollInterval: 10 * time.Millisecond, Timeout: time.Second},
	})
}

func seedBook(v *paper.Venue, base float64, now time.Time) {
	mid := decimal.NewFromFloat(base)
	half := decimal.NewFromFloat(0.5)
	ask := mid.Add(half)
	bid := mid.Sub(half)
	position := decimal.NewFromFloat(2)
	funding := decimal.NewFromInt(200_000)
	v.SetBook(instrument, paper.Book{
		BestAsk:            &ask,
		BestBid:            &bid,
		Mid:                &mid,
		Last:               &mid,
		InstrumentPosition: &position,
		FundingPosition:    &funding,
		TickSize:           decimal.NewFromFloat(0.1),
		LotSize:            decimal.NewFromFloat(0.001),
		Trades: []schema.Trade{{
			Instrument: instrument,
			Timestamp:  now,
			Price:      mid,
			Size:       decimal.NewFromFloat(0.1),
		}},
	})
}

// walkMarket drifts the mid price in a bounded random walk, printing
// trades onto the tape so vwap and regression have something to chew on.
func walkMarket(ctx context.Context, v *paper.Venue, rng *rand.Rand, base float64) {
	price := base
	var trades []schema.Trade
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			price += (rng.Float64() - 0.5) * base * 0.0004
			mid := decimal.NewFromFloat(price)
			half := decimal.NewFromFloat(0.5)
			ask := mid.Add(half)
			bid := mid.Sub(half)
			size := decimal.NewFromFloat(0.01 + rng.Float64()*0.2)
			trades = append(trades, schema.Trade{
				Instrument: instrument,
				Timestamp:  now,
				Price:      mid,
				Size:       size,
			})
			if len(trades) > 600 {
				trades = trades[len(trades)-600:]
			}
			position := decimal.NewFromFloat(2)
			funding := decimal.NewFromInt(200_000)
			v.SetBook(instrument, paper.Book{
				BestAsk:            &ask,
				BestBid:            &bid,
				Mid:                &mid,
				Last:               &mid,
				InstrumentPosition: &position,
				FundingPosition:    &funding,
				TickSize:           decimal.NewFromFloat(0.1),
				LotSize:            decimal.NewFromFloat(0.001),
				Trades:             append([]schema.Trade(nil), trades...),
			})
		}
	}
}

func report(ctx context.Context, v *paper.Venue, metrics *obs.Metrics) {
	s := metrics.Snapshot()
	logs.Infof("passes=%d creates=%d cancels=%d netted=%d denials=%d reconcile_ok=%d reconcile_failed=%d pass_avg=%s",
		s.Passes, s.CreatesPlanned, s.CancelsPlanned, s.NettedPairs,
		s.GuardDenials, s.ReconcileOK, s.ReconcileFailed, s.PassLatency.Avg)

	orders := v.ListActiveOrders(ctx, schema.Key{Site: site, Instrument: instrument, Timestamp: time.Now()})
	for _, order := range orders {
		side := "buy"
		if order.RemainingQty != nil && order.RemainingQty.IsNegative() {
			side = "sell"
		}
		logs.Infof("resting %s %s: %s @ %s", side, order.ID, order.RemainingQty, order.Price)
	}
}

func dec(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}
