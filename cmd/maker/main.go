// Command maker runs the quoting engine: it loads the trading config,
// wires estimators, advisers, planners, and order management per site,
// and drives the control loop until shutdown.
//
// Venue connectivity in this binary uses the in-memory paper venue; a
// production deployment swaps real site adapters into buildVenues.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/adviser"
	"main/internal/estimator"
	"main/internal/guard"
	"main/internal/journal"
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

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "Config reload interval (0=disable)")
	statsInterval := flag.Duration("stats-interval", time.Minute, "Metrics snapshot log interval (0=disable)")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disable)")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("missing -config")
	}
	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "maker",
			ServerAddress:   *pyroscopeAddr,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	runtime := ops.NewRuntime(loaded)
	if *configReload > 0 {
		go ops.Watch(ctx, *configPath, *configReload, runtime)
	}

	metrics := obs.NewMetrics()
	mux := venue.NewMux(buildVenues(loaded))
	consensus := buildConsensus(loaded, metrics)
	defer consensus.Close()
	g := guard.New(loaded.Guard)

	reg := registry.New()
	seq := schema.NewSequence()
	quote := adviser.New()
	plan := planner.New(seq, metrics)
	manage := oms.New(loaded.OMS, g, metrics)
	for _, site := range siteNames(loaded) {
		if err := reg.RegisterAdviser(site, quote); err != nil {
			log.Fatalf("register adviser: %v", err)
		}
		if err := reg.RegisterInstructor(site, plan); err != nil {
			log.Fatalf("register instructor: %v", err)
		}
		if err := reg.RegisterOrderManager(site, manage); err != nil {
			log.Fatalf("register order manager: %v", err)
		}
	}

	var writer *journal.Writer
	if loaded.Journal.DSN != "" {
		writer, err = journal.NewWriter(ctx, journal.Config{
			DSN:       loaded.Journal.DSN,
			QueueSize: loaded.Journal.QueueSize,
		}, metrics)
		if err != nil {
			log.Fatalf("journal open failed: %v", err)
		}
		defer writer.Close()
	}

	runner := loop.New(loop.Deps{
		Runtime:   runtime,
		Registry:  reg,
		Consensus: consensus,
		Venue:     mux,
		Guard:     g,
		Metrics:   metrics,
		Journal:   writer,
	})
	go func() {
		<-sys.Shutdown()
		logs.Info("shutdown signal received")
		runner.Close()
	}()
	if *statsInterval > 0 {
		go logStats(ctx, metrics, *statsInterval)
	}

	logs.Infof("maker starting: %d targets, interval %s", len(loaded.Targets), loaded.Interval)
	if err := runner.Run(ctx); err != nil {
		log.Fatalf("trading loop failed: %v", err)
	}
	logs.Info("maker stopped")
}

// buildVenues creates one venue adapter per configured site. Composite legs
// count as sites too so synthetic chains can resolve.
func buildVenues(loaded ops.Loaded) map[string]venue.Context {
	venues := make(map[string]venue.Context)
	for _, site := range siteNames(loaded) {
		venues[site] = paper.New()
	}
	return venues
}

func buildConsensus(loaded ops.Loaded, metrics *obs.Metrics) *estimator.Consensus {
	estimators := []estimator.Estimator{
		estimator.Mid{},
		estimator.Last{},
		estimator.VWAP{Window: loaded.Estimators.VWAPWindow},
		estimator.Regression{Window: loaded.Estimators.RegressionWindow},
	}

	// Composites fold their legs back through the consensus itself, so the
	// estimate function closes over the pointer assigned below.
	var consensus *estimator.Consensus
	fold := func(ctx context.Context, vc venue.Context, req schema.Request) schema.Estimation {
		return consensus.Estimate(ctx, vc, req)
	}
	for id, tokens := range loaded.Composites {
		legs, ok := estimator.ParseLegs(tokens)
		if !ok {
			log.Fatalf("composite %s: malformed legs %v", id, tokens)
		}
		estimators = append(estimators, estimator.NewComposite(id, legs, fold))
	}

	consensus = estimator.NewConsensus(metrics, estimators...)
	return consensus
}

func siteNames(loaded ops.Loaded) []string {
	seen := make(map[string]bool)
	var sites []string
	add := func(site string) {
		if site == "" || seen[site] {
			return
		}
		seen[site] = true
		sites = append(sites, site)
	}
	for _, target := range loaded.Targets {
		add(target.Site)
	}
	for _, tokens := range loaded.Composites {
		if legs, ok := estimator.ParseLegs(tokens); ok {
			for _, leg := range legs {
				add(leg.Site)
			}
		}
	}
	return sites
}

func logStats(ctx context.Context, metrics *obs.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := metrics.Snapshot()
			logs.Infof("stats: passes=%d failures=%d estimator_runs=%d faults=%d creates=%d cancels=%d netted=%d denials=%d reconcile_ok=%d reconcile_failed=%d pass_avg=%s",
				s.Passes, s.PassFailures, s.EstimatorRuns, s.EstimatorFaults,
				s.CreatesPlanned, s.CancelsPlanned, s.NettedPairs, s.GuardDenials,
				s.ReconcileOK, s.ReconcileFailed, s.PassLatency.Avg)
		}
	}
}

type emptyLogger struct{}

func (emptyLogger) Infof(string, ...any)  {}
func (emptyLogger) Debugf(string, ...any) {}
func (emptyLogger) Errorf(string, ...any) {}
