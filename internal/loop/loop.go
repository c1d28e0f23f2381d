/*
Loop is the scheduler driving the trading pipeline.

One goroutine iterates the configured (site, instrument) targets every
interval, running Estimate, Advise, Instruct, Manage, and Reconcile
strictly in sequence. Concurrency lives only inside the consensus
estimator's fan-out; targets never run in parallel, keeping per-cycle
order submission serialized and auditable.

A panic anywhere in a pass terminates the loop with an error rather than
skipping the target: a corrupted cycle is treated as untrustworthy enough
to halt on. This fail-fast contract is deliberate.
*/
package loop

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/estimator"
	"main/internal/guard"
	"main/internal/journal"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/registry"
	"main/internal/schema"
	"main/internal/venue"
)

// Runner is the trading control loop.
type Runner struct {
	runtime   *ops.Runtime
	registry  *registry.Registry
	consensus *estimator.Consensus
	vc        venue.Context
	guard     *guard.Guard
	metrics   *obs.Metrics
	journal   *journal.Writer
	now       func() time.Time

	trigger chan struct{}
	closed  chan struct{}
	once    sync.Once
}

// Deps are the collaborators the loop drives. Guard, Metrics, and Journal
// may be nil.
type Deps struct {
	Runtime   *ops.Runtime
	Registry  *registry.Registry
	Consensus *estimator.Consensus
	Venue     venue.Context
	Guard     *guard.Guard
	Metrics   *obs.Metrics
	Journal   *journal.Writer
	Now       func() time.Time
}

// New creates a loop in the Running state; Run starts ticking.
func New(deps Deps) *Runner {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		runtime:   deps.Runtime,
		registry:  deps.Registry,
		consensus: deps.Consensus,
		vc:        deps.Venue,
		guard:     deps.Guard,
		metrics:   deps.Metrics,
		journal:   deps.Journal,
		now:       now,
		trigger:   make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}
}

// Trigger cuts the current inter-pass wait short. It never blocks and is a
// no-op once the loop is closed.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Close moves the loop to its terminal state. Idempotent.
func (r *Runner) Close() {
	r.once.Do(func() { close(r.closed) })
}

// Run executes passes until Close, context cancellation, or a pass-level
// failure. A pass failure is returned after logging; the loop never
// continues past one.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-r.closed:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		interval, err := r.pass(ctx)
		if err != nil {
			r.metrics.IncPassFailure()
			logs.Errorf("loop: pass failed, halting: %v", err)
			return err
		}

		select {
		case <-r.closed:
			return nil
		case <-ctx.Done():
			return nil
		case <-r.trigger:
		case <-time.After(interval):
		}
	}
}

// pass re-reads the configuration and runs the pipeline once per target,
// sequentially in configured order.
func (r *Runner) pass(ctx context.Context) (interval time.Duration, err error) {
	begin := r.now()
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("pass panicked: %+v", rec)
		}
	}()

	cfg := r.runtime.Load()
	interval = cfg.Interval
	if r.guard != nil {
		r.guard.Update(cfg.Guard)
	}

	for _, target := range cfg.Targets {
		r.tick(ctx, cfg, target)
	}

	r.metrics.IncPass()
	r.metrics.ObservePass(time.Since(begin))
	return interval, nil
}

func (r *Runner) tick(ctx context.Context, cfg ops.Loaded, target ops.Target) {
	req := target.Request(r.now(), cfg.Interval)
	if !req.Valid() {
		logs.Debugf("loop: skipping invalid target %s.%s", target.Site, target.Instrument)
		return
	}

	estimateBegin := time.Now()
	estimation := r.consensus.Estimate(ctx, r.vc, req)
	r.metrics.ObserveEstimate(time.Since(estimateBegin))

	advice := r.registry.Advise(ctx, r.vc, req, estimation)
	instructions := r.registry.Instruct(ctx, r.vc, req, advice)
	submissions := r.registry.Manage(ctx, r.vc, req, instructions)
	results := r.registry.Reconcile(ctx, r.vc, req, submissions)

	r.journal.Record(record(req, estimation, advice, instructions, results))
}

func record(req schema.Request, estimation schema.Estimation, advice schema.Advice, instructions []schema.Instruction, results map[schema.Instruction]bool) journal.Record {
	creates, cancels := 0, 0
	for _, instruction := range instructions {
		switch instruction.(type) {
		case schema.CreateInstruction:
			creates++
		case schema.CancelInstruction:
			cancels++
		}
	}
	ok, failed := 0, 0
	for _, success := range results {
		if success {
			ok++
		} else {
			failed++
		}
	}
	return journal.Record{
		Site:                 req.Site,
		Instrument:           req.Instrument,
		TickAt:               req.CurrentTime,
		EstimationPrice:      journal.Dec(estimation.Price),
		EstimationConfidence: journal.Dec(estimation.Confidence),
		BuyLimitPrice:        journal.Dec(advice.BuyLimitPrice),
		BuyLimitSize:         journal.Dec(advice.BuyLimitSize),
		SellLimitPrice:       journal.Dec(advice.SellLimitPrice),
		SellLimitSize:        journal.Dec(advice.SellLimitSize),
		Creates:              creates,
		Cancels:              cancels,
		ReconcileOK:          ok,
		ReconcileFailed:      failed,
	}
}
