/*
Estimator produces a single (price, confidence) opinion per request by
fanning every enabled pricing strategy out on a shared bounded worker pool
and folding the valid results into a confidence-weighted consensus.

The pool is the pipeline's only point of internal parallelism; it exists to
bound wall-clock latency when several strategies each make blocking venue
calls, not to raise throughput.
*/
package estimator

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/obs"
	"main/internal/schema"
	"main/internal/venue"
)

// Wildcard enables every registered estimator when present in the request's
// estimator set.
const Wildcard = "*"

// Estimator is one pricing strategy.
type Estimator interface {
	ID() string
	Estimate(ctx context.Context, vc venue.Context, req schema.Request) schema.Estimation
}

// Consensus runs registered estimators concurrently and aggregates their
// output. The estimator list and the worker pool are fixed at construction;
// pool size equals the number of registered estimators.
type Consensus struct {
	estimators []Estimator
	tasks      chan func()
	metrics    *obs.Metrics
	closeOnce  sync.Once
}

// NewConsensus builds the aggregator and starts its worker pool.
func NewConsensus(metrics *obs.Metrics, estimators ...Estimator) *Consensus {
	c := &Consensus{
		estimators: estimators,
		tasks:      make(chan func(), len(estimators)),
		metrics:    metrics,
	}
	for range estimators {
		go c.work()
	}
	return c
}

func (c *Consensus) work() {
	for fn := range c.tasks {
		fn()
	}
}

// Close stops the worker pool. Safe to call more than once; Estimate must
// not be called after Close.
func (c *Consensus) Close() {
	c.closeOnce.Do(func() { close(c.tasks) })
}

type strategyResult struct {
	id         string
	estimation schema.Estimation
	multiplier decimal.Decimal
}

// Estimate fans the enabled estimators out, awaits them all, and folds the
// valid results. One failing strategy never aborts the rest; a panicking
// task is logged and excluded.
func (c *Consensus) Estimate(ctx context.Context, vc venue.Context, req schema.Request) schema.Estimation {
	if !req.Valid() {
		return schema.Bail()
	}
	if pooled(ctx) {
		return c.estimateInline(ctx, vc, req)
	}

	results := make(chan strategyResult, len(c.estimators))
	var wg sync.WaitGroup
	scheduled := 0
	for _, e := range c.estimators {
		multiplier, enabled := multiplierFor(req.Estimators, e.ID())
		if !enabled {
			continue
		}
		scheduled++
		wg.Add(1)
		c.metrics.IncEstimatorRun()
		e := e
		c.tasks <- func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					c.metrics.IncEstimatorFault()
					logs.Errorf("estimator %s panicked: %v", e.ID(), r)
				}
			}()
			results <- strategyResult{
				id:         e.ID(),
				estimation: e.Estimate(markPooled(ctx), vc, req),
				multiplier: multiplier,
			}
		}
	}
	if scheduled == 0 {
		return schema.Bail()
	}
	wg.Wait()
	close(results)

	return aggregate(c.metrics, results)
}

// estimateInline runs the enabled estimators sequentially on the caller's
// goroutine. Estimate calls issued from inside a pool worker (composites
// fold their legs back through the consensus) must not queue on the shared
// task channel: every worker parked awaiting its own nested fan-out would
// starve the pool and Estimate would never return.
func (c *Consensus) estimateInline(ctx context.Context, vc venue.Context, req schema.Request) schema.Estimation {
	results := make(chan strategyResult, len(c.estimators))
	scheduled := 0
	for _, e := range c.estimators {
		multiplier, enabled := multiplierFor(req.Estimators, e.ID())
		if !enabled {
			continue
		}
		scheduled++
		c.metrics.IncEstimatorRun()
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.metrics.IncEstimatorFault()
					logs.Errorf("estimator %s panicked: %v", e.ID(), r)
				}
			}()
			results <- strategyResult{
				id:         e.ID(),
				estimation: e.Estimate(ctx, vc, req),
				multiplier: multiplier,
			}
		}()
	}
	if scheduled == 0 {
		return schema.Bail()
	}
	close(results)

	return aggregate(c.metrics, results)
}

type pooledKey struct{}

func pooled(ctx context.Context) bool {
	v, _ := ctx.Value(pooledKey{}).(bool)
	return v
}

func markPooled(ctx context.Context) context.Context {
	if pooled(ctx) {
		return ctx
	}
	return context.WithValue(ctx, pooledKey{}, true)
}

func aggregate(metrics *obs.Metrics, results <-chan strategyResult) schema.Estimation {
	one := decimal.NewFromInt(1)
	sumWeighted := decimal.Zero
	sumConfidence := decimal.Zero
	count := 0
	for r := range results {
		if !r.estimation.Valid() {
			metrics.IncDiscarded()
			logs.Debugf("estimator %s: no opinion", r.id)
			continue
		}
		confidence := r.estimation.Confidence.Mul(r.multiplier)
		if confidence.IsNegative() {
			confidence = decimal.Zero
		}
		if confidence.GreaterThan(one) {
			confidence = one
		}
		sumWeighted = sumWeighted.Add(r.estimation.Price.Mul(confidence))
		sumConfidence = sumConfidence.Add(confidence)
		count++
	}

	var estimation schema.Estimation
	if count == 0 {
		return estimation
	}
	if !sumConfidence.IsZero() {
		price := sumWeighted.Div(sumConfidence)
		estimation.Price = &price
	}
	confidence := sumConfidence.Div(decimal.NewFromInt(int64(count)))
	estimation.Confidence = &confidence
	return estimation
}

func multiplierFor(enabled map[string]decimal.Decimal, id string) (decimal.Decimal, bool) {
	if m, ok := enabled[id]; ok {
		return m, true
	}
	if m, ok := enabled[Wildcard]; ok {
		return m, true
	}
	return decimal.Decimal{}, false
}
