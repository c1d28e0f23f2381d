package obs

import (
	"math"
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters and latency stats for the trading
// pipeline. All methods are safe on a nil receiver so instrumentation can be
// optional at composition time.
type Metrics struct {
	passes          uint64
	passFailures    uint64
	estimatorRuns   uint64
	estimatorFaults uint64
	discarded       uint64

	createsPlanned uint64
	cancelsPlanned uint64
	nettedPairs    uint64

	submissions        uint64
	submissionFailures uint64
	guardDenials       uint64
	reconcileOK        uint64
	reconcileFailed    uint64

	journalDrops uint64

	passLatency      LatencyStats
	estimateLatency  LatencyStats
	reconcileLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// Observe records one duration sample.
func (s *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	v := uint64(d)
	atomic.AddUint64(&s.count, 1)
	atomic.AddUint64(&s.sum, v)
	for {
		cur := atomic.LoadUint64(&s.min)
		if cur != 0 && cur <= v {
			break
		}
		if atomic.CompareAndSwapUint64(&s.min, cur, v) {
			break
		}
	}
	for {
		cur := atomic.LoadUint64(&s.max)
		if cur >= v {
			break
		}
		if atomic.CompareAndSwapUint64(&s.max, cur, v) {
			break
		}
	}
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

func (s *LatencyStats) snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&s.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&s.sum)
	avg := sum / count
	if avg > math.MaxInt64 {
		avg = math.MaxInt64
	}
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&s.min)),
		Max:   time.Duration(atomic.LoadUint64(&s.max)),
		Avg:   time.Duration(avg),
	}
}

// Snapshot captures the current metric values.
type Snapshot struct {
	Passes          uint64
	PassFailures    uint64
	EstimatorRuns   uint64
	EstimatorFaults uint64
	Discarded       uint64

	CreatesPlanned uint64
	CancelsPlanned uint64
	NettedPairs    uint64

	Submissions        uint64
	SubmissionFailures uint64
	GuardDenials       uint64
	ReconcileOK        uint64
	ReconcileFailed    uint64

	JournalDrops uint64

	PassLatency      LatencySnapshot
	EstimateLatency  LatencySnapshot
	ReconcileLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncPass records one completed control-loop pass.
func (m *Metrics) IncPass() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.passes, 1)
}

// IncPassFailure records a fatal pass-level failure.
func (m *Metrics) IncPassFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.passFailures, 1)
}

// IncEstimatorRun records one scheduled estimator task.
func (m *Metrics) IncEstimatorRun() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.estimatorRuns, 1)
}

// IncEstimatorFault records an estimator task that panicked.
func (m *Metrics) IncEstimatorFault() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.estimatorFaults, 1)
}

// IncDiscarded records an estimation dropped for a nil price or confidence.
func (m *Metrics) IncDiscarded() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.discarded, 1)
}

// AddPlanned records the planner's create/cancel output and netted pairs.
func (m *Metrics) AddPlanned(creates, cancels, netted int) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.createsPlanned, uint64(creates))
	atomic.AddUint64(&m.cancelsPlanned, uint64(cancels))
	atomic.AddUint64(&m.nettedPairs, uint64(netted))
}

// IncSubmission records one instruction handed to the venue.
func (m *Metrics) IncSubmission() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.submissions, 1)
}

// IncSubmissionFailure records a submission the venue did not accept.
func (m *Metrics) IncSubmissionFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.submissionFailures, 1)
}

// IncGuardDenial records an instruction denied by the guard.
func (m *Metrics) IncGuardDenial() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.guardDenials, 1)
}

// IncReconcile records one reconcile outcome.
func (m *Metrics) IncReconcile(ok bool) {
	if m == nil {
		return
	}
	if ok {
		atomic.AddUint64(&m.reconcileOK, 1)
		return
	}
	atomic.AddUint64(&m.reconcileFailed, 1)
}

// IncJournalDrop records a journal record dropped on queue overflow.
func (m *Metrics) IncJournalDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.journalDrops, 1)
}

// ObservePass records the duration of one full pass.
func (m *Metrics) ObservePass(d time.Duration) {
	if m == nil {
		return
	}
	m.passLatency.Observe(d)
}

// ObserveEstimate records one consensus estimation duration.
func (m *Metrics) ObserveEstimate(d time.Duration) {
	if m == nil {
		return
	}
	m.estimateLatency.Observe(d)
}

// ObserveReconcile records one reconcile duration.
func (m *Metrics) ObserveReconcile(d time.Duration) {
	if m == nil {
		return
	}
	m.reconcileLatency.Observe(d)
}

// Snapshot returns the current values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Passes:             atomic.LoadUint64(&m.passes),
		PassFailures:       atomic.LoadUint64(&m.passFailures),
		EstimatorRuns:      atomic.LoadUint64(&m.estimatorRuns),
		EstimatorFaults:    atomic.LoadUint64(&m.estimatorFaults),
		Discarded:          atomic.LoadUint64(&m.discarded),
		CreatesPlanned:     atomic.LoadUint64(&m.createsPlanned),
		CancelsPlanned:     atomic.LoadUint64(&m.cancelsPlanned),
		NettedPairs:        atomic.LoadUint64(&m.nettedPairs),
		Submissions:        atomic.LoadUint64(&m.submissions),
		SubmissionFailures: atomic.LoadUint64(&m.submissionFailures),
		GuardDenials:       atomic.LoadUint64(&m.guardDenials),
		ReconcileOK:        atomic.LoadUint64(&m.reconcileOK),
		ReconcileFailed:    atomic.LoadUint64(&m.reconcileFailed),
		JournalDrops:       atomic.LoadUint64(&m.journalDrops),
		PassLatency:        m.passLatency.snapshot(),
		EstimateLatency:    m.estimateLatency.snapshot(),
		ReconcileLatency:   m.reconcileLatency.snapshot(),
	}
}
