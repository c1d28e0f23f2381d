package obs

import (
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.IncPass()
	m.IncPass()
	m.IncPassFailure()
	m.IncEstimatorRun()
	m.IncEstimatorFault()
	m.IncDiscarded()
	m.AddPlanned(3, 2, 1)
	m.IncSubmission()
	m.IncSubmissionFailure()
	m.IncGuardDenial()
	m.IncReconcile(true)
	m.IncReconcile(false)
	m.IncJournalDrop()

	s := m.Snapshot()
	if s.Passes != 2 || s.PassFailures != 1 {
		t.Fatalf("pass counters mismatch: %+v", s)
	}
	if s.EstimatorRuns != 1 || s.EstimatorFaults != 1 || s.Discarded != 1 {
		t.Fatalf("estimator counters mismatch: %+v", s)
	}
	if s.CreatesPlanned != 3 || s.CancelsPlanned != 2 || s.NettedPairs != 1 {
		t.Fatalf("planner counters mismatch: %+v", s)
	}
	if s.Submissions != 1 || s.SubmissionFailures != 1 || s.GuardDenials != 1 {
		t.Fatalf("submission counters mismatch: %+v", s)
	}
	if s.ReconcileOK != 1 || s.ReconcileFailed != 1 {
		t.Fatalf("reconcile counters mismatch: %+v", s)
	}
	if s.JournalDrops != 1 {
		t.Fatalf("journal counter mismatch: %+v", s)
	}
}

func TestLatencyStats(t *testing.T) {
	m := NewMetrics()
	m.ObservePass(10 * time.Millisecond)
	m.ObservePass(30 * time.Millisecond)
	m.ObservePass(20 * time.Millisecond)

	s := m.Snapshot().PassLatency
	if s.Count != 3 {
		t.Fatalf("count mismatch: %+v", s)
	}
	if s.Min != 10*time.Millisecond || s.Max != 30*time.Millisecond || s.Avg != 20*time.Millisecond {
		t.Fatalf("latency mismatch: %+v", s)
	}

	if empty := NewMetrics().Snapshot().EstimateLatency; empty.Count != 0 || empty.Avg != 0 {
		t.Fatalf("empty latency should be zero: %+v", empty)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncPass()
	m.IncPassFailure()
	m.IncEstimatorRun()
	m.IncEstimatorFault()
	m.IncDiscarded()
	m.AddPlanned(1, 1, 1)
	m.IncSubmission()
	m.IncSubmissionFailure()
	m.IncGuardDenial()
	m.IncReconcile(true)
	m.IncJournalDrop()
	m.ObservePass(time.Second)
	m.ObserveEstimate(time.Second)
	m.ObserveReconcile(time.Second)

	if s := m.Snapshot(); s != (Snapshot{}) {
		t.Fatalf("nil metrics snapshot should be zero: %+v", s)
	}
}
