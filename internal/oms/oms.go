/*
OMS submits planned instructions to the venue and reconciles the outcome by
bounded polling.

Submission is independent per instruction: one venue failure never blocks
the rest, and a failed submission is reported as an absent id rather than
an error. Reconciliation pairs every submission with a boolean outcome so
no instruction is ever left without a recorded result.
*/
package oms

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/guard"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/venue"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultTimeout      = 10 * time.Second
)

// Config bounds the reconciliation poll.
type Config struct {
	PollInterval time.Duration `json:"pollInterval"`
	Timeout      time.Duration `json:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Manager is the template order lifecycle manager.
type Manager struct {
	cfg     Config
	guard   *guard.Guard
	metrics *obs.Metrics
}

// New creates the manager. Guard and metrics may be nil.
func New(cfg Config, g *guard.Guard, metrics *obs.Metrics) *Manager {
	return &Manager{cfg: cfg.withDefaults(), guard: g, metrics: metrics}
}

// Manage submits each instruction to the venue. When trading is inactive
// (dry-run) it returns immediately without touching the venue, every
// instruction mapped to an absent id.
func (m *Manager) Manage(ctx context.Context, vc venue.Context, req schema.Request, instructions []schema.Instruction) map[schema.Instruction]*string {
	out := make(map[schema.Instruction]*string, len(instructions))
	if !req.Valid() {
		return out
	}
	if !req.TradingActive {
		for _, instruction := range instructions {
			out[instruction] = nil
		}
		if len(instructions) > 0 {
			logs.Infof("oms %s.%s: dry-run, skipped %d instructions", req.Site, req.Instrument, len(instructions))
		}
		return out
	}

	key := req.Key()
	open := len(vc.ListActiveOrders(ctx, key))
	for _, instruction := range instructions {
		switch v := instruction.(type) {
		case schema.CreateInstruction:
			if decision := m.guard.Evaluate(v.Price, v.Size, open); !decision.Allow {
				m.metrics.IncGuardDenial()
				logs.Warnf("oms %s.%s: create uid=%d denied by guard: %s", req.Site, req.Instrument, v.Uid, decision.Reason)
				out[instruction] = nil
				continue
			}
			m.metrics.IncSubmission()
			id := vc.CreateOrder(ctx, key, v)
			if id == nil {
				m.metrics.IncSubmissionFailure()
				logs.Warnf("oms %s.%s: create uid=%d not accepted", req.Site, req.Instrument, v.Uid)
			} else {
				open++
				logs.Debugf("oms %s.%s: create uid=%d price=%s size=%s id=%s", req.Site, req.Instrument, v.Uid, v.Price, v.Size, *id)
			}
			out[instruction] = id
		case schema.CancelInstruction:
			m.metrics.IncSubmission()
			id := vc.CancelOrder(ctx, key, v)
			if id == nil {
				m.metrics.IncSubmissionFailure()
				logs.Warnf("oms %s.%s: cancel uid=%d order=%s not accepted", req.Site, req.Instrument, v.Uid, v.OrderID)
			}
			out[instruction] = id
		}
	}
	return out
}

// Reconcile polls the venue until every submission is confirmed or the
// bound elapses. A nil submission id reconciles to false immediately:
// there is nothing to poll, which also covers dry-run passes. Context
// cancellation is a failure, not an error.
func (m *Manager) Reconcile(ctx context.Context, vc venue.Context, req schema.Request, submissions map[schema.Instruction]*string) map[schema.Instruction]bool {
	out := make(map[schema.Instruction]bool, len(submissions))
	if !req.Valid() {
		return out
	}

	key := req.Key()
	for instruction, id := range submissions {
		begin := time.Now()
		var ok bool
		switch v := instruction.(type) {
		case schema.CreateInstruction:
			if id == nil {
				ok = false
				break
			}
			ok = m.awaitCreated(ctx, vc, key, *id)
		case schema.CancelInstruction:
			if id == nil {
				ok = false
				break
			}
			ok = m.awaitCancelled(ctx, vc, key, v.OrderID)
		}
		m.metrics.IncReconcile(ok)
		m.metrics.ObserveReconcile(time.Since(begin))
		if !ok {
			logs.Warnf("oms %s.%s: uid=%d not reconciled", req.Site, req.Instrument, instruction.UID())
		}
		out[instruction] = ok
	}
	return out
}

// awaitCreated succeeds once the venue reports the order.
func (m *Manager) awaitCreated(ctx context.Context, vc venue.Context, key schema.Key, id string) bool {
	return m.poll(ctx, func() bool {
		return vc.FindOrder(ctx, key, id) != nil
	})
}

// awaitCancelled succeeds once the order is absent or inactive.
func (m *Manager) awaitCancelled(ctx context.Context, vc venue.Context, key schema.Key, id string) bool {
	return m.poll(ctx, func() bool {
		order := vc.FindOrder(ctx, key, id)
		return order == nil || !order.Active
	})
}

func (m *Manager) poll(ctx context.Context, done func() bool) bool {
	deadline := time.Now().Add(m.cfg.Timeout)
	for {
		if done() {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(m.cfg.PollInterval):
		}
	}
}
