/*
Planner converts advice into concrete create/cancel instructions and nets
them against the orders already resting at the venue.

Netting is the key efficiency property: a resting order that exactly
matches a desired new order (same signed price and size) satisfies it
already, so the cancel/create pair is dropped. Under unchanged advice the
planner therefore emits nothing after the first tick.
*/
package planner

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/obs"
	"main/internal/schema"
	"main/internal/venue"
)

var one = decimal.NewFromInt(1)

// Planner is the template instruction planner.
type Planner struct {
	seq     *schema.Sequence
	metrics *obs.Metrics
}

// New creates a planner drawing uids from the given sequence. Metrics may
// be nil.
func New(seq *schema.Sequence, metrics *obs.Metrics) *Planner {
	return &Planner{seq: seq, metrics: metrics}
}

type cancelCandidate struct {
	instruction schema.CancelInstruction
	order       schema.Order
	netted      bool
}

// Instruct plans the tick's instructions. Callers must not rely on the
// ordering of the returned slice.
func (p *Planner) Instruct(ctx context.Context, vc venue.Context, req schema.Request, advice schema.Advice) []schema.Instruction {
	if !req.Valid() {
		return nil
	}

	key := req.Key()

	var cancels []cancelCandidate
	for _, order := range vc.ListActiveOrders(ctx, key) {
		if order.ID == "" {
			continue
		}
		cancels = append(cancels, cancelCandidate{
			instruction: schema.CancelInstruction{Uid: p.seq.Next(), OrderID: order.ID},
			order:       order,
		})
	}

	creates := p.ladder(ctx, vc, req, key, advice.BuyLimitPrice, advice.BuyLimitSize, false)
	creates = append(creates, p.ladder(ctx, vc, req, key, advice.SellLimitPrice, advice.SellLimitSize, true)...)

	// Greedy single-pass netting, first match wins.
	netted := 0
	remaining := creates[:0]
	for _, create := range creates {
		matched := false
		for i := range cancels {
			if cancels[i].netted {
				continue
			}
			if nets(create, cancels[i].order) {
				cancels[i].netted = true
				matched = true
				netted++
				break
			}
		}
		if !matched {
			remaining = append(remaining, create)
		}
	}

	out := make([]schema.Instruction, 0, len(cancels)+len(remaining))
	for _, c := range cancels {
		if !c.netted {
			out = append(out, c.instruction)
		}
	}
	for _, c := range remaining {
		out = append(out, c)
	}
	if netted > 0 {
		logs.Debugf("planner %s.%s: netted %d cancel/create pairs", req.Site, req.Instrument, netted)
	}
	p.metrics.AddPlanned(len(remaining), len(out)-len(remaining), netted)
	return out
}

// nets reports whether a resting order exactly satisfies a desired create:
// identical price and identical signed remaining size.
func nets(create schema.CreateInstruction, order schema.Order) bool {
	if order.Price == nil || order.RemainingQty == nil {
		return false
	}
	return create.Price.Equal(*order.Price) && create.Size.Equal(*order.RemainingQty)
}

// ladder expands one side of the advice into TradingSplit create
// instructions at incrementally widening prices. Rung i is priced at
// base*(1 -/+ i*aggressiveness) re-rounded away from the market, each rung
// carrying an equal lot-rounded share of the total size.
func (p *Planner) ladder(ctx context.Context, vc venue.Context, req schema.Request, key schema.Key, price, size *decimal.Decimal, sell bool) []schema.CreateInstruction {
	if price == nil || size == nil {
		return nil
	}
	if !price.IsPositive() || !size.IsPositive() {
		return nil
	}

	split := req.TradingSplit
	if split < 1 {
		split = 1
	}
	aggressiveness := decimal.Zero
	if req.TradingAggressiveness != nil {
		aggressiveness = *req.TradingAggressiveness
	}

	share := size.Div(decimal.NewFromInt(int64(split)))
	rungSize := vc.RoundLotSize(ctx, key, share, venue.RoundDown)
	if rungSize == nil || !rungSize.IsPositive() {
		return nil
	}

	mode := venue.RoundDown
	if sell {
		mode = venue.RoundUp
	}

	out := make([]schema.CreateInstruction, 0, split)
	for i := 0; i < split; i++ {
		widening := aggressiveness.Mul(decimal.NewFromInt(int64(i)))
		factor := one.Sub(widening)
		if sell {
			factor = one.Add(widening)
		}
		rungPrice := vc.RoundTickSize(ctx, key, price.Mul(factor), mode)
		if rungPrice == nil || !rungPrice.IsPositive() {
			continue
		}
		signed := *rungSize
		if sell {
			signed = signed.Neg()
		}
		out = append(out, schema.CreateInstruction{
			Uid:   p.seq.Next(),
			Price: *rungPrice,
			Size:  signed,
		})
	}
	return out
}
