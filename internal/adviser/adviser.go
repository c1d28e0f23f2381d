/*
Adviser turns a consensus estimation plus live market state into bid/ask
limit prices and sizes.

The two sides fail independently: missing market data on one side nulls
that side only. A limit buy is never priced at or above the best ask, and a
limit sell never at or below the best bid (cross-protection); a crossed
quote would execute immediately as a taker order.
*/
package adviser

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/schema"
	"main/internal/venue"
)

// epsilon nudges an on-tick venue price off its tick so that directional
// rounding lands exactly one tick away. It only has to be smaller than any
// realistic tick size.
var epsilon = decimal.New(1, -10)

var one = decimal.NewFromInt(1)

// Adviser is the template quote adviser.
type Adviser struct{}

// New creates the template adviser.
func New() *Adviser {
	return &Adviser{}
}

// Advise computes the advice for one tick. An invalid request or estimation
// yields an all-nil advice.
func (a *Adviser) Advise(ctx context.Context, vc venue.Context, req schema.Request, estimation schema.Estimation) schema.Advice {
	if !req.Valid() || !estimation.Valid() {
		return schema.Advice{}
	}

	key := req.Key()
	mid := vc.MidPrice(ctx, key)
	if mid == nil {
		logs.Debugf("adviser %s.%s: no mid price", req.Site, req.Instrument)
		return schema.Advice{}
	}

	// Confidence-weighted blend of the live mid and the estimate.
	confidence := *estimation.Confidence
	weighted := mid.Mul(one.Sub(confidence)).Add(estimation.Price.Mul(confidence))

	var advice schema.Advice
	a.adviseBuy(ctx, vc, req, key, weighted, &advice)
	a.adviseSell(ctx, vc, req, key, weighted, &advice)
	return advice
}

func (a *Adviser) adviseBuy(ctx context.Context, vc venue.Context, req schema.Request, key schema.Key, weighted decimal.Decimal, advice *schema.Advice) {
	raw := weighted.Mul(one.Sub(*req.TradingSpread))
	price := vc.RoundTickSize(ctx, key, raw, venue.RoundDown)
	if price == nil {
		return
	}

	bestAsk := vc.BestAskPrice(ctx, key)
	if bestAsk == nil {
		return
	}
	if price.GreaterThanOrEqual(*bestAsk) {
		price = vc.RoundTickSize(ctx, key, bestAsk.Sub(epsilon), venue.RoundDown)
		if price == nil {
			return
		}
		logs.Debugf("adviser %s.%s: buy clamped below ask %s", req.Site, req.Instrument, bestAsk)
	}
	advice.BuyLimitPrice = price

	size := decimal.Zero
	funding := vc.FundingPosition(ctx, key)
	if funding != nil && price.IsPositive() {
		effective := *funding
		if req.FundingOffset != nil {
			effective = effective.Mul(one.Add(*req.FundingOffset))
		}
		raw := effective.Div(*price).Mul(*req.TradingExposure)
		if rounded := vc.RoundLotSize(ctx, key, raw, venue.RoundDown); rounded != nil && rounded.IsPositive() {
			size = *rounded
		}
	}
	advice.BuyLimitSize = &size
}

func (a *Adviser) adviseSell(ctx context.Context, vc venue.Context, req schema.Request, key schema.Key, weighted decimal.Decimal, advice *schema.Advice) {
	raw := weighted.Mul(one.Add(*req.TradingSpread))
	price := vc.RoundTickSize(ctx, key, raw, venue.RoundUp)
	if price == nil {
		return
	}

	bestBid := vc.BestBidPrice(ctx, key)
	if bestBid == nil {
		return
	}
	if price.LessThanOrEqual(*bestBid) {
		price = vc.RoundTickSize(ctx, key, bestBid.Add(epsilon), venue.RoundUp)
		if price == nil {
			return
		}
		logs.Debugf("adviser %s.%s: sell clamped above bid %s", req.Site, req.Instrument, bestBid)
	}
	advice.SellLimitPrice = price

	size := decimal.Zero
	position := vc.InstrumentPosition(ctx, key)
	if position != nil {
		raw := position.Mul(*req.TradingExposure)
		if rounded := vc.RoundLotSize(ctx, key, raw, venue.RoundDown); rounded != nil && rounded.IsPositive() {
			size = *rounded
		}
	}
	advice.SellLimitSize = &size
}
