package estimator

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
	"main/internal/venue"
)

// Mid quotes the venue mid price with a flat 0.5 confidence: it is always
// available but carries no directional information.
type Mid struct{}

func (Mid) ID() string { return "mid" }

func (Mid) Estimate(ctx context.Context, vc venue.Context, req schema.Request) schema.Estimation {
	price := vc.MidPrice(ctx, req.Key())
	if price == nil {
		return schema.Bail()
	}
	confidence := decimal.NewFromFloat(0.5)
	return schema.Estimation{Price: price, Confidence: &confidence}
}

// Last quotes the venue last trade price at full confidence.
type Last struct{}

func (Last) ID() string { return "last" }

func (Last) Estimate(ctx context.Context, vc venue.Context, req schema.Request) schema.Estimation {
	price := vc.LastPrice(ctx, req.Key())
	if price == nil {
		return schema.Bail()
	}
	confidence := decimal.NewFromInt(1)
	return schema.Estimation{Price: price, Confidence: &confidence}
}

// VWAP quotes the size-weighted average of recent trades. Confidence grows
// with the sample count as n/(n+1) so a thin tape carries less weight.
type VWAP struct {
	Window time.Duration
}

func (VWAP) ID() string { return "vwap" }

func (e VWAP) Estimate(ctx context.Context, vc venue.Context, req schema.Request) schema.Estimation {
	window := e.Window
	if window <= 0 {
		window = time.Hour
	}
	trades := vc.ListTrades(ctx, req.Key(), req.CurrentTime.Add(-window))
	if trades == nil {
		return schema.Bail()
	}

	notional := decimal.Zero
	volume := decimal.Zero
	count := 0
	for _, t := range trades {
		size := t.Size.Abs()
		if size.IsZero() {
			continue
		}
		notional = notional.Add(t.Price.Mul(size))
		volume = volume.Add(size)
		count++
	}
	if volume.IsZero() {
		return schema.Bail()
	}

	price := notional.Div(volume)
	confidence := decimal.NewFromInt(int64(count)).
		Div(decimal.NewFromInt(int64(count) + 1))
	return schema.Estimation{Price: &price, Confidence: &confidence}
}

// Regression fits a least-squares line through recent trade prices and
// extrapolates it to the request's target time. Confidence is the clamped
// coefficient of determination, so a noisy fit quotes itself weakly.
type Regression struct {
	Window time.Duration
}

func (Regression) ID() string { return "regression" }

func (e Regression) Estimate(ctx context.Context, vc venue.Context, req schema.Request) schema.Estimation {
	window := e.Window
	if window <= 0 {
		window = time.Hour
	}
	trades := vc.ListTrades(ctx, req.Key(), req.CurrentTime.Add(-window))
	if len(trades) < 2 {
		return schema.Bail()
	}

	origin := trades[0].Timestamp
	var sumX, sumY, sumXX, sumXY, sumYY float64
	n := 0
	for _, t := range trades {
		if t.Timestamp.IsZero() {
			continue
		}
		x := t.Timestamp.Sub(origin).Seconds()
		y, _ := t.Price.Float64()
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
		sumYY += y * y
		n++
	}
	if n < 2 {
		return schema.Bail()
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return schema.Bail()
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	x := req.TargetTime.Sub(origin).Seconds()
	predicted := intercept + slope*x
	if math.IsNaN(predicted) || math.IsInf(predicted, 0) {
		return schema.Bail()
	}

	// R^2 of the fit, clamped to [0, 1].
	ssTot := sumYY - sumY*sumY/fn
	r2 := 1.0
	if ssTot > 0 {
		ssRes := 0.0
		for _, t := range trades {
			if t.Timestamp.IsZero() {
				continue
			}
			xx := t.Timestamp.Sub(origin).Seconds()
			yy, _ := t.Price.Float64()
			residual := yy - (intercept + slope*xx)
			ssRes += residual * residual
		}
		r2 = 1 - ssRes/ssTot
	}
	if math.IsNaN(r2) || r2 < 0 {
		r2 = 0
	}
	if r2 > 1 {
		r2 = 1
	}

	price := decimal.NewFromFloat(predicted)
	confidence := decimal.NewFromFloat(r2)
	return schema.Estimation{Price: &price, Confidence: &confidence}
}
