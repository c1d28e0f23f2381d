package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Key identifies one market context at one decision instant.
type Key struct {
	Site       string
	Instrument string
	Timestamp  time.Time
}

// Valid reports whether every field of the key is present.
func (k Key) Valid() bool {
	return k.Site != "" && k.Instrument != "" && !k.Timestamp.IsZero()
}

// Request carries the per-tick trading parameters for one (site, instrument)
// target. Built once per control-loop pass from live configuration and never
// mutated afterwards.
type Request struct {
	Site       string
	Instrument string

	CurrentTime time.Time
	TargetTime  time.Time

	TradingSpread         *decimal.Decimal
	TradingExposure       *decimal.Decimal
	TradingAggressiveness *decimal.Decimal
	FundingOffset         *decimal.Decimal
	TradingSplit          int
	TradingActive         bool

	// Estimators maps enabled estimator ids to confidence multipliers.
	// The id "*" enables every registered estimator.
	Estimators map[string]decimal.Decimal
}

// Valid reports whether the request carries every required field.
// An invalid request short-circuits the whole pipeline for the tick.
func (r Request) Valid() bool {
	if r.Site == "" || r.Instrument == "" {
		return false
	}
	if r.CurrentTime.IsZero() || r.TargetTime.IsZero() {
		return false
	}
	if r.TradingSpread == nil || r.TradingExposure == nil {
		return false
	}
	return r.TradingSplit >= 1
}

// Key returns the routing key for the request.
func (r Request) Key() Key {
	return Key{Site: r.Site, Instrument: r.Instrument, Timestamp: r.CurrentTime}
}

// Estimation is the (price, confidence) opinion of one pricing strategy, or
// the aggregate of several. A nil price or confidence means "no opinion" and
// downstream stages must treat it as a bail.
type Estimation struct {
	Price      *decimal.Decimal
	Confidence *decimal.Decimal
}

// Valid reports whether the estimation carries a usable opinion.
func (e Estimation) Valid() bool {
	return e.Price != nil && e.Confidence != nil
}

// Bail returns the zero-confidence sentinel estimation.
func Bail() Estimation {
	zero := decimal.Zero
	return Estimation{Confidence: &zero}
}

// Advice holds the computed bid/ask limit prices and sizes for one tick.
// The buy and sell sides fail independently; a nil field means that side
// produced nothing this tick.
type Advice struct {
	BuyLimitPrice  *decimal.Decimal
	BuyLimitSize   *decimal.Decimal
	SellLimitPrice *decimal.Decimal
	SellLimitSize  *decimal.Decimal
}
