package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a point-in-time snapshot of a venue order. The venue owns and
// mutates the real order; the pipeline only ever reads snapshots.
// Quantities are signed: positive is the buy side.
type Order struct {
	ID           string
	Instrument   string
	Active       bool
	Price        *decimal.Decimal
	FilledQty    *decimal.Decimal
	RemainingQty *decimal.Decimal
}

// Quantity returns filled + remaining, or nil when either is unknown.
func (o Order) Quantity() *decimal.Decimal {
	if o.FilledQty == nil || o.RemainingQty == nil {
		return nil
	}
	q := o.FilledQty.Add(*o.RemainingQty)
	return &q
}

// Trade is one executed trade reported by a venue.
type Trade struct {
	Instrument string
	Timestamp  time.Time
	Price      decimal.Decimal
	Size       decimal.Decimal
}
