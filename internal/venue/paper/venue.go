// Package paper implements an in-memory simulated venue for tests and the
// paper-trading runner. It fills nothing; created orders simply rest until
// cancelled, which is all the pipeline needs to observe.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
	"main/internal/venue"
)

// Book is the settable market snapshot for one instrument.
type Book struct {
	BestAsk            *decimal.Decimal
	BestBid            *decimal.Decimal
	Mid                *decimal.Decimal
	Last               *decimal.Decimal
	InstrumentPosition *decimal.Decimal
	FundingPosition    *decimal.Decimal
	TickSize           decimal.Decimal
	LotSize            decimal.Decimal
	Trades             []schema.Trade
}

type restingOrder struct {
	order schema.Order
	// hidden delays FindOrder visibility by N lookups, for reconcile tests.
	hidden int
}

// Venue is an in-memory venue.Context implementation.
type Venue struct {
	mu     sync.Mutex
	books  map[string]Book
	orders map[string]*restingOrder
	nextID uint64

	// RejectCreates/RejectCancels force nil submission results.
	RejectCreates bool
	RejectCancels bool
	// HideCreatedFor makes newly created orders invisible to FindOrder for
	// the first N lookups.
	HideCreatedFor int
}

// New creates an empty paper venue.
func New() *Venue {
	return &Venue{
		books:  make(map[string]Book),
		orders: make(map[string]*restingOrder),
	}
}

var _ venue.Context = (*Venue)(nil)

// SetBook installs the market snapshot for an instrument.
func (v *Venue) SetBook(instrument string, book Book) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.books[instrument] = book
}

// Rest places a resting order directly, bypassing CreateOrder. Used to seed
// open-order state in tests.
func (v *Venue) Rest(order schema.Order) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.orders[order.ID] = &restingOrder{order: order}
}

func (v *Venue) book(key schema.Key) (Book, bool) {
	b, ok := v.books[key.Instrument]
	return b, ok
}

func (v *Venue) BestAskPrice(_ context.Context, key schema.Key) *decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	if b, ok := v.book(key); ok {
		return b.BestAsk
	}
	return nil
}

func (v *Venue) BestBidPrice(_ context.Context, key schema.Key) *decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	if b, ok := v.book(key); ok {
		return b.BestBid
	}
	return nil
}

func (v *Venue) MidPrice(_ context.Context, key schema.Key) *decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	if b, ok := v.book(key); ok {
		return b.Mid
	}
	return nil
}

func (v *Venue) LastPrice(_ context.Context, key schema.Key) *decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	if b, ok := v.book(key); ok {
		return b.Last
	}
	return nil
}

func (v *Venue) InstrumentPosition(_ context.Context, key schema.Key) *decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	if b, ok := v.book(key); ok {
		return b.InstrumentPosition
	}
	return nil
}

func (v *Venue) FundingPosition(_ context.Context, key schema.Key) *decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	if b, ok := v.book(key); ok {
		return b.FundingPosition
	}
	return nil
}

func (v *Venue) RoundLotSize(_ context.Context, key schema.Key, value decimal.Decimal, mode venue.Rounding) *decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, ok := v.book(key)
	if !ok {
		return nil
	}
	return roundUnit(value, b.LotSize, mode)
}

func (v *Venue) RoundTickSize(_ context.Context, key schema.Key, value decimal.Decimal, mode venue.Rounding) *decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, ok := v.book(key)
	if !ok {
		return nil
	}
	return roundUnit(value, b.TickSize, mode)
}

func roundUnit(value, unit decimal.Decimal, mode venue.Rounding) *decimal.Decimal {
	if unit.IsZero() {
		return nil
	}
	steps := value.Div(unit)
	if mode == venue.RoundUp {
		steps = steps.Ceil()
	} else {
		steps = steps.Floor()
	}
	rounded := steps.Mul(unit)
	return &rounded
}

func (v *Venue) ListTrades(_ context.Context, key schema.Key, since time.Time) []schema.Trade {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, ok := v.book(key)
	if !ok {
		return nil
	}
	out := make([]schema.Trade, 0, len(b.Trades))
	for _, t := range b.Trades {
		if t.Timestamp.Before(since) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (v *Venue) FindOrder(_ context.Context, _ schema.Key, id string) *schema.Order {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.orders[id]
	if !ok {
		return nil
	}
	if r.hidden > 0 {
		r.hidden--
		return nil
	}
	snapshot := r.order
	return &snapshot
}

func (v *Venue) ListActiveOrders(_ context.Context, key schema.Key) []schema.Order {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []schema.Order
	for _, r := range v.orders {
		if r.order.Active && r.order.Instrument == key.Instrument {
			out = append(out, r.order)
		}
	}
	return out
}

func (v *Venue) CreateOrder(_ context.Context, key schema.Key, instruction schema.CreateInstruction) *string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.RejectCreates {
		return nil
	}
	v.nextID++
	id := fmt.Sprintf("PAPER-%d", v.nextID)
	price := instruction.Price
	size := instruction.Size
	zero := decimal.Zero
	v.orders[id] = &restingOrder{
		order: schema.Order{
			ID:           id,
			Instrument:   key.Instrument,
			Active:       true,
			Price:        &price,
			FilledQty:    &zero,
			RemainingQty: &size,
		},
		hidden: v.HideCreatedFor,
	}
	return &id
}

func (v *Venue) CancelOrder(_ context.Context, _ schema.Key, instruction schema.CancelInstruction) *string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.RejectCancels {
		return nil
	}
	r, ok := v.orders[instruction.OrderID]
	if !ok {
		return nil
	}
	r.order.Active = false
	confirmation := "X-" + instruction.OrderID
	return &confirmation
}
