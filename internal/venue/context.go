/*
Venue defines the boundary between the trading pipeline and a concrete
exchange adapter.

Every accessor may legitimately return nil on transient failure; the
pipeline treats nil as "unknown" and bails for the affected side or stage,
it never turns an unknown into an error. Adapters are expected to be safe
to call repeatedly within one tick and may serve cached data of bounded
staleness.
*/
package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// Rounding selects the direction for tick/lot size rounding.
type Rounding uint8

const (
	RoundDown Rounding = iota
	RoundUp
)

// Context exposes one venue's market data and order operations, keyed per
// call so a single implementation can serve several instruments.
type Context interface {
	BestAskPrice(ctx context.Context, key schema.Key) *decimal.Decimal
	BestBidPrice(ctx context.Context, key schema.Key) *decimal.Decimal
	MidPrice(ctx context.Context, key schema.Key) *decimal.Decimal
	LastPrice(ctx context.Context, key schema.Key) *decimal.Decimal

	InstrumentPosition(ctx context.Context, key schema.Key) *decimal.Decimal
	FundingPosition(ctx context.Context, key schema.Key) *decimal.Decimal

	RoundLotSize(ctx context.Context, key schema.Key, value decimal.Decimal, mode Rounding) *decimal.Decimal
	RoundTickSize(ctx context.Context, key schema.Key, value decimal.Decimal, mode Rounding) *decimal.Decimal

	ListTrades(ctx context.Context, key schema.Key, since time.Time) []schema.Trade

	FindOrder(ctx context.Context, key schema.Key, id string) *schema.Order
	ListActiveOrders(ctx context.Context, key schema.Key) []schema.Order

	CreateOrder(ctx context.Context, key schema.Key, instruction schema.CreateInstruction) *string
	CancelOrder(ctx context.Context, key schema.Key, instruction schema.CancelInstruction) *string
}
