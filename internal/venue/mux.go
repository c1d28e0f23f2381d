package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/schema"
)

// Mux routes Context calls to the adapter registered for key.Site, so the
// pipeline sees a single facade regardless of how many venues are wired.
// The site map is built once at composition time and read-only afterwards.
type Mux struct {
	sites map[string]Context
}

// NewMux builds a facade over per-site adapters.
func NewMux(sites map[string]Context) *Mux {
	m := &Mux{sites: make(map[string]Context, len(sites))}
	for site, c := range sites {
		m.sites[site] = c
	}
	return m
}

func (m *Mux) resolve(key schema.Key) Context {
	c, ok := m.sites[key.Site]
	if !ok {
		logs.Debugf("venue: no adapter for site %q", key.Site)
		return nil
	}
	return c
}

func (m *Mux) BestAskPrice(ctx context.Context, key schema.Key) *decimal.Decimal {
	if c := m.resolve(key); c != nil {
		return c.BestAskPrice(ctx, key)
	}
	return nil
}

func (m *Mux) BestBidPrice(ctx context.Context, key schema.Key) *decimal.Decimal {
	if c := m.resolve(key); c != nil {
		return c.BestBidPrice(ctx, key)
	}
	return nil
}

func (m *Mux) MidPrice(ctx context.Context, key schema.Key) *decimal.Decimal {
	if c := m.resolve(key); c != nil {
		return c.MidPrice(ctx, key)
	}
	return nil
}

func (m *Mux) LastPrice(ctx context.Context, key schema.Key) *decimal.Decimal {
	if c := m.resolve(key); c != nil {
		return c.LastPrice(ctx, key)
	}
	return nil
}

func (m *Mux) InstrumentPosition(ctx context.Context, key schema.Key) *decimal.Decimal {
	if c := m.resolve(key); c != nil {
		return c.InstrumentPosition(ctx, key)
	}
	return nil
}

func (m *Mux) FundingPosition(ctx context.Context, key schema.Key) *decimal.Decimal {
	if c := m.resolve(key); c != nil {
		return c.FundingPosition(ctx, key)
	}
	return nil
}

func (m *Mux) RoundLotSize(ctx context.Context, key schema.Key, value decimal.Decimal, mode Rounding) *decimal.Decimal {
	if c := m.resolve(key); c != nil {
		return c.RoundLotSize(ctx, key, value, mode)
	}
	return nil
}

func (m *Mux) RoundTickSize(ctx context.Context, key schema.Key, value decimal.Decimal, mode Rounding) *decimal.Decimal {
	if c := m.resolve(key); c != nil {
		return c.RoundTickSize(ctx, key, value, mode)
	}
	return nil
}

func (m *Mux) ListTrades(ctx context.Context, key schema.Key, since time.Time) []schema.Trade {
	if c := m.resolve(key); c != nil {
		return c.ListTrades(ctx, key, since)
	}
	return nil
}

func (m *Mux) FindOrder(ctx context.Context, key schema.Key, id string) *schema.Order {
	if c := m.resolve(key); c != nil {
		return c.FindOrder(ctx, key, id)
	}
	return nil
}

func (m *Mux) ListActiveOrders(ctx context.Context, key schema.Key) []schema.Order {
	if c := m.resolve(key); c != nil {
		return c.ListActiveOrders(ctx, key)
	}
	return nil
}

func (m *Mux) CreateOrder(ctx context.Context, key schema.Key, instruction schema.CreateInstruction) *string {
	if c := m.resolve(key); c != nil {
		return c.CreateOrder(ctx, key, instruction)
	}
	return nil
}

func (m *Mux) CancelOrder(ctx context.Context, key schema.Key, instruction schema.CancelInstruction) *string {
	if c := m.resolve(key); c != nil {
		return c.CancelOrder(ctx, key, instruction)
	}
	return nil
}
