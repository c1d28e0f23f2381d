package venue_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
	"main/internal/venue"
	"main/internal/venue/paper"
)

func key(site string) schema.Key {
	return schema.Key{Site: site, Instrument: "BTCUSDT", Timestamp: time.Now()}
}

func TestMuxRoutesBySite(t *testing.T) {
	a := paper.New()
	b := paper.New()
	askA := decimal.NewFromInt(100)
	askB := decimal.NewFromInt(200)
	a.SetBook("BTCUSDT", paper.Book{BestAsk: &askA})
	b.SetBook("BTCUSDT", paper.Book{BestAsk: &askB})

	m := venue.NewMux(map[string]venue.Context{"a": a, "b": b})

	got := m.BestAskPrice(t.Context(), key("a"))
	if got == nil || !got.Equal(askA) {
		t.Fatalf("site a ask mismatch: got %v", got)
	}
	got = m.BestAskPrice(t.Context(), key("b"))
	if got == nil || !got.Equal(askB) {
		t.Fatalf("site b ask mismatch: got %v", got)
	}
}

func TestMuxUnknownSite(t *testing.T) {
	m := venue.NewMux(nil)
	k := key("nowhere")

	if got := m.MidPrice(t.Context(), k); got != nil {
		t.Fatalf("unknown site mid should be nil, got %v", got)
	}
	if got := m.ListActiveOrders(t.Context(), k); got != nil {
		t.Fatalf("unknown site orders should be nil, got %v", got)
	}
	if got := m.CreateOrder(t.Context(), k, schema.CreateInstruction{Uid: 1, Price: decimal.NewFromInt(1), Size: decimal.NewFromInt(1)}); got != nil {
		t.Fatalf("unknown site create should be nil, got %v", got)
	}
	if got := m.RoundTickSize(t.Context(), k, decimal.NewFromInt(1), venue.RoundDown); got != nil {
		t.Fatalf("unknown site rounding should be nil, got %v", got)
	}
}

func TestMuxOrderFlow(t *testing.T) {
	v := paper.New()
	v.SetBook("BTCUSDT", paper.Book{
		TickSize: decimal.RequireFromString("0.1"),
		LotSize:  decimal.RequireFromString("0.1"),
	})
	m := venue.NewMux(map[string]venue.Context{"paper": v})
	k := key("paper")

	id := m.CreateOrder(t.Context(), k, schema.CreateInstruction{
		Uid:   1,
		Price: decimal.NewFromInt(100),
		Size:  decimal.NewFromInt(-2),
	})
	if id == nil {
		t.Fatal("create should be accepted")
	}

	order := m.FindOrder(t.Context(), k, *id)
	if order == nil || !order.Active {
		t.Fatalf("order should rest active: %+v", order)
	}
	if order.RemainingQty == nil || !order.RemainingQty.Equal(decimal.NewFromInt(-2)) {
		t.Fatalf("signed size should be preserved: %+v", order)
	}

	if got := m.CancelOrder(t.Context(), k, schema.CancelInstruction{Uid: 2, OrderID: *id}); got == nil {
		t.Fatal("cancel should be accepted")
	}
	if order := m.FindOrder(t.Context(), k, *id); order == nil || order.Active {
		t.Fatalf("cancelled order should be inactive: %+v", order)
	}
	if got := m.ListActiveOrders(t.Context(), k); len(got) != 0 {
		t.Fatalf("no active orders expected, got %+v", got)
	}
}

func TestPaperRounding(t *testing.T) {
	v := paper.New()
	v.SetBook("BTCUSDT", paper.Book{TickSize: decimal.RequireFromString("0.001")})
	k := schema.Key{Site: "paper", Instrument: "BTCUSDT", Timestamp: time.Now()}

	down := v.RoundTickSize(t.Context(), k, decimal.RequireFromString("12248.9954784"), venue.RoundDown)
	if down == nil || !down.Equal(decimal.RequireFromString("12248.995")) {
		t.Fatalf("round down mismatch: got %v", down)
	}
	up := v.RoundTickSize(t.Context(), k, decimal.RequireFromString("12248.9954784"), venue.RoundUp)
	if up == nil || !up.Equal(decimal.RequireFromString("12248.996")) {
		t.Fatalf("round up mismatch: got %v", up)
	}

	if got := v.RoundLotSize(t.Context(), k, decimal.NewFromInt(1), venue.RoundDown); got != nil {
		t.Fatalf("zero lot size should be unknown, got %v", got)
	}
}
