package planner

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
	"main/internal/venue/paper"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func request(split int, aggressiveness string) schema.Request {
	now := time.Now()
	req := schema.Request{
		Site:            "paper",
		Instrument:      "BTCUSDT",
		CurrentTime:     now,
		TargetTime:      now.Add(time.Second),
		TradingSpread:   dec("0.002"),
		TradingExposure: dec("0.25"),
		TradingSplit:    split,
	}
	if aggressiveness != "" {
		req.TradingAggressiveness = dec(aggressiveness)
	}
	return req
}

func quotingVenue() *paper.Venue {
	v := paper.New()
	v.SetBook("BTCUSDT", paper.Book{
		TickSize: decimal.RequireFromString("0.1"),
		LotSize:  decimal.RequireFromString("0.1"),
	})
	return v
}

func creates(instructions []schema.Instruction) []schema.CreateInstruction {
	var out []schema.CreateInstruction
	for _, i := range instructions {
		if c, ok := i.(schema.CreateInstruction); ok {
			out = append(out, c)
		}
	}
	return out
}

func cancels(instructions []schema.Instruction) []schema.CancelInstruction {
	var out []schema.CancelInstruction
	for _, i := range instructions {
		if c, ok := i.(schema.CancelInstruction); ok {
			out = append(out, c)
		}
	}
	return out
}

func TestInstructLadder(t *testing.T) {
	v := quotingVenue()
	p := New(schema.NewSequence(), nil)
	advice := schema.Advice{
		BuyLimitPrice:  dec("100"),
		BuyLimitSize:   dec("3"),
		SellLimitPrice: dec("110"),
		SellLimitSize:  dec("3"),
	}

	got := p.Instruct(t.Context(), v, request(3, "0.01"), advice)

	cs := creates(got)
	if len(cs) != 6 {
		t.Fatalf("expected 6 creates, got %d", len(cs))
	}
	if len(cancels(got)) != 0 {
		t.Fatal("no resting orders, no cancels expected")
	}

	type rung struct{ price, size string }
	expected := []rung{
		{"100", "1"}, {"99", "1"}, {"98", "1"},
		{"110", "-1"}, {"111.1", "-1"}, {"112.2", "-1"},
	}
	for i, want := range expected {
		if !cs[i].Price.Equal(decimal.RequireFromString(want.price)) {
			t.Fatalf("rung %d price mismatch: got %s want %s", i, cs[i].Price, want.price)
		}
		if !cs[i].Size.Equal(decimal.RequireFromString(want.size)) {
			t.Fatalf("rung %d size mismatch: got %s want %s", i, cs[i].Size, want.size)
		}
	}

	uids := map[uint64]bool{}
	for _, c := range cs {
		if uids[c.Uid] {
			t.Fatalf("duplicate uid %d", c.Uid)
		}
		uids[c.Uid] = true
	}
}

func TestInstructNettingIsIdempotent(t *testing.T) {
	v := quotingVenue()
	p := New(schema.NewSequence(), nil)
	advice := schema.Advice{
		BuyLimitPrice: dec("100"),
		BuyLimitSize:  dec("2"),
	}
	req := request(2, "0.01")

	// Resting orders already match the desired ladder exactly.
	v.Rest(schema.Order{ID: "A", Instrument: "BTCUSDT", Active: true, Price: dec("100"), RemainingQty: dec("1")})
	v.Rest(schema.Order{ID: "B", Instrument: "BTCUSDT", Active: true, Price: dec("99"), RemainingQty: dec("1")})

	got := p.Instruct(t.Context(), v, req, advice)
	if len(got) != 0 {
		t.Fatalf("unchanged advice should net to nothing, got %d instructions", len(got))
	}
}

func TestInstructReplacesStaleOrders(t *testing.T) {
	v := quotingVenue()
	p := New(schema.NewSequence(), nil)
	advice := schema.Advice{
		BuyLimitPrice: dec("100"),
		BuyLimitSize:  dec("1"),
	}

	v.Rest(schema.Order{ID: "STALE", Instrument: "BTCUSDT", Active: true, Price: dec("95"), RemainingQty: dec("1")})

	got := p.Instruct(t.Context(), v, request(1, ""), advice)

	xs := cancels(got)
	if len(xs) != 1 || xs[0].OrderID != "STALE" {
		t.Fatalf("expected cancel of STALE, got %+v", xs)
	}
	cs := creates(got)
	if len(cs) != 1 || !cs[0].Price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected one create at 100, got %+v", cs)
	}
}

func TestInstructPartialFillDefeatsNetting(t *testing.T) {
	v := quotingVenue()
	p := New(schema.NewSequence(), nil)
	advice := schema.Advice{
		BuyLimitPrice: dec("100"),
		BuyLimitSize:  dec("1"),
	}

	// Same price, but the resting remainder no longer matches the desired
	// size, so the order must be replaced.
	v.Rest(schema.Order{ID: "PARTIAL", Instrument: "BTCUSDT", Active: true, Price: dec("100"), FilledQty: dec("0.4"), RemainingQty: dec("0.6")})

	got := p.Instruct(t.Context(), v, request(1, ""), advice)
	if len(cancels(got)) != 1 || len(creates(got)) != 1 {
		t.Fatalf("partial fill should force a replace, got %+v", got)
	}
}

func TestInstructSideAbsent(t *testing.T) {
	v := quotingVenue()
	p := New(schema.NewSequence(), nil)

	testCases := []struct {
		desc   string
		advice schema.Advice
	}{
		{"empty advice", schema.Advice{}},
		{"zero size", schema.Advice{BuyLimitPrice: dec("100"), BuyLimitSize: dec("0")}},
		{"negative price", schema.Advice{BuyLimitPrice: dec("-1"), BuyLimitSize: dec("1")}},
		{"size below lot", schema.Advice{BuyLimitPrice: dec("100"), BuyLimitSize: dec("0.05")}},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if got := p.Instruct(t.Context(), v, request(1, ""), tc.advice); len(got) != 0 {
				t.Fatalf("expected no instructions, got %+v", got)
			}
		})
	}
}

func TestInstructInvalidRequest(t *testing.T) {
	p := New(schema.NewSequence(), nil)
	if got := p.Instruct(t.Context(), quotingVenue(), schema.Request{}, schema.Advice{BuyLimitPrice: dec("100"), BuyLimitSize: dec("1")}); got != nil {
		t.Fatalf("invalid request should plan nothing, got %+v", got)
	}
}
