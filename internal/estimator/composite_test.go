package estimator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
	"main/internal/venue"
)

func TestParseLeg(t *testing.T) {
	testCases := []struct {
		token    string
		expected Leg
		ok       bool
	}{
		{"*bitflyer:BTCJPY", Leg{'*', "bitflyer", "BTCJPY"}, true},
		{"/oanda:USDJPY", Leg{'/', "oanda", "USDJPY"}, true},
		{"bitflyer:BTCJPY", Leg{}, false},
		{"*bitflyerBTCJPY", Leg{}, false},
		{"*:BTCJPY", Leg{}, false},
		{"*bitflyer:", Leg{}, false},
		{"", Leg{}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.token, func(t *testing.T) {
			leg, ok := ParseLeg(tc.token)
			if ok != tc.ok {
				t.Fatalf("ok mismatch: got %v want %v", ok, tc.ok)
			}
			if leg != tc.expected {
				t.Fatalf("leg mismatch: got %+v want %+v", leg, tc.expected)
			}
		})
	}
}

func TestParseLegsAllOrNothing(t *testing.T) {
	legs, ok := ParseLegs([]string{"*a:X", "/b:Y"})
	require.True(t, ok)
	require.Len(t, legs, 2)

	_, ok = ParseLegs([]string{"*a:X", "bogus"})
	assert.False(t, ok)

	_, ok = ParseLegs(nil)
	assert.False(t, ok)
}

func TestCompositeFold(t *testing.T) {
	prices := map[string]string{
		"bitflyer:BTCJPY": "15000000",
		"oanda:USDJPY":    "150",
	}
	confidences := map[string]string{
		"bitflyer:BTCJPY": "0.8",
		"oanda:USDJPY":    "0.5",
	}
	fn := func(ctx context.Context, vc venue.Context, req schema.Request) schema.Estimation {
		key := req.Site + ":" + req.Instrument
		p, ok := prices[key]
		if !ok {
			return schema.Bail()
		}
		price := decimal.RequireFromString(p)
		confidence := decimal.RequireFromString(confidences[key])
		return schema.Estimation{Price: &price, Confidence: &confidence}
	}

	legs, ok := ParseLegs([]string{"*bitflyer:BTCJPY", "/oanda:USDJPY"})
	require.True(t, ok)
	c := NewComposite("btc-usd-synthetic", legs, fn)

	got := c.Estimate(t.Context(), nil, request(map[string]decimal.Decimal{
		Wildcard: decimal.NewFromInt(1),
	}))
	require.True(t, got.Valid())
	// 1 * 15000000 / 150 = 100000, confidence 0.8*0.5.
	assert.True(t, got.Price.Equal(decimal.NewFromInt(100000)), "price %s", got.Price)
	assert.True(t, got.Confidence.Equal(decimal.RequireFromString("0.4")), "confidence %s", got.Confidence)
}

func TestCompositeBailsWhenLegHasNoOpinion(t *testing.T) {
	fn := func(context.Context, venue.Context, schema.Request) schema.Estimation {
		return schema.Bail()
	}
	legs, _ := ParseLegs([]string{"*a:X"})
	c := NewComposite("synthetic", legs, fn)

	got := c.Estimate(t.Context(), nil, request(nil))
	assert.False(t, got.Valid())
}

func TestCompositeBailsOnZeroDivisor(t *testing.T) {
	fn := func(context.Context, venue.Context, schema.Request) schema.Estimation {
		price := decimal.Zero
		confidence := decimal.NewFromInt(1)
		return schema.Estimation{Price: &price, Confidence: &confidence}
	}
	legs, _ := ParseLegs([]string{"/a:X"})
	c := NewComposite("synthetic", legs, fn)

	got := c.Estimate(t.Context(), nil, request(nil))
	assert.False(t, got.Valid())
}

func TestCompositeRecursionBreaks(t *testing.T) {
	legs, _ := ParseLegs([]string{"*a:X"})
	var c *Composite
	fn := func(ctx context.Context, vc venue.Context, req schema.Request) schema.Estimation {
		// The leg resolves straight back into the composite itself.
		return c.Estimate(ctx, vc, req)
	}
	c = NewComposite("self-referential", legs, fn)

	done := make(chan schema.Estimation, 1)
	go func() {
		done <- c.Estimate(context.Background(), nil, request(nil))
	}()
	select {
	case got := <-done:
		assert.False(t, got.Valid())
	case <-t.Context().Done():
		t.Fatal("composite recursion did not terminate")
	}
}

func TestCompositesShareThePool(t *testing.T) {
	// Several composites folding legs back through the same consensus must
	// not tie up the worker pool waiting on each other's nested fan-out.
	var consensus *Consensus
	fold := func(ctx context.Context, vc venue.Context, req schema.Request) schema.Estimation {
		return consensus.Estimate(ctx, vc, req)
	}
	legsA, _ := ParseLegs([]string{"*paper:AAA"})
	legsB, _ := ParseLegs([]string{"*paper:BBB"})
	legsC, _ := ParseLegs([]string{"*paper:CCC"})
	consensus = NewConsensus(nil,
		stub{"a", "100", "1"},
		NewComposite("syn-a", legsA, fold),
		NewComposite("syn-b", legsB, fold),
		NewComposite("syn-c", legsC, fold),
	)
	defer consensus.Close()

	req := request(map[string]decimal.Decimal{Wildcard: decimal.NewFromInt(1)})
	for i := 0; i < 3; i++ {
		done := make(chan schema.Estimation, 1)
		go func() {
			done <- consensus.Estimate(context.Background(), nil, req)
		}()
		select {
		case got := <-done:
			require.True(t, got.Valid(), "iteration %d", i)
		case <-time.After(5 * time.Second):
			t.Fatalf("estimate did not return on iteration %d", i)
		}
	}
}
