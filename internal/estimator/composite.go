package estimator

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/schema"
	"main/internal/venue"
)

// Operators accepted at the head of a composite leg token.
const (
	opMultiply = '*'
	opDivide   = '/'
)

// Leg is one multiplicative step of a composite estimation chain.
type Leg struct {
	Operator   byte
	Site       string
	Instrument string
}

// ParseLeg decodes a leg token of the form "<op><site>:<instrument>",
// e.g. "*bitflyer:BTCJPY" or "/oanda:USDJPY".
func ParseLeg(token string) (Leg, bool) {
	if len(token) < 4 {
		return Leg{}, false
	}
	op := token[0]
	if op != opMultiply && op != opDivide {
		return Leg{}, false
	}
	site, instrument, ok := strings.Cut(token[1:], ":")
	if !ok || site == "" || instrument == "" {
		return Leg{}, false
	}
	return Leg{Operator: op, Site: site, Instrument: instrument}, true
}

// ParseLegs decodes a list of leg tokens; any malformed token invalidates
// the whole list, matching the all-or-nothing fold semantics.
func ParseLegs(tokens []string) ([]Leg, bool) {
	if len(tokens) == 0 {
		return nil, false
	}
	legs := make([]Leg, 0, len(tokens))
	for _, token := range tokens {
		leg, ok := ParseLeg(token)
		if !ok {
			return nil, false
		}
		legs = append(legs, leg)
	}
	return legs, true
}

// EstimateFunc is the underlying estimation function a composite folds
// each leg through. In production wiring it is Consensus.Estimate.
type EstimateFunc func(ctx context.Context, vc venue.Context, req schema.Request) schema.Estimation

// Composite derives a synthetic price by chaining estimations of other
// (site, instrument) legs multiplicatively. Estimation is all-or-nothing:
// any leg without a usable opinion bails the whole chain at zero
// confidence.
type Composite struct {
	id   string
	legs []Leg
	fn   EstimateFunc
}

// NewComposite builds a composite estimator over the given legs.
func NewComposite(id string, legs []Leg, fn EstimateFunc) *Composite {
	return &Composite{id: id, legs: legs, fn: fn}
}

func (c *Composite) ID() string { return c.id }

func (c *Composite) Estimate(ctx context.Context, vc venue.Context, req schema.Request) schema.Estimation {
	if c.fn == nil || len(c.legs) == 0 || !req.Valid() {
		return schema.Bail()
	}
	if folding(ctx, c.id) {
		// A leg resolved back into this composite; break the cycle.
		logs.Warnf("composite %s: recursive leg detected", c.id)
		return schema.Bail()
	}
	ctx = markFolding(ctx, c.id)

	price := decimal.NewFromInt(1)
	confidence := decimal.NewFromInt(1)
	for _, leg := range c.legs {
		if leg.Site == "" || leg.Instrument == "" {
			return schema.Bail()
		}

		legReq := req
		legReq.Site = leg.Site
		legReq.Instrument = leg.Instrument

		estimation := c.fn(ctx, vc, legReq)
		if !estimation.Valid() || estimation.Confidence.IsZero() {
			logs.Debugf("composite %s: leg %c%s:%s has no opinion", c.id, leg.Operator, leg.Site, leg.Instrument)
			return schema.Bail()
		}

		switch leg.Operator {
		case opMultiply:
			price = price.Mul(*estimation.Price)
		case opDivide:
			if estimation.Price.IsZero() {
				return schema.Bail()
			}
			price = price.Div(*estimation.Price)
		default:
			return schema.Bail()
		}
		confidence = confidence.Mul(*estimation.Confidence)
	}

	return schema.Estimation{Price: &price, Confidence: &confidence}
}

type foldingKey string

func folding(ctx context.Context, id string) bool {
	v, _ := ctx.Value(foldingKey(id)).(bool)
	return v
}

func markFolding(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, foldingKey(id), true)
}
