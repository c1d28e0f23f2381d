package guard

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Config defines simple pre-submission limits. Zero values disable the
// corresponding check, so an empty config is inert.
type Config struct {
	KillSwitch       bool            `json:"killSwitch"`
	MaxOrderSize     decimal.Decimal `json:"maxOrderSize"`
	MaxOrderNotional decimal.Decimal `json:"maxOrderNotional"`
	MaxOpenOrders    int             `json:"maxOpenOrders"`
}

// Reason explains a denial.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonKillSwitch
	ReasonMaxSize
	ReasonMaxNotional
	ReasonMaxOpenOrders
)

func (r Reason) String() string {
	switch r {
	case ReasonKillSwitch:
		return "kill_switch"
	case ReasonMaxSize:
		return "max_order_size"
	case ReasonMaxNotional:
		return "max_order_notional"
	case ReasonMaxOpenOrders:
		return "max_open_orders"
	default:
		return "none"
	}
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Allow  bool
	Reason Reason
}

// Guard evaluates create instructions against the configured limits.
// The configuration is hot-swappable; evaluation is read-only.
type Guard struct {
	mu  sync.RWMutex
	cfg Config
}

// New creates a guard with the given limits.
func New(cfg Config) *Guard {
	return &Guard{cfg: cfg}
}

// Update swaps the limits; called by the control loop on config reload.
func (g *Guard) Update(cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
}

// Evaluate checks one desired order. Price and size are the instruction's
// values, size signed; openOrders is the current resting-order count for
// the target.
func (g *Guard) Evaluate(price, size decimal.Decimal, openOrders int) Decision {
	if g == nil {
		return Decision{Allow: true}
	}
	g.mu.RLock()
	cfg := g.cfg
	g.mu.RUnlock()

	if cfg.KillSwitch {
		return Decision{Reason: ReasonKillSwitch}
	}
	abs := size.Abs()
	if cfg.MaxOrderSize.IsPositive() && abs.GreaterThan(cfg.MaxOrderSize) {
		return Decision{Reason: ReasonMaxSize}
	}
	if cfg.MaxOrderNotional.IsPositive() && price.Abs().Mul(abs).GreaterThan(cfg.MaxOrderNotional) {
		return Decision{Reason: ReasonMaxNotional}
	}
	if cfg.MaxOpenOrders > 0 && openOrders >= cfg.MaxOpenOrders {
		return Decision{Reason: ReasonMaxOpenOrders}
	}
	return Decision{Allow: true}
}
