package ops

import (
	"encoding/json"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/guard"
	"main/internal/oms"
	"main/internal/schema"
)

const defaultInterval = 5 * time.Second

// FileConfig mirrors the JSON config layout. Durations are nanosecond
// numbers.
type FileConfig struct {
	Trading    TradingConfig       `json:"trading"`
	Estimators EstimatorConfig     `json:"estimators"`
	Composites map[string][]string `json:"composites"`
	Guard      guard.Config        `json:"guard"`
	OMS        oms.Config          `json:"oms"`
	Journal    JournalConfig       `json:"journal"`
}

// TradingConfig defines the loop cadence and the target set.
type TradingConfig struct {
	Interval time.Duration  `json:"interval"`
	Defaults TargetParams   `json:"defaults"`
	Targets  []TargetConfig `json:"targets"`
}

// TargetParams are the per-target trading parameters; any field left null
// falls back to the defaults section.
type TargetParams struct {
	Spread         *decimal.Decimal            `json:"spread"`
	Exposure       *decimal.Decimal            `json:"exposure"`
	Aggressiveness *decimal.Decimal            `json:"aggressiveness"`
	FundingOffset  *decimal.Decimal            `json:"fundingOffset"`
	Split          int                         `json:"split"`
	Active         *bool                       `json:"active"`
	Estimators     map[string]*decimal.Decimal `json:"estimators"`
}

// TargetConfig is one (site, instrument) trading target.
type TargetConfig struct {
	Site       string `json:"site"`
	Instrument string `json:"instrument"`
	TargetParams
}

// EstimatorConfig parameterizes the registered strategy family.
type EstimatorConfig struct {
	VWAPWindow       time.Duration `json:"vwapWindow"`
	RegressionWindow time.Duration `json:"regressionWindow"`
}

// JournalConfig enables the decision journal when DSN is set.
type JournalConfig struct {
	DSN       string `json:"dsn"`
	QueueSize int    `json:"queueSize"`
}

// Target is one resolved trading target.
type Target struct {
	Site       string
	Instrument string

	Spread         *decimal.Decimal
	Exposure       *decimal.Decimal
	Aggressiveness *decimal.Decimal
	FundingOffset  *decimal.Decimal
	Split          int
	Active         bool
	Estimators     map[string]decimal.Decimal
}

// Request builds the immutable per-tick request for this target. The
// estimation horizon is one loop interval ahead of the decision instant.
func (t Target) Request(now time.Time, interval time.Duration) schema.Request {
	return schema.Request{
		Site:                  t.Site,
		Instrument:            t.Instrument,
		CurrentTime:           now,
		TargetTime:            now.Add(interval),
		TradingSpread:         t.Spread,
		TradingExposure:       t.Exposure,
		TradingAggressiveness: t.Aggressiveness,
		FundingOffset:         t.FundingOffset,
		TradingSplit:          t.Split,
		TradingActive:         t.Active,
		Estimators:            t.Estimators,
	}
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Interval   time.Duration
	Targets    []Target
	Estimators EstimatorConfig
	Composites map[string][]string
	Guard      guard.Config
	OMS        oms.Config
	Journal    JournalConfig
}

// Load reads a JSON config file and resolves targets against the defaults
// section.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "unmarshal config")
	}
	return Resolve(cfg)
}

// Resolve merges defaults into every target and validates the result.
func Resolve(cfg FileConfig) (Loaded, error) {
	interval := cfg.Trading.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	targets := make([]Target, 0, len(cfg.Trading.Targets))
	for _, tc := range cfg.Trading.Targets {
		if tc.Site == "" || tc.Instrument == "" {
			return Loaded{}, errors.Errorf("target missing site or instrument: %+v", tc)
		}
		targets = append(targets, resolveTarget(tc, cfg.Trading.Defaults))
	}

	return Loaded{
		Interval:   interval,
		Targets:    targets,
		Estimators: cfg.Estimators,
		Composites: cfg.Composites,
		Guard:      cfg.Guard,
		OMS:        cfg.OMS,
		Journal:    cfg.Journal,
	}, nil
}

func resolveTarget(tc TargetConfig, defaults TargetParams) Target {
	t := Target{
		Site:       tc.Site,
		Instrument: tc.Instrument,
		Spread:     pick(tc.Spread, defaults.Spread),
		Exposure:   pick(tc.Exposure, defaults.Exposure),
		Split:      tc.Split,
	}
	t.Aggressiveness = pick(tc.Aggressiveness, defaults.Aggressiveness)
	t.FundingOffset = pick(tc.FundingOffset, defaults.FundingOffset)
	if t.Split < 1 {
		t.Split = defaults.Split
	}
	if t.Split < 1 {
		t.Split = 1
	}

	active := tc.Active
	if active == nil {
		active = defaults.Active
	}
	t.Active = active != nil && *active

	enabled := tc.Estimators
	if enabled == nil {
		enabled = defaults.Estimators
	}
	t.Estimators = make(map[string]decimal.Decimal, len(enabled))
	one := decimal.NewFromInt(1)
	for id, multiplier := range enabled {
		if multiplier == nil {
			// Multiplier is optional, default 1.
			t.Estimators[id] = one
			continue
		}
		t.Estimators[id] = *multiplier
	}
	return t
}

func pick(value, fallback *decimal.Decimal) *decimal.Decimal {
	if value != nil {
		return value
	}
	return fallback
}
