package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OUParams are the fitted Ornstein-Uhlenbeck parameters of a spread.
type OUParams struct {
	Lambda float64 `json:"lambda"`
	Mu     float64 `json:"mu"`
	Sigma  float64 `json:"sigma"`
	// MeanReverting is false when the last successful fit had a non-negative slope.
	MeanReverting bool `json:"mean_reverting"`
	// Fitted is false while the parameters are fallback defaults.
	Fitted bool `json:"fitted"`
}

// Decision reasons for ticks that did not reach the signal step.
const (
	ReasonMissingPrice = "missing_price"
	ReasonStale        = "stale"
	ReasonWarmup       = "warmup"
	ReasonNoHedge      = "no_hedge_ratio"
	ReasonOverflow     = "numeric_overflow"
)

// Decision is the outcome of ingesting one tick.
type Decision struct {
	Pair       string    `json:"pair"`
	Time       time.Time `json:"t"`
	Signal     Signal    `json:"signal"`
	Position   Position  `json:"position"`
	Ready      bool      `json:"ready"`
	Reason     string    `json:"reason,omitempty"`
	PriceA     float64   `json:"price_a"`
	PriceB     float64   `json:"price_b"`
	HedgeRatio float64   `json:"hedge_ratio"`
	Spread     float64   `json:"spread"`
	ZScore     float64   `json:"z"`
	Threshold  float64   `json:"threshold"`
	OU         OUParams  `json:"ou"`
}

// Snapshot is the externally visible state of one estimator.
type Snapshot struct {
	Pair       string    `json:"pair"`
	Lookback   int       `json:"lookback"`
	Samples    int       `json:"samples"`
	Ticks      int64     `json:"ticks"`
	Ready      bool      `json:"ready"`
	HedgeValid bool      `json:"hedge_valid"`
	HedgeRatio float64   `json:"hedge_ratio"`
	Spread     float64   `json:"spread"`
	ZScore     float64   `json:"z"`
	Threshold  float64   `json:"threshold"`
	OU         OUParams  `json:"ou"`
	Position   Position  `json:"position"`
	LastTick   time.Time `json:"last_tick"`
}

// Allocation is the recommended quantity split between the two legs of an entry.
type Allocation struct {
	SideA     string          `json:"side_a"`
	SideB     string          `json:"side_b"`
	QtyA      decimal.Decimal `json:"qty_a"`
	QtyB      decimal.Decimal `json:"qty_b"`
	NotionalA decimal.Decimal `json:"notional_a"`
	NotionalB decimal.Decimal `json:"notional_b"`
}

// SignalEvent is an actionable decision as stored and published.
type SignalEvent struct {
	ID uuid.UUID `json:"id"`
	Decision
	Allocation *Allocation `json:"allocation,omitempty"`
	EmittedAt  time.Time   `json:"emitted_at"`
}

// SignalQuery filters the signal history.
type SignalQuery struct {
	Pair   string
	From   time.Time
	To     time.Time
	Signal *Signal
	Limit  int
}
