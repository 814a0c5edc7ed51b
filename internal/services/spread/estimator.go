package spread

import (
	"fmt"
	"math"
	"time"

	"pairspread/internal/domain/models"
)

// Estimator maintains the statistical model of one pair's spread and turns
// each paired tick into a Signal. It is not safe for concurrent use; callers
// serialize Ingest per pair.
type Estimator struct {
	cfg  Config
	pair string
	obs  Observer

	a, b    *Window[float64]
	spreads *Window[float64]

	hedge   float64
	hedgeOK bool
	ou      models.OUParams
	spread  float64
	z       float64
	theta   float64
	pos     models.Position

	last  time.Time
	ticks int64

	scratch scratch
}

// scratch holds reusable buffers so Ingest does not allocate per tick.
type scratch struct {
	x, y, r, s []float64
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithObserver injects an observer for fallbacks and transitions.
func WithObserver(o Observer) Option {
	return func(e *Estimator) {
		if o != nil {
			e.obs = o
		}
	}
}

// WithPair labels the estimator; the name is copied into every Decision.
func WithPair(name string) Option {
	return func(e *Estimator) { e.pair = name }
}

// New validates cfg and builds an estimator in the Flat position.
func New(cfg Config, opts ...Option) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Estimator{
		cfg:     cfg,
		obs:     NopObserver{},
		a:       NewWindow[float64](cfg.Lookback),
		b:       NewWindow[float64](cfg.Lookback),
		spreads: NewWindow[float64](cfg.Lookback),
		scratch: scratch{
			x: make([]float64, 0, cfg.Lookback),
			y: make([]float64, 0, cfg.Lookback),
			r: make([]float64, 0, cfg.Lookback),
			s: make([]float64, 0, cfg.Lookback),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the configuration the estimator was built with.
func (e *Estimator) Config() Config { return e.cfg }

// Ingest processes one paired observation. A price that is not positive and
// finite counts as absent and makes the call a no-op, as does a zero timestamp
// or one not after the previous accepted one. Until both price windows are full the
// result is Hold and the hedge ratio and OU parameters are left untouched.
func (e *Estimator) Ingest(priceA, priceB float64, ts time.Time) models.Decision {
	if !validPrice(priceA) || !validPrice(priceB) {
		return e.decision(ts, models.Hold, models.ReasonMissingPrice, 0, 0)
	}
	if ts.IsZero() || (!e.last.IsZero() && !ts.After(e.last)) {
		return e.decision(ts, models.Hold, models.ReasonStale, 0, 0)
	}

	e.a.Push(priceA)
	e.b.Push(priceB)
	e.last = ts
	e.ticks++

	if !e.a.Full() || !e.b.Full() {
		e.obs.Degenerate(e.pair, InsufficientData, fmt.Sprintf("%d/%d samples", e.a.Len(), e.cfg.Lookback))
		return e.decision(ts, models.Hold, models.ReasonWarmup, priceA, priceB)
	}

	e.updateHedge()
	if !e.hedgeOK {
		return e.decision(ts, models.Hold, models.ReasonNoHedge, priceA, priceB)
	}

	s := priceA - e.hedge*priceB
	if !finite(s) {
		e.obs.Degenerate(e.pair, NumericOverflow, "spread")
		return e.decision(ts, models.Hold, models.ReasonOverflow, priceA, priceB)
	}
	e.spread = s
	e.spreads.Push(s)

	e.updateOU()
	e.theta = adaptiveThreshold(e.ou.Sigma, e.cfg)

	z, overflow := zScore(e.spread, e.ou.Mu, e.ou.Sigma, e.cfg)
	if overflow {
		e.obs.Degenerate(e.pair, NumericOverflow, "z-score")
	}
	e.z = z

	sig, next := transition(e.pos, e.z, e.theta, e.cfg.ExitZ, entryAllowed(e.cfg, e.ou))
	prev := e.pos
	e.pos = next

	d := e.decision(ts, sig, "", priceA, priceB)
	if prev != next {
		e.obs.Transition(e.pair, prev, next, d)
	}
	return d
}

func (e *Estimator) updateHedge() {
	x := e.b.Values(e.scratch.x)
	y := e.a.Values(e.scratch.y)
	e.scratch.x, e.scratch.y = x, y

	l, ok := fitLine(x, y)
	if !ok {
		detail := "hedge ratio: no variance in leg B, keeping previous"
		if !e.hedgeOK {
			detail = "hedge ratio: no variance in leg B, no previous value"
		}
		e.obs.Degenerate(e.pair, DegenerateRegression, detail)
		return
	}
	e.hedge = l.beta
	e.hedgeOK = true
}

func (e *Estimator) updateOU() {
	spreads := e.spreads.Values(e.scratch.s)
	e.scratch.s = spreads
	// a single spread takes the fallback path silently; InsufficientData is reserved for price warm-up
	fit, ok := fitOU(spreads, e.cfg, &e.scratch)
	if !ok {
		if e.spreads.Len() >= 2 {
			e.obs.Degenerate(e.pair, DegenerateRegression, "ou fit: no variance in lagged spread")
		}
		if !e.ou.Fitted {
			e.ou = fallbackOU(spreads, e.cfg)
		}
		return
	}
	if fit.muFallback {
		e.obs.Degenerate(e.pair, DegenerateRegression, "ou mu: flat slope, using window mean")
	}
	if fit.sigmaFallback && len(spreads) > 3 {
		e.obs.Degenerate(e.pair, NumericOverflow, "ou sigma: invalid residual variance")
	}
	e.ou = fit.params
}

// entryAllowed gates new positions on the fitted regime when RequireMeanReversion is set.
func entryAllowed(cfg Config, ou models.OUParams) bool {
	return !cfg.RequireMeanReversion || (ou.Fitted && ou.MeanReverting)
}

// transition applies the entry and exit rules. Open positions only ever return to Flat.
func transition(pos models.Position, z, theta, exitZ float64, allowEntry bool) (models.Signal, models.Position) {
	switch pos {
	case models.Flat:
		if !allowEntry || math.Abs(z) <= theta {
			return models.Hold, models.Flat
		}
		if z < 0 {
			return models.EnterLong, models.LongSpread
		}
		return models.EnterShort, models.ShortSpread
	case models.LongSpread, models.ShortSpread:
		if math.Abs(z) < exitZ {
			return models.Exit, models.Flat
		}
		return models.Hold, pos
	default:
		return models.Hold, pos
	}
}

func (e *Estimator) decision(ts time.Time, sig models.Signal, reason string, priceA, priceB float64) models.Decision {
	return models.Decision{
		Pair:       e.pair,
		Time:       ts,
		Signal:     sig,
		Position:   e.pos,
		Ready:      e.hedgeOK && e.a.Full(),
		Reason:     reason,
		PriceA:     priceA,
		PriceB:     priceB,
		HedgeRatio: e.hedge,
		Spread:     e.spread,
		ZScore:     e.z,
		Threshold:  e.theta,
		OU:         e.ou,
	}
}

// Snapshot returns the current model state.
func (e *Estimator) Snapshot() models.Snapshot {
	return models.Snapshot{
		Pair:       e.pair,
		Lookback:   e.cfg.Lookback,
		Samples:    e.a.Len(),
		Ticks:      e.ticks,
		Ready:      e.hedgeOK && e.a.Full(),
		HedgeValid: e.hedgeOK,
		HedgeRatio: e.hedge,
		Spread:     e.spread,
		ZScore:     e.z,
		Threshold:  e.theta,
		OU:         e.ou,
		Position:   e.pos,
		LastTick:   e.last,
	}
}

// Position returns the current position state.
func (e *Estimator) Position() models.Position { return e.pos }

// Reset drops all samples and fitted state and returns to Flat.
func (e *Estimator) Reset() {
	e.a.Reset()
	e.b.Reset()
	e.spreads.Reset()
	e.hedge, e.hedgeOK = 0, false
	e.ou = models.OUParams{}
	e.spread, e.z, e.theta = 0, 0, 0
	e.pos = models.Flat
	e.last = time.Time{}
	e.ticks = 0
}

func validPrice(p float64) bool { return p > 0 && !math.IsInf(p, 1) }
