package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"pairspread/internal/domain/models"
	domrepo "pairspread/internal/domain/repository"
	mid "pairspread/internal/middleware"
	applogger "pairspread/pkg/logger"
	pkgmetrics "pairspread/pkg/metrics"

	"github.com/samber/lo"
)

// TickSink receives aligned pair ticks.
type TickSink interface {
	OnTick(ctx context.Context, tick models.PairTick) (models.Decision, error)
}

const (
	legA = iota
	legB
)

type legRef struct {
	pair string
	leg  int
}

// bucketState is the open time bucket of one pair.
type bucketState struct {
	mu      sync.Mutex
	open    bool
	start   time.Time
	prices  [2]*float64
	flushed time.Time // start of the last emitted bucket
}

// take records a price and returns the previous bucket when this trade opens a new one.
// late is true for a trade whose bucket was already emitted.
func (b *bucketState) take(pair string, leg int, bucket time.Time, price float64) (prev *models.PairTick, late bool) {
	if !b.flushed.IsZero() && !bucket.After(b.flushed) {
		return nil, true
	}
	if b.open && bucket.Before(b.start) {
		return nil, true
	}
	if b.open && bucket.After(b.start) {
		prev = b.close(pair)
	}
	if !b.open {
		b.open = true
		b.start = bucket
	}
	p := price
	b.prices[leg] = &p
	return prev, false
}

func (b *bucketState) close(pair string) *models.PairTick {
	if !b.open {
		return nil
	}
	tick := &models.PairTick{Pair: pair, Time: b.start, PriceA: b.prices[legA], PriceB: b.prices[legB]}
	b.flushed = b.start
	b.open = false
	b.prices = [2]*float64{}
	return tick
}

// PairAligner joins single-symbol trades into paired ticks by time bucket.
// The last trade of a leg within a bucket is its sample. A leg without trades
// in a bucket is emitted as absent rather than carried forward.
type PairAligner struct {
	step    time.Duration
	legs    map[string][]legRef
	states  map[string]*bucketState
	sink    TickSink
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewPairAligner(tf domrepo.Timeframe, pairs []models.Pair, sink TickSink, metrics domrepo.Metrics, l *applogger.Logger) *PairAligner {
	if l == nil {
		l = applogger.Nop()
	}
	if metrics == nil {
		metrics = pkgmetrics.Discard()
	}
	a := &PairAligner{
		step:    domrepo.NormalizeTimeframe(string(tf)).Duration(),
		legs:    make(map[string][]legRef),
		states:  make(map[string]*bucketState, len(pairs)),
		sink:    sink,
		metrics: metrics,
		l:       l.With(applogger.String("component", "aligner")),
	}
	for _, p := range pairs {
		a.legs[p.SymbolA] = append(a.legs[p.SymbolA], legRef{pair: p.Name, leg: legA})
		a.legs[p.SymbolB] = append(a.legs[p.SymbolB], legRef{pair: p.Name, leg: legB})
		a.states[p.Name] = &bucketState{}
	}
	return a
}

// Symbols returns every symbol the aligner listens to.
func (a *PairAligner) Symbols() []string {
	return lo.Keys(a.legs)
}

// Process routes a trade to every pair that has its symbol as a leg.
// Sink failures are logged; the tick has already been applied by then.
func (a *PairAligner) Process(ctx context.Context, t *models.Trade) error {
	if t == nil {
		return mid.ErrInvalidTrade
	}
	refs, ok := a.legs[t.Symbol]
	if !ok {
		return nil
	}
	bucket := t.Time.Truncate(a.step)
	for _, r := range refs {
		st := a.states[r.pair]
		st.mu.Lock()
		prev, late := st.take(r.pair, r.leg, bucket, t.Price)
		if late {
			a.metrics.RecordError("aligner_late")
		}
		if prev != nil {
			a.emit(ctx, *prev)
		}
		st.mu.Unlock()
	}
	return nil
}

// Flush emits every open bucket.
func (a *PairAligner) Flush(ctx context.Context) {
	for pair, st := range a.states {
		st.mu.Lock()
		if tick := st.close(pair); tick != nil {
			a.emit(ctx, *tick)
		}
		st.mu.Unlock()
	}
}

func (a *PairAligner) emit(ctx context.Context, tick models.PairTick) {
	if _, err := a.sink.OnTick(ctx, tick); err != nil {
		if errors.Is(err, ErrDispatch) {
			a.l.Warn("signal dispatch failed", applogger.String("pair", tick.Pair), applogger.Error(err))
			return
		}
		a.metrics.RecordError("aligner_emit")
		a.l.Error("pair tick rejected", applogger.String("pair", tick.Pair), applogger.Error(err))
	}
}

var _ mid.Proc = (*PairAligner)(nil)
