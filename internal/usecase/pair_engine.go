package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pairspread/internal/domain/models"
	domrepo "pairspread/internal/domain/repository"
	"pairspread/internal/services/sizing"
	"pairspread/internal/services/spread"
	applogger "pairspread/pkg/logger"
	pkgmetrics "pairspread/pkg/metrics"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrUnknownPair = errors.New("unknown pair")
	ErrDispatch    = errors.New("signal dispatch failed")
)

// Dispatcher delivers actionable signal events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *models.SignalEvent) error
}

type pairSlot struct {
	pair models.Pair
	mu   sync.Mutex // guards est
	emit sync.Mutex // keeps dispatch in decision order
	est  *spread.Estimator
}

// PairEngine owns one estimator per configured pair. Ticks for one pair are serialized;
// different pairs proceed independently.
type PairEngine struct {
	slots     map[string]*pairSlot
	pairs     []models.Pair
	alloc     *sizing.Allocator
	dispatch  Dispatcher
	snapshots domrepo.SnapshotCache
	metrics   domrepo.Metrics
	l         *applogger.Logger
	now       func() time.Time
}

// NewPairEngine builds an estimator for every pair. snapshots may be nil; a nil metrics discards.
func NewPairEngine(
	cfg spread.Config,
	pairs []models.Pair,
	alloc *sizing.Allocator,
	dispatch Dispatcher,
	snapshots domrepo.SnapshotCache,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) (*PairEngine, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("pair engine: no pairs configured")
	}
	if l == nil {
		l = applogger.Nop()
	}
	if metrics == nil {
		metrics = pkgmetrics.Discard()
	}
	obs := NewLogObserver(l, metrics)

	e := &PairEngine{
		slots:     make(map[string]*pairSlot, len(pairs)),
		pairs:     append([]models.Pair(nil), pairs...),
		alloc:     alloc,
		dispatch:  dispatch,
		snapshots: snapshots,
		metrics:   metrics,
		l:         l,
		now:       time.Now,
	}
	for _, p := range pairs {
		if _, dup := e.slots[p.Name]; dup {
			return nil, fmt.Errorf("pair engine: duplicate pair %q", p.Name)
		}
		est, err := spread.New(cfg, spread.WithPair(p.Name), spread.WithObserver(obs))
		if err != nil {
			return nil, fmt.Errorf("pair engine: %s: %w", p.Name, err)
		}
		e.slots[p.Name] = &pairSlot{pair: p, est: est}
	}
	return e, nil
}

func (e *PairEngine) slot(pair string) (*pairSlot, error) {
	s, ok := e.slots[pair]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPair, pair)
	}
	return s, nil
}

// OnTick feeds one paired tick to the pair's estimator. Actionable decisions are dispatched
// as signal events. The decision is returned even when dispatch fails; the error then wraps ErrDispatch.
func (e *PairEngine) OnTick(ctx context.Context, tick models.PairTick) (models.Decision, error) {
	s, err := e.slot(tick.Pair)
	if err != nil {
		return models.Decision{}, err
	}
	start := time.Now()
	pa, pb := tick.Prices()

	s.mu.Lock()
	d := s.est.Ingest(pa, pb, tick.Time)
	snap := s.est.Snapshot()
	s.emit.Lock()
	s.mu.Unlock()
	defer s.emit.Unlock()

	e.metrics.RecordTick(tick.Pair)
	if d.Ready {
		e.metrics.RecordZScore(tick.Pair, d.ZScore)
		e.metrics.RecordHedgeRatio(tick.Pair, d.HedgeRatio)
	}

	var errs []error
	if d.Signal != models.Hold {
		e.metrics.RecordSignal(tick.Pair, d.Signal)
		ev := &models.SignalEvent{ID: uuid.New(), Decision: d, EmittedAt: e.now().UTC()}
		if d.Signal.IsEntry() && e.alloc != nil {
			ev.Allocation = e.alloc.Allocate(s.pair.Capital, d)
		}
		if e.dispatch != nil {
			if err := e.dispatch.Dispatch(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if e.snapshots != nil && accepted(d) {
		if err := e.snapshots.Put(ctx, &snap); err != nil {
			e.metrics.RecordError("snapshot_cache")
			e.l.Warn("snapshot cache put failed", applogger.String("pair", tick.Pair), applogger.Error(err))
		}
	}
	e.metrics.RecordLatency("on_tick", time.Since(start).Seconds())

	if len(errs) > 0 {
		return d, fmt.Errorf("%w: %w", ErrDispatch, errors.Join(errs...))
	}
	return d, nil
}

// accepted reports whether the tick reached the estimator state.
func accepted(d models.Decision) bool {
	return d.Reason != models.ReasonMissingPrice && d.Reason != models.ReasonStale
}

// Snapshot returns the live state of one pair.
func (e *PairEngine) Snapshot(pair string) (models.Snapshot, error) {
	s, err := e.slot(pair)
	if err != nil {
		return models.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.est.Snapshot(), nil
}

// Snapshots returns every pair's state in configuration order.
func (e *PairEngine) Snapshots() []models.Snapshot {
	return lo.Map(e.pairs, func(p models.Pair, _ int) models.Snapshot {
		snap, _ := e.Snapshot(p.Name)
		return snap
	})
}

// Pairs returns the configured pairs.
func (e *PairEngine) Pairs() []models.Pair {
	return append([]models.Pair(nil), e.pairs...)
}

// Has reports whether pair is configured.
func (e *PairEngine) Has(pair string) bool {
	_, ok := e.slots[pair]
	return ok
}

// Reset discards all history of one pair and flattens its position. No exit signal is emitted.
func (e *PairEngine) Reset(ctx context.Context, pair string) error {
	s, err := e.slot(pair)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.est.Reset()
	snap := s.est.Snapshot()
	s.mu.Unlock()

	e.l.Info("estimator reset", applogger.String("pair", pair))
	if e.snapshots != nil {
		if err := e.snapshots.Put(ctx, &snap); err != nil {
			return fmt.Errorf("reset %s: %w", pair, err)
		}
	}
	return nil
}
