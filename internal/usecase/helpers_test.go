package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"pairspread/internal/domain/models"
	"pairspread/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

var t0 = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

func newMetrics() *metrics.Recorder {
	return metrics.NewWithRegisterer(prometheus.NewRegistry())
}

func ptr(v float64) *float64 { return &v }

// simulatePair returns a cointegrated pair: A = 2B + 10 + AR(1) noise.
func simulatePair(seed int64, n int) (a, b []float64) {
	rng := rand.New(rand.NewSource(seed))
	s := 0.0
	for i := 0; i < n; i++ {
		pb := 100 + 10*math.Sin(float64(i)/15)
		s = 0.8*s + rng.NormFloat64()
		a = append(a, 2*pb+10+s)
		b = append(b, pb)
	}
	return a, b
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []*models.SignalEvent
	err    error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, ev *models.SignalEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

type fakeSink struct {
	mu    sync.Mutex
	ticks []models.PairTick
	err   error
}

func (f *fakeSink) OnTick(_ context.Context, tick models.PairTick) (models.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, tick)
	return models.Decision{Pair: tick.Pair}, f.err
}

type fakeStore struct {
	mu      sync.Mutex
	stored  []*models.SignalEvent
	queries int
	err     error
	closed  bool
}

func (f *fakeStore) Init(context.Context) error { return nil }

func (f *fakeStore) Store(_ context.Context, ev *models.SignalEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, ev)
	return nil
}

func (f *fakeStore) StoreBatch(ctx context.Context, evs []*models.SignalEvent) error {
	for _, ev := range evs {
		if err := f.Store(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) Query(_ context.Context, q models.SignalQuery) ([]*models.SignalEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.SignalEvent
	for _, ev := range f.stored {
		if ev.Pair == q.Pair && len(out) < q.Limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) Health(context.Context) error { return nil }

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*models.SignalEvent
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, ev *models.SignalEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, ev)
	return nil
}

func (f *fakePublisher) PublishBatch(ctx context.Context, evs []*models.SignalEvent) error {
	for _, ev := range evs {
		if err := f.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakePublisher) Close() error { return nil }

var errBoom = errors.New("boom")
