package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pairspread/internal/domain/models"
	domrepo "pairspread/internal/domain/repository"
	pkgmetrics "pairspread/pkg/metrics"
)

// SignalDispatcher fans a signal event out to the history store and the publisher.
// Either sink may be nil when its backend is disabled.
type SignalDispatcher struct {
	store   domrepo.SignalStore
	pub     domrepo.SignalPublisher
	metrics domrepo.Metrics
	timeout time.Duration
}

func NewSignalDispatcher(store domrepo.SignalStore, pub domrepo.SignalPublisher, metrics domrepo.Metrics) *SignalDispatcher {
	if metrics == nil {
		metrics = pkgmetrics.Discard()
	}
	return &SignalDispatcher{store: store, pub: pub, metrics: metrics, timeout: 5 * time.Second}
}

// Dispatch writes ev to every configured sink concurrently. Sink failures are joined.
func (d *SignalDispatcher) Dispatch(ctx context.Context, ev *models.SignalEvent) error {
	if ev == nil {
		return fmt.Errorf("signal event is nil")
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type result struct {
		backend string
		err     error
	}
	ch := make(chan result, 2)
	var wg sync.WaitGroup

	if d.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch <- result{"clickhouse", d.store.Store(ctx, ev)}
		}()
	}
	if d.pub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch <- result{"kafka", d.pub.Publish(ctx, ev)}
		}()
	}
	go func() { wg.Wait(); close(ch) }()

	var errs []error
	for r := range ch {
		if r.err != nil {
			d.metrics.RecordError("dispatch_" + r.backend)
			errs = append(errs, fmt.Errorf("%s: %w", r.backend, r.err))
			continue
		}
		d.metrics.RecordMessageSent(r.backend, ev.Pair)
	}
	d.metrics.RecordLatency("dispatch", time.Since(start).Seconds())
	return errors.Join(errs...)
}

// Close releases both sinks.
func (d *SignalDispatcher) Close() error {
	var errs []error
	if d.pub != nil {
		errs = append(errs, d.pub.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}
