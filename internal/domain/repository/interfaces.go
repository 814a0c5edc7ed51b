package repository

import (
	"context"

	"pairspread/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SignalPublisher fans actionable signals out to downstream consumers.
type SignalPublisher interface {
	Publish(ctx context.Context, ev *models.SignalEvent) error
	PublishBatch(ctx context.Context, evs []*models.SignalEvent) error
	Close() error
}

// SignalStore keeps the signal history.
type SignalStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, ev *models.SignalEvent) error
	StoreBatch(ctx context.Context, evs []*models.SignalEvent) error
	Query(ctx context.Context, q models.SignalQuery) ([]*models.SignalEvent, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// SnapshotCache holds the latest estimator snapshot per pair.
type SnapshotCache interface {
	Put(ctx context.Context, snap *models.Snapshot) error
	Get(ctx context.Context, pair string) (*models.Snapshot, error)
	GetMany(ctx context.Context, pairs []string) (map[string]*models.Snapshot, error)
}

type Metrics interface {
	RecordTick(pair string)
	RecordSignal(pair string, sig models.Signal)
	RecordDegeneracy(pair, kind string)
	RecordZScore(pair string, z float64)
	RecordHedgeRatio(pair string, beta float64)
	RecordMessageSent(backend, key string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
