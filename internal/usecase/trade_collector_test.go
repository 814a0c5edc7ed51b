package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pairspread/internal/domain/models"
	mid "pairspread/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedStream serves one batch of trades per Read and then fails, forcing a reconnect.
type scriptedStream struct {
	mu         sync.Mutex
	batches    [][]*models.Trade
	reads      int
	reconnects atomic.Int32
	connected  atomic.Bool
}

func (s *scriptedStream) Connect(context.Context) error {
	s.connected.Store(true)
	return nil
}

func (s *scriptedStream) Subscribe(context.Context) error { return nil }

func (s *scriptedStream) Read(ctx context.Context) (<-chan *models.Trade, <-chan error) {
	s.mu.Lock()
	var batch []*models.Trade
	if s.reads < len(s.batches) {
		batch = s.batches[s.reads]
	}
	s.reads++
	s.mu.Unlock()

	trades := make(chan *models.Trade, len(batch))
	errs := make(chan error, 1)
	for _, t := range batch {
		trades <- t
	}
	go func() {
		if batch == nil {
			<-ctx.Done()
			close(trades)
			close(errs)
			return
		}
		// let the consumer drain the batch before failing
		for len(trades) > 0 {
			time.Sleep(time.Millisecond)
		}
		errs <- errors.New("connection reset")
		close(trades)
		close(errs)
	}()
	return trades, errs
}

func (s *scriptedStream) Reconnect(context.Context) error {
	s.reconnects.Add(1)
	return nil
}

func (s *scriptedStream) Close() error {
	s.connected.Store(false)
	return nil
}

func (s *scriptedStream) IsConnected() bool { return s.connected.Load() }

func TestTradeCollectorReconnects(t *testing.T) {
	stream := &scriptedStream{batches: [][]*models.Trade{
		{tr("KO", 0, 61), tr("PEP", 0, 170)},
		{tr("KO", time.Second, 62)},
	}}
	var count atomic.Int32
	m := newMetrics()
	pipe := mid.NewRealtimePipeline(procFunc(func(context.Context, *models.Trade) error {
		count.Add(1)
		return nil
	}), m)
	c := NewTradeCollector(stream, pipe, m, nil)

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.IsConnected())

	assert.Eventually(t, func() bool { return count.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, stream.reconnects.Load(), int32(2))

	require.NoError(t, c.Shutdown(context.Background()))
	assert.False(t, c.IsConnected())
}
