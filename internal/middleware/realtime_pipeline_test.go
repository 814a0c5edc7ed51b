package middleware

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"pairspread/internal/domain/models"
	"pairspread/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProc struct {
	mu     sync.Mutex
	trades []*models.Trade
	fail   int // number of calls to fail before succeeding
}

func (r *recordingProc) Process(_ context.Context, t *models.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 {
		r.fail--
		return errors.New("downstream unavailable")
	}
	r.trades = append(r.trades, t)
	return nil
}

func (r *recordingProc) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trades)
}

func trade(sym string, price float64) *models.Trade {
	return &models.Trade{Symbol: sym, Time: time.Unix(1_700_000_000, 0), Price: price, Volume: 1}
}

func newPipeline(proc Proc, opts ...PipelineOption) *RealtimePipeline {
	return NewRealtimePipeline(proc, metrics.NewWithRegisterer(prometheus.NewRegistry()), opts...)
}

func TestValidateTrade(t *testing.T) {
	bad := map[string]*models.Trade{
		"nil":          nil,
		"empty symbol": {Time: time.Unix(1, 0), Price: 1},
		"zero time":    {Symbol: "KO", Price: 1},
		"zero price":   {Symbol: "KO", Time: time.Unix(1, 0)},
		"nan price":    {Symbol: "KO", Time: time.Unix(1, 0), Price: math.NaN()},
		"inf price":    {Symbol: "KO", Time: time.Unix(1, 0), Price: math.Inf(1)},
		"neg volume":   {Symbol: "KO", Time: time.Unix(1, 0), Price: 1, Volume: -1},
	}
	for name, tr := range bad {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateTrade(tr), ErrInvalidTrade)
		})
	}
	assert.NoError(t, ValidateTrade(trade("KO", 61.2)))
}

func TestPipelineRejectsInvalid(t *testing.T) {
	proc := &recordingProc{}
	p := newPipeline(proc)
	err := p.Process(context.Background(), trade("KO", -1))
	assert.ErrorIs(t, err, ErrInvalidTrade)
	assert.Zero(t, proc.count())
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	p := newPipeline(proc, WithMaxRPS(2))
	clock := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, trade("KO", 1)))
	require.NoError(t, p.Process(ctx, trade("KO", 2)))  // throttled
	require.NoError(t, p.Process(ctx, trade("PEP", 3))) // other symbol passes
	clock = clock.Add(600 * time.Millisecond)
	require.NoError(t, p.Process(ctx, trade("KO", 4)))

	assert.Equal(t, 3, proc.count())
}

func TestPipelineNoThrottleByDefault(t *testing.T) {
	proc := &recordingProc{}
	p := newPipeline(proc)
	for i := 0; i < 50; i++ {
		require.NoError(t, p.Process(context.Background(), trade("KO", 1)))
	}
	assert.Equal(t, 50, proc.count())
}

func TestPipelineTransform(t *testing.T) {
	proc := &recordingProc{}
	p := newPipeline(proc, WithTransform(func(tr *models.Trade) *models.Trade {
		cp := *tr
		cp.Symbol = "BINANCE:" + cp.Symbol
		return &cp
	}))
	require.NoError(t, p.Process(context.Background(), trade("BTC", 1)))
	assert.Equal(t, "BINANCE:BTC", proc.trades[0].Symbol)
}

func TestPipelineBuffersAndRedelivers(t *testing.T) {
	proc := &recordingProc{fail: 1}
	p := newPipeline(proc, WithBufferSize(4))
	ctx := context.Background()

	err := p.Process(ctx, trade("KO", 1))
	require.Error(t, err)
	assert.Equal(t, 1, p.Buffered())

	p.Start(ctx)
	defer p.Stop()

	assert.Eventually(t, func() bool { return proc.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, p.Buffered())
}

func TestPipelineStopIsIdempotent(t *testing.T) {
	p := newPipeline(&recordingProc{})
	p.Stop()
	p.Start(context.Background())
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}
