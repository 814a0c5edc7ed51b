package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"pairspread/internal/domain/models"
	domrepo "pairspread/internal/domain/repository"
	applogger "pairspread/pkg/logger"
)

var ErrInvalidTrade = errors.New("invalid trade")

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, t *models.Trade) error
}

// RealtimePipeline sits between a trade source and the aligner.
// It validates, throttles per symbol, and buffers trades while downstream fails.
type RealtimePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	l       *applogger.Logger
	maxRPS  int
	bufSize int
	bufCh   chan *models.Trade

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastSeen map[string]time.Time // per-symbol last accepted time

	transform func(*models.Trade) *models.Trade
	now       func() time.Time
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS sets the max trades per second per symbol. Zero disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size used while downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a hook that rewrites trades before throttling, e.g. symbol aliasing.
func WithTransform(fn func(*models.Trade) *models.Trade) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *RealtimePipeline) {
		if l != nil {
			p.l = l
		}
	}
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:     proc,
		metrics:  metrics,
		l:        applogger.Nop(),
		bufSize:  1000,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Trade, p.bufSize)
	return p
}

// Start launches background redelivery of buffered trades.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.redeliver(ctx)
}

func (p *RealtimePipeline) redeliver(ctx context.Context) {
	defer close(p.done)
	const minBackoff, maxBackoff = 50 * time.Millisecond, 2 * time.Second
	backoff := minBackoff
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.bufCh:
			if err := p.proc.Process(ctx, t); err == nil {
				backoff = minBackoff
				continue
			}
			p.metrics.RecordError("pipeline_flush")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			select {
			case p.bufCh <- t:
			default:
				p.metrics.RecordError("pipeline_buffer_drop")
			}
		}
	}
}

// Stop stops background redelivery and waits for it to exit. Buffered trades are discarded.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
	if n := len(p.bufCh); n > 0 {
		p.l.Warn("pipeline stopped with buffered trades", applogger.Int("buffered", n))
	}
}

// Buffered returns the number of trades awaiting redelivery.
func (p *RealtimePipeline) Buffered() int { return len(p.bufCh) }

// Process validates, throttles, and forwards a trade downstream, buffering it on downstream errors.
// Throttled trades are dropped without error.
func (p *RealtimePipeline) Process(ctx context.Context, t *models.Trade) error {
	start := time.Now()
	if err := ValidateTrade(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		t = p.transform(t)
		if err := ValidateTrade(t); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(t.Symbol) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}
	p.metrics.RecordLastPrice(t.Symbol, t.Price)

	if err := p.proc.Process(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- t:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
			p.l.Warn("pipeline buffer full, dropping trade", applogger.String("symbol", t.Symbol))
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// ValidateTrade rejects trades that cannot be used as price samples.
func ValidateTrade(t *models.Trade) error {
	switch {
	case t == nil:
		return fmt.Errorf("%w: nil", ErrInvalidTrade)
	case t.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidTrade)
	case t.Time.IsZero() || t.Time.Unix() <= 0:
		return fmt.Errorf("%w: non-positive timestamp", ErrInvalidTrade)
	case math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0:
		return fmt.Errorf("%w: price %v", ErrInvalidTrade, t.Price)
	case math.IsNaN(t.Volume) || t.Volume < 0:
		return fmt.Errorf("%w: volume %v", ErrInvalidTrade, t.Volume)
	}
	return nil
}

func (p *RealtimePipeline) allow(symbol string) bool {
	if p.maxRPS <= 0 {
		return true
	}
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[symbol]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
