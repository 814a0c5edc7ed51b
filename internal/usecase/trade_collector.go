package usecase

import (
	"context"
	"sync"

	"pairspread/internal/domain/models"
	drepo "pairspread/internal/domain/repository"
	mid "pairspread/internal/middleware"
	applogger "pairspread/pkg/logger"
)

// TradeCollector reads trades from a market stream and pushes them through the pipeline.
type TradeCollector struct {
	stream  drepo.MarketStream
	pipe    *mid.RealtimePipeline
	metrics drepo.Metrics
	l       *applogger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTradeCollector creates a new TradeCollector instance.
func NewTradeCollector(stream drepo.MarketStream, pipe *mid.RealtimePipeline, metrics drepo.Metrics, l *applogger.Logger) *TradeCollector {
	if l == nil {
		l = applogger.Nop()
	}
	return &TradeCollector{stream: stream, pipe: pipe, metrics: metrics, l: l}
}

// IsConnected returns true if the market stream is connected.
func (c *TradeCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TradeCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.pipe.Start(ctx)

	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

// run consumes the stream and reconnects whenever it fails.
func (c *TradeCollector) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		trCh, errCh := c.stream.Read(ctx)
		c.consume(ctx, trCh, errCh)
		if ctx.Err() != nil {
			return
		}
		for {
			err := c.stream.Reconnect(ctx)
			if err == nil {
				c.l.Info("market stream reconnected")
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.metrics.RecordError("stream_reconnect")
			c.l.Warn("market stream reconnect failed", applogger.Error(err))
		}
	}
}

// consume returns when the stream closes or fails.
func (c *TradeCollector) consume(ctx context.Context, trCh <-chan *models.Trade, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err != nil {
				c.metrics.RecordError("stream")
				c.l.Warn("market stream error", applogger.Error(err))
				return
			}
			if !ok {
				errCh = nil
			}
		case t, ok := <-trCh:
			if !ok {
				return
			}
			if err := c.pipe.Process(ctx, t); err != nil {
				c.l.Debug("trade rejected", applogger.String("symbol", t.Symbol), applogger.Error(err))
			}
		}
	}
}

// Shutdown stops the reader, the pipeline and closes the stream.
func (c *TradeCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.stream.Close()
	c.wg.Wait()
	c.pipe.Stop()
	return err
}
