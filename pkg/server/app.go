package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mid "pairspread/internal/middleware"
	"pairspread/internal/usecase"
	"pairspread/pkg/cache"
	pkgch "pairspread/pkg/clickhouse"
	"pairspread/pkg/config"
	xhttp "pairspread/pkg/http"
	pkgkafka "pairspread/pkg/kafka"
	applogger "pairspread/pkg/logger"
)

// Components are the long-lived parts the App starts and stops.
// Collector, Consumer, ClickHouse and Cache are nil when their backend is disabled.
type Components struct {
	HTTP          *xhttp.Server
	Aligner       *usecase.PairAligner
	Pipeline      *mid.RealtimePipeline
	Collector     *usecase.TradeCollector
	Consumer      *pkgkafka.Consumer
	KafkaHandlers []pkgkafka.MessageHandler
	Dispatcher    *usecase.SignalDispatcher
	ClickHouse    *pkgch.Client
	Cache         cache.Service
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	l   *applogger.Logger
	Components
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, Components: c}
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done or the HTTP server fails.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.start(runCtx); err != nil {
		_ = a.shutdown(context.Background())
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err := <-a.HTTP.Errors():
		a.l.Error("http server error", applogger.Error(err))
		runErr = err
	}

	return errors.Join(runErr, a.shutdown(context.Background()))
}

func (a *App) start(ctx context.Context) error {
	switch {
	case a.Collector != nil:
		if err := a.Collector.Start(ctx); err != nil {
			return fmt.Errorf("start collector: %w", err)
		}
		a.l.Info("collector started", applogger.Strings("symbols", a.cfg.Symbols()))
	case a.Pipeline != nil:
		a.Pipeline.Start(ctx)
	}

	if a.Consumer != nil && len(a.KafkaHandlers) > 0 {
		for _, h := range a.KafkaHandlers {
			a.Consumer.RegisterHandler(h)
			a.l.Info("kafka handler registered", applogger.String("topic", h.Topic()))
		}
		if err := a.Consumer.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		a.l.Info("kafka consumer started", applogger.Strings("brokers", a.cfg.Kafka.Brokers))
	}

	if err := a.HTTP.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	a.l.Info("http server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Int("pairs", len(a.cfg.Pairs)),
		applogger.String("source", a.cfg.Source),
	)
	return nil
}

// shutdown stops intake first, drains open buckets, then closes the sinks.
func (a *App) shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.Consumer != nil {
		if err := a.Consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.Collector != nil {
		if err := a.Collector.Shutdown(ctx); err != nil {
			a.l.Warn("collector stop error", applogger.Error(err))
		}
	} else if a.Pipeline != nil {
		a.Pipeline.Stop()
	}

	if a.Aligner != nil {
		a.Aligner.Flush(ctx)
	}

	if a.HTTP != nil {
		if err := a.HTTP.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if a.Dispatcher != nil {
		if err := a.Dispatcher.Close(); err != nil {
			a.l.Warn("dispatcher close error", applogger.Error(err))
		}
	}
	if a.ClickHouse != nil {
		if err := a.ClickHouse.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
