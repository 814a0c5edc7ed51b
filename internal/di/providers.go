package di

import (
	"context"
	"fmt"
	"time"

	"pairspread/internal/domain/repository"
	"pairspread/internal/handler/api"
	mid "pairspread/internal/middleware"
	internalrepo "pairspread/internal/repository"
	"pairspread/internal/service/finnhub"
	"pairspread/internal/service/ratelimit"
	"pairspread/internal/services/sizing"
	"pairspread/internal/usecase"
	"pairspread/pkg/cache"
	pkgch "pairspread/pkg/clickhouse"
	"pairspread/pkg/config"
	xhttp "pairspread/pkg/http"
	pkgkafka "pairspread/pkg/kafka"
	applogger "pairspread/pkg/logger"
	"pairspread/pkg/metrics"
	"pairspread/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// HealthChecks maps a dependency name to its health check.
type HealthChecks map[string]api.HealthCheck

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	pkgkafka.SetMetricsRegisterer(prometheus.DefaultRegisterer)
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when history is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSignalStore creates the signal history store and ensures its table exists.
func ProvideSignalStore(client *pkgch.Client, l *applogger.Logger) (repository.SignalStore, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseSignalStore(client, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideCache creates a memory tier in front of Redis, or nil when Redis is disabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Redis.L1Size),
		cache.WithLayeredMemoryTTL(cfg.Redis.L1TTL),
	), nil
}

// ProvideSnapshotCache shares the latest snapshot per pair through the cache.
func ProvideSnapshotCache(c cache.Service, cfg *config.Config) repository.SnapshotCache {
	if c == nil {
		return nil
	}
	return internalrepo.NewSnapshotCache(c, cfg.Redis.SnapshotTTL)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when signals are not published.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.PublishSignals() {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher wraps the producer for the signals topic.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)
}

func ProvideSignalDispatcher(store repository.SignalStore, pub repository.SignalPublisher, m repository.Metrics) *usecase.SignalDispatcher {
	return usecase.NewSignalDispatcher(store, pub, m)
}

func ProvideAllocator(cfg *config.Config) *sizing.Allocator {
	return sizing.NewAllocator(cfg.Estimator.CapitalFraction, 8)
}

// ProvidePairEngine builds one estimator per configured pair.
func ProvidePairEngine(
	cfg *config.Config,
	alloc *sizing.Allocator,
	dispatch usecase.Dispatcher,
	snapshots repository.SnapshotCache,
	m repository.Metrics,
	l *applogger.Logger,
) (*usecase.PairEngine, error) {
	return usecase.NewPairEngine(cfg.Estimator, cfg.PairModels(), alloc, dispatch, snapshots, m, l)
}

// ProvidePairAligner buckets leg trades into paired ticks for the engine.
func ProvidePairAligner(cfg *config.Config, sink usecase.TickSink, m repository.Metrics, l *applogger.Logger) *usecase.PairAligner {
	tf := repository.NormalizeTimeframe(cfg.Aligner.Timeframe)
	return usecase.NewPairAligner(tf, cfg.PairModels(), sink, m, l)
}

// ProvidePipeline validates and throttles trades before alignment.
func ProvidePipeline(cfg *config.Config, aligner *usecase.PairAligner, m repository.Metrics, l *applogger.Logger) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(aligner, m,
		mid.WithMaxRPS(cfg.Aligner.MaxRPS),
		mid.WithBufferSize(2000),
		mid.WithLogger(l),
	)
}

// ProvideTradeCollector creates the Finnhub collector, or nil for other sources.
func ProvideTradeCollector(
	cfg *config.Config,
	pipe *mid.RealtimePipeline,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.TradeCollector {
	if cfg.Source != config.SourceFinnhub {
		return nil
	}
	stream := finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Symbols(),
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		l,
	)
	return usecase.NewTradeCollector(stream, pipe, m, l)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil for other sources.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Source != config.SourceKafka {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceHook())
	return consumer, nil
}

// ProvideKafkaHandlers returns the handlers for the trades topic and, when set, the pair ticks topic.
func ProvideKafkaHandlers(
	cfg *config.Config,
	pipe *mid.RealtimePipeline,
	engine *usecase.PairEngine,
	m repository.Metrics,
	l *applogger.Logger,
) []pkgkafka.MessageHandler {
	if cfg.Source != config.SourceKafka {
		return nil
	}
	handlers := []pkgkafka.MessageHandler{
		usecase.NewKafkaTradesHandler(cfg.Kafka.TicksTopic, pipe, m),
	}
	if cfg.Kafka.PairTicksTopic != "" {
		handlers = append(handlers, usecase.NewKafkaPairTicksHandler(cfg.Kafka.PairTicksTopic, engine, m, l))
	}
	return handlers
}

func ProvideSignalsQuery(store repository.SignalStore, c cache.Service, cfg *config.Config, l *applogger.Logger) *usecase.SignalsQuery {
	return usecase.NewSignalsQuery(store, c, cfg.API.CacheTTL, l)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(float64(cfg.API.RateLimit.Capacity), cfg.API.RateLimit.RefillPerSecond)
}

// ProvideHealthChecks collects health checks for every enabled dependency.
func ProvideHealthChecks(store repository.SignalStore, c cache.Service, collector *usecase.TradeCollector) HealthChecks {
	checks := HealthChecks{}
	if store != nil {
		checks["clickhouse"] = store.Health
	}
	if c != nil {
		checks["cache"] = func(ctx context.Context) error {
			_, err := c.Exists(ctx, "healthz")
			return err
		}
	}
	if collector != nil {
		checks["finnhub"] = func(context.Context) error {
			if !collector.IsConnected() {
				return fmt.Errorf("stream disconnected")
			}
			return nil
		}
	}
	return checks
}

func ProvidePairsHandler(
	l *applogger.Logger,
	engine *usecase.PairEngine,
	signals *usecase.SignalsQuery,
	snapshots repository.SnapshotCache,
	limiter *ratelimit.Limiter,
	checks HealthChecks,
) *api.PairsHandler {
	return api.NewPairsHandler(l, engine, signals, snapshots, limiter, checks)
}

// ProvideHTTPServer builds the Echo server with the scrape endpoint when metrics are enabled.
func ProvideHTTPServer(cfg *config.Config, h *api.PairsHandler, l *applogger.Logger) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return xhttp.NewServer(h, l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(path, prometheus.DefaultRegisterer, prometheus.DefaultGatherer),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	aligner *usecase.PairAligner,
	pipe *mid.RealtimePipeline,
	collector *usecase.TradeCollector,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	dispatcher *usecase.SignalDispatcher,
	chClient *pkgch.Client,
	c cache.Service,
) *server.App {
	return server.New(cfg, l, server.Components{
		HTTP:          srv,
		Aligner:       aligner,
		Pipeline:      pipe,
		Collector:     collector,
		Consumer:      consumer,
		KafkaHandlers: handlers,
		Dispatcher:    dispatcher,
		ClickHouse:    chClient,
		Cache:         c,
	})
}
