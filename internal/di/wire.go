//go:build wireinject
// +build wireinject

package di

import (
	"pairspread/internal/usecase"
	"pairspread/pkg/config"
	"pairspread/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideSignalStore,
		ProvideSnapshotCache,
		ProvideSignalPublisher,

		// Use cases
		ProvideSignalDispatcher,
		wire.Bind(new(usecase.Dispatcher), new(*usecase.SignalDispatcher)),
		ProvideAllocator,
		ProvidePairEngine,
		wire.Bind(new(usecase.TickSink), new(*usecase.PairEngine)),
		ProvidePairAligner,
		ProvidePipeline,
		ProvideTradeCollector,
		ProvideKafkaHandlers,
		ProvideSignalsQuery,

		// HTTP
		ProvideRateLimiter,
		ProvideHealthChecks,
		ProvidePairsHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
