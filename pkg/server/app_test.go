package server

import (
	"context"
	"net"
	"testing"
	"time"

	"pairspread/internal/domain/models"
	"pairspread/internal/domain/repository"
	"pairspread/internal/services/sizing"
	"pairspread/internal/usecase"
	"pairspread/pkg/config"
	xhttp "pairspread/pkg/http"
	applogger "pairspread/pkg/logger"
	"pairspread/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noRoutes struct{}

func (noRoutes) RegisterRoutes(*echo.Echo) {}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("pairs:\n  - symbol_a: KO\n    symbol_b: PEP\n"))
	require.NoError(t, err)
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func newApp(t *testing.T, cfg *config.Config, port int) (*App, *usecase.PairEngine) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(reg)
	l := applogger.Nop()

	dispatcher := usecase.NewSignalDispatcher(nil, nil, m)
	engine, err := usecase.NewPairEngine(cfg.Estimator, cfg.PairModels(), sizing.NewAllocator(0.5, 0), dispatcher, nil, m, l)
	require.NoError(t, err)
	aligner := usecase.NewPairAligner(repository.TF1s, cfg.PairModels(), engine, m, l)

	srv := xhttp.NewServer(noRoutes{}, l,
		xhttp.WithHost("127.0.0.1"),
		xhttp.WithPort(port),
		xhttp.WithMetrics("", reg, reg),
	)
	return New(cfg, l, Components{HTTP: srv, Aligner: aligner, Dispatcher: dispatcher}), engine
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestRunContextFlushesOpenBucketsOnShutdown(t *testing.T) {
	cfg := testConfig(t)
	app, engine := newApp(t, cfg, freePort(t))

	ts := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	require.NoError(t, app.Aligner.Process(context.Background(), &models.Trade{Symbol: "KO", Time: ts, Price: 60}))
	require.NoError(t, app.Aligner.Process(context.Background(), &models.Trade{Symbol: "PEP", Time: ts, Price: 170}))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, app.RunContext(ctx))

	snap, err := engine.Snapshot("KO/PEP")
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Ticks)
	assert.Equal(t, ts, snap.LastTick)
}

func TestRunContextReturnsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	app, _ := newApp(t, cfg, ln.Addr().(*net.TCPAddr).Port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, app.RunContext(ctx))
}
