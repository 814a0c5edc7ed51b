package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	models "pairspread/internal/domain/models"
	domrepo "pairspread/internal/domain/repository"
	"pairspread/internal/service/ratelimit"
	"pairspread/internal/usecase"
	xhttp "pairspread/pkg/http"
	xlogger "pairspread/pkg/logger"
	"pairspread/pkg/util"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// PairsHandler serves the estimator state, signal history and manual tick ingestion.
type PairsHandler struct {
	logger    *xlogger.Logger
	engine    *usecase.PairEngine
	signals   *usecase.SignalsQuery
	snapshots domrepo.SnapshotCache
	limiter   *ratelimit.Limiter
	checks    map[string]HealthCheck
	now       func() time.Time
}

// NewPairsHandler wires the handler. snapshots, limiter and checks may be nil.
func NewPairsHandler(
	logger *xlogger.Logger,
	engine *usecase.PairEngine,
	signals *usecase.SignalsQuery,
	snapshots domrepo.SnapshotCache,
	limiter *ratelimit.Limiter,
	checks map[string]HealthCheck,
) *PairsHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &PairsHandler{
		logger:    logger,
		engine:    engine,
		signals:   signals,
		snapshots: snapshots,
		limiter:   limiter,
		checks:    checks,
		now:       time.Now,
	}
}

func (h *PairsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/pairs", h.ListPairs)
	g.GET("/pairs/:pair/snapshot", h.Snapshot)
	g.GET("/pairs/:pair/signals", h.Signals)
	g.POST("/pairs/:pair/ticks", h.Ingest)
	g.POST("/pairs/:pair/reset", h.Reset)
}

type pairState struct {
	models.Pair
	Snapshot models.Snapshot `json:"snapshot"`
}

func (h *PairsHandler) ListPairs(c echo.Context) error {
	snaps := lo.KeyBy(h.engine.Snapshots(), func(s models.Snapshot) string { return s.Pair })
	rows := lo.Map(h.engine.Pairs(), func(p models.Pair, _ int) pairState {
		return pairState{Pair: p, Snapshot: snaps[p.Name]}
	})
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// pairName unescapes the path parameter; pair names such as "KO/PEP" arrive as "KO%2FPEP".
func (h *PairsHandler) pairName(raw string) (string, error) {
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", xhttp.BadRequestErrorf("malformed pair %q", raw)
	}
	if !h.engine.Has(name) {
		return "", xhttp.NotFoundErrorf("pair %s not configured", name)
	}
	return name, nil
}

func (h *PairsHandler) Snapshot(c echo.Context) error {
	req := &models.PairRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	pair, err := h.pairName(req.Pair)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	if h.snapshots != nil {
		snap, err := h.snapshots.Get(c.Request().Context(), pair)
		if err != nil {
			h.logger.Warn("snapshot cache read failed", xlogger.String("pair", pair), xlogger.Error(err))
		}
		if snap != nil {
			c.Response().Header().Set("X-Snapshot-Source", "cache")
			return xhttp.SuccessResponse(c, snap)
		}
	}

	snap, err := h.engine.Snapshot(pair)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	c.Response().Header().Set("X-Snapshot-Source", "engine")
	return xhttp.SuccessResponse(c, snap)
}

func (h *PairsHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	pair, err := h.pairName(req.Pair)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	p := usecase.GetSignalsParams{Pair: pair, Limit: req.Limit}
	if req.From != "" {
		t, ok := util.ParseTime(req.From)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid from %q", req.From))
		}
		p.From = t
	}
	if req.To != "" {
		t, ok := util.ParseTime(req.To)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid to %q", req.To))
		}
		p.To = t
	}
	if req.Signal != "" {
		sig, err := models.ParseSignal(req.Signal)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		p.Signal = &sig
	}

	res, err := h.signals.GetSignals(c.Request().Context(), p)
	switch {
	case err == nil:
		return xhttp.SuccessResponse(c, res)
	case errors.Is(err, usecase.ErrHistoryDisabled):
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError(err.Error()))
	case errors.Is(err, usecase.ErrInvalidQuery):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	default:
		h.logger.Error("signals usecase error", xlogger.String("pair", pair), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("signal history unavailable").WithError(err))
	}
}

func (h *PairsHandler) Ingest(c echo.Context) error {
	req := &models.TickRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	pair, err := h.pairName(req.Pair)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if !h.limiter.Allow(pair) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("tick rate limit exceeded").WithParam("pair", pair))
	}

	ts := h.now().UTC()
	if req.T != "" {
		t, ok := util.ParseTime(req.T)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid t %q", req.T))
		}
		ts = t
	}

	d, err := h.engine.OnTick(c.Request().Context(), models.PairTick{Pair: pair, Time: ts, PriceA: req.A, PriceB: req.B})
	if err != nil {
		if !errors.Is(err, usecase.ErrDispatch) {
			return xhttp.AppErrorResponse(c, xhttp.InternalError("tick rejected").WithError(err))
		}
		h.logger.Warn("signal dispatch failed", xlogger.String("pair", pair), xlogger.Error(err))
	}
	return xhttp.AcceptedResponse(c, d)
}

func (h *PairsHandler) Reset(c echo.Context) error {
	req := &models.PairRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	pair, err := h.pairName(req.Pair)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if err := h.engine.Reset(c.Request().Context(), pair); err != nil {
		h.logger.Warn("reset snapshot write failed", xlogger.String("pair", pair), xlogger.Error(err))
	}
	snap, _ := h.engine.Snapshot(pair)
	return xhttp.SuccessResponse(c, snap)
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *PairsHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	report := healthReport{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			report.Status = "degraded"
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}
	if report.Status != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, report)
	}
	return xhttp.SuccessResponse(c, report)
}
