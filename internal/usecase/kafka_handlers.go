package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pairspread/internal/domain/models"
	domrepo "pairspread/internal/domain/repository"
	mid "pairspread/internal/middleware"
	pkgkafka "pairspread/pkg/kafka"
	applogger "pairspread/pkg/logger"
	"pairspread/pkg/util"
)

// KafkaTradesHandler consumes single-symbol trades and feeds them to the pipeline.
type KafkaTradesHandler struct {
	topic   string
	proc    mid.Proc
	metrics domrepo.Metrics
}

func NewKafkaTradesHandler(topic string, proc mid.Proc, metrics domrepo.Metrics) *KafkaTradesHandler {
	return &KafkaTradesHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaTradesHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, c, v}; t in unix seconds or milliseconds
func (h *KafkaTradesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode trade: %w", err)
	}
	ts := util.UnixAuto(m.T)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(ts).Seconds())

	err := h.proc.Process(ctx, &models.Trade{Symbol: m.Symbol, Time: ts, Price: m.C, Volume: m.V})
	if err != nil {
		h.metrics.RecordError("consumer_trade")
		return err
	}
	return nil
}

// KafkaPairTicksHandler consumes already paired ticks and feeds them to the engine.
type KafkaPairTicksHandler struct {
	topic   string
	sink    TickSink
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewKafkaPairTicksHandler(topic string, sink TickSink, metrics domrepo.Metrics, l *applogger.Logger) *KafkaPairTicksHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaPairTicksHandler{topic: topic, sink: sink, metrics: metrics, l: l}
}

func (h *KafkaPairTicksHandler) Topic() string { return h.topic }

// incoming message schema: {pair, t, a, b}; a missing or null leg is absent
func (h *KafkaPairTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Pair string   `json:"pair"`
		T    int64    `json:"t"`
		A    *float64 `json:"a"`
		B    *float64 `json:"b"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode pair tick: %w", err)
	}
	if m.T <= 0 {
		h.metrics.RecordError("consumer_pair_tick")
		return fmt.Errorf("pair tick %q: non-positive timestamp", m.Pair)
	}

	_, err := h.sink.OnTick(ctx, models.PairTick{Pair: m.Pair, Time: util.UnixAuto(m.T), PriceA: m.A, PriceB: m.B})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnknownPair):
		h.metrics.RecordError("consumer_unknown_pair")
		h.l.Warn("pair tick for unknown pair", applogger.String("pair", m.Pair))
		return nil
	case errors.Is(err, ErrDispatch):
		// the estimator already consumed the tick; redelivery would be rejected as stale
		h.l.Warn("signal dispatch failed", applogger.String("pair", m.Pair), applogger.Error(err))
		return nil
	default:
		return err
	}
}

var (
	_ pkgkafka.MessageHandler = (*KafkaTradesHandler)(nil)
	_ pkgkafka.MessageHandler = (*KafkaPairTicksHandler)(nil)
)
