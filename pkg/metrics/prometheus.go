package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pairspread/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticks        *prometheus.CounterVec
	signals      *prometheus.CounterVec
	degeneracies *prometheus.CounterVec
	zScore       *prometheus.GaugeVec
	hedgeRatio   *prometheus.GaugeVec
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered with the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// Discard returns a recorder on a private registry that is never scraped.
func Discard() *Recorder {
	return NewWithRegisterer(prometheus.NewRegistry())
}

// NewWithRegisterer creates a recorder registered with reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ticks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairspread_ticks_total",
				Help: "Paired ticks processed per pair",
			},
			[]string{"pair"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairspread_signals_total",
				Help: "Signals emitted per pair and kind",
			},
			[]string{"pair", "signal"},
		),
		degeneracies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairspread_degeneracies_total",
				Help: "Numeric fallbacks taken by the estimator",
			},
			[]string{"pair", "kind"},
		),
		zScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairspread_zscore",
				Help: "Latest spread z-score per pair",
			},
			[]string{"pair"},
		),
		hedgeRatio: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairspread_hedge_ratio",
				Help: "Latest OLS hedge ratio per pair",
			},
			[]string{"pair"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairspread_messages_sent_total",
				Help: "Total number of messages sent to backend",
			},
			[]string{"backend", "key"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairspread_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairspread_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairspread_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordTick(pair string) {
	r.ticks.WithLabelValues(pair).Inc()
}

func (r *Recorder) RecordSignal(pair string, sig models.Signal) {
	r.signals.WithLabelValues(pair, sig.String()).Inc()
}

func (r *Recorder) RecordDegeneracy(pair, kind string) {
	r.degeneracies.WithLabelValues(pair, kind).Inc()
}

func (r *Recorder) RecordZScore(pair string, z float64) {
	r.zScore.WithLabelValues(pair).Set(z)
}

func (r *Recorder) RecordHedgeRatio(pair string, beta float64) {
	r.hedgeRatio.WithLabelValues(pair).Set(beta)
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, key string) {
	r.messagesSent.WithLabelValues(backend, key).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
