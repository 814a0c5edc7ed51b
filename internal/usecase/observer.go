package usecase

import (
	"pairspread/internal/domain/models"
	domrepo "pairspread/internal/domain/repository"
	"pairspread/internal/services/spread"
	applogger "pairspread/pkg/logger"
)

// LogObserver reports estimator events to the log and to metrics.
type LogObserver struct {
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func NewLogObserver(l *applogger.Logger, metrics domrepo.Metrics) *LogObserver {
	if l == nil {
		l = applogger.Nop()
	}
	return &LogObserver{l: l, metrics: metrics}
}

func (o *LogObserver) Degenerate(pair string, kind spread.Degeneracy, detail string) {
	if o.metrics != nil {
		o.metrics.RecordDegeneracy(pair, kind.String())
	}
	switch kind {
	case spread.InsufficientData:
		// one per warm-up tick; counted only
	case spread.NumericOverflow:
		o.l.Warn("estimator numeric overflow",
			applogger.String("pair", pair),
			applogger.String("detail", detail),
		)
	default:
		o.l.Debug("estimator degenerate fit",
			applogger.String("pair", pair),
			applogger.String("kind", kind.String()),
			applogger.String("detail", detail),
		)
	}
}

func (o *LogObserver) Transition(pair string, from, to models.Position, d models.Decision) {
	o.l.Info("position transition",
		applogger.String("pair", pair),
		applogger.String("from", from.String()),
		applogger.String("to", to.String()),
		applogger.String("signal", d.Signal.String()),
		applogger.Float64("z", d.ZScore),
		applogger.Float64("threshold", d.Threshold),
		applogger.Float64("hedge_ratio", d.HedgeRatio),
		applogger.Time("t", d.Time),
	)
}

var _ spread.Observer = (*LogObserver)(nil)
