package spread

import "pairspread/internal/domain/models"

// Degeneracy classifies a numeric fallback taken by the estimator.
type Degeneracy uint8

const (
	// InsufficientData: the price windows are still warming up.
	InsufficientData Degeneracy = iota + 1
	// DegenerateRegression: a slope denominator was ~0; the previous value or a fallback was kept.
	DegenerateRegression
	// NumericOverflow: a NaN or Inf was produced and replaced.
	NumericOverflow
)

func (d Degeneracy) String() string {
	switch d {
	case InsufficientData:
		return "insufficient_data"
	case DegenerateRegression:
		return "degenerate_regression"
	case NumericOverflow:
		return "numeric_overflow"
	default:
		return "unknown"
	}
}

// Observer receives estimator events. Implementations must not call back into the estimator.
type Observer interface {
	Degenerate(pair string, kind Degeneracy, detail string)
	Transition(pair string, from, to models.Position, d models.Decision)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) Degenerate(string, Degeneracy, string)                               {}
func (NopObserver) Transition(string, models.Position, models.Position, models.Decision) {}

// ObserverFuncs adapts plain functions to Observer. Nil functions are no-ops.
type ObserverFuncs struct {
	OnDegenerate func(pair string, kind Degeneracy, detail string)
	OnTransition func(pair string, from, to models.Position, d models.Decision)
}

func (o ObserverFuncs) Degenerate(pair string, kind Degeneracy, detail string) {
	if o.OnDegenerate != nil {
		o.OnDegenerate(pair, kind, detail)
	}
}

func (o ObserverFuncs) Transition(pair string, from, to models.Position, d models.Decision) {
	if o.OnTransition != nil {
		o.OnTransition(pair, from, to, d)
	}
}
