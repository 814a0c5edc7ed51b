package spread

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"pairspread/internal/domain/models"
)

// slopeEps is the |beta'| below which mu falls back to the window mean.
const slopeEps = 1e-10

// ouFit carries the fitted parameters plus which fallbacks were taken.
type ouFit struct {
	params        models.OUParams
	muFallback    bool
	sigmaFallback bool
}

// fitOU regresses the first differences of spreads on the lagged levels,
// ds = alpha + beta'*s_lag, and maps the line onto OU parameters.
// ok is false when there are fewer than two points or the regression is degenerate.
func fitOU(spreads []float64, cfg Config, scratch *scratch) (ouFit, bool) {
	n := len(spreads) - 1
	if n < 1 {
		return ouFit{}, false
	}
	lag := scratch.x[:0]
	diff := scratch.y[:0]
	for i := 1; i <= n; i++ {
		lag = append(lag, spreads[i-1])
		diff = append(diff, spreads[i]-spreads[i-1])
	}
	scratch.x, scratch.y = lag, diff

	l, ok := fitLine(lag, diff)
	if !ok {
		return ouFit{}, false
	}

	var f ouFit
	f.params.Fitted = true
	f.params.MeanReverting = l.beta < 0
	f.params.Lambda = clamp(math.Abs(l.beta), cfg.LambdaMin, cfg.LambdaMax)

	f.params.Mu = math.NaN()
	if math.Abs(l.beta) > slopeEps {
		f.params.Mu = -l.alpha / l.beta
	}
	if !finite(f.params.Mu) {
		f.params.Mu = windowMean(spreads)
		f.muFallback = true
	}

	f.params.Sigma = cfg.SigmaFallback
	f.sigmaFallback = true
	if n > 2 {
		variance := sumSquaredResiduals(l, lag, diff, scratch.r) / float64(n-2)
		if finite(variance) && variance >= 0 {
			f.params.Sigma = clamp(math.Sqrt(variance), cfg.SigmaMin, cfg.SigmaMax)
			f.sigmaFallback = false
		}
	}
	return f, true
}

// fallbackOU is used until the first successful fit.
func fallbackOU(spreads []float64, cfg Config) models.OUParams {
	return models.OUParams{
		Lambda: cfg.LambdaMin,
		Mu:     windowMean(spreads),
		Sigma:  cfg.SigmaFallback,
	}
}

func windowMean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	if m := stat.Mean(v, nil); finite(m) {
		return m
	}
	return 0
}

// adaptiveThreshold interpolates the entry threshold logistically in sigma/SigmaBaseline.
func adaptiveThreshold(sigma float64, cfg Config) float64 {
	x := -cfg.Steepness * (sigma/cfg.SigmaBaseline - 1)
	th := cfg.ThetaMin + (cfg.ThetaMax-cfg.ThetaMin)/(1+math.Exp(x))
	if !finite(th) {
		return cfg.ThetaMax
	}
	return th
}

// zScore is (spread-mu)/sigma clamped to +-ZClamp; 0 when sigma is under the floor or the ratio is NaN.
func zScore(spread, mu, sigma float64, cfg Config) (z float64, overflow bool) {
	if !(sigma >= cfg.SigmaFloor) {
		return 0, false
	}
	z = (spread - mu) / sigma
	if math.IsNaN(z) {
		return 0, true
	}
	return clamp(z, -cfg.ZClamp, cfg.ZClamp), math.IsInf(z, 0)
}
