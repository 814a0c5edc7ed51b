package spread

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Guards on n*Sxx, the slope denominator n*sum(x^2) - (sum x)^2 computed in centered form.
const (
	denomAbsEps = 1e-12
	denomRelEps = 1e-10
)

// line is y = alpha + beta*x.
type line struct {
	alpha, beta float64
}

// fitLine regresses y on x with an intercept. ok is false when x has no usable variance
// or the fit is not finite; callers must then keep their previous estimate.
func fitLine(x, y []float64) (line, bool) {
	n := len(x)
	if n < 2 || n != len(y) {
		return line{}, false
	}
	fn := float64(n)
	mx := stat.Mean(x, nil)
	var sxx, ssx float64
	for _, v := range x {
		d := v - mx
		ssx += d * d
		sxx += v * v
	}
	denom := fn * ssx
	if !(denom > denomAbsEps) || denom <= denomRelEps*fn*sxx {
		return line{}, false
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if !finite(alpha) || !finite(beta) {
		return line{}, false
	}
	return line{alpha: alpha, beta: beta}, true
}

// sumSquaredResiduals returns sum((y - alpha - beta*x)^2), reusing buf.
func sumSquaredResiduals(l line, x, y, buf []float64) float64 {
	buf = buf[:0]
	for i := range x {
		buf = append(buf, y[i]-l.alpha-l.beta*x[i])
	}
	return floats.Dot(buf, buf)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
