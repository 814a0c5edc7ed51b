package spread

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairspread/internal/domain/models"
)

var t0 = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

func tickTime(i int) time.Time { return t0.Add(time.Duration(i) * time.Second) }

func newEstimator(t *testing.T, lookback int, opts ...Option) *Estimator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Lookback = lookback
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	return e
}

func assertFinite(t *testing.T, d models.Decision) {
	t.Helper()
	for name, v := range map[string]float64{
		"hedge":     d.HedgeRatio,
		"spread":    d.Spread,
		"z":         d.ZScore,
		"threshold": d.Threshold,
		"lambda":    d.OU.Lambda,
		"mu":        d.OU.Mu,
		"sigma":     d.OU.Sigma,
	} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s is %v", name, v)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lookback = 1
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.ThetaMax = cfg.ThetaMin - 0.1
	_, err = New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.ExitZ = cfg.ThetaMin
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 100, cfg.Lookback)
	assert.Equal(t, 1.5, cfg.ThetaMin)
	assert.Equal(t, 3.0, cfg.ThetaMax)
	assert.Equal(t, 0.5, cfg.ExitZ)
	assert.Equal(t, 10.0, cfg.ZClamp)
	assert.False(t, cfg.RequireMeanReversion)
	assert.NoError(t, cfg.Validate())
}

func TestWarmupHoldsWithoutMutation(t *testing.T) {
	var warmups int
	obs := ObserverFuncs{OnDegenerate: func(_ string, kind Degeneracy, _ string) {
		if kind == InsufficientData {
			warmups++
		}
	}}
	e := newEstimator(t, 5, WithObserver(obs), WithPair("KO/PEP"))

	for i := 0; i < 4; i++ {
		d := e.Ingest(100+float64(i), 50+float64(i)/2, tickTime(i))
		assert.Equal(t, models.Hold, d.Signal)
		assert.Equal(t, models.ReasonWarmup, d.Reason)
		assert.False(t, d.Ready)
		assert.Equal(t, "KO/PEP", d.Pair)

		snap := e.Snapshot()
		assert.False(t, snap.HedgeValid)
		assert.Equal(t, models.OUParams{}, snap.OU)
		assert.Equal(t, i+1, snap.Samples)
	}
	assert.Equal(t, 4, warmups)
}

func TestFirstFullWindowFitsHedge(t *testing.T) {
	counts := map[Degeneracy]int{}
	obs := ObserverFuncs{OnDegenerate: func(_ string, kind Degeneracy, _ string) { counts[kind]++ }}
	e := newEstimator(t, 5, WithObserver(obs))
	var d models.Decision
	for i := 0; i < 4; i++ {
		e.Ingest(100+float64(i), 50+float64(i)/2, tickTime(i))
	}
	require.Equal(t, map[Degeneracy]int{InsufficientData: 4}, counts)

	d = e.Ingest(104, 52, tickTime(4))
	// the fallback OU on a single spread is not reported
	assert.Equal(t, map[Degeneracy]int{InsufficientData: 4}, counts)
	require.True(t, d.Ready)
	assert.Equal(t, models.Hold, d.Signal)
	assert.Empty(t, d.Reason)
	assert.InDelta(t, 2.0, d.HedgeRatio, 1e-9)
	assert.InDelta(t, 0.0, d.Spread, 1e-9)
	// single spread: fallback parameters, z collapses to 0
	assert.False(t, d.OU.Fitted)
	assert.Equal(t, 1.0, d.OU.Sigma)
	assert.InDelta(t, 0.0, d.ZScore, 1e-9)
	assert.Equal(t, models.Flat, d.Position)
	assertFinite(t, d)
}

func TestConstantLegBHasNoHedge(t *testing.T) {
	var degenerate int
	obs := ObserverFuncs{OnDegenerate: func(_ string, kind Degeneracy, _ string) {
		if kind == DegenerateRegression {
			degenerate++
		}
	}}
	e := newEstimator(t, 5, WithObserver(obs))
	for i := 0; i < 10; i++ {
		d := e.Ingest(100+float64(i), 100, tickTime(i))
		assertFinite(t, d)
		assert.Equal(t, models.Hold, d.Signal)
		if i >= 4 {
			assert.Equal(t, models.ReasonNoHedge, d.Reason)
			assert.False(t, d.Ready)
		}
	}
	assert.Equal(t, 6, degenerate)
	assert.False(t, e.Snapshot().HedgeValid)
}

func TestHedgeRetainedWhenLegBGoesFlat(t *testing.T) {
	e := newEstimator(t, 4)
	for i := 0; i < 4; i++ {
		e.Ingest(100+2*float64(i), 50+float64(i), tickTime(i))
	}
	require.InDelta(t, 2.0, e.Snapshot().HedgeRatio, 1e-9)

	// B goes flat; once the window holds only the flat level beta stops moving
	for i := 4; i < 7; i++ {
		e.Ingest(110+float64(i%3), 60, tickTime(i))
	}
	beta := e.Snapshot().HedgeRatio
	for i := 7; i < 12; i++ {
		d := e.Ingest(110+float64(i%3), 60, tickTime(i))
		assert.True(t, d.Ready)
		assert.Equal(t, beta, d.HedgeRatio)
		assertFinite(t, d)
	}
}

func TestMissingPricesAreNoOps(t *testing.T) {
	e := newEstimator(t, 3)
	e.Ingest(10, 5, tickTime(0))
	before := e.Snapshot()

	for _, p := range [][2]float64{
		{0, 5}, {10, 0}, {-1, 5}, {math.NaN(), 5}, {10, math.Inf(1)}, {math.Inf(-1), 5},
	} {
		d := e.Ingest(p[0], p[1], tickTime(1))
		assert.Equal(t, models.Hold, d.Signal)
		assert.Equal(t, models.ReasonMissingPrice, d.Reason)
	}
	assert.Equal(t, before, e.Snapshot())
}

func TestStaleTimestampsAreRejected(t *testing.T) {
	e := newEstimator(t, 3)
	e.Ingest(10, 5, tickTime(5))

	d := e.Ingest(11, 6, tickTime(5))
	assert.Equal(t, models.ReasonStale, d.Reason)
	d = e.Ingest(11, 6, tickTime(4))
	assert.Equal(t, models.ReasonStale, d.Reason)
	assert.Equal(t, 1, e.Snapshot().Samples)

	d = e.Ingest(11, 6, tickTime(6))
	assert.Equal(t, models.ReasonWarmup, d.Reason)
	assert.Equal(t, int64(2), e.Snapshot().Ticks)
}

func TestZeroTimestampIsRejected(t *testing.T) {
	e := newEstimator(t, 3)
	d := e.Ingest(10, 5, time.Time{})
	assert.Equal(t, models.ReasonStale, d.Reason)
	assert.Zero(t, e.Snapshot().Ticks)

	e.Ingest(10, 5, tickTime(5))
	d = e.Ingest(11, 6, time.Time{})
	assert.Equal(t, models.ReasonStale, d.Reason)
	d = e.Ingest(11, 6, tickTime(4))
	assert.Equal(t, models.ReasonStale, d.Reason)
	assert.Equal(t, int64(1), e.Snapshot().Ticks)
	assert.Equal(t, tickTime(5), e.Snapshot().LastTick)
}

// simulatePair yields a cointegrated pair: B oscillates, A = 2B + 10 + s with s an AR(1) spread.
func simulatePair(seed int64, n int) (a, b []float64) {
	rng := rand.New(rand.NewSource(seed))
	s := 0.0
	for i := 0; i < n; i++ {
		pb := 100 + 10*math.Sin(float64(i)/15)
		s = 0.8*s + rng.NormFloat64()
		a = append(a, 2*pb+10+s)
		b = append(b, pb)
	}
	return a, b
}

func TestSimulatedPairTradesWithinBounds(t *testing.T) {
	var transitions int
	obs := ObserverFuncs{OnTransition: func(_ string, from, to models.Position, _ models.Decision) {
		assert.NotEqual(t, from, to)
		transitions++
	}}
	e := newEstimator(t, 100, WithObserver(obs))
	cfg := e.Config()
	a, b := simulatePair(42, 600)

	var entries, exits int
	prev := models.Flat
	for i := range a {
		d := e.Ingest(a[i], b[i], tickTime(i))
		assertFinite(t, d)

		switch d.Signal {
		case models.EnterLong, models.EnterShort:
			entries++
			assert.Equal(t, models.Flat, prev)
		case models.Exit:
			exits++
			assert.NotEqual(t, models.Flat, prev)
			assert.Equal(t, models.Flat, d.Position)
		}
		// no direct reversal between open positions
		if prev != models.Flat && d.Position != models.Flat {
			assert.Equal(t, prev, d.Position)
		}
		prev = d.Position

		if !d.Ready {
			continue
		}
		assert.InDelta(t, 2.0, d.HedgeRatio, 0.5)
		assert.LessOrEqual(t, math.Abs(d.ZScore), cfg.ZClamp)
		assert.GreaterOrEqual(t, d.Threshold, cfg.ThetaMin)
		assert.LessOrEqual(t, d.Threshold, cfg.ThetaMax)
		if d.OU.Fitted {
			assert.GreaterOrEqual(t, d.OU.Lambda, cfg.LambdaMin)
			assert.LessOrEqual(t, d.OU.Lambda, cfg.LambdaMax)
			assert.GreaterOrEqual(t, d.OU.Sigma, cfg.SigmaMin)
			assert.LessOrEqual(t, d.OU.Sigma, cfg.SigmaMax)
		}
	}
	assert.Positive(t, entries)
	assert.Positive(t, exits)
	assert.Equal(t, entries+exits, transitions)
	assert.LessOrEqual(t, entries-exits, 1)
	assert.GreaterOrEqual(t, entries-exits, 0)
}

func TestRequireMeanReversionGatesEntries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireMeanReversion = true
	e, err := New(cfg)
	require.NoError(t, err)

	a, b := simulatePair(7, 600)
	for i := range a {
		d := e.Ingest(a[i], b[i], tickTime(i))
		if d.Signal.IsEntry() {
			assert.True(t, d.OU.Fitted)
			assert.True(t, d.OU.MeanReverting)
		}
	}
}

func TestIngestIsDeterministic(t *testing.T) {
	a, b := simulatePair(99, 300)
	run := func() []models.Decision {
		e := newEstimator(t, 50)
		out := make([]models.Decision, 0, len(a))
		for i := range a {
			out = append(out, e.Ingest(a[i], b[i], tickTime(i)))
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestAdversarialInputsStayFinite(t *testing.T) {
	e := newEstimator(t, 10)
	rng := rand.New(rand.NewSource(3))
	bad := []float64{0, -5, math.NaN(), math.Inf(1), math.Inf(-1), 1e-300, 1e300}
	for i := 0; i < 500; i++ {
		pa := 50 + rng.Float64()*1e-9
		pb := 25.0
		if i%2 == 0 {
			pb += rng.Float64() * 1e-12
		}
		switch {
		case i%17 == 0:
			pa = bad[rng.Intn(len(bad))]
		case i%23 == 0:
			pb = bad[rng.Intn(len(bad))]
		}
		d := e.Ingest(pa, pb, tickTime(i))
		assertFinite(t, d)
		assert.LessOrEqual(t, math.Abs(d.ZScore), e.Config().ZClamp)
	}
	snap := e.Snapshot()
	assert.LessOrEqual(t, snap.Samples, snap.Lookback)
}

func TestResetReturnsToInitialState(t *testing.T) {
	e := newEstimator(t, 20, WithPair("A/B"))
	a, b := simulatePair(1, 60)
	for i := range a {
		e.Ingest(a[i], b[i], tickTime(i))
	}
	require.True(t, e.Snapshot().Ready)

	e.Reset()
	snap := e.Snapshot()
	assert.Equal(t, "A/B", snap.Pair)
	assert.Equal(t, 0, snap.Samples)
	assert.False(t, snap.HedgeValid)
	assert.Equal(t, models.Flat, snap.Position)
	assert.True(t, snap.LastTick.IsZero())

	// older timestamps are accepted again after a reset
	d := e.Ingest(a[0], b[0], tickTime(0))
	assert.Equal(t, models.ReasonWarmup, d.Reason)
}
