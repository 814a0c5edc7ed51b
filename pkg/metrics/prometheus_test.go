package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairspread/internal/domain/models"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordTick("KO/PEP")
	r.RecordTick("KO/PEP")
	r.RecordSignal("KO/PEP", models.EnterLong)
	r.RecordDegeneracy("KO/PEP", "degenerate_regression")
	r.RecordZScore("KO/PEP", -2.4)
	r.RecordHedgeRatio("KO/PEP", 1.8)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ticks.WithLabelValues("KO/PEP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.signals.WithLabelValues("KO/PEP", "enter_long")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.degeneracies.WithLabelValues("KO/PEP", "degenerate_regression")))
	assert.Equal(t, -2.4, testutil.ToFloat64(r.zScore.WithLabelValues("KO/PEP")))
	assert.Equal(t, 1.8, testutil.ToFloat64(r.hedgeRatio.WithLabelValues("KO/PEP")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegisterer(prometheus.NewRegistry())
		NewWithRegisterer(prometheus.NewRegistry())
	})
}

func TestRecordLatencyObservesHistogram(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())
	r.RecordLatency("dispatch", 0.2)
	r.RecordLatency("dispatch", 0.4)

	var m dto.Metric
	require.NoError(t, r.latency.WithLabelValues("dispatch").(prometheus.Metric).Write(&m))
	assert.Equal(t, uint64(2), m.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.6, m.GetHistogram().GetSampleSum(), 1e-9)
}
