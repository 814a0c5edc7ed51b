package usecase

import (
	"context"
	"testing"
	"time"

	"pairspread/internal/domain/models"
	domrepo "pairspread/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tr(sym string, at time.Duration, price float64) *models.Trade {
	return &models.Trade{Symbol: sym, Time: t0.Add(at), Price: price, Volume: 1}
}

func TestAlignerEmitsLastPricePerBucket(t *testing.T) {
	sink := &fakeSink{}
	a := NewPairAligner(domrepo.TF1s, testPairs[:1], sink, newMetrics(), nil)
	ctx := context.Background()

	for _, trade := range []*models.Trade{
		tr("KO", 100*time.Millisecond, 61.0),
		tr("PEP", 200*time.Millisecond, 170.0),
		tr("KO", 900*time.Millisecond, 61.5), // last KO in bucket 0
		tr("KO", 1500*time.Millisecond, 62.0), // opens bucket 1, flushes bucket 0
	} {
		require.NoError(t, a.Process(ctx, trade))
	}

	require.Len(t, sink.ticks, 1)
	got := sink.ticks[0]
	assert.Equal(t, "KO/PEP", got.Pair)
	assert.True(t, got.Time.Equal(t0))
	assert.Equal(t, 61.5, *got.PriceA)
	assert.Equal(t, 170.0, *got.PriceB)
}

func TestAlignerLeavesMissingLegAbsent(t *testing.T) {
	sink := &fakeSink{}
	a := NewPairAligner(domrepo.TF1s, testPairs[:1], sink, newMetrics(), nil)
	ctx := context.Background()

	require.NoError(t, a.Process(ctx, tr("KO", 0, 61)))
	require.NoError(t, a.Process(ctx, tr("PEP", 10*time.Millisecond, 170)))
	require.NoError(t, a.Process(ctx, tr("KO", 1100*time.Millisecond, 62))) // bucket 1: KO only
	require.NoError(t, a.Process(ctx, tr("KO", 2100*time.Millisecond, 63)))

	require.Len(t, sink.ticks, 2)
	assert.True(t, sink.ticks[0].Complete())
	assert.Equal(t, 62.0, *sink.ticks[1].PriceA)
	assert.Nil(t, sink.ticks[1].PriceB, "PEP had no trade in bucket 1 and must not be carried forward")
}

func TestAlignerDropsLateTrades(t *testing.T) {
	sink := &fakeSink{}
	a := NewPairAligner(domrepo.TF1s, testPairs[:1], sink, newMetrics(), nil)
	ctx := context.Background()

	require.NoError(t, a.Process(ctx, tr("KO", 0, 61)))
	require.NoError(t, a.Process(ctx, tr("KO", 2*time.Second, 62)))
	require.NoError(t, a.Process(ctx, tr("PEP", 500*time.Millisecond, 170))) // bucket 0 already flushed
	require.NoError(t, a.Process(ctx, tr("PEP", time.Second, 170)))          // older than open bucket 2

	require.Len(t, sink.ticks, 1)
	assert.Nil(t, sink.ticks[0].PriceB)

	a.Flush(ctx)
	require.Len(t, sink.ticks, 2)
	assert.True(t, sink.ticks[1].Time.Equal(t0.Add(2*time.Second)))
	assert.Nil(t, sink.ticks[1].PriceB)
}

func TestAlignerSharedLegFeedsEveryPair(t *testing.T) {
	pairs := []models.Pair{
		{Name: "KO/PEP", SymbolA: "KO", SymbolB: "PEP"},
		{Name: "KDP/PEP", SymbolA: "KDP", SymbolB: "PEP"},
	}
	sink := &fakeSink{}
	a := NewPairAligner(domrepo.TF1m, pairs, sink, newMetrics(), nil)
	ctx := context.Background()

	require.NoError(t, a.Process(ctx, tr("PEP", 0, 170)))
	require.NoError(t, a.Process(ctx, tr("UNKNOWN", 0, 1)))
	a.Flush(ctx)

	require.Len(t, sink.ticks, 2)
	assert.ElementsMatch(t, []string{"KO/PEP", "KDP/PEP"}, []string{sink.ticks[0].Pair, sink.ticks[1].Pair})
	assert.ElementsMatch(t, []string{"KO", "PEP", "KDP"}, a.Symbols())

	a.Flush(ctx)
	assert.Len(t, sink.ticks, 2, "flushing twice emits nothing new")
}

func TestAlignerFeedsEngine(t *testing.T) {
	f := newEngine(t, 5)
	a := NewPairAligner(domrepo.TF1s, testPairs, f.engine, newMetrics(), nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		at := time.Duration(i) * time.Second
		require.NoError(t, a.Process(ctx, tr("KO", at, 60+float64(i))))
		require.NoError(t, a.Process(ctx, tr("PEP", at, 170)))
	}
	a.Flush(ctx)

	snap, err := f.engine.Snapshot("KO/PEP")
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Samples)
	assert.True(t, snap.LastTick.Equal(t0.Add(3*time.Second)))
}
