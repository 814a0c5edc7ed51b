package usecase

import (
	"context"
	"testing"
	"time"

	"pairspread/internal/domain/models"
	"pairspread/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSignalsValidates(t *testing.T) {
	uc := NewSignalsQuery(nil, nil, 0, nil)
	_, err := uc.GetSignals(context.Background(), GetSignalsParams{Pair: "KO/PEP"})
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	uc = NewSignalsQuery(&fakeStore{}, nil, 0, nil)
	_, err = uc.GetSignals(context.Background(), GetSignalsParams{})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = uc.GetSignals(context.Background(), GetSignalsParams{Pair: "KO/PEP", From: t0, To: t0.Add(-time.Hour)})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestGetSignalsCachesResults(t *testing.T) {
	store := &fakeStore{stored: []*models.SignalEvent{event("KO/PEP"), event("XOM/CVX"), event("KO/PEP")}}
	mem := cache.NewMemoryCache()
	defer mem.Close()
	uc := NewSignalsQuery(store, mem, time.Minute, nil)
	ctx := context.Background()
	p := GetSignalsParams{Pair: "KO/PEP", From: t0.Add(-time.Hour), To: t0.Add(time.Hour), Limit: 100000}

	res, err := uc.GetSignals(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	again, err := uc.GetSignals(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Count)
	assert.Equal(t, res.Signals[0].ID, again.Signals[0].ID)
	assert.Equal(t, 1, store.queries, "second call served from cache")

	store.err = errBoom
	_, err = uc.GetSignals(ctx, GetSignalsParams{Pair: "XOM/CVX"})
	assert.ErrorIs(t, err, errBoom)
}
