package usecase

import (
	"context"
	"testing"

	"pairspread/internal/domain/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(pair string) *models.SignalEvent {
	return &models.SignalEvent{ID: uuid.New(), Decision: models.Decision{Pair: pair, Time: t0, Signal: models.Exit}}
}

func TestDispatcherWritesBothSinks(t *testing.T) {
	store, pub := &fakeStore{}, &fakePublisher{}
	d := NewSignalDispatcher(store, pub, newMetrics())

	require.NoError(t, d.Dispatch(context.Background(), event("KO/PEP")))
	assert.Len(t, store.stored, 1)
	assert.Len(t, pub.published, 1)

	require.NoError(t, d.Close())
	assert.True(t, store.closed)
}

func TestDispatcherJoinsFailures(t *testing.T) {
	store, pub := &fakeStore{err: errBoom}, &fakePublisher{}
	d := NewSignalDispatcher(store, pub, newMetrics())

	err := d.Dispatch(context.Background(), event("KO/PEP"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "clickhouse")
	assert.Len(t, pub.published, 1, "publish still happens when the store fails")
}

func TestDispatcherWithoutSinks(t *testing.T) {
	d := NewSignalDispatcher(nil, nil, newMetrics())
	assert.NoError(t, d.Dispatch(context.Background(), event("KO/PEP")))
	assert.Error(t, d.Dispatch(context.Background(), nil))
	assert.NoError(t, d.Close())
}
