package spread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowEvictsOldestFirst(t *testing.T) {
	w := NewWindow[float64](3)
	for _, v := range []float64{1, 2, 3} {
		_, evicted := w.Push(v)
		assert.False(t, evicted)
	}
	require.True(t, w.Full())

	old, evicted := w.Push(4)
	assert.True(t, evicted)
	assert.Equal(t, 1.0, old)
	assert.Equal(t, []float64{2, 3, 4}, w.Values(nil))
	assert.Equal(t, 3, w.Len())

	last, ok := w.Last()
	require.True(t, ok)
	assert.Equal(t, 4.0, last)
	assert.Equal(t, 2.0, w.At(0))
}

func TestWindowNeverExceedsCapacity(t *testing.T) {
	w := NewWindow[int](5)
	for i := 0; i < 100; i++ {
		w.Push(i)
		assert.LessOrEqual(t, w.Len(), w.Cap())
	}
	assert.Equal(t, []int{95, 96, 97, 98, 99}, w.Values(make([]int, 0, 5)))
}

func TestWindowReset(t *testing.T) {
	w := NewWindow[float64](2)
	w.Push(1)
	w.Push(2)
	w.Reset()
	assert.Equal(t, 0, w.Len())
	_, ok := w.Last()
	assert.False(t, ok)
	assert.Empty(t, w.Values(nil))
}

func TestWindowAtOutOfRangePanics(t *testing.T) {
	w := NewWindow[float64](2)
	w.Push(1)
	assert.Panics(t, func() { w.At(1) })
}
