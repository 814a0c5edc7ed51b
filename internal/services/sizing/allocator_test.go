package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairspread/internal/domain/models"
)

func entry(sig models.Signal, pa, pb, beta float64) models.Decision {
	return models.Decision{Signal: sig, PriceA: pa, PriceB: pb, HedgeRatio: beta}
}

func TestAllocateLongSpread(t *testing.T) {
	a := NewAllocator(0.5, 0)
	alloc := a.Allocate(10000, entry(models.EnterLong, 100, 50, 2))
	require.NotNil(t, alloc)

	assert.Equal(t, SideBuy, alloc.SideA)
	assert.Equal(t, SideSell, alloc.SideB)
	assert.True(t, alloc.QtyA.Equal(decimal.NewFromInt(25)), alloc.QtyA.String())
	assert.True(t, alloc.QtyB.Equal(decimal.NewFromInt(50)), alloc.QtyB.String())
	assert.Equal(t, "2500", alloc.NotionalA.String())
	assert.Equal(t, "2500", alloc.NotionalB.String())
}

func TestAllocateShortSpreadNegativeBeta(t *testing.T) {
	a := NewAllocator(0.5, 0)
	alloc := a.Allocate(10000, entry(models.EnterShort, 100, 50, -2))
	require.NotNil(t, alloc)
	assert.Equal(t, SideSell, alloc.SideA)
	// short spread sells A and buys beta*B; negative beta turns that into a sell
	assert.Equal(t, SideSell, alloc.SideB)
	assert.True(t, alloc.QtyB.Equal(decimal.NewFromInt(50)))
}

func TestAllocateTruncatesQuantities(t *testing.T) {
	a := NewAllocator(1, 2)
	alloc := a.Allocate(1000, entry(models.EnterLong, 3, 7, 0.333))
	require.NotNil(t, alloc)
	// 500/3 = 166.666.. truncated to 166.66
	assert.Equal(t, "166.66", alloc.QtyA.String())
	// 166.66*0.333 = 55.49778 truncated to 55.49
	assert.Equal(t, "55.49", alloc.QtyB.String())
	assert.Equal(t, "499.98", alloc.NotionalA.String())
	assert.Equal(t, "388.43", alloc.NotionalB.String())
}

func TestAllocateRejects(t *testing.T) {
	a := NewAllocator(0.5, 0)
	assert.Nil(t, a.Allocate(10000, entry(models.Exit, 100, 50, 2)))
	assert.Nil(t, a.Allocate(10000, entry(models.Hold, 100, 50, 2)))
	assert.Nil(t, a.Allocate(0, entry(models.EnterLong, 100, 50, 2)))
	assert.Nil(t, a.Allocate(10000, entry(models.EnterLong, 0, 50, 2)))
	// 2500/5000 truncates to zero whole units
	assert.Nil(t, a.Allocate(10000, entry(models.EnterLong, 5000, 50, 2)))
}
