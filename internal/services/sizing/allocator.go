// Package sizing turns entry signals into leg quantities.
package sizing

import (
	"math"

	"github.com/shopspring/decimal"

	"pairspread/internal/domain/models"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

var two = decimal.NewFromInt(2)

// Allocator splits a fraction of pair capital evenly across the A leg and the
// beta-weighted B leg. Quantities are truncated to qtyPlaces decimals.
type Allocator struct {
	fraction  decimal.Decimal
	qtyPlaces int32
}

func NewAllocator(fraction float64, qtyPlaces int32) *Allocator {
	if fraction <= 0 || fraction > 1 || math.IsNaN(fraction) {
		fraction = 0.5
	}
	if qtyPlaces < 0 {
		qtyPlaces = 0
	}
	return &Allocator{fraction: decimal.NewFromFloat(fraction), qtyPlaces: qtyPlaces}
}

// Allocate returns nil for non-entry decisions, unusable prices or a quantity that truncates to zero.
func (a *Allocator) Allocate(capital float64, d models.Decision) *models.Allocation {
	if !d.Signal.IsEntry() || !(capital > 0) || math.IsInf(capital, 0) {
		return nil
	}
	if !usable(d.PriceA) || !usable(d.PriceB) || math.IsNaN(d.HedgeRatio) || math.IsInf(d.HedgeRatio, 0) {
		return nil
	}

	pa := decimal.NewFromFloat(d.PriceA)
	pb := decimal.NewFromFloat(d.PriceB)
	beta := decimal.NewFromFloat(d.HedgeRatio)

	perLeg := decimal.NewFromFloat(capital).Mul(a.fraction).Div(two)
	qtyA := perLeg.Div(pa).Truncate(a.qtyPlaces)
	if qtyA.IsZero() {
		return nil
	}
	qtyB := qtyA.Mul(beta.Abs()).Truncate(a.qtyPlaces)

	// Long spread: buy A, sell beta*B. A negative beta flips the B side.
	sideA, sideB := SideBuy, SideSell
	if d.Signal == models.EnterShort {
		sideA, sideB = SideSell, SideBuy
	}
	if beta.IsNegative() {
		sideB = opposite(sideB)
	}

	return &models.Allocation{
		SideA:     sideA,
		SideB:     sideB,
		QtyA:      qtyA,
		QtyB:      qtyB,
		NotionalA: qtyA.Mul(pa).Round(2),
		NotionalB: qtyB.Mul(pb).Round(2),
	}
}

func opposite(side string) string {
	if side == SideBuy {
		return SideSell
	}
	return SideBuy
}

func usable(p float64) bool { return p > 0 && !math.IsInf(p, 0) }
