package models

import (
	"math"
	"time"
)

// Trade is a single-symbol print from a market stream or the trades topic.
type Trade struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"t"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
}

// Pair describes two instruments traded as a spread: spread = A - beta*B.
type Pair struct {
	Name    string  `json:"name"`
	SymbolA string  `json:"symbol_a"`
	SymbolB string  `json:"symbol_b"`
	Capital float64 `json:"capital"`
}

// PairTick is one synchronized observation of both legs of a pair.
// A nil price means the leg had no quote for this tick.
type PairTick struct {
	Pair   string    `json:"pair"`
	Time   time.Time `json:"t"`
	PriceA *float64  `json:"a,omitempty"`
	PriceB *float64  `json:"b,omitempty"`
}

// Prices returns both legs, with NaN standing in for an absent quote.
func (t PairTick) Prices() (a, b float64) {
	a, b = math.NaN(), math.NaN()
	if t.PriceA != nil {
		a = *t.PriceA
	}
	if t.PriceB != nil {
		b = *t.PriceB
	}
	return a, b
}

// Complete reports whether both legs carry a quote.
func (t PairTick) Complete() bool { return t.PriceA != nil && t.PriceB != nil }
