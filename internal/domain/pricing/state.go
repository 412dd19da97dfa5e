// Package pricing computes promotion effects for a shopping cart.
//
// The engine is a pure function of the selected offers and the cart lines. It
// folds over the offers in priority order, threading a CartState from one
// offer to the next. Each step works on a copy, so a state passed to a
// strategy is never modified and every intermediate state can be inspected in
// isolation.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/grocer-offers/internal/domain/offer"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Line is one product+quantity entry of the cart being priced. UnitPrice is
// the price before any offer is applied.
type Line struct {
	ID         string
	ProductID  string
	CategoryID string
	BrandID    string
	Quantity   int
	UnitPrice  decimal.Decimal
}

// LineState is the working state of one cart line.
type LineState struct {
	Line    Line
	Current decimal.Decimal
	// Applied holds the names of the offers that claimed the line, in
	// evaluation order.
	Applied []string
	// Exclusive is set once a non-stackable offer claims the line. No later
	// offer may touch an exclusive line.
	Exclusive      bool
	SavingsPerUnit decimal.Decimal
}

// Original returns the unit price before any offer.
func (l *LineState) Original() decimal.Decimal { return l.Line.UnitPrice }

func (l *LineState) qty() decimal.Decimal {
	return decimal.NewFromInt(int64(l.Line.Quantity))
}

func (l *LineState) total() decimal.Decimal {
	return l.Current.Mul(l.qty())
}

// claimable reports whether o may still modify the line.
func (l *LineState) claimable(o *offer.Offer) bool {
	if l.Exclusive {
		return false
	}
	if len(l.Applied) > 0 && !o.IsStackable {
		return false
	}
	return true
}

// claim records that o touched the line.
func (l *LineState) claim(o *offer.Offer) {
	if n := len(l.Applied); n == 0 || l.Applied[n-1] != o.Name {
		l.Applied = append(l.Applied, o.Name)
	}
	if !o.IsStackable {
		l.Exclusive = true
	}
}

// lower reduces the unit price by up to perUnit without going below zero and
// returns the reduction actually applied.
func (l *LineState) lower(perUnit decimal.Decimal) decimal.Decimal {
	perUnit = decimal.Min(floorAtZero(perUnit), l.Current)
	l.Current = l.Current.Sub(perUnit)
	l.SavingsPerUnit = l.SavingsPerUnit.Add(perUnit)
	return perUnit
}

// CartState is the value threaded through the offer fold.
type CartState struct {
	Lines  []LineState
	Points decimal.Decimal
}

// NewCartState builds the initial state for lines. The caller's slice is
// copied.
func NewCartState(lines []Line) CartState {
	s := CartState{Lines: make([]LineState, len(lines)), Points: zero}
	for i, l := range lines {
		s.Lines[i] = LineState{
			Line:           l,
			Current:        l.UnitPrice,
			SavingsPerUnit: zero,
		}
	}
	return s
}

// Clone returns a deep copy of s.
func (s CartState) Clone() CartState {
	out := CartState{Lines: make([]LineState, len(s.Lines)), Points: s.Points}
	for i, l := range s.Lines {
		l.Applied = append([]string(nil), l.Applied...)
		out.Lines[i] = l
	}
	return out
}

// Total returns the sum of current price times quantity over all lines.
func (s CartState) Total() decimal.Decimal {
	sum := zero
	for i := range s.Lines {
		sum = sum.Add(s.Lines[i].total())
	}
	return sum
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
