package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/grocer-offers/internal/domain/offer"
)

// AppliedOffer is the audit record of an offer that produced an effect.
type AppliedOffer struct {
	OfferID     string
	Name        string
	Description string
	// Savings is the money saved by a discount offer or the points accrued by
	// a credit_points offer.
	Savings     decimal.Decimal
	BenefitType offer.BenefitType
	OfferType   offer.Type
}

// TypeLabel returns the display name of the offer type.
func (a AppliedOffer) TypeLabel() string { return a.OfferType.Label() }

// ItemDiscount describes the final pricing of one cart line.
type ItemDiscount struct {
	LineID        string
	OriginalPrice decimal.Decimal
	FinalPrice    decimal.Decimal
	// AppliedOffer is the comma-joined list of offers that touched the line,
	// empty when none did.
	AppliedOffer string
}

// Result is the engine output.
type Result struct {
	Subtotal        decimal.Decimal
	DiscountedTotal decimal.Decimal
	TotalSavings    decimal.Decimal
	TotalPoints     decimal.Decimal
	AppliedOffers   []AppliedOffer
	// ItemDiscounts follows cart order.
	ItemDiscounts []ItemDiscount
}

// ItemDiscount returns the entry for lineID.
func (r *Result) ItemDiscount(lineID string) (ItemDiscount, bool) {
	for _, it := range r.ItemDiscounts {
		if it.LineID == lineID {
			return it, true
		}
	}
	return ItemDiscount{}, false
}

// EmptyResult is the canonical result of an empty cart.
func EmptyResult() Result {
	return Result{
		Subtotal:        zero,
		DiscountedTotal: zero,
		TotalSavings:    zero,
		TotalPoints:     zero,
		AppliedOffers:   []AppliedOffer{},
		ItemDiscounts:   []ItemDiscount{},
	}
}

// Aggregate folds the final cart state and the audit list into a Result.
// Every monetary value is rounded half-up to two decimals.
func Aggregate(state CartState, applied []AppliedOffer) Result {
	subtotal, discounted := zero, zero
	items := make([]ItemDiscount, len(state.Lines))
	for i := range state.Lines {
		l := &state.Lines[i]
		subtotal = subtotal.Add(l.Original().Mul(l.qty()))
		discounted = discounted.Add(l.total())
		items[i] = ItemDiscount{
			LineID:        l.Line.ID,
			OriginalPrice: l.Original().Round(2),
			FinalPrice:    l.Current.Round(2),
			AppliedOffer:  strings.Join(l.Applied, ", "),
		}
	}

	subtotal = subtotal.Round(2)
	discounted = discounted.Round(2)

	out := make([]AppliedOffer, len(applied))
	for i, a := range applied {
		a.Savings = a.Savings.Round(2)
		out[i] = a
	}

	return Result{
		Subtotal:        subtotal,
		DiscountedTotal: discounted,
		TotalSavings:    subtotal.Sub(discounted),
		TotalPoints:     state.Points.Round(2),
		AppliedOffers:   out,
		ItemDiscounts:   items,
	}
}
