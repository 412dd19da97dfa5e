package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/grocer-offers/internal/domain/offer"
)

type strategyKey struct {
	benefit offer.BenefitType
	typ     offer.Type
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategy registers s for offers of the given benefit and offer type,
// replacing any default.
func WithStrategy(benefit offer.BenefitType, typ offer.Type, s Strategy) Option {
	return func(e *Engine) {
		e.strategies[strategyKey{benefit: benefit, typ: typ}] = s
	}
}

// Engine evaluates offers against cart lines. It holds no per-call state and
// is safe for concurrent use.
type Engine struct {
	strategies map[strategyKey]Strategy
}

// New returns an Engine with the default strategies. Offer types without a
// strategy (tiered_price, flat_price, bxgy points) are skipped.
func New(opts ...Option) *Engine {
	e := &Engine{strategies: map[strategyKey]Strategy{
		{offer.BenefitDiscount, offer.TypePercentage}:     Percentage,
		{offer.BenefitDiscount, offer.TypeFlatAmount}:     FlatAmount,
		{offer.BenefitDiscount, offer.TypeCartValue}:      CartValue,
		{offer.BenefitDiscount, offer.TypeBuyXGetY}:       BuyXGetY,
		{offer.BenefitCreditPoints, offer.TypePercentage}: PercentagePoints,
		{offer.BenefitCreditPoints, offer.TypeFlatAmount}: FlatPoints,
		{offer.BenefitCreditPoints, offer.TypeCartValue}:  CartValuePoints,
	}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calculate applies offers, already filtered and sorted by priority, to
// lines. Neither argument is modified.
func (e *Engine) Calculate(offers []offer.Offer, lines []Line) Result {
	if len(lines) == 0 {
		return EmptyResult()
	}

	state := NewCartState(lines)
	applied := make([]AppliedOffer, 0, len(offers))
	for i := range offers {
		o := &offers[i]

		var amount decimal.Decimal
		state, amount = e.Step(o, state)
		if !amount.IsPositive() {
			continue
		}
		applied = append(applied, AppliedOffer{
			OfferID:     o.ID,
			Name:        o.Name,
			Description: o.Description,
			Savings:     amount,
			BenefitType: benefitOf(o),
			OfferType:   o.Type,
		})
	}

	return Aggregate(state, applied)
}

// Step evaluates a single offer against state and returns the next state
// with the amount the offer produced. Credit point amounts are added to the
// returned state's Points.
func (e *Engine) Step(o *offer.Offer, state CartState) (CartState, decimal.Decimal) {
	eligible := Eligible(o, state.Lines)
	if len(eligible) == 0 {
		return state, zero
	}

	benefit := benefitOf(o)
	s, ok := e.strategies[strategyKey{benefit: benefit, typ: o.Type}]
	if !ok {
		return state, zero
	}

	next, amount := s.Apply(o, state, eligible)
	amount = floorAtZero(amount)
	if benefit == offer.BenefitCreditPoints {
		next.Points = next.Points.Add(amount)
	}
	return next, amount
}

// benefitOf treats a blank benefit type as a discount.
func benefitOf(o *offer.Offer) offer.BenefitType {
	if o.BenefitType == "" {
		return offer.BenefitDiscount
	}
	return o.BenefitType
}
