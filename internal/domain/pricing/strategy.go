package pricing

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/grocer-offers/internal/domain/offer"
)

// Strategy applies one offer to a cart state. eligible holds the indexes of
// the lines the TargetMatcher accepted for the offer. Implementations must not
// modify in; they return the next state and the amount the offer produced
// (money saved for discounts, points for credit offers).
type Strategy interface {
	Apply(o *offer.Offer, in CartState, eligible []int) (CartState, decimal.Decimal)
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc func(o *offer.Offer, in CartState, eligible []int) (CartState, decimal.Decimal)

// Apply calls fn.
func (fn StrategyFunc) Apply(o *offer.Offer, in CartState, eligible []int) (CartState, decimal.Decimal) {
	return fn(o, in, eligible)
}

// Percentage takes Value percent off the current unit price of every
// eligible line. MaxDiscountAmount is not applied.
var Percentage = StrategyFunc(func(o *offer.Offer, in CartState, eligible []int) (CartState, decimal.Decimal) {
	out := in.Clone()
	savings := zero
	for _, idx := range eligible {
		l := &out.Lines[idx]
		reduced := l.lower(l.Current.Mul(o.Value).Div(hundred))
		savings = savings.Add(reduced.Mul(l.qty()))
		l.claim(o)
	}
	return out, savings
})

// FlatAmount takes Value off every eligible unit, never below zero.
var FlatAmount = StrategyFunc(func(o *offer.Offer, in CartState, eligible []int) (CartState, decimal.Decimal) {
	out := in.Clone()
	savings := zero
	for _, idx := range eligible {
		l := &out.Lines[idx]
		reduced := l.lower(o.Value)
		savings = savings.Add(reduced.Mul(l.qty()))
		l.claim(o)
	}
	return out, savings
})

// CartValue discounts the whole cart once its current total reaches
// MinOrderValue. The discount is spread over every claimable line in
// proportion to the line's share of the cart total, regardless of targets.
var CartValue = StrategyFunc(func(o *offer.Offer, in CartState, _ []int) (CartState, decimal.Decimal) {
	cartTotal := in.Total()
	if !cartTotal.IsPositive() || cartTotal.LessThan(o.MinOrderValue) {
		return in, zero
	}

	discount := cartValueAmount(o, cartTotal)
	if !discount.IsPositive() {
		return in, zero
	}

	out := in.Clone()
	savings := zero
	for i := range out.Lines {
		l := &out.Lines[i]
		if l.Line.Quantity <= 0 || !l.claimable(o) {
			continue
		}
		share := discount.Mul(l.total()).Div(cartTotal)
		reduced := l.lower(share.Div(l.qty()))
		savings = savings.Add(reduced.Mul(l.qty()))
		l.claim(o)
	}
	return out, savings
})

// cartValueAmount returns the cart-wide amount of a cart_value offer for the
// given total: Value for amount offers, otherwise Value percent of the total
// capped at MaxDiscountAmount.
func cartValueAmount(o *offer.Offer, cartTotal decimal.Decimal) decimal.Decimal {
	if o.ValueType == offer.ValueAmount {
		return floorAtZero(o.Value)
	}
	amount := cartTotal.Mul(o.Value).Div(hundred)
	if o.MaxDiscountAmount != nil && amount.GreaterThan(*o.MaxDiscountAmount) {
		amount = *o.MaxDiscountAmount
	}
	return floorAtZero(amount)
}

// unitBucket is a run of identically priced units owned by one line.
type unitBucket struct {
	line  int
	price decimal.Decimal
	units int
}

// BuyXGetY pools the units of all eligible lines and grants GetQuantity free
// units for every complete group of BuyQuantity+GetQuantity. Free units are
// taken cheapest first, or most expensive first when IsCheapestFree is false.
// Equal prices keep cart order. The value of a free unit is spread over its
// owner line's quantity.
var BuyXGetY = StrategyFunc(func(o *offer.Offer, in CartState, eligible []int) (CartState, decimal.Decimal) {
	if o.GetQuantity <= 0 || o.BuyQuantity < 0 {
		return in, zero
	}

	buckets := make([]unitBucket, 0, len(eligible))
	totalUnits := 0
	for _, idx := range eligible {
		l := &in.Lines[idx]
		if l.Line.Quantity <= 0 {
			continue
		}
		buckets = append(buckets, unitBucket{line: idx, price: l.Current, units: l.Line.Quantity})
		totalUnits += l.Line.Quantity
	}

	groupSize := o.BuyQuantity + o.GetQuantity
	free := (totalUnits / groupSize) * o.GetQuantity
	if free == 0 {
		return in, zero
	}

	slices.SortStableFunc(buckets, func(a, b unitBucket) int {
		if o.IsCheapestFree {
			return a.price.Cmp(b.price)
		}
		return b.price.Cmp(a.price)
	})

	out := in.Clone()
	savings := zero
	for _, b := range buckets {
		if free == 0 {
			break
		}
		n := min(free, b.units)
		free -= n

		l := &out.Lines[b.line]
		value := b.price.Mul(decimal.NewFromInt(int64(n)))
		reduced := l.lower(value.Div(l.qty()))
		savings = savings.Add(reduced.Mul(l.qty()))
		l.claim(o)
	}
	return out, savings
})

// PercentagePoints accrues Value percent of each eligible line total as
// points. Prices are left untouched.
var PercentagePoints = StrategyFunc(func(o *offer.Offer, in CartState, eligible []int) (CartState, decimal.Decimal) {
	out := in.Clone()
	points := zero
	for _, idx := range eligible {
		l := &out.Lines[idx]
		points = points.Add(floorAtZero(l.total().Mul(o.Value).Div(hundred)))
		l.claim(o)
	}
	return out, points
})

// FlatPoints accrues Value points per eligible unit.
var FlatPoints = StrategyFunc(func(o *offer.Offer, in CartState, eligible []int) (CartState, decimal.Decimal) {
	out := in.Clone()
	points := zero
	for _, idx := range eligible {
		l := &out.Lines[idx]
		points = points.Add(floorAtZero(o.Value.Mul(l.qty())))
		l.claim(o)
	}
	return out, points
})

// CartValuePoints accrues the cart_value amount as points once the cart
// reaches MinOrderValue, claiming the eligible lines. A cart worth nothing
// earns nothing, as with CartValue.
var CartValuePoints = StrategyFunc(func(o *offer.Offer, in CartState, eligible []int) (CartState, decimal.Decimal) {
	cartTotal := in.Total()
	if !cartTotal.IsPositive() || cartTotal.LessThan(o.MinOrderValue) {
		return in, zero
	}

	out := in.Clone()
	for _, idx := range eligible {
		out.Lines[idx].claim(o)
	}
	return out, cartValueAmount(o, cartTotal)
})
