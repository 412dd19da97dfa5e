package pricing

import "github.com/xenking/grocer-offers/internal/domain/offer"

// Eligible returns the indexes of the lines o may apply to, in cart order.
//
// A line is eligible when at least one inclusion target matches it, no
// exclusion target matches it, and it has not been claimed in a way that
// blocks o. An offer without targets matches nothing.
func Eligible(o *offer.Offer, lines []LineState) []int {
	if len(o.Targets) == 0 {
		return nil
	}

	var out []int
	for i := range lines {
		if !lines[i].claimable(o) {
			continue
		}
		if MatchesTargets(o.Targets, lines[i].Line) {
			out = append(out, i)
		}
	}
	return out
}

// MatchesTargets evaluates the inclusion and exclusion rules against a line.
func MatchesTargets(targets []offer.Target, line Line) bool {
	included, excluded := false, false
	for _, t := range targets {
		if t.IsExcluded {
			// all_products cannot be used to exclude.
			if t.Type != offer.TargetAllProducts && fieldMatches(t, line) {
				excluded = true
			}
			continue
		}
		if t.Type == offer.TargetAllProducts || fieldMatches(t, line) {
			included = true
		}
	}
	return included && !excluded
}

// fieldMatches compares the reference of a product, category or brand target
// with the line. Blank references never match.
func fieldMatches(t offer.Target, line Line) bool {
	switch t.Type {
	case offer.TargetProduct:
		return t.ProductID != "" && t.ProductID == line.ProductID
	case offer.TargetCategory:
		return t.CategoryID != "" && t.CategoryID == line.CategoryID
	case offer.TargetBrand:
		return t.BrandID != "" && t.BrandID == line.BrandID
	default:
		return false
	}
}
