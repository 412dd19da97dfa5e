package offer

import (
	"github.com/go-faster/errors"
)

// Validate checks that an offer definition can be stored. It is used by the
// ingestion tools; the engine itself tolerates incomplete offers.
func (o *Offer) Validate() error {
	switch {
	case o.ID == "":
		return errors.New("id is required")
	case o.RetailerID == "":
		return errors.New("retailerId is required")
	case o.Name == "":
		return errors.New("name is required")
	case !o.Type.Valid():
		return errors.Errorf("unknown offer type %q", o.Type)
	}

	switch o.BenefitType {
	case "", BenefitDiscount, BenefitCreditPoints:
	default:
		return errors.Errorf("unknown benefit type %q", o.BenefitType)
	}
	switch o.ValueType {
	case "", ValuePercent, ValueAmount:
	default:
		return errors.Errorf("unknown value type %q", o.ValueType)
	}

	if o.Value.IsNegative() || o.MinOrderValue.IsNegative() {
		return errors.New("value and minOrderValue must not be negative")
	}
	if o.MaxDiscountAmount != nil && o.MaxDiscountAmount.IsNegative() {
		return errors.New("maxDiscountAmount must not be negative")
	}
	if o.Type == TypeBuyXGetY && (o.BuyQuantity <= 0 || o.GetQuantity < 0) {
		return errors.Errorf("bxgy needs a positive buyQuantity, got %d/%d", o.BuyQuantity, o.GetQuantity)
	}
	if o.EndDate != nil && o.EndDate.Before(o.StartDate) {
		return errors.New("endDate is before startDate")
	}

	for i, t := range o.Targets {
		if err := t.validate(); err != nil {
			return errors.Wrapf(err, "targets[%d]", i)
		}
	}
	return nil
}

func (t Target) validate() error {
	var ref string
	switch t.Type {
	case TargetAllProducts:
		return nil
	case TargetProduct:
		ref = t.ProductID
	case TargetCategory:
		ref = t.CategoryID
	case TargetBrand:
		ref = t.BrandID
	default:
		return errors.Errorf("unknown target type %q", t.Type)
	}
	if ref == "" {
		return errors.Errorf("%s target without an id", t.Type)
	}
	return nil
}
