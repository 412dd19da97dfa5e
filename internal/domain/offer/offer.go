package offer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the promotion algorithms an offer can use.
type Type string

const (
	// TypePercentage takes a percentage off every eligible unit.
	TypePercentage Type = "percentage"
	// TypeFlatAmount takes a fixed amount off every eligible unit.
	TypeFlatAmount Type = "flat_amount"
	// TypeCartValue discounts the whole cart once it reaches a threshold.
	TypeCartValue Type = "cart_value"
	// TypeBuyXGetY pools eligible units and grants some of them free.
	TypeBuyXGetY Type = "bxgy"
	// TypeTieredPrice is configurable by retailers but has no pricing effect yet.
	TypeTieredPrice Type = "tiered_price"
	// TypeFlatPrice is configurable by retailers but has no pricing effect yet.
	TypeFlatPrice Type = "flat_price"
)

var typeLabels = map[Type]string{
	TypeBuyXGetY:    "Buy X Get Y",
	TypePercentage:  "Percentage Discount",
	TypeFlatAmount:  "Flat Amount Off",
	TypeCartValue:   "Cart Value Discount",
	TypeTieredPrice: "Tiered/Wholesale Price",
	TypeFlatPrice:   "Flat Price Sale",
}

// Label returns the human readable name of the offer type.
func (t Type) Label() string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Valid reports whether t is a known offer type.
func (t Type) Valid() bool {
	_, ok := typeLabels[t]
	return ok
}

// BenefitType selects whether an offer lowers prices or accrues points.
type BenefitType string

const (
	BenefitDiscount     BenefitType = "discount"
	BenefitCreditPoints BenefitType = "credit_points"
)

// ValueType says how Offer.Value is interpreted by cart_value offers.
type ValueType string

const (
	ValuePercent ValueType = "percent"
	ValueAmount  ValueType = "amount"
)

// TargetType is the dimension an OfferTarget matches on.
type TargetType string

const (
	TargetAllProducts TargetType = "all_products"
	TargetProduct     TargetType = "product"
	TargetCategory    TargetType = "category"
	TargetBrand       TargetType = "brand"
)

// ErrRetailerRequired is returned when an operation is called without a
// retailer id.
var ErrRetailerRequired = errors.New("retailer id required")

// Offer is a retailer-scoped promotion definition. It is read-only to the
// pricing engine.
type Offer struct {
	ID          string          `json:"id"`
	RetailerID  string          `json:"retailerId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        Type            `json:"offerType"`
	BenefitType BenefitType     `json:"benefitType"`
	ValueType   ValueType       `json:"valueType"`
	Value       decimal.Decimal `json:"value"`

	MinOrderValue decimal.Decimal `json:"minOrderValue"`
	// MaxDiscountAmount caps cart_value offers only. Nil means uncapped.
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount,omitempty"`

	BuyQuantity    int  `json:"buyQuantity"`
	GetQuantity    int  `json:"getQuantity"`
	IsCheapestFree bool `json:"isCheapestFree"`

	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	IsActive  bool       `json:"isActive"`
	Priority  int        `json:"priority"`

	IsStackable bool `json:"isStackable"`

	UsageLimitTotal    *int `json:"usageLimitTotal,omitempty"`
	UsageLimitPerUser  *int `json:"usageLimitPerUser,omitempty"`
	CurrentRedemptions int  `json:"currentRedemptions"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Targets []Target `json:"targets"`
}

// Target is one inclusion or exclusion rule of an offer. Exactly one of
// ProductID, CategoryID and BrandID is set unless Type is all_products.
type Target struct {
	Type       TargetType `json:"targetType"`
	ProductID  string     `json:"productId,omitempty"`
	CategoryID string     `json:"categoryId,omitempty"`
	BrandID    string     `json:"brandId,omitempty"`
	IsExcluded bool       `json:"isExcluded"`
}

// IsValidAt reports whether the offer may be evaluated at now: active,
// inside its validity window and under its total usage limit.
func (o *Offer) IsValidAt(now time.Time) bool {
	if !o.IsActive {
		return false
	}
	if now.Before(o.StartDate) {
		return false
	}
	if o.EndDate != nil && now.After(*o.EndDate) {
		return false
	}
	if o.UsageLimitTotal != nil && o.CurrentRedemptions >= *o.UsageLimitTotal {
		return false
	}
	return true
}

// Repository provides the per-retailer offer candidates. Implementations
// return active offers with their targets; validity against a point in time
// is decided by the Selector.
type Repository interface {
	ListCandidates(ctx context.Context, retailerID string) ([]Offer, error)
}
