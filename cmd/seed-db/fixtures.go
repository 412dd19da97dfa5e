package main

import (
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xenking/grocer-offers/internal/domain/offer"
	"github.com/xenking/grocer-offers/internal/domain/product"
)

type productYAML struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Price    decimal.Decimal `yaml:"price"`
	Category string          `yaml:"category"`
	Brand    string          `yaml:"brand"`
}

type targetYAML struct {
	Type     offer.TargetType `yaml:"type"`
	Product  string           `yaml:"product"`
	Category string           `yaml:"category"`
	Brand    string           `yaml:"brand"`
	Exclude  bool             `yaml:"exclude"`
}

type offerYAML struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	Type           offer.Type        `yaml:"type"`
	Benefit        offer.BenefitType `yaml:"benefit"`
	ValueType      offer.ValueType   `yaml:"valueType"`
	Value          decimal.Decimal   `yaml:"value"`
	MinOrderValue  decimal.Decimal   `yaml:"minOrderValue"`
	MaxDiscount    *decimal.Decimal  `yaml:"maxDiscount"`
	Buy            int               `yaml:"buy"`
	Get            int               `yaml:"get"`
	CheapestFree   *bool             `yaml:"cheapestFree"`
	Start          *time.Time        `yaml:"start"`
	End            *time.Time        `yaml:"end"`
	Inactive       bool              `yaml:"inactive"`
	Priority       int               `yaml:"priority"`
	Stackable      bool              `yaml:"stackable"`
	UsageLimit     *int              `yaml:"usageLimit"`
	UsageLimitUser *int              `yaml:"usageLimitPerUser"`
	Targets        []targetYAML      `yaml:"targets"`
}

type retailerYAML struct {
	ID       string        `yaml:"id"`
	Products []productYAML `yaml:"products"`
	Offers   []offerYAML   `yaml:"offers"`
}

type fixturesYAML struct {
	Retailers []retailerYAML `yaml:"retailers"`
}

// fixtures is the parsed, validated seed data.
type fixtures struct {
	Products []product.Product
	Offers   []offer.Offer
}

func (f fixtures) retailers() []string {
	var ids []string
	for _, p := range f.Products {
		ids = append(ids, p.RetailerID)
	}
	for _, o := range f.Offers {
		ids = append(ids, o.RetailerID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// parseFixtures decodes the YAML seed file. Offers without a start date
// start immediately and offers are active and free the cheapest units unless
// stated otherwise.
func parseFixtures(data []byte) (fixtures, error) {
	var raw fixturesYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fixtures{}, errors.Wrap(err, "parse fixtures YAML")
	}

	now := time.Now().UTC()
	var out fixtures
	for _, r := range raw.Retailers {
		if r.ID == "" {
			return fixtures{}, errors.New("retailer without id")
		}
		for _, p := range r.Products {
			out.Products = append(out.Products, product.Product{
				ID:         p.ID,
				RetailerID: r.ID,
				Name:       p.Name,
				Price:      p.Price,
				CategoryID: p.Category,
				BrandID:    p.Brand,
			})
		}
		for _, y := range r.Offers {
			o := y.toOffer(r.ID, now)
			if err := o.Validate(); err != nil {
				return fixtures{}, errors.Wrapf(err, "offer %q of retailer %s", y.ID, r.ID)
			}
			out.Offers = append(out.Offers, o)
		}
	}
	return out, nil
}

func (y offerYAML) toOffer(retailerID string, now time.Time) offer.Offer {
	o := offer.Offer{
		ID:                y.ID,
		RetailerID:        retailerID,
		Name:              y.Name,
		Description:       y.Description,
		Type:              y.Type,
		BenefitType:       y.Benefit,
		ValueType:         y.ValueType,
		Value:             y.Value,
		MinOrderValue:     y.MinOrderValue,
		MaxDiscountAmount: y.MaxDiscount,
		BuyQuantity:       y.Buy,
		GetQuantity:       y.Get,
		IsCheapestFree:    y.CheapestFree == nil || *y.CheapestFree,
		StartDate:         now,
		EndDate:           y.End,
		IsActive:          !y.Inactive,
		Priority:          y.Priority,
		IsStackable:       y.Stackable,
		UsageLimitTotal:   y.UsageLimit,
		UsageLimitPerUser: y.UsageLimitUser,
		Targets:           make([]offer.Target, 0, len(y.Targets)),
	}
	if y.Start != nil {
		o.StartDate = *y.Start
	}
	for _, t := range y.Targets {
		o.Targets = append(o.Targets, offer.Target{
			Type:       t.Type,
			ProductID:  t.Product,
			CategoryID: t.Category,
			BrandID:    t.Brand,
			IsExcluded: t.Exclude,
		})
	}
	return o
}
