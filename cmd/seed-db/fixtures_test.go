package main

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/grocer-offers/internal/domain/offer"
)

func TestParseFixtures(t *testing.T) {
	data := []byte(`
retailers:
  - id: r1
    products:
      - { id: p1, name: Chips, price: "20.00", category: snacks, brand: crunchy }
    offers:
      - id: o1
        name: Snack Week
        type: percentage
        value: "10"
        start: 2025-06-01T00:00:00Z
        end: 2025-07-01T00:00:00Z
        targets:
          - { type: category, category: snacks }
          - { type: product, product: p9, exclude: true }
      - id: o2
        name: Most expensive free
        type: bxgy
        buy: 2
        get: 1
        cheapestFree: false
        maxDiscount: "15.5"
        inactive: true
  - id: r2
    offers:
      - { id: o3, name: Points, type: cart_value, benefit: credit_points, value: "2" }
`)

	before := time.Now().UTC()
	fx, err := parseFixtures(data)
	require.NoError(t, err)

	require.Len(t, fx.Products, 1)
	p := fx.Products[0]
	assert.Equal(t, "r1", p.RetailerID)
	assert.Equal(t, "20", p.Price.String())
	assert.Equal(t, "snacks", p.CategoryID)
	assert.Equal(t, "crunchy", p.BrandID)

	require.Len(t, fx.Offers, 3)
	o1 := fx.Offers[0]
	assert.Equal(t, offer.TypePercentage, o1.Type)
	assert.True(t, o1.IsActive)
	assert.True(t, o1.IsCheapestFree)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), o1.StartDate.UTC())
	require.NotNil(t, o1.EndDate)
	assert.Equal(t, []offer.Target{
		{Type: offer.TargetCategory, CategoryID: "snacks"},
		{Type: offer.TargetProduct, ProductID: "p9", IsExcluded: true},
	}, o1.Targets)

	o2 := fx.Offers[1]
	assert.False(t, o2.IsActive)
	assert.False(t, o2.IsCheapestFree)
	require.NotNil(t, o2.MaxDiscountAmount)
	assert.Equal(t, "15.5", o2.MaxDiscountAmount.String())
	assert.False(t, o2.StartDate.Before(before), "missing start defaults to now")
	assert.NotNil(t, o2.Targets)
	assert.Empty(t, o2.Targets)

	o3 := fx.Offers[2]
	assert.Equal(t, "r2", o3.RetailerID)
	assert.Equal(t, offer.BenefitCreditPoints, o3.BenefitType)

	assert.Equal(t, []string{"r1", "r2"}, fx.retailers())
}

func TestParseFixtures_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{name: "bad yaml", data: "retailers: [", wantErr: "parse fixtures YAML"},
		{name: "retailer without id", data: "retailers: [{products: []}]", wantErr: "retailer without id"},
		{
			name:    "invalid offer",
			data:    "retailers: [{id: r1, offers: [{id: o1, name: x, type: mystery}]}]",
			wantErr: `offer "o1" of retailer r1`,
		},
		{
			name:    "bad decimal",
			data:    `retailers: [{id: r1, products: [{id: p1, name: x, price: "cheap"}]}]`,
			wantErr: "parse fixtures YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFixtures([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseFixtures_SeedFile(t *testing.T) {
	data, err := os.ReadFile("../../db/seed/fixtures.yaml")
	require.NoError(t, err)

	fx, err := parseFixtures(data)
	require.NoError(t, err)

	assert.NotEmpty(t, fx.Products)
	assert.NotEmpty(t, fx.Offers)
	assert.Equal(t, []string{"corner-shop", "fresh-mart"}, fx.retailers())
}
