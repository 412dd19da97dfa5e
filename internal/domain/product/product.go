package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is the catalog projection the quote flow needs to build cart lines.
type Product struct {
	ID         string
	RetailerID string
	Name       string
	Price      decimal.Decimal
	CategoryID string
	BrandID    string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	// GetByIDs returns the products with the given ids. Unknown ids are
	// silently omitted.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
