package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/grocer-offers/internal/domain/product"
)

const (
	getProductsByIDsSQL = `SELECT id, retailer_id, name, price, category_id, brand_id
		FROM products WHERE id = ANY($1)`

	upsertProductSQL = `INSERT INTO products (id, retailer_id, name, price, category_id, brand_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			retailer_id = EXCLUDED.retailer_id,
			name        = EXCLUDED.name,
			price       = EXCLUDED.price,
			category_id = EXCLUDED.category_id,
			brand_id    = EXCLUDED.brand_id,
			updated_at  = now()`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Upsert inserts or replaces a catalog product.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	if _, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.RetailerID, p.Name, p.Price, p.CategoryID, p.BrandID,
	); err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.RetailerID, &p.Name, &p.Price, &p.CategoryID, &p.BrandID)
	return p, err
}
