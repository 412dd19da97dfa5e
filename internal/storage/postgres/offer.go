package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/grocer-offers/internal/domain/offer"
)

const offerColumns = `id, retailer_id, name, description, offer_type, benefit_type, value_type,
	value, min_order_value, max_discount_amount, buy_quantity, get_quantity, is_cheapest_free,
	start_date, end_date, is_active, priority, is_stackable,
	usage_limit_total, usage_limit_per_user, current_redemptions, created_at, updated_at`

const (
	listCandidateOffersSQL = `SELECT ` + offerColumns + `
		FROM offers
		WHERE retailer_id = $1 AND is_active AND (end_date IS NULL OR end_date >= now())
		ORDER BY priority DESC, created_at DESC`

	getOfferSQL = `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`

	listTargetsSQL = `SELECT offer_id, target_type, product_id, category_id, brand_id, is_excluded
		FROM offer_targets WHERE offer_id = ANY($1) ORDER BY id`

	upsertOfferSQL = `INSERT INTO offers (` + offerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (id) DO UPDATE SET
			retailer_id          = EXCLUDED.retailer_id,
			name                 = EXCLUDED.name,
			description          = EXCLUDED.description,
			offer_type           = EXCLUDED.offer_type,
			benefit_type         = EXCLUDED.benefit_type,
			value_type           = EXCLUDED.value_type,
			value                = EXCLUDED.value,
			min_order_value      = EXCLUDED.min_order_value,
			max_discount_amount  = EXCLUDED.max_discount_amount,
			buy_quantity         = EXCLUDED.buy_quantity,
			get_quantity         = EXCLUDED.get_quantity,
			is_cheapest_free     = EXCLUDED.is_cheapest_free,
			start_date           = EXCLUDED.start_date,
			end_date             = EXCLUDED.end_date,
			is_active            = EXCLUDED.is_active,
			priority             = EXCLUDED.priority,
			is_stackable         = EXCLUDED.is_stackable,
			usage_limit_total    = EXCLUDED.usage_limit_total,
			usage_limit_per_user = EXCLUDED.usage_limit_per_user,
			current_redemptions  = EXCLUDED.current_redemptions,
			updated_at           = EXCLUDED.updated_at`

	deleteTargetsSQL = `DELETE FROM offer_targets WHERE offer_id = $1`
)

var targetColumns = []string{"offer_id", "target_type", "product_id", "category_id", "brand_id", "is_excluded"}

// ErrOfferNotFound is returned by Get for an unknown offer id.
var ErrOfferNotFound = errors.New("offer not found")

var _ offer.Repository = (*OfferRepository)(nil)

// OfferRepository implements offer.Repository backed by PostgreSQL.
type OfferRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository returns an OfferRepository that uses the given pool.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

// ListCandidates returns the retailer's active offers that have not expired,
// with their targets. Start dates and usage limits are left to the selector.
func (r *OfferRepository) ListCandidates(ctx context.Context, retailerID string) ([]offer.Offer, error) {
	rows, err := r.pool.Query(ctx, listCandidateOffersSQL, retailerID)
	if err != nil {
		return nil, errors.Wrapf(err, "list offers for retailer %q", retailerID)
	}
	offers, err := pgx.CollectRows(rows, scanOffer)
	if err != nil {
		return nil, errors.Wrapf(err, "list offers for retailer %q", retailerID)
	}

	if err := r.attachTargets(ctx, offers); err != nil {
		return nil, err
	}
	return offers, nil
}

// Get returns a single offer with its targets.
func (r *OfferRepository) Get(ctx context.Context, id string) (*offer.Offer, error) {
	rows, err := r.pool.Query(ctx, getOfferSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get offer %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOffer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, errors.Wrapf(err, "get offer %q", id)
	}

	offers := []offer.Offer{o}
	if err := r.attachTargets(ctx, offers); err != nil {
		return nil, err
	}
	return &offers[0], nil
}

// Upsert inserts or replaces an offer. The stored target list is replaced by
// o.Targets in the same transaction.
func (r *OfferRepository) Upsert(ctx context.Context, o *offer.Offer) error {
	now := time.Now().UTC()
	createdAt, updatedAt := o.CreatedAt, o.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = now
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertOfferSQL,
			o.ID, o.RetailerID, o.Name, o.Description,
			string(o.Type), string(benefitOrDefault(o.BenefitType)), string(valueTypeOrDefault(o.ValueType)),
			o.Value, o.MinOrderValue, o.MaxDiscountAmount,
			o.BuyQuantity, o.GetQuantity, o.IsCheapestFree,
			o.StartDate, o.EndDate, o.IsActive, o.Priority, o.IsStackable,
			o.UsageLimitTotal, o.UsageLimitPerUser, o.CurrentRedemptions,
			createdAt, updatedAt,
		); err != nil {
			return errors.Wrapf(err, "upsert offer %q", o.ID)
		}

		if _, err := tx.Exec(ctx, deleteTargetsSQL, o.ID); err != nil {
			return errors.Wrapf(err, "delete targets of offer %q", o.ID)
		}
		if len(o.Targets) == 0 {
			return nil
		}

		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"offer_targets"}, targetColumns,
			pgx.CopyFromSlice(len(o.Targets), func(i int) ([]any, error) {
				t := o.Targets[i]
				return []any{o.ID, string(t.Type), t.ProductID, t.CategoryID, t.BrandID, t.IsExcluded}, nil
			}),
		); err != nil {
			return errors.Wrapf(err, "insert targets of offer %q", o.ID)
		}
		return nil
	})
}

// attachTargets loads the targets of all offers in one query.
func (r *OfferRepository) attachTargets(ctx context.Context, offers []offer.Offer) error {
	if len(offers) == 0 {
		return nil
	}

	ids := make([]string, len(offers))
	index := make(map[string]int, len(offers))
	for i := range offers {
		ids[i] = offers[i].ID
		index[offers[i].ID] = i
		offers[i].Targets = []offer.Target{}
	}

	rows, err := r.pool.Query(ctx, listTargetsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list offer targets")
	}

	var (
		offerID, targetType string
		t                   offer.Target
	)
	_, err = pgx.ForEachRow(rows, []any{&offerID, &targetType, &t.ProductID, &t.CategoryID, &t.BrandID, &t.IsExcluded}, func() error {
		t.Type = offer.TargetType(targetType)
		if i, ok := index[offerID]; ok {
			offers[i].Targets = append(offers[i].Targets, t)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "scan offer targets")
	}
	return nil
}

func scanOffer(row pgx.CollectableRow) (offer.Offer, error) {
	var (
		o         offer.Offer
		offerType string
		benefit   string
		valueType string
	)
	err := row.Scan(
		&o.ID, &o.RetailerID, &o.Name, &o.Description, &offerType, &benefit, &valueType,
		&o.Value, &o.MinOrderValue, &o.MaxDiscountAmount, &o.BuyQuantity, &o.GetQuantity, &o.IsCheapestFree,
		&o.StartDate, &o.EndDate, &o.IsActive, &o.Priority, &o.IsStackable,
		&o.UsageLimitTotal, &o.UsageLimitPerUser, &o.CurrentRedemptions, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Type = offer.Type(offerType)
	o.BenefitType = offer.BenefitType(benefit)
	o.ValueType = offer.ValueType(valueType)
	return o, err
}

func benefitOrDefault(b offer.BenefitType) offer.BenefitType {
	if b == "" {
		return offer.BenefitDiscount
	}
	return b
}

func valueTypeOrDefault(v offer.ValueType) offer.ValueType {
	if v == "" {
		return offer.ValuePercent
	}
	return v
}
