// Package rediscache provides a Redis read-through cache for offer candidates.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/grocer-offers/internal/domain/offer"
)

const keyPrefix = "offers:candidates:"

// Store is the subset of the go-redis client used by the cache.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewClient parses a redis:// URL and verifies connectivity.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// Key returns the cache key of a retailer's candidate list.
func Key(retailerID string) string {
	return keyPrefix + retailerID
}

var _ offer.Repository = (*OfferRepository)(nil)

// OfferRepository caches the candidate lists of another offer.Repository.
// Cache failures are logged and fall through to the wrapped repository.
type OfferRepository struct {
	next  offer.Repository
	store Store
	ttl   time.Duration
}

// NewOfferRepository wraps next with a cache entry per retailer that lives
// for ttl.
func NewOfferRepository(next offer.Repository, store Store, ttl time.Duration) *OfferRepository {
	return &OfferRepository{next: next, store: store, ttl: ttl}
}

// ListCandidates returns the cached candidates of the retailer, loading and
// caching them on a miss.
func (r *OfferRepository) ListCandidates(ctx context.Context, retailerID string) ([]offer.Offer, error) {
	lg := zctx.From(ctx).With(zap.String("retailer_id", retailerID))
	key := Key(retailerID)

	raw, err := r.store.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var offers []offer.Offer
		decodeErr := json.Unmarshal(raw, &offers)
		if decodeErr == nil {
			return offers, nil
		}
		lg.Warn("Discarding undecodable offer cache entry", zap.Error(decodeErr))
	case errors.Is(err, redis.Nil):
	default:
		lg.Warn("Offer cache read failed", zap.Error(err))
	}

	offers, err := r.next.ListCandidates(ctx, retailerID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(offers)
	if err != nil {
		return nil, errors.Wrap(err, "encode offers")
	}
	if err := r.store.Set(ctx, key, data, r.ttl).Err(); err != nil {
		lg.Warn("Offer cache write failed", zap.Error(err))
	}
	return offers, nil
}

// Invalidate drops the cached candidates of the given retailers.
func (r *OfferRepository) Invalidate(ctx context.Context, retailerIDs ...string) error {
	if len(retailerIDs) == 0 {
		return nil
	}
	keys := make([]string, len(retailerIDs))
	for i, id := range retailerIDs {
		keys[i] = Key(id)
	}
	if err := r.store.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "delete cache keys")
	}
	return nil
}
