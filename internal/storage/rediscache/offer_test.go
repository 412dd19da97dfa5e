package rediscache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/grocer-offers/internal/domain/offer"
)

type mockStore struct {
	data    map[string]string
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	gets    int
	deleted []string
}

func newMockStore() *mockStore {
	return &mockStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockStore) Get(_ context.Context, key string) *redis.StringCmd {
	m.gets++
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockStore) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	if m.setErr != nil {
		return redis.NewStatusResult("", m.setErr)
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *mockStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.data, k)
	}
	m.deleted = append(m.deleted, keys...)
	return redis.NewIntResult(int64(len(keys)), nil)
}

type mockOfferRepo struct {
	offers []offer.Offer
	err    error
	calls  int
}

func (m *mockOfferRepo) ListCandidates(context.Context, string) ([]offer.Offer, error) {
	m.calls++
	return m.offers, m.err
}

func sampleOffers() []offer.Offer {
	maxDiscount := decimal.RequireFromString("15.50")
	end := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []offer.Offer{{
		ID: "o1", RetailerID: "r1", Name: "Cart 10%", Type: offer.TypeCartValue,
		BenefitType: offer.BenefitDiscount, ValueType: offer.ValuePercent,
		Value: decimal.RequireFromString("10"), MinOrderValue: decimal.RequireFromString("50.00"),
		MaxDiscountAmount: &maxDiscount, IsActive: true, Priority: 3, EndDate: &end,
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Targets:   []offer.Target{{Type: offer.TargetAllProducts}},
	}}
}

func TestOfferRepository_ReadThrough(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	next := &mockOfferRepo{offers: sampleOffers()}
	repo := NewOfferRepository(next, store, 30*time.Second)

	first, err := repo.ListCandidates(ctx, "r1")
	require.NoError(t, err)
	second, err := repo.ListCandidates(ctx, "r1")
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 30*time.Second, store.ttls["offers:candidates:r1"])
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].Targets, second[0].Targets)
	assert.True(t, first[0].Value.Equal(second[0].Value))
	require.NotNil(t, second[0].MaxDiscountAmount)
	assert.True(t, first[0].MaxDiscountAmount.Equal(*second[0].MaxDiscountAmount))
	assert.True(t, first[0].EndDate.Equal(*second[0].EndDate))
}

func TestOfferRepository_DegradesOnCacheErrors(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.getErr = errors.New("connection reset")
	store.setErr = errors.New("connection reset")
	next := &mockOfferRepo{offers: sampleOffers()}
	repo := NewOfferRepository(next, store, time.Minute)

	for range 2 {
		got, err := repo.ListCandidates(ctx, "r1")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}
	assert.Equal(t, 2, next.calls)
}

func TestOfferRepository_DiscardsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.data[Key("r1")] = "{not json"
	next := &mockOfferRepo{offers: sampleOffers()}
	repo := NewOfferRepository(next, store, time.Minute)

	got, err := repo.ListCandidates(ctx, "r1")

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, next.calls)
	assert.NotEqual(t, "{not json", store.data[Key("r1")])
}

func TestOfferRepository_RepositoryErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	dbErr := errors.New("db down")
	repo := NewOfferRepository(&mockOfferRepo{err: dbErr}, store, time.Minute)

	_, err := repo.ListCandidates(ctx, "r1")

	require.ErrorIs(t, err, dbErr)
	assert.Empty(t, store.data)
}

func TestOfferRepository_Invalidate(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	next := &mockOfferRepo{offers: sampleOffers()}
	repo := NewOfferRepository(next, store, time.Minute)

	_, err := repo.ListCandidates(ctx, "r1")
	require.NoError(t, err)
	require.NoError(t, repo.Invalidate(ctx, "r1", "r2"))
	_, err = repo.ListCandidates(ctx, "r1")
	require.NoError(t, err)

	assert.Equal(t, []string{"offers:candidates:r1", "offers:candidates:r2"}, store.deleted)
	assert.Equal(t, 2, next.calls)
	require.NoError(t, repo.Invalidate(ctx))
}
