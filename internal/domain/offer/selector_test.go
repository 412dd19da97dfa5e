package offer

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOfferRepo struct {
	offers   []Offer
	err      error
	retailer string
}

func (m *mockOfferRepo) ListCandidates(_ context.Context, retailerID string) ([]Offer, error) {
	m.retailer = retailerID
	return m.offers, m.err
}

func intPtr(v int) *int { return &v }

func TestOffer_IsValidAt(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name  string
		offer Offer
		want  bool
	}{
		{
			name:  "active open-ended offer",
			offer: Offer{IsActive: true, StartDate: past},
			want:  true,
		},
		{
			name:  "inactive offer",
			offer: Offer{IsActive: false, StartDate: past},
			want:  false,
		},
		{
			name:  "not started yet",
			offer: Offer{IsActive: true, StartDate: future},
			want:  false,
		},
		{
			name:  "starts exactly now",
			offer: Offer{IsActive: true, StartDate: now},
			want:  true,
		},
		{
			name:  "ended",
			offer: Offer{IsActive: true, StartDate: past, EndDate: &past},
			want:  false,
		},
		{
			name:  "ends exactly now",
			offer: Offer{IsActive: true, StartDate: past, EndDate: &now},
			want:  true,
		},
		{
			name:  "usage limit reached",
			offer: Offer{IsActive: true, StartDate: past, UsageLimitTotal: intPtr(10), CurrentRedemptions: 10},
			want:  false,
		},
		{
			name:  "usage under limit",
			offer: Offer{IsActive: true, StartDate: past, UsageLimitTotal: intPtr(10), CurrentRedemptions: 9},
			want:  true,
		},
		{
			name:  "no usage limit",
			offer: Offer{IsActive: true, StartDate: past, CurrentRedemptions: 9999},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.offer.IsValidAt(now))
		})
	}
}

func TestSelect_OrdersByPriorityThenNewest(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)

	candidates := []Offer{
		{ID: "low", Priority: 1, IsActive: true, StartDate: start, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "high-old", Priority: 10, IsActive: true, StartDate: start, CreatedAt: now.Add(-5 * time.Hour)},
		{ID: "inactive", Priority: 99, IsActive: false, StartDate: start},
		{ID: "high-new", Priority: 10, IsActive: true, StartDate: start, CreatedAt: now.Add(-time.Hour)},
		{ID: "future", Priority: 50, IsActive: true, StartDate: now.Add(time.Hour)},
	}

	got := Select(candidates, now)

	ids := make([]string, len(got))
	for i, o := range got {
		ids[i] = o.ID
	}
	assert.Equal(t, []string{"high-new", "high-old", "low"}, ids)
	assert.Equal(t, "low", candidates[0].ID, "input must not be reordered")
}

func TestRepoSelector_ActiveOffers(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("filters and sorts candidates", func(t *testing.T) {
		repo := &mockOfferRepo{offers: []Offer{
			{ID: "a", Priority: 1, IsActive: true, StartDate: fixedNow.Add(-time.Hour), Value: decimal.NewFromInt(5)},
			{ID: "b", Priority: 5, IsActive: true, StartDate: fixedNow.Add(-time.Hour)},
			{ID: "c", Priority: 9, IsActive: true, StartDate: fixedNow.Add(time.Hour)},
		}}
		s := NewRepoSelector(repo)
		s.now = func() time.Time { return fixedNow }

		got, err := s.ActiveOffers(context.Background(), "r1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "b", got[0].ID)
		assert.Equal(t, "a", got[1].ID)
		assert.Equal(t, "r1", repo.retailer)
	})

	t.Run("blank retailer", func(t *testing.T) {
		s := NewRepoSelector(&mockOfferRepo{})
		_, err := s.ActiveOffers(context.Background(), "  ")
		require.ErrorIs(t, err, ErrRetailerRequired)
	})

	t.Run("repository error is wrapped", func(t *testing.T) {
		s := NewRepoSelector(&mockOfferRepo{err: errors.New("db down")})
		_, err := s.ActiveOffers(context.Background(), "r1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "list offer candidates")
	})
}

func TestType_Label(t *testing.T) {
	assert.Equal(t, "Buy X Get Y", TypeBuyXGetY.Label())
	assert.Equal(t, "Cart Value Discount", TypeCartValue.Label())
	assert.Equal(t, "mystery", Type("mystery").Label())
	assert.True(t, TypeFlatPrice.Valid())
	assert.False(t, Type("mystery").Valid())
}
