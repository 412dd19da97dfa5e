package offer

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Selector returns the offers that may be applied to a retailer's cart at the
// moment of the call, highest priority first.
type Selector interface {
	ActiveOffers(ctx context.Context, retailerID string) ([]Offer, error)
}

// RepoSelector implements Selector on top of a Repository.
type RepoSelector struct {
	repo Repository
	now  func() time.Time
}

// NewRepoSelector creates a RepoSelector backed by the given Repository.
func NewRepoSelector(repo Repository) *RepoSelector {
	return &RepoSelector{repo: repo, now: time.Now}
}

// ActiveOffers loads the retailer's candidates and narrows them with Select.
func (s *RepoSelector) ActiveOffers(ctx context.Context, retailerID string) ([]Offer, error) {
	if strings.TrimSpace(retailerID) == "" {
		return nil, ErrRetailerRequired
	}

	candidates, err := s.repo.ListCandidates(ctx, retailerID)
	if err != nil {
		return nil, errors.Wrap(err, "list offer candidates")
	}

	return Select(candidates, s.now()), nil
}

// Select keeps the offers valid at now and orders them by priority
// descending. Ties go to the most recently created offer, then to the
// original order. The input slice is not modified.
func Select(candidates []Offer, now time.Time) []Offer {
	out := make([]Offer, 0, len(candidates))
	for i := range candidates {
		if candidates[i].IsValidAt(now) {
			out = append(out, candidates[i])
		}
	}

	slices.SortStableFunc(out, func(a, b Offer) int {
		if a.Priority != b.Priority {
			if a.Priority > b.Priority {
				return -1
			}
			return 1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return out
}
