// Package velocity provides payer transaction velocity counting for
// the velocity rule.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/finwatch/kestrel/internal/domain"
)

// Service counts recent transactions per payer. The cache's atomic
// counters are the fast path: every scoring run increments the payer's
// window counter exactly once, so the counter value minus one is the
// number of prior transactions in the window. When the cache is
// unavailable the persisted detections are counted instead.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new velocity service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// CountPrior returns the number of transactions already seen for the
// payer within the window, not counting the one being scored.
func (s *Service) CountPrior(ctx context.Context, payerKey string, window time.Duration) (int64, error) {
	if payerKey == "" {
		return 0, fmt.Errorf("payer key is required")
	}

	if s.cache != nil {
		count, err := s.cache.IncrementCounter(ctx, "velocity:"+payerKey, window)
		if err == nil {
			return count - 1, nil
		}
	}

	if s.repo != nil {
		since := time.Now().Add(-window)
		return s.repo.CountRecentByPayer(ctx, payerKey, since)
	}

	return 0, fmt.Errorf("no data source available")
}

// Getter returns the VelocityGetter function signature expected by the
// rule evaluator.
func (s *Service) Getter() func(ctx context.Context, payerKey string, window time.Duration) (int64, error) {
	return s.CountPrior
}
