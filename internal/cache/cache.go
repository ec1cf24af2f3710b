package cache

import (
	"context"
	"time"

	"martpos/backend/internal/domain"
)

// StatsCache stores dashboard aggregates so repeated loads do not hit
// the database on every request.
type StatsCache interface {
	Get(ctx context.Context, key string) (*domain.DashboardStats, bool, error)
	Set(ctx context.Context, key string, value *domain.DashboardStats, ttl time.Duration) error
}

type NoopStatsCache struct{}

func (NoopStatsCache) Get(_ context.Context, _ string) (*domain.DashboardStats, bool, error) {
	return nil, false, nil
}

func (NoopStatsCache) Set(_ context.Context, _ string, _ *domain.DashboardStats, _ time.Duration) error {
	return nil
}
