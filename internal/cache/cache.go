package cache

import (
	"context"
	"time"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
)

// DashboardCache holds assembled dashboard snapshots. Writers delete the
// current key after each change, so a hit is at most one TTL stale only
// when another process wrote to the database.
type DashboardCache interface {
	Get(ctx context.Context, key string) (*domain.Dashboard, bool, error)
	Set(ctx context.Context, key string, value *domain.Dashboard, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopDashboardCache struct{}

func (NoopDashboardCache) Get(_ context.Context, _ string) (*domain.Dashboard, bool, error) {
	return nil, false, nil
}

func (NoopDashboardCache) Set(_ context.Context, _ string, _ *domain.Dashboard, _ time.Duration) error {
	return nil
}

func (NoopDashboardCache) Delete(_ context.Context, _ string) error {
	return nil
}
