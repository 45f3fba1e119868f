package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
)

func TestNoopDashboardCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c DashboardCache = NoopDashboardCache{}

	require.NoError(t, c.Set(ctx, "dashboard:2024-05-02", &domain.Dashboard{Date: "2024-05-02"}, time.Minute))
	got, ok, err := c.Get(ctx, "dashboard:2024-05-02")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.NoError(t, c.Delete(ctx, "dashboard:2024-05-02"))
}

func TestRedisDashboardCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("POS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set POS_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisDashboardCache(addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))

	key := "dashboard:test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = c.Delete(ctx, key) })

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	want := domain.Dashboard{
		Totals:      domain.DashboardTotals{ProductCount: 6, LifetimeRevenue: decimal.RequireFromString("1400.50")},
		TopProducts: []domain.ProductQuantity{{ProductID: 1, Name: "USB Cable", Quantity: 3}},
	}
	require.NoError(t, c.Set(ctx, key, &want, time.Minute))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 6, got.Totals.ProductCount)
	assert.True(t, got.Totals.LifetimeRevenue.Equal(want.Totals.LifetimeRevenue))
	assert.Equal(t, want.TopProducts, got.TopProducts)

	require.NoError(t, c.Delete(ctx, key))
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
