package service

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/domain"
	"github.com/raihanchowdhuryengineer/AbdullahTechShop/internal/metrics"
)

const (
	DefaultTrendDays      = 7
	DefaultTopProducts    = 5
	DefaultLowStockLimit  = 5
	DefaultRecentSales    = 5
	dashboardCacheKeyBase = "dashboard:"
)

var hundred = decimal.NewFromInt(100)

func (s *Service) DashboardTotals(ctx context.Context) (domain.DashboardTotals, error) {
	catalog, err := s.repo.CatalogTotals(ctx)
	if err != nil {
		return domain.DashboardTotals{}, err
	}
	lifetime, err := s.repo.SalesTotals(ctx, "")
	if err != nil {
		return domain.DashboardTotals{}, err
	}
	return domain.DashboardTotals{
		ProductCount:    catalog.ProductCount,
		StockValue:      catalog.StockValue,
		LifetimeRevenue: lifetime.Revenue,
		LifetimeProfit:  lifetime.Profit,
	}, nil
}

// DayOverDayChange compares today's sales with yesterday's, both taken from
// the service clock.
func (s *Service) DayOverDayChange(ctx context.Context) (domain.DayOverDayChange, error) {
	now := s.now()
	today := now.Format(domain.DateLayout)
	yesterday := now.AddDate(0, 0, -1).Format(domain.DateLayout)

	todayTotals, err := s.repo.SalesTotals(ctx, today)
	if err != nil {
		return domain.DayOverDayChange{}, err
	}
	yesterdayTotals, err := s.repo.SalesTotals(ctx, yesterday)
	if err != nil {
		return domain.DayOverDayChange{}, err
	}

	return domain.DayOverDayChange{
		Today:            today,
		Yesterday:        yesterday,
		TodayRevenue:     todayTotals.Revenue,
		YesterdayRevenue: yesterdayTotals.Revenue,
		TodayProfit:      todayTotals.Profit,
		YesterdayProfit:  yesterdayTotals.Profit,
		RevenueChangePct: percentChange(todayTotals.Revenue, yesterdayTotals.Revenue),
		ProfitChangePct:  percentChange(todayTotals.Profit, yesterdayTotals.Profit),
	}, nil
}

// RevenueTrend returns revenue for the most recent days that had sales,
// oldest first. Days without sales are not filled in.
func (s *Service) RevenueTrend(ctx context.Context, days int) ([]domain.TrendPoint, error) {
	if days < 1 {
		days = DefaultTrendDays
	}
	points, err := s.repo.RevenueByDay(ctx, days)
	if err != nil {
		return nil, err
	}
	slices.Reverse(points)
	return points, nil
}

func (s *Service) TopProducts(ctx context.Context, limit int) ([]domain.ProductQuantity, error) {
	if limit < 1 {
		limit = DefaultTopProducts
	}
	return s.repo.TopProducts(ctx, limit)
}

// LowStock lists products below threshold, scarcest first. A threshold below
// one uses the configured default.
func (s *Service) LowStock(ctx context.Context, threshold int, limit int) ([]domain.StockLevel, error) {
	if threshold < 1 {
		threshold = s.lowStockThreshold
	}
	if limit < 1 {
		limit = DefaultLowStockLimit
	}
	return s.repo.LowStock(ctx, threshold, limit)
}

func (s *Service) RecentSales(ctx context.Context, limit int) ([]domain.SaleSummary, error) {
	if limit < 1 {
		limit = DefaultRecentSales
	}
	return s.repo.RecentSales(ctx, limit)
}

// Dashboard assembles every report with default limits. Snapshots are cached
// per calendar day; the clock strings are always current.
func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	now := s.now()
	key := dashboardCacheKeyBase + now.Format(domain.DateLayout)

	cached, ok, err := s.dashboardCache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.DashboardLookup("error")
		s.logger.Warn("dashboard cache read failed", "key", key, "error", err)
	case ok && cached != nil:
		metrics.DashboardLookup("hit")
		return withClock(*cached, now), nil
	default:
		metrics.DashboardLookup("miss")
	}

	dashboard, err := s.buildDashboard(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	if err := s.dashboardCache.Set(ctx, key, &dashboard, s.dashboardTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", "key", key, "error", err)
	}
	return withClock(dashboard, now), nil
}

func (s *Service) buildDashboard(ctx context.Context) (domain.Dashboard, error) {
	var (
		dashboard domain.Dashboard
		err       error
	)
	if dashboard.Totals, err = s.DashboardTotals(ctx); err != nil {
		return domain.Dashboard{}, err
	}
	if dashboard.Change, err = s.DayOverDayChange(ctx); err != nil {
		return domain.Dashboard{}, err
	}
	if dashboard.Trend, err = s.RevenueTrend(ctx, DefaultTrendDays); err != nil {
		return domain.Dashboard{}, err
	}
	if dashboard.TopProducts, err = s.TopProducts(ctx, DefaultTopProducts); err != nil {
		return domain.Dashboard{}, err
	}
	if dashboard.LowStock, err = s.LowStock(ctx, s.lowStockThreshold, DefaultLowStockLimit); err != nil {
		return domain.Dashboard{}, err
	}
	if dashboard.RecentSales, err = s.RecentSales(ctx, DefaultRecentSales); err != nil {
		return domain.Dashboard{}, err
	}
	return dashboard, nil
}

func (s *Service) invalidateDashboard(ctx context.Context) {
	key := dashboardCacheKeyBase + s.now().Format(domain.DateLayout)
	if err := s.dashboardCache.Delete(ctx, key); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", "key", key, "error", err)
	}
}

func withClock(dashboard domain.Dashboard, now time.Time) domain.Dashboard {
	dashboard.Date = now.Format(domain.DateLayout)
	dashboard.Weekday = now.Weekday().String()
	dashboard.Time = now.Format("03:04:05 PM")
	return dashboard
}

// percentChange is (current-previous)/previous*100 rounded to one decimal,
// and 0 when previous is zero.
func percentChange(current decimal.Decimal, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		return 0
	}
	return current.Sub(previous).Mul(hundred).Div(previous).Round(1).InexactFloat64()
}
