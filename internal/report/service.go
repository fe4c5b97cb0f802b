package report

import (
	"context"
	"sort"
	"time"

	"attendtrack/internal/cache"
	"attendtrack/internal/metrics"
)

// Service serves cached attendance reports. Aggregations are recomputed
// at most once per TTL per exact scope+range key.
type Service struct {
	agg   *Aggregator
	cache *cache.Cache[[]AggregatedStat]
	ttl   time.Duration
}

// NewService wires an aggregator to a cache. ttl <= 0 uses the default.
func NewService(agg *Aggregator, c *cache.Cache[[]AggregatedStat], ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Service{agg: agg, cache: c, ttl: ttl}
}

// InvalidateUnit drops cached reports covering the unit. Satisfies the
// check-in service's Invalidator.
func (s *Service) InvalidateUnit(unitID string) {
	s.cache.InvalidateUnit(unitID)
}

func keyFor(scope Scope, dr DateRange) (cache.Key, []string) {
	from := dr.Start.Format("2006-01-02")
	to := dr.End.Format("2006-01-02")
	switch scope.Kind {
	case ScopeSelf:
		return cache.ReportKey(string(ScopeSelf), []string{scope.ParticipantID}, from, to), nil
	case ScopeUnit:
		units := append([]string(nil), scope.UnitIDs...)
		sort.Strings(units)
		return cache.ReportKey(string(ScopeUnit), units, from, to), units
	default:
		return cache.ReportKey(string(ScopeAll), nil, from, to), nil
	}
}

// GetAttendanceReport returns aggregated stats for the scope and range,
// from cache when fresh. Timeouts flow in through ctx and abort the
// bulk fetch without side effects.
func (s *Service) GetAttendanceReport(ctx context.Context, scope Scope, dr DateRange) ([]AggregatedStat, error) {
	key, units := keyFor(scope, dr)
	if scope.Kind == ScopeSelf {
		// Self-scope entries are invalidated through the participant's
		// unit; resolve it before caching so the index covers it.
		resolved, err := s.agg.ResolveUnits(ctx, scope)
		if err != nil {
			return nil, err
		}
		units = resolved
	}

	stats, hit, err := s.cache.GetOrCompute(ctx, key, units, s.ttl, func(ctx context.Context) ([]AggregatedStat, error) {
		start := time.Now()
		out, err := s.agg.Aggregate(ctx, scope, dr)
		if err == nil {
			metrics.AggregateDuration.Observe(time.Since(start).Seconds())
		}
		return out, err
	})
	if err != nil {
		return nil, err
	}
	if hit {
		metrics.ReportCacheHits.Inc()
	} else {
		metrics.ReportCacheMisses.Inc()
	}
	return stats, nil
}

// ExportReportRows returns the report as ordered rows ready for the
// external CSV exporter, totals row included for multi-scope reports.
func (s *Service) ExportReportRows(ctx context.Context, scope Scope, dr DateRange) ([]Row, error) {
	stats, err := s.GetAttendanceReport(ctx, scope, dr)
	if err != nil {
		return nil, err
	}
	return Format(scope.Kind, stats), nil
}
