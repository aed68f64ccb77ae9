package service

import (
	"context"
	"fmt"
	"time"

	"cellar-api/internal/cache"
	"cellar-api/internal/ledger"
	"cellar-api/internal/model"
	"cellar-api/internal/stats"
	"cellar-api/pkg/apierror"
)

// HistoryQuery filters the ledger listing.
type HistoryQuery struct {
	ItemID string
	Action string
	Since  time.Time
	Until  time.Time
	Limit  int
}

// SeriesResult is a statistics chart with the request that produced it.
type SeriesResult struct {
	Timeframe stats.Timeframe `json:"timeframe"`
	Metric    stats.Metric    `json:"metric"`
	Points    []stats.Point   `json:"points"`
}

// HistoryService reads the ledger and derives statistics from it.
type HistoryService struct {
	ledger   *ledger.Ledger
	cache    cache.Cache
	cacheTTL time.Duration
	location *time.Location
	now      func() time.Time
}

// NewHistoryService creates a history service. Buckets follow loc (UTC when nil).
func NewHistoryService(l *ledger.Ledger, loc *time.Location) *HistoryService {
	if l == nil {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	return &HistoryService{ledger: l, location: loc, now: time.Now}
}

// SetCache enables caching of summaries and series.
func (s *HistoryService) SetCache(c cache.Cache, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

// List returns matching events, newest first.
func (s *HistoryService) List(ctx context.Context, q HistoryQuery) ([]model.HistoryEvent, error) {
	filter := model.HistoryFilter{ItemID: q.ItemID, Since: q.Since, Until: q.Until, Newest: true, Limit: q.Limit}
	if q.Action != "" {
		action := model.Action(q.Action)
		if !action.Valid() {
			return nil, apierror.BadRequest(fmt.Sprintf("unknown action %q", q.Action))
		}
		filter.Action = action
	}
	return s.ledger.List(ctx, filter)
}

// Summary returns headline figures over the whole ledger.
func (s *HistoryService) Summary(ctx context.Context) (stats.Summary, error) {
	return cache.Remember(ctx, s.cache, "history:summary", s.cacheTTL, func() (stats.Summary, error) {
		all, err := s.ledger.All(ctx)
		if err != nil {
			return stats.Summary{}, err
		}
		return stats.Summarize(all, s.location), nil
	})
}

// Series returns the chart for timeframe and metric. Empty values default to the
// whole ledger and activity.
func (s *HistoryService) Series(ctx context.Context, timeframe, metric string) (*SeriesResult, error) {
	tf, err := stats.ParseTimeframe(timeframe)
	if err != nil {
		return nil, apierror.BadRequest(err.Error())
	}
	m, err := stats.ParseMetric(metric)
	if err != nil {
		return nil, apierror.BadRequest(err.Error())
	}

	now := s.now().In(s.location)
	return cache.Remember(ctx, s.cache, seriesKey(tf, m, now), s.cacheTTL, func() (*SeriesResult, error) {
		all, err := s.ledger.All(ctx)
		if err != nil {
			return nil, err
		}
		points := stats.Series(all, stats.Request{Timeframe: tf, Metric: m, Now: now, Location: s.location})
		return &SeriesResult{Timeframe: tf, Metric: m, Points: points}, nil
	})
}

// seriesKey includes the bucket now falls in, so a cached chart rolls over with
// the clock.
func seriesKey(tf stats.Timeframe, m stats.Metric, now time.Time) string {
	bucket := now.Truncate(stats.BucketSize(tf)).Unix()
	return fmt.Sprintf("history:series:%s:%s:%d", tf, m, bucket)
}

// Backfill fills running totals on rows written before they existed.
func (s *HistoryService) Backfill(ctx context.Context) (int, error) {
	return s.ledger.BackfillRunningTotals(ctx)
}
