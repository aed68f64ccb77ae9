// Package stats turns the history ledger into chart series and summary figures.
package stats

import (
	"fmt"
	"sort"
	"time"

	"cellar-api/internal/model"

	"github.com/shopspring/decimal"
)

// Timeframe is the window a series covers.
type Timeframe string

const (
	Today Timeframe = "today"
	Week  Timeframe = "week"
	Month Timeframe = "month"
	Year  Timeframe = "year"
	All   Timeframe = "all"
)

// Metric is what each point measures.
type Metric string

const (
	// Activity counts events per bucket.
	Activity Metric = "activity"
	// Quantity is the running bottle total at the end of each bucket.
	Quantity Metric = "quantity"
	// Value is the running monetary total at the end of each bucket.
	Value Metric = "value"
	// Consumption counts bottles consumed per bucket.
	Consumption Metric = "consumption"
)

const (
	maxBuckets     = 1000
	downsampleOver = 100
	downsampleTo   = 50
	minSynthetic   = 3
	maxSynthetic   = 12
	syntheticSpan  = 30 * 24 * time.Hour
)

// ParseTimeframe validates a timeframe name.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(s); tf {
	case Today, Week, Month, Year, All:
		return tf, nil
	case "":
		return All, nil
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case Activity, Quantity, Value, Consumption:
		return m, nil
	case "":
		return Activity, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Request selects a series.
type Request struct {
	Timeframe Timeframe
	Metric    Metric
	Now       time.Time
	Location  *time.Location
}

// Point is one chart sample. At is the bucket start.
type Point struct {
	At    time.Time       `json:"at"`
	Value decimal.Decimal `json:"value"`
}

// Series buckets events for req. Buckets are hourly for today, daily for week and
// month, weekly for year and monthly for all. The result always has at least one
// point, never more than maxBuckets, and is sorted by time.
func Series(events []model.HistoryEvent, req Request) []Point {
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.In(loc)

	sorted := make([]model.HistoryEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	start, end := window(sorted, req.Timeframe, now, loc)
	step := stepper(req.Timeframe)

	inWindow := make([]model.HistoryEvent, 0, len(sorted))
	for _, ev := range sorted {
		if !ev.Timestamp.Before(start) && !ev.Timestamp.After(end) {
			inWindow = append(inWindow, ev)
		}
	}

	var points []Point
	for t := start; !t.After(end) && len(points) < maxBuckets; t = step(t) {
		next := step(t)
		var v decimal.Decimal
		switch req.Metric {
		case Quantity, Value:
			v = runningAt(sorted, next, req.Metric)
		default:
			v = countBetween(inWindow, t, next, req.Metric)
		}
		points = append(points, Point{At: t, Value: v})
	}

	if req.Timeframe == All && len(points) < 2 && len(sorted) > 0 {
		if synthetic := synthesize(sorted, req.Metric); len(synthetic) > 0 {
			points = synthetic
		}
	}

	if len(points) == 0 {
		points = []Point{{At: start, Value: baseline(sorted, start, req.Metric)}}
	}

	if len(points) > downsampleOver {
		stride := len(points) / downsampleTo
		sampled := make([]Point, 0, len(points)/stride+1)
		for i := 0; i < len(points); i += stride {
			sampled = append(sampled, points[i])
		}
		points = sampled
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })
	return points
}

func window(sorted []model.HistoryEvent, tf Timeframe, now time.Time, loc *time.Location) (time.Time, time.Time) {
	switch tf {
	case Today:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), now
	case Week:
		return now.AddDate(0, 0, -7), now
	case Month:
		return now.AddDate(0, -1, 0), now
	case Year:
		return now.AddDate(-1, 0, 0), now
	default:
		if len(sorted) == 0 {
			return now.AddDate(0, -1, 0), now
		}
		return sorted[0].Timestamp.In(loc), sorted[len(sorted)-1].Timestamp.In(loc)
	}
}

// BucketSize is the nominal width of one point for tf. Month-based buckets count
// as 30 days.
func BucketSize(tf Timeframe) time.Duration {
	switch tf {
	case Today:
		return time.Hour
	case Week, Month:
		return 24 * time.Hour
	case Year:
		return 7 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

func stepper(tf Timeframe) func(time.Time) time.Time {
	switch tf {
	case Today:
		return func(t time.Time) time.Time { return t.Add(time.Hour) }
	case Week, Month:
		return func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	case Year:
		return func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
	default:
		return func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	}
}

// countBetween counts events in [from, to). Consumption sums bottles consumed.
func countBetween(events []model.HistoryEvent, from, to time.Time, metric Metric) decimal.Decimal {
	n := 0
	for _, ev := range events {
		if ev.Timestamp.Before(from) || !ev.Timestamp.Before(to) {
			continue
		}
		n += weight(&ev, metric)
	}
	return decimal.NewFromInt(int64(n))
}

func weight(ev *model.HistoryEvent, metric Metric) int {
	if metric != Consumption {
		return 1
	}
	if ev.Action != model.ActionConsumed {
		return 0
	}
	if ev.QuantityChange < 0 {
		return -ev.QuantityChange
	}
	return ev.QuantityChange
}

// runningAt is the running total of the last event at or before t.
func runningAt(sorted []model.HistoryEvent, t time.Time, metric Metric) decimal.Decimal {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].Timestamp.After(t) })
	if i == 0 {
		return decimal.Zero
	}
	ev := &sorted[i-1]
	if metric == Value {
		return ev.TotalValue()
	}
	return decimal.NewFromInt(int64(ev.TotalQuantityAtTime))
}

// cumulativeAt is the count metric summed over every event at or before t.
func cumulativeAt(sorted []model.HistoryEvent, t time.Time, metric Metric) decimal.Decimal {
	n := 0
	for i := range sorted {
		if sorted[i].Timestamp.After(t) {
			break
		}
		n += weight(&sorted[i], metric)
	}
	return decimal.NewFromInt(int64(n))
}

func baseline(sorted []model.HistoryEvent, t time.Time, metric Metric) decimal.Decimal {
	switch metric {
	case Quantity, Value:
		return runningAt(sorted, t, metric)
	}
	return decimal.Zero
}

// synthesize spreads 3 to 12 points evenly between the first and last event, one
// per thirty days of span. Count metrics become cumulative here.
func synthesize(sorted []model.HistoryEvent, metric Metric) []Point {
	first := sorted[0].Timestamp
	last := sorted[len(sorted)-1].Timestamp
	span := last.Sub(first)
	if span <= 0 {
		return nil
	}
	n := int(span / syntheticSpan)
	if n < minSynthetic {
		n = minSynthetic
	}
	if n > maxSynthetic {
		n = maxSynthetic
	}

	points := make([]Point, n)
	for i := 0; i < n; i++ {
		at := first.Add(time.Duration(float64(span) * float64(i) / float64(n-1)))
		if i == n-1 {
			at = last
		}
		var v decimal.Decimal
		switch metric {
		case Quantity, Value:
			v = runningAt(sorted, at, metric)
		default:
			v = cumulativeAt(sorted, at, metric)
		}
		points[i] = Point{At: at, Value: v}
	}
	return points
}
