package stats

import (
	"testing"
	"time"

	"cellar-api/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(at time.Time, action model.Action, change, total int, price string) model.HistoryEvent {
	e := model.HistoryEvent{Timestamp: at, Action: action, QuantityChange: change, TotalQuantityAtTime: total}
	if price != "" {
		p := decimal.RequireFromString(price)
		e.PriceAtTime = &p
		v := p.Mul(decimal.NewFromInt(int64(total)))
		e.TotalValueAtTime = &v
	}
	return e
}

func values(points []Point) []int64 {
	out := make([]int64, len(points))
	for i, p := range points {
		out[i] = p.Value.IntPart()
	}
	return out
}

func assertSorted(t *testing.T, points []Point) {
	t.Helper()
	for i := 1; i < len(points); i++ {
		assert.False(t, points[i].At.Before(points[i-1].At), "point %d out of order", i)
	}
}

var now = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

func TestSeriesTodayHourlyActivity(t *testing.T) {
	events := []model.HistoryEvent{
		ev(now.Add(-26*time.Hour), model.ActionAdded, 5, 5, "10"),
		ev(time.Date(2024, 6, 15, 9, 10, 0, 0, time.UTC), model.ActionConsumed, -1, 4, "10"),
		ev(time.Date(2024, 6, 15, 9, 50, 0, 0, time.UTC), model.ActionConsumed, -2, 2, "10"),
		ev(time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC), model.ActionEdited, 0, 2, "10"),
	}

	points := Series(events, Request{Timeframe: Today, Metric: Activity, Now: now})

	require.Len(t, points, 15) // 00:00 through 14:00
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), points[0].At)
	assert.Equal(t, int64(2), points[9].Value.IntPart())
	assert.Equal(t, int64(1), points[13].Value.IntPart())
	assert.Equal(t, int64(0), points[0].Value.IntPart())
	assertSorted(t, points)
}

func TestSeriesConsumptionCountsBottles(t *testing.T) {
	events := []model.HistoryEvent{
		ev(time.Date(2024, 6, 15, 9, 10, 0, 0, time.UTC), model.ActionConsumed, -1, 4, ""),
		ev(time.Date(2024, 6, 15, 9, 50, 0, 0, time.UTC), model.ActionConsumed, -2, 2, ""),
		ev(time.Date(2024, 6, 15, 9, 55, 0, 0, time.UTC), model.ActionAdded, 6, 8, ""),
	}
	points := Series(events, Request{Timeframe: Today, Metric: Consumption, Now: now})
	assert.Equal(t, int64(3), points[9].Value.IntPart())
}

func TestSeriesRunningQuantitySeededBeforeWindow(t *testing.T) {
	events := []model.HistoryEvent{
		ev(now.AddDate(0, 0, -30), model.ActionAdded, 6, 6, "10"),
		ev(now.AddDate(0, 0, -2).Add(-time.Hour), model.ActionConsumed, -2, 4, "10"),
	}

	points := Series(events, Request{Timeframe: Week, Metric: Quantity, Now: now})

	require.Len(t, points, 8)
	assert.Equal(t, int64(6), points[0].Value.IntPart(), "baseline comes from before the window")
	assert.Equal(t, int64(4), points[len(points)-1].Value.IntPart())
	assertSorted(t, points)
}

func TestSeriesRunningValue(t *testing.T) {
	events := []model.HistoryEvent{
		ev(now.AddDate(0, 0, -3), model.ActionAdded, 3, 3, "20"),
	}
	points := Series(events, Request{Timeframe: Week, Metric: Value, Now: now})
	assert.Equal(t, int64(0), points[0].Value.IntPart())
	assert.Equal(t, int64(60), points[len(points)-1].Value.IntPart())
}

func TestSeriesEmptyLedgerStillHasPoints(t *testing.T) {
	for _, tf := range []Timeframe{Today, Week, Month, Year, All} {
		t.Run(string(tf), func(t *testing.T) {
			points := Series(nil, Request{Timeframe: tf, Metric: Quantity, Now: now})
			require.NotEmpty(t, points)
			for _, p := range points {
				assert.True(t, p.Value.IsZero())
			}
			assertSorted(t, points)
		})
	}
}

func TestSeriesYearIsWeekly(t *testing.T) {
	points := Series(nil, Request{Timeframe: Year, Metric: Activity, Now: now})
	assert.Len(t, points, 53)
	assert.Equal(t, 7*24*time.Hour, points[1].At.Sub(points[0].At))
}

func TestSeriesAllSynthesizesShortSpans(t *testing.T) {
	first := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	events := []model.HistoryEvent{
		ev(first, model.ActionAdded, 2, 2, ""),
		ev(first.Add(24*time.Hour), model.ActionAdded, 1, 3, ""),
		ev(first.Add(10*24*time.Hour), model.ActionConsumed, -1, 2, ""),
	}

	points := Series(events, Request{Timeframe: All, Metric: Activity, Now: now})

	require.Len(t, points, 3)
	assert.Equal(t, first, points[0].At)
	assert.Equal(t, first.Add(10*24*time.Hour), points[2].At)
	assert.Equal(t, []int64{1, 2, 3}, values(points))
	assertSorted(t, points)

	qty := Series(events, Request{Timeframe: All, Metric: Quantity, Now: now})
	assert.Equal(t, []int64{2, 3, 2}, values(qty))
}

func TestSeriesAllSingleEvent(t *testing.T) {
	events := []model.HistoryEvent{ev(now.Add(-time.Hour), model.ActionAdded, 2, 2, "")}
	points := Series(events, Request{Timeframe: All, Metric: Quantity, Now: now})
	require.Len(t, points, 1)
	assert.Equal(t, int64(2), points[0].Value.IntPart())
}

func TestSeriesAllMonthly(t *testing.T) {
	first := time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)
	events := []model.HistoryEvent{
		ev(first, model.ActionAdded, 1, 1, ""),
		ev(first.AddDate(0, 5, 0), model.ActionAdded, 1, 2, ""),
	}
	points := Series(events, Request{Timeframe: All, Metric: Activity, Now: now})
	assert.Len(t, points, 6)
	assert.Equal(t, int64(1), points[0].Value.IntPart())
	assert.Equal(t, int64(1), points[5].Value.IntPart())
}

func TestSeriesDownsamples(t *testing.T) {
	first := now.AddDate(-20, 0, 0)
	events := []model.HistoryEvent{
		ev(first, model.ActionAdded, 1, 1, ""),
		ev(now, model.ActionAdded, 1, 2, ""),
	}
	points := Series(events, Request{Timeframe: All, Metric: Quantity, Now: now})
	assert.LessOrEqual(t, len(points), downsampleOver)
	assert.GreaterOrEqual(t, len(points), downsampleTo)
	assertSorted(t, points)
}

func TestParse(t *testing.T) {
	tf, err := ParseTimeframe("")
	require.NoError(t, err)
	assert.Equal(t, All, tf)
	_, err = ParseTimeframe("decade")
	assert.Error(t, err)

	m, err := ParseMetric("value")
	require.NoError(t, err)
	assert.Equal(t, Value, m)
	_, err = ParseMetric("mood")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	events := []model.HistoryEvent{
		ev(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), model.ActionAdded, 6, 6, "10"),
		ev(time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), model.ActionConsumed, -2, 4, "10"),
		ev(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), model.ActionEdited, 0, 4, "10"),
		ev(time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC), model.ActionDeleted, -4, 0, "10"),
		ev(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), model.ActionAdded, 1, 1, ""),
	}

	s := Summarize(events, nil)

	assert.Equal(t, 5, s.TotalActions)
	assert.Equal(t, 2, s.ItemsAdded)
	assert.Equal(t, 1, s.ItemsDeleted)
	assert.Equal(t, 2, s.BottlesConsumed)
	assert.Equal(t, 1, s.Edits)
	require.NotNil(t, s.MostActiveMonth)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *s.MostActiveMonth)
	assert.Equal(t, 2, s.MostActiveMonthSize)
	assert.True(t, s.ValueAdded.Equal(decimal.NewFromInt(60)))
	assert.True(t, s.ValueConsumed.Equal(decimal.NewFromInt(60)))
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, nil)
	assert.Zero(t, s.TotalActions)
	assert.Nil(t, s.MostActiveMonth)
}

func TestBucketSize(t *testing.T) {
	assert.Equal(t, time.Hour, BucketSize(Today))
	assert.Equal(t, 24*time.Hour, BucketSize(Week))
	assert.Equal(t, 24*time.Hour, BucketSize(Month))
	assert.Equal(t, 7*24*time.Hour, BucketSize(Year))
	assert.Equal(t, 30*24*time.Hour, BucketSize(All))
}
