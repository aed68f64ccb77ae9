package stats

import (
	"time"

	"cellar-api/internal/model"

	"github.com/shopspring/decimal"
)

// Summary holds headline figures over the whole ledger.
type Summary struct {
	TotalActions        int             `json:"total_actions"`
	ItemsAdded          int             `json:"items_added"`
	ItemsDeleted        int             `json:"items_deleted"`
	BottlesConsumed     int             `json:"bottles_consumed"`
	Edits               int             `json:"edits"`
	MostActiveMonth     *time.Time      `json:"most_active_month,omitempty"`
	MostActiveMonthSize int             `json:"most_active_month_count"`
	ValueAdded          decimal.Decimal `json:"value_added"`
	ValueConsumed       decimal.Decimal `json:"value_consumed"`
}

// Summarize computes a Summary. Value consumed includes deletions. Ties for the
// most active month go to the earlier month.
func Summarize(events []model.HistoryEvent, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	s := Summary{TotalActions: len(events)}
	months := make(map[time.Time]int)

	for i := range events {
		ev := &events[i]
		switch ev.Action {
		case model.ActionAdded:
			s.ItemsAdded++
			s.ValueAdded = s.ValueAdded.Add(absValue(ev))
		case model.ActionDeleted:
			s.ItemsDeleted++
			s.ValueConsumed = s.ValueConsumed.Add(absValue(ev))
		case model.ActionConsumed:
			s.BottlesConsumed += abs(ev.QuantityChange)
			s.ValueConsumed = s.ValueConsumed.Add(absValue(ev))
		case model.ActionEdited:
			s.Edits++
		}

		t := ev.Timestamp.In(loc)
		months[time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)]++
	}

	for month, n := range months {
		if s.MostActiveMonth == nil || n > s.MostActiveMonthSize ||
			(n == s.MostActiveMonthSize && month.Before(*s.MostActiveMonth)) {
			m := month
			s.MostActiveMonth = &m
			s.MostActiveMonthSize = n
		}
	}
	return s
}

func absValue(ev *model.HistoryEvent) decimal.Decimal {
	if ev.PriceAtTime == nil {
		return decimal.Zero
	}
	return ev.PriceAtTime.Mul(decimal.NewFromInt(int64(abs(ev.QuantityChange))))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
