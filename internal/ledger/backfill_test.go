package ledger

import (
	"context"
	"testing"
	"time"

	"cellar-api/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func legacy(id string, at time.Time, action model.Action, change int, p *decimal.Decimal) model.HistoryEvent {
	return model.HistoryEvent{ID: id, Timestamp: at, Action: action, QuantityChange: change, PriceAtTime: p}
}

func TestBackfillFoldsAndClamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := []model.HistoryEvent{
		legacy("a", t0, model.ActionAdded, 3, price("10")),
		legacy("b", t0.Add(time.Hour), model.ActionDeleted, -5, price("10")),
		legacy("c", t0.Add(2*time.Hour), model.ActionAdded, 2, price("4")),
		legacy("d", t0.Add(3*time.Hour), model.ActionEdited, 0, nil),
	}
	// Appended out of order; backfill must still fold chronologically.
	for _, i := range []int{2, 0, 3, 1} {
		require.NoError(t, f.store.AppendEvent(ctx, &rows[i]))
	}

	n, err := f.ledger.BackfillRunningTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := f.store.ListEvents(ctx, model.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, got, 4)

	want := []struct {
		id    string
		qty   int
		value string
	}{
		{"a", 3, "30"},
		{"b", 0, "0"},
		{"c", 2, "8"},
		{"d", 2, "8"},
	}
	for i, w := range want {
		assert.Equal(t, w.id, got[i].ID)
		assert.Equal(t, w.qty, got[i].TotalQuantityAtTime, w.id)
		require.NotNil(t, got[i].TotalValueAtTime, w.id)
		assert.True(t, got[i].TotalValueAtTime.Equal(decimal.RequireFromString(w.value)), "%s: %s", w.id, got[i].TotalValueAtTime)
		assert.GreaterOrEqual(t, got[i].TotalQuantityAtTime, 0)
		assert.False(t, got[i].TotalValueAtTime.IsNegative())
	}
}

func TestBackfillIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := legacy("a", t0, model.ActionAdded, 2, price("3"))
	require.NoError(t, f.store.AppendEvent(ctx, &ev))

	first, err := f.ledger.BackfillRunningTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := f.ledger.BackfillRunningTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second)
}

func TestBackfillNoopWhenTotalsPresent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := &model.Item{ID: "w", Quantity: 1, Price: price("9")}
	require.NoError(t, f.store.CreateItem(ctx, item))
	f.ledger.LogAdded(ctx, item)

	n, err := f.ledger.BackfillRunningTotals(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecentAndForItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := &model.Item{ID: "a", Quantity: 1}
	b := &model.Item{ID: "b", Quantity: 1}
	f.ledger.LogAdded(ctx, a)
	f.ledger.LogAdded(ctx, b)
	f.ledger.LogConsumed(ctx, a, 1)

	recent, err := f.ledger.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, model.ActionConsumed, recent[0].Action)

	forA, err := f.ledger.ForItem(ctx, "a")
	require.NoError(t, err)
	require.Len(t, forA, 2)
	assert.Equal(t, model.ActionConsumed, forA[0].Action)
	assert.Equal(t, model.ActionAdded, forA[1].Action)
}
