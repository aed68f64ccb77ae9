package repository

import (
	"context"
	"testing"
	"time"

	"cellar-api/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newItem(id, name, producer, vintage string, qty int, price *decimal.Decimal) *model.Item {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &model.Item{
		ID: id, Name: name, Producer: producer, Vintage: vintage,
		Quantity: qty, Price: price, BottleSize: "750ml",
		CreatedAt: now, UpdatedAt: now,
	}
}

func stores(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store {
			s, err := NewSQLiteStore(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStoreItems(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()

			a := newItem("a", "Barolo", "Conterno", "2016", 6, dec("45.50"))
			a.FrontImage = []byte{1, 2, 3}
			b := newItem("b", "Riesling", "Prüm", "2019", 2, nil)
			require.NoError(t, s.CreateItem(ctx, a))
			require.NoError(t, s.CreateItem(ctx, b))

			got, err := s.GetItem(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "Barolo", got.Name)
			assert.True(t, got.Price.Equal(decimal.RequireFromString("45.5")))
			assert.Equal(t, []byte{1, 2, 3}, got.FrontImage)
			assert.True(t, got.CreatedAt.Equal(a.CreatedAt))

			list, err := s.ListItems(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "a", list[0].ID)
			assert.Equal(t, "b", list[1].ID)
			assert.Nil(t, list[1].Price)

			got.Quantity = 4
			got.Remarks = "decant"
			require.NoError(t, s.UpdateItem(ctx, got))
			got, err = s.GetItem(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, 4, got.Quantity)
			assert.Equal(t, "decant", got.Remarks)

			totals, err := s.Totals(ctx)
			require.NoError(t, err)
			assert.Equal(t, 6, totals.Quantity)
			assert.True(t, totals.Value.Equal(decimal.RequireFromString("182")), totals.Value.String())

			require.NoError(t, s.DeleteItem(ctx, "a"))
			_, err = s.GetItem(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.DeleteItem(ctx, "a"), ErrNotFound)
			assert.ErrorIs(t, s.UpdateItem(ctx, a), ErrNotFound)
		})
	}
}

func TestStoreCreateItemsBatch(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			require.NoError(t, s.CreateItems(ctx, []model.Item{
				*newItem("1", "A", "P", "2020", 1, nil),
				*newItem("2", "B", "P", "2021", 2, nil),
			}))
			list, err := s.ListItems(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 2)

			err = s.CreateItems(ctx, []model.Item{
				*newItem("3", "C", "P", "2022", 1, nil),
				*newItem("1", "dup", "P", "2020", 1, nil),
			})
			assert.Error(t, err)
			list, err = s.ListItems(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 2, "failed batch must not leave partial rows")
		})
	}
}

func TestStoreFindDuplicate(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			require.NoError(t, s.CreateItem(ctx, newItem("id-1", "Château Margaux", "Margaux", "2010", 1, nil)))

			tests := []struct {
				name  string
				probe *model.Item
				want  string
			}{
				{"same id", newItem("id-1", "Other", "Other", "1999", 1, nil), "id-1"},
				{"same triple different case", newItem("x", "  château margaux ", "MARGAUX", "2010", 1, nil), "id-1"},
				{"different vintage", newItem("x", "Château Margaux", "Margaux", "2011", 1, nil), ""},
				{"missing vintage never matches", newItem("x", "Château Margaux", "Margaux", "", 1, nil), ""},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					found, err := s.FindDuplicate(ctx, tt.probe)
					require.NoError(t, err)
					if tt.want == "" {
						assert.Nil(t, found)
						return
					}
					require.NotNil(t, found)
					assert.Equal(t, tt.want, found.ID)
				})
			}
		})
	}
}

func TestStoreHistory(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

			events := []model.HistoryEvent{
				{ID: "e1", Timestamp: base, Action: model.ActionAdded, QuantityChange: 6, PriceAtTime: dec("10"), ItemID: "a", TotalQuantityAtTime: 6, TotalValueAtTime: dec("60")},
				{ID: "e2", Timestamp: base.Add(time.Hour), Action: model.ActionConsumed, QuantityChange: -2, PriceAtTime: dec("10"), ItemID: "a", TotalQuantityAtTime: 4, TotalValueAtTime: dec("40")},
				{ID: "e3", Timestamp: base.Add(2 * time.Hour), Action: model.ActionAdded, QuantityChange: 1, ItemID: "b"},
			}
			for i := range events {
				require.NoError(t, s.AppendEvent(ctx, &events[i]))
			}

			all, err := s.ListEvents(ctx, model.HistoryFilter{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"e1", "e2", "e3"}, []string{all[0].ID, all[1].ID, all[2].ID})
			assert.Nil(t, all[2].TotalValueAtTime)
			assert.True(t, all[2].NeedsBackfill())

			forA, err := s.ListEvents(ctx, model.HistoryFilter{ItemID: "a", Newest: true})
			require.NoError(t, err)
			require.Len(t, forA, 2)
			assert.Equal(t, "e2", forA[0].ID)

			consumed, err := s.ListEvents(ctx, model.HistoryFilter{Action: model.ActionConsumed})
			require.NoError(t, err)
			assert.Len(t, consumed, 1)

			windowed, err := s.ListEvents(ctx, model.HistoryFilter{Since: base.Add(30 * time.Minute), Until: base.Add(90 * time.Minute)})
			require.NoError(t, err)
			require.Len(t, windowed, 1)
			assert.Equal(t, "e2", windowed[0].ID)

			latest, err := s.LatestEvent(ctx)
			require.NoError(t, err)
			require.NotNil(t, latest)
			assert.Equal(t, "e3", latest.ID)

			all[2].TotalQuantityAtTime = 5
			all[2].TotalValueAtTime = dec("40")
			require.NoError(t, s.UpdateRunningTotals(ctx, all[2:]))
			latest, err = s.LatestEvent(ctx)
			require.NoError(t, err)
			assert.Equal(t, 5, latest.TotalQuantityAtTime)
			assert.True(t, latest.TotalValue().Equal(decimal.RequireFromString("40")))

			err = s.UpdateRunningTotals(ctx, []model.HistoryEvent{{ID: "e1", TotalQuantityAtTime: 99}, {ID: "missing"}})
			assert.Error(t, err)
			first, err := s.ListEvents(ctx, model.HistoryFilter{Limit: 1})
			require.NoError(t, err)
			assert.Equal(t, 6, first[0].TotalQuantityAtTime, "failed backfill must roll back")
		})
	}
}

func TestStoreLatestEventEmpty(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ev, err := open().LatestEvent(context.Background())
			require.NoError(t, err)
			assert.Nil(t, ev)
		})
	}
}

func TestStoreSettings(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()

			loaded, err := s.LoadSettings(ctx)
			require.NoError(t, err)
			assert.Nil(t, loaded)

			settings := &model.Settings{
				Currency:       "CHF (Fr)",
				BottleSizeUnit: "cl",
				SortOrders: []model.SortOrder{{
					ID: "o1", Name: "Producer",
					Fields:       []model.Field{model.FieldProducer},
					HeaderFields: []model.Field{model.FieldProducer},
				}},
				SelectedSortOrderID: "o1",
			}
			require.NoError(t, s.SaveSettings(ctx, settings))
			settings.Currency = "USD ($)"
			require.NoError(t, s.SaveSettings(ctx, settings))

			loaded, err = s.LoadSettings(ctx)
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, "USD ($)", loaded.Currency)
			assert.Equal(t, "cl", loaded.BottleSizeUnit)
			require.NotNil(t, loaded.SelectedSortOrder())
			assert.Equal(t, []model.Field{model.FieldProducer}, loaded.SelectedSortOrder().Fields)
		})
	}
}

func TestStoreStats(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			require.NoError(t, s.CreateItem(ctx, newItem("a", "A", "P", "2020", 3, nil)))
			stats, err := s.GetStats(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), stats["total_items"])
			assert.Equal(t, int64(3), stats["total_bottles"])
			assert.NoError(t, s.Ping(ctx))
		})
	}
}
