package settings

import (
	"context"
	"fmt"
	"testing"

	"cellar-api/internal/events"
	"cellar-api/internal/model"
	"cellar-api/internal/repository"
	"cellar-api/internal/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *repository.MemoryStore, *[]events.Kind) {
	t.Helper()
	repo := repository.NewMemoryStore()
	bus := events.NewBus("test", nil)
	var kinds []events.Kind
	bus.Subscribe(func(_ context.Context, ev events.Event) { kinds = append(kinds, ev.Kind) })

	s, err := Load(context.Background(), repo, Defaults{Currency: "EUR (€)", BottleSizeUnit: "ml"}, bus, nil)
	require.NoError(t, err)
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("order-%d", n)
	}
	return s, repo, &kinds
}

func TestLoadSeedsDefaults(t *testing.T) {
	s, repo, _ := newStore(t)

	got := s.Get()
	assert.Equal(t, units.DefaultCurrency, got.Currency)
	assert.Equal(t, "ml", got.BottleSizeUnit)
	require.Len(t, got.SortOrders, 2)
	assert.Equal(t, "Producer", got.SortOrders[0].Name)
	assert.Equal(t, []model.Field{model.FieldCountry, model.FieldProducer, model.FieldType, model.FieldVintage}, got.SortOrders[1].Fields)
	assert.Equal(t, got.SortOrders[0].ID, got.SelectedSortOrderID)

	saved, err := repo.LoadSettings(context.Background())
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, got.SelectedSortOrderID, saved.SelectedSortOrderID)
}

func TestLoadNormalizesSavedSettings(t *testing.T) {
	repo := repository.NewMemoryStore()
	require.NoError(t, repo.SaveSettings(context.Background(), &model.Settings{
		Currency: "Doubloons", BottleSizeUnit: "gallon", SelectedSortOrderID: "gone",
	}))

	s, err := Load(context.Background(), repo, Defaults{}, nil, nil)
	require.NoError(t, err)
	got := s.Get()
	assert.Equal(t, units.DefaultCurrency, got.Currency)
	assert.Equal(t, "ml", got.BottleSizeUnit)
	assert.Empty(t, got.SelectedSortOrderID)
	assert.Nil(t, s.SelectedSortOrder())
}

func TestUpdatePreferences(t *testing.T) {
	s, _, kinds := newStore(t)
	ctx := context.Background()
	currency, unit, withQty := "CHF (Fr)", "cl", true

	got, err := s.Update(ctx, Preferences{Currency: &currency, BottleSizeUnit: &unit, ImportWithQuantity: &withQty})
	require.NoError(t, err)
	assert.Equal(t, "CHF (Fr)", got.Currency)
	assert.Equal(t, "cl", got.BottleSizeUnit)
	assert.True(t, got.ImportWithQuantity)
	assert.Equal(t, []events.Kind{events.SettingsChanged}, *kinds)

	bad := "XXX"
	_, err = s.Update(ctx, Preferences{Currency: &bad})
	assert.ErrorIs(t, err, ErrUnknownCurrency)
	_, err = s.Update(ctx, Preferences{BottleSizeUnit: &bad})
	assert.ErrorIs(t, err, ErrUnknownUnit)
	assert.Equal(t, "CHF (Fr)", s.Get().Currency)
}

func TestSortOrderLifecycle(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	created, err := s.CreateSortOrder(ctx, model.SortOrder{
		Name:         "Cellar map",
		Fields:       []model.Field{model.FieldStorageLocation},
		HeaderFields: nil,
	})
	assert.ErrorIs(t, err, model.ErrInvalidSortOrder, "storage location is not sortable")
	assert.Empty(t, created.ID)

	created, err = s.CreateSortOrder(ctx, model.SortOrder{
		Name:         "By size",
		Fields:       []model.Field{model.FieldBottleSize, model.FieldName},
		HeaderFields: []model.Field{model.FieldBottleSize},
	})
	require.NoError(t, err)
	assert.Equal(t, "order-1", created.ID)
	assert.Len(t, s.Get().SortOrders, 3)

	created.Name = "Bottle size"
	_, err = s.UpdateSortOrder(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "Bottle size", s.SortOrder(created.ID).Name)

	_, err = s.UpdateSortOrder(ctx, model.SortOrder{ID: "missing", Name: "x", Fields: []model.Field{model.FieldName}})
	assert.ErrorIs(t, err, ErrSortOrderNotFound)

	require.NoError(t, s.SelectSortOrder(ctx, created.ID))
	assert.Equal(t, created.ID, s.SelectedSortOrder().ID)
	assert.ErrorIs(t, s.SelectSortOrder(ctx, "missing"), ErrSortOrderNotFound)
}

func TestDeleteSelectedFallsBackToFirst(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()
	orders := s.Get().SortOrders
	require.NoError(t, s.SelectSortOrder(ctx, orders[1].ID))

	require.NoError(t, s.DeleteSortOrder(ctx, orders[1].ID))
	assert.Equal(t, orders[0].ID, s.Get().SelectedSortOrderID)

	require.NoError(t, s.DeleteSortOrder(ctx, orders[0].ID))
	assert.Empty(t, s.Get().SelectedSortOrderID)
	assert.Nil(t, s.SelectedSortOrder())

	assert.ErrorIs(t, s.DeleteSortOrder(ctx, "missing"), ErrSortOrderNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	s, _, _ := newStore(t)
	got := s.Get()
	got.SortOrders[0].Name = "mutated"
	assert.Equal(t, "Producer", s.Get().SortOrders[0].Name)
}
