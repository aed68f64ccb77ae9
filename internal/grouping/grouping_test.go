package grouping

import (
	"testing"

	"cellar-api/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id, name, producer string, mutate ...func(*model.Item)) model.Item {
	it := model.Item{ID: id, Name: name, Producer: producer}
	for _, m := range mutate {
		m(&it)
	}
	return it
}

func withQty(q int) func(*model.Item) { return func(i *model.Item) { i.Quantity = q } }

func withSize(s string) func(*model.Item) { return func(i *model.Item) { i.BottleSize = s } }

func withGeo(country, region, subregion, typ string) func(*model.Item) {
	return func(i *model.Item) {
		i.Country, i.Region, i.Subregion, i.Type = country, region, subregion, typ
	}
}

type rowView struct {
	Level int
	Title string
	ID    string
}

func view(rows []Row) []rowView {
	out := make([]rowView, len(rows))
	for i, r := range rows {
		out[i] = rowView{Level: r.Level, Title: r.Title}
		if r.Item != nil {
			out[i].ID = r.Item.ID
		}
	}
	return out
}

func TestSortKey(t *testing.T) {
	price := decimal.RequireFromString("12.50")
	tests := []struct {
		name  string
		item  model.Item
		field model.Field
		want  string
	}{
		{"quantity padded", model.Item{Quantity: 7}, model.FieldQuantity, "007"},
		{"bottle size padded", model.Item{BottleSize: "750ml"}, model.FieldBottleSize, "00750"},
		{"large bottle", model.Item{BottleSize: "1500ml"}, model.FieldBottleSize, "01500"},
		{"missing bottle size", model.Item{}, model.FieldBottleSize, "00000"},
		{"invalid bottle size", model.Item{BottleSize: "magnum"}, model.FieldBottleSize, "00000"},
		{"price", model.Item{Price: &price}, model.FieldPrice, "12.5"},
		{"nil price", model.Item{}, model.FieldPrice, "0"},
		{"raw string", model.Item{Country: "Italy"}, model.FieldCountry, "Italy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SortKey(&tt.item, tt.field))
		})
	}
}

func TestBottleSizeKeysOrderNumerically(t *testing.T) {
	small := model.Item{BottleSize: "750ml"}
	large := model.Item{BottleSize: "1500ml"}
	assert.Less(t, SortKey(&small, model.FieldBottleSize), SortKey(&large, model.FieldBottleSize))

	items := []model.Item{
		item("big", "Magnum", "X", withSize("1500ml")),
		item("std", "Standard", "X", withSize("750ml")),
	}
	SortItems(items, []model.Field{model.FieldBottleSize})
	assert.Equal(t, "std", items[0].ID)
}

func TestGroupSingleHeader(t *testing.T) {
	items := []model.Item{
		item("a", "A", "X", withQty(3), withSize("750ml")),
		item("b", "B", "X", withQty(1), withSize("750ml")),
	}
	order := &model.SortOrder{
		Name:         "by producer",
		Fields:       []model.Field{model.FieldProducer, model.FieldName},
		HeaderFields: []model.Field{model.FieldProducer},
	}

	rows := Group(items, order)

	assert.Equal(t, []rowView{
		{Level: 0, Title: "X"},
		{Level: 1, ID: "a"},
		{Level: 1, ID: "b"},
	}, view(rows))
}

func TestGroupNilOrderKeepsInputOrder(t *testing.T) {
	items := []model.Item{item("z", "Z", "P"), item("a", "A", "P")}
	rows := Group(items, nil)
	assert.Equal(t, []rowView{{ID: "z"}, {ID: "a"}}, view(rows))
}

func TestGroupWithoutHeadersOnlySorts(t *testing.T) {
	items := []model.Item{item("z", "Z", "P"), item("a", "A", "P")}
	order := &model.SortOrder{Name: "n", Fields: []model.Field{model.FieldName}}
	rows := Group(items, order)
	assert.Equal(t, []rowView{{ID: "a"}, {ID: "z"}}, view(rows))
}

func TestGroupEmpty(t *testing.T) {
	order := &model.SortOrder{
		Name:         "n",
		Fields:       []model.Field{model.FieldProducer},
		HeaderFields: []model.Field{model.FieldProducer},
	}
	assert.Empty(t, Group(nil, order))
}

func TestGroupHeaderNestingFollowsFieldOrder(t *testing.T) {
	items := []model.Item{
		item("1", "A", "P", withGeo("France", "Bordeaux", "", "Red")),
		item("2", "B", "P", withGeo("France", "Burgundy", "", "Red")),
		item("3", "C", "P", withGeo("Italy", "Piedmont", "", "Red")),
	}
	order := &model.SortOrder{
		Name:   "geo",
		Fields: []model.Field{model.FieldCountry, model.FieldRegion, model.FieldName},
		// Deliberately listed deepest first.
		HeaderFields: []model.Field{model.FieldRegion, model.FieldCountry},
	}

	rows := Group(items, order)

	assert.Equal(t, []rowView{
		{Level: 0, Title: "France"},
		{Level: 1, Title: "Bordeaux"},
		{Level: 2, ID: "1"},
		{Level: 1, Title: "Burgundy"},
		{Level: 2, ID: "2"},
		{Level: 0, Title: "Italy"},
		{Level: 1, Title: "Piedmont"},
		{Level: 2, ID: "3"},
	}, view(rows))
}

func TestGroupSkipsEmptyHeadersButCascades(t *testing.T) {
	items := []model.Item{
		item("1", "A", "P", withGeo("", "Mosel", "", "White")),
		item("2", "B", "P", withGeo("", "Rheingau", "", "White")),
		item("3", "C", "P", withGeo("", "Rheingau", "", "Red")),
	}
	order := &model.SortOrder{
		Name:         "geo",
		Fields:       []model.Field{model.FieldCountry, model.FieldRegion, model.FieldType, model.FieldName},
		HeaderFields: []model.Field{model.FieldCountry, model.FieldRegion, model.FieldType},
	}

	rows := Group(items, order)

	assert.Equal(t, []rowView{
		{Level: 1, Title: "Mosel"},
		{Level: 2, Title: "White"},
		{Level: 3, ID: "1"},
		{Level: 1, Title: "Rheingau"},
		{Level: 2, Title: "Red"},
		{Level: 3, ID: "3"},
		{Level: 2, Title: "White"},
		{Level: 3, ID: "2"},
	}, view(rows))
	for _, r := range rows {
		if r.IsHeader() {
			assert.NotEmpty(t, r.Title)
		}
	}
}

func TestGroupIsStableAndPreservesIdentity(t *testing.T) {
	items := []model.Item{
		item("1", "Same", "P"),
		item("2", "Same", "P"),
		item("3", "Other", "Q"),
		item("4", "Same", "P"),
	}
	order := &model.SortOrder{
		Name:         "stable",
		Fields:       []model.Field{model.FieldProducer, model.FieldName},
		HeaderFields: []model.Field{model.FieldProducer},
	}

	rows := Group(items, order)
	got := Items(rows)

	require.Len(t, got, len(items))
	ids := make([]string, len(got))
	for i := range got {
		ids[i] = got[i].ID
	}
	assert.Equal(t, []string{"1", "2", "4", "3"}, ids)
}

func TestGroupDoesNotReorderInput(t *testing.T) {
	items := []model.Item{item("b", "B", "P"), item("a", "A", "P")}
	order := &model.SortOrder{Name: "n", Fields: []model.Field{model.FieldName}, HeaderFields: []model.Field{model.FieldName}}
	Group(items, order)
	assert.Equal(t, "b", items[0].ID)
}

func TestGroupQuantityHeadersArePadded(t *testing.T) {
	items := []model.Item{item("1", "A", "P", withQty(12)), item("2", "B", "P", withQty(3))}
	order := &model.SortOrder{
		Name:         "qty",
		Fields:       []model.Field{model.FieldQuantity},
		HeaderFields: []model.Field{model.FieldQuantity},
	}
	rows := Group(items, order)
	assert.Equal(t, []rowView{
		{Level: 0, Title: "003"},
		{Level: 1, ID: "2"},
		{Level: 0, Title: "012"},
		{Level: 1, ID: "1"},
	}, view(rows))
}
