package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Field names one attribute of an Item. The string value matches the item's JSON key.
type Field string

const (
	FieldName             Field = "name"
	FieldProducer         Field = "producer"
	FieldVintage          Field = "vintage"
	FieldAlcohol          Field = "alcohol"
	FieldQuantity         Field = "quantity"
	FieldPrice            Field = "price"
	FieldBottleSize       Field = "bottle_size"
	FieldCountry          Field = "country"
	FieldRegion           Field = "region"
	FieldSubregion        Field = "subregion"
	FieldType             Field = "type"
	FieldCategory         Field = "category"
	FieldStorageLocation  Field = "storage_location"
	FieldReadyToDrinkYear Field = "ready_to_drink_year"
	FieldBestBeforeYear   Field = "best_before_year"
	FieldRating           Field = "rating"
	FieldRemarks          Field = "remarks"
)

type fieldDef struct {
	label    string
	sortable bool
	get      func(*Item) string
}

// fields is the single table every consumer (grouping, search, history diff) reads
// item attributes through. Order here is the order edit diffs are reported in.
var fields = []struct {
	field Field
	def   fieldDef
}{
	{FieldName, fieldDef{"Name", true, func(i *Item) string { return i.Name }}},
	{FieldProducer, fieldDef{"Producer", true, func(i *Item) string { return i.Producer }}},
	{FieldVintage, fieldDef{"Vintage", true, func(i *Item) string { return i.Vintage }}},
	{FieldQuantity, fieldDef{"Quantity", true, func(i *Item) string { return strconv.Itoa(i.Quantity) }}},
	{FieldPrice, fieldDef{"Price", true, func(i *Item) string {
		if i.Price == nil {
			return ""
		}
		return i.Price.String()
	}}},
	{FieldAlcohol, fieldDef{"Alcohol", false, func(i *Item) string { return i.Alcohol }}},
	{FieldBottleSize, fieldDef{"Bottle Size", true, func(i *Item) string { return i.BottleSize }}},
	{FieldCountry, fieldDef{"Country", true, func(i *Item) string { return i.Country }}},
	{FieldRegion, fieldDef{"Region", true, func(i *Item) string { return i.Region }}},
	{FieldSubregion, fieldDef{"Subregion", false, func(i *Item) string { return i.Subregion }}},
	{FieldType, fieldDef{"Type", true, func(i *Item) string { return i.Type }}},
	{FieldCategory, fieldDef{"Category", true, func(i *Item) string { return i.Category }}},
	{FieldStorageLocation, fieldDef{"Storage Location", false, func(i *Item) string { return i.StorageLocation }}},
	{FieldReadyToDrinkYear, fieldDef{"Ready To Drink", true, func(i *Item) string { return i.ReadyToDrinkYear }}},
	{FieldBestBeforeYear, fieldDef{"Best Before", true, func(i *Item) string { return i.BestBeforeYear }}},
	{FieldRating, fieldDef{"Rating", false, func(i *Item) string { return i.Rating }}},
	{FieldRemarks, fieldDef{"Remarks", false, func(i *Item) string { return i.Remarks }}},
}

var fieldIndex = func() map[Field]fieldDef {
	m := make(map[Field]fieldDef, len(fields))
	for _, f := range fields {
		m[f.field] = f.def
	}
	return m
}()

// AllFields returns every item field in table order.
func AllFields() []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = f.field
	}
	return out
}

// SortFields returns the grouping-eligible fields in table order.
func SortFields() []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.def.sortable {
			out = append(out, f.field)
		}
	}
	return out
}

// Valid reports whether f is a known item field.
func (f Field) Valid() bool {
	_, ok := fieldIndex[f]
	return ok
}

// Sortable reports whether f may appear in a sort order.
func (f Field) Sortable() bool {
	return fieldIndex[f].sortable
}

// Label is the human-readable field name.
func (f Field) Label() string {
	if def, ok := fieldIndex[f]; ok {
		return def.label
	}
	return string(f)
}

// Value extracts the raw string value of f from item. Unknown fields yield "".
func (f Field) Value(item *Item) string {
	def, ok := fieldIndex[f]
	if !ok || item == nil {
		return ""
	}
	return def.get(item)
}

// UnmarshalJSON rejects unknown field names.
func (f *Field) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !Field(s).Valid() {
		return fmt.Errorf("unknown field %q", s)
	}
	*f = Field(s)
	return nil
}
