package model

import (
	"errors"
	"fmt"
)

// SortOrder is a user-defined grouping configuration. Fields defines sort priority
// (left is primary); HeaderFields marks which of those fields open a section.
type SortOrder struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Fields       []Field `json:"fields"`
	HeaderFields []Field `json:"header_fields"`
}

// ErrInvalidSortOrder is wrapped by every SortOrder validation failure.
var ErrInvalidSortOrder = errors.New("invalid sort order")

// Validate checks that fields are sortable and unique and that every header field
// is also a sort field.
func (o *SortOrder) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSortOrder)
	}
	if len(o.Fields) == 0 {
		return fmt.Errorf("%w: at least one field is required", ErrInvalidSortOrder)
	}
	seen := make(map[Field]bool, len(o.Fields))
	for _, f := range o.Fields {
		if !f.Sortable() {
			return fmt.Errorf("%w: field %q cannot be sorted on", ErrInvalidSortOrder, f)
		}
		if seen[f] {
			return fmt.Errorf("%w: field %q listed twice", ErrInvalidSortOrder, f)
		}
		seen[f] = true
	}
	for _, h := range o.HeaderFields {
		if !seen[h] {
			return fmt.Errorf("%w: header field %q is not a sort field", ErrInvalidSortOrder, h)
		}
	}
	return nil
}

// Headers returns the header fields in the order they appear in Fields.
func (o *SortOrder) Headers() []Field {
	if o == nil || len(o.HeaderFields) == 0 {
		return nil
	}
	marked := make(map[Field]bool, len(o.HeaderFields))
	for _, h := range o.HeaderFields {
		marked[h] = true
	}
	out := make([]Field, 0, len(o.HeaderFields))
	for _, f := range o.Fields {
		if marked[f] {
			out = append(out, f)
			delete(marked, f)
		}
	}
	return out
}

// IsHeader reports whether f opens a section.
func (o *SortOrder) IsHeader(f Field) bool {
	for _, h := range o.HeaderFields {
		if h == f {
			return true
		}
	}
	return false
}

// Clone returns a copy that does not share slices with o.
func (o SortOrder) Clone() SortOrder {
	o.Fields = append([]Field(nil), o.Fields...)
	o.HeaderFields = append([]Field(nil), o.HeaderFields...)
	return o
}

// DefaultSortOrders are seeded into an empty settings store.
func DefaultSortOrders(newID func() string) []SortOrder {
	return []SortOrder{
		{
			ID:           newID(),
			Name:         "Producer",
			Fields:       []Field{FieldProducer, FieldType, FieldVintage},
			HeaderFields: []Field{FieldProducer},
		},
		{
			ID:           newID(),
			Name:         "Country",
			Fields:       []Field{FieldCountry, FieldProducer, FieldType, FieldVintage},
			HeaderFields: []Field{FieldCountry},
		},
	}
}
