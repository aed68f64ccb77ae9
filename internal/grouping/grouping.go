// Package grouping turns a flat item list into a sectioned list driven by a SortOrder.
package grouping

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"cellar-api/internal/model"
)

// Row is one entry of a grouped list. Header rows carry Title; item rows carry Item
// and sit one level below the deepest header.
type Row struct {
	Level int         `json:"level"`
	Title string      `json:"title,omitempty"`
	Item  *model.Item `json:"item,omitempty"`
}

// IsHeader reports whether r is a section header.
func (r Row) IsHeader() bool {
	return r.Item == nil
}

var leadingNumber = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)`)

// SortKey is the comparable form of f's value on item. Quantity and bottle size are
// zero-padded so lexicographic order is numeric order.
func SortKey(item *model.Item, f model.Field) string {
	switch f {
	case model.FieldQuantity:
		return fmt.Sprintf("%03d", item.Quantity)
	case model.FieldBottleSize:
		m := leadingNumber.FindStringSubmatch(item.BottleSize)
		if m == nil {
			return "00000"
		}
		n, err := strconv.ParseFloat(normalizeDecimal(m[1]), 64)
		if err != nil {
			return "00000"
		}
		return fmt.Sprintf("%05.0f", n)
	case model.FieldPrice:
		if item.Price == nil {
			return "0"
		}
		return item.Price.String()
	default:
		return f.Value(item)
	}
}

func normalizeDecimal(s string) string {
	out := []byte(s)
	for i := range out {
		if out[i] == ',' {
			out[i] = '.'
		}
	}
	return string(out)
}

// SortItems stable-sorts items in place by fields, left to right.
func SortItems(items []model.Item, fields []model.Field) {
	if len(fields) == 0 || len(items) < 2 {
		return
	}
	keys := make([][]string, len(items))
	for i := range items {
		keys[i] = keysFor(&items[i], fields)
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return less(keys[idx[a]], keys[idx[b]])
	})
	sorted := make([]model.Item, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}

func keysFor(item *model.Item, fields []model.Field) []string {
	k := make([]string, len(fields))
	for i, f := range fields {
		k[i] = SortKey(item, f)
	}
	return k
}

func less(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Group sorts a copy of items by order and interleaves section headers.
//
// A nil order keeps input order. An order without header fields only sorts. Otherwise
// the first header level whose value changed, and every deeper level, opens a new
// section; empty values never produce a header.
func Group(items []model.Item, order *model.SortOrder) []Row {
	sorted := make([]model.Item, len(items))
	copy(sorted, items)

	if order == nil {
		return flat(sorted, 0)
	}
	SortItems(sorted, order.Fields)

	headers := order.Headers()
	if len(headers) == 0 {
		return flat(sorted, 0)
	}

	rows := make([]Row, 0, len(sorted)+len(sorted)/2)
	previous := make([]string, len(headers))
	current := make([]string, len(headers))
	for i := range sorted {
		item := &sorted[i]
		for level, f := range headers {
			current[level] = SortKey(item, f)
		}
		changed := -1
		for level := range headers {
			if current[level] != previous[level] {
				changed = level
				break
			}
		}
		if changed >= 0 {
			for level := changed; level < len(headers); level++ {
				if current[level] != "" {
					rows = append(rows, Row{Level: level, Title: current[level]})
				}
				previous[level] = current[level]
			}
		}
		rows = append(rows, Row{Level: len(headers), Item: item})
	}
	return rows
}

func flat(items []model.Item, level int) []Row {
	rows := make([]Row, len(items))
	for i := range items {
		rows[i] = Row{Level: level, Item: &items[i]}
	}
	return rows
}

// Items returns the item rows in order, dropping headers.
func Items(rows []Row) []model.Item {
	out := make([]model.Item, 0, len(rows))
	for _, r := range rows {
		if r.Item != nil {
			out = append(out, *r.Item)
		}
	}
	return out
}
