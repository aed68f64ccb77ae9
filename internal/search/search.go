// Package search implements free-text and advanced filtering over items.
package search

import (
	"sort"
	"strconv"
	"strings"

	"cellar-api/internal/model"
	"cellar-api/internal/units"

	"github.com/shopspring/decimal"
)

var textFields = []model.Field{
	model.FieldName, model.FieldProducer, model.FieldVintage, model.FieldAlcohol,
	model.FieldCategory, model.FieldCountry, model.FieldRegion, model.FieldSubregion,
	model.FieldType, model.FieldStorageLocation,
}

// MatchText reports whether query occurs, case-insensitively, in any searchable
// field. An empty query matches everything.
func MatchText(item *model.Item, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, f := range textFields {
		if strings.Contains(strings.ToLower(f.Value(item)), q) {
			return true
		}
	}
	return false
}

// Criteria is the advanced search form. Every field is optional text; range bounds
// are inclusive and a bound or item value that does not parse never matches.
type Criteria struct {
	Name            string `json:"name,omitempty"`
	Producer        string `json:"producer,omitempty"`
	StorageLocation string `json:"storage_location,omitempty"`

	Category  string `json:"category,omitempty"`
	Country   string `json:"country,omitempty"`
	Region    string `json:"region,omitempty"`
	Subregion string `json:"subregion,omitempty"`
	Type      string `json:"type,omitempty"`

	VintageFrom      string `json:"vintage_from,omitempty"`
	VintageTo        string `json:"vintage_to,omitempty"`
	AlcoholFrom      string `json:"alcohol_from,omitempty"`
	AlcoholTo        string `json:"alcohol_to,omitempty"`
	PriceFrom        string `json:"price_from,omitempty"`
	PriceTo          string `json:"price_to,omitempty"`
	QuantityFrom     string `json:"quantity_from,omitempty"`
	QuantityTo       string `json:"quantity_to,omitempty"`
	ReadyToDrinkFrom string `json:"ready_to_drink_from,omitempty"`
	ReadyToDrinkTo   string `json:"ready_to_drink_to,omitempty"`
	BestBeforeFrom   string `json:"best_before_from,omitempty"`
	BestBeforeTo     string `json:"best_before_to,omitempty"`

	// BottleSize is read in BottleSizeUnit unless it carries its own unit.
	BottleSize     string `json:"bottle_size,omitempty"`
	BottleSizeUnit string `json:"-"`
}

// Active reports whether any criterion is set.
func (c *Criteria) Active() bool {
	if c == nil {
		return false
	}
	for _, v := range []string{
		c.Name, c.Producer, c.StorageLocation, c.Category, c.Country, c.Region, c.Subregion, c.Type,
		c.VintageFrom, c.VintageTo, c.AlcoholFrom, c.AlcoholTo, c.PriceFrom, c.PriceTo,
		c.QuantityFrom, c.QuantityTo, c.ReadyToDrinkFrom, c.ReadyToDrinkTo,
		c.BestBeforeFrom, c.BestBeforeTo, c.BottleSize,
	} {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// Match reports whether item satisfies every set criterion.
func (c *Criteria) Match(item *model.Item) bool {
	if !c.Active() {
		return true
	}
	return contains(item.Name, c.Name) &&
		contains(item.Producer, c.Producer) &&
		contains(item.StorageLocation, c.StorageLocation) &&
		equalFold(item.Category, c.Category) &&
		equalFold(item.Country, c.Country) &&
		equalFold(item.Region, c.Region) &&
		equalFold(item.Subregion, c.Subregion) &&
		equalFold(item.Type, c.Type) &&
		inRange(item.Vintage, c.VintageFrom, c.VintageTo) &&
		inRange(item.Alcohol, c.AlcoholFrom, c.AlcoholTo) &&
		inRange(priceText(item), c.PriceFrom, c.PriceTo) &&
		inRange(strconv.Itoa(item.Quantity), c.QuantityFrom, c.QuantityTo) &&
		inRange(item.ReadyToDrinkYear, c.ReadyToDrinkFrom, c.ReadyToDrinkTo) &&
		inRange(item.BestBeforeYear, c.BestBeforeFrom, c.BestBeforeTo) &&
		sameBottleSize(item.BottleSize, c.BottleSize, c.BottleSizeUnit)
}

// Filter returns items matching both the free-text query and criteria, in input order.
func Filter(items []model.Item, query string, c *Criteria) []model.Item {
	out := make([]model.Item, 0, len(items))
	for i := range items {
		if MatchText(&items[i], query) && c.Match(&items[i]) {
			out = append(out, items[i])
		}
	}
	return out
}

func contains(value, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(want))
}

func equalFold(value, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(value), want)
}

func priceText(item *model.Item) string {
	if item.Price == nil {
		return ""
	}
	return item.Price.String()
}

// inRange compares as decimals so "13.5" and "2015" share one code path.
func inRange(value, from, to string) bool {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return true
	}
	v, ok := parseNumber(value)
	if !ok {
		return false
	}
	if from != "" {
		lo, ok := parseNumber(from)
		if !ok || v.LessThan(lo) {
			return false
		}
	}
	if to != "" {
		hi, ok := parseNumber(to)
		if !ok || v.GreaterThan(hi) {
			return false
		}
	}
	return true
}

func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func sameBottleSize(stored, want, unit string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return true
	}
	wantML, ok := parseNumber(strings.TrimSuffix(units.NormalizeBottleSize(want, unit), "ml"))
	if !ok {
		return false
	}
	haveML, ok := parseNumber(strings.TrimSuffix(stored, "ml"))
	if !ok {
		return false
	}
	return haveML.Equal(wantML)
}

// Suggest returns up to limit distinct values from candidates that start with
// prefix, case-insensitively, sorted.
func Suggest(candidates []string, prefix string, limit int) []string {
	p := strings.ToLower(strings.TrimSpace(prefix))
	if p == "" {
		return []string{}
	}
	seen := make(map[string]bool)
	var out []string
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		if strings.HasPrefix(strings.ToLower(c), p) {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []string{}
	}
	return out
}
