package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Item is one wine record in the collection. Numeric-ish fields that users type free
// form (vintage, alcohol, years) stay text; bottle size is stored canonically in
// milliliters with an "ml" suffix.
type Item struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Producer         string           `json:"producer"`
	Vintage          string           `json:"vintage"`
	Alcohol          string           `json:"alcohol"`
	Quantity         int              `json:"quantity"`
	Country          string           `json:"country"`
	Region           string           `json:"region"`
	Subregion        string           `json:"subregion"`
	Type             string           `json:"type"`
	Category         string           `json:"category"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	BottleSize       string           `json:"bottle_size"`
	ReadyToDrinkYear string           `json:"ready_to_drink_year"`
	BestBeforeYear   string           `json:"best_before_year"`
	StorageLocation  string           `json:"storage_location"`
	Rating           string           `json:"rating"`
	Remarks          string           `json:"remarks"`
	FrontImage       []byte           `json:"front_image,omitempty"`
	BackImage        []byte           `json:"back_image,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// PriceOrZero returns the price, treating a missing price as zero.
func (i *Item) PriceOrZero() decimal.Decimal {
	if i.Price == nil {
		return decimal.Zero
	}
	return *i.Price
}

// Value is price × quantity.
func (i *Item) Value() decimal.Decimal {
	return i.PriceOrZero().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Clone returns a deep copy so callers can keep a pre-mutation snapshot.
func (i Item) Clone() Item {
	out := i
	if i.Price != nil {
		p := *i.Price
		out.Price = &p
	}
	if i.FrontImage != nil {
		out.FrontImage = append([]byte(nil), i.FrontImage...)
	}
	if i.BackImage != nil {
		out.BackImage = append([]byte(nil), i.BackImage...)
	}
	return out
}

// Consume removes up to n bottles and returns how many were actually taken.
// Quantity never drops below zero.
func (i *Item) Consume(n int) int {
	if n > i.Quantity {
		n = i.Quantity
	}
	if n < 0 {
		n = 0
	}
	i.Quantity -= n
	return n
}

// Totals is the aggregate quantity and monetary value of a set of items.
type Totals struct {
	Quantity int             `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
}

// SumTotals adds up quantity and price × quantity over items. Items without a
// positive price contribute quantity only.
func SumTotals(items []Item) Totals {
	var t Totals
	for i := range items {
		t.Quantity += items[i].Quantity
		if items[i].Price != nil && items[i].Price.IsPositive() {
			t.Value = t.Value.Add(items[i].Value())
		}
	}
	if t.Quantity < 0 {
		t.Quantity = 0
	}
	if t.Value.IsNegative() {
		t.Value = decimal.Zero
	}
	return t
}

// IdentityKey is the case-insensitive (name, producer, vintage) triple used to spot
// the same wine arriving twice. ok is false unless all three are non-empty.
func (i *Item) IdentityKey() (key string, ok bool) {
	name := strings.ToLower(strings.TrimSpace(i.Name))
	producer := strings.ToLower(strings.TrimSpace(i.Producer))
	vintage := strings.ToLower(strings.TrimSpace(i.Vintage))
	if name == "" || producer == "" || vintage == "" {
		return "", false
	}
	return name + "\x00" + producer + "\x00" + vintage, true
}
