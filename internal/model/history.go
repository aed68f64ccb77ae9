package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the kind of inventory mutation a HistoryEvent records.
type Action string

const (
	ActionAdded    Action = "Added"
	ActionEdited   Action = "Edited"
	ActionDeleted  Action = "Deleted"
	ActionConsumed Action = "Consumed"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionAdded, ActionEdited, ActionDeleted, ActionConsumed:
		return true
	}
	return false
}

// HistoryEvent is one append-only ledger row. Item fields are denormalised so the
// row still renders after the item is deleted. TotalValueAtTime is nil on rows
// written before running totals existed.
type HistoryEvent struct {
	ID                  string           `json:"id"`
	Timestamp           time.Time        `json:"timestamp"`
	Action              Action           `json:"action"`
	ChangeDetails       string           `json:"change_details"`
	Snapshot            string           `json:"snapshot"`
	QuantityChange      int              `json:"quantity_change"`
	PriceAtTime         *decimal.Decimal `json:"price_at_time,omitempty"`
	ItemID              string           `json:"item_id"`
	ItemName            string           `json:"item_name"`
	ItemProducer        string           `json:"item_producer"`
	ItemVintage         string           `json:"item_vintage"`
	TotalQuantityAtTime int              `json:"total_quantity_at_time"`
	TotalValueAtTime    *decimal.Decimal `json:"total_value_at_time,omitempty"`
}

// NeedsBackfill reports whether the row predates running totals.
func (e *HistoryEvent) NeedsBackfill() bool {
	return e.TotalQuantityAtTime == 0 && e.TotalValueAtTime == nil
}

// ValueChange is priceAtTime × quantityChange, zero when no price was recorded.
func (e *HistoryEvent) ValueChange() decimal.Decimal {
	if e.PriceAtTime == nil {
		return decimal.Zero
	}
	return e.PriceAtTime.Mul(decimal.NewFromInt(int64(e.QuantityChange)))
}

// TotalValue returns the running value, treating nil as zero.
func (e *HistoryEvent) TotalValue() decimal.Decimal {
	if e.TotalValueAtTime == nil {
		return decimal.Zero
	}
	return *e.TotalValueAtTime
}

// HistoryFilter narrows a history listing. Results are chronological unless
// Newest is set; Limit then keeps the most recent rows.
type HistoryFilter struct {
	ItemID string
	Action Action
	Since  time.Time
	Until  time.Time
	Newest bool
	Limit  int
}
