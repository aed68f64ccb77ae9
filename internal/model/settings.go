package model

// Settings is the user's active configuration, passed explicitly to the grouping,
// display and import code instead of living in a global.
type Settings struct {
	Currency            string      `json:"currency"`
	BottleSizeUnit      string      `json:"bottle_size_unit"`
	ImportWithQuantity  bool        `json:"import_with_quantity"`
	SortOrders          []SortOrder `json:"sort_orders"`
	SelectedSortOrderID string      `json:"selected_sort_order_id,omitempty"`
}

// SelectedSortOrder returns the selected order or nil when none is selected.
func (s *Settings) SelectedSortOrder() *SortOrder {
	return s.SortOrder(s.SelectedSortOrderID)
}

// SortOrder looks up an order by id.
func (s *Settings) SortOrder(id string) *SortOrder {
	if id == "" {
		return nil
	}
	for i := range s.SortOrders {
		if s.SortOrders[i].ID == id {
			return &s.SortOrders[i]
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	orders := make([]SortOrder, len(s.SortOrders))
	for i := range s.SortOrders {
		orders[i] = s.SortOrders[i].Clone()
	}
	s.SortOrders = orders
	return s
}
