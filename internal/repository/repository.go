package repository

import (
	"context"
	"errors"

	"cellar-api/internal/model"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("not found")

// ItemRepository defines wine item data access methods.
type ItemRepository interface {
	// CreateItem inserts a new item. The id must already be set.
	CreateItem(ctx context.Context, item *model.Item) error

	// CreateItems inserts several items in one transaction.
	CreateItems(ctx context.Context, items []model.Item) error

	// UpdateItem overwrites every stored field of an existing item.
	UpdateItem(ctx context.Context, item *model.Item) error

	// DeleteItem removes an item. Returns ErrNotFound if it does not exist.
	DeleteItem(ctx context.Context, id string) error

	// GetItem returns one item or ErrNotFound.
	GetItem(ctx context.Context, id string) (*model.Item, error)

	// ListItems returns every item in creation order.
	ListItems(ctx context.Context) ([]model.Item, error)

	// FindDuplicate looks for an item with the same id, then for one with the same
	// identity key. Returns nil, nil when there is no match.
	FindDuplicate(ctx context.Context, item *model.Item) (*model.Item, error)

	// Totals sums quantity and value over the live inventory.
	Totals(ctx context.Context) (model.Totals, error)
}

// HistoryRepository defines ledger data access methods.
type HistoryRepository interface {
	// AppendEvent writes one event atomically.
	AppendEvent(ctx context.Context, ev *model.HistoryEvent) error

	// ListEvents returns events matching filter.
	ListEvents(ctx context.Context, filter model.HistoryFilter) ([]model.HistoryEvent, error)

	// LatestEvent returns the most recent event or nil, nil on an empty ledger.
	LatestEvent(ctx context.Context) (*model.HistoryEvent, error)

	// UpdateRunningTotals rewrites the running totals of events in one transaction.
	UpdateRunningTotals(ctx context.Context, events []model.HistoryEvent) error
}

// SettingsRepository persists the user's settings document.
type SettingsRepository interface {
	// LoadSettings returns the saved settings or nil, nil when none were saved.
	LoadSettings(ctx context.Context) (*model.Settings, error)

	// SaveSettings replaces the saved settings.
	SaveSettings(ctx context.Context, s *model.Settings) error
}

// StatsProvider reports storage statistics for the admin endpoint.
type StatsProvider interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// Store is everything the service layer needs from a backend.
type Store interface {
	ItemRepository
	HistoryRepository
	SettingsRepository
	StatsProvider

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}
