// Package settings owns the active user configuration: currency, bottle-size unit,
// import behaviour and the saved sort orders.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cellar-api/internal/events"
	"cellar-api/internal/model"
	"cellar-api/internal/repository"
	"cellar-api/internal/units"
	"cellar-api/pkg/logger"
	"cellar-api/pkg/uid"
)

var (
	// ErrUnknownCurrency is returned for a currency outside units.Currencies.
	ErrUnknownCurrency = errors.New("unknown currency")
	// ErrUnknownUnit is returned for an unsupported bottle-size unit.
	ErrUnknownUnit = errors.New("unknown bottle size unit")
	// ErrSortOrderNotFound is returned for an unknown sort order id.
	ErrSortOrderNotFound = errors.New("sort order not found")
)

// Defaults seed a store that has never been saved.
type Defaults struct {
	Currency           string
	BottleSizeUnit     string
	ImportWithQuantity bool
}

// Store caches the settings document in memory and writes every change through to
// the repository before notifying subscribers.
type Store struct {
	repo  repository.SettingsRepository
	bus   *events.Bus
	log   *logger.Logger
	newID func() string

	mu      sync.RWMutex
	current model.Settings
}

// Load reads saved settings, seeding and saving defaults on first use.
func Load(ctx context.Context, repo repository.SettingsRepository, defaults Defaults, bus *events.Bus, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &Store{repo: repo, bus: bus, log: log.WithComponent("settings"), newID: uid.New}

	saved, err := repo.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if saved != nil {
		s.current = *saved
		s.normalize()
		return s, nil
	}

	s.current = model.Settings{
		Currency:           defaults.Currency,
		BottleSizeUnit:     defaults.BottleSizeUnit,
		ImportWithQuantity: defaults.ImportWithQuantity,
		SortOrders:         model.DefaultSortOrders(s.newID),
	}
	s.normalize()
	if len(s.current.SortOrders) > 0 {
		s.current.SelectedSortOrderID = s.current.SortOrders[0].ID
	}
	if err := repo.SaveSettings(ctx, &s.current); err != nil {
		return nil, fmt.Errorf("failed to save default settings: %w", err)
	}
	s.log.Infow("seeded default settings", "currency", s.current.Currency, "unit", s.current.BottleSizeUnit)
	return s, nil
}

func (s *Store) normalize() {
	if !units.IsCurrency(s.current.Currency) {
		s.current.Currency = units.DefaultCurrency
	}
	if !units.IsBottleSizeUnit(s.current.BottleSizeUnit) {
		s.current.BottleSizeUnit = units.DefaultBottleSizeUnit
	}
	if s.current.SortOrders == nil {
		s.current.SortOrders = []model.SortOrder{}
	}
	if s.current.SelectedSortOrderID != "" && s.current.SortOrder(s.current.SelectedSortOrderID) == nil {
		s.current.SelectedSortOrderID = ""
	}
}

// Get returns a copy of the current settings.
func (s *Store) Get() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// SelectedSortOrder returns a copy of the selected order, or nil.
func (s *Store) SelectedSortOrder() *model.SortOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if o := s.current.SelectedSortOrder(); o != nil {
		c := o.Clone()
		return &c
	}
	return nil
}

// SortOrder returns a copy of the order with id, or nil.
func (s *Store) SortOrder(id string) *model.SortOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if o := s.current.SortOrder(id); o != nil {
		c := o.Clone()
		return &c
	}
	return nil
}

// Preferences is a partial update of the scalar settings. Nil fields are left alone.
type Preferences struct {
	Currency           *string
	BottleSizeUnit     *string
	ImportWithQuantity *bool
}

// Update applies prefs.
func (s *Store) Update(ctx context.Context, prefs Preferences) (model.Settings, error) {
	if prefs.Currency != nil && !units.IsCurrency(*prefs.Currency) {
		return model.Settings{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, *prefs.Currency)
	}
	if prefs.BottleSizeUnit != nil && !units.IsBottleSizeUnit(*prefs.BottleSizeUnit) {
		return model.Settings{}, fmt.Errorf("%w: %q", ErrUnknownUnit, *prefs.BottleSizeUnit)
	}
	return s.mutate(ctx, func(next *model.Settings) error {
		if prefs.Currency != nil {
			next.Currency = *prefs.Currency
		}
		if prefs.BottleSizeUnit != nil {
			next.BottleSizeUnit = *prefs.BottleSizeUnit
		}
		if prefs.ImportWithQuantity != nil {
			next.ImportWithQuantity = *prefs.ImportWithQuantity
		}
		return nil
	})
}

// CreateSortOrder validates and appends a new order, assigning its id.
func (s *Store) CreateSortOrder(ctx context.Context, order model.SortOrder) (model.SortOrder, error) {
	if err := order.Validate(); err != nil {
		return model.SortOrder{}, err
	}
	order.ID = s.newID()
	_, err := s.mutate(ctx, func(next *model.Settings) error {
		next.SortOrders = append(next.SortOrders, order.Clone())
		if next.SelectedSortOrderID == "" {
			next.SelectedSortOrderID = order.ID
		}
		return nil
	})
	if err != nil {
		return model.SortOrder{}, err
	}
	return order, nil
}

// UpdateSortOrder replaces the name and fields of an existing order.
func (s *Store) UpdateSortOrder(ctx context.Context, order model.SortOrder) (model.SortOrder, error) {
	if err := order.Validate(); err != nil {
		return model.SortOrder{}, err
	}
	_, err := s.mutate(ctx, func(next *model.Settings) error {
		existing := next.SortOrder(order.ID)
		if existing == nil {
			return ErrSortOrderNotFound
		}
		*existing = order.Clone()
		return nil
	})
	if err != nil {
		return model.SortOrder{}, err
	}
	return order, nil
}

// DeleteSortOrder removes an order. Deleting the selected order selects the first
// remaining one, or none.
func (s *Store) DeleteSortOrder(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, func(next *model.Settings) error {
		idx := -1
		for i := range next.SortOrders {
			if next.SortOrders[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrSortOrderNotFound
		}
		next.SortOrders = append(next.SortOrders[:idx], next.SortOrders[idx+1:]...)
		if next.SelectedSortOrderID == id {
			next.SelectedSortOrderID = ""
			if len(next.SortOrders) > 0 {
				next.SelectedSortOrderID = next.SortOrders[0].ID
			}
		}
		return nil
	})
	return err
}

// SelectSortOrder makes id the active order. An empty id clears the selection.
func (s *Store) SelectSortOrder(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, func(next *model.Settings) error {
		if id != "" && next.SortOrder(id) == nil {
			return ErrSortOrderNotFound
		}
		next.SelectedSortOrderID = id
		return nil
	})
	return err
}

// mutate applies fn to a copy, persists it, swaps it in and publishes.
func (s *Store) mutate(ctx context.Context, fn func(next *model.Settings) error) (model.Settings, error) {
	s.mu.Lock()
	next := s.current.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return model.Settings{}, err
	}
	if err := s.repo.SaveSettings(ctx, &next); err != nil {
		s.mu.Unlock()
		return model.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	s.current = next
	out := next.Clone()
	s.mu.Unlock()

	s.bus.Publish(ctx, events.Event{Kind: events.SettingsChanged})
	return out, nil
}
