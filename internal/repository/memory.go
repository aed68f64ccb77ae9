package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cellar-api/internal/model"
)

// MemoryStore keeps everything in process. Used for tests and throwaway instances.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string]*model.Item
	order    []string
	events   []model.HistoryEvent
	settings *model.Settings

	// failAppend makes AppendEvent fail; set by tests.
	failAppend error
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*model.Item)}
}

// FailAppends makes every following AppendEvent return err. Pass nil to reset.
func (s *MemoryStore) FailAppends(err error) {
	s.mu.Lock()
	s.failAppend = err
	s.mu.Unlock()
}

func (s *MemoryStore) CreateItem(ctx context.Context, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(item)
}

func (s *MemoryStore) insertLocked(item *model.Item) error {
	if _, exists := s.items[item.ID]; exists {
		return fmt.Errorf("failed to create item %s: duplicate id", item.ID)
	}
	c := item.Clone()
	s.items[item.ID] = &c
	s.order = append(s.order, item.ID)
	return nil
}

func (s *MemoryStore) CreateItems(ctx context.Context, items []model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range items {
		if _, exists := s.items[items[i].ID]; exists {
			return fmt.Errorf("failed to create item %s: duplicate id", items[i].ID)
		}
	}
	for i := range items {
		if err := s.insertLocked(&items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) UpdateItem(ctx context.Context, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; !exists {
		return ErrNotFound
	}
	c := item.Clone()
	s.items[item.ID] = &c
	return nil
}

func (s *MemoryStore) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return ErrNotFound
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := item.Clone()
	return &c, nil
}

func (s *MemoryStore) ListItems(ctx context.Context) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) FindDuplicate(ctx context.Context, item *model.Item) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item.ID != "" {
		if found, ok := s.items[item.ID]; ok {
			c := found.Clone()
			return &c, nil
		}
	}
	key, ok := item.IdentityKey()
	if !ok {
		return nil, nil
	}
	for _, id := range s.order {
		if k, ok := s.items[id].IdentityKey(); ok && k == key {
			c := s.items[id].Clone()
			return &c, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Totals(ctx context.Context) (model.Totals, error) {
	items, _ := s.ListItems(ctx)
	return model.SumTotals(items), nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, ev *model.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAppend != nil {
		return fmt.Errorf("failed to append history event: %w", s.failAppend)
	}
	s.events = append(s.events, *ev)
	return nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, filter model.HistoryFilter) ([]model.HistoryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.HistoryEvent, 0, len(s.events))
	for _, ev := range s.events {
		if matchesFilter(&ev, filter) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if filter.Newest {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesFilter(ev *model.HistoryEvent, f model.HistoryFilter) bool {
	if f.ItemID != "" && ev.ItemID != f.ItemID {
		return false
	}
	if f.Action != "" && ev.Action != f.Action {
		return false
	}
	if !f.Since.IsZero() && ev.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && ev.Timestamp.After(f.Until) {
		return false
	}
	return true
}

func (s *MemoryStore) LatestEvent(ctx context.Context) (*model.HistoryEvent, error) {
	events, _ := s.ListEvents(ctx, model.HistoryFilter{Newest: true, Limit: 1})
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func (s *MemoryStore) UpdateRunningTotals(ctx context.Context, events []model.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[string]int, len(s.events))
	for i := range s.events {
		index[s.events[i].ID] = i
	}
	for _, ev := range events {
		if _, ok := index[ev.ID]; !ok {
			return fmt.Errorf("failed to update running totals: event %s: %w", ev.ID, ErrNotFound)
		}
	}
	for _, ev := range events {
		i := index[ev.ID]
		s.events[i].TotalQuantityAtTime = ev.TotalQuantityAtTime
		s.events[i].TotalValueAtTime = ev.TotalValueAtTime
	}
	return nil
}

func (s *MemoryStore) LoadSettings(ctx context.Context) (*model.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, nil
	}
	c := s.settings.Clone()
	return &c, nil
}

func (s *MemoryStore) SaveSettings(ctx context.Context, settings *model.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := settings.Clone()
	s.settings = &c
	return nil
}

func (s *MemoryStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"backend":        "memory",
		"total_items":    int64(len(s.items)),
		"history_events": int64(len(s.events)),
	}
	bottles := 0
	for _, it := range s.items {
		bottles += it.Quantity
	}
	stats["total_bottles"] = int64(bottles)
	return stats, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
