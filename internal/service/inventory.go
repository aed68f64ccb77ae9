package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"cellar-api/internal/cache"
	"cellar-api/internal/events"
	"cellar-api/internal/grouping"
	"cellar-api/internal/ledger"
	"cellar-api/internal/model"
	"cellar-api/internal/repository"
	"cellar-api/internal/search"
	"cellar-api/internal/settings"
	"cellar-api/internal/units"
	"cellar-api/pkg/apierror"
	"cellar-api/pkg/logger"
	"cellar-api/pkg/uid"
	"cellar-api/pkg/validate"

	"github.com/shopspring/decimal"
)

// MaxSuggestions caps autocomplete results.
const MaxSuggestions = 5

// suggestionFields are the free-text fields offered for autocomplete.
var suggestionFields = map[model.Field]bool{
	model.FieldName:            true,
	model.FieldProducer:        true,
	model.FieldStorageLocation: true,
}

// ItemInput is the editable part of an item as sent by clients. BottleSize may
// carry a unit ("75cl"); without one the configured unit is assumed.
type ItemInput struct {
	Name             string           `json:"name" validate:"required,max=200"`
	Producer         string           `json:"producer" validate:"max=200"`
	Vintage          string           `json:"vintage" validate:"max=20"`
	Alcohol          string           `json:"alcohol" validate:"max=20"`
	Quantity         int              `json:"quantity" validate:"min=0,max=100000"`
	Country          string           `json:"country" validate:"max=100"`
	Region           string           `json:"region" validate:"max=100"`
	Subregion        string           `json:"subregion" validate:"max=100"`
	Type             string           `json:"type" validate:"max=100"`
	Category         string           `json:"category" validate:"max=100"`
	Price            *decimal.Decimal `json:"price"`
	BottleSize       string           `json:"bottle_size" validate:"max=20"`
	ReadyToDrinkYear string           `json:"ready_to_drink_year" validate:"max=20"`
	BestBeforeYear   string           `json:"best_before_year" validate:"max=20"`
	StorageLocation  string           `json:"storage_location" validate:"max=200"`
	Rating           string           `json:"rating" validate:"max=20"`
	Remarks          string           `json:"remarks" validate:"max=4000"`
	FrontImage       []byte           `json:"front_image"`
	BackImage        []byte           `json:"back_image"`
}

// Validate runs tag validation plus the checks tags cannot express.
func (in *ItemInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.Price != nil && in.Price.IsNegative() {
		return apierror.ValidationError("request validation failed",
			apierror.FieldError{Field: "price", Message: "price must not be negative"})
	}
	if _, err := units.ParseBottleSize(in.BottleSize, units.DefaultBottleSizeUnit); err != nil {
		return apierror.ValidationError("request validation failed",
			apierror.FieldError{Field: "bottle_size", Message: "bottle size must be a number with an optional unit (ml, cl, dl, l)"})
	}
	return nil
}

// apply copies the input onto item. Images are only replaced when sent.
func (in *ItemInput) apply(item *model.Item, unit string) {
	item.Name = strings.TrimSpace(in.Name)
	item.Producer = strings.TrimSpace(in.Producer)
	item.Vintage = strings.TrimSpace(in.Vintage)
	item.Alcohol = strings.TrimSpace(in.Alcohol)
	item.Quantity = in.Quantity
	item.Country = strings.TrimSpace(in.Country)
	item.Region = strings.TrimSpace(in.Region)
	item.Subregion = strings.TrimSpace(in.Subregion)
	item.Type = strings.TrimSpace(in.Type)
	item.Category = strings.TrimSpace(in.Category)
	item.Price = nil
	if in.Price != nil {
		p := *in.Price
		item.Price = &p
	}
	item.BottleSize = units.NormalizeBottleSize(strings.TrimSpace(in.BottleSize), unit)
	item.ReadyToDrinkYear = strings.TrimSpace(in.ReadyToDrinkYear)
	item.BestBeforeYear = strings.TrimSpace(in.BestBeforeYear)
	item.StorageLocation = strings.TrimSpace(in.StorageLocation)
	item.Rating = strings.TrimSpace(in.Rating)
	item.Remarks = in.Remarks
	if in.FrontImage != nil {
		item.FrontImage = in.FrontImage
	}
	if in.BackImage != nil {
		item.BackImage = in.BackImage
	}
}

// ListQuery selects and orders items. An empty SortOrderID uses the selected order.
type ListQuery struct {
	Query       string           `json:"query,omitempty"`
	Criteria    *search.Criteria `json:"criteria,omitempty"`
	SortOrderID string           `json:"sort_order_id,omitempty"`
}

// GroupedRow is a grouping row with the header title decoded for display.
type GroupedRow struct {
	Level        int         `json:"level"`
	Title        string      `json:"title,omitempty"`
	DisplayTitle string      `json:"display_title,omitempty"`
	Item         *model.Item `json:"item,omitempty"`
}

// GroupedList is the sectioned view of the inventory.
type GroupedList struct {
	SortOrder *model.SortOrder `json:"sort_order,omitempty"`
	Rows      []GroupedRow     `json:"rows"`
	Count     int              `json:"count"`
}

// InventoryService handles inventory business logic. Every mutation is written to
// the ledger and published on the bus.
type InventoryService struct {
	items    repository.ItemRepository
	ledger   *ledger.Ledger
	settings *settings.Store
	bus      *events.Bus
	log      *logger.Logger

	cache    cache.Cache
	cacheTTL time.Duration

	now   func() time.Time
	newID func() string

	locks itemLocks
}

// itemLocks serializes get → mutate → update → log cycles on the same item, so
// concurrent consumes see each other's writes.
type itemLocks [64]sync.Mutex

func (l *itemLocks) lock(id string) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	m := &l[h.Sum32()%uint32(len(l))]
	m.Lock()
	return m.Unlock
}

// NewInventoryService creates a new inventory service.
// Returns nil if items is nil (required dependency).
func NewInventoryService(
	items repository.ItemRepository,
	history *ledger.Ledger,
	prefs *settings.Store,
	bus *events.Bus,
	log *logger.Logger,
) *InventoryService {
	if items == nil {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}
	return &InventoryService{
		items:    items,
		ledger:   history,
		settings: prefs,
		bus:      bus,
		log:      log.WithComponent("inventory"),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uid.New,
	}
}

// SetCache enables caching of grouped lists.
func (s *InventoryService) SetCache(c cache.Cache, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

func (s *InventoryService) prefs() model.Settings {
	if s.settings == nil {
		return model.Settings{Currency: units.DefaultCurrency, BottleSizeUnit: units.DefaultBottleSizeUnit}
	}
	return s.settings.Get()
}

func (s *InventoryService) unit() string {
	return s.prefs().BottleSizeUnit
}

// Add validates input and stores a new item.
func (s *InventoryService) Add(ctx context.Context, in ItemInput) (*model.Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	item := &model.Item{ID: s.newID(), CreatedAt: now, UpdatedAt: now}
	in.apply(item, s.unit())

	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	s.ledger.LogAdded(ctx, item)
	s.bus.Publish(ctx, events.Event{Kind: events.ItemAdded, ItemID: item.ID})

	s.log.Infow("item added", "item_id", item.ID, "quantity", item.Quantity)
	return item, nil
}

// Get returns one item.
func (s *InventoryService) Get(ctx context.Context, id string) (*model.Item, error) {
	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		return nil, itemError(err)
	}
	return item, nil
}

// Edit replaces the editable fields of an item.
func (s *InventoryService) Edit(ctx context.Context, id string, in ItemInput) (*model.Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	defer s.locks.lock(id)()

	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		return nil, itemError(err)
	}

	previous := item.Clone()
	in.apply(item, s.unit())
	item.UpdatedAt = s.now()

	if err := s.items.UpdateItem(ctx, item); err != nil {
		return nil, itemError(err)
	}
	s.ledger.LogEdited(ctx, item, &previous)
	s.bus.Publish(ctx, events.Event{Kind: events.ItemEdited, ItemID: item.ID})
	return item, nil
}

// Consume takes up to n bottles. Asking for more than are on hand takes what is
// there; an item with no bottles left cannot be consumed.
func (s *InventoryService) Consume(ctx context.Context, id string, n int) (*model.Item, int, error) {
	if n < 1 {
		return nil, 0, apierror.BadRequest("count must be at least 1")
	}
	defer s.locks.lock(id)()

	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		return nil, 0, itemError(err)
	}
	if item.Quantity == 0 {
		return nil, 0, apierror.Unprocessable("no bottles left to consume")
	}

	taken := item.Consume(n)
	item.UpdatedAt = s.now()
	if err := s.items.UpdateItem(ctx, item); err != nil {
		return nil, 0, itemError(err)
	}
	s.ledger.LogConsumed(ctx, item, taken)
	s.bus.Publish(ctx, events.Event{Kind: events.ItemConsumed, ItemID: item.ID, Count: taken})
	return item, taken, nil
}

// Copy duplicates an item under a new id. quantity overrides the copied quantity
// when set.
func (s *InventoryService) Copy(ctx context.Context, id string, quantity *int) (*model.Item, error) {
	if quantity != nil && *quantity < 0 {
		return nil, apierror.BadRequest("quantity must not be negative")
	}
	source, err := s.items.GetItem(ctx, id)
	if err != nil {
		return nil, itemError(err)
	}

	now := s.now()
	item := source.Clone()
	item.ID = s.newID()
	item.CreatedAt = now
	item.UpdatedAt = now
	if quantity != nil {
		item.Quantity = *quantity
	}

	if err := s.items.CreateItem(ctx, &item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	s.ledger.LogAdded(ctx, &item)
	s.bus.Publish(ctx, events.Event{Kind: events.ItemAdded, ItemID: item.ID})
	return &item, nil
}

// Delete removes an item and records its last state.
func (s *InventoryService) Delete(ctx context.Context, id string) error {
	defer s.locks.lock(id)()

	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		return itemError(err)
	}
	if err := s.items.DeleteItem(ctx, id); err != nil {
		return itemError(err)
	}
	s.ledger.LogDeleted(ctx, item)
	s.bus.Publish(ctx, events.Event{Kind: events.ItemDeleted, ItemID: id})
	return nil
}

// List returns filtered items sorted by the requested (or selected) sort order.
func (s *InventoryService) List(ctx context.Context, q ListQuery) ([]model.Item, error) {
	items, _, err := s.list(ctx, q)
	return items, err
}

func (s *InventoryService) list(ctx context.Context, q ListQuery) ([]model.Item, *model.SortOrder, error) {
	order, err := s.sortOrder(q.SortOrderID)
	if err != nil {
		return nil, nil, err
	}
	all, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list items: %w", err)
	}

	var criteria *search.Criteria
	if q.Criteria != nil {
		c := *q.Criteria
		c.BottleSizeUnit = s.unit()
		criteria = &c
	}
	items := search.Filter(all, q.Query, criteria)
	if order != nil {
		grouping.SortItems(items, order.Fields)
	}
	return items, order, nil
}

func (s *InventoryService) sortOrder(id string) (*model.SortOrder, error) {
	if s.settings == nil {
		return nil, nil
	}
	if id == "" {
		return s.settings.SelectedSortOrder(), nil
	}
	order := s.settings.SortOrder(id)
	if order == nil {
		return nil, apierror.NotFound("sort order not found")
	}
	return order, nil
}

// Grouped returns the sectioned list for q. Results are cached until the next change.
func (s *InventoryService) Grouped(ctx context.Context, q ListQuery) (*GroupedList, error) {
	key, err := cacheKey("grouped", q)
	if err != nil {
		return nil, err
	}
	list, err := cache.Remember(ctx, s.cache, key, s.cacheTTL, func() (*GroupedList, error) {
		return s.grouped(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *InventoryService) grouped(ctx context.Context, q ListQuery) (*GroupedList, error) {
	items, order, err := s.list(ctx, q)
	if err != nil {
		return nil, err
	}
	unit := s.unit()
	rows := grouping.Group(items, order)
	out := &GroupedList{SortOrder: order, Rows: make([]GroupedRow, len(rows)), Count: len(items)}
	for i, r := range rows {
		out.Rows[i] = GroupedRow{Level: r.Level, Title: r.Title, Item: r.Item}
		if r.IsHeader() {
			out.Rows[i].DisplayTitle = units.DecodeHeaderTitle(r.Title, unit)
		}
	}
	return out, nil
}

// Suggestions returns up to MaxSuggestions distinct stored values of field that
// start with prefix.
func (s *InventoryService) Suggestions(ctx context.Context, field, prefix string) ([]string, error) {
	f := model.Field(field)
	if field == "storageLocation" {
		f = model.FieldStorageLocation
	}
	if !suggestionFields[f] {
		return nil, apierror.BadRequest("suggestions are available for name, producer and storage_location")
	}

	items, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	candidates := make([]string, 0, len(items))
	for i := range items {
		candidates = append(candidates, f.Value(&items[i]))
	}
	return search.Suggest(candidates, prefix, MaxSuggestions), nil
}

// Totals returns current quantity and value.
func (s *InventoryService) Totals(ctx context.Context) (model.Totals, error) {
	return s.items.Totals(ctx)
}

func itemError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apierror.NotFound("item not found")
	}
	return err
}

func cacheKey(prefix string, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to build cache key: %w", err)
	}
	return prefix + ":" + string(raw), nil
}
