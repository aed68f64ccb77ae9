// Package ledger records every inventory mutation as an append-only history event
// carrying the inventory's running totals at that moment.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cellar-api/internal/events"
	"cellar-api/internal/model"
	"cellar-api/internal/repository"
	"cellar-api/pkg/logger"
	"cellar-api/pkg/uid"

	"github.com/shopspring/decimal"
)

// TotalsMode selects how an event's running totals are computed.
type TotalsMode string

const (
	// TotalsLive recomputes totals from the stored items after the mutation.
	TotalsLive TotalsMode = "live"
	// TotalsFold adds the event's delta to the previous event's totals.
	TotalsFold TotalsMode = "fold"
)

// ParseTotalsMode maps a config value to a mode, defaulting to live.
func ParseTotalsMode(s string) TotalsMode {
	if TotalsMode(strings.ToLower(strings.TrimSpace(s))) == TotalsFold {
		return TotalsFold
	}
	return TotalsLive
}

const (
	descAdded         = "New wine added to collection"
	descDeleted       = "Wine removed from collection"
	descEditedNoPrior = "Item information updated"
	descEditedNoDiff  = "Item updated"
	emptyValue        = "None"
)

// Ledger writes history events. Write failures are logged, never returned: the
// inventory change they describe has already been committed.
type Ledger struct {
	items   repository.ItemRepository
	history repository.HistoryRepository
	bus     *events.Bus
	log     *logger.Logger
	mode    TotalsMode
	now     func() time.Time
	newID   func() string

	// mu keeps fold-mode reads of the previous event consistent with the append.
	mu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMode sets the running totals mode.
func WithMode(m TotalsMode) Option { return func(l *Ledger) { l.mode = m } }

// WithBus publishes a HistoryAppended event after each write.
func WithBus(b *events.Bus) Option { return func(l *Ledger) { l.bus = b } }

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(l *Ledger) { l.log = log.WithComponent("ledger") }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// WithIDs overrides event id generation.
func WithIDs(newID func() string) Option { return func(l *Ledger) { l.newID = newID } }

// New creates a Ledger over the given repositories.
func New(items repository.ItemRepository, history repository.HistoryRepository, opts ...Option) *Ledger {
	l := &Ledger{
		items:   items,
		history: history,
		log:     logger.Nop(),
		mode:    TotalsLive,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uid.New,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Mode returns the configured totals mode.
func (l *Ledger) Mode() TotalsMode {
	return l.mode
}

// LogAdded records a new item.
func (l *Ledger) LogAdded(ctx context.Context, item *model.Item) *model.HistoryEvent {
	return l.append(ctx, item, model.ActionAdded, descAdded, item.Quantity)
}

// LogEdited records an edit. previous is the item as it was before the edit; when
// nil the quantity change is zero and the description is generic.
func (l *Ledger) LogEdited(ctx context.Context, item, previous *model.Item) *model.HistoryEvent {
	if previous == nil {
		return l.append(ctx, item, model.ActionEdited, descEditedNoPrior, 0)
	}
	desc := DescribeChanges(previous, item)
	if desc == "" {
		desc = descEditedNoDiff
	}
	return l.append(ctx, item, model.ActionEdited, desc, item.Quantity-previous.Quantity)
}

// LogConsumed records n bottles taken from item.
func (l *Ledger) LogConsumed(ctx context.Context, item *model.Item, n int) *model.HistoryEvent {
	return l.append(ctx, item, model.ActionConsumed, ConsumedDescription(n), -n)
}

// LogDeleted records an item's removal. item is the state just before deletion.
func (l *Ledger) LogDeleted(ctx context.Context, item *model.Item) *model.HistoryEvent {
	return l.append(ctx, item, model.ActionDeleted, descDeleted, -item.Quantity)
}

// ConsumedDescription is "Consumed N bottle" or "Consumed N bottles".
func ConsumedDescription(n int) string {
	if n == 1 {
		return "Consumed 1 bottle"
	}
	return fmt.Sprintf("Consumed %d bottles", n)
}

// DescribeChanges lists every field whose value differs, as
// "<Label>: <old> → <new>" joined by ", ". Empty values show as "None".
func DescribeChanges(previous, current *model.Item) string {
	var changes []string
	for _, f := range model.AllFields() {
		before, after := f.Value(previous), f.Value(current)
		if before == after {
			continue
		}
		changes = append(changes, fmt.Sprintf("%s: %s → %s", f.Label(), orNone(before), orNone(after)))
	}
	return strings.Join(changes, ", ")
}

func orNone(s string) string {
	if s == "" {
		return emptyValue
	}
	return s
}

// Snapshot is a one-line rendering of item's non-empty fields. Quantity is always
// present.
func Snapshot(item *model.Item) string {
	var parts []string
	for _, f := range model.AllFields() {
		v := f.Value(item)
		switch f {
		case model.FieldQuantity:
		case model.FieldPrice:
			if item.Price == nil || !item.Price.IsPositive() {
				continue
			}
		default:
			if v == "" {
				continue
			}
		}
		parts = append(parts, f.Label()+": "+v)
	}
	return strings.Join(parts, ", ")
}

func (l *Ledger) append(ctx context.Context, item *model.Item, action model.Action, desc string, qtyChange int) *model.HistoryEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := &model.HistoryEvent{
		ID:             l.newID(),
		Timestamp:      l.now(),
		Action:         action,
		ChangeDetails:  desc,
		Snapshot:       Snapshot(item),
		QuantityChange: qtyChange,
		ItemID:         item.ID,
		ItemName:       item.Name,
		ItemProducer:   item.Producer,
		ItemVintage:    item.Vintage,
	}
	if item.Price != nil {
		p := *item.Price
		ev.PriceAtTime = &p
	}

	totals, err := l.runningTotals(ctx, ev)
	if err != nil {
		l.log.Errorw("failed to compute running totals", "action", action, "item_id", item.ID, "error", err)
		return nil
	}
	ev.TotalQuantityAtTime = totals.Quantity
	value := totals.Value
	ev.TotalValueAtTime = &value

	if err := l.history.AppendEvent(ctx, ev); err != nil {
		l.log.Errorw("failed to append history event", "action", action, "item_id", item.ID, "error", err)
		return nil
	}

	l.log.Debugw("history event appended", "action", action, "item_id", item.ID,
		"quantity_change", qtyChange, "total_quantity", ev.TotalQuantityAtTime)
	l.bus.Publish(ctx, events.Event{Kind: events.HistoryAppended, ItemID: item.ID})
	return ev
}

func (l *Ledger) runningTotals(ctx context.Context, ev *model.HistoryEvent) (model.Totals, error) {
	if l.mode == TotalsLive {
		return l.items.Totals(ctx)
	}
	prev, err := l.history.LatestEvent(ctx)
	if err != nil {
		return model.Totals{}, err
	}
	var base model.Totals
	if prev != nil {
		base = model.Totals{Quantity: prev.TotalQuantityAtTime, Value: prev.TotalValue()}
	}
	return fold(base, ev), nil
}

// fold applies ev's delta to t, clamping both totals at zero.
func fold(t model.Totals, ev *model.HistoryEvent) model.Totals {
	t.Quantity += ev.QuantityChange
	if t.Quantity < 0 {
		t.Quantity = 0
	}
	t.Value = t.Value.Add(ev.ValueChange())
	if t.Value.IsNegative() {
		t.Value = decimal.Zero
	}
	return t
}

// BackfillRunningTotals fills running totals on rows written before they existed.
// It does nothing unless at least one row still lacks them; otherwise every row is
// recomputed by folding deltas chronologically from zero and written back in one
// transaction. Returns the number of rows that lacked totals.
func (l *Ledger) BackfillRunningTotals(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.history.ListEvents(ctx, model.HistoryFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to load history: %w", err)
	}

	pending := 0
	for i := range all {
		if all[i].NeedsBackfill() {
			pending++
		}
	}
	if pending == 0 {
		l.log.Infow("history backfill not needed", "events", len(all))
		return 0, nil
	}

	var running model.Totals
	for i := range all {
		running = fold(running, &all[i])
		all[i].TotalQuantityAtTime = running.Quantity
		v := running.Value
		all[i].TotalValueAtTime = &v
	}

	if err := l.history.UpdateRunningTotals(ctx, all); err != nil {
		return 0, fmt.Errorf("failed to backfill running totals: %w", err)
	}

	l.log.Infow("history backfill complete", "migrated", pending, "events", len(all))
	l.bus.Publish(ctx, events.Event{Kind: events.HistoryBackfilled, Count: pending})
	return pending, nil
}

// Recent returns up to limit events, newest first. limit <= 0 means all.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]model.HistoryEvent, error) {
	evs, err := l.history.ListEvents(ctx, model.HistoryFilter{Newest: true, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent history: %w", err)
	}
	return evs, nil
}

// ForItem returns an item's events, newest first.
func (l *Ledger) ForItem(ctx context.Context, itemID string) ([]model.HistoryEvent, error) {
	evs, err := l.history.ListEvents(ctx, model.HistoryFilter{ItemID: itemID, Newest: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", itemID, err)
	}
	return evs, nil
}

// All returns every event in chronological order.
func (l *Ledger) All(ctx context.Context) ([]model.HistoryEvent, error) {
	evs, err := l.history.ListEvents(ctx, model.HistoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return evs, nil
}

// List returns events matching filter.
func (l *Ledger) List(ctx context.Context, filter model.HistoryFilter) ([]model.HistoryEvent, error) {
	evs, err := l.history.ListEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return evs, nil
}
