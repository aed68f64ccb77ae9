// Package events is the in-process change notification bus. Store, ledger and
// settings changes are published here; caches and remote listeners subscribe.
package events

import (
	"context"
	"sync"
	"time"

	"cellar-api/pkg/logger"
)

// Kind identifies what changed.
type Kind string

const (
	ItemAdded         Kind = "item.added"
	ItemEdited        Kind = "item.edited"
	ItemConsumed      Kind = "item.consumed"
	ItemDeleted       Kind = "item.deleted"
	ItemsImported     Kind = "items.imported"
	HistoryAppended   Kind = "history.appended"
	HistoryBackfilled Kind = "history.backfilled"
	SettingsChanged   Kind = "settings.changed"
)

// Event is a change notification. Origin is the publishing process, so remote
// listeners can ignore their own echoes.
type Event struct {
	Kind   Kind      `json:"kind"`
	ItemID string    `json:"item_id,omitempty"`
	Count  int       `json:"count,omitempty"`
	Origin string    `json:"origin,omitempty"`
	At     time.Time `json:"at"`
}

// Handler receives events synchronously on the publisher's goroutine.
type Handler func(ctx context.Context, ev Event)

// Sink forwards events outside the process.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Bus fans events out to subscribers and sinks.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
	sinks    []Sink
	origin   string
	log      *logger.Logger
	now      func() time.Time
}

// NewBus creates a bus. origin tags every event published through it.
func NewBus(origin string, log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{
		handlers: make(map[int]Handler),
		origin:   origin,
		log:      log.WithComponent("events"),
		now:      time.Now,
	}
}

// Origin returns the tag stamped on locally published events.
func (b *Bus) Origin() string {
	return b.origin
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// AddSink attaches an outbound sink.
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// Publish delivers ev to every subscriber, then to every sink. Sink failures are
// logged and do not stop delivery.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if b == nil {
		return
	}
	if ev.Origin == "" {
		ev.Origin = b.origin
	}
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	b.Deliver(ctx, ev)

	b.mu.RLock()
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.RUnlock()
	for _, s := range sinks {
		if err := s.Publish(ctx, ev); err != nil {
			b.log.Warnw("failed to forward event", "kind", ev.Kind, "error", err)
		}
	}
}

// Deliver hands ev to local subscribers only.
func (b *Bus) Deliver(ctx context.Context, ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}
