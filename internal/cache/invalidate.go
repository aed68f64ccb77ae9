package cache

import (
	"context"
	"encoding/json"
	"time"

	"cellar-api/internal/events"
	"cellar-api/pkg/logger"
)

// InvalidateOn clears c whenever anything is published on bus. Every cached view is
// derived from the whole inventory, so there is nothing finer to evict.
func InvalidateOn(bus *events.Bus, c Cache, log *logger.Logger) (unsubscribe func()) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("cache")
	return bus.Subscribe(func(ctx context.Context, ev events.Event) {
		if err := c.Clear(ctx); err != nil {
			log.Warnw("failed to clear cache", "kind", ev.Kind, "error", err)
		}
	})
}

// Remember returns the cached JSON value for key, or computes, stores and returns it.
// Cache failures fall back to fn. A value computed while InvalidateOn cleared the
// cache is returned but not stored.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	var out T
	if c == nil {
		return fn()
	}
	raw, err := c.GetOrSet(ctx, key, ttl, func() ([]byte, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fn()
	}
	return out, nil
}
