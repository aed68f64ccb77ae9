package events

import (
	"context"
	"encoding/json"
	"fmt"

	"cellar-api/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "cellar:events"

// RedisSink publishes events as JSON on a redis channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

var _ Sink = (*RedisSink)(nil)

// NewRedisSink creates a sink on channel.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{client: client, channel: channel}
}

// Publish implements Sink.
func (s *RedisSink) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Listen relays events published by other processes into bus until ctx is done.
// Events carrying the bus's own origin are dropped.
func Listen(ctx context.Context, client *redis.Client, channel string, bus *Bus, log *logger.Logger) error {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logger.Nop()
	}
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warnw("dropping malformed event", "channel", channel, "error", err)
				continue
			}
			if ev.Origin == bus.Origin() {
				continue
			}
			bus.Deliver(ctx, ev)
		}
	}
}
