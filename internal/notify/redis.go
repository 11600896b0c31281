// Package notify bridges booking lifecycle events to Redis pub/sub so
// the presentation layer can refresh without polling the store.
package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"studiobook/internal/events"
)

// Channel is the Redis pub/sub channel carrying booking events.
const Channel = "studiobook:events"

// RedisNotifier publishes bus events to a Redis channel.
type RedisNotifier struct {
	client *redis.Client
	logger *zerolog.Logger
}

// NewRedisNotifier creates a notifier over an existing client.
func NewRedisNotifier(client *redis.Client, logger *zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

// Attach subscribes the notifier to the booking event types on the bus.
func (n *RedisNotifier) Attach(ctx context.Context, bus *events.Bus) {
	handler := func(event events.Event) error {
		return n.publish(ctx, event)
	}
	bus.Subscribe(events.TypeReservationCreated, handler)
	bus.Subscribe(events.TypeReservationCancelled, handler)
	bus.Subscribe(events.TypeWalletReset, handler)
}

func (n *RedisNotifier) publish(ctx context.Context, event events.Event) error {
	// Envelope keeps the type visible to subscribers filtering client-side.
	message := fmt.Sprintf(`{"type":%q,"payload":%s}`, event.Type, event.Payload)
	if err := n.client.Publish(ctx, Channel, message).Err(); err != nil {
		n.logger.Warn().Err(err).Str("event", event.Type).Msg("redis publish failed")
		return err
	}
	return nil
}

// Ping verifies the Redis connection, for readiness checks.
func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}
