package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DefaultRelayChannelPrefix = "livequiz:room:"

// RedisBroadcaster publishes room events on a Redis channel per room. A
// RedisRelay on every instance forwards them to that instance's clients.
type RedisBroadcaster struct {
	client *redis.Client
	prefix string
}

func NewRedisBroadcaster(client *redis.Client, prefix string) *RedisBroadcaster {
	if prefix == "" {
		prefix = DefaultRelayChannelPrefix
	}
	return &RedisBroadcaster{client: client, prefix: prefix}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, roomID string, event string, payload interface{}) error {
	data, err := json.Marshal(Message{Type: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if err := b.client.Publish(ctx, b.prefix+roomID, data).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", event, err)
	}
	return nil
}

// Deliverer writes an encoded message to a room's local clients.
type Deliverer interface {
	Deliver(roomID string, data []byte) int
}

// RedisRelay subscribes to every room channel and hands messages to the
// local hub.
type RedisRelay struct {
	client *redis.Client
	prefix string
	local  Deliverer
}

func NewRedisRelay(client *redis.Client, prefix string, local Deliverer) *RedisRelay {
	if prefix == "" {
		prefix = DefaultRelayChannelPrefix
	}
	return &RedisRelay{client: client, prefix: prefix, local: local}
}

// Run relays messages until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to room channels: %w", err)
	}
	log.Info().Str("pattern", r.prefix+"*").Msg("redis room relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			room := strings.TrimPrefix(msg.Channel, r.prefix)
			r.local.Deliver(room, []byte(msg.Payload))
		}
	}
}
