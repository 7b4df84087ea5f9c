package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSBroadcaster publishes room events so services outside this process
// can follow a game. Subjects look like <prefix>.<room>.game.question.started.
type NATSBroadcaster struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSBroadcaster(url, prefix string) (*NATSBroadcaster, error) {
	opts := []nats.Option{
		nats.Name("livequiz"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSBroadcaster{nc: nc, prefix: prefix}, nil
}

func (b *NATSBroadcaster) Subject(roomID, event string) string {
	return fmt.Sprintf("%s.%s.%s", b.prefix, roomID, strings.ReplaceAll(event, ":", "."))
}

func (b *NATSBroadcaster) Broadcast(_ context.Context, roomID string, event string, payload interface{}) error {
	data, err := json.Marshal(Message{Type: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	msg := nats.NewMsg(b.Subject(roomID, event))
	msg.Data = data
	msg.Header.Set("Event-Type", event)
	msg.Header.Set("Room-ID", roomID)
	if err := b.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s event: %w", event, err)
	}
	return nil
}

func (b *NATSBroadcaster) Close() error {
	return b.nc.Drain()
}
