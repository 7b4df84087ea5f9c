package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// Room events emitted by the game flow.
const (
	EventQuestionStarted   = "game:question:started"
	EventQuestionEnded     = "game:question:ended"
	EventAnswerLocked      = "game:answer:locked"
	EventAnswerStatsUpdate = "game:answer:stats:update"
	EventLeaderboardUpdate = "game:leaderboard:update"
	EventExplanationShow   = "game:explanation:show"
	EventExplanationHide   = "game:explanation:hide"
	EventPhaseChange       = "game:phase:change"
	EventPlayerJoined      = "game:player-joined"
	EventPlayerKicked      = "game:player-kicked"
	EventStateSync         = "game:state:sync"
)

// Broadcaster delivers an event to everyone in a room. Delivery is best
// effort; callers never roll back state because a broadcast failed.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID string, event string, payload interface{}) error
}

// Message is the envelope written to websocket clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// NopBroadcaster drops every event.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(context.Context, string, string, interface{}) error { return nil }

// MultiBroadcaster fans an event out to several broadcasters.
type MultiBroadcaster []Broadcaster

func (m MultiBroadcaster) Broadcast(ctx context.Context, roomID string, event string, payload interface{}) error {
	var errs []error
	for _, b := range m {
		if err := b.Broadcast(ctx, roomID, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// notify emits an event and logs, never returns, a failure.
func notify(ctx context.Context, b Broadcaster, roomID string, event string, payload interface{}) {
	if b == nil {
		return
	}
	if err := b.Broadcast(ctx, roomID, event, payload); err != nil {
		log.Warn().Err(err).
			Str("room_id", roomID).
			Str("event", event).
			Msg("failed to broadcast event")
	}
}
