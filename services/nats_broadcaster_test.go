package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNATSSubject(t *testing.T) {
	b := &NATSBroadcaster{prefix: "livequiz.rooms"}

	assert.Equal(t, "livequiz.rooms.abc.game.question.started", b.Subject("abc", EventQuestionStarted))
	assert.Equal(t, "livequiz.rooms.abc.game.player-joined", b.Subject("abc", EventPlayerJoined))
}
