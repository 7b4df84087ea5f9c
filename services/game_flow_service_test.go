package services

import (
	"context"
	"testing"
	"time"

	"livequiz/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGameFlowValidation(t *testing.T) {
	f := newFixture(t, 2)
	game := f.createGame()

	tests := []struct {
		name      string
		gameID    uuid.UUID
		quizSetID uuid.UUID
		total     int
		code      ErrorCode
	}{
		{"missing game id", uuid.Nil, f.set.ID, 2, CodeInvalidPayload},
		{"missing quiz set id", game.ID, uuid.Nil, 2, CodeInvalidPayload},
		{"negative total", game.ID, f.set.ID, -1, CodeInvalidPayload},
		{"unknown game", uuid.New(), f.set.ID, 2, CodeNotFound},
		{"unknown quiz set", game.ID, uuid.New(), 2, CodeNotFound},
		{"flow already exists", game.ID, f.set.ID, 2, CodeFlowUpdateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.flows.CreateGameFlow(f.ctx, tt.gameID, tt.quizSetID, tt.total)
			requireCode(t, err, tt.code)
		})
	}
}

func TestGetGameFlowNotFound(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.flows.GetGameFlow(f.ctx, uuid.New())
	requireCode(t, err, CodeNotFound)
}

func TestUpdateGameFlowRejectsStaleVersion(t *testing.T) {
	f := newFixture(t, 3)
	game := f.createGame()

	stale := f.flow(game.ID)
	_, err := f.flows.UpdateGameFlow(f.ctx, stale, AdvanceTo{QuestionID: f.question(0).ID, Index: 0})
	require.NoError(t, err)

	_, err = f.flows.UpdateGameFlow(f.ctx, stale, AdvanceTo{QuestionID: f.question(1).ID, Index: 1})
	requireCode(t, err, CodeFlowConflict)

	current := f.flow(game.ID)
	assert.Equal(t, int64(2), current.Version)
	assert.Equal(t, 0, current.CurrentQuestionIndex)
}

func TestUpdateGameFlowDoesNotMutateInput(t *testing.T) {
	f := newFixture(t, 2)
	game := f.createGame()
	current := f.flow(game.ID)

	updated, err := f.flows.UpdateGameFlow(f.ctx, current, AdvanceTo{QuestionID: f.question(1).ID, Index: 1})
	require.NoError(t, err)

	assert.Nil(t, current.CurrentQuestionID)
	assert.Equal(t, int64(1), current.Version)
	assert.Equal(t, int64(2), updated.Version)
}

func TestTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q1, q2 := uuid.New(), uuid.New()
	base := func() *models.GameFlow {
		return &models.GameFlow{TotalQuestions: 2}
	}

	t.Run("start question sets window", func(t *testing.T) {
		flow := base()
		require.NoError(t, StartQuestion{QuestionID: q1, Index: 1, StartsAt: now, EndsAt: now.Add(time.Minute)}.apply(flow))
		assert.Equal(t, q1, *flow.CurrentQuestionID)
		assert.Equal(t, 1, flow.CurrentQuestionIndex)
		assert.True(t, flow.AcceptsAnswers(now.Add(59*time.Second)))
		assert.False(t, flow.AcceptsAnswers(now.Add(time.Minute)))
	})

	t.Run("start question rejects inverted window", func(t *testing.T) {
		err := StartQuestion{QuestionID: q1, StartsAt: now, EndsAt: now.Add(-time.Second)}.apply(base())
		requireCode(t, err, CodeInvalidPayload)
	})

	t.Run("index bounds", func(t *testing.T) {
		requireCode(t, AdvanceTo{QuestionID: q1, Index: 2}.apply(base()), CodeInvalidState)
		requireCode(t, AdvanceTo{QuestionID: q1, Index: -1}.apply(base()), CodeInvalidState)
	})

	t.Run("reveal needs a question", func(t *testing.T) {
		requireCode(t, Reveal{At: now}.apply(base()), CodeInvalidState)
	})

	t.Run("advance clears timestamps", func(t *testing.T) {
		flow := base()
		require.NoError(t, StartQuestion{QuestionID: q1, StartsAt: now, EndsAt: now}.apply(flow))
		require.NoError(t, AdvanceTo{QuestionID: q2, Index: 1}.apply(flow))
		assert.Nil(t, flow.CurrentQuestionStartTime)
		assert.Nil(t, flow.CurrentQuestionEndTime)
		assert.Nil(t, flow.NextQuestionID)
	})

	t.Run("finish clears everything", func(t *testing.T) {
		flow := base()
		require.NoError(t, AdvanceTo{QuestionID: q1, Index: 0, NextQuestionID: &q2}.apply(flow))
		require.NoError(t, Finish{}.apply(flow))
		assert.Nil(t, flow.CurrentQuestionID)
		assert.Nil(t, flow.NextQuestionID)
	})
}

func TestDeleteGameFlow(t *testing.T) {
	f := newFixture(t, 1)
	game := f.createGame()

	assert.True(t, f.flows.DeleteGameFlow(f.ctx, game.ID))
	assert.False(t, f.flows.DeleteGameFlow(f.ctx, game.ID))
}

func TestFlowCacheFollowsWrites(t *testing.T) {
	f := newFixture(t, 2)
	cache := NewMemoryFlowCache()
	flows := NewGameFlowService(f.store, cache)
	game := f.createGame()

	created := f.flow(game.ID)
	cache.Set(f.ctx, created)

	updated, err := flows.UpdateGameFlow(f.ctx, created, AdvanceTo{QuestionID: f.question(0).ID, Index: 0})
	require.NoError(t, err)

	cached, err := flows.CachedGameFlow(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Version, cached.Version)

	_, err = flows.UpdateGameFlow(f.ctx, created, AdvanceTo{QuestionID: f.question(1).ID, Index: 1})
	requireCode(t, err, CodeFlowConflict)

	reloaded, err := flows.CachedGameFlow(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Version, reloaded.Version)
	assert.Equal(t, f.question(0).ID, *reloaded.CurrentQuestionID)
}

func TestCachedReadDoesNotOverwriteNewerWrite(t *testing.T) {
	f := newFixture(t, 2)
	cache := NewMemoryFlowCache()
	flows := NewGameFlowService(f.store, cache)
	game := f.createGame()

	// The reader misses the cache and loads version 1. Before it fills the
	// cache, a host write commits and caches version 2.
	var written *models.GameFlow
	f.store.afterGetGameFlow = func(stale *models.GameFlow) {
		var err error
		written, err = flows.UpdateGameFlow(f.ctx, stale, StartQuestion{
			QuestionID: f.question(0).ID,
			Index:      0,
			StartsAt:   f.clock.Now(),
			EndsAt:     f.clock.Now().Add(40 * time.Second),
		})
		require.NoError(t, err)
	}

	read, err := flows.CachedGameFlow(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), read.Version)
	require.NotNil(t, written)

	cached, err := flows.CachedGameFlow(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, written.Version, cached.Version)
	assert.True(t, cached.HasCurrentQuestion())
}

func TestMemoryFlowCacheKeepsNewestVersion(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryFlowCache()
	gameID := uuid.New()

	cache.Set(ctx, &models.GameFlow{GameID: gameID, Version: 3})
	cache.Set(ctx, &models.GameFlow{GameID: gameID, Version: 2})
	got, ok := cache.Get(ctx, gameID)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Version)

	cache.Set(ctx, &models.GameFlow{GameID: gameID, Version: 4})
	got, _ = cache.Get(ctx, gameID)
	assert.Equal(t, int64(4), got.Version)

	cache.Delete(ctx, gameID)
	_, ok = cache.Get(ctx, gameID)
	assert.False(t, ok)
}
