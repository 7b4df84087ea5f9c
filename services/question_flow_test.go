package services

import (
	"testing"
	"time"

	"livequiz/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartQuestionTiming(t *testing.T) {
	f := newFixture(t, 3)
	game := f.startedGame()

	result := f.startQuestion(game.ID, 0)

	assert.Equal(t, int64(40000), result.DurationMs)
	assert.Equal(t, int64(40000), result.EndsAt.Sub(result.StartsAt).Milliseconds())
	assert.True(t, result.StartsAt.Equal(f.clock.Now()))
	assert.True(t, result.ServerTime.Equal(result.StartsAt))

	flow := result.GameFlow
	require.NotNil(t, flow.CurrentQuestionStartTime)
	require.NotNil(t, flow.CurrentQuestionEndTime)
	assert.True(t, flow.CurrentQuestionEndTime.Equal(result.EndsAt))

	ev, ok := f.events.last(EventQuestionStarted)
	require.True(t, ok)
	assert.Equal(t, game.ID.String(), ev.Room)
	assert.Equal(t, game.ID.String(), ev.Payload["roomId"])
	assert.Equal(t, game.ID.String(), ev.Payload["game_id"])
	assert.Equal(t, int64(40000), ev.Payload["duration_ms"])
	assert.Equal(t, QuestionRef{ID: f.question(0).ID, Index: 0}, ev.Payload["question"])
}

func TestStartQuestionDerivesIndexFromQuizSet(t *testing.T) {
	f := newFixture(t, 3)
	game := f.startedGame()

	result, err := f.svc.StartQuestion(f.ctx, f.hostID, game.ID, &StartQuestionRequest{
		QuestionID: f.question(2).ID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.GameFlow.CurrentQuestionIndex)
	assert.Equal(t, 2, f.game(game.ID).CurrentQuestionIndex)
}

func TestStartQuestionRejectsIndexOfAnotherPosition(t *testing.T) {
	f := newFixture(t, 3)
	game := f.startedGame()
	before := f.flow(game.ID)

	idx := 0
	_, err := f.svc.StartQuestion(f.ctx, f.hostID, game.ID, &StartQuestionRequest{
		QuestionID:    f.question(2).ID.String(),
		QuestionIndex: &idx,
	})
	requireCode(t, err, CodeInvalidPayload)
	assert.Equal(t, before.Version, f.flow(game.ID).Version)
}

func TestStartQuestionQueuesFollowingQuestion(t *testing.T) {
	f := newFixture(t, 3)
	game := f.startedGame()
	require.Equal(t, f.question(1).ID, *f.flow(game.ID).NextQuestionID)

	// Jumping ahead replaces the queued question.
	result := f.startQuestion(game.ID, 1)
	require.NotNil(t, result.GameFlow.NextQuestionID)
	assert.Equal(t, f.question(2).ID, *result.GameFlow.NextQuestionID)

	result = f.startQuestion(game.ID, 2)
	assert.Nil(t, result.GameFlow.NextQuestionID)
}

func TestStartQuestionRejectsOutOfRangeIndex(t *testing.T) {
	f := newFixture(t, 3)
	game := f.startedGame()
	before := f.flow(game.ID)

	for _, index := range []int{-1, 3, 10} {
		idx := index
		_, err := f.svc.StartQuestion(f.ctx, f.hostID, game.ID, &StartQuestionRequest{
			QuestionID:    f.question(0).ID.String(),
			QuestionIndex: &idx,
		})
		requireCode(t, err, CodeInvalidState)
	}
	assert.Equal(t, before.Version, f.flow(game.ID).Version)
}

func TestStartQuestionValidation(t *testing.T) {
	f := newFixture(t, 2)
	game := f.startedGame()
	other := newFixture(t, 1)

	_, err := f.svc.StartQuestion(f.ctx, f.hostID, game.ID, &StartQuestionRequest{})
	requireCode(t, err, CodeInvalidPayload)

	_, err = f.svc.StartQuestion(f.ctx, f.hostID, game.ID, &StartQuestionRequest{
		QuestionID: other.question(0).ID.String(),
	})
	requireCode(t, err, CodeNotFound)
}

func TestStartQuestionRequiresActiveGame(t *testing.T) {
	f := newFixture(t, 2)
	game := f.createGame()

	_, err := f.svc.StartQuestion(f.ctx, f.hostID, game.ID, &StartQuestionRequest{
		QuestionID: f.question(0).ID.String(),
	})
	requireCode(t, err, CodeInvalidState)
}

func TestRevealWithoutCurrentQuestion(t *testing.T) {
	f := newFixture(t, 3)
	game := f.createGame()
	before := f.flow(game.ID)

	_, err := f.svc.RevealAnswers(f.ctx, f.hostID, game.ID)
	requireCode(t, err, CodeInvalidState)

	after := f.flow(game.ID)
	assert.Equal(t, before.Version, after.Version)
	assert.Nil(t, after.CurrentQuestionEndTime)
	assert.Empty(t, f.events.names())
}

func TestRevealComputesAnswerStats(t *testing.T) {
	f := newFixture(t, 3)
	game := f.startedGame()
	f.startQuestion(game.ID, 0)

	q0, q1 := f.question(0).ID, f.question(1).ID
	a, b := f.answerID(0, 0), f.answerID(0, 1)
	f.addPlayer(game.ID, "ada", 150, models.AnswerRecord{QuestionID: q0, AnswerID: a, IsCorrect: true})
	f.addPlayer(game.ID, "bob", 120, models.AnswerRecord{QuestionID: q0, AnswerID: a, IsCorrect: true})
	f.addPlayer(game.ID, "cyd", 0,
		models.AnswerRecord{QuestionID: q0, AnswerID: b},
		models.AnswerRecord{QuestionID: q1, AnswerID: f.answerID(1, 0)},
	)

	f.events.reset()
	f.clock.Advance(12 * time.Second)
	result, err := f.svc.RevealAnswers(f.ctx, f.hostID, game.ID)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{a.String(): 2, b.String(): 1}, result.AnswerStats)
	require.NotNil(t, result.GameFlow.CurrentQuestionEndTime)
	assert.True(t, result.GameFlow.CurrentQuestionEndTime.Equal(f.clock.Now()))

	assert.Equal(t, []string{
		EventQuestionEnded,
		EventAnswerLocked,
		EventAnswerStatsUpdate,
		EventLeaderboardUpdate,
	}, f.events.names())

	locked, _ := f.events.last(EventAnswerLocked)
	assert.Equal(t, result.AnswerStats, locked.Payload["counts"])

	board, _ := f.events.last(EventLeaderboardUpdate)
	entries, ok := board.Payload["leaderboard"].([]LeaderboardEntry)
	require.True(t, ok)
	require.Len(t, entries, 3)
	assert.Equal(t, "ada", entries[0].PlayerName)
}

func TestRevealSurvivesLeaderboardFailure(t *testing.T) {
	f := newFixture(t, 2)
	game := f.startedGame()
	f.startQuestion(game.ID, 0)
	f.store.listPlayersErr = errBoom

	result, err := f.svc.RevealAnswers(f.ctx, f.hostID, game.ID)
	require.NoError(t, err)
	assert.Empty(t, result.AnswerStats)

	board, ok := f.events.last(EventLeaderboardUpdate)
	require.True(t, ok)
	assert.NotContains(t, board.Payload, "leaderboard")
	assert.Equal(t, game.ID.String(), board.Payload["roomId"])
}

func TestRevealSurvivesBroadcastFailure(t *testing.T) {
	f := newFixture(t, 2)
	game := f.startedGame()
	f.startQuestion(game.ID, 0)
	f.events.err = errBoom

	_, err := f.svc.RevealAnswers(f.ctx, f.hostID, game.ID)
	require.NoError(t, err)
	assert.NotNil(t, f.flow(game.ID).CurrentQuestionEndTime)
}

func TestShowExplanationIsIdempotent(t *testing.T) {
	f := newFixture(t, 2)
	game := f.startedGame()
	f.startQuestion(game.ID, 0)
	version := f.flow(game.ID).Version
	f.events.reset()

	first, err := f.svc.ShowExplanation(f.ctx, f.hostID, game.ID)
	require.NoError(t, err)
	second, err := f.svc.ShowExplanation(f.ctx, f.hostID, game.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "Why", *first.Title)
	assert.Equal(t, 5, first.ShowTime)
	assert.Equal(t, []string{EventExplanationShow, EventExplanationShow}, f.events.names())
	assert.Equal(t, version, f.flow(game.ID).Version)
}

func TestHideExplanation(t *testing.T) {
	f := newFixture(t, 2)
	game := f.createGame()

	requireCode(t, f.svc.HideExplanation(f.ctx, f.hostID, game.ID), CodeInvalidState)

	_, err := f.svc.StartGame(f.ctx, f.hostID, game.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.HideExplanation(f.ctx, f.hostID, game.ID))
	_, ok := f.events.last(EventExplanationHide)
	assert.True(t, ok)
}

func TestGetExplanation(t *testing.T) {
	f := newFixture(t, 2)
	game := f.createGame()

	explanation, err := f.svc.GetExplanation(f.ctx, game.ID, f.question(0).ID)
	require.NoError(t, err)
	assert.Equal(t, "Because.", *explanation.Text)

	_, err = f.svc.GetExplanation(f.ctx, game.ID, f.question(1).ID)
	requireCode(t, err, CodeNoExplanation)
}

func TestNextQuestionAdvancesToLastQuestion(t *testing.T) {
	f := newFixture(t, 3)
	game := f.startedGame()

	_, err := f.svc.NextQuestion(f.ctx, f.hostID, game.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.flow(game.ID).CurrentQuestionIndex)

	result, err := f.svc.NextQuestion(f.ctx, f.hostID, game.ID)
	require.NoError(t, err)

	assert.False(t, result.IsComplete)
	assert.Equal(t, &QuestionRef{ID: f.question(2).ID, Index: 2}, result.NextQuestion)
	require.NotNil(t, result.GameFlow.CurrentQuestionID)
	assert.Equal(t, f.question(2).ID, *result.GameFlow.CurrentQuestionID)
	assert.Nil(t, result.GameFlow.NextQuestionID)
	assert.Nil(t, result.GameFlow.CurrentQuestionStartTime)
	assert.Equal(t, 2, f.game(game.ID).CurrentQuestionIndex)

	phase, ok := f.events.last(EventPhaseChange)
	require.True(t, ok)
	assert.Equal(t, "countdown", phase.Payload["phase"])
}

func TestNextQuestionFinishesGameAfterLastQuestion(t *testing.T) {
	f := newFixture(t, 3)
	game := f.startedGame()
	for i := 0; i < 2; i++ {
		_, err := f.svc.NextQuestion(f.ctx, f.hostID, game.ID)
		require.NoError(t, err)
	}

	result, err := f.svc.NextQuestion(f.ctx, f.hostID, game.ID)
	require.NoError(t, err)

	assert.True(t, result.IsComplete)
	assert.Nil(t, result.GameFlow.CurrentQuestionID)
	assert.Nil(t, result.GameFlow.NextQuestionID)
	finished := f.game(game.ID)
	assert.Equal(t, models.GameStatusFinished, finished.Status)
	require.NotNil(t, finished.EndedAt)

	phase, _ := f.events.last(EventPhaseChange)
	assert.Equal(t, "ended", phase.Payload["phase"])

	_, err = f.svc.NextQuestion(f.ctx, f.hostID, game.ID)
	requireCode(t, err, CodeInvalidState)
	assert.Equal(t, result.GameFlow.Version, f.flow(game.ID).Version)
}

func TestNextQuestionRequiresStartedGame(t *testing.T) {
	f := newFixture(t, 3)
	game := f.createGame()

	_, err := f.svc.NextQuestion(f.ctx, f.hostID, game.ID)
	requireCode(t, err, CodeInvalidState)
}

func TestFlowIndexStaysInRangeWhileQuestionIsSet(t *testing.T) {
	f := newFixture(t, 3)
	game := f.startedGame()

	for {
		flow := f.flow(game.ID)
		if flow.CurrentQuestionID != nil {
			assert.GreaterOrEqual(t, flow.CurrentQuestionIndex, 0)
			assert.Less(t, flow.CurrentQuestionIndex, flow.TotalQuestions)
		}
		result, err := f.svc.NextQuestion(f.ctx, f.hostID, game.ID)
		require.NoError(t, err)
		if result.IsComplete {
			break
		}
	}
}

func TestGetCurrentQuestion(t *testing.T) {
	f := newFixture(t, 2)
	game := f.createGame()

	_, err := f.svc.GetCurrentQuestion(f.ctx, game.ID)
	requireCode(t, err, CodeNoQuestion)

	_, err = f.svc.StartGame(f.ctx, f.hostID, game.ID)
	require.NoError(t, err)
	queued, err := f.svc.GetCurrentQuestion(f.ctx, game.ID)
	require.NoError(t, err)
	assert.False(t, queued.IsActive)
	assert.Nil(t, queued.StartTime)
	assert.Equal(t, int64(40000), queued.RemainingMs)

	f.startQuestion(game.ID, 0)
	f.clock.Advance(15 * time.Second)

	live, err := f.svc.GetCurrentQuestion(f.ctx, game.ID)
	require.NoError(t, err)
	assert.True(t, live.IsActive)
	assert.Equal(t, int64(25000), live.RemainingMs)
	assert.Equal(t, 0, live.QuestionIndex)
	assert.Equal(t, 2, live.TotalQuestions)
	require.Len(t, live.Answers, 2)
	for _, a := range live.Answers {
		assert.Nil(t, a.IsCorrect)
	}

	_, err = f.svc.RevealAnswers(f.ctx, f.hostID, game.ID)
	require.NoError(t, err)

	revealed, err := f.svc.GetCurrentQuestion(f.ctx, game.ID)
	require.NoError(t, err)
	assert.False(t, revealed.IsActive)
	assert.Equal(t, int64(0), revealed.RemainingMs)
	require.NotNil(t, revealed.Answers[0].IsCorrect)
	assert.True(t, *revealed.Answers[0].IsCorrect)
}

func TestGetCurrentQuestionExpires(t *testing.T) {
	f := newFixture(t, 1)
	game := f.startedGame()
	f.startQuestion(game.ID, 0)

	f.clock.Advance(41 * time.Second)
	current, err := f.svc.GetCurrentQuestion(f.ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), current.RemainingMs)
	assert.False(t, current.IsActive)
}
