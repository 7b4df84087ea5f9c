package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"livequiz/models"
	"livequiz/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type StartQuestionRequest struct {
	QuestionID    string `json:"questionId"`
	QuestionIndex *int   `json:"questionIndex"`
}

type StartQuestionResult struct {
	GameFlow   *models.GameFlow
	ServerTime time.Time
	StartsAt   time.Time
	EndsAt     time.Time
	DurationMs int64
}

type RevealResult struct {
	GameFlow    *models.GameFlow
	AnswerStats map[string]int
}

type NextQuestionResult struct {
	GameFlow     *models.GameFlow
	NextQuestion *QuestionRef
	IsComplete   bool
}

type Explanation struct {
	QuestionID uuid.UUID `json:"question_id"`
	Title      *string   `json:"explanation_title"`
	Text       *string   `json:"explanation_text"`
	ImageURL   *string   `json:"explanation_image_url"`
	ShowTime   int       `json:"show_explanation_time"`
}

// AnswerView is an answer as players see it. IsCorrect stays nil until the
// question is closed.
type AnswerView struct {
	ID         uuid.UUID `json:"id"`
	AnswerText string    `json:"answer_text"`
	ImageURL   *string   `json:"image_url,omitempty"`
	OrderIndex int       `json:"order_index"`
	IsCorrect  *bool     `json:"is_correct,omitempty"`
}

type CurrentQuestion struct {
	Question       *models.Question `json:"question"`
	Answers        []AnswerView     `json:"answers"`
	QuestionIndex  int              `json:"question_index"`
	TotalQuestions int              `json:"total_questions"`
	ServerTime     time.Time        `json:"server_time"`
	StartTime      *time.Time       `json:"start_time"`
	EndTime        *time.Time       `json:"end_time"`
	RemainingMs    int64            `json:"remaining_ms"`
	IsActive       bool             `json:"is_active"`
}

// lookupQuestion returns the question if it belongs to quizSetID.
func (s *GameService) lookupQuestion(ctx context.Context, quizSetID, questionID uuid.UUID) (*models.Question, error) {
	question, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("question not found")
		}
		return nil, newError(CodeServerError, "failed to fetch question", err)
	}
	if question.QuestionSetID != quizSetID {
		return nil, notFound("question not found")
	}
	return question, nil
}

// currentFlow loads the flow and requires a current question on it.
func (s *GameService) currentFlow(ctx context.Context, gameID uuid.UUID) (*models.GameFlow, error) {
	flow, err := s.flows.GetGameFlow(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !flow.HasCurrentQuestion() {
		return nil, invalidState("no active question")
	}
	return flow, nil
}

// StartQuestion opens a question for answering. The index is the question's
// position in the quiz set; a supplied index must agree with it.
func (s *GameService) StartQuestion(ctx context.Context, userID, gameID uuid.UUID, req *StartQuestionRequest) (*StartQuestionResult, error) {
	questionID, err := ParseID(req.QuestionID, "questionId")
	if err != nil {
		return nil, err
	}

	game, err := s.authorizeHost(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}
	if game.Status != models.GameStatusActive {
		return nil, invalidState(fmt.Sprintf("cannot start a question while the game is %q", game.Status))
	}

	question, err := s.lookupQuestion(ctx, game.QuizSetID, questionID)
	if err != nil {
		return nil, err
	}

	questions, err := s.listQuestions(ctx, game.QuizSetID)
	if err != nil {
		return nil, err
	}
	index := -1
	for i := range questions {
		if questions[i].ID == questionID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, notFound("question not found")
	}
	if req.QuestionIndex != nil && *req.QuestionIndex != index {
		supplied := *req.QuestionIndex
		if supplied < 0 || supplied >= len(questions) {
			return nil, invalidState(fmt.Sprintf("question index %d is out of range [0, %d)", supplied, len(questions)))
		}
		return nil, invalidPayload(fmt.Sprintf("questionIndex %d does not match the question's position %d", supplied, index))
	}
	var next *uuid.UUID
	if index+1 < len(questions) {
		next = &questions[index+1].ID
	}

	flow, err := s.flows.GetGameFlow(ctx, gameID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	duration := questionDuration(question)
	endsAt := now.Add(duration)
	flow, err = s.flows.UpdateGameFlow(ctx, flow, StartQuestion{
		QuestionID:     questionID,
		Index:          index,
		StartsAt:       now,
		EndsAt:         endsAt,
		NextQuestionID: next,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.updateGame(ctx, gameID, models.GameUpdate{CurrentQuestionIndex: &index}); err != nil {
		return nil, err
	}

	notify(ctx, s.broadcaster, gameID.String(), EventQuestionStarted, roomPayload(gameID, gin.H{
		"question":    QuestionRef{ID: questionID, Index: index},
		"startsAt":    now,
		"endsAt":      endsAt,
		"duration_ms": duration.Milliseconds(),
	}))

	log.Info().
		Str("game_id", gameID.String()).
		Str("question_id", questionID.String()).
		Int("question_index", index).
		Msg("question started")
	return &StartQuestionResult{
		GameFlow:   flow,
		ServerTime: now,
		StartsAt:   now,
		EndsAt:     endsAt,
		DurationMs: duration.Milliseconds(),
	}, nil
}

// RevealAnswers closes the current question and publishes its results.
// Once the flow is written nothing below fails the request.
func (s *GameService) RevealAnswers(ctx context.Context, userID, gameID uuid.UUID) (*RevealResult, error) {
	if _, err := s.authorizeHost(ctx, gameID, userID); err != nil {
		return nil, err
	}
	flow, err := s.currentFlow(ctx, gameID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	flow, err = s.flows.UpdateGameFlow(ctx, flow, Reveal{At: now})
	if err != nil {
		return nil, err
	}
	questionID := *flow.CurrentQuestionID

	counts := map[string]int{}
	if players, err := s.store.ListPlayers(ctx, gameID); err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("failed to load players for answer stats")
	} else {
		counts = countAnswerSelections(players, questionID)
	}

	room := gameID.String()
	notify(ctx, s.broadcaster, room, EventQuestionEnded, roomPayload(gameID, gin.H{
		"question_id": questionID,
		"endedAt":     now,
	}))
	notify(ctx, s.broadcaster, room, EventAnswerLocked, roomPayload(gameID, gin.H{
		"question_id": questionID,
		"counts":      counts,
	}))
	notify(ctx, s.broadcaster, room, EventAnswerStatsUpdate, roomPayload(gameID, gin.H{
		"question_id": questionID,
		"counts":      counts,
	}))
	s.publishLeaderboard(ctx, gameID)

	log.Info().Str("game_id", gameID.String()).Str("question_id", questionID.String()).Msg("answers revealed")
	return &RevealResult{GameFlow: flow, AnswerStats: counts}, nil
}

// publishLeaderboard emits the fresh leaderboard, or the bare event if it
// cannot be computed.
func (s *GameService) publishLeaderboard(ctx context.Context, gameID uuid.UUID) {
	payload := roomPayload(gameID, nil)
	players, err := s.store.ListPlayers(ctx, gameID)
	if err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("failed to compute leaderboard")
	} else {
		payload["leaderboard"] = buildLeaderboard(players)
	}
	notify(ctx, s.broadcaster, gameID.String(), EventLeaderboardUpdate, payload)
}

// ShowExplanation broadcasts the current question's explanation. It writes
// nothing, so repeating it is harmless.
func (s *GameService) ShowExplanation(ctx context.Context, userID, gameID uuid.UUID) (*Explanation, error) {
	game, err := s.authorizeHost(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}
	flow, err := s.currentFlow(ctx, gameID)
	if err != nil {
		return nil, err
	}
	question, err := s.lookupQuestion(ctx, game.QuizSetID, *flow.CurrentQuestionID)
	if err != nil {
		return nil, err
	}

	explanation := explanationOf(question)
	notify(ctx, s.broadcaster, gameID.String(), EventExplanationShow, roomPayload(gameID, gin.H{
		"question_id": question.ID,
		"explanation": explanation,
	}))
	return explanation, nil
}

func (s *GameService) HideExplanation(ctx context.Context, userID, gameID uuid.UUID) error {
	if _, err := s.authorizeHost(ctx, gameID, userID); err != nil {
		return err
	}
	flow, err := s.currentFlow(ctx, gameID)
	if err != nil {
		return err
	}
	notify(ctx, s.broadcaster, gameID.String(), EventExplanationHide, roomPayload(gameID, gin.H{
		"question_id": *flow.CurrentQuestionID,
	}))
	return nil
}

// GetExplanation is the public read of a question's explanation.
func (s *GameService) GetExplanation(ctx context.Context, gameID, questionID uuid.UUID) (*Explanation, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	question, err := s.lookupQuestion(ctx, game.QuizSetID, questionID)
	if err != nil {
		return nil, err
	}
	if !question.HasExplanation() {
		return nil, newError(CodeNoExplanation, "question has no explanation", nil)
	}
	return explanationOf(question), nil
}

func explanationOf(q *models.Question) *Explanation {
	return &Explanation{
		QuestionID: q.ID,
		Title:      q.ExplanationTitle,
		Text:       q.ExplanationText,
		ImageURL:   q.ExplanationImageURL,
		ShowTime:   q.ShowExplanationTime,
	}
}

// NextQuestion queues the following question, or finishes the game when the
// last one was played. A finished game cannot be advanced again.
func (s *GameService) NextQuestion(ctx context.Context, userID, gameID uuid.UUID) (*NextQuestionResult, error) {
	game, err := s.authorizeHost(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}
	switch {
	case models.IsFinishedStatus(game.Status):
		return nil, invalidState("game has already finished")
	case game.Status == models.GameStatusWaiting:
		return nil, invalidState("game has not been started")
	}

	flow, err := s.flows.GetGameFlow(ctx, gameID)
	if err != nil {
		return nil, err
	}
	index := flow.CurrentQuestionIndex
	if index < 0 || index >= flow.TotalQuestions {
		return nil, invalidState(fmt.Sprintf("question index %d is out of range [0, %d)", index, flow.TotalQuestions))
	}

	if index+1 >= flow.TotalQuestions {
		return s.finishGame(ctx, game, flow)
	}

	questions, err := s.listQuestions(ctx, game.QuizSetID)
	if err != nil {
		return nil, err
	}
	next := questionRefAt(questions, flow.TotalQuestions, index+1)
	if next == nil {
		return nil, invalidState(fmt.Sprintf("question %d is missing from the quiz set", index+1))
	}
	transition := AdvanceTo{QuestionID: next.ID, Index: next.Index}
	if after := questionRefAt(questions, flow.TotalQuestions, index+2); after != nil {
		transition.NextQuestionID = &after.ID
	}
	flow, err = s.flows.UpdateGameFlow(ctx, flow, transition)
	if err != nil {
		return nil, err
	}
	if _, err := s.updateGame(ctx, gameID, models.GameUpdate{CurrentQuestionIndex: &next.Index}); err != nil {
		return nil, err
	}

	notify(ctx, s.broadcaster, gameID.String(), EventPhaseChange, roomPayload(gameID, gin.H{
		"phase":    "countdown",
		"question": next,
	}))
	return &NextQuestionResult{GameFlow: flow, NextQuestion: next}, nil
}

func (s *GameService) finishGame(ctx context.Context, game *models.Game, flow *models.GameFlow) (*NextQuestionResult, error) {
	flow, err := s.flows.UpdateGameFlow(ctx, flow, Finish{})
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := models.GameStatusFinished
	update := models.GameUpdate{Status: &status}
	if game.EndedAt == nil {
		update.EndedAt = &now
	}
	if _, err := s.updateGame(ctx, game.ID, update); err != nil {
		return nil, err
	}

	notify(ctx, s.broadcaster, game.ID.String(), EventPhaseChange, roomPayload(game.ID, gin.H{
		"phase": "ended",
	}))
	log.Info().Str("game_id", game.ID.String()).Msg("game finished")
	return &NextQuestionResult{GameFlow: flow, IsComplete: true}, nil
}

// GetCurrentQuestion is the player view of the live question. Correct
// answers are hidden until the question is closed.
func (s *GameService) GetCurrentQuestion(ctx context.Context, gameID uuid.UUID) (*CurrentQuestion, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	flow, err := s.flows.CachedGameFlow(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !flow.HasCurrentQuestion() {
		return nil, newError(CodeNoQuestion, "no question is currently active", nil)
	}

	question, err := s.lookupQuestion(ctx, game.QuizSetID, *flow.CurrentQuestionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.ListAnswers(ctx, question.ID)
	if err != nil {
		return nil, newError(CodeServerError, "failed to fetch answers", err)
	}

	now := s.now()
	var remaining int64
	switch {
	case flow.CurrentQuestionStartTime == nil:
		remaining = questionDuration(question).Milliseconds()
	case flow.CurrentQuestionEndTime != nil && !now.Before(*flow.CurrentQuestionEndTime):
		remaining = 0
	default:
		remaining = remainingMs(question, *flow.CurrentQuestionStartTime, now)
	}
	closed := flow.CurrentQuestionEndTime != nil && !now.Before(*flow.CurrentQuestionEndTime)

	views := make([]AnswerView, 0, len(answers))
	for _, a := range answers {
		view := AnswerView{
			ID:         a.ID,
			AnswerText: a.AnswerText,
			ImageURL:   a.ImageURL,
			OrderIndex: a.OrderIndex,
		}
		if closed {
			correct := a.IsCorrect
			view.IsCorrect = &correct
		}
		views = append(views, view)
	}
	question.Answers = nil

	return &CurrentQuestion{
		Question:       question,
		Answers:        views,
		QuestionIndex:  flow.CurrentQuestionIndex,
		TotalQuestions: flow.TotalQuestions,
		ServerTime:     now,
		StartTime:      flow.CurrentQuestionStartTime,
		EndTime:        flow.CurrentQuestionEndTime,
		RemainingMs:    remaining,
		IsActive:       flow.CurrentQuestionStartTime != nil && remaining > 0,
	}, nil
}
