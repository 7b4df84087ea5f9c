package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"livequiz/models"
	"livequiz/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxPlayerNameLength = 32

type JoinGameRequest struct {
	GameCode   string `json:"game_code" binding:"required"`
	PlayerName string `json:"player_name" binding:"required"`
	DeviceID   string `json:"device_id"`
}

type SubmitAnswerRequest struct {
	PlayerID   string `json:"player_id" binding:"required"`
	QuestionID string `json:"question_id" binding:"required"`
	AnswerID   string `json:"answer_id" binding:"required"`
}

type SubmitAnswerResult struct {
	Record models.AnswerRecord `json:"answer"`
	Score  int                 `json:"score"`
}

// JoinGame adds a player to an open game found by its join code.
func (s *GameService) JoinGame(ctx context.Context, req *JoinGameRequest) (*models.Player, error) {
	code := strings.TrimSpace(req.GameCode)
	name := strings.TrimSpace(req.PlayerName)
	if code == "" {
		return nil, invalidPayload("game_code is required")
	}
	if name == "" {
		return nil, invalidPayload("player_name is required")
	}
	if utf8.RuneCountInString(name) > maxPlayerNameLength {
		return nil, invalidPayload(fmt.Sprintf("player_name must be at most %d characters", maxPlayerNameLength))
	}

	game, err := s.store.GetGameByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("game not found")
		}
		return nil, newError(CodeServerError, "failed to fetch game", err)
	}
	if game.Locked {
		return nil, invalidState("game is locked")
	}
	if models.IsFinishedStatus(game.Status) {
		return nil, invalidState("game has already finished")
	}

	now := s.now()
	report, err := models.AnswerReport{}.Encode()
	if err != nil {
		return nil, newError(CodeServerError, "failed to create player", err)
	}
	player := &models.Player{
		ID:           uuid.New(),
		GameID:       game.ID,
		PlayerName:   name,
		DeviceID:     strings.TrimSpace(req.DeviceID),
		AnswerReport: report,
		Version:      1,
		JoinedAt:     now,
	}
	if err := s.store.CreatePlayer(ctx, player); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newError(CodeNameTaken, fmt.Sprintf("name %q is already taken in this game", name), nil)
		}
		return nil, newError(CodeUpdateFailed, "failed to create player", err)
	}

	notify(ctx, s.broadcaster, game.ID.String(), EventPlayerJoined, roomPayload(game.ID, gin.H{
		"player_id":   player.ID,
		"player_name": player.PlayerName,
	}))
	log.Info().Str("game_id", game.ID.String()).Str("player", name).Msg("player joined")
	return player, nil
}

// KickPlayer removes a player from the host's game.
func (s *GameService) KickPlayer(ctx context.Context, userID, gameID, playerID uuid.UUID) error {
	if _, err := s.authorizeHost(ctx, gameID, userID); err != nil {
		return err
	}
	player, err := s.store.GetPlayer(ctx, gameID, playerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("player not found")
		}
		return newError(CodeServerError, "failed to fetch player", err)
	}
	if err := s.store.DeletePlayer(ctx, gameID, playerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("player not found")
		}
		return newError(CodeUpdateFailed, "failed to remove player", err)
	}

	notify(ctx, s.broadcaster, gameID.String(), EventPlayerKicked, roomPayload(gameID, gin.H{
		"player_id":   player.ID,
		"player_name": player.PlayerName,
	}))
	log.Info().Str("game_id", gameID.String()).Str("player", player.PlayerName).Msg("player kicked")
	return nil
}

// SubmitAnswer records a player's answer to the open question and scores it.
// Each player answers a question at most once.
func (s *GameService) SubmitAnswer(ctx context.Context, gameID uuid.UUID, req *SubmitAnswerRequest) (*SubmitAnswerResult, error) {
	playerID, err := ParseID(req.PlayerID, "player_id")
	if err != nil {
		return nil, err
	}
	questionID, err := ParseID(req.QuestionID, "question_id")
	if err != nil {
		return nil, err
	}
	answerID, err := ParseID(req.AnswerID, "answer_id")
	if err != nil {
		return nil, err
	}

	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.Status != models.GameStatusActive {
		return nil, invalidState(fmt.Sprintf("answers are not accepted while the game is %q", game.Status))
	}

	flow, err := s.flows.GetGameFlow(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !flow.HasCurrentQuestion() || *flow.CurrentQuestionID != questionID {
		return nil, invalidState("question is not the current question")
	}
	now := s.now()
	if !flow.AcceptsAnswers(now) {
		return nil, invalidState("answers are locked for this question")
	}

	player, err := s.store.GetPlayer(ctx, gameID, playerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("player not found")
		}
		return nil, newError(CodeServerError, "failed to fetch player", err)
	}
	report, err := player.Report()
	if err != nil {
		return nil, newError(CodeServerError, "failed to read answer report", err)
	}
	if _, answered := report.Find(questionID); answered {
		return nil, invalidState("question was already answered")
	}

	question, err := s.lookupQuestion(ctx, game.QuizSetID, questionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.ListAnswers(ctx, questionID)
	if err != nil {
		return nil, newError(CodeServerError, "failed to fetch answers", err)
	}
	var chosen *models.Answer
	for i := range answers {
		if answers[i].ID == answerID {
			chosen = &answers[i]
			break
		}
	}
	if chosen == nil {
		return nil, notFound("answer not found")
	}

	timeSpent := now.Sub(*flow.CurrentQuestionStartTime)
	points := calculatePoints(timeSpent, questionDuration(question), question.BasePoints(), chosen.IsCorrect)
	record := models.AnswerRecord{
		QuestionID: questionID,
		AnswerID:   answerID,
		IsCorrect:  chosen.IsCorrect,
		Points:     points,
		TimeSpent:  timeSpent.Milliseconds(),
		AnsweredAt: now,
	}
	report.Questions = append(report.Questions, record)
	data, err := report.Encode()
	if err != nil {
		return nil, newError(CodeServerError, "failed to encode answer report", err)
	}
	score := player.Score + points
	if err := s.store.UpdatePlayerAnswers(ctx, playerID, player.Version, data, score); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, s.answerConflict(ctx, gameID, playerID, questionID, err)
		}
		return nil, newError(CodeUpdateFailed, "failed to save answer", err)
	}

	if players, err := s.store.ListPlayers(ctx, gameID); err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("failed to load players for live answer stats")
	} else {
		notify(ctx, s.broadcaster, gameID.String(), EventAnswerStatsUpdate, roomPayload(gameID, gin.H{
			"question_id": questionID,
			"counts":      countAnswerSelections(players, questionID),
		}))
	}

	log.Debug().
		Str("game_id", gameID.String()).
		Str("player_id", playerID.String()).
		Bool("correct", chosen.IsCorrect).
		Int("points", points).
		Msg("answer submitted")
	return &SubmitAnswerResult{Record: record, Score: score}, nil
}

// answerConflict explains a lost race on the player row. Another request
// answering the same question is the usual cause.
func (s *GameService) answerConflict(ctx context.Context, gameID, playerID, questionID uuid.UUID, cause error) error {
	player, err := s.store.GetPlayer(ctx, gameID, playerID)
	if err == nil {
		if report, err := player.Report(); err == nil {
			if _, answered := report.Find(questionID); answered {
				return invalidState("question was already answered")
			}
		}
	}
	return newError(CodeUpdateFailed, "player was updated concurrently, retry the answer", cause)
}

// Leaderboard ranks the players of a game.
func (s *GameService) Leaderboard(ctx context.Context, gameID uuid.UUID) ([]LeaderboardEntry, error) {
	if _, err := s.loadGame(ctx, gameID); err != nil {
		return nil, err
	}
	players, err := s.store.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, newError(CodeServerError, "failed to fetch players", err)
	}
	return buildLeaderboard(players), nil
}
