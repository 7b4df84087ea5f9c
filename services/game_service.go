package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"livequiz/models"
	"livequiz/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// GameService drives a game through its lifecycle. Every host operation
// checks ownership first, then reads, writes and finally broadcasts.
// Requests for one game are not serialized here; concurrent flow writes are
// rejected by the flow version check instead.
type GameService struct {
	store       store.Store
	flows       *GameFlowService
	broadcaster Broadcaster
	clock       clockwork.Clock
}

func NewGameService(st store.Store, flows *GameFlowService, broadcaster Broadcaster, clock clockwork.Clock) *GameService {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &GameService{
		store:       st,
		flows:       flows,
		broadcaster: broadcaster,
		clock:       clock,
	}
}

type CreateGameRequest struct {
	QuizSetID string `json:"quiz_set_id" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Action string `json:"action"`
}

type LockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// QuestionRef points at a question by id and position.
type QuestionRef struct {
	ID    uuid.UUID `json:"id"`
	Index int       `json:"index"`
}

type InitializedQuestions struct {
	Current *QuestionRef `json:"current"`
	Next    *QuestionRef `json:"next"`
	Total   int          `json:"total"`
}

type StartGameResult struct {
	Game                 *models.Game
	GameFlow             *models.GameFlow
	InitializedQuestions InitializedQuestions
}

type GameState struct {
	Game     *models.Game     `json:"game"`
	GameFlow *models.GameFlow `json:"gameFlow"`
}

const maxJoinCodeAttempts = 5

func (s *GameService) now() time.Time {
	return s.clock.Now().UTC()
}

// ParseID parses a path or body id, reporting invalid_payload on failure.
func ParseID(raw, field string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, invalidPayload(field + " is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalidPayload(field + " must be a valid id")
	}
	return id, nil
}

// authorizeHost returns the game if userID owns it. A game owned by somebody
// else is reported exactly like a missing one.
func (s *GameService) authorizeHost(ctx context.Context, gameID, userID uuid.UUID) (*models.Game, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.UserID != userID {
		return nil, notFound("game not found")
	}
	return game, nil
}

func (s *GameService) loadGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("game not found")
		}
		return nil, newError(CodeServerError, "failed to fetch game", err)
	}
	return game, nil
}

func (s *GameService) listQuestions(ctx context.Context, quizSetID uuid.UUID) ([]models.Question, error) {
	questions, err := s.store.ListQuestions(ctx, quizSetID)
	if err != nil {
		return nil, newError(CodeServerError, "failed to fetch questions", err)
	}
	return questions, nil
}

func (s *GameService) updateGame(ctx context.Context, gameID uuid.UUID, update models.GameUpdate) (*models.Game, error) {
	game, err := s.store.UpdateGame(ctx, gameID, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("game not found")
		}
		return nil, newError(CodeUpdateFailed, "failed to update game", err)
	}
	return game, nil
}

// CreateGame opens a waiting game for a quiz set the host owns or that is
// public. The flow is created right after the game; if that fails the game
// is removed again.
func (s *GameService) CreateGame(ctx context.Context, userID uuid.UUID, req *CreateGameRequest) (*models.Game, *models.GameFlow, error) {
	quizSetID, err := ParseID(req.QuizSetID, "quiz_set_id")
	if err != nil {
		return nil, nil, err
	}

	set, err := s.store.GetQuizSet(ctx, quizSetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, notFound("quiz set not found")
		}
		return nil, nil, newError(CodeServerError, "failed to fetch quiz set", err)
	}
	if set.UserID != userID && !set.IsPublic {
		return nil, nil, notFound("quiz set not found")
	}

	questions, err := s.listQuestions(ctx, quizSetID)
	if err != nil {
		return nil, nil, err
	}

	game := &models.Game{
		ID:        uuid.New(),
		UserID:    userID,
		QuizSetID: quizSetID,
		Status:    models.GameStatusWaiting,
	}
	for attempt := 1; ; attempt++ {
		game.GameCode, err = generateJoinCode()
		if err != nil {
			return nil, nil, newError(CodeServerError, "failed to generate join code", err)
		}
		err = s.store.CreateGame(ctx, game)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicate) || attempt == maxJoinCodeAttempts {
			return nil, nil, newError(CodeUpdateFailed, "failed to create game", err)
		}
	}

	flow, err := s.flows.CreateGameFlow(ctx, game.ID, quizSetID, len(questions))
	if err != nil {
		if delErr := s.store.DeleteGame(ctx, game.ID); delErr != nil {
			log.Error().Err(delErr).Str("game_id", game.ID.String()).Msg("failed to roll back game after flow creation failed")
		}
		return nil, nil, err
	}

	log.Info().
		Str("game_id", game.ID.String()).
		Str("game_code", game.GameCode).
		Int("total_questions", len(questions)).
		Msg("game created")
	return game, flow, nil
}

// StartGame moves a waiting game to active and queues its first question.
func (s *GameService) StartGame(ctx context.Context, userID, gameID uuid.UUID) (*StartGameResult, error) {
	game, err := s.authorizeHost(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}
	if game.Status != models.GameStatusWaiting {
		return nil, invalidState(fmt.Sprintf("game cannot be started from status %q", game.Status))
	}

	flow, err := s.flows.GetGameFlow(ctx, gameID)
	if err != nil {
		return nil, err
	}
	questions, err := s.listQuestions(ctx, game.QuizSetID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, invalidState("quiz set has no questions")
	}

	current := &QuestionRef{ID: questions[0].ID, Index: 0}
	next := questionRefAt(questions, flow.TotalQuestions, 1)
	transition := AdvanceTo{QuestionID: current.ID, Index: 0}
	if next != nil {
		transition.NextQuestionID = &next.ID
	}
	flow, err = s.flows.UpdateGameFlow(ctx, flow, transition)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := models.GameStatusActive
	index := 0
	game, err = s.updateGame(ctx, gameID, models.GameUpdate{
		Status:               &status,
		StartedAt:            &now,
		CurrentQuestionIndex: &index,
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("game_id", gameID.String()).Int("total_questions", flow.TotalQuestions).Msg("game started")
	return &StartGameResult{
		Game:     game,
		GameFlow: flow,
		InitializedQuestions: InitializedQuestions{
			Current: current,
			Next:    next,
			Total:   flow.TotalQuestions,
		},
	}, nil
}

// UpdateStatus applies a pause, resume or end action, or failing that a raw
// status value. Raw values are not checked against the known statuses.
func (s *GameService) UpdateStatus(ctx context.Context, userID, gameID uuid.UUID, req *UpdateStatusRequest) (*models.Game, error) {
	action := strings.ToLower(strings.TrimSpace(req.Action))
	status := strings.TrimSpace(req.Status)
	if action == "" && status == "" {
		return nil, invalidPayload("status or action is required")
	}

	game, err := s.authorizeHost(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var update models.GameUpdate
	switch action {
	case "pause":
		if game.Status != models.GameStatusActive {
			return nil, invalidState(fmt.Sprintf("cannot pause a game with status %q", game.Status))
		}
		paused := models.GameStatusPaused
		update.Status = &paused
		update.PausedAt = &now
	case "resume":
		if game.Status != models.GameStatusPaused {
			return nil, invalidState(fmt.Sprintf("cannot resume a game with status %q", game.Status))
		}
		active := models.GameStatusActive
		update.Status = &active
		update.ResumedAt = &now
	case "end":
		finished := models.GameStatusFinished
		update.Status = &finished
		if game.EndedAt == nil {
			update.EndedAt = &now
		}
	case "":
		update.Status = &status
		if models.IsFinishedStatus(status) && game.EndedAt == nil {
			update.EndedAt = &now
		}
	default:
		return nil, invalidPayload(fmt.Sprintf("unknown action %q", req.Action))
	}

	game, err = s.updateGame(ctx, gameID, update)
	if err != nil {
		return nil, err
	}
	log.Info().Str("game_id", gameID.String()).Str("status", game.Status).Msg("game status updated")
	return game, nil
}

// SetLocked opens or closes the room to new players.
func (s *GameService) SetLocked(ctx context.Context, userID, gameID uuid.UUID, req *LockRequest) (*models.Game, error) {
	if req.Locked == nil {
		return nil, invalidPayload("locked is required")
	}
	if _, err := s.authorizeHost(ctx, gameID, userID); err != nil {
		return nil, err
	}
	return s.updateGame(ctx, gameID, models.GameUpdate{Locked: req.Locked})
}

// DeleteGame removes a game, its flow and its players.
func (s *GameService) DeleteGame(ctx context.Context, userID, gameID uuid.UUID) error {
	if _, err := s.authorizeHost(ctx, gameID, userID); err != nil {
		return err
	}
	s.flows.DeleteGameFlow(ctx, gameID)
	if err := s.store.DeleteGame(ctx, gameID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("game not found")
		}
		return newError(CodeUpdateFailed, "failed to delete game", err)
	}
	log.Info().Str("game_id", gameID.String()).Msg("game deleted")
	return nil
}

func (s *GameService) GetGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	return s.loadGame(ctx, gameID)
}

// GetState returns the game together with its flow snapshot.
func (s *GameService) GetState(ctx context.Context, gameID uuid.UUID) (*GameState, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	flow, err := s.flows.CachedGameFlow(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return &GameState{Game: game, GameFlow: flow}, nil
}

func roomPayload(gameID uuid.UUID, fields gin.H) gin.H {
	payload := gin.H{
		"roomId":  gameID.String(),
		"game_id": gameID.String(),
	}
	for k, v := range fields {
		payload[k] = v
	}
	return payload
}

// questionRefAt returns the question at index if it exists and is within total.
func questionRefAt(questions []models.Question, total, index int) *QuestionRef {
	if index < 0 || index >= total || index >= len(questions) {
		return nil
	}
	return &QuestionRef{ID: questions[index].ID, Index: index}
}

// generateJoinCode returns a random six digit code.
func generateJoinCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
