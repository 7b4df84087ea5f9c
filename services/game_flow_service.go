package services

import (
	"context"
	"errors"
	"fmt"

	"livequiz/models"
	"livequiz/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GameFlowService is the only reader and writer of game flow records.
type GameFlowService struct {
	store store.Store
	cache FlowCache
}

func NewGameFlowService(st store.Store, cache FlowCache) *GameFlowService {
	if cache == nil {
		cache = NopFlowCache{}
	}
	return &GameFlowService{store: st, cache: cache}
}

// CreateGameFlow inserts the initial flow of a game. Both the game and the
// quiz set are looked up rather than trusted from the caller.
func (s *GameFlowService) CreateGameFlow(ctx context.Context, gameID, quizSetID uuid.UUID, totalQuestions int) (*models.GameFlow, error) {
	if gameID == uuid.Nil {
		return nil, invalidPayload("game id is required")
	}
	if quizSetID == uuid.Nil {
		return nil, invalidPayload("quiz set id is required")
	}
	if totalQuestions < 0 {
		return nil, invalidPayload("total questions must not be negative")
	}

	if _, err := s.store.GetGame(ctx, gameID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(fmt.Sprintf("game %s not found", gameID))
		}
		return nil, newError(CodeServerError, "failed to look up game", err)
	}
	if _, err := s.store.GetQuizSet(ctx, quizSetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(fmt.Sprintf("quiz set %s not found", quizSetID))
		}
		return nil, newError(CodeServerError, "failed to look up quiz set", err)
	}

	flow := &models.GameFlow{
		ID:                   uuid.New(),
		GameID:               gameID,
		QuizSetID:            quizSetID,
		TotalQuestions:       totalQuestions,
		CurrentQuestionIndex: 0,
		Version:              1,
	}
	if err := s.store.CreateGameFlow(ctx, flow); err != nil {
		return nil, newError(CodeFlowUpdateFailed, "failed to create game flow", err)
	}

	s.cache.Set(ctx, flow)
	log.Info().
		Str("game_id", gameID.String()).
		Int("total_questions", totalQuestions).
		Msg("game flow created")
	return flow, nil
}

// GetGameFlow reads the flow straight from the store.
func (s *GameFlowService) GetGameFlow(ctx context.Context, gameID uuid.UUID) (*models.GameFlow, error) {
	flow, err := s.store.GetGameFlow(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("game flow not found")
		}
		return nil, newError(CodeServerError, "failed to fetch game flow", err)
	}
	return flow, nil
}

// CachedGameFlow serves read-only callers from the snapshot cache when it can.
func (s *GameFlowService) CachedGameFlow(ctx context.Context, gameID uuid.UUID) (*models.GameFlow, error) {
	if flow, ok := s.cache.Get(ctx, gameID); ok {
		return flow, nil
	}
	flow, err := s.GetGameFlow(ctx, gameID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, flow)
	return flow, nil
}

// UpdateGameFlow applies t to current and persists it, provided nobody else
// wrote the flow since current was read.
func (s *GameFlowService) UpdateGameFlow(ctx context.Context, current *models.GameFlow, t FlowTransition) (*models.GameFlow, error) {
	next := current.Clone()
	if err := t.apply(next); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateGameFlow(ctx, next, current.Version)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, notFound("game flow not found")
		case errors.Is(err, store.ErrConflict):
			s.refreshCache(ctx, current.GameID)
			return nil, newError(CodeFlowConflict, "game flow was changed by another request, reload and retry", err)
		}
		return nil, newError(CodeFlowUpdateFailed, "failed to update game flow", err)
	}

	s.cache.Set(ctx, updated)
	log.Debug().
		Str("game_id", updated.GameID.String()).
		Str("transition", t.String()).
		Int("question_index", updated.CurrentQuestionIndex).
		Int64("version", updated.Version).
		Msg("game flow updated")
	return updated, nil
}

// refreshCache reloads the stored flow into the cache after a lost write, so
// a snapshot older than the winning write does not linger.
func (s *GameFlowService) refreshCache(ctx context.Context, gameID uuid.UUID) {
	flow, err := s.store.GetGameFlow(ctx, gameID)
	if err != nil {
		s.cache.Delete(ctx, gameID)
		return
	}
	s.cache.Set(ctx, flow)
}

// DeleteGameFlow removes the flow. It reports false instead of failing.
func (s *GameFlowService) DeleteGameFlow(ctx context.Context, gameID uuid.UUID) bool {
	s.cache.Delete(ctx, gameID)
	if err := s.store.DeleteGameFlow(ctx, gameID); err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("failed to delete game flow")
		return false
	}
	return true
}
