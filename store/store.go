// Package store is the persistence gateway for games, their flows, players
// and the read-only quiz content they are played from.
package store

import (
	"context"
	"errors"

	"livequiz/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("record was modified concurrently")
	ErrDuplicate = errors.New("record already exists")
)

type Store interface {
	Ping(ctx context.Context) error

	CreateGame(ctx context.Context, game *models.Game) error
	GetGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error)
	GetGameByCode(ctx context.Context, code string) (*models.Game, error)
	UpdateGame(ctx context.Context, gameID uuid.UUID, update models.GameUpdate) (*models.Game, error)
	// DeleteGame removes the game together with its flow and players.
	DeleteGame(ctx context.Context, gameID uuid.UUID) error

	GetQuizSet(ctx context.Context, quizSetID uuid.UUID) (*models.QuizSet, error)
	// ListQuestions returns the non-deleted questions of a quiz set ordered by question_index.
	ListQuestions(ctx context.Context, quizSetID uuid.UUID) ([]models.Question, error)
	GetQuestion(ctx context.Context, questionID uuid.UUID) (*models.Question, error)
	// ListAnswers returns the answers of a question ordered by order_index.
	ListAnswers(ctx context.Context, questionID uuid.UUID) ([]models.Answer, error)

	CreateGameFlow(ctx context.Context, flow *models.GameFlow) error
	GetGameFlow(ctx context.Context, gameID uuid.UUID) (*models.GameFlow, error)
	// UpdateGameFlow writes flow only if the stored version still equals
	// expectedVersion. On success the stored version is expectedVersion+1.
	// A mismatch returns ErrConflict.
	UpdateGameFlow(ctx context.Context, flow *models.GameFlow, expectedVersion int64) (*models.GameFlow, error)
	DeleteGameFlow(ctx context.Context, gameID uuid.UUID) error

	CreatePlayer(ctx context.Context, player *models.Player) error
	GetPlayer(ctx context.Context, gameID, playerID uuid.UUID) (*models.Player, error)
	ListPlayers(ctx context.Context, gameID uuid.UUID) ([]models.Player, error)
	// UpdatePlayerAnswers replaces the answer report and score if the player
	// is still at expectedVersion, and bumps the version. A mismatch returns
	// ErrConflict.
	UpdatePlayerAnswers(ctx context.Context, playerID uuid.UUID, expectedVersion int64, report datatypes.JSON, score int) error
	DeletePlayer(ctx context.Context, gameID, playerID uuid.UUID) error
}
