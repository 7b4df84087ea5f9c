//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"livequiz/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Run with a throwaway database:
//
//	LIVEQUIZ_TEST_DSN="host=localhost user=postgres password=postgres dbname=livequiz_test sslmode=disable" \
//		go test -tags integration ./store/...
func openTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := os.Getenv("LIVEQUIZ_TEST_DSN")
	if dsn == "" {
		t.Skip("LIVEQUIZ_TEST_DSN is not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	s := NewGormStore(db)
	require.NoError(t, s.AutoMigrate())
	return s
}

func createGormGame(t *testing.T, s *GormStore) (*models.Game, *models.GameFlow) {
	t.Helper()
	ctx := context.Background()
	game := &models.Game{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		QuizSetID: uuid.New(),
		GameCode:  uuid.NewString()[:6],
		Status:    models.GameStatusWaiting,
	}
	require.NoError(t, s.CreateGame(ctx, game))
	flow := &models.GameFlow{ID: uuid.New(), GameID: game.ID, QuizSetID: game.QuizSetID, TotalQuestions: 3, Version: 1}
	require.NoError(t, s.CreateGameFlow(ctx, flow))
	t.Cleanup(func() { _ = s.DeleteGame(context.Background(), game.ID) })
	return game, flow
}

func TestGormStoreFlowCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := openTestGormStore(t)
	_, flow := createGormGame(t, s)

	next := flow.Clone()
	next.CurrentQuestionIndex = 1
	updated, err := s.UpdateGameFlow(ctx, next, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, 1, updated.CurrentQuestionIndex)

	stale := flow.Clone()
	stale.CurrentQuestionIndex = 2
	_, err = s.UpdateGameFlow(ctx, stale, 1)
	assert.ErrorIs(t, err, ErrConflict)

	stored, err := s.GetGameFlow(ctx, flow.GameID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentQuestionIndex)

	missing := flow.Clone()
	missing.GameID = uuid.New()
	_, err = s.UpdateGameFlow(ctx, missing, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStorePlayerCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := openTestGormStore(t)
	game, _ := createGormGame(t, s)

	player := &models.Player{ID: uuid.New(), GameID: game.ID, PlayerName: "ada", Version: 1}
	require.NoError(t, s.CreatePlayer(ctx, player))
	err := s.CreatePlayer(ctx, &models.Player{ID: uuid.New(), GameID: game.ID, PlayerName: "ada", Version: 1})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, s.UpdatePlayerAnswers(ctx, player.ID, 1, []byte(`{"questions":[]}`), 42))
	assert.ErrorIs(t, s.UpdatePlayerAnswers(ctx, player.ID, 1, []byte(`{"questions":[]}`), 99), ErrConflict)
	assert.ErrorIs(t, s.UpdatePlayerAnswers(ctx, uuid.New(), 1, []byte(`{"questions":[]}`), 0), ErrNotFound)

	stored, err := s.GetPlayer(ctx, game.ID, player.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, stored.Score)
	assert.Equal(t, int64(2), stored.Version)
}

func TestGormStoreDuplicateGameCode(t *testing.T) {
	ctx := context.Background()
	s := openTestGormStore(t)
	game, _ := createGormGame(t, s)

	err := s.CreateGame(ctx, &models.Game{ID: uuid.New(), UserID: game.UserID, QuizSetID: game.QuizSetID, GameCode: game.GameCode})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.GetGame(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
