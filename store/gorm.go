package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"livequiz/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormStore implements Store on top of gorm (postgres in production).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the tables used by the store.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.QuizSet{},
		&models.Question{},
		&models.Answer{},
		&models.Game{},
		&models.GameFlow{},
		&models.Player{},
	)
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) CreateGame(ctx context.Context, game *models.Game) error {
	if err := s.db.WithContext(ctx).Create(game).Error; err != nil {
		return translate(err, "create game")
	}
	return nil
}

func (s *GormStore) GetGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	var game models.Game
	if err := s.db.WithContext(ctx).Where("id = ?", gameID).First(&game).Error; err != nil {
		return nil, translate(err, "get game")
	}
	return &game, nil
}

func (s *GormStore) GetGameByCode(ctx context.Context, code string) (*models.Game, error) {
	var game models.Game
	if err := s.db.WithContext(ctx).Where("game_code = ?", code).First(&game).Error; err != nil {
		return nil, translate(err, "get game by code")
	}
	return &game, nil
}

func (s *GormStore) UpdateGame(ctx context.Context, gameID uuid.UUID, update models.GameUpdate) (*models.Game, error) {
	if !update.IsEmpty() {
		res := s.db.WithContext(ctx).Model(&models.Game{}).Where("id = ?", gameID).Updates(update.Columns())
		if res.Error != nil {
			return nil, translate(res.Error, "update game")
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetGame(ctx, gameID)
}

func (s *GormStore) DeleteGame(ctx context.Context, gameID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("game_id = ?", gameID).Delete(&models.Player{}).Error; err != nil {
			return translate(err, "delete players")
		}
		if err := tx.Where("game_id = ?", gameID).Delete(&models.GameFlow{}).Error; err != nil {
			return translate(err, "delete game flow")
		}
		res := tx.Where("id = ?", gameID).Delete(&models.Game{})
		if res.Error != nil {
			return translate(res.Error, "delete game")
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *GormStore) GetQuizSet(ctx context.Context, quizSetID uuid.UUID) (*models.QuizSet, error) {
	var set models.QuizSet
	if err := s.db.WithContext(ctx).Where("id = ?", quizSetID).First(&set).Error; err != nil {
		return nil, translate(err, "get quiz set")
	}
	return &set, nil
}

func (s *GormStore) ListQuestions(ctx context.Context, quizSetID uuid.UUID) ([]models.Question, error) {
	var questions []models.Question
	err := s.db.WithContext(ctx).
		Where("question_set_id = ?", quizSetID).
		Order("question_index ASC").
		Find(&questions).Error
	if err != nil {
		return nil, translate(err, "list questions")
	}
	return questions, nil
}

func (s *GormStore) GetQuestion(ctx context.Context, questionID uuid.UUID) (*models.Question, error) {
	var question models.Question
	if err := s.db.WithContext(ctx).Where("id = ?", questionID).First(&question).Error; err != nil {
		return nil, translate(err, "get question")
	}
	return &question, nil
}

func (s *GormStore) ListAnswers(ctx context.Context, questionID uuid.UUID) ([]models.Answer, error) {
	var answers []models.Answer
	err := s.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("order_index ASC").
		Find(&answers).Error
	if err != nil {
		return nil, translate(err, "list answers")
	}
	return answers, nil
}

func (s *GormStore) CreateGameFlow(ctx context.Context, flow *models.GameFlow) error {
	if err := s.db.WithContext(ctx).Create(flow).Error; err != nil {
		return translate(err, "create game flow")
	}
	return nil
}

func (s *GormStore) GetGameFlow(ctx context.Context, gameID uuid.UUID) (*models.GameFlow, error) {
	var flow models.GameFlow
	if err := s.db.WithContext(ctx).Where("game_id = ?", gameID).First(&flow).Error; err != nil {
		return nil, translate(err, "get game flow")
	}
	return &flow, nil
}

func (s *GormStore) UpdateGameFlow(ctx context.Context, flow *models.GameFlow, expectedVersion int64) (*models.GameFlow, error) {
	res := s.db.WithContext(ctx).Model(&models.GameFlow{}).
		Where("game_id = ? AND version = ?", flow.GameID, expectedVersion).
		Updates(map[string]interface{}{
			"current_question_id":         flow.CurrentQuestionID,
			"current_question_index":      flow.CurrentQuestionIndex,
			"next_question_id":            flow.NextQuestionID,
			"current_question_start_time": flow.CurrentQuestionStartTime,
			"current_question_end_time":   flow.CurrentQuestionEndTime,
			"version":                     expectedVersion + 1,
			"updated_at":                  time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, translate(res.Error, "update game flow")
	}
	if res.RowsAffected == 0 {
		// Either the row is gone or somebody else bumped the version.
		if _, err := s.GetGameFlow(ctx, flow.GameID); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	return s.GetGameFlow(ctx, flow.GameID)
}

func (s *GormStore) DeleteGameFlow(ctx context.Context, gameID uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("game_id = ?", gameID).Delete(&models.GameFlow{})
	if res.Error != nil {
		return translate(res.Error, "delete game flow")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreatePlayer(ctx context.Context, player *models.Player) error {
	if err := s.db.WithContext(ctx).Create(player).Error; err != nil {
		return translate(err, "create player")
	}
	return nil
}

func (s *GormStore) GetPlayer(ctx context.Context, gameID, playerID uuid.UUID) (*models.Player, error) {
	var player models.Player
	if err := s.db.WithContext(ctx).Where("id = ? AND game_id = ?", playerID, gameID).First(&player).Error; err != nil {
		return nil, translate(err, "get player")
	}
	return &player, nil
}

func (s *GormStore) ListPlayers(ctx context.Context, gameID uuid.UUID) ([]models.Player, error) {
	var players []models.Player
	if err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("joined_at ASC").Find(&players).Error; err != nil {
		return nil, translate(err, "list players")
	}
	return players, nil
}

func (s *GormStore) UpdatePlayerAnswers(ctx context.Context, playerID uuid.UUID, expectedVersion int64, report datatypes.JSON, score int) error {
	res := s.db.WithContext(ctx).Model(&models.Player{}).
		Where("id = ? AND version = ?", playerID, expectedVersion).
		Updates(map[string]interface{}{
			"answer_report": report,
			"score":         score,
			"version":       expectedVersion + 1,
		})
	if res.Error != nil {
		return translate(res.Error, "update player answers")
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Player{}).Where("id = ?", playerID).Count(&count).Error; err != nil {
			return translate(err, "update player answers")
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (s *GormStore) DeletePlayer(ctx context.Context, gameID, playerID uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ? AND game_id = ?", playerID, gameID).Delete(&models.Player{})
	if res.Error != nil {
		return translate(res.Error, "delete player")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error, op string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// isUniqueViolation catches postgres 23505 when gorm's TranslateError is off.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "SQLSTATE 23505")
}
