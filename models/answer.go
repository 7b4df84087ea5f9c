package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Answer struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	QuestionID uuid.UUID      `json:"question_id" gorm:"type:uuid;not null;index"`
	AnswerText string         `json:"answer_text" gorm:"not null"`
	ImageURL   *string        `json:"image_url"`
	IsCorrect  bool           `json:"is_correct" gorm:"not null;default:false"`
	OrderIndex int            `json:"order_index" gorm:"not null"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}
