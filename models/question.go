package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultShowQuestionTime = 10 // seconds
	DefaultAnsweringTime    = 30 // seconds
	DefaultQuestionPoints   = 100
)

type Question struct {
	ID                  uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	QuestionSetID       uuid.UUID      `json:"question_set_id" gorm:"type:uuid;not null;index"`
	QuestionText        string         `json:"question_text" gorm:"not null"`
	ImageURL            *string        `json:"image_url"`
	QuestionIndex       int            `json:"question_index" gorm:"not null"`
	ShowQuestionTime    int            `json:"show_question_time" gorm:"not null;default:10"` // seconds
	AnsweringTime       int            `json:"answering_time" gorm:"not null;default:30"`     // seconds
	Points              int            `json:"points" gorm:"not null;default:100"`
	ExplanationTitle    *string        `json:"explanation_title"`
	ExplanationText     *string        `json:"explanation_text"`
	ExplanationImageURL *string        `json:"explanation_image_url"`
	ShowExplanationTime int            `json:"show_explanation_time" gorm:"not null;default:0"` // seconds
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:QuestionID"`
}

// DisplaySeconds returns how long the question is shown before answering opens.
func (q *Question) DisplaySeconds() int {
	if q.ShowQuestionTime <= 0 {
		return DefaultShowQuestionTime
	}
	return q.ShowQuestionTime
}

// AnswerSeconds returns how long players may answer.
func (q *Question) AnswerSeconds() int {
	if q.AnsweringTime <= 0 {
		return DefaultAnsweringTime
	}
	return q.AnsweringTime
}

func (q *Question) BasePoints() int {
	if q.Points <= 0 {
		return DefaultQuestionPoints
	}
	return q.Points
}

// HasExplanation reports whether any explanation field is filled in.
func (q *Question) HasExplanation() bool {
	return nonEmpty(q.ExplanationTitle) || nonEmpty(q.ExplanationText) || nonEmpty(q.ExplanationImageURL)
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
