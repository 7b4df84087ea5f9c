package models

import (
	"time"

	"github.com/google/uuid"
)

// GameFlow tracks which question of a game is live. There is exactly one
// per game. Version increases on every write and guards concurrent updates.
type GameFlow struct {
	ID                       uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	GameID                   uuid.UUID  `json:"game_id" gorm:"type:uuid;uniqueIndex;not null"`
	QuizSetID                uuid.UUID  `json:"quiz_set_id" gorm:"type:uuid;not null"`
	TotalQuestions           int        `json:"total_questions" gorm:"not null;default:0"`
	CurrentQuestionID        *uuid.UUID `json:"current_question_id" gorm:"type:uuid"`
	CurrentQuestionIndex     int        `json:"current_question_index" gorm:"not null;default:0"`
	NextQuestionID           *uuid.UUID `json:"next_question_id" gorm:"type:uuid"`
	CurrentQuestionStartTime *time.Time `json:"current_question_start_time"`
	CurrentQuestionEndTime   *time.Time `json:"current_question_end_time"`
	Version                  int64      `json:"version" gorm:"not null;default:1"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// HasCurrentQuestion reports whether a question is live or awaiting reveal.
func (f *GameFlow) HasCurrentQuestion() bool {
	return f.CurrentQuestionID != nil
}

// AcceptsAnswers reports whether answers for the current question are still open at now.
func (f *GameFlow) AcceptsAnswers(now time.Time) bool {
	if f.CurrentQuestionID == nil || f.CurrentQuestionStartTime == nil {
		return false
	}
	if f.CurrentQuestionEndTime == nil {
		return true
	}
	return now.Before(*f.CurrentQuestionEndTime)
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (f *GameFlow) Clone() *GameFlow {
	c := *f
	if f.CurrentQuestionID != nil {
		id := *f.CurrentQuestionID
		c.CurrentQuestionID = &id
	}
	if f.NextQuestionID != nil {
		id := *f.NextQuestionID
		c.NextQuestionID = &id
	}
	if f.CurrentQuestionStartTime != nil {
		t := *f.CurrentQuestionStartTime
		c.CurrentQuestionStartTime = &t
	}
	if f.CurrentQuestionEndTime != nil {
		t := *f.CurrentQuestionEndTime
		c.CurrentQuestionEndTime = &t
	}
	return &c
}
