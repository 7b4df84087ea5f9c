package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	GameStatusWaiting  = "waiting"
	GameStatusActive   = "active"
	GameStatusPaused   = "paused"
	GameStatusFinished = "finished"
)

type Game struct {
	ID                   uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID               uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	QuizSetID            uuid.UUID  `json:"quiz_set_id" gorm:"type:uuid;not null;index"`
	GameCode             string     `json:"game_code" gorm:"uniqueIndex;not null"`
	Status               string     `json:"status" gorm:"not null;default:'waiting'"` // waiting, active, paused, finished
	CurrentQuestionIndex int        `json:"current_question_index" gorm:"not null;default:0"`
	Locked               bool       `json:"locked" gorm:"not null;default:false"`
	StartedAt            *time.Time `json:"started_at"`
	PausedAt             *time.Time `json:"paused_at"`
	ResumedAt            *time.Time `json:"resumed_at"`
	EndedAt              *time.Time `json:"ended_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// IsFinishedStatus reports whether status ends a game. The status patch
// accepts free-form values, so a few aliases count as finished.
func IsFinishedStatus(status string) bool {
	switch status {
	case GameStatusFinished, "ended", "completed":
		return true
	}
	return false
}

// GameUpdate is a partial update of a game row. Nil fields are left alone.
type GameUpdate struct {
	Status               *string
	CurrentQuestionIndex *int
	Locked               *bool
	StartedAt            *time.Time
	PausedAt             *time.Time
	ResumedAt            *time.Time
	EndedAt              *time.Time
}

// Columns returns the update as a gorm column map.
func (u GameUpdate) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.CurrentQuestionIndex != nil {
		cols["current_question_index"] = *u.CurrentQuestionIndex
	}
	if u.Locked != nil {
		cols["locked"] = *u.Locked
	}
	if u.StartedAt != nil {
		cols["started_at"] = *u.StartedAt
	}
	if u.PausedAt != nil {
		cols["paused_at"] = *u.PausedAt
	}
	if u.ResumedAt != nil {
		cols["resumed_at"] = *u.ResumedAt
	}
	if u.EndedAt != nil {
		cols["ended_at"] = *u.EndedAt
	}
	return cols
}

// Apply copies the set fields onto g.
func (u GameUpdate) Apply(g *Game) {
	if u.Status != nil {
		g.Status = *u.Status
	}
	if u.CurrentQuestionIndex != nil {
		g.CurrentQuestionIndex = *u.CurrentQuestionIndex
	}
	if u.Locked != nil {
		g.Locked = *u.Locked
	}
	if u.StartedAt != nil {
		t := *u.StartedAt
		g.StartedAt = &t
	}
	if u.PausedAt != nil {
		t := *u.PausedAt
		g.PausedAt = &t
	}
	if u.ResumedAt != nil {
		t := *u.ResumedAt
		g.ResumedAt = &t
	}
	if u.EndedAt != nil {
		t := *u.EndedAt
		g.EndedAt = &t
	}
}

func (u GameUpdate) IsEmpty() bool {
	return len(u.Columns()) == 0
}
