package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Player is one participant of a game. Version increases on every answer and
// guards the report and score against lost updates.
type Player struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	GameID       uuid.UUID      `json:"game_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_game_player_name"`
	PlayerName   string         `json:"player_name" gorm:"not null;uniqueIndex:idx_game_player_name"`
	DeviceID     string         `json:"device_id"`
	Score        int            `json:"score" gorm:"not null;default:0"`
	AnswerReport datatypes.JSON `json:"answer_report" gorm:"type:jsonb"`
	Version      int64          `json:"version" gorm:"not null;default:1"`
	JoinedAt     time.Time      `json:"joined_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// AnswerRecord is one entry of a player's answer report.
type AnswerRecord struct {
	QuestionID uuid.UUID `json:"question_id"`
	AnswerID   uuid.UUID `json:"answer_id"`
	IsCorrect  bool      `json:"is_correct"`
	Points     int       `json:"points"`
	TimeSpent  int64     `json:"time_spent_ms"`
	AnsweredAt time.Time `json:"answered_at"`
}

// AnswerReport is the JSON document stored on the player row.
type AnswerReport struct {
	Questions []AnswerRecord `json:"questions"`
}

// Report decodes the stored answer report. An empty column is an empty report.
func (p *Player) Report() (AnswerReport, error) {
	var report AnswerReport
	if len(p.AnswerReport) == 0 {
		return report, nil
	}
	if err := json.Unmarshal(p.AnswerReport, &report); err != nil {
		return AnswerReport{}, fmt.Errorf("failed to decode answer report for player %s: %w", p.ID, err)
	}
	return report, nil
}

// Find returns the record for questionID, if the player answered it.
func (r AnswerReport) Find(questionID uuid.UUID) (AnswerRecord, bool) {
	for _, rec := range r.Questions {
		if rec.QuestionID == questionID {
			return rec, true
		}
	}
	return AnswerRecord{}, false
}

// Encode marshals the report for storage.
func (r AnswerReport) Encode() (datatypes.JSON, error) {
	if r.Questions == nil {
		r.Questions = []AnswerRecord{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answer report: %w", err)
	}
	return datatypes.JSON(data), nil
}
