package services

import (
	"fmt"
	"time"

	"livequiz/models"

	"github.com/google/uuid"
)

// FlowTransition is one allowed change to a game flow. Each transition owns
// the set of fields it may touch, so callers cannot write arbitrary
// combinations.
type FlowTransition interface {
	apply(flow *models.GameFlow) error
	String() string
}

// StartQuestion opens a question for answers between StartsAt and EndsAt
// and queues NextQuestionID behind it.
type StartQuestion struct {
	QuestionID     uuid.UUID
	Index          int
	StartsAt       time.Time
	EndsAt         time.Time
	NextQuestionID *uuid.UUID
}

func (t StartQuestion) apply(flow *models.GameFlow) error {
	if err := checkIndex(flow, t.Index); err != nil {
		return err
	}
	if t.EndsAt.Before(t.StartsAt) {
		return invalidPayload("question cannot end before it starts")
	}
	id := t.QuestionID
	starts, ends := t.StartsAt, t.EndsAt
	flow.CurrentQuestionID = &id
	flow.CurrentQuestionIndex = t.Index
	flow.CurrentQuestionStartTime = &starts
	flow.CurrentQuestionEndTime = &ends
	flow.NextQuestionID = nil
	if t.NextQuestionID != nil {
		next := *t.NextQuestionID
		flow.NextQuestionID = &next
	}
	return nil
}

func (t StartQuestion) String() string { return "start_question" }

// Reveal closes the current question at At.
type Reveal struct {
	At time.Time
}

func (t Reveal) apply(flow *models.GameFlow) error {
	if flow.CurrentQuestionID == nil {
		return invalidState("no active question to reveal")
	}
	at := t.At
	flow.CurrentQuestionEndTime = &at
	return nil
}

func (t Reveal) String() string { return "reveal" }

// AdvanceTo queues the question at Index as current, with timestamps cleared
// until the host starts it.
type AdvanceTo struct {
	QuestionID     uuid.UUID
	Index          int
	NextQuestionID *uuid.UUID
}

func (t AdvanceTo) apply(flow *models.GameFlow) error {
	if err := checkIndex(flow, t.Index); err != nil {
		return err
	}
	id := t.QuestionID
	flow.CurrentQuestionID = &id
	flow.CurrentQuestionIndex = t.Index
	flow.NextQuestionID = nil
	if t.NextQuestionID != nil {
		next := *t.NextQuestionID
		flow.NextQuestionID = &next
	}
	flow.CurrentQuestionStartTime = nil
	flow.CurrentQuestionEndTime = nil
	return nil
}

func (t AdvanceTo) String() string { return "advance_to" }

// Finish clears the current and next question once every question was played.
type Finish struct{}

func (Finish) apply(flow *models.GameFlow) error {
	flow.CurrentQuestionID = nil
	flow.NextQuestionID = nil
	flow.CurrentQuestionStartTime = nil
	flow.CurrentQuestionEndTime = nil
	return nil
}

func (Finish) String() string { return "finish" }

func checkIndex(flow *models.GameFlow, index int) error {
	if index < 0 || index >= flow.TotalQuestions {
		return invalidState(fmt.Sprintf("question index %d is out of range [0, %d)", index, flow.TotalQuestions))
	}
	return nil
}
