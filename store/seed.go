package store

import (
	"livequiz/models"

	"github.com/google/uuid"
)

// DemoQuizSetID is the fixed id of the quiz set SeedDemoQuiz installs.
var DemoQuizSetID = uuid.MustParse("00000000-0000-4000-8000-000000000001")

type demoQuestion struct {
	text        string
	answers     []string
	correct     int
	explanation string
}

var demoQuestions = []demoQuestion{
	{"Which planet is known as the Red Planet?", []string{"Venus", "Mars", "Jupiter", "Mercury"}, 1, "Iron oxide on its surface gives Mars its colour."},
	{"What is the largest ocean on Earth?", []string{"Atlantic", "Indian", "Arctic", "Pacific"}, 3, ""},
	{"How many continents are there?", []string{"5", "6", "7", "8"}, 2, "Africa, Antarctica, Asia, Australia, Europe, North America and South America."},
}

// SeedDemoQuiz installs a small public quiz set owned by ownerID.
func (s *MemoryStore) SeedDemoQuiz(ownerID uuid.UUID) *models.QuizSet {
	set := models.QuizSet{
		ID:       DemoQuizSetID,
		UserID:   ownerID,
		Title:    "General knowledge",
		IsPublic: true,
	}
	for i, dq := range demoQuestions {
		q := models.Question{
			ID:               uuid.New(),
			QuestionText:     dq.text,
			QuestionIndex:    i,
			ShowQuestionTime: models.DefaultShowQuestionTime,
			AnsweringTime:    models.DefaultAnsweringTime,
			Points:           models.DefaultQuestionPoints,
		}
		if dq.explanation != "" {
			title := "Did you know?"
			text := dq.explanation
			q.ExplanationTitle = &title
			q.ExplanationText = &text
			q.ShowExplanationTime = 10
		}
		for j, text := range dq.answers {
			q.Answers = append(q.Answers, models.Answer{
				ID:         uuid.New(),
				AnswerText: text,
				IsCorrect:  j == dq.correct,
				OrderIndex: j,
			})
		}
		set.Questions = append(set.Questions, q)
	}
	s.AddQuizSet(set)
	return &set
}
