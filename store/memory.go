package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"livequiz/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MemoryStore keeps everything in process. It backs local development and
// the package tests; rows are copied on the way in and out.
type MemoryStore struct {
	mu        sync.RWMutex
	games     map[uuid.UUID]models.Game
	flows     map[uuid.UUID]models.GameFlow // keyed by game id
	quizSets  map[uuid.UUID]models.QuizSet
	questions map[uuid.UUID]models.Question
	answers   map[uuid.UUID]models.Answer
	players   map[uuid.UUID]models.Player
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:     make(map[uuid.UUID]models.Game),
		flows:     make(map[uuid.UUID]models.GameFlow),
		quizSets:  make(map[uuid.UUID]models.QuizSet),
		questions: make(map[uuid.UUID]models.Question),
		answers:   make(map[uuid.UUID]models.Answer),
		players:   make(map[uuid.UUID]models.Player),
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// AddQuizSet stores a quiz set with its questions and their answers.
// Nested Questions/Answers slices are flattened into their own tables.
func (s *MemoryStore) AddQuizSet(set models.QuizSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions := set.Questions
	set.Questions = nil
	s.quizSets[set.ID] = set
	for _, q := range questions {
		answers := q.Answers
		q.Answers = nil
		q.QuestionSetID = set.ID
		s.questions[q.ID] = q
		for _, a := range answers {
			a.QuestionID = q.ID
			s.answers[a.ID] = a
		}
	}
}

func (s *MemoryStore) CreateGame(_ context.Context, game *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[game.ID]; ok {
		return ErrDuplicate
	}
	for _, g := range s.games {
		if g.GameCode == game.GameCode {
			return ErrDuplicate
		}
	}
	now := time.Now().UTC()
	game.CreatedAt, game.UpdatedAt = now, now
	s.games[game.ID] = *game
	return nil
}

func (s *MemoryStore) GetGame(_ context.Context, gameID uuid.UUID) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	return &game, nil
}

func (s *MemoryStore) GetGameByCode(_ context.Context, code string) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.games {
		if g.GameCode == code {
			game := g
			return &game, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateGame(_ context.Context, gameID uuid.UUID, update models.GameUpdate) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	if !update.IsEmpty() {
		update.Apply(&game)
		game.UpdatedAt = time.Now().UTC()
		s.games[gameID] = game
	}
	return &game, nil
}

func (s *MemoryStore) DeleteGame(_ context.Context, gameID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[gameID]; !ok {
		return ErrNotFound
	}
	delete(s.games, gameID)
	delete(s.flows, gameID)
	for id, p := range s.players {
		if p.GameID == gameID {
			delete(s.players, id)
		}
	}
	return nil
}

func (s *MemoryStore) GetQuizSet(_ context.Context, quizSetID uuid.UUID) (*models.QuizSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.quizSets[quizSetID]
	if !ok || set.DeletedAt.Valid {
		return nil, ErrNotFound
	}
	return &set, nil
}

func (s *MemoryStore) ListQuestions(_ context.Context, quizSetID uuid.UUID) ([]models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	questions := make([]models.Question, 0)
	for _, q := range s.questions {
		if q.QuestionSetID == quizSetID && !q.DeletedAt.Valid {
			questions = append(questions, q)
		}
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].QuestionIndex < questions[j].QuestionIndex
	})
	return questions, nil
}

func (s *MemoryStore) GetQuestion(_ context.Context, questionID uuid.UUID) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[questionID]
	if !ok || q.DeletedAt.Valid {
		return nil, ErrNotFound
	}
	return &q, nil
}

func (s *MemoryStore) ListAnswers(_ context.Context, questionID uuid.UUID) ([]models.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	answers := make([]models.Answer, 0)
	for _, a := range s.answers {
		if a.QuestionID == questionID && !a.DeletedAt.Valid {
			answers = append(answers, a)
		}
	}
	sort.SliceStable(answers, func(i, j int) bool {
		return answers[i].OrderIndex < answers[j].OrderIndex
	})
	return answers, nil
}

func (s *MemoryStore) CreateGameFlow(_ context.Context, flow *models.GameFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flows[flow.GameID]; ok {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	flow.CreatedAt, flow.UpdatedAt = now, now
	s.flows[flow.GameID] = *flow.Clone()
	return nil
}

func (s *MemoryStore) GetGameFlow(_ context.Context, gameID uuid.UUID) (*models.GameFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flow, ok := s.flows[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	return flow.Clone(), nil
}

func (s *MemoryStore) UpdateGameFlow(_ context.Context, flow *models.GameFlow, expectedVersion int64) (*models.GameFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.flows[flow.GameID]
	if !ok {
		return nil, ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, ErrConflict
	}
	next := flow.Clone()
	next.ID = stored.ID
	next.QuizSetID = stored.QuizSetID
	next.TotalQuestions = stored.TotalQuestions
	next.CreatedAt = stored.CreatedAt
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now().UTC()
	s.flows[flow.GameID] = *next
	return next.Clone(), nil
}

func (s *MemoryStore) DeleteGameFlow(_ context.Context, gameID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flows[gameID]; !ok {
		return ErrNotFound
	}
	delete(s.flows, gameID)
	return nil
}

func (s *MemoryStore) CreatePlayer(_ context.Context, player *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.players {
		if p.GameID == player.GameID && p.PlayerName == player.PlayerName {
			return ErrDuplicate
		}
	}
	now := time.Now().UTC()
	player.CreatedAt, player.UpdatedAt = now, now
	if player.Version == 0 {
		player.Version = 1
	}
	s.players[player.ID] = *player
	return nil
}

func (s *MemoryStore) GetPlayer(_ context.Context, gameID, playerID uuid.UUID) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[playerID]
	if !ok || p.GameID != gameID {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListPlayers(_ context.Context, gameID uuid.UUID) ([]models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]models.Player, 0)
	for _, p := range s.players {
		if p.GameID == gameID {
			players = append(players, p)
		}
	}
	sort.SliceStable(players, func(i, j int) bool {
		if !players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].JoinedAt.Before(players[j].JoinedAt)
		}
		return players[i].PlayerName < players[j].PlayerName
	})
	return players, nil
}

func (s *MemoryStore) UpdatePlayerAnswers(_ context.Context, playerID uuid.UUID, expectedVersion int64, report datatypes.JSON, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return ErrNotFound
	}
	if p.Version != expectedVersion {
		return ErrConflict
	}
	p.Version = expectedVersion + 1
	p.AnswerReport = append(datatypes.JSON(nil), report...)
	p.Score = score
	p.UpdatedAt = time.Now().UTC()
	s.players[playerID] = p
	return nil
}

func (s *MemoryStore) DeletePlayer(_ context.Context, gameID, playerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok || p.GameID != gameID {
		return ErrNotFound
	}
	delete(s.players, playerID)
	return nil
}
