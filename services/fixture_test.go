package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"livequiz/models"
	"livequiz/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	Room    string
	Event   string
	Payload gin.H
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, roomID string, event string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, _ := payload.(gin.H)
	b.events = append(b.events, recordedEvent{Room: roomID, Event: event, Payload: p})
	return b.err
}

func (b *recordingBroadcaster) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.events))
	for _, e := range b.events {
		names = append(names, e.Event)
	}
	return names
}

func (b *recordingBroadcaster) last(event string) (recordedEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].Event == event {
			return b.events[i], true
		}
	}
	return recordedEvent{}, false
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// failingStore lets a test break single store calls.
type failingStore struct {
	store.Store
	listPlayersErr    error
	createGameFlowErr error
	flowGameIDs       []uuid.UUID

	// afterGetGameFlow and afterGetPlayer run once, right after the next
	// read, to interleave another request with the caller.
	afterGetGameFlow func(flow *models.GameFlow)
	afterGetPlayer   func()
}

func (s *failingStore) GetGameFlow(ctx context.Context, gameID uuid.UUID) (*models.GameFlow, error) {
	flow, err := s.Store.GetGameFlow(ctx, gameID)
	if hook := s.afterGetGameFlow; hook != nil && err == nil {
		s.afterGetGameFlow = nil
		hook(flow.Clone())
	}
	return flow, err
}

func (s *failingStore) GetPlayer(ctx context.Context, gameID, playerID uuid.UUID) (*models.Player, error) {
	player, err := s.Store.GetPlayer(ctx, gameID, playerID)
	if hook := s.afterGetPlayer; hook != nil && err == nil {
		s.afterGetPlayer = nil
		hook()
	}
	return player, err
}

func (s *failingStore) ListPlayers(ctx context.Context, gameID uuid.UUID) ([]models.Player, error) {
	if s.listPlayersErr != nil {
		return nil, s.listPlayersErr
	}
	return s.Store.ListPlayers(ctx, gameID)
}

func (s *failingStore) CreateGameFlow(ctx context.Context, flow *models.GameFlow) error {
	s.flowGameIDs = append(s.flowGameIDs, flow.GameID)
	if s.createGameFlowErr != nil {
		return s.createGameFlowErr
	}
	return s.Store.CreateGameFlow(ctx, flow)
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	mem    *store.MemoryStore
	store  *failingStore
	clock  *clockwork.FakeClock
	events *recordingBroadcaster
	flows  *GameFlowService
	svc    *GameService
	hostID uuid.UUID
	set    models.QuizSet
}

var errBoom = errors.New("boom")

// newFixture builds a service over a memory store holding one quiz set with
// questionCount questions of 10s display and 30s answering time. Every
// question has a correct answer "A" and a wrong answer "B".
func newFixture(t *testing.T, questionCount int) *fixture {
	t.Helper()

	mem := store.NewMemoryStore()
	hostID := uuid.New()
	set := models.QuizSet{ID: uuid.New(), UserID: hostID, Title: "Fixture"}
	for i := 0; i < questionCount; i++ {
		q := models.Question{
			ID:               uuid.New(),
			QuestionText:     "question",
			QuestionIndex:    i,
			ShowQuestionTime: 10,
			AnsweringTime:    30,
			Points:           100,
			Answers: []models.Answer{
				{ID: uuid.New(), AnswerText: "A", IsCorrect: true, OrderIndex: 0},
				{ID: uuid.New(), AnswerText: "B", OrderIndex: 1},
			},
		}
		if i == 0 {
			title, text := "Why", "Because."
			q.ExplanationTitle = &title
			q.ExplanationText = &text
			q.ShowExplanationTime = 5
		}
		set.Questions = append(set.Questions, q)
	}
	mem.AddQuizSet(set)

	st := &failingStore{Store: mem}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	events := &recordingBroadcaster{}
	flows := NewGameFlowService(st, nil)

	return &fixture{
		t:      t,
		ctx:    context.Background(),
		mem:    mem,
		store:  st,
		clock:  clock,
		events: events,
		flows:  flows,
		svc:    NewGameService(st, flows, events, clock),
		hostID: hostID,
		set:    set,
	}
}

func (f *fixture) question(i int) models.Question {
	return f.set.Questions[i]
}

func (f *fixture) answerID(question, answer int) uuid.UUID {
	return f.set.Questions[question].Answers[answer].ID
}

func (f *fixture) createGame() *models.Game {
	f.t.Helper()
	game, _, err := f.svc.CreateGame(f.ctx, f.hostID, &CreateGameRequest{QuizSetID: f.set.ID.String()})
	require.NoError(f.t, err)
	return game
}

func (f *fixture) startedGame() *models.Game {
	f.t.Helper()
	game := f.createGame()
	_, err := f.svc.StartGame(f.ctx, f.hostID, game.ID)
	require.NoError(f.t, err)
	f.events.reset()
	return game
}

func (f *fixture) startQuestion(gameID uuid.UUID, index int) *StartQuestionResult {
	f.t.Helper()
	idx := index
	result, err := f.svc.StartQuestion(f.ctx, f.hostID, gameID, &StartQuestionRequest{
		QuestionID:    f.question(index).ID.String(),
		QuestionIndex: &idx,
	})
	require.NoError(f.t, err)
	return result
}

func (f *fixture) flow(gameID uuid.UUID) *models.GameFlow {
	f.t.Helper()
	flow, err := f.mem.GetGameFlow(f.ctx, gameID)
	require.NoError(f.t, err)
	return flow
}

func (f *fixture) game(gameID uuid.UUID) *models.Game {
	f.t.Helper()
	game, err := f.mem.GetGame(f.ctx, gameID)
	require.NoError(f.t, err)
	return game
}

// addPlayer joins a player whose report holds the given answers.
func (f *fixture) addPlayer(gameID uuid.UUID, name string, score int, answers ...models.AnswerRecord) *models.Player {
	f.t.Helper()
	data, err := models.AnswerReport{Questions: answers}.Encode()
	require.NoError(f.t, err)
	p := &models.Player{
		ID:           uuid.New(),
		GameID:       gameID,
		PlayerName:   name,
		Score:        score,
		AnswerReport: data,
		JoinedAt:     f.clock.Now(),
	}
	require.NoError(f.t, f.mem.CreatePlayer(f.ctx, p))
	return p
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, CodeOf(err), "unexpected error: %v", err)
}
