package handlers

import (
	"net/http"
	"time"

	"livequiz/middleware"
	"livequiz/models"
	"livequiz/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type GameHandler struct {
	gameService *services.GameService
}

func NewGameHandler(gameService *services.GameService) *GameHandler {
	return &GameHandler{gameService: gameService}
}

// hostRequest resolves the caller and the game id of a host route, writing
// the error response itself when either is missing.
func hostRequest(c *gin.Context) (userID, gameID uuid.UUID, ok bool) {
	userID, ok = middleware.UserID(c)
	if !ok {
		writeError(c, &services.Error{Code: services.CodeUnauthorized, Message: "user not authenticated"})
		return uuid.Nil, uuid.Nil, false
	}
	gameID, ok = gameParam(c)
	return userID, gameID, ok
}

func gameParam(c *gin.Context) (uuid.UUID, bool) {
	gameID, err := services.ParseID(c.Param("gameId"), "gameId")
	if err != nil {
		writeError(c, err)
		return uuid.Nil, false
	}
	return gameID, true
}

type gameWithFlow struct {
	*models.Game
	GameFlow *models.GameFlow `json:"gameFlow"`
}

func (h *GameHandler) CreateGame(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		writeError(c, &services.Error{Code: services.CodeUnauthorized, Message: "user not authenticated"})
		return
	}

	var req services.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	game, flow, err := h.gameService.CreateGame(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gameWithFlow{Game: game, GameFlow: flow})
}

func (h *GameHandler) StartGame(c *gin.Context) {
	userID, gameID, ok := hostRequest(c)
	if !ok {
		return
	}

	result, err := h.gameService.StartGame(c.Request.Context(), userID, gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, struct {
		gameWithFlow
		InitializedQuestions services.InitializedQuestions `json:"initializedQuestions"`
	}{
		gameWithFlow:         gameWithFlow{Game: result.Game, GameFlow: result.GameFlow},
		InitializedQuestions: result.InitializedQuestions,
	})
}

func (h *GameHandler) StartQuestion(c *gin.Context) {
	userID, gameID, ok := hostRequest(c)
	if !ok {
		return
	}

	var req services.StartQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	result, err := h.gameService.StartQuestion(c.Request.Context(), userID, gameID, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, struct {
		*models.GameFlow
		ServerTime time.Time `json:"server_time"`
		StartsAt   time.Time `json:"starts_at"`
		EndsAt     time.Time `json:"ends_at"`
		DurationMs int64     `json:"duration_ms"`
	}{
		GameFlow:   result.GameFlow,
		ServerTime: result.ServerTime,
		StartsAt:   result.StartsAt,
		EndsAt:     result.EndsAt,
		DurationMs: result.DurationMs,
	})
}

func (h *GameHandler) RevealAnswers(c *gin.Context) {
	userID, gameID, ok := hostRequest(c)
	if !ok {
		return
	}

	result, err := h.gameService.RevealAnswers(c.Request.Context(), userID, gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "answers revealed",
		"gameFlow":    result.GameFlow,
		"answerStats": result.AnswerStats,
	})
}

func (h *GameHandler) ShowExplanation(c *gin.Context) {
	userID, gameID, ok := hostRequest(c)
	if !ok {
		return
	}

	explanation, err := h.gameService.ShowExplanation(c.Request.Context(), userID, gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "explanation shown",
		"explanation": explanation,
	})
}

func (h *GameHandler) HideExplanation(c *gin.Context) {
	userID, gameID, ok := hostRequest(c)
	if !ok {
		return
	}

	if err := h.gameService.HideExplanation(c.Request.Context(), userID, gameID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "explanation hidden"})
}

func (h *GameHandler) NextQuestion(c *gin.Context) {
	userID, gameID, ok := hostRequest(c)
	if !ok {
		return
	}

	result, err := h.gameService.NextQuestion(c.Request.Context(), userID, gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	if result.IsComplete {
		c.JSON(http.StatusOK, gin.H{
			"message":    "game completed",
			"gameFlow":   result.GameFlow,
			"isComplete": true,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "moved to next question",
		"gameFlow":     result.GameFlow,
		"nextQuestion": result.NextQuestion,
		"isComplete":   false,
	})
}

func (h *GameHandler) UpdateStatus(c *gin.Context) {
	userID, gameID, ok := hostRequest(c)
	if !ok {
		return
	}

	var req services.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	game, err := h.gameService.UpdateStatus(c.Request.Context(), userID, gameID, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (h *GameHandler) SetLocked(c *gin.Context) {
	userID, gameID, ok := hostRequest(c)
	if !ok {
		return
	}

	var req services.LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	game, err := h.gameService.SetLocked(c.Request.Context(), userID, gameID, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (h *GameHandler) KickPlayer(c *gin.Context) {
	userID, gameID, ok := hostRequest(c)
	if !ok {
		return
	}
	playerID, err := services.ParseID(c.Param("playerId"), "playerId")
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.gameService.KickPlayer(c.Request.Context(), userID, gameID, playerID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "player removed"})
}

func (h *GameHandler) DeleteGame(c *gin.Context) {
	userID, gameID, ok := hostRequest(c)
	if !ok {
		return
	}

	if err := h.gameService.DeleteGame(c.Request.Context(), userID, gameID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "game deleted"})
}

func (h *GameHandler) GetGame(c *gin.Context) {
	gameID, ok := gameParam(c)
	if !ok {
		return
	}

	game, err := h.gameService.GetGame(c.Request.Context(), gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (h *GameHandler) GetState(c *gin.Context) {
	gameID, ok := gameParam(c)
	if !ok {
		return
	}

	state, err := h.gameService.GetState(c.Request.Context(), gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *GameHandler) GetCurrentQuestion(c *gin.Context) {
	gameID, ok := gameParam(c)
	if !ok {
		return
	}

	current, err := h.gameService.GetCurrentQuestion(c.Request.Context(), gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, current)
}

func (h *GameHandler) GetExplanation(c *gin.Context) {
	gameID, ok := gameParam(c)
	if !ok {
		return
	}
	questionID, err := services.ParseID(c.Param("questionId"), "questionId")
	if err != nil {
		writeError(c, err)
		return
	}

	explanation, err := h.gameService.GetExplanation(c.Request.Context(), gameID, questionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, explanation)
}

func (h *GameHandler) Leaderboard(c *gin.Context) {
	gameID, ok := gameParam(c)
	if !ok {
		return
	}

	entries, err := h.gameService.Leaderboard(c.Request.Context(), gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (h *GameHandler) JoinGame(c *gin.Context) {
	var req services.JoinGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	player, err := h.gameService.JoinGame(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, player)
}

func (h *GameHandler) SubmitAnswer(c *gin.Context) {
	gameID, ok := gameParam(c)
	if !ok {
		return
	}

	var req services.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	result, err := h.gameService.SubmitAnswer(c.Request.Context(), gameID, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
