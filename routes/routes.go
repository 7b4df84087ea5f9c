package routes

import (
	"context"
	"net/http"
	"time"

	"livequiz/handlers"
	"livequiz/middleware"
	"livequiz/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
}

func SetupRoutes(
	router *gin.Engine,
	gameHandler *handlers.GameHandler,
	hub *services.Hub,
	gameService *services.GameService,
	opts Options,
) {
	router.Use(middleware.RequestIDMiddleware(), middleware.Logger())

	api := router.Group("/")
	api.Use(middleware.Timeout(opts.RequestTimeout))
	{
		// Host routes
		host := api.Group("/games")
		host.Use(middleware.AuthMiddleware(opts.JWTSecret))
		{
			host.POST("", gameHandler.CreateGame)
			host.POST("/:gameId/start", gameHandler.StartGame)
			host.POST("/:gameId/questions/start", gameHandler.StartQuestion)
			host.POST("/:gameId/questions/reveal", gameHandler.RevealAnswers)
			host.POST("/:gameId/questions/explanation/show", gameHandler.ShowExplanation)
			host.POST("/:gameId/questions/explanation/hide", gameHandler.HideExplanation)
			host.POST("/:gameId/questions/next", gameHandler.NextQuestion)
			host.PATCH("/:gameId/status", gameHandler.UpdateStatus)
			host.PATCH("/:gameId/lock", gameHandler.SetLocked)
			host.DELETE("/:gameId/players/:playerId", gameHandler.KickPlayer)
			host.DELETE("/:gameId", gameHandler.DeleteGame)
		}

		// Public game routes
		games := api.Group("/games")
		{
			games.POST("/join", gameHandler.JoinGame)
			games.GET("/:gameId", gameHandler.GetGame)
			games.GET("/:gameId/state", gameHandler.GetState)
			games.GET("/:gameId/leaderboard", gameHandler.Leaderboard)
			games.GET("/:gameId/questions/current", gameHandler.GetCurrentQuestion)
			games.GET("/:gameId/questions/:questionId/explanation", gameHandler.GetExplanation)
			games.POST("/:gameId/answers", gameHandler.SubmitAnswer)
		}

		api.GET("/health", healthHandler(opts.HealthChecks))
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}

	// Room subscription for hosts and players. Clients only listen.
	router.GET("/ws/:gameId", func(c *gin.Context) {
		gameID, err := services.ParseID(c.Param("gameId"), "gameId")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": services.CodeInvalidPayload, "message": "invalid game id"})
			return
		}
		if _, err := gameService.GetGame(c.Request.Context(), gameID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": services.CodeNotFound, "message": "game not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Str("game_id", gameID.String()).Msg("websocket upgrade failed")
			return
		}

		client := hub.RegisterClient(c.Request.Context(), conn, gameID)
		log.Debug().Str("game_id", gameID.String()).Str("client_id", client.ID()).Msg("websocket connection established")
	})
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		results := gin.H{}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.Error().Err(err).Str("name", name).Msg("health check failed")
				results[name] = gin.H{"status": "error"}
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = gin.H{"status": "ok"}
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "checks": results})
	}
}

// originChecker allows any origin when none are configured or "*" is listed.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}
