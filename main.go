package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livequiz/config"
	"livequiz/handlers"
	"livequiz/routes"
	"livequiz/services"
	"livequiz/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// demoHostID owns the seeded quiz of the memory backend.
var demoHostID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.InitLogger(cfg); err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	checks := map[string]routes.HealthCheck{"store": st.Ping}

	var redisClient *redis.Client
	if cfg.StoreBackend == config.StoreBackendPostgres || cfg.RealtimeBackend == config.RealtimeBackendRedis {
		redisClient, err = config.InitRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var cache services.FlowCache
	if redisClient != nil {
		cache = services.NewRedisFlowCache(redisClient, cfg.FlowCacheTTL)
	} else {
		cache = services.NewMemoryFlowCache()
	}
	flows := services.NewGameFlowService(st, cache)

	// The hub needs the game service for state sync and the game service
	// needs a broadcaster, so the hub's provider is set through a closure.
	var gameService *services.GameService
	hub := services.NewHub(stateFunc(func(ctx context.Context, gameID uuid.UUID) (*services.GameState, error) {
		return gameService.GetState(ctx, gameID)
	}))

	var broadcasters services.MultiBroadcaster
	var relay *services.RedisRelay
	if cfg.RealtimeBackend == config.RealtimeBackendRedis {
		broadcasters = append(broadcasters, services.NewRedisBroadcaster(redisClient, services.DefaultRelayChannelPrefix))
		relay = services.NewRedisRelay(redisClient, services.DefaultRelayChannelPrefix, hub)
	} else {
		broadcasters = append(broadcasters, hub)
	}
	if cfg.NATSURL != "" {
		nb, err := services.NewNATSBroadcaster(cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			return err
		}
		defer nb.Close()
		broadcasters = append(broadcasters, nb)
	}

	gameService = services.NewGameService(st, flows, broadcasters, clockwork.NewRealClock())
	gameHandler := handlers.NewGameHandler(gameService)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	routes.SetupRoutes(router, gameHandler, hub, gameService, routes.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		HealthChecks:   checks,
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.StoreBackend).
			Str("realtime", cfg.RealtimeBackend).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening on %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		mem := store.NewMemoryStore()
		set := mem.SeedDemoQuiz(demoHostID)
		log.Info().
			Str("quiz_set_id", set.ID.String()).
			Str("host_id", demoHostID.String()).
			Msg("memory store seeded with demo quiz")
		return mem, nil
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	gs := store.NewGormStore(db)
	if err := gs.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return gs, nil
}

type stateFunc func(ctx context.Context, gameID uuid.UUID) (*services.GameState, error)

func (f stateFunc) GetState(ctx context.Context, gameID uuid.UUID) (*services.GameState, error) {
	return f(ctx, gameID)
}
