package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/estimation-server-go/internal/config"
	"github.com/pointdeck/estimation-server-go/internal/database"
	"github.com/pointdeck/estimation-server-go/internal/handler"
	"github.com/pointdeck/estimation-server-go/internal/jobs"
	"github.com/pointdeck/estimation-server-go/internal/middleware"
	"github.com/pointdeck/estimation-server-go/internal/redis"
	"github.com/pointdeck/estimation-server-go/internal/repository"
	"github.com/pointdeck/estimation-server-go/internal/service"
	"github.com/pointdeck/estimation-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()

	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(db.DB)
	participantRepo := repository.NewParticipantRepository(db.DB)
	storyRepo := repository.NewUserStoryRepository(db.DB)
	taskRepo := repository.NewTaskRepository(db.DB)
	voteRepo := repository.NewVoteRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	sessionService := service.NewSessionService(sessionRepo, participantRepo, broker, cfg.VotingTimerSeconds)
	backlogService := service.NewBacklogService(storyRepo, taskRepo, broker)
	roundService := service.NewRoundService(db, sessionRepo, participantRepo, storyRepo, taskRepo, voteRepo, broker)
	snapshotService := service.NewSnapshotService(sessionRepo, participantRepo, storyRepo, taskRepo, voteRepo)

	participantMiddleware := middleware.NewParticipantMiddleware(sessionService)

	sessionHandler := handler.NewSessionHandler(sessionService, snapshotService)
	backlogHandler := handler.NewBacklogHandler(backlogService)
	roundHandler := handler.NewRoundHandler(roundService)
	eventsHandler := handler.NewEventsHandler(broker, snapshotService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", sessionHandler.CreateSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Post("/join", sessionHandler.JoinSession)

			r.Group(func(r chi.Router) {
				r.Use(participantMiddleware.Handler)

				r.Get("/state", sessionHandler.GetState)
				r.Get("/events", eventsHandler.ServeHTTP)
				r.Post("/leave", sessionHandler.LeaveSession)
				r.Post("/end", roundHandler.EndVoting)

				r.Post("/stories", backlogHandler.AddUserStory)
				r.Post("/stories/{storyID}/tasks", backlogHandler.AddTask)
				r.Post("/stories/{storyID}/start", roundHandler.StartVoting)
				r.Post("/stories/{storyID}/revote", roundHandler.Revote)

				r.Post("/tasks/{taskID}/vote", roundHandler.CastVote)
				r.Post("/tasks/{taskID}/estimate", roundHandler.SetFinalEstimate)
			})
		})
	})

	cleanupJob := jobs.NewCleanupJob(sessionRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
