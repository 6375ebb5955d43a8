package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizroom-service/internal/app"
	"quizroom-service/internal/config"
	"quizroom-service/internal/infra/memory"
	"quizroom-service/internal/infra/postgres"
	redisinfra "quizroom-service/internal/infra/redis"
	"quizroom-service/internal/llm"
	"quizroom-service/internal/logger"
	transport "quizroom-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// quizCache is the answer-key cache rooms start from; Terminate evicts from it.
type quizCache interface {
	app.QuizRepository
	app.QuizCache
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var store app.QuizStore
	switch {
	case pool != nil:
		store = postgres.NewQuizStore(pool)
		log.Info("quiz documents in postgres")
	case redisClient != nil:
		store = redisinfra.NewQuizStore(redisClient, config.TTLDuration(cfg.Quiz.TTL, 0))
		log.Info("quiz documents in redis", zap.String("addr", cfg.Redis.Addr))
	default:
		store = memory.NewQuizStore()
		log.Warn("no storage configured, quiz documents kept in memory")
	}

	loader := app.NewDocumentLoader(store)
	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	var cache quizCache
	var rooms app.RoomRepository
	if redisClient != nil {
		cache = redisinfra.NewQuizRepository(redisClient, loader, cacheTTL)
		rooms = redisinfra.NewRoomStore(redisClient, redisTTL)
	} else {
		cache = memory.NewQuizRepository(loader, cacheTTL)
		rooms = memory.NewRoomStore()
	}

	var generator app.Generator
	if cfg.LLM.APIKey != "" {
		generator = llm.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, log)
		log.Info("question generation via llm", zap.String("model", cfg.LLM.Model))
	} else {
		generator = memory.NewStaticGenerator(nil)
		log.Warn("llm api key not set, using the built-in question bank")
	}

	solo := app.NewSoloService(store, generator, cfg.Quiz.MaxQuestions, log).WithCache(cache)
	registry := app.NewRegistry(rooms, cache, app.RoomSettings{
		QuestionTimeout:  cfg.Room.QuestionTimeoutDuration(),
		ResultPause:      cfg.Room.ResultPauseDuration(),
		PointsPerCorrect: cfg.Room.PointsPerCorrect,
		MaxPlayers:       cfg.Room.MaxPlayers,
	}, app.SystemClock{}, log)
	defer registry.Close()

	router := transport.NewRouter(registry, solo, transport.WSOptions{
		MessagesPerSecond: cfg.Room.MessagesPerSecond,
		Burst:             cfg.Room.Burst,
	}, log)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting quizroom service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	case err := <-serveErr:
		log.Error("server failed", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
