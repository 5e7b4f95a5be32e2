package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"concept-battle-service/internal/app"
	"concept-battle-service/internal/config"
	"concept-battle-service/internal/infra/kafka"
	"concept-battle-service/internal/infra/llm"
	"concept-battle-service/internal/infra/llm/ollama"
	"concept-battle-service/internal/infra/llm/openai"
	"concept-battle-service/internal/infra/memory"
	pgstore "concept-battle-service/internal/infra/postgres"
	redisstore "concept-battle-service/internal/infra/redis"
	"concept-battle-service/internal/logging"
	transport "concept-battle-service/internal/transport/http"
	"concept-battle-service/internal/worker"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the battle server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	deps, cleanup, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	service := app.NewGameService(deps, gameOptions(cfg))
	defer service.Wait()

	api := transport.NewAPI(service, transport.NewWSHandler(service, logger), logger)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.Router(),
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("starting battle service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Worker.Enabled {
		deadlines := worker.NewDeadlineWorker(service,
			config.TTLDuration(cfg.Worker.Interval, time.Second), cfg.Worker.BatchSize, logger)
		deadlines.Start(gctx)
		defer deadlines.Stop()
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func gameOptions(cfg config.Config) app.Options {
	def := app.DefaultOptions()
	return app.Options{
		MinParticipants: cfg.Game.MinParticipants,
		MaxParticipants: cfg.Game.MaxParticipants,
		AnswerTimeLimit: config.TTLDuration(cfg.Game.AnswerTimeLimit, def.AnswerTimeLimit),
		DeadlineGrace:   config.TTLDuration(cfg.Game.DeadlineGrace, def.DeadlineGrace),
		ListLimit:       cfg.Game.ListLimit,
		NotifyTimeout:   config.TTLDuration(cfg.Game.NotifyTimeout, def.NotifyTimeout),
	}
}

// buildDeps picks a backend per concern: Postgres, then Redis, then memory
// for games; Redis over Postgres for the change feed and topic cache.
func buildDeps(ctx context.Context, cfg config.Config, logger zerolog.Logger) (app.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return app.Deps{}, cleanup, err
		}
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			cleanup()
			return app.Deps{}, func() {}, err
		}
		closers = append(closers, pool.Close)
	}

	deps := app.Deps{Logger: logger}

	switch {
	case pool != nil:
		deps.Games = pgstore.NewGameStore(pool)
	case redisClient != nil:
		deps.Games = redisstore.NewGameStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
	default:
		deps.Games = memory.NewGameStore()
	}

	if redisClient != nil {
		deps.Feed = redisstore.NewChangeFeed(redisClient, deps.Games, logger)
	} else {
		deps.Feed = memory.NewChangeFeed()
	}

	defaults := cfg.Topics.Default
	if len(defaults) == 0 {
		defaults = app.DefaultTopics
	}
	var loader memory.TopicLoader = memory.NewStaticTopicLoader(defaults)
	if pool != nil {
		loader = pgstore.NewTopicLoader(pool)
	}
	topicsTTL := config.TTLDuration(cfg.Topics.TTL, 10*time.Minute)
	if redisClient != nil {
		deps.Topics = redisstore.NewTopicCatalog(redisClient, loader, topicsTTL, logger)
	} else {
		deps.Topics = memory.NewTopicCatalog(loader, topicsTTL)
	}

	deps.Questions = app.NewQuestionSource(questionGenerator(cfg),
		config.TTLDuration(cfg.Questions.Timeout, 8*time.Second), logger)

	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			cleanup()
			return app.Deps{}, func() {}, err
		}
		notifier := kafka.NewNotifier(producer, cfg.Kafka.Topic, logger)
		closers = append(closers, func() { _ = notifier.Close() })
		deps.Notifier = notifier
	} else {
		deps.Notifier = memory.NewNotificationLog(logger)
	}

	return deps, cleanup, nil
}

// questionGenerator returns nil when no provider is configured, which makes
// every question the fallback.
func questionGenerator(cfg config.Config) app.QuestionGenerator {
	switch cfg.Questions.Provider {
	case "openai":
		client := openai.New(cfg.Questions.OpenAI.APIKey, cfg.Questions.OpenAI.BaseURL)
		return llm.NewGenerator(client, cfg.Questions.Model)
	case "ollama":
		return llm.NewGenerator(ollama.New(cfg.Questions.Ollama.Host), cfg.Questions.Model)
	default:
		return nil
	}
}
