package cli

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"concept-battle-service/internal/config"
	"concept-battle-service/internal/infra/kafka"
	"concept-battle-service/internal/infra/llm"
	"concept-battle-service/internal/infra/memory"
	redisstore "concept-battle-service/internal/infra/redis"
)

func TestBuildDepsDefaultsToMemory(t *testing.T) {
	deps, cleanup, err := buildDeps(context.Background(), config.Default(), zerolog.Nop())
	if err != nil {
		t.Fatalf("build deps: %v", err)
	}
	defer cleanup()

	if _, ok := deps.Games.(*memory.GameStore); !ok {
		t.Fatalf("expected memory game store, got %T", deps.Games)
	}
	if _, ok := deps.Feed.(*memory.ChangeFeed); !ok {
		t.Fatalf("expected memory change feed, got %T", deps.Feed)
	}
	if _, ok := deps.Notifier.(*memory.NotificationLog); !ok {
		t.Fatalf("expected notification log, got %T", deps.Notifier)
	}
	topics, err := deps.Topics.Topics(context.Background())
	if err != nil || len(topics) == 0 {
		t.Fatalf("expected default topics, got %v %v", topics, err)
	}
}

func TestBuildDepsUsesRedisWhenConfigured(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()
	cfg.Topics.Default = []string{"Rust", "Go"}
	deps, cleanup, err := buildDeps(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("build deps: %v", err)
	}
	defer cleanup()

	if _, ok := deps.Games.(*redisstore.GameStore); !ok {
		t.Fatalf("expected redis game store, got %T", deps.Games)
	}
	if _, ok := deps.Feed.(*redisstore.ChangeFeed); !ok {
		t.Fatalf("expected redis change feed, got %T", deps.Feed)
	}
	topics, _ := deps.Topics.Topics(context.Background())
	if len(topics) != 2 || topics[0] != "Rust" {
		t.Fatalf("expected configured topics, got %v", topics)
	}
}

func TestGameOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Game.AnswerTimeLimit = "15s"
	cfg.Game.MaxParticipants = 4
	opts := gameOptions(cfg)
	if opts.AnswerTimeLimit != 15*time.Second || opts.MaxParticipants != 4 || opts.DeadlineGrace != 5*time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestQuestionGeneratorSelection(t *testing.T) {
	cfg := config.Default()
	if gen := questionGenerator(cfg); gen != nil {
		t.Fatalf("expected no generator without provider, got %T", gen)
	}
	cfg.Questions.Provider = "ollama"
	if _, ok := questionGenerator(cfg).(*llm.Generator); !ok {
		t.Fatalf("expected llm generator for ollama")
	}
	if kafka.DefaultTopic != cfg.Kafka.Topic {
		t.Fatalf("config default topic should match notifier default")
	}
}
