package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("BATTLE_REDIS_ADDR", "redis:6379")
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
redis:
  addr: ${BATTLE_REDIS_ADDR}
game:
  max_participants: 6
kafka:
  enabled: true
  brokers: ["kafka:9092"]
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("expected expanded redis addr, got %q", cfg.Redis.Addr)
	}
	if cfg.Game.MaxParticipants != 6 || cfg.Game.MinParticipants != 2 {
		t.Fatalf("unexpected participant bounds %d..%d", cfg.Game.MinParticipants, cfg.Game.MaxParticipants)
	}
	if cfg.Kafka.Topic != "battle-announcements" || len(cfg.Kafka.Brokers) != 1 {
		t.Fatalf("unexpected kafka config %+v", cfg.Kafka)
	}
	if TTLDuration(cfg.Game.AnswerTimeLimit, 0) != 20*time.Second {
		t.Fatalf("expected default answer time limit, got %s", cfg.Game.AnswerTimeLimit)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTTLDurationFallsBack(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty, got %s", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for garbage, got %s", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
}
