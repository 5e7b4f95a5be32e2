package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Game struct {
		MinParticipants int    `yaml:"min_participants"`
		MaxParticipants int    `yaml:"max_participants"`
		AnswerTimeLimit string `yaml:"answer_time_limit"`
		DeadlineGrace   string `yaml:"deadline_grace"`
		ListLimit       int    `yaml:"list_limit"`
		NotifyTimeout   string `yaml:"notify_timeout"`
	} `yaml:"game"`
	Questions struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		Timeout  string `yaml:"timeout"`
		OpenAI   struct {
			APIKey  string `yaml:"api_key"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"openai"`
		Ollama struct {
			Host string `yaml:"host"`
		} `yaml:"ollama"`
	} `yaml:"questions"`
	Topics struct {
		TTL     string   `yaml:"ttl"`
		Default []string `yaml:"default"`
	} `yaml:"topics"`
	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Worker struct {
		Enabled   bool   `yaml:"enabled"`
		Interval  string `yaml:"interval"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"worker"`
}

// Load reads YAML config from path, expanding ${VAR} references first.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a configuration with only defaults applied: in-memory
// stores, no broker, fallback questions.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Game.MinParticipants == 0 {
		c.Game.MinParticipants = 2
	}
	if c.Game.MaxParticipants == 0 {
		c.Game.MaxParticipants = 10
	}
	if c.Game.AnswerTimeLimit == "" {
		c.Game.AnswerTimeLimit = "20s"
	}
	if c.Game.DeadlineGrace == "" {
		c.Game.DeadlineGrace = "5s"
	}
	if c.Game.ListLimit == 0 {
		c.Game.ListLimit = 20
	}
	if c.Questions.Timeout == "" {
		c.Questions.Timeout = "8s"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "battle-announcements"
	}
	if c.Worker.Interval == "" {
		c.Worker.Interval = "1s"
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 100
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
