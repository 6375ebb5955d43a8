package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log   LogConfig `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz QuizConfig `yaml:"quiz"`
	Room RoomConfig `yaml:"room"`
	LLM  LLMConfig  `yaml:"llm"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type QuizConfig struct {
	// TTL bounds how long a quiz document lives in Redis; empty means no expiry.
	TTL          string `yaml:"ttl"`
	CacheTTL     string `yaml:"cacheTTL"`
	MaxQuestions int    `yaml:"maxQuestions"`
}

type RoomConfig struct {
	QuestionTimeout   string  `yaml:"questionTimeout"`
	ResultPause       string  `yaml:"resultPause"`
	PointsPerCorrect  int     `yaml:"pointsPerCorrect"`
	MaxPlayers        int     `yaml:"maxPlayers"`
	MessagesPerSecond float64 `yaml:"messagesPerSecond"`
	Burst             int     `yaml:"burst"`
}

type LLMConfig struct {
	BaseURL string `yaml:"baseURL"`
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
}

// Load reads YAML config from path and fills defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.Defaults()
	return cfg, nil
}

// Defaults fills zero values with the service defaults.
func (c *Config) Defaults() {
	if c.Quiz.MaxQuestions <= 0 {
		c.Quiz.MaxQuestions = 30
	}
	if c.Room.PointsPerCorrect <= 0 {
		c.Room.PointsPerCorrect = 10
	}
	if c.Room.MaxPlayers <= 0 {
		c.Room.MaxPlayers = 16
	}
	if c.Room.MessagesPerSecond <= 0 {
		c.Room.MessagesPerSecond = 5
	}
	if c.Room.Burst <= 0 {
		c.Room.Burst = 10
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
}

// QuestionTimeoutDuration is the per-question collection deadline.
func (r RoomConfig) QuestionTimeoutDuration() time.Duration {
	return TTLDuration(r.QuestionTimeout, 20*time.Second)
}

// ResultPauseDuration is how long a round result is shown before the room moves on.
func (r RoomConfig) ResultPauseDuration() time.Duration {
	return TTLDuration(r.ResultPause, 4*time.Second)
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
