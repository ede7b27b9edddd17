package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:"127.0.0.1:8080"`
	DBPath     string `env:"DB_PATH"     envDefault:"db.sqlite"`

	TelegramToken string  `env:"TELEGRAM_TOKEN"`
	AllowedUsers  []int64 `env:"ALLOWED_USERS"`

	DefaultAPIKey    string `env:"DEFAULT_API_KEY"`
	RelayAPIKey      string `env:"OPENROUTER_API_KEY"`
	RelayUpstreamURL string `env:"RELAY_UPSTREAM_URL" envDefault:"https://api.openrouter.ai/v1/chat/completions"`

	PrimaryBaseURL   string `env:"PRIMARY_BASE_URL"   envDefault:"https://api.openrouter.ai/v1/"`
	SecondaryBaseURL string `env:"SECONDARY_BASE_URL" envDefault:"https://router.huggingface.co/v1/"`
	SecondaryModel   string `env:"SECONDARY_MODEL"    envDefault:"meta-llama/Meta-Llama-3.1-8B-Instruct"`
	SummarizerURL    string `env:"SUMMARIZER_URL"     envDefault:"https://router.huggingface.co/hf-inference/models/facebook/bart-large-cnn"`

	MaxChunkChars        int           `env:"MAX_CHUNK_CHARS"        envDefault:"4000"`
	AttemptTimeout       time.Duration `env:"ATTEMPT_TIMEOUT"        envDefault:"60s"`
	InferSummarizeIntent bool          `env:"INFER_SUMMARIZE_INTENT" envDefault:"false"`
	DiagnosticsSpec      string        `env:"DIAGNOSTICS_SPEC"       envDefault:"*/15 * * * *"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.MaxChunkChars <= 0 {
		return Config{}, fmt.Errorf("MAX_CHUNK_CHARS must be positive, got %d", cfg.MaxChunkChars)
	}

	if cfg.AttemptTimeout <= 0 {
		return Config{}, fmt.Errorf("ATTEMPT_TIMEOUT must be positive, got %s", cfg.AttemptTimeout)
	}

	return cfg, nil
}
