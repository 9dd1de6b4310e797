package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/RichardoC/padchat/internal/auth"
	"github.com/RichardoC/padchat/internal/llm"
)

type Config struct {
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8100"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"padchat.db"`

	// Auth service
	SupabaseURL       string `env:"SUPABASE_URL"`
	SupabaseAnonKey   string `env:"SUPABASE_ANON_KEY"`
	SessionCookieName string `env:"SESSION_COOKIE_NAME"`
	CookieSecure      bool   `env:"COOKIE_SECURE" envDefault:"false"`

	// Generation
	GenerationProvider string `env:"GENERATION_PROVIDER" envDefault:"gemini"`
	GenerationModel    string `env:"GENERATION_MODEL" envDefault:"gemini-2.5-flash"`
	GoogleAPIKey       string `env:"GOOGLE_API_KEY"`
	OpenAIAPIKey       string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL      string `env:"OPENAI_BASE_URL"`

	StaticDir string `env:"STATIC_DIR" envDefault:"web"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// Load reads the configuration from the environment, after applying any
// .env file found in the working directory. Variables already set in the
// environment take precedence over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.SessionCookieName == "" {
		cfg.SessionCookieName = auth.CookieNameFor(cfg.SupabaseURL)
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without. The
// generation credential is optional and reported per request instead.
func (c *Config) Validate() error {
	var err error
	if c.SupabaseURL == "" {
		err = multierr.Append(err, errors.New("SUPABASE_URL is required"))
	}
	if c.SupabaseAnonKey == "" {
		err = multierr.Append(err, errors.New("SUPABASE_ANON_KEY is required"))
	}
	switch c.GenerationProvider {
	case llm.ProviderGemini, llm.ProviderOpenAI:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown GENERATION_PROVIDER %q", c.GenerationProvider))
	}
	if _, lerr := zapcore.ParseLevel(c.LogLevel); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("invalid LOG_LEVEL: %w", lerr))
	}
	return err
}

// LLMOptions returns the generation settings for the selected provider.
func (c *Config) LLMOptions() llm.Options {
	opts := llm.Options{
		Provider: c.GenerationProvider,
		Model:    c.GenerationModel,
	}
	switch c.GenerationProvider {
	case llm.ProviderOpenAI:
		opts.APIKey = c.OpenAIAPIKey
		opts.BaseURL = c.OpenAIBaseURL
	default:
		opts.APIKey = c.GoogleAPIKey
	}
	return opts
}

func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
