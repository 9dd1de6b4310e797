package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ErrNotConfigured is returned before any network call when the service has
// no API credential.
var ErrNotConfigured = errors.New("generation API key not configured")

type Options struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL points the openai provider at any OpenAI-compatible server.
	BaseURL string
}

type Service struct {
	llm      llms.Model
	provider string
	model    string
	apiKey   string
	logger   *zap.Logger

	// modelsEndpoint overrides the Generative Language API endpoint.
	modelsEndpoint string
}

// New builds the generation service for opts. Without an API key the
// service is still returned, but every call fails with ErrNotConfigured.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Service, error) {
	s := &Service{
		provider: opts.Provider,
		model:    opts.Model,
		apiKey:   opts.APIKey,
		logger:   logger,
	}
	if opts.APIKey == "" {
		logger.Warn("generation API key not set; chat requests will fail", zap.String("provider", opts.Provider))
		return s, nil
	}

	var err error
	switch opts.Provider {
	case ProviderGemini:
		s.llm, err = googleai.New(ctx,
			googleai.WithAPIKey(opts.APIKey),
			googleai.WithDefaultModel(opts.Model),
		)
	case ProviderOpenAI:
		callOpts := []openai.Option{
			openai.WithToken(opts.APIKey),
			openai.WithModel(opts.Model),
		}
		if opts.BaseURL != "" {
			callOpts = append(callOpts, openai.WithBaseURL(opts.BaseURL))
		}
		s.llm, err = openai.New(callOpts...)
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", opts.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s client: %w", opts.Provider, err)
	}
	return s, nil
}

// NewService wraps an already built model. A nil model behaves like a
// missing credential.
func NewService(model llms.Model, provider, modelName string, logger *zap.Logger) *Service {
	return &Service{llm: model, provider: provider, model: modelName, logger: logger}
}

func (s *Service) Configured() bool {
	return s.llm != nil
}

func (s *Service) Provider() string {
	return s.provider
}

func (s *Service) Model() string {
	return s.model
}

// Generate sends prompt to the model once and returns the generated text.
// Upstream errors are returned unwrapped so ClassifyError sees their text.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}

	s.logger.Info("generating response", zap.Int("prompt_length", len(prompt)), zap.String("model", s.model))
	completion, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt)
	if err != nil {
		return "", err
	}
	s.logger.Info("generated response", zap.Int("response_length", len(completion)))
	return completion, nil
}

func (s *Service) Close() error {
	if c, ok := s.llm.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
