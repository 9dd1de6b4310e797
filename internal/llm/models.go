package llm

import (
	"context"
	"errors"
	"fmt"
	"slices"

	generativelanguage "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	"cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const generateContentMethod = "generateContent"

type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
}

// ListModels returns the models the configured credential can generate
// content with. Only the gemini provider can enumerate; other providers
// report their configured model.
func (s *Service) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if s.provider != ProviderGemini {
		return []ModelInfo{{Name: s.model}}, nil
	}
	if s.apiKey == "" {
		return nil, ErrNotConfigured
	}

	opts := []option.ClientOption{option.WithAPIKey(s.apiKey)}
	if s.modelsEndpoint != "" {
		opts = append(opts, option.WithEndpoint(s.modelsEndpoint))
	}
	client, err := generativelanguage.NewModelRESTClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	defer client.Close()

	var out []ModelInfo
	it := client.ListModels(ctx, &generativelanguagepb.ListModelsRequest{})
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		if !slices.Contains(m.GetSupportedGenerationMethods(), generateContentMethod) {
			continue
		}
		out = append(out, ModelInfo{
			Name:        m.GetName(),
			DisplayName: m.GetDisplayName(),
			Description: m.GetDescription(),
		})
	}
	return out, nil
}
