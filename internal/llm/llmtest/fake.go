// Package llmtest provides an in-memory llms.Model for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Model answers every prompt with Reply, or fails with Err, and records the
// prompts it saw.
type Model struct {
	Reply string
	Err   error

	mu      sync.Mutex
	prompts []string
}

var _ llms.Model = (*Model)(nil)

func (m *Model) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				m.prompts = append(m.prompts, text.Text)
			}
		}
	}
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.Reply}},
	}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Prompts returns the prompts received so far.
func (m *Model) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
