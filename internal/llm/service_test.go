package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RichardoC/padchat/internal/llm/llmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt("", []Turn{{Role: "user", Content: "Hi"}})
	require.NoError(t, err)
	assert.Equal(t, "User: Hi\nAssistant:", prompt)

	prompt, err = BuildPrompt("", []Turn{
		{Role: "user", Content: "Hi"},
		{Role: "assistant", Content: "Hello!"},
		{Role: "user", Content: "How are you?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "User: Hi\nAssistant: Hello!\nUser: How are you?\nAssistant:", prompt)

	prompt, err = BuildPrompt("direct", []Turn{{Role: "user", Content: "ignored"}})
	require.NoError(t, err)
	assert.Equal(t, "direct", prompt)

	_, err = BuildPrompt("", nil)
	assert.ErrorIs(t, err, ErrNoPrompt)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("googleapi: API key not valid. Please pass a valid API key."), errorRules[0].message},
		{errors.New("You exceeded your current quota"), errorRules[1].message},
		{errors.New("googleapi: Error 404: models/gemini-x is not found"), errorRules[2].message},
		{errors.New("rpc error: network is unreachable"), errorRules[3].message},
		{errors.New("dial tcp: lookup generativelanguage.googleapis.com: no such host"), errorRules[3].message},
		{errors.New("something odd"), "something odd"},
		{errors.New(""), defaultErrorMessage},
		{nil, defaultErrorMessage},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyError(tt.err))
	}
}

func TestGenerateNotConfigured(t *testing.T) {
	svc, err := New(context.Background(), Options{Provider: ProviderGemini, Model: "gemini-2.5-flash"}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, svc.Configured())

	_, err = svc.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.ListModels(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Options{Provider: "nope", APIKey: "k"}, zap.NewNop())
	assert.Error(t, err)
}

func TestGenerateSendsPromptOnce(t *testing.T) {
	model := &llmtest.Model{Reply: "Hello there"}
	svc := NewService(model, ProviderOpenAI, "llama3.1:8b", zap.NewNop())

	out, err := svc.Generate(context.Background(), "User: Hi\nAssistant:")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)
	assert.Equal(t, []string{"User: Hi\nAssistant:"}, model.Prompts())

	models, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ModelInfo{{Name: "llama3.1:8b"}}, models)
}

func TestGenerateReturnsUpstreamError(t *testing.T) {
	upstream := errors.New("quota exhausted for project")
	svc := NewService(&llmtest.Model{Err: upstream}, ProviderGemini, "m", zap.NewNop())

	_, err := svc.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, errorRules[1].message, ClassifyError(err))
}

func TestListGeminiModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		key := r.URL.Query().Get("key")
		if key == "" {
			key = r.Header.Get("X-Goog-Api-Key")
		}
		assert.Equal(t, "k", key)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[
			{"name":"models/gemini-2.5-flash","displayName":"Gemini 2.5 Flash","supportedGenerationMethods":["generateContent","countTokens"]},
			{"name":"models/embedding-001","displayName":"Embedding","supportedGenerationMethods":["embedContent"]}
		]}`))
	}))
	defer srv.Close()

	svc := NewService(&llmtest.Model{}, ProviderGemini, "gemini-2.5-flash", zap.NewNop())
	svc.apiKey = "k"
	svc.modelsEndpoint = srv.URL

	models, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "models/gemini-2.5-flash", models[0].Name)
	assert.Equal(t, "Gemini 2.5 Flash", models[0].DisplayName)
}
