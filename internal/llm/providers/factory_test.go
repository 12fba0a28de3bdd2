package providers

import (
	"encoding/json"
	"testing"

	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildApiHandler(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.ProviderType
		options  llm.ApiHandlerOptions
		wantType any
		wantErr  error
	}{
		{"gemini", llm.ProviderGemini, llm.ApiHandlerOptions{APIKey: "k"}, &GeminiSDKHandler{}, nil},
		{"anthropic", llm.ProviderAnthropic, llm.ApiHandlerOptions{APIKey: "k"}, &AnthropicSDKHandler{}, nil},
		{"openai", llm.ProviderOpenAI, llm.ApiHandlerOptions{APIKey: "k"}, &OpenAISDKHandler{}, nil},
		{"openrouter", llm.ProviderOpenRouter, llm.ApiHandlerOptions{APIKey: "k"}, &OpenRouterSDKHandler{}, nil},
		{"bedrock without key", llm.ProviderBedrock, llm.ApiHandlerOptions{}, &BedrockSDKHandler{}, nil},
		{"missing key", llm.ProviderGemini, llm.ApiHandlerOptions{}, nil, llm.ErrConfiguration},
		{"unknown provider", llm.ProviderType("nope"), llm.ApiHandlerOptions{APIKey: "k"}, nil, llm.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := BuildApiHandler(tt.provider, tt.options)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, handler)
		})
	}
}

func TestBuildApiHandler_DefaultModel(t *testing.T) {
	handler, err := BuildApiHandler(llm.ProviderGemini, llm.ApiHandlerOptions{APIKey: "k"})
	require.NoError(t, err)

	model := handler.GetModel()
	assert.Equal(t, "gemini-2.5-flash", model.ID)
	assert.Equal(t, defaultMaxOutputTokens, model.Info.MaxTokens)
	assert.InDelta(t, defaultTemperature, model.Info.Temperature, 0.0001)
}

func TestGeminiContents(t *testing.T) {
	contents := geminiContents([]llm.Message{
		llm.NewTextMessage("user", "make it witty"),
		llm.NewTextMessage("assistant", "Persona: tutor"),
	})

	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "Persona: tutor", contents[1].Parts[0].Text)
}

func TestOpenRouterMessages(t *testing.T) {
	msgs := openRouterMessages("sys", []llm.Message{
		llm.NewTextMessage("user", "hi"),
		llm.NewTextMessage("assistant", "hello"),
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "sys", msgs[0].Content.Text)
	assert.Equal(t, "assistant", msgs[2].Role)
}

func TestBedrockRequestBody(t *testing.T) {
	t.Run("anthropic family", func(t *testing.T) {
		h := NewBedrockSDKHandler(llm.ApiHandlerOptions{ModelID: "anthropic.claude-3-5-sonnet-20241022-v2:0"})
		body, err := h.requestBody("be a tutor", []llm.Message{llm.NewTextMessage("user", "hi")})
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(body, &decoded))
		assert.Equal(t, "bedrock-2023-05-31", decoded["anthropic_version"])
		assert.Equal(t, "be a tutor", decoded["system"])
		assert.Len(t, decoded["messages"], 1)
	})

	t.Run("titan", func(t *testing.T) {
		h := NewBedrockSDKHandler(llm.ApiHandlerOptions{ModelID: "amazon.titan-text-express-v1"})
		body, err := h.requestBody("sys", []llm.Message{llm.NewTextMessage("user", "hi")})
		require.NoError(t, err)
		assert.Contains(t, string(body), `"inputText":"sys\n\nUser: hi\nBot:"`)
	})

	t.Run("chunk text", func(t *testing.T) {
		h := NewBedrockSDKHandler(llm.ApiHandlerOptions{ModelID: "anthropic.claude"})
		assert.Equal(t, "Hi", h.chunkText([]byte(`{"type":"content_block_delta","delta":{"text":"Hi"}}`)))
		assert.Empty(t, h.chunkText([]byte(`{"type":"message_stop"}`)))
	})
}

func TestTrimProviderPrefix(t *testing.T) {
	assert.Equal(t, "gpt-4o", trimProviderPrefix("openai/gpt-4o"))
	assert.Equal(t, "gpt-4o", trimProviderPrefix("gpt-4o"))
}
