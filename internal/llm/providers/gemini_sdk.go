package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"google.golang.org/genai"
)

// GeminiSDKHandler implements the ApiHandler interface using the official Google Generative AI SDK
type GeminiSDKHandler struct {
	options llm.ApiHandlerOptions

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiSDKHandler creates a new Gemini handler using the official Google SDK
func NewGeminiSDKHandler(options llm.ApiHandlerOptions) *GeminiSDKHandler {
	return &GeminiSDKHandler{options: options}
}

func (h *GeminiSDKHandler) GetModel() llm.ModelResponse {
	return llm.ModelResponse{
		ID: h.options.ModelID,
		Info: llm.ModelInfo{
			MaxTokens:     maxOutputTokens(h.options),
			ContextWindow: 1048576,
			Temperature:   temperature(h.options),
			Description:   "Google Gemini model",
		},
	}
}

func (h *GeminiSDKHandler) getClient(ctx context.Context) (*genai.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil {
		return h.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  h.options.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	h.client = client
	return client, nil
}

// CreateMessage sends a message to Gemini and returns a streaming response
func (h *GeminiSDKHandler) CreateMessage(ctx context.Context, systemPrompt string, messages []llm.Message) (llm.ApiStream, error) {
	client, err := h.getClient(ctx)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature(h.options))),
		MaxOutputTokens: int32(maxOutputTokens(h.options)),
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	iter := client.Models.GenerateContentStream(ctx, h.options.ModelID, geminiContents(messages), config)

	responseChan := make(chan llm.ApiStreamChunk, 100)

	go func() {
		defer close(responseChan)

		var usage llm.ApiStreamUsageChunk
		for result, err := range iter {
			if err != nil {
				llm.Emit(ctx, responseChan, llm.ApiStreamErrorChunk{Err: geminiError(err)})
				return
			}
			if result.UsageMetadata != nil {
				usage.InputTokens = int(result.UsageMetadata.PromptTokenCount)
				usage.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
			}
			if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
				continue
			}
			for _, part := range result.Candidates[0].Content.Parts {
				if part.Text == "" || part.Thought {
					continue
				}
				if !llm.Emit(ctx, responseChan, llm.ApiStreamTextChunk{Text: part.Text}) {
					return
				}
			}
		}

		llm.Emit(ctx, responseChan, usage)
	}()

	return responseChan, nil
}

func geminiContents(messages []llm.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Text(), genai.Role(role)))
	}
	return contents
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.UpstreamError{
			StatusCode: apiErr.Code,
			Message:    "gemini request failed",
			Details:    apiErr.Message,
			Err:        err,
		}
	}
	return llm.NewUpstreamError("gemini", err)
}
