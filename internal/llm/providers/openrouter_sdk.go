package providers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	openrouter "github.com/revrost/go-openrouter"
)

// OpenRouterSDKHandler implements the ApiHandler interface using the OpenRouter Go SDK
type OpenRouterSDKHandler struct {
	options llm.ApiHandlerOptions
	client  *openrouter.Client
}

// NewOpenRouterSDKHandler creates a new OpenRouter handler
func NewOpenRouterSDKHandler(options llm.ApiHandlerOptions) *OpenRouterSDKHandler {
	return &OpenRouterSDKHandler{
		options: options,
		client:  openrouter.NewClient(options.APIKey),
	}
}

func (h *OpenRouterSDKHandler) GetModel() llm.ModelResponse {
	return llm.ModelResponse{
		ID: h.options.ModelID,
		Info: llm.ModelInfo{
			MaxTokens:     maxOutputTokens(h.options),
			ContextWindow: 128000,
			Temperature:   temperature(h.options),
			Description:   "OpenRouter model",
		},
	}
}

// CreateMessage sends a message to OpenRouter and returns a streaming response
func (h *OpenRouterSDKHandler) CreateMessage(ctx context.Context, systemPrompt string, messages []llm.Message) (llm.ApiStream, error) {
	request := openrouter.ChatCompletionRequest{
		Model:    h.options.ModelID,
		Messages: openRouterMessages(systemPrompt, messages),
		Stream:   true,
	}

	stream, err := h.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return nil, &llm.UpstreamError{Message: "openrouter request failed", Err: fmt.Errorf("failed to create chat completion stream: %w", err)}
	}

	outputChan := make(chan llm.ApiStreamChunk, 100)

	go func() {
		defer close(outputChan)
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				llm.Emit(ctx, outputChan, llm.ApiStreamErrorChunk{Err: llm.NewUpstreamError("openrouter", err)})
				return
			}

			if len(response.Choices) == 0 || response.Choices[0].Delta.Content == "" {
				continue
			}
			if !llm.Emit(ctx, outputChan, llm.ApiStreamTextChunk{Text: response.Choices[0].Delta.Content}) {
				return
			}
		}
	}()

	return outputChan, nil
}

func openRouterMessages(systemPrompt string, messages []llm.Message) []openrouter.ChatCompletionMessage {
	out := make([]openrouter.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, openrouter.ChatCompletionMessage{
			Role:    openrouter.ChatMessageRoleSystem,
			Content: openrouter.Content{Text: systemPrompt},
		})
	}
	for _, msg := range messages {
		role := openrouter.ChatMessageRoleUser
		if msg.Role == "assistant" {
			role = openrouter.ChatMessageRoleAssistant
		}
		out = append(out, openrouter.ChatCompletionMessage{
			Role:    role,
			Content: openrouter.Content{Text: msg.Text()},
		})
	}
	return out
}
