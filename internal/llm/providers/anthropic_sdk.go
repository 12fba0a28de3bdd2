package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
)

// AnthropicSDKHandler implements the ApiHandler interface using the official Anthropic SDK
type AnthropicSDKHandler struct {
	options llm.ApiHandlerOptions
	client  *anthropic.Client
}

// NewAnthropicSDKHandler creates a new Anthropic handler using the official SDK
func NewAnthropicSDKHandler(options llm.ApiHandlerOptions) *AnthropicSDKHandler {
	opts := []option.RequestOption{option.WithAPIKey(options.APIKey)}
	if options.AnthropicBaseURL != "" {
		opts = append(opts, option.WithBaseURL(options.AnthropicBaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicSDKHandler{
		options: options,
		client:  &client,
	}
}

// CreateMessage sends a message to Anthropic and returns a streaming response
func (h *AnthropicSDKHandler) CreateMessage(ctx context.Context, systemPrompt string, messages []llm.Message) (llm.ApiStream, error) {
	params := anthropic.MessageNewParams{
		MaxTokens:   int64(maxOutputTokens(h.options)),
		Messages:    anthropicMessages(messages),
		Model:       anthropic.Model(trimProviderPrefix(h.options.ModelID)),
		Temperature: anthropic.Float(temperature(h.options)),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	stream := h.client.Messages.NewStreaming(ctx, params)

	outputChan := make(chan llm.ApiStreamChunk, 100)

	go func() {
		defer close(outputChan)
		defer stream.Close()

		var usage llm.ApiStreamUsageChunk
		for stream.Next() {
			event := stream.Current()

			switch eventVariant := event.AsAny().(type) {
			case anthropic.MessageStartEvent:
				usage.InputTokens = int(eventVariant.Message.Usage.InputTokens)
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					if !llm.Emit(ctx, outputChan, llm.ApiStreamTextChunk{Text: delta.Text}) {
						return
					}
				}
			case anthropic.MessageDeltaEvent:
				usage.OutputTokens = int(eventVariant.Usage.OutputTokens)
			}
		}

		if err := stream.Err(); err != nil {
			llm.Emit(ctx, outputChan, llm.ApiStreamErrorChunk{Err: anthropicError(err)})
			return
		}
		llm.Emit(ctx, outputChan, usage)
	}()

	return outputChan, nil
}

func anthropicMessages(messages []llm.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		block := anthropic.NewTextBlock(msg.Text())
		if msg.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &llm.UpstreamError{
			StatusCode: apiErr.StatusCode,
			Message:    "anthropic request failed",
			Err:        err,
		}
	}
	return llm.NewUpstreamError("anthropic", err)
}

// GetModel returns the model ID and info for the current configuration
func (h *AnthropicSDKHandler) GetModel() llm.ModelResponse {
	return llm.ModelResponse{
		ID: h.options.ModelID,
		Info: llm.ModelInfo{
			MaxTokens:     maxOutputTokens(h.options),
			ContextWindow: 200000,
			Temperature:   temperature(h.options),
			Description:   "Anthropic Claude model",
		},
	}
}

// trimProviderPrefix drops an "org/" prefix from model IDs.
func trimProviderPrefix(modelID string) string {
	if i := strings.LastIndex(modelID, "/"); i >= 0 {
		return modelID[i+1:]
	}
	return modelID
}
