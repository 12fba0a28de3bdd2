package providers

import (
	"context"
	"errors"

	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAISDKHandler implements the ApiHandler interface using the official OpenAI Go SDK
type OpenAISDKHandler struct {
	options llm.ApiHandlerOptions
	client  *openai.Client
}

// NewOpenAISDKHandler creates a new OpenAI handler using the official SDK
func NewOpenAISDKHandler(options llm.ApiHandlerOptions) *OpenAISDKHandler {
	opts := []option.RequestOption{option.WithAPIKey(options.APIKey)}
	if options.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(options.OpenAIBaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAISDKHandler{
		options: options,
		client:  &client,
	}
}

func (h *OpenAISDKHandler) GetModel() llm.ModelResponse {
	return llm.ModelResponse{
		ID: h.options.ModelID,
		Info: llm.ModelInfo{
			MaxTokens:     maxOutputTokens(h.options),
			ContextWindow: 128000,
			Temperature:   temperature(h.options),
			Description:   "OpenAI model",
		},
	}
}

// CreateMessage sends a message to OpenAI and returns a streaming response
func (h *OpenAISDKHandler) CreateMessage(ctx context.Context, systemPrompt string, messages []llm.Message) (llm.ApiStream, error) {
	stream := h.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Messages:            openAIMessages(systemPrompt, messages),
		Model:               openai.ChatModel(trimProviderPrefix(h.options.ModelID)),
		Temperature:         openai.Float(temperature(h.options)),
		MaxCompletionTokens: openai.Int(int64(maxOutputTokens(h.options))),
	})

	outputChan := make(chan llm.ApiStreamChunk, 100)

	go func() {
		defer close(outputChan)
		defer stream.Close()

		var usage llm.ApiStreamUsageChunk
		for stream.Next() {
			evt := stream.Current()
			if evt.Usage.TotalTokens > 0 {
				usage.InputTokens = int(evt.Usage.PromptTokens)
				usage.OutputTokens = int(evt.Usage.CompletionTokens)
			}
			if len(evt.Choices) == 0 || evt.Choices[0].Delta.Content == "" {
				continue
			}
			if !llm.Emit(ctx, outputChan, llm.ApiStreamTextChunk{Text: evt.Choices[0].Delta.Content}) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			llm.Emit(ctx, outputChan, llm.ApiStreamErrorChunk{Err: openAIError(err)})
			return
		}
		llm.Emit(ctx, outputChan, usage)
	}()

	return outputChan, nil
}

func openAIMessages(systemPrompt string, messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}
	for _, msg := range messages {
		if msg.Role == "assistant" {
			out = append(out, openai.AssistantMessage(msg.Text()))
		} else {
			out = append(out, openai.UserMessage(msg.Text()))
		}
	}
	return out
}

func openAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &llm.UpstreamError{
			StatusCode: apiErr.StatusCode,
			Message:    "openai request failed",
			Details:    apiErr.Message,
			Err:        err,
		}
	}
	return llm.NewUpstreamError("openai", err)
}
