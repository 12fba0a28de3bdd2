package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
)

// BedrockSDKHandler implements the ApiHandler interface using the official AWS SDK v2.
// Credentials come from the default AWS chain.
type BedrockSDKHandler struct {
	options llm.ApiHandlerOptions
	region  string

	mu     sync.Mutex
	client *bedrockruntime.Client
}

// NewBedrockSDKHandler creates a new Bedrock handler
func NewBedrockSDKHandler(options llm.ApiHandlerOptions) *BedrockSDKHandler {
	region := options.AWSRegion
	if region == "" {
		region = "us-east-1"
	}
	return &BedrockSDKHandler{options: options, region: region}
}

func (h *BedrockSDKHandler) GetModel() llm.ModelResponse {
	return llm.ModelResponse{
		ID: h.options.ModelID,
		Info: llm.ModelInfo{
			MaxTokens:     maxOutputTokens(h.options),
			ContextWindow: 200000,
			Temperature:   temperature(h.options),
			Description:   "AWS Bedrock model",
		},
	}
}

func (h *BedrockSDKHandler) getClient(ctx context.Context) (*bedrockruntime.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil {
		return h.client, nil
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(h.region))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS config: %v", llm.ErrConfiguration, err)
	}
	h.client = bedrockruntime.NewFromConfig(cfg)
	return h.client, nil
}

// CreateMessage invokes the model with a response stream
func (h *BedrockSDKHandler) CreateMessage(ctx context.Context, systemPrompt string, messages []llm.Message) (llm.ApiStream, error) {
	client, err := h.getClient(ctx)
	if err != nil {
		return nil, err
	}

	body, err := h.requestBody(systemPrompt, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	input := &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(h.options.ModelID),
		Body:        body,
		ContentType: aws.String("application/json"),
	}

	responseChan := make(chan llm.ApiStreamChunk, 100)

	go func() {
		defer close(responseChan)

		output, err := client.InvokeModelWithResponseStream(ctx, input)
		if err != nil {
			llm.Emit(ctx, responseChan, llm.ApiStreamErrorChunk{Err: llm.NewUpstreamError("bedrock", err)})
			return
		}
		stream := output.GetStream()
		defer stream.Close()

		for event := range stream.Events() {
			chunk, ok := event.(*types.ResponseStreamMemberChunk)
			if !ok {
				continue
			}
			if text := h.chunkText(chunk.Value.Bytes); text != "" {
				if !llm.Emit(ctx, responseChan, llm.ApiStreamTextChunk{Text: text}) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			llm.Emit(ctx, responseChan, llm.ApiStreamErrorChunk{Err: llm.NewUpstreamError("bedrock", err)})
		}
	}()

	return responseChan, nil
}

func (h *BedrockSDKHandler) isTitan() bool {
	return strings.HasPrefix(h.options.ModelID, "amazon.")
}

// requestBody builds the model-family specific JSON payload.
func (h *BedrockSDKHandler) requestBody(systemPrompt string, messages []llm.Message) ([]byte, error) {
	if h.isTitan() {
		var sb strings.Builder
		if systemPrompt != "" {
			sb.WriteString(systemPrompt)
			sb.WriteString("\n\n")
		}
		for _, msg := range messages {
			role := "User"
			if msg.Role == "assistant" {
				role = "Bot"
			}
			fmt.Fprintf(&sb, "%s: %s\n", role, msg.Text())
		}
		sb.WriteString("Bot:")
		return json.Marshal(map[string]any{
			"inputText": sb.String(),
			"textGenerationConfig": map[string]any{
				"maxTokenCount": maxOutputTokens(h.options),
				"temperature":   temperature(h.options),
			},
		})
	}

	type anthropicMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	request := struct {
		AnthropicVersion string             `json:"anthropic_version"`
		MaxTokens        int                `json:"max_tokens"`
		Messages         []anthropicMessage `json:"messages"`
		System           string             `json:"system,omitempty"`
		Temperature      float64            `json:"temperature"`
	}{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxOutputTokens(h.options),
		System:           systemPrompt,
		Temperature:      temperature(h.options),
	}
	for _, msg := range messages {
		role := "user"
		if msg.Role == "assistant" {
			role = "assistant"
		}
		request.Messages = append(request.Messages, anthropicMessage{Role: role, Content: msg.Text()})
	}
	return json.Marshal(request)
}

func (h *BedrockSDKHandler) chunkText(data []byte) string {
	if h.isTitan() {
		var response struct {
			OutputText string `json:"outputText"`
		}
		if err := json.Unmarshal(data, &response); err == nil {
			return response.OutputText
		}
		return ""
	}

	var response struct {
		Type  string `json:"type"`
		Delta struct {
			Text string `json:"text"`
		} `json:"delta"`
	}
	if err := json.Unmarshal(data, &response); err == nil && response.Type == "content_block_delta" {
		return response.Delta.Text
	}
	return ""
}
