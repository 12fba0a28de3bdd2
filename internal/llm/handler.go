package llm

import (
	"context"
	"fmt"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one request/response step of a refinement conversation.
type Turn struct {
	Role    Role   `json:"role" toml:"role"`
	Content string `json:"content" toml:"content"`
	// Failed marks a model turn whose content is an error annotation.
	Failed bool `json:"failed,omitempty" toml:"failed,omitempty"`
}

// Message represents a conversation message in the provider-neutral format
// handed to an ApiHandler. Role is "user" or "assistant".
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock represents different types of content in a message
type ContentBlock interface {
	Type() string
}

// TextBlock represents text content
type TextBlock struct {
	Text string `json:"text"`
}

func (t TextBlock) Type() string { return "text" }

// NewTextMessage builds a single-block text message.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{TextBlock{Text: text}}}
}

// Text concatenates the text blocks of the message.
func (m Message) Text() string {
	var out string
	for _, block := range m.Content {
		if tb, ok := block.(TextBlock); ok {
			out += tb.Text
		}
	}
	return out
}

// MessagesFromTurns maps transcript turns onto provider messages.
// Model turns become assistant messages.
func MessagesFromTurns(turns []Turn) []Message {
	messages := make([]Message, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == RoleModel {
			role = "assistant"
		}
		messages = append(messages, NewTextMessage(role, t.Content))
	}
	return messages
}

// ModelInfo represents model capabilities
type ModelInfo struct {
	MaxTokens     int     `json:"maxTokens"`
	ContextWindow int     `json:"contextWindow"`
	Temperature   float64 `json:"temperature"`
	Description   string  `json:"description,omitempty"`
}

// ModelResponse represents a model ID and its information
type ModelResponse struct {
	ID   string    `json:"id"`
	Info ModelInfo `json:"info"`
}

// ApiHandler represents the core interface for LLM providers
type ApiHandler interface {
	// CreateMessage sends a message and returns a streaming response
	CreateMessage(ctx context.Context, systemPrompt string, messages []Message) (ApiStream, error)

	// GetModel returns the model ID and info for the current configuration
	GetModel() ModelResponse
}

// ApiHandlerOptions represents configuration options for API handlers
type ApiHandlerOptions struct {
	APIKey  string `json:"apiKey"`
	ModelID string `json:"modelId"`

	// Provider-specific URLs
	AnthropicBaseURL string `json:"anthropicBaseUrl,omitempty"`
	OpenAIBaseURL    string `json:"openAiBaseUrl,omitempty"`

	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`

	// AWS Bedrock-specific
	AWSRegion string `json:"awsRegion,omitempty"`

	// OpenRouter app identification headers
	HTTPReferer string `json:"httpReferer,omitempty"`
	XTitle      string `json:"xTitle,omitempty"`
}

// ProviderType represents the supported upstream providers
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderBedrock    ProviderType = "bedrock"
)

// AllProviders lists provider types in display order.
var AllProviders = []ProviderType{
	ProviderGemini,
	ProviderAnthropic,
	ProviderOpenAI,
	ProviderOpenRouter,
	ProviderBedrock,
}

// ParseProviderType validates a provider name.
func ParseProviderType(name string) (ProviderType, error) {
	for _, p := range AllProviders {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported provider %q", ErrConfiguration, name)
}

// DefaultModel returns the model used when none is configured.
func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderAnthropic:
		return "claude-3-5-sonnet-20241022"
	case ProviderOpenAI:
		return "gpt-4o"
	case ProviderOpenRouter:
		return "google/gemini-2.5-flash"
	case ProviderBedrock:
		return "anthropic.claude-3-5-sonnet-20241022-v2:0"
	default:
		return "gemini-2.5-flash"
	}
}

// RequiresAPIKey reports whether the provider needs an explicit key.
// Bedrock resolves credentials through the AWS chain.
func (p ProviderType) RequiresAPIKey() bool {
	return p != ProviderBedrock
}
