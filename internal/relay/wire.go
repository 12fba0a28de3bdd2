package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
)

// WireMessage is one chat history entry on the HTTP boundary. Either text or
// content carries the body.
type WireMessage struct {
	Role    string `json:"role"`
	Text    string `json:"text,omitempty"`
	Content string `json:"content,omitempty"`
}

func (m WireMessage) body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Content
}

// WireRequest is the JSON body accepted by the generation endpoint. Field
// aliases from older clients are accepted.
type WireRequest struct {
	Type string `json:"type"`

	UserInput      string `json:"userInput,omitempty"`
	Purpose        string `json:"purpose,omitempty"`
	Tone           string `json:"tone,omitempty"`
	TargetAudience string `json:"targetAudience,omitempty"`
	Audience       string `json:"audience,omitempty"`

	Message        string        `json:"message,omitempty"`
	Instruction    string        `json:"instruction,omitempty"`
	ChatHistory    []WireMessage `json:"chatHistory,omitempty"`
	OriginalPrompt string        `json:"originalPrompt,omitempty"`
}

// WireError is the JSON failure body.
type WireError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ParseWireRequest decodes and converts a request body.
func ParseWireRequest(data []byte) (Request, error) {
	var w WireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", llm.ErrInvalidRequest, err)
	}
	return w.ToRequest()
}

// ToRequest converts the wire shape into a typed request.
//
// For refine, a missing originalPrompt means chatHistory[0] holds the prompt
// being edited. A missing message means the trailing user turn is the
// instruction.
func (w WireRequest) ToRequest() (Request, error) {
	switch w.Type {
	case "generate", "initial":
		req := CreateRequest{
			Purpose:  firstNonEmpty(w.UserInput, w.Purpose),
			Tone:     w.Tone,
			Audience: firstNonEmpty(w.TargetAudience, w.Audience),
		}
		return req, req.Validate()
	case "refine":
		if len(w.ChatHistory) == 0 && w.OriginalPrompt == "" {
			return nil, fmt.Errorf("%w: invalid chat history for refine request", llm.ErrInvalidRequest)
		}
		history := w.ChatHistory
		prior := w.OriginalPrompt
		if prior == "" {
			prior = history[0].body()
			history = history[1:]
		}
		instruction := firstNonEmpty(w.Message, w.Instruction)
		if instruction == "" && len(history) > 0 && wireRole(history[len(history)-1].Role) == llm.RoleUser {
			instruction = history[len(history)-1].body()
			history = history[:len(history)-1]
		}
		req := RefineRequest{
			Instruction:   instruction,
			PriorArtifact: prior,
			Transcript:    turnsFromWire(history),
		}
		return req, req.Validate()
	default:
		return nil, fmt.Errorf("%w: invalid request type %q", llm.ErrInvalidRequest, w.Type)
	}
}

func wireRole(role string) llm.Role {
	switch strings.ToLower(role) {
	case "model", "assistant":
		return llm.RoleModel
	default:
		return llm.RoleUser
	}
}

func turnsFromWire(msgs []WireMessage) []llm.Turn {
	turns := make([]llm.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, llm.Turn{Role: wireRole(m.Role), Content: m.body()})
	}
	return turns
}

// NewWireRequest converts a typed request into its wire form.
func NewWireRequest(req Request) WireRequest {
	switch req := req.(type) {
	case CreateRequest:
		return WireRequest{
			Type:           "generate",
			UserInput:      req.Purpose,
			Tone:           req.Tone,
			TargetAudience: req.Audience,
		}
	case RefineRequest:
		history := make([]WireMessage, 0, len(req.Transcript)+1)
		history = append(history, WireMessage{Role: string(llm.RoleModel), Text: req.PriorArtifact})
		for _, t := range req.Transcript {
			history = append(history, WireMessage{Role: string(t.Role), Text: t.Content})
		}
		return WireRequest{
			Type:        "refine",
			Message:     req.Instruction,
			ChatHistory: history,
		}
	default:
		return WireRequest{Type: req.Kind()}
	}
}
