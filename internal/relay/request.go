package relay

import (
	"fmt"
	"strings"

	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
)

// Request is a generation request. The set of kinds is closed: only
// CreateRequest and RefineRequest implement it.
type Request interface {
	Kind() string
	Validate() error
	isRequest()
}

// CreateRequest asks for a brand new prompt from a brief.
type CreateRequest struct {
	Purpose  string `json:"purpose"`
	Tone     string `json:"tone,omitempty"`
	Audience string `json:"audience,omitempty"`
}

func (CreateRequest) Kind() string { return "generate" }
func (CreateRequest) isRequest()   {}

// Validate requires a purpose.
func (r CreateRequest) Validate() error {
	if strings.TrimSpace(r.Purpose) == "" {
		return fmt.Errorf("%w: purpose is required", llm.ErrInvalidRequest)
	}
	return nil
}

// RefineRequest asks for a full rewrite of PriorArtifact following Instruction.
// Transcript holds the conversation so far, excluding the seed turn.
type RefineRequest struct {
	Instruction   string     `json:"instruction"`
	PriorArtifact string     `json:"priorArtifact"`
	Transcript    []llm.Turn `json:"transcript,omitempty"`
}

func (RefineRequest) Kind() string { return "refine" }
func (RefineRequest) isRequest()   {}

// Validate requires both an instruction and the prompt being edited.
func (r RefineRequest) Validate() error {
	if strings.TrimSpace(r.Instruction) == "" {
		return fmt.Errorf("%w: instruction is required", llm.ErrInvalidRequest)
	}
	if strings.TrimSpace(r.PriorArtifact) == "" {
		return fmt.Errorf("%w: no prompt to refine", llm.ErrInvalidRequest)
	}
	return nil
}
