package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mnrezaali/ai-prompt-generator/internal/events"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm/prompt"
	"github.com/mnrezaali/ai-prompt-generator/internal/markdown"
)

var (
	// ErrEmptyGeneration is returned when a stream completes without content.
	ErrEmptyGeneration = errors.New("received an empty response from the AI")

	// ErrBusy is returned when an operation is already streaming.
	ErrBusy = errors.New("a generation is already in progress")

	// ErrUnknownEntry is returned for history IDs that do not exist.
	ErrUnknownEntry = errors.New("history entry not found")
)

// RefineErrorPrefix starts the annotation that replaces a failed refinement.
const RefineErrorPrefix = "An error occurred during refinement: "

// Status is the phase of the current or last operation.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusStreaming Status = "streaming"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Brief holds the parameters of a create request.
type Brief struct {
	Purpose  string `json:"purpose" toml:"purpose"`
	Tone     string `json:"tone,omitempty" toml:"tone"`
	Audience string `json:"audience,omitempty" toml:"audience"`
}

// ResolveBrief builds a brief from user fields. A non-empty recommendation
// names a built-in brief whose values fill any empty field. The tone is
// normalized to its canonical label.
func ResolveBrief(purpose, tone, audience, recommendation string) (Brief, error) {
	b := Brief{
		Purpose:  strings.TrimSpace(purpose),
		Tone:     strings.TrimSpace(tone),
		Audience: strings.TrimSpace(audience),
	}
	if recommendation != "" {
		rec, ok := prompt.FindRecommendation(recommendation)
		if !ok {
			return b, fmt.Errorf("%w: unknown recommendation %q", llm.ErrInvalidRequest, recommendation)
		}
		if b.Purpose == "" {
			b.Purpose = rec.Purpose
		}
		if b.Tone == "" {
			b.Tone = rec.Tone
		}
		if b.Audience == "" {
			b.Audience = rec.Audience
		}
	}
	b.Tone = prompt.NormalizeTone(b.Tone)
	return b, nil
}

// State is a point-in-time copy of the session.
type State struct {
	Artifact   string     `json:"artifact"`
	Transcript []llm.Turn `json:"transcript"`
	Brief      Brief      `json:"brief"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// VisibleTurns returns the transcript without the leading seed turn.
func (s State) VisibleTurns() []llm.Turn {
	if len(s.Transcript) > 0 && s.Transcript[0].Role == llm.RoleModel {
		return s.Transcript[1:]
	}
	return s.Transcript
}

func (s State) clone() State {
	out := s
	out.Transcript = append([]llm.Turn(nil), s.Transcript...)
	return out
}

// HistoryEntry is a finalized prompt kept for reload.
type HistoryEntry struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Purpose     string    `json:"purpose"`
	Tone        string    `json:"tone,omitempty"`
	Audience    string    `json:"audience,omitempty"`
	Instruction string    `json:"instruction,omitempty"`
	Prompt      string    `json:"prompt"`
}

// Title is the label shown in history lists.
func (e HistoryEntry) Title() string {
	if title := markdown.Title(e.Prompt); title != "" {
		return title
	}
	return e.Purpose
}

// Update is published after every state change. Fragment is set for
// streaming updates.
type Update struct {
	Kind     events.EventType `json:"kind"`
	State    State            `json:"state"`
	Fragment string           `json:"fragment,omitempty"`
	History  []HistoryEntry   `json:"history,omitempty"`
}
