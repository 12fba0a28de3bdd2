// Package relay forwards one generation request to the upstream model and
// streams its fragments back in arrival order.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm/prompt"
)

// Submitter starts a generation. The returned stream yields text fragments,
// possibly a usage chunk, and at most one terminal error chunk.
type Submitter interface {
	Submit(ctx context.Context, req Request) (llm.ApiStream, error)
}

// Relay submits requests to a local provider handler.
type Relay struct {
	handler  llm.ApiHandler
	buildErr error
}

// New creates a relay over handler.
func New(handler llm.ApiHandler) *Relay {
	return &Relay{handler: handler}
}

// NewUnconfigured creates a relay that fails every submission with err.
// The server uses it so requests report a configuration problem instead of
// the process refusing to start.
func NewUnconfigured(err error) *Relay {
	return &Relay{buildErr: err}
}

// Model reports the upstream model, or "" when unconfigured.
func (r *Relay) Model() string {
	if r.handler == nil {
		return ""
	}
	return r.handler.GetModel().ID
}

// Submit validates req and makes exactly one upstream call.
func (r *Relay) Submit(ctx context.Context, req Request) (llm.ApiStream, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", llm.ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if r.handler == nil {
		if r.buildErr != nil {
			return nil, r.buildErr
		}
		return nil, llm.ErrConfiguration
	}

	var (
		system   string
		messages []llm.Message
	)
	switch req := req.(type) {
	case CreateRequest:
		system = prompt.GenerateSystemInstruction
		messages = []llm.Message{
			llm.NewTextMessage("user", prompt.BuildCreatePayload(req.Purpose, req.Tone, req.Audience)),
		}
	case RefineRequest:
		system = prompt.BuildRefineSystem(req.PriorArtifact)
		messages = append(llm.MessagesFromTurns(req.Transcript), llm.NewTextMessage("user", req.Instruction))
	default:
		return nil, fmt.Errorf("%w: unknown request kind %q", llm.ErrInvalidRequest, req.Kind())
	}

	log.Debug("Submitting generation", "kind", req.Kind(), "model", r.handler.GetModel().ID, "messages", len(messages))

	upstream, err := r.handler.CreateMessage(ctx, system, messages)
	if err != nil {
		if errors.Is(err, llm.ErrConfiguration) {
			return nil, err
		}
		return nil, llm.NewUpstreamError(req.Kind(), err)
	}
	return forward(ctx, upstream), nil
}

// forward copies upstream chunks until the first error or completion.
// Nothing is emitted after an error chunk.
func forward(ctx context.Context, upstream llm.ApiStream) llm.ApiStream {
	out := make(chan llm.ApiStreamChunk, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-upstream:
				if !ok {
					return
				}
				if errChunk, isErr := chunk.(llm.ApiStreamErrorChunk); isErr {
					log.Warn("Upstream generation failed", "error", errChunk.Err)
					llm.Emit(ctx, out, llm.ApiStreamErrorChunk{Err: llm.NewUpstreamError("upstream", errChunk.Err)})
					return
				}
				if !llm.Emit(ctx, out, chunk) {
					return
				}
			}
		}
	}()
	return out
}
