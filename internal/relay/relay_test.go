package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	system   string
	messages []llm.Message
}

type fakeHandler struct {
	chunks []llm.ApiStreamChunk
	err    error
	calls  []call
}

func (f *fakeHandler) CreateMessage(_ context.Context, system string, messages []llm.Message) (llm.ApiStream, error) {
	f.calls = append(f.calls, call{system: system, messages: messages})
	if f.err != nil {
		return nil, f.err
	}
	return llm.StreamFromChunks(f.chunks...), nil
}

func (f *fakeHandler) GetModel() llm.ModelResponse {
	return llm.ModelResponse{ID: "fake-model"}
}

func collectText(t *testing.T, stream llm.ApiStream) (string, error) {
	t.Helper()
	collector, err := llm.ProcessStream(context.Background(), stream, nil)
	return collector.GetFullText(), err
}

func TestRelay_Create(t *testing.T) {
	handler := &fakeHandler{chunks: []llm.ApiStreamChunk{
		llm.ApiStreamTextChunk{Text: "**Persona**\n"},
		llm.ApiStreamTextChunk{Text: "A patient tutor.\n"},
	}}
	r := New(handler)

	stream, err := r.Submit(context.Background(), CreateRequest{Purpose: "a tutoring assistant", Tone: "Formal"})
	require.NoError(t, err)

	text, err := collectText(t, stream)
	require.NoError(t, err)
	assert.Equal(t, "**Persona**\nA patient tutor.\n", text)

	require.Len(t, handler.calls, 1)
	assert.Equal(t, prompt.GenerateSystemInstruction, handler.calls[0].system)
	require.Len(t, handler.calls[0].messages, 1)
	assert.Equal(t, "User Request: \"a tutoring assistant\"\n- Desired Tone: Formal", handler.calls[0].messages[0].Text())
}

func TestRelay_Refine(t *testing.T) {
	handler := &fakeHandler{chunks: []llm.ApiStreamChunk{llm.ApiStreamTextChunk{Text: "Persona: a witty tutor"}}}
	r := New(handler)

	req := RefineRequest{
		Instruction:   "make it witty",
		PriorArtifact: "Persona: tutor",
		Transcript: []llm.Turn{
			{Role: llm.RoleUser, Content: "shorter"},
			{Role: llm.RoleModel, Content: "Persona: tutor"},
		},
	}
	stream, err := r.Submit(context.Background(), req)
	require.NoError(t, err)

	text, err := collectText(t, stream)
	require.NoError(t, err)
	assert.Equal(t, "Persona: a witty tutor", text)

	require.Len(t, handler.calls, 1)
	got := handler.calls[0]
	assert.Equal(t, prompt.BuildRefineSystem("Persona: tutor"), got.system)
	require.Len(t, got.messages, 3)
	assert.Equal(t, "user", got.messages[0].Role)
	assert.Equal(t, "assistant", got.messages[1].Role)
	assert.Equal(t, "make it witty", got.messages[2].Text())
}

func TestRelay_InvalidRequestsMakeNoUpstreamCall(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"nil", nil},
		{"empty purpose", CreateRequest{Purpose: "  "}},
		{"empty instruction", RefineRequest{PriorArtifact: "x"}},
		{"empty prior", RefineRequest{Instruction: "shorter"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &fakeHandler{}
			_, err := New(handler).Submit(context.Background(), tt.req)
			require.ErrorIs(t, err, llm.ErrInvalidRequest)
			assert.Empty(t, handler.calls)
		})
	}
}

func TestRelay_Unconfigured(t *testing.T) {
	r := NewUnconfigured(llm.ErrConfiguration)
	_, err := r.Submit(context.Background(), CreateRequest{Purpose: "x"})
	require.ErrorIs(t, err, llm.ErrConfiguration)
	assert.Empty(t, r.Model())
}

func TestRelay_UpstreamFailure(t *testing.T) {
	t.Run("create fails", func(t *testing.T) {
		handler := &fakeHandler{err: errors.New("dial tcp: refused")}
		_, err := New(handler).Submit(context.Background(), CreateRequest{Purpose: "x"})
		require.ErrorIs(t, err, llm.ErrUpstream)
	})

	t.Run("error chunk terminates the stream", func(t *testing.T) {
		handler := &fakeHandler{chunks: []llm.ApiStreamChunk{
			llm.ApiStreamTextChunk{Text: "Hello, "},
			llm.ApiStreamErrorChunk{Err: errors.New("quota exceeded")},
			llm.ApiStreamTextChunk{Text: "never"},
		}}
		stream, err := New(handler).Submit(context.Background(), CreateRequest{Purpose: "x"})
		require.NoError(t, err)

		text, err := collectText(t, stream)
		require.ErrorIs(t, err, llm.ErrUpstream)
		assert.Contains(t, err.Error(), "quota exceeded")
		assert.Equal(t, "Hello, ", text)
	})
}

func TestRelay_Cancellation(t *testing.T) {
	upstream := make(chan llm.ApiStreamChunk)
	ctx, cancel := context.WithCancel(context.Background())

	out := forward(ctx, upstream)
	cancel()

	_, ok := <-out
	assert.False(t, ok)
}
