package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteRelay_Stream(t *testing.T) {
	var received WireRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, part := range []string{"Persona: ", "a witty ", "tutor"} {
			_, _ = io.WriteString(w, part)
			flusher.Flush()
		}
	}))
	defer server.Close()

	r := NewRemote(server.URL+"/", "tok", server.Client())
	stream, err := r.Submit(context.Background(), RefineRequest{
		Instruction:   "make it witty",
		PriorArtifact: "Persona: tutor",
	})
	require.NoError(t, err)

	text, err := collectText(t, stream)
	require.NoError(t, err)
	assert.Equal(t, "Persona: a witty tutor", text)

	assert.Equal(t, "refine", received.Type)
	assert.Equal(t, "make it witty", received.Message)
	require.Len(t, received.ChatHistory, 1)
	assert.Equal(t, "Persona: tutor", received.ChatHistory[0].Text)
}

func TestRemoteRelay_ErrorStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"bad request", http.StatusBadRequest, `{"error":"invalid request type"}`, llm.ErrInvalidRequest},
		{"missing key", http.StatusInternalServerError, `{"error":"API key not configured."}`, llm.ErrConfiguration},
		{"upstream", http.StatusInternalServerError, `{"error":"boom","details":"quota"}`, llm.ErrUpstream},
		{"non json", http.StatusBadGateway, `oops`, llm.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := NewRemote(server.URL, "", nil).Submit(context.Background(), CreateRequest{Purpose: "x"})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRemoteRelay_InvalidRequestSkipsNetwork(t *testing.T) {
	_, err := NewRemote("http://127.0.0.1:1", "", nil).Submit(context.Background(), RefineRequest{Instruction: "x"})
	require.ErrorIs(t, err, llm.ErrInvalidRequest)
}

func TestCompletePrefix(t *testing.T) {
	euro := []byte("€") // 3 bytes
	assert.Equal(t, 3, completePrefix([]byte("abc")))
	assert.Equal(t, 1, completePrefix(append([]byte("a"), euro[:2]...)))
	assert.Equal(t, 4, completePrefix(append([]byte("a"), euro...)))
}

func TestStreamBody_SplitRune(t *testing.T) {
	out := make(chan llm.ApiStreamChunk, 8)
	euro := []byte("€")
	reader := io.MultiReader(
		&oneShotReader{data: append([]byte("a"), euro[:1]...)},
		&oneShotReader{data: euro[1:]},
	)
	streamBody(context.Background(), reader, out)
	close(out)

	text, err := collectText(t, out)
	require.NoError(t, err)
	assert.Equal(t, "a€", text)
}

type oneShotReader struct {
	data []byte
	done bool
}

func (r *oneShotReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	r.done = true
	return copy(p, r.data), nil
}

func TestParseWireRequest(t *testing.T) {
	t.Run("generate aliases", func(t *testing.T) {
		req, err := ParseWireRequest([]byte(`{"type":"initial","purpose":"a coach","audience":"runners"}`))
		require.NoError(t, err)
		assert.Equal(t, CreateRequest{Purpose: "a coach", Audience: "runners"}, req)
	})

	t.Run("refine with seed history", func(t *testing.T) {
		req, err := ParseWireRequest([]byte(`{"type":"refine","message":"shorter","chatHistory":[{"role":"model","text":"P1"},{"role":"user","text":"witty"},{"role":"model","text":"P2"}]}`))
		require.NoError(t, err)
		refine := req.(RefineRequest)
		assert.Equal(t, "P1", refine.PriorArtifact)
		assert.Equal(t, "shorter", refine.Instruction)
		assert.Equal(t, []llm.Turn{{Role: llm.RoleUser, Content: "witty"}, {Role: llm.RoleModel, Content: "P2"}}, refine.Transcript)
	})

	t.Run("refine instruction from trailing user turn", func(t *testing.T) {
		req, err := ParseWireRequest([]byte(`{"type":"refine","originalPrompt":"P1","chatHistory":[{"role":"user","content":"shorter"}]}`))
		require.NoError(t, err)
		refine := req.(RefineRequest)
		assert.Equal(t, "P1", refine.PriorArtifact)
		assert.Equal(t, "shorter", refine.Instruction)
		assert.Empty(t, refine.Transcript)
	})

	t.Run("errors", func(t *testing.T) {
		for _, body := range []string{
			`{`,
			`{"type":"delete"}`,
			`{"type":"refine","message":"x","chatHistory":[]}`,
			`{"type":"generate","userInput":""}`,
		} {
			_, err := ParseWireRequest([]byte(body))
			assert.ErrorIs(t, err, llm.ErrInvalidRequest, body)
		}
	})
}
