package api

import (
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/mnrezaali/ai-prompt-generator/internal/relay"
)

// textStream writes fragments as a chunked text/plain body. The status line
// is deferred until the first fragment so that early failures can still be
// reported as JSON.
type textStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newTextStream(w http.ResponseWriter) *textStream {
	flusher, _ := w.(http.Flusher)
	return &textStream{w: w, flusher: flusher}
}

func (t *textStream) begin() {
	if t.started {
		return
	}
	t.started = true
	t.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	t.w.Header().Set("Cache-Control", "no-cache")
	t.w.Header().Set("X-Content-Type-Options", "nosniff")
	t.w.WriteHeader(http.StatusOK)
}

func (t *textStream) write(fragment string) {
	t.begin()
	if _, err := io.WriteString(t.w, fragment); err != nil {
		log.Debug("Client went away mid-stream", "error", err)
		return
	}
	if t.flusher != nil {
		t.flusher.Flush()
	}
}

// fail reports err. Before any byte was sent this is a JSON error response;
// afterwards the connection is aborted so the client sees a truncated body.
func (t *textStream) fail(err error) {
	if !t.started {
		writeFailure(t.w, err)
		return
	}
	log.Warn("Aborting stream after partial output", "error", err)
	panic(http.ErrAbortHandler)
}

// finish completes a successful stream, sending headers for empty bodies.
func (t *textStream) finish() {
	t.begin()
}

// handleGenerate is the relay endpoint. The body is the browser wire format
// discriminated by type; the response is the raw generated text.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	req, err := relay.ParseWireRequest(body)
	if err != nil {
		log.Debug("Rejected generate request", "error", err)
		writeFailure(w, err)
		return
	}
	if s.relay == nil {
		writeFailure(w, llm.ErrConfiguration)
		return
	}

	stream, err := s.relay.Submit(r.Context(), req)
	if err != nil {
		log.Warn("Generate request failed", "kind", req.Kind(), "error", err)
		writeFailure(w, err)
		return
	}

	out := newTextStream(w)
	collector, err := llm.ProcessStream(r.Context(), stream, func(chunk llm.ApiStreamChunk) error {
		if text, ok := chunk.(llm.ApiStreamTextChunk); ok && text.Text != "" {
			out.write(text.Text)
		}
		return nil
	})
	if err != nil {
		if r.Context().Err() != nil {
			log.Debug("Client left during generate", "kind", req.Kind(), "duration", collector.GetDuration())
			return
		}
		log.Warn("Generate stream failed", "kind", req.Kind(), "fragments", len(collector.TextChunks), "duration", collector.GetDuration(), "error", err)
		out.fail(err)
		return
	}
	out.finish()
	log.Debug("Generate request streamed", "kind", req.Kind(), "fragments", len(collector.TextChunks), "duration", collector.GetDuration())
}
