package llm

import (
	"context"
	"strings"
	"time"
)

// ApiStream represents a stream of API response chunks. It is finite and
// cannot be restarted: the producer closes it once the upstream completes.
type ApiStream <-chan ApiStreamChunk

// ApiStreamChunk represents different types of streaming responses
type ApiStreamChunk interface {
	Type() string
}

// ApiStreamTextChunk represents text content in the stream
type ApiStreamTextChunk struct {
	Text string `json:"text"`
}

func (c ApiStreamTextChunk) Type() string { return "text" }

// ApiStreamUsageChunk represents token usage information
type ApiStreamUsageChunk struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

func (c ApiStreamUsageChunk) Type() string { return "usage" }

// ApiStreamErrorChunk terminates a stream with a failure. Nothing follows it.
type ApiStreamErrorChunk struct {
	Err error `json:"-"`
}

func (c ApiStreamErrorChunk) Type() string { return "error" }

// StreamCollector helps collect and aggregate stream chunks
type StreamCollector struct {
	TextChunks []string
	Usage      *ApiStreamUsageChunk
	Err        error
	StartTime  time.Time
	EndTime    time.Time
}

// NewStreamCollector creates a new stream collector
func NewStreamCollector() *StreamCollector {
	return &StreamCollector{
		TextChunks: make([]string, 0),
		StartTime:  time.Now(),
	}
}

// Collect processes a stream chunk and adds it to the collector
func (sc *StreamCollector) Collect(chunk ApiStreamChunk) {
	switch c := chunk.(type) {
	case ApiStreamTextChunk:
		sc.TextChunks = append(sc.TextChunks, c.Text)
	case ApiStreamUsageChunk:
		sc.Usage = &c
	case ApiStreamErrorChunk:
		sc.Err = c.Err
	}
}

// GetFullText returns the complete text from all text chunks
func (sc *StreamCollector) GetFullText() string {
	return strings.Join(sc.TextChunks, "")
}

// GetDuration returns the total duration of the stream
func (sc *StreamCollector) GetDuration() time.Duration {
	if sc.EndTime.IsZero() {
		return time.Since(sc.StartTime)
	}
	return sc.EndTime.Sub(sc.StartTime)
}

// ProcessStream drains a stream, calling callback for every chunk. It returns
// the first error chunk, callback error, or context error encountered.
func ProcessStream(ctx context.Context, stream ApiStream, callback func(ApiStreamChunk) error) (*StreamCollector, error) {
	collector := NewStreamCollector()
	defer func() { collector.EndTime = time.Now() }()

	for {
		select {
		case chunk, ok := <-stream:
			if !ok {
				return collector, nil
			}
			collector.Collect(chunk)
			if callback != nil {
				if err := callback(chunk); err != nil {
					return collector, err
				}
			}
			if collector.Err != nil {
				return collector, collector.Err
			}
		case <-ctx.Done():
			return collector, ctx.Err()
		}
	}
}

// Emit sends a chunk unless ctx is done. It reports whether the chunk was sent.
func Emit(ctx context.Context, ch chan<- ApiStreamChunk, chunk ApiStreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// StreamFromChunks replays fixed chunks as a closed stream.
func StreamFromChunks(chunks ...ApiStreamChunk) ApiStream {
	ch := make(chan ApiStreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}
