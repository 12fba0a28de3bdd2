package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
)

// RemoteRelay submits requests to a promptgen server's generation endpoint.
type RemoteRelay struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewRemote creates a client for baseURL, e.g. "http://localhost:47000".
// token is sent as a bearer token when non-empty.
func NewRemote(baseURL, token string, client *http.Client) *RemoteRelay {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteRelay{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/generate",
		token:    token,
		client:   client,
	}
}

// Submit posts req and streams the response body as fragments.
func (r *RemoteRelay) Submit(ctx context.Context, req Request) (llm.ApiStream, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", llm.ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(NewWireRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, &llm.UpstreamError{Message: "generation endpoint unreachable", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	log.Debug("Remote generation started", "endpoint", r.endpoint, "kind", req.Kind())

	out := make(chan llm.ApiStreamChunk, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		streamBody(ctx, resp.Body, out)
	}()
	return out, nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var wireErr WireError
	if err := json.Unmarshal(data, &wireErr); err != nil || wireErr.Error == "" {
		wireErr.Error = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", llm.ErrInvalidRequest, wireErr.Error)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &llm.UpstreamError{StatusCode: resp.StatusCode, Message: "access denied", Details: wireErr.Error}
	case strings.Contains(wireErr.Error, llm.ErrConfiguration.Error()):
		return fmt.Errorf("%w: %s", llm.ErrConfiguration, wireErr.Details)
	default:
		return &llm.UpstreamError{StatusCode: resp.StatusCode, Message: wireErr.Error, Details: wireErr.Details}
	}
}

// streamBody emits body reads as text fragments. Incomplete UTF-8 sequences
// are held back until the rest of the rune arrives.
func streamBody(ctx context.Context, body io.Reader, out chan<- llm.ApiStreamChunk) {
	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			cut := completePrefix(pending)
			if cut > 0 {
				if !llm.Emit(ctx, out, llm.ApiStreamTextChunk{Text: string(pending[:cut])}) {
					return
				}
				pending = append(pending[:0], pending[cut:]...)
			}
		}
		if errors.Is(err, io.EOF) {
			if len(pending) > 0 {
				llm.Emit(ctx, out, llm.ApiStreamTextChunk{Text: string(pending)})
			}
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			llm.Emit(ctx, out, llm.ApiStreamErrorChunk{Err: &llm.UpstreamError{Message: "generation stream interrupted", Err: err}})
			return
		}
	}
}

// completePrefix returns the length of the longest prefix of b that does not
// end inside a multi-byte rune.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}
