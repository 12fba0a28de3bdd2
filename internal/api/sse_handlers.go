package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mnrezaali/ai-prompt-generator/internal/events"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
)

// SSEEvent represents a Server-Sent Event
type SSEEvent struct {
	ID    string `json:"id,omitempty"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data"`
}

// updateKinds maps the short names accepted by ?types= to event types.
var updateKinds = map[string]events.EventType{
	"artifact":   events.ArtifactUpdated,
	"transcript": events.TranscriptUpdated,
	"status":     events.StatusChanged,
	"history":    events.HistoryChanged,
}

func parseKinds(raw string) ([]events.EventFilter, error) {
	if raw == "" {
		return nil, nil
	}
	var kinds []events.EventType
	for _, name := range strings.Split(raw, ",") {
		kind, ok := updateKinds[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown update type %q", llm.ErrInvalidRequest, name)
		}
		kinds = append(kinds, kind)
	}
	return []events.EventFilter{events.FilterByType(kinds...)}, nil
}

// handleSessionSSE streams session updates as Server-Sent Events. It is the
// read-only alternative to the WebSocket endpoint. A reconnecting client
// that sends Last-Event-ID gets the updates it missed instead of a snapshot,
// as long as they are still retained.
func (s *Server) handleSessionSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	filters, err := parseKinds(r.URL.Query().Get("types"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	updates := s.manager.Subscribe(ctx, filters...)

	s.clients.Add(1)
	defer s.clients.Add(-1)

	sent := make(map[string]bool)
	missed, replay := s.manager.UpdatesSince(r.Header.Get("Last-Event-ID"), filters...)
	if replay {
		for _, ev := range missed {
			if err := writeSSEEvent(w, SSEEvent{ID: ev.ID, Event: string(ev.Type), Data: ev.Payload}); err != nil {
				return
			}
			sent[ev.ID] = true
		}
	} else if err := writeSSEEvent(w, SSEEvent{Event: "snapshot", Data: s.sessionResponse()}); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-updates:
			if !ok {
				return
			}
			if sent[ev.ID] {
				continue
			}
			if err := writeSSEEvent(w, SSEEvent{ID: ev.ID, Event: string(ev.Type), Data: ev.Payload}); err != nil {
				log.Debug("SSE client went away", "error", err)
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event SSEEvent) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}
	if event.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return err
		}
	}
	if event.Event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event.Event); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
