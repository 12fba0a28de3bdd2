// Package conversation owns the current prompt, the refinement transcript and
// the bounded history of finalized prompts.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mnrezaali/ai-prompt-generator/internal/events"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/mnrezaali/ai-prompt-generator/internal/relay"
)

// Options configures a Manager.
type Options struct {
	// HistoryCapacity bounds the history list. Zero means DefaultHistoryCapacity.
	HistoryCapacity int
	// DedupeHistory suppresses an entry whose prompt equals the current head.
	DedupeHistory bool
	// Store persists history. Nil keeps history in memory only.
	Store HistoryStore
	// SessionID tags published events.
	SessionID string
	// Now overrides the clock for history timestamps.
	Now func() time.Time
}

// Manager drives the relay for one session. Only one operation streams at a
// time; overlapping calls fail with ErrBusy.
type Manager struct {
	relay  relay.Submitter
	broker *events.Broker[Update]

	busy atomic.Bool

	mu      sync.RWMutex
	opts    Options
	state   State
	history []HistoryEntry
}

// NewManager creates a manager and loads persisted history. A load failure is
// logged and the manager starts with an empty history.
func NewManager(ctx context.Context, submitter relay.Submitter, opts Options) *Manager {
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = DefaultHistoryCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.New().String()
	}

	m := &Manager{
		relay:  submitter,
		broker: events.NewBroker[Update](),
		opts:   opts,
		state:  State{Status: StatusIdle},
	}

	if opts.Store != nil {
		entries, err := opts.Store.Load(ctx)
		if err != nil {
			log.Warn("Failed to load history, starting empty", "error", err)
		} else {
			m.history = truncateHistory(entries, opts.HistoryCapacity)
		}
	}
	return m
}

// Close ends all subscriptions.
func (m *Manager) Close() {
	m.broker.Shutdown()
}

// Subscribe streams updates until ctx is done. Slow subscribers skip
// intermediate updates but always receive the latest.
func (m *Manager) Subscribe(ctx context.Context, filters ...events.EventFilter) <-chan events.Event[Update] {
	return m.broker.Subscribe(ctx, filters...)
}

// UpdatesSince returns the recent updates published after the update with
// the given event ID. ok is false when that update is too old to replay.
func (m *Manager) UpdatesSince(id string, filters ...events.EventFilter) ([]events.Event[Update], bool) {
	return m.broker.Since(id, filters...)
}

// Busy reports whether an operation is streaming.
func (m *Manager) Busy() bool {
	return m.busy.Load()
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// History returns the history list, most recent first.
func (m *Manager) History() []HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]HistoryEntry(nil), m.history...)
}

// Entry looks up a history entry by ID.
func (m *Manager) Entry(id string) (HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.history {
		if e.ID == id {
			return e, nil
		}
	}
	return HistoryEntry{}, fmt.Errorf("%w: %s", ErrUnknownEntry, id)
}

// SetHistoryCapacity changes the bound, trimming the list if needed.
func (m *Manager) SetHistoryCapacity(ctx context.Context, capacity int) {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	m.mu.Lock()
	m.opts.HistoryCapacity = capacity
	before := len(m.history)
	m.history = truncateHistory(m.history, capacity)
	changed := len(m.history) != before
	m.mu.Unlock()

	if changed {
		m.persistHistory(ctx)
		m.publish(events.HistoryChanged, "")
	}
}

// FragmentFunc receives every fragment in order, after the state update it
// caused has been published.
type FragmentFunc func(fragment string)

// Generate creates a new prompt from a brief. The transcript and artifact are
// reset first. On success the artifact is seeded into the transcript and
// committed to history.
func (m *Manager) Generate(ctx context.Context, brief Brief) (string, error) {
	return m.GenerateFunc(ctx, brief, nil)
}

// GenerateFunc is Generate with a per-fragment callback.
func (m *Manager) GenerateFunc(ctx context.Context, brief Brief, onFragment FragmentFunc) (string, error) {
	req := relay.CreateRequest{Purpose: brief.Purpose, Tone: brief.Tone, Audience: brief.Audience}
	if err := req.Validate(); err != nil {
		return "", err
	}
	if !m.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer m.busy.Store(false)

	m.update(events.StatusChanged, "", func(s *State) {
		s.Error = ""
		s.Status = StatusStreaming
		s.Artifact = ""
		s.Transcript = nil
		s.Brief = brief
	})

	text, err := m.consume(ctx, req, onFragment, func(s *State, fragment string) {
		s.Artifact += fragment
	})
	if err == nil && text == "" {
		err = ErrEmptyGeneration
	}
	if err != nil {
		log.Warn("Generation failed", "error", err)
		m.update(events.StatusChanged, "", func(s *State) {
			s.Artifact = ""
			s.Status = StatusFailed
			s.Error = err.Error()
		})
		return "", err
	}

	m.update(events.StatusChanged, "", func(s *State) {
		s.Artifact = text
		s.Transcript = []llm.Turn{{Role: llm.RoleModel, Content: text}}
		s.Status = StatusCompleted
	})
	m.commit(ctx, brief, "", text)
	return text, nil
}

// Refine asks for a rewrite of the current artifact. A user turn and a
// placeholder model turn are appended before streaming. On failure the
// placeholder carries an error annotation and the artifact is unchanged.
func (m *Manager) Refine(ctx context.Context, instruction string) (string, error) {
	return m.RefineFunc(ctx, instruction, nil)
}

// RefineFunc is Refine with a per-fragment callback.
func (m *Manager) RefineFunc(ctx context.Context, instruction string, onFragment FragmentFunc) (string, error) {
	if !m.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer m.busy.Store(false)

	m.mu.RLock()
	req := relay.RefineRequest{
		Instruction:   strings.TrimSpace(instruction),
		PriorArtifact: m.state.Artifact,
		Transcript:    upstreamTranscript(m.state.VisibleTurns()),
	}
	brief := m.state.Brief
	m.mu.RUnlock()

	if err := req.Validate(); err != nil {
		return "", err
	}

	m.update(events.TranscriptUpdated, "", func(s *State) {
		s.Error = ""
		s.Status = StatusStreaming
		s.Transcript = append(s.Transcript,
			llm.Turn{Role: llm.RoleUser, Content: req.Instruction},
			llm.Turn{Role: llm.RoleModel},
		)
	})

	text, err := m.consume(ctx, req, onFragment, func(s *State, fragment string) {
		s.Transcript[len(s.Transcript)-1].Content += fragment
	})

	switch {
	case err != nil:
		log.Warn("Refinement failed", "error", err)
		m.update(events.TranscriptUpdated, "", func(s *State) {
			last := &s.Transcript[len(s.Transcript)-1]
			last.Content = RefineErrorPrefix + err.Error()
			last.Failed = true
			s.Status = StatusFailed
			s.Error = err.Error()
		})
		return "", err
	case text == "":
		m.update(events.TranscriptUpdated, "", func(s *State) {
			s.Transcript = s.Transcript[:len(s.Transcript)-1]
			s.Status = StatusFailed
			s.Error = ErrEmptyGeneration.Error()
		})
		return "", ErrEmptyGeneration
	}

	m.update(events.StatusChanged, "", func(s *State) {
		s.Artifact = text
		s.Status = StatusCompleted
	})
	m.commit(ctx, brief, req.Instruction, text)
	return text, nil
}

// LoadFromHistory makes the entry's prompt current with a fresh transcript.
// History itself is unchanged.
func (m *Manager) LoadFromHistory(id string) (State, error) {
	entry, err := m.Entry(id)
	if err != nil {
		return State{}, err
	}
	if !m.busy.CompareAndSwap(false, true) {
		return State{}, ErrBusy
	}
	defer m.busy.Store(false)

	m.update(events.StatusChanged, "", func(s *State) {
		s.Artifact = entry.Prompt
		s.Transcript = []llm.Turn{{Role: llm.RoleModel, Content: entry.Prompt}}
		s.Brief = Brief{Purpose: entry.Purpose, Tone: entry.Tone, Audience: entry.Audience}
		s.Status = StatusIdle
		s.Error = ""
	})
	return m.Snapshot(), nil
}

// Restore replaces the session state, e.g. from a saved CLI session.
func (m *Manager) Restore(state State) error {
	if !m.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer m.busy.Store(false)

	state = state.clone()
	state.Status = StatusIdle
	if len(state.Transcript) == 0 && state.Artifact != "" {
		state.Transcript = []llm.Turn{{Role: llm.RoleModel, Content: state.Artifact}}
	}
	m.update(events.StatusChanged, "", func(s *State) { *s = state })
	return nil
}

// ClearHistory removes all history entries.
func (m *Manager) ClearHistory(ctx context.Context) {
	m.mu.Lock()
	m.history = nil
	m.mu.Unlock()

	m.persistHistory(ctx)
	m.publish(events.HistoryChanged, "")
}

// consume submits req and applies every text fragment to the state with
// apply, publishing after each one. It returns the concatenated text.
func (m *Manager) consume(ctx context.Context, req relay.Request, onFragment FragmentFunc, apply func(*State, string)) (string, error) {
	stream, err := m.relay.Submit(ctx, req)
	if err != nil {
		return "", err
	}

	kind := events.ArtifactUpdated
	if req.Kind() == "refine" {
		kind = events.TranscriptUpdated
	}

	var sb strings.Builder
	_, err = llm.ProcessStream(ctx, stream, func(chunk llm.ApiStreamChunk) error {
		text, ok := chunk.(llm.ApiStreamTextChunk)
		if !ok || text.Text == "" {
			return nil
		}
		sb.WriteString(text.Text)
		m.update(kind, text.Text, func(s *State) { apply(s, text.Text) })
		if onFragment != nil {
			onFragment(text.Text)
		}
		return nil
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// commit records a finalized prompt in history.
func (m *Manager) commit(ctx context.Context, brief Brief, instruction, text string) {
	entry := HistoryEntry{
		ID:          uuid.New().String(),
		CreatedAt:   m.opts.Now().UTC(),
		Purpose:     brief.Purpose,
		Tone:        brief.Tone,
		Audience:    brief.Audience,
		Instruction: instruction,
		Prompt:      text,
	}

	m.mu.Lock()
	var changed bool
	m.history, changed = insertHistory(m.history, entry, m.opts.HistoryCapacity, m.opts.DedupeHistory)
	m.mu.Unlock()

	if !changed {
		log.Debug("Skipped duplicate history entry")
		return
	}
	m.persistHistory(ctx)
	m.publish(events.HistoryChanged, "")
}

func (m *Manager) persistHistory(ctx context.Context) {
	if m.opts.Store == nil {
		return
	}
	if err := m.opts.Store.Save(context.WithoutCancel(ctx), m.History()); err != nil {
		log.Warn("Failed to save history", "error", err)
	}
}

func (m *Manager) update(kind events.EventType, fragment string, mutate func(*State)) {
	m.mu.Lock()
	mutate(&m.state)
	m.mu.Unlock()
	m.publish(kind, fragment)
}

func (m *Manager) publish(kind events.EventType, fragment string) {
	u := Update{Kind: kind, State: m.Snapshot(), Fragment: fragment}
	if kind == events.HistoryChanged {
		u.History = m.History()
	}
	m.broker.Publish(kind, u, events.WithSessionID(m.opts.SessionID))
}

// upstreamTranscript drops failed exchanges so error annotations are never
// sent back as model output.
func upstreamTranscript(turns []llm.Turn) []llm.Turn {
	out := make([]llm.Turn, 0, len(turns))
	for i, t := range turns {
		if t.Failed {
			continue
		}
		if t.Role == llm.RoleUser && i+1 < len(turns) && turns[i+1].Failed {
			continue
		}
		out = append(out, t)
	}
	return out
}
