package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mnrezaali/ai-prompt-generator/internal/events"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/mnrezaali/ai-prompt-generator/internal/relay"
	"github.com/mnrezaali/ai-prompt-generator/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRelay replays one scripted response per Submit call.
type scriptedRelay struct {
	responses [][]llm.ApiStreamChunk
	submitErr error
	requests  []relay.Request
}

func (s *scriptedRelay) Submit(_ context.Context, req relay.Request) (llm.ApiStream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.requests = append(s.requests, req)
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	if len(s.responses) == 0 {
		return llm.StreamFromChunks(), nil
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return llm.StreamFromChunks(next...), nil
}

func (s *scriptedRelay) push(fragments ...string) *scriptedRelay {
	chunks := make([]llm.ApiStreamChunk, 0, len(fragments))
	for _, f := range fragments {
		chunks = append(chunks, llm.ApiStreamTextChunk{Text: f})
	}
	s.responses = append(s.responses, chunks)
	return s
}

func (s *scriptedRelay) pushFailure(err error, fragments ...string) *scriptedRelay {
	s.push(fragments...)
	last := len(s.responses) - 1
	s.responses[last] = append(s.responses[last], llm.ApiStreamErrorChunk{Err: &llm.UpstreamError{Message: "boom", Err: err}})
	return s
}

func newTestManager(t *testing.T, r relay.Submitter, opts Options) *Manager {
	t.Helper()
	m := NewManager(context.Background(), r, opts)
	t.Cleanup(m.Close)
	return m
}

func TestGenerate_AccumulatesFragments(t *testing.T) {
	r := (&scriptedRelay{}).push("**Persona**\n", "A patient tutor.\n")
	m := newTestManager(t, r, Options{})

	text, err := m.Generate(context.Background(), Brief{Purpose: "a tutoring assistant", Tone: "Formal"})
	require.NoError(t, err)
	assert.Equal(t, "**Persona**\nA patient tutor.\n", text)

	state := m.Snapshot()
	assert.Equal(t, text, state.Artifact)
	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, []llm.Turn{{Role: llm.RoleModel, Content: text}}, state.Transcript)
	assert.Empty(t, state.VisibleTurns())

	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, text, history[0].Prompt)
	assert.Equal(t, "a tutoring assistant", history[0].Purpose)
	assert.Equal(t, "Formal", history[0].Tone)
	assert.Equal(t, "Persona", history[0].Title())
	assert.NotEmpty(t, history[0].ID)
}

func TestGenerate_PublishesEveryFragment(t *testing.T) {
	fragments := []string{"a", "b", "c", "d"}
	r := (&scriptedRelay{}).push(fragments...)
	m := newTestManager(t, r, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := m.Subscribe(ctx)

	_, err := m.Generate(context.Background(), Brief{Purpose: "x"})
	require.NoError(t, err)

	var seen []string
	var artifacts []string
	timeout := time.After(time.Second)
	for len(seen) < len(fragments) {
		select {
		case ev := <-updates:
			if ev.Type == events.ArtifactUpdated {
				seen = append(seen, ev.Payload.Fragment)
				artifacts = append(artifacts, ev.Payload.State.Artifact)
			}
		case <-timeout:
			t.Fatalf("missing fragment updates, got %v", seen)
		}
	}
	assert.Equal(t, fragments, seen)
	assert.Equal(t, []string{"a", "ab", "abc", "abcd"}, artifacts)
}

func TestGenerate_EmptyStream(t *testing.T) {
	r := (&scriptedRelay{}).push("seed prompt").push()
	m := newTestManager(t, r, Options{})

	_, err := m.Generate(context.Background(), Brief{Purpose: "x"})
	require.NoError(t, err)
	before := m.History()

	_, err = m.Generate(context.Background(), Brief{Purpose: "y"})
	require.ErrorIs(t, err, ErrEmptyGeneration)

	state := m.Snapshot()
	assert.Equal(t, StatusFailed, state.Status)
	assert.Equal(t, ErrEmptyGeneration.Error(), state.Error)
	assert.Equal(t, before, m.History())
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	r := (&scriptedRelay{}).pushFailure(errors.New("quota"), "partial ")
	m := newTestManager(t, r, Options{})

	_, err := m.Generate(context.Background(), Brief{Purpose: "x"})
	require.ErrorIs(t, err, llm.ErrUpstream)

	state := m.Snapshot()
	assert.Equal(t, StatusFailed, state.Status)
	assert.Empty(t, state.Artifact)
	assert.Empty(t, m.History())
}

func TestGenerate_InvalidRequest(t *testing.T) {
	r := &scriptedRelay{}
	m := newTestManager(t, r, Options{})

	_, err := m.Generate(context.Background(), Brief{Purpose: "   "})
	require.ErrorIs(t, err, llm.ErrInvalidRequest)
	assert.Empty(t, r.requests)
	assert.Equal(t, StatusIdle, m.Snapshot().Status)
}

func TestGenerate_SupersedesTranscript(t *testing.T) {
	r := (&scriptedRelay{}).push("P1").push("P2").push("P3")
	m := newTestManager(t, r, Options{})
	ctx := context.Background()

	_, err := m.Generate(ctx, Brief{Purpose: "x"})
	require.NoError(t, err)
	_, err = m.Refine(ctx, "shorter")
	require.NoError(t, err)
	require.Len(t, m.Snapshot().Transcript, 3)

	_, err = m.Generate(ctx, Brief{Purpose: "y"})
	require.NoError(t, err)
	state := m.Snapshot()
	assert.Equal(t, "P3", state.Artifact)
	assert.Equal(t, []llm.Turn{{Role: llm.RoleModel, Content: "P3"}}, state.Transcript)
}

func TestRefine_ReplacesArtifact(t *testing.T) {
	r := (&scriptedRelay{}).push("Persona: a witty tutor")
	m := newTestManager(t, r, Options{})
	require.NoError(t, m.Restore(State{Artifact: "Persona: tutor"}))

	text, err := m.Refine(context.Background(), "make it witty")
	require.NoError(t, err)
	assert.Equal(t, "Persona: a witty tutor", text)

	state := m.Snapshot()
	assert.Equal(t, "Persona: a witty tutor", state.Artifact)
	assert.Equal(t, []llm.Turn{
		{Role: llm.RoleUser, Content: "make it witty"},
		{Role: llm.RoleModel, Content: "Persona: a witty tutor"},
	}, state.VisibleTurns())

	require.Len(t, r.requests, 1)
	req := r.requests[0].(relay.RefineRequest)
	assert.Equal(t, "Persona: tutor", req.PriorArtifact)
	assert.Empty(t, req.Transcript)

	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, "make it witty", history[0].Instruction)
}

func TestRefine_ChainsFromLatestArtifact(t *testing.T) {
	r := (&scriptedRelay{}).push("P1").push("P2").push("P3")
	m := newTestManager(t, r, Options{})
	ctx := context.Background()

	_, err := m.Generate(ctx, Brief{Purpose: "x"})
	require.NoError(t, err)
	_, err = m.Refine(ctx, "first")
	require.NoError(t, err)
	_, err = m.Refine(ctx, "second")
	require.NoError(t, err)

	last := r.requests[2].(relay.RefineRequest)
	assert.Equal(t, "P2", last.PriorArtifact)
	assert.Equal(t, []llm.Turn{
		{Role: llm.RoleUser, Content: "first"},
		{Role: llm.RoleModel, Content: "P2"},
	}, last.Transcript)
	assert.Equal(t, "P3", m.Snapshot().Artifact)
}

func TestRefine_ErrorMidStream(t *testing.T) {
	r := (&scriptedRelay{}).push("Persona: tutor").pushFailure(errors.New("connection reset"), "Hello, ")
	m := newTestManager(t, r, Options{})
	ctx := context.Background()

	_, err := m.Generate(ctx, Brief{Purpose: "tutor"})
	require.NoError(t, err)
	historyBefore := m.History()

	_, err = m.Refine(ctx, "make it witty")
	require.ErrorIs(t, err, llm.ErrUpstream)

	state := m.Snapshot()
	assert.Equal(t, "Persona: tutor", state.Artifact)
	assert.Equal(t, StatusFailed, state.Status)

	turns := state.VisibleTurns()
	require.Len(t, turns, 2)
	assert.Equal(t, llm.Turn{Role: llm.RoleUser, Content: "make it witty"}, turns[0])
	assert.NotEqual(t, "Hello, ", turns[1].Content)
	assert.Contains(t, turns[1].Content, RefineErrorPrefix)
	assert.Contains(t, turns[1].Content, "connection reset")
	assert.True(t, turns[1].Failed)
	assert.Equal(t, historyBefore, m.History())
}

func TestRefine_FailedExchangeNotSentUpstream(t *testing.T) {
	r := (&scriptedRelay{}).push("P1").pushFailure(errors.New("x")).push("P2")
	m := newTestManager(t, r, Options{})
	ctx := context.Background()

	_, err := m.Generate(ctx, Brief{Purpose: "x"})
	require.NoError(t, err)
	_, err = m.Refine(ctx, "bad")
	require.Error(t, err)
	_, err = m.Refine(ctx, "good")
	require.NoError(t, err)

	last := r.requests[2].(relay.RefineRequest)
	assert.Empty(t, last.Transcript)
	assert.Len(t, m.Snapshot().VisibleTurns(), 4)
}

func TestRefine_EmptyResult(t *testing.T) {
	r := (&scriptedRelay{}).push("P1").push()
	m := newTestManager(t, r, Options{})
	ctx := context.Background()

	_, err := m.Generate(ctx, Brief{Purpose: "x"})
	require.NoError(t, err)

	_, err = m.Refine(ctx, "shorter")
	require.ErrorIs(t, err, ErrEmptyGeneration)

	state := m.Snapshot()
	assert.Equal(t, "P1", state.Artifact)
	assert.Equal(t, []llm.Turn{{Role: llm.RoleUser, Content: "shorter"}}, state.VisibleTurns())
	assert.Len(t, m.History(), 1)
}

func TestRefine_WithoutArtifact(t *testing.T) {
	r := &scriptedRelay{}
	m := newTestManager(t, r, Options{})

	_, err := m.Refine(context.Background(), "shorter")
	require.ErrorIs(t, err, llm.ErrInvalidRequest)
	assert.Empty(t, r.requests)
	assert.Empty(t, m.Snapshot().Transcript)
}

func TestBusyGuard(t *testing.T) {
	m := newTestManager(t, &scriptedRelay{}, Options{})
	m.busy.Store(true)

	_, err := m.Generate(context.Background(), Brief{Purpose: "x"})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = m.Refine(context.Background(), "x")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestLoadAndRestoreClaimBusyFlag(t *testing.T) {
	r := (&scriptedRelay{}).push("P1").push("P2")
	m := newTestManager(t, r, Options{})
	ctx := context.Background()

	_, err := m.Generate(ctx, Brief{Purpose: "first"})
	require.NoError(t, err)
	_, err = m.Generate(ctx, Brief{Purpose: "second"})
	require.NoError(t, err)
	older := m.History()[1].ID
	before := m.Snapshot()

	m.busy.Store(true)
	_, err = m.LoadFromHistory(older)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, m.Restore(State{Artifact: "other"}), ErrBusy)
	assert.Equal(t, before.Artifact, m.Snapshot().Artifact)
	m.busy.Store(false)

	state, err := m.LoadFromHistory(older)
	require.NoError(t, err)
	assert.Equal(t, "P1", state.Artifact)
	assert.False(t, m.Busy())

	require.NoError(t, m.Restore(before))
	assert.False(t, m.Busy())
	assert.Equal(t, "P2", m.Snapshot().Artifact)
}

func TestLoadFromHistory(t *testing.T) {
	r := (&scriptedRelay{}).push("P1").push("P2")
	m := newTestManager(t, r, Options{})
	ctx := context.Background()

	_, err := m.Generate(ctx, Brief{Purpose: "first", Tone: "Witty"})
	require.NoError(t, err)
	_, err = m.Generate(ctx, Brief{Purpose: "second"})
	require.NoError(t, err)

	history := m.History()
	require.Len(t, history, 2)
	target := history[1]

	state, err := m.LoadFromHistory(target.ID)
	require.NoError(t, err)
	assert.Equal(t, "P1", state.Artifact)
	assert.Equal(t, []llm.Turn{{Role: llm.RoleModel, Content: "P1"}}, state.Transcript)
	assert.Equal(t, Brief{Purpose: "first", Tone: "Witty"}, state.Brief)
	assert.Equal(t, history, m.History())

	_, err = m.LoadFromHistory("missing")
	assert.ErrorIs(t, err, ErrUnknownEntry)
}

func TestHistoryBound(t *testing.T) {
	const capacity = 3
	r := &scriptedRelay{}
	for i := 0; i < 5; i++ {
		r.push(fmt.Sprintf("P%d", i))
	}
	m := newTestManager(t, r, Options{HistoryCapacity: capacity})

	for i := 0; i < 5; i++ {
		_, err := m.Generate(context.Background(), Brief{Purpose: "x"})
		require.NoError(t, err)
	}

	history := m.History()
	require.Len(t, history, capacity)
	assert.Equal(t, "P4", history[0].Prompt)
	assert.Equal(t, "P3", history[1].Prompt)
	assert.Equal(t, "P2", history[2].Prompt)
}

func TestHistoryDedupe(t *testing.T) {
	for _, dedupe := range []bool{true, false} {
		t.Run(fmt.Sprintf("dedupe=%v", dedupe), func(t *testing.T) {
			r := (&scriptedRelay{}).push("same").push("same")
			m := newTestManager(t, r, Options{DedupeHistory: dedupe})

			for i := 0; i < 2; i++ {
				_, err := m.Generate(context.Background(), Brief{Purpose: "x"})
				require.NoError(t, err)
			}

			want := 2
			if dedupe {
				want = 1
			}
			assert.Len(t, m.History(), want)
		})
	}
}

func TestHistoryPersistence(t *testing.T) {
	kv := storage.NewMemoryKV()
	store := NewKVHistoryStore(kv)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	r := (&scriptedRelay{}).push("P1")
	m := newTestManager(t, r, Options{Store: store, Now: func() time.Time { return fixed }})
	_, err := m.Generate(context.Background(), Brief{Purpose: "x"})
	require.NoError(t, err)

	reloaded := newTestManager(t, &scriptedRelay{}, Options{Store: store})
	history := reloaded.History()
	require.Len(t, history, 1)
	assert.Equal(t, "P1", history[0].Prompt)
	assert.True(t, fixed.Equal(history[0].CreatedAt))

	reloaded.ClearHistory(context.Background())
	entries, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingStore struct{}

func (failingStore) Load(context.Context) ([]HistoryEntry, error) {
	return nil, storage.ErrStorage
}

func (failingStore) Save(context.Context, []HistoryEntry) error {
	return storage.ErrStorage
}

func TestHistoryStorageFailuresAreNotFatal(t *testing.T) {
	r := (&scriptedRelay{}).push("P1")
	m := newTestManager(t, r, Options{Store: failingStore{}})

	assert.Empty(t, m.History())
	_, err := m.Generate(context.Background(), Brief{Purpose: "x"})
	require.NoError(t, err)
	assert.Len(t, m.History(), 1)
}

func TestCorruptPersistedHistoryFallsBack(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), storage.KeyHistory, "{broken"))

	m := newTestManager(t, &scriptedRelay{}, Options{Store: NewKVHistoryStore(kv)})
	assert.Empty(t, m.History())
}

func TestSetHistoryCapacity(t *testing.T) {
	r := (&scriptedRelay{}).push("P1").push("P2").push("P3")
	m := newTestManager(t, r, Options{})
	for i := 0; i < 3; i++ {
		_, err := m.Generate(context.Background(), Brief{Purpose: "x"})
		require.NoError(t, err)
	}

	m.SetHistoryCapacity(context.Background(), 2)
	history := m.History()
	require.Len(t, history, 2)
	assert.Equal(t, "P3", history[0].Prompt)
}

func TestGenerate_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := (&scriptedRelay{}).push("a", "b")
	m := newTestManager(t, r, Options{})

	_, err := m.Generate(ctx, Brief{Purpose: "x"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusFailed, m.Snapshot().Status)
	assert.Empty(t, m.History())
}

func TestInsertHistory(t *testing.T) {
	var list []HistoryEntry
	var changed bool
	for i := 0; i < 12; i++ {
		list, changed = insertHistory(list, HistoryEntry{Prompt: fmt.Sprint(i)}, 0, true)
		require.True(t, changed)
	}
	require.Len(t, list, DefaultHistoryCapacity)
	assert.Equal(t, "11", list[0].Prompt)
	assert.Equal(t, "2", list[9].Prompt)
}

func TestFragmentCallbacks(t *testing.T) {
	r := (&scriptedRelay{}).push("a", "b").push("c", "d")
	m := newTestManager(t, r, Options{})
	ctx := context.Background()

	var got []string
	record := func(f string) { got = append(got, f) }

	_, err := m.GenerateFunc(ctx, Brief{Purpose: "x"}, record)
	require.NoError(t, err)
	_, err = m.RefineFunc(ctx, "more", record)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestResolveBrief(t *testing.T) {
	b, err := ResolveBrief("  a tutor ", "WITTY", "", "")
	require.NoError(t, err)
	assert.Equal(t, Brief{Purpose: "a tutor", Tone: "Witty"}, b)

	b, err = ResolveBrief("", "", "students", "productivity assistant")
	require.NoError(t, err)
	assert.NotEmpty(t, b.Purpose)
	assert.NotEmpty(t, b.Tone)
	assert.Equal(t, "students", b.Audience)

	_, err = ResolveBrief("x", "", "", "no such brief")
	assert.ErrorIs(t, err, llm.ErrInvalidRequest)
}
