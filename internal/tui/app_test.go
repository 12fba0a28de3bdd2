package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm/prompt"
	"github.com/mnrezaali/ai-prompt-generator/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	fail error
}

func (f *fakeRelay) Submit(_ context.Context, req relay.Request) (llm.ApiStream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if f.fail != nil {
		return llm.StreamFromChunks(llm.ApiStreamErrorChunk{Err: f.fail}), nil
	}
	switch req := req.(type) {
	case relay.CreateRequest:
		return llm.StreamFromChunks(
			llm.ApiStreamTextChunk{Text: "**Persona**\n"},
			llm.ApiStreamTextChunk{Text: req.Purpose + " / " + req.Tone},
		), nil
	case relay.RefineRequest:
		return llm.StreamFromChunks(llm.ApiStreamTextChunk{Text: req.PriorArtifact + " +" + req.Instruction}), nil
	}
	return nil, errors.New("unexpected request")
}

func newTestModel(t *testing.T, r relay.Submitter) (*Model, *conversation.Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	manager := conversation.NewManager(ctx, r, conversation.Options{DedupeHistory: true})
	t.Cleanup(manager.Close)

	m := New(ctx, manager, Options{Model: "test-model"})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, manager
}

// drain runs cmd and any batched commands, returning the produced messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// press sends a key and feeds completion messages back into the model.
func press(t *testing.T, m *Model, k tea.KeyMsg) {
	t.Helper()
	_, cmd := m.Update(k)
	for _, msg := range drain(cmd) {
		switch msg.(type) {
		case operationDoneMsg, clipboardDoneMsg:
			m.Update(msg)
		}
	}
}

func TestModel_GenerateThenRefine(t *testing.T) {
	m, manager := newTestModel(t, &fakeRelay{})
	assert.Equal(t, modeBrief, m.mode)
	assert.Contains(t, m.View(), "Prompt Generator")
	assert.Contains(t, m.View(), "test-model")

	typeText(m, "a tutor")
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, m.running)
	require.NoError(t, m.err)
	assert.Equal(t, modeRefine, m.mode)
	assert.Equal(t, "**Persona**\na tutor / ", manager.Snapshot().Artifact)
	assert.Empty(t, m.input.Value())
	assert.Equal(t, "Saved to history", m.status)

	typeText(m, "shorter")
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.NoError(t, m.err)
	assert.Equal(t, "**Persona**\na tutor /  +shorter", manager.Snapshot().Artifact)
	assert.Len(t, m.state.VisibleTurns(), 2)
	assert.Contains(t, m.viewport.View(), "shorter")
	assert.Len(t, manager.History(), 2)
}

func TestModel_RecommendationTitle(t *testing.T) {
	m, manager := newTestModel(t, &fakeRelay{})

	typeText(m, "marketing copywriter")
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.NoError(t, m.err)
	brief := manager.Snapshot().Brief
	assert.Contains(t, brief.Purpose, "copywriter")
	assert.Equal(t, "Witty", brief.Tone)
	assert.Equal(t, "Witty", m.toneLabel())
}

func TestModel_ToneCycle(t *testing.T) {
	m, manager := newTestModel(t, &fakeRelay{})

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Equal(t, "Professional", m.toneLabel())
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Equal(t, "Friendly", m.toneLabel())

	typeText(m, "a barista")
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "Friendly", manager.Snapshot().Brief.Tone)

	for range len(prompt.ToneOptions) - 1 {
		m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	}
	assert.Equal(t, "", m.toneLabel())
}

func TestModel_IgnoresInputWhileRunning(t *testing.T) {
	m, _ := newTestModel(t, &fakeRelay{})
	m.running = true

	typeText(m, "ignored")
	assert.Empty(t, m.input.Value())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "esc to stop")
}

func TestModel_Failure(t *testing.T) {
	m, manager := newTestModel(t, &fakeRelay{fail: errors.New("quota exceeded")})

	typeText(m, "a tutor")
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Error(t, m.err)
	assert.Equal(t, modeBrief, m.mode)
	assert.Empty(t, manager.Snapshot().Artifact)
	assert.Contains(t, m.View(), "quota exceeded")
}

func TestModel_Regenerate(t *testing.T) {
	m, manager := newTestModel(t, &fakeRelay{})

	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlG})
	assert.ErrorIs(t, m.err, llm.ErrInvalidRequest)

	typeText(m, "a tutor")
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	typeText(m, "shorter")
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlG})
	require.NoError(t, m.err)
	assert.Equal(t, "**Persona**\na tutor / ", manager.Snapshot().Artifact)
	assert.Empty(t, manager.Snapshot().VisibleTurns())
}

func TestModel_HistoryOverlay(t *testing.T) {
	m, manager := newTestModel(t, &fakeRelay{})
	for _, purpose := range []string{"a tutor", "a chef"} {
		m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
		typeText(m, purpose)
		press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	}
	require.Len(t, manager.History(), 2)

	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.Equal(t, overlayHistory, m.overlay)
	assert.Contains(t, m.View(), "History (2)")

	press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Contains(t, m.history.View(), "current →")
	press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, overlayHistory, m.overlay, "esc leaves the diff first")

	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, overlayNone, m.overlay)
	assert.Equal(t, "**Persona**\na tutor / ", manager.Snapshot().Artifact)
	assert.Equal(t, modeRefine, m.mode)

	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	typeText(m, "chef")
	assert.Len(t, m.history.results, 1)
	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.Empty(t, manager.History())
	press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, overlayNone, m.overlay)
}

func TestModel_Copy(t *testing.T) {
	m, _ := newTestModel(t, &fakeRelay{})
	var copied string
	m.opts.WriteClipboard = func(s string) error {
		copied = s
		return nil
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Empty(t, copied)

	typeText(m, "a tutor")
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Equal(t, "**Persona**\na tutor / ", copied)
	assert.Equal(t, "Prompt copied to clipboard", m.status)
}

func TestModel_HelpOverlay(t *testing.T) {
	m, _ := newTestModel(t, &fakeRelay{})
	press(t, m, tea.KeyMsg{Type: tea.KeyF1})
	assert.Equal(t, overlayHelp, m.overlay)
	assert.True(t, strings.Contains(m.View(), "regenerate"))
	press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Equal(t, overlayNone, m.overlay)
}

func TestDisplayText(t *testing.T) {
	state := conversation.State{
		Artifact: "old",
		Status:   conversation.StatusStreaming,
		Transcript: []llm.Turn{
			{Role: llm.RoleModel, Content: "old"},
			{Role: llm.RoleUser, Content: "change"},
			{Role: llm.RoleModel, Content: "new so far"},
		},
	}
	assert.Equal(t, "new so far", displayText(state))

	state.Status = conversation.StatusCompleted
	assert.Equal(t, "old", displayText(state))
}
