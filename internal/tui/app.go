// Package tui is the interactive terminal front end for a prompt session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/mnrezaali/ai-prompt-generator/internal/events"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm/prompt"
	"github.com/mnrezaali/ai-prompt-generator/internal/markdown"
	"github.com/mnrezaali/ai-prompt-generator/internal/tui/layout"
	"github.com/mnrezaali/ai-prompt-generator/internal/tui/theme"
)

type inputMode int

const (
	modeBrief inputMode = iota
	modeRefine
)

type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayHistory
	overlayHelp
)

// Messages
type (
	updateMsg struct {
		event events.Event[conversation.Update]
	}
	updatesClosedMsg struct{}
	operationDoneMsg struct{ err error }
	clipboardDoneMsg struct{ err error }
)

// Options configures the TUI.
type Options struct {
	// Theme is a catppuccin flavour name.
	Theme string
	// Model is shown in the header.
	Model string
	// WriteClipboard overrides the system clipboard.
	WriteClipboard func(string) error
}

// Model is the root bubbletea model.
type Model struct {
	ctx     context.Context
	manager *conversation.Manager
	updates <-chan events.Event[conversation.Update]
	opts    Options
	theme   theme.Theme

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	history  *historyList
	renderer *markdown.Renderer

	state   conversation.State
	mode    inputMode
	tone    int
	overlay overlayKind
	running bool
	cancel  context.CancelFunc
	status  string
	err     error

	width          int
	height         int
	darkBackground bool
}

// New creates the TUI over manager. The model subscribes to manager updates
// until ctx is done.
func New(ctx context.Context, manager *conversation.Manager, opts Options) *Model {
	if opts.WriteClipboard == nil {
		opts.WriteClipboard = clipboard.WriteAll
	}
	th := theme.New(opts.Theme)

	ti := textinput.New()
	ti.CharLimit = 2000
	ti.Prompt = "› "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(th.Primary)
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(th.Accent)

	m := &Model{
		ctx:      ctx,
		manager:  manager,
		updates:  manager.Subscribe(ctx),
		opts:     opts,
		theme:    th,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		help:     help.New(),
		history:  newHistoryList(th),
		state:    manager.Snapshot(),

		darkBackground: lipgloss.HasDarkBackground(),
	}
	if m.state.Artifact != "" {
		m.mode = modeRefine
	}
	m.tone = toneIndex(m.state.Brief.Tone)
	m.updatePlaceholder()
	m.refreshContent()
	return m
}

func toneIndex(tone string) int {
	for i, t := range prompt.ToneOptions {
		if strings.EqualFold(t, tone) {
			return i + 1
		}
	}
	return 0
}

func (m *Model) toneLabel() string {
	if m.tone == 0 {
		return ""
	}
	return prompt.ToneOptions[m.tone-1]
}

func waitForUpdate(ch <-chan events.Event[conversation.Update]) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return updatesClosedMsg{}
		}
		return updateMsg{event: ev}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(m.updates))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case updateMsg:
		m.state = msg.event.Payload.State
		atBottom := m.viewport.AtBottom()
		m.refreshContent()
		if m.state.Status == conversation.StatusStreaming && atBottom {
			m.viewport.GotoBottom()
		}
		return m, waitForUpdate(m.updates)

	case updatesClosedMsg:
		return m, nil

	case operationDoneMsg:
		m.running = false
		m.cancel = nil
		m.state = m.manager.Snapshot()
		switch {
		case msg.err == nil:
			m.err = nil
			m.mode = modeRefine
			m.status = "Saved to history"
		case errors.Is(msg.err, context.Canceled):
			m.status = "Stopped"
		default:
			m.err = msg.err
			m.status = ""
		}
		m.updatePlaceholder()
		m.refreshContent()
		return m, nil

	case clipboardDoneMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("copy failed: %w", msg.err)
		} else {
			m.status = "Prompt copied to clipboard"
		}
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}

	switch m.overlay {
	case overlayHelp:
		m.overlay = overlayNone
		return m, nil
	case overlayHistory:
		return m.handleHistoryKey(msg)
	}

	switch {
	case key.Matches(msg, keys.Cancel):
		if m.cancel != nil {
			m.cancel()
		}
		return m, nil
	case key.Matches(msg, keys.Help):
		m.overlay = overlayHelp
		return m, nil
	case key.Matches(msg, keys.History):
		if m.running {
			return m, nil
		}
		m.overlay = overlayHistory
		return m, m.history.Open(m.manager.History(), m.state.Artifact)
	case key.Matches(msg, keys.ScrollUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, keys.ScrollDown):
		m.viewport.HalfViewDown()
		return m, nil
	case key.Matches(msg, keys.Copy):
		return m, m.copyPrompt()
	case key.Matches(msg, keys.Tone):
		m.tone = (m.tone + 1) % (len(prompt.ToneOptions) + 1)
		return m, nil
	case key.Matches(msg, keys.NewPrompt):
		if m.running {
			return m, nil
		}
		m.mode = modeBrief
		m.err = nil
		m.status = ""
		m.updatePlaceholder()
		return m, nil
	case key.Matches(msg, keys.Regenerate):
		return m, m.regenerate()
	case key.Matches(msg, keys.Submit):
		return m, m.submit()
	}

	if m.running {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action, cmd := m.history.Update(msg)
	switch action {
	case historyClose:
		m.overlay = overlayNone
	case historyClear:
		m.manager.ClearHistory(m.ctx)
		m.history.Open(nil, m.state.Artifact)
		m.status = "History cleared"
	case historyLoad:
		entry, _ := m.history.Selected()
		state, err := m.manager.LoadFromHistory(entry.ID)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.state = state
		m.mode = modeRefine
		m.tone = toneIndex(state.Brief.Tone)
		m.overlay = overlayNone
		m.err = nil
		m.status = "Loaded " + entry.Title()
		m.updatePlaceholder()
		m.refreshContent()
		m.viewport.GotoTop()
	}
	return m, cmd
}

// submit sends the input line. In brief mode a recommendation title is
// accepted in place of a purpose.
func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if m.running || text == "" {
		return nil
	}

	if m.mode == modeRefine {
		m.input.Reset()
		return m.run("Refining", func(ctx context.Context) error {
			_, err := m.manager.Refine(ctx, text)
			return err
		})
	}

	purpose, recommendation := text, ""
	if rec, ok := prompt.FindRecommendation(text); ok {
		purpose, recommendation = "", rec.Title
	}
	brief, err := conversation.ResolveBrief(purpose, m.toneLabel(), "", recommendation)
	if err != nil {
		m.err = err
		return nil
	}
	m.tone = toneIndex(brief.Tone)
	m.input.Reset()
	return m.generate(brief)
}

func (m *Model) regenerate() tea.Cmd {
	if m.running {
		return nil
	}
	brief := m.state.Brief
	if brief.Purpose == "" {
		m.err = fmt.Errorf("%w: nothing to regenerate yet", llm.ErrInvalidRequest)
		return nil
	}
	if tone := m.toneLabel(); tone != "" {
		brief.Tone = tone
	}
	return m.generate(brief)
}

func (m *Model) generate(brief conversation.Brief) tea.Cmd {
	return m.run("Generating", func(ctx context.Context) error {
		_, err := m.manager.Generate(ctx, brief)
		return err
	})
}

// run starts op in the background. Esc cancels it.
func (m *Model) run(label string, op func(context.Context) error) tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.running = true
	m.err = nil
	m.status = label + "…"
	log.Debug("Starting operation", "op", label)

	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		defer cancel()
		return operationDoneMsg{err: op(ctx)}
	})
}

func (m *Model) copyPrompt() tea.Cmd {
	text := m.state.Artifact
	if text == "" {
		return nil
	}
	write := m.opts.WriteClipboard
	return func() tea.Msg {
		return clipboardDoneMsg{err: write(text)}
	}
}

func (m *Model) updatePlaceholder() {
	if m.mode == modeRefine {
		m.input.Placeholder = "Describe a change, e.g. make it more concise"
		return
	}
	m.input.Placeholder = "What should the AI do? (or a recommendation title)"
}

func (m *Model) resize() {
	headerHeight, footerHeight := 1, 4
	m.viewport.Width = max(m.width-4, 10)
	m.viewport.Height = max(m.height-headerHeight-footerHeight-2, 3)
	m.input.Width = max(m.width-6, 10)
	m.help.Width = m.width
	m.history.SetSize(min(m.width-4, 100), m.height-4)
	m.renderer = nil
	m.refreshContent()
}

// displayText is the prompt to show: the in-flight rewrite while refining,
// otherwise the artifact.
func displayText(state conversation.State) string {
	turns := state.VisibleTurns()
	if state.Status == conversation.StatusStreaming && len(turns) > 0 {
		if last := turns[len(turns)-1]; last.Role == llm.RoleModel && !last.Failed {
			return last.Content
		}
	}
	return state.Artifact
}

func (m *Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		style := "dark"
		if !m.darkBackground {
			style = "light"
		}
		r, err := markdown.NewRenderer(&markdown.RendererConfig{Width: m.viewport.Width - 2, Style: style})
		if err != nil {
			log.Debug("Markdown renderer unavailable", "error", err)
			return text
		}
		m.renderer = r
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func (m *Model) refreshContent() {
	var b strings.Builder

	text := displayText(m.state)
	if text == "" {
		b.WriteString(m.welcome())
	} else {
		b.WriteString(m.renderMarkdown(text))
	}

	turns := m.state.VisibleTurns()
	if len(turns) > 0 {
		b.WriteString("\n\n")
		b.WriteString(m.theme.Muted().Render("Refinements"))
		b.WriteString("\n")
		width := max(m.viewport.Width-4, 10)
		for _, t := range turns {
			switch {
			case t.Role == llm.RoleUser:
				b.WriteString(m.theme.UserTurn().Render("› " + layout.Truncate(t.Content, width)))
			case t.Failed:
				b.WriteString(m.theme.ErrorText().Render("  ✗ " + layout.Truncate(t.Content, width)))
			case t.Content == "":
				b.WriteString(m.theme.Muted().Render("  …"))
			default:
				b.WriteString(m.theme.Muted().Render("  ✓ revised"))
			}
			b.WriteString("\n")
		}
	}

	m.viewport.SetContent(b.String())
}

func (m *Model) welcome() string {
	var b strings.Builder
	b.WriteString(m.theme.Muted().Render("Describe the assistant you want and press enter. Or start from one of these:"))
	b.WriteString("\n\n")
	for _, r := range prompt.RecommendedPrompts {
		b.WriteString(m.theme.Selected().Render(r.Title))
		b.WriteString(m.theme.Muted().Render("  " + r.Description))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := m.headerView()
	body := m.theme.Panel(m.overlay == overlayNone).Render(m.viewport.View())
	content := lipgloss.JoinVertical(lipgloss.Left, header, body, m.inputView(), m.footerView())

	switch m.overlay {
	case overlayHistory:
		return layout.PlaceOverlay(m.width, m.height, m.history.View(), content, layout.Center)
	case overlayHelp:
		box := m.theme.Panel(true).Render(m.help.FullHelpView(keys.FullHelp()))
		return layout.PlaceOverlay(m.width, m.height, box, content, layout.Center)
	}
	return content
}

func (m *Model) headerView() string {
	parts := []string{m.theme.Title().Render("Prompt Generator")}
	if m.opts.Model != "" {
		parts = append(parts, m.theme.Muted().Render(m.opts.Model))
	}
	tone := m.toneLabel()
	if tone == "" {
		tone = "any tone"
	}
	parts = append(parts, m.theme.Muted().Render(tone))
	if n := len(m.manager.History()); n > 0 {
		parts = append(parts, m.theme.Muted().Render(fmt.Sprintf("%d saved", n)))
	}
	return layout.Truncate(strings.Join(parts, "  ·  "), m.width)
}

func (m *Model) inputView() string {
	if m.running {
		return " " + m.spinner.View() + " " + m.theme.Muted().Render(m.status+" (esc to stop)")
	}
	return " " + m.input.View()
}

func (m *Model) footerView() string {
	var line string
	switch {
	case m.err != nil:
		line = m.theme.ErrorText().Render("Error: " + m.err.Error())
	case m.status != "":
		line = m.theme.Muted().Render(m.status)
	}
	return layout.Truncate(line, m.width) + "\n" + m.help.View(keys)
}

// Run starts the TUI application
func Run(ctx context.Context, manager *conversation.Manager, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(
		New(ctx, manager, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
