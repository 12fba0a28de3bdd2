package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/mnrezaali/ai-prompt-generator/internal/diff"
	"github.com/mnrezaali/ai-prompt-generator/internal/search"
	"github.com/mnrezaali/ai-prompt-generator/internal/tui/layout"
	"github.com/mnrezaali/ai-prompt-generator/internal/tui/theme"
)

// historyAction is what the user chose in the history overlay.
type historyAction int

const (
	historyNone historyAction = iota
	historyLoad
	historyClear
	historyClose
)

// historyList is the searchable history overlay.
type historyList struct {
	theme   theme.Theme
	filter  textinput.Model
	entries []conversation.HistoryEntry
	results []search.Result
	cursor  int

	// current is the prompt diffs are computed against.
	current  string
	showDiff bool

	width  int
	height int
}

func newHistoryList(th theme.Theme) *historyList {
	ti := textinput.New()
	ti.Placeholder = "filter…"
	ti.Prompt = "/ "
	ti.CharLimit = 200
	return &historyList{theme: th, filter: ti}
}

// Open resets the overlay over entries.
func (h *historyList) Open(entries []conversation.HistoryEntry, current string) tea.Cmd {
	h.entries = entries
	h.current = current
	h.showDiff = false
	h.cursor = 0
	h.filter.Reset()
	h.refresh()
	return h.filter.Focus()
}

// SetSize bounds the overlay.
func (h *historyList) SetSize(width, height int) {
	h.width = width
	h.height = height
	h.filter.Width = max(width-8, 10)
}

func (h *historyList) refresh() {
	h.results = search.History(h.entries, search.Options{Query: h.filter.Value()})
	if h.cursor >= len(h.results) {
		h.cursor = max(len(h.results)-1, 0)
	}
}

// Selected returns the entry under the cursor.
func (h *historyList) Selected() (conversation.HistoryEntry, bool) {
	if len(h.results) == 0 {
		return conversation.HistoryEntry{}, false
	}
	return h.results[h.cursor].Entry, true
}

// Update handles a key and reports the chosen action.
func (h *historyList) Update(msg tea.KeyMsg) (historyAction, tea.Cmd) {
	switch {
	case key.Matches(msg, historyKeys.Close):
		if h.showDiff {
			h.showDiff = false
			return historyNone, nil
		}
		return historyClose, nil
	case key.Matches(msg, historyKeys.Up):
		if h.cursor > 0 {
			h.cursor--
		}
		return historyNone, nil
	case key.Matches(msg, historyKeys.Down):
		if h.cursor < len(h.results)-1 {
			h.cursor++
		}
		return historyNone, nil
	case key.Matches(msg, historyKeys.Diff):
		h.showDiff = !h.showDiff
		return historyNone, nil
	case key.Matches(msg, historyKeys.Delete):
		return historyClear, nil
	case key.Matches(msg, historyKeys.Load):
		if _, ok := h.Selected(); ok {
			return historyLoad, nil
		}
		return historyNone, nil
	}

	before := h.filter.Value()
	var cmd tea.Cmd
	h.filter, cmd = h.filter.Update(msg)
	if h.filter.Value() != before {
		h.cursor = 0
		h.refresh()
	}
	return historyNone, cmd
}

// View renders the overlay box.
func (h *historyList) View() string {
	inner := max(h.width-6, 20)
	var b strings.Builder

	b.WriteString(h.theme.Title().Render(fmt.Sprintf("History (%d)", len(h.entries))))
	b.WriteString("\n")
	b.WriteString(h.filter.View())
	b.WriteString("\n\n")

	if h.showDiff {
		b.WriteString(h.diffView(inner))
	} else {
		b.WriteString(h.listView(inner))
	}

	b.WriteString("\n")
	b.WriteString(h.theme.Muted().Render("enter load · tab diff · ctrl+x clear · esc close"))
	return h.theme.Panel(true).Width(inner + 2).Render(b.String())
}

func (h *historyList) listView(width int) string {
	if len(h.results) == 0 {
		if len(h.entries) == 0 {
			return h.theme.Muted().Render("No saved prompts yet")
		}
		return h.theme.Muted().Render("No matches")
	}

	rows := max(h.height-8, 3)
	start := 0
	if h.cursor >= rows {
		start = h.cursor - rows + 1
	}

	var lines []string
	for i := start; i < len(h.results) && i < start+rows; i++ {
		e := h.results[i].Entry
		label := e.Title()
		if e.Instruction != "" {
			label += " · " + e.Instruction
		}
		line := fmt.Sprintf("%s  %s", e.CreatedAt.Format("01-02 15:04"), label)
		line = layout.Truncate(line, width-2)
		if i == h.cursor {
			line = h.theme.Selected().Render("› " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (h *historyList) diffView(width int) string {
	entry, ok := h.Selected()
	if !ok {
		return h.theme.Muted().Render("Nothing selected")
	}
	stats := diff.Compute(h.current, entry.Prompt)
	if !stats.Changed() {
		return h.theme.Muted().Render("Identical to the current prompt")
	}

	header := h.theme.Muted().Render(fmt.Sprintf("current → %s  +%d -%d", entry.Title(), stats.Inserted, stats.Deleted))
	lines := strings.Split(diff.Unified("current", entry.ID, h.current, entry.Prompt), "\n")
	limit := max(h.height-9, 3)
	if len(lines) > limit {
		lines = append(lines[:limit], "…")
	}
	for i, line := range lines {
		line = layout.Truncate(line, width)
		switch {
		case strings.HasPrefix(line, "+"):
			line = h.theme.Added().Render(line)
		case strings.HasPrefix(line, "-"):
			line = h.theme.ErrorText().Render(line)
		}
		lines[i] = line
	}
	return header + "\n" + strings.Join(lines, "\n")
}
