package tui

import "github.com/charmbracelet/bubbles/key"

// Key bindings
type keyMap struct {
	Submit     key.Binding
	Regenerate key.Binding
	NewPrompt  key.Binding
	Tone       key.Binding
	History    key.Binding
	Copy       key.Binding
	Cancel     key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	Regenerate: key.NewBinding(
		key.WithKeys("ctrl+g"),
		key.WithHelp("ctrl+g", "regenerate"),
	),
	NewPrompt: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("ctrl+n", "new prompt"),
	),
	Tone: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "cycle tone"),
	),
	History: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "history"),
	),
	Copy: key.NewBinding(
		key.WithKeys("ctrl+y"),
		key.WithHelp("ctrl+y", "copy prompt"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "stop / close"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup", "ctrl+u"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("pgdown", "ctrl+d"),
		key.WithHelp("pgdn", "scroll down"),
	),
	Help: key.NewBinding(
		key.WithKeys("f1"),
		key.WithHelp("f1", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Regenerate, k.History, k.Copy, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Regenerate, k.NewPrompt, k.Tone},
		{k.History, k.Copy, k.Cancel},
		{k.ScrollUp, k.ScrollDown, k.Help, k.Quit},
	}
}

type historyKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Load   key.Binding
	Diff   key.Binding
	Delete key.Binding
	Close  key.Binding
}

var historyKeys = historyKeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "ctrl+p"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "ctrl+n"),
		key.WithHelp("↓", "down"),
	),
	Load: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "load"),
	),
	Diff: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "diff vs current"),
	),
	Delete: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("ctrl+x", "clear history"),
	),
	Close: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "close"),
	),
}
