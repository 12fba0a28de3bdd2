// Package theme builds the TUI palette from a catppuccin flavour.
package theme

import (
	"strings"

	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"
)

// Theme holds the adaptive colors used across the TUI. Light terminals always
// get the Latte variant.
type Theme struct {
	Name string

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Accent    lipgloss.AdaptiveColor

	Error   lipgloss.AdaptiveColor
	Warning lipgloss.AdaptiveColor
	Success lipgloss.AdaptiveColor

	Text      lipgloss.AdaptiveColor
	TextMuted lipgloss.AdaptiveColor

	Background          lipgloss.AdaptiveColor
	BackgroundSecondary lipgloss.AdaptiveColor
	Border              lipgloss.AdaptiveColor
	BorderFocused       lipgloss.AdaptiveColor
}

// Flavours lists the accepted theme names.
var Flavours = []string{"mocha", "macchiato", "frappe", "latte"}

func flavour(name string) (string, catppuccin.Flavor) {
	switch name = strings.ToLower(strings.TrimSpace(name)); name {
	case "latte":
		return name, catppuccin.Latte
	case "frappe":
		return name, catppuccin.Frappe
	case "macchiato":
		return name, catppuccin.Macchiato
	default:
		return "mocha", catppuccin.Mocha
	}
}

// New returns the theme for a flavour name. Unknown names get mocha.
func New(name string) Theme {
	name, dark := flavour(name)
	light := catppuccin.Latte

	adaptive := func(pick func(catppuccin.Flavor) catppuccin.Color) lipgloss.AdaptiveColor {
		return lipgloss.AdaptiveColor{Light: pick(light).Hex, Dark: pick(dark).Hex}
	}

	return Theme{
		Name:                name,
		Primary:             adaptive(catppuccin.Flavor.Mauve),
		Secondary:           adaptive(catppuccin.Flavor.Blue),
		Accent:              adaptive(catppuccin.Flavor.Peach),
		Error:               adaptive(catppuccin.Flavor.Red),
		Warning:             adaptive(catppuccin.Flavor.Yellow),
		Success:             adaptive(catppuccin.Flavor.Green),
		Text:                adaptive(catppuccin.Flavor.Text),
		TextMuted:           adaptive(catppuccin.Flavor.Overlay1),
		Background:          adaptive(catppuccin.Flavor.Base),
		BackgroundSecondary: adaptive(catppuccin.Flavor.Mantle),
		Border:              adaptive(catppuccin.Flavor.Surface1),
		BorderFocused:       adaptive(catppuccin.Flavor.Lavender),
	}
}

// Title styles the header bar.
func (t Theme) Title() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
}

// Muted styles secondary text.
func (t Theme) Muted() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.TextMuted)
}

// ErrorText styles failure messages.
func (t Theme) ErrorText() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error)
}

// UserTurn styles refinement instructions in the transcript.
func (t Theme) UserTurn() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Secondary).Bold(true)
}

// Panel is a bordered box.
func (t Theme) Panel(focused bool) lipgloss.Style {
	border := t.Border
	if focused {
		border = t.BorderFocused
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

// Selected highlights the cursor row in lists.
func (t Theme) Selected() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
}

// Added styles inserted diff lines.
func (t Theme) Added() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success)
}
