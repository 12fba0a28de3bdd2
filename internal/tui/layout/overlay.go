// Package layout composes TUI views.
package layout

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Position represents where to place an overlay
type Position int

const (
	Center Position = iota
	Top
	Bottom
)

// PlaceOverlay draws overlay on top of background, which is assumed to be
// width by height cells. Styled text on either side of the overlay is kept.
func PlaceOverlay(width, height int, overlay, background string, pos Position) string {
	overlayLines := strings.Split(overlay, "\n")
	backgroundLines := strings.Split(background, "\n")
	for len(backgroundLines) < height {
		backgroundLines = append(backgroundLines, "")
	}

	overlayWidth := 0
	for _, line := range overlayLines {
		overlayWidth = max(overlayWidth, lipgloss.Width(line))
	}

	startX := max((width-overlayWidth)/2, 0)
	var startY int
	switch pos {
	case Top:
		startY = 0
	case Bottom:
		startY = height - len(overlayLines)
	default:
		startY = (height - len(overlayLines)) / 2
	}
	startY = max(startY, 0)

	for i, line := range overlayLines {
		y := startY + i
		if y >= len(backgroundLines) {
			break
		}
		bg := backgroundLines[y]
		if pad := startX + overlayWidth - ansi.StringWidth(bg); pad > 0 {
			bg += strings.Repeat(" ", pad)
		}
		lineWidth := ansi.StringWidth(line)
		left := ansi.Truncate(bg, startX, "")
		right := ansi.TruncateLeft(bg, startX+lineWidth, "")
		backgroundLines[y] = left + line + right
	}

	return strings.Join(backgroundLines, "\n")
}

// Truncate shortens a possibly styled line to width cells.
func Truncate(line string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(line, width, "…")
}
