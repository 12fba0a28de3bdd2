package markdown

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// RendererConfig holds configuration for terminal rendering
type RendererConfig struct {
	Width int
	Style string // "auto", "dark", "light", "notty"
}

// DefaultConfig returns a default renderer configuration
func DefaultConfig() *RendererConfig {
	return &RendererConfig{Width: 80, Style: "auto"}
}

// Renderer wraps glamour for printing prompts in a terminal
type Renderer struct {
	glamourRenderer *glamour.TermRenderer
	config          *RendererConfig
}

// NewRenderer creates a new markdown renderer with the given configuration
func NewRenderer(config *RendererConfig) (*Renderer, error) {
	if config == nil {
		config = DefaultConfig()
	}

	styleOpt := glamour.WithAutoStyle()
	if config.Style != "" && config.Style != "auto" {
		styleOpt = glamour.WithStandardStyle(config.Style)
	}

	glamourRenderer, err := glamour.NewTermRenderer(
		styleOpt,
		glamour.WithWordWrap(config.Width),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create glamour renderer: %w", err)
	}

	return &Renderer{
		glamourRenderer: glamourRenderer,
		config:          config,
	}, nil
}

// Render renders a prompt to styled terminal output
func (r *Renderer) Render(text string) (string, error) {
	if text == "" {
		return "", nil
	}

	rendered, err := r.glamourRenderer.Render(preprocess(text))
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return collapseBlankLines(rendered), nil
}

// preprocess strips trailing whitespace, which glamour would otherwise keep
// as hard line breaks.
func preprocess(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func collapseBlankLines(rendered string) string {
	lines := strings.Split(rendered, "\n")
	result := make([]string, 0, len(lines))
	blankCount := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blankCount++
			if blankCount > 1 {
				continue
			}
		} else {
			blankCount = 0
		}
		result = append(result, line)
	}
	return strings.Join(result, "\n")
}
