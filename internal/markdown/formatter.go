package markdown

import (
	"html"
	"strings"
)

// BlockKind classifies one display line of a generated prompt.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockBullet    BlockKind = "bullet"
	BlockParagraph BlockKind = "paragraph"
)

// Block is one formatted line.
type Block struct {
	Kind BlockKind `json:"kind"`
	Text string    `json:"text"`
}

// FormatLines splits text into display blocks. A line wrapped in "**" is a
// heading, a line starting with "* " is a bullet, and any other non-blank
// line is a paragraph. Blank lines are dropped.
func FormatLines(text string) []Block {
	var blocks []Block
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case len(trimmed) > 4 && strings.HasPrefix(trimmed, "**") && strings.HasSuffix(trimmed, "**"):
			blocks = append(blocks, Block{Kind: BlockHeading, Text: strings.ReplaceAll(trimmed, "**", "")})
		case strings.HasPrefix(trimmed, "* "):
			blocks = append(blocks, Block{Kind: BlockBullet, Text: strings.TrimSpace(trimmed[2:])})
		default:
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: trimmed})
		}
	}
	return blocks
}

// ToHTML renders blocks as escaped HTML fragments.
func ToHTML(blocks []Block) string {
	var sb strings.Builder
	inList := false
	for _, b := range blocks {
		if b.Kind == BlockBullet && !inList {
			sb.WriteString("<ul>")
			inList = true
		} else if b.Kind != BlockBullet && inList {
			sb.WriteString("</ul>")
			inList = false
		}
		text := html.EscapeString(b.Text)
		switch b.Kind {
		case BlockHeading:
			sb.WriteString("<h3>" + text + "</h3>")
		case BlockBullet:
			sb.WriteString("<li>" + text + "</li>")
		default:
			sb.WriteString("<p>" + text + "</p>")
		}
	}
	if inList {
		sb.WriteString("</ul>")
	}
	return sb.String()
}

// Title returns the first non-blank line of text with heading markers removed.
func Title(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return strings.TrimSpace(strings.Trim(line, "*#"))
	}
	return ""
}
