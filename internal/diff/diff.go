// Package diff compares two prompt versions.
package diff

import (
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/aymanbagabas/go-udiff"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Stats summarizes a character-level comparison.
type Stats struct {
	Inserted  int `json:"inserted"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

// Changed reports whether the texts differ.
func (s Stats) Changed() bool {
	return s.Inserted > 0 || s.Deleted > 0
}

// Unified returns a unified line diff of old and new. Identical inputs give
// an empty string.
func Unified(oldLabel, newLabel, old, new string) string {
	if old == new {
		return ""
	}
	return udiff.Unified(oldLabel, newLabel, ensureNewline(old), ensureNewline(new))
}

// Compute counts inserted, deleted and unchanged characters.
func Compute(old, new string) Stats {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(old, new, false))

	var s Stats
	for _, d := range diffs {
		n := len([]rune(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			s.Inserted += n
		case diffmatchpatch.DiffDelete:
			s.Deleted += n
		case diffmatchpatch.DiffEqual:
			s.Unchanged += n
		}
	}
	return s
}

// Pretty renders an inline diff with ANSI colours for terminals.
func Pretty(old, new string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(old, new, false))
	return dmp.DiffPrettyText(diffs)
}

// Highlight colours a unified diff for a 256-colour terminal using the named
// chroma style.
func Highlight(unified, style string) (string, error) {
	if unified == "" {
		return "", nil
	}
	if style == "" {
		style = "monokai"
	}
	var b strings.Builder
	if err := quick.Highlight(&b, unified, "diff", "terminal256", style); err != nil {
		return "", err
	}
	return b.String(), nil
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
