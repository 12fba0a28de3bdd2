// Package search ranks history entries against a free-text query.
package search

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
)

// Field identifies which part of an entry matched.
type Field string

const (
	FieldTitle       Field = "title"
	FieldPurpose     Field = "purpose"
	FieldInstruction Field = "instruction"
	FieldPrompt      Field = "prompt"
)

// Result is a ranked match. Lower Score is better.
type Result struct {
	Entry conversation.HistoryEntry `json:"entry"`
	Field Field                     `json:"field"`
	Score int                       `json:"score"`
}

// Options configures a search.
type Options struct {
	Query      string
	MaxResults int
}

// promptPenalty pushes body-only matches below any label match.
const promptPenalty = 1 << 20

// History returns the entries matching opts.Query, best match first. An
// empty query returns every entry in its original order.
func History(entries []conversation.HistoryEntry, opts Options) []Result {
	query := strings.TrimSpace(opts.Query)
	results := make([]Result, 0, len(entries))

	for _, e := range entries {
		if query == "" {
			results = append(results, Result{Entry: e, Field: FieldTitle})
			continue
		}
		if r, ok := rank(query, e); ok {
			results = append(results, r)
		}
	}

	if query != "" {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score < results[j].Score
		})
	}
	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	return results
}

func rank(query string, e conversation.HistoryEntry) (Result, bool) {
	best := Result{Entry: e, Score: -1}
	labels := []struct {
		field Field
		text  string
	}{
		{FieldTitle, e.Title()},
		{FieldPurpose, e.Purpose},
		{FieldInstruction, e.Instruction},
	}
	for _, l := range labels {
		if l.text == "" {
			continue
		}
		score := fuzzy.RankMatchFold(query, l.text)
		if score < 0 {
			continue
		}
		if best.Score < 0 || score < best.Score {
			best.Field = l.field
			best.Score = score
		}
	}
	if best.Score >= 0 {
		return best, true
	}

	// Prompts are long, so edit distance against them says little. Fall back
	// to a substring test and rank by position.
	if idx := strings.Index(strings.ToLower(e.Prompt), strings.ToLower(query)); idx >= 0 {
		best.Field = FieldPrompt
		best.Score = promptPenalty + idx
		return best, true
	}
	if fuzzy.MatchFold(query, e.Prompt) {
		best.Field = FieldPrompt
		best.Score = promptPenalty + len(e.Prompt)
		return best, true
	}
	return Result{}, false
}
