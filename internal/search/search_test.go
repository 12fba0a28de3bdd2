package search

import (
	"testing"

	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entries() []conversation.HistoryEntry {
	return []conversation.HistoryEntry{
		{ID: "1", Purpose: "a tutoring assistant", Prompt: "**Persona**\nA patient tutor for algebra."},
		{ID: "2", Purpose: "travel planner", Prompt: "**Role**\nPlans trips across Europe."},
		{ID: "3", Purpose: "code reviewer", Instruction: "make it stricter", Prompt: "**Reviewer**\nReads Go code."},
	}
}

func ids(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Entry.ID)
	}
	return out
}

func TestHistory_EmptyQueryKeepsOrder(t *testing.T) {
	results := History(entries(), Options{})
	assert.Equal(t, []string{"1", "2", "3"}, ids(results))
}

func TestHistory_MatchesLabels(t *testing.T) {
	results := History(entries(), Options{Query: "trvl"})
	require.Len(t, results, 1)
	assert.Equal(t, "2", results[0].Entry.ID)
	assert.Equal(t, FieldPurpose, results[0].Field)

	results = History(entries(), Options{Query: "persona"})
	require.NotEmpty(t, results)
	assert.Equal(t, "1", results[0].Entry.ID)
	assert.Equal(t, FieldTitle, results[0].Field)

	results = History(entries(), Options{Query: "stricter"})
	require.Len(t, results, 1)
	assert.Equal(t, FieldInstruction, results[0].Field)
}

func TestHistory_FallsBackToPrompt(t *testing.T) {
	results := History(entries(), Options{Query: "europe"})
	require.Len(t, results, 1)
	assert.Equal(t, "2", results[0].Entry.ID)
	assert.Equal(t, FieldPrompt, results[0].Field)
}

func TestHistory_LabelBeatsPrompt(t *testing.T) {
	list := []conversation.HistoryEntry{
		{ID: "body", Purpose: "x", Prompt: "mentions the reviewer somewhere"},
		{ID: "label", Purpose: "reviewer", Prompt: "nothing"},
	}
	results := History(list, Options{Query: "reviewer"})
	assert.Equal(t, []string{"label", "body"}, ids(results))
}

func TestHistory_MaxResults(t *testing.T) {
	results := History(entries(), Options{MaxResults: 2})
	assert.Len(t, results, 2)

	assert.Empty(t, History(entries(), Options{Query: "zzzzqqq"}))
}
