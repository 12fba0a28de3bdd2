package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/mnrezaali/ai-prompt-generator/internal/diff"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/mnrezaali/ai-prompt-generator/internal/markdown"
	"github.com/mnrezaali/ai-prompt-generator/internal/search"
)

// GenerateSessionRequest starts a new prompt. Recommendation names a built-in
// brief and fills any empty field.
type GenerateSessionRequest struct {
	Purpose        string `json:"purpose"`
	UserInput      string `json:"userInput"`
	Tone           string `json:"tone"`
	Audience       string `json:"audience"`
	TargetAudience string `json:"targetAudience"`
	Recommendation string `json:"recommendation,omitempty"`
}

func (g GenerateSessionRequest) brief() (conversation.Brief, error) {
	return conversation.ResolveBrief(
		firstNonEmpty(g.Purpose, g.UserInput),
		g.Tone,
		firstNonEmpty(g.Audience, g.TargetAudience),
		g.Recommendation,
	)
}

// RefineSessionRequest asks for a rewrite of the current prompt.
type RefineSessionRequest struct {
	Instruction string `json:"instruction"`
	Message     string `json:"message"`
}

// SessionResponse is the current session as seen by clients.
type SessionResponse struct {
	State   conversation.State `json:"state"`
	Turns   []llm.Turn         `json:"turns"`
	Blocks  []markdown.Block   `json:"blocks"`
	Busy    bool               `json:"busy"`
	Model   string             `json:"model,omitempty"`
	History int                `json:"historySize"`
}

// HistoryItem is a history entry decorated for list views.
type HistoryItem struct {
	conversation.HistoryEntry
	Title string       `json:"title"`
	Match search.Field `json:"match,omitempty"`
	Score int          `json:"score,omitempty"`
}

// DiffResponse compares two prompt versions.
type DiffResponse struct {
	From    string     `json:"from"`
	To      string     `json:"to"`
	Unified string     `json:"unified"`
	Stats   diff.Stats `json:"stats"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s *Server) sessionResponse() SessionResponse {
	state := s.manager.Snapshot()
	return SessionResponse{
		State:   state,
		Turns:   state.VisibleTurns(),
		Blocks:  markdown.FormatLines(state.Artifact),
		Busy:    s.manager.Busy(),
		Model:   s.model,
		History: len(s.manager.History()),
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.sessionResponse())
}

func (s *Server) handleSessionGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	brief, err := req.brief()
	if err != nil {
		writeFailure(w, err)
		return
	}

	out := newTextStream(w)
	if _, err := s.manager.GenerateFunc(r.Context(), brief, out.write); err != nil {
		if r.Context().Err() != nil {
			return
		}
		out.fail(err)
		return
	}
	out.finish()
}

func (s *Server) handleSessionRefine(w http.ResponseWriter, r *http.Request) {
	var req RefineSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	out := newTextStream(w)
	if _, err := s.manager.RefineFunc(r.Context(), firstNonEmpty(req.Instruction, req.Message), out.write); err != nil {
		if r.Context().Err() != nil {
			return
		}
		out.fail(err)
		return
	}
	out.finish()
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results := search.History(s.manager.History(), search.Options{
		Query:      r.URL.Query().Get("q"),
		MaxResults: limit,
	})

	items := make([]HistoryItem, 0, len(results))
	for _, res := range results {
		item := HistoryItem{HistoryEntry: res.Entry, Title: res.Entry.Title()}
		if r.URL.Query().Get("q") != "" {
			item.Match = res.Field
			item.Score = res.Score
		}
		items = append(items, item)
	}
	writeJSON(w, map[string]any{"entries": items})
}

func (s *Server) handleGetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.manager.Entry(mux.Vars(r)["id"])
	if err != nil {
		writeFailure(w, err)
		return
	}
	blocks := markdown.FormatLines(entry.Prompt)
	writeJSON(w, map[string]any{
		"entry":  HistoryItem{HistoryEntry: entry, Title: entry.Title()},
		"blocks": blocks,
		"html":   markdown.ToHTML(blocks),
	})
}

func (s *Server) handleLoadHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := s.manager.LoadFromHistory(mux.Vars(r)["id"]); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, s.sessionResponse())
}

// handleDiffHistory diffs an entry against another entry, or against the
// current prompt when "against" is empty.
func (s *Server) handleDiffHistory(w http.ResponseWriter, r *http.Request) {
	entry, err := s.manager.Entry(mux.Vars(r)["id"])
	if err != nil {
		writeFailure(w, err)
		return
	}

	from, fromText := "current", s.manager.Snapshot().Artifact
	if against := r.URL.Query().Get("against"); against != "" {
		other, err := s.manager.Entry(against)
		if err != nil {
			writeFailure(w, err)
			return
		}
		from, fromText = other.ID, other.Prompt
	}
	if fromText == "" && from == "current" {
		writeFailure(w, fmt.Errorf("%w: no current prompt to compare against", llm.ErrInvalidRequest))
		return
	}

	writeJSON(w, DiffResponse{
		From:    from,
		To:      entry.ID,
		Unified: diff.Unified(from, entry.ID, fromText, entry.Prompt),
		Stats:   diff.Compute(fromText, entry.Prompt),
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.manager.ClearHistory(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
