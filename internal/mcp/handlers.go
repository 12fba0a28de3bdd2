package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/mnrezaali/ai-prompt-generator/internal/diff"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm/prompt"
	"github.com/mnrezaali/ai-prompt-generator/internal/search"
)

// historySummary is one entry in list results.
type historySummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	CreatedAt   string `json:"created_at"`
	Purpose     string `json:"purpose"`
	Instruction string `json:"instruction,omitempty"`
	Match       string `json:"match,omitempty"`
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// Tool Handlers

func (ps *PromptServer) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	brief, err := conversation.ResolveBrief(
		request.GetString("purpose", ""),
		request.GetString("tone", ""),
		request.GetString("audience", ""),
		request.GetString("recommendation", ""),
	)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if brief.Purpose == "" {
		return mcp.NewToolResultError("purpose or recommendation is required"), nil
	}

	text, err := ps.manager.Generate(ctx, brief)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("generation failed: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (ps *PromptServer) handleRefine(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instruction, err := request.RequireString("instruction")
	if err != nil {
		return mcp.NewToolResultError("instruction parameter is required"), nil
	}

	text, err := ps.manager.Refine(ctx, instruction)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refinement failed: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (ps *PromptServer) handleListHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	results := search.History(ps.manager.History(), search.Options{
		Query:      query,
		MaxResults: int(request.GetFloat("max_results", 0)),
	})

	summaries := make([]historySummary, 0, len(results))
	for _, r := range results {
		s := historySummary{
			ID:          r.Entry.ID,
			Title:       r.Entry.Title(),
			CreatedAt:   r.Entry.CreatedAt.Format("2006-01-02 15:04:05"),
			Purpose:     r.Entry.Purpose,
			Instruction: r.Entry.Instruction,
		}
		if query != "" {
			s.Match = string(r.Field)
		}
		summaries = append(summaries, s)
	}

	return jsonResult(map[string]any{
		"query":   query,
		"total":   len(summaries),
		"entries": summaries,
	}), nil
}

func (ps *PromptServer) handleLoadHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	state, err := ps.manager.LoadFromHistory(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(state.Artifact), nil
}

func (ps *PromptServer) handleDiffHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	entry, err := ps.manager.Entry(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	from, fromText := "current", ps.manager.Snapshot().Artifact
	if against := request.GetString("against", ""); against != "" {
		other, err := ps.manager.Entry(against)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		from, fromText = other.ID, other.Prompt
	}

	unified := diff.Unified(from, entry.ID, fromText, entry.Prompt)
	if unified == "" {
		return mcp.NewToolResultText("No differences"), nil
	}
	stats := diff.Compute(fromText, entry.Prompt)
	return mcp.NewToolResultText(fmt.Sprintf("%s\n+%d -%d characters", unified, stats.Inserted, stats.Deleted)), nil
}

// Resource Handlers

func (ps *PromptServer) handleSessionResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	state := ps.manager.Snapshot()
	if state.Artifact == "" {
		return nil, errors.New("no prompt has been generated yet")
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/markdown",
			Text:     state.Artifact,
		},
	}, nil
}

func (ps *PromptServer) handleHistoryResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(ps.manager.History(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (ps *PromptServer) handleHistoryEntryResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, historyURI+"/") {
		return nil, fmt.Errorf("invalid history resource URI: %s", uri)
	}

	entry, err := ps.manager.Entry(strings.TrimPrefix(uri, historyURI+"/"))
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     entry.Prompt,
		},
	}, nil
}

// Prompt Handlers

func (ps *PromptServer) handleBriefPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	brief, err := conversation.ResolveBrief(
		request.Params.Arguments["purpose"],
		request.Params.Arguments["tone"],
		request.Params.Arguments["audience"],
		"",
	)
	if err != nil {
		return nil, err
	}
	if brief.Purpose == "" {
		return nil, errors.New("purpose argument is required")
	}
	return briefResult("System prompt brief", brief), nil
}

func (ps *PromptServer) handleRecommendedPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	title := request.Params.Arguments["title"]
	rec, ok := prompt.FindRecommendation(title)
	if !ok {
		return nil, fmt.Errorf("unknown recommendation: %s", title)
	}
	brief := conversation.Brief{Purpose: rec.Purpose, Tone: rec.Tone, Audience: rec.Audience}
	return briefResult(rec.Description, brief), nil
}

func briefResult(description string, brief conversation.Brief) *mcp.GetPromptResult {
	messages := []mcp.PromptMessage{
		mcp.NewPromptMessage(
			mcp.RoleAssistant,
			mcp.NewTextContent(prompt.GenerateSystemInstruction),
		),
		mcp.NewPromptMessage(
			mcp.RoleUser,
			mcp.NewTextContent(prompt.BuildCreatePayload(brief.Purpose, brief.Tone, brief.Audience)),
		),
	}
	return mcp.NewGetPromptResult(description, messages)
}
