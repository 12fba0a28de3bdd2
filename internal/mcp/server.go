// Package mcp exposes the prompt session to MCP clients as tools, resources
// and prompts.
package mcp

import (
	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm/prompt"
)

const (
	sessionURI     = "promptgen://session/current"
	historyURI     = "promptgen://history"
	historyItemURI = "promptgen://history/{id}"
)

// PromptServer is the MCP server over one conversation manager.
type PromptServer struct {
	server  *server.MCPServer
	manager *conversation.Manager
}

// NewPromptServer creates a new MCP server for manager.
func NewPromptServer(manager *conversation.Manager, version string) *PromptServer {
	s := server.NewMCPServer(
		"promptgen",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
	)

	ps := &PromptServer{
		server:  s,
		manager: manager,
	}

	ps.registerTools()
	ps.registerResources()
	ps.registerPrompts()

	return ps
}

func (ps *PromptServer) registerTools() {
	generateTool := mcp.NewTool("generate_system_prompt",
		mcp.WithDescription("Generate a new system prompt from a brief. Replaces the current prompt and conversation."),
		mcp.WithString("purpose",
			mcp.Description("What the AI should do, e.g. 'a patient math tutor'"),
		),
		mcp.WithString("tone",
			mcp.Description("Tone of voice"),
			mcp.Enum(prompt.ToneOptions...),
		),
		mcp.WithString("audience",
			mcp.Description("Who the AI will talk to"),
		),
		mcp.WithString("recommendation",
			mcp.Description("Title of a built-in brief used to fill empty fields"),
		),
	)
	ps.server.AddTool(generateTool, ps.handleGenerate)

	refineTool := mcp.NewTool("refine_system_prompt",
		mcp.WithDescription("Rewrite the current system prompt following an instruction"),
		mcp.WithString("instruction",
			mcp.Required(),
			mcp.Description("How to change the prompt, e.g. 'make it more concise'"),
		),
	)
	ps.server.AddTool(refineTool, ps.handleRefine)

	historyTool := mcp.NewTool("list_prompt_history",
		mcp.WithDescription("List previously generated prompts, newest first"),
		mcp.WithString("query",
			mcp.Description("Fuzzy filter over titles, purposes, instructions and prompt text"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of entries to return (default: all)"),
		),
	)
	ps.server.AddTool(historyTool, ps.handleListHistory)

	loadTool := mcp.NewTool("load_prompt_history",
		mcp.WithDescription("Make a history entry the current prompt"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("History entry ID"),
		),
	)
	ps.server.AddTool(loadTool, ps.handleLoadHistory)

	diffTool := mcp.NewTool("diff_prompt_history",
		mcp.WithDescription("Show a unified diff between the current prompt and a history entry"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("History entry ID"),
		),
		mcp.WithString("against",
			mcp.Description("Compare against this entry instead of the current prompt"),
		),
	)
	ps.server.AddTool(diffTool, ps.handleDiffHistory)
}

func (ps *PromptServer) registerResources() {
	current := mcp.NewResource(
		sessionURI,
		"Current System Prompt",
		mcp.WithResourceDescription("The prompt currently being edited"),
		mcp.WithMIMEType("text/markdown"),
	)
	ps.server.AddResource(current, ps.handleSessionResource)

	history := mcp.NewResource(
		historyURI,
		"Prompt History",
		mcp.WithResourceDescription("Previously generated prompts, newest first"),
		mcp.WithMIMEType("application/json"),
	)
	ps.server.AddResource(history, ps.handleHistoryResource)

	entry := mcp.NewResourceTemplate(
		historyItemURI,
		"History Entry",
		mcp.WithTemplateDescription("One generated prompt from history"),
		mcp.WithTemplateMIMEType("text/markdown"),
	)
	ps.server.AddResourceTemplate(entry, ps.handleHistoryEntryResource)
}

func (ps *PromptServer) registerPrompts() {
	briefPrompt := mcp.NewPrompt("prompt_brief",
		mcp.WithPromptDescription("The request sent to the model when generating a system prompt"),
		mcp.WithArgument("purpose",
			mcp.ArgumentDescription("What the AI should do"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("tone",
			mcp.ArgumentDescription("Tone of voice"),
		),
		mcp.WithArgument("audience",
			mcp.ArgumentDescription("Who the AI will talk to"),
		),
	)
	ps.server.AddPrompt(briefPrompt, ps.handleBriefPrompt)

	recommended := mcp.NewPrompt("recommended_brief",
		mcp.WithPromptDescription("A built-in brief by title"),
		mcp.WithArgument("title",
			mcp.ArgumentDescription("Recommendation title"),
			mcp.RequiredArgument(),
		),
	)
	ps.server.AddPrompt(recommended, ps.handleRecommendedPrompt)
}

// Start serves over stdio.
func (ps *PromptServer) Start() error {
	log.Info("Starting MCP server on stdio")
	return server.ServeStdio(ps.server)
}

// StartSSE starts the MCP server using Server-Sent Events transport
func (ps *PromptServer) StartSSE(addr string) error {
	log.Info("Starting MCP SSE server", "addr", addr)
	return server.NewSSEServer(ps.server).Start(addr)
}

// StartStreamableHTTP starts the MCP server using the streamable HTTP transport
func (ps *PromptServer) StartStreamableHTTP(addr string) error {
	log.Info("Starting MCP HTTP server", "addr", addr)
	return server.NewStreamableHTTPServer(ps.server).Start(addr)
}

// GetServer returns the underlying MCP server
func (ps *PromptServer) GetServer() *server.MCPServer {
	return ps.server
}
