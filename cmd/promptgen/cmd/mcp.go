package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mnrezaali/ai-prompt-generator/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd starts the MCP server
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Model Context Protocol server",
	Long: `Expose the prompt session to MCP clients. Tools generate, refine, list,
load and diff prompts; resources expose the current session and history;
prompts return ready-made briefs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")

		return withSession(cmd, func(sess *session) error {
			if _, _, err := sess.restoreState(); err != nil {
				log.Warn("Starting without the saved session", "error", err)
			}
			ps := mcp.NewPromptServer(sess.manager, version)

			log.Info("MCP session ready", "transport", transport, "model", sess.model.String())
			switch transport {
			case "stdio":
				return ps.Start()
			case "sse":
				return ps.StartSSE(addr)
			case "http":
				return ps.StartStreamableHTTP(addr)
			default:
				return fmt.Errorf("unknown transport type: %s", transport)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringP("transport", "t", "stdio", "Transport type (stdio, sse, http)")
	mcpCmd.Flags().StringP("addr", "a", ":8080", "Address for HTTP/SSE transport")
}
