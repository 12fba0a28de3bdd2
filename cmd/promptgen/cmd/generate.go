package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mnrezaali/ai-prompt-generator/internal/config"
	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm/prompt"
	"github.com/mnrezaali/ai-prompt-generator/internal/markdown"
	"github.com/spf13/cobra"
)

const (
	formatText     = "text"
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

// generateCmd creates a new prompt from a brief
var generateCmd = &cobra.Command{
	Use:   "generate [purpose]",
	Short: "Generate a system prompt from a brief",
	Long: `Generate a system prompt. The purpose is taken from the arguments or
--purpose. --recommendation fills empty fields from a built-in brief:
` + recommendationList(),
	Example: `  promptgen generate "a patient maths tutor for teenagers" --tone Friendly
  promptgen generate --recommendation "Marketing Copywriter" --format markdown`,
	RunE: func(cmd *cobra.Command, args []string) error {
		purpose, _ := cmd.Flags().GetString("purpose")
		tone, _ := cmd.Flags().GetString("tone")
		audience, _ := cmd.Flags().GetString("audience")
		recommendation, _ := cmd.Flags().GetString("recommendation")
		format, _ := cmd.Flags().GetString("format")
		if len(args) > 0 {
			purpose = strings.Join(args, " ")
		}

		brief, err := conversation.ResolveBrief(purpose, tone, audience, recommendation)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		path, err := statePath()
		if err != nil {
			return err
		}

		out := newOutput(cmd.OutOrStdout(), format)
		text, err := sess.manager.GenerateFunc(ctx, brief, out.fragment)
		if err != nil {
			return fmt.Errorf("generation failed: %w", err)
		}
		if err := out.finish(text, sess.manager.Snapshot()); err != nil {
			return err
		}

		state, err := config.LoadState(path)
		if err != nil {
			return err
		}
		return sess.saveState(state, path)
	},
}

// refineCmd continues the saved session
var refineCmd = &cobra.Command{
	Use:   "refine <instruction>",
	Short: "Refine the current prompt with an instruction",
	Long: `Refine the prompt saved by the last generate, refine or history load.
The whole conversation so far is sent along with the instruction.`,
	Example: `  promptgen refine "make it shorter and add a rule about citing sources"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		instruction := strings.Join(args, " ")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		state, path, err := sess.restoreState()
		if err != nil {
			return err
		}
		if state.Empty() {
			return errors.New("no prompt to refine: run 'promptgen generate' or 'promptgen history load' first")
		}

		out := newOutput(cmd.OutOrStdout(), format)
		text, err := sess.manager.RefineFunc(ctx, instruction, out.fragment)
		if err != nil {
			return fmt.Errorf("refinement failed: %w", err)
		}
		if err := out.finish(text, sess.manager.Snapshot()); err != nil {
			return err
		}
		return sess.saveState(state, path)
	},
}

// resetCmd forgets the saved session
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the current prompt and start over",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := statePath()
		if err != nil {
			return err
		}
		if err := config.ClearState(path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Session cleared")
		return nil
	},
}

// output writes a prompt in the selected format. Text streams fragments as
// they arrive; markdown and json wait for the final prompt.
type output struct {
	w      io.Writer
	format string
}

func newOutput(w io.Writer, format string) *output {
	return &output{w: w, format: format}
}

func (o *output) fragment(s string) {
	if o.format == formatText || o.format == "" {
		fmt.Fprint(o.w, s)
	}
}

func (o *output) finish(text string, snapshot conversation.State) error {
	switch o.format {
	case formatText, "":
		if !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(o.w)
		}
		return nil
	case formatMarkdown:
		renderer, err := markdown.NewRenderer(markdown.DefaultConfig())
		if err != nil {
			return err
		}
		rendered, err := renderer.Render(text)
		if err != nil {
			return err
		}
		fmt.Fprint(o.w, rendered)
		return nil
	case formatJSON:
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Prompt string             `json:"prompt"`
			Brief  conversation.Brief `json:"brief"`
			Turns  int                `json:"turns"`
		}{text, snapshot.Brief, len(snapshot.VisibleTurns())})
	default:
		return fmt.Errorf("unknown format %q (text, markdown, json)", o.format)
	}
}

func recommendationList() string {
	var b strings.Builder
	for _, r := range prompt.RecommendedPrompts {
		fmt.Fprintf(&b, "  - %s (%s)\n", r.Title, r.Tone)
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(refineCmd)
	rootCmd.AddCommand(resetCmd)

	generateCmd.Flags().String("purpose", "", "What the assistant is for")
	generateCmd.Flags().StringP("tone", "t", "", "Tone: "+strings.Join(prompt.ToneOptions, ", "))
	generateCmd.Flags().StringP("audience", "a", "", "Who the assistant talks to")
	generateCmd.Flags().StringP("recommendation", "r", "", "Start from a built-in brief")
	for _, c := range []*cobra.Command{generateCmd, refineCmd} {
		c.Flags().StringP("format", "f", formatText, "Output format (text, markdown, json)")
	}
}
