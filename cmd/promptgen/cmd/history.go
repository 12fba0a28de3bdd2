package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/mnrezaali/ai-prompt-generator/internal/diff"
	"github.com/mnrezaali/ai-prompt-generator/internal/search"
	"github.com/spf13/cobra"
)

// historyCmd groups the prompt history operations
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse, search and reload saved prompts",
	Long: `Every completed generation or refinement is saved, newest first. Only
the most recent entries are kept (history.capacity, default 10).`,
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(sess *session) error {
			entries := sess.manager.History()
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved prompts yet")
				return nil
			}
			results := make([]search.Result, len(entries))
			for i, e := range entries {
				results[i] = search.Result{Entry: e}
			}
			printEntries(cmd.OutOrStdout(), results)
			return nil
		})
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search saved prompts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withSession(cmd, func(sess *session) error {
			results := search.History(sess.manager.History(), search.Options{
				Query:      strings.Join(args, " "),
				MaxResults: limit,
			})
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches")
				return nil
			}
			printEntries(cmd.OutOrStdout(), results)
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return withSession(cmd, func(sess *session) error {
			entry, err := sess.manager.Entry(args[0])
			if err != nil {
				return err
			}
			out := newOutput(cmd.OutOrStdout(), format)
			out.fragment(entry.Prompt)
			return out.finish(entry.Prompt, conversation.State{
				Brief: conversation.Brief{Purpose: entry.Purpose, Tone: entry.Tone, Audience: entry.Audience},
			})
		})
	},
}

var historyLoadCmd = &cobra.Command{
	Use:   "load <id>",
	Short: "Make a saved prompt the current one for refine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(sess *session) error {
			state, path, err := sess.restoreState()
			if err != nil {
				return err
			}
			loaded, err := sess.manager.LoadFromHistory(args[0])
			if err != nil {
				return err
			}
			if err := sess.saveState(state, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %q; continue with 'promptgen refine'\n", loaded.Brief.Purpose)
			return nil
		})
	},
}

var historyDiffCmd = &cobra.Command{
	Use:   "diff <id>",
	Short: "Compare a saved prompt with the current one or another entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		against, _ := cmd.Flags().GetString("against")
		inline, _ := cmd.Flags().GetBool("inline")
		color, _ := cmd.Flags().GetBool("color")
		return withSession(cmd, func(sess *session) error {
			entry, err := sess.manager.Entry(args[0])
			if err != nil {
				return err
			}

			oldLabel, oldText := "current", ""
			if against != "" {
				other, err := sess.manager.Entry(against)
				if err != nil {
					return err
				}
				oldLabel, oldText = other.ID, other.Prompt
			} else {
				if _, _, err := sess.restoreState(); err != nil {
					return err
				}
				oldText = sess.manager.Snapshot().Artifact
			}

			stats := diff.Compute(oldText, entry.Prompt)
			if !stats.Changed() {
				fmt.Fprintln(cmd.OutOrStdout(), "No differences")
				return nil
			}
			switch {
			case inline:
				fmt.Fprintln(cmd.OutOrStdout(), diff.Pretty(oldText, entry.Prompt))
			case color:
				out, err := diff.Highlight(diff.Unified(oldLabel, entry.ID, oldText, entry.Prompt), cfg.TUI.DiffStyle)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
			default:
				fmt.Fprint(cmd.OutOrStdout(), diff.Unified(oldLabel, entry.ID, oldText, entry.Prompt))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "+%d -%d characters\n", stats.Inserted, stats.Deleted)
			return nil
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all saved prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(sess *session) error {
			n := len(sess.manager.History())
			sess.manager.ClearHistory(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d saved prompts\n", n)
			return nil
		})
	},
}

// withSession opens a session for the duration of fn.
func withSession(cmd *cobra.Command, fn func(*session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(sess)
}

func printEntries(w io.Writer, results []search.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSAVED\tTONE\tTITLE")
	for _, r := range results {
		e := r.Entry
		title := e.Title()
		if e.Instruction != "" {
			title += " (refined: " + e.Instruction + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Tone, title)
	}
	tw.Flush()
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historySearchCmd, historyShowCmd, historyLoadCmd, historyDiffCmd, historyClearCmd)

	historySearchCmd.Flags().IntP("limit", "n", 0, "Maximum number of results")
	historyShowCmd.Flags().StringP("format", "f", formatText, "Output format (text, markdown, json)")
	historyDiffCmd.Flags().String("against", "", "Compare with this entry instead of the current prompt")
	historyDiffCmd.Flags().Bool("inline", false, "Show a character-level inline diff")
	historyDiffCmd.Flags().Bool("color", false, "Syntax-highlight the unified diff")
}
