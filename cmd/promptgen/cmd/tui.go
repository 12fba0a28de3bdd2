package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/mnrezaali/ai-prompt-generator/internal/tui"
	"github.com/spf13/cobra"
)

// tuiCmd starts the interactive terminal UI
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive prompt editor",
	Long: `Open the terminal UI. It resumes the saved session when there is one
and saves it again on exit, so generate, refine and tui can be mixed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		theme, _ := cmd.Flags().GetString("theme")
		if theme == "" {
			theme = cfg.TUI.Theme
		}

		ctx := cmd.Context()
		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		state, path, err := sess.restoreState()
		if err != nil {
			log.Warn("Starting without the saved session", "error", err)
		}

		if err := tui.Run(ctx, sess.manager, tui.Options{Theme: theme, Model: sess.model.String()}); err != nil {
			return err
		}

		if state == nil || sess.manager.Snapshot().Artifact == "" {
			return nil
		}
		return sess.saveState(state, path)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().String("theme", "", "Colour theme (mocha, macchiato, frappe, latte)")
}
