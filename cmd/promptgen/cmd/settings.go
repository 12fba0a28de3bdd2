package cmd

import (
	"fmt"
	"strconv"

	"github.com/mnrezaali/ai-prompt-generator/internal/config"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm"
	"github.com/spf13/cobra"
)

// settingsCmd manages the access gate and the default model. These run
// locally with admin rights; the HTTP API requires the master key instead.
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change access and model settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(sess *session) error {
			w := cmd.OutOrStdout()
			settings := sess.gate.Settings()
			fmt.Fprintf(w, "Model:        %s\n", sess.model)
			fmt.Fprintf(w, "Gate enabled: %t\n", sess.gate.Enabled())
			fmt.Fprintf(w, "Secret word:  %s\n", settings.SecretWord)
			fmt.Fprintf(w, "Client code:  %s\n", sess.gate.CurrentClientCode())
			fmt.Fprintf(w, "History:      %d entries (capacity %d)\n", len(sess.manager.History()), cfg.History.Capacity)
			fmt.Fprintf(w, "Data:         %s\n", paths().GetPlatformInfo()["data_dir"])
			return nil
		})
	},
}

var settingsSecretCmd = &cobra.Command{
	Use:   "set-secret <word>",
	Short: "Change the secret word behind client access codes",
	Long: `Change the secret word. Client codes have the form <word>-DD-MM-YYYY
(UTC date). Tokens issued for the old word stop working.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(sess *session) error {
			if err := sess.gate.SetSecretWord(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Secret word updated; today's client code is %s\n", sess.gate.CurrentClientCode())
			return nil
		})
	},
}

var settingsGateCmd = &cobra.Command{
	Use:       "gate <on|off>",
	Short:     "Enable or disable the access gate",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := parseSwitch(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd, func(sess *session) error {
			if err := sess.gate.SetEnabled(cmd.Context(), enabled); err != nil {
				return err
			}
			if enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Access gate enabled")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Access gate disabled; guests may use the generator")
			}
			return nil
		})
	},
}

var settingsCodeCmd = &cobra.Command{
	Use:   "code",
	Short: "Print today's client access code",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(sess *session) error {
			fmt.Fprintln(cmd.OutOrStdout(), sess.gate.CurrentClientCode())
			return nil
		})
	},
}

var settingsModelCmd = &cobra.Command{
	Use:   "model <provider> [model]",
	Short: "Set the default provider and model",
	Example: `  promptgen settings model gemini gemini-2.5-flash
  promptgen settings model anthropic`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		providerType, err := llm.ParseProviderType(args[0])
		if err != nil {
			return err
		}
		var modelID string
		if len(args) == 2 {
			modelID = args[1]
		}
		if err := config.UpdateModel(providerType, modelID); err != nil {
			return err
		}
		if modelID == "" {
			modelID = providerType.DefaultModel()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default model set to %s/%s\n", providerType, modelID)
		return nil
	},
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return b, nil
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSecretCmd, settingsGateCmd, settingsCodeCmd, settingsModelCmd)
}
