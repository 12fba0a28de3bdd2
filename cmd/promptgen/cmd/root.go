package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mnrezaali/ai-prompt-generator/internal/access"
	"github.com/mnrezaali/ai-prompt-generator/internal/config"
	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/mnrezaali/ai-prompt-generator/internal/llm/providers"
	"github.com/mnrezaali/ai-prompt-generator/internal/relay"
	"github.com/mnrezaali/ai-prompt-generator/internal/storage"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags.
var version = "dev"

var (
	cfgFile  string
	debug    bool
	provider string
	model    string
	server   string
)

var (
	cfg     *config.Config
	logFile *os.File // For cleanup
)

// setupLogging sends log output to the data directory unless debug mode
// keeps it on stderr.
func setupLogging(c *config.Config) error {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetReportTimestamp(true)

	if c.Debug {
		return nil
	}

	logPath := c.Log.File
	if logPath == "" {
		if logPath, err = paths().GetLogPath(); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	log.SetOutput(logFile)
	return nil
}

// cleanupLogging closes the log file if it was opened
func cleanupLogging() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// applyLogLevel is the hot-reload hook for log.level.
func applyLogLevel(c *config.Config) {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		log.Warn("Ignoring unknown log level", "level", c.Log.Level)
		return
	}
	log.SetLevel(level)
}

func paths() *storage.PathManager {
	if cfg != nil {
		if dir := cfg.DataDir(); dir != "" {
			return storage.NewPathManagerAt(dir)
		}
	}
	return storage.NewPathManager()
}

func statePath() (string, error) {
	path, err := paths().GetStatePath()
	if err != nil {
		return "", fmt.Errorf("failed to resolve state file: %w", err)
	}
	return path, nil
}

// openStore opens the key-value database holding history and gate settings.
func openStore() (storage.KV, error) {
	dbPath, err := paths().GetDatabasePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}
	return storage.NewSQLiteKV(dbPath)
}

// upstream names where requests go, for status lines and the state file.
type upstream struct {
	Provider string
	Model    string
}

func (u upstream) String() string {
	switch {
	case u.Provider == "":
		return "no model selected"
	case u.Model == "":
		return u.Provider
	}
	return u.Provider + "/" + u.Model
}

// buildRelay picks the upstream. --server (or remote.url) talks to a running
// promptgen server; otherwise a local provider handler is built. A provider
// that cannot be configured still yields a relay so that every request fails
// with the configuration error.
func buildRelay() (relay.Submitter, upstream) {
	remote := server
	if remote == "" {
		remote = cfg.Remote.URL
	}
	if remote != "" {
		return relay.NewRemote(remote, cfg.Remote.Token, nil), upstream{Provider: "remote", Model: remote}
	}

	providerType, err := cfg.ProviderType(provider)
	if err != nil {
		log.Warn("Provider not configured", "error", err)
		return relay.NewUnconfigured(err), upstream{}
	}
	handler, err := providers.BuildApiHandler(providerType, cfg.HandlerOptions(providerType, model))
	if err != nil {
		log.Warn("Provider not configured", "provider", providerType, "error", err)
		return relay.NewUnconfigured(err), upstream{Provider: string(providerType)}
	}
	r := relay.New(handler)
	return r, upstream{Provider: string(providerType), Model: r.Model()}
}

// session bundles what most commands need: the store, the gate and a
// manager with persisted history.
type session struct {
	kv      storage.KV
	relay   relay.Submitter
	gate    *access.Gate
	manager *conversation.Manager
	model   upstream
}

func openSession(ctx context.Context) (*session, error) {
	kv, err := openStore()
	if err != nil {
		return nil, err
	}
	submitter, up := buildRelay()
	manager := conversation.NewManager(ctx, submitter, conversation.Options{
		HistoryCapacity: cfg.History.Capacity,
		DedupeHistory:   cfg.History.Dedupe,
		Store:           conversation.NewKVHistoryStore(kv),
	})
	return &session{
		kv:      kv,
		relay:   submitter,
		gate:    access.NewGate(ctx, kv, access.Options{MasterKey: cfg.Access.MasterKey}),
		manager: manager,
		model:   up,
	}, nil
}

func (s *session) Close() {
	s.manager.Close()
	if err := s.kv.Close(); err != nil {
		log.Warn("Failed to close store", "error", err)
	}
}

// restoreState loads the saved CLI session into the manager.
func (s *session) restoreState() (*config.State, string, error) {
	path, err := statePath()
	if err != nil {
		return nil, "", err
	}
	state, err := config.LoadState(path)
	if err != nil {
		return nil, "", err
	}
	if !state.Empty() {
		if err := s.manager.Restore(state.Session()); err != nil {
			return nil, "", err
		}
	}
	return state, path, nil
}

// saveState captures the manager's session into the state file.
func (s *session) saveState(state *config.State, path string) error {
	state.Capture(s.manager.Snapshot(), time.Now())
	state.Provider, state.Model = s.model.Provider, s.model.Model
	return config.SaveState(path, state)
}

var rootCmd = &cobra.Command{
	Use:   "promptgen",
	Short: "Generate and refine AI system prompts",
	Long: `promptgen turns a short brief (purpose, tone, audience) into a structured
system prompt for an AI assistant, streams it from the configured model and
lets you refine it conversationally.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(config.LoadOptions{ConfigFile: cfgFile, Debug: debug})
		if err != nil {
			return err
		}
		cfg = c
		return setupLogging(c)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		cleanupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.promptgen.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "Specify the provider (gemini, anthropic, openai, openrouter, bedrock)")
	rootCmd.PersistentFlags().StringVarP(&model, "model", "m", "", "Specify the model to use")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "Use a running promptgen server (e.g. http://localhost:47000) instead of a local provider")
	rootCmd.Version = version
}

// Execute runs the root command.
func Execute() {
	defer cleanupLogging()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
